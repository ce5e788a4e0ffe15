package storage

import (
	"bytes"
	"errors"
	"testing"
)

// testDB runs the shared test suite against a DB implementation.
func testDB(t *testing.T, db DB) {
	t.Helper()

	t.Run("PutAndGet", func(t *testing.T) {
		if err := db.Put([]byte("wallet/state/evm"), []byte(`{"activeIndex":0}`)); err != nil {
			t.Fatalf("Put() error: %v", err)
		}
		val, err := db.Get([]byte("wallet/state/evm"))
		if err != nil {
			t.Fatalf("Get() error: %v", err)
		}
		if !bytes.Equal(val, []byte(`{"activeIndex":0}`)) {
			t.Errorf("Get() = %q", val)
		}
	})

	t.Run("GetMissingIsNotFound", func(t *testing.T) {
		_, err := db.Get([]byte("wallet/state/none"))
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("Has", func(t *testing.T) {
		db.Put([]byte("secret/mnemonic"), []byte("sealed"))

		ok, err := db.Has([]byte("secret/mnemonic"))
		if err != nil || !ok {
			t.Errorf("Has(existing) = %v, %v", ok, err)
		}
		ok, err = db.Has([]byte("secret/passcode"))
		if err != nil || ok {
			t.Errorf("Has(missing) = %v, %v", ok, err)
		}
	})

	t.Run("OverwriteAndDelete", func(t *testing.T) {
		db.Put([]byte("ow"), []byte("first"))
		db.Put([]byte("ow"), []byte("second"))
		val, _ := db.Get([]byte("ow"))
		if string(val) != "second" {
			t.Errorf("Get() after overwrite = %q, want %q", val, "second")
		}

		if err := db.Delete([]byte("ow")); err != nil {
			t.Fatalf("Delete() error: %v", err)
		}
		if ok, _ := db.Has([]byte("ow")); ok {
			t.Error("key should be gone after Delete()")
		}
		if err := db.Delete([]byte("never-existed")); err != nil {
			t.Errorf("Delete() nonexistent key error: %v", err)
		}
	})

	t.Run("ForEach", func(t *testing.T) {
		db.Put([]byte("fav/a"), []byte("1"))
		db.Put([]byte("fav/b"), []byte("2"))
		db.Put([]byte("other/x"), []byte("3"))

		var count int
		err := db.ForEach([]byte("fav/"), func(key, value []byte) error {
			count++
			return nil
		})
		if err != nil {
			t.Fatalf("ForEach() error: %v", err)
		}
		if count != 2 {
			t.Errorf("ForEach(fav/) count = %d, want 2", count)
		}
	})

	t.Run("Batch", func(t *testing.T) {
		db.Put([]byte("batch/old"), []byte("x"))

		b := NewBatch(db)
		b.Put([]byte("batch/a"), []byte("1"))
		b.Put([]byte("batch/b"), []byte("2"))
		b.Delete([]byte("batch/old"))

		if ok, _ := db.Has([]byte("batch/a")); ok {
			t.Fatal("batch writes visible before Commit()")
		}
		if err := b.Commit(); err != nil {
			t.Fatalf("Commit() error: %v", err)
		}
		if ok, _ := db.Has([]byte("batch/a")); !ok {
			t.Error("batch/a missing after Commit()")
		}
		if ok, _ := db.Has([]byte("batch/old")); ok {
			t.Error("batch/old still present after Commit()")
		}
	})
}

func TestMemoryDB(t *testing.T) {
	db := NewMemory()
	defer db.Close()
	testDB(t, db)
}

func TestMemoryDB_GetReturnsCopy(t *testing.T) {
	db := NewMemory()
	db.Put([]byte("k"), []byte("abc"))

	v, _ := db.Get([]byte("k"))
	v[0] = 'z'

	again, _ := db.Get([]byte("k"))
	if string(again) != "abc" {
		t.Errorf("stored value mutated through Get() result: %q", again)
	}
}

func TestBadgerDB(t *testing.T) {
	db, err := NewBadger(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	defer db.Close()
	testDB(t, db)
}

func TestBadgerDB_Persistence(t *testing.T) {
	dir := t.TempDir()

	db1, err := NewBadger(dir)
	if err != nil {
		t.Fatalf("NewBadger() error: %v", err)
	}
	db1.Put([]byte("wallet/state/solana"), []byte("data"))
	db1.Close()

	db2, err := NewBadger(dir)
	if err != nil {
		t.Fatalf("NewBadger() reopen error: %v", err)
	}
	defer db2.Close()

	val, err := db2.Get([]byte("wallet/state/solana"))
	if err != nil {
		t.Fatalf("Get() after reopen error: %v", err)
	}
	if !bytes.Equal(val, []byte("data")) {
		t.Errorf("persisted value = %q, want %q", val, "data")
	}
}
