package main

import (
	"testing"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{
		"create", "import", "recovery-phrase", "logout", "accounts", "add-account",
		"select", "rename", "refresh", "history", "send", "confirm", "fee", "favorites",
	}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == root {
			t.Errorf("subcommand %q not registered", name)
		}
	}
	if cmd, _, err := root.Find([]string{"balance"}); err != nil || cmd.Name() != "refresh" {
		t.Error("balance should alias refresh")
	}
}

func TestChainArg(t *testing.T) {
	tests := []struct {
		in   string
		want chain.Kind
		ok   bool
	}{
		{"evm", chain.KindEVM, true},
		{"EVM", chain.KindEVM, true},
		{"solana", chain.KindSolana, true},
		{"bitcoin", "", false},
	}
	for _, tt := range tests {
		got, err := chainArg(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("chainArg(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestLogoutRequiresYes(t *testing.T) {
	root := newRootCmd()
	root.SetArgs([]string{"logout"})
	if err := root.Execute(); err == nil {
		t.Fatal("logout without --yes should fail before touching the wallet")
	}
}

func TestOptionalArg(t *testing.T) {
	if optionalArg([]string{"evm"}, 1) != "" {
		t.Error("missing arg should be empty")
	}
	if optionalArg([]string{"evm", "0xabc"}, 1) != "0xabc" {
		t.Error("present arg not returned")
	}
}
