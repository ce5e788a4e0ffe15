// derive_accounts.go prints the EVM and Solana accounts for a recovery phrase
// read from a file (or stdin when the path is "-").
// Usage: go run scripts/derive_accounts.go <phrasefile> [count]
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	"github.com/Klingon-tech/klingnet-wallet/internal/chain/evm"
	"github.com/Klingon-tech/klingnet-wallet/internal/chain/solana"
	"github.com/Klingon-tech/klingnet-wallet/internal/wallet"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: derive_accounts <phrasefile|-> [count]")
		os.Exit(1)
	}
	count := 1
	if len(os.Args) > 2 {
		n, err := strconv.Atoi(os.Args[2])
		if err != nil || n < 1 {
			fmt.Fprintln(os.Stderr, "count must be a positive integer")
			os.Exit(1)
		}
		count = n
	}

	var data []byte
	var err error
	if os.Args[1] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(os.Args[1])
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	seed, err := wallet.ToSeed(wallet.NormalizeMnemonic(string(data)))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Derivation never dials, so the adapters need no endpoints.
	adapters := []chain.Adapter{
		evm.New(evm.Config{}, nil, nil),
		solana.New(solana.Config{}, nil, nil),
	}
	for _, a := range adapters {
		for i := 0; i < count; i++ {
			acct, err := a.DeriveAccount(seed, uint32(i))
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			fmt.Printf("%s %d path=%s address=%s pubkey=%s\n",
				acct.Chain, acct.Index, acct.DerivationPath, acct.Address, acct.PublicKey)
		}
	}
}
