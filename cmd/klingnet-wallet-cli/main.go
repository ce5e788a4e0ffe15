// klingnet-wallet-cli drives the wallet engine from the command line. It
// opens the same state directory as klingnet-walletd, so the daemon must be
// stopped first.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Klingon-tech/klingnet-wallet/config"
	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	"github.com/Klingon-tech/klingnet-wallet/internal/engine"
	klog "github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/node"
)

// flags is shared by every subcommand through the root's persistent flags.
var flags config.Flags

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "klingnet-wallet-cli",
		Short:         "Non-custodial EVM and Solana wallet",
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.Network, "network", "", "Network type (mainnet or testnet)")
	pf.StringVar(&flags.DataDir, "datadir", "", "Data directory path")
	pf.StringVarP(&flags.Config, "config", "c", "", "Config file path")
	pf.StringVar(&flags.EVMRPC, "evm-rpc", "", "EVM JSON-RPC URL prefix")
	pf.StringVar(&flags.EVMAPIKey, "evm-apikey", "", "EVM provider API key")
	pf.StringVar(&flags.SolanaRPC, "solana-rpc", "", "Solana JSON-RPC URL prefix")
	pf.StringVar(&flags.SolanaAPIKey, "solana-apikey", "", "Solana provider API key")
	testnet := pf.Bool("testnet", false, "Shorthand for --network=testnet")

	root.PersistentPreRun = func(*cobra.Command, []string) {
		if *testnet {
			flags.Network = string(config.Testnet)
		}
	}

	root.AddCommand(
		newCreateCmd(),
		newImportCmd(),
		newRecoveryPhraseCmd(),
		newLogoutCmd(),
		newAccountsCmd(),
		newAddAccountCmd(),
		newSelectCmd(),
		newRenameCmd(),
		newRefreshCmd(),
		newHistoryCmd(),
		newSendCmd(),
		newConfirmCmd(),
		newFeeCmd(),
		newFavoritesCmd(),
	)
	return root
}

// withEngine runs fn against a freshly built engine.
func withEngine(fn func(ctx context.Context, e *engine.Engine) error) error {
	return withNode(func(ctx context.Context, n *node.Node) error {
		return fn(ctx, n.Engine())
	})
}

// withNode loads the configuration, unlocks the secret store and runs fn
// against a node without background services. The context is cancelled on
// SIGINT.
func withNode(fn func(ctx context.Context, n *node.Node) error) error {
	cfg, err := config.LoadWithFlags(&flags)
	if err != nil {
		return err
	}
	// The CLI is one-shot: no background refresh and no metrics endpoint.
	cfg.Poll.Enabled = false
	cfg.Metrics.Enabled = false

	pass, err := node.Passphrase(cfg, func() ([]byte, error) {
		return readPassword("Wallet passphrase: ")
	})
	if err != nil {
		return err
	}

	klog.Disable()
	n, err := node.New(cfg, pass, node.Options{Quiet: true})
	if err != nil {
		return err
	}
	defer n.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return fn(ctx, n)
}

// chainArg parses a chain name given as a positional argument or flag.
func chainArg(s string) (chain.Kind, error) {
	return chain.ParseKind(strings.ToLower(s))
}

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

// readSecretLine reads a line without echo on a terminal, or a plain line
// when stdin is piped.
func readSecretLine(prompt string) (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		b, err := readPassword(prompt)
		return string(b), err
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
