package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Klingon-tech/klingnet-wallet/internal/engine"
	"github.com/Klingon-tech/klingnet-wallet/internal/node"
)

func newCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Create a new wallet and print its recovery phrase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(func(ctx context.Context, e *engine.Engine) error {
				mnemonic, err := e.CreateWallet(ctx)
				if err != nil {
					return err
				}
				fmt.Println("Wallet created. Write down the recovery phrase and keep it offline:")
				fmt.Println()
				fmt.Println("  " + mnemonic)
				fmt.Println()
				return printJSON(e.Wallets())
			})
		},
	}
}

func newImportCmd() *cobra.Command {
	var policy string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Restore a wallet from a recovery phrase",
		Long: `Restore a wallet from a recovery phrase.

Every chain is scanned for accounts with history; all accounts up to the
boundary are restored. With --policy=shared-max the largest boundary is
applied to every chain.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mnemonic, err := readSecretLine("Recovery phrase: ")
			if err != nil {
				return fmt.Errorf("read recovery phrase: %w", err)
			}
			return withNode(func(ctx context.Context, n *node.Node) error {
				e := n.Engine()
				if policy != "" {
					n.Config().Discovery.Policy = policy
				}
				bp, err := n.Config().BoundaryPolicy()
				if err != nil {
					return err
				}
				res, err := e.ImportWallet(ctx, mnemonic, bp)
				if err != nil {
					return err
				}
				for kind, n := range res.Accounts {
					fmt.Printf("%s: %d account(s) restored\n", kind, n)
				}
				return printJSON(e.Wallets())
			})
		},
	}
	cmd.Flags().StringVar(&policy, "policy", "", "Boundary policy: independent or shared-max (default from config)")
	return cmd
}

func newRecoveryPhraseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recovery-phrase",
		Short: "Print the stored recovery phrase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(func(_ context.Context, e *engine.Engine) error {
				mnemonic, err := e.RecoveryPhrase()
				if err != nil {
					return err
				}
				fmt.Println(mnemonic)
				return nil
			})
		},
	}
}

func newLogoutCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Erase all accounts and secrets from this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("logout erases the recovery phrase from this device; rerun with --yes")
			}
			return withEngine(func(ctx context.Context, e *engine.Engine) error {
				if err := e.Logout(ctx); err != nil {
					return err
				}
				fmt.Println("Wallet erased.")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm erasing the wallet")
	return cmd
}
