package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Klingon-tech/klingnet-wallet/internal/chain"
	"github.com/Klingon-tech/klingnet-wallet/internal/engine"
)

func newSendCmd() *cobra.Command {
	var (
		from string
		wait bool
	)
	cmd := &cobra.Command{
		Use:   "send <chain> <to> <amount>",
		Short: "Send native currency from an account (default: active)",
		Long: `Send native currency (ETH or SOL) from an account.

The amount is checked against the last refreshed balance before anything
is signed; run "refresh" first if the balance may be stale.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := chainArg(args[0])
			if err != nil {
				return err
			}
			amount, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[2], err)
			}
			return withEngine(func(ctx context.Context, e *engine.Engine) error {
				hash, err := e.SendTransfer(ctx, engine.SendRequest{
					Chain:  kind,
					From:   from,
					To:     args[1],
					Amount: amount,
				})
				if err != nil {
					return err
				}
				fmt.Printf("Submitted: %s\n", hash)
				if !wait {
					return nil
				}
				return confirm(ctx, e, kind, from, hash)
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Sending account address")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the transaction to confirm")
	return cmd
}

func newConfirmCmd() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "confirm <chain> <hash>",
		Short: "Wait for a submitted transaction to confirm",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := chainArg(args[0])
			if err != nil {
				return err
			}
			return withEngine(func(ctx context.Context, e *engine.Engine) error {
				return confirm(ctx, e, kind, from, args[1])
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Account that sent the transaction")
	return cmd
}

func confirm(ctx context.Context, e *engine.Engine, kind chain.Kind, from, hash string) error {
	ok, err := e.ConfirmTransaction(ctx, kind, from, hash)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("transaction %s failed on chain", hash)
	}
	fmt.Printf("Confirmed: %s\n", hash)
	return nil
}

func newFeeCmd() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "fee <chain> <to> <amount>",
		Short: "Estimate the network fee of a transfer",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := chainArg(args[0])
			if err != nil {
				return err
			}
			amount, err := decimal.NewFromString(args[2])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[2], err)
			}
			return withEngine(func(ctx context.Context, e *engine.Engine) error {
				fee, err := e.EstimateFee(ctx, kind, from, args[1], amount)
				if err != nil {
					return err
				}
				fmt.Printf("Estimated fee: %s\n", fee.String())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Sending account address")
	return cmd
}
