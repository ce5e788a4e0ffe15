package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Klingon-tech/klingnet-wallet/internal/engine"
)

func newAccountsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accounts [chain]",
		Short: "List stored accounts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(_ context.Context, e *engine.Engine) error {
				if len(args) == 0 {
					return printJSON(e.Wallets())
				}
				kind, err := chainArg(args[0])
				if err != nil {
					return err
				}
				return printJSON(e.Wallet(kind))
			})
		},
	}
}

func newAddAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-account <chain>",
		Short: "Derive the next account on a chain",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := chainArg(args[0])
			if err != nil {
				return err
			}
			return withEngine(func(ctx context.Context, e *engine.Engine) error {
				acct, err := e.AddAccount(ctx, kind)
				if err != nil {
					return err
				}
				return printJSON(acct)
			})
		},
	}
}

func newSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select <chain> <position>",
		Short: "Make the account at a list position active",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := chainArg(args[0])
			if err != nil {
				return err
			}
			pos, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid position %q", args[1])
			}
			return withEngine(func(_ context.Context, e *engine.Engine) error {
				if err := e.SelectAccount(kind, pos); err != nil {
					return err
				}
				active, _ := e.Wallet(kind).Active()
				fmt.Printf("Active %s account: %s (%s)\n", kind, active.Name, active.Address)
				return nil
			})
		},
	}
}

func newRenameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <chain> <address> <name>",
		Short: "Rename an account",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := chainArg(args[0])
			if err != nil {
				return err
			}
			return withEngine(func(_ context.Context, e *engine.Engine) error {
				return e.RenameAccount(kind, args[1], args[2])
			})
		},
	}
}

func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "refresh <chain> [address]",
		Aliases: []string{"balance"},
		Short:   "Fetch balance and latest history for an account (default: active)",
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := chainArg(args[0])
			if err != nil {
				return err
			}
			addr := optionalArg(args, 1)
			return withEngine(func(ctx context.Context, e *engine.Engine) error {
				refreshErr := e.RefreshAccount(ctx, kind, addr)
				acct, err := e.Account(kind, addr)
				if err != nil {
					return err
				}
				if err := printJSON(acct); err != nil {
					return err
				}
				return refreshErr
			})
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var more bool
	cmd := &cobra.Command{
		Use:   "history <chain> [address]",
		Short: "Show transaction history (default: active account)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := chainArg(args[0])
			if err != nil {
				return err
			}
			addr := optionalArg(args, 1)
			return withEngine(func(ctx context.Context, e *engine.Engine) error {
				if more {
					err = e.LoadMoreTransactions(ctx, kind, addr)
				} else {
					err = e.RefreshTransactions(ctx, kind, addr)
				}
				if err != nil {
					return err
				}
				acct, err := e.Account(kind, addr)
				if err != nil {
					return err
				}
				if err := printJSON(acct.Transactions); err != nil {
					return err
				}
				if acct.HasMore {
					fmt.Println("More transactions available: rerun with --more")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&more, "more", false, "Load the next page after the stored history")
	return cmd
}

func optionalArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return ""
}
