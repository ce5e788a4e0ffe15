package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Klingon-tech/klingnet-wallet/internal/engine"
	"github.com/Klingon-tech/klingnet-wallet/internal/favorites"
)

func newFavoritesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favorites",
		Short: "Manage bookmarked tokens",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List bookmarked tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEngine(func(_ context.Context, e *engine.Engine) error {
				favs, err := e.Favorites().List()
				if err != nil {
					return err
				}
				return printJSON(favs)
			})
		},
	}

	var name, symbol string
	add := &cobra.Command{
		Use:   "add <token-address> <chain-id>",
		Short: "Bookmark a token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(_ context.Context, e *engine.Engine) error {
				added, err := e.Favorites().Add(favorites.Favorite{
					TokenAddress: args[0],
					ChainID:      args[1],
					Name:         name,
					Symbol:       symbol,
				})
				if err != nil {
					return err
				}
				if !added {
					fmt.Println("Already bookmarked.")
				}
				return nil
			})
		},
	}
	add.Flags().StringVar(&name, "name", "", "Token name")
	add.Flags().StringVar(&symbol, "symbol", "", "Token symbol")

	remove := &cobra.Command{
		Use:   "remove <token-address> <chain-id>",
		Short: "Remove a bookmark",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(_ context.Context, e *engine.Engine) error {
				removed, err := e.Favorites().Remove(args[0], args[1])
				if err != nil {
					return err
				}
				if !removed {
					fmt.Println("Not bookmarked.")
				}
				return nil
			})
		},
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}
