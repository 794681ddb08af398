package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jllopis/campusdesk/pkg/store"
)

func newSeedCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Load YAML fixtures into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := store.Open(ctx, root.cfg.Store.Path)
			if err != nil {
				return startupError("store", err, "")
			}
			defer db.Close()

			n, err := loadFixtures(ctx, db, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d records into %s\n", n, root.cfg.Store.Path)
			return nil
		},
	}
}
