package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zarrio/zarrio/api"
	"github.com/zarrio/zarrio/internal/zstore"
)

func consolidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "consolidate <path>",
		Short: "Refresh a store's consolidated metadata index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(configPath)
			if err != nil {
				return err
			}
			opts.Mode = api.ModeReadWriteExisting

			store, err := zstore.Open(args[0], zstore.Directory, opts)
			if err != nil {
				return fmt.Errorf("zarrio: open %s: %w", args[0], err)
			}
			defer func() { _ = store.Close() }()

			if err := store.Consolidate(); err != nil {
				return fmt.Errorf("zarrio: consolidate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "consolidated %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "HCL config file overriding default options")
	return cmd
}
