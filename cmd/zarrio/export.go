package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zarrio/zarrio/api"
	"github.com/zarrio/zarrio/internal/export"
	"github.com/zarrio/zarrio/internal/linkref"
	"github.com/zarrio/zarrio/internal/zio"
	"github.com/zarrio/zarrio/internal/zstore"
)

func exportCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "export <source> <destination>",
		Short: "Copy a store's tree onto a fresh destination, rewriting links",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(configPath)
			if err != nil {
				return err
			}
			readOpts := opts
			readOpts.Mode = api.ModeRead

			srcStore, err := zstore.Open(args[0], zstore.Directory, readOpts)
			if err != nil {
				return fmt.Errorf("zarrio: open source %s: %w", args[0], err)
			}
			defer func() { _ = srcStore.Close() }()

			dstStore, err := zstore.Open(args[1], zstore.Directory, opts)
			if err != nil {
				return fmt.Errorf("zarrio: open destination %s: %w", args[1], err)
			}

			srcEngine := zio.NewEngine(srcStore, linkref.NewEngine(256))
			defer func() { _ = srcEngine.Close() }()

			src := &export.StoreSource{Engine: srcEngine, Opts: readOpts}
			if err := export.Export(src, dstStore, opts); err != nil {
				return fmt.Errorf("zarrio: export: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %s -> %s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "HCL config file overriding default options")
	return cmd
}
