package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/zarrio/zarrio/api"
	"github.com/zarrio/zarrio/internal/linkref"
	"github.com/zarrio/zarrio/internal/zio"
	"github.com/zarrio/zarrio/internal/zstore"
)

func inspectCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "inspect <path>",
		Short: "Print a store's group/dataset tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := loadOptions(configPath)
			if err != nil {
				return err
			}
			opts.Mode = api.ModeRead

			store, err := zstore.Open(args[0], zstore.Directory, opts)
			if err != nil {
				return fmt.Errorf("zarrio: open %s: %w", args[0], err)
			}
			defer func() { _ = store.Close() }()

			engine := zio.NewEngine(store, linkref.NewEngine(256))
			defer func() { _ = engine.Close() }()
			root, err := engine.Read("/", opts)
			if err != nil {
				return fmt.Errorf("zarrio: read tree: %w", err)
			}

			printGroup(cmd, "/", root, 0)
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "HCL config file overriding default options")
	return cmd
}

func printGroup(cmd *cobra.Command, path string, g *api.GroupBuilder, depth int) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s%s/ (group)\n", indent(depth), path)
	for pair := g.Datasets.Oldest(); pair != nil; pair = pair.Next() {
		printDataset(cmd, pair.Key, pair.Value, depth+1)
	}
	for pair := g.Links.Oldest(); pair != nil; pair = pair.Next() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s%s -> %s#%s (link)\n", indent(depth+1), pair.Key, pair.Value.Target.Source, pair.Value.Target.Path)
	}
	for pair := g.Groups.Oldest(); pair != nil; pair = pair.Next() {
		printGroup(cmd, pair.Key, pair.Value, depth+1)
	}
}

func printDataset(cmd *cobra.Command, name string, d *api.DatasetBuilder, depth int) {
	size := humanize.Comma(int64(datasetElementCount(d.Value)))
	fmt.Fprintf(cmd.OutOrStdout(), "%s%s (dataset, %s elements)\n", indent(depth), name, size)
}

func datasetElementCount(v api.Value) int {
	switch val := v.(type) {
	case *api.ArrayValue:
		n := 1
		for _, s := range val.Shape {
			n *= s
		}
		return n
	case *api.ReferenceValue:
		return len(val.Refs)
	default:
		return 1
	}
}

func indent(depth int) string {
	out := ""
	for i := 0; i < depth; i++ {
		out += "  "
	}
	return out
}
