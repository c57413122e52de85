// Command zarrio is a thin CLI over the library packages: it inspects a
// store's tree, forces a consolidated-metadata refresh, and exports one
// store's tree onto another.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "zarrio",
		Short: "Inspect and manage zarrio stores",
	}
	root.AddCommand(inspectCmd())
	root.AddCommand(consolidateCmd())
	root.AddCommand(exportCmd())
	return root
}
