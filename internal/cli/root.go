// Package cli implements the zenboard CLI's thin boundary over the
// elaboration core (pkg/interp, pkg/schematic, pkg/diag). The CLI itself is
// explicitly out of scope for this repository (spec.md §1): this package
// exists only to exercise the core end to end, not to implement the full
// build/bom/info/tag/layout/open/sim surface a real zenboard binary would.
package cli

import (
	"github.com/spf13/cobra"

	_ "github.com/architect-io/zenboard/pkg/zfile/cache/azurerm"
	_ "github.com/architect-io/zenboard/pkg/zfile/cache/gcs"
	_ "github.com/architect-io/zenboard/pkg/zfile/cache/local"
	_ "github.com/architect-io/zenboard/pkg/zfile/cache/s3"
)

var rootCmd = &cobra.Command{
	Use:   "zenboard",
	Short: "Elaborate a board-level source program into a flattened schematic",
	Long: `zenboard loads a .zen/.star source file, evaluates it against the
embedded interpreter host, and flattens the resulting instance tree into a
schematic: components, pins, nets, and reference designators.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().Bool("offline", false, "disable remote fetches; fail instead of reaching the network")
}
