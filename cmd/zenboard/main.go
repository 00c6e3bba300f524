// Command zenboard is a thin boundary over the elaboration core: it exists
// to exercise pkg/interp, pkg/schematic, and pkg/diag end to end, not to
// implement the full CLI surface (build/bom/info/tag/layout/open/sim) that
// spec.md §1 scopes out of this repository.
package main

import (
	"fmt"
	"os"

	"github.com/architect-io/zenboard/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
