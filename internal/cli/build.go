package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/architect-io/zenboard/pkg/diag"
	"github.com/architect-io/zenboard/pkg/interp"
	"github.com/architect-io/zenboard/pkg/loadspec"
	"github.com/architect-io/zenboard/pkg/schematic"
	"github.com/architect-io/zenboard/pkg/zfile"
	"github.com/architect-io/zenboard/pkg/zfile/cache"
)

var (
	buildOffline bool
	buildCache   string
	buildDeny    []string
)

var buildCmd = &cobra.Command{
	Use:   "build <file>",
	Short: "Elaborate a .zen/.star source file and print its flattened schematic",
	Args:  cobra.ExactArgs(1),
	RunE:  runBuild,
}

func init() {
	buildCmd.Flags().BoolVar(&buildOffline, "offline", false, "disable remote fetches")
	buildCmd.Flags().StringVar(&buildCache, "cache-dir", ".zenboard-cache", "content-addressed fetch cache directory")
	buildCmd.Flags().StringSliceVar(&buildDeny, "deny", nil, `diagnostic categories to promote to Error (e.g. "warnings")`)
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	var provider zfile.Provider
	if buildOffline {
		provider = zfile.NewOfflineProvider()
	} else {
		store, err := cache.New("local", map[string]string{"path": buildCache})
		if err != nil {
			return fmt.Errorf("build: %w", err)
		}
		provider = zfile.NewDefaultProvider(buildCache, store)
	}

	resolver := loadspec.NewResolver(provider)
	if err := resolver.SetWorkspaceRoot(filepath.Dir(path)); err != nil {
		return fmt.Errorf("build: %w", err)
	}

	host := interp.NewHost(context.Background(), provider, resolver)
	root, err := host.EvalRoot(path)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	sch, err := schematic.Flatten(root)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	diag.BuildPipeline(buildDeny).Run(host.Diags)
	diag.Render(os.Stdout, host.Diags.Items)

	fmt.Fprintf(os.Stdout, "%d instances, %d nets\n", len(sch.Instances), len(sch.Nets))
	if host.Diags.HasErrors() {
		return fmt.Errorf("build: elaboration failed")
	}
	return nil
}
