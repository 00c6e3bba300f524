// Package ocifetch pulls OCI artifacts (module packages distributed as
// container images, SPEC_FULL.md §3's supplemented distribution mechanism)
// onto local disk, adapted from this project's original OCI client down to
// google/go-containerregistry but swapping the archive layer for
// moby/go-archive instead of hand-rolled archive/tar plus compress/gzip.
package ocifetch

import (
	"context"
	"fmt"
	"os"

	archive "github.com/moby/go-archive"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
)

// Client pulls OCI artifacts using the default keychain (docker config,
// environment credential helpers), mirroring how this project's registry
// client resolves auth for pushes and pulls alike.
type Client struct {
	auth authn.Keychain
}

func NewClient() *Client {
	return &Client{auth: authn.DefaultKeychain}
}

// Pull fetches reference (e.g. "ghcr.io/acme/sensors:v1") and extracts every
// layer into destDir, in layer order, so later layers can overlay earlier
// ones exactly like a container image filesystem would.
func (c *Client) Pull(ctx context.Context, reference string, destDir string) error {
	ref, err := name.ParseReference(reference)
	if err != nil {
		return fmt.Errorf("ocifetch: invalid reference %q: %w", reference, err)
	}

	img, err := remote.Image(ref, remote.WithContext(ctx), remote.WithAuthFromKeychain(c.auth))
	if err != nil {
		return fmt.Errorf("ocifetch: failed to fetch %s: %w", reference, err)
	}

	layers, err := img.Layers()
	if err != nil {
		return fmt.Errorf("ocifetch: failed to read layers for %s: %w", reference, err)
	}

	if err := os.MkdirAll(destDir, 0755); err != nil {
		return fmt.Errorf("ocifetch: failed to create %s: %w", destDir, err)
	}

	for i, layer := range layers {
		if err := extractLayer(layer, destDir); err != nil {
			return fmt.Errorf("ocifetch: failed to extract layer %d/%d of %s: %w", i+1, len(layers), reference, err)
		}
	}

	return nil
}

func extractLayer(layer v1.Layer, destDir string) error {
	rc, err := layer.Uncompressed()
	if err != nil {
		return err
	}
	defer rc.Close()

	return archive.Untar(rc, destDir, &archive.TarOptions{NoLchown: true})
}
