// Package fetch acquires the input raster: local paths pass through
// unchanged, anything else is treated as a go-getter source URL and
// downloaded before decoding.
package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	getter "github.com/hashicorp/go-getter"
)

// Input resolves src to a local file path. A path that exists on disk is
// returned as-is; otherwise src is downloaded into dir (created when
// needed) via go-getter, which handles http(s), git, s3 and friends.
func Input(ctx context.Context, src, dir string, log *slog.Logger) (string, error) {
	if _, err := os.Stat(src); err == nil {
		return src, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create download dir %s: %w", dir, err)
	}
	dst := filepath.Join(dir, filepath.Base(src))

	log.Info("downloading input", "src", src, "dst", dst)
	client := &getter.Client{
		Ctx:  ctx,
		Src:  src,
		Dst:  dst,
		Mode: getter.ClientModeFile,
	}
	if err := client.Get(); err != nil {
		return "", fmt.Errorf("download input %s: %w", src, err)
	}
	return dst, nil
}
