package domain

import "context"

// Archiver packs a directory tree into a single compressed tarball.
type Archiver interface {
	Archive(ctx context.Context, sourceDir, destPath string) error
}
