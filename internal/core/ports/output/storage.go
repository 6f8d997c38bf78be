package ports

import (
	"context"
	"io"
)

// ObjectStore materializes remote data locally.
type ObjectStore interface {
	// Fetch downloads src (a file or a prefix) under the directory dst and
	// returns the local path of what it fetched.
	Fetch(ctx context.Context, src, dst string) (string, error)
}

// ArtifactStore holds the artifacts stages hand to each other. Every
// artifact has exactly one writer.
type ArtifactStore interface {
	URI(runID, stage, slot string) string
	Create(ctx context.Context, uri string) (io.WriteCloser, error)
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}
