package storage

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"

	"mlops-pipeline/internal/core/domain"
	output "mlops-pipeline/internal/core/ports/output"
)

type localArtifacts struct {
	root string
}

// NewArtifactStore keeps artifacts under root, one file per
// run/stage/slot.
func NewArtifactStore(root string) output.ArtifactStore {
	return &localArtifacts{root: root}
}

func (a *localArtifacts) URI(runID, stage, slot string) string {
	return filepath.Join(a.root, runID, stage, slot)
}

func (a *localArtifacts) Create(_ context.Context, uri string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(uri), 0o755); err != nil {
		return nil, errors.Wrap(err, "create artifact directory")
	}
	f, err := os.OpenFile(uri, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, errors.Wrapf(domain.ErrInvalidSpec, "artifact %s already written", uri)
		}
		return nil, errors.Wrap(err, "create artifact")
	}
	return f, nil
}

func (a *localArtifacts) Open(_ context.Context, uri string) (io.ReadCloser, error) {
	f, err := os.Open(uri)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrArtifactLoad, "open %s: %v", uri, err)
	}
	return f, nil
}

var _ output.ArtifactStore = (*localArtifacts)(nil)
