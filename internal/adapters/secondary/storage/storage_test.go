package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlops-pipeline/internal/core/domain"
)

func TestNormalizeSource(t *testing.T) {
	assert.Equal(t, "gcs::https://www.googleapis.com/storage/v1/bucket/raw/diabetes.csv",
		normalizeSource("gs://bucket/raw/diabetes.csv"))
	assert.Equal(t, "s3::https://s3.amazonaws.com/bucket/dev-data/",
		normalizeSource("s3://bucket/dev-data/"))
	assert.Equal(t, "https://example.com/d.csv", normalizeSource("https://example.com/d.csv"))
}

func TestFetch_LocalFile(t *testing.T) {
	src := filepath.Join(t.TempDir(), "diabetes.csv")
	require.NoError(t, os.WriteFile(src, []byte("a,b\n1,2\n"), 0o644))

	local, err := NewObjectStore().Fetch(context.Background(), src, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "diabetes.csv", filepath.Base(local))

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(data))
}

func TestFetch_LocalDirectory(t *testing.T) {
	srcDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcDir, "part-1.csv"), []byte("a\n1\n"), 0o644))

	local, err := NewObjectStore().Fetch(context.Background(), srcDir+"/", t.TempDir())
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(local, "*.csv"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestFetch_Missing(t *testing.T) {
	_, err := NewObjectStore().Fetch(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), t.TempDir())
	assert.True(t, errors.Is(err, domain.ErrDataNotFound))

	_, err = NewObjectStore().Fetch(context.Background(), "", t.TempDir())
	assert.True(t, errors.Is(err, domain.ErrDataNotFound))
}

func TestArtifactStore(t *testing.T) {
	root := t.TempDir()
	store := NewArtifactStore(root)
	ctx := context.Background()

	uri := store.URI("run-1", "preprocess", "train")
	assert.Equal(t, filepath.Join(root, "run-1", "preprocess", "train"), uri)

	w, err := store.Create(ctx, uri)
	require.NoError(t, err)
	_, err = io.WriteString(w, "payload")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = store.Create(ctx, uri)
	assert.Error(t, err, "artifacts are written once")

	r, err := store.Open(ctx, uri)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = store.Open(ctx, store.URI("run-1", "train", "model"))
	assert.True(t, errors.Is(err, domain.ErrArtifactLoad))
}
