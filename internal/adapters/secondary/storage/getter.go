package storage

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-getter"
	log "github.com/sirupsen/logrus"

	"mlops-pipeline/internal/core/domain"
	output "mlops-pipeline/internal/core/ports/output"
)

type getterStore struct {
	getters map[string]getter.Getter
}

// NewObjectStore fetches gs://, s3://, http(s):// and local sources with
// go-getter.
func NewObjectStore() output.ObjectStore {
	return &getterStore{getters: getter.Getters}
}

func (s *getterStore) Fetch(ctx context.Context, src, dst string) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", errors.Wrap(domain.ErrDataNotFound, "empty source uri")
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", errors.Wrap(err, "create fetch directory")
	}

	pwd, err := os.Getwd()
	if err != nil {
		pwd = "."
	}
	detected, err := getter.Detect(normalizeSource(src), pwd, getter.Detectors)
	if err != nil {
		return "", errors.Wrapf(domain.ErrDataNotFound, "detect source %q: %v", src, err)
	}

	mode := getter.ClientModeDir
	local := filepath.Join(dst, "source")
	if isFileSource(src) {
		mode = getter.ClientModeFile
		local = filepath.Join(dst, path.Base(strings.TrimRight(src, "/")))
	}

	client := &getter.Client{
		Ctx:     ctx,
		Src:     detected,
		Dst:     local,
		Mode:    mode,
		Getters: s.getters,
	}

	log.WithFields(log.Fields{"source": src, "detected": detected, "destination": local}).Debug("fetching source data")
	if err := client.Get(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.Wrapf(domain.ErrDataNotFound, "fetch %q: %v", src, err)
	}
	return local, nil
}

// normalizeSource rewrites bucket URIs into the forced-getter form go-getter
// understands.
func normalizeSource(src string) string {
	switch {
	case strings.HasPrefix(src, "gs://"):
		return "gcs::https://www.googleapis.com/storage/v1/" + strings.TrimPrefix(src, "gs://")
	case strings.HasPrefix(src, "s3://"):
		return "s3::https://s3.amazonaws.com/" + strings.TrimPrefix(src, "s3://")
	default:
		return src
	}
}

func isFileSource(src string) bool {
	if strings.HasSuffix(src, "/") {
		return false
	}
	if info, err := os.Stat(src); err == nil {
		return !info.IsDir()
	}
	return path.Ext(src) != ""
}

var _ output.ObjectStore = (*getterStore)(nil)
