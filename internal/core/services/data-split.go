package services

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	log "github.com/sirupsen/logrus"

	"mlops-pipeline/internal/core/domain"
	ports "mlops-pipeline/internal/core/ports/output"
	"mlops-pipeline/internal/tabular"
)

// DataSplitService loads the raw data and writes the train and test
// partitions.
type DataSplitService struct {
	objects   ports.ObjectStore
	artifacts ports.ArtifactStore
	workDir   string
}

func NewDataSplitService(objects ports.ObjectStore, artifacts ports.ArtifactStore, workDir string) *DataSplitService {
	return &DataSplitService{objects: objects, artifacts: artifacts, workDir: workDir}
}

func (s *DataSplitService) Split(ctx context.Context, cfg domain.SplitConfig, trainURI, testURI string) (*domain.DatasetArtifact, *domain.DatasetArtifact, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	raw, err := s.load(ctx, cfg.SourceURI)
	if err != nil {
		return nil, nil, err
	}
	if missing := raw.MissingColumns(domain.RequiredColumns()); len(missing) > 0 {
		return nil, nil, errors.Wrapf(domain.ErrMissingColumn, "%s", strings.Join(missing, ", "))
	}

	train, test := raw.Partition(cfg.SplitFraction, cfg.Seed)

	trainArtifact, err := writeDataset(ctx, s.artifacts, "train", trainURI, train)
	if err != nil {
		return nil, nil, err
	}
	testArtifact, err := writeDataset(ctx, s.artifacts, "test", testURI, test)
	if err != nil {
		return nil, nil, err
	}

	log.WithFields(log.Fields{
		"source":     cfg.SourceURI,
		"rows":       raw.Len(),
		"train_rows": train.Len(),
		"test_rows":  test.Len(),
		"seed":       cfg.Seed,
	}).Info("data split written")
	return trainArtifact, testArtifact, nil
}

// load fetches the source and reads it. A directory source is every *.csv
// file in it, concatenated in name order.
func (s *DataSplitService) load(ctx context.Context, source string) (*domain.Dataset, error) {
	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create work directory")
	}
	tmp, err := os.MkdirTemp(s.workDir, "split-*")
	if err != nil {
		return nil, errors.Wrap(err, "create fetch directory")
	}
	defer os.RemoveAll(tmp)

	local, err := s.objects.Fetch(ctx, source, tmp)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(local)
	if err != nil {
		return nil, errors.Wrapf(domain.ErrDataNotFound, "%s: %v", source, err)
	}
	files := []string{local}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(local, "*.csv"))
		if err != nil {
			return nil, errors.Wrap(err, "list source files")
		}
		if len(files) == 0 {
			return nil, errors.Wrapf(domain.ErrDataNotFound, "no csv files under %s", source)
		}
		sort.Strings(files)
	}

	var ds *domain.Dataset
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			return nil, errors.Wrapf(domain.ErrDataNotFound, "%s: %v", name, err)
		}
		if ds == nil {
			ds, err = tabular.Read(f)
		} else {
			err = tabular.Append(ds, f)
		}
		f.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", filepath.Base(name))
		}
	}
	return ds, nil
}

func writeDataset(ctx context.Context, artifacts ports.ArtifactStore, name, uri string, ds *domain.Dataset) (*domain.DatasetArtifact, error) {
	w, err := artifacts.Create(ctx, uri)
	if err != nil {
		return nil, err
	}
	if err := tabular.Write(w, ds); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrapf(err, "close %s", uri)
	}
	return &domain.DatasetArtifact{Name: name, URI: uri, Columns: ds.Columns, Rows: ds.Len()}, nil
}

func readDataset(ctx context.Context, artifacts ports.ArtifactStore, uri string) (*domain.Dataset, error) {
	r, err := artifacts.Open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return tabular.Read(r)
}
