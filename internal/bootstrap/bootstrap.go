// Package bootstrap wires configuration into the adapters and services shared
// by the server and the CLI.
package bootstrap

import (
	"context"
	"database/sql"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"mlops-pipeline/internal/adapters/secondary/argo"
	"mlops-pipeline/internal/adapters/secondary/postgres"
	"mlops-pipeline/internal/adapters/secondary/sqlite"
	"mlops-pipeline/internal/adapters/secondary/storage"
	"mlops-pipeline/internal/config"
	output "mlops-pipeline/internal/core/ports/output"
	"mlops-pipeline/internal/core/services"
)

// fetchDir holds remote input data downloaded by the split stage.
const fetchDir = ".fetch"

func InitLogger(cfg config.LoggerConfig) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// OpenRegistry connects to the registry database and creates its tables.
func OpenRegistry(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "parse db config")
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.WithHint(errors.Wrap(err, "ping db"), "check the DATABASE_* settings")
	}
	if err := postgres.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	log.WithField("database", cfg.Name).Info("database connection established")
	return pool, nil
}

// OpenRunStore opens the sqlite run store.
func OpenRunStore(cfg config.RunStoreConfig) (*sql.DB, error) {
	db, err := sqlite.Open(cfg.Path)
	if err != nil {
		return nil, err
	}
	log.WithField("path", cfg.Path).Info("run store opened")
	return db, nil
}

// WorkflowSubmitter returns the Argo submitter when Kubernetes is enabled,
// and nil otherwise or when the cluster client cannot be built.
func WorkflowSubmitter(cfg *config.Config) output.WorkflowSubmitter {
	if !cfg.Kubernetes.Enabled {
		log.Info("kubernetes runtime disabled")
		return nil
	}
	client, err := argo.NewWorkflowClient(&cfg.Kubernetes, cfg.Pipeline.StageImage)
	if err != nil {
		log.Warnf("workflow client init failed (continuing with the local runtime only): %v", err)
		return nil
	}
	log.Info("workflow client initialized")
	return client
}

// StageServices builds the pipeline stage services. A nil pool leaves the
// registry unset, which is enough for every stage except registration.
func StageServices(cfg *config.Config, pool *pgxpool.Pool) services.StageServices {
	artifacts := storage.NewArtifactStore(cfg.Pipeline.Root)
	s := services.StageServices{
		Split:    services.NewDataSplitService(storage.NewObjectStore(), artifacts, filepath.Join(cfg.Pipeline.Root, fetchDir)),
		Fit:      services.NewModelFitService(artifacts),
		Evaluate: services.NewEvaluationService(artifacts),
		Approval: services.NewApprovalService(),
	}
	if pool != nil {
		s.Registry = services.NewRegistryService(
			postgres.NewRegisteredModelRepository(pool),
			postgres.NewModelUploadRepository(pool),
		)
	}
	return s
}

// PipelineRuns builds the run service over the given run store.
func PipelineRuns(cfg *config.Config, db *sql.DB, stages services.StageServices, submitter output.WorkflowSubmitter) *services.PipelineRunService {
	return services.NewPipelineRunService(
		sqlite.NewRunRepository(db),
		services.NewComponentRegistry(stages),
		storage.NewArtifactStore(cfg.Pipeline.Root),
		submitter,
		cfg.Pipeline.Root,
	)
}
