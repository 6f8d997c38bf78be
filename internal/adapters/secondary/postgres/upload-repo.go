package postgres

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mlops-pipeline/internal/core/domain"
	ports "mlops-pipeline/internal/core/ports/output"
)

type uploadRepo struct {
	pool *pgxpool.Pool
}

func NewModelUploadRepository(pool *pgxpool.Pool) ports.ModelUploadRepository {
	return &uploadRepo{pool: pool}
}

func (r *uploadRepo) CreateWithVersion(ctx context.Context, model *domain.RegisteredModel, version *domain.ModelVersion) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		if err := insertModel(ctx, tx, model); err != nil {
			return err
		}
		version.RegisteredModelID = model.ID
		version.Name = versionName(0)
		if err := insertVersion(ctx, tx, version); err != nil {
			return errors.Wrap(err, "create model version")
		}
		return nil
	})
}

func (r *uploadRepo) AppendVersion(ctx context.Context, modelID string, version *domain.ModelVersion) (int, error) {
	var count int
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var id string
		err := tx.QueryRow(ctx, `SELECT id FROM registered_model WHERE id = $1 FOR UPDATE`, modelID).Scan(&id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrModelNotFound
			}
			return errors.Wrap(err, "lock registered model")
		}

		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM model_version WHERE registered_model_id = $1`, modelID,
		).Scan(&count); err != nil {
			return errors.Wrap(err, "count model versions")
		}

		version.RegisteredModelID = modelID
		version.Name = versionName(count)
		if err := insertVersion(ctx, tx, version); err != nil {
			return errors.Wrap(err, "create model version")
		}
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (r *uploadRepo) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin upload transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit upload transaction")
	}
	return nil
}

// versionName names the version that follows existing versions.
func versionName(existing int) string {
	return fmt.Sprintf("v%d", existing+1)
}

var _ ports.ModelUploadRepository = (*uploadRepo)(nil)
