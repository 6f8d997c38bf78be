package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"mlops-pipeline/internal/core/domain"
	ports "mlops-pipeline/internal/core/ports/output"
)

var versionSortColumns = map[string]string{
	"created_at": "created_at",
	"name":       "name",
	"accuracy":   "accuracy",
}

type modelVersionRepo struct {
	pool *pgxpool.Pool
}

func NewModelVersionRepository(pool *pgxpool.Pool) ports.ModelVersionRepository {
	return &modelVersionRepo{pool: pool}
}

func insertVersion(ctx context.Context, db execer, version *domain.ModelVersion) error {
	labelsJSON, err := json.Marshal(version.Labels)
	if err != nil {
		return errors.Wrap(err, "marshal labels")
	}

	query := `
		INSERT INTO model_version
			(id, created_at, updated_at, registered_model_id, name, description,
			 state, status, artifact_type, model_framework, container_image, uri,
			 accuracy, pipeline_run_id, labels)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
	`
	_, err = db.Exec(ctx, query,
		version.ID, version.CreatedAt, version.UpdatedAt,
		version.RegisteredModelID, version.Name, version.Description,
		string(version.State), string(version.Status),
		string(version.ArtifactType), version.ModelFramework, version.ContainerImage,
		version.URI, version.Accuracy, version.PipelineRunID, labelsJSON,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return domain.ErrVersionNameConflict
			case "23503":
				return domain.ErrModelNotFound
			}
		}
		return errors.Wrap(err, "create model version")
	}
	return nil
}

func (r *modelVersionRepo) GetByID(ctx context.Context, id string) (*domain.ModelVersion, error) {
	query := `
		SELECT ` + versionColumns + `
		FROM model_version mv
		WHERE mv.id = $1
	`
	v, err := scanVersion(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVersionNotFound
		}
		return nil, errors.Wrap(err, "get model version by id")
	}
	return v, nil
}

func (r *modelVersionRepo) ListByModel(ctx context.Context, modelID string, filter ports.VersionListFilter) ([]*domain.ModelVersion, int, error) {
	if modelID == "" {
		return []*domain.ModelVersion{}, 0, nil
	}

	conditions := []string{"mv.registered_model_id = $1"}
	args := []interface{}{modelID}
	argPos := 2

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("mv.status = $%d", argPos))
		args = append(args, filter.Status)
		argPos++
	}
	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM model_version mv WHERE %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count model versions")
	}

	dir := "DESC"
	if filter.Order == "asc" {
		dir = "ASC"
	}
	orderBy := fmt.Sprintf("mv.%s %s", orderColumn(filter.SortBy, versionSortColumns), dir)

	query := fmt.Sprintf(`
		SELECT %s
		FROM model_version mv
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, versionColumns, whereClause, orderBy, argPos, argPos+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list model versions")
	}
	defer rows.Close()

	var versions []*domain.ModelVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan model version row")
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "iterate model version rows")
	}

	return versions, total, nil
}

const versionColumns = `
	mv.id, mv.created_at, mv.updated_at, mv.registered_model_id,
	mv.name, mv.description, mv.state, mv.status,
	mv.artifact_type, mv.model_framework, mv.container_image, mv.uri,
	mv.accuracy, mv.pipeline_run_id, mv.labels`

// scanVersion scans a ModelVersion from a pgx.Row or pgx.Rows.
func scanVersion(row pgx.Row) (*domain.ModelVersion, error) {
	v := &domain.ModelVersion{}
	var labelsJSON []byte

	err := row.Scan(
		&v.ID, &v.CreatedAt, &v.UpdatedAt, &v.RegisteredModelID,
		&v.Name, &v.Description, &v.State, &v.Status,
		&v.ArtifactType, &v.ModelFramework, &v.ContainerImage, &v.URI,
		&v.Accuracy, &v.PipelineRunID, &labelsJSON,
	)
	if err != nil {
		return nil, err
	}

	if len(labelsJSON) > 0 {
		if err := json.Unmarshal(labelsJSON, &v.Labels); err != nil {
			return nil, errors.Wrap(err, "unmarshal labels")
		}
	}
	return v, nil
}

var _ ports.ModelVersionRepository = (*modelVersionRepo)(nil)
