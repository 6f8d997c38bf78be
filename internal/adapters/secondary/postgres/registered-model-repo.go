package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mlops-pipeline/internal/core/domain"
	ports "mlops-pipeline/internal/core/ports/output"
)

var modelSortColumns = map[string]string{
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"display_name": "display_name",
}

type registeredModelRepo struct {
	pool *pgxpool.Pool
}

func NewRegisteredModelRepository(pool *pgxpool.Pool) ports.RegisteredModelRepository {
	return &registeredModelRepo{pool: pool}
}

func insertModel(ctx context.Context, db execer, model *domain.RegisteredModel) error {
	labelsJSON, err := json.Marshal(model.Labels)
	if err != nil {
		return errors.Wrap(err, "marshal labels")
	}

	query := `
		INSERT INTO registered_model
			(id, created_at, updated_at, project, region, display_name,
			 description, state, labels)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`
	_, err = db.Exec(ctx, query,
		model.ID, model.CreatedAt, model.UpdatedAt,
		model.Project, model.Region, model.DisplayName,
		model.Description, string(model.State), labelsJSON,
	)
	if err != nil {
		return errors.Wrap(err, "create registered model")
	}
	return nil
}

func (r *registeredModelRepo) GetByID(ctx context.Context, id string) (*domain.RegisteredModel, error) {
	query := `
		SELECT ` + modelColumns + `
		FROM registered_model rm
		WHERE rm.id = $1
	`
	model, err := scanModel(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrModelNotFound
		}
		return nil, errors.Wrap(err, "get registered model by id")
	}

	if err := r.loadLatestVersion(ctx, model); err != nil {
		return nil, err
	}
	return model, nil
}

func (r *registeredModelRepo) List(ctx context.Context, filter ports.ListFilter) ([]*domain.RegisteredModel, int, error) {
	conditions := []string{}
	args := []interface{}{}
	argPos := 1

	if filter.Project != "" {
		conditions = append(conditions, fmt.Sprintf("rm.project = $%d", argPos))
		args = append(args, filter.Project)
		argPos++
	}
	if filter.Region != "" {
		conditions = append(conditions, fmt.Sprintf("rm.region = $%d", argPos))
		args = append(args, filter.Region)
		argPos++
	}
	if filter.DisplayName != "" {
		conditions = append(conditions, fmt.Sprintf("rm.display_name = $%d", argPos))
		args = append(args, filter.DisplayName)
		argPos++
	}
	if filter.State != "" {
		conditions = append(conditions, fmt.Sprintf("rm.state = $%d", argPos))
		args = append(args, filter.State)
		argPos++
	}

	whereClause := "1=1"
	if len(conditions) > 0 {
		whereClause = strings.Join(conditions, " AND ")
	}

	// Count
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM registered_model rm WHERE %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count registered models")
	}

	// Order
	dir := "DESC"
	if filter.Order == "asc" {
		dir = "ASC"
	}
	orderBy := fmt.Sprintf("rm.%s %s", orderColumn(filter.SortBy, modelSortColumns), dir)

	query := fmt.Sprintf(`
		SELECT %s
		FROM registered_model rm
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d
	`, modelColumns, whereClause, orderBy, argPos, argPos+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list registered models")
	}
	defer rows.Close()

	var models []*domain.RegisteredModel
	for rows.Next() {
		m, err := scanModel(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan registered model row")
		}
		models = append(models, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "iterate registered model rows")
	}

	return models, total, nil
}

const modelColumns = `
	rm.id, rm.created_at, rm.updated_at, rm.project, rm.region,
	rm.display_name, rm.description, rm.state, rm.labels,
	(SELECT COUNT(*) FROM model_version mv WHERE mv.registered_model_id = rm.id) AS version_count`

// scanModel scans a RegisteredModel from a pgx.Row or pgx.Rows.
func scanModel(row pgx.Row) (*domain.RegisteredModel, error) {
	m := &domain.RegisteredModel{}
	var labelsJSON []byte

	err := row.Scan(
		&m.ID, &m.CreatedAt, &m.UpdatedAt, &m.Project, &m.Region,
		&m.DisplayName, &m.Description, &m.State, &labelsJSON,
		&m.VersionCount,
	)
	if err != nil {
		return nil, err
	}

	if len(labelsJSON) > 0 {
		if err := json.Unmarshal(labelsJSON, &m.Labels); err != nil {
			return nil, errors.Wrap(err, "unmarshal labels")
		}
	}
	return m, nil
}

// loadLatestVersion attaches the most recently uploaded version.
func (r *registeredModelRepo) loadLatestVersion(ctx context.Context, model *domain.RegisteredModel) error {
	query := `
		SELECT ` + versionColumns + `
		FROM model_version mv
		WHERE mv.registered_model_id = $1
		ORDER BY mv.created_at DESC
		LIMIT 1
	`
	latest, err := scanVersion(r.pool.QueryRow(ctx, query, model.ID))
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return errors.Wrap(err, "load latest version")
	}
	if err == nil {
		model.LatestVersion = latest
	}
	return nil
}

var _ ports.RegisteredModelRepository = (*registeredModelRepo)(nil)
