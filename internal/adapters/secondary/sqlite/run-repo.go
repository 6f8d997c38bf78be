package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"

	"mlops-pipeline/internal/core/domain"
	output "mlops-pipeline/internal/core/ports/output"
)

const schema = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id TEXT PRIMARY KEY,
	job_id TEXT NOT NULL,
	pipeline_name TEXT NOT NULL,
	display_name TEXT NOT NULL,
	service_account TEXT NOT NULL DEFAULT '',
	runtime TEXT NOT NULL DEFAULT 'local',
	status TEXT NOT NULL,
	outcome TEXT NOT NULL DEFAULT '',
	parameters TEXT NOT NULL DEFAULT '{}',
	labels TEXT NOT NULL DEFAULT '{}',
	enable_caching INTEGER NOT NULL DEFAULT 0,
	failed_stage TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS stage_runs (
	run_id TEXT NOT NULL REFERENCES pipeline_runs(id),
	stage TEXT NOT NULL,
	status TEXT NOT NULL,
	started_at DATETIME,
	finished_at DATETIME,
	error TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, stage)
);

CREATE TABLE IF NOT EXISTS run_metrics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL REFERENCES pipeline_runs(id),
	stage TEXT NOT NULL,
	name TEXT NOT NULL,
	value REAL NOT NULL
);
`

// Open opens (creating if needed) the run store at path. ":memory:" gives a
// private in-memory store.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "open run store")
	}
	// One connection: sqlite has a single writer, and every ":memory:"
	// connection would otherwise be a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create run store schema")
	}
	return db, nil
}

type runRepo struct {
	db *sql.DB
}

func NewRunRepository(db *sql.DB) output.RunRepository {
	return &runRepo{db: db}
}

func (r *runRepo) Create(ctx context.Context, run *domain.PipelineRun) error {
	params, err := json.Marshal(run.Parameters)
	if err != nil {
		return errors.Wrap(err, "marshal parameters")
	}
	labels, err := json.Marshal(run.Labels)
	if err != nil {
		return errors.Wrap(err, "marshal labels")
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO pipeline_runs
			(id, job_id, pipeline_name, display_name, service_account, runtime, status, outcome,
			 parameters, labels, enable_caching, failed_stage, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.JobID, run.PipelineName, run.DisplayName, run.ServiceAccount, string(run.Runtime),
		string(run.Status), string(run.Outcome), string(params), string(labels),
		run.EnableCaching, run.FailedStage, run.Error, run.CreatedAt.UTC(), run.UpdatedAt.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "create pipeline run")
	}
	return nil
}

func (r *runRepo) Get(ctx context.Context, id string) (*domain.PipelineRun, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM pipeline_runs WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, errors.Wrap(err, "get pipeline run")
	}

	if run.Stages, err = r.stages(ctx, id); err != nil {
		return nil, err
	}
	if run.Metrics, err = r.metrics(ctx, id); err != nil {
		return nil, err
	}
	return run, nil
}

func (r *runRepo) List(ctx context.Context, filter output.RunListFilter) ([]*domain.PipelineRun, int, error) {
	conditions := []string{}
	args := []interface{}{}
	if filter.PipelineName != "" {
		conditions = append(conditions, "pipeline_name = ?")
		args = append(args, filter.PipelineName)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	whereClause := "1=1"
	if len(conditions) > 0 {
		whereClause = strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM pipeline_runs WHERE "+whereClause, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, "count pipeline runs")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query := fmt.Sprintf(`SELECT %s FROM pipeline_runs WHERE %s ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, runColumns, whereClause)
	rows, err := r.db.QueryContext(ctx, query, append(args, limit, filter.Offset)...)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list pipeline runs")
	}
	defer rows.Close()

	var runs []*domain.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, errors.Wrap(err, "scan pipeline run row")
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, "iterate pipeline run rows")
	}
	return runs, total, nil
}

func (r *runRepo) UpdateStatus(ctx context.Context, run *domain.PipelineRun) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE pipeline_runs
		SET status = ?, outcome = ?, failed_stage = ?, error = ?, updated_at = ?
		WHERE id = ?`,
		string(run.Status), string(run.Outcome), run.FailedStage, run.Error, run.UpdatedAt.UTC(), run.ID,
	)
	if err != nil {
		return errors.Wrap(err, "update pipeline run")
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

func (r *runRepo) SaveStage(ctx context.Context, runID string, stage domain.StageRun) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO stage_runs (run_id, stage, status, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, stage) DO UPDATE SET
			status = excluded.status,
			started_at = COALESCE(excluded.started_at, stage_runs.started_at),
			finished_at = excluded.finished_at,
			error = excluded.error`,
		runID, stage.Stage, string(stage.Status), nullTime(stage.StartedAt), nullTime(stage.FinishedAt), stage.Error,
	)
	if err != nil {
		return errors.Wrap(err, "save stage run")
	}
	return nil
}

func (r *runRepo) AddMetric(ctx context.Context, runID string, metric domain.Metric) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO run_metrics (run_id, stage, name, value) VALUES (?, ?, ?, ?)`,
		runID, metric.Stage, metric.Name, metric.Value,
	)
	if err != nil {
		return errors.Wrap(err, "add run metric")
	}
	return nil
}

func (r *runRepo) stages(ctx context.Context, runID string) ([]domain.StageRun, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT stage, status, started_at, finished_at, error FROM stage_runs WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "list stage runs")
	}
	defer rows.Close()

	var stages []domain.StageRun
	for rows.Next() {
		var (
			s                 domain.StageRun
			started, finished sql.NullTime
		)
		if err := rows.Scan(&s.Stage, &s.Status, &started, &finished, &s.Error); err != nil {
			return nil, errors.Wrap(err, "scan stage run row")
		}
		if started.Valid {
			s.StartedAt = &started.Time
		}
		if finished.Valid {
			s.FinishedAt = &finished.Time
		}
		stages = append(stages, s)
	}
	return stages, errors.Wrap(rows.Err(), "iterate stage run rows")
}

func (r *runRepo) metrics(ctx context.Context, runID string) ([]domain.Metric, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT stage, name, value FROM run_metrics WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, errors.Wrap(err, "list run metrics")
	}
	defer rows.Close()

	var metrics []domain.Metric
	for rows.Next() {
		var m domain.Metric
		if err := rows.Scan(&m.Stage, &m.Name, &m.Value); err != nil {
			return nil, errors.Wrap(err, "scan run metric row")
		}
		metrics = append(metrics, m)
	}
	return metrics, errors.Wrap(rows.Err(), "iterate run metric rows")
}

const runColumns = `id, job_id, pipeline_name, display_name, service_account, runtime, status, outcome,
	parameters, labels, enable_caching, failed_stage, error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*domain.PipelineRun, error) {
	run := &domain.PipelineRun{}
	var params, labels string

	err := row.Scan(
		&run.ID, &run.JobID, &run.PipelineName, &run.DisplayName, &run.ServiceAccount,
		&run.Runtime, &run.Status, &run.Outcome, &params, &labels, &run.EnableCaching,
		&run.FailedStage, &run.Error, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(params), &run.Parameters); err != nil {
		return nil, errors.Wrap(err, "unmarshal parameters")
	}
	if err := json.Unmarshal([]byte(labels), &run.Labels); err != nil {
		return nil, errors.Wrap(err, "unmarshal labels")
	}
	return run, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

var _ output.RunRepository = (*runRepo)(nil)
