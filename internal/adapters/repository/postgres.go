package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/fraudwatch/internal/domain/model"
	"github.com/okian/fraudwatch/pkg/logger"
	"github.com/okian/fraudwatch/pkg/metrics"
)

// DB is the subset of *pgxpool.Pool the Postgres store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	createRunsTableQuery = `CREATE TABLE IF NOT EXISTS fraud_runs (
	id               TEXT PRIMARY KEY,
	filename         TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	stage            TEXT NOT NULL,
	columns          JSONB NOT NULL,
	rows             JSONB NOT NULL,
	predictions      JSONB NOT NULL,
	dropped          JSONB NOT NULL,
	alerts           JSONB NOT NULL,
	row_count        INTEGER NOT NULL,
	fraud_count      INTEGER NOT NULL,
	alerts_delivered INTEGER NOT NULL,
	alerts_failed    INTEGER NOT NULL
)`

	upsertRunQuery = `INSERT INTO fraud_runs
	(id, filename, created_at, stage, columns, rows, predictions, dropped, alerts,
	 row_count, fraud_count, alerts_delivered, alerts_failed)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (id) DO UPDATE SET
	stage = EXCLUDED.stage,
	predictions = EXCLUDED.predictions,
	alerts = EXCLUDED.alerts,
	fraud_count = EXCLUDED.fraud_count,
	alerts_delivered = EXCLUDED.alerts_delivered,
	alerts_failed = EXCLUDED.alerts_failed`

	pruneRunsQuery = `DELETE FROM fraud_runs WHERE id NOT IN
	(SELECT id FROM fraud_runs ORDER BY created_at DESC LIMIT $1)`

	getRunQuery = `SELECT id, filename, created_at, stage, columns, rows, predictions, dropped, alerts
FROM fraud_runs WHERE id = $1`

	listRunsQuery = `SELECT id, filename, created_at, stage, row_count, fraud_count, alerts_delivered, alerts_failed
FROM fraud_runs ORDER BY created_at DESC LIMIT $1`

	countRunsQuery = `SELECT count(*) FROM fraud_runs`
)

// PostgresStore persists runs in a fraud_runs table.
type PostgresStore struct {
	db      DB
	history int
	logger  logger.Logger
}

// Connect opens a pgx pool for dsn and verifies it.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewPostgresStore wraps db. history > 0 prunes all but the newest runs on save.
func NewPostgresStore(db DB, history int, log logger.Logger) *PostgresStore {
	if log == nil {
		log = logger.Get().Named("run-store")
	}
	return &PostgresStore{db: db, history: history, logger: log}
}

// Migrate creates the runs table.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, createRunsTableQuery); err != nil {
		return fmt.Errorf("repository.Migrate: %w", err)
	}
	return nil
}

// Save implements Store.
func (s *PostgresStore) Save(ctx context.Context, r *model.Run) error {
	const op = "repository.Save"
	start := time.Now()
	defer func() { metrics.RecordRunStoreLatency("save", float64(time.Since(start).Milliseconds())) }()

	var (
		cols  []string
		rows  [][]string
		preds []int
	)
	if r.Labeled != nil {
		cols, rows, preds = r.Labeled.Table.Columns, r.Labeled.Table.Rows, r.Labeled.Predictions
	}
	args, err := marshalAll(cols, rows, preds, r.Dropped, r.Alerts)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	sum := r.Summary()

	if _, err := s.db.Exec(ctx, upsertRunQuery,
		r.ID, r.Filename, r.CreatedAt, string(r.Stage),
		args[0], args[1], args[2], args[3], args[4],
		sum.RowCount, sum.FraudCount, sum.Delivered, sum.Failed,
	); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if s.history > 0 {
		tag, err := s.db.Exec(ctx, pruneRunsQuery, s.history)
		if err != nil {
			return fmt.Errorf("%s: prune: %w", op, err)
		}
		if n := tag.RowsAffected(); n > 0 {
			s.logger.Debug(ctx, "pruned old runs", logger.Any("count", n))
		}
	}
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (*model.Run, error) {
	const op = "repository.Get"
	start := time.Now()
	defer func() { metrics.RecordRunStoreLatency("get", float64(time.Since(start).Milliseconds())) }()

	var (
		r                                   model.Run
		stage                               string
		cols, rows, preds, dropped, reports []byte
	)
	err := s.db.QueryRow(ctx, getRunQuery, id).Scan(
		&r.ID, &r.Filename, &r.CreatedAt, &stage,
		&cols, &rows, &preds, &dropped, &reports,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	r.Stage = model.Stage(stage)

	t := &model.Table{}
	var predictions []int
	for _, p := range []struct {
		raw []byte
		dst any
	}{
		{cols, &t.Columns}, {rows, &t.Rows}, {preds, &predictions},
		{dropped, &r.Dropped}, {reports, &r.Alerts},
	} {
		if err := json.Unmarshal(p.raw, p.dst); err != nil {
			return nil, fmt.Errorf("%s: decode: %w", op, err)
		}
	}
	r.Labeled = &model.Labeled{Table: t, Predictions: predictions}
	return &r, nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, limit int) ([]model.RunSummary, error) {
	const op = "repository.List"
	if limit < 1 {
		return nil, ErrInvalidLimit
	}
	start := time.Now()
	defer func() { metrics.RecordRunStoreLatency("list", float64(time.Since(start).Milliseconds())) }()

	rows, err := s.db.Query(ctx, listRunsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []model.RunSummary
	for rows.Next() {
		var (
			sum   model.RunSummary
			stage string
		)
		if err := rows.Scan(&sum.ID, &sum.Filename, &sum.CreatedAt, &stage,
			&sum.RowCount, &sum.FraudCount, &sum.Delivered, &sum.Failed); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		sum.Stage = model.Stage(stage)
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

// Count implements Store. Errors count as zero.
func (s *PostgresStore) Count(ctx context.Context) int {
	var n int
	if err := s.db.QueryRow(ctx, countRunsQuery).Scan(&n); err != nil {
		s.logger.Warn(ctx, "count runs failed", logger.Error(err))
		return 0
	}
	return n
}

func marshalAll(values ...any) ([][]byte, error) {
	out := make([][]byte, len(values))
	for i, v := range values {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}
