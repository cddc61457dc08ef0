// Package runlog keeps a SQLite log of fit runs and their loss traces.
package runlog

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/samber/lo"

	"github.com/YuminosukeSato/vigp/pkg/errors"
)

// traceChunk bounds the rows per INSERT so the statement stays under
// SQLite's host-parameter limit (3 parameters per row).
const traceChunk = 300

const schema = `
CREATE TABLE IF NOT EXISTS runs(
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at INTEGER NOT NULL,
	data_path TEXT NOT NULL,
	n_samples INTEGER NOT NULL,
	n_features INTEGER NOT NULL,
	estimator TEXT NOT NULL,
	solver TEXT NOT NULL,
	iterations INTEGER NOT NULL,
	final_loss REAL NOT NULL,
	train_accuracy REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS loss_trace(
	run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	step INTEGER NOT NULL,
	loss REAL NOT NULL,
	PRIMARY KEY(run_id, step)
);`

// Run is one recorded fit.
type Run struct {
	ID            int64
	CreatedAt     time.Time
	DataPath      string
	NSamples      int
	NFeatures     int
	Estimator     string
	Solver        string
	Iterations    int
	FinalLoss     float64
	TrainAccuracy float64

	// LossHistory is written by Record. List leaves it empty, use Trace.
	LossHistory []float64
}

// Store is a run log backed by a SQLite file.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the log at path. ":memory:" works for tests.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.NewValidationError("db", "path must not be empty", path)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open run log %s", path)
	}
	// a single connection keeps ":memory:" databases alive between calls
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create run log schema")
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts run and its loss trace in one transaction and returns the new id.
// A zero CreatedAt is replaced by the current time.
func (s *Store) Record(ctx context.Context, run Run) (id int64, err error) {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin run insert")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs(created_at, data_path, n_samples, n_features, estimator, solver,
			iterations, final_loss, train_accuracy) VALUES(?,?,?,?,?,?,?,?,?)`,
		run.CreatedAt.UnixNano(), run.DataPath, run.NSamples, run.NFeatures,
		run.Estimator, run.Solver, run.Iterations, run.FinalLoss, run.TrainAccuracy)
	if err != nil {
		return 0, errors.Wrap(err, "insert run")
	}
	if id, err = res.LastInsertId(); err != nil {
		return 0, errors.Wrap(err, "run id")
	}

	steps := lo.Range(len(run.LossHistory))
	for _, chunk := range lo.Chunk(steps, traceChunk) {
		placeholders := strings.Join(lo.Map(chunk, func(int, int) string { return "(?,?,?)" }), ",")
		args := lo.FlatMap(chunk, func(step int, _ int) []any {
			return []any{id, step + 1, run.LossHistory[step]}
		})
		if _, err = tx.ExecContext(ctx, "INSERT INTO loss_trace(run_id, step, loss) VALUES "+placeholders, args...); err != nil {
			return 0, errors.Wrap(err, "insert loss trace")
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit run")
	}
	return id, nil
}

// List returns up to limit runs, newest first. limit <= 0 returns all runs.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, data_path, n_samples, n_features, estimator, solver,
			iterations, final_loss, train_accuracy
		FROM runs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			created int64
		)
		if err := rows.Scan(&r.ID, &created, &r.DataPath, &r.NSamples, &r.NFeatures,
			&r.Estimator, &r.Solver, &r.Iterations, &r.FinalLoss, &r.TrainAccuracy); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		r.CreatedAt = time.Unix(0, created)
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "iterate runs")
}

// Trace returns the loss trace of run id in step order.
func (s *Store) Trace(ctx context.Context, id int64) ([]float64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT loss FROM loss_trace WHERE run_id = ? ORDER BY step", id)
	if err != nil {
		return nil, errors.Wrap(err, "query loss trace")
	}
	defer rows.Close()

	var trace []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, errors.Wrap(err, "scan loss")
		}
		trace = append(trace, v)
	}
	return trace, errors.Wrap(rows.Err(), "iterate loss trace")
}
