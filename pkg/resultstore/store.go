// Package resultstore keeps run reports in Postgres so runs can be compared over time.
package resultstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/qa-api/qaload/pkg/loadtest"
)

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

const DefaultListLimit = 20

var ErrRunNotFound = errors.New("run not found")

// Run is the row view of a stored report.
type Run struct {
	RunID       string    `db:"run_id" json:"run_id"`
	Profile     string    `db:"profile" json:"profile"`
	Scenario    string    `db:"scenario" json:"scenario"`
	TargetURL   string    `db:"target_url" json:"target_url"`
	StartedAt   time.Time `db:"started_at" json:"started_at"`
	FinishedAt  time.Time `db:"finished_at" json:"finished_at"`
	Interrupted bool      `db:"interrupted" json:"interrupted"`
	Passed      bool      `db:"passed" json:"passed"`
	HTTPReqs    int64     `db:"http_reqs" json:"http_reqs"`
	FailedRate  float64   `db:"failed_rate" json:"failed_rate"`
	P95MS       float64   `db:"p95_ms" json:"p95_ms"`
}

type Store struct {
	db  *sqlx.DB
	log *logrus.Entry
}

func New(db *sqlx.DB, log *logrus.Entry) *Store {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{db: db, log: log.WithField("component", "resultstore")}
}

// Open connects to Postgres and applies pending migrations.
func Open(ctx context.Context, dsn string, log *logrus.Entry) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect to result database")
	}
	if err := Migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db, log), nil
}

func Migrate(db *sql.DB) error {
	goose.SetBaseFS(embeddedMigrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return errors.Wrap(err, "set goose dialect")
	}
	if err := goose.Up(db, "migrations"); err != nil && !errors.Is(err, goose.ErrNoNextVersion) {
		return errors.Wrap(err, "run result store migrations")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const insertRun = `INSERT INTO qaload_runs
	(run_id, profile, scenario, target_url, started_at, finished_at, interrupted, passed, http_reqs, failed_rate, p95_ms, report)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (run_id) DO NOTHING`

func (s *Store) Save(ctx context.Context, r *loadtest.Report) error {
	if r == nil {
		return errors.New("nil report")
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "encode report")
	}
	startedAt, err := time.Parse(time.RFC3339, r.StartedAt)
	if err != nil {
		return errors.Wrapf(err, "run %s: started_at", r.RunID)
	}
	finishedAt, err := time.Parse(time.RFC3339, r.FinishedAt)
	if err != nil {
		return errors.Wrapf(err, "run %s: finished_at", r.RunID)
	}

	var reqs int64
	var failedRate, p95 float64
	if m := r.Metrics; m != nil {
		reqs = m.HTTPReqs.Count
		failedRate = m.HTTPReqFailed.Rate
		p95 = m.HTTPReqDuration.P95
	}

	if _, err := s.db.ExecContext(ctx, insertRun,
		r.RunID, r.Profile.Name, r.Profile.Scenario, r.Target.URL,
		startedAt, finishedAt, r.Interrupted, r.Passed,
		reqs, failedRate, p95, payload,
	); err != nil {
		return errors.Wrapf(err, "save run %s", r.RunID)
	}
	s.log.WithFields(logrus.Fields{"run_id": r.RunID, "profile": r.Profile.Name}).Debug("run saved")
	return nil
}

const listRuns = `SELECT run_id, profile, scenario, target_url, started_at, finished_at, interrupted, passed, http_reqs, failed_rate, p95_ms
FROM qaload_runs
ORDER BY started_at DESC
LIMIT $1`

// List returns the newest runs first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	runs := []Run{}
	if err := s.db.SelectContext(ctx, &runs, listRuns, limit); err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	return runs, nil
}

const getReport = `SELECT report FROM qaload_runs WHERE run_id = $1`

// Report loads the full stored report of one run.
func (s *Store) Report(ctx context.Context, runID string) (*loadtest.Report, error) {
	var raw []byte
	if err := s.db.GetContext(ctx, &raw, getReport, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrRunNotFound, "run %s", runID)
		}
		return nil, errors.Wrapf(err, "load run %s", runID)
	}
	var r loadtest.Report
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, errors.Wrapf(err, "decode run %s", runID)
	}
	return &r, nil
}
