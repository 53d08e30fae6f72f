package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/deployhook/internal/domain"
	"github.com/tjfontaine/deployhook/internal/storage"
)

// Store is a SQLite implementation of DeploymentStore
type Store struct {
	db *sql.DB
}

var _ storage.DeploymentStore = (*Store)(nil)

// New creates a new SQLite store. The parent directory of a file path is
// created if needed.
func New(dbPath string) (*Store, error) {
	if !strings.HasPrefix(dbPath, "file:") && dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	// Initialize schema
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS deployments (
			id TEXT PRIMARY KEY,
			project TEXT NOT NULL,
			ref TEXT NOT NULL,
			build_status TEXT NOT NULL,
			status TEXT NOT NULL,
			stage TEXT NOT NULL,
			error_kind TEXT,
			error_message TEXT,
			exit_code INTEGER NOT NULL DEFAULT -1,
			stdout TEXT,
			stderr TEXT,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			duration_ns INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deployments_project ON deployments(project)`,
		`CREATE INDEX IF NOT EXISTS idx_deployments_started ON deployments(started_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

const deploymentColumns = `id, project, ref, build_status, status, stage, error_kind, error_message,
	exit_code, stdout, stderr, started_at, finished_at, duration_ns`

func (s *Store) SaveDeployment(ctx context.Context, d *domain.Deployment) error {
	query := `INSERT INTO deployments (` + deploymentColumns + `)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.Project, d.Ref, d.BuildStatus, string(d.Status), string(d.Stage),
		string(d.ErrorKind), d.ErrorMessage, d.ExitCode, d.Stdout, d.Stderr,
		d.StartedAt.UTC(), d.FinishedAt.UTC(), int64(d.Duration))
	if err != nil {
		return fmt.Errorf("failed to save deployment: %w", err)
	}

	return nil
}

func (s *Store) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE id = ?`

	d, err := scanDeployment(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deployment: %w", err)
	}

	return d, nil
}

func (s *Store) ListDeployments(ctx context.Context, opts storage.ListOptions) ([]*domain.Deployment, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = storage.DefaultListLimit
	}

	query := `SELECT ` + deploymentColumns + ` FROM deployments`
	args := []any{}
	if opts.Project != "" {
		query += ` WHERE project = ?`
		args = append(args, opts.Project)
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query deployments: %w", err)
	}
	defer rows.Close()

	deployments := []*domain.Deployment{}
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deployment: %w", err)
		}
		deployments = append(deployments, d)
	}

	return deployments, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDeployment(row scanner) (*domain.Deployment, error) {
	var (
		d                     domain.Deployment
		status, stage         string
		errorKind, errorMsg   sql.NullString
		stdout, stderr        sql.NullString
		startedAt, finishedAt time.Time
		durationNS            int64
	)

	if err := row.Scan(&d.ID, &d.Project, &d.Ref, &d.BuildStatus, &status, &stage,
		&errorKind, &errorMsg, &d.ExitCode, &stdout, &stderr,
		&startedAt, &finishedAt, &durationNS); err != nil {
		return nil, err
	}

	d.Status = domain.DeploymentStatus(status)
	d.Stage = domain.Stage(stage)
	d.ErrorKind = domain.ErrorKind(errorKind.String)
	d.ErrorMessage = errorMsg.String
	d.Stdout = stdout.String
	d.Stderr = stderr.String
	d.StartedAt = startedAt.UTC()
	d.FinishedAt = finishedAt.UTC()
	d.Duration = time.Duration(durationNS)

	return &d, nil
}
