package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlite_migrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/httpfs"
	_ "github.com/mattn/go-sqlite3"
)

// RunStore is the ephemeral, run-scoped database backing one orchestrator
// invocation: the PR dependency queue and the per-iteration status log.
// Its lifetime is bounded to a single process run — nothing here is read
// by a later invocation.
type RunStore struct {
	db   *sql.DB
	path string
}

// OpenRunStore opens (creating if needed) a run database at dbPath and
// migrates it to the latest schema version.
func OpenRunStore(dbPath string) (*RunStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
			return nil, fmt.Errorf("create run store dir: %w", err)
		}
	}

	dsn := fmt.Sprintf(
		"file:%s?_foreign_keys=on&_busy_timeout=5000", dbPath,
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := migrateRunStore(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate run store: %w", err)
	}

	return &RunStore{db: sqlDB, path: dbPath}, nil
}

// NewEphemeralRunStore opens a fresh temp-file run store under dir (the
// system temp dir if empty), named after runID. It returns the store and
// a cleanup func that closes it and, unless keep is true, removes the
// file — the "deleted, or left for post-mortem inspection, at clean
// exit" behavior.
func NewEphemeralRunStore(dir, runID string, keep bool) (*RunStore, func() error, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	path := filepath.Join(dir, fmt.Sprintf("prreview-run-%s.db", runID))

	rs, err := OpenRunStore(path)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() error {
		closeErr := rs.Close()
		if keep {
			return closeErr
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return closeErr
	}

	return rs, cleanup, nil
}

func migrateRunStore(sqlDB *sql.DB) error {
	driver, err := sqlite_migrate.WithInstance(sqlDB, &sqlite_migrate.Config{})
	if err != nil {
		return err
	}

	src, err := httpfs.New(http.FS(runSchemas), "migrations")
	if err != nil {
		return err
	}

	m, err := migrate.NewWithInstance("iofs", src, "run", driver)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	return nil
}

// Close closes the underlying database connection.
func (s *RunStore) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the run database, or ":memory:".
func (s *RunStore) Path() string {
	return s.path
}

// UpsertPRNode writes a queue entry, replacing any prior record for the
// same PR number.
func (s *RunStore) UpsertPRNode(ctx context.Context, node PRNodeRecord) error {
	changedFiles, err := json.Marshal(node.ChangedFiles)
	if err != nil {
		return fmt.Errorf("marshal changed files: %w", err)
	}
	dependsOn, err := json.Marshal(node.DependsOn)
	if err != nil {
		return fmt.Errorf("marshal depends_on: %w", err)
	}
	conflictsWith, err := json.Marshal(node.ConflictsWith)
	if err != nil {
		return fmt.Errorf("marshal conflicts_with: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pr_nodes (
			pr_number, branch, base, changed_files_json,
			depends_on_json, conflicts_with_json, status,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(pr_number) DO UPDATE SET
			branch = excluded.branch,
			base = excluded.base,
			changed_files_json = excluded.changed_files_json,
			depends_on_json = excluded.depends_on_json,
			conflicts_with_json = excluded.conflicts_with_json,
			status = excluded.status,
			updated_at = excluded.updated_at
	`,
		node.PRNumber, node.Branch, node.Base, string(changedFiles),
		string(dependsOn), string(conflictsWith), node.Status,
		node.CreatedAt.Unix(), node.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert pr node %d: %w", node.PRNumber, err)
	}

	return nil
}

// LoadPRNodes returns every queue entry, ordered by PR number.
func (s *RunStore) LoadPRNodes(ctx context.Context) ([]PRNodeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pr_number, branch, base, changed_files_json,
		       depends_on_json, conflicts_with_json, status,
		       created_at, updated_at
		FROM pr_nodes
		ORDER BY pr_number ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load pr nodes: %w", err)
	}
	defer rows.Close()

	var nodes []PRNodeRecord
	for rows.Next() {
		var (
			n                                       PRNodeRecord
			changedFiles, dependsOn, conflictsWith  string
			createdAt, updatedAt                    int64
		)
		if err := rows.Scan(
			&n.PRNumber, &n.Branch, &n.Base, &changedFiles,
			&dependsOn, &conflictsWith, &n.Status,
			&createdAt, &updatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan pr node: %w", err)
		}

		if err := json.Unmarshal([]byte(changedFiles), &n.ChangedFiles); err != nil {
			return nil, fmt.Errorf("unmarshal changed files: %w", err)
		}
		if err := json.Unmarshal([]byte(dependsOn), &n.DependsOn); err != nil {
			return nil, fmt.Errorf("unmarshal depends_on: %w", err)
		}
		if err := json.Unmarshal([]byte(conflictsWith), &n.ConflictsWith); err != nil {
			return nil, fmt.Errorf("unmarshal conflicts_with: %w", err)
		}
		n.CreatedAt = time.Unix(createdAt, 0)
		n.UpdatedAt = time.Unix(updatedAt, 0)

		nodes = append(nodes, n)
	}

	return nodes, rows.Err()
}

// RecordIteration appends a fix-loop iteration outcome to the status log.
func (s *RunStore) RecordIteration(ctx context.Context, rec IterationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO iteration_records (
			pr_number, iteration, stage, result, detail, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?)
	`,
		rec.PRNumber, rec.Iteration, rec.Stage, rec.Result,
		toNullString(rec.Detail), rec.RecordedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("record iteration for pr %d: %w", rec.PRNumber, err)
	}

	return nil
}

// ListIterations returns every recorded iteration for a PR, oldest first.
func (s *RunStore) ListIterations(ctx context.Context, prNumber int) ([]IterationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pr_number, iteration, stage, result, detail, recorded_at
		FROM iteration_records
		WHERE pr_number = ?
		ORDER BY id ASC
	`, prNumber)
	if err != nil {
		return nil, fmt.Errorf("list iterations for pr %d: %w", prNumber, err)
	}
	defer rows.Close()

	var recs []IterationRecord
	for rows.Next() {
		var (
			rec        IterationRecord
			detail     sql.NullString
			recordedAt int64
		)
		if err := rows.Scan(
			&rec.ID, &rec.PRNumber, &rec.Iteration, &rec.Stage,
			&rec.Result, &detail, &recordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan iteration: %w", err)
		}
		rec.Detail = fromNullString(detail)
		rec.RecordedAt = time.Unix(recordedAt, 0)
		recs = append(recs, rec)
	}

	return recs, rows.Err()
}

// Stats summarizes the current run: PR count by status and the total
// number of iteration records logged so far.
func (s *RunStore) Stats(ctx context.Context) (RunStats, error) {
	stats := RunStats{ByStatus: make(map[string]int)}

	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM pr_nodes GROUP BY status
	`)
	if err != nil {
		return stats, fmt.Errorf("stats by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, fmt.Errorf("scan status count: %w", err)
		}
		stats.ByStatus[status] = count
		stats.TotalPRs += count
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM iteration_records`,
	).Scan(&stats.TotalRecords); err != nil {
		return stats, fmt.Errorf("stats total records: %w", err)
	}

	return stats, nil
}

// Clear removes every queue entry and iteration record, keeping the
// schema in place.
func (s *RunStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM iteration_records`); err != nil {
		return fmt.Errorf("clear iteration records: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pr_nodes`); err != nil {
		return fmt.Errorf("clear pr nodes: %w", err)
	}

	slog.Debug("cleared run store", "path", s.path)

	return nil
}
