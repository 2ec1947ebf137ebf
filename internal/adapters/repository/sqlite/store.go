// Package sqlite is the SQLite-backed repository.Store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/okian/podium/internal/adapters/repository"
	"github.com/okian/podium/internal/domain/model"
	"github.com/okian/podium/pkg/metrics"

	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed contribution and duel persistence.
type Store struct {
	db   *sql.DB
	opts repository.Options
}

var _ repository.Store = (*Store)(nil)

// Open opens a SQLite store at path and applies migrations.
func Open(ctx context.Context, path string, opts ...repository.Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &Store{db: db, opts: repository.BuildOptions(opts...)}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, stmt := range migrations() {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) cutoffMillis() int64 {
	return s.opts.Cutoff(s.opts.Now()).UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// AddContribution implements repository.Store.
func (s *Store) AddContribution(ctx context.Context, c model.Contribution) (model.Contribution, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := repository.ValidateContribution(c); err != nil {
		return model.Contribution{}, err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.opts.Now()
	}
	c.CreatedAt = fromMillis(c.CreatedAt.UnixMilli())
	c.Removed = false

	res, err := s.db.ExecContext(ctx, `
INSERT INTO contributions (id, scope_id, subject_id, amount, proof_url, created_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO NOTHING
`, c.ID, c.ScopeID, c.SubjectID, c.Amount, c.ProofURL, c.CreatedAt.UnixMilli())
	if err != nil {
		return model.Contribution{}, fmt.Errorf("insert contribution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Contribution{}, fmt.Errorf("%w: %s", repository.ErrDuplicate, c.ID)
	}
	return c, nil
}

func (s *Store) get(ctx context.Context, id string) (model.Contribution, error) {
	var (
		c       model.Contribution
		created int64
		removed int
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, scope_id, subject_id, amount, proof_url, created_at, removed
FROM contributions WHERE id = ?
`, id).Scan(&c.ID, &c.ScopeID, &c.SubjectID, &c.Amount, &c.ProofURL, &created, &removed)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Contribution{}, repository.ErrNotFound
	}
	if err != nil {
		return model.Contribution{}, fmt.Errorf("get contribution: %w", err)
	}
	c.CreatedAt = fromMillis(created)
	c.Removed = removed != 0
	return c, nil
}

// RemoveContribution implements repository.Store.
func (s *Store) RemoveContribution(ctx context.Context, id, ownerID string) (model.Contribution, error) {
	c, err := s.get(ctx, id)
	if err != nil {
		return model.Contribution{}, err
	}
	if ownerID != "" && c.SubjectID != ownerID {
		return model.Contribution{}, repository.ErrNotOwner
	}
	res, err := s.db.ExecContext(ctx, `UPDATE contributions SET removed = 1 WHERE id = ? AND removed = 0`, id)
	if err != nil {
		return model.Contribution{}, fmt.Errorf("remove contribution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.Contribution{}, repository.ErrAlreadyRemoved
	}
	c.Removed = true
	return c, nil
}

// TopSubjects implements repository.LeaderboardSource.
func (s *Store) TopSubjects(ctx context.Context, scopeID string, limit int) ([]model.ScoredSubject, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if limit < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, repository.ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT subject_id, SUM(amount) AS total, MIN(created_at) AS first_at
FROM contributions
WHERE scope_id = ? AND removed = 0 AND created_at >= ?
GROUP BY subject_id
ORDER BY total DESC, first_at ASC, subject_id ASC
LIMIT ?
`, scopeID, s.cutoffMillis(), limit)
	if err != nil {
		return nil, fmt.Errorf("top subjects: %w", err)
	}
	defer rows.Close()

	out := make([]model.ScoredSubject, 0, limit)
	for rows.Next() {
		var (
			row   model.ScoredSubject
			first int64
		)
		if err := rows.Scan(&row.SubjectID, &row.Score, &first); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		row.FirstContributionAt = fromMillis(first)
		out = append(out, row)
	}
	return out, rows.Err()
}

// Position implements repository.Store.
func (s *Store) Position(ctx context.Context, scopeID, subjectID string) (int, error) {
	cutoff := s.cutoffMillis()
	var (
		total float64
		first int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT SUM(amount), MIN(created_at)
FROM contributions
WHERE scope_id = ? AND subject_id = ? AND removed = 0 AND created_at >= ?
GROUP BY subject_id
`, scopeID, subjectID, cutoff).Scan(&total, &first)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("subject position: %w", err)
	}

	var ahead int
	err = s.db.QueryRowContext(ctx, `
SELECT COUNT(*) FROM (
	SELECT subject_id, SUM(amount) AS total, MIN(created_at) AS first_at
	FROM contributions
	WHERE scope_id = ? AND removed = 0 AND created_at >= ?
	GROUP BY subject_id
) t
WHERE t.total > ?
   OR (t.total = ? AND (t.first_at < ? OR (t.first_at = ? AND t.subject_id < ?)))
`, scopeID, cutoff, total, total, first, first, subjectID).Scan(&ahead)
	if err != nil {
		return 0, fmt.Errorf("subject position: %w", err)
	}
	return ahead + 1, nil
}

// SubjectTotal implements repository.Store.
func (s *Store) SubjectTotal(ctx context.Context, scopeID, subjectID string) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx, `
SELECT COALESCE(SUM(amount), 0)
FROM contributions
WHERE scope_id = ? AND subject_id = ? AND removed = 0 AND created_at >= ?
`, scopeID, subjectID, s.cutoffMillis()).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("subject total: %w", err)
	}
	return total, nil
}

func scanContributions(rows *sql.Rows) ([]model.Contribution, error) {
	defer rows.Close()
	var out []model.Contribution
	for rows.Next() {
		var (
			c       model.Contribution
			created int64
			removed int
		)
		if err := rows.Scan(&c.ID, &c.ScopeID, &c.SubjectID, &c.Amount, &c.ProofURL, &created, &removed); err != nil {
			return nil, fmt.Errorf("scan contribution: %w", err)
		}
		c.CreatedAt = fromMillis(created)
		c.Removed = removed != 0
		out = append(out, c)
	}
	return out, rows.Err()
}

// SubjectContributions implements repository.Store.
func (s *Store) SubjectContributions(ctx context.Context, scopeID, subjectID string) ([]model.Contribution, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, scope_id, subject_id, amount, proof_url, created_at, removed
FROM contributions
WHERE scope_id = ? AND subject_id = ? AND removed = 0 AND created_at >= ?
ORDER BY created_at DESC, rowid DESC
`, scopeID, subjectID, s.cutoffMillis())
	if err != nil {
		return nil, fmt.Errorf("subject contributions: %w", err)
	}
	out, err := scanContributions(rows)
	if out == nil && err == nil {
		out = []model.Contribution{}
	}
	return out, err
}

// RecordDuel implements repository.EventStore.
func (s *Store) RecordDuel(ctx context.Context, e model.DuelEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.opts.Now()
	}
	backfire := 0
	if e.Backfire {
		backfire = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO duel_events (victim_id, scope_id, duration_ms, actor_id, backfire, created_at)
VALUES (?, ?, ?, ?, ?, ?)
`, e.VictimID, e.ScopeID, e.Duration.Milliseconds(), e.ActorID, backfire, e.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("record duel: %w", err)
	}
	return nil
}

// TopRestricted implements repository.Store.
func (s *Store) TopRestricted(ctx context.Context, scopeID string, limit int) ([]model.RestrictionTotal, error) {
	if limit < 1 {
		return nil, repository.ErrInvalidLimit
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT victim_id, COUNT(*) AS count, SUM(duration_ms) AS total_ms
FROM duel_events
WHERE scope_id = ? AND created_at >= ?
GROUP BY victim_id
ORDER BY total_ms DESC, MIN(created_at) ASC, victim_id ASC
LIMIT ?
`, scopeID, s.cutoffMillis(), limit)
	if err != nil {
		return nil, fmt.Errorf("top restricted: %w", err)
	}
	defer rows.Close()

	out := make([]model.RestrictionTotal, 0, limit)
	for rows.Next() {
		var (
			t       model.RestrictionTotal
			totalMS int64
		)
		if err := rows.Scan(&t.SubjectID, &t.Count, &totalMS); err != nil {
			return nil, fmt.Errorf("scan restriction total: %w", err)
		}
		t.TotalDuration = time.Duration(totalMS) * time.Millisecond
		out = append(out, t)
	}
	return out, rows.Err()
}

// RestrictionStats implements repository.Store.
func (s *Store) RestrictionStats(ctx context.Context, scopeID, subjectID string) (model.RestrictionTotal, error) {
	t := model.RestrictionTotal{SubjectID: subjectID}
	var totalMS int64
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(SUM(duration_ms), 0)
FROM duel_events
WHERE scope_id = ? AND victim_id = ? AND created_at >= ?
`, scopeID, subjectID, s.cutoffMillis()).Scan(&t.Count, &totalMS)
	if err != nil {
		return t, fmt.Errorf("restriction stats: %w", err)
	}
	t.TotalDuration = time.Duration(totalMS) * time.Millisecond
	return t, nil
}

// Stats implements repository.Store.
func (s *Store) Stats(ctx context.Context) (model.StoreStats, error) {
	var st model.StoreStats
	err := s.db.QueryRowContext(ctx, `
SELECT
	COALESCE(SUM(CASE WHEN removed = 0 THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN removed = 0 AND created_at >= ? THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN removed = 1 THEN 1 ELSE 0 END), 0),
	COUNT(DISTINCT CASE WHEN removed = 0 THEN subject_id END),
	COALESCE(SUM(CASE WHEN removed = 0 AND created_at >= ? THEN amount ELSE 0 END), 0)
FROM contributions
`, s.cutoffMillis(), s.cutoffMillis()).Scan(
		&st.ActiveContributions,
		&st.WindowContributions,
		&st.RemovedContributions,
		&st.Subjects,
		&st.WindowTotal,
	)
	if err != nil {
		return st, fmt.Errorf("contribution stats: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM duel_events`).Scan(&st.DuelEvents); err != nil {
		return st, fmt.Errorf("duel stats: %w", err)
	}
	return st, nil
}

// ListContributions implements repository.Store.
func (s *Store) ListContributions(ctx context.Context, subjectID string, limit int) ([]model.Contribution, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	var (
		rows *sql.Rows
		err  error
	)
	if subjectID != "" {
		rows, err = s.db.QueryContext(ctx, `
SELECT id, scope_id, subject_id, amount, proof_url, created_at, removed
FROM contributions
WHERE subject_id = ?
ORDER BY created_at DESC, rowid DESC
LIMIT ?
`, subjectID, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
SELECT id, scope_id, subject_id, amount, proof_url, created_at, removed
FROM contributions
WHERE removed = 0 AND created_at >= ?
ORDER BY created_at DESC, rowid DESC
LIMIT ?
`, s.cutoffMillis(), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list contributions: %w", err)
	}
	return scanContributions(rows)
}

// PurgeExpired implements repository.Store.
func (s *Store) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM contributions WHERE created_at < ?`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge contributions: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ClearSubject implements repository.Store.
func (s *Store) ClearSubject(ctx context.Context, subjectID string) (int, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE contributions SET removed = 1 WHERE subject_id = ? AND removed = 0`, subjectID)
	if err != nil {
		return 0, fmt.Errorf("clear subject: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}
