package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/eringen/rescuepost/publisher"
)

// timeLayout is fixed width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Store provides database operations for publish analytics.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the analytics database at dbPath.
func NewStore(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create analytics dir: %w", err)
	}
	// Pragmas in the DSN are applied to every connection in the pool.
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open analytics db: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS attempts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			post_id TEXT NOT NULL,
			org_id TEXT NOT NULL,
			platform TEXT NOT NULL,
			success INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			external_id TEXT NOT NULL DEFAULT '',
			attempted_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_attempts_attempted_at ON attempts(attempted_at);
		CREATE INDEX IF NOT EXISTS idx_attempts_post_id ON attempts(post_id);
		CREATE INDEX IF NOT EXISTS idx_attempts_org_id ON attempts(org_id, attempted_at);

		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	return err
}

// currentSchemaVersion is the latest schema version. Increment when adding migrations.
const currentSchemaVersion = 1

func (s *Store) migrate() error {
	verStr, err := s.GetSetting("schema_version")
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	version := 0
	if verStr != "" {
		version, err = strconv.Atoi(verStr)
		if err != nil {
			return fmt.Errorf("parse schema version %q: %w", verStr, err)
		}
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported %d", version, currentSchemaVersion)
	}
	if version < 1 {
		version = 1
	}
	return s.SetSetting("schema_version", strconv.Itoa(version))
}

// GetSetting retrieves a setting value by key. Returns empty string if not found.
func (s *Store) GetSetting(key string) (string, error) {
	var val string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return val, err
}

// SetSetting stores a setting value by key (upsert).
func (s *Store) SetSetting(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// RecordAttempt stores one platform outcome. A zero AttemptedAt is set to now.
func (s *Store) RecordAttempt(ctx context.Context, a *Attempt) error {
	if a.AttemptedAt.IsZero() {
		a.AttemptedAt = time.Now()
	}
	success := 0
	if a.Success {
		success = 1
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO attempts
		(post_id, org_id, platform, success, error, external_id, attempted_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.PostID, a.OrgID, string(a.Platform), success, a.Error, a.ExternalID,
		formatTime(a.AttemptedAt), a.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		a.ID = id
	}
	return nil
}

// ListAttempts returns every attempt for postID, newest first.
func (s *Store) ListAttempts(ctx context.Context, postID string) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, post_id, org_id, platform, success, error, external_id, attempted_at, duration_ms
		FROM attempts WHERE post_id = ? ORDER BY attempted_at DESC, id DESC`, postID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []Attempt
	for rows.Next() {
		var a Attempt
		var platform, at string
		var success int
		var durMs int64
		if err := rows.Scan(&a.ID, &a.PostID, &a.OrgID, &platform, &success, &a.Error, &a.ExternalID, &at, &durMs); err != nil {
			return nil, err
		}
		a.Platform = publisher.Platform(platform)
		a.Success = success == 1
		a.AttemptedAt = parseTime(at)
		a.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, a)
	}
	return out, rows.Err()
}

// Bucket selects the time grouping of Stats.Daily.
type Bucket int

const (
	BucketDay Bucket = iota
	BucketHour
	BucketMonth
)

func (b Bucket) expr() string {
	switch b {
	case BucketHour:
		return `substr(attempted_at, 12, 2) || ':00'`
	case BucketMonth:
		return `substr(attempted_at, 1, 7)`
	default:
		return `substr(attempted_at, 1, 10)`
	}
}

// GetStats returns aggregated attempt statistics for org between from and
// to. An empty org aggregates every organization.
func (s *Store) GetStats(ctx context.Context, org string, from, to time.Time, bucket Bucket) (*Stats, error) {
	stats := &Stats{
		Period:     from.Format("2006-01-02") + " to " + to.Format("2006-01-02"),
		ByPlatform: []PlatformStat{},
		TopErrors:  []DimensionStat{},
		Daily:      []DailyAttempts{},
	}
	const where = `WHERE (? = '' OR org_id = ?) AND attempted_at >= ? AND attempted_at < ?`
	args := []any{org, org, formatTime(from), formatTime(to)}

	// Each query fills its own fields, so no lock is needed.
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var avg sql.NullFloat64
		var successes sql.NullInt64
		err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), SUM(success), AVG(duration_ms), COUNT(DISTINCT post_id) FROM attempts `+where, args...).
			Scan(&stats.TotalAttempts, &successes, &avg, &stats.PostsTouched)
		if err != nil {
			return fmt.Errorf("count attempts: %w", err)
		}
		stats.Successes = int(successes.Int64)
		stats.Failures = stats.TotalAttempts - stats.Successes
		stats.SuccessRate = SuccessRate(stats.Successes, stats.TotalAttempts)
		if avg.Valid {
			stats.AvgDurationMs = int(avg.Float64)
		}
		return nil
	})

	g.Go(func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT platform, COUNT(*), SUM(success) FROM attempts `+where+`
			GROUP BY platform ORDER BY COUNT(*) DESC, platform`, args...)
		if err != nil {
			return fmt.Errorf("platform stats: %w", err)
		}
		defer rows.Close()
		var out []PlatformStat
		for rows.Next() {
			var p PlatformStat
			var platform string
			if err := rows.Scan(&platform, &p.Attempts, &p.Successes); err != nil {
				return err
			}
			p.Platform = publisher.Platform(platform)
			p.SuccessRate = SuccessRate(p.Successes, p.Attempts)
			out = append(out, p)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if out != nil {
			stats.ByPlatform = out
		}
		return nil
	})

	g.Go(func() error {
		rows, err := s.db.QueryContext(ctx, `SELECT error FROM attempts `+where+` AND success = 0 AND error != ''`, args...)
		if err != nil {
			return fmt.Errorf("error stats: %w", err)
		}
		defer rows.Close()
		counts := make(map[string]int)
		var order []string
		for rows.Next() {
			var msg string
			if err := rows.Scan(&msg); err != nil {
				return err
			}
			key := CleanError(msg)
			if _, ok := counts[key]; !ok {
				order = append(order, key)
			}
			counts[key]++
		}
		if err := rows.Err(); err != nil {
			return err
		}
		stats.TopErrors = topDimensions(order, counts, 10)
		return nil
	})

	g.Go(func() error {
		expr := bucket.expr()
		rows, err := s.db.QueryContext(ctx, `SELECT `+expr+` AS d, COUNT(*), SUM(success) FROM attempts `+where+`
			GROUP BY d ORDER BY d`, args...)
		if err != nil {
			return fmt.Errorf("daily attempts: %w", err)
		}
		defer rows.Close()
		var out []DailyAttempts
		for rows.Next() {
			var d DailyAttempts
			if err := rows.Scan(&d.Date, &d.Attempts, &d.Successes); err != nil {
				return err
			}
			out = append(out, d)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		if out != nil {
			stats.Daily = out
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// topDimensions returns at most n entries sorted by count, ties kept in
// first-seen order.
func topDimensions(order []string, counts map[string]int, n int) []DimensionStat {
	out := make([]DimensionStat, 0, len(order))
	for _, k := range order {
		out = append(out, DimensionStat{Name: k, Count: counts[k]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// CleanupOldAttempts removes attempts older than the retention period.
func (s *Store) CleanupOldAttempts(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	res, err := s.db.ExecContext(ctx, `DELETE FROM attempts WHERE attempted_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("cleanup attempts: %w", err)
	}
	return res.RowsAffected()
}

// StartCleanupScheduler runs periodic cleanup of old data. Returns a stop function.
func (s *Store) StartCleanupScheduler(retentionDays int, interval time.Duration, log *zap.Logger) func() {
	if log == nil {
		log = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)
		for {
			select {
			case <-ticker.C:
				n, err := s.CleanupOldAttempts(context.Background(), retentionDays)
				if err != nil {
					log.Error("analytics cleanup failed", zap.Error(err))
					continue
				}
				if n > 0 {
					log.Info("analytics cleanup", zap.Int64("deleted", n))
				}
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}
