package rescuepost

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eringen/rescuepost/publisher"
)

// timeLayout is fixed width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Store wraps a SQLite database and provides CRUD operations for posts,
// organizations and media.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	// The pragmas ride on the DSN so every pooled connection gets them.
	// WAL lets the dashboard read while the pipeline writes; busy_timeout
	// makes writers wait instead of failing with SQLITE_BUSY.
	db, err := sql.Open("sqlite", sqliteDSN(path,
		"busy_timeout(5000)",
		"journal_mode(WAL)",
		"synchronous(NORMAL)",
		"cache_size(-8000)",
		"foreign_keys(1)",
	))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// sqliteDSN appends pragmas to path in the form the modernc driver applies
// to each new connection.
func sqliteDSN(path string, pragmas ...string) string {
	q := make(url.Values)
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS organizations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    url TEXT NOT NULL DEFAULT '',
    created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    org_id TEXT NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    content TEXT NOT NULL,
    platforms TEXT NOT NULL,
    hashtags TEXT NOT NULL DEFAULT '',
    media_urls TEXT NOT NULL DEFAULT '[]',
    status TEXT NOT NULL,
    scheduled_at TEXT NOT NULL DEFAULT '',
    published_at TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    retry_count INTEGER NOT NULL DEFAULT 0,
    recurrence TEXT NOT NULL DEFAULT '',
    ai_generated INTEGER NOT NULL DEFAULT 0,
    external_ids TEXT NOT NULL DEFAULT '{}',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_posts_org_created ON posts(org_id, created_at);
CREATE INDEX IF NOT EXISTS idx_posts_status_scheduled ON posts(status, scheduled_at);
CREATE TABLE IF NOT EXISTS media (
    filename TEXT PRIMARY KEY,
    org_id TEXT NOT NULL,
    original_name TEXT NOT NULL,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    size INTEGER NOT NULL,
    uploaded_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_media_org ON media(org_id, uploaded_at);
`)
	return err
}

// joinList stores a list as ",a,b," so membership can be tested with instr.
func joinList(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return "," + strings.Join(vals, ",") + ","
}

// ParseList splits a comma-delimited string (e.g. ",a,b,") into a slice.
func ParseList(s string) []string {
	s = strings.Trim(s, ",")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return FilterEmpty(parts)
}

func platformsToStrings(ps []publisher.Platform) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = string(p)
	}
	return out
}

const postColumns = `id, org_id, title, content, platforms, hashtags, media_urls, status,
	scheduled_at, published_at, error, retry_count, recurrence, ai_generated,
	external_ids, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(r rowScanner) (Post, error) {
	var p Post
	var platforms, hashtags, mediaURLs, status, scheduledAt, publishedAt, externalIDs, createdAt, updatedAt string
	var aiGenerated int
	if err := r.Scan(&p.ID, &p.OrgID, &p.Title, &p.Content, &platforms, &hashtags, &mediaURLs, &status,
		&scheduledAt, &publishedAt, &p.Error, &p.RetryCount, &p.Recurrence, &aiGenerated,
		&externalIDs, &createdAt, &updatedAt); err != nil {
		return Post{}, err
	}
	for _, name := range ParseList(platforms) {
		p.Platforms = append(p.Platforms, publisher.Platform(name))
	}
	p.Hashtags = ParseList(hashtags)
	if err := json.Unmarshal([]byte(mediaURLs), &p.MediaURLs); err != nil {
		return Post{}, fmt.Errorf("decode media_urls of %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(externalIDs), &p.ExternalIDs); err != nil {
		return Post{}, fmt.Errorf("decode external_ids of %s: %w", p.ID, err)
	}
	if len(p.ExternalIDs) == 0 {
		p.ExternalIDs = nil
	}
	p.Status = PostStatus(status)
	p.ScheduledAt = parseTime(scheduledAt)
	p.PublishedAt = parseTime(publishedAt)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	p.AIGenerated = aiGenerated == 1
	return p, nil
}

func (s *Store) queryPosts(ctx context.Context, query string, args ...any) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// SavePost upserts a post.
func (s *Store) SavePost(ctx context.Context, p Post) error {
	mediaURLs := p.MediaURLs
	if mediaURLs == nil {
		mediaURLs = []string{}
	}
	mediaJSON, err := json.Marshal(mediaURLs)
	if err != nil {
		return err
	}
	externalIDs := p.ExternalIDs
	if externalIDs == nil {
		externalIDs = map[publisher.Platform]string{}
	}
	extJSON, err := json.Marshal(externalIDs)
	if err != nil {
		return err
	}
	aiGenerated := 0
	if p.AIGenerated {
		aiGenerated = 1
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO posts (`+postColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.OrgID, p.Title, p.Content, joinList(platformsToStrings(p.Platforms)), joinList(p.Hashtags),
		string(mediaJSON), string(p.Status), formatTime(p.ScheduledAt), formatTime(p.PublishedAt),
		p.Error, p.RetryCount, p.Recurrence, aiGenerated, string(extJSON),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	return err
}

// UpdatePost overwrites an existing post. Unlike SavePost it never creates
// a row, and reports ErrNotFound when the post is gone.
func (s *Store) UpdatePost(ctx context.Context, p Post) error {
	mediaURLs := p.MediaURLs
	if mediaURLs == nil {
		mediaURLs = []string{}
	}
	mediaJSON, err := json.Marshal(mediaURLs)
	if err != nil {
		return err
	}
	externalIDs := p.ExternalIDs
	if externalIDs == nil {
		externalIDs = map[publisher.Platform]string{}
	}
	extJSON, err := json.Marshal(externalIDs)
	if err != nil {
		return err
	}
	aiGenerated := 0
	if p.AIGenerated {
		aiGenerated = 1
	}
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET
		title = ?, content = ?, platforms = ?, hashtags = ?, media_urls = ?, status = ?,
		scheduled_at = ?, published_at = ?, error = ?, retry_count = ?, recurrence = ?,
		ai_generated = ?, external_ids = ?, updated_at = ?
		WHERE org_id = ? AND id = ?`,
		p.Title, p.Content, joinList(platformsToStrings(p.Platforms)), joinList(p.Hashtags),
		string(mediaJSON), string(p.Status), formatTime(p.ScheduledAt), formatTime(p.PublishedAt),
		p.Error, p.RetryCount, p.Recurrence, aiGenerated, string(extJSON), formatTime(p.UpdatedAt),
		p.OrgID, p.ID)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("post %s: %w", p.ID, ErrNotFound)
	}
	return nil
}

// GetPost returns the post id owned by org.
func (s *Store) GetPost(ctx context.Context, org, id string) (Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE org_id = ? AND id = ?`, org, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	return p, err
}

// FindPost returns the post id regardless of organization.
func (s *Store) FindPost(ctx context.Context, id string) (Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	return p, err
}

// DeletePost removes a post. Deleting a missing post returns ErrNotFound.
func (s *Store) DeletePost(ctx context.Context, org, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE org_id = ? AND id = ?`, org, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("post %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListPosts returns the organization's posts matching f, newest first.
func (s *Store) ListPosts(ctx context.Context, org string, f PostFilter) ([]Post, error) {
	return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts
		WHERE org_id = ?
		  AND (? = '' OR status = ?)
		  AND (? = '' OR instr(platforms, ',' || ? || ',') > 0)
		ORDER BY created_at DESC, id`,
		org, string(f.Status), string(f.Status), string(f.Platform), string(f.Platform))
}

// ListPublished returns up to limit published posts of org, most recently
// published first. A limit <= 0 returns all.
func (s *Store) ListPublished(ctx context.Context, org string, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts
		WHERE org_id = ? AND status = ?
		ORDER BY published_at DESC, id LIMIT ?`, org, string(StatusPublished), limit)
}

// ListDue returns scheduled posts of every organization whose time is at or
// before now, oldest first.
func (s *Store) ListDue(ctx context.Context, now time.Time) ([]Post, error) {
	return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts
		WHERE status = ? AND scheduled_at != '' AND scheduled_at <= ?
		ORDER BY scheduled_at, id`, string(StatusScheduled), formatTime(now))
}

// ListScheduled returns every scheduled post, soonest first.
func (s *Store) ListScheduled(ctx context.Context) ([]Post, error) {
	return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts
		WHERE status = ? ORDER BY scheduled_at, id`, string(StatusScheduled))
}

// ListUpcoming returns up to limit scheduled posts of org after now, soonest first.
func (s *Store) ListUpcoming(ctx context.Context, org string, now time.Time, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = -1
	}
	return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts
		WHERE org_id = ? AND status = ? AND scheduled_at > ?
		ORDER BY scheduled_at, id LIMIT ?`, org, string(StatusScheduled), formatTime(now), limit)
}

// CountByStatus returns the number of posts per status for org. Every
// status is present in the result.
func (s *Store) CountByStatus(ctx context.Context, org string) (StatusCounts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM posts WHERE org_id = ? GROUP BY status`, org)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(StatusCounts, len(Statuses))
	for _, st := range Statuses {
		counts[st] = 0
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[PostStatus(status)] = n
	}
	return counts, rows.Err()
}

// SaveOrganization upserts an organization. CreatedAt is kept from the
// existing row when present.
func (s *Store) SaveOrganization(ctx context.Context, o Organization) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO organizations (id, name, description, url, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, description = excluded.description, url = excluded.url`,
		o.ID, o.Name, o.Description, o.URL, formatTime(o.CreatedAt))
	return err
}

// GetOrganization returns the organization with the given slug.
func (s *Store) GetOrganization(ctx context.Context, id string) (Organization, error) {
	var o Organization
	var createdAt string
	err := s.db.QueryRowContext(ctx, `SELECT id, name, description, url, created_at FROM organizations WHERE id = ?`, id).
		Scan(&o.ID, &o.Name, &o.Description, &o.URL, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Organization{}, fmt.Errorf("organization %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Organization{}, err
	}
	o.CreatedAt = parseTime(createdAt)
	return o, nil
}

// ListOrganizations returns all organizations sorted by name.
func (s *Store) ListOrganizations(ctx context.Context) ([]Organization, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, description, url, created_at FROM organizations ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orgs []Organization
	for rows.Next() {
		var o Organization
		var createdAt string
		if err := rows.Scan(&o.ID, &o.Name, &o.Description, &o.URL, &createdAt); err != nil {
			return nil, err
		}
		o.CreatedAt = parseTime(createdAt)
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

// SaveMedia upserts media metadata.
func (s *Store) SaveMedia(ctx context.Context, m Media) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO media (filename, org_id, original_name, width, height, size, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.Filename, m.OrgID, m.OriginalName, m.Width, m.Height, m.Size, formatTime(m.UploadedAt))
	return err
}

// ListMedia returns the organization's media, newest first.
func (s *Store) ListMedia(ctx context.Context, org string) ([]Media, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT filename, org_id, original_name, width, height, size, uploaded_at
		FROM media WHERE org_id = ? ORDER BY uploaded_at DESC, filename`, org)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Media
	for rows.Next() {
		var m Media
		var uploadedAt string
		if err := rows.Scan(&m.Filename, &m.OrgID, &m.OriginalName, &m.Width, &m.Height, &m.Size, &uploadedAt); err != nil {
			return nil, err
		}
		m.UploadedAt = parseTime(uploadedAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

// MediaExists reports whether any organization already uses filename.
func (s *Store) MediaExists(ctx context.Context, filename string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media WHERE filename = ?`, filename).Scan(&n)
	return n > 0, err
}

// DeleteMedia removes media metadata owned by org.
func (s *Store) DeleteMedia(ctx context.Context, org, filename string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM media WHERE org_id = ? AND filename = ?`, org, filename)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("media %s: %w", filename, ErrNotFound)
	}
	return nil
}
