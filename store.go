package ments

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Store wraps a SQLite database and provides the persistence operations
// for posts, subscribers, newsletter history, admins and images.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs the embedded migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	// busy_timeout is per connection, so it goes in the DSN to reach every
	// pooled connection; writers then wait instead of failing with SQLITE_BUSY.
	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
		PRAGMA cache_size=-8000;
		PRAGMA mmap_size=268435456;
	`); err != nil {
		_ = db.Close()
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const postColumns = `id, title, slug, content, excerpt, featured_image, category, tags, status,
	author_id, created_at, updated_at, published_at, views, likes`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(r rowScanner) (Post, error) {
	var p Post
	var tags string
	var author sql.NullInt64
	var published sql.NullTime
	err := r.Scan(&p.ID, &p.Title, &p.Slug, &p.Content, &p.Excerpt, &p.FeaturedImage, &p.Category,
		&tags, &p.Status, &author, &p.CreatedAt, &p.UpdatedAt, &published, &p.Views, &p.Likes)
	if err != nil {
		return Post{}, err
	}
	p.Tags = ParseTags(tags)
	p.AuthorID = author.Int64
	if published.Valid {
		t := published.Time
		p.PublishedAt = &t
	}
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

// ListPublished returns published posts, newest first.
func (s *Store) ListPublished(ctx context.Context) ([]Post, error) {
	return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts
		WHERE status = 'published' ORDER BY published_at DESC, id DESC`)
}

// ListAllPosts returns every post (published and drafts), newest first.
func (s *Store) ListAllPosts(ctx context.Context) ([]Post, error) {
	return s.queryPosts(ctx, `SELECT `+postColumns+` FROM posts ORDER BY created_at DESC, id DESC`)
}

// ListTags returns a sorted, deduplicated slice of all tags from published posts.
func (s *Store) ListTags(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tags FROM posts WHERE status = 'published'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var tags string
		if err := rows.Scan(&tags); err != nil {
			return nil, err
		}
		for _, t := range ParseTags(tags) {
			set[strings.ToLower(t)] = struct{}{}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result := make([]string, 0, len(set))
	for t := range set {
		result = append(result, t)
	}
	sort.Strings(result)
	return result, nil
}

// GetPublishedPost returns a published post by slug. Drafts are reported
// as ErrNotFound.
func (s *Store) GetPublishedPost(ctx context.Context, slug string) (Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts
		WHERE slug = ? AND status = 'published'`, slug))
	return p, storeErr(err)
}

// GetPost returns a post by id regardless of status (for admin).
func (s *Store) GetPost(ctx context.Context, id int64) (Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
	return p, storeErr(err)
}

// CreatePost inserts p and returns its id. A slug collision is reported as
// ErrDuplicate.
func (s *Store) CreatePost(ctx context.Context, p Post) (int64, error) {
	now := time.Now().UTC()
	var published *time.Time
	if p.Status == StatusPublished {
		published = &now
	} else {
		p.Status = StatusDraft
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO posts
		(title, slug, content, excerpt, featured_image, category, tags, status, author_id,
		 created_at, updated_at, published_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Title, p.Slug, p.Content, p.Excerpt, p.FeaturedImage, p.Category, tagString(p.Tags),
		p.Status, nullInt(p.AuthorID), now, now, nullTime(published))
	if err != nil {
		return 0, storeErr(err)
	}
	return res.LastInsertId()
}

// UpdatePost saves the editable fields of p. Moving a post to published
// stamps published_at once; moving it back to draft clears it.
func (s *Store) UpdatePost(ctx context.Context, p Post) error {
	if p.Status != StatusPublished {
		p.Status = StatusDraft
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET
		title = ?, slug = ?, content = ?, excerpt = ?, featured_image = ?, category = ?, tags = ?,
		status = ?, updated_at = ?,
		published_at = CASE WHEN ? = 'published' THEN COALESCE(published_at, ?) ELSE NULL END
		WHERE id = ?`,
		p.Title, p.Slug, p.Content, p.Excerpt, p.FeaturedImage, p.Category, tagString(p.Tags),
		p.Status, now, p.Status, now, p.ID)
	if err != nil {
		return storeErr(err)
	}
	return requireRow(res)
}

// SetPostStatus moves a post to status. Publishing sets published_at to
// now; reverting to draft clears it. updated_at is always refreshed.
func (s *Store) SetPostStatus(ctx context.Context, id int64, status string) (Post, error) {
	now := time.Now().UTC()
	var published *time.Time
	switch status {
	case StatusPublished:
		published = &now
	case StatusDraft:
	default:
		return Post{}, fmt.Errorf("unknown post status %q", status)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET status = ?, published_at = ?, updated_at = ? WHERE id = ?`,
		status, nullTime(published), now, id)
	if err != nil {
		return Post{}, err
	}
	if err := requireRow(res); err != nil {
		return Post{}, err
	}
	return s.GetPost(ctx, id)
}

// TogglePostStatus flips a post between draft and published.
func (s *Store) TogglePostStatus(ctx context.Context, id int64) (Post, error) {
	p, err := s.GetPost(ctx, id)
	if err != nil {
		return Post{}, err
	}
	next := StatusPublished
	if p.Published() {
		next = StatusDraft
	}
	return s.SetPostStatus(ctx, id, next)
}

// DeletePost removes a post by id.
func (s *Store) DeletePost(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// IncrementViews adds one view to a published post and returns the new count.
func (s *Store) IncrementViews(ctx context.Context, id int64) (int, error) {
	var views int
	err := s.db.QueryRowContext(ctx, `UPDATE posts SET views = views + 1
		WHERE id = ? AND status = 'published' RETURNING views`, id).Scan(&views)
	return views, storeErr(err)
}

// AdjustLikes adds delta to the like counter of a published post, never
// going below zero, and returns the new count.
func (s *Store) AdjustLikes(ctx context.Context, slug string, delta int) (int, error) {
	var likes int
	err := s.db.QueryRowContext(ctx, `UPDATE posts SET likes = MAX(likes + ?, 0)
		WHERE slug = ? AND status = 'published' RETURNING likes`, delta, slug).Scan(&likes)
	return likes, storeErr(err)
}

// ListCategories returns the editor categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, slug FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cats []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, err
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// ParseTags splits a comma-delimited tag string (e.g. ",go,web,") into a slice.
func ParseTags(tagString string) []string {
	tagString = strings.Trim(tagString, ",")
	if tagString == "" {
		return nil
	}
	parts := strings.Split(tagString, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// tagString normalizes tags to the stored ",a,b," form.
func tagString(tags []string) string {
	normalized := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			normalized = append(normalized, t)
		}
	}
	return "," + strings.Join(normalized, ",") + ","
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullInt(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
