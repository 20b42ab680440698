package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"vidsource/internal/media"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// absent marks a nil season or episode in the database.
const absent = -1

// SQLite implements Cache and Catalog on a local SQLite file.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path and runs
// pending migrations.
func OpenSQLite(path string, opts ...Option) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite serialises writers; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	o := buildOptions(opts)
	return &SQLite{db: db, now: o.now}, nil
}

func migrate(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func toColumn(v *int) int {
	if v == nil {
		return absent
	}
	return *v
}

func fromColumn(v int) *int {
	if v == absent {
		return nil
	}
	return &v
}

// Get returns the live cache entry for key.
func (s *SQLite) Get(ctx context.Context, key media.CacheKey) (*media.CacheEntry, error) {
	const q = `
SELECT video_url, media_type, provider_id, expires_at, season, episode
FROM video_cache
WHERE content_id = ? AND content_kind = ? AND variant = ? AND season = ? AND episode = ?
  AND expires_at > ?`

	var (
		entry           media.CacheEntry
		expires         int64
		season, episode int
	)
	err := s.db.QueryRowContext(ctx, q,
		key.ContentID, string(key.Kind), key.Variant, toColumn(key.Season), toColumn(key.Episode),
		s.now().UnixMilli(),
	).Scan(&entry.VideoURL, &entry.MediaType, &entry.ProviderID, &expires, &season, &episode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache %s: %w", key, err)
	}

	entry.Key = media.CacheKey{
		ContentID: key.ContentID,
		Kind:      key.Kind,
		Variant:   key.Variant,
		Season:    fromColumn(season),
		Episode:   fromColumn(episode),
	}
	entry.ExpiresAt = time.UnixMilli(expires)
	return &entry, nil
}

// Upsert writes entry, replacing any row with the same key.
func (s *SQLite) Upsert(ctx context.Context, entry media.CacheEntry) error {
	const q = `
INSERT INTO video_cache
    (content_id, content_kind, variant, season, episode, video_url, media_type, provider_id, expires_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (content_id, content_kind, variant, season, episode) DO UPDATE SET
    video_url   = excluded.video_url,
    media_type  = excluded.media_type,
    provider_id = excluded.provider_id,
    expires_at  = excluded.expires_at,
    updated_at  = excluded.updated_at`

	k := entry.Key
	_, err := s.db.ExecContext(ctx, q,
		k.ContentID, string(k.Kind), k.Variant, toColumn(k.Season), toColumn(k.Episode),
		entry.VideoURL, string(entry.MediaType), string(entry.ProviderID),
		entry.ExpiresAt.UnixMilli(), s.now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("writing cache %s: %w", k, err)
	}
	return nil
}

// GetContent returns the catalog row for id and kind.
func (s *SQLite) GetContent(ctx context.Context, id int64, kind media.Kind) (*media.Content, error) {
	const q = `
SELECT external_id, title, original_title, overview, poster_path, release_date
FROM content WHERE content_id = ? AND content_kind = ?`

	c := media.Content{ContentID: id, Kind: kind}
	err := s.db.QueryRowContext(ctx, q, id, string(kind)).
		Scan(&c.ExternalID, &c.Title, &c.OriginalTitle, &c.Overview, &c.PosterPath, &c.ReleaseDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading content %d: %w", id, err)
	}
	return &c, nil
}

// InsertContent adds c unless a row with the same id and kind exists.
func (s *SQLite) InsertContent(ctx context.Context, c media.Content) (bool, error) {
	const q = `
INSERT INTO content
    (content_id, content_kind, external_id, title, original_title, overview, poster_path, release_date, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (content_id, content_kind) DO NOTHING`

	res, err := s.db.ExecContext(ctx, q,
		c.ContentID, string(c.Kind), c.ExternalID, c.Title, c.OriginalTitle,
		c.Overview, c.PosterPath, c.ReleaseDate, s.now().UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("inserting content %d: %w", c.ContentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("inserting content %d: %w", c.ContentID, err)
	}
	return n > 0, nil
}
