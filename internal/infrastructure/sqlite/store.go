package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"videoflix/internal/domain/video"
)

// Store provides SQLite persistence for assets, genres and renditions.
type Store struct {
	db *sql.DB
}

// NewStore opens the database, enables WAL mode and runs migrations.
// Pragmas ride in the DSN so they apply to every connection in the pool,
// not just whichever one a plain Exec happened to run on.
func NewStore(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)", dbPath)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS genres (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		genre_id TEXT REFERENCES genres(id) ON DELETE SET NULL,
		source_path TEXT NOT NULL,
		thumbnail_path TEXT,
		output_dir TEXT,
		duration_seconds INTEGER,
		published INTEGER NOT NULL DEFAULT 1,
		state TEXT NOT NULL DEFAULT 'uploaded'
			CHECK(state IN ('uploaded', 'processing', 'ready', 'failed')),
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS renditions (
		video_id TEXT NOT NULL REFERENCES videos(id) ON DELETE CASCADE,
		tier TEXT NOT NULL CHECK(tier IN ('low', 'mid', 'high')),
		manifest_path TEXT NOT NULL,
		bitrate_kbps INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (video_id, tier)
	);

	CREATE INDEX IF NOT EXISTS idx_videos_published_created
		ON videos(published, created_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateVideo inserts a new asset row.
func (s *Store) CreateVideo(ctx context.Context, a *video.Asset) error {
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	query := `
	INSERT INTO videos (id, title, description, genre_id, source_path, thumbnail_path,
		output_dir, duration_seconds, published, state, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.Title, a.Description, nullString(a.GenreID), a.SourcePath,
		nullString(a.ThumbnailPath), nullString(a.OutputDir), nullInt(a.DurationSeconds),
		boolInt(a.Published), string(a.State), formatTime(now), formatTime(now))
	return err
}

// GetVideo loads one asset by id.
func (s *Store) GetVideo(ctx context.Context, id string) (video.Asset, error) {
	query := videoSelect + ` WHERE v.id = ?`
	row := s.db.QueryRowContext(ctx, query, id)
	asset, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return video.Asset{}, video.ErrNotFound
	}
	return asset, err
}

// ListPublished returns published assets, newest first, with genre names resolved.
func (s *Store) ListPublished(ctx context.Context) ([]video.Asset, error) {
	query := videoSelect + ` WHERE v.published = 1 ORDER BY v.created_at DESC, v.id`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	assets := make([]video.Asset, 0)
	for rows.Next() {
		asset, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}

// DeleteVideo removes an asset row; renditions cascade.
func (s *Store) DeleteVideo(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM videos WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return video.ErrNotFound
	}
	return nil
}

// SetState transitions an asset's processing state.
func (s *Store) SetState(ctx context.Context, id string, state video.ProcessingState) error {
	return s.updateVideo(ctx, id, `state = ?`, string(state))
}

// SetDuration persists the probed duration in seconds.
func (s *Store) SetDuration(ctx context.Context, id string, seconds int) error {
	return s.updateVideo(ctx, id, `duration_seconds = ?`, seconds)
}

// SetThumbnail persists the generated thumbnail's relative path.
func (s *Store) SetThumbnail(ctx context.Context, id, rel string) error {
	return s.updateVideo(ctx, id, `thumbnail_path = ?`, rel)
}

// SetOutputDir persists the HLS output directory once every tier succeeded.
func (s *Store) SetOutputDir(ctx context.Context, id, rel string) error {
	return s.updateVideo(ctx, id, `output_dir = ?`, rel)
}

func (s *Store) updateVideo(ctx context.Context, id, assignment string, value any) error {
	query := `UPDATE videos SET ` + assignment + `, updated_at = ? WHERE id = ?`
	res, err := s.db.ExecContext(ctx, query, value, formatTime(time.Now().UTC()), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return video.ErrNotFound
	}
	return nil
}

// UpsertRendition records one generated tier, replacing any prior row for
// the same (video, tier) pair so pipeline re-runs stay idempotent.
func (s *Store) UpsertRendition(ctx context.Context, r video.Rendition) error {
	query := `
	INSERT INTO renditions (video_id, tier, manifest_path, bitrate_kbps, created_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(video_id, tier) DO UPDATE SET
		manifest_path = excluded.manifest_path,
		bitrate_kbps = excluded.bitrate_kbps,
		created_at = excluded.created_at
	`
	_, err := s.db.ExecContext(ctx, query,
		r.VideoID, string(r.Tier), r.ManifestPath, r.BitrateKbps, formatTime(time.Now().UTC()))
	return err
}

// ListRenditions returns an asset's renditions in ladder order.
func (s *Store) ListRenditions(ctx context.Context, videoID string) ([]video.Rendition, error) {
	query := `
	SELECT video_id, tier, manifest_path, bitrate_kbps, created_at
	FROM renditions
	WHERE video_id = ?
	ORDER BY bitrate_kbps
	`
	rows, err := s.db.QueryContext(ctx, query, videoID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	renditions := make([]video.Rendition, 0)
	for rows.Next() {
		var r video.Rendition
		var tier, createdAt string
		if err := rows.Scan(&r.VideoID, &tier, &r.ManifestPath, &r.BitrateKbps, &createdAt); err != nil {
			return nil, err
		}
		r.Tier = video.Tier(tier)
		r.CreatedAt = parseTime(createdAt)
		renditions = append(renditions, r)
	}
	return renditions, rows.Err()
}

// CreateGenre inserts a new genre.
func (s *Store) CreateGenre(ctx context.Context, g *video.Genre) error {
	g.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO genres (id, name, description, created_at) VALUES (?, ?, ?, ?)`,
		g.ID, g.Name, g.Description, formatTime(g.CreatedAt))
	return err
}

// ListGenres returns all genres ordered by name.
func (s *Store) ListGenres(ctx context.Context) ([]video.Genre, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM genres ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	genres := make([]video.Genre, 0)
	for rows.Next() {
		var g video.Genre
		var createdAt string
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &createdAt); err != nil {
			return nil, err
		}
		g.CreatedAt = parseTime(createdAt)
		genres = append(genres, g)
	}
	return genres, rows.Err()
}

// DeleteGenre removes a genre; dependent assets keep existing with a null genre.
func (s *Store) DeleteGenre(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM genres WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return video.ErrNotFound
	}
	return nil
}

const videoSelect = `
	SELECT v.id, v.title, v.description, v.genre_id, g.name, v.source_path,
		v.thumbnail_path, v.output_dir, v.duration_seconds, v.published,
		v.state, v.created_at, v.updated_at
	FROM videos v
	LEFT JOIN genres g ON g.id = v.genre_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(row rowScanner) (video.Asset, error) {
	var a video.Asset
	var genreID, genreName, thumbnail, outputDir sql.NullString
	var duration sql.NullInt64
	var published int
	var state, createdAt, updatedAt string

	err := row.Scan(&a.ID, &a.Title, &a.Description, &genreID, &genreName,
		&a.SourcePath, &thumbnail, &outputDir, &duration, &published,
		&state, &createdAt, &updatedAt)
	if err != nil {
		return video.Asset{}, err
	}

	if genreID.Valid {
		a.GenreID = &genreID.String
	}
	if genreName.Valid {
		a.GenreName = &genreName.String
	}
	if thumbnail.Valid {
		a.ThumbnailPath = &thumbnail.String
	}
	if outputDir.Valid {
		a.OutputDir = &outputDir.String
	}
	if duration.Valid {
		seconds := int(duration.Int64)
		a.DurationSeconds = &seconds
	}
	a.Published = published != 0
	a.State = video.ProcessingState(state)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return a, nil
}

func nullString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

// timeLayout is fixed width so stored timestamps sort lexicographically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
