// Package sqlite provides a SQLite-backed playlist repository for single-user
// and local deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver

	"github.com/justestif/musical-bridges/internal/catalog"
	"github.com/justestif/musical-bridges/internal/emotion"
	"github.com/justestif/musical-bridges/internal/playlist"
)

const schema = `
CREATE TABLE IF NOT EXISTS tracks (
	id               TEXT PRIMARY KEY,
	title            TEXT NOT NULL,
	artist           TEXT NOT NULL,
	album            TEXT NOT NULL DEFAULT '',
	popularity       INTEGER NOT NULL DEFAULT 0,
	duration_ms      INTEGER NOT NULL DEFAULT 0,
	danceability     REAL,
	energy           REAL,
	loudness         REAL,
	speechiness      REAL,
	acousticness     REAL,
	instrumentalness REAL,
	liveness         REAL,
	valence          REAL,
	tempo            REAL
);

CREATE TABLE IF NOT EXISTS playlists (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	category    TEXT NOT NULL,
	external_id TEXT NOT NULL DEFAULT '',
	user_id     TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS playlist_tracks (
	playlist_id TEXT NOT NULL,
	track_id    TEXT NOT NULL,
	position    INTEGER NOT NULL,
	PRIMARY KEY (playlist_id, track_id),
	FOREIGN KEY (playlist_id) REFERENCES playlists(id) ON DELETE CASCADE,
	FOREIGN KEY (track_id) REFERENCES tracks(id)
);
`

// Store implements playlist.Repository on a SQLite database file.
type Store struct {
	db *sql.DB
}

var _ playlist.Repository = (*Store)(nil)

// Open opens (or creates) the database at path and ensures the schema exists.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a playlist, upserts its tracks and links them in order in one transaction.
func (s *Store) Create(ctx context.Context, p *playlist.Playlist) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO playlists (id, name, category, external_id, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Category.String(), p.ExternalID, p.UserID, p.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting playlist: %w", err)
	}

	upsertTrack, err := tx.PrepareContext(ctx, `
		INSERT INTO tracks (id, title, artist, album, popularity, duration_ms,
			danceability, energy, loudness, speechiness, acousticness,
			instrumentalness, liveness, valence, tempo)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			popularity = excluded.popularity,
			duration_ms = excluded.duration_ms,
			danceability = excluded.danceability,
			energy = excluded.energy,
			loudness = excluded.loudness,
			speechiness = excluded.speechiness,
			acousticness = excluded.acousticness,
			instrumentalness = excluded.instrumentalness,
			liveness = excluded.liveness,
			valence = excluded.valence,
			tempo = excluded.tempo
	`)
	if err != nil {
		return fmt.Errorf("preparing track upsert: %w", err)
	}
	defer upsertTrack.Close()

	link, err := tx.PrepareContext(ctx, `
		INSERT INTO playlist_tracks (playlist_id, track_id, position) VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing track link: %w", err)
	}
	defer link.Close()

	for i, t := range p.Tracks {
		f := t.Features
		if _, err := upsertTrack.ExecContext(ctx,
			t.ID, t.Title, t.Artist, t.Album, t.Popularity, t.DurationMs,
			f.Danceability, f.Energy, f.Loudness, f.Speechiness, f.Acousticness,
			f.Instrumentalness, f.Liveness, f.Valence, f.Tempo,
		); err != nil {
			return fmt.Errorf("saving track %s: %w", t.ID, err)
		}
		if _, err := link.ExecContext(ctx, p.ID, t.ID, i); err != nil {
			return fmt.Errorf("linking track %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Get retrieves a playlist and its tracks in playlist order.
// Returns playlist.ErrNotFound when the ID is unknown.
func (s *Store) Get(ctx context.Context, id string) (*playlist.Playlist, error) {
	var (
		p        playlist.Playlist
		category string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, external_id, user_id, created_at
		FROM playlists
		WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &category, &p.ExternalID, &p.UserID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, playlist.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying playlist: %w", err)
	}

	p.Category, err = emotion.ParseCategory(category)
	if err != nil {
		return nil, fmt.Errorf("playlist %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.title, t.artist, t.album, t.popularity, t.duration_ms,
			t.danceability, t.energy, t.loudness, t.speechiness, t.acousticness,
			t.instrumentalness, t.liveness, t.valence, t.tempo
		FROM tracks t
		JOIN playlist_tracks pt ON pt.track_id = t.id
		WHERE pt.playlist_id = ?
		ORDER BY pt.position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("querying playlist tracks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t catalog.Track
		f := &t.Features
		if err := rows.Scan(
			&t.ID, &t.Title, &t.Artist, &t.Album, &t.Popularity, &t.DurationMs,
			&f.Danceability, &f.Energy, &f.Loudness, &f.Speechiness, &f.Acousticness,
			&f.Instrumentalness, &f.Liveness, &f.Valence, &f.Tempo,
		); err != nil {
			return nil, fmt.Errorf("scanning track: %w", err)
		}
		p.Tracks = append(p.Tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating playlist tracks: %w", err)
	}
	return &p, nil
}

// Count returns the number of stored playlists.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM playlists`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting playlists: %w", err)
	}
	return n, nil
}
