package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/justestif/musical-bridges/internal/emotion"
	"github.com/justestif/musical-bridges/internal/playlist"
)

// PlaylistRepository stores generated playlists. It implements playlist.Repository.
type PlaylistRepository struct {
	pool *pgxpool.Pool
}

var _ playlist.Repository = (*PlaylistRepository)(nil)

// Create inserts a playlist, upserts its tracks and links them in order,
// all in one transaction.
func (r *PlaylistRepository) Create(ctx context.Context, p *playlist.Playlist) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	playlistQuery := `
		INSERT INTO playlists (id, name, category, external_id, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = tx.Exec(ctx, playlistQuery,
		p.ID,
		p.Name,
		p.Category.String(),
		p.ExternalID,
		p.UserID,
		p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting playlist: %w", err)
	}

	batch := &pgx.Batch{}
	for _, t := range p.Tracks {
		queueTrackUpsert(batch, t)
	}
	for i, t := range p.Tracks {
		batch.Queue(
			`INSERT INTO playlist_tracks (playlist_id, track_id, position) VALUES ($1, $2, $3)`,
			p.ID, t.ID, i,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting playlist tracks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Get retrieves a playlist and its tracks in playlist order.
// Returns playlist.ErrNotFound when the ID is unknown.
func (r *PlaylistRepository) Get(ctx context.Context, id string) (*playlist.Playlist, error) {
	query := `
		SELECT id, name, category, external_id, user_id, created_at
		FROM playlists
		WHERE id = $1
	`
	var (
		p        playlist.Playlist
		category string
	)
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&category,
		&p.ExternalID,
		&p.UserID,
		&p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, playlist.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying playlist: %w", err)
	}

	p.Category, err = emotion.ParseCategory(category)
	if err != nil {
		return nil, fmt.Errorf("playlist %s: %w", id, err)
	}

	rows, err := r.pool.Query(ctx, selectPlaylistTracksQuery, id)
	if err != nil {
		return nil, fmt.Errorf("querying playlist tracks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
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
func (r *PlaylistRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM playlists`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting playlists: %w", err)
	}
	return n, nil
}
