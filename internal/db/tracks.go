package db

import (
	"github.com/jackc/pgx/v5"

	"github.com/justestif/musical-bridges/internal/catalog"
)

const upsertTrackQuery = `
	INSERT INTO tracks (id, title, artist, album, popularity, duration_ms,
		danceability, energy, loudness, speechiness, acousticness,
		instrumentalness, liveness, valence, tempo, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		artist = EXCLUDED.artist,
		album = EXCLUDED.album,
		popularity = EXCLUDED.popularity,
		duration_ms = EXCLUDED.duration_ms,
		danceability = EXCLUDED.danceability,
		energy = EXCLUDED.energy,
		loudness = EXCLUDED.loudness,
		speechiness = EXCLUDED.speechiness,
		acousticness = EXCLUDED.acousticness,
		instrumentalness = EXCLUDED.instrumentalness,
		liveness = EXCLUDED.liveness,
		valence = EXCLUDED.valence,
		tempo = EXCLUDED.tempo,
		updated_at = NOW()
`

const selectPlaylistTracksQuery = `
	SELECT t.id, t.title, t.artist, t.album, t.popularity, t.duration_ms,
		t.danceability, t.energy, t.loudness, t.speechiness, t.acousticness,
		t.instrumentalness, t.liveness, t.valence, t.tempo
	FROM tracks t
	JOIN playlist_tracks pt ON pt.track_id = t.id
	WHERE pt.playlist_id = $1
	ORDER BY pt.position
`

// queueTrackUpsert adds an insert-or-update of t to the batch.
// Missing audio features are stored as NULL.
func queueTrackUpsert(b *pgx.Batch, t catalog.Track) {
	f := t.Features
	b.Queue(upsertTrackQuery,
		t.ID,
		t.Title,
		t.Artist,
		t.Album,
		t.Popularity,
		t.DurationMs,
		f.Danceability,
		f.Energy,
		f.Loudness,
		f.Speechiness,
		f.Acousticness,
		f.Instrumentalness,
		f.Liveness,
		f.Valence,
		f.Tempo,
	)
}

// scanTrack reads one row of selectPlaylistTracksQuery.
func scanTrack(row pgx.Row) (catalog.Track, error) {
	var t catalog.Track
	f := &t.Features
	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.Artist,
		&t.Album,
		&t.Popularity,
		&t.DurationMs,
		&f.Danceability,
		&f.Energy,
		&f.Loudness,
		&f.Speechiness,
		&f.Acousticness,
		&f.Instrumentalness,
		&f.Liveness,
		&f.Valence,
		&f.Tempo,
	)
	return t, err
}
