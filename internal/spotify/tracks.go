package spotify

import (
	"context"
	"fmt"
	"strings"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/musical-bridges/internal/catalog"
	"github.com/justestif/musical-bridges/internal/emotion"
)

// Spotify API batch limits.
const (
	maxRecommendations  = 100
	maxTracksPerLookup  = 50
	maxTracksPerRequest = 100
)

// Candidates asks the recommendation endpoint for tracks matching the profile, then
// fills in popularity, album and audio features for each of them.
// Returns catalog.ErrInsufficientCandidates when Spotify recommends nothing.
func (c *Client) Candidates(ctx context.Context, q catalog.Query) ([]catalog.Track, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	limit := q.Limit
	if limit <= 0 || limit > maxRecommendations {
		limit = maxRecommendations
	}

	c.mu.Lock()
	genres := catalog.SelectGenreSeeds(q.Profile.Genres, catalog.PopularGenres, c.rng)
	c.mu.Unlock()

	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	recs, err := c.api.GetRecommendations(ctx,
		spotify.Seeds{Genres: genres},
		trackAttributes(q.Profile),
		spotify.Limit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("getting recommendations: %w", mapError(err))
	}
	if len(recs.Tracks) == 0 {
		return nil, fmt.Errorf("%w: no recommendations for genres %v", catalog.ErrInsufficientCandidates, genres)
	}

	ids := make([]spotify.ID, len(recs.Tracks))
	for i, t := range recs.Tracks {
		ids[i] = t.ID
	}

	tracks, err := c.fetchTracks(ctx, ids)
	if err != nil {
		return nil, err
	}
	if err := c.FetchAudioFeatures(ctx, tracks); err != nil {
		return nil, err
	}

	c.logger.Debug("fetched candidates", "genres", genres, "tracks", len(tracks))
	return tracks, nil
}

// fetchTracks loads full track metadata in batches of 50.
func (c *Client) fetchTracks(ctx context.Context, ids []spotify.ID) ([]catalog.Track, error) {
	tracks := make([]catalog.Track, 0, len(ids))
	for i := 0; i < len(ids); i += maxTracksPerLookup {
		end := min(i+maxTracksPerLookup, len(ids))

		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		full, err := c.api.GetTracks(ctx, ids[i:end])
		if err != nil {
			return nil, fmt.Errorf("getting tracks (batch %d-%d): %w", i+1, end, mapError(err))
		}
		for _, ft := range full {
			if ft == nil {
				continue // unavailable in the user's market
			}
			tracks = append(tracks, convertTrack(ft))
		}
	}
	return tracks, nil
}

// trackAttributes converts a feature profile into recommendation targets.
func trackAttributes(p emotion.FeatureProfile) *spotify.TrackAttributes {
	attrs := spotify.NewTrackAttributes().
		TargetDanceability(p.Danceability).
		TargetEnergy(p.Energy).
		TargetValence(p.Valence).
		TargetLoudness(p.Loudness).
		TargetAcousticness(p.Acousticness).
		TargetInstrumentalness(p.Instrumentalness).
		TargetLiveness(p.Liveness).
		TargetMode(int(p.Mode))
	if p.MinTempo > 0 {
		attrs = attrs.MinTempo(p.MinTempo)
	}
	if p.MaxTempo > 0 {
		attrs = attrs.MaxTempo(p.MaxTempo)
	}
	return attrs
}

// convertTrack converts a Spotify FullTrack to catalog.Track.
// Audio features are filled in separately.
func convertTrack(ft *spotify.FullTrack) catalog.Track {
	artists := make([]string, len(ft.Artists))
	for i, a := range ft.Artists {
		artists[i] = a.Name
	}

	return catalog.Track{
		ID:         ft.ID.String(),
		Title:      ft.Name,
		Artist:     strings.Join(artists, ", "),
		Album:      ft.Album.Name,
		Popularity: int(ft.Popularity),
		DurationMs: int(ft.Duration),
	}
}
