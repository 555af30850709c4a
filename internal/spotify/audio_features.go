package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/musical-bridges/internal/catalog"
)

// FetchAudioFeatures retrieves audio features for the given tracks and
// updates them in place, in batches of 100.
// Tracks without available audio features keep nil feature fields.
func (c *Client) FetchAudioFeatures(ctx context.Context, tracks []catalog.Track) error {
	if len(tracks) == 0 {
		return nil
	}

	ids := make([]spotify.ID, len(tracks))
	indexByID := make(map[string]int, len(tracks))
	for i, t := range tracks {
		ids[i] = spotify.ID(t.ID)
		indexByID[t.ID] = i
	}

	total := len(ids)
	for i := 0; i < total; i += maxTracksPerRequest {
		end := min(i+maxTracksPerRequest, total)

		if err := c.wait(ctx); err != nil {
			return err
		}
		features, err := c.api.GetAudioFeatures(ctx, ids[i:end]...)
		if err != nil {
			return fmt.Errorf("fetching audio features (batch %d-%d): %w", i+1, end, mapError(err))
		}

		for _, f := range features {
			if f == nil {
				continue
			}
			idx, ok := indexByID[f.ID.String()]
			if !ok {
				continue
			}
			applyAudioFeatures(&tracks[idx].Features, f)
		}
	}

	return nil
}

// applyAudioFeatures copies audio feature values into catalog features.
func applyAudioFeatures(dst *catalog.Features, f *spotify.AudioFeatures) {
	dst.Acousticness = catalog.Float(f.Acousticness)
	dst.Danceability = catalog.Float(f.Danceability)
	dst.Energy = catalog.Float(f.Energy)
	dst.Instrumentalness = catalog.Float(f.Instrumentalness)
	dst.Liveness = catalog.Float(f.Liveness)
	dst.Loudness = catalog.Float(f.Loudness)
	dst.Speechiness = catalog.Float(f.Speechiness)
	dst.Tempo = catalog.Float(f.Tempo)
	dst.Valence = catalog.Float(f.Valence)
}
