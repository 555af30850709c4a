// Package ranking scores tracks with a fixed weighted combination of audio
// features and popularity and selects the top tracks of a playlist.
package ranking

import (
	"cmp"
	"slices"

	"github.com/justestif/musical-bridges/internal/catalog"
)

// DefaultTopK is the number of top picks returned when no limit is given.
const DefaultTopK = 5

// Feature weights. Popularity is on a 0-100 scale and dominates the score;
// audio features act as secondary signals.
const (
	weightDanceability     = 0.10
	weightEnergy           = 0.10
	weightLoudness         = 0.05
	weightSpeechiness      = 0.05
	weightAcousticness     = 0.10
	weightInstrumentalness = 0.10
	weightLiveness         = 0.05
	weightValence          = 0.10
	weightTempo            = 0.05
	weightPopularity       = 0.30
)

// Scored pairs a track with its composite score.
type Scored struct {
	Track catalog.Track
	Score float64
}

// Score computes the composite score of a track. Missing features count as zero.
func Score(t catalog.Track) float64 {
	f := t.Features
	return weightDanceability*catalog.Value(f.Danceability) +
		weightEnergy*catalog.Value(f.Energy) +
		weightLoudness*catalog.Value(f.Loudness) +
		weightSpeechiness*catalog.Value(f.Speechiness) +
		weightAcousticness*catalog.Value(f.Acousticness) +
		weightInstrumentalness*catalog.Value(f.Instrumentalness) +
		weightLiveness*catalog.Value(f.Liveness) +
		weightValence*catalog.Value(f.Valence) +
		weightTempo*catalog.Value(f.Tempo) +
		weightPopularity*float64(t.Popularity)
}

// Rank returns at most k tracks ordered by descending score.
// Equal scores keep their original order. The input slice is not modified.
// A non-positive k returns nil.
func Rank(tracks []catalog.Track, k int) []Scored {
	if k <= 0 || len(tracks) == 0 {
		return nil
	}

	scored := make([]Scored, len(tracks))
	for i, t := range tracks {
		scored[i] = Scored{Track: t, Score: Score(t)}
	}

	slices.SortStableFunc(scored, func(a, b Scored) int {
		return cmp.Compare(b.Score, a.Score)
	})

	return scored[:min(k, len(scored))]
}
