package emotion

import "fmt"

// Mode is the musical mode a profile targets.
type Mode int

const (
	Minor Mode = 0
	Major Mode = 1
)

// FeatureProfile holds the target audio features for one category.
// Tempo bounds of zero mean "unbounded".
type FeatureProfile struct {
	Danceability     float64
	Energy           float64
	Valence          float64
	Loudness         float64 // dB
	Acousticness     float64
	Instrumentalness float64
	Liveness         float64
	Mode             Mode
	MinTempo         float64
	MaxTempo         float64
	Genres           []string // preferred genre seeds
}

// profiles is the static category table. Energy, valence and tempo bounds come from the
// seed data the recommendation endpoint was first tuned with.
var profiles = map[Category]FeatureProfile{
	SadNormal: {
		Danceability:     0.40,
		Energy:           0.40,
		Valence:          0.30,
		Loudness:         -9,
		Acousticness:     0.50,
		Instrumentalness: 0.10,
		Liveness:         0.15,
		Mode:             Minor,
		MaxTempo:         100,
		Genres:           []string{"sad", "acoustic", "singer-songwriter", "indie", "piano", "soul"},
	},
	SadIntense: {
		Danceability:     0.30,
		Energy:           0.30,
		Valence:          0.20,
		Loudness:         -12,
		Acousticness:     0.70,
		Instrumentalness: 0.20,
		Liveness:         0.10,
		Mode:             Minor,
		MaxTempo:         80,
		Genres:           []string{"sad", "piano", "classical", "ambient", "emo", "blues", "sleep"},
	},
	AngryNormal: {
		Danceability:     0.50,
		Energy:           0.80,
		Valence:          0.30,
		Loudness:         -6,
		Acousticness:     0.10,
		Instrumentalness: 0.05,
		Liveness:         0.20,
		Mode:             Minor,
		MinTempo:         120,
		Genres:           []string{"rock", "punk", "hard-rock", "alt-rock"},
	},
	AngryIntense: {
		Danceability:     0.45,
		Energy:           0.90,
		Valence:          0.20,
		Loudness:         -4,
		Acousticness:     0.05,
		Instrumentalness: 0.10,
		Liveness:         0.25,
		Mode:             Minor,
		MinTempo:         140,
		Genres:           []string{"metal", "heavy-metal", "metalcore", "death-metal", "grindcore", "hardcore"},
	},
}

// Lookup returns the feature profile for a category.
// The returned profile owns a copy of the genre slice.
func Lookup(c Category) (FeatureProfile, error) {
	p, ok := profiles[c]
	if !ok {
		return FeatureProfile{}, fmt.Errorf("%w: %s", ErrUnknownCategory, c)
	}
	p.Genres = append([]string(nil), p.Genres...)
	return p, nil
}
