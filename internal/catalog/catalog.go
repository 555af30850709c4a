// Package catalog defines the track model and the music catalog collaborators
// used to find candidate tracks and publish playlists.
package catalog

import (
	"context"
	"errors"

	"github.com/justestif/musical-bridges/internal/emotion"
)

// Sentinel errors returned by catalog implementations.
var (
	// ErrNotAuthenticated is returned when the provider rejects or lacks credentials.
	// Callers must re-run the OAuth flow.
	ErrNotAuthenticated = errors.New("catalog: not authenticated")

	// ErrInsufficientCandidates is returned when the provider has no matching tracks.
	ErrInsufficientCandidates = errors.New("catalog: insufficient candidates")

	// ErrUpstream is returned for transient provider or network failures.
	ErrUpstream = errors.New("catalog: upstream error")
)

// Features holds a track's audio features. Nil fields were not provided by the catalog.
type Features struct {
	Danceability     *float32
	Energy           *float32
	Loudness         *float32
	Speechiness      *float32
	Acousticness     *float32
	Instrumentalness *float32
	Liveness         *float32
	Valence          *float32
	Tempo            *float32
}

// Complete reports whether every feature is present.
func (f Features) Complete() bool {
	return f.Danceability != nil && f.Energy != nil && f.Loudness != nil &&
		f.Speechiness != nil && f.Acousticness != nil && f.Instrumentalness != nil &&
		f.Liveness != nil && f.Valence != nil && f.Tempo != nil
}

// Track is one song returned by the catalog.
type Track struct {
	ID         string // catalog ID
	Title      string
	Artist     string // comma-separated artist names
	Album      string
	Popularity int // 0-100
	DurationMs int
	Features   Features
}

// Query describes a candidate lookup.
type Query struct {
	Profile emotion.FeatureProfile
	Limit   int
}

// Source finds candidate tracks for a feature profile.
type Source interface {
	Candidates(ctx context.Context, q Query) ([]Track, error)
}

// Publisher creates a playlist on the provider and returns its shareable ID.
// Unpublish removes a playlist created by Publish from the user's library.
type Publisher interface {
	Publish(ctx context.Context, name, description string, trackIDs []string) (string, error)
	Unpublish(ctx context.Context, externalID string) error
}

// Value returns the feature value or 0 when it is missing.
func Value(v *float32) float64 {
	if v == nil {
		return 0
	}
	return float64(*v)
}

// Float returns a pointer to v, for building Features literals.
func Float(v float32) *float32 {
	return &v
}
