// Package playlist assembles emotion playlists from catalog candidates,
// persists them and serves their top-ranked tracks.
package playlist

import (
	"context"
	"time"

	"github.com/justestif/musical-bridges/internal/catalog"
	"github.com/justestif/musical-bridges/internal/emotion"
)

// Default playlist size bounds.
const (
	DefaultMinTracks = 10
	DefaultMaxTracks = 20
)

// Playlist is a named set of tracks generated for one emotion category.
type Playlist struct {
	ID         string
	Name       string
	Category   emotion.Category
	ExternalID string // provider playlist ID, empty if not published
	UserID     string // owner, empty for anonymous playlists
	CreatedAt  time.Time
	Tracks     []catalog.Track
}

// TrackIDs returns the catalog IDs of the playlist's tracks in order.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}

// Repository persists playlists.
//
// Create must store the playlist and its track associations atomically.
// Get returns ErrNotFound when no playlist has the given ID.
type Repository interface {
	Create(ctx context.Context, p *Playlist) error
	Get(ctx context.Context, id string) (*Playlist, error)
	Count(ctx context.Context) (int, error)
}
