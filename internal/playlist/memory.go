package playlist

import (
	"context"
	"slices"
	"sync"
)

// MemoryRepository is a Repository backed by a map. Playlists do not survive a restart.
type MemoryRepository struct {
	mu        sync.RWMutex
	playlists map[string]*Playlist
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		playlists: make(map[string]*Playlist),
	}
}

// Create stores a copy of p.
func (r *MemoryRepository) Create(ctx context.Context, p *Playlist) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.playlists[p.ID] = clonePlaylist(p)
	return nil
}

// Get returns a copy of the stored playlist.
func (r *MemoryRepository) Get(ctx context.Context, id string) (*Playlist, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.playlists[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePlaylist(p), nil
}

// Count returns the number of stored playlists.
func (r *MemoryRepository) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.playlists), nil
}

func clonePlaylist(p *Playlist) *Playlist {
	cp := *p
	cp.Tracks = slices.Clone(p.Tracks)
	return &cp
}
