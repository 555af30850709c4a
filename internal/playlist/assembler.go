package playlist

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/justestif/musical-bridges/internal/catalog"
	"github.com/justestif/musical-bridges/internal/emotion"
)

// Assembler samples candidate tracks into playlists whose size lies within configured bounds.
// It is safe for concurrent use.
type Assembler struct {
	minTracks int
	maxTracks int
	rng       *rand.Rand
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithBounds sets the minimum and maximum playlist size.
func WithBounds(minTracks, maxTracks int) AssemblerOption {
	return func(a *Assembler) {
		a.minTracks = minTracks
		a.maxTracks = maxTracks
	}
}

// WithSource sets the random source used for sampling. Tests pass a fixed seed.
func WithSource(src rand.Source) AssemblerOption {
	return func(a *Assembler) {
		a.rng = rand.New(&lockedSource{src: src})
	}
}

// NewAssembler creates an Assembler with default bounds and a runtime-seeded random source.
func NewAssembler(opts ...AssemblerOption) (*Assembler, error) {
	a := &Assembler{
		minTracks: DefaultMinTracks,
		maxTracks: DefaultMaxTracks,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.rng == nil {
		a.rng = rand.New(&lockedSource{src: rand.NewPCG(rand.Uint64(), rand.Uint64())})
	}

	if a.minTracks < 1 {
		return nil, fmt.Errorf("minimum playlist size must be at least 1, got %d", a.minTracks)
	}
	if a.maxTracks < a.minTracks {
		return nil, fmt.Errorf("maximum playlist size %d is below minimum %d", a.maxTracks, a.minTracks)
	}
	return a, nil
}

// MinTracks returns the minimum playlist size.
func (a *Assembler) MinTracks() int { return a.minTracks }

// MaxTracks returns the maximum playlist size.
func (a *Assembler) MaxTracks() int { return a.maxTracks }

// Assemble draws a playlist size uniformly from [min, min(len(candidates), max)] and
// samples that many distinct candidates without replacement.
// Returns ErrInsufficientTracks when fewer than the minimum distinct candidates exist.
func (a *Assembler) Assemble(c emotion.Category, candidates []catalog.Track) (*Playlist, error) {
	unique := dedupeTracks(candidates)
	if len(unique) < a.minTracks {
		return nil, fmt.Errorf("%w: found %d tracks for %s, need at least %d",
			ErrInsufficientTracks, len(unique), c, a.minTracks)
	}

	upper := min(len(unique), a.maxTracks)
	n := a.minTracks + a.rng.IntN(upper-a.minTracks+1)

	picks := a.rng.Perm(len(unique))[:n]
	tracks := make([]catalog.Track, n)
	for i, idx := range picks {
		tracks[i] = unique[idx]
	}

	return &Playlist{
		Name:     c.PlaylistName(),
		Category: c,
		Tracks:   tracks,
	}, nil
}

// dedupeTracks drops repeated catalog IDs, keeping the first occurrence.
func dedupeTracks(tracks []catalog.Track) []catalog.Track {
	seen := make(map[string]struct{}, len(tracks))
	out := make([]catalog.Track, 0, len(tracks))
	for _, t := range tracks {
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out
}

// lockedSource serializes access to a rand.Source.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}
