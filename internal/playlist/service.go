package playlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/justestif/musical-bridges/internal/catalog"
	"github.com/justestif/musical-bridges/internal/embed"
	"github.com/justestif/musical-bridges/internal/emotion"
	"github.com/justestif/musical-bridges/internal/ranking"
)

// DefaultCatalogTimeout bounds a single candidate lookup.
const DefaultCatalogTimeout = 10 * time.Second

// Service coordinates emotion lookup, candidate retrieval, assembly, persistence and ranking.
type Service struct {
	repo           Repository
	assembler      *Assembler
	logger         *log.Logger
	topK           int
	catalogTimeout time.Duration
	now            func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithTopK sets how many top tracks are returned when the caller does not ask for a count.
func WithTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithCatalogTimeout bounds each candidate lookup.
func WithCatalogTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.catalogTimeout = d
		}
	}
}

// NewService creates a playlist service.
func NewService(repo Repository, assembler *Assembler, opts ...Option) *Service {
	s := &Service{
		repo:           repo,
		assembler:      assembler,
		logger:         log.Default(),
		topK:           ranking.DefaultTopK,
		catalogTimeout: DefaultCatalogTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest is the input to Create.
type CreateRequest struct {
	Emotion   string
	Intensity string
	UserID    string
}

// RankedTrack is a top pick with its score and embeddable player.
type RankedTrack struct {
	Track     catalog.Track
	Score     float64
	EmbedURL  string
	EmbedCode string
}

// CreateResult is the outcome of a successful Create.
type CreateResult struct {
	Playlist      *Playlist
	PlaylistEmbed string // empty when the playlist was not published
	TopTracks     []RankedTrack
}

// Create resolves the emotion, fetches candidates from src, assembles and persists a playlist
// and ranks its top tracks. When pub is non-nil the playlist is also published to the provider.
// Nothing is persisted if any step fails.
func (s *Service) Create(ctx context.Context, src catalog.Source, pub catalog.Publisher, req CreateRequest) (*CreateResult, error) {
	category, err := emotion.Resolve(req.Emotion, req.Intensity)
	if err != nil {
		return nil, err
	}

	profile, err := emotion.Lookup(category)
	if err != nil {
		return nil, err
	}

	if src == nil {
		return nil, errors.New("no catalog source configured")
	}

	candidates, err := s.fetchCandidates(ctx, src, profile)
	if err != nil {
		return nil, fmt.Errorf("fetching candidates for %s: %w", category, err)
	}

	p, err := s.assembler.Assemble(category, candidates)
	if err != nil {
		return nil, err
	}

	if pub != nil {
		description := fmt.Sprintf("A %s %s playlist generated by Musical Bridges", category.Intensity, category.Emotion)
		externalID, err := pub.Publish(ctx, p.Name, description, p.TrackIDs())
		if err != nil {
			return nil, fmt.Errorf("publishing playlist: %w", err)
		}
		p.ExternalID = externalID
	}

	p.ID = uuid.NewString()
	p.UserID = req.UserID
	p.CreatedAt = s.now().UTC()

	if err := s.repo.Create(ctx, p); err != nil {
		s.logger.Error("saving playlist failed", "playlist", p.ID, "category", category, "err", err)
		if p.ExternalID != "" {
			s.unpublish(ctx, pub, p.ExternalID)
		}
		return nil, fmt.Errorf("%w: saving playlist: %w", ErrPersistence, err)
	}

	s.logger.Info("playlist created",
		"playlist", p.ID,
		"category", category,
		"tracks", len(p.Tracks),
		"external_id", p.ExternalID,
	)

	result := &CreateResult{
		Playlist:  p,
		TopTracks: rankedTracks(p.Tracks, s.topK),
	}
	if p.ExternalID != "" {
		result.PlaylistEmbed = embed.Playlist(p.ExternalID)
	}
	return result, nil
}

// unpublish removes a provider playlist whose local save failed.
// It runs detached from ctx so a cancelled request still cleans up.
func (s *Service) unpublish(ctx context.Context, pub catalog.Publisher, externalID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.catalogTimeout)
	defer cancel()

	if err := pub.Unpublish(ctx, externalID); err != nil {
		s.logger.Warn("orphaned provider playlist", "external_id", externalID, "err", err)
		return
	}
	s.logger.Info("removed provider playlist after failed save", "external_id", externalID)
}

// fetchCandidates queries the source for up to the maximum playlist size under a timeout.
func (s *Service) fetchCandidates(ctx context.Context, src catalog.Source, profile emotion.FeatureProfile) ([]catalog.Track, error) {
	ctx, cancel := context.WithTimeout(ctx, s.catalogTimeout)
	defer cancel()

	candidates, err := src.Candidates(ctx, catalog.Query{
		Profile: profile,
		Limit:   s.assembler.MaxTracks(),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, catalog.ErrUpstream) {
			return nil, fmt.Errorf("%w: %w", catalog.ErrUpstream, err)
		}
		return nil, err
	}
	return candidates, nil
}

// Get returns a stored playlist. Returns ErrNotFound if it does not exist.
func (s *Service) Get(ctx context.Context, id string) (*Playlist, error) {
	p, err := s.repo.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: loading playlist: %w", ErrPersistence, err)
	}
	return p, nil
}

// TopTracks returns the k highest-scoring tracks of a stored playlist.
// A non-positive k uses the service default. An unknown playlist yields an empty slice.
func (s *Service) TopTracks(ctx context.Context, id string, k int) ([]RankedTrack, error) {
	if k <= 0 {
		k = s.topK
	}

	p, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return []RankedTrack{}, nil
	}
	if err != nil {
		return nil, err
	}
	return rankedTracks(p.Tracks, k), nil
}

func rankedTracks(tracks []catalog.Track, k int) []RankedTrack {
	scored := ranking.Rank(tracks, k)
	out := make([]RankedTrack, len(scored))
	for i, sc := range scored {
		out[i] = RankedTrack{
			Track:     sc.Track,
			Score:     sc.Score,
			EmbedURL:  embed.TrackURL(sc.Track.ID),
			EmbedCode: embed.Track(sc.Track.ID),
		}
	}
	return out
}
