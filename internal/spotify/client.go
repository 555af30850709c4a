// Package spotify adapts the Spotify Web API to the catalog Source and Publisher interfaces.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/justestif/musical-bridges/internal/catalog"
)

// Defaults applied by New.
const (
	DefaultTimeout       = 10 * time.Second
	DefaultRatePerSecond = 5
)

// api is the subset of *spotify.Client used by the adapter.
type api interface {
	CurrentUser(ctx context.Context) (*spotify.PrivateUser, error)
	GetRecommendations(ctx context.Context, seeds spotify.Seeds, attrs *spotify.TrackAttributes, opts ...spotify.RequestOption) (*spotify.Recommendations, error)
	GetTracks(ctx context.Context, ids []spotify.ID, opts ...spotify.RequestOption) ([]*spotify.FullTrack, error)
	GetAudioFeatures(ctx context.Context, ids ...spotify.ID) ([]*spotify.AudioFeatures, error)
	CreatePlaylistForUser(ctx context.Context, userID, playlistName, description string, public bool, collaborative bool) (*spotify.FullPlaylist, error)
	AddTracksToPlaylist(ctx context.Context, playlistID spotify.ID, trackIDs ...spotify.ID) (string, error)
	UnfollowPlaylist(ctx context.Context, playlistID spotify.ID) error
}

// Client wraps the Spotify API client and implements catalog.Source and catalog.Publisher.
type Client struct {
	api     api
	limiter *rate.Limiter
	timeout time.Duration
	public  bool
	logger  *log.Logger

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

var (
	_ catalog.Source    = (*Client)(nil)
	_ catalog.Publisher = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithLimiter sets the limiter every API call waits on.
// Share one limiter between clients to pace all requests made by a process.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithTimeout bounds a whole candidate lookup.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithPublicPlaylists makes published playlists public.
func WithPublicPlaylists(public bool) Option {
	return func(c *Client) {
		c.public = public
	}
}

// WithLogger sets the client logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithSeed makes genre seed selection reproducible.
func WithSeed(seed uint64) Option {
	return func(c *Client) {
		c.rng = rand.New(rand.NewPCG(seed, seed))
	}
}

// New creates a new Spotify client wrapper.
// The HTTP client should already carry the user's OAuth token.
// When retry is set the underlying client retries rate-limited requests itself.
func New(httpClient *http.Client, retry bool, opts ...Option) *Client {
	return newClient(spotify.New(httpClient, spotify.WithRetry(retry)), opts...)
}

func newClient(a api, opts ...Option) *Client {
	c := &Client{
		api:     a,
		limiter: NewLimiter(DefaultRatePerSecond),
		timeout: DefaultTimeout,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return c
}

// NewLimiter returns a limiter allowing perSecond requests per second with a matching burst.
func NewLimiter(perSecond float64) *rate.Limiter {
	burst := max(int(perSecond), 1)
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Profile is the signed-in Spotify user.
type Profile struct {
	ID          string
	DisplayName string
	Email       string
}

// CurrentUser returns the profile of the user the client is authorized for.
func (c *Client) CurrentUser(ctx context.Context) (Profile, error) {
	if err := c.wait(ctx); err != nil {
		return Profile{}, err
	}
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("getting current user: %w", mapError(err))
	}
	return Profile{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
	}, nil
}

// UserID returns the current user's Spotify ID.
func (c *Client) UserID(ctx context.Context) (string, error) {
	p, err := c.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	return p.ID, nil
}

// wait blocks until the limiter admits one more request.
func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: waiting for rate limiter: %w", catalog.ErrUpstream, err)
	}
	return nil
}

// mapError classifies a Spotify or transport error into the catalog error taxonomy.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, catalog.ErrNotAuthenticated) ||
		errors.Is(err, catalog.ErrUpstream) ||
		errors.Is(err, catalog.ErrInsufficientCandidates) {
		return err
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: refreshing token: %w", catalog.ErrNotAuthenticated, err)
	}

	var apiErr spotify.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		return fmt.Errorf("%w: %w", catalog.ErrNotAuthenticated, err)
	}

	return fmt.Errorf("%w: %w", catalog.ErrUpstream, err)
}
