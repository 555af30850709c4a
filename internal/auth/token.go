package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"

	"github.com/justestif/musical-bridges/internal/catalog"
)

// TokenProvider supplies a valid OAuth token for catalog requests.
type TokenProvider interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// Refresher exchanges a token's refresh token for a new access token.
// *spotifyauth.Authenticator satisfies it.
type Refresher interface {
	RefreshToken(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error)
}

// RefreshingProvider hands out a stored token and refreshes it once it expires.
// Refreshed tokens are passed to the persist callback so the session or cache stays current.
type RefreshingProvider struct {
	mu        sync.Mutex
	token     *oauth2.Token
	refresher Refresher
	persist   func(ctx context.Context, token *oauth2.Token) error
}

// NewRefreshingProvider creates a provider for token. persist may be nil.
func NewRefreshingProvider(token *oauth2.Token, refresher Refresher, persist func(context.Context, *oauth2.Token) error) *RefreshingProvider {
	return &RefreshingProvider{
		token:     token,
		refresher: refresher,
		persist:   persist,
	}
}

// Token returns a valid token, refreshing it if needed.
// Failures wrap catalog.ErrNotAuthenticated so callers know to re-run the OAuth flow.
func (p *RefreshingProvider) Token(ctx context.Context) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token == nil {
		return nil, fmt.Errorf("%w: no token", catalog.ErrNotAuthenticated)
	}
	if p.token.Valid() {
		return p.token, nil
	}
	if p.token.RefreshToken == "" || p.refresher == nil {
		return nil, fmt.Errorf("%w: token expired", catalog.ErrNotAuthenticated)
	}

	fresh, err := p.refresher.RefreshToken(ctx, p.token)
	if err != nil {
		return nil, fmt.Errorf("%w: refreshing token: %w", catalog.ErrNotAuthenticated, err)
	}
	// Spotify may omit the refresh token when it is unchanged.
	if fresh.RefreshToken == "" {
		fresh.RefreshToken = p.token.RefreshToken
	}
	p.token = fresh

	if p.persist != nil {
		if err := p.persist(ctx, fresh); err != nil {
			return nil, fmt.Errorf("saving refreshed token: %w", err)
		}
	}
	return fresh, nil
}

// HTTPClient returns a client that authorizes every request with a token from p.
func HTTPClient(ctx context.Context, p TokenProvider) *http.Client {
	return oauth2.NewClient(ctx, tokenSource{ctx: ctx, provider: p})
}

// tokenSource adapts a TokenProvider to oauth2.TokenSource.
type tokenSource struct {
	ctx      context.Context
	provider TokenProvider
}

func (s tokenSource) Token() (*oauth2.Token, error) {
	return s.provider.Token(s.ctx)
}
