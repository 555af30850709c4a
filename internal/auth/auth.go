// Package auth provides Spotify OAuth2 authentication, token refresh and token caching.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
)

// DefaultRedirectURL uses explicit IPv4 loopback as required by Spotify for local development.
// See: https://developer.spotify.com/documentation/web-api/concepts/redirect-uri
const DefaultRedirectURL = "http://127.0.0.1:8080/callback"

const callbackTimeout = 2 * time.Minute

var (
	// ErrMissingCredentials is returned when the Spotify client ID or secret is not configured.
	ErrMissingCredentials = errors.New("missing Spotify client ID or secret (set SPOTIFY_ID and SPOTIFY_SECRET)")

	// ErrAuthTimeout is returned when the OAuth callback is not received in time.
	ErrAuthTimeout = errors.New("authentication timed out waiting for callback")

	// ErrStateMismatch is returned when the OAuth state parameter doesn't match.
	ErrStateMismatch = errors.New("OAuth state mismatch")
)

// Scopes are the permissions requested from Spotify.
var Scopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
}

// Config holds Spotify OAuth application credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// NewSpotifyAuthenticator builds the Spotify OAuth authenticator for cfg.
// Returns ErrMissingCredentials if the client ID or secret is empty.
func NewSpotifyAuthenticator(cfg Config) (*spotifyauth.Authenticator, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = DefaultRedirectURL
	}

	return spotifyauth.New(
		spotifyauth.WithClientID(cfg.ClientID),
		spotifyauth.WithClientSecret(cfg.ClientSecret),
		spotifyauth.WithRedirectURL(cfg.RedirectURL),
		spotifyauth.WithScopes(Scopes...),
	), nil
}

// Authenticator runs the loopback OAuth flow for command-line use and caches the token.
type Authenticator struct {
	auth        *spotifyauth.Authenticator
	cache       *TokenCache
	redirectURL string
	out         io.Writer
	logger      *log.Logger
}

// New creates an Authenticator. Instructions for the user are written to out.
func New(cfg Config, cache *TokenCache, out io.Writer, logger *log.Logger) (*Authenticator, error) {
	auth, err := NewSpotifyAuthenticator(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.RedirectURL == "" {
		cfg.RedirectURL = DefaultRedirectURL
	}

	return &Authenticator{
		auth:        auth,
		cache:       cache,
		redirectURL: cfg.RedirectURL,
		out:         out,
		logger:      logger,
	}, nil
}

// Authenticate returns an HTTP client authorized for the Spotify API.
// A cached token is used when it is valid or refreshable; otherwise the full OAuth flow runs.
func (a *Authenticator) Authenticate(ctx context.Context) (*http.Client, error) {
	token, err := a.cache.Load()
	if err != nil {
		return nil, fmt.Errorf("loading cached token: %w", err)
	}

	if token != nil {
		provider := NewRefreshingProvider(token, a.auth, func(_ context.Context, t *oauth2.Token) error {
			return a.cache.Save(t)
		})
		_, tokenErr := provider.Token(ctx)
		if tokenErr == nil {
			return HTTPClient(ctx, provider), nil
		}
		a.logger.Warn("cached token unusable, starting new authentication", "err", tokenErr)
	}

	token, err = a.runOAuthFlow(ctx)
	if err != nil {
		return nil, err
	}

	if err := a.cache.Save(token); err != nil {
		a.logger.Warn("failed to cache token", "path", a.cache.Path(), "err", err)
	}

	provider := NewRefreshingProvider(token, a.auth, func(_ context.Context, t *oauth2.Token) error {
		return a.cache.Save(t)
	})
	return HTTPClient(ctx, provider), nil
}

// runOAuthFlow performs the full OAuth authorization code flow.
func (a *Authenticator) runOAuthFlow(ctx context.Context) (*oauth2.Token, error) {
	addr, path, err := callbackAddr(a.redirectURL)
	if err != nil {
		return nil, err
	}

	state, err := generateState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	tokenCh := make(chan *oauth2.Token, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		a.handleCallback(w, r, state, tokenCh, errCh)
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("callback server error: %w", err)
		}
	}()

	fmt.Fprintln(a.out, "\nTo authenticate, open this URL in your browser:")
	fmt.Fprintln(a.out, a.auth.AuthURL(state))
	fmt.Fprintln(a.out, "\nWaiting for authentication...")

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
	defer shutdown()

	select {
	case token := <-tokenCh:
		return token, nil
	case err := <-errCh:
		return nil, err
	case <-time.After(callbackTimeout):
		return nil, ErrAuthTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// handleCallback processes the OAuth callback from Spotify.
func (a *Authenticator) handleCallback(w http.ResponseWriter, r *http.Request, expectedState string, tokenCh chan<- *oauth2.Token, errCh chan<- error) {
	if r.URL.Query().Get("state") != expectedState {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		errCh <- ErrStateMismatch
		return
	}

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		http.Error(w, "Authentication failed: "+errMsg, http.StatusBadRequest)
		errCh <- fmt.Errorf("spotify auth error: %s", errMsg)
		return
	}

	token, err := a.auth.Token(r.Context(), expectedState, r)
	if err != nil {
		http.Error(w, "Failed to get token", http.StatusInternalServerError)
		errCh <- fmt.Errorf("exchanging code for token: %w", err)
		return
	}

	w.Header().Set("Content-Type", "text/html")
	fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Authentication Successful</title></head>
<body>
<h1>Authentication Successful!</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`)

	tokenCh <- token
}

// callbackAddr splits a loopback redirect URL into a listen address and handler path.
func callbackAddr(redirectURL string) (addr, path string, err error) {
	u, err := url.Parse(redirectURL)
	if err != nil {
		return "", "", fmt.Errorf("parsing redirect URL: %w", err)
	}
	if u.Host == "" {
		return "", "", fmt.Errorf("redirect URL %q has no host", redirectURL)
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	return u.Host, path, nil
}

// generateState creates a random state string for OAuth.
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
