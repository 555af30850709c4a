package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"

	"github.com/justestif/musical-bridges/internal/auth"
	"github.com/justestif/musical-bridges/internal/catalog"
	"github.com/justestif/musical-bridges/internal/moods"
	"github.com/justestif/musical-bridges/internal/playlist"
	"github.com/justestif/musical-bridges/internal/spotify"
)

const stateCookieName = "oauth_state"

// OAuth is the Spotify authorization code flow. *spotifyauth.Authenticator satisfies it.
type OAuth interface {
	AuthURL(state string, opts ...oauth2.AuthCodeOption) string
	Token(ctx context.Context, state string, r *http.Request, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
	RefreshToken(ctx context.Context, token *oauth2.Token) (*oauth2.Token, error)
}

// Catalog is the music provider acting for one signed-in user.
type Catalog interface {
	catalog.Source
	catalog.Publisher
	CurrentUser(ctx context.Context) (spotify.Profile, error)
}

// CatalogFactory builds a Catalog authorized by tokens.
type CatalogFactory func(ctx context.Context, tokens auth.TokenProvider) Catalog

// Refiner maps a free-text feeling onto a known emotion.
type Refiner interface {
	Refine(ctx context.Context, mainEmotion, detail string) (string, error)
}

// Handlers contains the HTTP handlers.
type Handlers struct {
	oauth     OAuth
	sessions  SessionManager
	playlists *playlist.Service
	catalog   CatalogFactory
	refiner   Refiner
	moods     moods.Config
	logger    *log.Logger
}

// Login initiates the Spotify OAuth flow (GET /auth/login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	state, err := generateOAuthState()
	if err != nil {
		h.logger.Error("generating oauth state", "err", err)
		http.Error(w, "Failed to generate state", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})

	http.Redirect(w, r, h.oauth.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback completes the OAuth flow and starts a session (GET /callback).
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil {
		http.Error(w, "Missing state cookie", http.StatusBadRequest)
		return
	}

	state := r.URL.Query().Get("state")
	if state != stateCookie.Value {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})

	if errMsg := r.URL.Query().Get("error"); errMsg != "" {
		http.Error(w, "Spotify auth error: "+errMsg, http.StatusBadRequest)
		return
	}

	token, err := h.oauth.Token(r.Context(), state, r)
	if err != nil {
		h.logger.Warn("exchanging oauth code", "err", err)
		http.Error(w, "Failed to get token", http.StatusInternalServerError)
		return
	}

	provider := auth.NewRefreshingProvider(token, h.oauth, nil)
	profile, err := h.catalog(r.Context(), provider).CurrentUser(r.Context())
	if err != nil {
		h.logger.Warn("fetching spotify profile", "err", err)
		http.Error(w, "Failed to get user info", http.StatusBadGateway)
		return
	}

	session, err := h.sessions.Create(r.Context(), token, profile.ID, profile.DisplayName)
	if err != nil {
		h.logger.Error("creating session", "user", profile.ID, "err", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	setSessionCookie(w, session)

	h.logger.Info("user signed in", "user", profile.ID)
	http.Redirect(w, r, "/api/me", http.StatusTemporaryRedirect)
}

// Logout ends the session (POST /auth/logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if session, err := sessionFromRequest(h.sessions, r); err == nil {
		if err := h.sessions.Delete(r.Context(), session.ID); err != nil {
			h.logger.Warn("deleting session", "err", err)
		}
	}
	clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// userCatalog returns a Catalog for the request's session. Refreshed tokens are written back
// to the session store.
func (h *Handlers) userCatalog(r *http.Request) (Catalog, *Session, error) {
	session, err := sessionFromRequest(h.sessions, r)
	if errors.Is(err, ErrSessionNotFound) {
		return nil, nil, &playlist.Error{Kind: playlist.KindNotAuthenticated, Message: "sign in with Spotify at /auth/login"}
	}
	if err != nil {
		return nil, nil, err
	}

	provider := auth.NewRefreshingProvider(session.Token, h.oauth, func(ctx context.Context, t *oauth2.Token) error {
		return h.sessions.UpdateToken(ctx, session.ID, t)
	})
	return h.catalog(r.Context(), provider), session, nil
}

// generateOAuthState creates a random state string for OAuth.
func generateOAuthState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
