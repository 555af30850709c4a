package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/justestif/musical-bridges/internal/catalog"
	"github.com/justestif/musical-bridges/internal/emotion"
	"github.com/justestif/musical-bridges/internal/moods"
	"github.com/justestif/musical-bridges/internal/playlist"
)

const maxBodyBytes = 1 << 16

type errorResponse struct {
	Error *playlist.Error `json:"error"`
}

type categoryJSON struct {
	Category  string `json:"category"`
	Emotion   string `json:"emotion"`
	Intensity string `json:"intensity"`
	Name      string `json:"name"`
}

type createPlaylistRequest struct {
	Emotion   string `json:"emotion"`
	Intensity string `json:"intensity"`
	Publish   *bool  `json:"publish,omitempty"`
}

type createPlaylistResponse struct {
	PlaylistID           string            `json:"playlist_id"`
	Name                 string            `json:"name"`
	Emotion              string            `json:"emotion"`
	TrackCount           int               `json:"track_count"`
	SpotifyPlaylistID    string            `json:"spotify_playlist_id,omitempty"`
	EmbeddedPlaylistCode string            `json:"embedded_playlist_code,omitempty"`
	TopTracks            []rankedTrackJSON `json:"top_tracks"`
}

type rankedTrackJSON struct {
	ID                string  `json:"id"`
	Title             string  `json:"title"`
	Artist            string  `json:"artist"`
	Album             string  `json:"album"`
	Popularity        int     `json:"popularity"`
	Score             float64 `json:"score"`
	SpotifyEmbedURL   string  `json:"spotify_embed_url"`
	EmbeddedTrackCode string  `json:"embedded_track_code"`
}

type featuresJSON struct {
	Danceability     *float32 `json:"danceability,omitempty"`
	Energy           *float32 `json:"energy,omitempty"`
	Loudness         *float32 `json:"loudness,omitempty"`
	Speechiness      *float32 `json:"speechiness,omitempty"`
	Acousticness     *float32 `json:"acousticness,omitempty"`
	Instrumentalness *float32 `json:"instrumentalness,omitempty"`
	Liveness         *float32 `json:"liveness,omitempty"`
	Valence          *float32 `json:"valence,omitempty"`
	Tempo            *float32 `json:"tempo,omitempty"`
}

type trackJSON struct {
	ID         string       `json:"id"`
	Title      string       `json:"title"`
	Artist     string       `json:"artist"`
	Album      string       `json:"album"`
	Popularity int          `json:"popularity"`
	DurationMs int          `json:"duration_ms"`
	Features   featuresJSON `json:"features"`
}

type playlistJSON struct {
	ID                string      `json:"id"`
	Name              string      `json:"name"`
	Emotion           string      `json:"emotion"`
	SpotifyPlaylistID string      `json:"spotify_playlist_id,omitempty"`
	UserID            string      `json:"user_id,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	Tracks            []trackJSON `json:"tracks"`
}

type moodGroupJSON struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Energy       float32  `json:"energy"`
	Valence      float32  `json:"valence"`
	Danceability float32  `json:"danceability"`
	Acousticness float32  `json:"acousticness"`
	TrackIDs     []string `json:"track_ids"`
}

type moodsJSON struct {
	PlaylistID  string          `json:"playlist_id"`
	Overall     moodGroupJSON   `json:"overall"`
	Groups      []moodGroupJSON `json:"groups"`
	Unclustered []string        `json:"unclustered"`
}

type refineRequest struct {
	MainEmotion   string `json:"mainEmotion"`
	EmotionDetail string `json:"emotionDetail"`
}

// Health reports liveness (GET /health).
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Me reports the signed-in user (GET /api/me).
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	session, err := sessionFromRequest(h.sessions, r)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user_id":       session.UserID,
		"user_name":     session.UserName,
	})
}

// Emotions lists the supported categories (GET /api/emotions).
func (h *Handlers) Emotions(w http.ResponseWriter, r *http.Request) {
	cats := emotion.Categories()
	out := make([]categoryJSON, len(cats))
	for i, c := range cats {
		out[i] = categoryJSON{
			Category:  c.String(),
			Emotion:   c.Emotion.String(),
			Intensity: c.Intensity.String(),
			Name:      c.PlaylistName(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// CreatePlaylist generates, publishes and stores a playlist (POST /api/create_playlist).
func (h *Handlers) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	var req createPlaylistRequest
	if !h.decode(w, r, &req) {
		return
	}

	// Reject bad input before touching the catalog or the session.
	if _, err := emotion.Resolve(req.Emotion, req.Intensity); err != nil {
		h.writeError(w, err)
		return
	}

	cat, session, err := h.userCatalog(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	var pub catalog.Publisher = cat
	if req.Publish != nil && !*req.Publish {
		pub = nil
	}

	result, err := h.playlists.Create(r.Context(), cat, pub, playlist.CreateRequest{
		Emotion:   req.Emotion,
		Intensity: req.Intensity,
		UserID:    session.UserID,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	p := result.Playlist
	writeJSON(w, http.StatusCreated, createPlaylistResponse{
		PlaylistID:           p.ID,
		Name:                 p.Name,
		Emotion:              p.Category.String(),
		TrackCount:           len(p.Tracks),
		SpotifyPlaylistID:    p.ExternalID,
		EmbeddedPlaylistCode: result.PlaylistEmbed,
		TopTracks:            toRankedJSON(result.TopTracks),
	})
}

// TopTracks returns the best tracks of a stored playlist (GET /api/recommend_top_tracks/{id}).
// An optional ?k= overrides the default count. Unknown playlists yield an empty list.
func (h *Handlers) TopTracks(w http.ResponseWriter, r *http.Request) {
	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{&playlist.Error{
				Kind:    playlist.KindInvalidRequest,
				Message: "k must be a positive integer",
			}})
			return
		}
		k = n
	}

	top, err := h.playlists.TopTracks(r.Context(), chi.URLParam(r, "id"), k)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"top_tracks": toRankedJSON(top)})
}

// Playlist returns a stored playlist with all its tracks (GET /api/playlist/{id}).
func (h *Handlers) Playlist(w http.ResponseWriter, r *http.Request) {
	p, err := h.playlists.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	tracks := make([]trackJSON, len(p.Tracks))
	for i, t := range p.Tracks {
		tracks[i] = toTrackJSON(t)
	}
	writeJSON(w, http.StatusOK, playlistJSON{
		ID:                p.ID,
		Name:              p.Name,
		Emotion:           p.Category.String(),
		SpotifyPlaylistID: p.ExternalID,
		UserID:            p.UserID,
		CreatedAt:         p.CreatedAt,
		Tracks:            tracks,
	})
}

// Moods groups a stored playlist's tracks by mood (GET /api/playlist/{id}/moods).
func (h *Handlers) Moods(w http.ResponseWriter, r *http.Request) {
	p, err := h.playlists.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	a := moods.Analyze(p.Tracks, h.moods)
	groups := make([]moodGroupJSON, len(a.Groups))
	for i, g := range a.Groups {
		groups[i] = toMoodGroupJSON(g)
	}
	writeJSON(w, http.StatusOK, moodsJSON{
		PlaylistID:  p.ID,
		Overall:     toMoodGroupJSON(a.Overall),
		Groups:      groups,
		Unclustered: trackIDs(a.Unclustered),
	})
}

// RefineEmotion maps a free-text description onto a known emotion (POST /api/refine_emotion).
func (h *Handlers) RefineEmotion(w http.ResponseWriter, r *http.Request) {
	if h.refiner == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{&playlist.Error{
			Kind:    playlist.KindUnavailable,
			Message: "emotion refinement is not configured",
		}})
		return
	}

	var req refineRequest
	if !h.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.MainEmotion) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{&playlist.Error{
			Kind:    playlist.KindInvalidRequest,
			Message: "mainEmotion is required",
		}})
		return
	}

	refined, err := h.refiner.Refine(r.Context(), req.MainEmotion, req.EmotionDetail)
	if err != nil {
		h.logger.Warn("refining emotion", "main", req.MainEmotion, "err", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{&playlist.Error{
			Kind:    playlist.KindUpstream,
			Message: "emotion refinement failed",
		}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"emotion": refined})
}

// decode reads a JSON body into v, answering 400 itself when the body is malformed.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{&playlist.Error{
			Kind:    playlist.KindInvalidRequest,
			Message: "request body must be a JSON object",
		}})
		return false
	}
	return true
}

// writeError answers with the structured form of err and the status for its kind.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	e := playlist.AsError(err)
	status := statusFor(e.Kind)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "kind", e.Kind, "err", err)
	}
	writeJSON(w, status, errorResponse{Error: e})
}

func statusFor(kind playlist.Kind) int {
	switch kind {
	case playlist.KindInvalidEmotion, playlist.KindInvalidRequest:
		return http.StatusBadRequest
	case playlist.KindInsufficientTracks, playlist.KindNotFound:
		return http.StatusNotFound
	case playlist.KindNotAuthenticated:
		return http.StatusUnauthorized
	case playlist.KindUpstream:
		return http.StatusBadGateway
	case playlist.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func toRankedJSON(tracks []playlist.RankedTrack) []rankedTrackJSON {
	out := make([]rankedTrackJSON, len(tracks))
	for i, rt := range tracks {
		out[i] = rankedTrackJSON{
			ID:                rt.Track.ID,
			Title:             rt.Track.Title,
			Artist:            rt.Track.Artist,
			Album:             rt.Track.Album,
			Popularity:        rt.Track.Popularity,
			Score:             rt.Score,
			SpotifyEmbedURL:   rt.EmbedURL,
			EmbeddedTrackCode: rt.EmbedCode,
		}
	}
	return out
}

func toTrackJSON(t catalog.Track) trackJSON {
	f := t.Features
	return trackJSON{
		ID:         t.ID,
		Title:      t.Title,
		Artist:     t.Artist,
		Album:      t.Album,
		Popularity: t.Popularity,
		DurationMs: t.DurationMs,
		Features: featuresJSON{
			Danceability:     f.Danceability,
			Energy:           f.Energy,
			Loudness:         f.Loudness,
			Speechiness:      f.Speechiness,
			Acousticness:     f.Acousticness,
			Instrumentalness: f.Instrumentalness,
			Liveness:         f.Liveness,
			Valence:          f.Valence,
			Tempo:            f.Tempo,
		},
	}
}

func toMoodGroupJSON(g moods.Group) moodGroupJSON {
	return moodGroupJSON{
		Name:         g.Name,
		Description:  g.Description,
		Energy:       g.Centroid.Energy,
		Valence:      g.Centroid.Valence,
		Danceability: g.Centroid.Danceability,
		Acousticness: g.Centroid.Acousticness,
		TrackIDs:     trackIDs(g.Tracks),
	}
}

func trackIDs(tracks []catalog.Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}
