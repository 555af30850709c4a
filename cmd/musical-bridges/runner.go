package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"

	"github.com/justestif/musical-bridges/internal/auth"
	"github.com/justestif/musical-bridges/internal/catalog"
	"github.com/justestif/musical-bridges/internal/config"
	"github.com/justestif/musical-bridges/internal/db"
	"github.com/justestif/musical-bridges/internal/emotion"
	"github.com/justestif/musical-bridges/internal/logging"
	"github.com/justestif/musical-bridges/internal/playlist"
	"github.com/justestif/musical-bridges/internal/refine"
	"github.com/justestif/musical-bridges/internal/spotify"
	"github.com/justestif/musical-bridges/internal/sqlite"
	"github.com/justestif/musical-bridges/internal/web"
)

// runner holds the loaded configuration and implements the command actions.
type runner struct {
	cfg    *config.Config
	logger *log.Logger
	out    io.Writer
	errOut io.Writer
}

// setup loads configuration and builds the logger before any command runs.
func (r *runner) setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return ctx, err
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}

	logger, err := logging.New(r.errOut, cfg.Log.Level)
	if err != nil {
		return ctx, err
	}

	r.cfg = cfg
	r.logger = logger
	return ctx, nil
}

// storage is an open playlist store. pg is set only for the postgres driver.
type storage struct {
	repo  playlist.Repository
	pg    *db.DB
	close func()
}

func (r *runner) openStorage(ctx context.Context) (*storage, error) {
	sc := r.cfg.Storage
	switch sc.Driver {
	case config.DriverPostgres:
		database, err := db.New(ctx, sc.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := database.EnsureSchema(ctx); err != nil {
			database.Close()
			return nil, err
		}
		return &storage{repo: database.Playlists(), pg: database, close: database.Close}, nil
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, sc.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &storage{repo: store, close: func() { store.Close() }}, nil
	case config.DriverMemory:
		return &storage{repo: playlist.NewMemoryRepository(), close: func() {}}, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", config.ErrInvalidConfig, sc.Driver)
	}
}

func (r *runner) newService(repo playlist.Repository) (*playlist.Service, error) {
	pc := r.cfg.Playlist
	assembler, err := playlist.NewAssembler(playlist.WithBounds(pc.MinTracks, pc.MaxTracks))
	if err != nil {
		return nil, err
	}
	return playlist.NewService(repo, assembler,
		playlist.WithLogger(r.logger),
		playlist.WithTopK(pc.TopK),
		playlist.WithCatalogTimeout(r.cfg.Spotify.Timeout),
	), nil
}

func (r *runner) authConfig() auth.Config {
	return auth.Config{
		ClientID:     r.cfg.Spotify.ClientID,
		ClientSecret: r.cfg.Spotify.ClientSecret,
		RedirectURL:  r.cfg.Spotify.RedirectURI,
	}
}

func (r *runner) tokenCache() (*auth.TokenCache, error) {
	path := r.cfg.Spotify.TokenPath
	if path == "" {
		var err error
		if path, err = auth.DefaultTokenPath(); err != nil {
			return nil, err
		}
	}
	return auth.NewTokenCache(path), nil
}

// Serve runs the HTTP API until interrupted.
func (r *runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if addr := cmd.String("addr"); addr != "" {
		r.cfg.Server.Addr = addr
	}
	if err := r.cfg.Validate(true); err != nil {
		return err
	}

	store, err := r.openStorage(ctx)
	if err != nil {
		return err
	}
	defer store.close()

	service, err := r.newService(store.repo)
	if err != nil {
		return err
	}

	oauth, err := auth.NewSpotifyAuthenticator(r.authConfig())
	if err != nil {
		return err
	}

	var sessions web.SessionManager = web.NewMemorySessionStore()
	if store.pg != nil {
		sessions = web.NewDBSessionStore(store.pg)
	}

	sc := r.cfg.Spotify
	limiter := spotify.NewLimiter(sc.RatePerSecond)
	newCatalog := func(ctx context.Context, tokens auth.TokenProvider) web.Catalog {
		return spotify.New(auth.HTTPClient(ctx, tokens), sc.Retry,
			spotify.WithLimiter(limiter),
			spotify.WithTimeout(sc.Timeout),
			spotify.WithPublicPlaylists(sc.PublicPlaylists),
			spotify.WithLogger(r.logger),
		)
	}

	srvCfg := web.ServerConfig{
		Addr:      r.cfg.Server.Addr,
		OAuth:     oauth,
		Sessions:  sessions,
		Playlists: service,
		Catalog:   newCatalog,
		Logger:    r.logger,
	}

	refiner, err := refine.NewClient(r.cfg.Refine)
	switch {
	case errors.Is(err, refine.ErrMissingAPIKey):
		r.logger.Info("emotion refinement disabled", "reason", "MOONSHOT_API_KEY not set")
	case err != nil:
		return err
	default:
		srvCfg.Refiner = refiner
	}

	server, err := web.NewServer(srvCfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return server.Run(ctx)
}

// generateOutput is the --json form of a generated playlist.
type generateOutput struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Emotion           string         `json:"emotion"`
	SpotifyPlaylistID string         `json:"spotify_playlist_id,omitempty"`
	Tracks            []trackOutput  `json:"tracks"`
	TopTracks         []rankedOutput `json:"top_tracks"`
}

type trackOutput struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
}

type rankedOutput struct {
	trackOutput
	Score    float64 `json:"score"`
	EmbedURL string  `json:"embed_url"`
}

// Generate creates one playlist from the terminal, authenticating through the loopback flow.
func (r *runner) Generate(ctx context.Context, cmd *cli.Command) error {
	if err := r.cfg.Validate(true); err != nil {
		return err
	}

	// Fail fast on typos, before the browser round trip.
	if _, err := emotion.Resolve(cmd.String("emotion"), cmd.String("intensity")); err != nil {
		return err
	}

	store, err := r.openStorage(ctx)
	if err != nil {
		return err
	}
	defer store.close()

	service, err := r.newService(store.repo)
	if err != nil {
		return err
	}

	cache, err := r.tokenCache()
	if err != nil {
		return err
	}
	authenticator, err := auth.New(r.authConfig(), cache, r.errOut, r.logger)
	if err != nil {
		return err
	}
	httpClient, err := authenticator.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("authenticating with Spotify: %w", err)
	}

	sc := r.cfg.Spotify
	client := spotify.New(httpClient, sc.Retry,
		spotify.WithLimiter(spotify.NewLimiter(sc.RatePerSecond)),
		spotify.WithTimeout(sc.Timeout),
		spotify.WithPublicPlaylists(sc.PublicPlaylists),
		spotify.WithLogger(r.logger),
	)

	var pub catalog.Publisher
	if cmd.Bool("publish") {
		pub = client
	}

	result, err := service.Create(ctx, client, pub, playlist.CreateRequest{
		Emotion:   cmd.String("emotion"),
		Intensity: cmd.String("intensity"),
	})
	if err != nil {
		e := playlist.AsError(err)
		r.logger.Debug("generate failed", "err", err)
		return fmt.Errorf("%s: %s", e.Kind, e.Message)
	}

	top := result.TopTracks
	if k := cmd.Int("top"); k > 0 {
		if top, err = service.TopTracks(ctx, result.Playlist.ID, k); err != nil {
			return err
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(toGenerateOutput(result.Playlist, top))
	}
	return r.printPlaylist(result.Playlist, top)
}

func toGenerateOutput(p *playlist.Playlist, top []playlist.RankedTrack) generateOutput {
	out := generateOutput{
		ID:                p.ID,
		Name:              p.Name,
		Emotion:           p.Category.String(),
		SpotifyPlaylistID: p.ExternalID,
		Tracks:            make([]trackOutput, len(p.Tracks)),
		TopTracks:         make([]rankedOutput, len(top)),
	}
	for i, t := range p.Tracks {
		out.Tracks[i] = trackOutput{ID: t.ID, Title: t.Title, Artist: t.Artist}
	}
	for i, rt := range top {
		out.TopTracks[i] = rankedOutput{
			trackOutput: trackOutput{ID: rt.Track.ID, Title: rt.Track.Title, Artist: rt.Track.Artist},
			Score:       rt.Score,
			EmbedURL:    rt.EmbedURL,
		}
	}
	return out
}

func (r *runner) writeJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *runner) printPlaylist(p *playlist.Playlist, top []playlist.RankedTrack) error {
	fmt.Fprintf(r.out, "%s (%d tracks)\n", p.Name, len(p.Tracks))
	fmt.Fprintf(r.out, "ID: %s\n", p.ID)
	if p.ExternalID != "" {
		fmt.Fprintf(r.out, "Spotify: https://open.spotify.com/playlist/%s\n", p.ExternalID)
	}

	tracks := make([][]string, len(p.Tracks))
	for i, t := range p.Tracks {
		tracks[i] = []string{strconv.Itoa(i + 1), t.Title, t.Artist}
	}
	if err := renderTable(r.out, []string{"#", "TITLE", "ARTIST"}, tracks); err != nil {
		return err
	}

	fmt.Fprintln(r.out, "\nTop picks:")
	picks := make([][]string, len(top))
	for i, rt := range top {
		picks[i] = []string{strconv.Itoa(i + 1), rt.Track.Title, rt.Track.Artist, fmt.Sprintf("%.2f", rt.Score)}
	}
	return renderTable(r.out, []string{"#", "TITLE", "ARTIST", "SCORE"}, picks)
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

// renderTable writes a bordered table of rows under headers.
func renderTable(w io.Writer, headers []string, rows [][]string) error {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

// Emotions lists every supported category.
func (r *runner) Emotions(_ context.Context, _ *cli.Command) error {
	var rows [][]string
	for _, c := range emotion.Categories() {
		rows = append(rows, []string{c.String(), c.Emotion.String(), c.Intensity.String(), c.PlaylistName()})
	}
	return renderTable(r.out, []string{"CATEGORY", "EMOTION", "INTENSITY", "PLAYLIST"}, rows)
}

// Logout deletes the cached CLI token.
func (r *runner) Logout(_ context.Context, _ *cli.Command) error {
	cache, err := r.tokenCache()
	if err != nil {
		return err
	}
	if err := cache.Delete(); err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Removed cached token at %s\n", cache.Path())
	return nil
}
