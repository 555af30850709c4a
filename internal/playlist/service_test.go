package playlist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/justestif/musical-bridges/internal/catalog"
	"github.com/justestif/musical-bridges/internal/emotion"
)

// fakeSource implements catalog.Source for testing.
type fakeSource struct {
	tracks []catalog.Track
	err    error
	// delay simulates a slow provider
	delay time.Duration
	calls int
	last  catalog.Query
}

func (f *fakeSource) Candidates(ctx context.Context, q catalog.Query) ([]catalog.Track, error) {
	f.calls++
	f.last = q
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.tracks, nil
}

// fakePublisher implements catalog.Publisher for testing.
type fakePublisher struct {
	id           string
	err          error
	unpublishErr error
	name         string
	ids          []string
	calls        int
	unpublished  []string
}

func (f *fakePublisher) Publish(ctx context.Context, name, description string, trackIDs []string) (string, error) {
	f.calls++
	f.name = name
	f.ids = trackIDs
	return f.id, f.err
}

func (f *fakePublisher) Unpublish(ctx context.Context, externalID string) error {
	f.unpublished = append(f.unpublished, externalID)
	return f.unpublishErr
}

// failingRepo rejects every write.
type failingRepo struct {
	*MemoryRepository
}

func (failingRepo) Create(ctx context.Context, p *Playlist) error {
	return errors.New("disk full")
}

func newTestService(t *testing.T, repo Repository, opts ...Option) *Service {
	t.Helper()
	a, err := NewAssembler(seeded(1))
	if err != nil {
		t.Fatalf("NewAssembler: %v", err)
	}
	opts = append([]Option{WithLogger(log.New(io.Discard))}, opts...)
	return NewService(repo, a, opts...)
}

func TestCreate_Success(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(t, repo)
	src := &fakeSource{tracks: makeTracks(20)}

	res, err := svc.Create(context.Background(), src, nil, CreateRequest{Emotion: "Sad", Intensity: "normal", UserID: "u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := res.Playlist
	if p.ID == "" {
		t.Error("expected playlist ID to be assigned")
	}
	if p.Name != "Sad (Normal) Playlist" {
		t.Errorf("Name = %q", p.Name)
	}
	if p.UserID != "u1" {
		t.Errorf("UserID = %q, want u1", p.UserID)
	}
	if p.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if n := len(p.Tracks); n < DefaultMinTracks || n > DefaultMaxTracks {
		t.Errorf("got %d tracks", n)
	}
	if src.last.Limit != DefaultMaxTracks {
		t.Errorf("query limit = %d, want %d", src.last.Limit, DefaultMaxTracks)
	}
	if src.last.Profile.MaxTempo == 0 {
		t.Error("expected sad profile to carry a tempo ceiling")
	}
	if len(res.TopTracks) != 5 {
		t.Errorf("got %d top tracks, want 5", len(res.TopTracks))
	}
	if res.PlaylistEmbed != "" {
		t.Errorf("unpublished playlist should have no embed, got %q", res.PlaylistEmbed)
	}
	for _, rt := range res.TopTracks {
		if !strings.Contains(rt.EmbedCode, rt.Track.ID) || !strings.Contains(rt.EmbedURL, rt.Track.ID) {
			t.Errorf("embed for %s does not reference it: %q", rt.Track.ID, rt.EmbedURL)
		}
	}

	stored, err := repo.Get(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("stored playlist: %v", err)
	}
	if len(stored.Tracks) != len(p.Tracks) {
		t.Errorf("stored %d tracks, returned %d", len(stored.Tracks), len(p.Tracks))
	}
}

func TestCreate_Publishes(t *testing.T) {
	svc := newTestService(t, NewMemoryRepository())
	pub := &fakePublisher{id: "spotify123"}

	res, err := svc.Create(context.Background(), &fakeSource{tracks: makeTracks(12)}, pub, CreateRequest{Emotion: "angry", Intensity: "intense"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pub.calls != 1 {
		t.Fatalf("publisher called %d times, want 1", pub.calls)
	}
	if pub.name != "Angry (Intense) Playlist" {
		t.Errorf("published name = %q", pub.name)
	}
	if len(pub.ids) != len(res.Playlist.Tracks) {
		t.Errorf("published %d tracks, playlist has %d", len(pub.ids), len(res.Playlist.Tracks))
	}
	if res.Playlist.ExternalID != "spotify123" {
		t.Errorf("ExternalID = %q", res.Playlist.ExternalID)
	}
	if !strings.Contains(res.PlaylistEmbed, "/embed/playlist/spotify123") {
		t.Errorf("PlaylistEmbed = %q", res.PlaylistEmbed)
	}
}

func TestCreate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		req      CreateRequest
		src      *fakeSource
		pub      catalog.Publisher
		repo     Repository
		wantKind Kind
	}{
		{
			name:     "invalid emotion",
			req:      CreateRequest{Emotion: "happy", Intensity: "normal"},
			src:      &fakeSource{tracks: makeTracks(20)},
			wantKind: KindInvalidEmotion,
		},
		{
			name:     "invalid intensity",
			req:      CreateRequest{Emotion: "sad", Intensity: "extreme"},
			src:      &fakeSource{tracks: makeTracks(20)},
			wantKind: KindInvalidEmotion,
		},
		{
			name:     "nine candidates",
			req:      CreateRequest{Emotion: "sad", Intensity: "normal"},
			src:      &fakeSource{tracks: makeTracks(9)},
			wantKind: KindInsufficientTracks,
		},
		{
			name:     "provider has nothing",
			req:      CreateRequest{Emotion: "sad", Intensity: "normal"},
			src:      &fakeSource{err: catalog.ErrInsufficientCandidates},
			wantKind: KindInsufficientTracks,
		},
		{
			name:     "expired token",
			req:      CreateRequest{Emotion: "sad", Intensity: "normal"},
			src:      &fakeSource{err: catalog.ErrNotAuthenticated},
			wantKind: KindNotAuthenticated,
		},
		{
			name:     "provider outage",
			req:      CreateRequest{Emotion: "sad", Intensity: "normal"},
			src:      &fakeSource{err: catalog.ErrUpstream},
			wantKind: KindUpstream,
		},
		{
			name:     "publish fails",
			req:      CreateRequest{Emotion: "sad", Intensity: "normal"},
			src:      &fakeSource{tracks: makeTracks(20)},
			pub:      &fakePublisher{err: catalog.ErrUpstream},
			wantKind: KindUpstream,
		},
		{
			name:     "storage fails",
			req:      CreateRequest{Emotion: "sad", Intensity: "normal"},
			src:      &fakeSource{tracks: makeTracks(20)},
			repo:     failingRepo{NewMemoryRepository()},
			wantKind: KindPersistence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := tt.repo
			mem := NewMemoryRepository()
			if repo == nil {
				repo = mem
			}
			svc := newTestService(t, repo)

			res, err := svc.Create(context.Background(), tt.src, tt.pub, tt.req)
			if err == nil {
				t.Fatalf("expected error, got result %+v", res)
			}
			if got := KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf(%v) = %s, want %s", err, got, tt.wantKind)
			}

			n, _ := mem.Count(context.Background())
			if n != 0 {
				t.Errorf("expected nothing persisted, found %d playlists", n)
			}
		})
	}
}

func TestCreate_StorageFailureUnpublishes(t *testing.T) {
	tests := []struct {
		name         string
		unpublishErr error
	}{
		{"removed", nil},
		{"removal fails", catalog.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, failingRepo{NewMemoryRepository()})
			pub := &fakePublisher{id: "spotify123", unpublishErr: tt.unpublishErr}

			_, err := svc.Create(context.Background(), &fakeSource{tracks: makeTracks(12)}, pub, CreateRequest{Emotion: "sad", Intensity: "normal"})
			if got := KindOf(err); got != KindPersistence {
				t.Fatalf("KindOf(%v) = %s, want %s", err, got, KindPersistence)
			}
			if len(pub.unpublished) != 1 || pub.unpublished[0] != "spotify123" {
				t.Errorf("unpublished = %v, want [spotify123]", pub.unpublished)
			}
		})
	}
}

func TestCreate_StorageFailureWithoutPublisher(t *testing.T) {
	svc := newTestService(t, failingRepo{NewMemoryRepository()})

	_, err := svc.Create(context.Background(), &fakeSource{tracks: makeTracks(12)}, nil, CreateRequest{Emotion: "sad", Intensity: "normal"})
	if got := KindOf(err); got != KindPersistence {
		t.Errorf("KindOf(%v) = %s, want %s", err, got, KindPersistence)
	}
}

func TestCreate_InvalidEmotionSkipsCatalog(t *testing.T) {
	svc := newTestService(t, NewMemoryRepository())
	src := &fakeSource{tracks: makeTracks(20)}

	_, err := svc.Create(context.Background(), src, nil, CreateRequest{Emotion: "joy", Intensity: "normal"})
	if !errors.Is(err, emotion.ErrInvalidEmotion) {
		t.Fatalf("err = %v, want ErrInvalidEmotion", err)
	}
	if src.calls != 0 {
		t.Errorf("catalog queried %d times for an invalid emotion", src.calls)
	}
}

func TestCreate_CatalogTimeout(t *testing.T) {
	svc := newTestService(t, NewMemoryRepository(), WithCatalogTimeout(10*time.Millisecond))
	src := &fakeSource{tracks: makeTracks(20), delay: time.Second}

	_, err := svc.Create(context.Background(), src, nil, CreateRequest{Emotion: "angry", Intensity: "normal"})
	if !errors.Is(err, catalog.ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
}

func TestCreate_NilSource(t *testing.T) {
	svc := newTestService(t, NewMemoryRepository())

	_, err := svc.Create(context.Background(), nil, nil, CreateRequest{Emotion: "sad", Intensity: "normal"})
	if got := KindOf(err); got != KindInternal {
		t.Errorf("KindOf = %s, want %s", got, KindInternal)
	}
}

func TestGet(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(t, repo)

	res, err := svc.Create(context.Background(), &fakeSource{tracks: makeTracks(15)}, nil, CreateRequest{Emotion: "sad", Intensity: "intense"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Get(context.Background(), res.Playlist.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Category != emotion.SadIntense {
		t.Errorf("Category = %v", got.Category)
	}

	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// corruptRepo returns rows whose category column cannot be decoded.
type corruptRepo struct {
	*MemoryRepository
}

func (corruptRepo) Get(ctx context.Context, id string) (*Playlist, error) {
	_, err := emotion.ParseCategory("HAPPY_LOUD")
	return nil, fmt.Errorf("scanning playlist %s: %w", id, err)
}

func TestGet_CorruptCategoryIsPersistenceError(t *testing.T) {
	svc := newTestService(t, corruptRepo{NewMemoryRepository()})

	_, err := svc.Get(context.Background(), "pl-1")
	if !errors.Is(err, emotion.ErrUnknownCategory) {
		t.Fatalf("err = %v, want wrapped ErrUnknownCategory", err)
	}
	if got := KindOf(err); got != KindPersistence {
		t.Errorf("KindOf(%v) = %s, want %s", err, got, KindPersistence)
	}
	if e := AsError(err); e.Message != "a database error occurred" {
		t.Errorf("AsError().Message = %q, want generic database message", e.Message)
	}
}

func TestTopTracks(t *testing.T) {
	repo := NewMemoryRepository()
	svc := newTestService(t, repo, WithTopK(3))

	// popularity 10..200 step 10; top three are 200, 190, 180
	tracks := make([]catalog.Track, 20)
	for i := range tracks {
		tracks[i] = catalog.Track{ID: makeTracks(20)[i].ID, Popularity: (i + 1) * 10}
	}
	p := &Playlist{ID: "p1", Name: "Sad (Normal) Playlist", Category: emotion.SadNormal, Tracks: tracks}
	if err := repo.Create(context.Background(), p); err != nil {
		t.Fatalf("seed repo: %v", err)
	}

	t.Run("default k", func(t *testing.T) {
		got, err := svc.TopTracks(context.Background(), "p1", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []int{200, 190, 180}
		if len(got) != len(want) {
			t.Fatalf("got %d tracks, want %d", len(got), len(want))
		}
		for i, rt := range got {
			if rt.Track.Popularity != want[i] {
				t.Errorf("position %d: popularity %d, want %d", i, rt.Track.Popularity, want[i])
			}
		}
	})

	t.Run("explicit k", func(t *testing.T) {
		got, err := svc.TopTracks(context.Background(), "p1", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 5 {
			t.Errorf("got %d tracks, want 5", len(got))
		}
	})

	t.Run("unknown playlist", func(t *testing.T) {
		got, err := svc.TopTracks(context.Background(), "nope", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil slice, got %v", got)
		}
	})
}
