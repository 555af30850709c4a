package catalog

import (
	"math/rand/v2"
	"slices"
	"testing"
)

func TestSelectGenreSeeds(t *testing.T) {
	pool := []string{"pop", "rock", "jazz", "soul", "folk", "blues"}

	tests := []struct {
		name      string
		preferred []string
		pool      []string
		wantLen   int
		mustHave  []string
	}{
		{
			name:      "exactly five preferred",
			preferred: []string{"a", "b", "c", "d", "e"},
			pool:      pool,
			wantLen:   5,
			mustHave:  []string{"a", "b", "c", "d", "e"},
		},
		{
			name:      "more than five preferred samples five",
			preferred: []string{"a", "b", "c", "d", "e", "f", "g"},
			pool:      pool,
			wantLen:   5,
		},
		{
			name:      "fewer than five topped up from pool",
			preferred: []string{"sad", "piano"},
			pool:      pool,
			wantLen:   5,
			mustHave:  []string{"sad", "piano"},
		},
		{
			name:      "overlap with pool deduplicated",
			preferred: []string{"rock", "punk"},
			pool:      []string{"rock", "pop", "punk"},
			wantLen:   3,
			mustHave:  []string{"rock", "punk", "pop"},
		},
		{
			name:      "duplicates in preferred ignored",
			preferred: []string{"metal", "metal", "metal"},
			pool:      nil,
			wantLen:   1,
			mustHave:  []string{"metal"},
		},
		{
			name:      "nothing available",
			preferred: nil,
			pool:      nil,
			wantLen:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(1, 2))
			got := SelectGenreSeeds(tt.preferred, tt.pool, rng)

			if len(got) != tt.wantLen {
				t.Fatalf("SelectGenreSeeds() len = %d, want %d (%v)", len(got), tt.wantLen, got)
			}
			for _, g := range tt.mustHave {
				if !slices.Contains(got, g) {
					t.Errorf("SelectGenreSeeds() = %v, missing %q", got, g)
				}
			}

			seen := make(map[string]bool)
			for _, g := range got {
				if seen[g] {
					t.Errorf("SelectGenreSeeds() = %v, duplicate %q", got, g)
				}
				seen[g] = true
			}
		})
	}
}

func TestSelectGenreSeeds_SampleIsNotPrefix(t *testing.T) {
	preferred := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	prefix := preferred[:MaxGenreSeeds]

	// Over many seeds at least one sample must differ from the first five.
	for seed := uint64(0); seed < 50; seed++ {
		got := SelectGenreSeeds(preferred, nil, rand.New(rand.NewPCG(seed, seed)))
		slices.Sort(got)
		if !slices.Equal(got, prefix) {
			return
		}
	}
	t.Error("SelectGenreSeeds() always returned the first five preferred genres")
}

func TestSelectGenreSeeds_DoesNotMutateInput(t *testing.T) {
	preferred := []string{"a", "b", "c", "d", "e", "f"}
	orig := slices.Clone(preferred)

	SelectGenreSeeds(preferred, PopularGenres, rand.New(rand.NewPCG(3, 4)))

	if !slices.Equal(preferred, orig) {
		t.Errorf("preferred mutated: %v, want %v", preferred, orig)
	}
}

func TestFeatures_Complete(t *testing.T) {
	var f Features
	if f.Complete() {
		t.Error("zero Features reported complete")
	}

	f = Features{
		Danceability: Float(0.1), Energy: Float(0.2), Loudness: Float(-5),
		Speechiness: Float(0.1), Acousticness: Float(0.3), Instrumentalness: Float(0),
		Liveness: Float(0.1), Valence: Float(0.4), Tempo: Float(120),
	}
	if !f.Complete() {
		t.Error("fully populated Features reported incomplete")
	}
}

func TestValue(t *testing.T) {
	if got := Value(nil); got != 0 {
		t.Errorf("Value(nil) = %v, want 0", got)
	}
	if got := Value(Float(0.5)); got != 0.5 {
		t.Errorf("Value(0.5) = %v, want 0.5", got)
	}
}
