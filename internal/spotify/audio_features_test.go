package spotify

import (
	"context"
	"fmt"
	"testing"

	"github.com/zmb3/spotify/v2"

	"github.com/justestif/musical-bridges/internal/catalog"
)

func TestApplyAudioFeatures(t *testing.T) {
	var got catalog.Features
	features := &spotify.AudioFeatures{
		Acousticness:     0.5,
		Danceability:     0.7,
		Energy:           0.8,
		Instrumentalness: 0.1,
		Liveness:         0.2,
		Loudness:         -5.0,
		Speechiness:      0.05,
		Tempo:            120.0,
		Valence:          0.6,
	}

	applyAudioFeatures(&got, features)

	tests := []struct {
		name     string
		got      *float32
		expected float32
	}{
		{"Acousticness", got.Acousticness, 0.5},
		{"Danceability", got.Danceability, 0.7},
		{"Energy", got.Energy, 0.8},
		{"Instrumentalness", got.Instrumentalness, 0.1},
		{"Liveness", got.Liveness, 0.2},
		{"Loudness", got.Loudness, -5.0},
		{"Speechiness", got.Speechiness, 0.05},
		{"Tempo", got.Tempo, 120.0},
		{"Valence", got.Valence, 0.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got == nil {
				t.Errorf("%s is nil, want %v", tt.name, tt.expected)
				return
			}
			if *tt.got != tt.expected {
				t.Errorf("%s = %v, want %v", tt.name, *tt.got, tt.expected)
			}
		})
	}

	if !got.Complete() {
		t.Error("expected all features to be set")
	}
}

func TestApplyAudioFeaturesZeroValues(t *testing.T) {
	var got catalog.Features
	applyAudioFeatures(&got, &spotify.AudioFeatures{})

	// zero is a real measurement, not a missing one
	if got.Energy == nil || *got.Energy != 0 {
		t.Errorf("Energy = %v, want pointer to 0", got.Energy)
	}
	if got.Valence == nil || *got.Valence != 0 {
		t.Errorf("Valence = %v, want pointer to 0", got.Valence)
	}
}

func TestApplyAudioFeatures_DoesNotAlias(t *testing.T) {
	f := &spotify.AudioFeatures{Energy: 0.4}
	var got catalog.Features
	applyAudioFeatures(&got, f)

	f.Energy = 0.9
	if *got.Energy != 0.4 {
		t.Errorf("Energy changed with source to %v", *got.Energy)
	}
}

func TestFetchAudioFeatures_BatchCount(t *testing.T) {
	tests := []struct {
		name          string
		totalTracks   int
		expectedCalls int
	}{
		{"empty", 0, 0},
		{"single track", 1, 1},
		{"less than 100", 50, 1},
		{"exactly 100", 100, 1},
		{"101 tracks", 101, 2},
		{"250 tracks", 250, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakeAPI(0)
			tracks := make([]catalog.Track, tt.totalTracks)
			for i := range tracks {
				tracks[i].ID = fmt.Sprintf("t%04d", i)
			}

			if err := testClient(f).FetchAudioFeatures(context.Background(), tracks); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.featureCalls != tt.expectedCalls {
				t.Errorf("got %d API calls, want %d", f.featureCalls, tt.expectedCalls)
			}
			for _, tr := range tracks {
				if tr.Features.Energy != nil {
					t.Fatalf("track %s got features the API never returned", tr.ID)
				}
			}
		})
	}
}
