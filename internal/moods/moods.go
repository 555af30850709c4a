// Package moods groups a playlist's tracks by audio feature similarity using k-means.
package moods

import (
	"cmp"
	"slices"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"

	"github.com/justestif/musical-bridges/internal/catalog"
)

// Config holds clustering parameters.
type Config struct {
	Clusters       int // number of groups to look for
	MinClusterSize int // smaller groups are reported as unclustered
}

// DefaultConfig returns settings suited to playlists of 10-20 tracks.
func DefaultConfig() Config {
	return Config{
		Clusters:       3,
		MinClusterSize: 2,
	}
}

// Centroid is the mean of the clustered features.
type Centroid struct {
	Energy       float32
	Valence      float32
	Danceability float32
	Acousticness float32
}

// Group is a set of tracks sharing a mood.
type Group struct {
	Name        string
	Description string
	Centroid    Centroid
	Tracks      []catalog.Track
}

// Analysis is the mood breakdown of a playlist.
type Analysis struct {
	Overall     Group // every track with features, named by its average
	Groups      []Group
	Unclustered []catalog.Track
}

// trackObservation wraps a Track to implement clusters.Observation.
type trackObservation struct {
	index  int
	track  catalog.Track
	coords clusters.Coordinates
}

func (o trackObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o trackObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// Analyze partitions tracks by energy, valence, danceability and acousticness.
// Tracks missing any of those features are unclustered. If clustering cannot run,
// every track is unclustered and only the overall mood is reported.
func Analyze(tracks []catalog.Track, cfg Config) Analysis {
	def := DefaultConfig()
	if cfg.Clusters <= 0 {
		cfg.Clusters = def.Clusters
	}
	if cfg.MinClusterSize <= 0 {
		cfg.MinClusterSize = def.MinClusterSize
	}

	var valid, missing []catalog.Track
	for _, t := range tracks {
		if hasMoodFeatures(t) {
			valid = append(valid, t)
		} else {
			missing = append(missing, t)
		}
	}

	var a Analysis
	if len(valid) > 0 {
		a.Overall = newGroup(valid, mean(valid))
	}

	if len(valid) < cfg.Clusters {
		a.Unclustered = slices.Concat(valid, missing)
		return a
	}

	obs := make(clusters.Observations, len(valid))
	for i, t := range valid {
		obs[i] = trackObservation{index: i, track: t, coords: extractFeatures(t)}
	}

	// kmeans cannot separate identical points, so ask for at most one
	// cluster per distinct feature vector.
	k := min(cfg.Clusters, distinctCoordinates(obs))

	result, err := kmeans.New().Partition(obs, k)
	if err != nil {
		a.Unclustered = slices.Concat(valid, missing)
		return a
	}

	// Partition may leave a point in two clusters when it refills an empty one.
	assigned := make([]bool, len(valid))
	for _, cluster := range result {
		var groupTracks []catalog.Track
		for _, o := range cluster.Observations {
			to, ok := o.(trackObservation)
			if !ok || assigned[to.index] {
				continue
			}
			assigned[to.index] = true
			groupTracks = append(groupTracks, to.track)
		}

		if len(groupTracks) < cfg.MinClusterSize {
			a.Unclustered = append(a.Unclustered, groupTracks...)
			continue
		}

		a.Groups = append(a.Groups, newGroup(groupTracks, Centroid{
			Energy:       float32(cluster.Center[0]),
			Valence:      float32(cluster.Center[1]),
			Danceability: float32(cluster.Center[2]),
			Acousticness: float32(cluster.Center[3]),
		}))
	}
	a.Unclustered = append(a.Unclustered, missing...)

	// largest first
	slices.SortStableFunc(a.Groups, func(x, y Group) int {
		return cmp.Compare(len(y.Tracks), len(x.Tracks))
	})

	return a
}

func newGroup(tracks []catalog.Track, c Centroid) Group {
	return Group{
		Name:        Name(c),
		Description: Describe(c),
		Centroid:    c,
		Tracks:      tracks,
	}
}

// hasMoodFeatures checks if a track has the features used for clustering.
func hasMoodFeatures(t catalog.Track) bool {
	f := t.Features
	return f.Energy != nil && f.Valence != nil && f.Danceability != nil && f.Acousticness != nil
}

// extractFeatures returns the clustering features as a coordinate vector.
func extractFeatures(t catalog.Track) clusters.Coordinates {
	return clusters.Coordinates{
		catalog.Value(t.Features.Energy),
		catalog.Value(t.Features.Valence),
		catalog.Value(t.Features.Danceability),
		catalog.Value(t.Features.Acousticness),
	}
}

func distinctCoordinates(obs clusters.Observations) int {
	seen := make(map[[4]float64]struct{}, len(obs))
	for _, o := range obs {
		var key [4]float64
		copy(key[:], o.Coordinates())
		seen[key] = struct{}{}
	}
	return len(seen)
}

func mean(tracks []catalog.Track) Centroid {
	var sum [4]float64
	for _, t := range tracks {
		for i, v := range extractFeatures(t) {
			sum[i] += v
		}
	}
	n := float64(len(tracks))
	return Centroid{
		Energy:       float32(sum[0] / n),
		Valence:      float32(sum[1] / n),
		Danceability: float32(sum[2] / n),
		Acousticness: float32(sum[3] / n),
	}
}
