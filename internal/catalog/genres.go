package catalog

import "math/rand/v2"

// MaxGenreSeeds is the provider's limit on seed values per recommendation request.
const MaxGenreSeeds = 5

// PopularGenres is the pool used to top up genre seeds when a profile prefers fewer than five.
var PopularGenres = []string{
	"pop", "rock", "hip-hop", "indie", "alternative", "r-n-b", "electronic",
	"dance", "jazz", "soul", "folk", "acoustic", "country", "blues", "punk",
}

// SelectGenreSeeds picks at most MaxGenreSeeds genres.
//
// With more than MaxGenreSeeds preferred genres a uniform random sample is taken.
// With fewer, the selection is topped up with random picks from pool that are not
// already selected. Duplicates in either input are ignored.
func SelectGenreSeeds(preferred, pool []string, rng *rand.Rand) []string {
	unique := dedupe(preferred)
	if len(unique) >= MaxGenreSeeds {
		return sample(unique, MaxGenreSeeds, rng)
	}

	chosen := make(map[string]struct{}, MaxGenreSeeds)
	for _, g := range unique {
		chosen[g] = struct{}{}
	}

	var extra []string
	for _, g := range dedupe(pool) {
		if _, ok := chosen[g]; !ok {
			extra = append(extra, g)
		}
	}

	need := min(MaxGenreSeeds-len(unique), len(extra))
	return append(unique, sample(extra, need, rng)...)
}

// sample returns n elements of items drawn uniformly without replacement.
// items is not modified.
func sample(items []string, n int, rng *rand.Rand) []string {
	if n <= 0 {
		return nil
	}
	idx := rng.Perm(len(items))[:n]
	out := make([]string, n)
	for i, j := range idx {
		out[i] = items[j]
	}
	return out
}

func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}
