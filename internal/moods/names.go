package moods

// Name describes a centroid using a 2x2 energy/valence quadrant system
// with an acousticness modifier.
//
// Quadrants:
//   - High Energy + High Valence = "Upbeat Party"
//   - High Energy + Low Valence  = "Intense & Dark"
//   - Low Energy  + High Valence = "Chill & Happy"
//   - Low Energy  + Low Valence  = "Reflective & Melancholy"
//
// Acousticness above 0.6 appends " (Acoustic)".
func Name(c Centroid) string {
	var base string
	switch {
	case highEnergy(c) && highValence(c):
		base = "Upbeat Party"
	case highEnergy(c):
		base = "Intense & Dark"
	case highValence(c):
		base = "Chill & Happy"
	default:
		base = "Reflective & Melancholy"
	}

	if c.Acousticness > 0.6 {
		return base + " (Acoustic)"
	}
	return base
}

// Describe returns a one-line description of the centroid's quadrant.
func Describe(c Centroid) string {
	switch {
	case highEnergy(c) && highValence(c):
		return "High-energy, positive vibes - perfect for dancing and celebrations"
	case highEnergy(c):
		return "Intense, driving energy with darker emotional tones"
	case highValence(c):
		return "Relaxed and uplifting - great for unwinding"
	default:
		return "Contemplative and introspective - ideal for quiet moments"
	}
}

func highEnergy(c Centroid) bool  { return c.Energy > 0.6 }
func highValence(c Centroid) bool { return c.Valence > 0.5 }
