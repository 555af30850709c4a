// Package emotion maps emotional states to the audio-feature profiles used to search for tracks.
package emotion

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// Sentinel errors.
var (
	// ErrInvalidEmotion is returned when an emotion/intensity pair is not a known category.
	ErrInvalidEmotion = errors.New("invalid emotion or intensity")

	// ErrUnknownCategory is returned when a category has no feature profile.
	ErrUnknownCategory = errors.New("unknown emotion category")
)

// Emotion is a base emotion.
type Emotion int

const (
	Sad Emotion = iota + 1
	Angry
)

// Intensity is how strongly an emotion is felt.
type Intensity int

const (
	Normal Intensity = iota + 1
	Intense
)

// Category combines a base emotion with an intensity.
type Category struct {
	Emotion   Emotion
	Intensity Intensity
}

// Known categories.
var (
	SadNormal    = Category{Sad, Normal}
	SadIntense   = Category{Sad, Intense}
	AngryNormal  = Category{Angry, Normal}
	AngryIntense = Category{Angry, Intense}
)

// suggestThreshold is the minimum Jaro-Winkler similarity for a "did you mean" hint.
const suggestThreshold = 0.8

var emotionNames = map[Emotion]string{
	Sad:   "sad",
	Angry: "angry",
}

var intensityNames = map[Intensity]string{
	Normal:  "normal",
	Intense: "intense",
}

// emotionInputs maps normalized user input to an Emotion, including accepted aliases.
var emotionInputs = map[string]Emotion{
	"sad":     Sad,
	"sadness": Sad,
	"angry":   Angry,
	"anger":   Angry,
}

var intensityInputs = map[string]Intensity{
	"normal":  Normal,
	"intense": Intense,
}

// String returns the lower-case name of the emotion.
func (e Emotion) String() string {
	if name, ok := emotionNames[e]; ok {
		return name
	}
	return fmt.Sprintf("emotion(%d)", int(e))
}

// String returns the lower-case name of the intensity.
func (i Intensity) String() string {
	if name, ok := intensityNames[i]; ok {
		return name
	}
	return fmt.Sprintf("intensity(%d)", int(i))
}

// String returns the category tag, e.g. "SAD_NORMAL".
func (c Category) String() string {
	return strings.ToUpper(c.Emotion.String()) + "_" + strings.ToUpper(c.Intensity.String())
}

// PlaylistName returns the display name for playlists of this category,
// e.g. "Sad (Normal) Playlist".
func (c Category) PlaylistName() string {
	return fmt.Sprintf("%s (%s) Playlist", capitalize(c.Emotion.String()), capitalize(c.Intensity.String()))
}

// Categories returns every known category in a stable order.
func Categories() []Category {
	return []Category{SadNormal, SadIntense, AngryNormal, AngryIntense}
}

// Resolve maps user-supplied emotion and intensity strings to a Category.
// Matching is case-insensitive and ignores surrounding whitespace.
func Resolve(emotion, intensity string) (Category, error) {
	e, eok := emotionInputs[normalize(emotion)]
	i, iok := intensityInputs[normalize(intensity)]

	if !eok || !iok {
		return Category{}, invalidError(emotion, intensity, eok, iok)
	}

	c := Category{Emotion: e, Intensity: i}
	if _, ok := profiles[c]; !ok {
		return Category{}, invalidError(emotion, intensity, eok, iok)
	}
	return c, nil
}

// ParseCategory parses a category tag such as "SAD_NORMAL" or "sad_normal".
func ParseCategory(tag string) (Category, error) {
	emotion, intensity, ok := strings.Cut(normalize(tag), "_")
	if !ok {
		return Category{}, fmt.Errorf("%w: %q", ErrUnknownCategory, tag)
	}
	c, err := Resolve(emotion, intensity)
	if err != nil {
		return Category{}, fmt.Errorf("%w: %q", ErrUnknownCategory, tag)
	}
	return c, nil
}

// invalidError builds an ErrInvalidEmotion with a suggestion for the unrecognized field.
func invalidError(emotion, intensity string, emotionOK, intensityOK bool) error {
	var hints []string
	if !emotionOK {
		if s := suggest(emotion, emotionNames); s != "" {
			hints = append(hints, fmt.Sprintf("did you mean emotion %q?", s))
		}
	}
	if !intensityOK {
		if s := suggest(intensity, intensityNames); s != "" {
			hints = append(hints, fmt.Sprintf("did you mean intensity %q?", s))
		}
	}

	if len(hints) == 0 {
		return fmt.Errorf("%w: emotion %q, intensity %q", ErrInvalidEmotion, emotion, intensity)
	}
	return fmt.Errorf("%w: emotion %q, intensity %q (%s)", ErrInvalidEmotion, emotion, intensity, strings.Join(hints, " "))
}

// suggest returns the known name closest to input, or "" if nothing is close enough.
func suggest[K comparable](input string, names map[K]string) string {
	input = normalize(input)
	if input == "" {
		return ""
	}

	best, bestScore := "", 0.0
	for _, name := range names {
		score := strutil.Similarity(input, name, metrics.NewJaroWinkler())
		if score > bestScore || (score == bestScore && name < best) {
			best, bestScore = name, score
		}
	}
	if bestScore < suggestThreshold {
		return ""
	}
	return best
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
