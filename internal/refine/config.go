// Package refine maps a free-text description of a feeling onto a fixed emotion
// vocabulary using a Moonshot chat-completion model.
package refine

import "errors"

// ErrMissingAPIKey is returned when no Moonshot API key is configured.
var ErrMissingAPIKey = errors.New("missing Moonshot API key (set MOONSHOT_API_KEY)")

// Defaults applied to empty Config fields.
const (
	DefaultBaseURL = "https://api.moonshot.cn/v1"
	DefaultModel   = "moonshot-v1-8k"
)

// Config holds Moonshot API configuration.
type Config struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	return c
}
