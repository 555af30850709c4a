// Package embed builds Spotify embed player URLs and iframe markup.
package embed

import (
	"fmt"
	"html"
	"net/url"
)

const baseURL = "https://open.spotify.com/embed"

const iframeFormat = `<iframe style="border-radius:12px" src="%s" width="100%%" height="352" frameBorder="0" allowfullscreen="" allow="autoplay; clipboard-write; encrypted-media; fullscreen; picture-in-picture" loading="lazy"></iframe>`

// PlaylistURL returns the embed player URL for a playlist.
func PlaylistURL(id string) string {
	return embedURL("playlist", id)
}

// TrackURL returns the embed player URL for a track.
func TrackURL(id string) string {
	return embedURL("track", id)
}

// Playlist returns iframe markup embedding a playlist player.
func Playlist(id string) string {
	return iframe(PlaylistURL(id))
}

// Track returns iframe markup embedding a track player.
func Track(id string) string {
	return iframe(TrackURL(id))
}

func embedURL(kind, id string) string {
	return fmt.Sprintf("%s/%s/%s?utm_source=generator", baseURL, kind, url.PathEscape(id))
}

func iframe(src string) string {
	return fmt.Sprintf(iframeFormat, html.EscapeString(src))
}
