package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
)

// Publish creates a playlist for the current user and adds the tracks to it.
// Returns the Spotify playlist ID.
func (c *Client) Publish(ctx context.Context, name, description string, trackIDs []string) (string, error) {
	id, err := c.CreatePlaylist(ctx, name, description, c.public)
	if err != nil {
		return "", err
	}
	if err := c.AddTracksToPlaylist(ctx, id, trackIDs); err != nil {
		if uerr := c.Unpublish(ctx, id); uerr != nil {
			c.logger.Warn("removing partially published playlist failed", "spotify_id", id, "err", uerr)
		}
		return "", err
	}
	c.logger.Info("published playlist", "name", name, "spotify_id", id, "tracks", len(trackIDs))
	return id, nil
}

// Unpublish unfollows a playlist, which is how Spotify deletes a playlist the user owns.
func (c *Client) Unpublish(ctx context.Context, playlistID string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	if err := c.api.UnfollowPlaylist(ctx, spotify.ID(playlistID)); err != nil {
		return fmt.Errorf("unfollowing playlist %s: %w", playlistID, mapError(err))
	}
	return nil
}

// CreatePlaylist creates a new playlist for the current user.
// Returns the playlist ID.
func (c *Client) CreatePlaylist(ctx context.Context, name, description string, public bool) (string, error) {
	userID, err := c.UserID(ctx)
	if err != nil {
		return "", err
	}

	if err := c.wait(ctx); err != nil {
		return "", err
	}
	playlist, err := c.api.CreatePlaylistForUser(ctx, userID, name, description, public, false)
	if err != nil {
		return "", fmt.Errorf("creating playlist: %w", mapError(err))
	}

	return playlist.ID.String(), nil
}

// AddTracksToPlaylist adds tracks to a playlist in batches of 100.
func (c *Client) AddTracksToPlaylist(ctx context.Context, playlistID string, trackIDs []string) error {
	if len(trackIDs) == 0 {
		return nil
	}

	ids := make([]spotify.ID, len(trackIDs))
	for i, id := range trackIDs {
		ids[i] = spotify.ID(id)
	}

	for i := 0; i < len(ids); i += maxTracksPerRequest {
		end := min(i+maxTracksPerRequest, len(ids))

		if err := c.wait(ctx); err != nil {
			return err
		}
		if _, err := c.api.AddTracksToPlaylist(ctx, spotify.ID(playlistID), ids[i:end]...); err != nil {
			return fmt.Errorf("adding tracks (batch %d-%d): %w", i+1, end, mapError(err))
		}
	}

	return nil
}
