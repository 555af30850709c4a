// Command musical-bridges generates Spotify playlists for an emotion and serves the playlist API.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp(out, errOut io.Writer) *cli.Command {
	r := &runner{out: out, errOut: errOut}

	return &cli.Command{
		Name:  "musical-bridges",
		Usage: "Generate Spotify playlists that match how you feel",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file",
				Sources: cli.EnvVars("MUSICAL_BRIDGES_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error); overrides the configuration",
			},
		},
		Before: r.setup,
		Commands: []*cli.Command{
			serveCommand(r),
			generateCommand(r),
			emotionsCommand(r),
			logoutCommand(r),
		},
	}
}

func serveCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API with Spotify sign-in",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address; overrides the configuration",
			},
		},
		Action: r.Serve,
	}
}

func generateCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:  "generate",
		Usage: "Generate a playlist for an emotion from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "emotion",
				Aliases:  []string{"e"},
				Usage:    "Emotion: sad or angry",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "intensity",
				Aliases: []string{"i"},
				Usage:   "Intensity: normal or intense",
				Value:   "normal",
			},
			&cli.IntFlag{
				Name:  "top",
				Usage: "Number of top tracks to show (0 uses the configured default)",
			},
			&cli.BoolFlag{
				Name:  "publish",
				Usage: "Also create the playlist in your Spotify account",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the result as JSON",
			},
		},
		Action: r.Generate,
	}
}

func emotionsCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:   "emotions",
		Usage:  "List the supported emotion categories",
		Action: r.Emotions,
	}
}

func logoutCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Remove the cached Spotify token",
		Action: r.Logout,
	}
}
