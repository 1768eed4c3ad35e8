// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Create the config file, initialize the database and run migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "rollback",
				Usage: "Roll back the most recent migration instead",
			},
		},
		Action: r.Setup,
	}
}

func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize with Spotify and store the tokens in the config file",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the browser redirect",
				Value: defaultAuthTimeout,
			},
		},
		Action: r.Auth,
	}
}

func populateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "populate",
		Usage:     "Upsert the whole library of one kind: tracks, artists, albums or playlists",
		ArgsUsage: "<kind>",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "kind",
			},
		},
		Action: r.Populate,
	}
}

func syncCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Fetch a playlist, run it through the pipeline and store its order",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:     "id",
				Usage:    "Local playlist id",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "resync",
				Usage: "Use the resync stages (adds live versions by default)",
			},
			&cli.BoolFlag{
				Name:  "push",
				Usage: "Write the result back to Spotify",
			},
		},
		Action: r.Sync,
	}
}

func pushCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "push",
		Usage: "Replace a Spotify playlist's contents with the stored order",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:     "id",
				Usage:    "Local playlist id",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "details",
				Usage: "Also push name, description and visibility",
			},
		},
		Action: r.Push,
	}
}

func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "List stored playlists with their track counts",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print JSON output",
				Value: true,
			},
		},
		Action: r.Playlists,
	}
}

func tracksCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "tracks",
		Usage: "Print a stored playlist in order",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:     "id",
				Usage:    "Local playlist id",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, csv, md or json",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write to a file instead of stdout",
			},
		},
		Action: r.Tracks,
	}
}
