// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// authCommand handles account linking operations
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Manage the Fitbit account link",
		Commands: []*cli.Command{
			{
				Name:  "connect",
				Usage: "Open the browser and link a Fitbit account",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.AuthConnect,
			},
			{
				Name:  "status",
				Usage: "Show the stored token and linked device",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.AuthStatus,
			},
			{
				Name:   "disconnect",
				Usage:  "Remove the stored token and device record",
				Action: r.AuthDisconnect,
			},
			{
				Name:  "manual",
				Usage: "Enter a redirect URL or bare token by hand",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "input"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "paste",
						Usage: "Read the input from the system clipboard",
					},
				},
				Action: r.AuthManual,
			},
			{
				Name:  "uri",
				Usage: "Handle an incoming deep-link URI",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "uri"},
				},
				Action: r.AuthURI,
			},
			{
				Name:    "ui",
				Aliases: []string{"interactive"},
				Usage:   "Link interactively in the terminal",
				Action:  r.TUI,
			},
		},
	}
}

// bridgeCommand runs the redirect capture server
func bridgeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "bridge",
		Usage: "Redirect bridge server operations",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Serve the redirect capture pages",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "host",
						Usage: "Listen host (overrides config)",
					},
					&cli.IntFlag{
						Name:  "port",
						Usage: "Listen port (overrides config)",
					},
				},
				Action: r.BridgeServe,
			},
		},
	}
}

// setupCommand handles setup operations for the database and configuration.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to configuration file",
						Value:   "config.toml",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive linking.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "tui",
		Aliases: []string{"ui"},
		Usage:   "Launch the interactive linking flow",
		Action:  r.TUI,
	}
}
