// submodule cmd contains command definitions
package main

import (
	"fmt"
	"strings"

	"github.com/desertthunder/ytpub/internal/formatter"
	"github.com/urfave/cli/v3"
)

// setupCommand handles setup operations for the database and the label tree.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write config.toml from the built-in template",
				Action: r.SetupConfig,
			},
			{
				Name:  "database",
				Usage: "Initialize database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Revert the most recent migration instead of applying pending ones",
					},
				},
				Action: r.SetupDatabase,
			},
			{
				Name:  "labels",
				Usage: "Create the root, playlist root, published marker and default playlist labels",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Update titles of labels that already exist",
					},
				},
				Action: r.SetupLabels,
			},
		},
	}
}

// assetCommand manages catalog assets.
func assetCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "asset",
		Usage: "Catalog asset operations",
		Commands: []*cli.Command{
			{
				Name:  "import",
				Usage: "Import labels and assets from a TOML file",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.AssetImport,
			},
			{
				Name:  "list",
				Usage: "List assets with their publication status",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "label",
						Usage: "Only assets carrying every given label code",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.AssetList,
			},
		},
	}
}

// publishCommand drives the publication engine.
func publishCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "publish",
		Aliases: []string{"pub"},
		Usage:   "YouTube publication operations",
		Commands: []*cli.Command{
			{
				Name:  "upload",
				Usage: "Upload new assets and retry failed or removed ones",
				Flags: []cli.Flag{
					watchFlag(),
					&cli.StringFlag{
						Name:  "category",
						Usage: "Override the configured video category",
					},
					&cli.StringFlag{
						Name:  "privacy",
						Usage: "Override the configured upload privacy (public, unlisted, private)",
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Ask the platform to accept re-uploads of previously published media",
					},
				},
				Action: r.PublishUpload,
			},
			{
				Name:   "status",
				Usage:  "Reconcile processing, published and duplicated videos with YouTube",
				Flags:  []cli.Flag{watchFlag()},
				Action: r.PublishStatus,
			},
			{
				Name:   "playlists",
				Usage:  "Synchronize playlist membership of published videos",
				Flags:  []cli.Flag{watchFlag()},
				Action: r.PublishPlaylists,
			},
			{
				Name:   "metadata",
				Usage:  "Push edited titles, descriptions and keywords to YouTube",
				Flags:  []cli.Flag{watchFlag()},
				Action: r.PublishMetadata,
			},
			{
				Name:   "delete",
				Usage:  "Delete the video of an asset and forget its publication",
				Flags:  []cli.Flag{assetFlag()},
				Action: r.PublishDelete,
			},
			{
				Name:   "recover",
				Usage:  "Rebuild the publication record of an asset from its stored watch link",
				Flags:  []cli.Flag{assetFlag()},
				Action: r.PublishRecover,
			},
			{
				Name:  "report",
				Usage: "Export the publication state of the catalog",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   fmt.Sprintf("Report format (%s)", strings.Join(formatter.Formats(), ", ")),
						Value:   formatter.FormatText,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write the report to a file instead of stdout",
					},
					&cli.StringFlag{
						Name:  "status",
						Usage: "Only publications in this status",
					},
				},
				Action: r.PublishReport,
			},
		},
	}
}

func watchFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "watch",
		Usage: "Follow the batch in an interactive progress view",
	}
}

func assetFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "asset",
		Usage:    "Asset ID",
		Required: true,
	}
}

// serveCommand runs the health, metrics and report endpoints.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve health, metrics and publication report endpoints",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to server.host:server.port)",
			},
		},
		Action: r.Serve,
	}
}
