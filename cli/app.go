// Package cli contains the floormap command line tool.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	// Flags.
	generalFlagDebug   = "debug"
	generalFlagLogFile = "log-file"

	replayFlagConfig       = "config"
	replayFlagTrajectory   = "trajectory"
	replayFlagPeriod       = "period"
	replayFlagParallel     = "parallel"
	replayFlagNotes        = "notes"
	outputFlagDir          = "out"
	outputFlagName         = "name"
	outputFlagHeatmapScale = "heatmap-scale"
	storeFlagDB            = "db"
	storeFlagSession       = "session"

	defaultMapName = "map"
)

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     outputFlagDir,
			Aliases:  []string{"o"},
			Usage:    "write the map image, metadata and heatmap into `DIR`",
			Required: true,
		},
		&cli.StringFlag{
			Name:  outputFlagName,
			Value: defaultMapName,
			Usage: "base name of the written files",
		},
		&cli.IntFlag{
			Name:  outputFlagHeatmapScale,
			Value: 4,
			Usage: "pixels per cell in the heatmap, 0 to skip it",
		},
	}
}

var app = &cli.App{
	Name:            "floormap",
	Usage:           "build floor occupancy grids from point clouds",
	HideHelpCommand: true,
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    generalFlagDebug,
			Aliases: []string{"vvv"},
			Usage:   "enable debug logging",
		},
		&cli.StringFlag{
			Name:  generalFlagLogFile,
			Usage: "also write logs to `FILE`, rotating it as it grows",
		},
	},
	Commands: []*cli.Command{
		{
			Name:      "replay",
			Usage:     "replay recorded point clouds into a map",
			ArgsUsage: "<cloud.pcd|cloud.las>...",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:     replayFlagConfig,
					Aliases:  []string{"c"},
					Usage:    "load configuration from `FILE`",
					Required: true,
				},
				&cli.StringFlag{
					Name:  replayFlagTrajectory,
					Usage: "YAML list of timestamped base poses in the map frame",
				},
				&cli.DurationFlag{
					Name:  replayFlagPeriod,
					Value: defaultPeriod,
					Usage: "time between consecutive clouds",
				},
				&cli.IntFlag{
					Name:  replayFlagParallel,
					Value: defaultParallelLoads,
					Usage: "number of clouds to load at once",
				},
				&cli.StringFlag{
					Name:  storeFlagDB,
					Usage: "store the final snapshot in the sqlite database at `FILE`",
				},
				&cli.StringFlag{
					Name:  replayFlagNotes,
					Usage: "notes saved with the stored session",
				},
			}, outputFlags()...),
			Action: ReplayAction,
		},
		{
			Name:  "export",
			Usage: "write the latest stored snapshot as map files",
			Flags: append([]cli.Flag{
				&cli.StringFlag{
					Name:     storeFlagDB,
					Usage:    "sqlite database holding the snapshots",
					Required: true,
				},
				&cli.StringFlag{
					Name:  storeFlagSession,
					Usage: "export from this session instead of the newest one",
				},
			}, outputFlags()...),
			Action: ExportAction,
		},
		{
			Name:  "list",
			Usage: "list stored sessions",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:     storeFlagDB,
					Usage:    "sqlite database holding the snapshots",
					Required: true,
				},
			},
			Action: ListAction,
		},
	},
}

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	app.Writer = out
	app.ErrWriter = errOut
	return app
}
