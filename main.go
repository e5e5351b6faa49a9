package main

import (
	"fmt"
	"os"

	"github.com/board3d/board3d/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	viewFlag := cli.StringFlag{
		Name:  "view",
		Value: "top",
		Usage: "initial view (front, back, left, right, top, bottom, rotate-x-cw, ...)",
	}

	app := cli.NewApp()
	app.Name = "board3d"
	app.Usage = "view and raytrace printed circuit boards in 3D"
	app.Version = "0.0.1"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "log level (debug, info, notice, warning, error)",
		},
		cli.StringFlag{
			Name:  "config, c",
			Usage: "YAML render settings file",
		},
	}
	app.Commands = []cli.Command{
		{
			Name:  "render",
			Usage: "raytrace a still frame of a board",
			Description: `
Build the 3D scene of a board, raytrace a single frame off-screen and save it
as a PNG or TIFF image depending on the output file extension.`,
			ArgsUsage: "board.yaml",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "width",
					Value: 1024,
					Usage: "frame width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 768,
					Usage: "frame height",
				},
				cli.IntFlag{
					Name:  "workers",
					Usage: "number of tracing workers (defaults to the number of CPUs)",
				},
				cli.BoolFlag{
					Name:  "no-postprocess",
					Usage: "disable the ambient occlusion post-processing pass",
				},
				viewFlag,
				cli.StringFlag{
					Name:  "out, o",
					Value: "frame.png",
					Usage: "image filename for the rendered frame (.png, .tif or .tiff)",
				},
			},
			Action: cmd.RenderFrame,
		},
		{
			Name:  "view",
			Usage: "open an interactive viewer for a board",
			Description: `
Press r to raytrace the current view, 1-6 for the predefined views, x/y/z and
the arrow keys to rotate (shift reverses or pans) and +/- to zoom. The board
file is reloaded when it changes on disk.`,
			ArgsUsage: "board.yaml",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "width",
					Value: 1024,
					Usage: "window width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 768,
					Usage: "window height",
				},
				viewFlag,
			},
			Action: cmd.ViewBoard,
		},
		{
			Name:      "info",
			Usage:     "display board scene statistics",
			ArgsUsage: "board.yaml",
			Action:    cmd.ShowSceneInfo,
		},
		{
			Name:      "pick",
			Usage:     "print the reference designator of the item under a viewport pixel",
			ArgsUsage: "board.yaml x y",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "width",
					Value: 1024,
					Usage: "viewport width",
				},
				cli.IntFlag{
					Name:  "height",
					Value: 768,
					Usage: "viewport height",
				},
				viewFlag,
			},
			Action: cmd.PickItem,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
