package cmd

import (
	"github.com/board3d/board3d/log"
	"github.com/urfave/cli"
)

var logger = log.New("board3d")

// Apply the verbosity requested by the settings file and the global flags.
// The flags take precedence.
func setupLogging(ctx *cli.Context, settingsLevel string) error {
	if settingsLevel != "" {
		level, err := log.ParseLevel(settingsLevel)
		if err != nil {
			return err
		}
		log.SetLevel(level)
	}

	if name := ctx.GlobalString("log-level"); name != "" {
		level, err := log.ParseLevel(name)
		if err != nil {
			return err
		}
		log.SetLevel(level)
	}

	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}
	return nil
}
