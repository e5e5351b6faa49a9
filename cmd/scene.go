package cmd

import (
	"github.com/urfave/cli"
)

// Build the scene of a board and display its statistics.
func ShowSceneInfo(ctx *cli.Context) error {
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}

	sc, err := sess.buildScene()
	if err != nil {
		return err
	}

	logger.Noticef("scene information:\n%s", sc.Stats())
	return nil
}
