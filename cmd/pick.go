package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/board3d/board3d/canvas"
	"github.com/urfave/cli"
)

// Prints selected reference designators.
type printMessenger struct {
	out io.Writer
}

func (m printMessenger) SendSelection(reference string) {
	fmt.Fprintln(m.out, reference)
}

// Cast a pick ray through a viewport pixel and print the reference
// designator of the board item it hits.
func PickItem(ctx *cli.Context) error {
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	if ctx.NArg() != 3 {
		return errors.New("expected board file and pixel coordinates arguments")
	}
	x, err := strconv.ParseFloat(ctx.Args().Get(1), 32)
	if err != nil {
		return fmt.Errorf("invalid x coordinate: %w", err)
	}
	y, err := strconv.ParseFloat(ctx.Args().Get(2), 32)
	if err != nil {
		return fmt.Errorf("invalid y coordinate: %w", err)
	}

	width, height := ctx.Int("width"), ctx.Int("height")
	sc, err := sess.buildScene()
	if err != nil {
		return err
	}
	if err = sess.setupCamera(sc, ctx.String("view"), width, height); err != nil {
		return err
	}

	c := sess.headlessCanvas(width, height, canvas.WithMessenger(printMessenger{os.Stdout}))
	defer c.Close()

	item, ok := c.Pick(float32(x), float32(y))
	if !ok {
		logger.Noticef("no board item at (%g, %g)", x, y)
		return nil
	}
	logger.Infof("picked %s %q", item.Kind, item.Reference)
	return nil
}
