package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/board3d/board3d/renderer"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
	"golang.org/x/image/tiff"
)

// Raytrace a still frame of a board and save it as a PNG or TIFF image.
func RenderFrame(ctx *cli.Context) error {
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}

	width, height := ctx.Int("width"), ctx.Int("height")
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: invalid frame size %dx%d", renderer.ErrInvalidParameter, width, height)
	}

	sc, err := sess.buildScene()
	if err != nil {
		return err
	}
	if err = sess.setupCamera(sc, ctx.String("view"), width, height); err != nil {
		return err
	}

	c := sess.headlessCanvas(width, height)
	defer c.Close()

	buf := make([]byte, width*height*4)
	if !c.RenderToFrameBuffer(buf, width, height) {
		return errors.New("off-screen render failed")
	}

	img := &image.RGBA{
		Pix:    buf,
		Stride: width * 4,
		Rect:   image.Rect(0, 0, width, height),
	}
	out := ctx.String("out")
	if err = writeImage(out, img); err != nil {
		return err
	}
	logger.Noticef("wrote %s", out)

	displayFrameStats(c.OffscreenStats())
	return nil
}

// Encode img using the format selected by the file extension.
func writeImage(path string, img image.Image) error {
	var encode func(f *os.File) error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".png":
		encode = func(f *os.File) error { return png.Encode(f, img) }
	case ".tif", ".tiff":
		encode = func(f *os.File) error {
			return tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
		}
	default:
		return fmt.Errorf("unsupported image format %q", ext)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err = encode(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func displayFrameStats(stats renderer.FrameStats) {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"Stage", "Value"})
	table.Append([]string{"Frame", fmt.Sprintf("%dx%d", stats.Width, stats.Height)})
	table.Append([]string{"Tiles", fmt.Sprintf("%d / %d", stats.TracedTiles, stats.Tiles)})
	table.Append([]string{"Workers", fmt.Sprintf("%d", stats.Workers)})
	table.Append([]string{"Primary rays", fmt.Sprintf("%d", stats.PrimaryRays)})
	table.Append([]string{"Shadow rays", fmt.Sprintf("%d", stats.ShadowRays)})
	table.Append([]string{"Secondary rays", fmt.Sprintf("%d", stats.SecondaryRays)})
	table.Append([]string{"Trace", stats.TraceTime.String()})
	table.Append([]string{"Shade", stats.ShadeTime.String()})
	table.Append([]string{"Blur", stats.BlurTime.String()})
	table.SetFooter([]string{"TOTAL", stats.RenderTime.String()})

	table.Render()
	logger.Noticef("frame statistics\n%s", buf.String())
}
