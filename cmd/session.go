package cmd

import (
	"errors"
	"fmt"

	"github.com/board3d/board3d/asset/model"
	"github.com/board3d/board3d/board"
	"github.com/board3d/board3d/camera"
	"github.com/board3d/board3d/canvas"
	"github.com/board3d/board3d/config"
	"github.com/board3d/board3d/renderer"
	"github.com/board3d/board3d/scene"
	"github.com/urfave/cli"
)

// The state shared by the commands that operate on a board file.
type session struct {
	path     string
	settings *config.Settings
	board    *board.Board
	models   *model.Cache
	scenes   *renderer.SceneCache
	camera   *camera.Camera
	status   renderer.Reporter
	warn     renderer.Reporter
}

// Load the settings and the board named by the first command argument.
func openSession(ctx *cli.Context) (*session, error) {
	s := config.Default()
	if cfgFile := ctx.GlobalString("config"); cfgFile != "" {
		var err error
		if s, err = config.Load(cfgFile); err != nil {
			return nil, err
		}
	}
	if err := setupLogging(ctx, s.LogLevel); err != nil {
		return nil, err
	}

	if ctx.NArg() < 1 {
		return nil, errors.New("missing board file argument")
	}
	if ctx.Bool("no-postprocess") {
		s.Raytracing.PostProcessing = false
	}
	if workers := ctx.Int("workers"); workers > 0 {
		s.Raytracing.Workers = workers
	}

	path := ctx.Args().First()
	b, err := board.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Noticef("loaded board %q from %s", b.Name(), path)

	sess := &session{
		path:     path,
		settings: s,
		board:    b,
		models:   model.NewCache(path),
		scenes:   renderer.NewSceneCache(s, renderer.LogBusyIndicatorFactory("scene")),
		camera:   camera.NewFromSettings(s),
		status:   renderer.NewLogReporter("status"),
		warn:     renderer.NewLogReporter("warning"),
	}
	sess.scenes.SetBoard(b, sess.models)
	return sess, nil
}

// Build the scene of the loaded board.
func (sess *session) buildScene() (*scene.Scene, error) {
	sc, err := sess.scenes.Scene(sess.status)
	if err != nil {
		return nil, err
	}
	if sc == nil {
		return nil, canvas.ErrNoScene
	}
	return sc, nil
}

// Size the camera to a viewport, fit it to the scene and apply a view.
func (sess *session) setupCamera(sc *scene.Scene, viewName string, width, height int) error {
	v, ok := camera.ParseView(viewName)
	if !ok {
		return fmt.Errorf("unknown view %q", viewName)
	}

	cam := sess.camera
	cam.SetWindowSize(width, height)
	cam.SetBoardBBox(sc.BBox)
	for _, step := range []camera.View{camera.ViewTop, v} {
		if pose, ok := cam.ViewPose(step, sess.settings.Camera.RotationIncrement); ok {
			cam.SetPose(pose)
		}
	}
	return nil
}

// Create a canvas that is never shown. It serves off-screen renders and
// picking without a GPU context.
func (sess *session) headlessCanvas(width, height int, opts ...canvas.Option) *canvas.Canvas {
	opts = append([]canvas.Option{
		canvas.WithSceneCache(sess.scenes),
		canvas.WithReporters(sess.status, sess.warn),
	}, opts...)
	return canvas.New(canvas.NewContextRegistry(), headless{width, height}, sess.camera, sess.settings, nil, opts...)
}

// A surface that is never shown.
type headless struct {
	width, height int
}

func (h headless) IsShown() bool                            { return false }
func (h headless) Size() (int, int)                         { return h.width, h.height }
func (h headless) CreateContext() (canvas.GLContext, error) { return nil, canvas.ErrNoContext }
func (h headless) SwapBuffers()                             {}
