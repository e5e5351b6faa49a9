package cmd

import (
	"fmt"

	"github.com/board3d/board3d/board"
	"github.com/board3d/board3d/canvas"
	"github.com/board3d/board3d/config"
	"github.com/board3d/board3d/host"
	"github.com/board3d/board3d/renderer"
	"github.com/board3d/board3d/renderer/opengl"
	"github.com/board3d/board3d/tracer"
	"github.com/urfave/cli"
)

// Logs selections and shows them in the window title.
type titleMessenger struct {
	win   *host.Window
	board string
}

func (m titleMessenger) SendSelection(reference string) {
	logger.Noticef("selected %s", reference)
	m.win.SetTitle(fmt.Sprintf("board3d - %s [%s]", m.board, reference))
}

// Open an interactive viewer window for a board. The board file is watched
// and reloaded when it changes.
func ViewBoard(ctx *cli.Context) error {
	sess, err := openSession(ctx)
	if err != nil {
		return err
	}
	s := sess.settings

	samples := 0
	if s.OpenGL.AntiAliasing {
		samples = 4
	}
	win, err := host.New(host.Options{
		Title:       "board3d - " + sess.board.Name(),
		Width:       ctx.Int("width"),
		Height:      ctx.Int("height"),
		Samples:     samples,
		IdleTimeout: s.Camera.IdleTimeout,
	})
	if err != nil {
		return err
	}
	defer win.Close()

	sc, err := sess.buildScene()
	if err != nil {
		return err
	}
	fbW, fbH := win.Size()
	if err = sess.setupCamera(sc, ctx.String("view"), fbW, fbH); err != nil {
		return err
	}

	renderers := map[renderer.Engine]renderer.Renderer{
		renderer.EngineOpenGL:     opengl.NewRasterizer(sess.camera, sess.scenes, s),
		renderer.EngineRaytracing: opengl.NewTextureTracer(tracer.New(sess.camera, sess.scenes, s, renderer.Options{})),
	}
	c := canvas.New(canvas.NewContextRegistry(), win, sess.camera, s, renderers,
		canvas.WithSceneCache(sess.scenes),
		canvas.WithReporters(sess.status, sess.warn),
		canvas.WithMessenger(titleMessenger{win: win, board: sess.board.Name()}),
	)
	defer c.Close()
	win.Attach(c)

	watcher, err := board.Watch(sess.path, board.DefaultDebounce, func(path string) {
		win.Post(func() {
			b, err := board.Load(path)
			if err != nil {
				logger.Warningf("could not reload board: %v", err)
				return
			}
			logger.Noticef("reloading board %q", b.Name())
			c.ReloadRequest(b, sess.models)
		})
	})
	if err != nil {
		logger.Warningf("board changes will not be tracked: %v", err)
	} else {
		defer watcher.Close()
	}

	// The first paint picks up the window size; an engine switch before it
	// would be cancelled by the resize.
	c.DoRePaint()
	if s.RenderEngine == config.EngineRaytracing {
		c.RenderRaytracingRequest()
	}

	win.Run()
	return nil
}
