package canvas

import (
	"errors"
	"fmt"
	"image"
	"testing"
	"time"

	"github.com/board3d/board3d/board"
	"github.com/board3d/board3d/camera"
	"github.com/board3d/board3d/config"
	"github.com/board3d/board3d/renderer"
	"github.com/board3d/board3d/types"
)

type fakeContext struct {
	info      ContextInfo
	current   bool
	destroyed bool
}

func (c *fakeContext) MakeCurrent() error { c.current = true; return nil }
func (c *fakeContext) Release()           { c.current = false }
func (c *fakeContext) Info() ContextInfo  { return c.info }
func (c *fakeContext) Destroy()           { c.destroyed = true }

func (c *fakeContext) ReadPixels(width, height int) (*image.RGBA, error) {
	return image.NewRGBA(image.Rect(0, 0, width, height)), nil
}

type fakeSurface struct {
	shown     bool
	width     int
	height    int
	createErr error
	ctx       *fakeContext
	swaps     int
}

func (s *fakeSurface) IsShown() bool    { return s.shown }
func (s *fakeSurface) Size() (int, int) { return s.width, s.height }
func (s *fakeSurface) SwapBuffers()     { s.swaps++ }
func (s *fakeSurface) CreateContext() (GLContext, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.ctx = &fakeContext{info: ContextInfo{Version: "2.1", SupportsRaytracing: true}}
	return s.ctx, nil
}

type fakeRenderer struct {
	redraws       int
	lastMoving    bool
	reloads       int
	reloadPending bool
	waits         bool
	width         int
	height        int
	more          bool
	err           error
	panicMsg      string
	onRedraw      func()
	closed        bool
}

func (r *fakeRenderer) SetCurWindowSize(w, h int)    { r.width, r.height = w, h }
func (r *fakeRenderer) ReloadRequest()               { r.reloads++; r.reloadPending = true }
func (r *fakeRenderer) IsReloadRequestPending() bool { return r.reloadPending }
func (r *fakeRenderer) WaitForEditingTimeout() bool  { return r.waits }
func (r *fakeRenderer) Close()                       { r.closed = true }

func (r *fakeRenderer) Redraw(isMoving bool, _, _ renderer.Reporter) (bool, error) {
	r.redraws++
	r.lastMoving = isMoving
	r.reloadPending = false
	if r.onRedraw != nil {
		r.onRedraw()
	}
	if r.panicMsg != "" {
		panic(r.panicMsg)
	}
	return r.more, r.err
}

type collectingReporter struct {
	messages []string
}

func (r *collectingReporter) Report(msg string, _ renderer.Severity) {
	r.messages = append(r.messages, msg)
}

func (r *collectingReporter) Finalize() {}

type fakeMessenger struct {
	selected []string
}

func (m *fakeMessenger) SendSelection(reference string) {
	m.selected = append(m.selected, reference)
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	canvas  *Canvas
	surface *fakeSurface
	camera  *camera.Camera
	gl      *fakeRenderer
	rt      *fakeRenderer
	status  *collectingReporter
	warn    *collectingReporter
	clock   *fakeClock
	reg     *ContextRegistry
}

func newFixture(s *config.Settings) *fixture {
	if s == nil {
		s = config.Default()
	}
	f := &fixture{
		surface: &fakeSurface{shown: true, width: 64, height: 48},
		camera:  camera.NewFromSettings(s),
		gl:      &fakeRenderer{},
		rt:      &fakeRenderer{},
		status:  &collectingReporter{},
		warn:    &collectingReporter{},
		clock:   &fakeClock{now: time.Unix(1000, 0)},
		reg:     NewContextRegistry(),
	}
	f.canvas = New(f.reg, f.surface, f.camera, s, map[renderer.Engine]renderer.Renderer{
		renderer.EngineOpenGL:     f.gl,
		renderer.EngineRaytracing: f.rt,
	}, WithReporters(f.status, f.warn), WithClock(f.clock.Now))
	return f
}

func TestCanvasStartsWithOpenGL(t *testing.T) {
	f := newFixture(nil)
	if f.canvas.Engine() != renderer.EngineOpenGL {
		t.Fatalf("expected initial engine to be opengl; got %s", f.canvas.Engine())
	}

	f.canvas.DoRePaint()
	if f.gl.redraws != 1 || f.rt.redraws != 0 {
		t.Fatalf("expected only the opengl renderer to be invoked; got gl=%d rt=%d", f.gl.redraws, f.rt.redraws)
	}
	if f.surface.swaps != 1 {
		t.Fatalf("expected 1 buffer swap; got %d", f.surface.swaps)
	}
	if f.gl.width != 64 || f.gl.height != 48 {
		t.Fatalf("expected renderer size 64x48; got %dx%d", f.gl.width, f.gl.height)
	}
	if !f.canvas.Capabilities().GLInitialized {
		t.Fatal("expected GL to be initialized after the first paint")
	}
	if f.surface.ctx.current {
		t.Fatal("expected context to be released after the repaint")
	}
}

func TestRaytracingRequestAndFallback(t *testing.T) {
	type spec struct {
		name   string
		change func(f *fixture)
	}
	specs := []spec{
		{"camera change", func(f *fixture) { f.camera.Zoom(1.5) }},
		{"resize", func(f *fixture) { f.surface.width = 80 }},
		{"mouse motion", func(f *fixture) {
			f.canvas.OnMouseDown(MouseLeft, 10, 10)
			f.canvas.OnMouseMove(20, 15)
		}},
		{"animation", func(f *fixture) { f.canvas.SetView3D(camera.ViewBottom) }},
	}

	for _, s := range specs {
		f := newFixture(nil)
		f.canvas.DoRePaint()
		f.canvas.RenderRaytracingRequest()
		if f.canvas.Engine() != renderer.EngineRaytracing || !f.canvas.RaytraceRequested() {
			t.Fatalf("[%s] expected raytracing to be requested", s.name)
		}
		if f.rt.reloads != 1 {
			t.Fatalf("[%s] expected raytracer to be restarted; got %d reloads", s.name, f.rt.reloads)
		}

		f.clock.Advance(time.Second)
		f.canvas.DoRePaint()
		if f.rt.redraws != 1 {
			t.Fatalf("[%s] expected raytracer to be invoked; got %d", s.name, f.rt.redraws)
		}

		s.change(f)
		glRedraws := f.gl.redraws
		f.canvas.DoRePaint()

		if f.canvas.Engine() != renderer.EngineOpenGL {
			t.Fatalf("[%s] expected fallback to opengl; got %s", s.name, f.canvas.Engine())
		}
		if f.canvas.RaytraceRequested() {
			t.Fatalf("[%s] expected raytrace request to be cleared", s.name)
		}
		if f.rt.redraws != 1 || f.gl.redraws != glRedraws+1 {
			t.Fatalf("[%s] expected the fallback tick to use opengl; got gl=%d rt=%d", s.name, f.gl.redraws-glRedraws, f.rt.redraws)
		}
	}
}

func TestSingleFlightRepaint(t *testing.T) {
	f := newFixture(nil)
	f.gl.onRedraw = func() {
		// Re-entrant repaint requests are dropped.
		f.canvas.DoRePaint()
	}

	f.canvas.DoRePaint()
	if f.gl.redraws != 1 {
		t.Fatalf("expected 1 redraw; got %d", f.gl.redraws)
	}
	if pending, immediate := f.canvas.PendingRefresh(); !pending || !immediate {
		t.Fatalf("expected the dropped repaint to leave an immediate pending request; got pending=%t immediate=%t", pending, immediate)
	}

	f.gl.onRedraw = nil
	if !f.canvas.ProcessPending() {
		t.Fatal("expected the pending request to be processed")
	}
	if f.gl.redraws != 2 {
		t.Fatalf("expected 2 redraws; got %d", f.gl.redraws)
	}
	if f.canvas.ProcessPending() {
		t.Fatal("expected no pending requests")
	}
}

func TestPendingRequestsCoalesce(t *testing.T) {
	f := newFixture(nil)
	f.canvas.RequestRefresh(false)
	f.canvas.RequestRefresh(true)
	f.canvas.RequestRefresh(false)

	if pending, immediate := f.canvas.PendingRefresh(); !pending || !immediate {
		t.Fatalf("expected a single immediate request; got pending=%t immediate=%t", pending, immediate)
	}
	f.canvas.ProcessPending()
	f.canvas.ProcessPending()
	if f.gl.redraws != 1 {
		t.Fatalf("expected coalesced requests to trigger 1 redraw; got %d", f.gl.redraws)
	}
}

func TestHiddenSurfaceIsNoop(t *testing.T) {
	f := newFixture(nil)
	f.surface.shown = false

	f.canvas.DoRePaint()
	if f.reg.Len() != 0 {
		t.Fatal("expected no context to be created for a hidden surface")
	}
	if f.gl.redraws != 0 || f.surface.swaps != 0 {
		t.Fatal("expected no rendering on a hidden surface")
	}
	if len(f.warn.messages) != 0 {
		t.Fatalf("expected no warnings; got %v", f.warn.messages)
	}
	if _, err := f.canvas.GetScreenshot(); !errors.Is(err, ErrNotShown) {
		t.Fatalf("expected error %v; got %v", ErrNotShown, err)
	}
}

func TestContextCreationFailure(t *testing.T) {
	f := newFixture(nil)
	f.surface.createErr = errors.New("no visual")

	f.canvas.DoRePaint()
	if len(f.warn.messages) != 1 {
		t.Fatalf("expected 1 warning; got %v", f.warn.messages)
	}
	if f.gl.redraws != 0 {
		t.Fatal("expected the tick to be abandoned")
	}

	f.surface.createErr = nil
	f.canvas.DoRePaint()
	if f.gl.redraws != 1 || f.reg.Len() != 1 {
		t.Fatalf("expected the next tick to create the context and render; got %d redraws, %d contexts", f.gl.redraws, f.reg.Len())
	}
}

func TestRuntimeFailureDowngradesCapabilities(t *testing.T) {
	type spec struct {
		name     string
		err      error
		panicMsg string
	}
	specs := []spec{
		{"error", renderer.ErrContextLost, ""},
		{"panic", nil, "invalid texture"},
	}

	for _, s := range specs {
		f := newFixture(nil)
		f.rt.err = s.err
		f.rt.panicMsg = s.panicMsg

		f.canvas.DoRePaint()
		f.canvas.RenderRaytracingRequest()
		f.clock.Advance(time.Second)
		f.canvas.DoRePaint()

		caps := f.canvas.Capabilities()
		if caps.SupportsRaytracing || caps.GLInitialized {
			t.Fatalf("[%s] expected capabilities to be downgraded; got %+v", s.name, caps)
		}
		if f.canvas.Engine() != renderer.EngineOpenGL || f.canvas.RaytraceRequested() {
			t.Fatalf("[%s] expected fallback to opengl", s.name)
		}
		if len(f.warn.messages) != 1 {
			t.Fatalf("[%s] expected 1 warning; got %v", s.name, f.warn.messages)
		}

		// GL is re-initialized but raytracing stays disabled.
		f.canvas.DoRePaint()
		caps = f.canvas.Capabilities()
		if !caps.GLInitialized || caps.SupportsRaytracing {
			t.Fatalf("[%s] expected GL to be re-initialized without raytracing; got %+v", s.name, caps)
		}
		f.canvas.RenderRaytracingRequest()
		if f.canvas.Engine() != renderer.EngineOpenGL {
			t.Fatalf("[%s] expected raytracing requests to be rejected", s.name)
		}
		if f.rt.redraws != 1 {
			t.Fatalf("[%s] expected the failing renderer not to be retried; got %d redraws", s.name, f.rt.redraws)
		}
	}
}

func TestFramebufferFailureKeepsCapabilities(t *testing.T) {
	f := newFixture(nil)
	f.rt.err = fmt.Errorf("resize: %w", renderer.ErrFramebufferIncomplete)

	f.canvas.DoRePaint()
	f.canvas.RenderRaytracingRequest()
	f.canvas.pending.take()
	f.clock.Advance(time.Second)
	f.canvas.DoRePaint()

	caps := f.canvas.Capabilities()
	if !caps.GLInitialized || !caps.SupportsRaytracing {
		t.Fatalf("expected capabilities to be kept; got %+v", caps)
	}
	if f.canvas.Engine() != renderer.EngineOpenGL || f.canvas.RaytraceRequested() {
		t.Fatal("expected the tick to fall back to opengl")
	}
	if len(f.warn.messages) != 1 {
		t.Fatalf("expected 1 warning; got %v", f.warn.messages)
	}
	if pending, immediate := f.canvas.PendingRefresh(); !pending || immediate {
		t.Fatalf("expected a deferred repaint; got pending=%t immediate=%t", pending, immediate)
	}

	// The next natural repaint trigger may use raytracing again.
	f.rt.err = nil
	f.canvas.RenderRaytracingRequest()
	if f.canvas.Engine() != renderer.EngineRaytracing {
		t.Fatalf("expected raytracing to be accepted again; got %s", f.canvas.Engine())
	}
	f.clock.Advance(time.Second)
	f.canvas.DoRePaint()
	if f.rt.redraws != 2 {
		t.Fatalf("expected the raytracer to be invoked again; got %d redraws", f.rt.redraws)
	}
	if len(f.warn.messages) != 1 {
		t.Fatalf("expected no further warnings; got %v", f.warn.messages)
	}
}

func TestIdleTimeoutOnlyForWaitingRenderers(t *testing.T) {
	type spec struct {
		name      string
		waits     bool
		expMoving bool
		expRedraw bool
	}
	specs := []spec{
		{"waiting renderer", true, true, true},
		{"immediate renderer", false, false, false},
	}

	for _, s := range specs {
		f := newFixture(nil)
		f.gl.waits = s.waits
		f.canvas.DoRePaint()

		f.canvas.OnMouseWheel(1)
		f.canvas.pending.take()
		f.clock.Advance(10 * time.Millisecond)
		f.canvas.DoRePaint()

		if f.gl.lastMoving != s.expMoving {
			t.Fatalf("[%s] expected moving=%t; got %t", s.name, s.expMoving, f.gl.lastMoving)
		}
		if pending, immediate := f.canvas.PendingRefresh(); pending != s.expRedraw || immediate {
			t.Fatalf("[%s] expected pending=%t immediate=false; got pending=%t immediate=%t", s.name, s.expRedraw, pending, immediate)
		}
	}
}

func TestPendingReloadRepaint(t *testing.T) {
	f := newFixture(nil)
	f.canvas.DoRePaint()
	f.canvas.pending.take()

	f.gl.ReloadRequest()
	f.canvas.DoRePaint()
	if len(f.status.messages) != 1 || f.status.messages[0] != "loading 3D board" {
		t.Fatalf("expected a loading status message; got %v", f.status.messages)
	}
	if pending, _ := f.canvas.PendingRefresh(); pending {
		t.Fatal("expected no repaint once the reload is served")
	}

	// A reload queued while drawing is served by an immediate repaint.
	f.gl.onRedraw = func() { f.gl.ReloadRequest() }
	f.canvas.DoRePaint()
	if pending, immediate := f.canvas.PendingRefresh(); !pending || !immediate {
		t.Fatalf("expected an immediate repaint for the queued reload; got pending=%t immediate=%t", pending, immediate)
	}

	f.gl.onRedraw = nil
	f.canvas.ProcessPending()
	if len(f.status.messages) != 2 {
		t.Fatalf("expected a second loading status message; got %v", f.status.messages)
	}
	if f.gl.IsReloadRequestPending() {
		t.Fatal("expected the queued reload to be served")
	}
}

func TestSetView3DAnimation(t *testing.T) {
	s := config.Default()
	s.Camera.Animate = true
	s.Camera.MovingSpeedMultiplier = 1
	s.Camera.IdleTimeout = 300 * time.Millisecond
	f := newFixture(s)
	f.gl.waits = true
	f.canvas.DoRePaint()

	if f.canvas.SetView3D(camera.ViewNone) {
		t.Fatal("expected unknown view not to be handled")
	}
	if !f.canvas.SetView3D(camera.ViewZoomIn) {
		t.Fatal("expected zoom in to be handled")
	}
	startDistance := f.camera.Pose().Distance

	f.clock.Advance(500 * time.Millisecond)
	f.canvas.DoRePaint()
	if !f.gl.lastMoving || !f.camera.IsAnimating() {
		t.Fatal("expected the view to be moving while animating")
	}
	if pending, _ := f.canvas.PendingRefresh(); !pending {
		t.Fatal("expected the animation to request another repaint")
	}

	f.clock.Advance(600 * time.Millisecond)
	f.canvas.ProcessPending()
	if f.camera.IsAnimating() {
		t.Fatal("expected the animation to end once its time exceeds 1")
	}
	if got, exp := f.camera.Pose().Distance, startDistance/1.25; got < exp-1e-3 || got > exp+1e-3 {
		t.Fatalf("expected final distance %f; got %f", exp, got)
	}

	// The idle timeout is re-armed when the animation ends.
	f.clock.Advance(100 * time.Millisecond)
	f.canvas.DoRePaint()
	if !f.gl.lastMoving {
		t.Fatal("expected the view to be moving until the idle timeout expires")
	}
	f.clock.Advance(time.Second)
	f.canvas.DoRePaint()
	if f.gl.lastMoving {
		t.Fatal("expected the view to be idle after the timeout")
	}
}

func TestSetView3DWithoutAnimation(t *testing.T) {
	s := config.Default()
	s.Camera.Animate = false
	f := newFixture(s)
	f.canvas.DoRePaint()

	if !f.canvas.OnKey("bottom") {
		t.Fatal("expected view key to be handled")
	}
	if f.camera.IsAnimating() {
		t.Fatal("expected the pose to be applied immediately")
	}
	if dir := f.camera.Dir(); dir[2] < 0.99 {
		t.Fatalf("expected the bottom view to look up; got %v", dir)
	}
	if f.canvas.OnKey("unknown") {
		t.Fatal("expected unknown keys not to be handled")
	}
}

func pickBoard() *board.Board {
	return board.New(board.Layout{
		Outline: []types.Vec2{{0, 0}, {20, 0}, {20, 20}, {0, 20}},
		Pads:    []board.Pad{{Reference: "R1", Position: types.Vec2{15, 15}, Size: types.Vec2{2, 1}, Shape: board.PadRect}},
	})
}

func TestPickSendsSelection(t *testing.T) {
	s := config.Default()
	s.ShowSolderMask = false
	cache := renderer.NewSceneCache(s, nil)
	messenger := &fakeMessenger{}

	cam := camera.NewFromSettings(s)
	c := New(NewContextRegistry(), &fakeSurface{shown: true, width: 100, height: 100}, cam, s,
		map[renderer.Engine]renderer.Renderer{renderer.EngineOpenGL: &fakeRenderer{}},
		WithSceneCache(cache), WithMessenger(messenger))

	if _, ok := c.Pick(50, 50); ok {
		t.Fatal("expected picking without a scene to fail")
	}

	c.ReloadRequest(pickBoard(), nil)
	if _, err := cache.Scene(nil); err != nil {
		t.Fatal(err)
	}
	cam.SetWindowSize(100, 100)
	cam.SetPose(camera.Pose{Target: types.Vec3{15, 15, 0}, Rotation: types.QuatIdent(), Distance: 50})

	item, ok := c.Pick(50, 50)
	if !ok || item.Kind != board.KindPad || item.Reference != "R1" {
		t.Fatalf("expected to pick pad R1; got %v (%t)", item, ok)
	}
	if len(messenger.selected) != 1 || messenger.selected[0] != "R1" {
		t.Fatalf("expected selection message for R1; got %v", messenger.selected)
	}

	cam.SetPose(camera.Pose{Target: types.Vec3{100, 100, 0}, Rotation: types.QuatIdent(), Distance: 50})
	if _, ok := c.Pick(50, 50); ok {
		t.Fatal("expected picking outside the board to fail")
	}
	if len(messenger.selected) != 1 {
		t.Fatalf("expected no further selection messages; got %v", messenger.selected)
	}
}

func TestRenderToFrameBuffer(t *testing.T) {
	s := config.Default()
	s.Raytracing.Workers = 2
	s.Raytracing.AntiAliasing = false
	f := newFixture(s)

	type spec struct {
		buf           []byte
		width, height int
	}
	specs := []spec{
		{nil, 8, 8},
		{make([]byte, 8*8*4), 0, 8},
		{make([]byte, 8*8*4), 8, -1},
		{make([]byte, 8*8*4-1), 8, 8},
	}
	for index, sp := range specs {
		if f.canvas.RenderToFrameBuffer(sp.buf, sp.width, sp.height) {
			t.Fatalf("[spec %d] expected invalid parameters to be rejected", index)
		}
	}
	if len(f.warn.messages) != 0 {
		t.Fatalf("expected parameter validation to have no side effects; got %v", f.warn.messages)
	}

	f.canvas.ReloadRequest(pickBoard(), nil)
	f.camera.SetPose(camera.Pose{Target: types.Vec3{10, 10, 0}, Rotation: types.QuatIdent(), Distance: 40})
	buf := make([]byte, 16*16*4)
	if !f.canvas.RenderToFrameBuffer(buf, 16, 16) {
		t.Fatalf("expected off-screen render to succeed; warnings: %v", f.warn.messages)
	}

	opaque := true
	for i := 3; i < len(buf); i += 4 {
		if buf[i] != 255 {
			opaque = false
		}
	}
	if !opaque {
		t.Fatal("expected an opaque frame")
	}
	if w, h := f.camera.WindowSize(); w == 16 && h == 16 {
		t.Fatal("expected the canvas camera to be left untouched")
	}
}

func TestCloseDestroysContext(t *testing.T) {
	f := newFixture(nil)
	f.canvas.DoRePaint()
	f.canvas.Close()

	if !f.surface.ctx.destroyed || f.reg.Len() != 0 {
		t.Fatal("expected the context to be destroyed")
	}
	if !f.gl.closed || !f.rt.closed {
		t.Fatal("expected renderers to be closed")
	}
}
