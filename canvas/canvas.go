// Package canvas coordinates the rasterizer and the raytracer that share a
// surface. It owns the engine selection, the repaint discipline and the
// camera animation clock.
package canvas

import (
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/board3d/board3d/board"
	"github.com/board3d/board3d/camera"
	"github.com/board3d/board3d/config"
	"github.com/board3d/board3d/log"
	"github.com/board3d/board3d/renderer"
	"github.com/board3d/board3d/tracer"
)

// Upper bound of ticks for a synchronous off-screen render.
const maxOffscreenTicks = 1 << 20

// Capability flags. Once a capability is lost it is not checked again.
type Capabilities struct {
	GLInitialized      bool
	SupportsRaytracing bool
}

// A single slot repaint request. Requests posted while one is pending are
// merged into it.
type pendingRepaint struct {
	mutex     sync.Mutex
	set       bool
	immediate bool
}

func (p *pendingRepaint) post(immediate bool) {
	p.mutex.Lock()
	p.set = true
	p.immediate = p.immediate || immediate
	p.mutex.Unlock()
}

func (p *pendingRepaint) peek() (bool, bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.set, p.immediate
}

func (p *pendingRepaint) take() bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	set := p.set
	p.set, p.immediate = false, false
	return set
}

// Canvas drives the renderers of a single surface.
type Canvas struct {
	logger   log.Logger
	registry *ContextRegistry
	surface  Surface
	camera   *camera.Camera
	settings *config.Settings

	renderers map[renderer.Engine]renderer.Renderer
	scenes    *renderer.SceneCache
	status    renderer.Reporter
	warn      renderer.Reporter
	messenger Messenger
	clock     func() time.Time
	opts      renderer.Options

	ctx              GLContext
	caps             Capabilities
	raytracingFailed bool

	engine            renderer.Engine
	raytraceRequested bool

	repainting atomic.Bool
	pending    pendingRepaint

	width, height int

	mouseDown    bool
	mouseMoving  bool
	mouseButton  MouseButton
	lastMouse    [2]float32
	lastMotion   time.Time
	lastAnimTick time.Time
	generation   uint64

	offscreenStats renderer.FrameStats
}

// An option for New.
type Option func(c *Canvas)

// Set the status and warning reporters.
func WithReporters(status, warn renderer.Reporter) Option {
	return func(c *Canvas) {
		if status != nil {
			c.status = status
		}
		if warn != nil {
			c.warn = warn
		}
	}
}

// Set the messenger notified about picked items.
func WithMessenger(m Messenger) Option {
	return func(c *Canvas) {
		c.messenger = m
	}
}

// Set the scene cache shared with the renderers.
func WithSceneCache(cache *renderer.SceneCache) Option {
	return func(c *Canvas) {
		c.scenes = cache
	}
}

// Override the clock used for animations and the idle timeout.
func WithClock(clock func() time.Time) Option {
	return func(c *Canvas) {
		c.clock = clock
	}
}

// Set the options used for off-screen raytracing.
func WithRenderOptions(opts renderer.Options) Option {
	return func(c *Canvas) {
		c.opts = opts
	}
}

// Create a new canvas. The canvas starts with the OpenGL engine.
func New(reg *ContextRegistry, surface Surface, cam *camera.Camera, s *config.Settings, renderers map[renderer.Engine]renderer.Renderer, opts ...Option) *Canvas {
	if s == nil {
		s = config.Default()
	}
	c := &Canvas{
		logger:    log.New("canvas"),
		registry:  reg,
		surface:   surface,
		camera:    cam,
		settings:  s,
		renderers: renderers,
		status:    renderer.NopReporter,
		warn:      renderer.NopReporter,
		clock:     time.Now,
		engine:    renderer.EngineOpenGL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.scenes == nil {
		c.scenes = renderer.NewSceneCache(s, nil)
	}
	c.camera.SetAnimation(s.Camera.Interpolation, s.Camera.MovingSpeedMultiplier)
	return c
}

// Get the active engine.
func (c *Canvas) Engine() renderer.Engine {
	return c.engine
}

// Returns true if raytracing was requested and not cancelled by a view change.
func (c *Canvas) RaytraceRequested() bool {
	return c.raytraceRequested
}

// Get the capability flags.
func (c *Canvas) Capabilities() Capabilities {
	return c.caps
}

// Replace the board and rebuild the scene at the next repaint.
func (c *Canvas) ReloadRequest(p board.Provider, models board.ModelCache) {
	c.scenes.SetBoard(p, models)
	for _, r := range c.renderers {
		r.ReloadRequest()
	}
	c.RequestRefresh(true)
}

// Switch to the raytracing engine. The request is cancelled by any view
// change.
func (c *Canvas) RenderRaytracingRequest() {
	if c.ctx != nil && !c.caps.SupportsRaytracing {
		c.warn.Report("raytracing is not supported by this GPU context", renderer.SeverityWarning)
		c.warn.Finalize()
		return
	}
	r, ok := c.renderers[renderer.EngineRaytracing]
	if !ok {
		return
	}

	// Consume pending camera changes so that they do not cancel the request
	// and restart the raytracer from scratch.
	c.camera.ParametersChanged()
	r.ReloadRequest()

	c.raytraceRequested = true
	c.engine = renderer.EngineRaytracing
	c.logger.Info("switching to raytracing")
	c.RequestRefresh(true)
}

// Post a repaint request. Immediate requests should be processed without
// delay; others may be deferred by the host.
func (c *Canvas) RequestRefresh(immediate bool) {
	c.pending.post(immediate)
}

// Get the pending repaint request state.
func (c *Canvas) PendingRefresh() (pending, immediate bool) {
	return c.pending.peek()
}

// Repaint if a request is pending. Returns true if a repaint was attempted.
func (c *Canvas) ProcessPending() bool {
	if !c.pending.take() {
		return false
	}
	c.DoRePaint()
	return true
}

// Render a tick with the active engine. Concurrent calls are dropped and
// recorded as a pending request.
func (c *Canvas) DoRePaint() {
	if !c.repainting.CompareAndSwap(false, true) {
		c.pending.post(true)
		return
	}
	defer c.repainting.Store(false)

	if !c.surface.IsShown() {
		return
	}

	if c.ctx == nil {
		ctx, err := c.registry.Create(c.surface)
		if err != nil {
			c.warn.Report(fmt.Sprintf("could not create GPU context: %v", err), renderer.SeverityWarning)
			c.warn.Finalize()
			return
		}
		c.ctx = ctx
	}

	if err := c.registry.Lock(c.ctx); err != nil {
		c.registry.Unlock(c.ctx)
		c.warn.Report(fmt.Sprintf("%v: %v", ErrContextBusy, err), renderer.SeverityWarning)
		c.warn.Finalize()
		return
	}
	defer c.registry.Unlock(c.ctx)

	if !c.caps.GLInitialized {
		c.initCapabilities()
	}

	now := c.clock()
	resized := c.syncSize()
	animating := c.advanceAnimation(now)
	changed := c.camera.ParametersChanged()

	if c.engine == renderer.EngineRaytracing && (c.mouseMoving || animating || changed || resized) {
		c.engine = renderer.EngineOpenGL
		c.raytraceRequested = false
		c.logger.Info("view changed; falling back to opengl")
	}

	active := c.renderers[c.engine]
	if active == nil {
		c.engine = renderer.EngineOpenGL
		if active = c.renderers[c.engine]; active == nil {
			return
		}
	}

	// Only renderers that wait for the editing timeout keep drawing in
	// moving mode after the motion stops.
	waits := active.WaitForEditingTimeout()
	moving := c.isMoving(now, animating, waits)

	if active.IsReloadRequestPending() {
		c.status.Report("loading 3D board", renderer.SeverityInfo)
	}

	more, err := c.redraw(active, moving)
	if err != nil {
		if errors.Is(err, renderer.ErrFramebufferIncomplete) {
			c.abandon(err)
		} else {
			c.downgrade(err)
		}
		c.RequestRefresh(false)
		return
	}
	c.surface.SwapBuffers()
	c.syncSceneBounds()

	switch {
	case more || animating || active.IsReloadRequestPending():
		c.RequestRefresh(true)
	case moving && waits:
		// Repaint once more after the idle timeout expires.
		c.RequestRefresh(false)
	}
}

// Invoke a renderer converting panics to errors.
func (c *Canvas) redraw(r renderer.Renderer, moving bool) (more bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("canvas: renderer panic: %v", rec)
		}
	}()
	return r.Redraw(moving, c.status, c.warn)
}

// Query the context capabilities.
func (c *Canvas) initCapabilities() {
	info := c.ctx.Info()
	c.caps.GLInitialized = true
	c.caps.SupportsRaytracing = info.SupportsRaytracing && !c.raytracingFailed
	if !info.SupportsRaytracing {
		c.logger.Warningf("GPU context %s does not support raytracing", info.Version)
	}
}

// Abandon a tick after a transient resource failure. The capabilities are
// kept so the failing engine may be requested again.
func (c *Canvas) abandon(err error) {
	c.logger.Warningf("render tick using %s abandoned: %v", c.engine, err)
	c.warn.Report(fmt.Sprintf("3D rendering interrupted: %v", err), renderer.SeverityWarning)
	c.warn.Finalize()

	c.engine = renderer.EngineOpenGL
	c.raytraceRequested = false
}

// Downgrade the capabilities after a runtime rendering failure so the
// failing path is not entered again.
func (c *Canvas) downgrade(err error) {
	c.logger.Errorf("render failed using %s: %v", c.engine, err)
	c.warn.Report(fmt.Sprintf("3D rendering failed: %v", err), renderer.SeverityError)
	c.warn.Finalize()

	c.raytracingFailed = true
	c.caps.SupportsRaytracing = false
	c.caps.GLInitialized = false
	c.engine = renderer.EngineOpenGL
	c.raytraceRequested = false
}

// Propagate surface size changes. Returns true if the size changed.
func (c *Canvas) syncSize() bool {
	w, h := c.surface.Size()
	if w == c.width && h == c.height {
		return false
	}
	c.width, c.height = w, h
	c.camera.SetWindowSize(w, h)
	for _, r := range c.renderers {
		r.SetCurWindowSize(w, h)
	}
	return true
}

// Fit the camera to a newly built scene generation.
func (c *Canvas) syncSceneBounds() {
	sc := c.scenes.Current()
	if sc == nil || sc.Generation == c.generation {
		return
	}
	c.generation = sc.Generation
	c.camera.SetBoardBBox(sc.BBox)
}

// Advance the camera animation. Returns true if an animation ran during this
// tick.
func (c *Canvas) advanceAnimation(now time.Time) bool {
	if !c.camera.IsAnimating() {
		return false
	}
	elapsed := now.Sub(c.lastAnimTick)
	c.lastAnimTick = now
	if !c.camera.Advance(elapsed) {
		// Re-arm the idle timeout.
		c.lastMotion = now
	}
	return true
}

func (c *Canvas) isMoving(now time.Time, animating, waitForIdle bool) bool {
	if animating || c.mouseMoving {
		return true
	}
	return waitForIdle && !c.lastMotion.IsZero() && now.Sub(c.lastMotion) < c.settings.Camera.IdleTimeout
}

// Move the camera to a predefined view. Returns false if the view is not
// handled.
func (c *Canvas) SetView3D(v camera.View) bool {
	pose, ok := c.camera.ViewPose(v, c.settings.Camera.RotationIncrement)
	if !ok {
		return false
	}

	now := c.clock()
	if c.settings.Camera.Animate {
		c.camera.AnimateTo(pose)
		c.lastAnimTick = now
	} else {
		c.camera.SetPose(pose)
		c.lastMotion = now
	}
	c.RequestRefresh(true)
	return true
}

// Grab the currently displayed image.
func (c *Canvas) GetScreenshot() (*image.RGBA, error) {
	if !c.surface.IsShown() {
		return nil, ErrNotShown
	}
	if c.ctx == nil {
		return nil, ErrNoContext
	}

	if c.engine == renderer.EngineRaytracing {
		if src, ok := c.renderers[c.engine].(interface{ Frame() *image.RGBA }); ok {
			if frame := src.Frame(); frame != nil && frame.Rect.Dx() == c.width && frame.Rect.Dy() == c.height {
				out := image.NewRGBA(frame.Rect)
				copy(out.Pix, frame.Pix)
				return out, nil
			}
		}
	}

	if err := c.registry.Lock(c.ctx); err != nil {
		c.registry.Unlock(c.ctx)
		return nil, fmt.Errorf("%w: %v", ErrContextBusy, err)
	}
	defer c.registry.Unlock(c.ctx)
	return c.ctx.ReadPixels(c.width, c.height)
}

// Raytrace the current view synchronously into buf as RGBA rows, top to
// bottom. Returns false without side effects if the parameters are invalid.
func (c *Canvas) RenderToFrameBuffer(buf []byte, width, height int) bool {
	if buf == nil || width <= 0 || height <= 0 || len(buf) < width*height*4 {
		return false
	}

	cam := c.camera.Clone()
	cam.SetWindowSize(width, height)
	if sc := c.scenes.Current(); sc != nil {
		cam.SetBoardBBox(sc.BBox)
	}

	start := c.clock()
	tr := tracer.New(cam, c.scenes, c.settings, c.opts)
	defer tr.Close()
	tr.SetCurWindowSize(width, height)

	for tick := 0; ; tick++ {
		more, err := tr.Redraw(false, c.status, c.warn)
		if err != nil {
			c.warn.Report(fmt.Sprintf("off-screen render failed: %v", err), renderer.SeverityError)
			c.warn.Finalize()
			return false
		}
		if !more || tick >= maxOffscreenTicks {
			break
		}
	}
	if tr.Scene() == nil {
		return false
	}

	copy(buf, tr.Frame().Pix)
	c.offscreenStats = tr.Stats()
	c.logger.Noticef("rendered %dx%d off-screen frame in %d ms", width, height, c.clock().Sub(start).Nanoseconds()/1e6)
	return true
}

// Get the statistics of the last successful RenderToFrameBuffer call.
func (c *Canvas) OffscreenStats() renderer.FrameStats {
	return c.offscreenStats
}

// Close the canvas releasing the renderers and the GPU context.
func (c *Canvas) Close() {
	if c.ctx == nil {
		for _, r := range c.renderers {
			r.Close()
		}
		return
	}

	if err := c.registry.Lock(c.ctx); err != nil {
		c.logger.Warningf("could not make context current while closing: %v", err)
	}
	for _, r := range c.renderers {
		r.Close()
	}
	c.registry.Unlock(c.ctx)
	c.registry.Destroy(c.ctx)
	c.ctx = nil
	c.caps = Capabilities{}
}
