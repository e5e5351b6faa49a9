// Package tracer implements a progressive CPU raytracer. A frame is split in
// Morton ordered tiles which are traced a few at a time on every tick so that
// the owning goroutine is never blocked for long.
package tracer

import (
	"fmt"
	"image"
	"image/color"
	"sync/atomic"
	"time"

	"github.com/board3d/board3d/accel"
	"github.com/board3d/board3d/board"
	"github.com/board3d/board3d/camera"
	"github.com/board3d/board3d/config"
	"github.com/board3d/board3d/log"
	"github.com/board3d/board3d/postshader"
	"github.com/board3d/board3d/renderer"
	"github.com/board3d/board3d/scene"
	"github.com/board3d/board3d/types"
	"golang.org/x/sync/errgroup"
)

// Target duration of a tick when the tile budget is adaptive.
const adaptiveTickTarget = 30 * time.Millisecond

// Tracer state.
type State uint8

const (
	Invalidated State = iota
	Tracing
	PostProcessShade
	PostProcessBlurAndFinish
	Finish
)

func (s State) String() string {
	switch s {
	case Invalidated:
		return "invalidated"
	case Tracing:
		return "tracing"
	case PostProcessShade:
		return "post-process shade"
	case PostProcessBlurAndFinish:
		return "post-process blur"
	case Finish:
		return "finish"
	}
	return "unknown"
}

// Tracer renders the scene into an RGBA frame held in RAM.
type Tracer struct {
	logger   log.Logger
	camera   *camera.Camera
	source   renderer.SceneSource
	settings *config.Settings
	opts     renderer.Options

	scene         *scene.Scene
	reloadPending bool

	width, height int
	blocks        *BlockList
	previewBlocks *BlockList
	processed     []bool
	nextBlock     int
	state         State

	scheduler     TickScheduler
	lastTickTiles int
	lastTickTime  time.Duration

	frame    *image.RGBA
	colors   []types.Vec4
	ssao     *postshader.SSAO
	shadeBuf []types.Vec3
	lights   []light

	frameStart    time.Time
	stats         renderer.FrameStats
	primaryRays   atomic.Uint64
	shadowRays    atomic.Uint64
	secondaryRays atomic.Uint64
}

// Create a new tracer. Scenes are obtained from src whenever a reload is
// requested.
func New(cam *camera.Camera, src renderer.SceneSource, s *config.Settings, opts renderer.Options) *Tracer {
	if s == nil {
		s = config.Default()
	}
	t := &Tracer{
		logger:        log.New("tracer"),
		camera:        cam,
		source:        src,
		settings:      s,
		opts:          opts.WithDefaults(),
		reloadPending: true,
		ssao:          postshader.NewSSAO(),
		frame:         image.NewRGBA(image.Rect(0, 0, 0, 0)),
	}

	rt := &s.Raytracing
	if rt.TilesPerTick > 0 {
		t.scheduler = NewFixedScheduler(rt.TilesPerTick)
	} else {
		t.scheduler = NewPerfectScheduler(adaptiveTickTarget, rt.WorkerCount(), 1<<16)
	}
	return t
}

// Resize the frame buffers. The current frame is discarded.
func (t *Tracer) SetCurWindowSize(width, height int) {
	if width == t.width && height == t.height {
		return
	}
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	t.width, t.height = width, height

	t.blocks = NewBlockList(width, height, t.opts.BlockSize)
	t.previewBlocks = NewBlockList(width, height, t.opts.PreviewCell*types.PacketDim)
	t.processed = make([]bool, t.blocks.Len())
	t.frame = image.NewRGBA(image.Rect(0, 0, width, height))
	t.colors = make([]types.Vec4, width*height)
	t.shadeBuf = make([]types.Vec3, width*height)
	t.ssao.UpdateSize(width, height)
	t.ssao.SetShadedBuffer(t.shadeBuf)
	t.state = Invalidated

	t.logger.Debugf("frame size set to %dx%d (%d tiles)", width, height, t.blocks.Len())
}

// Request the scene to be fetched from the source at the next tick.
func (t *Tracer) ReloadRequest() {
	t.reloadPending = true
}

func (t *Tracer) IsReloadRequestPending() bool {
	return t.reloadPending
}

// Quality frames are only traced after the view stopped moving.
func (t *Tracer) WaitForEditingTimeout() bool {
	return true
}

func (t *Tracer) Close() {
	t.scene = nil
	t.frame = nil
	t.colors = nil
	t.shadeBuf = nil
}

// Get the current state.
func (t *Tracer) State() State {
	return t.state
}

// Get the rendered frame.
func (t *Tracer) Frame() *image.RGBA {
	return t.frame
}

// Get the current scene generation.
func (t *Tracer) Scene() *scene.Scene {
	return t.scene
}

// Get the tracing progress in [0, 1].
func (t *Tracer) Progress() float32 {
	if t.state == Finish {
		return 1
	}
	if t.blocks == nil || t.blocks.Len() == 0 || t.state == Invalidated {
		return 0
	}
	return float32(t.processedTiles()) / float32(t.blocks.Len())
}

// Count the tiles of the current frame that finished tracing.
func (t *Tracer) processedTiles() int {
	var n int
	for _, done := range t.processed {
		if done {
			n++
		}
	}
	return n
}

// Get the statistics of the current frame.
func (t *Tracer) Stats() renderer.FrameStats {
	stats := t.stats
	stats.Width, stats.Height = t.width, t.height
	stats.PrimaryRays = t.primaryRays.Load()
	stats.ShadowRays = t.shadowRays.Load()
	stats.SecondaryRays = t.secondaryRays.Load()
	return stats
}

// Render one tick.
func (t *Tracer) Redraw(isMoving bool, status, warn renderer.Reporter) (bool, error) {
	if t.camera == nil {
		return false, renderer.ErrCameraNotDefined
	}
	if status == nil {
		status = renderer.NopReporter
	}
	if warn == nil {
		warn = renderer.NopReporter
	}

	if t.reloadPending {
		t.reloadPending = false
		t.state = Invalidated
		sc, err := t.source.Scene(status)
		if err != nil {
			warn.Report(err.Error(), renderer.SeverityWarning)
		} else if sc != nil {
			t.scene = sc
		}
	}

	if t.width == 0 || t.height == 0 {
		return false, nil
	}

	if t.scene == nil {
		t.drawBackground()
		t.state = Invalidated
		return false, nil
	}

	if isMoving {
		err := t.renderPreview()
		t.state = Invalidated
		t.stats.Preview = true
		return true, err
	}
	t.stats.Preview = false

	if t.state == Invalidated {
		t.startFrame()
	}

	var err error
	switch t.state {
	case Tracing:
		err = t.traceTiles()
	case PostProcessShade:
		err = t.postProcessShade()
	case PostProcessBlurAndFinish:
		err = t.postProcessBlur()
	}
	if err != nil {
		t.state = Invalidated
		return false, err
	}

	if t.state == Finish && t.stats.RenderTime == 0 {
		t.stats.RenderTime = time.Since(t.frameStart)
		t.logger.Debugf("frame traced in %d ms", t.stats.RenderTime.Nanoseconds()/1e6)
		status.Report(fmt.Sprintf("raytracing finished in %d ms", t.stats.RenderTime.Nanoseconds()/1e6), renderer.SeverityInfo)
	}
	return t.state != Finish, nil
}

// Reset progress and start a new frame.
func (t *Tracer) startFrame() {
	for i := range t.processed {
		t.processed[i] = false
	}
	t.nextBlock = 0
	t.lastTickTiles, t.lastTickTime = 0, 0
	t.ssao.InitFrame()
	t.ssao.SetShadowsEnabled(t.settings.Raytracing.Shadows)
	t.ssao.SetIndirectLightEnabled(t.settings.Raytracing.IndirectLight)
	t.lights = t.setupLights()

	t.stats = renderer.FrameStats{
		Tiles:   t.blocks.Len(),
		Workers: t.settings.Raytracing.WorkerCount(),
	}
	t.primaryRays.Store(0)
	t.shadowRays.Store(0)
	t.secondaryRays.Store(0)
	t.frameStart = time.Now()
	t.state = Tracing
}

// Trace the next batch of tiles on the worker pool.
func (t *Tracer) traceTiles() error {
	start := time.Now()
	budget := t.scheduler.Schedule(t.lastTickTiles, t.lastTickTime)

	batch := make([]int, 0, budget)
	for t.nextBlock < t.blocks.Len() && len(batch) < budget {
		batch = append(batch, t.nextBlock)
		t.nextBlock++
	}

	var g errgroup.Group
	g.SetLimit(t.settings.Raytracing.WorkerCount())
	for _, blockIndex := range batch {
		blockIndex := blockIndex
		g.Go(func() error {
			return t.traceBlock(blockIndex)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, blockIndex := range batch {
		t.processed[blockIndex] = true
	}
	t.stats.TracedTiles += len(batch)
	t.lastTickTiles, t.lastTickTime = len(batch), time.Since(start)
	t.stats.TraceTime += t.lastTickTime

	if t.processedTiles() == len(t.processed) {
		t.state = PostProcessShade
	}
	return nil
}

// Trace all pixels of a single tile.
func (t *Tracer) traceBlock(blockIndex int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tracer: tile %d: %v", blockIndex, r)
		}
	}()

	block := t.blocks.Block(blockIndex)
	sampler := newSampler(t.opts.Seed, blockIndex)
	aa := t.settings.Raytracing.AntiAliasing
	for y := block.Min.Y; y < block.Max.Y; y++ {
		bg := t.background(y)
		for x := block.Min.X; x < block.Max.X; x++ {
			c := t.tracePixel(x, y, bg, sampler)
			if aa {
				for _, offset := range aaOffsets {
					ray := t.camera.MakeRay(float32(x)+offset[0], float32(y)+offset[1])
					sub, _ := t.traceRay(&ray, bg, sampler)
					c = c.Add(sub)
				}
				c = c.Mul(1.0 / float32(len(aaOffsets)+1))
			}

			c = c.Clamp(0, 1)
			t.colors[x+y*t.width] = c.Vec4(1)
			t.setPixel(x, y, c.Vec4(1))
		}
	}
	return nil
}

// Sub-pixel offsets of the anti-aliasing samples.
var aaOffsets = [][2]float32{{0.25, 0.25}, {0.75, 0.25}, {0.25, 0.75}, {0.75, 0.75}}

// Trace the primary ray through the pixel center and feed the post-shader.
func (t *Tracer) tracePixel(x, y int, bg types.Vec3, sampler *sampler) types.Vec3 {
	ray := t.camera.MakeRay(float32(x)+0.5, float32(y)+0.5)
	t.primaryRays.Add(1)

	hit := accel.NewHitInfo()
	if !t.scene.Accelerator.Intersect(&ray, &hit) {
		t.ssao.SetPixelData(x, y, types.Vec3{}, bg, types.Vec3{}, 0, 1)
		return bg
	}

	res := t.shadeHit(bg, &ray, &hit, t.settings.Raytracing.RecursionDepth, sampler)
	t.ssao.SetPixelData(x, y, res.normal, res.diffuse, hit.Point, hit.T, res.shadow)
	return res.color
}

// Trace an arbitrary ray.
func (t *Tracer) traceRay(ray *types.Ray, bg types.Vec3, sampler *sampler) (types.Vec3, bool) {
	t.primaryRays.Add(1)
	hit := accel.NewHitInfo()
	if !t.scene.Accelerator.Intersect(ray, &hit) {
		return bg, false
	}
	return t.shadeHit(bg, ray, &hit, t.settings.Raytracing.RecursionDepth, sampler).color, true
}

// Compute ambient occlusion for every pixel.
func (t *Tracer) postProcessShade() error {
	if !t.settings.Raytracing.PostProcessing {
		t.state = Finish
		return nil
	}

	start := time.Now()
	err := t.forEachRow(func(y int) {
		for x := 0; x < t.width; x++ {
			t.shadeBuf[x+y*t.width] = t.ssao.Shade(x, y)
		}
	})
	t.stats.ShadeTime = time.Since(start)
	if err != nil {
		return err
	}
	t.state = PostProcessBlurAndFinish
	return nil
}

// Blur the shade buffer and composite it over the traced colors.
func (t *Tracer) postProcessBlur() error {
	start := time.Now()
	err := t.forEachRow(func(y int) {
		for x := 0; x < t.width; x++ {
			shade := t.ssao.Blur(x, y)
			t.setPixel(x, y, t.ssao.ApplyShadeColor(x, y, t.colors[x+y*t.width], shade))
		}
	})
	t.stats.BlurTime = time.Since(start)
	if err != nil {
		return err
	}
	t.state = Finish
	return nil
}

// Run fn for every frame row on the worker pool.
func (t *Tracer) forEachRow(fn func(y int)) error {
	var g errgroup.Group
	g.SetLimit(t.settings.Raytracing.WorkerCount())
	for y := 0; y < t.height; y++ {
		y := y
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("tracer: row %d: %v", y, r)
				}
			}()
			fn(y)
			return nil
		})
	}
	return g.Wait()
}

// Fill the frame with the background gradient.
func (t *Tracer) drawBackground() {
	for y := 0; y < t.height; y++ {
		bg := t.background(y).Vec4(1)
		for x := 0; x < t.width; x++ {
			t.setPixel(x, y, bg)
		}
	}
}

// Get the background color for a frame row.
func (t *Tracer) background(y int) types.Vec3 {
	top := t.settings.Colors.BackgroundTop.RGB()
	bottom := t.settings.Colors.BackgroundBottom.RGB()
	if t.height <= 1 {
		return top
	}
	return top.Lerp(bottom, float32(y)/float32(t.height-1))
}

func (t *Tracer) setPixel(x, y int, c types.Vec4) {
	t.frame.SetRGBA(x, y, color.RGBA{
		R: toByte(c[0]),
		G: toByte(c[1]),
		B: toByte(c[2]),
		A: toByte(c[3]),
	})
}

func toByte(v float32) uint8 {
	return uint8(types.Clamp(v, 0, 1)*255 + 0.5)
}

// Find the board item hit by a ray. Drill holes are considered as well so
// that clicking inside a hole selects it.
func (t *Tracer) IntersectBoardItem(ray types.Ray) (board.Item, bool) {
	if t.scene == nil {
		return board.Item{}, false
	}
	return PickItem(t.scene, ray)
}

// Find the board item of the nearest primitive hit by ray.
func PickItem(sc *scene.Scene, ray types.Ray) (board.Item, bool) {
	hit := accel.NewHitInfo()
	found := sc.Accelerator.Intersect(&ray, &hit)

	holeHit := accel.NewHitInfo()
	if sc.Holes != nil && sc.Holes.Intersect(&ray, &holeHit) && holeHit.T < hit.T {
		if prim, ok := holeHit.Prim.(scene.Primitive); ok {
			return prim.Item(), true
		}
	}
	if !found {
		return board.Item{}, false
	}
	return sc.Item(hit.PrimIndex), true
}
