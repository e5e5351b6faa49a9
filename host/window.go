// Package host runs a canvas inside a glfw window.
package host

import (
	"errors"
	"fmt"
	"image"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/board3d/board3d/canvas"
	"github.com/board3d/board3d/log"
	"github.com/go-gl/gl/v2.1/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Cursor travel in pixels below which a button press and release count as a
// click.
const clickThreshold = 3

var ErrUnsupportedContext = errors.New("host: OpenGL 2.1 or later is required")

func init() {
	// glfw event processing and context handling must run on the main thread.
	runtime.LockOSThread()
}

// Options for creating a window.
type Options struct {
	Title         string
	Width, Height int

	// Multisample count requested for the default framebuffer.
	Samples int

	// Maximum time the event loop waits before serving a deferred repaint.
	IdleTimeout time.Duration
}

// Window is a glfw window that acts as the surface of a canvas.
type Window struct {
	logger log.Logger
	window *glfw.Window
	opts   Options
	canvas *canvas.Canvas

	mutex sync.Mutex
	tasks []func()

	pressX, pressY float64
	pressed        bool
	pressButton    canvas.MouseButton
}

// Create a window. The window's GPU context is not initialized until the
// canvas requests it.
func New(opts Options) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize glfw: %s", err.Error())
	}

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ContextVersionMajor, 2)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	if opts.Samples > 0 {
		glfw.WindowHint(glfw.Samples, opts.Samples)
	}
	if opts.Title == "" {
		opts.Title = "board3d"
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 250 * time.Millisecond
	}

	win, err := glfw.CreateWindow(opts.Width, opts.Height, opts.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("could not create opengl window: %s", err.Error())
	}

	return &Window{
		logger: log.New("host"),
		window: win,
		opts:   opts,
	}, nil
}

// Attach a canvas and bind the window event callbacks to it.
func (w *Window) Attach(c *canvas.Canvas) {
	w.canvas = c

	w.window.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
	w.window.SetKeyCallback(w.onKeyEvent)
	w.window.SetMouseButtonCallback(w.onMouseEvent)
	w.window.SetCursorPosCallback(w.onCursorPosEvent)
	w.window.SetScrollCallback(w.onScrollEvent)
	w.window.SetFramebufferSizeCallback(func(_ *glfw.Window, _, _ int) {
		c.OnResize()
	})
	w.window.SetRefreshCallback(func(_ *glfw.Window) {
		c.RequestRefresh(true)
	})
	c.RequestRefresh(true)
}

// Set the window title.
func (w *Window) SetTitle(title string) {
	w.window.SetTitle(title)
}

// Queue fn for execution on the event loop thread and wake the loop up. It
// is safe to call from any goroutine.
func (w *Window) Post(fn func()) {
	w.mutex.Lock()
	w.tasks = append(w.tasks, fn)
	w.mutex.Unlock()
	glfw.PostEmptyEvent()
}

func (w *Window) runTasks() {
	w.mutex.Lock()
	tasks := w.tasks
	w.tasks = nil
	w.mutex.Unlock()

	for _, fn := range tasks {
		fn()
	}
}

// Run the event loop until the window is closed. Immediate repaint requests
// are served as soon as pending events are processed; deferred ones after the
// idle timeout or the next event.
func (w *Window) Run() {
	for !w.window.ShouldClose() {
		pending, immediate := w.canvas.PendingRefresh()
		switch {
		case pending && immediate:
			glfw.PollEvents()
		case pending:
			glfw.WaitEventsTimeout(w.opts.IdleTimeout.Seconds())
		default:
			glfw.WaitEvents()
		}

		w.runTasks()
		w.canvas.ProcessPending()
	}
}

// Destroy the window and terminate glfw.
func (w *Window) Close() {
	if w.window != nil {
		w.window.Destroy()
		w.window = nil
	}
	glfw.Terminate()
}

// IsShown implements canvas.Surface.
func (w *Window) IsShown() bool {
	return w.window.GetAttrib(glfw.Visible) == glfw.True && w.window.GetAttrib(glfw.Iconified) == glfw.False
}

// Size implements canvas.Surface. It returns the framebuffer size in pixels.
func (w *Window) Size() (int, int) {
	return w.window.GetFramebufferSize()
}

// SwapBuffers implements canvas.Surface.
func (w *Window) SwapBuffers() {
	w.window.SwapBuffers()
}

// CreateContext implements canvas.Surface. It initializes the GL bindings and
// queries the context version and extensions.
func (w *Window) CreateContext() (canvas.GLContext, error) {
	w.window.MakeContextCurrent()
	defer glfw.DetachCurrentContext()

	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("could not init opengl: %s", err.Error())
	}

	info := canvas.ContextInfo{
		Vendor:   gl.GoStr(gl.GetString(gl.VENDOR)),
		Renderer: gl.GoStr(gl.GetString(gl.RENDERER)),
		Version:  gl.GoStr(gl.GetString(gl.VERSION)),
	}
	major, minor, ok := parseGLVersion(info.Version)
	if !ok || !atLeast(major, minor, 2, 1) {
		return nil, fmt.Errorf("%w; got %q", ErrUnsupportedContext, info.Version)
	}
	info.SupportsRaytracing = supportsBlit(major, minor, glfw.ExtensionSupported)

	w.logger.Infof("GL context: %s %s (%s)", info.Vendor, info.Renderer, info.Version)
	return &glContext{window: w.window, info: info}, nil
}

// Convert window coordinates to framebuffer pixels.
func (w *Window) toPixels(x, y float64) (float32, float32) {
	winW, winH := w.window.GetSize()
	fbW, fbH := w.window.GetFramebufferSize()
	if winW == 0 || winH == 0 {
		return float32(x), float32(y)
	}
	return float32(x * float64(fbW) / float64(winW)), float32(y * float64(fbH) / float64(winH))
}

func (w *Window) onKeyEvent(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, mods glfw.ModifierKey) {
	if action != glfw.Press && action != glfw.Repeat {
		return
	}
	if key == glfw.KeyEscape {
		w.window.SetShouldClose(true)
		return
	}
	if cmd := keyCommand(key, mods); cmd != "" {
		w.canvas.OnKey(cmd)
	}
}

func (w *Window) onMouseEvent(win *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
	btn, ok := mouseButton(button)
	if !ok {
		return
	}
	xPos, yPos := win.GetCursorPos()
	x, y := w.toPixels(xPos, yPos)

	if action == glfw.Press {
		w.pressX, w.pressY = xPos, yPos
		w.pressed = true
		w.pressButton = btn
		w.canvas.OnMouseDown(btn, x, y)
		return
	}

	w.canvas.OnMouseUp()
	if w.pressed && w.pressButton == canvas.MouseLeft && btn == canvas.MouseLeft &&
		math.Abs(xPos-w.pressX) < clickThreshold && math.Abs(yPos-w.pressY) < clickThreshold {
		if item, ok := w.canvas.Pick(x, y); ok {
			w.logger.Infof("picked %s %s", item.Kind, item.Reference)
		}
	}
	w.pressed = false
}

func (w *Window) onCursorPosEvent(_ *glfw.Window, xPos, yPos float64) {
	x, y := w.toPixels(xPos, yPos)
	w.canvas.OnMouseMove(x, y)
}

func (w *Window) onScrollEvent(_ *glfw.Window, _, yOff float64) {
	w.canvas.OnMouseWheel(float32(yOff))
}

// glContext is the context owned by a glfw window.
type glContext struct {
	window *glfw.Window
	info   canvas.ContextInfo
}

func (c *glContext) MakeCurrent() error {
	if c.window == nil {
		return canvas.ErrNoContext
	}
	c.window.MakeContextCurrent()
	return nil
}

func (c *glContext) Release() {
	glfw.DetachCurrentContext()
}

func (c *glContext) Info() canvas.ContextInfo {
	return c.info
}

// Read back the default framebuffer. Rows are returned top to bottom.
func (c *glContext) ReadPixels(width, height int) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("host: invalid read back size %dx%d", width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadBuffer(gl.BACK)
	gl.ReadPixels(0, 0, int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	if code := gl.GetError(); code != gl.NO_ERROR {
		return nil, fmt.Errorf("host: read back failed: gl error 0x%x", code)
	}
	flipRows(img)
	return img, nil
}

// The context lives as long as its window.
func (c *glContext) Destroy() {
	c.window = nil
}
