package canvas

import (
	"math"

	"github.com/board3d/board3d/board"
	"github.com/board3d/board3d/camera"
	"github.com/board3d/board3d/tracer"
)

const (
	// Coefficients for converting delta cursor movements to yaw/pitch camera angles.
	mouseSensitivityX float32 = 0.005
	mouseSensitivityY float32 = 0.005

	// Zoom factor applied per wheel step.
	wheelZoomStep float32 = 1.1
)

type MouseButton uint8

const (
	MouseLeft MouseButton = iota
	MouseRight
	MouseMiddle
)

// Handle a mouse button press at (x, y).
func (c *Canvas) OnMouseDown(button MouseButton, x, y float32) {
	c.mouseDown = true
	c.mouseButton = button
	c.lastMouse = [2]float32{x, y}
	c.camera.StopAnimation()
}

// Handle cursor movement. Dragging with the left button orbits the camera;
// the other buttons pan it.
func (c *Canvas) OnMouseMove(x, y float32) {
	if !c.mouseDown {
		return
	}
	dx, dy := x-c.lastMouse[0], y-c.lastMouse[1]
	c.lastMouse = [2]float32{x, y}
	if dx == 0 && dy == 0 {
		return
	}

	if c.mouseButton == MouseLeft {
		c.camera.Orbit(-dx*mouseSensitivityX, -dy*mouseSensitivityY)
	} else {
		c.camera.Pan(dx, dy)
	}
	c.mouseMoving = true
	c.lastMotion = c.clock()
	c.RequestRefresh(true)
}

// Handle a mouse button release.
func (c *Canvas) OnMouseUp() {
	c.mouseDown = false
	if c.mouseMoving {
		c.mouseMoving = false
		c.lastMotion = c.clock()
		c.RequestRefresh(false)
	}
}

// Handle a wheel event; positive steps zoom in.
func (c *Canvas) OnMouseWheel(steps float32) {
	if steps == 0 {
		return
	}
	c.camera.StopAnimation()
	c.camera.Zoom(float32(math.Pow(float64(wheelZoomStep), float64(-steps))))
	c.lastMotion = c.clock()
	c.RequestRefresh(true)
}

// Handle a surface resize. The new size is picked up by the next repaint.
func (c *Canvas) OnResize() {
	c.RequestRefresh(true)
}

// Handle a key command: "r" requests raytracing, view names are forwarded
// to SetView3D. Returns false if the key is not handled.
func (c *Canvas) OnKey(name string) bool {
	if name == "r" {
		c.RenderRaytracingRequest()
		return true
	}
	v, ok := camera.ParseView(name)
	if !ok {
		return false
	}
	return c.SetView3D(v)
}

// Select the board item under the viewport position (x, y) and notify the
// messenger about its reference designator.
func (c *Canvas) Pick(x, y float32) (board.Item, bool) {
	sc := c.scenes.Current()
	if sc == nil {
		return board.Item{}, false
	}

	item, ok := tracer.PickItem(sc, c.camera.MakeRay(x, y))
	if !ok {
		return board.Item{}, false
	}
	if c.messenger != nil && item.Reference != "" {
		c.messenger.SendSelection(item.Reference)
	}
	return item, true
}
