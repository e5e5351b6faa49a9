package canvas

import (
	"errors"
	"image"
)

var (
	ErrNoContext   = errors.New("canvas: GPU context not available")
	ErrNotShown    = errors.New("canvas: surface is not shown")
	ErrNoScene     = errors.New("canvas: no scene loaded")
	ErrContextBusy = errors.New("canvas: GPU context could not be made current")
)

// Information about a GPU context collected when it is created.
type ContextInfo struct {
	Vendor   string
	Renderer string
	Version  string

	// True if the context supports the features used to present raytraced
	// frames (framebuffer objects and blitting).
	SupportsRaytracing bool
}

// GLContext is a GPU context owned by a surface.
type GLContext interface {
	// Make the context current on the calling thread.
	MakeCurrent() error

	// Detach the context from the calling thread.
	Release()

	// Get the context capabilities.
	Info() ContextInfo

	// Read back the default framebuffer.
	ReadPixels(width, height int) (*image.RGBA, error)

	Destroy()
}

// Surface is the window area the canvas draws into.
type Surface interface {
	// Returns true if the surface is actually visible on screen.
	IsShown() bool

	// Get the surface size in pixels.
	Size() (width, height int)

	// Create a GPU context for the surface.
	CreateContext() (GLContext, error)

	// Present the back buffer.
	SwapBuffers()
}

// Messenger receives cross-module notifications emitted by the canvas.
type Messenger interface {
	// Notify sibling editors that the item with the given reference
	// designator was selected in the 3D view.
	SendSelection(reference string)
}
