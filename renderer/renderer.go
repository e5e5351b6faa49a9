// Package renderer defines the contract shared by the rasterizer and the
// raytracer together with the collaborators injected into them.
package renderer

import "github.com/board3d/board3d/config"

// Engine identifies a renderer variant.
type Engine uint8

const (
	EngineOpenGL Engine = iota
	EngineRaytracing
)

func (e Engine) String() string {
	if e == EngineRaytracing {
		return "raytracing"
	}
	return "opengl"
}

// Map a configured render engine preference to an Engine.
func EngineFromConfig(e config.RenderEngine) Engine {
	if e == config.EngineRaytracing {
		return EngineRaytracing
	}
	return EngineOpenGL
}

// Renderer is implemented by every renderer variant. All methods are called
// from the goroutine that owns the GPU context.
type Renderer interface {
	// Notify the renderer about a new viewport size.
	SetCurWindowSize(width, height int)

	// Render one tick. Returns true if another redraw should be scheduled.
	// Errors are runtime rendering failures; the caller downgrades the
	// renderer instead of retrying.
	Redraw(isMoving bool, status, warn Reporter) (bool, error)

	// Request the scene to be rebuilt at the start of the next tick.
	ReloadRequest()

	// Returns true if a reload has been requested but not yet processed.
	IsReloadRequestPending() bool

	// Returns true if the renderer should only produce quality frames after
	// the editing idle timeout expired.
	WaitForEditingTimeout() bool

	// Release any resources held by the renderer.
	Close()
}
