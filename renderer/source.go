package renderer

import (
	"fmt"
	"sync"

	"github.com/board3d/board3d/board"
	"github.com/board3d/board3d/config"
	"github.com/board3d/board3d/scene"
)

// SceneSource provides the current scene generation to the renderers.
type SceneSource interface {
	// Get the current scene, rebuilding it if the board changed since the
	// last call.
	Scene(status Reporter) (*scene.Scene, error)
}

// SceneCache builds a scene generation once per board change and shares it
// between the renderers of a canvas.
type SceneCache struct {
	mutex sync.Mutex

	provider board.Provider
	models   board.ModelCache
	settings *config.Settings
	busy     BusyIndicatorFactory

	current *scene.Scene
	dirty   bool
}

// Create a new scene cache.
func NewSceneCache(s *config.Settings, busy BusyIndicatorFactory) *SceneCache {
	return &SceneCache{settings: s, busy: busy}
}

// Replace the board and model cache. The next Scene call rebuilds.
func (c *SceneCache) SetBoard(p board.Provider, models board.ModelCache) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.provider = p
	c.models = models
	c.dirty = true
}

// Force a rebuild using the current board.
func (c *SceneCache) Invalidate() {
	c.mutex.Lock()
	c.dirty = true
	c.mutex.Unlock()
}

// Get the current generation without rebuilding.
func (c *SceneCache) Current() *scene.Scene {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.current
}

func (c *SceneCache) Scene(status Reporter) (*scene.Scene, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.dirty {
		return c.current, nil
	}
	if c.provider == nil {
		return nil, ErrSceneNotDefined
	}

	var indicator BusyIndicator
	if c.busy != nil {
		indicator = c.busy("Building 3D scene")
		defer indicator.Close()
	}

	sc, err := scene.Build(c.provider, c.models, c.settings)
	if err != nil {
		return nil, fmt.Errorf("renderer: scene build failed: %w", err)
	}
	if indicator != nil {
		indicator.SetStatus(fmt.Sprintf("generation %d: %d primitives", sc.Generation, len(sc.Primitives)))
	}
	if status != nil {
		status.Report(fmt.Sprintf("loaded 3D scene with %d primitives", len(sc.Primitives)), SeverityInfo)
	}

	c.current = sc
	c.dirty = false
	return sc, nil
}
