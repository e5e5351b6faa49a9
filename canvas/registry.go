package canvas

import (
	"sync"

	"github.com/board3d/board3d/log"
)

// ContextRegistry owns the GPU contexts of all canvases in the process and
// serializes their use. It is created once and handed to each canvas.
type ContextRegistry struct {
	logger log.Logger

	// Held while a canvas issues GPU calls.
	mutex sync.Mutex

	// Protects contexts.
	listMutex sync.Mutex
	contexts  map[GLContext]Surface
	locked    GLContext
}

// Create a new context registry.
func NewContextRegistry() *ContextRegistry {
	return &ContextRegistry{
		logger:   log.New("gl-registry"),
		contexts: make(map[GLContext]Surface),
	}
}

// Create and register a context for a surface.
func (r *ContextRegistry) Create(s Surface) (GLContext, error) {
	ctx, err := s.CreateContext()
	if err != nil {
		return nil, err
	}

	r.listMutex.Lock()
	r.contexts[ctx] = s
	count := len(r.contexts)
	r.listMutex.Unlock()

	info := ctx.Info()
	r.logger.Infof("created GPU context %s (%s, %s); %d active", info.Version, info.Vendor, info.Renderer, count)
	return ctx, nil
}

// Acquire exclusive access to the GPU and make ctx current. The registry
// stays locked until Unlock is called, even if an error is returned.
func (r *ContextRegistry) Lock(ctx GLContext) error {
	r.mutex.Lock()
	r.locked = ctx
	return ctx.MakeCurrent()
}

// Release ctx and the exclusive GPU access.
func (r *ContextRegistry) Unlock(ctx GLContext) {
	if r.locked != ctx {
		r.logger.Warning("unlocking a context that is not locked")
	}
	ctx.Release()
	r.locked = nil
	r.mutex.Unlock()
}

// Destroy a registered context.
func (r *ContextRegistry) Destroy(ctx GLContext) {
	r.listMutex.Lock()
	_, known := r.contexts[ctx]
	delete(r.contexts, ctx)
	r.listMutex.Unlock()

	if known {
		ctx.Destroy()
	}
}

// Get the number of registered contexts.
func (r *ContextRegistry) Len() int {
	r.listMutex.Lock()
	defer r.listMutex.Unlock()
	return len(r.contexts)
}
