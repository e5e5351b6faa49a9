package renderer

import "time"

type FrameStats struct {
	Width, Height int

	// Tile progress for the current pass.
	Tiles       int
	TracedTiles int

	// True if the last tick rendered the preview pass.
	Preview bool

	// Ray counters.
	PrimaryRays   uint64
	ShadowRays    uint64
	SecondaryRays uint64

	// Size of the worker pool.
	Workers int

	TraceTime time.Duration
	ShadeTime time.Duration
	BlurTime  time.Duration

	// Total render time for the entire frame.
	RenderTime time.Duration
}
