package tracer

import (
	"math"
	"time"
)

// The TickScheduler interface is implemented by algorithms that decide how
// many tiles are traced during a single tick.
type TickScheduler interface {
	// Get the tile budget for the next tick using the number of tiles traced
	// during the last tick and the time it took.
	Schedule(lastTiles int, lastTickTime time.Duration) int
}

// The fixed scheduler always traces the same number of tiles.
type fixedScheduler struct {
	tiles int
}

// Create a scheduler that traces a fixed number of tiles per tick.
func NewFixedScheduler(tiles int) TickScheduler {
	if tiles < 1 {
		tiles = 1
	}
	return &fixedScheduler{tiles: tiles}
}

func (sch *fixedScheduler) Schedule(int, time.Duration) int {
	return sch.tiles
}

// The perfect scheduler assumes that the tracing cost of subsequent tiles is
// approximately the same and sizes each tick so it fits the target duration.
type perfectScheduler struct {
	target  time.Duration
	minimum int
	maximum int
}

// Create a scheduler that adapts the tile budget so that a tick takes about
// target. The budget never drops below minimum.
func NewPerfectScheduler(target time.Duration, minimum, maximum int) TickScheduler {
	if minimum < 1 {
		minimum = 1
	}
	if maximum < minimum {
		maximum = minimum
	}
	return &perfectScheduler{target: target, minimum: minimum, maximum: maximum}
}

// Estimate the budget for the next tick using:
// tiles_i+1 = tiles_i / time_i * target
func (sch *perfectScheduler) Schedule(lastTiles int, lastTickTime time.Duration) int {
	if lastTiles <= 0 || lastTickTime <= 0 {
		return sch.minimum
	}

	tiles := int(math.Floor(float64(lastTiles) * float64(sch.target) / float64(lastTickTime)))
	if tiles < sch.minimum {
		return sch.minimum
	}
	if tiles > sch.maximum {
		return sch.maximum
	}
	return tiles
}
