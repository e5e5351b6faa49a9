// Package accel implements the spatial accelerators used by the raytracer to
// answer nearest-hit, any-hit and packet queries over a set of primitives.
package accel

import (
	"math"

	"github.com/board3d/board3d/types"
)

// Hits closer than this distance are ignored to avoid self intersections.
const Epsilon float32 = 1e-4

// The Primitive interface is implemented by all geometric objects that can be
// stored in a container.
type Primitive interface {
	BBox() types.BBox
	Center() types.Vec3

	// Test the ray against the primitive. If the primitive is hit at a
	// distance in (Epsilon, hit.T) the hit T, Point, Normal and Inside
	// fields are updated and true is returned.
	Intersect(r *types.Ray, hit *HitInfo) bool

	// Returns true if the primitive is hit at a distance in (Epsilon, maxDistance).
	IntersectP(r *types.Ray, maxDistance float32) bool
}

// HitInfo describes the nearest intersection found by a query.
type HitInfo struct {
	T      float32
	Point  types.Vec3
	Normal types.Vec3

	// The primitive hit and its index in the container.
	Prim      Primitive
	PrimIndex int

	// True if the ray hit the primitive from the inside.
	Inside bool

	// The leaf node that contains the primitive; used to resume a query
	// against the same primitive set through IntersectNode.
	AccNodeInfo uint32
}

// Create a hit info that accepts any hit distance.
func NewHitInfo() HitInfo {
	return HitInfo{T: math.MaxFloat32, PrimIndex: -1}
}

// Reset to the no-hit state.
func (h *HitInfo) Reset() {
	*h = NewHitInfo()
}

// Returns true if a primitive was hit.
func (h *HitInfo) Valid() bool {
	return h.Prim != nil
}

// Hit results for a ray packet.
type HitInfoPacket struct {
	Hits [types.PacketSize]HitInfo
}

// Reset all hits.
func (p *HitInfoPacket) Reset() {
	for i := range p.Hits {
		p.Hits[i].Reset()
	}
}

// Test primitive at index against the ray and accept the hit if it is closer
// than the current one. Equidistant hits are resolved in favor of the lowest
// primitive index.
func testPrimitive(prim Primitive, index int, node uint32, r *types.Ray, hit *HitInfo) bool {
	candidate := HitInfo{T: math.Nextafter32(hit.T, math.MaxFloat32)}
	if hit.T == math.MaxFloat32 {
		candidate.T = float32(math.Inf(1))
	}
	if !prim.Intersect(r, &candidate) {
		return false
	}
	if candidate.T > hit.T || (candidate.T == hit.T && hit.Prim != nil && index > hit.PrimIndex) {
		return false
	}

	candidate.Prim = prim
	candidate.PrimIndex = index
	candidate.AccNodeInfo = node
	*hit = candidate
	return true
}
