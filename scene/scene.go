// Package scene converts board geometry into raytracing primitives and
// rasterizer mesh buffers.
package scene

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/board3d/board3d/accel"
	"github.com/board3d/board3d/board"
	"github.com/board3d/board3d/types"
	"github.com/olekukonko/tablewriter"
)

// Counters collected while building a scene generation.
type Counters struct {
	Primitives [numKinds]int

	// Primitives dropped because of zero area or zero size.
	Degenerate int

	// Footprint models that could not be loaded.
	MissingModels int

	BVH       accel.Stats
	BuildTime time.Duration
}

// Scene generation counter.
var generation uint64

// Scene is a single immutable generation of the board geometry. A rebuild
// produces a new Scene; the old one is dropped as a whole.
type Scene struct {
	Generation uint64

	// Primitive arena owned by this generation.
	Primitives []Primitive

	// Accelerator over Primitives.
	Accelerator accel.Container

	// Drill cylinders, kept out of the accelerator; used for picking.
	Holes *accel.List

	// Rasterizer buffers.
	Meshes []*MeshBuffer

	Materials *Materials

	// Bounds of all board geometry.
	BBox types.BBox

	counters Counters
}

// Create a scene generation over an already built primitive arena.
func New(prims []Primitive, holes []accel.Primitive) *Scene {
	sc := &Scene{
		Generation: atomic.AddUint64(&generation, 1),
		Primitives: prims,
		Holes:      accel.NewList(holes),
		BBox:       types.EmptyBBox(),
	}

	accelPrims := make([]accel.Primitive, len(prims))
	for i, prim := range prims {
		accelPrims[i] = prim
		sc.counters.Primitives[kindOf(prim)]++
		sc.BBox.Union(prim.BBox())
	}
	bvh := accel.NewBVH(accelPrims, accel.DefaultLeafSize)
	sc.Accelerator = bvh
	sc.counters.BVH = bvh.Stats()
	return sc
}

func kindOf(prim Primitive) Kind {
	switch prim.(type) {
	case *RoundSegment:
		return KindRoundSegment
	case *Cylinder:
		return KindCylinder
	case *Ring:
		return KindRing
	case *ExtrudedPolygon:
		return KindExtrudedPolygon
	case *DummyBlock:
		return KindDummyBlock
	}
	return KindTriangle
}

// Get the build counters.
func (sc *Scene) Counters() Counters {
	return sc.counters
}

// Get the board item for the primitive at index.
func (sc *Scene) Item(primIndex int) board.Item {
	if primIndex < 0 || primIndex >= len(sc.Primitives) {
		return board.Item{}
	}
	return sc.Primitives[primIndex].Item()
}

// Build a tabular representation of scene statistics.
func (sc *Scene) Stats() string {
	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Category", "Item", "Value"})

	table.Append([]string{"Primitives", "---", fmt.Sprintf("%d", len(sc.Primitives))})
	for kind := Kind(0); kind < numKinds; kind++ {
		table.Append([]string{"", kind.String(), fmt.Sprintf("%d", sc.counters.Primitives[kind])})
	}
	table.Append([]string{"", "degenerate (dropped)", fmt.Sprintf("%d", sc.counters.Degenerate)})
	table.Append([]string{"", "holes", fmt.Sprintf("%d", sc.Holes.Len())})
	table.Append([]string{" ", " ", " "})

	bvh := sc.counters.BVH
	table.Append([]string{"BVH", "---", fmtSize(bvh.Nodes * 32)})
	table.Append([]string{"", "Nodes", fmt.Sprintf("%d", bvh.Nodes)})
	table.Append([]string{"", "Leaves", fmt.Sprintf("%d", bvh.Leaves)})
	table.Append([]string{"", "Depth", fmt.Sprintf("%d", bvh.MaxDepth)})
	table.Append([]string{"", "Build time", bvh.BuildTime.String()})
	table.Append([]string{" ", " ", " "})

	meshBytes := 0
	for _, m := range sc.Meshes {
		meshBytes += m.SizeBytes()
	}
	table.Append([]string{"Mesh buffers", "---", fmtSize(meshBytes)})
	for _, m := range sc.Meshes {
		table.Append([]string{"", m.Name, fmt.Sprintf("%d tris, %s", m.TriangleCount(), fmtSize(m.SizeBytes()))})
	}
	if sc.counters.MissingModels > 0 {
		table.Append([]string{" ", " ", " "})
		table.Append([]string{"Models", "missing", fmt.Sprintf("%d", sc.counters.MissingModels)})
	}
	table.SetFooter([]string{"Generation", fmt.Sprintf("%d", sc.Generation), sc.counters.BuildTime.String()})

	table.Render()
	return buf.String()
}

// Format a byte count with the appropriate byte/kb/mb unit.
func fmtSize(totalBytes int) string {
	if totalBytes < 1e3 {
		return fmt.Sprintf("%3d bytes", totalBytes)
	} else if totalBytes < 1e6 {
		return fmt.Sprintf("%3.1f kb", float32(totalBytes)/1e3)
	}
	return fmt.Sprintf("%5.1f mb", float32(totalBytes)/1e6)
}
