package board

import "github.com/board3d/board3d/types"

// A triangle mesh sharing a single material.
type Mesh struct {
	Name      string
	Positions []types.Vec3

	// Optional per-vertex normals. When empty, flat normals are used.
	Normals []types.Vec3

	// Triangle vertex indices.
	Indices []uint32

	Diffuse      types.Vec3
	Transparency float32
}

// Get the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// An already-parsed 3D model.
type Model struct {
	Name   string
	Meshes []Mesh
}

// Get the model bounding box.
func (m *Model) BBox() types.BBox {
	b := types.EmptyBBox()
	for i := range m.Meshes {
		for _, p := range m.Meshes[i].Positions {
			b.Extend(p)
		}
	}
	return b
}

// Get the total number of triangles.
func (m *Model) TriangleCount() int {
	n := 0
	for i := range m.Meshes {
		n += m.Meshes[i].TriangleCount()
	}
	return n
}

// ModelCache returns parsed models by path. Implementations must be safe for
// concurrent use.
type ModelCache interface {
	Model(path string) (*Model, error)
}
