package scene

import (
	"github.com/board3d/board3d/types"
)

// Number of segments used to approximate a full circle.
const circleSegments = 24

// The board layer a mesh buffer belongs to.
type LayerKind uint8

const (
	LayerBody LayerKind = iota
	LayerSolderMask
	LayerCopper
	LayerSilkscreen
	LayerPaste
	LayerModel
)

func (l LayerKind) String() string {
	switch l {
	case LayerBody:
		return "body"
	case LayerSolderMask:
		return "solder mask"
	case LayerCopper:
		return "copper"
	case LayerSilkscreen:
		return "silkscreen"
	case LayerPaste:
		return "paste"
	case LayerModel:
		return "3d model"
	}
	return "unknown"
}

// MeshBuffer holds indexed triangle data for the rasterizer. All triangles in
// a buffer share a single color.
type MeshBuffer struct {
	Name      string
	Layer     LayerKind
	Color     types.Vec4
	Positions []types.Vec3
	Normals   []types.Vec3
	Indices   []uint32
}

// Returns true if the buffer must be drawn in the transparent pass.
func (m *MeshBuffer) Transparent() bool {
	return m.Color[3] < 1
}

// Get the number of triangles.
func (m *MeshBuffer) TriangleCount() int {
	return len(m.Indices) / 3
}

// Get the buffer size in bytes.
func (m *MeshBuffer) SizeBytes() int {
	return 12*len(m.Positions) + 12*len(m.Normals) + 4*len(m.Indices)
}

func (m *MeshBuffer) addVertex(p, n types.Vec3) uint32 {
	m.Positions = append(m.Positions, p)
	m.Normals = append(m.Normals, n)
	return uint32(len(m.Positions) - 1)
}

// Add a flat shaded triangle.
func (m *MeshBuffer) addTriangle(v0, v1, v2 types.Vec3) {
	n := v1.Sub(v0).Cross(v2.Sub(v0)).Normalize()
	m.Indices = append(m.Indices, m.addVertex(v0, n), m.addVertex(v1, n), m.addVertex(v2, n))
}

// Add a triangle with explicit vertex normals.
func (m *MeshBuffer) addSmoothTriangle(v [3]types.Vec3, n [3]types.Vec3) {
	m.Indices = append(m.Indices, m.addVertex(v[0], n[0]), m.addVertex(v[1], n[1]), m.addVertex(v[2], n[2]))
}

// Add a planar cap at height z. The vertices and indices come from
// triangulate and describe counter-clockwise triangles.
func (m *MeshBuffer) addCap(verts []types.Vec2, indices []uint32, z float32, up bool) {
	n := types.Vec3{0, 0, 1}
	if !up {
		n = types.Vec3{0, 0, -1}
	}
	first := uint32(len(m.Positions))
	for _, v := range verts {
		m.addVertex(v.Vec3(z), n)
	}
	for i := 0; i+2 < len(indices); i += 3 {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		if up {
			m.Indices = append(m.Indices, first+a, first+b, first+c)
		} else {
			m.Indices = append(m.Indices, first+a, first+c, first+b)
		}
	}
}

// Add the side walls of a closed loop. Walls face outwards for counter-clockwise
// loops and inwards for clockwise ones.
func (m *MeshBuffer) addWalls(loop []types.Vec2, zMin, zMax float32) {
	for i := range loop {
		p0 := loop[i]
		p1 := loop[(i+1)%len(loop)]
		e := p1.Sub(p0)
		if e.Dot(e) == 0 {
			continue
		}
		n := types.Vec3{e[1], -e[0], 0}.Normalize()
		a := m.addVertex(p0.Vec3(zMin), n)
		b := m.addVertex(p1.Vec3(zMin), n)
		c := m.addVertex(p1.Vec3(zMax), n)
		d := m.addVertex(p0.Vec3(zMax), n)
		m.Indices = append(m.Indices, a, b, c, a, c, d)
	}
}

// Add a closed prism for a polygon with holes.
func (m *MeshBuffer) addPrism(outline []types.Vec2, holes [][]types.Vec2, zMin, zMax float32) {
	verts, indices := triangulate(outline, holes)
	m.addCap(verts, indices, zMax, true)
	m.addCap(verts, indices, zMin, false)

	loop := append([]types.Vec2(nil), outline...)
	if polygonArea(loop) < 0 {
		reverse(loop)
	}
	m.addWalls(loop, zMin, zMax)
	for _, h := range holes {
		loop = append(loop[:0], h...)
		if polygonArea(loop) > 0 {
			reverse(loop)
		}
		m.addWalls(loop, zMin, zMax)
	}
}

// Add a closed annulus.
func (m *MeshBuffer) addRing(center types.Vec2, inner, outer, zMin, zMax float32) {
	outerLoop := circlePolygon(center, outer, circleSegments)
	innerLoop := circlePolygon(center, inner, circleSegments)

	for _, face := range []struct {
		z  float32
		up bool
	}{{zMax, true}, {zMin, false}} {
		n := types.Vec3{0, 0, 1}
		if !face.up {
			n = types.Vec3{0, 0, -1}
		}
		for i := 0; i < circleSegments; i++ {
			j := (i + 1) % circleSegments
			a := m.addVertex(innerLoop[i].Vec3(face.z), n)
			b := m.addVertex(outerLoop[i].Vec3(face.z), n)
			c := m.addVertex(outerLoop[j].Vec3(face.z), n)
			d := m.addVertex(innerLoop[j].Vec3(face.z), n)
			if face.up {
				m.Indices = append(m.Indices, a, b, c, a, c, d)
			} else {
				m.Indices = append(m.Indices, a, c, b, a, d, c)
			}
		}
	}

	m.addWalls(outerLoop, zMin, zMax)
	reverse(innerLoop)
	m.addWalls(innerLoop, zMin, zMax)
}
