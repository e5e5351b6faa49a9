package scene

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/board3d/board3d/accel"
	"github.com/board3d/board3d/board"
	"github.com/board3d/board3d/config"
	"github.com/board3d/board3d/log"
	"github.com/board3d/board3d/types"
)

var (
	ErrNoBoard = errors.New("scene: no board provider")
)

// Layer thicknesses (mm) for the non-copper layers.
const (
	maskThickness  = 0.02
	silkThickness  = 0.015
	pasteThickness = 0.04

	// Side of the fallback body used when the board has no usable outline.
	fallbackBoardSize = 10
)

// Vertical extents of the board layers. The body is centered on z=0; back
// side layers mirror the front ones.
type zLayout struct {
	bodyTop   float32
	copperTop float32
	maskTop   float32
	padTop    float32
	silkTop   float32
	pasteTop  float32
}

func newZLayout(thickness, copper float32) zLayout {
	z := zLayout{bodyTop: thickness / 2}
	z.copperTop = z.bodyTop + copper
	z.maskTop = z.copperTop + maskThickness
	z.padTop = z.maskTop + copper*0.1
	z.silkTop = z.maskTop + silkThickness
	z.pasteTop = z.padTop + pasteThickness
	return z
}

// Get the [min, max] range for a layer slab on the requested side. The slab
// starts at from and ends at to on the front side.
func (z zLayout) span(back bool, from, to float32) (float32, float32) {
	if back {
		return -to, -from
	}
	return from, to
}

type builder struct {
	logger log.Logger

	provider board.Provider
	models   board.ModelCache
	settings *config.Settings

	z         zLayout
	materials *Materials
	extraMats []*Material

	prims    []Primitive
	holes    []accel.Primitive
	meshes   map[string]*MeshBuffer
	order    []string
	counters Counters
}

// Build a new scene generation from the board. Items that produce degenerate
// geometry are dropped and counted; missing footprint models are logged and
// skipped.
func Build(p board.Provider, models board.ModelCache, s *config.Settings) (*Scene, error) {
	if p == nil {
		return nil, ErrNoBoard
	}
	if s == nil {
		s = config.Default()
	}

	start := time.Now()
	b := &builder{
		logger:    log.New("scene builder"),
		provider:  p,
		models:    models,
		settings:  s,
		z:         newZLayout(p.Thickness(), p.CopperThickness()),
		materials: NewMaterials(s),
		meshes:    make(map[string]*MeshBuffer),
	}

	b.addBody()
	b.addTracks()
	b.addZones()
	b.addVias()
	b.addPads()
	b.addHoles()
	if s.ShowModels && models != nil {
		b.addModels()
	}

	sc := New(b.prims, b.holes)
	sc.Materials = b.materials
	for _, name := range b.order {
		if m := b.meshes[name]; len(m.Indices) != 0 {
			sc.Meshes = append(sc.Meshes, m)
		}
	}

	sc.counters.Degenerate = b.counters.Degenerate
	sc.counters.MissingModels = b.counters.MissingModels
	sc.counters.BuildTime = time.Since(start)

	b.logger.Noticef(
		"built scene generation %d: %d primitives (%d degenerate dropped), %d mesh buffers in %d ms",
		sc.Generation, len(sc.Primitives), sc.counters.Degenerate, len(sc.Meshes), sc.counters.BuildTime.Nanoseconds()/1e6,
	)
	return sc, nil
}

// Register a primitive; degenerate (nil) primitives are only counted.
func (b *builder) add(prim Primitive, ok bool) {
	if !ok {
		b.counters.Degenerate++
		return
	}
	b.prims = append(b.prims, prim)
}

// Get (or create) the named mesh buffer.
func (b *builder) mesh(name string, layer LayerKind, color types.Vec4) *MeshBuffer {
	if m, ok := b.meshes[name]; ok {
		return m
	}
	m := &MeshBuffer{Name: name, Layer: layer, Color: color}
	b.meshes[name] = m
	b.order = append(b.order, name)
	return m
}

func (b *builder) copperColor(layer board.Layer) config.Color {
	return b.settings.Colors.Layer(string(layer), b.settings.Colors.Copper)
}

func sideName(back bool) string {
	if back {
		return "B"
	}
	return "F"
}

// Collect the circular cut-outs drilled through the board.
func (b *builder) drills() []Hole {
	var out []Hole
	for _, v := range b.provider.Vias() {
		if v.Drill > 0 {
			out = append(out, Hole{Center: v.Position, Radius: v.Drill / 2})
		}
	}
	for _, p := range b.provider.Pads() {
		if p.IsThrough() {
			out = append(out, Hole{Center: p.Position, Radius: p.Drill / 2})
		}
	}
	for _, h := range b.provider.Holes() {
		if h.Diameter > 0 {
			out = append(out, Hole{Center: h.Position, Radius: h.Diameter / 2})
		}
	}
	return out
}

func holeLoops(holes []Hole) [][]types.Vec2 {
	loops := make([][]types.Vec2, 0, len(holes))
	for _, h := range holes {
		loops = append(loops, circlePolygon(h.Center, h.Radius, circleSegments))
	}
	return loops
}

// Get the board outline or a block enclosing all items when the outline
// cannot be extruded.
func (b *builder) outline() ([]types.Vec2, bool) {
	outline := b.provider.Outline()
	if len(outline) >= 3 && math.Abs(float64(polygonArea(outline))) > 1e-9 {
		return outline, true
	}

	ext := types.EmptyBBox()
	for _, t := range b.provider.Tracks() {
		ext.Extend(t.Start.Vec3(0))
		ext.Extend(t.End.Vec3(0))
	}
	for _, p := range b.provider.Pads() {
		ext.Extend(p.Position.Vec3(0))
	}
	for _, v := range b.provider.Vias() {
		ext.Extend(v.Position.Vec3(0))
	}
	if !ext.IsValid() {
		half := float32(fallbackBoardSize) / 2
		ext = types.NewBBox(types.Vec3{-half, -half, 0}, types.Vec3{half, half, 0})
	} else {
		ext = ext.Inflate(1)
	}
	return []types.Vec2{
		{ext.Min[0], ext.Min[1]},
		{ext.Max[0], ext.Min[1]},
		{ext.Max[0], ext.Max[1]},
		{ext.Min[0], ext.Max[1]},
	}, false
}

func (b *builder) addBody() {
	item := board.Item{Kind: board.KindBody}
	colors := &b.settings.Colors
	outline, valid := b.outline()
	drills := b.drills()

	if valid {
		body := NewExtrudedPolygon(outline, drills, -b.z.bodyTop, b.z.bodyTop, &b.materials.Body, colors.BoardBody.RGB(), item)
		b.add(body, body != nil)
	} else {
		b.logger.Warningf("board outline is missing or has no area; using a placeholder block")
		bbox := types.NewBBox(outline[0].Vec3(-b.z.bodyTop), outline[2].Vec3(b.z.bodyTop))
		block := NewDummyBlock(bbox, &b.materials.Body, colors.BoardBody.RGB(), item)
		b.add(block, block != nil)
	}
	b.mesh("body", LayerBody, colors.BoardBody.Vec4()).addPrism(outline, holeLoops(drills), -b.z.bodyTop, b.z.bodyTop)

	if !b.settings.ShowSolderMask {
		return
	}
	for _, back := range []bool{false, true} {
		zMin, zMax := b.z.span(back, b.z.copperTop, b.z.maskTop)
		mask := NewExtrudedPolygon(outline, drills, zMin, zMax, &b.materials.SolderMask, colors.SolderMask.RGB(), board.Item{Kind: board.KindBody})
		b.add(mask, mask != nil)
		b.mesh(sideName(back)+".Mask", LayerSolderMask, colors.SolderMask.Vec4()).addPrism(outline, holeLoops(drills), zMin, zMax)
	}
}

func (b *builder) addTracks() {
	colors := &b.settings.Colors
	for _, t := range b.provider.Tracks() {
		back := t.Layer.IsBack()
		var (
			zMin, zMax float32
			mat        *Material
			color      config.Color
			layer      LayerKind
			item       board.Item
		)
		if t.Layer.IsSilk() {
			if !b.settings.ShowSilkscreen {
				continue
			}
			zMin, zMax = b.z.span(back, b.z.maskTop, b.z.silkTop)
			mat, color, layer = &b.materials.Silkscreen, colors.Silkscreen, LayerSilkscreen
			item = board.Item{Kind: board.KindSilkscreen, Reference: t.Reference}
		} else {
			zMin, zMax = b.z.span(back, b.z.bodyTop, b.z.copperTop)
			mat, color, layer = &b.materials.Copper, b.copperColor(t.Layer), LayerCopper
			item = board.Item{Kind: board.KindTrack, Reference: t.Reference}
		}

		seg := NewRoundSegment(t.Start, t.End, t.Width, zMin, zMax, mat, color.RGB(), item)
		b.add(seg, seg != nil)
		if seg != nil {
			b.mesh(string(t.Layer), layer, color.Vec4()).addPrism(stadiumPolygon(t.Start, t.End, t.Width/2, circleSegments), nil, zMin, zMax)
		}
	}
}

func (b *builder) addZones() {
	for _, zone := range b.provider.Zones() {
		zMin, zMax := b.z.span(zone.Layer.IsBack(), b.z.bodyTop, b.z.copperTop)
		color := b.copperColor(zone.Layer)
		poly := NewExtrudedPolygon(zone.Outline, nil, zMin, zMax, &b.materials.Copper, color.RGB(), board.Item{Kind: board.KindZone})
		b.add(poly, poly != nil)
		if poly != nil {
			b.mesh(string(zone.Layer), LayerCopper, color.Vec4()).addPrism(zone.Outline, nil, zMin, zMax)
		}
	}
}

// Add a plated barrel spanning both copper layers.
func (b *builder) addBarrel(center types.Vec2, drillRadius float32, item board.Item) {
	zMin, zMax := -b.z.copperTop, b.z.copperTop
	plating := b.provider.CopperThickness()
	ring := NewRing(center, drillRadius, drillRadius+plating, zMin, zMax, &b.materials.Copper, b.settings.Colors.Copper.RGB(), item)
	b.add(ring, ring != nil)
	if ring != nil {
		b.mesh("barrels", LayerCopper, b.settings.Colors.Copper.Vec4()).addRing(center, drillRadius, drillRadius+plating, zMin, zMax)
	}
}

func (b *builder) addVias() {
	for _, v := range b.provider.Vias() {
		item := board.Item{Kind: board.KindVia}
		for _, layer := range []board.Layer{board.FrontCopper, board.BackCopper} {
			zMin, zMax := b.z.span(layer.IsBack(), b.z.bodyTop, b.z.copperTop)
			color := b.copperColor(layer)
			ring := NewRing(v.Position, v.Drill/2, v.Diameter/2, zMin, zMax, &b.materials.Copper, color.RGB(), item)
			b.add(ring, ring != nil)
			if ring != nil {
				b.mesh(string(layer), LayerCopper, color.Vec4()).addRing(v.Position, v.Drill/2, v.Diameter/2, zMin, zMax)
			}
		}
		if v.Drill > 0 {
			b.addBarrel(v.Position, v.Drill/2, item)
			b.addHoleCylinder(v.Position, v.Drill/2, item)
		}
	}
}

func (b *builder) addPads() {
	colors := &b.settings.Colors
	for i := range b.provider.Pads() {
		p := b.provider.Pads()[i]
		item := board.Item{Kind: board.KindPad, Reference: p.Reference}

		layers := []board.Layer{p.Layer}
		if p.IsThrough() {
			layers = []board.Layer{board.FrontCopper, board.BackCopper}
		}
		for _, layer := range layers {
			back := layer.IsBack()
			zMin, zMax := b.z.span(back, b.z.bodyTop, b.z.padTop)
			color := b.copperColor(layer)
			b.addPadShape(&p, zMin, zMax, &b.materials.Copper, color, LayerCopper, string(layer), item)

			if b.settings.ShowSolderPaste && !p.IsThrough() {
				zMin, zMax = b.z.span(back, b.z.padTop, b.z.pasteTop)
				b.addPadShape(&p, zMin, zMax, &b.materials.Paste, colors.SolderPaste, LayerPaste, sideName(back)+".Paste", item)
			}
		}
		if p.IsThrough() {
			b.addBarrel(p.Position, p.Drill/2, item)
			b.addHoleCylinder(p.Position, p.Drill/2, item)
		}
	}
}

// Emit the primitive and mesh for a single pad slab.
func (b *builder) addPadShape(p *board.Pad, zMin, zMax float32, mat *Material, color config.Color, layer LayerKind, meshName string, item board.Item) {
	mesh := b.mesh(meshName, layer, color.Vec4())
	drill := p.Drill / 2

	switch p.Shape {
	case board.PadCircle:
		radius := minf(p.Size[0], p.Size[1]) / 2
		if drill > 0 {
			ring := NewRing(p.Position, drill, radius, zMin, zMax, mat, color.RGB(), item)
			b.add(ring, ring != nil)
			if ring != nil {
				mesh.addRing(p.Position, drill, radius, zMin, zMax)
			}
			return
		}
		cyl := NewCylinder(p.Position, radius, zMin, zMax, mat, color.RGB(), item)
		b.add(cyl, cyl != nil)
		if cyl != nil {
			mesh.addPrism(circlePolygon(p.Position, radius, circleSegments), nil, zMin, zMax)
		}
	case board.PadOval:
		if drill > 0 {
			b.addPolygonPad(p, stadiumOutline(p), zMin, zMax, mat, color, mesh, item)
			return
		}
		a, c, width := ovalAxis(p)
		seg := NewRoundSegment(a, c, width, zMin, zMax, mat, color.RGB(), item)
		b.add(seg, seg != nil)
		if seg != nil {
			mesh.addPrism(stadiumPolygon(a, c, width/2, circleSegments), nil, zMin, zMax)
		}
	default:
		b.addPolygonPad(p, rectPolygon(p.Position, p.Size, p.Rotation), zMin, zMax, mat, color, mesh, item)
	}
}

func (b *builder) addPolygonPad(p *board.Pad, outline []types.Vec2, zMin, zMax float32, mat *Material, color config.Color, mesh *MeshBuffer, item board.Item) {
	var holes []Hole
	if p.Drill > 0 {
		holes = []Hole{{Center: p.Position, Radius: p.Drill / 2}}
	}
	poly := NewExtrudedPolygon(outline, holes, zMin, zMax, mat, color.RGB(), item)
	b.add(poly, poly != nil)
	if poly != nil {
		mesh.addPrism(outline, holeLoops(holes), zMin, zMax)
	}
}

// Get the end points and width of an oval pad.
func ovalAxis(p *board.Pad) (a, c types.Vec2, width float32) {
	half := (p.Size[0] - p.Size[1]) / 2
	width = p.Size[1]
	dir := types.Vec2{1, 0}
	if p.Size[1] > p.Size[0] {
		half = (p.Size[1] - p.Size[0]) / 2
		width = p.Size[0]
		dir = types.Vec2{0, 1}
	}
	offset := rotate2D(dir, p.Rotation).Mul(half)
	return p.Position.Sub(offset), p.Position.Add(offset), width
}

func stadiumOutline(p *board.Pad) []types.Vec2 {
	a, c, width := ovalAxis(p)
	return stadiumPolygon(a, c, width/2, circleSegments)
}

// Record a drill cylinder used for picking.
func (b *builder) addHoleCylinder(center types.Vec2, radius float32, item board.Item) {
	cyl := NewCylinder(center, radius, -b.z.copperTop, b.z.copperTop, &b.materials.Body, b.settings.Colors.BoardBody.RGB(), item)
	if cyl != nil {
		b.holes = append(b.holes, cyl)
	}
}

func (b *builder) addHoles() {
	for _, h := range b.provider.Holes() {
		b.addHoleCylinder(h.Position, h.Diameter/2, board.Item{Kind: board.KindHole})
	}
}

func (b *builder) addModels() {
	for _, fp := range b.provider.Footprints() {
		for i, ref := range fp.Models {
			model, err := b.models.Model(ref.Path)
			if err != nil {
				b.counters.MissingModels++
				b.logger.Warningf("footprint %s: skipping model %q: %v", fp.Reference, ref.Path, err)
				continue
			}
			if ref.Scale[0] == 0 || ref.Scale[1] == 0 || ref.Scale[2] == 0 {
				b.counters.Degenerate += model.TriangleCount()
				continue
			}
			b.addModel(&fp, &ref, model, fmt.Sprintf("model:%s:%d", fp.Reference, i))
		}
	}
}

// Get the model placement matrix and the matching normal matrix.
func (b *builder) modelTransform(fp *board.Footprint, ref *board.ModelRef) (xform, normalXform types.Mat4) {
	deg := float32(math.Pi / 180)
	rot := types.QuatFromEuler(ref.Rotation[0]*deg, ref.Rotation[1]*deg, ref.Rotation[2]*deg).Mat4()
	place := types.RotateZ4(fp.Rotation * deg)
	surface := b.z.copperTop
	if fp.Side == board.Back {
		place = place.Mul4(types.QuatFromAxisAngle(types.Vec3{1, 0, 0}, math.Pi).Mat4())
		surface = -surface
	}

	linear := place.Mul4(rot)
	xform = types.Translate4(fp.Position.Vec3(surface)).
		Mul4(linear).
		Mul4(types.Translate4(ref.Offset)).
		Mul4(types.Scale4(ref.Scale))
	inv := types.Vec3{1 / ref.Scale[0], 1 / ref.Scale[1], 1 / ref.Scale[2]}
	normalXform = linear.Mul4(types.Scale4(inv))
	return xform, normalXform
}

func (b *builder) addModel(fp *board.Footprint, ref *board.ModelRef, model *board.Model, name string) {
	xform, normalXform := b.modelTransform(fp, ref)
	item := board.Item{Kind: board.KindModel, Reference: fp.Reference}

	for mi := range model.Meshes {
		m := &model.Meshes[mi]
		mat := &b.materials.Plastic
		if m.Transparency > 0 && b.settings.Raytracing.Refractions {
			custom := b.materials.Plastic
			custom.Transparency = m.Transparency
			mat = &custom
			b.extraMats = append(b.extraMats, mat)
		}
		buf := b.mesh(fmt.Sprintf("%s:%d", name, mi), LayerModel, m.Diffuse.Vec4(1-m.Transparency))
		smooth := len(m.Normals) == len(m.Positions)

		for i := 0; i+2 < len(m.Indices); i += 3 {
			var v, n [3]types.Vec3
			for k := 0; k < 3; k++ {
				idx := m.Indices[i+k]
				v[k] = xform.TransformPoint(m.Positions[idx])
				if smooth {
					n[k] = normalXform.TransformDir(m.Normals[idx]).Normalize()
				}
			}

			var normals []types.Vec3
			if smooth {
				normals = n[:]
			}
			tri := NewTriangle(v[0], v[1], v[2], normals, mat, m.Diffuse, item)
			b.add(tri, tri != nil)
			if tri == nil {
				continue
			}
			if smooth {
				buf.addSmoothTriangle(v, n)
			} else {
				buf.addTriangle(v[0], v[1], v[2])
			}
		}
	}
}
