package scene

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/board3d/board3d/accel"
	"github.com/board3d/board3d/board"
	"github.com/board3d/board3d/config"
	"github.com/board3d/board3d/types"
)

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-3
}

func approxVec(a, b types.Vec3) bool {
	return approx(a[0], b[0]) && approx(a[1], b[1]) && approx(a[2], b[2])
}

func unitCube() []Primitive {
	c := func(x, y, z float32) types.Vec3 { return types.Vec3{x * 0.5, y * 0.5, z * 0.5} }
	quads := [][4]types.Vec3{
		{c(-1, -1, 1), c(1, -1, 1), c(1, 1, 1), c(-1, 1, 1)},
		{c(-1, -1, -1), c(-1, 1, -1), c(1, 1, -1), c(1, -1, -1)},
		{c(1, -1, -1), c(1, 1, -1), c(1, 1, 1), c(1, -1, 1)},
		{c(-1, -1, -1), c(-1, -1, 1), c(-1, 1, 1), c(-1, 1, -1)},
		{c(-1, 1, -1), c(-1, 1, 1), c(1, 1, 1), c(1, 1, -1)},
		{c(-1, -1, -1), c(1, -1, -1), c(1, -1, 1), c(-1, -1, 1)},
	}

	mat := &Material{Name: "test"}
	var prims []Primitive
	for _, q := range quads {
		prims = append(prims,
			NewTriangle(q[0], q[1], q[2], nil, mat, types.Vec3{1, 1, 1}, board.Item{Kind: board.KindModel}),
			NewTriangle(q[0], q[2], q[3], nil, mat, types.Vec3{1, 1, 1}, board.Item{Kind: board.KindModel}),
		)
	}
	return prims
}

func TestCubeScene(t *testing.T) {
	sc := New(unitCube(), nil)
	if got := sc.Counters().Primitives[KindTriangle]; got != 12 {
		t.Fatalf("expected 12 triangles; got %d", got)
	}

	r := types.RayTowards(types.Vec3{0, 0, 10}, types.Vec3{0, 0, -10})
	hit := accel.NewHitInfo()
	if !sc.Accelerator.Intersect(&r, &hit) {
		t.Fatal("expected ray to hit the cube")
	}
	if !approx(hit.T, 9.5) {
		t.Fatalf("expected hit distance 9.5; got %f", hit.T)
	}
	if !approxVec(hit.Normal, types.Vec3{0, 0, 1}) {
		t.Fatalf("expected normal (0, 0, 1); got %v", hit.Normal)
	}
	if hit.Inside {
		t.Fatal("expected a front face hit")
	}

	r = types.RayTowards(types.Vec3{10, 10, 10}, types.Vec3{10, 10, -10})
	hit.Reset()
	if sc.Accelerator.Intersect(&r, &hit) {
		t.Fatalf("expected no hit; got hit at distance %f", hit.T)
	}
	if sc.Accelerator.IntersectP(&r, math.MaxFloat32) {
		t.Fatal("expected shadow query to miss")
	}
}

func TestExtrudedPrimitives(t *testing.T) {
	mat := &Material{Name: "test"}
	white := types.Vec3{1, 1, 1}
	item := board.Item{}

	type spec struct {
		descr     string
		prim      Primitive
		origin    types.Vec3
		dir       types.Vec3
		expHit    bool
		expT      float32
		expNormal types.Vec3
		expInside bool
	}

	cyl := NewCylinder(types.Vec2{0, 0}, 1, 0, 1, mat, white, item)
	ring := NewRing(types.Vec2{0, 0}, 0.5, 1, 0, 1, mat, white, item)
	seg := NewRoundSegment(types.Vec2{0, 0}, types.Vec2{4, 0}, 2, 0, 1, mat, white, item)
	square := []types.Vec2{{-2, -2}, {2, -2}, {2, 2}, {-2, 2}}
	poly := NewExtrudedPolygon(square, []Hole{{Center: types.Vec2{0, 0}, Radius: 0.5}}, 0, 1, mat, white, item)

	down := types.Vec3{0, 0, -1}
	right := types.Vec3{1, 0, 0}
	specs := []spec{
		{"cylinder top", cyl, types.Vec3{0, 0, 5}, down, true, 4, types.Vec3{0, 0, 1}, false},
		{"cylinder side", cyl, types.Vec3{-5, 0, 0.5}, right, true, 4, types.Vec3{-1, 0, 0}, false},
		{"cylinder miss", cyl, types.Vec3{2, 0, 5}, down, false, 0, types.Vec3{}, false},
		{"ring hole", ring, types.Vec3{0, 0, 5}, down, false, 0, types.Vec3{}, false},
		{"ring top", ring, types.Vec3{0.75, 0, 5}, down, true, 4, types.Vec3{0, 0, 1}, false},
		{"ring exit from inside", ring, types.Vec3{0.75, 0, 0.5}, right, true, 0.25, types.Vec3{1, 0, 0}, true},
		{"ring inner wall", ring, types.Vec3{0, 0, 0.5}, right, true, 0.5, types.Vec3{-1, 0, 0}, false},
		{"segment body", seg, types.Vec3{2, 0.9, 5}, down, true, 4, types.Vec3{0, 0, 1}, false},
		{"segment miss", seg, types.Vec3{2, 1.1, 5}, down, false, 0, types.Vec3{}, false},
		{"segment cap", seg, types.Vec3{-5, 0, 0.5}, right, true, 4, types.Vec3{-1, 0, 0}, false},
		{"polygon hole", poly, types.Vec3{0, 0, 5}, down, false, 0, types.Vec3{}, false},
		{"polygon top", poly, types.Vec3{1, 1, 5}, down, true, 4, types.Vec3{0, 0, 1}, false},
		{"polygon edge", poly, types.Vec3{-5, 1, 0.5}, right, true, 3, types.Vec3{-1, 0, 0}, false},
		{"polygon hole wall", poly, types.Vec3{0, 0, 0.5}, right, true, 0.5, types.Vec3{-1, 0, 0}, false},
		{"polygon bottom", poly, types.Vec3{1, 1, -5}, types.Vec3{0, 0, 1}, true, 5, types.Vec3{0, 0, -1}, false},
	}

	for specIndex, s := range specs {
		r := types.NewRay(s.origin, s.dir)
		hit := accel.NewHitInfo()
		got := s.prim.Intersect(&r, &hit)
		if got != s.expHit {
			t.Errorf("[spec %d: %s] expected hit to be %t; got %t", specIndex, s.descr, s.expHit, got)
			continue
		}
		if gotP := s.prim.IntersectP(&r, math.MaxFloat32); gotP != s.expHit {
			t.Errorf("[spec %d: %s] expected shadow query to return %t; got %t", specIndex, s.descr, s.expHit, gotP)
		}
		if !got {
			continue
		}
		if !approx(hit.T, s.expT) {
			t.Errorf("[spec %d: %s] expected distance %f; got %f", specIndex, s.descr, s.expT, hit.T)
		}
		if !approxVec(hit.Normal, s.expNormal) {
			t.Errorf("[spec %d: %s] expected normal %v; got %v", specIndex, s.descr, s.expNormal, hit.Normal)
		}
		if hit.Inside != s.expInside {
			t.Errorf("[spec %d: %s] expected inside to be %t; got %t", specIndex, s.descr, s.expInside, hit.Inside)
		}
	}
}

func TestDegeneratePrimitives(t *testing.T) {
	mat := &Material{}
	if NewRoundSegment(types.Vec2{0, 0}, types.Vec2{1, 0}, 0, 0, 1, mat, types.Vec3{}, board.Item{}) != nil {
		t.Error("expected zero width segment to be rejected")
	}
	if NewCylinder(types.Vec2{0, 0}, 0, 0, 1, mat, types.Vec3{}, board.Item{}) != nil {
		t.Error("expected zero radius cylinder to be rejected")
	}
	if NewRing(types.Vec2{0, 0}, 1, 1, 0, 1, mat, types.Vec3{}, board.Item{}) != nil {
		t.Error("expected empty ring to be rejected")
	}
	line := []types.Vec2{{0, 0}, {1, 0}, {2, 0}}
	if NewExtrudedPolygon(line, nil, 0, 1, mat, types.Vec3{}, board.Item{}) != nil {
		t.Error("expected zero area polygon to be rejected")
	}
	if NewTriangle(types.Vec3{}, types.Vec3{1, 0, 0}, types.Vec3{2, 0, 0}, nil, mat, types.Vec3{}, board.Item{}) != nil {
		t.Error("expected zero area triangle to be rejected")
	}
}

func TestTriangulateWithHole(t *testing.T) {
	outline := []types.Vec2{{0, 0}, {4, 0}, {4, 4}, {0, 4}}
	hole := []types.Vec2{{1, 1}, {3, 1}, {3, 3}, {1, 3}}

	verts, indices := triangulate(outline, [][]types.Vec2{hole})
	if len(indices)%3 != 0 || len(indices) == 0 {
		t.Fatalf("expected a non-empty triangle list; got %d indices", len(indices))
	}

	var area float32
	for i := 0; i < len(indices); i += 3 {
		a, b, c := verts[indices[i]], verts[indices[i+1]], verts[indices[i+2]]
		triArea := b.Sub(a).Cross(c.Sub(a)) / 2
		if triArea < -1e-6 {
			t.Fatalf("expected counter-clockwise triangles; triangle %d has area %f", i/3, triArea)
		}
		area += triArea
	}
	if !approx(area, 12) {
		t.Fatalf("expected triangulated area 12; got %f", area)
	}
}

type memModelCache map[string]*board.Model

func (c memModelCache) Model(path string) (*board.Model, error) {
	if m, ok := c[path]; ok {
		return m, nil
	}
	return nil, errors.New("model not found")
}

func testBoard() *board.Board {
	return board.New(board.Layout{
		Outline: []types.Vec2{{0, 0}, {20, 0}, {20, 20}, {0, 20}},
		Tracks: []board.Track{
			{Start: types.Vec2{2, 10}, End: types.Vec2{18, 10}, Width: 0.5, Layer: board.FrontCopper},
			{Start: types.Vec2{2, 12}, End: types.Vec2{18, 12}, Width: 0, Layer: board.FrontCopper},
		},
		Vias:  []board.Via{{Position: types.Vec2{5, 5}, Diameter: 0.8, Drill: 0.4}},
		Pads:  []board.Pad{{Reference: "R1", Position: types.Vec2{15, 15}, Size: types.Vec2{2, 1}, Shape: board.PadRect}},
		Holes: []board.Hole{{Position: types.Vec2{10, 3}, Diameter: 2}},
	})
}

func pick(t *testing.T, sc *Scene, x, y float32) (accel.HitInfo, board.Item, bool) {
	t.Helper()
	r := types.RayTowards(types.Vec3{x, y, 10}, types.Vec3{x, y, -10})
	hit := accel.NewHitInfo()
	if !sc.Accelerator.Intersect(&r, &hit) {
		return hit, board.Item{}, false
	}
	return hit, sc.Item(hit.PrimIndex), true
}

func TestBuildFromBoard(t *testing.T) {
	settings := config.Default()
	settings.ShowSolderMask = false

	sc, err := Build(testBoard(), nil, settings)
	if err != nil {
		t.Fatal(err)
	}

	counters := sc.Counters()
	if counters.Degenerate != 1 {
		t.Fatalf("expected 1 degenerate item; got %d", counters.Degenerate)
	}
	expCounts := map[Kind]int{
		KindExtrudedPolygon: 2,
		KindRoundSegment:    1,
		KindRing:            3,
	}
	for kind, exp := range expCounts {
		if got := counters.Primitives[kind]; got != exp {
			t.Errorf("expected %d primitives of kind %s; got %d", exp, kind, got)
		}
	}
	if got := sc.Holes.Len(); got != 2 {
		t.Fatalf("expected 2 hole cylinders; got %d", got)
	}
	if got := len(sc.Meshes); got != 4 {
		t.Fatalf("expected 4 mesh buffers; got %d", got)
	}

	hit, item, ok := pick(t, sc, 10, 10)
	if !ok || item.Kind != board.KindTrack {
		t.Fatalf("expected to hit a track; got %v (hit: %t)", item.Kind, ok)
	}
	if !approx(hit.T, 10-0.835) {
		t.Fatalf("expected track top at distance %f; got %f", 10-0.835, hit.T)
	}

	if _, item, ok = pick(t, sc, 15, 15); !ok || item.Kind != board.KindPad || item.Reference != "R1" {
		t.Fatalf("expected to hit pad R1; got %v %q (hit: %t)", item.Kind, item.Reference, ok)
	}

	if hit, item, ok = pick(t, sc, 1, 1); !ok || item.Kind != board.KindBody || !approx(hit.T, 9.2) {
		t.Fatalf("expected to hit the board body at distance 9.2; got %v at %f (hit: %t)", item.Kind, hit.T, ok)
	}

	if _, item, ok = pick(t, sc, 10, 3); ok {
		t.Fatalf("expected ray through the mounting hole to miss; got %v", item.Kind)
	}
	r := types.RayTowards(types.Vec3{10, 3, 10}, types.Vec3{10, 3, -10})
	hit = accel.NewHitInfo()
	if !sc.Holes.Intersect(&r, &hit) {
		t.Fatal("expected ray to hit the hole cylinder")
	}
	if got := hit.Prim.(Primitive).Item().Kind; got != board.KindHole {
		t.Fatalf("expected hole item; got %v", got)
	}

	if stats := sc.Stats(); !strings.Contains(stats, "round segment") {
		t.Fatalf("expected stats to list primitive kinds; got:\n%s", stats)
	}
}

func TestBuildWithoutOutline(t *testing.T) {
	b := board.New(board.Layout{
		Tracks: []board.Track{{Start: types.Vec2{0, 0}, End: types.Vec2{5, 0}, Width: 0.25, Layer: board.BackCopper}},
	})
	sc, err := Build(b, nil, config.Default())
	if err != nil {
		t.Fatal(err)
	}
	if got := sc.Counters().Primitives[KindDummyBlock]; got != 1 {
		t.Fatalf("expected a placeholder block; got %d", got)
	}
	if _, err = Build(nil, nil, nil); err != ErrNoBoard {
		t.Fatalf("expected ErrNoBoard; got %v", err)
	}
}

func TestBuildWithModels(t *testing.T) {
	b := testBoard()
	layout := b.Layout()
	layout.Footprints = []board.Footprint{{
		Reference: "U1",
		Position:  types.Vec2{10, 16},
		Models:    []board.ModelRef{{Path: "chip.obj"}, {Path: "missing.obj"}},
	}}
	cache := memModelCache{
		"chip.obj": &board.Model{Name: "chip", Meshes: []board.Mesh{{
			Name:      "body",
			Positions: []types.Vec3{{-1, -1, 1}, {1, -1, 1}, {0, 1, 1}},
			Indices:   []uint32{0, 1, 2},
			Diffuse:   types.Vec3{0.2, 0.2, 0.2},
		}}},
	}

	sc, err := Build(board.New(layout), cache, config.Default())
	if err != nil {
		t.Fatal(err)
	}
	if got := sc.Counters().MissingModels; got != 1 {
		t.Fatalf("expected 1 missing model; got %d", got)
	}
	if got := sc.Counters().Primitives[KindTriangle]; got != 1 {
		t.Fatalf("expected 1 model triangle; got %d", got)
	}

	hit, item, ok := pick(t, sc, 10, 16)
	if !ok || item.Kind != board.KindModel || item.Reference != "U1" {
		t.Fatalf("expected to hit model of U1; got %v %q (hit: %t)", item.Kind, item.Reference, ok)
	}
	if !approx(hit.T, 10-1.835) {
		t.Fatalf("expected model surface at distance %f; got %f", 10-1.835, hit.T)
	}
}
