package accel

import (
	"math"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/board3d/board3d/types"
)

type testSphere struct {
	center types.Vec3
	radius float32

	// Number of IntersectP invocations.
	shadowCalls int32
}

func (s *testSphere) BBox() types.BBox {
	return types.NewBBox(s.center.Sub(types.Splat3(s.radius)), s.center.Add(types.Splat3(s.radius)))
}

func (s *testSphere) Center() types.Vec3 {
	return s.center
}

func (s *testSphere) distance(r *types.Ray) (float32, bool) {
	oc := r.Origin.Sub(s.center)
	b := oc.Dot(r.Dir)
	c := oc.LenSqr() - s.radius*s.radius
	disc := b*b - c
	if disc < 0 {
		return 0, false
	}
	sq := float32(math.Sqrt(float64(disc)))
	t := -b - sq
	if t <= Epsilon {
		t = -b + sq
	}
	return t, t > Epsilon
}

func (s *testSphere) Intersect(r *types.Ray, hit *HitInfo) bool {
	t, ok := s.distance(r)
	if !ok || t >= hit.T {
		return false
	}
	hit.T = t
	hit.Point = r.At(t)
	hit.Normal = hit.Point.Sub(s.center).Normalize()
	hit.Inside = r.Origin.Sub(s.center).Len() < s.radius
	return true
}

func (s *testSphere) IntersectP(r *types.Ray, maxDistance float32) bool {
	atomic.AddInt32(&s.shadowCalls, 1)
	t, ok := s.distance(r)
	return ok && t < maxDistance
}

func randomScene(rng *rand.Rand, count int) []Primitive {
	prims := make([]Primitive, count)
	for i := range prims {
		prims[i] = &testSphere{
			center: types.Vec3{rng.Float32()*100 - 50, rng.Float32()*100 - 50, rng.Float32()*10 - 5},
			radius: 0.2 + rng.Float32()*2,
		}
	}
	return prims
}

func randomRay(rng *rand.Rand) types.Ray {
	origin := types.Vec3{rng.Float32()*120 - 60, rng.Float32()*120 - 60, 30}
	target := types.Vec3{rng.Float32()*100 - 50, rng.Float32()*100 - 50, rng.Float32()*10 - 5}
	return types.RayTowards(origin, target)
}

func TestBVHMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	prims := randomScene(rng, 500)

	list := NewList(prims)
	bvh := NewBVH(prims, DefaultLeafSize)

	if !bvh.BBox().Encloses(list.BBox()) || !list.BBox().Encloses(bvh.BBox()) {
		t.Fatalf("expected BVH and list bboxes to match; got %v and %v", bvh.BBox(), list.BBox())
	}
	for i, p := range prims {
		if !bvh.BBox().Encloses(p.BBox()) {
			t.Fatalf("expected BVH bbox to enclose primitive %d", i)
		}
	}

	hits := 0
	for i := 0; i < 2000; i++ {
		r := randomRay(rng)

		expHit := NewHitInfo()
		expFound := list.Intersect(&r, &expHit)

		hit := NewHitInfo()
		found := bvh.Intersect(&r, &hit)

		if found != expFound {
			t.Fatalf("[ray %d] expected hit to be %t; got %t", i, expFound, found)
		}
		if !found {
			continue
		}
		hits++
		if hit.PrimIndex != expHit.PrimIndex || hit.T != expHit.T {
			t.Fatalf("[ray %d] expected hit prim %d at %f; got prim %d at %f", i, expHit.PrimIndex, expHit.T, hit.PrimIndex, hit.T)
		}
		if hit.Prim != prims[hit.PrimIndex] {
			t.Fatalf("[ray %d] expected hit primitive to match primitive index", i)
		}

		// Shadow queries must agree with the nearest hit distance
		if !bvh.IntersectP(&r, hit.T+1) || bvh.IntersectP(&r, hit.T-1e-3) {
			t.Fatalf("[ray %d] any-hit query disagrees with nearest hit at %f", i, hit.T)
		}

		// Continuation queries restricted to the hit leaf must find the same primitive
		again := NewHitInfo()
		if !bvh.IntersectNode(&r, &again, hit.AccNodeInfo) || again.PrimIndex != hit.PrimIndex {
			t.Fatalf("[ray %d] expected node query to return prim %d; got %d", i, hit.PrimIndex, again.PrimIndex)
		}
	}

	if hits == 0 {
		t.Fatal("expected at least one ray to hit the scene")
	}
}

func TestPacketMatchesSingleRays(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	prims := randomScene(rng, 200)
	bvh := NewBVH(prims, DefaultLeafSize)

	for round := 0; round < 20; round++ {
		var packet types.RayPacket
		for i := range packet.Rays {
			packet.Rays[i] = randomRay(rng)
		}

		var hits HitInfoPacket
		hits.Reset()
		bvh.IntersectPacket(&packet, &hits)

		for i := range packet.Rays {
			exp := NewHitInfo()
			bvh.Intersect(&packet.Rays[i], &exp)
			if exp.PrimIndex != hits.Hits[i].PrimIndex || exp.T != hits.Hits[i].T {
				t.Fatalf("[round %d, ray %d] expected prim %d at %f; got prim %d at %f", round, i, exp.PrimIndex, exp.T, hits.Hits[i].PrimIndex, hits.Hits[i].T)
			}
		}
	}
}

func TestShadowQueryShortCircuits(t *testing.T) {
	// Concentric spheres; every one of them blocks the ray
	prims := make([]Primitive, 16)
	for i := range prims {
		prims[i] = &testSphere{center: types.Vec3{0, 0, 0}, radius: 1 + float32(i)*0.01}
	}

	r := types.RayTowards(types.Vec3{0, 0, 10}, types.Vec3{0, 0, 0})
	containers := map[string]Container{
		"list": NewList(prims),
		"bvh":  NewBVH(prims, len(prims)),
	}

	for name, c := range containers {
		for _, p := range prims {
			p.(*testSphere).shadowCalls = 0
		}

		if !c.IntersectP(&r, 100) {
			t.Fatalf("[%s] expected shadow ray to be blocked", name)
		}

		calls := int32(0)
		for _, p := range prims {
			calls += p.(*testSphere).shadowCalls
		}
		if calls != 1 {
			t.Fatalf("[%s] expected any-hit query to stop after 1 primitive test; got %d", name, calls)
		}
	}
}

func TestEquidistantHitsPreferLowestIndex(t *testing.T) {
	// Three identical spheres; the tie must resolve to index 0 regardless
	// of the order in which primitives are visited.
	prims := []Primitive{
		&testSphere{center: types.Vec3{0, 0, 0}, radius: 1},
		&testSphere{center: types.Vec3{0, 0, 0}, radius: 1},
		&testSphere{center: types.Vec3{0, 0, 0}, radius: 1},
	}
	r := types.RayTowards(types.Vec3{0, 0, 10}, types.Vec3{0, 0, 0})

	for name, c := range map[string]Container{"list": NewList(prims), "bvh": NewBVH(prims, 1)} {
		hit := NewHitInfo()
		if !c.Intersect(&r, &hit) {
			t.Fatalf("[%s] expected a hit", name)
		}
		if hit.PrimIndex != 0 {
			t.Fatalf("[%s] expected lowest primitive index to win; got %d", name, hit.PrimIndex)
		}
	}

	// Visit in reverse order
	hit := NewHitInfo()
	for i := len(prims) - 1; i >= 0; i-- {
		testPrimitive(prims[i], i, 0, &r, &hit)
	}
	if hit.PrimIndex != 0 || math.Abs(float64(hit.T-9)) > 1e-4 {
		t.Fatalf("expected prim 0 at distance 9; got prim %d at %f", hit.PrimIndex, hit.T)
	}

	// A higher index at the same distance never replaces the current hit
	if testPrimitive(prims[2], 2, 0, &r, &hit) || hit.PrimIndex != 0 {
		t.Fatalf("expected equidistant hit with higher index to be rejected")
	}
}

func TestEmptyContainers(t *testing.T) {
	r := types.RayTowards(types.Vec3{0, 0, 10}, types.Vec3{0, 0, 0})
	for name, c := range map[string]Container{"list": NewList(nil), "bvh": NewBVH(nil, 0)} {
		hit := NewHitInfo()
		if c.Intersect(&r, &hit) || hit.Valid() {
			t.Fatalf("[%s] expected no hit for empty container", name)
		}
		if c.IntersectP(&r, math.MaxFloat32) {
			t.Fatalf("[%s] expected no shadow hit for empty container", name)
		}
		var hits HitInfoPacket
		hits.Reset()
		var packet types.RayPacket
		for i := range packet.Rays {
			packet.Rays[i] = r
		}
		if c.IntersectPacket(&packet, &hits) {
			t.Fatalf("[%s] expected no packet hit for empty container", name)
		}
	}
}

func TestLeafCallback(t *testing.T) {
	type primSpec struct {
		min types.Vec3
		max types.Vec3
	}

	primSpecs := []primSpec{
		{types.Vec3{-2, 0, -2}, types.Vec3{-1, 1, -1}},
		{types.Vec3{1, 0, -2}, types.Vec3{2, 1, -1}},
		{types.Vec3{-2, 0, 1}, types.Vec3{-1, 1, 2}},
		{types.Vec3{1, 0, 1}, types.Vec3{2, 1, 2}},
	}

	itemList := make([]BoundedVolume, len(primSpecs))
	for idx, ps := range primSpecs {
		itemList[idx] = &testSphere{center: ps.min.Add(ps.max).Mul(0.5), radius: 0.5}
	}

	var cbCount = 0
	var expItemListCount = 0
	cb := func(leaf *Node, itemList []int) {
		cbCount++
		if len(itemList) != expItemListCount {
			t.Fatalf("expected leaf callback to be called with %d items; got %d", expItemListCount, len(itemList))
		}
	}

	var expCount = 0

	// Partition each item in a single leaf
	cbCount = 0
	expItemListCount = 1
	treeNodes, stats := Build(itemList, 1, cb, SurfaceAreaHeuristic)

	expCount = 4
	if cbCount != expCount || stats.Leaves != expCount {
		t.Fatalf("expected leaf callback to be called %d times; called %d", expCount, cbCount)
	}
	expCount = 7
	if len(treeNodes) != expCount {
		t.Fatalf("expected bvh tree to have %d nodes; got %d", expCount, len(treeNodes))
	}
	if treeNodes[0].IsLeaf() {
		t.Fatal("expected root to be an inner node")
	}

	// Partition two items in a single leaf
	cbCount = 0
	expItemListCount = 2
	treeNodes, _ = Build(itemList, 2, cb, SurfaceAreaHeuristic)

	expCount = 2
	if cbCount != expCount {
		t.Fatalf("expected leaf callback to be called %d times; called %d", expCount, cbCount)
	}
	expCount = 3
	if len(treeNodes) != expCount {
		t.Fatalf("expected bvh tree to have %d nodes; got %d", expCount, len(treeNodes))
	}
}
