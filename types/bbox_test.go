package types

import (
	"math"
	"testing"
)

func TestBBoxIntersect(t *testing.T) {
	box := NewBBox(Vec3{-1, -1, -1}, Vec3{1, 1, 1})

	type spec struct {
		origin Vec3
		dir    Vec3
		expHit bool
		expT0  float32
	}
	specs := []spec{
		spec{Vec3{0, 0, 5}, Vec3{0, 0, -1}, true, 4},
		spec{Vec3{0, 0, 5}, Vec3{0, 0, 1}, false, 0},
		spec{Vec3{5, 5, 5}, Vec3{0, 0, -1}, false, 0},
		// Axis aligned ray grazing the box face
		spec{Vec3{1, 0, 5}, Vec3{0, 0, -1}, true, 4},
		// Origin inside the box
		spec{Vec3{0, 0, 0}, Vec3{1, 0, 0}, true, -1},
	}

	for index, s := range specs {
		r := NewRay(s.origin, s.dir)
		t0, _, hit := box.Intersect(&r)
		if hit != s.expHit {
			t.Fatalf("[spec %d] expected hit to be %t; got %t", index, s.expHit, hit)
		}
		if hit && math.Abs(float64(t0-s.expT0)) > 1e-5 {
			t.Fatalf("[spec %d] expected entry distance %f; got %f", index, s.expT0, t0)
		}
	}
}

func TestBBoxUnion(t *testing.T) {
	b := EmptyBBox()
	if b.IsValid() {
		t.Fatal("expected empty bbox to be invalid")
	}

	b.Union(EmptyBBox())
	if b.IsValid() {
		t.Fatal("expected union with an empty bbox to leave the box invalid")
	}

	b.Union(NewBBox(Vec3{1, 2, 3}, Vec3{0, 0, 0}))
	b.Extend(Vec3{-1, 5, 1})

	expMin := Vec3{-1, 0, 0}
	expMax := Vec3{1, 5, 3}
	if b.Min != expMin || b.Max != expMax {
		t.Fatalf("expected box [%v, %v]; got [%v, %v]", expMin, expMax, b.Min, b.Max)
	}
	if b.MaxAxis() != 1 {
		t.Fatalf("expected max axis 1; got %d", b.MaxAxis())
	}
	if !b.Encloses(NewBBox(Vec3{0, 1, 1}, Vec3{1, 5, 3})) {
		t.Fatal("expected box to enclose inner box")
	}

	expArea := float32(2 * (2*5 + 5*3 + 2*3))
	if b.SurfaceArea() != expArea {
		t.Fatalf("expected surface area %f; got %f", expArea, b.SurfaceArea())
	}
}

func TestQuatRotate(t *testing.T) {
	q := QuatFromAxisAngle(Vec3{0, 0, 1}, math.Pi/2)
	v := q.Rotate(Vec3{1, 0, 0})
	if v.Sub(Vec3{0, 1, 0}).Len() > 1e-5 {
		t.Fatalf("expected rotated vector (0, 1, 0); got %v", v)
	}

	// Matrix form must agree with Rotate
	m := q.Mat4()
	mv := m.TransformDir(Vec3{1, 0, 0})
	if mv.Sub(v).Len() > 1e-5 {
		t.Fatalf("expected matrix rotation %v; got %v", v, mv)
	}

	back := q.Conjugate().Rotate(v)
	if back.Sub(Vec3{1, 0, 0}).Len() > 1e-5 {
		t.Fatalf("expected conjugate to undo rotation; got %v", back)
	}

	half := QuatIdent().Nlerp(q, 0.5).Rotate(Vec3{1, 0, 0})
	exp := Vec3{float32(math.Sqrt2 / 2), float32(math.Sqrt2 / 2), 0}
	if half.Sub(exp).Len() > 1e-4 {
		t.Fatalf("expected half way rotation %v; got %v", exp, half)
	}
}

func TestVectorRefract(t *testing.T) {
	n := Vec3{0, 0, 1}
	in := Vec3{0, 0, -1}

	out, ok := in.Refract(n, 1/1.5)
	if !ok || out.Sub(in).Len() > 1e-5 {
		t.Fatalf("expected head-on ray to pass straight through; got %v (%t)", out, ok)
	}

	// Grazing ray leaving a dense medium is totally reflected
	grazing := Vec3{1, 0, -0.1}.Normalize()
	if _, ok = grazing.Refract(n, 1.5); ok {
		t.Fatal("expected total internal reflection")
	}

	if (Vec3{}).Normalize() != (Vec3{}) {
		t.Fatal("expected zero vector to normalize to zero")
	}
}
