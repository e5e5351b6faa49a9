package camera

import (
	"math"
	"testing"
	"time"

	"github.com/board3d/board3d/config"
	"github.com/board3d/board3d/types"
)

func approx(a, b float32) bool {
	return math.Abs(float64(a-b)) < 1e-3
}

func approxVec(a, b types.Vec3) bool {
	return approx(a[0], b[0]) && approx(a[1], b[1]) && approx(a[2], b[2])
}

func TestParametersChangedIsOneShot(t *testing.T) {
	c := New(config.ProjectionPerspective, 45)
	c.ParametersChanged()

	if c.ParametersChanged() {
		t.Fatal("expected no change without a camera mutation")
	}
	c.Zoom(2)
	if !c.ParametersChanged() {
		t.Fatal("expected first poll after a mutation to report a change")
	}
	if c.ParametersChanged() {
		t.Fatal("expected second poll to report no change")
	}

	c.SetWindowSize(640, 480)
	if !c.ParametersChanged() {
		t.Fatal("expected resize to report a change")
	}
	c.SetWindowSize(640, 480)
	if c.ParametersChanged() {
		t.Fatal("expected resize to the same size to be ignored")
	}
}

func TestMakeRay(t *testing.T) {
	type spec struct {
		projection config.Projection
		expOrigin  types.Vec3
	}

	specs := []spec{
		{config.ProjectionPerspective, types.Vec3{0, 0, 10}},
		{config.ProjectionOrthographic, types.Vec3{0, 0, 0}},
	}
	for specIndex, s := range specs {
		c := New(s.projection, 45)
		c.SetWindowSize(100, 100)
		c.SetPose(Pose{Rotation: types.QuatIdent(), Distance: 10})

		r := c.MakeRay(50, 50)
		if !approxVec(r.Dir, types.Vec3{0, 0, -1}) {
			t.Errorf("[spec %d] expected center ray to point down; got %v", specIndex, r.Dir)
		}
		if s.projection == config.ProjectionPerspective && !approxVec(r.Origin, s.expOrigin) {
			t.Errorf("[spec %d] expected ray origin %v; got %v", specIndex, s.expOrigin, r.Origin)
		}
		if s.projection == config.ProjectionOrthographic && (!approx(r.Origin[0], 0) || !approx(r.Origin[1], 0)) {
			t.Errorf("[spec %d] expected ray origin above the target; got %v", specIndex, r.Origin)
		}

		// Top-left pixel looks towards -X/+Y
		r = c.MakeRay(0, 0)
		if s.projection == config.ProjectionPerspective && (r.Dir[0] >= 0 || r.Dir[1] <= 0) {
			t.Errorf("[spec %d] expected top-left ray to point towards -X/+Y; got %v", specIndex, r.Dir)
		}
		if s.projection == config.ProjectionOrthographic && (r.Origin[0] >= 0 || r.Origin[1] <= 0) {
			t.Errorf("[spec %d] expected top-left ray to start at -X/+Y; got %v", specIndex, r.Origin)
		}
	}
}

func TestViewPoses(t *testing.T) {
	c := New(config.ProjectionPerspective, 45)
	c.SetBoardBBox(types.NewBBox(types.Vec3{0, 0, -1}, types.Vec3{20, 10, 1}))
	center := types.Vec3{10, 5, 0}

	type spec struct {
		view   View
		expDir types.Vec3
	}
	specs := []spec{
		{ViewTop, types.Vec3{0, 0, -1}},
		{ViewBottom, types.Vec3{0, 0, 1}},
		{ViewFront, types.Vec3{0, 1, 0}},
		{ViewBack, types.Vec3{0, -1, 0}},
		{ViewLeft, types.Vec3{1, 0, 0}},
		{ViewRight, types.Vec3{-1, 0, 0}},
	}
	for specIndex, s := range specs {
		pose, ok := c.ViewPose(s.view, 10)
		if !ok {
			t.Fatalf("[spec %d] expected view %s to be handled", specIndex, s.view)
		}
		c.SetPose(pose)
		if !approxVec(c.Pose().Target, center) {
			t.Errorf("[spec %d] expected view %s to target the board center; got %v", specIndex, s.view, c.Pose().Target)
		}
		if !approxVec(c.Dir(), s.expDir) {
			t.Errorf("[spec %d] expected view %s direction %v; got %v", specIndex, s.view, s.expDir, c.Dir())
		}
	}

	before := c.Pose().Distance
	pose, _ := c.ViewPose(ViewZoomIn, 10)
	if !approx(pose.Distance, before/zoomStep) {
		t.Fatalf("expected zoom in to reduce the distance to %f; got %f", before/zoomStep, pose.Distance)
	}
	if _, ok := c.ViewPose(ViewNone, 10); ok {
		t.Fatal("expected unknown view to be rejected")
	}
	if v, ok := ParseView("rotate-z-cw"); !ok || v != ViewRotateZCW {
		t.Fatalf("expected to parse rotate-z-cw; got %v", v)
	}
}

func TestAnimation(t *testing.T) {
	c := New(config.ProjectionPerspective, 45)
	c.SetAnimation(config.InterpolateLinear, 1)
	c.SetPose(Pose{Rotation: types.QuatIdent(), Distance: 10})

	c.AnimateTo(Pose{Rotation: types.QuatIdent(), Distance: 20})
	if !c.IsAnimating() {
		t.Fatal("expected animation to be running")
	}
	if !c.Advance(500 * time.Millisecond) {
		t.Fatal("expected animation to continue at t=0.5")
	}
	if got := c.Pose().Distance; !approx(got, 15) {
		t.Fatalf("expected distance 15 at t=0.5; got %f", got)
	}
	if c.Advance(600 * time.Millisecond) {
		t.Fatal("expected animation to end once t exceeds 1")
	}
	if got := c.Pose().Distance; !approx(got, 20) {
		t.Fatalf("expected final distance 20; got %f", got)
	}
	if c.IsAnimating() {
		t.Fatal("expected animation to be stopped")
	}
}

func TestBlendCurves(t *testing.T) {
	curves := []config.Interpolation{config.InterpolateLinear, config.InterpolateEaseInOut, config.InterpolateBezier}
	for _, curve := range curves {
		if got := blend(curve, 0); !approx(got, 0) {
			t.Errorf("[%s] expected blend(0) = 0; got %f", curve, got)
		}
		if got := blend(curve, 1); !approx(got, 1) {
			t.Errorf("[%s] expected blend(1) = 1; got %f", curve, got)
		}
		if got := blend(curve, 0.5); !approx(got, 0.5) {
			t.Errorf("[%s] expected blend(0.5) = 0.5; got %f", curve, got)
		}
	}
}
