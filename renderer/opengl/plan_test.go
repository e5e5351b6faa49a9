package opengl

import (
	"reflect"
	"testing"

	"github.com/board3d/board3d/config"
	"github.com/board3d/board3d/scene"
	"github.com/board3d/board3d/types"
)

func TestFrameOptions(t *testing.T) {
	s := config.Default()
	s.OpenGL.Grid = config.GridLines
	s.WhileMoving = config.WhileMoving{
		DisableAntiAliasing: true,
		DisableModels:       true,
		DisableGrid:         true,
		DisableTransparency: true,
	}

	idle := newFrameOptions(s, false)
	if !idle.antiAliasing || !idle.models || !idle.transparency || idle.grid != config.GridLines {
		t.Fatalf("expected all features to be enabled while idle; got %+v", idle)
	}

	moving := newFrameOptions(s, true)
	if moving.antiAliasing || moving.models || moving.transparency || moving.grid != config.GridNone {
		t.Fatalf("expected features to be disabled while moving; got %+v", moving)
	}

	s.ShowModels = false
	if newFrameOptions(s, false).models {
		t.Fatal("expected models to be hidden when disabled in the settings")
	}
}

func TestPlanDraw(t *testing.T) {
	meshes := []*scene.MeshBuffer{
		{Name: "body", Layer: scene.LayerBody, Color: types.Vec4{0.3, 0.3, 0.2, 0.9}},
		{Name: "F.Cu", Layer: scene.LayerCopper, Color: types.Vec4{0.7, 0.6, 0.3, 1}},
		{Name: "F.Mask", Layer: scene.LayerSolderMask, Color: types.Vec4{0.1, 0.3, 0.1, 0.8}},
		{Name: "U1", Layer: scene.LayerModel, Color: types.Vec4{0.1, 0.1, 0.1, 1}},
	}

	type spec struct {
		transparentMask bool
		isMoving        bool
		expOpaque       []int
		expTransparent  []int
	}
	specs := []spec{
		{true, false, []int{1, 3}, []int{0, 2}},
		{false, false, []int{1, 2, 3}, []int{0}},
		{true, true, []int{0, 1, 2}, nil},
	}

	for index, sp := range specs {
		s := config.Default()
		s.OpenGL.TransparentMask = sp.transparentMask
		s.WhileMoving.DisableModels = true
		s.WhileMoving.DisableTransparency = true

		plan := planDraw(meshes, s, newFrameOptions(s, sp.isMoving))
		if !reflect.DeepEqual(plan.opaque, sp.expOpaque) {
			t.Fatalf("[spec %d] expected opaque pass %v; got %v", index, sp.expOpaque, plan.opaque)
		}
		if !reflect.DeepEqual(plan.transparent, sp.expTransparent) {
			t.Fatalf("[spec %d] expected transparent pass %v; got %v", index, sp.expTransparent, plan.transparent)
		}
	}
}
