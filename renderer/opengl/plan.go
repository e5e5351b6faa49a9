package opengl

import (
	"github.com/board3d/board3d/config"
	"github.com/board3d/board3d/scene"
)

// Features enabled for a single frame.
type frameOptions struct {
	antiAliasing bool
	grid         config.GridType
	models       bool
	transparency bool
}

// Resolve the frame options honoring the "disable while moving" flags.
func newFrameOptions(s *config.Settings, isMoving bool) frameOptions {
	opts := frameOptions{
		antiAliasing: s.OpenGL.AntiAliasing,
		grid:         s.OpenGL.Grid,
		models:       s.ShowModels && s.OpenGL.ShowModels,
		transparency: true,
	}
	if isMoving {
		wm := &s.WhileMoving
		opts.antiAliasing = opts.antiAliasing && !wm.DisableAntiAliasing
		opts.models = opts.models && !wm.DisableModels
		opts.transparency = !wm.DisableTransparency
		if wm.DisableGrid {
			opts.grid = config.GridNone
		}
	}
	return opts
}

// The mesh indices drawn by each pass.
type drawPlan struct {
	opaque      []int
	transparent []int
}

// Split meshes into the opaque and transparent passes. Opaque meshes are
// drawn first with depth writes enabled.
func planDraw(meshes []*scene.MeshBuffer, s *config.Settings, opts frameOptions) drawPlan {
	var plan drawPlan
	for i, mesh := range meshes {
		if mesh.Layer == scene.LayerModel && !opts.models {
			continue
		}

		transparent := opts.transparency && mesh.Transparent()
		if mesh.Layer == scene.LayerSolderMask && !s.OpenGL.TransparentMask {
			transparent = false
		}
		if transparent {
			plan.transparent = append(plan.transparent, i)
		} else {
			plan.opaque = append(plan.opaque, i)
		}
	}
	return plan
}
