// Package opengl contains the renderers that draw through an OpenGL 2.1
// context: a rasterizer for interactive use and a texture blitter that
// presents the frames produced by the CPU raytracer.
package opengl

import (
	"fmt"
	"math"

	"github.com/board3d/board3d/camera"
	"github.com/board3d/board3d/config"
	"github.com/board3d/board3d/log"
	"github.com/board3d/board3d/renderer"
	"github.com/board3d/board3d/scene"
	"github.com/board3d/board3d/types"
	"github.com/go-gl/gl/v2.1/gl"
)

// A mesh buffer uploaded to the GPU.
type glMesh struct {
	name       string
	color      types.Vec4
	posBuffer  uint32
	normBuffer uint32
	idxBuffer  uint32
	indexCount int32
}

// Rasterizer draws the scene mesh buffers using vertex and index buffer
// objects and fixed function lighting.
type Rasterizer struct {
	logger   log.Logger
	camera   *camera.Camera
	source   renderer.SceneSource
	settings *config.Settings

	reloadPending bool
	width, height int

	scene  *scene.Scene
	meshes []glMesh
}

// Create a new rasterizer. It must only be used while a GL context is current.
func NewRasterizer(cam *camera.Camera, src renderer.SceneSource, s *config.Settings) *Rasterizer {
	if s == nil {
		s = config.Default()
	}
	return &Rasterizer{
		logger:        log.New("opengl"),
		camera:        cam,
		source:        src,
		settings:      s,
		reloadPending: true,
	}
}

func (r *Rasterizer) SetCurWindowSize(width, height int) {
	r.width, r.height = width, height
}

func (r *Rasterizer) ReloadRequest() {
	r.reloadPending = true
}

func (r *Rasterizer) IsReloadRequestPending() bool {
	return r.reloadPending
}

// The rasterizer is fast enough to redraw while editing.
func (r *Rasterizer) WaitForEditingTimeout() bool {
	return false
}

// Release the GPU buffers.
func (r *Rasterizer) Close() {
	r.releaseMeshes()
	r.scene = nil
}

// Draw a frame. The rasterizer never requests another redraw.
func (r *Rasterizer) Redraw(isMoving bool, status, warn renderer.Reporter) (bool, error) {
	if r.camera == nil {
		return false, renderer.ErrCameraNotDefined
	}
	if status == nil {
		status = renderer.NopReporter
	}
	if warn == nil {
		warn = renderer.NopReporter
	}

	if r.reloadPending {
		r.reloadPending = false
		sc, err := r.source.Scene(status)
		if err != nil {
			warn.Report(err.Error(), renderer.SeverityWarning)
		} else if sc != nil && sc != r.scene {
			r.upload(sc)
		}
	}

	opts := newFrameOptions(r.settings, isMoving)
	gl.Viewport(0, 0, int32(r.width), int32(r.height))
	r.drawBackground()

	if r.scene != nil {
		r.setupView(opts)
		plan := planDraw(r.scene.Meshes, r.settings, opts)
		for _, index := range plan.opaque {
			r.drawMesh(&r.meshes[index])
		}

		if opts.grid != config.GridNone {
			r.drawGrid(opts.grid)
		}

		if len(plan.transparent) != 0 {
			gl.Enable(gl.BLEND)
			gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
			gl.DepthMask(false)
			for _, index := range plan.transparent {
				r.drawMesh(&r.meshes[index])
			}
			gl.DepthMask(true)
			gl.Disable(gl.BLEND)
		}
	}

	if code := gl.GetError(); code != gl.NO_ERROR {
		return false, fmt.Errorf("%w: gl error 0x%x", renderer.ErrContextLost, code)
	}
	return false, nil
}

// Replace the GPU buffers with the meshes of a new scene generation.
func (r *Rasterizer) upload(sc *scene.Scene) {
	r.releaseMeshes()
	r.scene = sc
	r.meshes = make([]glMesh, len(sc.Meshes))

	var triangles int
	for i, mesh := range sc.Meshes {
		m := glMesh{
			name:       mesh.Name,
			color:      mesh.Color,
			indexCount: int32(len(mesh.Indices)),
		}
		if len(mesh.Indices) != 0 {
			gl.GenBuffers(1, &m.posBuffer)
			gl.BindBuffer(gl.ARRAY_BUFFER, m.posBuffer)
			gl.BufferData(gl.ARRAY_BUFFER, len(mesh.Positions)*12, gl.Ptr(&mesh.Positions[0][0]), gl.STATIC_DRAW)

			gl.GenBuffers(1, &m.normBuffer)
			gl.BindBuffer(gl.ARRAY_BUFFER, m.normBuffer)
			gl.BufferData(gl.ARRAY_BUFFER, len(mesh.Normals)*12, gl.Ptr(&mesh.Normals[0][0]), gl.STATIC_DRAW)

			gl.GenBuffers(1, &m.idxBuffer)
			gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.idxBuffer)
			gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(mesh.Indices)*4, gl.Ptr(&mesh.Indices[0]), gl.STATIC_DRAW)
		}
		triangles += mesh.TriangleCount()
		r.meshes[i] = m
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, 0)

	r.logger.Infof("uploaded %d mesh buffers (%d triangles) for scene generation %d", len(r.meshes), triangles, sc.Generation)
}

func (r *Rasterizer) releaseMeshes() {
	for i := range r.meshes {
		m := &r.meshes[i]
		if m.posBuffer != 0 {
			gl.DeleteBuffers(1, &m.posBuffer)
			gl.DeleteBuffers(1, &m.normBuffer)
			gl.DeleteBuffers(1, &m.idxBuffer)
		}
	}
	r.meshes = nil
}

// Clear the frame and draw the background gradient.
func (r *Rasterizer) drawBackground() {
	top := r.settings.Colors.BackgroundTop
	bottom := r.settings.Colors.BackgroundBottom

	gl.ClearColor(bottom[0], bottom[1], bottom[2], 1)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.LIGHTING)
	gl.MatrixMode(gl.PROJECTION)
	gl.LoadIdentity()
	gl.MatrixMode(gl.MODELVIEW)
	gl.LoadIdentity()

	gl.Begin(gl.QUADS)
	gl.Color3f(bottom[0], bottom[1], bottom[2])
	gl.Vertex2f(-1, -1)
	gl.Vertex2f(1, -1)
	gl.Color3f(top[0], top[1], top[2])
	gl.Vertex2f(1, 1)
	gl.Vertex2f(-1, 1)
	gl.End()
}

// Load the camera matrices and setup lighting.
func (r *Rasterizer) setupView(opts frameOptions) {
	proj := r.camera.ProjMat()
	view := r.camera.ViewMat()

	gl.MatrixMode(gl.PROJECTION)
	gl.LoadMatrixf(&proj[0])
	gl.MatrixMode(gl.MODELVIEW)
	gl.LoadMatrixf(&view[0])

	gl.Enable(gl.DEPTH_TEST)
	gl.DepthFunc(gl.LEQUAL)
	gl.Enable(gl.NORMALIZE)

	if opts.antiAliasing {
		gl.Enable(gl.MULTISAMPLE)
	} else {
		gl.Disable(gl.MULTISAMPLE)
	}

	gl.Enable(gl.LIGHTING)
	gl.LightModeli(gl.LIGHT_MODEL_TWO_SIDE, gl.TRUE)
	gl.Enable(gl.COLOR_MATERIAL)
	gl.ColorMaterial(gl.FRONT_AND_BACK, gl.AMBIENT_AND_DIFFUSE)

	// Headlight at the eye position.
	eye := r.camera.Eye()
	headlight := [4]float32{eye[0], eye[1], eye[2], 1}
	diffuse := [4]float32{0.8, 0.8, 0.8, 1}
	ambient := [4]float32{0.2, 0.2, 0.2, 1}
	gl.Enable(gl.LIGHT0)
	gl.Lightfv(gl.LIGHT0, gl.POSITION, &headlight[0])
	gl.Lightfv(gl.LIGHT0, gl.DIFFUSE, &diffuse[0])
	gl.Lightfv(gl.LIGHT0, gl.AMBIENT, &ambient[0])

	specular := [4]float32{0.3, 0.3, 0.3, 1}
	gl.Materialfv(gl.FRONT_AND_BACK, gl.SPECULAR, &specular[0])
	gl.Materialf(gl.FRONT_AND_BACK, gl.SHININESS, 32)
}

func (r *Rasterizer) drawMesh(m *glMesh) {
	if m.indexCount == 0 {
		return
	}
	gl.Color4f(m.color[0], m.color[1], m.color[2], m.color[3])

	gl.EnableClientState(gl.VERTEX_ARRAY)
	gl.EnableClientState(gl.NORMAL_ARRAY)

	gl.BindBuffer(gl.ARRAY_BUFFER, m.posBuffer)
	gl.VertexPointer(3, gl.FLOAT, 0, gl.PtrOffset(0))
	gl.BindBuffer(gl.ARRAY_BUFFER, m.normBuffer)
	gl.NormalPointer(gl.FLOAT, 0, gl.PtrOffset(0))

	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, m.idxBuffer)
	gl.DrawElements(gl.TRIANGLES, m.indexCount, gl.UNSIGNED_INT, gl.PtrOffset(0))

	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, 0)
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.DisableClientState(gl.NORMAL_ARRAY)
	gl.DisableClientState(gl.VERTEX_ARRAY)
}

// Draw a grid below the board.
func (r *Rasterizer) drawGrid(grid config.GridType) {
	step := r.settings.OpenGL.GridSize
	if step <= 0 {
		return
	}
	bbox := r.scene.BBox
	if !bbox.IsValid() {
		return
	}
	ext := bbox.Extent()
	margin := float32(math.Max(float64(ext[0]), float64(ext[1])))
	x0 := float32(math.Floor(float64((bbox.Min[0]-margin)/step))) * step
	y0 := float32(math.Floor(float64((bbox.Min[1]-margin)/step))) * step
	x1 := bbox.Max[0] + margin
	y1 := bbox.Max[1] + margin
	z := bbox.Min[2] - 0.01

	gl.Disable(gl.LIGHTING)
	gl.Color4f(0.5, 0.5, 0.5, 1)
	if grid == config.GridPoints {
		gl.PointSize(2)
		gl.Begin(gl.POINTS)
		for x := x0; x <= x1; x += step {
			for y := y0; y <= y1; y += step {
				gl.Vertex3f(x, y, z)
			}
		}
		gl.End()
	} else {
		gl.Begin(gl.LINES)
		for x := x0; x <= x1; x += step {
			gl.Vertex3f(x, y0, z)
			gl.Vertex3f(x, y1, z)
		}
		for y := y0; y <= y1; y += step {
			gl.Vertex3f(x0, y, z)
			gl.Vertex3f(x1, y, z)
		}
		gl.End()
	}
	gl.Enable(gl.LIGHTING)
}
