// Package camera implements the orbit camera shared by the rasterizer and
// the raytracer.
package camera

import (
	"fmt"
	"math"

	"github.com/board3d/board3d/config"
	"github.com/board3d/board3d/types"
)

const (
	minDistance = 0.5
	maxDistance = 5000
)

// Stores the ray directions at the four corners of the camera frustrum. It is
// used as a shortcut for generating per pixel rays via interpolation of the
// corner rays.
type Frustrum [4]types.Vec3

func (fr Frustrum) String() string {
	return fmt.Sprintf(
		"Frustrum Rays:\nTL : (%3.3f, %3.3f, %3.3f)\nTR : (%3.3f, %3.3f, %3.3f)\nBL : (%3.3f, %3.3f, %3.3f)\nBR : (%3.3f, %3.3f, %3.3f)",
		fr[0][0], fr[0][1], fr[0][2],
		fr[1][0], fr[1][1], fr[1][2],
		fr[2][0], fr[2][1], fr[2][2],
		fr[3][0], fr[3][1], fr[3][2],
	)
}

// Pose describes where the camera orbits and how it is oriented. The eye is
// located at Target + Rotation*(0, 0, Distance) looking at Target.
type Pose struct {
	Target   types.Vec3
	Rotation types.Quat
	Distance float32
}

// Interpolate between two poses.
func (p Pose) Lerp(to Pose, t float32) Pose {
	return Pose{
		Target:   p.Target.Lerp(to.Target, t),
		Rotation: p.Rotation.Nlerp(to.Rotation, t),
		Distance: p.Distance + (to.Distance-p.Distance)*t,
	}
}

// The camera type controls the view shared by both renderers. It must only
// be mutated by the goroutine that drives the repaint loop; renderers treat
// it as read-only.
type Camera struct {
	pose Pose

	projection config.Projection
	fov        float32

	width, height int

	// Bounds of the viewed board used for fitting and clip planes.
	board types.BBox

	eye      types.Vec3
	up       types.Vec3
	viewMat  types.Mat4
	projMat  types.Mat4
	invVP    types.Mat4
	frustrum Frustrum

	changed bool
	anim    animation
}

// Create a new camera looking down on the origin.
func New(projection config.Projection, fov float32) *Camera {
	c := &Camera{
		pose: Pose{
			Rotation: types.QuatIdent(),
			Distance: 100,
		},
		projection: projection,
		fov:        fov,
		width:      1,
		height:     1,
		board:      types.NewBBox(types.Vec3{-50, -50, -1}, types.Vec3{50, 50, 1}),
		anim:       animation{interpolation: config.InterpolateBezier},
	}
	c.update()
	return c
}

// Create a camera from settings.
func NewFromSettings(s *config.Settings) *Camera {
	c := New(s.Camera.Projection, s.Camera.FOV)
	c.anim.interpolation = s.Camera.Interpolation
	c.anim.speed = s.Camera.MovingSpeedMultiplier
	return c
}

// Returns true if the camera parameters changed since the last call. The
// flag is cleared by the call so only one consumer may poll it per frame.
func (c *Camera) ParametersChanged() bool {
	changed := c.changed
	c.changed = false
	return changed
}

// Get the current pose.
func (c *Camera) Pose() Pose {
	return c.pose
}

// Set the current pose.
func (c *Camera) SetPose(p Pose) {
	p.Rotation = p.Rotation.Normalize()
	p.Distance = types.Clamp(p.Distance, minDistance, maxDistance)
	c.pose = p
	c.update()
}

// Set the viewport size in pixels.
func (c *Camera) SetWindowSize(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	if width == c.width && height == c.height {
		return
	}
	c.width, c.height = width, height
	c.update()
}

// Get the viewport size in pixels.
func (c *Camera) WindowSize() (int, int) {
	return c.width, c.height
}

// Get an independent copy of the camera. A running animation is not copied.
func (c *Camera) Clone() *Camera {
	clone := *c
	clone.anim.running = false
	return &clone
}

// Set the projection type.
func (c *Camera) SetProjection(p config.Projection) {
	if p == c.projection {
		return
	}
	c.projection = p
	c.update()
}

// Get the projection type.
func (c *Camera) Projection() config.Projection {
	return c.projection
}

// Set the bounds of the viewed board.
func (c *Camera) SetBoardBBox(b types.BBox) {
	if !b.IsValid() {
		return
	}
	c.board = b
	c.update()
}

// Get the eye position.
func (c *Camera) Eye() types.Vec3 {
	return c.eye
}

// Get the view direction.
func (c *Camera) Dir() types.Vec3 {
	return c.pose.Target.Sub(c.eye).Normalize()
}

// Get the view matrix.
func (c *Camera) ViewMat() types.Mat4 {
	return c.viewMat
}

// Get the projection matrix.
func (c *Camera) ProjMat() types.Mat4 {
	return c.projMat
}

// Get the inverse of the combined projection/view matrix.
func (c *Camera) InvViewProjMat() types.Mat4 {
	return c.invVP
}

// Get the frustrum corner rays.
func (c *Camera) Frustrum() Frustrum {
	return c.frustrum
}

// Get the distance required to fit the board in the viewport.
func (c *Camera) FitDistance() float32 {
	ext := c.board.Extent()
	radius := 0.5 * float32(math.Sqrt(float64(ext[0]*ext[0]+ext[1]*ext[1])))
	halfFov := float64(c.fov) * math.Pi / 360
	dist := radius / float32(math.Tan(halfFov))
	if aspect := float32(c.width) / float32(c.height); aspect < 1 {
		dist /= aspect
	}
	return types.Clamp(dist*1.1, minDistance, maxDistance)
}

// Rotate around the world Z axis and the camera's horizontal axis (radians).
func (c *Camera) Orbit(yaw, pitch float32) {
	right := c.pose.Rotation.Rotate(types.Vec3{1, 0, 0})
	q := types.QuatFromAxisAngle(types.Vec3{0, 0, 1}, yaw).Mul(types.QuatFromAxisAngle(right, pitch))
	c.pose.Rotation = q.Mul(c.pose.Rotation).Normalize()
	c.update()
}

// Pan the target in the view plane. The offsets are expressed in pixels.
func (c *Camera) Pan(dx, dy float32) {
	scale := c.unitsPerPixel()
	right := c.pose.Rotation.Rotate(types.Vec3{1, 0, 0})
	c.pose.Target = c.pose.Target.Sub(right.Mul(dx * scale)).Add(c.up.Mul(dy * scale))
	c.update()
}

// Scale the orbit distance by factor.
func (c *Camera) Zoom(factor float32) {
	if factor <= 0 {
		return
	}
	c.pose.Distance = types.Clamp(c.pose.Distance*factor, minDistance, maxDistance)
	c.update()
}

// Get the world size of a pixel at the target distance.
func (c *Camera) unitsPerPixel() float32 {
	halfHeight := c.pose.Distance * float32(math.Tan(float64(c.fov)*math.Pi/360))
	return 2 * halfHeight / float32(c.height)
}

// Generate a primary ray through the viewport position (x, y) in pixels. The
// origin is at the top-left corner and fractional values address sub-pixel
// positions.
func (c *Camera) MakeRay(x, y float32) types.Ray {
	u := x / float32(c.width)
	v := y / float32(c.height)

	if c.projection == config.ProjectionOrthographic {
		ndc := types.Vec3{2*u - 1, 1 - 2*v, -1}
		near := c.invVP.TransformPoint(ndc)
		ndc[2] = 1
		far := c.invVP.TransformPoint(ndc)
		return types.RayTowards(near, far)
	}

	top := c.frustrum[0].Lerp(c.frustrum[1], u)
	bottom := c.frustrum[2].Lerp(c.frustrum[3], u)
	return types.NewRay(c.eye, top.Lerp(bottom, v))
}

// Recalculate the matrices and frustrum and flag the change.
func (c *Camera) update() {
	c.changed = true

	c.eye = c.pose.Target.Add(c.pose.Rotation.Rotate(types.Vec3{0, 0, c.pose.Distance}))
	c.up = c.pose.Rotation.Rotate(types.Vec3{0, 1, 0})
	c.viewMat = types.LookAtV(c.eye, c.pose.Target, c.up)

	ext := c.board.Extent()
	diag := ext.Len()
	near := types.Clamp(c.pose.Distance-diag, c.pose.Distance*0.01, c.pose.Distance)
	far := c.pose.Distance + 2*diag + 10

	aspect := float32(c.width) / float32(c.height)
	if c.projection == config.ProjectionOrthographic {
		halfH := c.pose.Distance * float32(math.Tan(float64(c.fov)*math.Pi/360))
		halfW := halfH * aspect
		c.projMat = types.Ortho4(-halfW, halfW, -halfH, halfH, near, far)
	} else {
		c.projMat = types.Perspective4(c.fov, aspect, near, far)
	}
	c.invVP = c.projMat.Mul4(c.viewMat).Inv()
	c.updateFrustrum()
}

// Generate a ray vector for each corner of the camera frustrum by
// multiplying clip space vectors for each corner with the inv proj/view
// matrix, applying perspective and subtracting the camera eye position.
func (c *Camera) updateFrustrum() {
	corners := [4][2]float32{{-1, 1}, {1, 1}, {-1, -1}, {1, -1}}
	for i, corner := range corners {
		p := c.invVP.TransformPoint(types.Vec3{corner[0], corner[1], -1})
		c.frustrum[i] = p.Sub(c.eye)
	}
}
