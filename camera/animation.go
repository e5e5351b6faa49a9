package camera

import (
	"time"

	"github.com/board3d/board3d/config"
)

// Time based interpolation between two poses.
type animation struct {
	interpolation config.Interpolation
	speed         float32

	running  bool
	t        float32
	from, to Pose
}

// Get the blended time for t in [0, 1].
func blend(interpolation config.Interpolation, t float32) float32 {
	switch interpolation {
	case config.InterpolateLinear:
		return t
	case config.InterpolateEaseInOut:
		sq := t * t
		return sq / (2*(sq-t) + 1)
	default:
		// Cubic bezier with control points at 0 and 1
		return t * t * (3 - 2*t)
	}
}

// Start animating from the current pose towards to.
func (c *Camera) AnimateTo(to Pose) {
	c.anim.from = c.pose
	c.anim.to = to
	c.anim.t = 0
	c.anim.running = true
}

// Set the animation interpolation curve and speed multiplier.
func (c *Camera) SetAnimation(interpolation config.Interpolation, speed float32) {
	c.anim.interpolation = interpolation
	c.anim.speed = speed
}

// Returns true while an animation is in progress.
func (c *Camera) IsAnimating() bool {
	return c.anim.running
}

// Advance the animation by the elapsed time scaled by the speed multiplier.
// Returns false once the normalized animation time exceeds 1; the final pose
// is applied at that point.
func (c *Camera) Advance(elapsed time.Duration) bool {
	if !c.anim.running {
		return false
	}

	speed := c.anim.speed
	if speed <= 0 {
		speed = 1
	}
	c.anim.t += float32(elapsed.Microseconds()) * 1e-6 * speed
	if c.anim.t > 1 {
		c.anim.running = false
		c.SetPose(c.anim.to)
		return false
	}

	c.SetPose(c.anim.from.Lerp(c.anim.to, blend(c.anim.interpolation, c.anim.t)))
	return true
}

// Abort the running animation leaving the camera at its current pose.
func (c *Camera) StopAnimation() {
	c.anim.running = false
}
