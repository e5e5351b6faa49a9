package camera

import (
	"math"

	"github.com/board3d/board3d/types"
)

// A predefined view command.
type View uint8

const (
	ViewNone View = iota
	ViewFront
	ViewBack
	ViewLeft
	ViewRight
	ViewTop
	ViewBottom
	ViewFit
	ViewZoomIn
	ViewZoomOut
	ViewRotateXCW
	ViewRotateXCCW
	ViewRotateYCW
	ViewRotateYCCW
	ViewRotateZCW
	ViewRotateZCCW
	ViewPanUp
	ViewPanDown
	ViewPanLeft
	ViewPanRight
)

var viewNames = map[View]string{
	ViewFront:      "front",
	ViewBack:       "back",
	ViewLeft:       "left",
	ViewRight:      "right",
	ViewTop:        "top",
	ViewBottom:     "bottom",
	ViewFit:        "fit",
	ViewZoomIn:     "zoom-in",
	ViewZoomOut:    "zoom-out",
	ViewRotateXCW:  "rotate-x-cw",
	ViewRotateXCCW: "rotate-x-ccw",
	ViewRotateYCW:  "rotate-y-cw",
	ViewRotateYCCW: "rotate-y-ccw",
	ViewRotateZCW:  "rotate-z-cw",
	ViewRotateZCCW: "rotate-z-ccw",
	ViewPanUp:      "pan-up",
	ViewPanDown:    "pan-down",
	ViewPanLeft:    "pan-left",
	ViewPanRight:   "pan-right",
}

func (v View) String() string {
	if name, ok := viewNames[v]; ok {
		return name
	}
	return "none"
}

// Look up a view by name.
func ParseView(name string) (View, bool) {
	for v, n := range viewNames {
		if n == name {
			return v, true
		}
	}
	return ViewNone, false
}

const (
	zoomStep = 1.25

	// Fraction of the orbit distance moved by a pan step.
	panStep = 0.1
)

var (
	axisX = types.Vec3{1, 0, 0}
	axisY = types.Vec3{0, 1, 0}
	axisZ = types.Vec3{0, 0, 1}

	// Standing views look at the board edge-on with +Z up.
	standing = types.QuatFromAxisAngle(axisX, math.Pi/2)
)

// Calculate the pose for a view command. rotationStep is expressed in
// degrees. Returns false for unknown views.
func (c *Camera) ViewPose(v View, rotationStep float32) (Pose, bool) {
	p := c.pose
	fitted := Pose{Target: c.board.Center(), Distance: c.FitDistance()}
	step := rotationStep * math.Pi / 180

	switch v {
	case ViewTop:
		fitted.Rotation = types.QuatIdent()
	case ViewBottom:
		fitted.Rotation = types.QuatFromAxisAngle(axisY, math.Pi)
	case ViewFront:
		fitted.Rotation = standing
	case ViewBack:
		fitted.Rotation = types.QuatFromAxisAngle(axisZ, math.Pi).Mul(standing)
	case ViewLeft:
		fitted.Rotation = types.QuatFromAxisAngle(axisZ, -math.Pi/2).Mul(standing)
	case ViewRight:
		fitted.Rotation = types.QuatFromAxisAngle(axisZ, math.Pi/2).Mul(standing)
	case ViewFit:
		fitted.Rotation = p.Rotation
	case ViewZoomIn:
		p.Distance /= zoomStep
		return p, true
	case ViewZoomOut:
		p.Distance *= zoomStep
		return p, true
	case ViewRotateXCW, ViewRotateXCCW, ViewRotateYCW, ViewRotateYCCW, ViewRotateZCW, ViewRotateZCCW:
		axis := axisX
		switch v {
		case ViewRotateYCW, ViewRotateYCCW:
			axis = axisY
		case ViewRotateZCW, ViewRotateZCCW:
			axis = axisZ
		}
		if v == ViewRotateXCW || v == ViewRotateYCW || v == ViewRotateZCW {
			step = -step
		}
		p.Rotation = types.QuatFromAxisAngle(axis, step).Mul(p.Rotation).Normalize()
		return p, true
	case ViewPanUp, ViewPanDown, ViewPanLeft, ViewPanRight:
		right := p.Rotation.Rotate(axisX).Mul(p.Distance * panStep)
		up := p.Rotation.Rotate(axisY).Mul(p.Distance * panStep)
		switch v {
		case ViewPanUp:
			p.Target = p.Target.Add(up)
		case ViewPanDown:
			p.Target = p.Target.Sub(up)
		case ViewPanLeft:
			p.Target = p.Target.Sub(right)
		case ViewPanRight:
			p.Target = p.Target.Add(right)
		}
		return p, true
	default:
		return p, false
	}
	return fitted, true
}
