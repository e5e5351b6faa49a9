// Package postshader implements the screen space ambient occlusion and
// indirect lighting pass applied to raytraced frames.
package postshader

import (
	"math"
	"sync/atomic"

	"github.com/board3d/board3d/types"
)

// Shader holds the per-pixel buffers filled by the tracer. All buffers are
// indexed by x + y*width.
type Shader struct {
	width, height int

	normals   []types.Vec3
	colors    []types.Vec3
	positions []types.Vec3
	depth     []float32
	shadow    []float32

	// Min/max written depth stored as float32 bits.
	tmin, tmax uint32
}

// Replace all buffers with new ones for the given size.
func (s *Shader) UpdateSize(width, height int) {
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	count := width * height
	s.width, s.height = width, height
	s.normals = make([]types.Vec3, count)
	s.colors = make([]types.Vec3, count)
	s.positions = make([]types.Vec3, count)
	s.depth = make([]float32, count)
	s.shadow = make([]float32, count)
	s.InitFrame()
}

// Get the buffer size.
func (s *Shader) Size() (int, int) {
	return s.width, s.height
}

// Reset the min/max depth tracking for a new frame.
func (s *Shader) InitFrame() {
	atomic.StoreUint32(&s.tmin, math.Float32bits(math.MaxFloat32))
	atomic.StoreUint32(&s.tmax, math.Float32bits(0))
}

// Store the data for a pixel. Pixels are written by a single worker each so
// only the depth range tracking needs to be synchronized.
func (s *Shader) SetPixelData(x, y int, normal, color, hitPos types.Vec3, depth, shadowFactor float32) {
	i := s.index(x, y)
	s.normals[i] = normal
	s.colors[i] = color
	s.positions[i] = hitPos
	s.depth[i] = depth
	s.shadow[i] = shadowFactor

	if depth <= 0 {
		return
	}
	for {
		cur := atomic.LoadUint32(&s.tmin)
		if depth >= math.Float32frombits(cur) || atomic.CompareAndSwapUint32(&s.tmin, cur, math.Float32bits(depth)) {
			break
		}
	}
	for {
		cur := atomic.LoadUint32(&s.tmax)
		if depth <= math.Float32frombits(cur) || atomic.CompareAndSwapUint32(&s.tmax, cur, math.Float32bits(depth)) {
			break
		}
	}
}

// Get the buffer index for a position clamped to the buffer edges.
func (s *Shader) index(x, y int) int {
	if x < 0 {
		x = 0
	} else if x >= s.width {
		x = s.width - 1
	}
	if y < 0 {
		y = 0
	} else if y >= s.height {
		y = s.height - 1
	}
	return x + y*s.width
}

func (s *Shader) NormalAt(x, y int) types.Vec3 {
	return s.normals[s.index(x, y)]
}

func (s *Shader) ColorAt(x, y int) types.Vec3 {
	return s.colors[s.index(x, y)]
}

func (s *Shader) PositionAt(x, y int) types.Vec3 {
	return s.positions[s.index(x, y)]
}

func (s *Shader) DepthAt(x, y int) float32 {
	return s.depth[s.index(x, y)]
}

func (s *Shader) ShadowAt(x, y int) float32 {
	return s.shadow[s.index(x, y)]
}

// Get the minimum depth written since InitFrame.
func (s *Shader) MinDepth() float32 {
	return math.Float32frombits(atomic.LoadUint32(&s.tmin))
}

// Get the maximum depth written since InitFrame.
func (s *Shader) MaxDepth() float32 {
	return math.Float32frombits(atomic.LoadUint32(&s.tmax))
}

// Get the depth at a position normalized to [0, 1] using the frame depth
// range. Background pixels map to 0.
func (s *Shader) NormalizedDepthAt(x, y int) float32 {
	d := s.DepthAt(x, y)
	tmin, tmax := s.MinDepth(), s.MaxDepth()
	if d <= 0 || tmax <= tmin {
		return 0
	}
	return types.Clamp((d-tmin)/(tmax-tmin), 0, 1)
}
