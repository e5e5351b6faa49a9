package postshader

import (
	"github.com/board3d/board3d/types"
)

const (
	// Sampling rings around the shaded pixel; each ring takes 8 samples.
	rounds          = 3
	samplesPerRound = 8

	// Samples further than this (mm) do not occlude.
	maxOcclusionDistance = 2

	shadowGain = 0.6
	aoGain     = 1.0

	// Scale applied to the mean occlusion before it is compressed.
	aoScale = 6

	// Angle threshold (as a dot product) before a sample starts to occlude.
	dotThreshold = 0.15

	// Blur window is [-blurRadius, blurRadius) on both axes.
	blurRadius = 3

	// Higher values keep depth discontinuities sharper.
	blurSharpness = 25
)

var ringDirs = [samplesPerRound][2]int{
	{1, 0}, {-1, 0}, {0, 1}, {0, -1},
	{1, 1}, {-1, -1}, {1, -1}, {-1, 1},
}

// SSAO estimates ambient occlusion and indirect bounce light from the
// shader buffers.
type SSAO struct {
	Shader

	shaded   []types.Vec3
	shadows  bool
	indirect bool
}

// Create a new SSAO shader.
func NewSSAO() *SSAO {
	s := &SSAO{shadows: true, indirect: true}
	s.UpdateSize(1, 1)
	return s
}

// Set the buffer with the output of Shade used by Blur.
func (s *SSAO) SetShadedBuffer(buf []types.Vec3) {
	s.shaded = buf
}

// Enable the shadow factor contribution to the occlusion term.
func (s *SSAO) SetShadowsEnabled(enabled bool) {
	s.shadows = enabled
}

// Enable the indirect bounce light term.
func (s *SSAO) SetIndirectLightEnabled(enabled bool) {
	s.indirect = enabled
}

// Hash a pixel position and round into a value in [0, 1).
func jitter(x, y, round int) float32 {
	h := uint32(x)*73856093 ^ uint32(y)*19349663 ^ uint32(round)*83492791
	h ^= h >> 13
	h *= 0x5bd1e995
	h ^= h >> 15
	return float32(h&0xffffff) / float32(1<<24)
}

// Calculate the AO/GI estimate for a pixel. Positive values darken the
// pixel; negative values add indirect light. Indirect light only replaces
// the occlusion where it is the stronger of the two. Background pixels
// return zero.
func (s *SSAO) Shade(x, y int) types.Vec3 {
	if s.DepthAt(x, y) <= 0 {
		return types.Vec3{}
	}

	n := s.NormalAt(x, y)
	p := s.PositionAt(x, y)
	shadowAtCenter := s.ShadowAt(x, y)

	var ao float32
	var gi types.Vec3
	for round := 0; round < rounds; round++ {
		radius := 2*(round+1) + int(jitter(x, y, round)*2)
		for _, dir := range ringDirs {
			sx, sy := x+dir[0]*radius, y+dir[1]*radius
			if s.DepthAt(sx, sy) <= 0 {
				continue
			}
			diff := s.PositionAt(sx, sy).Sub(p)
			ao += s.aoFalloff(sx, sy, diff, n, s.ShadowAt(sx, sy), shadowAtCenter)
			if s.indirect {
				gi = gi.Add(curveColor(s.ColorAt(sx, sy)).Mul(s.giFalloff(sx, sy, diff, n, s.ShadowAt(sx, sy))))
			}
		}
	}

	const total = rounds * samplesPerRound
	ao /= total
	ao = minf(saturate(ao*aoScale, 5)*1.2, 1)

	gi = gi.Mul(1.0 / total)
	giL := gi.Len() * 4
	if giL > 1 {
		giL = 1
	}
	giL = saturate(giL, 4) * 1.5
	if giL > 1 {
		giL = 1
	}

	if giL <= 0 || gi.Avg() <= ao {
		return types.Splat3(ao)
	}
	return types.Splat3(ao).Lerp(gi.Neg(), giL)
}

// Compress the range of x with 1 - 1/(x^2*k + 1).
func saturate(x, k float32) float32 {
	return 1 - 1/(x*x*k+1)
}

// Brighten a color with 1 - 1/(2c + 1).
func curveColor(c types.Vec3) types.Vec3 {
	return types.Vec3{
		1 - 1/(2*c[0]+1),
		1 - 1/(2*c[1]+1),
		1 - 1/(2*c[2]+1),
	}
}

// Occlusion contributed by the sample at (sx, sy).
func (s *SSAO) aoFalloff(sx, sy int, diff, n types.Vec3, shadowAtSample, shadowAtCenter float32) float32 {
	var sampleShadow, centerShadow float32
	if s.shadows {
		sampleShadow = (1 - shadowAtSample) * shadowGain
		centerShadow = (1 - shadowAtCenter) * shadowGain
	}

	dist := diff.Len()
	if dist >= maxOcclusionDistance || dist < 1e-6 {
		return centerShadow
	}
	v := diff.Mul(1 / dist)
	att := 1 / (dist*dist*8 + 1)

	// Samples on differently oriented surfaces keep the center shadow
	normalFactor := maxf(s.NormalAt(sx, sy).Dot(n), 0)
	normalFactor = maxf(1-normalFactor*normalFactor, 0)
	distFactor := types.Clamp(dist*5-0.25, 0, 1)
	mix := minf(normalFactor+distFactor, 1)
	shadow := sampleShadow + (centerShadow-sampleShadow)*mix

	local := (maxf(n.Dot(v), dotThreshold) - dotThreshold) / (1 - dotThreshold)
	return minf(local*aoGain*att+shadow, 1)
}

// Indirect light contributed by the sample at (sx, sy).
func (s *SSAO) giFalloff(sx, sy int, diff, n types.Vec3, shadowAtSample float32) float32 {
	dist := diff.Len()
	if dist < 1e-6 {
		return 0
	}
	v := diff.Mul(1 / dist)
	att := 1 / (dist*dist + 1)
	facing := types.Clamp(s.NormalAt(sx, sy).Dot(v.Neg()), 0, 1)
	towards := types.Clamp(n.Dot(v), 0, 1)
	return facing * towards * att * (0.03 + shadowAtSample) * 3
}

// Combine a traced color with its shade estimate.
func (s *SSAO) ApplyShadeColor(x, y int, in types.Vec4, shade types.Vec3) types.Vec4 {
	var out types.Vec4
	if shade[0] < 0 || shade[1] < 0 || shade[2] < 0 {
		out = in.Sub(shade.Vec4(0))
	} else {
		out = types.Vec4{
			in[0] * (1 - shade[0]),
			in[1] * (1 - shade[1]),
			in[2] * (1 - shade[2]),
			in[3],
		}
	}

	lum := shade.Avg()
	if lum < 0 {
		lum = -lum
	}
	out[3] = maxf(in[3], lum)
	for i := range out {
		out[i] = types.Clamp(out[i], 0, 1)
	}
	return out
}

// Blur the shaded buffer around a pixel. Neighbours at a different depth
// contribute less so occlusion does not bleed across silhouettes.
func (s *SSAO) Blur(x, y int) types.Vec3 {
	if len(s.shaded) != len(s.depth) {
		return types.Vec3{}
	}

	center := s.DepthAt(x, y)
	var out types.Vec3
	total := float32(1)
	for dy := -blurRadius; dy < blurRadius; dy++ {
		for dx := -blurRadius; dx < blurRadius; dx++ {
			shade := s.shaded[s.index(x+dx, y+dy)]
			if dx == 0 && dy == 0 {
				out = out.Add(shade)
				continue
			}

			var att float32
			if center > 0 {
				att = (center - s.DepthAt(x+dx, y+dy)) / center * blurSharpness
			}
			attSq := att * att
			w := maxf(1/(attSq+1)-0.02*attSq, 0)
			out = out.Add(shade.Mul(w))
			total += w
		}
	}
	return out.Mul(1 / total)
}

// Get a grayscale visualization of the depth buffer.
func (s *SSAO) DebugDepth(x, y int) types.Vec3 {
	return types.Splat3(1 - s.NormalizedDepthAt(x, y))
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
