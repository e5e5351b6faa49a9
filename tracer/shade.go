package tracer

import (
	"math"
	"math/rand"

	"github.com/board3d/board3d/accel"
	"github.com/board3d/board3d/scene"
	"github.com/board3d/board3d/types"
)

const (
	// Offset applied to secondary ray origins.
	rayOffset float32 = 1e-3

	// Spread (radians) of jittered reflection samples.
	reflectionSpread float32 = 0.03
)

var headlightColor = types.Vec3{0.55, 0.55, 0.55}

// A directional light in the form used while shading.
type light struct {
	// Unit vector pointing towards the light.
	toLight     types.Vec3
	color       types.Vec3
	castShadows bool
}

// Convert the configured lights.
func (t *Tracer) setupLights() []light {
	lights := make([]light, 0, len(t.settings.Raytracing.Lights))
	for _, l := range t.settings.Raytracing.Lights {
		dir := l.Direction.Normalize()
		if dir.LenSqr() == 0 {
			continue
		}
		lights = append(lights, light{
			toLight:     dir.Neg(),
			color:       l.Color.RGB(),
			castShadows: l.CastShadows,
		})
	}
	return lights
}

// Per tile random source for the sampling jitter.
type sampler struct {
	rng *rand.Rand
}

func newSampler(seed int64, stream int) *sampler {
	return &sampler{rng: rand.New(rand.NewSource(seed*7919 + int64(stream)))}
}

// Get a random vector in the [-1, 1] cube.
func (s *sampler) vec3() types.Vec3 {
	return types.Vec3{
		s.rng.Float32()*2 - 1,
		s.rng.Float32()*2 - 1,
		s.rng.Float32()*2 - 1,
	}
}

// Perturb a unit direction by up to spread radians.
func (s *sampler) jitter(dir types.Vec3, spread float32) types.Vec3 {
	return dir.Add(s.vec3().Mul(spread)).Normalize()
}

// The outcome of shading a hit.
type shadeResult struct {
	color types.Vec3

	// Surface color and normal facing the viewer; fed to the post-shader.
	diffuse types.Vec3
	normal  types.Vec3

	// 1 if the point is fully lit, 0 if fully in shadow.
	shadow float32
}

// Shade a hit. Every level of secondary rays consumes one unit of budget; a
// zero budget returns the local shading contribution only.
func (t *Tracer) shadeHit(bg types.Vec3, ray *types.Ray, hit *accel.HitInfo, budget int, s *sampler) shadeResult {
	prim, ok := hit.Prim.(scene.Primitive)
	if !ok {
		return shadeResult{color: bg, shadow: 1}
	}
	mat := prim.Material()
	diffuse := prim.Color(hit.Point)

	n := hit.Normal
	if n.Dot(ray.Dir) > 0 {
		n = n.Neg()
	}
	toEye := ray.Dir.Neg()
	rt := &t.settings.Raytracing

	out := mat.Ambient.Add(diffuse.Mul(0.1))

	// The headlight follows the camera and never casts shadows.
	out = out.Add(blinnPhong(mat, diffuse, n, toEye, toEye, headlightColor))

	shadowSum, shadowCount := float32(0), 0
	for _, l := range t.lights {
		if n.Dot(l.toLight) <= 0 {
			continue
		}
		visibility := float32(1)
		if l.castShadows && rt.Shadows && budget > 0 {
			visibility = t.visibility(hit.Point.Add(n.Mul(rayOffset)), l.toLight, s)
			shadowSum += visibility
			shadowCount++
		}
		out = out.Add(blinnPhong(mat, diffuse, n, toEye, l.toLight, l.color).Mul(visibility))
	}

	res := shadeResult{diffuse: diffuse, normal: n, shadow: 1}
	if shadowCount > 0 {
		res.shadow = shadowSum / float32(shadowCount)
	}

	if budget > 0 && rt.Reflections && mat.IsReflective() {
		reflected := t.reflect(bg, ray, hit.Point, n, budget-1, s)
		out = out.Lerp(reflected, mat.Reflection)
	}
	if budget > 0 && rt.Refractions && mat.IsTransparent() {
		transmitted := t.refract(bg, ray, hit, n, budget-1, s).MulVec(diffuse)
		out = out.Lerp(transmitted, mat.Transparency)
	}

	res.color = out
	return res
}

// Diffuse and specular contribution of a single light.
func blinnPhong(mat *scene.Material, diffuse, n, toEye, toLight, lightColor types.Vec3) types.Vec3 {
	nDotL := n.Dot(toLight)
	if nDotL <= 0 {
		return types.Vec3{}
	}
	out := diffuse.MulVec(lightColor).Mul(nDotL)

	h := toLight.Add(toEye).Normalize()
	if nDotH := n.Dot(h); nDotH > 0 {
		spec := float32(math.Pow(float64(nDotH), float64(mat.Shininess)))
		out = out.Add(mat.Specular.MulVec(lightColor).Mul(spec))
	}
	return out
}

// Get the fraction of unoccluded shadow rays from origin towards a light.
func (t *Tracer) visibility(origin, toLight types.Vec3, s *sampler) float32 {
	samples := t.settings.Raytracing.ShadowSamples
	if samples < 1 {
		samples = 1
	}

	lit := 0
	for i := 0; i < samples; i++ {
		dir := toLight
		if i > 0 {
			dir = s.jitter(toLight, t.settings.Raytracing.ShadowSpread)
		}
		shadowRay := types.NewRay(origin, dir)
		t.shadowRays.Add(1)
		if !t.scene.Accelerator.IntersectP(&shadowRay, math.MaxFloat32) {
			lit++
		}
	}
	return float32(lit) / float32(samples)
}

// Average the color seen along the mirror direction.
func (t *Tracer) reflect(bg types.Vec3, ray *types.Ray, point, n types.Vec3, budget int, s *sampler) types.Vec3 {
	samples := t.settings.Raytracing.ReflectionSamples
	if samples < 1 {
		samples = 1
	}

	mirror := ray.Dir.Reflect(n).Normalize()
	origin := point.Add(n.Mul(rayOffset))
	var sum types.Vec3
	for i := 0; i < samples; i++ {
		dir := mirror
		if i > 0 {
			dir = s.jitter(mirror, reflectionSpread)
		}
		sum = sum.Add(t.traceSecondary(bg, types.NewRay(origin, dir), budget, s))
	}
	return sum.Mul(1 / float32(samples))
}

// Get the light transmitted through a transparent primitive. The exit point
// is located by querying the accelerator node holding the primitive, and the
// light is attenuated along the traveled distance.
func (t *Tracer) refract(bg types.Vec3, ray *types.Ray, hit *accel.HitInfo, n types.Vec3, budget int, s *sampler) types.Vec3 {
	prim := hit.Prim.(scene.Primitive)
	mat := prim.Material()

	ior := mat.IOR
	if ior <= 0 {
		ior = 1
	}
	eta := 1 / ior
	if hit.Inside {
		eta = ior
	}
	inDir, ok := ray.Dir.Refract(n, eta)
	if !ok {
		return t.reflect(bg, ray, hit.Point, n, budget, s)
	}

	inside := types.NewRay(hit.Point.Sub(n.Mul(rayOffset)), inDir)
	exitPoint := inside.Origin
	traveled := float32(0)

	exit := accel.NewHitInfo()
	if !hit.Inside && t.scene.Accelerator.IntersectNode(&inside, &exit, hit.AccNodeInfo) && exit.Prim == hit.Prim {
		exitPoint = exit.Point
		traveled = exit.T
	}

	samples := t.settings.Raytracing.RefractionSamples
	if samples < 1 {
		samples = 1
	}
	origin := exitPoint.Add(ray.Dir.Mul(rayOffset))
	var sum types.Vec3
	for i := 0; i < samples; i++ {
		dir := ray.Dir
		if i > 0 {
			dir = s.jitter(ray.Dir, reflectionSpread)
		}
		sum = sum.Add(t.traceSecondary(bg, types.NewRay(origin, dir), budget, s))
	}
	absorbance := float32(math.Exp(float64(-mat.Absorbance * traveled)))
	return sum.Mul(absorbance / float32(samples))
}

func (t *Tracer) traceSecondary(bg types.Vec3, ray types.Ray, budget int, s *sampler) types.Vec3 {
	t.secondaryRays.Add(1)
	hit := accel.NewHitInfo()
	if !t.scene.Accelerator.Intersect(&ray, &hit) {
		return bg
	}
	return t.shadeHit(bg, &ray, &hit, budget, s).color
}
