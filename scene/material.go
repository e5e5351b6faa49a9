package scene

import (
	"github.com/board3d/board3d/config"
	"github.com/board3d/board3d/types"
)

// Material describes how a surface responds to light. The diffuse color is
// provided per primitive.
type Material struct {
	Name string

	Ambient   types.Vec3
	Specular  types.Vec3
	Shininess float32

	// Fraction of light reflected as a mirror.
	Reflection float32

	// Fraction of light transmitted through the surface.
	Transparency float32

	// Beer-Lambert absorbance (per mm) applied to transmitted light.
	Absorbance float32

	// Index of refraction.
	IOR float32

	CastShadows bool
}

// Returns true if secondary reflection rays should be cast.
func (m *Material) IsReflective() bool {
	return m.Reflection > 0
}

// Returns true if secondary refraction rays should be cast.
func (m *Material) IsTransparent() bool {
	return m.Transparency > 0
}

// Materials holds the per generation material set.
type Materials struct {
	Body       Material
	SolderMask Material
	Copper     Material
	Silkscreen Material
	Paste      Material
	Plastic    Material
}

// Generate the material set for the given settings.
func NewMaterials(s *config.Settings) *Materials {
	m := &Materials{
		Body: Material{
			Name:         "board body",
			Ambient:      types.Vec3{0.05, 0.05, 0.05},
			Specular:     types.Vec3{0.1, 0.1, 0.1},
			Shininess:    0.1 * 128,
			Transparency: 1 - s.Colors.BoardBody[3],
			Absorbance:   0.8,
			IOR:          1.4,
			CastShadows:  true,
		},
		SolderMask: Material{
			Name:         "solder mask",
			Ambient:      types.Vec3{0.05, 0.05, 0.05},
			Specular:     types.Vec3{0.15, 0.15, 0.15},
			Shininess:    0.85 * 128,
			Reflection:   0.1,
			Transparency: 1 - s.Colors.SolderMask[3],
			Absorbance:   0.9,
			IOR:          1.5,
			CastShadows:  true,
		},
		Copper: Material{
			Name:        "copper",
			Ambient:     types.Vec3{0.18, 0.15, 0.08},
			Specular:    types.Vec3{0.65, 0.6, 0.45},
			Shininess:   0.4 * 128,
			Reflection:  0.1,
			IOR:         1,
			CastShadows: true,
		},
		Silkscreen: Material{
			Name:        "silkscreen",
			Ambient:     types.Vec3{0.1, 0.1, 0.1},
			Specular:    types.Vec3{0.1, 0.1, 0.1},
			Shininess:   0.078 * 128,
			IOR:         1,
			CastShadows: true,
		},
		Paste: Material{
			Name:        "solder paste",
			Ambient:     types.Vec3{0.1, 0.1, 0.1},
			Specular:    types.Vec3{0.4, 0.4, 0.4},
			Shininess:   0.2 * 128,
			IOR:         1,
			CastShadows: true,
		},
		Plastic: Material{
			Name:        "3d model",
			Ambient:     types.Vec3{0.05, 0.05, 0.05},
			Specular:    types.Vec3{0.2, 0.2, 0.2},
			Shininess:   0.3 * 128,
			Reflection:  0.05,
			IOR:         1.4,
			CastShadows: true,
		},
	}

	if !s.Raytracing.Refractions {
		m.Body.Transparency = 0
		m.SolderMask.Transparency = 0
	}
	if !s.Raytracing.Reflections {
		m.SolderMask.Reflection = 0
		m.Copper.Reflection = 0
		m.Plastic.Reflection = 0
	}
	return m
}
