// Package config holds the flat set of render toggles consumed (read-only,
// once per frame) by the renderers and the canvas.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/board3d/board3d/types"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidColor    = errors.New("config: invalid color")
	ErrInvalidSettings = errors.New("config: invalid settings")
)

// The preferred render engine.
type RenderEngine string

const (
	EngineOpenGL     RenderEngine = "opengl"
	EngineRaytracing RenderEngine = "raytracing"
)

// Grid type drawn by the rasterizer.
type GridType string

const (
	GridNone   GridType = "none"
	GridLines  GridType = "lines"
	GridPoints GridType = "points"
)

// Camera projection type.
type Projection string

const (
	ProjectionPerspective  Projection = "perspective"
	ProjectionOrthographic Projection = "orthographic"
)

// Camera animation interpolation curve.
type Interpolation string

const (
	InterpolateLinear    Interpolation = "linear"
	InterpolateEaseInOut Interpolation = "easing"
	InterpolateBezier    Interpolation = "bezier"
)

// A color stored as a "#rrggbb" or "#rrggbbaa" hex string in YAML documents.
type Color types.Vec4

// Parse a hex color string.
func ParseColor(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 && len(s) != 8 {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	if len(s) == 6 {
		s += "ff"
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("%w: %q", ErrInvalidColor, s)
	}
	return Color{
		float32((v>>24)&0xff) / 255.0,
		float32((v>>16)&0xff) / 255.0,
		float32((v>>8)&0xff) / 255.0,
		float32(v&0xff) / 255.0,
	}, nil
}

func MustParseColor(s string) Color {
	c, err := ParseColor(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Get the RGB components.
func (c Color) RGB() types.Vec3 {
	return types.Vec3{c[0], c[1], c[2]}
}

// Get the color as a Vec4.
func (c Color) Vec4() types.Vec4 {
	return types.Vec4(c)
}

// Format as a hex string.
func (c Color) String() string {
	b := func(v float32) uint8 { return uint8(types.Clamp(v, 0, 1)*255 + 0.5) }
	return fmt.Sprintf("#%02x%02x%02x%02x", b(c[0]), b(c[1]), b(c[2]), b(c[3]))
}

func (c Color) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

func (c *Color) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseColor(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Colors used for the special material categories.
type Colors struct {
	BackgroundTop    Color `yaml:"background_top"`
	BackgroundBottom Color `yaml:"background_bottom"`
	BoardBody        Color `yaml:"board_body"`
	SolderMask       Color `yaml:"solder_mask"`
	Silkscreen       Color `yaml:"silkscreen"`
	Copper           Color `yaml:"copper"`
	SolderPaste      Color `yaml:"solder_paste"`

	// Per layer overrides keyed by layer name (e.g. "F.Cu").
	Layers map[string]Color `yaml:"layers,omitempty"`
}

// Get the color for a layer name falling back to def.
func (c *Colors) Layer(name string, def Color) Color {
	if col, ok := c.Layers[name]; ok {
		return col
	}
	return def
}

// A directional light.
type Light struct {
	// Direction the light travels in (world space).
	Direction   types.Vec3 `yaml:"direction,flow"`
	Color       Color      `yaml:"color"`
	CastShadows bool       `yaml:"cast_shadows"`
}

// Raytracing specific settings.
type Raytracing struct {
	PostProcessing    bool `yaml:"post_processing"`
	Shadows           bool `yaml:"shadows"`
	Reflections       bool `yaml:"reflections"`
	Refractions       bool `yaml:"refractions"`
	AntiAliasing      bool `yaml:"anti_aliasing"`
	IndirectLight     bool `yaml:"indirect_light"`
	ShadowSamples     int  `yaml:"shadow_samples"`
	ReflectionSamples int  `yaml:"reflection_samples"`
	RefractionSamples int  `yaml:"refraction_samples"`
	RecursionDepth    int  `yaml:"recursion_depth"`

	// Spread (radians) of jittered shadow rays.
	ShadowSpread float32 `yaml:"shadow_spread"`

	// Worker pool size and number of tiles traced per tick. Zero values
	// select the number of available CPUs.
	Workers      int `yaml:"workers"`
	TilesPerTick int `yaml:"tiles_per_tick"`

	// Additional lights; a headlight attached to the camera is always present.
	Lights []Light `yaml:"lights"`
}

// OpenGL rasterizer specific settings.
type OpenGL struct {
	AntiAliasing    bool     `yaml:"anti_aliasing"`
	Grid            GridType `yaml:"grid"`
	GridSize        float32  `yaml:"grid_size"`
	ShowModels      bool     `yaml:"show_models"`
	TransparentMask bool     `yaml:"transparent_mask"`
}

// Features that can be disabled while the view is moving.
type WhileMoving struct {
	DisableAntiAliasing bool `yaml:"disable_anti_aliasing"`
	DisableModels       bool `yaml:"disable_models"`
	DisableGrid         bool `yaml:"disable_grid"`
	DisableTransparency bool `yaml:"disable_transparency"`
}

// Camera settings.
type Camera struct {
	Projection    Projection    `yaml:"projection"`
	FOV           float32       `yaml:"fov"`
	Animate       bool          `yaml:"animate"`
	Interpolation Interpolation `yaml:"interpolation"`

	// Multiplier applied to the elapsed animation time.
	MovingSpeedMultiplier float32 `yaml:"moving_speed_multiplier"`

	// Rotation step (degrees) for the rotate view commands.
	RotationIncrement float32 `yaml:"rotation_increment"`

	// Idle delay after which a view stops being treated as moving.
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// The settings consumed by the 3D viewer core.
type Settings struct {
	RenderEngine RenderEngine `yaml:"render_engine"`
	LogLevel     string       `yaml:"log_level"`

	Raytracing  Raytracing  `yaml:"raytracing"`
	OpenGL      OpenGL      `yaml:"opengl"`
	WhileMoving WhileMoving `yaml:"while_moving"`
	Camera      Camera      `yaml:"camera"`
	Colors      Colors      `yaml:"colors"`

	// Show the silkscreen, solder mask, paste and 3D model layers.
	ShowSilkscreen  bool `yaml:"show_silkscreen"`
	ShowSolderMask  bool `yaml:"show_solder_mask"`
	ShowSolderPaste bool `yaml:"show_solder_paste"`
	ShowModels      bool `yaml:"show_models"`
}

// Get the default settings.
func Default() *Settings {
	return &Settings{
		RenderEngine: EngineOpenGL,
		LogLevel:     "notice",
		Raytracing: Raytracing{
			PostProcessing:    true,
			Shadows:           true,
			Reflections:       true,
			Refractions:       true,
			AntiAliasing:      true,
			IndirectLight:     true,
			ShadowSamples:     3,
			ReflectionSamples: 1,
			RefractionSamples: 1,
			RecursionDepth:    3,
			ShadowSpread:      0.05,
			Lights: []Light{
				{Direction: types.Vec3{0, 0, -1}, Color: MustParseColor("#404040"), CastShadows: true},
				{Direction: types.Vec3{0, 0, 1}, Color: MustParseColor("#404040"), CastShadows: true},
			},
		},
		OpenGL: OpenGL{
			AntiAliasing:    true,
			Grid:            GridNone,
			GridSize:        10,
			ShowModels:      true,
			TransparentMask: true,
		},
		WhileMoving: WhileMoving{
			DisableAntiAliasing: true,
		},
		Camera: Camera{
			Projection:            ProjectionPerspective,
			FOV:                   45,
			Animate:               true,
			Interpolation:         InterpolateBezier,
			MovingSpeedMultiplier: 3,
			RotationIncrement:     10,
			IdleTimeout:           300 * time.Millisecond,
		},
		Colors: Colors{
			BackgroundTop:    MustParseColor("#ccccd9"),
			BackgroundBottom: MustParseColor("#666680"),
			BoardBody:        MustParseColor("#51442ee6"),
			SolderMask:       MustParseColor("#145214d4"),
			Silkscreen:       MustParseColor("#f2f2f2"),
			Copper:           MustParseColor("#b89c51"),
			SolderPaste:      MustParseColor("#808080"),
		},
		ShowSilkscreen:  true,
		ShowSolderMask:  true,
		ShowSolderPaste: false,
		ShowModels:      true,
	}
}

// Load settings from a YAML file. Missing fields keep their default values.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse settings from a YAML document.
func Parse(data []byte) (*Settings, error) {
	s := Default()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("config: could not parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Serialize settings to YAML.
func (s *Settings) Marshal() ([]byte, error) {
	return yaml.Marshal(s)
}

// Validate settings.
func (s *Settings) Validate() error {
	switch s.RenderEngine {
	case EngineOpenGL, EngineRaytracing:
	default:
		return fmt.Errorf("%w: unknown render engine %q", ErrInvalidSettings, s.RenderEngine)
	}
	switch s.Camera.Projection {
	case ProjectionPerspective, ProjectionOrthographic:
	default:
		return fmt.Errorf("%w: unknown projection %q", ErrInvalidSettings, s.Camera.Projection)
	}
	switch s.Camera.Interpolation {
	case InterpolateLinear, InterpolateEaseInOut, InterpolateBezier:
	default:
		return fmt.Errorf("%w: unknown interpolation %q", ErrInvalidSettings, s.Camera.Interpolation)
	}
	switch s.OpenGL.Grid {
	case GridNone, GridLines, GridPoints:
	default:
		return fmt.Errorf("%w: unknown grid type %q", ErrInvalidSettings, s.OpenGL.Grid)
	}

	rt := &s.Raytracing
	if rt.ShadowSamples < 0 || rt.ReflectionSamples < 0 || rt.RefractionSamples < 0 {
		return fmt.Errorf("%w: sample counts must not be negative", ErrInvalidSettings)
	}
	if rt.RecursionDepth < 0 {
		return fmt.Errorf("%w: recursion depth must not be negative", ErrInvalidSettings)
	}
	if rt.Workers < 0 || rt.TilesPerTick < 0 {
		return fmt.Errorf("%w: worker and tile counts must not be negative", ErrInvalidSettings)
	}
	if s.Camera.FOV <= 0 || s.Camera.FOV >= 180 {
		return fmt.Errorf("%w: camera fov must be in (0, 180)", ErrInvalidSettings)
	}
	if s.Camera.MovingSpeedMultiplier <= 0 {
		return fmt.Errorf("%w: moving speed multiplier must be positive", ErrInvalidSettings)
	}
	return nil
}

// Get the effective worker count.
func (rt *Raytracing) WorkerCount() int {
	if rt.Workers > 0 {
		return rt.Workers
	}
	return runtime.NumCPU()
}

// Get the effective tiles per tick.
func (rt *Raytracing) EffectiveTilesPerTick() int {
	if rt.TilesPerTick > 0 {
		return rt.TilesPerTick
	}
	return rt.WorkerCount()
}
