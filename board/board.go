// Package board defines the board geometry consumed by the 3D viewer.
//
// All distances are expressed in millimetres. The board lies on the XY plane
// with Z pointing up; the front copper layer faces +Z.
package board

import (
	"errors"
	"fmt"
	"os"

	"github.com/board3d/board3d/types"
	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidBoard = errors.New("board: invalid board")
)

// Board layer names.
type Layer string

const (
	FrontCopper Layer = "F.Cu"
	BackCopper  Layer = "B.Cu"
	FrontSilk   Layer = "F.SilkS"
	BackSilk    Layer = "B.SilkS"
	FrontPaste  Layer = "F.Paste"
	BackPaste   Layer = "B.Paste"
)

// Returns true if this is a copper layer.
func (l Layer) IsCopper() bool {
	return l == FrontCopper || l == BackCopper
}

// Returns true if this is a silkscreen layer.
func (l Layer) IsSilk() bool {
	return l == FrontSilk || l == BackSilk
}

// Returns true if the layer is on the back side of the board.
func (l Layer) IsBack() bool {
	return l == BackCopper || l == BackSilk || l == BackPaste
}

// The side a footprint is mounted on.
type Side string

const (
	Front Side = "front"
	Back  Side = "back"
)

// The kind of a board item.
type ItemKind uint8

const (
	KindNone ItemKind = iota
	KindBody
	KindTrack
	KindPad
	KindVia
	KindHole
	KindZone
	KindSilkscreen
	KindModel
)

func (k ItemKind) String() string {
	switch k {
	case KindBody:
		return "body"
	case KindTrack:
		return "track"
	case KindPad:
		return "pad"
	case KindVia:
		return "via"
	case KindHole:
		return "hole"
	case KindZone:
		return "zone"
	case KindSilkscreen:
		return "silkscreen"
	case KindModel:
		return "model"
	}
	return "none"
}

// A back-reference from a primitive to the board item it was generated from.
// Reference holds the designator of the owning footprint (if any).
type Item struct {
	Kind      ItemKind
	Reference string
}

// A straight copper or silkscreen segment with round ends.
type Track struct {
	Start types.Vec2 `yaml:"start,flow"`
	End   types.Vec2 `yaml:"end,flow"`
	Width float32    `yaml:"width"`
	Layer Layer      `yaml:"layer"`
	Net   string     `yaml:"net,omitempty"`

	// Reference of the footprint owning a silkscreen drawing.
	Reference string `yaml:"reference,omitempty"`
}

// Pad shapes.
type PadShape string

const (
	PadCircle PadShape = "circle"
	PadRect   PadShape = "rect"
	PadOval   PadShape = "oval"
)

// A footprint pad. Pads without a drill are surface mounted on Layer.
type Pad struct {
	Reference string     `yaml:"reference"`
	Number    string     `yaml:"number,omitempty"`
	Position  types.Vec2 `yaml:"position,flow"`
	Size      types.Vec2 `yaml:"size,flow"`
	Rotation  float32    `yaml:"rotation,omitempty"`
	Shape     PadShape   `yaml:"shape"`
	Drill     float32    `yaml:"drill,omitempty"`
	Layer     Layer      `yaml:"layer,omitempty"`
}

// Returns true if the pad is plated through the board.
func (p *Pad) IsThrough() bool {
	return p.Drill > 0
}

// A plated via.
type Via struct {
	Position types.Vec2 `yaml:"position,flow"`
	Diameter float32    `yaml:"diameter"`
	Drill    float32    `yaml:"drill"`
	Net      string     `yaml:"net,omitempty"`
}

// A non-plated mounting hole.
type Hole struct {
	Position types.Vec2 `yaml:"position,flow"`
	Diameter float32    `yaml:"diameter"`
}

// A filled copper zone.
type Zone struct {
	Layer   Layer        `yaml:"layer"`
	Outline []types.Vec2 `yaml:"outline,flow"`
	Net     string       `yaml:"net,omitempty"`
}

// A 3D model attached to a footprint.
type ModelRef struct {
	Path string `yaml:"path"`

	// Offset (mm), per axis scale and rotation (degrees) applied before the
	// footprint placement.
	Offset   types.Vec3 `yaml:"offset,flow"`
	Scale    types.Vec3 `yaml:"scale,flow"`
	Rotation types.Vec3 `yaml:"rotation,flow"`
}

// A placed footprint.
type Footprint struct {
	Reference string     `yaml:"reference"`
	Position  types.Vec2 `yaml:"position,flow"`
	Rotation  float32    `yaml:"rotation,omitempty"`
	Side      Side       `yaml:"side,omitempty"`
	Models    []ModelRef `yaml:"models,omitempty"`
}

// Provider exposes the board geometry. Implementations must be safe to read
// from the goroutine that rebuilds the scene.
type Provider interface {
	Outline() []types.Vec2
	Thickness() float32
	CopperThickness() float32
	Tracks() []Track
	Pads() []Pad
	Vias() []Via
	Holes() []Hole
	Zones() []Zone
	Footprints() []Footprint
}

// The serialized board description.
type Layout struct {
	Name            string       `yaml:"name,omitempty"`
	Thickness       float32      `yaml:"thickness"`
	CopperThickness float32      `yaml:"copper_thickness"`
	Outline         []types.Vec2 `yaml:"outline,flow"`
	Tracks          []Track      `yaml:"tracks,omitempty"`
	Pads            []Pad        `yaml:"pads,omitempty"`
	Vias            []Via        `yaml:"vias,omitempty"`
	Holes           []Hole       `yaml:"holes,omitempty"`
	Zones           []Zone       `yaml:"zones,omitempty"`
	Footprints      []Footprint  `yaml:"footprints,omitempty"`
}

// Board is a Provider backed by an in-memory layout.
type Board struct {
	layout Layout

	// The file the board was loaded from (if any).
	path string
}

// Create a board from a layout. Missing thickness values are replaced with
// the usual 1.6mm FR4 / 35um copper defaults.
func New(l Layout) *Board {
	if l.Thickness <= 0 {
		l.Thickness = 1.6
	}
	if l.CopperThickness <= 0 {
		l.CopperThickness = 0.035
	}
	for i := range l.Footprints {
		if l.Footprints[i].Side == "" {
			l.Footprints[i].Side = Front
		}
		for j := range l.Footprints[i].Models {
			if l.Footprints[i].Models[j].Scale == (types.Vec3{}) {
				l.Footprints[i].Models[j].Scale = types.Vec3{1, 1, 1}
			}
		}
	}
	for i := range l.Pads {
		if l.Pads[i].Layer == "" {
			l.Pads[i].Layer = FrontCopper
		}
	}
	return &Board{layout: l}
}

// Load a board description from a YAML file.
func Load(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	b.path = path
	return b, nil
}

// Parse a YAML board description.
func Parse(data []byte) (*Board, error) {
	var l Layout
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBoard, err)
	}
	b := New(l)
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate the board contents.
func (b *Board) Validate() error {
	l := &b.layout
	for i, t := range l.Tracks {
		if !t.Layer.IsCopper() && !t.Layer.IsSilk() {
			return fmt.Errorf("%w: track %d on unsupported layer %q", ErrInvalidBoard, i, t.Layer)
		}
		if t.Width < 0 {
			return fmt.Errorf("%w: track %d has negative width", ErrInvalidBoard, i)
		}
	}
	for i, p := range l.Pads {
		switch p.Shape {
		case PadCircle, PadRect, PadOval:
		default:
			return fmt.Errorf("%w: pad %d has unsupported shape %q", ErrInvalidBoard, i, p.Shape)
		}
		if !p.Layer.IsCopper() {
			return fmt.Errorf("%w: pad %d on non-copper layer %q", ErrInvalidBoard, i, p.Layer)
		}
	}
	for i, v := range l.Vias {
		if v.Drill >= v.Diameter && v.Diameter > 0 {
			return fmt.Errorf("%w: via %d drill exceeds its diameter", ErrInvalidBoard, i)
		}
	}
	for i, z := range l.Zones {
		if !z.Layer.IsCopper() {
			return fmt.Errorf("%w: zone %d on non-copper layer %q", ErrInvalidBoard, i, z.Layer)
		}
	}
	for i, f := range l.Footprints {
		if f.Side != Front && f.Side != Back {
			return fmt.Errorf("%w: footprint %d has invalid side %q", ErrInvalidBoard, i, f.Side)
		}
	}
	return nil
}

// Get the file path the board was loaded from.
func (b *Board) Path() string {
	return b.path
}

// Get the board name.
func (b *Board) Name() string {
	return b.layout.Name
}

// Get a copy of the underlying layout.
func (b *Board) Layout() Layout {
	return b.layout
}

func (b *Board) Outline() []types.Vec2    { return b.layout.Outline }
func (b *Board) Thickness() float32       { return b.layout.Thickness }
func (b *Board) CopperThickness() float32 { return b.layout.CopperThickness }
func (b *Board) Tracks() []Track          { return b.layout.Tracks }
func (b *Board) Pads() []Pad              { return b.layout.Pads }
func (b *Board) Vias() []Via              { return b.layout.Vias }
func (b *Board) Holes() []Hole            { return b.layout.Holes }
func (b *Board) Zones() []Zone            { return b.layout.Zones }
func (b *Board) Footprints() []Footprint  { return b.layout.Footprints }

// Find the footprint with the given reference designator.
func (b *Board) Footprint(reference string) (*Footprint, bool) {
	for i := range b.layout.Footprints {
		if b.layout.Footprints[i].Reference == reference {
			return &b.layout.Footprints[i], true
		}
	}
	return nil, false
}
