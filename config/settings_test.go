package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseColor(t *testing.T) {
	type spec struct {
		in     string
		exp    Color
		expErr bool
	}
	specs := []spec{
		spec{"#ff0000", Color{1, 0, 0, 1}, false},
		spec{"00ff0080", Color{0, 1, 0, float32(0x80) / 255}, false},
		spec{"#fff", Color{}, true},
		spec{"#gg0000", Color{}, true},
	}

	for index, s := range specs {
		c, err := ParseColor(s.in)
		if s.expErr {
			if !errors.Is(err, ErrInvalidColor) {
				t.Fatalf("[spec %d] expected ErrInvalidColor; got %v", index, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", index, err)
		}
		if c != s.exp {
			t.Fatalf("[spec %d] expected color %v; got %v", index, s.exp, c)
		}
	}
}

func TestParseSettings(t *testing.T) {
	doc := `
render_engine: raytracing
raytracing:
  post_processing: false
  workers: 2
  tiles_per_tick: 4
camera:
  projection: orthographic
  idle_timeout: 1s
colors:
  copper: "#ff8000"
  layers:
    B.Cu: "#0000ff"
`
	s, err := Parse([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}

	if s.RenderEngine != EngineRaytracing {
		t.Fatalf("expected engine %q; got %q", EngineRaytracing, s.RenderEngine)
	}
	if s.Raytracing.PostProcessing {
		t.Fatal("expected post processing to be disabled")
	}
	// Fields missing from the document keep their defaults
	if !s.Raytracing.Shadows || s.Raytracing.RecursionDepth != 3 {
		t.Fatal("expected missing raytracing fields to keep default values")
	}
	if s.Raytracing.WorkerCount() != 2 || s.Raytracing.EffectiveTilesPerTick() != 4 {
		t.Fatalf("expected 2 workers and 4 tiles per tick; got %d and %d", s.Raytracing.WorkerCount(), s.Raytracing.EffectiveTilesPerTick())
	}
	if s.Camera.Projection != ProjectionOrthographic || s.Camera.IdleTimeout != time.Second {
		t.Fatalf("unexpected camera settings: %+v", s.Camera)
	}
	if s.Colors.Copper != (Color{1, float32(0x80) / 255, 0, 1}) {
		t.Fatalf("unexpected copper color %v", s.Colors.Copper)
	}
	if got := s.Colors.Layer("B.Cu", s.Colors.Copper); got != (Color{0, 0, 1, 1}) {
		t.Fatalf("expected layer override; got %v", got)
	}
	if got := s.Colors.Layer("F.Cu", s.Colors.Copper); got != s.Colors.Copper {
		t.Fatalf("expected layer fallback to copper color; got %v", got)
	}
}

func TestValidateSettings(t *testing.T) {
	type spec struct {
		doc string
	}
	specs := []spec{
		spec{"render_engine: vulkan"},
		spec{"camera:\n  projection: fisheye"},
		spec{"camera:\n  fov: 0"},
		spec{"raytracing:\n  shadow_samples: -1"},
		spec{"raytracing:\n  workers: -2"},
		spec{"opengl:\n  grid: dots"},
	}

	for index, s := range specs {
		_, err := Parse([]byte(s.doc))
		if !errors.Is(err, ErrInvalidSettings) {
			t.Fatalf("[spec %d] expected ErrInvalidSettings; got %v", index, err)
		}
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	s := Default()
	s.OpenGL.Grid = GridLines
	s.Colors.BoardBody = Color{0.5, 0, 0, 1}
	data, err := s.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if err = os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.OpenGL.Grid != GridLines {
		t.Fatalf("expected grid %q; got %q", GridLines, loaded.OpenGL.Grid)
	}
	if loaded.Colors.BoardBody.String() != s.Colors.BoardBody.String() {
		t.Fatalf("expected board color %s; got %s", s.Colors.BoardBody, loaded.Colors.BoardBody)
	}
}
