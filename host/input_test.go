package host

import (
	"image"
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func TestKeyCommand(t *testing.T) {
	type spec struct {
		key  glfw.Key
		mods glfw.ModifierKey
		exp  string
	}
	specs := []spec{
		{glfw.KeyR, 0, "r"},
		{glfw.Key5, 0, "top"},
		{glfw.KeyHome, 0, "fit"},
		{glfw.KeyX, 0, "rotate-x-cw"},
		{glfw.KeyX, glfw.ModShift, "rotate-x-ccw"},
		{glfw.KeyZ, glfw.ModShift | glfw.ModControl, "rotate-z-ccw"},
		{glfw.KeyUp, 0, "rotate-x-ccw"},
		{glfw.KeyUp, glfw.ModShift, "pan-up"},
		{glfw.KeyRight, glfw.ModShift, "pan-right"},
		{glfw.KeyMinus, glfw.ModShift, "zoom-out"},
		{glfw.KeyQ, 0, ""},
	}

	for index, s := range specs {
		if got := keyCommand(s.key, s.mods); got != s.exp {
			t.Fatalf("[spec %d] expected command %q; got %q", index, s.exp, got)
		}
	}
}

func TestParseGLVersion(t *testing.T) {
	type spec struct {
		in           string
		major, minor int
		ok           bool
	}
	specs := []spec{
		{"2.1 Mesa 23.0.4", 2, 1, true},
		{"4.6.0 NVIDIA 535.54.03", 4, 6, true},
		{"3.0", 3, 0, true},
		{"", 0, 0, false},
		{"OpenGL", 0, 0, false},
		{"x.1", 0, 0, false},
	}

	for index, s := range specs {
		major, minor, ok := parseGLVersion(s.in)
		if ok != s.ok || major != s.major || minor != s.minor {
			t.Fatalf("[spec %d] expected (%d, %d, %t); got (%d, %d, %t)", index, s.major, s.minor, s.ok, major, minor, ok)
		}
	}
}

func TestSupportsBlit(t *testing.T) {
	none := func(string) bool { return false }
	ext := func(names ...string) func(string) bool {
		return func(name string) bool {
			for _, n := range names {
				if n == name {
					return true
				}
			}
			return false
		}
	}

	if !supportsBlit(3, 0, none) {
		t.Fatal("expected GL 3.0 to support framebuffer blits")
	}
	if supportsBlit(2, 1, none) {
		t.Fatal("expected plain GL 2.1 not to support framebuffer blits")
	}
	if !supportsBlit(2, 1, ext("GL_ARB_framebuffer_object")) {
		t.Fatal("expected ARB framebuffer objects to support blits")
	}
	if supportsBlit(2, 1, ext("GL_EXT_framebuffer_object")) {
		t.Fatal("expected EXT framebuffer objects without the blit extension to be rejected")
	}
	if !supportsBlit(2, 1, ext("GL_EXT_framebuffer_object", "GL_EXT_framebuffer_blit")) {
		t.Fatal("expected EXT framebuffer objects with the blit extension to be accepted")
	}
}

func TestFlipRows(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 3))
	for y := 0; y < 3; y++ {
		img.Pix[y*img.Stride] = uint8(y + 1)
	}

	flipRows(img)
	for y, exp := range []uint8{3, 2, 1} {
		if got := img.Pix[y*img.Stride]; got != exp {
			t.Fatalf("expected row %d to start with %d; got %d", y, exp, got)
		}
	}
}
