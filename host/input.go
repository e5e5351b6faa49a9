package host

import (
	"image"
	"strconv"
	"strings"

	"github.com/board3d/board3d/canvas"
	"github.com/go-gl/glfw/v3.3/glfw"
)

// Keys bound to fixed view commands.
var keyViews = map[glfw.Key]string{
	glfw.KeyR:          "r",
	glfw.KeyHome:       "fit",
	glfw.KeyF:          "fit",
	glfw.KeyEqual:      "zoom-in",
	glfw.KeyKPAdd:      "zoom-in",
	glfw.KeyMinus:      "zoom-out",
	glfw.KeyKPSubtract: "zoom-out",
	glfw.Key1:          "front",
	glfw.Key2:          "back",
	glfw.Key3:          "left",
	glfw.Key4:          "right",
	glfw.Key5:          "top",
	glfw.Key6:          "bottom",
	glfw.KeyX:          "rotate-x-cw",
	glfw.KeyY:          "rotate-y-cw",
	glfw.KeyZ:          "rotate-z-cw",
}

// Map a key press to a canvas key command. Shift reverses rotations and turns
// the arrow keys from rotation into panning. Returns an empty string for
// unbound keys.
func keyCommand(key glfw.Key, mods glfw.ModifierKey) string {
	shift := mods&glfw.ModShift == glfw.ModShift

	switch key {
	case glfw.KeyUp:
		if shift {
			return "pan-up"
		}
		return "rotate-x-ccw"
	case glfw.KeyDown:
		if shift {
			return "pan-down"
		}
		return "rotate-x-cw"
	case glfw.KeyLeft:
		if shift {
			return "pan-left"
		}
		return "rotate-z-ccw"
	case glfw.KeyRight:
		if shift {
			return "pan-right"
		}
		return "rotate-z-cw"
	}

	cmd := keyViews[key]
	if shift && strings.HasSuffix(cmd, "-cw") {
		cmd = strings.TrimSuffix(cmd, "-cw") + "-ccw"
	}
	return cmd
}

func mouseButton(b glfw.MouseButton) (canvas.MouseButton, bool) {
	switch b {
	case glfw.MouseButtonLeft:
		return canvas.MouseLeft, true
	case glfw.MouseButtonRight:
		return canvas.MouseRight, true
	case glfw.MouseButtonMiddle:
		return canvas.MouseMiddle, true
	}
	return 0, false
}

// Parse the leading "major.minor" of a GL_VERSION string such as
// "2.1 Mesa 23.0.4" or "4.6.0 NVIDIA 535.54".
func parseGLVersion(version string) (major, minor int, ok bool) {
	fields := strings.Fields(version)
	if len(fields) == 0 {
		return 0, 0, false
	}
	parts := strings.SplitN(fields[0], ".", 3)
	if len(parts) < 2 {
		return 0, 0, false
	}

	var err error
	if major, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, false
	}
	if minor, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, false
	}
	return major, minor, true
}

func atLeast(major, minor, wantMajor, wantMinor int) bool {
	return major > wantMajor || (major == wantMajor && minor >= wantMinor)
}

// Framebuffer blits are core since 3.0 and available on 2.1 contexts through
// the framebuffer object extensions.
func supportsBlit(major, minor int, hasExtension func(string) bool) bool {
	if atLeast(major, minor, 3, 0) {
		return true
	}
	if hasExtension("GL_ARB_framebuffer_object") {
		return true
	}
	return hasExtension("GL_EXT_framebuffer_object") && hasExtension("GL_EXT_framebuffer_blit")
}

// Flip an image vertically in place.
func flipRows(img *image.RGBA) {
	h := img.Rect.Dy()
	stride := img.Stride
	row := make([]byte, stride)
	for y := 0; y < h/2; y++ {
		top := img.Pix[y*stride : (y+1)*stride]
		bottom := img.Pix[(h-1-y)*stride : (h-y)*stride]
		copy(row, top)
		copy(top, bottom)
		copy(bottom, row)
	}
}
