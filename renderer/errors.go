package renderer

import "errors"

var (
	ErrSceneNotDefined       = errors.New("renderer: no scene defined")
	ErrCameraNotDefined      = errors.New("renderer: no camera defined")
	ErrInvalidParameter      = errors.New("renderer: invalid parameter")
	ErrContextLost           = errors.New("renderer: GPU context lost")
	ErrFramebufferIncomplete = errors.New("renderer: framebuffer incomplete")
	ErrUnsupported           = errors.New("renderer: not supported by the GPU context")
)
