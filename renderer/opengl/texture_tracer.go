package opengl

import (
	"fmt"

	"github.com/board3d/board3d/renderer"
	"github.com/board3d/board3d/tracer"
	"github.com/go-gl/gl/v2.1/gl"
)

// TextureTracer presents the frames of a CPU tracer. After every tick the
// frame is copied into a texture attached to a read framebuffer which is then
// blitted to the default framebuffer.
type TextureTracer struct {
	*tracer.Tracer

	texture uint32
	texFbo  uint32
	texW    int
	texH    int
}

// Wrap a tracer. It must only be used while a GL context is current.
func NewTextureTracer(tr *tracer.Tracer) *TextureTracer {
	return &TextureTracer{Tracer: tr}
}

// Run a tracer tick and present the frame.
func (r *TextureTracer) Redraw(isMoving bool, status, warn renderer.Reporter) (bool, error) {
	more, err := r.Tracer.Redraw(isMoving, status, warn)
	if err != nil {
		return false, err
	}

	frame := r.Frame()
	if frame == nil {
		return more, nil
	}
	w, h := frame.Rect.Dx(), frame.Rect.Dy()
	if w == 0 || h == 0 {
		return more, nil
	}

	if err = r.ensureTexture(w, h); err != nil {
		return false, err
	}

	gl.BindTexture(gl.TEXTURE_2D, r.texture)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(frame.Pix))
	gl.BindTexture(gl.TEXTURE_2D, 0)

	// Copy texture data to the framebuffer flipping it vertically as the
	// frame rows are stored top to bottom.
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, r.texFbo)
	gl.BlitFramebuffer(0, 0, int32(w), int32(h), 0, int32(h), int32(w), 0, gl.COLOR_BUFFER_BIT, gl.NEAREST)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)

	if code := gl.GetError(); code != gl.NO_ERROR {
		return false, fmt.Errorf("%w: gl error 0x%x", renderer.ErrContextLost, code)
	}
	return more, nil
}

// Setup the texture for image data and attach it to the FBO.
func (r *TextureTracer) ensureTexture(w, h int) error {
	if r.texture != 0 && w == r.texW && h == r.texH {
		return nil
	}
	r.release()

	gl.GenTextures(1, &r.texture)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, r.texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(w), int32(h), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	gl.GenFramebuffers(1, &r.texFbo)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, r.texFbo)
	gl.FramebufferTexture2D(gl.READ_FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, r.texture, 0)
	status := gl.CheckFramebufferStatus(gl.READ_FRAMEBUFFER)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)

	if status != gl.FRAMEBUFFER_COMPLETE {
		r.release()
		return fmt.Errorf("%w: status 0x%x", renderer.ErrFramebufferIncomplete, status)
	}
	r.texW, r.texH = w, h
	return nil
}

func (r *TextureTracer) release() {
	if r.texFbo != 0 {
		gl.DeleteFramebuffers(1, &r.texFbo)
		r.texFbo = 0
	}
	if r.texture != 0 {
		gl.DeleteTextures(1, &r.texture)
		r.texture = 0
	}
	r.texW, r.texH = 0, 0
}

// Release the texture and the tracer buffers.
func (r *TextureTracer) Close() {
	r.release()
	r.Tracer.Close()
}
