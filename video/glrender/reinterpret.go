package glrender

import (
	"encoding/binary"

	"github.com/go-gl/gl/v3.3-core/gl"

	"glint/video"
)

// d24s8Reinterpreter re-reads a depth stencil surface as RGBA8 color. The
// 3.3 context has no stencil texturing, so the texels take a round trip
// through the staging buffer: read back as packed 24.8, re-upload the same
// bit pattern as color bytes.
type d24s8Reinterpreter struct {
	rt *Runtime
}

func (r *d24s8Reinterpreter) SourceFormat() video.PixelFormat {
	return video.PixelD24S8
}

func (r *d24s8Reinterpreter) Reinterpret(src *video.Surface, srcRect video.Rect, dst *video.Surface, dstRect video.Rect) {
	srcTex, dstTex := texture(src), texture(dst)
	if srcTex == nil || dstTex == nil {
		return
	}
	rt := r.rt

	w, h := srcRect.Width(), srcRect.Height()
	staging := rt.FindStaging(w*h*4, false)

	attach(rt.readFBOs[fboDepthStencil], gl.READ_FRAMEBUFFER, video.SurfaceDepthStencil, srcTex.Handle, 0)
	gl.ReadPixels(int32(srcRect.Left), int32(srcRect.Bottom), int32(w), int32(h),
		gl.DEPTH_STENCIL, gl.UNSIGNED_INT_24_8, gl.Ptr(&staging.Mapped[0]))
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)

	// Packed 24.8 reads back as stencil-in-low-byte, the guest layout wants
	// the same u32 little-endian as RGBA8 bytes.
	for i := uint32(0); i < w*h; i++ {
		v := binary.LittleEndian.Uint32(staging.Mapped[i*4:])
		binary.LittleEndian.PutUint32(staging.Mapped[i*4:], v>>8|v<<24)
	}

	// The destination rect may be at another scale.
	tuple := rt.FormatTuple(video.PixelRGBA8)
	tmpTag := video.HostTextureTag{Tuple: tuple, Type: video.Texture2D, Width: w, Height: h, Levels: 1}
	tmp := rt.allocate(tmpTag)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, tmp.Handle)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(w), int32(h),
		gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(&staging.Mapped[0]))
	gl.BindTexture(gl.TEXTURE_2D, 0)

	rt.blitHandles(tmp.Handle, dstTex.Handle, video.SurfaceColor,
		video.Rect{Left: 0, Bottom: 0, Right: w, Top: h}, dstRect, 0, 0)
	rt.recycler[tmpTag] = append(rt.recycler[tmpTag], tmp)
}
