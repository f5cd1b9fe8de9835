// Package glrender is the OpenGL TextureRuntime. Surfaces live in GL
// textures, blits and scissored clears run through per-type framebuffer
// pairs, and downloads read back through a framebuffer attachment.
package glrender

import (
	"github.com/go-gl/gl/v3.3-core/gl"

	"glint/emu/log"
	"glint/video"
)

// Texture is a host GL texture allocation.
type Texture struct {
	Handle uint32
	tag    video.HostTextureTag
}

// Matches implements video.Allocation.
func (t *Texture) Matches(tag video.HostTextureTag) bool {
	return t.tag == tag
}

// fbo index per attachment class
const (
	fboColor = iota
	fboDepth
	fboDepthStencil
	fboCount
)

func fboIndex(ty video.SurfaceType) int {
	switch ty {
	case video.SurfaceDepth:
		return fboDepth
	case video.SurfaceDepthStencil:
		return fboDepthStencil
	default:
		return fboColor
	}
}

// Runtime implements video.TextureRuntime on an OpenGL 3.3 context. It must
// be created and used on the thread owning the context.
type Runtime struct {
	staging []byte

	drawFBOs [fboCount]uint32
	readFBOs [fboCount]uint32

	recycler map[video.HostTextureTag][]*Texture
	reinterp map[video.PixelFormat][]video.Reinterpreter

	gles bool
}

// New builds the runtime against the current GL context.
func New(gles bool) *Runtime {
	rt := &Runtime{
		recycler: make(map[video.HostTextureTag][]*Texture),
		reinterp: make(map[video.PixelFormat][]video.Reinterpreter),
		gles:     gles,
	}
	gl.GenFramebuffers(fboCount, &rt.drawFBOs[0])
	gl.GenFramebuffers(fboCount, &rt.readFBOs[0])
	rt.reinterp[video.PixelRGBA8] = []video.Reinterpreter{&d24s8Reinterpreter{rt: rt}}
	return rt
}

func (rt *Runtime) Close() {
	gl.DeleteFramebuffers(fboCount, &rt.drawFBOs[0])
	gl.DeleteFramebuffers(fboCount, &rt.readFBOs[0])
	for _, pool := range rt.recycler {
		for _, tex := range pool {
			gl.DeleteTextures(1, &tex.Handle)
		}
	}
	clear(rt.recycler)
}

// NeedsConversion reports the formats whose guest byte order the GLES
// upload path cannot consume.
func (rt *Runtime) NeedsConversion(format video.PixelFormat) bool {
	return rt.gles && (format == video.PixelRGBA8 || format == video.PixelRGB8)
}

func (rt *Runtime) FindStaging(size uint32, upload bool) video.StagingData {
	if uint32(len(rt.staging)) < size {
		rt.staging = make([]byte, size)
	}
	return video.StagingData{Size: size, Mapped: rt.staging[:size]}
}

func (rt *Runtime) FormatTuple(format video.PixelFormat) video.FormatTuple {
	switch format {
	case video.PixelRGBA8:
		if rt.gles {
			return video.FormatTuple{Internal: gl.RGBA8, Format: gl.RGBA, Type: gl.UNSIGNED_BYTE}
		}
		return video.FormatTuple{Internal: gl.RGBA8, Format: gl.RGBA, Type: gl.UNSIGNED_INT_8_8_8_8}
	case video.PixelRGB8:
		if rt.gles {
			return video.FormatTuple{Internal: gl.RGB8, Format: gl.RGB, Type: gl.UNSIGNED_BYTE}
		}
		return video.FormatTuple{Internal: gl.RGB8, Format: gl.BGR, Type: gl.UNSIGNED_BYTE}
	case video.PixelRGB5A1:
		return video.FormatTuple{Internal: gl.RGB5_A1, Format: gl.RGBA, Type: gl.UNSIGNED_SHORT_5_5_5_1}
	case video.PixelRGB565:
		return video.FormatTuple{Internal: gl.RGB8, Format: gl.RGB, Type: gl.UNSIGNED_SHORT_5_6_5}
	case video.PixelRGBA4:
		return video.FormatTuple{Internal: gl.RGBA4, Format: gl.RGBA, Type: gl.UNSIGNED_SHORT_4_4_4_4}
	case video.PixelD16:
		return video.FormatTuple{Internal: gl.DEPTH_COMPONENT16, Format: gl.DEPTH_COMPONENT, Type: gl.UNSIGNED_SHORT}
	case video.PixelD24:
		return video.FormatTuple{Internal: gl.DEPTH_COMPONENT24, Format: gl.DEPTH_COMPONENT, Type: gl.UNSIGNED_INT}
	case video.PixelD24S8:
		return video.FormatTuple{Internal: gl.DEPTH24_STENCIL8, Format: gl.DEPTH_STENCIL, Type: gl.UNSIGNED_INT_24_8}
	}
	// Texture formats are decoded to RGBA8 on the host.
	return video.FormatTuple{Internal: gl.RGBA8, Format: gl.RGBA, Type: gl.UNSIGNED_BYTE}
}

func (rt *Runtime) allocate(tag video.HostTextureTag) *Texture {
	if pool := rt.recycler[tag]; len(pool) > 0 {
		tex := pool[len(pool)-1]
		rt.recycler[tag] = pool[:len(pool)-1]
		return tex
	}

	target := uint32(gl.TEXTURE_2D)
	if tag.Type == video.TextureCube {
		target = gl.TEXTURE_CUBE_MAP
	}

	tex := &Texture{tag: tag}
	gl.GenTextures(1, &tex.Handle)
	gl.BindTexture(target, tex.Handle)
	gl.TexParameteri(target, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(target, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteri(target, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(target, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(target, gl.TEXTURE_MAX_LEVEL, int32(tag.Levels-1))

	for level := uint32(0); level < tag.Levels; level++ {
		w := int32(max(tag.Width>>level, 1))
		h := int32(max(tag.Height>>level, 1))
		if tag.Type == video.TextureCube {
			for face := 0; face < 6; face++ {
				gl.TexImage2D(uint32(gl.TEXTURE_CUBE_MAP_POSITIVE_X+face), int32(level),
					int32(tag.Tuple.Internal), w, h, 0, tag.Tuple.Format, tag.Tuple.Type, nil)
			}
		} else {
			gl.TexImage2D(gl.TEXTURE_2D, int32(level),
				int32(tag.Tuple.Internal), w, h, 0, tag.Tuple.Format, tag.Tuple.Type, nil)
		}
	}
	gl.BindTexture(target, 0)
	return tex
}

func (rt *Runtime) Allocate(params video.SurfaceParams) video.Allocation {
	if params.ScaledWidth() == 0 || params.ScaledHeight() == 0 {
		return nil
	}
	return rt.allocate(video.HostTextureTag{
		Tuple:  rt.FormatTuple(params.PixelFormat),
		Type:   params.TextureType,
		Width:  params.ScaledWidth(),
		Height: params.ScaledHeight(),
		Levels: params.Levels,
	})
}

func (rt *Runtime) AllocateCube(width, levels uint32, format video.PixelFormat) video.Allocation {
	if width == 0 {
		return nil
	}
	return rt.allocate(video.HostTextureTag{
		Tuple:  rt.FormatTuple(format),
		Type:   video.TextureCube,
		Width:  width,
		Height: width,
		Levels: levels,
	})
}

func (rt *Runtime) Recycle(tag video.HostTextureTag, alloc video.Allocation) {
	tex, ok := alloc.(*Texture)
	if !ok || !tex.Matches(tag) {
		return
	}
	rt.recycler[tag] = append(rt.recycler[tag], tex)
}

func texture(surface *video.Surface) *Texture {
	tex, _ := surface.Alloc.(*Texture)
	return tex
}

// attach binds the texture to the framebuffer's attachment point for its
// surface type.
func attach(fbo uint32, target uint32, ty video.SurfaceType, handle uint32, level uint32) {
	gl.BindFramebuffer(target, fbo)
	switch ty {
	case video.SurfaceDepth:
		gl.FramebufferTexture2D(target, gl.DEPTH_ATTACHMENT, gl.TEXTURE_2D, handle, int32(level))
	case video.SurfaceDepthStencil:
		gl.FramebufferTexture2D(target, gl.DEPTH_STENCIL_ATTACHMENT, gl.TEXTURE_2D, handle, int32(level))
	default:
		gl.FramebufferTexture2D(target, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, handle, int32(level))
	}
}

func (rt *Runtime) Upload(surface *video.Surface, upload video.BufferTextureCopy, staging video.StagingData) {
	tex := texture(surface)
	if tex == nil {
		return
	}
	tuple := rt.FormatTuple(surface.PixelFormat)
	rect := upload.TextureRect

	if surface.ResScale == 1 {
		gl.ActiveTexture(gl.TEXTURE0)
		gl.BindTexture(gl.TEXTURE_2D, tex.Handle)
		gl.TexSubImage2D(gl.TEXTURE_2D, int32(upload.TextureLevel),
			int32(rect.Left), int32(rect.Bottom), int32(rect.Width()), int32(rect.Height()),
			tuple.Format, tuple.Type, gl.Ptr(&staging.Mapped[0]))
		gl.BindTexture(gl.TEXTURE_2D, 0)
		return
	}

	// Scaled surface: upload to an unscaled intermediate and stretch it on.
	unscaledTag := video.HostTextureTag{
		Tuple: tuple, Type: video.Texture2D,
		Width: rect.Width(), Height: rect.Height(), Levels: 1,
	}
	tmp := rt.allocate(unscaledTag)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, tmp.Handle)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, int32(rect.Width()), int32(rect.Height()),
		tuple.Format, tuple.Type, gl.Ptr(&staging.Mapped[0]))
	gl.BindTexture(gl.TEXTURE_2D, 0)

	rt.blitHandles(tmp.Handle, tex.Handle, surface.Type,
		video.Rect{Left: 0, Bottom: 0, Right: rect.Width(), Top: rect.Height()},
		rect.Scale(uint32(surface.ResScale)), 0, upload.TextureLevel)
	rt.recycler[unscaledTag] = append(rt.recycler[unscaledTag], tmp)
}

func (rt *Runtime) Download(surface *video.Surface, download video.BufferTextureCopy, staging video.StagingData) {
	tex := texture(surface)
	if tex == nil {
		return
	}
	tuple := rt.FormatTuple(surface.PixelFormat)
	rect := download.TextureRect

	handle := tex.Handle
	level := download.TextureLevel

	var tmpTag video.HostTextureTag
	var tmp *Texture
	if surface.ResScale != 1 {
		// Blit down to an unscaled intermediate first.
		tmpTag = video.HostTextureTag{
			Tuple: tuple, Type: video.Texture2D,
			Width: rect.Width(), Height: rect.Height(), Levels: 1,
		}
		tmp = rt.allocate(tmpTag)
		rt.blitHandles(tex.Handle, tmp.Handle, surface.Type,
			rect.Scale(uint32(surface.ResScale)),
			video.Rect{Left: 0, Bottom: 0, Right: rect.Width(), Top: rect.Height()},
			level, 0)
		handle = tmp.Handle
		level = 0
		rect = video.Rect{Left: 0, Bottom: 0, Right: rect.Width(), Top: rect.Height()}
	}

	idx := fboIndex(surface.Type)
	attach(rt.readFBOs[idx], gl.READ_FRAMEBUFFER, surface.Type, handle, level)
	gl.ReadPixels(int32(rect.Left), int32(rect.Bottom), int32(rect.Width()), int32(rect.Height()),
		tuple.Format, tuple.Type, gl.Ptr(&staging.Mapped[0]))
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)

	if tmp != nil {
		rt.recycler[tmpTag] = append(rt.recycler[tmpTag], tmp)
	}
}

func (rt *Runtime) ClearTexture(surface *video.Surface, tclear video.TextureClear) {
	tex := texture(surface)
	if tex == nil {
		return
	}
	idx := fboIndex(surface.Type)
	attach(rt.drawFBOs[idx], gl.DRAW_FRAMEBUFFER, surface.Type, tex.Handle, tclear.TextureLevel)

	rect := tclear.TextureRect
	gl.Enable(gl.SCISSOR_TEST)
	gl.Scissor(int32(rect.Left), int32(rect.Bottom), int32(rect.Width()), int32(rect.Height()))

	switch surface.Type {
	case video.SurfaceColor, video.SurfaceTexture:
		color := tclear.Value.Color
		gl.ClearBufferfv(gl.COLOR, 0, &color[0])
	case video.SurfaceDepth:
		depth := tclear.Value.Depth
		gl.ClearBufferfv(gl.DEPTH, 0, &depth)
	case video.SurfaceDepthStencil:
		gl.ClearBufferfi(gl.DEPTH_STENCIL, 0, tclear.Value.Depth, int32(tclear.Value.Stencil))
	default:
		log.ModVideo.ErrorZ("clear of invalid surface type").Stringer("type", surface.Type).End()
	}

	gl.Disable(gl.SCISSOR_TEST)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
}

// blitHandles runs a framebuffer blit between two texture handles of the
// same attachment class.
func (rt *Runtime) blitHandles(src, dst uint32, ty video.SurfaceType, srcRect, dstRect video.Rect, srcLevel, dstLevel uint32) {
	idx := fboIndex(ty)
	attach(rt.readFBOs[idx], gl.READ_FRAMEBUFFER, ty, src, srcLevel)
	attach(rt.drawFBOs[idx], gl.DRAW_FRAMEBUFFER, ty, dst, dstLevel)

	mask := uint32(gl.COLOR_BUFFER_BIT)
	filter := uint32(gl.LINEAR)
	switch ty {
	case video.SurfaceDepth:
		mask = gl.DEPTH_BUFFER_BIT
		filter = gl.NEAREST
	case video.SurfaceDepthStencil:
		mask = gl.DEPTH_BUFFER_BIT | gl.STENCIL_BUFFER_BIT
		filter = gl.NEAREST
	}
	if srcRect.Width() == dstRect.Width() && srcRect.Height() == dstRect.Height() {
		filter = gl.NEAREST
	}

	gl.BlitFramebuffer(
		int32(srcRect.Left), int32(srcRect.Bottom), int32(srcRect.Right), int32(srcRect.Top),
		int32(dstRect.Left), int32(dstRect.Bottom), int32(dstRect.Right), int32(dstRect.Top),
		mask, filter)

	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
}

func (rt *Runtime) BlitTextures(src, dst *video.Surface, blit video.TextureBlit) bool {
	srcTex, dstTex := texture(src), texture(dst)
	if srcTex == nil || dstTex == nil {
		return false
	}
	rt.blitHandles(srcTex.Handle, dstTex.Handle, src.Type, blit.SrcRect, blit.DstRect, blit.SrcLevel, blit.DstLevel)
	return true
}

func (rt *Runtime) CopyTextures(src, dst *video.Surface, copyOp video.TextureCopy) bool {
	srcTex, dstTex := texture(src), texture(dst)
	if srcTex == nil || dstTex == nil {
		return false
	}
	srcRect := video.Rect{
		Left: copyOp.SrcOffset.X, Bottom: copyOp.SrcOffset.Y,
		Right: copyOp.SrcOffset.X + copyOp.Extent.Width, Top: copyOp.SrcOffset.Y + copyOp.Extent.Height,
	}
	dstRect := video.Rect{
		Left: copyOp.DstOffset.X, Bottom: copyOp.DstOffset.Y,
		Right: copyOp.DstOffset.X + copyOp.Extent.Width, Top: copyOp.DstOffset.Y + copyOp.Extent.Height,
	}
	rt.blitHandles(srcTex.Handle, dstTex.Handle, src.Type, srcRect, dstRect, copyOp.SrcLevel, copyOp.DstLevel)
	return true
}

func (rt *Runtime) CopyToCube(src *video.Surface, cube *video.CachedTextureCube, copyOp video.TextureCopy) bool {
	srcTex := texture(src)
	cubeTex, _ := cube.Alloc.(*Texture)
	if srcTex == nil || cubeTex == nil {
		return false
	}

	attach(rt.readFBOs[fboColor], gl.READ_FRAMEBUFFER, video.SurfaceColor, srcTex.Handle, copyOp.SrcLevel)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, rt.drawFBOs[fboColor])
	gl.FramebufferTexture2D(gl.DRAW_FRAMEBUFFER, gl.COLOR_ATTACHMENT0,
		uint32(gl.TEXTURE_CUBE_MAP_POSITIVE_X+copyOp.DstLayer), cubeTex.Handle, int32(copyOp.DstLevel))

	gl.BlitFramebuffer(
		int32(copyOp.SrcOffset.X), int32(copyOp.SrcOffset.Y),
		int32(copyOp.SrcOffset.X+copyOp.Extent.Width), int32(copyOp.SrcOffset.Y+copyOp.Extent.Height),
		int32(copyOp.DstOffset.X), int32(copyOp.DstOffset.Y),
		int32(copyOp.DstOffset.X+copyOp.Extent.Width), int32(copyOp.DstOffset.Y+copyOp.Extent.Height),
		gl.COLOR_BUFFER_BIT, gl.NEAREST)

	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
	return true
}

func (rt *Runtime) GenerateMipmaps(surface *video.Surface, maxLevel uint32) {
	tex := texture(surface)
	if tex == nil {
		return
	}
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, tex.Handle)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAX_LEVEL, int32(maxLevel))
	gl.GenerateMipmap(gl.TEXTURE_2D)
	gl.BindTexture(gl.TEXTURE_2D, 0)
}

func (rt *Runtime) Reinterpreters(dst video.PixelFormat) []video.Reinterpreter {
	return rt.reinterp[dst]
}

// NullFilter reports that no texture filter is active. The GL runtime has
// no filterer wired, mip levels are blitted individually.
func (rt *Runtime) NullFilter() bool {
	return true
}
