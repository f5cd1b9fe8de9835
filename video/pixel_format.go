// Package video implements the rasterizer surface cache: it mirrors guest
// pixel memory into host textures, tracks which byte ranges of each mirror
// are valid, which surface last wrote each range, and fulfills fills,
// transfers and texture copies on the GPU when it can.
package video

import (
	"glint/emu/log"
	"glint/hw/gpu"
)

//go:generate go tool stringer -type=SurfaceType,TextureType,ScaleMatch -output=video_string.go

// PixelFormat enumerates the guest pixel formats the cache understands.
// Values match the guest encoding so tables can be indexed directly.
type PixelFormat uint32

const (
	PixelRGBA8  PixelFormat = 0
	PixelRGB8   PixelFormat = 1
	PixelRGB5A1 PixelFormat = 2
	PixelRGB565 PixelFormat = 3
	PixelRGBA4  PixelFormat = 4
	PixelIA8    PixelFormat = 5
	PixelRG8    PixelFormat = 6
	PixelI8     PixelFormat = 7
	PixelA8     PixelFormat = 8
	PixelIA4    PixelFormat = 9
	PixelI4     PixelFormat = 10
	PixelA4     PixelFormat = 11
	PixelETC1   PixelFormat = 12
	PixelETC1A4 PixelFormat = 13
	PixelD16    PixelFormat = 14

	PixelD24   PixelFormat = 16
	PixelD24S8 PixelFormat = 17

	PixelFormatCount = 18

	PixelInvalid PixelFormat = 0xFFFFFFFF
)

// SurfaceType classifies what a pixel format (and hence a surface) holds.
type SurfaceType uint32

const (
	SurfaceColor SurfaceType = iota
	SurfaceTexture
	SurfaceDepth
	SurfaceDepthStencil
	SurfaceFill
	SurfaceInvalid
)

// TextureType is the host texture dimensionality of a surface.
type TextureType uint32

const (
	Texture2D TextureType = iota
	TextureCube
)

// FormatInfo are the static properties of a pixel format. BitsPerBlock is
// the guest storage density, BytesPerPixel the host texel size (texture
// formats are decoded to RGBA8 on the host).
type FormatInfo struct {
	Type          SurfaceType
	Name          string
	BitsPerBlock  uint32
	BytesPerPixel uint32
}

var formatTable = [PixelFormatCount]FormatInfo{
	PixelRGBA8:  {SurfaceColor, "RGBA8", 32, 4},
	PixelRGB8:   {SurfaceColor, "RGB8", 24, 3},
	PixelRGB5A1: {SurfaceColor, "RGB5A1", 16, 2},
	PixelRGB565: {SurfaceColor, "RGB565", 16, 2},
	PixelRGBA4:  {SurfaceColor, "RGBA4", 16, 2},
	PixelIA8:    {SurfaceTexture, "IA8", 16, 4},
	PixelRG8:    {SurfaceTexture, "RG8", 16, 4},
	PixelI8:     {SurfaceTexture, "I8", 8, 4},
	PixelA8:     {SurfaceTexture, "A8", 8, 4},
	PixelIA4:    {SurfaceTexture, "IA4", 8, 4},
	PixelI4:     {SurfaceTexture, "I4", 4, 4},
	PixelA4:     {SurfaceTexture, "A4", 4, 4},
	PixelETC1:   {SurfaceTexture, "ETC1", 4, 4},
	PixelETC1A4: {SurfaceTexture, "ETC1A4", 8, 4},
	PixelD16:    {SurfaceDepth, "D16", 16, 2},
	15:          {SurfaceInvalid, "Invalid", 0, 0},
	PixelD24:    {SurfaceDepth, "D24", 24, 4},
	PixelD24S8:  {SurfaceDepthStencil, "D24S8", 32, 4},
}

func (f PixelFormat) Info() FormatInfo {
	if uint32(f) >= PixelFormatCount {
		return FormatInfo{Type: SurfaceInvalid, Name: "Invalid"}
	}
	return formatTable[f]
}

// Bits returns the guest bits per pixel (the average per pixel for
// compressed formats).
func (f PixelFormat) Bits() uint32 {
	return f.Info().BitsPerBlock
}

// HostBytes returns the host bytes per pixel.
func (f PixelFormat) HostBytes() uint32 {
	return f.Info().BytesPerPixel
}

func (f PixelFormat) Type() SurfaceType {
	return f.Info().Type
}

func (f PixelFormat) String() string {
	return f.Info().Name
}

// CheckFormatsBlittable reports whether the GPU may blit between the two
// formats: color and texture mix freely, depth only with depth, depth
// stencil only with depth stencil.
func CheckFormatsBlittable(source, dest PixelFormat) bool {
	srcType := source.Type()
	dstType := dest.Type()

	if (srcType == SurfaceColor || srcType == SurfaceTexture) &&
		(dstType == SurfaceColor || dstType == SurfaceTexture) {
		return true
	}
	if srcType == SurfaceDepth && dstType == SurfaceDepth {
		return true
	}
	if srcType == SurfaceDepthStencil && dstType == SurfaceDepthStencil {
		return true
	}

	log.ModVideo.WarnZ("unblittable format pair").
		Stringer("src", source).
		Stringer("dst", dest).
		End()
	return false
}

// PixelFormatFromTextureFormat maps the raw texture unit format.
func PixelFormatFromTextureFormat(format gpu.TextureFormat) PixelFormat {
	if format <= gpu.TexETC1A4 {
		return PixelFormat(format)
	}
	return PixelInvalid
}

// PixelFormatFromColorFormat maps the raw framebuffer color format.
func PixelFormatFromColorFormat(format gpu.ColorFormat) PixelFormat {
	if format <= gpu.ColorRGBA4 {
		return PixelFormat(format)
	}
	return PixelInvalid
}

// PixelFormatFromDepthFormat maps the raw framebuffer depth format.
func PixelFormatFromDepthFormat(format gpu.DepthFormat) PixelFormat {
	switch format {
	case gpu.DepthD16:
		return PixelD16
	case gpu.DepthD24:
		return PixelD24
	case gpu.DepthD24S8:
		return PixelD24S8
	}
	return PixelInvalid
}

// PixelFormatFromFramebufferFormat maps the raw display transfer format.
func PixelFormatFromFramebufferFormat(format gpu.FramebufferFormat) PixelFormat {
	switch format {
	case gpu.FbRGBA8:
		return PixelRGBA8
	case gpu.FbRGB8:
		return PixelRGB8
	case gpu.FbRGB565:
		return PixelRGB565
	case gpu.FbRGB5A1:
		return PixelRGB5A1
	case gpu.FbRGBA4:
		return PixelRGBA4
	}
	return PixelInvalid
}
