package video

import (
	"encoding/binary"

	"glint/emu/log"
)

// Convert4To8 style channel expansions used when sampling guest pixels.
func expand5(v uint16) uint8 { return uint8(v<<3 | v>>2) }
func expand6(v uint16) uint8 { return uint8(v<<2 | v>>4) }

// sampleRGBA reads one guest pixel as 8-bit RGBA.
func sampleRGBA(format PixelFormat, src []byte) [4]byte {
	switch format {
	case PixelRGBA8:
		return [4]byte{src[3], src[2], src[1], src[0]}
	case PixelRGB8:
		return [4]byte{src[2], src[1], src[0], 255}
	case PixelRGB565:
		v := binary.LittleEndian.Uint16(src)
		return [4]byte{expand5(v >> 11), expand6(v >> 5 & 0x3F), expand5(v & 0x1F), 255}
	case PixelRGB5A1:
		v := binary.LittleEndian.Uint16(src)
		a := uint8(0)
		if v&1 != 0 {
			a = 255
		}
		return [4]byte{expand5(v >> 11), expand5(v >> 6 & 0x1F), expand5(v >> 1 & 0x1F), a}
	case PixelRGBA4:
		v := binary.LittleEndian.Uint16(src)
		return [4]byte{
			uint8(v >> 12 & 0xF * 17), uint8(v >> 8 & 0xF * 17),
			uint8(v >> 4 & 0xF * 17), uint8(v & 0xF * 17),
		}
	}

	// Texture formats decode to RGBA8 directly.
	if op := codecs[format]; op.decode != nil && format.Type() == SurfaceTexture {
		var out [4]byte
		op.decode(src, out[:])
		return out
	}
	if op, ok := nibbleCodecs[format]; ok {
		var out [4]byte
		op.decode(src[0]&0xF, out[:])
		return out
	}
	log.ModVideo.WarnZ("cannot sample pixel format").Stringer("format", format).End()
	return [4]byte{}
}

// hostTexel returns the host representation of one guest pixel.
func hostTexel(format PixelFormat, src []byte) (raw [4]byte, n uint32) {
	n = format.HostBytes()
	if format.Type() == SurfaceTexture {
		rgba := sampleRGBA(format, src)
		return rgba, 4
	}
	if op := codecs[format]; op.decode != nil {
		op.decode(src, raw[:])
		return raw, n
	}
	copy(raw[:], src)
	return raw, n
}

// MakeClearValue builds the clear for a fill pattern targeting a surface of
// the given type and format. Both the normalized components and the raw
// host texel are filled so either backend flavor can use it.
func MakeClearValue(ty SurfaceType, format PixelFormat, fill []byte) ClearValue {
	var result ClearValue
	switch ty {
	case SurfaceColor, SurfaceTexture, SurfaceFill:
		rgba := sampleRGBA(format, fill)
		for i, c := range rgba {
			result.Color[i] = float32(c) / 255
		}
		result.Raw, result.RawLen = hostTexel(format, fill)

	case SurfaceDepth:
		var depth uint32
		if format == PixelD16 {
			depth = uint32(binary.LittleEndian.Uint16(fill))
			result.Depth = float32(depth) / 65535
		} else if format == PixelD24 {
			depth = uint32(fill[0]) | uint32(fill[1])<<8 | uint32(fill[2])<<16
			result.Depth = float32(depth) / 16777215
		}
		result.Raw, result.RawLen = hostTexel(format, fill)

	case SurfaceDepthStencil:
		v := binary.LittleEndian.Uint32(fill)
		result.Depth = float32(v&0xFFFFFF) / 16777215
		result.Stencil = uint8(v >> 24)
		copy(result.Raw[:], fill[:4])
		result.RawLen = 4

	default:
		panic("video: clear value for invalid surface type")
	}
	return result
}

// MipLevels returns how many mip levels a width x height texture carries,
// capped by the guest's max level register.
func MipLevels(width, height, maxLevel uint32) uint32 {
	levels := uint32(1)
	for width > 8 && height > 8 {
		levels++
		width >>= 1
		height >>= 1
	}
	return min(levels, maxLevel+1)
}
