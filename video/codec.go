package video

import (
	"glint/emu/log"
)

// Guest pixel layouts come in two flavors: linear rows and 8x8 tiles whose
// texels are stored in Morton (Z) order. Decoding produces the host texel
// stream the runtimes upload: rows of the described rectangle bottom-up,
// HostBytes() per texel. Encoding is the exact inverse where defined.
//
// The convert flag selects byte-reordered variants for backends that cannot
// upload RGBA8/RGB8 in guest byte order.

// mortonLUT[y][x] is the texel index of (x, y) inside an 8x8 tile.
var mortonLUT = func() (lut [8][8]uint32) {
	xpart := [8]uint32{0x00, 0x01, 0x04, 0x05, 0x10, 0x11, 0x14, 0x15}
	ypart := [8]uint32{0x00, 0x02, 0x08, 0x0a, 0x20, 0x22, 0x28, 0x2a}
	for y := range lut {
		for x := range lut[y] {
			lut[y][x] = xpart[x] + ypart[y]
		}
	}
	return lut
}()

// mortonXY is the inverse of mortonLUT.
var mortonXY = func() (lut [64][2]uint32) {
	for y := uint32(0); y < 8; y++ {
		for x := uint32(0); x < 8; x++ {
			lut[mortonLUT[y][x]] = [2]uint32{x, y}
		}
	}
	return lut
}()

// pixelOp converts a single texel between its guest and host encodings.
// A nil encode means the format cannot be written back to guest memory.
type pixelOp struct {
	guestBytes uint32
	decode     func(src, dst []byte)
	encode     func(src, dst []byte)
}

func passthrough(n uint32) pixelOp {
	cp := func(src, dst []byte) { copy(dst[:n], src[:n]) }
	return pixelOp{guestBytes: n, decode: cp, encode: cp}
}

var codecs = [PixelFormatCount]pixelOp{
	PixelRGBA8:  passthrough(4),
	PixelRGB8:   passthrough(3),
	PixelRGB5A1: passthrough(2),
	PixelRGB565: passthrough(2),
	PixelRGBA4:  passthrough(2),
	PixelD16:    passthrough(2),
	PixelD24S8:  passthrough(4),
	PixelD24: {
		guestBytes: 3,
		decode: func(src, dst []byte) {
			dst[0], dst[1], dst[2], dst[3] = src[0], src[1], src[2], 0
		},
		encode: func(src, dst []byte) {
			dst[0], dst[1], dst[2] = src[0], src[1], src[2]
		},
	},
	PixelIA8: {
		guestBytes: 2,
		decode: func(src, dst []byte) {
			dst[0], dst[1], dst[2], dst[3] = src[1], src[1], src[1], src[0]
		},
		encode: func(src, dst []byte) {
			dst[0], dst[1] = src[3], src[0]
		},
	},
	PixelRG8: {
		guestBytes: 2,
		decode: func(src, dst []byte) {
			dst[0], dst[1], dst[2], dst[3] = src[1], src[0], 0, 255
		},
		encode: func(src, dst []byte) {
			dst[0], dst[1] = src[1], src[0]
		},
	},
	PixelI8: {
		guestBytes: 1,
		decode: func(src, dst []byte) {
			dst[0], dst[1], dst[2], dst[3] = src[0], src[0], src[0], 255
		},
		encode: func(src, dst []byte) {
			dst[0] = src[0]
		},
	},
	PixelA8: {
		guestBytes: 1,
		decode: func(src, dst []byte) {
			dst[0], dst[1], dst[2], dst[3] = 0, 0, 0, src[0]
		},
		encode: func(src, dst []byte) {
			dst[0] = src[3]
		},
	},
	PixelIA4: {
		guestBytes: 1,
		decode: func(src, dst []byte) {
			i, a := src[0]>>4, src[0]&0xF
			dst[0], dst[1], dst[2], dst[3] = i*17, i*17, i*17, a*17
		},
		encode: func(src, dst []byte) {
			dst[0] = src[0]&0xF0 | src[3]>>4
		},
	},
}

// codecsConverted overrides codecs where the convert flag changes the host
// byte order (GLES cannot consume RGBA8/RGB8 in guest order).
var codecsConverted = func() [PixelFormatCount]pixelOp {
	conv := codecs
	conv[PixelRGBA8] = pixelOp{
		guestBytes: 4,
		decode: func(src, dst []byte) {
			dst[0], dst[1], dst[2], dst[3] = src[3], src[2], src[1], src[0]
		},
		encode: func(src, dst []byte) {
			dst[0], dst[1], dst[2], dst[3] = src[3], src[2], src[1], src[0]
		},
	}
	conv[PixelRGB8] = pixelOp{
		guestBytes: 3,
		decode: func(src, dst []byte) {
			dst[0], dst[1], dst[2] = src[2], src[1], src[0]
		},
		encode: func(src, dst []byte) {
			dst[0], dst[1], dst[2] = src[2], src[1], src[0]
		},
	}
	return conv
}()

// nibbleOps handle the 4-bit-per-texel formats, two texels per guest byte.
type nibbleOp struct {
	decode func(nib uint8, dst []byte)
	encode func(src []byte) uint8
}

var nibbleCodecs = map[PixelFormat]nibbleOp{
	PixelI4: {
		decode: func(nib uint8, dst []byte) {
			dst[0], dst[1], dst[2], dst[3] = nib*17, nib*17, nib*17, 255
		},
		encode: func(src []byte) uint8 { return src[0] >> 4 },
	},
	PixelA4: {
		decode: func(nib uint8, dst []byte) {
			dst[0], dst[1], dst[2], dst[3] = 0, 0, 0, nib*17
		},
		encode: func(src []byte) uint8 { return src[3] >> 4 },
	},
}

// hostOffset returns the staging byte offset of the texel at guest-space
// coordinates (x, yFromTop) of info, with host rows stored bottom-up.
func hostOffset(info SurfaceParams, x, yFromTop, hb uint32) uint32 {
	return ((info.Height-1-yFromTop)*info.Width + x) * hb
}

// DecodeTexture converts guest bytes in [start, end) into the host texel
// stream for the rectangle described by info. It reports false when no
// decoder exists for the format, leaving dst untouched.
func DecodeTexture(info SurfaceParams, start, end uint32, src, dst []byte, convert bool) bool {
	return convertTexture(info, start, end, src, dst, convert, false)
}

// EncodeTexture converts the host texel stream back into guest bytes in
// [start, end). It reports false when the format has no encoder.
func EncodeTexture(info SurfaceParams, start, end uint32, src, dst []byte, convert bool) bool {
	return convertTexture(info, start, end, dst, src, convert, true)
}

// convertTexture runs either direction: guest is indexed from start, host
// is the full staging buffer of info's rectangle.
func convertTexture(info SurfaceParams, start, end uint32, guest, host []byte, convert, encode bool) bool {
	if start < info.Addr || end > info.End || start >= end {
		return false
	}
	format := info.PixelFormat
	if uint32(format) >= PixelFormatCount {
		logMissingCodec(format, info.IsTiled, encode)
		return false
	}

	if format == PixelETC1 || format == PixelETC1A4 {
		if encode || !info.IsTiled {
			logMissingCodec(format, info.IsTiled, encode)
			return false
		}
		return decodeETC1Texture(info, start, end, guest, host)
	}

	if format.Bits() == 4 {
		return convertNibbleTexture(info, start, end, guest, host, encode)
	}

	ops := &codecs
	if convert {
		ops = &codecsConverted
	}
	op := ops[format]
	if op.decode == nil {
		logMissingCodec(format, info.IsTiled, encode)
		return false
	}
	pix := op.decode
	if encode {
		pix = op.encode
	}
	if pix == nil {
		logMissingCodec(format, info.IsTiled, encode)
		return false
	}

	gb, hb := op.guestBytes, format.HostBytes()

	if !info.IsTiled {
		// Linear rows: guest texel index maps straight to (x, row).
		first := (start - info.Addr) / gb
		count := (end - start) / gb
		for i := uint32(0); i < count; i++ {
			idx := first + i
			x, row := idx%info.Stride, idx/info.Stride
			if x >= info.Width {
				continue // inside the stride gap
			}
			hoff := (row*info.Width + x) * hb
			if encode {
				pix(host[hoff:], guest[i*gb:])
			} else {
				pix(guest[i*gb:], host[hoff:])
			}
		}
		return true
	}

	// Tiled: walk guest texels in storage order, scatter via the Morton LUT.
	tilesPerRow := info.Stride / 8
	tileBytes := 64 * gb
	firstByte := start - info.Addr
	for off := firstByte; off < end-info.Addr; off += gb {
		tile := off / tileBytes
		texel := (off % tileBytes) / gb
		x := (tile%tilesPerRow)*8 + mortonXY[texel][0]
		y := (tile/tilesPerRow)*8 + mortonXY[texel][1]
		if x >= info.Width || y >= info.Height {
			continue
		}
		hoff := hostOffset(info, x, y, hb)
		goff := off - firstByte
		if encode {
			pix(host[hoff:], guest[goff:])
		} else {
			pix(guest[goff:], host[hoff:])
		}
	}
	return true
}

func convertNibbleTexture(info SurfaceParams, start, end uint32, guest, host []byte, encode bool) bool {
	op, ok := nibbleCodecs[info.PixelFormat]
	if !ok || !info.IsTiled {
		logMissingCodec(info.PixelFormat, info.IsTiled, encode)
		return false
	}

	hb := info.PixelFormat.HostBytes()
	tilesPerRow := info.Stride / 8
	const tileBytes = 32 // 64 texels, two per byte
	firstByte := start - info.Addr
	for off := firstByte; off < end-info.Addr; off++ {
		tile := off / tileBytes
		texel := (off % tileBytes) * 2
		for n := uint32(0); n < 2; n++ {
			x := (tile%tilesPerRow)*8 + mortonXY[texel+n][0]
			y := (tile/tilesPerRow)*8 + mortonXY[texel+n][1]
			if x >= info.Width || y >= info.Height {
				continue
			}
			hoff := hostOffset(info, x, y, hb)
			if encode {
				nib := op.encode(host[hoff:])
				if n == 0 {
					guest[off-firstByte] = guest[off-firstByte]&0xF0 | nib
				} else {
					guest[off-firstByte] = guest[off-firstByte]&0x0F | nib<<4
				}
			} else {
				nib := guest[off-firstByte] >> (4 * n) & 0xF
				op.decode(nib, host[hoff:])
			}
		}
	}
	return true
}

func logMissingCodec(format PixelFormat, tiled, encode bool) {
	dir := "decode"
	if encode {
		dir = "encode"
	}
	log.ModVideo.ErrorZ("missing texture codec").
		Stringer("format", format).
		Bool("tiled", tiled).
		String("dir", dir).
		End()
}
