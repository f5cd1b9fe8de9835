package video

import "encoding/binary"

// ETC1 texel compression. Guest tiles remain 8x8: four 4x4 compressed
// blocks in raster order, 8 bytes each (ETC1) or 16 bytes with a 4-bit
// alpha plane prepended (ETC1A4). Decode only, there is no encoder.

var etc1Modifiers = [8][2]int32{
	{2, 8}, {5, 17}, {9, 29}, {13, 42}, {18, 60}, {24, 80}, {33, 106}, {47, 183},
}

func clampColor(v int32) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func extend4(c uint8) uint8 { return c<<4 | c }
func extend5(c uint8) uint8 { return c<<3 | c>>2 }

// decodeETC1Block expands one 4x4 block. alpha is the 8-byte nibble plane
// or nil for fully opaque. put receives texel coordinates within the block.
func decodeETC1Block(block [8]byte, alpha []byte, put func(x, y uint32, rgba [4]byte)) {
	// The control word is stored big-endian in the first four bytes, the
	// texel index bits in the last four.
	ctrl := binary.BigEndian.Uint32(block[:4])
	idx := binary.BigEndian.Uint32(block[4:])

	var baseR, baseG, baseB [2]uint8
	diff := ctrl&0x2 != 0
	flip := ctrl&0x1 != 0
	table := [2]uint32{ctrl >> 5 & 0x7, ctrl >> 2 & 0x7}

	if diff {
		r, g, b := uint8(ctrl>>27&0x1F), uint8(ctrl>>19&0x1F), uint8(ctrl>>11&0x1F)
		dr, dg, db := int8(ctrl>>24&0x7), int8(ctrl>>16&0x7), int8(ctrl>>8&0x7)
		// 3-bit two's complement deltas
		if dr >= 4 {
			dr -= 8
		}
		if dg >= 4 {
			dg -= 8
		}
		if db >= 4 {
			db -= 8
		}
		baseR = [2]uint8{extend5(r), extend5(uint8(int8(r) + dr))}
		baseG = [2]uint8{extend5(g), extend5(uint8(int8(g) + dg))}
		baseB = [2]uint8{extend5(b), extend5(uint8(int8(b) + db))}
	} else {
		baseR = [2]uint8{extend4(uint8(ctrl >> 28 & 0xF)), extend4(uint8(ctrl >> 24 & 0xF))}
		baseG = [2]uint8{extend4(uint8(ctrl >> 20 & 0xF)), extend4(uint8(ctrl >> 16 & 0xF))}
		baseB = [2]uint8{extend4(uint8(ctrl >> 12 & 0xF)), extend4(uint8(ctrl >> 8 & 0xF))}
	}

	for x := uint32(0); x < 4; x++ {
		for y := uint32(0); y < 4; y++ {
			texel := x*4 + y // column-major index bit order
			sub := 0
			if (!flip && x >= 2) || (flip && y >= 2) {
				sub = 1
			}
			lsb := idx >> texel & 1
			msb := idx >> (texel + 16) & 1
			mod := etc1Modifiers[table[sub]][lsb]
			if msb != 0 {
				mod = -mod
			}

			a := uint8(255)
			if alpha != nil {
				nib := alpha[texel/2] >> (4 * (texel % 2)) & 0xF
				a = nib * 17
			}
			put(x, y, [4]byte{
				clampColor(int32(baseR[sub]) + mod),
				clampColor(int32(baseG[sub]) + mod),
				clampColor(int32(baseB[sub]) + mod),
				a,
			})
		}
	}
}

// decodeETC1Texture scatters whole compressed tiles overlapping [start, end)
// into the host texel stream.
func decodeETC1Texture(info SurfaceParams, start, end uint32, guest, host []byte) bool {
	withAlpha := info.PixelFormat == PixelETC1A4
	blockBytes := uint32(8)
	if withAlpha {
		blockBytes = 16
	}
	tileBytes := 4 * blockBytes
	tilesPerRow := info.Stride / 8
	hb := info.PixelFormat.HostBytes()

	firstByte := start - info.Addr
	if firstByte%tileBytes != 0 {
		return false
	}
	firstTile := firstByte / tileBytes
	lastTile := (end - info.Addr + tileBytes - 1) / tileBytes
	if (lastTile-firstTile)*tileBytes > uint32(len(guest)) {
		return false
	}

	for tile := firstTile; tile < lastTile; tile++ {
		tileX := (tile % tilesPerRow) * 8
		tileY := (tile / tilesPerRow) * 8
		for blk := uint32(0); blk < 4; blk++ {
			off := tile*tileBytes + blk*blockBytes - firstByte
			var alpha []byte
			if withAlpha {
				alpha = guest[off : off+8]
				off += 8
			}
			var block [8]byte
			copy(block[:], guest[off:off+8])

			blockX := tileX + (blk%2)*4
			blockY := tileY + (blk/2)*4
			decodeETC1Block(block, alpha, func(x, y uint32, rgba [4]byte) {
				px, py := blockX+x, blockY+y
				if px >= info.Width || py >= info.Height {
					return
				}
				copy(host[hostOffset(info, px, py, hb):], rgba[:])
			})
		}
	}
	return true
}
