package video

import (
	"bytes"
	"testing"
)

func texParams(format PixelFormat, width, height uint32, tiled bool) SurfaceParams {
	p := SurfaceParams{
		Addr:        0x18000000,
		Width:       width,
		Height:      height,
		IsTiled:     tiled,
		PixelFormat: format,
		ResScale:    1,
	}
	p.UpdateParams()
	return p
}

// fillPattern writes a deterministic byte ramp.
func fillPattern(buf []byte) {
	for i := range buf {
		buf[i] = byte(i*7 + 3)
	}
}

func TestCodecRoundTripLinear(t *testing.T) {
	for _, format := range []PixelFormat{PixelRGBA8, PixelRGB8, PixelRGB565, PixelD16, PixelD24S8} {
		t.Run(format.String(), func(t *testing.T) {
			info := texParams(format, 16, 16, false)
			guest := make([]byte, info.Size)
			fillPattern(guest)

			host := make([]byte, info.Width*info.Height*format.HostBytes())
			if !DecodeTexture(info, info.Addr, info.End, guest, host, false) {
				t.Fatal("decode failed")
			}

			back := make([]byte, info.Size)
			if !EncodeTexture(info, info.Addr, info.End, host, back, false) {
				t.Fatal("encode failed")
			}
			if !bytes.Equal(guest, back) {
				t.Error("guest bytes changed across decode/encode")
			}
		})
	}
}

func TestCodecRoundTripTiled(t *testing.T) {
	for _, format := range []PixelFormat{PixelRGBA8, PixelRGB565, PixelD24} {
		t.Run(format.String(), func(t *testing.T) {
			info := texParams(format, 16, 16, true)
			guest := make([]byte, info.Size)
			fillPattern(guest)

			host := make([]byte, info.Width*info.Height*format.HostBytes())
			if !DecodeTexture(info, info.Addr, info.End, guest, host, false) {
				t.Fatal("decode failed")
			}

			back := make([]byte, info.Size)
			if !EncodeTexture(info, info.Addr, info.End, host, back, false) {
				t.Fatal("encode failed")
			}
			if !bytes.Equal(guest, back) {
				t.Error("guest bytes changed across decode/encode")
			}
		})
	}
}

func TestCodecTiledPlacement(t *testing.T) {
	// One 8x8 RGBA8 tile: the first guest texel is the tile's top-left,
	// which lands on the highest host row.
	info := texParams(PixelRGBA8, 8, 8, true)
	guest := make([]byte, info.Size)
	copy(guest[0:4], []byte{1, 2, 3, 4})

	host := make([]byte, 8*8*4)
	if !DecodeTexture(info, info.Addr, info.End, guest, host, false) {
		t.Fatal("decode failed")
	}

	topLeft := host[(7*8+0)*4:][:4]
	if !bytes.Equal(topLeft, []byte{1, 2, 3, 4}) {
		t.Errorf("top-left host texel = %v, want [1 2 3 4]", topLeft)
	}
}

func TestCodecI8Decode(t *testing.T) {
	info := texParams(PixelI8, 8, 8, true)
	guest := make([]byte, info.Size)
	for i := range guest {
		guest[i] = 0x42
	}

	host := make([]byte, 8*8*4)
	if !DecodeTexture(info, info.Addr, info.End, guest, host, false) {
		t.Fatal("decode failed")
	}
	for i := 0; i < len(host); i += 4 {
		if host[i] != 0x42 || host[i+1] != 0x42 || host[i+2] != 0x42 || host[i+3] != 255 {
			t.Fatalf("texel %d = %v, want [42 42 42 ff]", i/4, host[i:i+4])
		}
	}
}

func TestCodecI4Decode(t *testing.T) {
	info := texParams(PixelI4, 8, 8, true)
	guest := make([]byte, info.Size)
	for i := range guest {
		guest[i] = 0x55 // both nibbles 5
	}

	host := make([]byte, 8*8*4)
	if !DecodeTexture(info, info.Addr, info.End, guest, host, false) {
		t.Fatal("decode failed")
	}
	want := byte(5 * 17)
	for i := 0; i < len(host); i += 4 {
		if host[i] != want || host[i+3] != 255 {
			t.Fatalf("texel %d = %v, want intensity %#x", i/4, host[i:i+4], want)
		}
	}
}

func TestCodecConvertRGBA8(t *testing.T) {
	info := texParams(PixelRGBA8, 8, 8, false)
	guest := make([]byte, info.Size)
	copy(guest[0:4], []byte{0xAA, 0xBB, 0xCC, 0xDD})

	host := make([]byte, 8*8*4)
	if !DecodeTexture(info, info.Addr, info.End, guest, host, true) {
		t.Fatal("decode failed")
	}
	// The converted layout reverses the guest byte order.
	if !bytes.Equal(host[0:4], []byte{0xDD, 0xCC, 0xBB, 0xAA}) {
		t.Errorf("converted texel = %v, want [dd cc bb aa]", host[0:4])
	}

	back := make([]byte, info.Size)
	if !EncodeTexture(info, info.Addr, info.End, host, back, true) {
		t.Fatal("encode failed")
	}
	if !bytes.Equal(guest[0:4], back[0:4]) {
		t.Errorf("convert round trip = %v, want %v", back[0:4], guest[0:4])
	}
}

func TestCodecETC1SolidBlock(t *testing.T) {
	// An all-zero block decodes in individual mode with base color 0,
	// table 0 and all indices 0: every texel is clamp(0+2) = 2.
	info := texParams(PixelETC1, 8, 8, true)
	guest := make([]byte, info.Size)

	host := make([]byte, 8*8*4)
	if !DecodeTexture(info, info.Addr, info.End, guest, host, false) {
		t.Fatal("decode failed")
	}
	for i := 0; i < len(host); i += 4 {
		if host[i] != 2 || host[i+1] != 2 || host[i+2] != 2 || host[i+3] != 255 {
			t.Fatalf("texel %d = %v, want [2 2 2 ff]", i/4, host[i:i+4])
		}
	}
}

func TestCodecMissing(t *testing.T) {
	// ETC1 has no encoder.
	info := texParams(PixelETC1, 8, 8, true)
	host := make([]byte, 8*8*4)
	guest := make([]byte, info.Size)
	if EncodeTexture(info, info.Addr, info.End, host, guest, false) {
		t.Error("ETC1 encode reported success")
	}

	// Linear ETC1 makes no sense either.
	linfo := texParams(PixelETC1, 8, 8, false)
	if DecodeTexture(linfo, linfo.Addr, linfo.End, guest, host, false) {
		t.Error("linear ETC1 decode reported success")
	}
}
