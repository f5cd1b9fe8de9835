package swrender

import (
	"bytes"
	"testing"

	"glint/video"
)

func makeSurface(rt *Runtime, width, height uint32, scale uint16) *video.Surface {
	params := video.SurfaceParams{
		Addr:        0x18000000,
		Width:       width,
		Height:      height,
		PixelFormat: video.PixelRGBA8,
		ResScale:    scale,
	}
	params.UpdateParams()
	s := &video.Surface{SurfaceParams: params}
	s.Alloc = rt.Allocate(params)
	return s
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	rt := New()
	s := makeSurface(rt, 8, 8, 1)

	staging := rt.FindStaging(8*8*4, true)
	for i := range staging.Mapped {
		staging.Mapped[i] = byte(i)
	}
	src := make([]byte, len(staging.Mapped))
	copy(src, staging.Mapped)

	copyArgs := video.BufferTextureCopy{
		BufferSize:  staging.Size,
		TextureRect: video.Rect{Left: 0, Bottom: 0, Right: 8, Top: 8},
	}
	rt.Upload(s, copyArgs, staging)

	out := rt.FindStaging(8*8*4, false)
	clear(out.Mapped)
	rt.Download(s, copyArgs, out)

	if !bytes.Equal(src, out.Mapped) {
		t.Error("download differs from upload")
	}
}

func TestScaledUploadDownload(t *testing.T) {
	rt := New()
	s := makeSurface(rt, 4, 4, 2)

	staging := rt.FindStaging(4*4*4, true)
	for i := range staging.Mapped {
		staging.Mapped[i] = byte(i + 1)
	}
	src := make([]byte, len(staging.Mapped))
	copy(src, staging.Mapped)

	copyArgs := video.BufferTextureCopy{
		BufferSize:  staging.Size,
		TextureRect: video.Rect{Left: 0, Bottom: 0, Right: 4, Top: 4},
	}
	rt.Upload(s, copyArgs, staging)

	// The host image is 8x8, each source texel covers a 2x2 block.
	img := s.Alloc.(*Image)
	if img.Width != 8 || img.Height != 8 {
		t.Fatalf("image dims = %dx%d, want 8x8", img.Width, img.Height)
	}
	if !bytes.Equal(img.pix(0, 0, 0, 0), img.pix(0, 0, 1, 1)) {
		t.Error("scaled upload did not replicate texels")
	}

	out := rt.FindStaging(4*4*4, false)
	clear(out.Mapped)
	rt.Download(s, copyArgs, out)
	if !bytes.Equal(src, out.Mapped) {
		t.Error("scaled download differs from upload")
	}
}

func TestBlitFlips(t *testing.T) {
	rt := New()
	src := makeSurface(rt, 2, 2, 1)
	dst := makeSurface(rt, 2, 2, 1)

	staging := rt.FindStaging(2*2*4, true)
	// bottom row 1s, top row 2s
	copy(staging.Mapped, []byte{
		1, 1, 1, 1, 1, 1, 1, 1,
		2, 2, 2, 2, 2, 2, 2, 2,
	})
	rt.Upload(src, video.BufferTextureCopy{
		BufferSize:  staging.Size,
		TextureRect: video.Rect{Left: 0, Bottom: 0, Right: 2, Top: 2},
	}, staging)

	// A vertically flipped blit swaps the rows.
	rt.BlitTextures(src, dst, video.TextureBlit{
		SrcRect: video.Rect{Left: 0, Bottom: 2, Right: 2, Top: 0},
		DstRect: video.Rect{Left: 0, Bottom: 0, Right: 2, Top: 2},
	})

	dstImg := dst.Alloc.(*Image)
	if dstImg.pix(0, 0, 0, 0)[0] != 2 || dstImg.pix(0, 0, 0, 1)[0] != 1 {
		t.Error("flipped blit did not mirror rows")
	}
}

func TestClearPattern(t *testing.T) {
	rt := New()
	s := makeSurface(rt, 4, 4, 1)

	rt.ClearTexture(s, video.TextureClear{
		TextureRect: video.Rect{Left: 1, Bottom: 1, Right: 3, Top: 3},
		Value: video.ClearValue{
			Raw:    [4]byte{9, 8, 7, 6},
			RawLen: 4,
		},
	})

	img := s.Alloc.(*Image)
	if !bytes.Equal(img.pix(0, 0, 1, 1), []byte{9, 8, 7, 6}) {
		t.Error("clear missed an inside texel")
	}
	if !bytes.Equal(img.pix(0, 0, 0, 0), []byte{0, 0, 0, 0}) {
		t.Error("clear leaked outside the rect")
	}
}

func TestRecycling(t *testing.T) {
	rt := New()
	s := makeSurface(rt, 8, 8, 1)
	img := s.Alloc.(*Image)

	tag := video.HostTextureTag{
		Tuple:  rt.FormatTuple(video.PixelRGBA8),
		Type:   video.Texture2D,
		Width:  8,
		Height: 8,
		Levels: 1,
	}
	img.pix(0, 0, 0, 0)[0] = 0xFF
	rt.Recycle(tag, img)

	s2 := makeSurface(rt, 8, 8, 1)
	if s2.Alloc.(*Image) != img {
		t.Error("allocation was not recycled")
	}
	if s2.Alloc.(*Image).pix(0, 0, 0, 0)[0] != 0 {
		t.Error("recycled image not cleared")
	}
}
