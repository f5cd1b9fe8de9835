// Package swrender is a software TextureRuntime: host textures are plain
// byte buffers and every GPU operation runs on the CPU. It backs the test
// suite and headless trace replay.
package swrender

import (
	"glint/emu/log"
	"glint/video"
)

// Image is a host texture: one pixel buffer per layer and level, rows
// stored bottom-up.
type Image struct {
	Width  uint32 // level 0 scaled width
	Height uint32
	Bpp    uint32
	Levels uint32
	Layers uint32

	// Data[layer][level] holds (Width>>level)*(Height>>level)*Bpp bytes.
	Data [][][]byte

	tag video.HostTextureTag
}

func newImage(tag video.HostTextureTag, layers uint32) *Image {
	img := &Image{
		Width:  tag.Width,
		Height: tag.Height,
		Bpp:    tag.Tuple.Format,
		Levels: tag.Levels,
		Layers: layers,
		tag:    tag,
	}
	img.Data = make([][][]byte, layers)
	for l := range img.Data {
		img.Data[l] = make([][]byte, tag.Levels)
		for lv := uint32(0); lv < tag.Levels; lv++ {
			w := max(img.Width>>lv, 1)
			h := max(img.Height>>lv, 1)
			img.Data[l][lv] = make([]byte, w*h*img.Bpp)
		}
	}
	return img
}

// Matches implements video.Allocation.
func (img *Image) Matches(tag video.HostTextureTag) bool {
	return img.tag == tag
}

// levelDims returns the dimensions of a mip level.
func (img *Image) levelDims(level uint32) (w, h uint32) {
	return max(img.Width>>level, 1), max(img.Height>>level, 1)
}

// pix returns the texel at (x, y) of a layer and level, y counted from the
// bottom row.
func (img *Image) pix(layer, level, x, y uint32) []byte {
	w, _ := img.levelDims(level)
	off := (y*w + x) * img.Bpp
	return img.Data[layer][level][off : off+img.Bpp]
}

// Runtime implements video.TextureRuntime in software.
type Runtime struct {
	staging  []byte
	recycler map[video.HostTextureTag][]*Image
	reinterp map[video.PixelFormat][]video.Reinterpreter
}

func New() *Runtime {
	rt := &Runtime{
		recycler: make(map[video.HostTextureTag][]*Image),
		reinterp: make(map[video.PixelFormat][]video.Reinterpreter),
	}
	rt.reinterp[video.PixelRGBA8] = []video.Reinterpreter{d24s8ToRGBA8{rt}}
	return rt
}

func (rt *Runtime) FindStaging(size uint32, upload bool) video.StagingData {
	if uint32(len(rt.staging)) < size {
		rt.staging = make([]byte, size)
	}
	return video.StagingData{Size: size, Mapped: rt.staging[:size]}
}

func (rt *Runtime) FormatTuple(format video.PixelFormat) video.FormatTuple {
	return video.FormatTuple{Internal: uint32(format), Format: format.HostBytes()}
}

func (rt *Runtime) Allocate(params video.SurfaceParams) video.Allocation {
	tag := video.HostTextureTag{
		Tuple:  rt.FormatTuple(params.PixelFormat),
		Type:   params.TextureType,
		Width:  params.ScaledWidth(),
		Height: params.ScaledHeight(),
		Levels: params.Levels,
	}
	if tag.Width == 0 || tag.Height == 0 || tag.Tuple.Format == 0 {
		return nil
	}
	if pool := rt.recycler[tag]; len(pool) > 0 {
		img := pool[len(pool)-1]
		rt.recycler[tag] = pool[:len(pool)-1]
		for _, layer := range img.Data {
			for _, level := range layer {
				clear(level)
			}
		}
		return img
	}
	return newImage(tag, 1)
}

func (rt *Runtime) AllocateCube(width, levels uint32, format video.PixelFormat) video.Allocation {
	if width == 0 || format.HostBytes() == 0 {
		return nil
	}
	tag := video.HostTextureTag{
		Tuple:  rt.FormatTuple(format),
		Type:   video.TextureCube,
		Width:  width,
		Height: width,
		Levels: levels,
	}
	return newImage(tag, 6)
}

func (rt *Runtime) Recycle(tag video.HostTextureTag, alloc video.Allocation) {
	img, ok := alloc.(*Image)
	if !ok || !img.Matches(tag) {
		return
	}
	rt.recycler[tag] = append(rt.recycler[tag], img)
}

func image(surface *video.Surface) *Image {
	img, _ := surface.Alloc.(*Image)
	return img
}

func (rt *Runtime) Upload(surface *video.Surface, upload video.BufferTextureCopy, staging video.StagingData) {
	img := image(surface)
	if img == nil {
		return
	}
	scale := uint32(surface.ResScale)
	rect := upload.TextureRect // unscaled
	srcW := rect.Width()
	dst := rect.Scale(scale)

	for y := uint32(0); y < dst.Height(); y++ {
		for x := uint32(0); x < dst.Width(); x++ {
			srow := y / scale
			scol := x / scale
			soff := (srow*srcW + scol) * img.Bpp
			copy(img.pix(0, upload.TextureLevel, dst.Left+x, dst.Bottom+y), staging.Mapped[soff:soff+img.Bpp])
		}
	}
}

func (rt *Runtime) Download(surface *video.Surface, download video.BufferTextureCopy, staging video.StagingData) {
	img := image(surface)
	if img == nil {
		return
	}
	scale := uint32(surface.ResScale)
	rect := download.TextureRect // unscaled
	w := rect.Width()

	for y := uint32(0); y < rect.Height(); y++ {
		for x := uint32(0); x < w; x++ {
			src := img.pix(0, download.TextureLevel, (rect.Left+x)*scale, (rect.Bottom+y)*scale)
			doff := (y*w + x) * img.Bpp
			copy(staging.Mapped[doff:doff+img.Bpp], src)
		}
	}
}

func (rt *Runtime) ClearTexture(surface *video.Surface, tclear video.TextureClear) {
	img := image(surface)
	if img == nil {
		return
	}
	raw := tclear.Value.Raw[:max(tclear.Value.RawLen, 1)]
	if uint32(len(raw)) != img.Bpp {
		log.ModVideo.WarnZ("clear pattern size mismatch").
			Uint("pattern", uint64(len(raw))).
			Uint("bpp", uint64(img.Bpp)).
			End()
	}
	rect := tclear.TextureRect
	for y := rect.Bottom; y < rect.Top; y++ {
		for x := rect.Left; x < rect.Right; x++ {
			px := img.pix(0, tclear.TextureLevel, x, y)
			for i := range px {
				px[i] = raw[i%len(raw)]
			}
		}
	}
}

func copyPixels(src, dst *Image, copyOp video.TextureCopy, srcLayer, dstLayer uint32) {
	for y := uint32(0); y < copyOp.Extent.Height; y++ {
		for x := uint32(0); x < copyOp.Extent.Width; x++ {
			s := src.pix(srcLayer, copyOp.SrcLevel, copyOp.SrcOffset.X+x, copyOp.SrcOffset.Y+y)
			d := dst.pix(dstLayer, copyOp.DstLevel, copyOp.DstOffset.X+x, copyOp.DstOffset.Y+y)
			copy(d, s[:min(len(s), len(d))])
		}
	}
}

func (rt *Runtime) CopyTextures(src, dst *video.Surface, copyOp video.TextureCopy) bool {
	srcImg, dstImg := image(src), image(dst)
	if srcImg == nil || dstImg == nil {
		return false
	}
	copyPixels(srcImg, dstImg, copyOp, copyOp.SrcLayer, copyOp.DstLayer)
	return true
}

func (rt *Runtime) CopyToCube(src *video.Surface, cube *video.CachedTextureCube, copyOp video.TextureCopy) bool {
	srcImg := image(src)
	cubeImg, _ := cube.Alloc.(*Image)
	if srcImg == nil || cubeImg == nil {
		return false
	}
	copyPixels(srcImg, cubeImg, copyOp, copyOp.SrcLayer, copyOp.DstLayer)
	return true
}

// normRect returns the rect with y0 < y1 and x0 < x1 plus mirror flags.
func normRect(r video.Rect) (x0, y0, x1, y1 uint32, hflip, vflip bool) {
	x0, x1 = r.Left, r.Right
	if x1 < x0 {
		x0, x1 = x1, x0
		hflip = true
	}
	y0, y1 = r.Bottom, r.Top
	if y1 < y0 {
		y0, y1 = y1, y0
		vflip = true
	}
	return
}

func (rt *Runtime) BlitTextures(src, dst *video.Surface, blit video.TextureBlit) bool {
	srcImg, dstImg := image(src), image(dst)
	if srcImg == nil || dstImg == nil {
		return false
	}

	sx0, sy0, sx1, sy1, shf, svf := normRect(blit.SrcRect)
	dx0, dy0, dx1, dy1, dhf, dvf := normRect(blit.DstRect)
	srcW, srcH := sx1-sx0, sy1-sy0
	dstW, dstH := dx1-dx0, dy1-dy0
	if srcW == 0 || srcH == 0 || dstW == 0 || dstH == 0 {
		return false
	}
	hflip := shf != dhf
	vflip := svf != dvf

	for dy := uint32(0); dy < dstH; dy++ {
		sy := dy * srcH / dstH
		if vflip {
			sy = srcH - 1 - sy
		}
		for dx := uint32(0); dx < dstW; dx++ {
			sx := dx * srcW / dstW
			if hflip {
				sx = srcW - 1 - sx
			}
			s := srcImg.pix(blit.SrcLayer, blit.SrcLevel, sx0+sx, sy0+sy)
			d := dstImg.pix(blit.DstLayer, blit.DstLevel, dx0+dx, dy0+dy)
			copy(d, s[:min(len(s), len(d))])
		}
	}
	return true
}

func (rt *Runtime) GenerateMipmaps(surface *video.Surface, maxLevel uint32) {
	img := image(surface)
	if img == nil {
		return
	}
	for level := uint32(1); level <= min(maxLevel, img.Levels-1); level++ {
		w, h := img.levelDims(level)
		for y := uint32(0); y < h; y++ {
			for x := uint32(0); x < w; x++ {
				copy(img.pix(0, level, x, y), img.pix(0, level-1, x*2, y*2))
			}
		}
	}
}

func (rt *Runtime) Reinterpreters(dst video.PixelFormat) []video.Reinterpreter {
	return rt.reinterp[dst]
}

func (rt *Runtime) NullFilter() bool {
	return true
}

// d24s8ToRGBA8 re-reads depth stencil texels as color bytes. In software
// both are four bytes per texel, the bit pattern carries over unchanged.
type d24s8ToRGBA8 struct {
	rt *Runtime
}

func (r d24s8ToRGBA8) SourceFormat() video.PixelFormat {
	return video.PixelD24S8
}

func (r d24s8ToRGBA8) Reinterpret(src *video.Surface, srcRect video.Rect, dst *video.Surface, dstRect video.Rect) {
	r.rt.BlitTextures(src, dst, video.TextureBlit{SrcRect: srcRect, DstRect: dstRect})
}
