package video

import (
	"testing"

	"glint/emu/interval"
)

func colorParams(addr, width, height uint32, tiled bool) SurfaceParams {
	p := SurfaceParams{
		Addr:        addr,
		Width:       width,
		Height:      height,
		IsTiled:     tiled,
		PixelFormat: PixelRGBA8,
		ResScale:    1,
	}
	p.UpdateParams()
	return p
}

func TestUpdateParams(t *testing.T) {
	p := colorParams(0x18000000, 64, 64, false)

	if p.Stride != 64 {
		t.Errorf("stride = %d, want 64", p.Stride)
	}
	if p.Size != 64*64*4 {
		t.Errorf("size = %#x, want %#x", p.Size, 64*64*4)
	}
	if p.End != p.Addr+p.Size {
		t.Errorf("end = %#x, want %#x", p.End, p.Addr+p.Size)
	}
	if p.Type != SurfaceColor {
		t.Errorf("type = %v, want %v", p.Type, SurfaceColor)
	}
}

func TestExactMatch(t *testing.T) {
	a := colorParams(0x18000000, 64, 64, true)
	b := a

	if !a.ExactMatch(b) {
		t.Error("identical params do not match")
	}

	b.PixelFormat = PixelRGB565
	b.UpdateParams()
	if a.ExactMatch(b) {
		t.Error("different formats match")
	}

	c := a
	c.Addr += 0x100
	c.UpdateParams()
	if a.ExactMatch(c) {
		t.Error("different addresses match")
	}
}

func TestCanSubRect(t *testing.T) {
	parent := colorParams(0x18000000, 64, 64, true)

	// 32x32 at the start of the parent.
	sub := parent
	sub.Width, sub.Height = 32, 32
	sub.Stride = 0
	sub.UpdateParams()
	sub.Stride = parent.Stride
	sub.Size = parent.BytesInPixels(parent.Stride*8*(32/8-1) + 32*8)
	sub.End = sub.Addr + sub.Size

	if !parent.CanSubRect(sub) {
		t.Error("contained aligned sub-rect rejected")
	}

	// Different tiling never sub-rects.
	linear := sub
	linear.IsTiled = false
	if parent.CanSubRect(linear) {
		t.Error("sub-rect accepted across tiling change")
	}

	// Offset by a non-tile amount.
	misaligned := sub
	misaligned.Addr += 4
	misaligned.End += 4
	if parent.CanSubRect(misaligned) {
		t.Error("sub-rect accepted at misaligned offset")
	}
}

func TestSubRectPlacement(t *testing.T) {
	// S2: a 32x32 query at the base of a tiled 64x64 res_scale=2 surface
	// occupies the top rows, scaled by two.
	parent := colorParams(0x18000000, 64, 64, true)
	parent.ResScale = 2

	sub := colorParams(0x18000000, 32, 32, true)

	rect := parent.ScaledSubRect(sub)
	want := Rect{Left: 0, Top: 128, Right: 64, Bottom: 64}
	if rect != want {
		t.Errorf("scaled sub-rect = %+v, want %+v", rect, want)
	}
	if rect.Width() != 64 || rect.Height() != 64 {
		t.Errorf("scaled sub-rect size = %dx%d, want 64x64", rect.Width(), rect.Height())
	}

	// Linear surfaces count rows from the bottom instead.
	linParent := colorParams(0x18000000, 64, 64, false)
	linSub := colorParams(0x18000000+64*4*16, 64, 8, false)
	lrect := linParent.SubRect(linSub)
	lwant := Rect{Left: 0, Top: 24, Right: 64, Bottom: 16}
	if lrect != lwant {
		t.Errorf("linear sub-rect = %+v, want %+v", lrect, lwant)
	}
}

func TestCanExpand(t *testing.T) {
	b := colorParams(0x20000000, 64, 64, false)

	// One extra row before b, same stride.
	grown := colorParams(0x20000000-64*4, 64, 65, false)
	if !b.CanExpand(grown) {
		t.Error("touching row-aligned surface cannot expand")
	}

	// Not row aligned.
	odd := colorParams(0x20000000-60, 64, 65, false)
	if b.CanExpand(odd) {
		t.Error("misaligned surface expands")
	}

	// Disjoint beyond touching.
	far := colorParams(0x20010000+64*4, 64, 64, false)
	if b.CanExpand(far) {
		t.Error("distant surface expands")
	}
}

func TestFromIntervalRows(t *testing.T) {
	p := colorParams(0x18000000, 64, 64, false)

	// Two middle rows.
	iv := interval.New(p.Addr+64*4*10, p.Addr+64*4*12)
	sub := p.FromInterval(iv)

	if sub.Interval() != iv {
		t.Errorf("sub interval = [%#x, %#x), want [%#x, %#x)",
			sub.Addr, sub.End, iv.Start, iv.End)
	}
	if sub.Height != 2 || sub.Width != 64 {
		t.Errorf("sub dims = %dx%d, want 64x2", sub.Width, sub.Height)
	}

	// A sub-row range narrows to a pixel-aligned single row.
	partial := p.FromInterval(interval.New(p.Addr+64*4*10+8, p.Addr+64*4*10+16))
	if partial.Height != 1 || partial.Width != 2 {
		t.Errorf("partial dims = %dx%d, want 2x1", partial.Width, partial.Height)
	}
	if partial.Interval() != interval.New(p.Addr+64*4*10+8, p.Addr+64*4*10+16) {
		t.Errorf("partial interval = [%#x, %#x)", partial.Addr, partial.End)
	}
}

func TestSubRectIntervalRoundTrip(t *testing.T) {
	p := colorParams(0x18000000, 64, 64, true)

	sub := colorParams(0x18000000+p.BytesInPixels(64*8), 64, 8, true)
	rect := p.SubRect(sub)
	iv := p.SubRectInterval(rect)
	if iv != sub.Interval() {
		t.Errorf("rect -> interval = [%#x, %#x), want [%#x, %#x)",
			iv.Start, iv.End, sub.Addr, sub.End)
	}
}

func TestCanTexCopy(t *testing.T) {
	p := colorParams(0x18000000, 64, 64, false)

	// Contiguous byte run inside p.
	tc := SurfaceParams{
		Addr:   p.Addr + 64*4*8,
		Width:  64 * 4 * 4,
		Stride: 64 * 4 * 4,
		Height: 1,
	}
	tc.Size = tc.Width
	tc.End = tc.Addr + tc.Size
	if !p.CanTexCopy(tc) {
		t.Error("contiguous tex copy rejected")
	}

	// Strided copy whose rows match p's rows.
	strided := SurfaceParams{
		Addr:   p.Addr,
		Width:  32 * 4,
		Stride: 64 * 4,
		Height: 8,
	}
	strided.Size = (strided.Height-1)*strided.Stride + strided.Width
	strided.End = strided.Addr + strided.Size
	if !p.CanTexCopy(strided) {
		t.Error("row-strided tex copy rejected")
	}

	// Row wider than the surface stride.
	wide := strided
	wide.Width = 80 * 4
	wide.Size = (wide.Height-1)*wide.Stride + wide.Width
	wide.End = wide.Addr + wide.Size
	if p.CanTexCopy(wide) {
		t.Error("overwide tex copy accepted")
	}
}
