package video

import (
	"glint/emu/interval"
)

// SurfaceParams describes a guest memory range interpreted as a 2-D pixel
// grid: geometry, layout and format. It is a plain value, surfaces embed it
// and queries are phrased with it.
type SurfaceParams struct {
	Addr uint32
	End  uint32
	Size uint32

	Width  uint32
	Height uint32
	Stride uint32
	Levels uint32

	ResScale uint16

	IsTiled     bool
	TextureType TextureType
	PixelFormat PixelFormat
	Type        SurfaceType
}

func (p SurfaceParams) Interval() interval.Interval {
	return interval.New(p.Addr, p.End)
}

func (p SurfaceParams) Bits() uint32 {
	return p.PixelFormat.Bits()
}

func (p SurfaceParams) ScaledWidth() uint32 {
	return p.Width * uint32(p.ResScale)
}

func (p SurfaceParams) ScaledHeight() uint32 {
	return p.Height * uint32(p.ResScale)
}

// Rect is the full surface rectangle in unscaled coordinates.
func (p SurfaceParams) Rect() Rect {
	return Rect{Left: 0, Top: p.Height, Right: p.Width, Bottom: 0}
}

func (p SurfaceParams) ScaledRect() Rect {
	return Rect{Left: 0, Top: p.ScaledHeight(), Right: p.ScaledWidth(), Bottom: 0}
}

func (p SurfaceParams) PixelsInBytes(size uint32) uint32 {
	return size * 8 / p.Bits()
}

func (p SurfaceParams) BytesInPixels(pixels uint32) uint32 {
	return pixels * p.Bits() / 8
}

// UpdateParams derives stride, type, size and end from the addressing
// members already set.
func (p *SurfaceParams) UpdateParams() {
	if p.Stride == 0 {
		p.Stride = p.Width
	}
	if p.Levels == 0 {
		p.Levels = 1
	}
	if p.ResScale == 0 {
		p.ResScale = 1
	}
	p.Type = p.PixelFormat.Type()
	if !p.IsTiled {
		p.Size = p.BytesInPixels(p.Stride*(p.Height-1) + p.Width)
	} else {
		p.Size = p.BytesInPixels(p.Stride*8*(p.Height/8-1) + p.Width*8)
	}
	p.End = p.Addr + p.Size
}

// ExactMatch reports whether other covers the same memory with the same
// layout and format.
func (p SurfaceParams) ExactMatch(other SurfaceParams) bool {
	return other.Addr == p.Addr &&
		other.Width == p.Width &&
		other.Height == p.Height &&
		other.Stride == p.Stride &&
		other.Levels == p.Levels &&
		other.PixelFormat == p.PixelFormat &&
		other.IsTiled == p.IsTiled &&
		p.PixelFormat != PixelInvalid
}

// CanSubRect reports whether sub is positionally contained in p: same
// format and tiling, contained interval, and offset aligned so the sub
// projects to a pixel rectangle of p.
func (p SurfaceParams) CanSubRect(sub SurfaceParams) bool {
	tiled := uint32(1)
	if p.IsTiled {
		tiled = 64
	}
	if !(sub.Addr >= p.Addr && sub.End <= p.End &&
		sub.PixelFormat == p.PixelFormat && p.PixelFormat != PixelInvalid &&
		sub.IsTiled == p.IsTiled &&
		(sub.Addr-p.Addr)%p.BytesInPixels(tiled) == 0) {
		return false
	}
	singleRow := uint32(1)
	if p.IsTiled {
		singleRow = 8
	}
	if sub.Stride != p.Stride && sub.Height > singleRow {
		return false
	}
	return p.SubRect(sub).Right <= p.Stride
}

// CanExpand reports whether p can grow into a surface also covering
// expanded: same format, tiling and stride, with overlapping or touching
// intervals whose offset keeps rows aligned.
func (p SurfaceParams) CanExpand(expanded SurfaceParams) bool {
	if p.PixelFormat == PixelInvalid || p.PixelFormat != expanded.PixelFormat ||
		p.IsTiled != expanded.IsTiled || p.Stride != expanded.Stride {
		return false
	}
	if p.Addr > expanded.End || expanded.Addr > p.End {
		return false
	}
	tiled := uint32(1)
	if p.IsTiled {
		tiled = 8
	}
	return (max(expanded.Addr, p.Addr)-min(expanded.Addr, p.Addr))%p.BytesInPixels(p.Stride*tiled) == 0
}

// CanTexCopy reports whether p can serve the raw byte copy described by
// texcopy, whose width and stride are byte counts.
func (p SurfaceParams) CanTexCopy(texcopy SurfaceParams) bool {
	if p.PixelFormat == PixelInvalid || p.Addr > texcopy.Addr || p.End < texcopy.End {
		return false
	}

	if texcopy.Width != texcopy.Stride {
		tiled, align := uint32(1), uint32(1)
		if p.IsTiled {
			tiled, align = 8, 64
		}
		pixelAlign := p.BytesInPixels(align)
		tileStride := p.BytesInPixels(p.Stride * tiled)
		return (texcopy.Addr-p.Addr)%pixelAlign == 0 &&
			texcopy.Width%pixelAlign == 0 &&
			(texcopy.Height == 1 || texcopy.Stride == tileStride) &&
			(texcopy.Addr-p.Addr)%tileStride+texcopy.Width <= tileStride
	}

	return p.FromInterval(texcopy.Interval()).Interval() == texcopy.Interval()
}

// SubRect returns the rectangle of sub within p, in unscaled pixels.
func (p SurfaceParams) SubRect(sub SurfaceParams) Rect {
	beginPixel := p.PixelsInBytes(sub.Addr - p.Addr)

	if p.IsTiled {
		x0 := (beginPixel % (p.Stride * 8)) / 8
		y0 := (beginPixel / (p.Stride * 8)) * 8
		// Tiled surfaces are laid out top to bottom.
		return Rect{Left: x0, Top: p.Height - y0, Right: x0 + sub.Width, Bottom: p.Height - (y0 + sub.Height)}
	}

	x0 := beginPixel % p.Stride
	y0 := beginPixel / p.Stride
	// Linear surfaces are laid out bottom to top.
	return Rect{Left: x0, Top: y0 + sub.Height, Right: x0 + sub.Width, Bottom: y0}
}

// ScaledSubRect is SubRect in host (resolution scaled) coordinates.
func (p SurfaceParams) ScaledSubRect(sub SurfaceParams) Rect {
	return p.SubRect(sub).Scale(uint32(p.ResScale))
}

// FromInterval returns the smallest row-aligned sub-surface of p whose
// memory covers iv.
func (p SurfaceParams) FromInterval(iv interval.Interval) SurfaceParams {
	params := p
	tiled := uint32(1)
	if p.IsTiled {
		tiled = 8
	}
	strideBytes := p.BytesInPixels(p.Stride * tiled)

	alignedStart := p.Addr + alignDown(iv.Start-p.Addr, strideBytes)
	alignedEnd := p.Addr + alignUp(iv.End-p.Addr, strideBytes)

	if alignedEnd-alignedStart > strideBytes {
		params.Addr = alignedStart
		params.Height = (alignedEnd - alignedStart) / p.BytesInPixels(p.Stride)
	} else {
		// 1 row
		tileAlign := p.BytesInPixels(1)
		if p.IsTiled {
			tileAlign = p.BytesInPixels(8 * 8)
		}
		alignedStart = p.Addr + alignDown(iv.Start-p.Addr, tileAlign)
		alignedEnd = p.Addr + alignUp(iv.End-p.Addr, tileAlign)

		params.Addr = alignedStart
		params.Width = p.PixelsInBytes(alignedEnd-alignedStart) / tiled
		params.Stride = params.Width
		params.Height = tiled
	}
	params.UpdateParams()
	return params
}

// SubRectInterval returns the memory interval covered by rect within p.
func (p SurfaceParams) SubRectInterval(rect Rect) interval.Interval {
	if rect.Height() == 0 || rect.Width() == 0 {
		return interval.Interval{}
	}

	if p.IsTiled {
		rect.Left = alignDown(rect.Left, 8) * 8
		rect.Bottom = alignDown(rect.Bottom, 8) / 8
		rect.Right = alignUp(rect.Right, 8) * 8
		rect.Top = alignUp(rect.Top, 8) / 8
	}

	strideTiled := p.Stride
	if p.IsTiled {
		strideTiled = p.Stride * 8
	}
	pixels := (rect.Height()-1)*strideTiled + rect.Width()
	var rowOffset uint32
	if !p.IsTiled {
		rowOffset = rect.Bottom
	} else {
		rowOffset = p.Height/8 - rect.Top
	}
	pixelOffset := strideTiled*rowOffset + rect.Left

	return interval.New(p.Addr+p.BytesInPixels(pixelOffset), p.Addr+p.BytesInPixels(pixelOffset+pixels))
}
