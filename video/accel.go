package video

import (
	"math"

	"glint/emu/log"
	"glint/hw/gpu"
)

// AccelerateFill registers a fill surface covering the fill range so later
// reads resolve to a GPU clear or a pattern writeback. Returns false when
// the config cannot be represented.
func (rc *RasterizerCache) AccelerateFill(config gpu.MemoryFillConfig) bool {
	fill := rc.GetFillSurface(config)
	if fill == nil {
		return false
	}
	rc.InvalidateRegion(fill.Addr, fill.Size, fill)
	return true
}

// GetFillSurface builds and registers the fill surface for a memory fill
// config.
func (rc *RasterizerCache) GetFillSurface(config gpu.MemoryFillConfig) *Surface {
	if config.Start == 0 || config.End <= config.Start {
		return nil
	}

	params := SurfaceParams{
		Addr:        config.Start,
		End:         config.End,
		Size:        config.End - config.Start,
		Type:        SurfaceFill,
		PixelFormat: PixelInvalid,
		ResScale:    math.MaxUint16,
		Levels:      1,
	}
	fill := newSurface(rc.runtime, params)
	fill.FillSize = config.FillSize()
	fill.FillData[0] = uint8(config.Value)
	fill.FillData[1] = uint8(config.Value >> 8)
	fill.FillData[2] = uint8(config.Value >> 16)
	fill.FillData[3] = uint8(config.Value >> 24)

	rc.RegisterSurface(fill)
	return fill
}

// AccelerateDisplayTransfer performs a display transfer (format convert,
// downscale, tiling change) entirely between cached surfaces.
func (rc *RasterizerCache) AccelerateDisplayTransfer(config gpu.DisplayTransferConfig) bool {
	srcParams := SurfaceParams{
		Addr:        config.InputAddr,
		Width:       config.OutputWidth,
		Stride:      config.InputWidth,
		Height:      config.OutputHeight,
		IsTiled:     !config.InputLinear,
		PixelFormat: PixelFormatFromFramebufferFormat(config.InputFormat),
	}
	srcParams.UpdateParams()

	dstParams := SurfaceParams{
		Addr:        config.OutputAddr,
		Width:       config.OutputWidth,
		Height:      config.OutputHeight,
		IsTiled:     config.InputLinear != config.DontSwizzle,
		PixelFormat: PixelFormatFromFramebufferFormat(config.OutputFormat),
	}
	if config.Scaling != gpu.NoScale {
		dstParams.Width /= 2
	}
	if config.Scaling == gpu.ScaleXY {
		dstParams.Height /= 2
	}
	dstParams.UpdateParams()

	srcSurface, srcRect := rc.GetSurfaceSubRect(srcParams, ScaleIgnore, true)
	if srcSurface == nil {
		return false
	}

	dstParams.ResScale = srcSurface.ResScale

	dstSurface, dstRect := rc.GetSurfaceSubRect(dstParams, ScaleUpscale, false)
	if dstSurface == nil {
		return false
	}

	if srcSurface.IsTiled != dstSurface.IsTiled {
		srcRect = srcRect.VFlip()
	}
	if config.VerticalFlip {
		srcRect = srcRect.VFlip()
	}
	if !CheckFormatsBlittable(srcSurface.PixelFormat, dstSurface.PixelFormat) {
		return false
	}

	rc.runtime.BlitTextures(srcSurface, dstSurface, TextureBlit{
		SrcRect: srcRect,
		DstRect: dstRect,
	})

	rc.InvalidateRegion(dstParams.Addr, dstParams.Size, dstSurface)
	return true
}

// AccelerateTextureCopy performs the raw byte copy flavor of a display
// transfer using cached surfaces, preserving gaps and strides at byte
// granularity.
func (rc *RasterizerCache) AccelerateTextureCopy(config gpu.DisplayTransferConfig) bool {
	copySize := alignDown(config.TextureCopy.Size, 16)
	if copySize == 0 {
		return false
	}

	inputGap := config.TextureCopy.InputGap * 16
	inputWidth := config.TextureCopy.InputWidth * 16
	if inputWidth == 0 && inputGap != 0 {
		return false
	}
	if inputGap == 0 || inputWidth >= copySize {
		inputWidth = copySize
		inputGap = 0
	}
	if copySize%inputWidth != 0 {
		return false
	}

	outputGap := config.TextureCopy.OutputGap * 16
	outputWidth := config.TextureCopy.OutputWidth * 16
	if outputWidth == 0 && outputGap != 0 {
		return false
	}
	if outputGap == 0 || outputWidth >= copySize {
		outputWidth = copySize
		outputGap = 0
	}
	if copySize%outputWidth != 0 {
		return false
	}

	// A byte-width surrogate surface: width and stride are byte counts.
	srcParams := SurfaceParams{
		Addr:   config.InputAddr,
		Stride: inputWidth + inputGap,
		Width:  inputWidth,
		Height: copySize / inputWidth,
	}
	srcParams.Size = (srcParams.Height-1)*srcParams.Stride + srcParams.Width
	srcParams.End = srcParams.Addr + srcParams.Size

	srcSurface, srcRect := rc.GetTexCopySurface(srcParams)
	if srcSurface == nil {
		return false
	}

	tiledShift := uint32(0)
	if srcSurface.IsTiled {
		tiledShift = 3
	}
	if outputGap != 0 {
		widthUnit := uint32(1)
		if srcSurface.IsTiled {
			widthUnit = 8
		}
		if outputWidth != srcSurface.BytesInPixels(srcRect.Width()/uint32(srcSurface.ResScale))*widthUnit ||
			outputGap%srcSurface.BytesInPixels(widthUnit*widthUnit) != 0 {
			return false
		}
	}

	dstParams := srcSurface.SurfaceParams
	dstParams.Addr = config.OutputAddr
	dstParams.Width = srcRect.Width() / uint32(srcSurface.ResScale)
	dstParams.Stride = dstParams.Width + srcSurface.PixelsInBytes(outputGap>>tiledShift)
	dstParams.Height = srcRect.Height() / uint32(srcSurface.ResScale)
	dstParams.ResScale = srcSurface.ResScale
	dstParams.Levels = 1
	dstParams.UpdateParams()

	// The gap bytes stay untouched, load them before invalidating.
	loadGap := outputGap != 0
	dstSurface, dstRect := rc.GetSurfaceSubRect(dstParams, ScaleUpscale, loadGap)
	if dstSurface == nil || dstSurface.Type == SurfaceTexture ||
		!CheckFormatsBlittable(srcSurface.PixelFormat, dstSurface.PixelFormat) {
		return false
	}

	if srcRect.Width() != dstRect.Width() {
		log.ModCache.WarnZ("texture copy rectangle width mismatch").
			Uint("src", uint64(srcRect.Width())).
			Uint("dst", uint64(dstRect.Width())).
			End()
		return false
	}

	rc.runtime.CopyTextures(srcSurface, dstSurface, TextureCopy{
		SrcOffset: Offset{X: srcRect.Left, Y: srcRect.Bottom},
		DstOffset: Offset{X: dstRect.Left, Y: dstRect.Bottom},
		Extent:    Extent{Width: srcRect.Width(), Height: srcRect.Height()},
	})

	rc.InvalidateRegion(dstParams.Addr, dstParams.Size, dstSurface)
	return true
}
