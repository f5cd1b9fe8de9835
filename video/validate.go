package video

import (
	"glint/emu/interval"
	"glint/emu/log"
)

// allFormats are the candidates scanned when probing for a missing
// reinterpreter.
var allFormats = [...]PixelFormat{
	PixelRGBA8, PixelRGB8, PixelRGB5A1, PixelRGB565, PixelRGBA4, PixelIA8,
	PixelRG8, PixelI8, PixelA8, PixelIA4, PixelI4, PixelA4, PixelETC1,
	PixelETC1A4, PixelD16, PixelD24, PixelD24S8,
}

// ValidateSurface brings [addr, addr+size) of the surface's host texture up
// to date, preferring GPU copies from overlapping surfaces, then format
// reinterpretation, then upload from guest memory.
func (rc *RasterizerCache) ValidateSurface(surface *Surface, addr, size uint32) {
	if size == 0 {
		return
	}

	validateIv := interval.New(addr, addr+size)

	if surface.Type == SurfaceFill {
		// Sanity check, fill surfaces are always valid when used
		if !surface.IsRegionValid(validateIv) {
			panic("video: fill surface with invalid regions")
		}
		return
	}

	validateRegions := surface.Invalid.Intersection(validateIv)
	notifyValidated := func(iv interval.Interval) {
		surface.Invalid.Sub(iv)
		validateRegions.Sub(iv)
	}

	for !validateRegions.Empty() {
		iv := validateRegions.Spans()[0].Intersect(validateIv)
		params := surface.FromInterval(iv)

		// Look for a valid surface to copy from.
		if copySurface := rc.findMatch(MatchCopy, params, ScaleIgnore, iv); copySurface != nil {
			copyIv := copySurface.CopyableInterval(params)
			rc.CopySurface(copySurface, surface, copyIv)
			notifyValidated(copyIv)
			continue
		}

		// Try to find a surface with a different format that can be
		// reinterpreted into ours.
		if rc.validateByReinterpretation(surface, params, iv) {
			notifyValidated(iv)
			continue
		}

		if rc.noUnimplementedReinterpretations(surface, params, iv) &&
			!rc.intervalHasInvalidPixelFormat(iv) {
			// No surface with a matching bit width exists anywhere. If the
			// region was created entirely on the GPU, reading guest memory
			// would replace it with garbage, skip instead.
			if rc.dirtyRegions.Contains(iv) {
				log.ModCache.DebugZ("region created on GPU with no reinterpreter, skipping validation").
					Hex32("start", iv.Start).
					Hex32("end", iv.End).
					End()
				validateRegions.Sub(iv)
				continue
			}
		}

		// Load data from guest memory.
		rc.FlushRegion(params.Addr, params.Size, nil)
		if !rc.uploadSurface(surface, iv) {
			// No codec or no backing memory: leave the range invalid, a
			// later attempt may fare better.
			validateRegions.Sub(iv)
			continue
		}
		notifyValidated(params.Interval())
	}
}

// uploadSurface decodes the guest bytes of interval into the surface's host
// texture. It reports false when the bytes could not be decoded, leaving
// both the texture and the validity tracking untouched.
func (rc *RasterizerCache) uploadSurface(surface *Surface, iv interval.Interval) bool {
	loadInfo := surface.FromInterval(iv)
	if loadInfo.Addr < surface.Addr || loadInfo.End > surface.End {
		panic("video: upload interval escapes surface")
	}

	staging := rc.runtime.FindStaging(loadInfo.Width*loadInfo.Height*surface.HostBytesPerPixel(), true)

	source := rc.memory.PhysRef(loadInfo.Addr)
	if source == nil {
		return false
	}
	length := loadInfo.End - loadInfo.Addr
	if uint32(len(source)) < length {
		return false
	}

	convert := needsConversion(rc.runtime, surface.PixelFormat)
	if !DecodeTexture(loadInfo, loadInfo.Addr, loadInfo.End, source[:length], staging.Mapped, convert) {
		return false
	}

	surface.Upload(BufferTextureCopy{
		BufferOffset: 0,
		BufferSize:   staging.Size,
		TextureRect:  surface.SubRect(loadInfo),
		TextureLevel: 0,
	}, staging)
	return true
}

// downloadSurface encodes the host texels of interval back to guest memory.
func (rc *RasterizerCache) downloadSurface(surface *Surface, iv interval.Interval) {
	flushInfo := surface.FromInterval(iv)
	if iv.Start < surface.Addr || iv.End > surface.End {
		panic("video: download interval escapes surface")
	}

	staging := rc.runtime.FindStaging(flushInfo.Width*flushInfo.Height*surface.HostBytesPerPixel(), false)

	surface.Download(BufferTextureCopy{
		BufferOffset: 0,
		BufferSize:   staging.Size,
		TextureRect:  surface.SubRect(flushInfo),
		TextureLevel: 0,
	}, staging)

	dest := rc.memory.PhysRef(iv.Start)
	if dest == nil {
		return
	}
	length := iv.Len()
	if uint32(len(dest)) < length {
		return
	}

	convert := needsConversion(rc.runtime, surface.PixelFormat)
	EncodeTexture(flushInfo, iv.Start, iv.End, staging.Mapped, dest[:length], convert)
}

// downloadFillSurface writes the fill pattern over interval in guest
// memory, in the pattern phase of the fill base address. Bytes outside the
// interval are not touched.
func (rc *RasterizerCache) downloadFillSurface(surface *Surface, iv interval.Interval) {
	if iv.Start < surface.Addr || iv.End > surface.End {
		panic("video: fill download interval escapes surface")
	}

	dest := rc.memory.PhysRef(iv.Start)
	if dest == nil {
		return
	}

	// The pattern repeats from the fill surface base, keep its phase when
	// the flushed range starts mid-pattern.
	phase := (iv.Start - surface.Addr) % surface.FillSize
	downloadSize := min(iv.Len(), uint32(len(dest)))
	for i := uint32(0); i < downloadSize; i++ {
		dest[i] = surface.FillData[(phase+i)%surface.FillSize]
	}
}

// noUnimplementedReinterpretations reports false when some surface with the
// same bit width overlaps the interval, meaning a reinterpreter is missing.
func (rc *RasterizerCache) noUnimplementedReinterpretations(surface *Surface, params SurfaceParams, iv interval.Interval) bool {
	implemented := true
	for _, format := range allFormats {
		if format.Bits() != surface.Bits() {
			continue
		}
		params.PixelFormat = format
		if rc.findMatch(MatchCopy, params, ScaleIgnore, iv) != nil {
			log.ModCache.WarnZ("missing pixel format reinterpreter").
				Stringer("src", format).
				Stringer("dst", surface.PixelFormat).
				End()
			implemented = false
		}
	}
	return implemented
}

// intervalHasInvalidPixelFormat reports whether a surface with an invalid
// pixel format overlaps the interval.
func (rc *RasterizerCache) intervalHasInvalidPixelFormat(iv interval.Interval) bool {
	found := false
	rc.surfaceCache.Overlapping(iv, func(_ interval.Interval, surface *Surface) bool {
		if surface.PixelFormat == PixelInvalid {
			log.ModCache.DebugZ("surface with invalid pixel format").Hex32("addr", surface.Addr).End()
			found = true
			return false
		}
		return true
	})
	return found
}

// validateByReinterpretation asks the runtime for reinterpreters targeting
// the surface's format and uses the first whose source format matches a
// copyable surface.
func (rc *RasterizerCache) validateByReinterpretation(surface *Surface, params SurfaceParams, iv interval.Interval) bool {
	for _, reinterpreter := range rc.runtime.Reinterpreters(surface.PixelFormat) {
		params.PixelFormat = reinterpreter.SourceFormat()
		src := rc.findMatch(MatchCopy, params, ScaleIgnore, iv)
		if src == nil {
			continue
		}
		reinterpretIv := src.CopyableInterval(params)
		reinterpretParams := surface.FromInterval(reinterpretIv)
		srcRect := src.ScaledSubRect(reinterpretParams)
		dstRect := surface.ScaledSubRect(reinterpretParams)
		reinterpreter.Reinterpret(src, srcRect, surface, dstRect)
		return true
	}
	return false
}

// needsConversion reports whether the backend wants the reordered byte
// layout for the format.
func needsConversion(runtime TextureRuntime, format PixelFormat) bool {
	type converter interface {
		NeedsConversion(format PixelFormat) bool
	}
	if c, ok := runtime.(converter); ok {
		return c.NeedsConversion(format)
	}
	return false
}
