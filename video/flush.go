package video

import (
	"glint/emu/interval"
	"glint/hw/gpu"
)

// CopySurface validates copyIv of dst from src, either as a GPU clear (fill
// sources) or a rectangle blit. Callers have established CanCopy.
func (rc *RasterizerCache) CopySurface(src, dst *Surface, copyIv interval.Interval) {
	if src == dst {
		panic("video: copy surface onto itself")
	}
	subrect := dst.FromInterval(copyIv)
	if subrect.Interval() != copyIv {
		panic("video: copy interval not a rectangle of the destination")
	}

	if src.Type == SurfaceFill {
		// Cycle the pattern to the copy position to build one host pixel.
		fillOffset := (copyIv.Start - src.Addr) % src.FillSize
		var fillBuffer [4]byte
		pos := fillOffset
		for i := range fillBuffer {
			fillBuffer[i] = src.FillData[pos%src.FillSize]
			pos++
		}

		rc.runtime.ClearTexture(dst, TextureClear{
			TextureLevel: 0,
			TextureRect:  dst.ScaledSubRect(subrect),
			Value:        MakeClearValue(dst.Type, dst.PixelFormat, fillBuffer[:]),
		})
		return
	}

	if src.CanSubRect(subrect) {
		rc.runtime.BlitTextures(src, dst, TextureBlit{
			SrcRect: src.ScaledSubRect(subrect),
			DstRect: dst.ScaledSubRect(subrect),
		})
		return
	}

	panic("video: unreachable copy")
}

// FlushRegion writes every dirty byte range intersecting [addr, addr+size)
// back to guest memory. With restrictTo set only that surface's ranges are
// flushed. Small sizes widen to the whole dirty interval, they come from
// scalar CPU reads and more will follow.
func (rc *RasterizerCache) FlushRegion(addr, size uint32, restrictTo *Surface) {
	if size == 0 {
		return
	}

	flushIv := interval.New(addr, addr+size)
	var flushed interval.Set

	for _, span := range rc.dirtyRegions.Overlapping(flushIv) {
		iv := span.Iv.Intersect(flushIv)
		if size <= 8 {
			iv = span.Iv
		}
		surface := span.Val

		if restrictTo != nil && surface != restrictTo {
			continue
		}

		// Sanity check, this surface is the last one that marked this
		// region dirty.
		if !surface.IsRegionValid(iv) {
			panic("video: dirty region owner holds stale content")
		}

		if surface.Type == SurfaceFill {
			rc.downloadFillSurface(surface, iv)
		} else {
			rc.downloadSurface(surface, iv)
		}

		flushed.Add(iv)
	}

	for _, iv := range flushed.Spans() {
		rc.dirtyRegions.Sub(iv)
	}
}

// FlushAll writes every dirty range back to guest memory.
func (rc *RasterizerCache) FlushAll() {
	rc.FlushRegion(0, 0xFFFFFFFF, nil)
}

// InvalidateRegion marks [addr, addr+size) as rewritten by owner, or by the
// guest CPU when owner is nil. Every other overlapping surface goes stale
// there; fully stale surfaces are dropped.
func (rc *RasterizerCache) InvalidateRegion(addr, size uint32, owner *Surface) {
	if size == 0 {
		return
	}

	invalidIv := interval.New(addr, addr+size)

	if owner != nil {
		if owner.Type == SurfaceTexture {
			panic("video: texture surface as invalidation owner")
		}
		if addr < owner.Addr || addr+size > owner.End {
			panic("video: invalidation owner does not contain the region")
		}
		// Surfaces can't have a gap
		if owner.Width != owner.Stride {
			panic("video: invalidation owner with a stride gap")
		}
		owner.Invalid.Sub(invalidIv)
	}

	var overlapping []*Surface
	rc.surfaceCache.Overlapping(invalidIv, func(_ interval.Interval, s *Surface) bool {
		overlapping = append(overlapping, s)
		return true
	})
	for _, cached := range overlapping {
		if cached == owner {
			continue
		}

		// A small CPU write: remove the surface so the memory pages can be
		// unmarked and served directly again.
		if owner == nil && size <= 8 {
			rc.FlushRegion(cached.Addr, cached.Size, cached)
			rc.removeSurfaces[cached] = struct{}{}
			continue
		}

		cached.Invalid.Add(cached.Interval().Intersect(invalidIv))
		cached.InvalidateAllWatchers()

		// Nothing salvageable left, drop it to keep the indices small.
		if cached.IsFullyInvalid() {
			rc.removeSurfaces[cached] = struct{}{}
		}
	}

	if owner != nil {
		rc.dirtyRegions.Set(invalidIv, owner)
	} else {
		rc.dirtyRegions.Sub(invalidIv)
	}

	for remove := range rc.removeSurfaces {
		if remove == owner {
			// The owner was scheduled earlier, try to migrate its content
			// into an encompassing survivor before dropping it.
			expanded := rc.findMatch(MatchSubRect|MatchInvalid, owner.SurfaceParams, ScaleIgnore, interval.Interval{})
			if expanded == nil {
				panic("video: scheduled owner with no encompassing surface")
			}
			if expanded != owner && owner.Invalid.Difference(expanded.Invalid).Empty() {
				rc.DuplicateSurface(owner, expanded)
			} else {
				continue
			}
		}
		rc.UnregisterSurface(remove)
	}
	clear(rc.removeSurfaces)
}

// ClearAll drops every cached surface, optionally flushing dirty content to
// guest memory first.
func (rc *RasterizerCache) ClearAll(flush bool) {
	if flush {
		rc.FlushRegion(0, 0xFFFFFFFF, nil)
	}

	// Unmark every page with a positive refcount.
	pages := interval.New(0, (0xFFFFFFFF>>gpu.PageBits)+1)
	for _, span := range rc.cachedPages.Overlapping(pages) {
		startAddr := span.Iv.Start << gpu.PageBits
		sizeBytes := span.Iv.Len() << gpu.PageBits
		rc.memory.MarkRegionCached(startAddr, sizeBytes, false)
	}

	// Remove the whole cache without really looking at it.
	rc.cachedPages.Clear()
	rc.dirtyRegions.Clear()
	var all []*Surface
	rc.surfaceCache.Overlapping(interval.New(0, 0xFFFFFFFF), func(_ interval.Interval, s *Surface) bool {
		all = append(all, s)
		return true
	})
	for _, s := range all {
		s.Registered = false
		s.UnlinkAllWatchers()
		s.release()
	}
	rc.surfaceCache.Clear()
	clear(rc.textureCubes)
	clear(rc.removeSurfaces)
}

// clearSurfaces unregisters every surface and forgets the texture cubes.
func (rc *RasterizerCache) clearSurfaces() {
	var all []*Surface
	rc.surfaceCache.Overlapping(interval.New(0, 0xFFFFFFFF), func(_ interval.Interval, s *Surface) bool {
		all = append(all, s)
		return true
	})
	for _, s := range all {
		rc.UnregisterSurface(s)
	}
	rc.surfaceCache.Clear()
	clear(rc.textureCubes)
	clear(rc.removeSurfaces)
}
