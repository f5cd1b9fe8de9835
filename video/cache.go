package video

import (
	"glint/emu/interval"
	"glint/emu/log"
	"glint/hw/gpu"
)

// ScaleMatch controls how FindMatch treats resolution scale.
type ScaleMatch uint32

const (
	ScaleExact   ScaleMatch = iota // only accept the same res scale
	ScaleUpscale                   // accept the same or a higher scale than params
	ScaleIgnore                    // accept every scale
)

// MatchFlags select which surface relations FindMatch considers.
type MatchFlags uint32

const (
	// MatchInvalid admits surfaces whose queried range is stale, such
	// matches require validation before use.
	MatchInvalid MatchFlags = 1 << iota
	MatchExact              // surface matches the params exactly
	MatchSubRect            // surface encompasses the params
	MatchCopy               // surface can copy into the params
	MatchExpand             // surface can grow to cover the params
	MatchTexCopy            // surface can serve a raw byte copy
)

// RenderTargets are the surfaces bound by the last GetFramebufferSurfaces.
type RenderTargets struct {
	Color *Surface
	Depth *Surface
}

// Framebuffer is the color/depth pair handed to the rasterizer, with the
// viewport-clamped interval of each attachment.
type Framebuffer struct {
	Color *Surface
	Depth *Surface
	Rect  Rect

	ColorInterval interval.Interval
	DepthInterval interval.Interval
}

// RasterizerCache mirrors guest pixel memory into host textures. It is
// owned by the GPU thread, none of its methods may be called concurrently.
type RasterizerCache struct {
	memory  MemorySystem
	runtime TextureRuntime

	surfaceCache interval.MultiMap[*Surface]
	dirtyRegions interval.OwnerMap[*Surface]
	cachedPages  interval.CountMap

	removeSurfaces map[*Surface]struct{}
	textureCubes   map[TextureCubeConfig]*CachedTextureCube

	renderTargets RenderTargets

	resolutionScaleFactor uint16
	wantedScaleFactor     uint16
}

func NewRasterizerCache(memory MemorySystem, runtime TextureRuntime, scaleFactor uint16) *RasterizerCache {
	if scaleFactor == 0 {
		scaleFactor = 1
	}
	return &RasterizerCache{
		memory:                memory,
		runtime:               runtime,
		removeSurfaces:        make(map[*Surface]struct{}),
		textureCubes:          make(map[TextureCubeConfig]*CachedTextureCube),
		resolutionScaleFactor: scaleFactor,
		wantedScaleFactor:     scaleFactor,
	}
}

// SetResolutionScale requests a new output scale. The cache resets on the
// next GetFramebufferSurfaces.
func (rc *RasterizerCache) SetResolutionScale(scale uint16) {
	if scale == 0 {
		scale = 1
	}
	rc.wantedScaleFactor = scale
}

// findMatch returns the best surface intersecting params' interval under
// the given flags. Ties prefer higher res scale, then currently valid
// content, then the longest overlap.
func (rc *RasterizerCache) findMatch(flags MatchFlags, params SurfaceParams, matchScale ScaleMatch, validate interval.Interval) *Surface {
	var (
		match      *Surface
		matchValid bool
		matchRes   uint16
		matchIv    interval.Interval
	)

	rc.surfaceCache.Overlapping(params.Interval(), func(_ interval.Interval, surface *Surface) bool {
		resScaleMatched := params.ResScale <= surface.ResScale
		if matchScale == ScaleExact {
			resScaleMatched = params.ResScale == surface.ResScale
		}

		// Copy matches check validity themselves in CopyableInterval.
		isValid := true
		if flags&MatchCopy == 0 {
			checkIv := params.Interval()
			if !validate.Empty() {
				checkIv = validate
			}
			isValid = surface.IsRegionValid(checkIv)
		}
		if flags&MatchInvalid == 0 && !isValid {
			return true
		}

		tryMatch := func(flag MatchFlags, fn func() (bool, interval.Interval)) {
			if flags&flag == 0 {
				return
			}
			matched, iv := fn()
			if !matched {
				return
			}
			if !resScaleMatched && matchScale != ScaleIgnore && surface.Type != SurfaceFill {
				return
			}

			update := func() {
				match = surface
				matchValid = isValid
				matchRes = surface.ResScale
				matchIv = iv
			}
			if surface.ResScale > matchRes {
				update()
				return
			} else if surface.ResScale < matchRes {
				return
			}
			if isValid && !matchValid {
				update()
				return
			} else if isValid != matchValid {
				return
			}
			if iv.Len() > matchIv.Len() {
				update()
			}
		}

		tryMatch(MatchExact, func() (bool, interval.Interval) {
			return surface.ExactMatch(params), surface.Interval()
		})
		tryMatch(MatchSubRect, func() (bool, interval.Interval) {
			return surface.CanSubRect(params), surface.Interval()
		})
		tryMatch(MatchCopy, func() (bool, interval.Interval) {
			if validate.Empty() {
				panic("video: copy match requires a validate interval")
			}
			copyIv := surface.CopyableInterval(params.FromInterval(validate))
			matched := copyIv.Intersect(validate).Len() != 0 && surface.CanCopy(params, copyIv)
			return matched, copyIv
		})
		tryMatch(MatchExpand, func() (bool, interval.Interval) {
			return surface.CanExpand(params), surface.Interval()
		})
		tryMatch(MatchTexCopy, func() (bool, interval.Interval) {
			return surface.CanTexCopy(params), surface.Interval()
		})
		return true
	})

	return match
}

// GetSurface returns a surface exactly matching params, creating and
// registering one when missing. With load set the requested range is
// validated before returning.
func (rc *RasterizerCache) GetSurface(params SurfaceParams, matchScale ScaleMatch, load bool) *Surface {
	if params.Addr == 0 || params.Height*params.Width == 0 {
		return nil
	}
	// Use GetSurfaceSubRect instead
	if params.Width != params.Stride {
		panic("video: GetSurface params with a stride gap")
	}
	if params.IsTiled && (params.Width%8 != 0 || params.Height%8 != 0) {
		log.ModCache.ErrorZ("tiled surface dimensions not multiples of 8").
			Uint("width", uint64(params.Width)).
			Uint("height", uint64(params.Height)).
			End()
		return nil
	}

	surface := rc.findMatch(MatchExact|MatchInvalid, params, matchScale, interval.Interval{})

	if surface == nil {
		targetRes := params.ResScale
		if matchScale != ScaleExact {
			// This surface may be a part of another one with a higher res
			// scale, adopt it so the content stays sharp.
			findParams := params
			expandable := rc.findMatch(MatchExpand|MatchInvalid, findParams, matchScale, interval.Interval{})
			if expandable != nil && expandable.ResScale > targetRes {
				targetRes = expandable.ResScale
			}
			// Keep res scale when reinterpreting d24s8 -> rgba8
			if params.PixelFormat == PixelRGBA8 {
				findParams.PixelFormat = PixelD24S8
				expandable = rc.findMatch(MatchExpand|MatchInvalid, findParams, matchScale, interval.Interval{})
				if expandable != nil && expandable.ResScale > targetRes {
					targetRes = expandable.ResScale
				}
			}
		}
		newParams := params
		newParams.ResScale = targetRes
		surface = rc.CreateSurface(newParams)
		if surface == nil {
			return nil
		}
		rc.RegisterSurface(surface)
	}

	if load {
		rc.ValidateSurface(surface, params.Addr, params.Size)
	}
	return surface
}

// GetSurfaceSubRect returns a surface covering params and the host
// rectangle params occupies in it. Existing neighbors are expanded rather
// than shadowed.
func (rc *RasterizerCache) GetSurfaceSubRect(params SurfaceParams, matchScale ScaleMatch, load bool) (*Surface, Rect) {
	if params.Addr == 0 || params.Height*params.Width == 0 {
		return nil, Rect{}
	}

	surface := rc.findMatch(MatchSubRect|MatchInvalid, params, matchScale, interval.Interval{})

	// A miss with a lower-scale match present means the scale is the only
	// mismatch. Shadow the low-res surface with one at the requested scale
	// so later lookups prefer it.
	if surface == nil && matchScale != ScaleIgnore {
		lower := rc.findMatch(MatchSubRect|MatchInvalid, params, ScaleIgnore, interval.Interval{})
		if lower != nil {
			newParams := lower.SurfaceParams
			newParams.ResScale = params.ResScale
			surface = rc.CreateSurface(newParams)
			if surface == nil {
				return nil, Rect{}
			}
			rc.RegisterSurface(surface)
		}
	}

	aligned := params
	if params.IsTiled {
		aligned.Height = alignUp(params.Height, 8)
		aligned.Width = alignUp(params.Width, 8)
		aligned.Stride = alignUp(params.Stride, 8)
		aligned.UpdateParams()
	}

	// Check for a surface we can expand before creating a new one.
	if surface == nil {
		surface = rc.findMatch(MatchExpand|MatchInvalid, aligned, matchScale, interval.Interval{})
		if surface != nil {
			aligned.Width = aligned.Stride
			aligned.UpdateParams()

			newParams := surface.SurfaceParams
			newParams.Addr = min(aligned.Addr, surface.Addr)
			newParams.End = max(aligned.End, surface.End)
			newParams.Size = newParams.End - newParams.Addr
			rowBytes := aligned.BytesInPixels(aligned.Stride)
			if newParams.Size%rowBytes != 0 {
				panic("video: expanded surface does not cover whole rows")
			}
			newParams.Height = newParams.Size / rowBytes

			newSurface := rc.CreateSurface(newParams)
			if newSurface == nil {
				return nil, Rect{}
			}
			rc.DuplicateSurface(surface, newSurface)

			// The old surface may still be in use, defer its removal.
			surface.UnlinkAllWatchers()
			rc.removeSurfaces[surface] = struct{}{}

			surface = newSurface
			rc.RegisterSurface(newSurface)
		}
	}

	// No subrect found, create a new surface covering the whole rows.
	if surface == nil {
		newParams := aligned
		// Can't have gaps in a surface
		newParams.Width = aligned.Stride
		newParams.UpdateParams()
		surface = rc.GetSurface(newParams, matchScale, load)
		if surface == nil {
			return nil, Rect{}
		}
	} else if load {
		rc.ValidateSurface(surface, aligned.Addr, aligned.Size)
	}

	return surface, surface.ScaledSubRect(params)
}

// GetTextureSurface returns the surface for a sampled texture, keeping its
// mipmap chain in sync through the level watchers.
func (rc *RasterizerCache) GetTextureSurface(info gpu.TextureInfo, maxLevel uint32) *Surface {
	if info.PhysicalAddress == 0 {
		return nil
	}

	params := SurfaceParams{
		Addr:        info.PhysicalAddress,
		Width:       info.Width,
		Height:      info.Height,
		Levels:      maxLevel + 1,
		IsTiled:     true,
		PixelFormat: PixelFormatFromTextureFormat(info.Format),
		ResScale:    1,
	}
	if !rc.runtime.NullFilter() {
		params.ResScale = rc.resolutionScaleFactor
	}
	params.UpdateParams()

	minWidth := info.Width >> maxLevel
	minHeight := info.Height >> maxLevel
	if minWidth%8 != 0 || minHeight%8 != 0 {
		log.ModCache.ErrorZ("texture size not multiple of 8").
			Uint("width", uint64(minWidth)).
			Uint("height", uint64(minHeight)).
			End()
		return nil
	}
	if info.Width != minWidth<<maxLevel || info.Height != minHeight<<maxLevel {
		log.ModCache.ErrorZ("texture size does not support mipmap level").
			Uint("width", uint64(params.Width)).
			Uint("height", uint64(params.Height)).
			Uint("level", uint64(maxLevel)).
			End()
		return nil
	}

	surface := rc.GetSurface(params, ScaleIgnore, true)
	if surface == nil {
		return nil
	}

	if maxLevel != 0 {
		if maxLevel >= 8 {
			// The guest only supports texture sizes between 8 and 1024,
			// there are at most eight levels including the base.
			log.ModCache.ErrorZ("unsupported mipmap level").Uint("level", uint64(maxLevel)).End()
			return nil
		}

		// When a texture filter is active, regenerate instead of blitting.
		if !rc.runtime.NullFilter() {
			rc.runtime.GenerateMipmaps(surface, maxLevel)
		}

		// All mipmap levels are stored contiguously after the base.
		levelParams := surface.SurfaceParams
		for level := uint32(1); level <= maxLevel; level++ {
			levelParams.Addr += levelParams.BytesInPixels(levelParams.Width * levelParams.Height)
			levelParams.Width /= 2
			levelParams.Height /= 2
			levelParams.Stride = 0 // recomputed by UpdateParams
			levelParams.Levels = 1
			levelParams.UpdateParams()

			watcher := surface.LevelWatchers[level-1]
			if watcher == nil || watcher.Get() == nil {
				levelSurface := rc.GetSurface(levelParams, ScaleIgnore, true)
				if levelSurface != nil {
					watcher = levelSurface.CreateWatcher()
				} else {
					watcher = nil
				}
				surface.LevelWatchers[level-1] = watcher
			}

			if watcher != nil && !watcher.IsValid() {
				levelSurface := watcher.Get()
				if !levelSurface.Invalid.Empty() {
					rc.ValidateSurface(levelSurface, levelSurface.Addr, levelSurface.Size)
				}
				if rc.runtime.NullFilter() {
					rc.runtime.BlitTextures(levelSurface, surface, TextureBlit{
						SrcLevel: 0,
						DstLevel: level,
						SrcRect:  levelSurface.ScaledRect(),
						DstRect:  levelParams.ScaledRect(),
					})
				}
				watcher.Validate()
			}
		}
	}

	return surface
}

// GetTextureCube assembles a cube map from six cached face surfaces,
// refreshing only the faces whose watchers went stale.
func (rc *RasterizerCache) GetTextureCube(config TextureCubeConfig) *CachedTextureCube {
	cube := rc.textureCubes[config]
	if cube == nil {
		cube = &CachedTextureCube{ResScale: 1}
		rc.textureCubes[config] = cube
	}

	addresses := [6]uint32{config.PX, config.NX, config.PY, config.NY, config.PZ, config.NZ}

	for i, addr := range addresses {
		if cube.Faces[i] != nil && cube.Faces[i].Get() != nil {
			continue
		}
		info := gpu.TextureInfo{
			PhysicalAddress: addr,
			Width:           config.Width,
			Height:          config.Width,
			Format:          config.Format,
		}
		info.SetDefaultStride()
		surface := rc.GetTextureSurface(info, 0)
		if surface != nil {
			cube.Faces[i] = surface.CreateWatcher()
		} else {
			// An invalid face address, usually leftover texture unit state.
			// The face content is simply never updated.
			cube.Faces[i] = nil
		}
	}

	if cube.Alloc == nil {
		for _, face := range cube.Faces {
			if face != nil {
				cube.ResScale = max(cube.ResScale, face.Get().ResScale)
			}
		}

		width := uint32(cube.ResScale) * config.Width
		levels := uint32(1)
		for w := width; w > 1; w >>= 1 {
			levels++
		}
		cube.Alloc = rc.runtime.AllocateCube(width, levels, PixelFormatFromTextureFormat(config.Format))
		if cube.Alloc == nil {
			return nil
		}
	}

	scaledSize := uint32(cube.ResScale) * config.Width

	for i, face := range cube.Faces {
		if face == nil || face.IsValid() {
			continue
		}
		surface := face.Get()
		if !surface.Invalid.Empty() {
			rc.ValidateSurface(surface, surface.Addr, surface.Size)
		}
		rc.runtime.CopyToCube(surface, cube, TextureCopy{
			DstLayer: uint32(i),
			Extent:   Extent{Width: scaledSize, Height: scaledSize},
		})
		face.Validate()
	}

	return cube
}

// GetFramebufferSurfaces returns the color and depth surfaces for the bound
// framebuffer, validated over the viewport.
func (rc *RasterizerCache) GetFramebufferSurfaces(usingColor, usingDepth bool, config gpu.FramebufferConfig) Framebuffer {
	// A resolution scale change rebuilds the world.
	if rc.resolutionScaleFactor != rc.wantedScaleFactor {
		rc.resolutionScaleFactor = rc.wantedScaleFactor
		rc.FlushAll()
		rc.clearSurfaces()
	}

	fbWidth, fbHeight := int32(config.Width), int32(config.Height)
	clamp32 := func(v, lo, hi int32) uint32 {
		return uint32(min(max(v, lo), hi))
	}
	viewport := Rect{
		Left:   clamp32(config.ViewportLeft, 0, fbWidth),
		Top:    clamp32(config.ViewportTop, 0, fbHeight),
		Right:  clamp32(config.ViewportRight, 0, fbWidth),
		Bottom: clamp32(config.ViewportBottom, 0, fbHeight),
	}

	colorParams := SurfaceParams{
		IsTiled:  true,
		ResScale: rc.resolutionScaleFactor,
		Width:    config.Width,
		Height:   config.Height,
	}
	depthParams := colorParams

	colorParams.Addr = config.ColorAddr
	colorParams.PixelFormat = PixelFormatFromColorFormat(config.ColorFormat)
	colorParams.UpdateParams()

	depthParams.Addr = config.DepthAddr
	depthParams.PixelFormat = PixelFormatFromDepthFormat(config.DepthFormat)
	depthParams.UpdateParams()

	colorVp := colorParams.SubRectInterval(viewport)
	depthVp := depthParams.SubRectInterval(viewport)

	// Overlapping color and depth buffers are not supported.
	if usingColor && usingDepth && colorVp.Intersect(depthVp).Len() != 0 {
		log.ModCache.ErrorZ("color and depth framebuffer memory regions overlap").End()
		usingDepth = false
	}

	var (
		colorSurface, depthSurface *Surface
		colorRect, depthRect       Rect
	)
	if usingColor {
		colorSurface, colorRect = rc.GetSurfaceSubRect(colorParams, ScaleExact, false)
	}
	if usingDepth {
		depthSurface, depthRect = rc.GetSurfaceSubRect(depthParams, ScaleExact, false)
	}

	var fbRect Rect
	switch {
	case colorSurface != nil && depthSurface != nil:
		fbRect = colorRect
		// Color and depth surfaces must have the same dimensions and offsets
		if colorRect != depthRect {
			colorSurface = rc.GetSurface(colorParams, ScaleExact, false)
			depthSurface = rc.GetSurface(depthParams, ScaleExact, false)
			fbRect = colorSurface.ScaledRect()
		}
	case colorSurface != nil:
		fbRect = colorRect
	case depthSurface != nil:
		fbRect = depthRect
	}

	if colorSurface != nil {
		rc.ValidateSurface(colorSurface, colorVp.Start, colorVp.Len())
		colorSurface.InvalidateAllWatchers()
	}
	if depthSurface != nil {
		rc.ValidateSurface(depthSurface, depthVp.Start, depthVp.Len())
		depthSurface.InvalidateAllWatchers()
	}

	rc.renderTargets = RenderTargets{Color: colorSurface, Depth: depthSurface}
	return Framebuffer{
		Color:         colorSurface,
		Depth:         depthSurface,
		Rect:          fbRect,
		ColorInterval: colorVp,
		DepthInterval: depthVp,
	}
}

// InvalidateFramebuffer marks the framebuffer attachments as written by
// their surfaces after a draw.
func (rc *RasterizerCache) InvalidateFramebuffer(fb Framebuffer) {
	if fb.Color != nil && rc.renderTargets.Color != nil {
		iv := fb.ColorInterval
		rc.InvalidateRegion(iv.Start, iv.Len(), rc.renderTargets.Color)
	}
	if fb.Depth != nil && rc.renderTargets.Depth != nil {
		iv := fb.DepthInterval
		rc.InvalidateRegion(iv.Start, iv.Len(), rc.renderTargets.Depth)
	}
}

// GetTexCopySurface finds a surface able to serve a raw byte copy and the
// host rectangle the copy reads.
func (rc *RasterizerCache) GetTexCopySurface(params SurfaceParams) (*Surface, Rect) {
	match := rc.findMatch(MatchTexCopy|MatchInvalid, params, ScaleIgnore, interval.Interval{})
	if match == nil {
		return nil, Rect{}
	}

	rc.ValidateSurface(match, params.Addr, params.Size)

	var subrect SurfaceParams
	if params.Width != params.Stride {
		tiled := uint32(1)
		if match.IsTiled {
			tiled = 8
		}
		subrect = params
		subrect.Width = match.PixelsInBytes(params.Width) / tiled
		subrect.Stride = match.PixelsInBytes(params.Stride) / tiled
		subrect.Height *= tiled
	} else {
		subrect = match.FromInterval(params.Interval())
		if subrect.Interval() != params.Interval() {
			panic("video: texcopy interval not a rectangle of the matched surface")
		}
	}

	return match, match.ScaledSubRect(subrect)
}

// DuplicateSurface copies src's content and dirty ownership into dst,
// which must fully contain it.
func (rc *RasterizerCache) DuplicateSurface(src, dst *Surface) {
	if dst.Addr > src.Addr || dst.End < src.End {
		panic("video: duplicate destination does not contain source")
	}

	srcRect := src.ScaledRect()
	dstRect := dst.ScaledSubRect(src.SurfaceParams)
	if srcRect.Width() != dstRect.Width() {
		panic("video: duplicate rectangles disagree")
	}

	rc.runtime.CopyTextures(src, dst, TextureCopy{
		SrcOffset: Offset{X: srcRect.Left, Y: srcRect.Bottom},
		DstOffset: Offset{X: dstRect.Left, Y: dstRect.Bottom},
		Extent:    Extent{Width: srcRect.Width(), Height: srcRect.Height()},
	})

	dst.Invalid.Sub(src.Interval())
	dst.Invalid.AddSet(src.Invalid)

	var regions interval.Set
	for _, span := range rc.dirtyRegions.Overlapping(src.Interval()) {
		if span.Val == src {
			regions.Add(span.Iv)
		}
	}
	for _, iv := range regions.Spans() {
		rc.dirtyRegions.Set(iv, dst)
	}
}

// CreateSurface builds an unregistered, fully invalid surface. Fill
// surfaces carry no host texture.
func (rc *RasterizerCache) CreateSurface(params SurfaceParams) *Surface {
	surface := newSurface(rc.runtime, params)
	if params.Type != SurfaceFill {
		surface.Alloc = rc.runtime.Allocate(params)
		if surface.Alloc == nil {
			log.ModCache.ErrorZ("host texture allocation refused").
				Stringer("format", params.PixelFormat).
				Uint("width", uint64(params.Width)).
				Uint("height", uint64(params.Height)).
				End()
			return nil
		}
	}
	surface.Invalid.Add(surface.Interval())
	return surface
}

// RegisterSurface adds the surface to the interval indices.
func (rc *RasterizerCache) RegisterSurface(surface *Surface) {
	if surface.Registered {
		return
	}
	surface.Registered = true
	rc.surfaceCache.Add(surface.Interval(), surface)
	rc.updatePagesCachedCount(surface.Addr, surface.Size, 1)
}

// UnregisterSurface removes the surface from the indices and releases its
// host texture once dropped.
func (rc *RasterizerCache) UnregisterSurface(surface *Surface) {
	if !surface.Registered {
		return
	}
	surface.Registered = false
	rc.updatePagesCachedCount(surface.Addr, surface.Size, -1)
	rc.surfaceCache.Remove(surface.Interval(), surface)
	surface.UnlinkAllWatchers()
	surface.release()
}

// updatePagesCachedCount tracks how many surfaces cover each guest page and
// tells the memory system when a page first becomes cached or uncached.
func (rc *RasterizerCache) updatePagesCachedCount(addr, size uint32, delta int) {
	pageStart := addr >> gpu.PageBits
	pageEnd := (addr+size-1)>>gpu.PageBits + 1
	pages := interval.New(pageStart, pageEnd)

	// The map erases zero-count segments, so negative deltas are applied
	// after observing the transition.
	if delta > 0 {
		rc.cachedPages.Add(pages, delta)
	}

	for _, span := range rc.cachedPages.Overlapping(pages) {
		startAddr := span.Iv.Start << gpu.PageBits
		sizeBytes := span.Iv.Len() << gpu.PageBits

		if delta > 0 && span.Count == delta {
			rc.memory.MarkRegionCached(startAddr, sizeBytes, true)
		} else if delta < 0 && span.Count == -delta {
			rc.memory.MarkRegionCached(startAddr, sizeBytes, false)
		} else if span.Count < 0 {
			panic("video: negative page refcount")
		}
	}

	if delta < 0 {
		rc.cachedPages.Add(pages, delta)
	}
}
