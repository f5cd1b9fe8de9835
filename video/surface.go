package video

import (
	"bytes"

	"glint/emu/interval"
	"glint/emu/log"
)

// SurfaceWatcher notifies whether a cached surface has changed since the
// watcher was last validated. Surface collections (texture cubes, mipmap
// chains) cache one watcher per source surface. Neither side owns the
// other: the watcher's surface reference is severed when the surface is
// dropped from the cache.
type SurfaceWatcher struct {
	surface *Surface
	valid   bool
}

// IsValid reports whether the watched surface still exists and has not
// changed since Validate.
func (w *SurfaceWatcher) IsValid() bool {
	return w.surface != nil && w.valid
}

// Validate marks the watcher as having observed the current content.
func (w *SurfaceWatcher) Validate() {
	if w.surface == nil {
		panic("video: validating a watcher with no surface")
	}
	w.valid = true
}

// Get returns the watched surface, nil if it has been destroyed.
func (w *SurfaceWatcher) Get() *Surface {
	return w.surface
}

// Surface is a cached mirror: guest memory described by SurfaceParams plus
// a host texture. Invalid tracks the byte ranges whose host content is
// stale relative to guest memory, a fresh surface is fully invalid.
type Surface struct {
	SurfaceParams

	Alloc   Allocation
	Invalid interval.Set

	// Fill pattern, only for Type == SurfaceFill.
	FillSize uint32
	FillData [4]byte

	// LevelWatchers[i] watches the (i+1)-th level mipmap source surface.
	LevelWatchers [7]*SurfaceWatcher
	MaxLevel      uint32

	Registered bool

	runtime  TextureRuntime
	watchers []*SurfaceWatcher
}

func newSurface(runtime TextureRuntime, params SurfaceParams) *Surface {
	return &Surface{SurfaceParams: params, runtime: runtime}
}

// HostBytesPerPixel is the texel size of the host representation.
func (s *Surface) HostBytesPerPixel() uint32 {
	return s.PixelFormat.HostBytes()
}

func (s *Surface) IsRegionValid(iv interval.Interval) bool {
	return !s.Invalid.Overlaps(iv)
}

func (s *Surface) IsFullyInvalid() bool {
	return s.Invalid.Contains(s.Interval())
}

// CreateWatcher registers and returns a new watcher on s.
func (s *Surface) CreateWatcher() *SurfaceWatcher {
	w := &SurfaceWatcher{surface: s}
	s.watchers = append(s.watchers, w)
	return w
}

// InvalidateAllWatchers flags every watcher stale.
func (s *Surface) InvalidateAllWatchers() {
	for _, w := range s.watchers {
		w.valid = false
	}
}

// UnlinkAllWatchers severs every watcher, as if the surface were already
// destroyed.
func (s *Surface) UnlinkAllWatchers() {
	for _, w := range s.watchers {
		w.valid = false
		w.surface = nil
	}
	s.watchers = s.watchers[:0]
}

// release returns the host allocation to the runtime recycler.
func (s *Surface) release() {
	if s.Alloc == nil {
		return
	}
	tag := HostTextureTag{
		Tuple:  s.runtime.FormatTuple(s.PixelFormat),
		Type:   s.TextureType,
		Width:  s.ScaledWidth(),
		Height: s.ScaledHeight(),
		Levels: s.Levels,
	}
	s.runtime.Recycle(tag, s.Alloc)
	s.Alloc = nil
}

// Upload copies staging bytes to the rectangle of the host texture and
// invalidates all watchers.
func (s *Surface) Upload(upload BufferTextureCopy, staging StagingData) {
	if s.Stride*s.HostBytesPerPixel()%4 != 0 {
		log.ModVideo.ErrorZ("unaligned surface row for upload").
			Uint("stride", uint64(s.Stride)).
			Stringer("format", s.PixelFormat).
			End()
		return
	}
	s.runtime.Upload(s, upload, staging)
	s.InvalidateAllWatchers()
}

// Download reads the rectangle of the host texture back into staging.
func (s *Surface) Download(download BufferTextureCopy, staging StagingData) {
	if s.Stride*s.HostBytesPerPixel()%4 != 0 {
		log.ModVideo.ErrorZ("unaligned surface row for download").
			Uint("stride", uint64(s.Stride)).
			Stringer("format", s.PixelFormat).
			End()
		return
	}
	s.runtime.Download(s, download, staging)
}

// CanFill reports whether s (a fill surface) can fill fillIv of dest: the
// interval must lie inside the fill range, project to a rectangle of dest,
// and the pattern must tile dest's pixel size exactly (including nibble
// symmetry for 4-bit formats).
func (s *Surface) CanFill(dest SurfaceParams, fillIv interval.Interval) bool {
	if s.Type != SurfaceFill || !s.IsRegionValid(fillIv) ||
		fillIv.Start < s.Addr || fillIv.End > s.End {
		return false
	}
	if dest.FromInterval(fillIv).Interval() != fillIv {
		return false
	}
	if s.FillSize*8 == dest.Bits() {
		return true
	}

	// Check if the pattern repeats with dest's pixel period.
	destBytes := max(dest.Bits()/8, 1)
	fillTest := make([]byte, s.FillSize*destBytes)
	for i := uint32(0); i < destBytes; i++ {
		copy(fillTest[i*s.FillSize:], s.FillData[:s.FillSize])
	}
	for i := uint32(0); i < s.FillSize; i++ {
		if !bytes.Equal(fillTest[destBytes*i:destBytes*i+destBytes], fillTest[:destBytes]) {
			return false
		}
	}
	if dest.Bits() == 4 && fillTest[0]&0xF != fillTest[0]>>4 {
		return false
	}
	return true
}

// CanCopy reports whether s can validate copyIv of dest, either as a
// sub-rectangle blit or as a fill.
func (s *Surface) CanCopy(dest SurfaceParams, copyIv interval.Interval) bool {
	subrect := dest.FromInterval(copyIv)
	if subrect.Interval() != copyIv {
		panic("video: copy interval does not project to a rectangle")
	}
	if s.CanSubRect(subrect) {
		return true
	}
	return s.CanFill(dest, copyIv)
}

// CopyableInterval returns the largest sub-interval of params' range that
// is valid in s and projects to a rectangle of params.
func (s *Surface) CopyableInterval(params SurfaceParams) interval.Interval {
	var result interval.Interval

	tileAlign := params.BytesInPixels(1)
	if params.IsTiled {
		tileAlign = params.BytesInPixels(8 * 8)
	}

	valid := interval.NewSet(params.Interval().Intersect(s.Interval()))
	valid.SubSet(s.Invalid)

	for _, validIv := range valid.Spans() {
		aligned := interval.New(
			params.Addr+alignUp(validIv.Start-params.Addr, tileAlign),
			params.Addr+alignDown(validIv.End-params.Addr, tileAlign),
		)
		if tileAlign > validIv.Len() || aligned.Len() == 0 {
			continue
		}

		// Narrow to whole rows within the aligned range.
		strideBytes := params.BytesInPixels(params.Stride)
		if params.IsTiled {
			strideBytes *= 8
		}
		rectIv := interval.New(
			params.Addr+alignUp(aligned.Start-params.Addr, strideBytes),
			params.Addr+alignDown(aligned.End-params.Addr, strideBytes),
		)
		if rectIv.Start > rectIv.End {
			// 1 row
			rectIv = aligned
		} else if rectIv.Len() == 0 {
			// 2 rows that do not make a rectangle, take the larger one
			row1 := interval.New(aligned.Start, rectIv.Start)
			row2 := interval.New(rectIv.Start, aligned.End)
			if row1.Len() > row2.Len() {
				rectIv = row1
			} else {
				rectIv = row2
			}
		}

		if rectIv.Len() > result.Len() {
			result = rectIv
		}
	}
	return result
}
