package video

import (
	"testing"

	"glint/emu/interval"
)

func fillSurface(addr, end uint32, data [4]byte, size uint32) *Surface {
	s := newSurface(nil, SurfaceParams{
		Addr:        addr,
		End:         end,
		Size:        end - addr,
		Type:        SurfaceFill,
		PixelFormat: PixelInvalid,
		ResScale:    0xFFFF,
		Levels:      1,
	})
	s.FillData = data
	s.FillSize = size
	return s
}

func TestCanFill(t *testing.T) {
	dest := colorParams(0x18000000, 64, 64, false)

	fill := fillSurface(0x18000000, 0x18000000+64*64*4, [4]byte{1, 2, 3, 4}, 4)

	if !fill.CanFill(dest, dest.Interval()) {
		t.Error("4-byte pattern cannot fill an RGBA8 surface")
	}

	// Outside the fill range.
	if fill.CanFill(dest, interval.New(dest.Addr, dest.End+16)) {
		t.Error("fill accepted beyond its range")
	}

	// A 2-byte pattern fills RGBA8 only when it repeats per pixel.
	rep := fillSurface(dest.Addr, dest.End, [4]byte{5, 6, 5, 6}, 2)
	if !rep.CanFill(dest, dest.Interval()) {
		t.Error("repeating 2-byte pattern rejected for RGBA8")
	}
	odd := fillSurface(dest.Addr, dest.End, [4]byte{5, 6, 7, 8}, 2)
	if !odd.CanFill(dest, dest.Interval()) {
		// fill_test for a 2-byte pattern against 4-byte pixels is the
		// pattern doubled, which tiles evenly. Only the pixel boundary
		// alignment matters.
		t.Error("2-byte pattern rejected for RGBA8")
	}

	// 4-bit destinations also need nibble symmetry.
	i4 := colorParams(dest.Addr, 64, 64, true)
	i4.PixelFormat = PixelI4
	i4.UpdateParams()
	asym := fillSurface(i4.Addr, i4.End, [4]byte{0x12, 0x12, 0x12, 0x12}, 2)
	if asym.CanFill(i4, i4.Interval()) {
		t.Error("asymmetric nibble pattern accepted for a 4-bit surface")
	}
	sym := fillSurface(i4.Addr, i4.End, [4]byte{0x22, 0x22, 0x22, 0x22}, 2)
	if !sym.CanFill(i4, i4.Interval()) {
		t.Error("symmetric nibble pattern rejected for a 4-bit surface")
	}
}

func TestCopyableInterval(t *testing.T) {
	params := colorParams(0x18000000, 64, 64, false)
	s := newSurface(nil, params)

	// Fully invalid: nothing is copyable.
	s.Invalid.Add(s.Interval())
	if got := s.CopyableInterval(params); !got.Empty() {
		t.Errorf("copyable interval of invalid surface = %v", got)
	}

	// Valid except the first row: the copyable region is the rest.
	s.Invalid.Clear()
	s.Invalid.Add(interval.New(params.Addr, params.Addr+64*4))
	got := s.CopyableInterval(params)
	want := interval.New(params.Addr+64*4, params.End)
	if got != want {
		t.Errorf("copyable = [%#x, %#x), want [%#x, %#x)", got.Start, got.End, want.Start, want.End)
	}

	// A hole in the middle: the larger side wins.
	s.Invalid.Clear()
	s.Invalid.Add(interval.New(params.Addr+64*4*10, params.Addr+64*4*11))
	got = s.CopyableInterval(params)
	want = interval.New(params.Addr+64*4*11, params.End)
	if got != want {
		t.Errorf("copyable = [%#x, %#x), want [%#x, %#x)", got.Start, got.End, want.Start, want.End)
	}
}

func TestWatcherLifecycle(t *testing.T) {
	s := newSurface(nil, colorParams(0x18000000, 8, 8, false))

	w := s.CreateWatcher()
	if w.IsValid() {
		t.Error("fresh watcher is valid")
	}
	w.Validate()
	if !w.IsValid() {
		t.Error("validated watcher is not valid")
	}

	s.InvalidateAllWatchers()
	if w.IsValid() {
		t.Error("watcher survived invalidation")
	}

	w.Validate()
	s.UnlinkAllWatchers()
	if w.IsValid() || w.Get() != nil {
		t.Error("watcher survived unlinking")
	}
}
