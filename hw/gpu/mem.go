package gpu

import (
	"glint/emu/log"
)

// Page granularity of the rasterizer cached-region tracking.
const (
	PageBits = 12
	PageSize = 1 << PageBits
)

// Guest physical memory regions visible to the GPU.
const (
	VRAMBase  = 0x18000000
	VRAMSize  = 0x00600000
	FCRAMBase = 0x20000000
	FCRAMSize = 0x08000000
)

// MemorySystem is the guest physical address space as seen by the video
// core. Reads and writes go through PhysRef which returns a slice aliasing
// the backing storage from the given address to the end of its region.
type MemorySystem struct {
	vram  []byte
	fcram []byte

	// pages with a positive rasterizer refcount, keyed by page index
	cachedPages map[uint32]bool
}

func NewMemorySystem() *MemorySystem {
	return &MemorySystem{
		vram:        make([]byte, VRAMSize),
		fcram:       make([]byte, FCRAMSize),
		cachedPages: make(map[uint32]bool),
	}
}

// PhysRef translates a physical address to host memory. It returns nil when
// the address is unmapped. The returned slice extends to the end of the
// containing region.
func (m *MemorySystem) PhysRef(addr uint32) []byte {
	switch {
	case addr >= VRAMBase && addr < VRAMBase+VRAMSize:
		return m.vram[addr-VRAMBase:]
	case addr >= FCRAMBase && addr < FCRAMBase+FCRAMSize:
		return m.fcram[addr-FCRAMBase:]
	}
	log.ModMem.DebugZ("unmapped physical address").Hex32("addr", addr).End()
	return nil
}

// MarkRegionCached flags or unflags [addr, addr+size) as mirrored by the
// rasterizer, so guest-side writes get routed through cache invalidation.
func (m *MemorySystem) MarkRegionCached(addr, size uint32, cached bool) {
	if size == 0 {
		return
	}
	first := addr >> PageBits
	last := (addr + size - 1) >> PageBits
	for page := first; page <= last; page++ {
		if cached {
			m.cachedPages[page] = true
		} else {
			delete(m.cachedPages, page)
		}
	}
}

// IsRegionCached reports whether any page of [addr, addr+size) is marked.
func (m *MemorySystem) IsRegionCached(addr, size uint32) bool {
	if size == 0 {
		return false
	}
	first := addr >> PageBits
	last := (addr + size - 1) >> PageBits
	for page := first; page <= last; page++ {
		if m.cachedPages[page] {
			return true
		}
	}
	return false
}
