package gpu

import "testing"

func TestPhysRef(t *testing.T) {
	m := NewMemorySystem()

	tests := []struct {
		addr   uint32
		mapped bool
	}{
		{VRAMBase, true},
		{VRAMBase + VRAMSize - 1, true},
		{VRAMBase + VRAMSize, false},
		{FCRAMBase, true},
		{FCRAMBase + FCRAMSize, false},
		{0x1000, false},
	}
	for _, tt := range tests {
		got := m.PhysRef(tt.addr)
		if (got != nil) != tt.mapped {
			t.Errorf("PhysRef(%#x) mapped = %v, want %v", tt.addr, got != nil, tt.mapped)
		}
	}

	// Writes through the ref land in the region.
	ref := m.PhysRef(VRAMBase + 0x100)
	ref[0] = 0xAB
	if m.PhysRef(VRAMBase)[0x100] != 0xAB {
		t.Error("write through ref not visible from region base")
	}
}

func TestMarkRegionCached(t *testing.T) {
	m := NewMemorySystem()

	m.MarkRegionCached(VRAMBase+10, 2*PageSize, true)
	if !m.IsRegionCached(VRAMBase, 1) {
		t.Error("first page not marked")
	}
	if !m.IsRegionCached(VRAMBase+2*PageSize, 1) {
		t.Error("straddled page not marked")
	}
	if m.IsRegionCached(VRAMBase+3*PageSize, 1) {
		t.Error("page beyond the region marked")
	}

	m.MarkRegionCached(VRAMBase+10, 2*PageSize, false)
	if m.IsRegionCached(VRAMBase, 3*PageSize) {
		t.Error("pages still marked after unmark")
	}
}
