package video_test

import (
	"testing"

	"glint/hw/gpu"
	"glint/video"
	"glint/video/swrender"
)

// countingRuntime observes cube face copies.
type countingRuntime struct {
	*swrender.Runtime
	cubeCopies int
}

func (c *countingRuntime) CopyToCube(src *video.Surface, cube *video.CachedTextureCube, copyOp video.TextureCopy) bool {
	c.cubeCopies++
	return c.Runtime.CopyToCube(src, cube, copyOp)
}

func TestTextureSurfaceMips(t *testing.T) {
	tc := newTestCache(t, 1)

	// A 16x16 I8 texture with one extra level stored right after it.
	base := vram + 0x70000
	tc.pokeGuest(base, 16*16+8*8)

	info := gpu.TextureInfo{
		PhysicalAddress: base,
		Width:           16,
		Height:          16,
		Format:          gpu.TexI8,
	}
	info.SetDefaultStride()

	surface := tc.cache.GetTextureSurface(info, 1)
	if surface == nil {
		t.Fatal("GetTextureSurface returned nil")
	}
	if surface.Levels != 2 {
		t.Errorf("levels = %d, want 2", surface.Levels)
	}

	watcher := surface.LevelWatchers[0]
	if watcher == nil || !watcher.IsValid() {
		t.Fatal("level 1 watcher not valid after fetch")
	}
	level := watcher.Get()
	if level == nil || level.Addr != base+16*16 {
		t.Fatalf("level surface at %#x, want %#x", level.Addr, base+16*16)
	}

	// A second fetch reuses the validated level.
	again := tc.cache.GetTextureSurface(info, 1)
	if again != surface {
		t.Error("second fetch returned a different surface")
	}

	// Invalidating the level's memory invalidates its watcher.
	tc.cache.InvalidateRegion(base+16*16, 8*8, nil)
	if watcher.IsValid() {
		t.Error("watcher still valid after level invalidation")
	}
}

func TestTextureSurfaceRejects(t *testing.T) {
	tc := newTestCache(t, 1)

	// Mip chain bottoming out below 8 pixels.
	info := gpu.TextureInfo{
		PhysicalAddress: vram,
		Width:           16,
		Height:          16,
		Format:          gpu.TexI8,
	}
	info.SetDefaultStride()
	if s := tc.cache.GetTextureSurface(info, 2); s != nil {
		t.Error("accepted mip chain below 8 pixels")
	}

	// More levels than the guest can address.
	big := gpu.TextureInfo{
		PhysicalAddress: vram,
		Width:           2048,
		Height:          2048,
		Format:          gpu.TexI8,
	}
	big.SetDefaultStride()
	if s := tc.cache.GetTextureSurface(big, 8); s != nil {
		t.Error("accepted mipmap level 8")
	}
}

// S5: only faces whose watcher went stale are refreshed.
func TestTextureCubeRevalidation(t *testing.T) {
	memory := gpu.NewMemorySystem()
	runtime := &countingRuntime{Runtime: swrender.New()}
	cache := video.NewRasterizerCache(memory, runtime, 1)

	const faceSize = 8 * 8 * 4
	config := video.TextureCubeConfig{
		Width:  8,
		Format: gpu.TexRGBA8,
	}
	addrs := []*uint32{&config.PX, &config.NX, &config.PY, &config.NY, &config.PZ, &config.NZ}
	for i, p := range addrs {
		*p = vram + uint32(i)*faceSize
		mem := memory.PhysRef(*p)
		for j := 0; j < faceSize; j++ {
			mem[j] = byte(i + 1)
		}
	}

	cube := cache.GetTextureCube(config)
	if cube == nil {
		t.Fatal("GetTextureCube returned nil")
	}
	if runtime.cubeCopies != 6 {
		t.Fatalf("first fetch copied %d faces, want 6", runtime.cubeCopies)
	}

	// Touch one face's memory.
	cache.InvalidateRegion(config.PY, faceSize, nil)

	runtime.cubeCopies = 0
	cube2 := cache.GetTextureCube(config)
	if cube2 != cube {
		t.Error("second fetch returned a different cube")
	}
	if runtime.cubeCopies != 1 {
		t.Errorf("second fetch copied %d faces, want 1", runtime.cubeCopies)
	}

	// The refreshed face carries the face surface's texels.
	img := cube.Alloc.(*swrender.Image)
	if img.Layers != 6 {
		t.Fatalf("cube has %d layers, want 6", img.Layers)
	}
	if img.Data[2][0][0] != 3 {
		t.Errorf("face +y texel = %d, want 3", img.Data[2][0][0])
	}
}

func TestAccelerateDisplayTransfer(t *testing.T) {
	tc := newTestCache(t, 1)

	// Source: 64x64 tiled RGBA8 in guest memory.
	srcAddr := vram + 0x80000
	tc.pokeGuest(srcAddr, 64*64*4)

	config := gpu.DisplayTransferConfig{
		InputAddr:    srcAddr,
		OutputAddr:   vram + 0x90000,
		InputWidth:   64,
		OutputWidth:  64,
		OutputHeight: 64,
		InputFormat:  gpu.FbRGBA8,
		OutputFormat: gpu.FbRGBA8,
		InputLinear:  false, // tiled input
		DontSwizzle:  false, // linear output
	}
	if !tc.cache.AccelerateDisplayTransfer(config) {
		t.Fatal("AccelerateDisplayTransfer refused")
	}

	// The destination is dirty, flushing writes the transferred pixels.
	tc.cache.FlushRegion(vram+0x90000, 64*64*4, nil)
	mem := tc.memory.PhysRef(vram + 0x90000)
	allZero := true
	for _, b := range mem[:64*64*4] {
		if b != 0 {
			allZero = false
			break
		}
	}
	if allZero {
		t.Error("transfer destination flushed all zero")
	}
}

func TestAccelerateDisplayTransferNullInput(t *testing.T) {
	tc := newTestCache(t, 1)

	config := gpu.DisplayTransferConfig{
		InputAddr:    0,
		OutputAddr:   vram + 0x90000,
		InputWidth:   64,
		OutputWidth:  64,
		OutputHeight: 64,
		InputFormat:  gpu.FbRGBA8,
		OutputFormat: gpu.FbRGBA8,
	}
	if tc.cache.AccelerateDisplayTransfer(config) {
		t.Error("transfer with null input accepted")
	}
}

func TestAccelerateTextureCopy(t *testing.T) {
	tc := newTestCache(t, 1)

	// Source surface, validated from guest memory.
	srcAddr := vram + 0xA0000
	tc.pokeGuest(srcAddr, 64*64*4)
	params := tc.colorParams(srcAddr, 64, 64, true, 1)
	src := tc.cache.GetSurface(params, video.ScaleExact, true)
	if src == nil {
		t.Fatal("source surface missing")
	}

	config := gpu.DisplayTransferConfig{
		InputAddr:     srcAddr,
		OutputAddr:    vram + 0xB0000,
		IsTextureCopy: true,
		TextureCopy: gpu.TextureCopyConfig{
			Size: 64 * 64 * 4,
		},
	}
	if !tc.cache.AccelerateTextureCopy(config) {
		t.Fatal("AccelerateTextureCopy refused")
	}

	// Flush the destination and compare with the source bytes.
	tc.cache.FlushRegion(vram+0xB0000, 64*64*4, nil)
	srcBytes := tc.memory.PhysRef(srcAddr)[:64*64*4]
	dstBytes := tc.memory.PhysRef(vram + 0xB0000)[:64*64*4]
	for i := range srcBytes {
		if srcBytes[i] != dstBytes[i] {
			t.Fatalf("byte %d differs: src %#x dst %#x", i, srcBytes[i], dstBytes[i])
		}
	}
}

func TestGetFramebufferSurfaces(t *testing.T) {
	tc := newTestCache(t, 1)

	config := gpu.FramebufferConfig{
		Width:         64,
		Height:        64,
		ColorAddr:     vram + 0xC0000,
		ColorFormat:   gpu.ColorRGBA8,
		DepthAddr:     vram + 0xD0000,
		DepthFormat:   gpu.DepthD24S8,
		ViewportRight: 64,
		ViewportTop:   64,
	}

	fb := tc.cache.GetFramebufferSurfaces(true, true, config)
	if fb.Color == nil || fb.Depth == nil {
		t.Fatal("missing framebuffer surfaces")
	}
	if fb.Color.Type != video.SurfaceColor || fb.Depth.Type != video.SurfaceDepthStencil {
		t.Errorf("surface types = %v, %v", fb.Color.Type, fb.Depth.Type)
	}

	// Overlapping color and depth disables depth.
	config.DepthAddr = config.ColorAddr
	fb = tc.cache.GetFramebufferSurfaces(true, true, config)
	if fb.Depth != nil {
		t.Error("depth surface returned despite overlap")
	}
}
