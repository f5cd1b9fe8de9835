package video

import (
	"glint/hw/gpu"
)

// MemorySystem is the slice of guest memory the cache needs: physical
// address translation and cached-region marking. *gpu.MemorySystem is the
// canonical implementation.
type MemorySystem interface {
	// PhysRef translates a physical address to host memory, returning a
	// slice that extends to the end of the containing region, or nil when
	// the address is unmapped.
	PhysRef(addr uint32) []byte

	// MarkRegionCached flags or unflags a region as mirrored by the
	// rasterizer.
	MarkRegionCached(addr, size uint32, cached bool)
}

var _ MemorySystem = (*gpu.MemorySystem)(nil)

// FormatTuple identifies a host texture format. The meaning of the fields
// belongs to the backend (for OpenGL: internal format, format, type).
type FormatTuple struct {
	Internal uint32
	Format   uint32
	Type     uint32
}

// HostTextureTag keys the texture recycler. Dimensions are host (scaled)
// texels.
type HostTextureTag struct {
	Tuple  FormatTuple
	Type   TextureType
	Width  uint32
	Height uint32
	Levels uint32
}

// Allocation is an opaque host texture owned by a TextureRuntime. Backends
// type-assert their own concrete allocation in the runtime entry points.
type Allocation interface {
	// Matches reports whether the allocation can be reused for a texture
	// with the given scaled dimensions and format.
	Matches(tag HostTextureTag) bool
}

// StagingData is a byte span for pixel uploads and downloads, valid until
// the next FindStaging call.
type StagingData struct {
	Size   uint32
	Mapped []byte
}

// ClearValue carries a clear both as normalized components (for GPU clears)
// and as the raw guest pixel pattern (for byte-exact software clears).
type ClearValue struct {
	Color   [4]float32
	Depth   float32
	Stencil uint8
	Raw     [4]byte
	RawLen  uint32
}

type Offset struct {
	X, Y uint32
}

type Extent struct {
	Width, Height uint32
}

// BufferTextureCopy describes a staging<->texture transfer.
type BufferTextureCopy struct {
	BufferOffset uint32
	BufferSize   uint32
	TextureRect  Rect
	TextureLevel uint32
}

// TextureClear is a scissored clear of one level.
type TextureClear struct {
	TextureLevel uint32
	TextureRect  Rect
	Value        ClearValue
}

// TextureCopy is an unscaled subimage copy.
type TextureCopy struct {
	SrcLevel, DstLevel uint32
	SrcLayer, DstLayer uint32
	SrcOffset          Offset
	DstOffset          Offset
	Extent             Extent
}

// TextureBlit is a possibly scaling rectangle blit.
type TextureBlit struct {
	SrcLevel, DstLevel uint32
	SrcLayer, DstLayer uint32
	SrcRect            Rect
	DstRect            Rect
}

// Reinterpreter re-reads one surface's host texels as pixels of another
// format, on the GPU.
type Reinterpreter interface {
	SourceFormat() PixelFormat
	Reinterpret(src *Surface, srcRect Rect, dst *Surface, dstRect Rect)
}

// TextureRuntime is the host graphics backend as the cache sees it:
// allocation with recycling, staging memory, and the GPU-side operations
// used for validation and accelerated paths. All operations are synchronous
// from the cache's point of view.
type TextureRuntime interface {
	// FindStaging returns a staging span of at least size bytes. Only one
	// staging span is live at a time.
	FindStaging(size uint32, upload bool) StagingData

	// FormatTuple maps a guest pixel format to the backend host format.
	FormatTuple(format PixelFormat) FormatTuple

	// Allocate returns a host texture for the given surface description,
	// recycled when an allocation with the same tag is available. Returns
	// nil when the backend refuses the allocation.
	Allocate(params SurfaceParams) Allocation

	// AllocateCube returns a cube map texture of scaled size width with the
	// given level count.
	AllocateCube(width, levels uint32, format PixelFormat) Allocation

	// Recycle takes back ownership of alloc for later reuse.
	Recycle(tag HostTextureTag, alloc Allocation)

	// Upload copies staging bytes into the rectangle of the surface.
	Upload(surface *Surface, upload BufferTextureCopy, staging StagingData)

	// Download reads the rectangle of the surface into staging bytes,
	// downsampling through an unscaled intermediate when the surface is
	// resolution scaled.
	Download(surface *Surface, download BufferTextureCopy, staging StagingData)

	// ClearTexture fills the rectangle with the clear value.
	ClearTexture(surface *Surface, clear TextureClear)

	// CopyTextures copies texels between two surfaces.
	CopyTextures(src, dst *Surface, copy TextureCopy) bool

	// CopyToCube copies a surface into one face (DstLayer) of a cube.
	CopyToCube(src *Surface, cube *CachedTextureCube, copy TextureCopy) bool

	// BlitTextures stretches src rect onto dst rect. Depth formats use
	// nearest filtering.
	BlitTextures(src, dst *Surface, blit TextureBlit) bool

	// GenerateMipmaps fills levels 1..maxLevel from level 0.
	GenerateMipmaps(surface *Surface, maxLevel uint32)

	// Reinterpreters lists the format reinterpreters producing dst.
	Reinterpreters(dst PixelFormat) []Reinterpreter

	// NullFilter reports whether no texture filter is active, in which case
	// mip levels are blitted individually instead of generated.
	NullFilter() bool
}

// TextureCubeConfig keys the texture cube cache.
type TextureCubeConfig struct {
	PX, NX uint32
	PY, NY uint32
	PZ, NZ uint32
	Width  uint32
	Format gpu.TextureFormat
}

// CachedTextureCube is a cube map assembled from six cached 2-D surfaces.
type CachedTextureCube struct {
	Alloc    Allocation
	ResScale uint16
	Faces    [6]*SurfaceWatcher
}
