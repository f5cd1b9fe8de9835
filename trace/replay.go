package trace

import (
	"io"

	"golang.org/x/sync/errgroup"

	"glint/emu/log"
	"glint/hw/gpu"
	"glint/video"
)

// Stats summarizes a replay.
type Stats struct {
	Commands    int
	Accelerated int // accelerate paths satisfied on the GPU
	Fallbacks   int // accelerate paths rejected by the cache
	Draws       int
	Textures    int
}

// Replayer drives a rasterizer cache from a command stream.
type Replayer struct {
	Cache  *video.RasterizerCache
	Memory *gpu.MemorySystem

	// OnFrame, when set, is called after every draw with the bound color
	// surface (possibly nil).
	OnFrame func(color *video.Surface)

	Stats Stats
}

// Run decodes commands from r and applies them in order. Decoding runs
// ahead in its own goroutine, the cache itself stays on the calling
// goroutine.
func (rp *Replayer) Run(r io.Reader) error {
	commands := make(chan Command, 256)

	var g errgroup.Group
	g.Go(func() error {
		defer close(commands)
		reader := NewReader(r)
		for {
			cmd, err := reader.Next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			commands <- cmd
		}
	})

	for cmd := range commands {
		rp.apply(cmd)
	}
	return g.Wait()
}

func (rp *Replayer) apply(cmd Command) {
	rp.Stats.Commands++

	switch cmd.Op {
	case OpFill:
		config := gpu.MemoryFillConfig{
			Start:  cmd.Start,
			End:    cmd.End,
			Value:  cmd.Value,
			Fill24: cmd.FillWidth == 24,
			Fill32: cmd.FillWidth == 32,
		}
		if rp.Cache.AccelerateFill(config) {
			rp.Stats.Accelerated++
		} else {
			rp.Stats.Fallbacks++
			rp.fillInMemory(config)
		}

	case OpTransfer:
		config := gpu.DisplayTransferConfig{
			InputAddr:    cmd.InputAddr,
			OutputAddr:   cmd.OutputAddr,
			InputWidth:   cmd.InputWidth,
			OutputWidth:  cmd.OutputWidth,
			OutputHeight: cmd.OutputHeight,
			InputFormat:  gpu.FramebufferFormat(cmd.InputFormat),
			OutputFormat: gpu.FramebufferFormat(cmd.OutputFormat),
			InputLinear:  cmd.InputLinear,
			DontSwizzle:  cmd.DontSwizzle,
			VerticalFlip: cmd.VerticalFlip,
			Scaling:      gpu.ScalingMode(cmd.Scaling),
		}
		if rp.Cache.AccelerateDisplayTransfer(config) {
			rp.Stats.Accelerated++
		} else {
			rp.Stats.Fallbacks++
		}

	case OpTexCopy:
		config := gpu.DisplayTransferConfig{
			InputAddr:     cmd.InputAddr,
			OutputAddr:    cmd.OutputAddr,
			IsTextureCopy: true,
			TextureCopy: gpu.TextureCopyConfig{
				Size:        cmd.Size,
				InputWidth:  cmd.InputWidth,
				InputGap:    cmd.InputGap,
				OutputWidth: cmd.OutputWidth,
				OutputGap:   cmd.OutputGap,
			},
		}
		if rp.Cache.AccelerateTextureCopy(config) {
			rp.Stats.Accelerated++
		} else {
			rp.Stats.Fallbacks++
		}

	case OpWrite:
		if mem := rp.Memory.PhysRef(cmd.Addr); mem != nil && len(cmd.Data) > 0 {
			copy(mem, cmd.Data)
		}
		rp.Cache.InvalidateRegion(cmd.Addr, cmd.Len, nil)

	case OpRead:
		rp.Cache.FlushRegion(cmd.Addr, cmd.Len, nil)

	case OpDraw:
		rp.Stats.Draws++
		fb := rp.Cache.GetFramebufferSurfaces(cmd.UsingColor, cmd.UsingDepth, gpu.FramebufferConfig{
			Width:         cmd.Width,
			Height:        cmd.Height,
			ColorAddr:     cmd.ColorAddr,
			DepthAddr:     cmd.DepthAddr,
			ColorFormat:   gpu.ColorFormat(cmd.ColorFormat),
			DepthFormat:   gpu.DepthFormat(cmd.DepthFormat),
			ViewportRight: int32(cmd.Width),
			ViewportTop:   int32(cmd.Height),
		})
		rp.Cache.InvalidateFramebuffer(fb)
		if rp.OnFrame != nil {
			rp.OnFrame(fb.Color)
		}

	case OpTexture:
		rp.Stats.Textures++
		info := gpu.TextureInfo{
			PhysicalAddress: cmd.TexAddr,
			Width:           cmd.TexWidth,
			Height:          cmd.TexHeight,
			Format:          gpu.TextureFormat(cmd.TexFormat),
		}
		info.SetDefaultStride()
		rp.Cache.GetTextureSurface(info, cmd.MaxLevel)

	default:
		log.ModTrace.WarnZ("unknown trace op").String("op", string(cmd.Op)).End()
	}
}

// fillInMemory is the slow path for fills the cache refused.
func (rp *Replayer) fillInMemory(config gpu.MemoryFillConfig) {
	mem := rp.Memory.PhysRef(config.Start)
	if mem == nil {
		return
	}
	size := min(config.End-config.Start, uint32(len(mem)))
	fillSize := config.FillSize()
	for i := uint32(0); i < size; i++ {
		mem[i] = uint8(config.Value >> (8 * (i % fillSize)))
	}
}
