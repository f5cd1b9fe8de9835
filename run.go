package main

import (
	"fmt"
	"os"

	"github.com/veandco/go-sdl2/sdl"

	"glint/emu"
	"glint/hw/gpu"
	"glint/trace"
	"glint/video"
	"glint/video/glrender"
	"glint/video/swrender"
)

// replayMain runs a recorded GPU trace through a fresh cache, on the GL
// runtime with a window, or headless in software.
func replayMain(args Replay, cfg emu.Config) {
	f, err := os.Open(args.TracePath)
	checkf(err, "failed to open trace %s", args.TracePath)
	defer f.Close()

	memory := gpu.NewMemorySystem()

	if args.Headless || cfg.Video.Backend == emu.BackendSoftware {
		runtime := swrender.New()
		cache := video.NewRasterizerCache(memory, runtime, cfg.Video.Scale)
		defer cache.ClearAll(false)

		rp := &trace.Replayer{Cache: cache, Memory: memory}
		checkf(rp.Run(f), "replay failed")
		printStats(rp.Stats)
		return
	}

	win, err := glrender.NewWindow("glint", 400*int32(cfg.Video.Scale), 240*int32(cfg.Video.Scale))
	checkf(err, "failed to open window")
	defer win.Close()

	runtime := glrender.New(false)
	defer runtime.Close()
	cache := video.NewRasterizerCache(memory, runtime, cfg.Video.Scale)
	defer cache.ClearAll(false)

	rp := &trace.Replayer{
		Cache:  cache,
		Memory: memory,
		OnFrame: func(color *video.Surface) {
			win.Present(color)
			for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
				if _, quit := event.(*sdl.QuitEvent); quit {
					os.Exit(0)
				}
			}
		},
	}
	checkf(rp.Run(f), "replay failed")
	printStats(rp.Stats)
}

func printStats(stats trace.Stats) {
	fmt.Printf("commands:    %d\n", stats.Commands)
	fmt.Printf("accelerated: %d\n", stats.Accelerated)
	fmt.Printf("fallbacks:   %d\n", stats.Fallbacks)
	fmt.Printf("draws:       %d\n", stats.Draws)
	fmt.Printf("textures:    %d\n", stats.Textures)
}

// traceInfosMain prints per-op counts of a trace.
func traceInfosMain(args TraceInfos) {
	f, err := os.Open(args.TracePath)
	checkf(err, "failed to open trace %s", args.TracePath)
	defer f.Close()

	counts := make(map[trace.Op]int)
	reader := trace.NewReader(f)
	total := 0
	for {
		cmd, err := reader.Next()
		if err != nil {
			break
		}
		counts[cmd.Op]++
		total++
	}

	fmt.Printf("%s: %d commands\n", args.TracePath, total)
	for _, op := range []trace.Op{
		trace.OpFill, trace.OpTransfer, trace.OpTexCopy,
		trace.OpWrite, trace.OpRead, trace.OpDraw, trace.OpTexture,
	} {
		if counts[op] > 0 {
			fmt.Printf("  %-9s %d\n", op, counts[op])
		}
	}
}
