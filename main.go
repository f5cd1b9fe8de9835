package main

import (
	"fmt"
	"os"

	"glint/emu"
)

const version = "0.2.0"

func main() {
	cli := parseArgs(os.Args[1:])

	switch cli.mode {
	case versionMode:
		fmt.Println("glint", version)

	case infosMode:
		traceInfosMain(cli.TraceInfos)

	case replayMode:
		cfg := emu.LoadConfigOrDefault(cli.Replay.Config)
		if cli.Replay.Scale != 0 {
			cfg.Video.Scale = cli.Replay.Scale
		}
		replayMain(cli.Replay, cfg)
	}
}
