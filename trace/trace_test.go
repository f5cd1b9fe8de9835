package trace

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"glint/hw/gpu"
	"glint/video"
	"glint/video/swrender"
)

func TestWriteReadRoundTrip(t *testing.T) {
	commands := []Command{
		{Op: OpFill, Start: 0x18001000, End: 0x18002000, Value: 0xDEADBEEF, FillWidth: 32},
		{
			Op: OpTransfer, InputAddr: 0x18000000, OutputAddr: 0x18100000,
			InputWidth: 64, OutputWidth: 64, OutputHeight: 64,
			InputLinear: true, VerticalFlip: true, Scaling: 2,
		},
		{Op: OpTexCopy, InputAddr: 0x18000000, OutputAddr: 0x18200000, Size: 4096, InputWidth: 16, InputGap: 2},
		{Op: OpWrite, Addr: 0x18000010, Len: 4, Data: []byte{1, 2, 3, 4}},
		{Op: OpRead, Addr: 0x18000010, Len: 4},
		{
			Op: OpDraw, Width: 64, Height: 64,
			ColorAddr: 0x18000000, DepthAddr: 0x18010000,
			DepthFormat: uint32(gpu.DepthD24S8), UsingColor: true, UsingDepth: true,
		},
		{Op: OpTexture, TexAddr: 0x18020000, TexWidth: 32, TexHeight: 32, TexFormat: uint32(gpu.TexETC1), MaxLevel: 1},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf)
	for _, cmd := range commands {
		if err := w.Write(cmd); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	r := NewReader(&buf)
	var got []Command
	for {
		cmd, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		got = append(got, cmd)
	}

	if diff := cmp.Diff(commands, got); diff != "" {
		t.Errorf("commands mismatch (-want +got):\n%s", diff)
	}
}

func TestReaderRejectsGarbage(t *testing.T) {
	r := NewReader(strings.NewReader("{\"op\":\"fill\"}\nnot json\n"))

	if _, err := r.Next(); err != nil {
		t.Fatalf("first line: %v", err)
	}
	if _, err := r.Next(); err == nil {
		t.Error("garbage line accepted")
	}
}

func TestReaderMissingOp(t *testing.T) {
	r := NewReader(strings.NewReader("{\"addr\":16}\n"))
	if _, err := r.Next(); err == nil {
		t.Error("command without op accepted")
	}
}

func TestReplayFillAndRead(t *testing.T) {
	memory := gpu.NewMemorySystem()
	runtime := swrender.New()
	cache := video.NewRasterizerCache(memory, runtime, 1)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Write(Command{Op: OpFill, Start: 0x18001000, End: 0x18002000, Value: 0x01020304, FillWidth: 32})
	w.Write(Command{Op: OpRead, Addr: 0x18001000, Len: 0x1000})
	w.Flush()

	rp := &Replayer{Cache: cache, Memory: memory}
	if err := rp.Run(&buf); err != nil {
		t.Fatalf("replay: %v", err)
	}

	if rp.Stats.Commands != 2 || rp.Stats.Accelerated != 1 {
		t.Errorf("stats = %+v", rp.Stats)
	}

	mem := memory.PhysRef(0x18001000)
	want := []byte{0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(mem[:4], want) {
		t.Errorf("guest bytes = %x, want %x", mem[:4], want)
	}
}

func TestReplayDrawSequence(t *testing.T) {
	memory := gpu.NewMemorySystem()
	runtime := swrender.New()
	cache := video.NewRasterizerCache(memory, runtime, 1)

	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.Write(Command{
		Op: OpDraw, Width: 64, Height: 64,
		ColorAddr:  0x18000000,
		UsingColor: true,
	})
	w.Flush()

	frames := 0
	rp := &Replayer{
		Cache:  cache,
		Memory: memory,
		OnFrame: func(color *video.Surface) {
			frames++
			if color == nil {
				t.Error("draw produced no color surface")
			}
		},
	}
	if err := rp.Run(&buf); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if frames != 1 {
		t.Errorf("frames = %d, want 1", frames)
	}
}
