// Package trace reads and writes GPU command traces as JSON lines. A trace
// captures the guest-visible operations the surface cache reacts to, so a
// session can be replayed offline against any runtime.
package trace

import (
	"bufio"
	"fmt"
	"io"

	"github.com/go-faster/jx"
)

// Op enumerates traceable guest operations.
type Op string

const (
	OpFill     Op = "fill"     // memory fill channel kick
	OpTransfer Op = "transfer" // display transfer
	OpTexCopy  Op = "texcopy"  // raw texture copy transfer
	OpWrite    Op = "write"    // CPU write to guest memory
	OpRead     Op = "read"     // CPU read from guest memory
	OpDraw     Op = "draw"     // draw call touching the bound framebuffer
	OpTexture  Op = "texture"  // texture unit fetch
)

// Command is one traced operation. Fields are a union over all ops, only
// the ones relevant to Op are meaningful.
type Command struct {
	Op Op

	// fill
	Start, End uint32
	Value      uint32
	FillWidth  uint32 // pattern width in bits: 16, 24 or 32

	// transfer / texcopy
	InputAddr, OutputAddr    uint32
	InputWidth               uint32
	OutputWidth              uint32
	OutputHeight             uint32
	InputFormat              uint32
	OutputFormat             uint32
	InputLinear, DontSwizzle bool
	VerticalFlip             bool
	Scaling                  uint32
	Size                     uint32
	InputGap, OutputGap      uint32

	// write / read
	Addr uint32
	Len  uint32
	Data []byte

	// draw
	Width, Height          uint32
	ColorAddr, DepthAddr   uint32
	ColorFormat            uint32
	DepthFormat            uint32
	UsingColor, UsingDepth bool

	// texture
	TexAddr   uint32
	TexWidth  uint32
	TexHeight uint32
	TexFormat uint32
	MaxLevel  uint32
}

// Reader decodes commands from a JSON-lines stream.
type Reader struct {
	sc   *bufio.Scanner
	line int
}

func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<16), 1<<22)
	return &Reader{sc: sc}
}

// Next returns the next command, io.EOF at end of stream.
func (r *Reader) Next() (Command, error) {
	for r.sc.Scan() {
		r.line++
		raw := r.sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		cmd, err := decodeCommand(raw)
		if err != nil {
			return Command{}, fmt.Errorf("trace line %d: %w", r.line, err)
		}
		return cmd, nil
	}
	if err := r.sc.Err(); err != nil {
		return Command{}, err
	}
	return Command{}, io.EOF
}

func decodeCommand(raw []byte) (Command, error) {
	var cmd Command
	d := jx.DecodeBytes(raw)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "op":
			var s string
			s, err = d.Str()
			cmd.Op = Op(s)
		case "start":
			cmd.Start, err = d.UInt32()
		case "end":
			cmd.End, err = d.UInt32()
		case "value":
			cmd.Value, err = d.UInt32()
		case "fill_width":
			cmd.FillWidth, err = d.UInt32()
		case "in_addr":
			cmd.InputAddr, err = d.UInt32()
		case "out_addr":
			cmd.OutputAddr, err = d.UInt32()
		case "in_width":
			cmd.InputWidth, err = d.UInt32()
		case "out_width":
			cmd.OutputWidth, err = d.UInt32()
		case "out_height":
			cmd.OutputHeight, err = d.UInt32()
		case "in_format":
			cmd.InputFormat, err = d.UInt32()
		case "out_format":
			cmd.OutputFormat, err = d.UInt32()
		case "in_linear":
			cmd.InputLinear, err = d.Bool()
		case "dont_swizzle":
			cmd.DontSwizzle, err = d.Bool()
		case "vflip":
			cmd.VerticalFlip, err = d.Bool()
		case "scaling":
			cmd.Scaling, err = d.UInt32()
		case "size":
			cmd.Size, err = d.UInt32()
		case "in_gap":
			cmd.InputGap, err = d.UInt32()
		case "out_gap":
			cmd.OutputGap, err = d.UInt32()
		case "addr":
			cmd.Addr, err = d.UInt32()
		case "len":
			cmd.Len, err = d.UInt32()
		case "data":
			cmd.Data, err = d.Base64()
		case "width":
			cmd.Width, err = d.UInt32()
		case "height":
			cmd.Height, err = d.UInt32()
		case "color_addr":
			cmd.ColorAddr, err = d.UInt32()
		case "depth_addr":
			cmd.DepthAddr, err = d.UInt32()
		case "color_format":
			cmd.ColorFormat, err = d.UInt32()
		case "depth_format":
			cmd.DepthFormat, err = d.UInt32()
		case "using_color":
			cmd.UsingColor, err = d.Bool()
		case "using_depth":
			cmd.UsingDepth, err = d.Bool()
		case "tex_addr":
			cmd.TexAddr, err = d.UInt32()
		case "tex_width":
			cmd.TexWidth, err = d.UInt32()
		case "tex_height":
			cmd.TexHeight, err = d.UInt32()
		case "tex_format":
			cmd.TexFormat, err = d.UInt32()
		case "max_level":
			cmd.MaxLevel, err = d.UInt32()
		default:
			return d.Skip()
		}
		return err
	})
	if err != nil {
		return Command{}, err
	}
	if cmd.Op == "" {
		return Command{}, fmt.Errorf("missing op field")
	}
	return cmd, nil
}

// Writer encodes commands to a JSON-lines stream.
type Writer struct {
	w   *bufio.Writer
	enc jx.Encoder
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (w *Writer) Write(cmd Command) error {
	e := &w.enc
	e.Reset()
	e.Obj(func(e *jx.Encoder) {
		e.Field("op", func(e *jx.Encoder) { e.Str(string(cmd.Op)) })
		switch cmd.Op {
		case OpFill:
			e.Field("start", func(e *jx.Encoder) { e.UInt32(cmd.Start) })
			e.Field("end", func(e *jx.Encoder) { e.UInt32(cmd.End) })
			e.Field("value", func(e *jx.Encoder) { e.UInt32(cmd.Value) })
			e.Field("fill_width", func(e *jx.Encoder) { e.UInt32(cmd.FillWidth) })
		case OpTransfer:
			e.Field("in_addr", func(e *jx.Encoder) { e.UInt32(cmd.InputAddr) })
			e.Field("out_addr", func(e *jx.Encoder) { e.UInt32(cmd.OutputAddr) })
			e.Field("in_width", func(e *jx.Encoder) { e.UInt32(cmd.InputWidth) })
			e.Field("out_width", func(e *jx.Encoder) { e.UInt32(cmd.OutputWidth) })
			e.Field("out_height", func(e *jx.Encoder) { e.UInt32(cmd.OutputHeight) })
			e.Field("in_format", func(e *jx.Encoder) { e.UInt32(cmd.InputFormat) })
			e.Field("out_format", func(e *jx.Encoder) { e.UInt32(cmd.OutputFormat) })
			e.Field("in_linear", func(e *jx.Encoder) { e.Bool(cmd.InputLinear) })
			e.Field("dont_swizzle", func(e *jx.Encoder) { e.Bool(cmd.DontSwizzle) })
			e.Field("vflip", func(e *jx.Encoder) { e.Bool(cmd.VerticalFlip) })
			e.Field("scaling", func(e *jx.Encoder) { e.UInt32(cmd.Scaling) })
		case OpTexCopy:
			e.Field("in_addr", func(e *jx.Encoder) { e.UInt32(cmd.InputAddr) })
			e.Field("out_addr", func(e *jx.Encoder) { e.UInt32(cmd.OutputAddr) })
			e.Field("size", func(e *jx.Encoder) { e.UInt32(cmd.Size) })
			e.Field("in_width", func(e *jx.Encoder) { e.UInt32(cmd.InputWidth) })
			e.Field("in_gap", func(e *jx.Encoder) { e.UInt32(cmd.InputGap) })
			e.Field("out_width", func(e *jx.Encoder) { e.UInt32(cmd.OutputWidth) })
			e.Field("out_gap", func(e *jx.Encoder) { e.UInt32(cmd.OutputGap) })
		case OpWrite:
			e.Field("addr", func(e *jx.Encoder) { e.UInt32(cmd.Addr) })
			e.Field("len", func(e *jx.Encoder) { e.UInt32(cmd.Len) })
			if len(cmd.Data) > 0 {
				e.Field("data", func(e *jx.Encoder) { e.Base64(cmd.Data) })
			}
		case OpRead:
			e.Field("addr", func(e *jx.Encoder) { e.UInt32(cmd.Addr) })
			e.Field("len", func(e *jx.Encoder) { e.UInt32(cmd.Len) })
		case OpDraw:
			e.Field("width", func(e *jx.Encoder) { e.UInt32(cmd.Width) })
			e.Field("height", func(e *jx.Encoder) { e.UInt32(cmd.Height) })
			e.Field("color_addr", func(e *jx.Encoder) { e.UInt32(cmd.ColorAddr) })
			e.Field("depth_addr", func(e *jx.Encoder) { e.UInt32(cmd.DepthAddr) })
			e.Field("color_format", func(e *jx.Encoder) { e.UInt32(cmd.ColorFormat) })
			e.Field("depth_format", func(e *jx.Encoder) { e.UInt32(cmd.DepthFormat) })
			e.Field("using_color", func(e *jx.Encoder) { e.Bool(cmd.UsingColor) })
			e.Field("using_depth", func(e *jx.Encoder) { e.Bool(cmd.UsingDepth) })
		case OpTexture:
			e.Field("tex_addr", func(e *jx.Encoder) { e.UInt32(cmd.TexAddr) })
			e.Field("tex_width", func(e *jx.Encoder) { e.UInt32(cmd.TexWidth) })
			e.Field("tex_height", func(e *jx.Encoder) { e.UInt32(cmd.TexHeight) })
			e.Field("tex_format", func(e *jx.Encoder) { e.UInt32(cmd.TexFormat) })
			e.Field("max_level", func(e *jx.Encoder) { e.UInt32(cmd.MaxLevel) })
		}
	})
	if _, err := w.w.Write(e.Bytes()); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

func (w *Writer) Flush() error {
	return w.w.Flush()
}
