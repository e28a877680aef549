package pluginhost

import (
	"context"
	"log/slog"
	"time"

	"github.com/tetratelabs/wazero/api"

	"github.com/goatkit/sourcehost/internal/postcard"
	"github.com/goatkit/sourcehost/pkg/source"
)

// buildEnv registers the env import namespace: the AssemblyScript abort
// hook, console-style logging, the busy-wait sleep, and the partial home
// result callback (spec §4.10, §6, §7).
func (inst *Instance) buildEnv(b *moduleBuilder) {
	b.reg("abort", inst.envAbort)
	b.reg("print", inst.envPrint)
	b.reg("sleep", inst.envSleep)
	b.reg("send_partial_result", inst.envSendPartialResult)
}

// buildAidoku registers the aidoku legacy namespace: object constructors
// kept for plugins built against the generic-descriptor convention (spec
// §4.2). All four are aliases of std's create_object constructor.
func (inst *Instance) buildAidoku(b *moduleBuilder) {
	b.reg("create_manga", inst.stdCreateObject)
	b.reg("create_manga_result", inst.stdCreateObject)
	b.reg("create_chapter", inst.stdCreateObject)
	b.reg("create_page", inst.stdCreateObject)
}

// abortString reads the AssemblyScript-conventioned message/file strings: a
// 32-bit little-endian length sits at ptr-4; when that length looks
// implausible we fall back to a single byte at ptr-4 (spec §6).
func (inst *Instance) abortString(ptr uint32) string {
	if ptr < 4 {
		return ""
	}
	lenBytes, ok := inst.readBytes(ptr-4, 4)
	length := uint32(0)
	if ok {
		length = uint32(lenBytes[0]) | uint32(lenBytes[1])<<8 | uint32(lenBytes[2])<<16 | uint32(lenBytes[3])<<24
	}
	if !ok || length > 1<<20 {
		b, ok := inst.readBytes(ptr-4, 1)
		if !ok {
			return ""
		}
		length = uint32(b[0])
	}
	s, _ := inst.readString(ptr, length)
	return s
}

// abortError is the fatal error raised across the host boundary by
// env.abort (spec §7: "the only import treated as fatal").
type abortError struct {
	Plugin        string
	Message, File string
	Line, Col     int32
}

func (e *abortError) Error() string {
	return "[" + e.Plugin + "] Abort: " + e.Message + " at " + e.File + ":" + itoa(int(e.Line)) + ":" + itoa(int(e.Col))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	if neg {
		buf = append([]byte{'-'}, buf...)
	}
	return string(buf)
}

func (inst *Instance) envAbort(ctx context.Context, mod api.Module, msgPtr, filePtr, line, col int32) {
	msg := inst.abortString(uint32(msgPtr))
	file := inst.abortString(uint32(filePtr))
	err := &abortError{Plugin: inst.Name, Message: msg, File: file, Line: line, Col: col}
	inst.logger.Error("plugin aborted", slog.String("message", msg), slog.String("file", file), slog.Int("line", int(line)), slog.Int("col", int(col)))
	panic(err)
}

func (inst *Instance) envPrint(ctx context.Context, mod api.Module, ptr, length uint32) {
	s, ok := inst.readString(ptr, length)
	if !ok {
		return
	}
	inst.logbuf.Append(s)
	inst.logger.Info("plugin log", slog.String("message", s))
}

// envSleep busy-waits for ms milliseconds: the plugin expects synchronous
// semantics and no other import is permitted to yield (spec §5).
func (inst *Instance) envSleep(ctx context.Context, mod api.Module, ms int32) {
	if ms <= 0 {
		return
	}
	deadline := time.Now().Add(time.Duration(ms) * time.Millisecond)
	for time.Now().Before(deadline) {
	}
}

// envSendPartialResult decodes the postcard payload at ptr (variant 0 full
// HomeLayout snapshot, variant 1 single HomeComponent) and feeds the
// accumulator, per spec §4.10.
func (inst *Instance) envSendPartialResult(ctx context.Context, mod api.Module, ptr, length uint32) {
	raw, ok := inst.readBytes(ptr, length)
	if !ok {
		return
	}
	d := postcard.NewDecoder(raw)
	variant, ok := d.Uint()
	if !ok {
		return
	}
	switch variant {
	case 0:
		layout, ok := decodeHomeLayoutFull(d)
		if !ok {
			return
		}
		inst.home.ReplaceLayout(layout)
	case 1:
		hc, ok := decodeHomeComponentFull(d)
		if !ok {
			return
		}
		inst.home.AddComponent(hc)
	}
}

// decodeHomeComponentFull reads a title, then a subtitle (both optional
// strings), then the kind-tagged component payload.
func decodeHomeComponentFull(d *postcard.Decoder) (source.HomeComponent, bool) {
	title, ok := d.OptionString()
	if !ok {
		return source.HomeComponent{}, false
	}
	subtitle, ok := d.OptionString()
	if !ok {
		return source.HomeComponent{}, false
	}
	kind, hc, ok := postcard.DecodeHomeComponentValue(d)
	if !ok {
		return source.HomeComponent{}, false
	}
	hc.Title = title
	hc.Subtitle = subtitle
	hc.Kind = kind
	return hc, true
}

func decodeHomeLayoutFull(d *postcard.Decoder) (source.HomeLayout, bool) {
	n, ok := d.Uint()
	if !ok {
		return source.HomeLayout{}, false
	}
	layout := source.HomeLayout{Components: make([]source.HomeComponent, 0, n)}
	for i := uint64(0); i < n; i++ {
		hc, ok := decodeHomeComponentFull(d)
		if !ok {
			return source.HomeLayout{}, false
		}
		layout.Components = append(layout.Components, hc)
	}
	return layout, true
}
