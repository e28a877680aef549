// Package abierr is the namespaced ABI error code registry. Every import
// namespace returns small negative integers rather than throwing (spec
// §7); this registry gives each code a namespace and a log-facing message,
// the way the surrounding codebase keeps a single registry of namespaced
// string codes for its HTTP error surface.
package abierr

import (
	"fmt"
	"sync"
)

// Code is one namespaced ABI error code.
type Code struct {
	Namespace string
	Value     int32
	Message   string
}

type registry struct {
	mu    sync.RWMutex
	codes map[string]map[int32]Code
}

// Registry is the process-wide ABI error code registry.
var Registry = &registry{codes: make(map[string]map[int32]Code)}

// Register adds c to the registry.
func (r *registry) Register(c Code) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ns, ok := r.codes[c.Namespace]
	if !ok {
		ns = make(map[int32]Code)
		r.codes[c.Namespace] = ns
	}
	ns[c.Value] = c
}

// Message returns the log-facing message for namespace/value, or a
// generic fallback if unregistered.
func (r *registry) Message(namespace string, value int32) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if ns, ok := r.codes[namespace]; ok {
		if c, ok := ns[value]; ok {
			return c.Message
		}
	}
	return fmt.Sprintf("%s: unregistered error code %d", namespace, value)
}

// Std namespace codes (spec §7).
const (
	StdInvalidDescriptor int32 = -1
	StdInvalidBufferSize int32 = -2
	StdFailedMemoryWrite int32 = -3
	StdInvalidString     int32 = -4
	StdInvalidDateString int32 = -5
)

// Net namespace codes (spec §7).
const (
	NetInvalidDescriptor int32 = -1
	NetInvalidString     int32 = -2
	NetInvalidMethod     int32 = -3
	NetInvalidURL        int32 = -4
	NetInvalidHTML       int32 = -5
	NetInvalidBufferSize int32 = -6
	NetMissingData       int32 = -7
	NetMissingResponse   int32 = -8
	NetMissingURL        int32 = -9
	NetRequestError      int32 = -10
	NetFailedMemoryWrite int32 = -11
	NetNotAnImage        int32 = -12
)

// HTML namespace codes (spec §7).
const (
	HTMLInvalidDescriptor int32 = -1
	HTMLInvalidString     int32 = -2
	HTMLInvalidHTML       int32 = -3
	HTMLInvalidQuery      int32 = -4
	HTMLNoResult          int32 = -5
	HTMLBackendError      int32 = -6
)

// Canvas namespace codes (spec §4.8, §7).
const (
	CanvasInvalidContext      int32 = -1
	CanvasInvalidImagePointer int32 = -2
	CanvasInvalidImage        int32 = -3
	CanvasInvalidSrcRect      int32 = -4
	CanvasInvalidResult       int32 = -5
	CanvasInvalidBounds       int32 = -6
	CanvasInvalidPath         int32 = -7
	CanvasInvalidStyle        int32 = -8
	CanvasInvalidString       int32 = -9
	CanvasInvalidFont         int32 = -10
	CanvasFontLoadFailed      int32 = -11
)

// JS namespace codes (spec §7).
const (
	JSMissingResult   int32 = -1
	JSInvalidContext  int32 = -2
	JSInvalidString   int32 = -3
)

func init() {
	for value, msg := range map[int32]string{
		StdInvalidDescriptor: "invalid descriptor",
		StdInvalidBufferSize: "invalid buffer size",
		StdFailedMemoryWrite: "failed memory write",
		StdInvalidString:     "invalid string",
		StdInvalidDateString: "invalid date string",
	} {
		Registry.Register(Code{Namespace: "std", Value: value, Message: msg})
	}
	for value, msg := range map[int32]string{
		NetInvalidDescriptor: "invalid descriptor",
		NetInvalidString:     "invalid string",
		NetInvalidMethod:     "invalid method",
		NetInvalidURL:        "invalid url",
		NetInvalidHTML:       "invalid html",
		NetInvalidBufferSize: "invalid buffer size",
		NetMissingData:       "missing data",
		NetMissingResponse:   "missing response",
		NetMissingURL:        "missing url",
		NetRequestError:      "request error",
		NetFailedMemoryWrite: "failed memory write",
		NetNotAnImage:        "not an image",
	} {
		Registry.Register(Code{Namespace: "net", Value: value, Message: msg})
	}
	for value, msg := range map[int32]string{
		HTMLInvalidDescriptor: "invalid descriptor",
		HTMLInvalidString:     "invalid string",
		HTMLInvalidHTML:       "invalid html",
		HTMLInvalidQuery:      "invalid query",
		HTMLNoResult:          "no result",
		HTMLBackendError:      "backend error",
	} {
		Registry.Register(Code{Namespace: "html", Value: value, Message: msg})
	}
	for value, msg := range map[int32]string{
		CanvasInvalidContext:      "invalid context",
		CanvasInvalidImagePointer: "invalid image pointer",
		CanvasInvalidImage:        "invalid image",
		CanvasInvalidSrcRect:      "invalid source rect",
		CanvasInvalidResult:       "invalid result",
		CanvasInvalidBounds:       "invalid bounds",
		CanvasInvalidPath:         "invalid path",
		CanvasInvalidStyle:        "invalid style",
		CanvasInvalidString:       "invalid string",
		CanvasInvalidFont:         "invalid font",
		CanvasFontLoadFailed:      "font load failed",
	} {
		Registry.Register(Code{Namespace: "canvas", Value: value, Message: msg})
	}
	for value, msg := range map[int32]string{
		JSMissingResult:  "missing result",
		JSInvalidContext: "invalid context",
		JSInvalidString:  "invalid string",
	} {
		Registry.Register(Code{Namespace: "js", Value: value, Message: msg})
	}
}
