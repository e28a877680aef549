package pluginhost

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dop251/goja"
	"github.com/tetratelabs/wazero/api"

	"github.com/goatkit/sourcehost/internal/abierr"
	"github.com/goatkit/sourcehost/internal/table"
)

// jsContext is a sandboxed goja VM with no access to the host filesystem,
// network, or plugin memory (spec §4.9): it exists solely so plugins can
// run small scraper helper snippets embedded in HTML.
type jsContext struct {
	mu sync.Mutex
	vm *goja.Runtime
}

// jsHost is the js namespace's per-instance handle. It holds only the
// owning Instance; each goja runtime lives in the table as a jsContext.
type jsHost struct {
	inst *Instance
}

func newJSHost(inst *Instance) *jsHost { return &jsHost{inst: inst} }

func newSandboxedVM() *goja.Runtime {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	// No console, no require, no globals beyond ECMAScript builtins: the
	// sandbox must not reach the host filesystem, network, or plugin
	// memory (spec §4.9).
	return vm
}

// buildJS registers the js import namespace: context_create/eval/get, plus
// webview stubs that exist as negative-error placeholders (spec §4.9).
func (inst *Instance) buildJS(b *moduleBuilder) {
	b.reg("context_create", inst.jsContextCreate)
	b.reg("context_eval", inst.jsContextEval)
	b.reg("context_get", inst.jsContextGet)

	b.reg("webview_create", inst.jsWebviewCreateStub)
	b.reg("webview_load", inst.jsWebviewUnaryStub)
	b.reg("webview_eval", inst.jsWebviewUnaryStub)
	b.reg("webview_wait_for_selector", inst.jsWebviewUnaryStub)
}

func (inst *Instance) jsContextAt(rid int32) (*jsContext, bool) {
	v, ok := inst.table.Read(rid)
	if !ok {
		return nil, false
	}
	jc, ok := v.(*jsContext)
	return jc, ok
}

func (inst *Instance) jsContextCreate(ctx context.Context, mod api.Module) int32 {
	jc := &jsContext{vm: newSandboxedVM()}
	return inst.table.Allocate(jc, table.KindJSContext)
}

func (inst *Instance) jsContextEval(ctx context.Context, mod api.Module, ctxRid int32, srcPtr, srcLen uint32) int32 {
	jc, ok := inst.jsContextAt(ctxRid)
	if !ok {
		return abierr.JSInvalidContext
	}
	src, ok := inst.readString(srcPtr, srcLen)
	if !ok {
		return abierr.JSInvalidString
	}

	jc.mu.Lock()
	v, err := jc.vm.RunString(src)
	jc.mu.Unlock()
	if err != nil {
		inst.logger.Debug("js context_eval failed", "error", err)
		return abierr.JSMissingResult
	}
	return inst.stringValueRid(jsResultToString(v))
}

// jsResultToString renders an eval result as a string, JSON-stringifying
// objects and arrays per spec §4.9.
func jsResultToString(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	exported := v.Export()
	switch exported.(type) {
	case string, int64, float64, bool:
		return v.String()
	default:
		raw, err := json.Marshal(exported)
		if err != nil {
			return v.String()
		}
		return string(raw)
	}
}

func (inst *Instance) jsContextGet(ctx context.Context, mod api.Module, ctxRid int32, namePtr, nameLen uint32) int32 {
	jc, ok := inst.jsContextAt(ctxRid)
	if !ok {
		return abierr.JSInvalidContext
	}
	name, ok := inst.readString(namePtr, nameLen)
	if !ok {
		return abierr.JSInvalidString
	}
	jc.mu.Lock()
	v := jc.vm.Get(name)
	jc.mu.Unlock()
	if v == nil {
		return abierr.JSMissingResult
	}
	return inst.stringValueRid(jsResultToString(v))
}

// jsWebviewCreateStub and jsWebviewUnaryStub implement the webview-related
// entry points as stubs that always return a negative error: no
// headless-browser backend is wired up (spec §4.9).
func (inst *Instance) jsWebviewCreateStub(ctx context.Context, mod api.Module) int32 {
	return abierr.JSInvalidContext
}

func (inst *Instance) jsWebviewUnaryStub(ctx context.Context, mod api.Module, rid int32) int32 {
	return abierr.JSInvalidContext
}
