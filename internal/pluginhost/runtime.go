// Package pluginhost is the WebAssembly embedding layer: it loads a plugin
// module, publishes the import namespaces the plugin calls back into, drives
// the plugin's exported entry points, and decodes the postcard-serialised
// results into pkg/source domain values.
package pluginhost

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/goatkit/sourcehost/internal/cookiejar"
	"github.com/goatkit/sourcehost/internal/table"
	"github.com/goatkit/sourcehost/pkg/source"
)

// Options configures an Instance at load time.
type Options struct {
	Logger           *slog.Logger
	Bridge           source.HttpBridge
	SettingsGetter   source.SettingsGetter
	SettingsSetter   source.SettingsSetter
	MemoryLimitPages uint32
	CallTimeout      time.Duration
	EnableCanvas     bool
	SweepConfig      table.SweepConfig
	ResourcePolicy   *ResourcePolicy
	Manifest         *source.Manifest
}

// Option is a functional option for Load.
type Option func(*Options)

// WithLogger sets the instance's structured logger.
func WithLogger(l *slog.Logger) Option { return func(o *Options) { o.Logger = l } }

// WithBridge sets the synchronous HTTP bridge collaborator (spec §4.11).
func WithBridge(b source.HttpBridge) Option { return func(o *Options) { o.Bridge = b } }

// WithSettings sets the settings get/set collaborators (spec §4.7).
func WithSettings(g source.SettingsGetter, s source.SettingsSetter) Option {
	return func(o *Options) { o.SettingsGetter = g; o.SettingsSetter = s }
}

// WithMemoryLimit caps the module's linear memory, in 64KiB pages.
func WithMemoryLimit(pages uint32) Option {
	return func(o *Options) { o.MemoryLimitPages = pages }
}

// WithCallTimeout bounds how long a single exported call may run.
func WithCallTimeout(d time.Duration) Option { return func(o *Options) { o.CallTimeout = d } }

// WithCanvas enables the canvas import namespace (absent in headless
// deployments per spec §4.8).
func WithCanvas(enabled bool) Option { return func(o *Options) { o.EnableCanvas = enabled } }

// WithSweepConfig overrides the resource table sweeper thresholds.
func WithSweepConfig(cfg table.SweepConfig) Option {
	return func(o *Options) { o.SweepConfig = cfg }
}

// WithResourcePolicy bounds the instance's outbound HTTP hosts and
// settings keys. Without it the instance runs under DefaultResourcePolicy.
func WithResourcePolicy(p ResourcePolicy) Option {
	return func(o *Options) { o.ResourcePolicy = &p }
}

// WithManifest supplies the plugin's parsed source.json so capability
// detection (spec §4.2) can consult its config fields (e.g. login support)
// in addition to the exported symbol set.
func WithManifest(m *source.Manifest) Option {
	return func(o *Options) { o.Manifest = m }
}

func defaultOptions() Options {
	return Options{
		Logger:           slog.Default(),
		MemoryLimitPages: 256,
		CallTimeout:      30 * time.Second,
		SweepConfig:      table.DefaultSweepConfig(),
	}
}

// Instance is one loaded plugin: a wazero module instance plus every
// per-instance host-side state the spec requires (resource table, cookie
// jar, partial-home accumulator). It is single-threaded cooperative (spec
// §5): one exported call is in flight at a time.
type Instance struct {
	Name string

	opts    Options
	logger  *slog.Logger
	runtime wazero.Runtime
	module  api.Module
	memory  api.Memory

	table   *table.Table
	sweeper *table.Sweeper
	jar     *cookiejar.Jar
	home    *homeAccumulator
	logbuf  *LogBuffer
	sandbox *Sandbox

	jsHost *jsHost

	mode         ABIMode
	capabilities Capabilities

	mallocFn     api.Function
	freeFn       api.Function
	freeResultFn api.Function
	startFn      api.Function

	exports map[string]api.Function
}

// Load compiles and instantiates wasmBytes as a plugin named name, wiring
// every import namespace, then runs start (if exported) and detects the
// ABI mode from the set of exported symbols.
func Load(ctx context.Context, name string, wasmBytes []byte, opts ...Option) (*Instance, error) {
	cfg := defaultOptions()
	for _, o := range opts {
		o(&cfg)
	}

	inst := &Instance{
		Name:    name,
		opts:    cfg,
		logger:  cfg.Logger.With(slog.String("plugin", name)),
		table:   table.New(),
		jar:     cookiejar.New(),
		home:    newHomeAccumulator(),
		logbuf:  NewLogBuffer(256),
		exports: make(map[string]api.Function),
	}
	if cfg.ResourcePolicy != nil {
		inst.sandbox = NewSandbox(*cfg.ResourcePolicy)
	} else {
		inst.sandbox = NewSandbox(DefaultResourcePolicy(name))
	}
	inst.jsHost = newJSHost(inst)

	rtCfg := wazero.NewRuntimeConfig()
	if cfg.MemoryLimitPages > 0 {
		rtCfg = rtCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	inst.runtime = wazero.NewRuntimeWithConfig(ctx, rtCfg)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, inst.runtime); err != nil {
		inst.runtime.Close(ctx)
		return nil, fmt.Errorf("pluginhost: instantiate wasi: %w", err)
	}

	if err := inst.buildImports(ctx); err != nil {
		inst.runtime.Close(ctx)
		return nil, fmt.Errorf("pluginhost: build imports: %w", err)
	}

	compiled, err := inst.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		inst.runtime.Close(ctx)
		return nil, fmt.Errorf("pluginhost: compile module: %w", err)
	}

	modCfg := wazero.NewModuleConfig().WithName(name).WithStartFunctions()
	mod, err := inst.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		inst.runtime.Close(ctx)
		return nil, fmt.Errorf("pluginhost: instantiate module: %w", err)
	}
	inst.module = mod
	inst.memory = mod.Memory()

	inst.mallocFn = mod.ExportedFunction("malloc")
	if inst.mallocFn == nil {
		inst.mallocFn = mod.ExportedFunction("__malloc")
	}
	inst.freeFn = mod.ExportedFunction("free")
	inst.freeResultFn = mod.ExportedFunction("free_result")
	inst.startFn = mod.ExportedFunction("start")

	for _, export := range exportsOfInterest {
		if fn := mod.ExportedFunction(export); fn != nil {
			inst.exports[export] = fn
		}
	}

	inst.mode, inst.capabilities = detectABI(inst.exports, cfg.EnableCanvas, cfg.Manifest)

	inst.sweeper = table.NewSweeper(inst.table, cfg.SweepConfig)
	inst.sweeper.OnSweep = func(reclaimed int) {
		globalMetrics().reportSweep(name, reclaimed)
		globalMetrics().reportTableSize(name, inst.table.Len())
		globalMetrics().reportCookieJarSize(name, inst.jar.Len())
	}
	if err := inst.sweeper.Start(); err != nil {
		inst.logger.Warn("sweeper failed to start", slog.Any("error", err))
	}

	if inst.startFn != nil {
		if _, err := inst.startFn.Call(ctx); err != nil {
			inst.logger.Warn("plugin start export failed", slog.Any("error", err))
		}
	}

	return inst, nil
}

var exportsOfInterest = []string{
	"get_search_manga_list", "get_manga_update", "get_page_list", "get_filters",
	"get_listings", "get_manga_list", "get_home", "get_image_request",
	"process_page_image", "get_manga_details", "get_chapter_list",
	"modify_image_request", "free_result",
	"handle_basic_login", "handle_web_login",
}

// Close tears down the module and its runtime, releasing all wazero
// resources.
func (inst *Instance) Close(ctx context.Context) error {
	if inst.sweeper != nil {
		inst.sweeper.Stop()
	}
	if inst.module != nil {
		_ = inst.module.Close(ctx)
	}
	if inst.runtime != nil {
		return inst.runtime.Close(ctx)
	}
	return nil
}

// Capabilities reports the dispatcher-derived booleans (spec §4.2).
func (inst *Instance) Capabilities() Capabilities { return inst.capabilities }

// Mode reports the detected ABI mode.
func (inst *Instance) Mode() ABIMode { return inst.mode }

// Stats returns a snapshot of this instance's sandbox usage counters.
func (inst *Instance) Stats() StatsSnapshot { return inst.sandbox.Stats(inst.Name) }

// UpdateResourcePolicy swaps in a new sandbox policy, effective immediately.
func (inst *Instance) UpdateResourcePolicy(p ResourcePolicy) { inst.sandbox.UpdatePolicy(p) }

// TableLen reports the number of currently outstanding resource table
// entries, for devtool inspection.
func (inst *Instance) TableLen() int { return inst.table.Len() }

// newCallID returns a correlation id for one host-driven call's structured
// logging, matching the teacher's per-call log-field convention.
func newCallID() string { return uuid.NewString() }

// --- linear memory access ---

func (inst *Instance) readBytes(ptr, size uint32) ([]byte, bool) {
	if inst.memory == nil || size == 0 {
		return nil, size == 0
	}
	return inst.memory.Read(ptr, size)
}

func (inst *Instance) readString(ptr, size uint32) (string, bool) {
	b, ok := inst.readBytes(ptr, size)
	if !ok {
		return "", false
	}
	return string(b), true
}

func (inst *Instance) writeBytes(ptr uint32, data []byte) bool {
	if len(data) == 0 {
		return true
	}
	if inst.memory == nil {
		return false
	}
	return inst.memory.Write(ptr, data)
}

// allocate calls the plugin's exported allocator for n bytes, returning the
// pointer. Plugins without an allocator export cannot receive host-written
// buffers; callers treat a zero return as failure.
func (inst *Instance) allocate(ctx context.Context, n uint32) uint32 {
	if inst.mallocFn == nil {
		return 0
	}
	res, err := inst.mallocFn.Call(ctx, uint64(n))
	if err != nil || len(res) == 0 {
		return 0
	}
	return uint32(res[0])
}

func (inst *Instance) free(ctx context.Context, ptr uint32) {
	if inst.freeFn == nil || ptr == 0 {
		return
	}
	_, _ = inst.freeFn.Call(ctx, uint64(ptr))
}

// writeToPlugin allocates n bytes in plugin memory and copies data into it,
// returning the pointer (0 on failure).
func (inst *Instance) writeToPlugin(ctx context.Context, data []byte) uint32 {
	ptr := inst.allocate(ctx, uint32(len(data)))
	if ptr == 0 && len(data) > 0 {
		return 0
	}
	if !inst.writeBytes(ptr, data) {
		return 0
	}
	return ptr
}

// readResultPointer reads the modern-ABI result pointer convention (spec
// §4.2, §8.8) and returns the decoded payload bytes.
func (inst *Instance) readResultPointer(ctx context.Context, p int32) ([]byte, error) {
	if p < 0 {
		return nil, resultError(p)
	}
	if p == 0 {
		return nil, nil
	}
	header, ok := inst.readBytes(uint32(p), 8)
	if !ok || len(header) < 8 {
		return nil, nil
	}
	total := int32(header[0]) | int32(header[1])<<8 | int32(header[2])<<16 | int32(header[3])<<24
	if total <= 8 {
		inst.freeResult(ctx, uint32(p))
		return nil, nil
	}
	full, ok := inst.readBytes(uint32(p), uint32(total))
	if !ok {
		inst.freeResult(ctx, uint32(p))
		return nil, nil
	}
	payload := make([]byte, total-8)
	copy(payload, full[8:total])
	inst.freeResult(ctx, uint32(p))
	return payload, nil
}

func (inst *Instance) freeResult(ctx context.Context, ptr uint32) {
	if inst.freeResultFn == nil {
		return
	}
	_, _ = inst.freeResultFn.Call(ctx, uint64(ptr))
}

// resultErr is a structured error surfaced for a negative modern-ABI result
// pointer (spec §4.2): -1 general, -2 unimplemented, -3 request error.
type resultErr int32

func (e resultErr) Error() string {
	switch int32(e) {
	case -1:
		return "plugin: general error"
	case -2:
		return "plugin: unimplemented"
	case -3:
		return "plugin: request error"
	default:
		return fmt.Sprintf("plugin: error %d", int32(e))
	}
}

func resultError(p int32) error { return resultErr(p) }
