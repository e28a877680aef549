package main

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goatkit/sourcehost/internal/config"
	"github.com/goatkit/sourcehost/internal/pluginhost"
	"github.com/goatkit/sourcehost/pkg/source"
)

// directBridge is the devtool's default source.HttpBridge: a thin
// net/http client, present so `sourcehost call`/`inspect` can drive a
// plugin's net.send import without an integrator wiring a real one in.
type directBridge struct {
	client *http.Client
}

func newDirectBridge() *directBridge {
	return &directBridge{client: &http.Client{Timeout: 30 * time.Second}}
}

func (b *directBridge) Request(ctx context.Context, req source.HttpRequest) (source.HttpResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, nil)
	if err != nil {
		return source.HttpResponse{}, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	resp, err := b.client.Do(httpReq)
	if err != nil {
		// spec §4.11: a transport failure is reported as status 0, not
		// propagated as a Go error, so the plugin's net import sees a
		// normal (if unsuccessful) response.
		return source.HttpResponse{Status: 0}, nil
	}
	defer resp.Body.Close()

	headers := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		headers[k] = resp.Header.Get(k)
	}
	var body []byte
	buf := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			body = append(body, buf[:n]...)
		}
		if rerr != nil {
			break
		}
	}
	return source.HttpResponse{Status: resp.StatusCode, Headers: headers, Body: body}, nil
}

// manifestFor looks for a source.json sibling of a discovered .wasm file
// and parses it, returning nil if absent: the devtool should work against
// a bare .wasm with no packaging, not just a full plugin zip layout.
func manifestFor(wasmPath string) *source.Manifest {
	dir := filepath.Dir(wasmPath)
	data, err := os.ReadFile(filepath.Join(dir, "source.json"))
	if err != nil {
		return nil
	}
	m, err := source.ParseManifest(data)
	if err != nil {
		logger.Warn("ignoring invalid source.json next to plugin", "dir", dir, "error", err)
		return nil
	}
	return m
}

// discoverWasmFiles walks dir for .wasm files, returning name -> path.
func discoverWasmFiles(dir string) (map[string]string, error) {
	found := make(map[string]string)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".wasm") {
			return nil
		}
		name := strings.TrimSuffix(d.Name(), filepath.Ext(d.Name()))
		found[name] = path
		return nil
	})
	return found, err
}

// loadPluginDir discovers and loads every plugin under flagPluginDir into
// a fresh Manager, wiring the devtool's settings store and HTTP bridge
// (optionally cached through redis per --cache/--redis-addr) into each
// instance, plus that plugin's sibling source.json manifest when present.
func loadPluginDir(ctx context.Context) (*pluginhost.Manager, error) {
	cfg := config.Load()

	store, err := openSettingsStore(flagSettingsDB)
	if err != nil {
		return nil, err
	}

	var bridge source.HttpBridge = newDirectBridge()
	if flagEnableCache {
		if flagRedisAddr == "" {
			store.Close()
			return nil, fmt.Errorf("--cache requires --redis-addr")
		}
		bridge = newCachedBridge(bridge, flagRedisAddr)
	}

	if err := os.MkdirAll(flagPluginDir, 0o755); err != nil {
		store.Close()
		return nil, fmt.Errorf("create plugin dir: %w", err)
	}
	paths, err := discoverWasmFiles(flagPluginDir)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("discover plugins: %w", err)
	}

	manager := pluginhost.NewManager(logger)

	var loadErrs []error
	for name, path := range paths {
		wasmBytes, err := os.ReadFile(path)
		if err != nil {
			loadErrs = append(loadErrs, fmt.Errorf("read %s: %w", path, err))
			continue
		}
		settings := store.forPlugin(name)
		opts := []pluginhost.Option{
			pluginhost.WithLogger(logger),
			pluginhost.WithBridge(bridge),
			pluginhost.WithSettings(settings, settings),
			pluginhost.WithCallTimeout(cfg.CallTimeout),
			pluginhost.WithMemoryLimit(uint32(cfg.MemoryLimitPages)),
		}
		if m := manifestFor(path); m != nil {
			opts = append(opts, pluginhost.WithManifest(m))
		}
		inst, err := pluginhost.Load(ctx, name, wasmBytes, opts...)
		if err != nil {
			loadErrs = append(loadErrs, fmt.Errorf("load %s: %w", name, err))
			continue
		}
		manager.Register(ctx, name, inst)
		logger.Info("plugin loaded", "name", name, "mode", inst.Mode())
	}

	for _, e := range loadErrs {
		logger.Warn("plugin load failed", "error", e)
	}
	if len(paths) == 0 {
		logger.Warn("no .wasm files found", "dir", flagPluginDir)
	} else if len(manager.List()) == 0 {
		store.Close()
		return nil, fmt.Errorf("no plugins loaded from %s", flagPluginDir)
	}
	return manager, nil
}
