package pluginhost

import (
	"context"
	"log/slog"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/goatkit/sourcehost/internal/cookiejar"
	"github.com/goatkit/sourcehost/internal/table"
)

// memOnlyWasm is the smallest valid WebAssembly module that declares
// nothing but a one-page linear memory exported as "memory" — just enough
// for tests to exercise the host's readBytes/writeBytes plumbing against a
// real wazero-backed api.Memory without a real plugin binary.
var memOnlyWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // magic, version
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 memory, min 1 page
	0x07, 0x0a, 0x01, 0x06, 'm', 'e', 'm', 'o', 'r', 'y', 0x02, 0x00, // export "memory"
}

// testMemory returns a real api.Memory backed by a throwaway wazero
// runtime, torn down when the test completes.
func testMemory(t *testing.T) api.Memory {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })
	mod, err := rt.Instantiate(ctx, memOnlyWasm)
	if err != nil {
		t.Fatalf("instantiate memory fixture: %v", err)
	}
	return mod.Memory()
}

// newTestInstance builds a minimal Instance with real table/jar/accumulator
// state and a real backing memory, sufficient to exercise import handlers
// and dispatcher methods directly (without a real plugin binary), the same
// "every wazero-backed field that isn't needed stays nil" approach
// fakeInstance uses in manager_test.go.
func newTestInstance(t *testing.T) *Instance {
	t.Helper()
	inst := &Instance{
		Name:    "test",
		logger:  slog.Default(),
		table:   table.New(),
		jar:     cookiejar.New(),
		home:    newHomeAccumulator(),
		logbuf:  NewLogBuffer(16),
		sandbox: NewSandbox(DefaultResourcePolicy("test")),
		exports: make(map[string]api.Function),
		memory:  testMemory(t),
	}
	return inst
}

// fakeFunction is a hand-rolled api.Function standing in for a plugin
// export, so dispatcher tests can exercise callExport/call0 without a real
// wasm module. It embeds api.Function to satisfy the interface's remaining
// methods; only Definition and Call are implemented.
type fakeFunction struct {
	api.Function
	call func(ctx context.Context, params ...uint64) ([]uint64, error)
}

func (f fakeFunction) Definition() api.FunctionDefinition { return nil }

func (f fakeFunction) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	return f.call(ctx, params...)
}
