package pluginhost

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
)

// moduleBuilder is a thin convenience wrapper over a single
// wazero.HostModuleBuilder: it lets every importsX.go file register its
// host functions as plain, numeric-signature Go funcs without repeating
// the NewFunctionBuilder().WithFunc(fn).Export(name) ceremony at each call
// site, the way the host functions get a short local alias at registration
// time across the teacher's host-call dispatch table.
type moduleBuilder struct {
	b wazero.HostModuleBuilder
}

// reg exports fn (any Go func whose params/results are wazero-compatible
// numeric types, optionally prefixed by context.Context and api.Module) as
// name on the underlying host module.
func (m *moduleBuilder) reg(name string, fn any) {
	m.b.NewFunctionBuilder().WithFunc(fn).Export(name)
}

// buildImports constructs and instantiates every import namespace module
// the plugin can call back into (spec §4.4-§4.9). Canvas is only built
// when enabled in Options.
func (inst *Instance) buildImports(ctx context.Context) error {
	namespaces := []struct {
		name  string
		build func(*moduleBuilder)
	}{
		{"std", inst.buildStd},
		{"net", inst.buildNet},
		{"html", inst.buildHTML},
		{"json", inst.buildJSON},
		{"defaults", inst.buildDefaults},
		{"env", inst.buildEnv},
		{"aidoku", inst.buildAidoku},
		{"js", inst.buildJS},
	}
	if inst.opts.EnableCanvas {
		namespaces = append(namespaces, struct {
			name  string
			build func(*moduleBuilder)
		}{"canvas", inst.buildCanvas})
	}

	for _, ns := range namespaces {
		mb := &moduleBuilder{b: inst.runtime.NewHostModuleBuilder(ns.name)}
		ns.build(mb)
		if _, err := mb.b.Instantiate(ctx); err != nil {
			return fmt.Errorf("pluginhost: instantiate %s imports: %w", ns.name, err)
		}
	}
	return nil
}
