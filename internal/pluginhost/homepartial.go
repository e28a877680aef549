package pluginhost

import (
	"sync"

	"github.com/goatkit/sourcehost/pkg/source"
)

// homeAccumulator implements the partial home result protocol (spec §4.10):
// it accumulates streamed HomeComponent fragments keyed by title (or a
// synthetic index when the title is absent), so later emissions for the
// same titled component replace earlier ones. It is per-call: Reset clears
// it on entry and exit.
type homeAccumulator struct {
	mu       sync.Mutex
	order    []string
	byKey    map[string]source.HomeComponent
	anon     int
	onUpdate func(source.HomeLayout)
}

func newHomeAccumulator() *homeAccumulator {
	return &homeAccumulator{byKey: make(map[string]source.HomeComponent)}
}

// Reset clears all accumulated state and installs the partial-delivery
// callback for the upcoming call (nil disables callbacks).
func (a *homeAccumulator) Reset(onUpdate func(source.HomeLayout)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.order = nil
	a.byKey = make(map[string]source.HomeComponent)
	a.anon = 0
	a.onUpdate = onUpdate
}

// keyFor returns the accumulator key for a component: its title if present,
// else a synthetic per-call index (spec §4.10, §9 design notes).
func (a *homeAccumulator) keyFor(c source.HomeComponent) string {
	if c.Title != nil && *c.Title != "" {
		return "title:" + *c.Title
	}
	key := syntheticKey(a.anon)
	a.anon++
	return key
}

func syntheticKey(i int) string {
	const digits = "0123456789"
	if i == 0 {
		return "idx:0"
	}
	buf := make([]byte, 0, 8)
	for i > 0 {
		buf = append([]byte{digits[i%10]}, buf...)
		i /= 10
	}
	return "idx:" + string(buf)
}

// AddComponent records one streamed HomeComponent, invoking the
// caller-supplied callback with the accumulated layout to date.
func (a *homeAccumulator) AddComponent(c source.HomeComponent) {
	a.mu.Lock()
	key := a.keyFor(c)
	if _, exists := a.byKey[key]; !exists {
		a.order = append(a.order, key)
	}
	a.byKey[key] = c
	layout := a.snapshotLocked()
	cb := a.onUpdate
	a.mu.Unlock()
	if cb != nil {
		cb(layout)
	}
}

// ReplaceLayout records a complete HomeLayout snapshot, overwriting the
// accumulator's contents and invoking the callback.
func (a *homeAccumulator) ReplaceLayout(l source.HomeLayout) {
	a.mu.Lock()
	a.order = nil
	a.byKey = make(map[string]source.HomeComponent)
	a.anon = 0
	for _, c := range l.Components {
		key := a.keyFor(c)
		if _, exists := a.byKey[key]; !exists {
			a.order = append(a.order, key)
		}
		a.byKey[key] = c
	}
	layout := a.snapshotLocked()
	cb := a.onUpdate
	a.mu.Unlock()
	if cb != nil {
		cb(layout)
	}
}

func (a *homeAccumulator) snapshotLocked() source.HomeLayout {
	out := source.HomeLayout{Components: make([]source.HomeComponent, 0, len(a.order))}
	for _, k := range a.order {
		out.Components = append(out.Components, a.byKey[k])
	}
	return out
}

// Empty reports whether any partial has been recorded since the last Reset.
func (a *homeAccumulator) Empty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.order) == 0
}

// Snapshot returns the accumulated layout in emission order. Used when the
// plugin call returns: partials are authoritative when present (spec §4.10).
func (a *homeAccumulator) Snapshot() source.HomeLayout {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}
