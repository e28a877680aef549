// Package table implements the resource table: a per-plugin-instance,
// process-local map from positive rids to typed, reference-counted
// payloads.
package table

import (
	"sync"
	"time"
)

// Kind tags the category of payload an entry carries.
type Kind uint8

const (
	KindValue Kind = iota
	KindRequest
	KindCanvasContext
	KindImage
	KindFont
	KindJSContext
	KindDocument
	KindNode
)

type entry struct {
	payload any
	kind    Kind
	refs    int
	created time.Time
}

// Table is the resource table for one plugin instance. The zero value is
// not usable; construct with New.
type Table struct {
	mu      sync.Mutex
	entries map[int32]*entry
	nextID  int32
}

// New returns an empty resource table. The id counter starts at 1: zero
// and negative values are never allocated (negatives encode errors across
// the ABI).
func New() *Table {
	return &Table{entries: make(map[int32]*entry), nextID: 1}
}

// Allocate inserts payload under a freshly minted, monotonically
// increasing rid with refcount 1, and returns the rid.
func (t *Table) Allocate(payload any, kind Kind) int32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.nextID
	t.nextID++
	t.entries[id] = &entry{payload: payload, kind: kind, refs: 1, created: time.Now()}
	return id
}

// Read returns the payload stored under rid, or (nil, false) for an
// unknown rid. It does not mutate the table.
func (t *Table) Read(rid int32) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[rid]
	if !ok {
		return nil, false
	}
	return e.payload, true
}

// Kind returns the resource kind stored under rid.
func (t *Table) Kind(rid int32) (Kind, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[rid]
	if !ok {
		return 0, false
	}
	return e.kind, true
}

// Update replaces the payload stored under rid in place, leaving refcount
// and creation time untouched. Import handlers call it after mutating a
// stored payload (a request, an object, an array).
func (t *Table) Update(rid int32, payload any) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[rid]
	if !ok {
		return false
	}
	e.payload = payload
	return true
}

// Retain increments rid's refcount.
func (t *Table) Retain(rid int32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[rid]
	if !ok {
		return false
	}
	e.refs++
	return true
}

// Release decrements rid's refcount, removing the entry and disposing its
// payload once the count reaches zero.
func (t *Table) Release(rid int32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[rid]
	if !ok {
		return false
	}
	e.refs--
	if e.refs <= 0 {
		delete(t.entries, rid)
	}
	return true
}

// ForceRemove deletes rid unconditionally, ignoring refcount. Used by
// scoped cleanup and the unified destroy import.
func (t *Table) ForceRemove(rid int32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[rid]
	delete(t.entries, rid)
	return ok
}

// Destroy is the single import-facing entry point for the plugin's unified
// destroy: it drops rid regardless of kind and reports whether it existed.
func (t *Table) Destroy(rid int32) bool {
	return t.ForceRemove(rid)
}

// Len reports the current entry count, for metrics and the sweeper.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
