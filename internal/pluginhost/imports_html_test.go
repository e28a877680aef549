package pluginhost

import (
	"context"
	"testing"
)

const testHTMLDoc = `<html><body>
<div class="item" data-id="1"><a href="/a">First</a></div>
<div class="item" data-id="2"><a href="/b">Second</a></div>
</body></html>`

func parseTestDoc(t *testing.T, inst *Instance) int32 {
	t.Helper()
	ctx := context.Background()
	htmlPtr, htmlLen := writeTestString(t, inst, 0, testHTMLDoc)
	basePtr, baseLen := writeTestString(t, inst, 8192, "https://example.com/")
	rid := inst.htmlParse(ctx, nil, htmlPtr, htmlLen, basePtr, baseLen)
	if rid <= 0 {
		t.Fatalf("htmlParse() = %d, want a positive descriptor", rid)
	}
	return rid
}

// writeTestString writes s into test memory at ptr and returns (ptr, len).
func writeTestString(t *testing.T, inst *Instance, ptr uint32, s string) (uint32, uint32) {
	t.Helper()
	if !inst.memory.Write(ptr, []byte(s)) {
		t.Fatalf("failed to write test string at %d", ptr)
	}
	return ptr, uint32(len(s))
}

func readTestValueString(t *testing.T, inst *Instance, rid int32) string {
	t.Helper()
	v, ok := inst.table.Read(rid)
	if !ok {
		t.Fatalf("rid %d not found in table", rid)
	}
	val, ok := v.(*Value)
	if !ok {
		t.Fatalf("rid %d is not a *Value", rid)
	}
	return val.S
}

func TestHTMLSelectFindsMatchingNodes(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()
	docRid := parseTestDoc(t, inst)

	selPtr, selLen := writeTestString(t, inst, 16384, ".item")
	nodeRid := inst.htmlSelect(ctx, nil, docRid, selPtr, selLen)
	if nodeRid <= 0 {
		t.Fatalf("htmlSelect() = %d, want a positive descriptor", nodeRid)
	}
	if n := inst.htmlSize(ctx, nil, nodeRid); n != 2 {
		t.Fatalf("htmlSize() = %d, want 2", n)
	}
}

func TestHTMLSelectFirstAndText(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()
	docRid := parseTestDoc(t, inst)

	selPtr, selLen := writeTestString(t, inst, 16384, "a")
	nodeRid := inst.htmlSelectFirst(ctx, nil, docRid, selPtr, selLen)
	if nodeRid <= 0 {
		t.Fatalf("htmlSelectFirst() = %d, want a positive descriptor", nodeRid)
	}

	textRid := inst.htmlText(ctx, nil, nodeRid)
	if got := readTestValueString(t, inst, textRid); got != "First" {
		t.Fatalf("htmlText() = %q, want %q", got, "First")
	}
}

func TestHTMLAttrResolvesAbsoluteURL(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()
	docRid := parseTestDoc(t, inst)

	selPtr, selLen := writeTestString(t, inst, 16384, "a")
	nodeRid := inst.htmlSelectFirst(ctx, nil, docRid, selPtr, selLen)

	namePtr, nameLen := writeTestString(t, inst, 20000, "abs:href")
	valRid := inst.htmlAttr(ctx, nil, nodeRid, namePtr, nameLen)
	if got := readTestValueString(t, inst, valRid); got != "https://example.com/a" {
		t.Fatalf("htmlAttr(abs:href) = %q, want %q", got, "https://example.com/a")
	}
}

func TestHTMLHasClassAndHasAttr(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()
	docRid := parseTestDoc(t, inst)

	selPtr, selLen := writeTestString(t, inst, 16384, "div")
	nodeRid := inst.htmlSelectFirst(ctx, nil, docRid, selPtr, selLen)

	clsPtr, clsLen := writeTestString(t, inst, 20000, "item")
	if got := inst.htmlHasClass(ctx, nil, nodeRid, clsPtr, clsLen); got != 1 {
		t.Fatalf("htmlHasClass(item) = %d, want 1", got)
	}

	attrPtr, attrLen := writeTestString(t, inst, 20100, "data-id")
	if got := inst.htmlHasAttr(ctx, nil, nodeRid, attrPtr, attrLen); got != 1 {
		t.Fatalf("htmlHasAttr(data-id) = %d, want 1", got)
	}
}

func TestHTMLSelectFirstNoResult(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()
	docRid := parseTestDoc(t, inst)

	selPtr, selLen := writeTestString(t, inst, 16384, ".does-not-exist")
	if got := inst.htmlSelectFirst(ctx, nil, docRid, selPtr, selLen); got >= 0 {
		t.Fatalf("htmlSelectFirst() = %d, want a negative error code for no match", got)
	}
}

func TestHTMLTraversalParent(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()
	docRid := parseTestDoc(t, inst)

	selPtr, selLen := writeTestString(t, inst, 16384, "a")
	aRid := inst.htmlSelectFirst(ctx, nil, docRid, selPtr, selLen)

	parentRid := inst.htmlParent(ctx, nil, aRid)
	if parentRid <= 0 {
		t.Fatalf("htmlParent() = %d, want a positive descriptor", parentRid)
	}
	tagRid := inst.htmlTagName(ctx, nil, parentRid)
	if got := readTestValueString(t, inst, tagRid); got != "div" {
		t.Fatalf("htmlTagName(parent) = %q, want %q", got, "div")
	}
}

func TestHTMLArrayExpandsNodeSet(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()
	docRid := parseTestDoc(t, inst)

	selPtr, selLen := writeTestString(t, inst, 16384, ".item")
	setRid := inst.htmlSelect(ctx, nil, docRid, selPtr, selLen)

	arrRid := inst.htmlArray(ctx, nil, setRid)
	v, ok := inst.table.Read(arrRid)
	if !ok {
		t.Fatal("htmlArray() result not found in table")
	}
	arr, ok := v.(*Value)
	if !ok || arr.Kind != KindArray {
		t.Fatalf("htmlArray() value = %+v, want a KindArray Value", v)
	}
	if len(arr.Arr) != 2 {
		t.Fatalf("htmlArray() produced %d descriptors, want 2", len(arr.Arr))
	}
}
