package pluginhost

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tetratelabs/wazero/api"
	"golang.org/x/net/html"

	"github.com/goatkit/sourcehost/internal/abierr"
	"github.com/goatkit/sourcehost/internal/table"
)

// htmlDoc and htmlNode are the two descriptor payloads the html namespace
// produces (spec §4.6): a parsed document (carrying its base URI for
// abs: attribute resolution) and a node set (possibly singular) within it.
type htmlDoc struct {
	sel     *goquery.Selection
	baseURL string
}

type htmlNode struct {
	sel *goquery.Selection
	doc *htmlDoc
}

func (inst *Instance) docAt(rid int32) (*htmlDoc, bool) {
	v, ok := inst.table.Read(rid)
	if !ok {
		return nil, false
	}
	d, ok := v.(*htmlDoc)
	return d, ok
}

func (inst *Instance) nodeAt(rid int32) (*htmlNode, bool) {
	v, ok := inst.table.Read(rid)
	if !ok {
		return nil, false
	}
	n, ok := v.(*htmlNode)
	return n, ok
}

// selectionAt returns the underlying selection and owning document for
// either a document or a node descriptor, so traversal and accessor
// functions can operate uniformly over both.
func (inst *Instance) selectionAt(rid int32) (*goquery.Selection, *htmlDoc, bool) {
	if d, ok := inst.docAt(rid); ok {
		return d.sel, d, true
	}
	if n, ok := inst.nodeAt(rid); ok {
		return n.sel, n.doc, true
	}
	return nil, nil, false
}

// buildHTML registers the html import namespace (spec §4.6).
func (inst *Instance) buildHTML(b *moduleBuilder) {
	b.reg("parse", inst.htmlParse)
	b.reg("parse_fragment", inst.htmlParseFragment)
	b.reg("select", inst.htmlSelect)
	b.reg("select_first", inst.htmlSelectFirst)
	b.reg("attr", inst.htmlAttr)
	b.reg("text", inst.htmlText)
	b.reg("untrimmed_text", inst.htmlUntrimmedText)
	b.reg("own_text", inst.htmlOwnText)
	b.reg("html", inst.htmlOuterOrInnerHTML)
	b.reg("outer_html", inst.htmlOuterHTML)
	b.reg("data", inst.htmlData)
	b.reg("set_text", inst.htmlSetText)
	b.reg("set_html", inst.htmlSetHTML)
	b.reg("prepend", inst.htmlPrepend)
	b.reg("append", inst.htmlAppend)
	b.reg("parent", inst.htmlParent)
	b.reg("children", inst.htmlChildren)
	b.reg("siblings", inst.htmlSiblings)
	b.reg("next", inst.htmlNext)
	b.reg("previous", inst.htmlPrevious)
	b.reg("tag_name", inst.htmlTagName)
	b.reg("class_name", inst.htmlClassName)
	b.reg("id", inst.htmlID)
	b.reg("has_class", inst.htmlHasClass)
	b.reg("has_attr", inst.htmlHasAttr)
	b.reg("first", inst.htmlFirst)
	b.reg("last", inst.htmlLast)
	b.reg("get", inst.htmlGet)
	b.reg("size", inst.htmlSize)
	b.reg("array", inst.htmlArray)
}

func (inst *Instance) htmlParse(ctx context.Context, mod api.Module, htmlPtr, htmlLen, basePtr, baseLen uint32) int32 {
	raw, ok := inst.readString(htmlPtr, htmlLen)
	if !ok {
		return abierr.HTMLInvalidString
	}
	base, _ := inst.readString(basePtr, baseLen)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return abierr.HTMLInvalidHTML
	}
	return inst.table.Allocate(&htmlDoc{sel: doc.Selection, baseURL: base}, table.KindDocument)
}

func (inst *Instance) htmlParseFragment(ctx context.Context, mod api.Module, htmlPtr, htmlLen, basePtr, baseLen uint32) int32 {
	return inst.htmlParse(ctx, mod, htmlPtr, htmlLen, basePtr, baseLen)
}

// hasAnyAttrRe and notAnyAttrRe match the two historical wildcard idioms the
// selector preprocessor rewrites (spec §4.6): `[*]` (has any attribute) and
// `:not([*])` (has no attribute).
var (
	hasAnyAttrRe = regexp.MustCompile(`\[\*\]`)
	notAnyAttrRe = regexp.MustCompile(`:not\(\[\*\]\)`)
)

// rewriteSelector strips the wildcard idioms from sel and returns the
// cleaned selector plus a post-filter predicate (nil if no wildcard was
// present).
func rewriteSelector(sel string) (cleaned string, postFilter func(*goquery.Selection) bool) {
	hasNotAny := notAnyAttrRe.MatchString(sel)
	cleaned = notAnyAttrRe.ReplaceAllString(sel, "")
	hasAny := hasAnyAttrRe.MatchString(cleaned)
	cleaned = hasAnyAttrRe.ReplaceAllString(cleaned, "")
	cleaned = strings.TrimSpace(cleaned)
	switch {
	case hasAny && hasNotAny:
		return cleaned, func(s *goquery.Selection) bool {
			return len(s.Nodes) > 0 && len(s.Nodes[0].Attr) > 0
		}
	case hasAny:
		return cleaned, func(s *goquery.Selection) bool {
			return len(s.Nodes) > 0 && len(s.Nodes[0].Attr) > 0
		}
	case hasNotAny:
		return cleaned, func(s *goquery.Selection) bool {
			return len(s.Nodes) > 0 && len(s.Nodes[0].Attr) == 0
		}
	default:
		return cleaned, nil
	}
}

func applyPostFilter(sel *goquery.Selection, postFilter func(*goquery.Selection) bool) *goquery.Selection {
	if postFilter == nil {
		return sel
	}
	return sel.FilterFunction(func(_ int, s *goquery.Selection) bool { return postFilter(s) })
}

func (inst *Instance) htmlSelect(ctx context.Context, mod api.Module, rid int32, selPtr, selLen uint32) int32 {
	raw, ok := inst.readString(selPtr, selLen)
	if !ok {
		return abierr.HTMLInvalidString
	}
	sel, doc, ok := inst.selectionAt(rid)
	if !ok {
		return abierr.HTMLInvalidDescriptor
	}
	cleaned, postFilter := rewriteSelector(raw)
	found := sel.Find(cleaned)
	found = applyPostFilter(found, postFilter)
	return inst.table.Allocate(&htmlNode{sel: found, doc: doc}, table.KindNode)
}

func (inst *Instance) htmlSelectFirst(ctx context.Context, mod api.Module, rid int32, selPtr, selLen uint32) int32 {
	raw, ok := inst.readString(selPtr, selLen)
	if !ok {
		return abierr.HTMLInvalidString
	}
	sel, doc, ok := inst.selectionAt(rid)
	if !ok {
		return abierr.HTMLInvalidDescriptor
	}
	cleaned, postFilter := rewriteSelector(raw)
	found := applyPostFilter(sel.Find(cleaned), postFilter)
	if found.Length() == 0 {
		return abierr.HTMLNoResult
	}
	return inst.table.Allocate(&htmlNode{sel: found.First(), doc: doc}, table.KindNode)
}

// resolveAbs resolves val against the owning document's base URI.
func resolveAbs(doc *htmlDoc, val string) string {
	if doc == nil || doc.baseURL == "" {
		return val
	}
	base, err := url.Parse(doc.baseURL)
	if err != nil {
		return val
	}
	ref, err := url.Parse(val)
	if err != nil {
		return val
	}
	return base.ResolveReference(ref).String()
}

func (inst *Instance) htmlAttr(ctx context.Context, mod api.Module, rid int32, namePtr, nameLen uint32) int32 {
	name, ok := inst.readString(namePtr, nameLen)
	if !ok {
		return abierr.HTMLInvalidString
	}
	sel, doc, ok := inst.selectionAt(rid)
	if !ok {
		return abierr.HTMLInvalidDescriptor
	}
	resolve := false
	if strings.HasPrefix(name, "abs:") {
		resolve = true
		name = strings.TrimPrefix(name, "abs:")
	}
	val, exists := sel.Attr(name)
	if !exists {
		return abierr.HTMLNoResult
	}
	if resolve {
		val = resolveAbs(doc, val)
	}
	return inst.table.Allocate(&Value{Kind: KindString, S: val}, table.KindValue)
}

func (inst *Instance) stringValueRid(s string) int32 {
	return inst.table.Allocate(&Value{Kind: KindString, S: s}, table.KindValue)
}

func (inst *Instance) htmlText(ctx context.Context, mod api.Module, rid int32) int32 {
	sel, _, ok := inst.selectionAt(rid)
	if !ok {
		return abierr.HTMLInvalidDescriptor
	}
	return inst.stringValueRid(strings.TrimSpace(sel.Text()))
}

func (inst *Instance) htmlUntrimmedText(ctx context.Context, mod api.Module, rid int32) int32 {
	sel, _, ok := inst.selectionAt(rid)
	if !ok {
		return abierr.HTMLInvalidDescriptor
	}
	return inst.stringValueRid(sel.Text())
}

func (inst *Instance) htmlOwnText(ctx context.Context, mod api.Module, rid int32) int32 {
	sel, _, ok := inst.selectionAt(rid)
	if !ok || len(sel.Nodes) == 0 {
		return abierr.HTMLInvalidDescriptor
	}
	var b strings.Builder
	for c := sel.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return inst.stringValueRid(strings.TrimSpace(b.String()))
}

func (inst *Instance) htmlOuterOrInnerHTML(ctx context.Context, mod api.Module, rid int32) int32 {
	sel, _, ok := inst.selectionAt(rid)
	if !ok {
		return abierr.HTMLInvalidDescriptor
	}
	out, err := sel.Html()
	if err != nil {
		return abierr.HTMLBackendError
	}
	return inst.stringValueRid(out)
}

func (inst *Instance) htmlOuterHTML(ctx context.Context, mod api.Module, rid int32) int32 {
	sel, _, ok := inst.selectionAt(rid)
	if !ok || len(sel.Nodes) == 0 {
		return abierr.HTMLInvalidDescriptor
	}
	out, err := goquery.OuterHtml(sel)
	if err != nil {
		return abierr.HTMLBackendError
	}
	return inst.stringValueRid(out)
}

func (inst *Instance) htmlData(ctx context.Context, mod api.Module, rid int32) int32 {
	sel, _, ok := inst.selectionAt(rid)
	if !ok || len(sel.Nodes) == 0 {
		return abierr.HTMLInvalidDescriptor
	}
	var b strings.Builder
	for c := sel.Nodes[0].FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(c.Data)
	}
	return inst.stringValueRid(b.String())
}

func (inst *Instance) htmlSetText(ctx context.Context, mod api.Module, rid int32, ptr, length uint32) int32 {
	s, ok := inst.readString(ptr, length)
	if !ok {
		return abierr.HTMLInvalidString
	}
	sel, _, ok := inst.selectionAt(rid)
	if !ok {
		return abierr.HTMLInvalidDescriptor
	}
	sel.SetText(s)
	return 0
}

func (inst *Instance) htmlSetHTML(ctx context.Context, mod api.Module, rid int32, ptr, length uint32) int32 {
	s, ok := inst.readString(ptr, length)
	if !ok {
		return abierr.HTMLInvalidString
	}
	sel, _, ok := inst.selectionAt(rid)
	if !ok {
		return abierr.HTMLInvalidDescriptor
	}
	sel.SetHtml(s)
	return 0
}

func (inst *Instance) htmlPrepend(ctx context.Context, mod api.Module, rid int32, ptr, length uint32) int32 {
	s, ok := inst.readString(ptr, length)
	if !ok {
		return abierr.HTMLInvalidString
	}
	sel, _, ok := inst.selectionAt(rid)
	if !ok {
		return abierr.HTMLInvalidDescriptor
	}
	sel.PrependHtml(s)
	return 0
}

func (inst *Instance) htmlAppend(ctx context.Context, mod api.Module, rid int32, ptr, length uint32) int32 {
	s, ok := inst.readString(ptr, length)
	if !ok {
		return abierr.HTMLInvalidString
	}
	sel, _, ok := inst.selectionAt(rid)
	if !ok {
		return abierr.HTMLInvalidDescriptor
	}
	sel.AppendHtml(s)
	return 0
}

func (inst *Instance) traverse(rid int32, fn func(*goquery.Selection) *goquery.Selection) int32 {
	sel, doc, ok := inst.selectionAt(rid)
	if !ok {
		return abierr.HTMLInvalidDescriptor
	}
	out := fn(sel)
	if out.Length() == 0 {
		return abierr.HTMLNoResult
	}
	return inst.table.Allocate(&htmlNode{sel: out, doc: doc}, table.KindNode)
}

func (inst *Instance) htmlParent(ctx context.Context, mod api.Module, rid int32) int32 {
	return inst.traverse(rid, func(s *goquery.Selection) *goquery.Selection { return s.Parent() })
}

func (inst *Instance) htmlChildren(ctx context.Context, mod api.Module, rid int32) int32 {
	return inst.traverse(rid, func(s *goquery.Selection) *goquery.Selection { return s.Children() })
}

func (inst *Instance) htmlSiblings(ctx context.Context, mod api.Module, rid int32) int32 {
	return inst.traverse(rid, func(s *goquery.Selection) *goquery.Selection { return s.Siblings() })
}

func (inst *Instance) htmlNext(ctx context.Context, mod api.Module, rid int32) int32 {
	return inst.traverse(rid, func(s *goquery.Selection) *goquery.Selection { return s.Next() })
}

func (inst *Instance) htmlPrevious(ctx context.Context, mod api.Module, rid int32) int32 {
	return inst.traverse(rid, func(s *goquery.Selection) *goquery.Selection { return s.Prev() })
}

func (inst *Instance) htmlTagName(ctx context.Context, mod api.Module, rid int32) int32 {
	sel, _, ok := inst.selectionAt(rid)
	if !ok || len(sel.Nodes) == 0 {
		return abierr.HTMLInvalidDescriptor
	}
	return inst.stringValueRid(sel.Nodes[0].Data)
}

func (inst *Instance) htmlClassName(ctx context.Context, mod api.Module, rid int32) int32 {
	sel, _, ok := inst.selectionAt(rid)
	if !ok {
		return abierr.HTMLInvalidDescriptor
	}
	cls, _ := sel.Attr("class")
	return inst.stringValueRid(cls)
}

func (inst *Instance) htmlID(ctx context.Context, mod api.Module, rid int32) int32 {
	sel, _, ok := inst.selectionAt(rid)
	if !ok {
		return abierr.HTMLInvalidDescriptor
	}
	id, _ := sel.Attr("id")
	return inst.stringValueRid(id)
}

func (inst *Instance) htmlHasClass(ctx context.Context, mod api.Module, rid int32, ptr, length uint32) int32 {
	cls, ok := inst.readString(ptr, length)
	if !ok {
		return abierr.HTMLInvalidString
	}
	sel, _, ok := inst.selectionAt(rid)
	if !ok {
		return abierr.HTMLInvalidDescriptor
	}
	return boolToI32(sel.HasClass(cls))
}

func (inst *Instance) htmlHasAttr(ctx context.Context, mod api.Module, rid int32, ptr, length uint32) int32 {
	name, ok := inst.readString(ptr, length)
	if !ok {
		return abierr.HTMLInvalidString
	}
	sel, _, ok := inst.selectionAt(rid)
	if !ok {
		return abierr.HTMLInvalidDescriptor
	}
	_, exists := sel.Attr(name)
	return boolToI32(exists)
}

func (inst *Instance) htmlFirst(ctx context.Context, mod api.Module, rid int32) int32 {
	return inst.traverse(rid, func(s *goquery.Selection) *goquery.Selection { return s.First() })
}

func (inst *Instance) htmlLast(ctx context.Context, mod api.Module, rid int32) int32 {
	return inst.traverse(rid, func(s *goquery.Selection) *goquery.Selection { return s.Last() })
}

func (inst *Instance) htmlGet(ctx context.Context, mod api.Module, rid int32, index int32) int32 {
	return inst.traverse(rid, func(s *goquery.Selection) *goquery.Selection { return s.Eq(int(index)) })
}

func (inst *Instance) htmlSize(ctx context.Context, mod api.Module, rid int32) int32 {
	sel, _, ok := inst.selectionAt(rid)
	if !ok {
		return abierr.HTMLInvalidDescriptor
	}
	return int32(sel.Length())
}

// htmlArray converts a node set into an array of single-node descriptors
// (legacy idiom, spec §4.6).
func (inst *Instance) htmlArray(ctx context.Context, mod api.Module, rid int32) int32 {
	sel, doc, ok := inst.selectionAt(rid)
	if !ok {
		return abierr.HTMLInvalidDescriptor
	}
	arr := &Value{Kind: KindArray}
	sel.Each(func(i int, s *goquery.Selection) {
		childRid := inst.table.Allocate(&htmlNode{sel: s, doc: doc}, table.KindNode)
		arr.Arr = append(arr.Arr, childRid)
	})
	return inst.table.Allocate(arr, table.KindValue)
}
