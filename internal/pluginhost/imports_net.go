package pluginhost

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tetratelabs/wazero/api"

	"github.com/goatkit/sourcehost/internal/abierr"
	"github.com/goatkit/sourcehost/internal/table"
	"github.com/goatkit/sourcehost/pkg/source"
)

var methodNames = [...]string{"GET", "POST", "PUT", "HEAD", "DELETE", "PATCH", "OPTIONS", "CONNECT", "TRACE"}

// netRequest is the table payload for a net.init'd request, covering both
// its outbound shape and, once sent, the response it received (spec §4.5).
type netRequest struct {
	method  string
	url     string
	headers map[string]string
	body    []byte

	sent       bool
	status     int
	respHeader map[string]string
	respBody   []byte
	bytesRead  int
}

// buildNet registers the net import namespace (spec §4.5): request
// lifecycle, response inspection, and the synchronous bridge dispatch.
func (inst *Instance) buildNet(b *moduleBuilder) {
	b.reg("init", inst.netInit)
	b.reg("set_url", inst.netSetURL)
	b.reg("set_header", inst.netSetHeader)
	b.reg("set_body", inst.netSetBody)
	b.reg("send", inst.netSend)
	b.reg("send_all", inst.netSendAll)

	b.reg("data_len", inst.netDataLen)
	b.reg("read_data", inst.netReadData)
	b.reg("get_status_code", inst.netGetStatusCode)
	b.reg("get_header", inst.netGetHeader)
	b.reg("get_image", inst.netGetImage)
	b.reg("html", inst.netHTML)
	b.reg("json", inst.netJSON)
}

func (inst *Instance) netRequestAt(rid int32) (*netRequest, bool) {
	payload, ok := inst.table.Read(rid)
	if !ok {
		return nil, false
	}
	r, ok := payload.(*netRequest)
	return r, ok
}

func (inst *Instance) netInit(ctx context.Context, mod api.Module, methodIndex int32) int32 {
	method := "GET"
	if methodIndex >= 0 && int(methodIndex) < len(methodNames) {
		method = methodNames[methodIndex]
	}
	r := &netRequest{
		method:  method,
		headers: map[string]string{"User-Agent": "sourcehost/1.0"},
	}
	return inst.table.Allocate(r, table.KindRequest)
}

func (inst *Instance) netSetURL(ctx context.Context, mod api.Module, rid int32, ptr, length uint32) int32 {
	u, ok := inst.readString(ptr, length)
	if !ok {
		return abierr.NetInvalidString
	}
	r, ok := inst.netRequestAt(rid)
	if !ok {
		return abierr.NetInvalidDescriptor
	}
	r.url = u
	inst.table.Update(rid, r)
	return 0
}

func (inst *Instance) netSetHeader(ctx context.Context, mod api.Module, rid int32, kPtr, kLen, vPtr, vLen uint32) int32 {
	key, ok := inst.readString(kPtr, kLen)
	if !ok {
		return abierr.NetInvalidString
	}
	val, ok := inst.readString(vPtr, vLen)
	if !ok {
		return abierr.NetInvalidString
	}
	r, ok := inst.netRequestAt(rid)
	if !ok {
		return abierr.NetInvalidDescriptor
	}
	r.headers[key] = val
	inst.table.Update(rid, r)
	return 0
}

func (inst *Instance) netSetBody(ctx context.Context, mod api.Module, rid int32, ptr, length uint32) int32 {
	body, ok := inst.readBytes(ptr, length)
	if !ok {
		return abierr.NetMissingData
	}
	r, ok := inst.netRequestAt(rid)
	if !ok {
		return abierr.NetInvalidDescriptor
	}
	r.body = append([]byte(nil), body...)
	inst.table.Update(rid, r)
	return 0
}

// send implements the send sequence of spec §4.5, steps 1-7.
func (inst *Instance) send(ctx context.Context, rid int32) int32 {
	r, ok := inst.netRequestAt(rid)
	if !ok {
		return abierr.NetInvalidDescriptor
	}
	if r.url == "" {
		return abierr.NetMissingURL
	}
	if inst.opts.Bridge == nil {
		return abierr.NetRequestError
	}
	if !inst.sandbox.AllowRequest(r.url) {
		return abierr.NetRequestError
	}

	headers := make(map[string]string, len(r.headers))
	for k, v := range r.headers {
		headers[k] = v
	}
	headers["Cookie"] = inst.jar.MergeWithExplicit(r.url, headers["Cookie"])
	if headers["Cookie"] == "" {
		delete(headers, "Cookie")
	}

	resp, err := inst.opts.Bridge.Request(ctx, source.HttpRequest{
		URL: r.url, Method: r.method, Headers: headers, Body: r.body,
	})
	if err != nil || resp.Status == 0 {
		r.sent = true
		r.status = 0
		r.respHeader = map[string]string{}
		r.respBody = nil
		r.bytesRead = 0
		inst.table.Update(rid, r)
		return abierr.NetRequestError
	}

	normalized := make(map[string]string, len(resp.Headers))
	for k, v := range resp.Headers {
		lk := strings.ToLower(k)
		if existing, has := normalized[lk]; has {
			normalized[lk] = existing + ", " + v
		} else {
			normalized[lk] = v
		}
	}
	if setCookie, ok := normalized["set-cookie"]; ok {
		if host := hostOf(r.url); host != "" {
			for _, part := range strings.Split(setCookie, ", ") {
				inst.jar.StoreSetCookie(host, part)
			}
		}
	}

	r.sent = true
	r.status = resp.Status
	r.respHeader = normalized
	r.respBody = resp.Body
	r.bytesRead = 0
	inst.table.Update(rid, r)
	return 0
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

func (inst *Instance) netSend(ctx context.Context, mod api.Module, rid int32) int32 {
	return inst.send(ctx, rid)
}

func (inst *Instance) netSendAll(ctx context.Context, mod api.Module, idsPtr uint32, n int32) int32 {
	if n <= 0 {
		return 0
	}
	raw, ok := inst.readBytes(idsPtr, uint32(n)*4)
	if !ok {
		return abierr.NetMissingData
	}
	codes := make([]byte, len(raw))
	copy(codes, raw)
	for i := 0; i < int(n); i++ {
		off := i * 4
		rid := int32(uint32(codes[off]) | uint32(codes[off+1])<<8 | uint32(codes[off+2])<<16 | uint32(codes[off+3])<<24)
		code := inst.send(ctx, rid)
		codes[off] = byte(code)
		codes[off+1] = byte(code >> 8)
		codes[off+2] = byte(code >> 16)
		codes[off+3] = byte(code >> 24)
	}
	if !inst.writeBytes(idsPtr, codes) {
		return abierr.NetFailedMemoryWrite
	}
	return 0
}

func (inst *Instance) netDataLen(ctx context.Context, mod api.Module, rid int32) int32 {
	r, ok := inst.netRequestAt(rid)
	if !ok || !r.sent {
		return abierr.NetMissingResponse
	}
	return int32(len(r.respBody))
}

func (inst *Instance) netReadData(ctx context.Context, mod api.Module, rid int32, outPtr, size uint32) int32 {
	r, ok := inst.netRequestAt(rid)
	if !ok || !r.sent {
		return abierr.NetMissingResponse
	}
	if size > uint32(len(r.respBody)) {
		return abierr.NetInvalidBufferSize
	}
	if !inst.writeBytes(outPtr, r.respBody[:size]) {
		return abierr.NetFailedMemoryWrite
	}
	r.bytesRead = len(r.respBody)
	inst.table.Update(rid, r)
	return 0
}

func (inst *Instance) netGetStatusCode(ctx context.Context, mod api.Module, rid int32) int32 {
	r, ok := inst.netRequestAt(rid)
	if !ok || !r.sent {
		return abierr.NetMissingResponse
	}
	return int32(r.status)
}

// netGetHeader returns a std string-value rid holding the header's value,
// so the plugin reads it through std.read_string like any other value.
func (inst *Instance) netGetHeader(ctx context.Context, mod api.Module, rid int32, keyPtr, keyLen uint32) int32 {
	key, ok := inst.readString(keyPtr, keyLen)
	if !ok {
		return abierr.NetInvalidString
	}
	r, ok := inst.netRequestAt(rid)
	if !ok || !r.sent {
		return abierr.NetMissingResponse
	}
	val, ok := r.respHeader[strings.ToLower(key)]
	if !ok {
		return abierr.NetMissingData
	}
	return inst.table.Allocate(&Value{Kind: KindString, S: val}, table.KindValue)
}

func (inst *Instance) netGetImage(ctx context.Context, mod api.Module, rid int32) int32 {
	r, ok := inst.netRequestAt(rid)
	if !ok || !r.sent {
		return abierr.NetMissingResponse
	}
	img, _, err := image.Decode(bytes.NewReader(r.respBody))
	if err != nil {
		return abierr.NetNotAnImage
	}
	return inst.table.Allocate(img, table.KindImage)
}

// netHTML parses the response body as HTML, returning a document descriptor
// consumable by the html import (spec §4.5/§4.6).
func (inst *Instance) netHTML(ctx context.Context, mod api.Module, rid int32) int32 {
	r, ok := inst.netRequestAt(rid)
	if !ok || !r.sent {
		return abierr.NetMissingResponse
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.respBody))
	if err != nil {
		return abierr.NetInvalidHTML
	}
	return inst.table.Allocate(&htmlDoc{sel: doc.Selection, baseURL: r.url}, table.KindDocument)
}

func (inst *Instance) netJSON(ctx context.Context, mod api.Module, rid int32) int32 {
	r, ok := inst.netRequestAt(rid)
	if !ok || !r.sent {
		return abierr.NetMissingResponse
	}
	rid2, ok := inst.decodeJSONInto(r.respBody)
	if !ok {
		return abierr.NetMissingData
	}
	return rid2
}
