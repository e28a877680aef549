package pluginhost

import (
	"context"
	"fmt"
	"time"

	"github.com/goatkit/sourcehost/internal/postcard"
	"github.com/goatkit/sourcehost/internal/table"
	"github.com/goatkit/sourcehost/internal/utils"
	"github.com/goatkit/sourcehost/pkg/source"
)

// ErrUnsupported is returned when the loaded plugin's ABI mode (or detected
// capabilities) does not expose the requested operation.
var ErrUnsupported = fmt.Errorf("pluginhost: operation not supported by this plugin")

// descriptionSanitizer strips unsafe markup from Description fields a
// plugin scrapes from its source before they reach a caller that may
// render them as HTML. Shared across instances; bluemonday policies are
// safe for concurrent use.
var descriptionSanitizer = utils.NewHTMLSanitizer()

func sanitizeMangaDescription(m source.Manga) source.Manga {
	if m.Description != "" {
		m.Description = descriptionSanitizer.Sanitize(m.Description)
	}
	return m
}

func sanitizeMangaList(list []source.Manga) []source.Manga {
	for i := range list {
		list[i] = sanitizeMangaDescription(list[i])
	}
	return list
}

func sanitizeHomeLayout(l source.HomeLayout) source.HomeLayout {
	for i := range l.Components {
		l.Components[i].Entries = sanitizeMangaList(l.Components[i].Entries)
	}
	return l
}

func (inst *Instance) bytesValueRid(buf []byte) int32 {
	return inst.table.Allocate(&Value{Kind: KindBytes, Bytes: buf}, table.KindValue)
}

func (inst *Instance) encodeMangaRid(m source.Manga) int32 {
	e := postcard.NewEncoder()
	postcard.EncodeManga(e, m)
	return inst.bytesValueRid(e.Bytes())
}

func (inst *Instance) encodeChapterRid(c source.Chapter) int32 {
	e := postcard.NewEncoder()
	postcard.EncodeChapter(e, c)
	return inst.bytesValueRid(e.Bytes())
}

func (inst *Instance) encodeFiltersRid(filters []source.FilterValue) int32 {
	e := postcard.NewEncoder()
	e.Uint(uint64(len(filters)))
	for _, fv := range filters {
		postcard.EncodeFilterValue(e, fv)
	}
	return inst.bytesValueRid(e.Bytes())
}

// callExport invokes a wazero-exported function, recovering an env.abort
// panic into an error instead of letting it escape the host boundary (spec
// §4.11: abort is the only fatal error, everything else returns a code),
// and tallying the call in the sandbox's stats.
func (inst *Instance) callExport(ctx context.Context, name string, args ...uint64) (res []uint64, err error) {
	fn, ok := inst.exports[name]
	if !ok {
		return nil, ErrUnsupported
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			if ae, ok := r.(*abortError); ok {
				err = ae
			} else {
				panic(r)
			}
		}
		inst.sandbox.RecordCall(err)
		globalMetrics().recordCallMetrics(inst.Name, name, start, err)
	}()
	res, err = fn.Call(ctx, args...)
	if err != nil {
		err = fmt.Errorf("pluginhost: call %s: %w", name, err)
	}
	return res, err
}

// call0 invokes a modern-ABI export with the given i32-ish args and returns
// the decoded result payload, or nil if the plugin does not export name or
// the call itself failed at the wazero boundary.
func (inst *Instance) call0(ctx context.Context, name string, args ...uint64) ([]byte, error) {
	res, err := inst.callExport(ctx, name, args...)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, nil
	}
	return inst.readResultPointer(ctx, int32(res[0]))
}

func u64(v int32) uint64 { return uint64(uint32(v)) }

// GetFilters runs get_filters (modern) and returns the decoded descriptor
// list. Decode failures propagate as an empty list per spec §7.
func (inst *Instance) GetFilters(ctx context.Context) ([]source.Filter, error) {
	payload, err := inst.call0(ctx, "get_filters")
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}
	filters, ok := postcard.DecodeFilters(postcard.NewDecoder(payload))
	if !ok {
		inst.logger.Warn("get_filters: decode failed")
		return nil, nil
	}
	return filters, nil
}

// GetListings runs get_listings (modern).
func (inst *Instance) GetListings(ctx context.Context) ([]source.Listing, error) {
	payload, err := inst.call0(ctx, "get_listings")
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}
	listings, ok := postcard.DecodeListings(postcard.NewDecoder(payload))
	if !ok {
		inst.logger.Warn("get_listings: decode failed")
		return nil, nil
	}
	return listings, nil
}

// SearchManga runs get_search_manga_list (modern ABI). A nil query means
// "no query" (-1 sentinel rid).
func (inst *Instance) SearchManga(ctx context.Context, query *string, page int32, filters []source.FilterValue) (source.SearchResult, error) {
	scope := inst.newScope()
	defer scope.Close()

	queryRid := int32(-1)
	if query != nil {
		queryRid = inst.track(scope, inst.bytesValueRid([]byte(*query)))
	}
	filtersRid := inst.track(scope, inst.encodeFiltersRid(filters))

	payload, err := inst.call0(ctx, "get_search_manga_list", u64(queryRid), u64(page), u64(filtersRid))
	if err != nil {
		return source.SearchResult{}, err
	}
	if payload == nil {
		return source.SearchResult{}, nil
	}
	res, ok := postcard.DecodeSearchResult(postcard.NewDecoder(payload))
	if !ok {
		inst.logger.Warn("get_search_manga_list: decode failed")
		return source.SearchResult{}, nil
	}
	res.Entries = sanitizeMangaList(res.Entries)
	return res, nil
}

// GetMangaList runs the modern listing entry point get_manga_list
// (listing_rid, page).
func (inst *Instance) GetMangaList(ctx context.Context, listingID string, page int32) (source.SearchResult, error) {
	scope := inst.newScope()
	defer scope.Close()
	listingRid := inst.track(scope, inst.bytesValueRid([]byte(listingID)))

	payload, err := inst.call0(ctx, "get_manga_list", u64(listingRid), u64(page))
	if err != nil {
		return source.SearchResult{}, err
	}
	if payload == nil {
		return source.SearchResult{}, nil
	}
	res, ok := postcard.DecodeSearchResult(postcard.NewDecoder(payload))
	if !ok {
		inst.logger.Warn("get_manga_list: decode failed")
		return source.SearchResult{}, nil
	}
	res.Entries = sanitizeMangaList(res.Entries)
	return res, nil
}

// GetMangaUpdate runs get_manga_update (modern ABI).
func (inst *Instance) GetMangaUpdate(ctx context.Context, m source.Manga, needsDetails, needsChapters bool) (source.Manga, error) {
	scope := inst.newScope()
	defer scope.Close()
	mangaRid := inst.track(scope, inst.encodeMangaRid(m))

	payload, err := inst.call0(ctx, "get_manga_update", u64(mangaRid), u64(boolToI32(needsDetails)), u64(boolToI32(needsChapters)))
	if err != nil {
		return source.Manga{}, err
	}
	if payload == nil {
		return source.Manga{}, nil
	}
	updated, ok := postcard.DecodeManga(postcard.NewDecoder(payload))
	if !ok {
		inst.logger.Warn("get_manga_update: decode failed")
		return source.Manga{}, nil
	}
	return sanitizeMangaDescription(updated), nil
}

// GetPageList runs get_page_list, dispatching to the modern
// (manga_rid, chapter_rid) or legacy (chapter_rid) signature.
func (inst *Instance) GetPageList(ctx context.Context, m source.Manga, c source.Chapter) ([]source.Page, error) {
	scope := inst.newScope()
	defer scope.Close()
	chapterRid := inst.track(scope, inst.encodeChapterRid(c))

	var payload []byte
	var err error
	if inst.mode == ABIModern {
		mangaRid := inst.track(scope, inst.encodeMangaRid(m))
		payload, err = inst.call0(ctx, "get_page_list", u64(mangaRid), u64(chapterRid))
	} else {
		payload, err = inst.call0(ctx, "get_page_list", u64(chapterRid))
	}
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}
	pages, ok := postcard.DecodePages(postcard.NewDecoder(payload))
	if !ok {
		inst.logger.Warn("get_page_list: decode failed")
		return nil, nil
	}
	return pages, nil
}

// GetMangaDetails runs the legacy get_manga_details export.
func (inst *Instance) GetMangaDetails(ctx context.Context, m source.Manga) (source.Manga, error) {
	scope := inst.newScope()
	defer scope.Close()
	mangaRid := inst.track(scope, inst.encodeMangaRid(m))

	payload, err := inst.call0(ctx, "get_manga_details", u64(mangaRid))
	if err != nil {
		return source.Manga{}, err
	}
	if payload == nil {
		return source.Manga{}, nil
	}
	updated, ok := postcard.DecodeManga(postcard.NewDecoder(payload))
	if !ok {
		inst.logger.Warn("get_manga_details: decode failed")
		return source.Manga{}, nil
	}
	return sanitizeMangaDescription(updated), nil
}

// GetChapterList runs the legacy get_chapter_list export.
func (inst *Instance) GetChapterList(ctx context.Context, m source.Manga) ([]source.Chapter, error) {
	scope := inst.newScope()
	defer scope.Close()
	mangaRid := inst.track(scope, inst.encodeMangaRid(m))

	payload, err := inst.call0(ctx, "get_chapter_list", u64(mangaRid))
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}
	d := postcard.NewDecoder(payload)
	n, ok := d.Uint()
	if !ok {
		inst.logger.Warn("get_chapter_list: decode failed")
		return nil, nil
	}
	out := make([]source.Chapter, 0, n)
	for i := uint64(0); i < n; i++ {
		c, ok := postcard.DecodeChapter(d)
		if !ok {
			inst.logger.Warn("get_chapter_list: decode failed mid-list")
			return out, nil
		}
		out = append(out, c)
	}
	return out, nil
}

// GetHome runs get_home, feeding any partial results to onPartial as they
// stream in, and returning the accumulator's contents when non-empty
// (partials are authoritative per spec §4.10).
func (inst *Instance) GetHome(ctx context.Context, onPartial func(source.HomeLayout)) (source.HomeLayout, error) {
	if !inst.capabilities.HasHome {
		return source.HomeLayout{}, ErrUnsupported
	}
	inst.home.Reset(onPartial)
	defer inst.home.Reset(nil)

	payload, err := inst.call0(ctx, "get_home")
	if err != nil {
		return source.HomeLayout{}, err
	}
	if !inst.home.Empty() {
		return sanitizeHomeLayout(inst.home.Snapshot()), nil
	}
	if payload == nil {
		return source.HomeLayout{}, nil
	}
	d := postcard.NewDecoder(payload)
	layout, ok := decodeHomeLayoutFull(d)
	if !ok {
		inst.logger.Warn("get_home: decode failed")
		return source.HomeLayout{}, nil
	}
	return sanitizeHomeLayout(layout), nil
}

// GetImageRequest runs get_image_request (modern ABI): the url is encoded
// as a bytes Value and the optional context as a bare map<string,string>
// per spec §6. Returns the resulting net request's URL and headers.
func (inst *Instance) GetImageRequest(ctx context.Context, url string, reqContext map[string]string) (string, map[string]string, error) {
	scope := inst.newScope()
	defer scope.Close()
	urlRid := inst.track(scope, inst.bytesValueRid([]byte(url)))

	contextRid := int32(-1)
	if reqContext != nil {
		e := postcard.NewEncoder()
		e.MapStrings(reqContext)
		contextRid = inst.track(scope, inst.bytesValueRid(e.Bytes()))
	}

	payload, err := inst.call0(ctx, "get_image_request", u64(urlRid), u64(contextRid))
	if err != nil {
		return url, nil, err
	}
	if payload == nil {
		return url, nil, nil
	}
	d := postcard.NewDecoder(payload)
	outURL, ok := d.String()
	if !ok {
		inst.logger.Warn("get_image_request: decode failed")
		return url, nil, nil
	}
	headers, ok := d.MapStrings()
	if !ok {
		headers = nil
	}
	return outURL, headers, nil
}

// ProcessPageImage decodes rawImage, feeds it through process_page_image
// alongside the ImageResponse wire shape (spec §6), and re-extracts PNG
// bytes from the resulting image rid.
func (inst *Instance) ProcessPageImage(ctx context.Context, resp source.HttpResponse, requestURL string, requestHeaders map[string]string) ([]byte, error) {
	if !inst.capabilities.HasImageProcessor {
		return resp.Body, ErrUnsupported
	}
	scope := inst.newScope()
	defer scope.Close()

	imgRid, ok := inst.decodeImageForPlugin(resp.Body)
	if !ok {
		return resp.Body, fmt.Errorf("pluginhost: process_page_image: not an image")
	}
	inst.track(scope, imgRid)

	e := postcard.NewEncoder()
	e.Uint(uint64(resp.Status))
	e.MapStrings(resp.Headers)
	e.OptionString(&requestURL)
	e.MapStrings(requestHeaders)
	e.Int(int64(imgRid))
	responseRid := inst.track(scope, inst.bytesValueRid(e.Bytes()))

	res, err := inst.callExport(ctx, "process_page_image", u64(responseRid), u64(-1))
	if err != nil {
		return resp.Body, err
	}
	if len(res) == 0 {
		return resp.Body, nil
	}
	resultRid := int32(res[0])
	if resultRid <= 0 {
		return resp.Body, nil
	}
	png, ok := inst.encodeImageToPNG(resultRid)
	if !ok {
		inst.logger.Warn("process_page_image: result rid is not an image")
		return resp.Body, nil
	}
	return png, nil
}

// ModifyImageRequest runs the legacy modify_image_request export, which
// mutates the request rid in place rather than returning a new one.
func (inst *Instance) ModifyImageRequest(ctx context.Context, rid int32) error {
	_, err := inst.callExport(ctx, "modify_image_request", u64(rid))
	return err
}

// newScope opens a host-driven-call scope against this instance's table
// (spec §3.1): every rid the dispatcher allocates for the call is tracked
// here and force-removed on the deferred Close, success or failure.
func (inst *Instance) newScope() *table.Scope { return table.NewScope(inst.table) }

// track registers rid with scope and returns rid unchanged, so call sites
// can track inline at the allocation site. Sentinel rids (<=0, e.g. the
// "-1 means absent" convention) are not tracked since the table never
// allocated them.
func (inst *Instance) track(scope *table.Scope, rid int32) int32 {
	if rid > 0 {
		_ = scope.Track(rid)
	}
	return rid
}
