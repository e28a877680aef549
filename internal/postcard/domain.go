package postcard

import "github.com/goatkit/sourcehost/pkg/source"

// EncodeManga writes the wire shape for a Manga sent to the plugin (spec
// §6): key, title, option<cover>, option<vec<authors>>,
// option<vec<artists>>, option<description>, option<url>,
// option<vec<tags>>, status, contentRating, viewer, updateStrategy=0,
// option<nextUpdate>=None, option<chapters>=None.
func EncodeManga(e *Encoder, m source.Manga) {
	e.String(m.Key)
	e.String(m.Title)
	e.OptionString(optStringOrNil(m.Cover))
	e.OptionVecStrings(m.Authors)
	e.OptionVecStrings(m.Artists)
	e.OptionString(optStringOrNil(m.Description))
	e.OptionString(optStringOrNil(m.URL))
	e.OptionVecStrings(m.Tags)
	e.Byte(byte(m.Status))
	e.Byte(byte(m.ContentRating))
	e.Byte(byte(m.Viewer))
	e.Byte(0) // updateStrategy, fixed at 0
	e.OptionI64(m.NextUpdate)
	e.OptionNone() // chapters always omitted on the outbound encoding
}

func optStringOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// DecodeManga reads the inbound Manga shape a plugin returns.
func DecodeManga(d *Decoder) (source.Manga, bool) {
	var m source.Manga
	var ok bool
	if m.Key, ok = d.String(); !ok {
		return m, false
	}
	if titleOpt, ok := d.OptionString(); ok {
		if titleOpt != nil {
			m.Title = *titleOpt
		}
	} else {
		return m, false
	}
	if cover, ok := d.OptionString(); ok {
		if cover != nil {
			m.Cover = *cover
		}
	} else {
		return m, false
	}
	if authors, ok := d.OptionVecStrings(); ok {
		m.Authors = authors
	} else {
		return m, false
	}
	if artists, ok := d.OptionVecStrings(); ok {
		m.Artists = artists
	} else {
		return m, false
	}
	if desc, ok := d.OptionString(); ok {
		if desc != nil {
			m.Description = *desc
		}
	} else {
		return m, false
	}
	if url, ok := d.OptionString(); ok {
		if url != nil {
			m.URL = *url
		}
	} else {
		return m, false
	}
	if tags, ok := d.OptionVecStrings(); ok {
		m.Tags = tags
	} else {
		return m, false
	}
	statusB, ok := d.Byte()
	if !ok {
		return m, false
	}
	m.Status = source.PublicationStatus(statusB)
	ratingB, ok := d.Byte()
	if !ok {
		return m, false
	}
	m.ContentRating = source.ContentRating(ratingB)
	viewerB, ok := d.Byte()
	if !ok {
		return m, false
	}
	m.Viewer = source.ViewerHint(viewerB)
	if _, ok := d.Byte(); !ok { // updateStrategy, ignored
		return m, false
	}
	if next, ok := d.OptionI64(); ok {
		m.NextUpdate = next
	} else {
		return m, false
	}
	hasChapters, ok := d.OptionTag()
	if !ok {
		return m, false
	}
	if hasChapters {
		n, ok := d.Uint()
		if !ok {
			return m, false
		}
		m.Chapters = make([]source.Chapter, 0, n)
		for i := uint64(0); i < n; i++ {
			c, ok := DecodeChapter(d)
			if !ok {
				return m, false
			}
			m.Chapters = append(m.Chapters, c)
		}
	}
	return m, true
}

// EncodeChapter writes the wire shape for a Chapter sent to the plugin
// (spec §6): key, option<title>, option<f32 chapter>, option<f32 volume>,
// option<i64 date>, option<vec<string> scanlators>, option<url>,
// option<lang>, option<thumbnail>=None, bool locked=false.
func EncodeChapter(e *Encoder, c source.Chapter) {
	e.String(c.Key)
	e.OptionString(optStringOrNil(c.Title))
	e.OptionF32(c.Chapter)
	e.OptionF32(c.Volume)
	e.OptionI64(c.DateUpload)
	e.OptionVecStrings(c.Scanlators)
	e.OptionString(optStringOrNil(c.URL))
	e.OptionString(optStringOrNil(c.Lang))
	e.OptionNone() // thumbnail, fixed at None on outbound
	e.Bool(false)  // locked, fixed at false on outbound
}

// DecodeChapter reads the inbound Chapter shape a plugin returns.
func DecodeChapter(d *Decoder) (source.Chapter, bool) {
	var c source.Chapter
	var ok bool
	if c.Key, ok = d.String(); !ok {
		return c, false
	}
	if title, ok := d.OptionString(); ok {
		if title != nil {
			c.Title = *title
		}
	} else {
		return c, false
	}
	if c.Chapter, ok = d.OptionF32(); !ok {
		return c, false
	}
	if c.Volume, ok = d.OptionF32(); !ok {
		return c, false
	}
	if c.DateUpload, ok = d.OptionI64(); !ok {
		return c, false
	}
	if scan, ok := d.OptionVecStrings(); ok {
		c.Scanlators = scan
	} else {
		return c, false
	}
	if url, ok := d.OptionString(); ok {
		if url != nil {
			c.URL = *url
		}
	} else {
		return c, false
	}
	if lang, ok := d.OptionString(); ok {
		if lang != nil {
			c.Lang = *lang
		}
	} else {
		return c, false
	}
	if thumb, ok := d.OptionString(); ok {
		if thumb != nil {
			c.Thumbnail = *thumb
		}
	} else {
		return c, false
	}
	if c.Locked, ok = d.Bool(); !ok {
		return c, false
	}
	return c, true
}

// DecodePage reads one Page tagged union (spec §4.3): variant 0 Url(string,
// option<context-map>), 1 Text(string), 2 Zip(string, string); followed in
// every case by option<thumbnail>, bool has-description, option<description>.
func DecodePage(d *Decoder) (source.Page, bool) {
	var p source.Page
	tag, ok := d.Uint()
	if !ok {
		return p, false
	}
	switch tag {
	case 0:
		p.Kind = source.PageURL
		url, ok := d.String()
		if !ok {
			return p, false
		}
		p.URL = url
		ctx, ok := optionContextMap(d)
		if !ok {
			return p, false
		}
		p.Context = ctx
	case 1:
		p.Kind = source.PageText
		text, ok := d.String()
		if !ok {
			return p, false
		}
		p.Text = text
	case 2:
		p.Kind = source.PageZip
		archive, ok := d.String()
		if !ok {
			return p, false
		}
		path, ok := d.String()
		if !ok {
			return p, false
		}
		p.ArchiveURL = archive
		p.ArchivePath = path
	default:
		return p, false
	}
	if thumb, ok := d.OptionString(); ok {
		p.Thumbnail = thumb
	} else {
		return p, false
	}
	hasDesc, ok := d.Bool()
	if !ok {
		return p, false
	}
	if desc, ok := d.OptionString(); ok {
		if hasDesc {
			p.Description = desc
		}
	} else {
		return p, false
	}
	return p, true
}

func optionContextMap(d *Decoder) (map[string]string, bool) {
	some, ok := d.OptionTag()
	if !ok {
		return nil, false
	}
	if !some {
		return nil, true
	}
	return d.MapStrings()
}

// DecodeFilterDescriptor reads one Filter (descriptor) tagged union (spec
// §4.3): 0 Title, 1 Author, 2 Select, 3 Sort, 4 Check, 5 Group, 6 Genre.
func DecodeFilterDescriptor(d *Decoder) (source.Filter, bool) {
	var f source.Filter
	tag, ok := d.Uint()
	if !ok {
		return f, false
	}
	name, ok := d.String()
	if !ok {
		return f, false
	}
	f.Name = name
	switch tag {
	case 0:
		f.Kind = source.FilterTitle
	case 1:
		f.Kind = source.FilterAuthor
	case 2:
		f.Kind = source.FilterSelect
		opts, ok := d.VecStrings()
		if !ok {
			return f, false
		}
		idx, ok := d.Int()
		if !ok {
			return f, false
		}
		f.Options = opts
		f.DefaultIndex = int32(idx)
	case 3:
		f.Kind = source.FilterSort
		opts, ok := d.VecStrings()
		if !ok {
			return f, false
		}
		idx, ok := d.Int()
		if !ok {
			return f, false
		}
		asc, ok := d.Bool()
		if !ok {
			return f, false
		}
		canAscend, ok := d.Bool()
		if !ok {
			return f, false
		}
		f.Options = opts
		f.DefaultSort = source.SortDefault{Index: int32(idx), Ascending: asc}
		f.CanAscend = canAscend
	case 4:
		f.Kind = source.FilterCheck
		def, ok := d.Bool()
		if !ok {
			return f, false
		}
		f.DefaultBool = def
	case 5:
		f.Kind = source.FilterGroup
		n, ok := d.Uint()
		if !ok {
			return f, false
		}
		subs := make([]source.Filter, 0, n)
		for i := uint64(0); i < n; i++ {
			sub, ok := DecodeFilterDescriptor(d)
			if !ok {
				return f, false
			}
			subs = append(subs, sub)
		}
		f.SubFilters = subs
	case 6:
		f.Kind = source.FilterGenre
		opts, ok := d.VecStrings()
		if !ok {
			return f, false
		}
		canExclude, ok := d.Bool()
		if !ok {
			return f, false
		}
		n, ok := d.Uint()
		if !ok {
			return f, false
		}
		defaults := make([]source.GenreDefault, 0, n)
		for i := uint64(0); i < n; i++ {
			idx, ok := d.Int()
			if !ok {
				return f, false
			}
			stateRaw, ok := d.Uint()
			if !ok {
				return f, false
			}
			// state is transmitted as an unsigned varint that must be
			// zigzag-decoded (spec §4.3 semantic rule).
			state := source.GenreState(zigzagDecode(stateRaw))
			defaults = append(defaults, source.GenreDefault{Index: int32(idx), State: state})
		}
		f.Options = opts
		f.CanExclude = canExclude
		f.GenreDefaults = defaults
	default:
		return f, false
	}
	return f, true
}

// EncodeFilterValue writes one FilterValue tagged union (spec §4.3): 0
// Text, 1 Sort, 2 Check, 3 Select, 4 MultiSelect, 5 Range (folded into a
// neutral Group on decode per spec §9 Open Questions).
func EncodeFilterValue(e *Encoder, fv source.FilterValue) {
	switch fv.Kind {
	case source.FilterValueText:
		e.Uint(0)
		e.String(fv.ID)
		e.String(fv.Text)
	case source.FilterValueSort:
		e.Uint(1)
		e.String(fv.ID)
		e.Int(int64(fv.SortIndex))
		e.Bool(fv.SortAscending)
	case source.FilterValueCheck:
		e.Uint(2)
		e.String(fv.ID)
		e.Bool(fv.CheckValue)
	case source.FilterValueSelect:
		e.Uint(3)
		e.String(fv.ID)
		e.String(fv.SelectValue)
	case source.FilterValueMultiSelect:
		e.Uint(4)
		e.String(fv.ID)
		e.VecStrings(fv.MultiIncluded)
		e.VecStrings(fv.MultiExcluded)
	case source.FilterValueRange:
		e.Uint(5)
		e.String(fv.ID)
		e.OptionF32(fv.RangeLow)
		e.OptionF32(fv.RangeHigh)
	}
}

// DecodeFilterValue reads one wire FilterValue. A Range (tag 5) decodes as
// a FilterValueRange carrying its optional low/high bounds; it is not
// folded into a Group filter here and its raw bytes are not kept
// (RangeValueAsGroupFilter performs that folding when given the bytes).
func DecodeFilterValue(d *Decoder) (source.FilterValue, bool) {
	var fv source.FilterValue
	tag, ok := d.Uint()
	if !ok {
		return fv, false
	}
	id, ok := d.String()
	if !ok {
		return fv, false
	}
	fv.ID = id
	switch tag {
	case 0:
		fv.Kind = source.FilterValueText
		text, ok := d.String()
		if !ok {
			return fv, false
		}
		fv.Text = text
	case 1:
		fv.Kind = source.FilterValueSort
		idx, ok := d.Int()
		if !ok {
			return fv, false
		}
		asc, ok := d.Bool()
		if !ok {
			return fv, false
		}
		fv.SortIndex = int32(idx)
		fv.SortAscending = asc
	case 2:
		fv.Kind = source.FilterValueCheck
		b, ok := d.Bool()
		if !ok {
			return fv, false
		}
		fv.CheckValue = b
	case 3:
		fv.Kind = source.FilterValueSelect
		s, ok := d.String()
		if !ok {
			return fv, false
		}
		fv.SelectValue = s
	case 4:
		fv.Kind = source.FilterValueMultiSelect
		inc, ok := d.VecStrings()
		if !ok {
			return fv, false
		}
		exc, ok := d.VecStrings()
		if !ok {
			return fv, false
		}
		fv.MultiIncluded = inc
		fv.MultiExcluded = exc
	case 5:
		fv.Kind = source.FilterValueRange
		low, ok := d.OptionF32()
		if !ok {
			return fv, false
		}
		high, ok := d.OptionF32()
		if !ok {
			return fv, false
		}
		fv.RangeLow = low
		fv.RangeHigh = high
	default:
		return fv, false
	}
	return fv, true
}

// RangeValueAsGroupFilter folds a decoded Range FilterValue into the
// neutral Group Filter representation the host surfaces to callers,
// preserving the original wire bytes.
func RangeValueAsGroupFilter(fv source.FilterValue, rawBytes []byte) source.Filter {
	return source.Filter{
		Kind:       source.FilterGroup,
		Name:       fv.ID,
		RangeBytes: rawBytes,
	}
}

// DecodeHomeComponentValue reads the tagged HomeComponentValue union (spec
// §4.3): 0 ImageScroller, 1 BigScroller, 2 Scroller, 3 MangaList, 4
// MangaChapterList, 5 Filters, 6 Links.
func DecodeHomeComponentValue(d *Decoder) (source.HomeComponentKind, source.HomeComponent, bool) {
	var hc source.HomeComponent
	tag, ok := d.Uint()
	if !ok {
		return 0, hc, false
	}
	switch tag {
	case 0, 1, 2:
		n, ok := d.Uint()
		if !ok {
			return 0, hc, false
		}
		entries := make([]source.Manga, 0, n)
		for i := uint64(0); i < n; i++ {
			m, ok := DecodeManga(d)
			if !ok {
				return 0, hc, false
			}
			entries = append(entries, m)
		}
		hc.Entries = entries
	case 3:
		ranking, ok := d.String()
		if !ok {
			return 0, hc, false
		}
		pageSize, ok := d.Int()
		if !ok {
			return 0, hc, false
		}
		hc.Ranking = ranking
		hc.PageSize = int32(pageSize)
	case 4:
		pageSize, ok := d.Int()
		if !ok {
			return 0, hc, false
		}
		hc.PageSize = int32(pageSize)
	case 5:
		// Filters component carries no payload beyond the tag.
	case 6:
		n, ok := d.Uint()
		if !ok {
			return 0, hc, false
		}
		links := make([]source.HomeLink, 0, n)
		for i := uint64(0); i < n; i++ {
			title, ok := d.String()
			if !ok {
				return 0, hc, false
			}
			imprint, ok := d.String()
			if !ok {
				return 0, hc, false
			}
			img, ok := d.String()
			if !ok {
				return 0, hc, false
			}
			links = append(links, source.HomeLink{Title: title, Imprint: imprint, ImageURL: img})
		}
		hc.Links = links
	default:
		return 0, hc, false
	}
	hc.Kind = source.HomeComponentKind(tag)
	return hc.Kind, hc, true
}

// DecodeSearchResult reads a vec<Manga> followed by a hasNextPage bool, the
// wire shape of get_search_manga_list/get_manga_list results.
func DecodeSearchResult(d *Decoder) (source.SearchResult, bool) {
	n, ok := d.Uint()
	if !ok {
		return source.SearchResult{}, false
	}
	entries := make([]source.Manga, 0, n)
	for i := uint64(0); i < n; i++ {
		m, ok := DecodeManga(d)
		if !ok {
			return source.SearchResult{}, false
		}
		entries = append(entries, m)
	}
	hasNext, ok := d.Bool()
	if !ok {
		return source.SearchResult{}, false
	}
	return source.SearchResult{Entries: entries, HasNextPage: hasNext}, true
}

// DecodeListing reads one Listing descriptor: id, name, kind tag.
func DecodeListing(d *Decoder) (source.Listing, bool) {
	id, ok := d.String()
	if !ok {
		return source.Listing{}, false
	}
	name, ok := d.String()
	if !ok {
		return source.Listing{}, false
	}
	kind, ok := d.Byte()
	if !ok {
		return source.Listing{}, false
	}
	return source.Listing{ID: id, Name: name, Kind: source.ListingKind(kind)}, true
}

// DecodeListings reads a vec<Listing>, the wire shape of get_listings.
func DecodeListings(d *Decoder) ([]source.Listing, bool) {
	n, ok := d.Uint()
	if !ok {
		return nil, false
	}
	out := make([]source.Listing, 0, n)
	for i := uint64(0); i < n; i++ {
		l, ok := DecodeListing(d)
		if !ok {
			return nil, false
		}
		out = append(out, l)
	}
	return out, true
}

// DecodeFilters reads a vec<Filter>, the wire shape of get_filters.
func DecodeFilters(d *Decoder) ([]source.Filter, bool) {
	n, ok := d.Uint()
	if !ok {
		return nil, false
	}
	out := make([]source.Filter, 0, n)
	for i := uint64(0); i < n; i++ {
		f, ok := DecodeFilterDescriptor(d)
		if !ok {
			return nil, false
		}
		out = append(out, f)
	}
	return out, true
}

// DecodePages reads a vec<Page>, the wire shape of get_page_list.
func DecodePages(d *Decoder) ([]source.Page, bool) {
	n, ok := d.Uint()
	if !ok {
		return nil, false
	}
	out := make([]source.Page, 0, n)
	for i := uint64(0); i < n; i++ {
		p, ok := DecodePage(d)
		if !ok {
			return nil, false
		}
		out = append(out, p)
	}
	return out, true
}
