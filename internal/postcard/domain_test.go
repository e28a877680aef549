package postcard

import (
	"testing"

	"github.com/goatkit/sourcehost/pkg/source"
)

func TestMangaRoundTrip(t *testing.T) {
	next := int64(12345)
	m := source.Manga{
		Key:           "m1",
		Title:         "Title",
		Authors:       []string{"a", "b"},
		Status:        source.StatusOngoing,
		ContentRating: source.ContentRatingSafe,
		Viewer:        source.ViewerRTL,
		NextUpdate:    &next,
	}

	e := NewEncoder()
	EncodeManga(e, m)

	d := NewDecoder(e.Bytes())
	got, ok := DecodeManga(d)
	if !ok {
		t.Fatal("decode failed")
	}
	if got.Key != m.Key || got.Title != m.Title || got.Status != m.Status {
		t.Errorf("got %+v, want %+v", got, m)
	}
	if len(got.Authors) != 2 || got.Authors[0] != "a" {
		t.Errorf("authors mismatch: %v", got.Authors)
	}
	if got.NextUpdate == nil || *got.NextUpdate != next {
		t.Errorf("nextUpdate mismatch: %v", got.NextUpdate)
	}
}

func TestMangaEncodingBeginsWithKeyThenTitleThenOptionNones(t *testing.T) {
	// Grounds scenario S1: encoded request bytes begin with postcard
	// string "m1" then "T" then eight option-None bytes.
	m := source.Manga{Key: "m1", Title: "T"}
	e := NewEncoder()
	EncodeManga(e, m)
	buf := e.Bytes()

	want := []byte{2, 'm', '1', 1, 'T', 0, 0, 0, 0, 0, 0, 0, 0}
	if len(buf) < len(want) {
		t.Fatalf("encoded bytes too short: % x", buf)
	}
	for i := range want {
		if buf[i] != want[i] {
			t.Fatalf("byte %d = %#x, want %#x (full: % x)", i, buf[i], want[i], buf)
		}
	}
}

func TestPageDecodeURLVariant(t *testing.T) {
	e := NewEncoder()
	e.Uint(0) // Url variant
	e.String("u1")
	e.OptionNone() // no context
	e.OptionNone() // no thumbnail
	e.Bool(false)  // has-description
	e.OptionNone() // description placeholder (ignored since has-description false)

	d := NewDecoder(e.Bytes())
	p, ok := DecodePage(d)
	if !ok {
		t.Fatal("decode failed")
	}
	if p.Kind != source.PageURL || p.URL != "u1" {
		t.Errorf("got %+v", p)
	}
}

func TestFilterDescriptorSortAndGenre(t *testing.T) {
	e := NewEncoder()
	e.Uint(3) // Sort
	e.String("Sort by")
	e.VecStrings([]string{"a", "b"})
	e.Int(0)
	e.Bool(false)
	e.Bool(true)

	d := NewDecoder(e.Bytes())
	f, ok := DecodeFilterDescriptor(d)
	if !ok {
		t.Fatal("decode failed")
	}
	if f.Kind != source.FilterSort || len(f.Options) != 2 || !f.CanAscend {
		t.Errorf("got %+v", f)
	}
}

func TestGenreStateZigzagDecoding(t *testing.T) {
	e := NewEncoder()
	e.Uint(6) // Genre
	e.String("Genres")
	e.VecStrings([]string{"x"})
	e.Bool(true)
	e.Uint(1) // one default
	e.Int(0)
	e.Uint(zigzagEncode(-1)) // Excluded

	d := NewDecoder(e.Bytes())
	f, ok := DecodeFilterDescriptor(d)
	if !ok {
		t.Fatal("decode failed")
	}
	if len(f.GenreDefaults) != 1 || f.GenreDefaults[0].State != source.GenreExcluded {
		t.Errorf("got %+v", f.GenreDefaults)
	}
}

func TestFilterValueRoundTrip(t *testing.T) {
	fv := source.FilterValue{Kind: source.FilterValueMultiSelect, ID: "tags", MultiIncluded: []string{"a"}, MultiExcluded: []string{"b"}}
	e := NewEncoder()
	EncodeFilterValue(e, fv)

	d := NewDecoder(e.Bytes())
	got, ok := DecodeFilterValue(d)
	if !ok {
		t.Fatal("decode failed")
	}
	if got.Kind != fv.Kind || got.ID != fv.ID || len(got.MultiIncluded) != 1 || len(got.MultiExcluded) != 1 {
		t.Errorf("got %+v", got)
	}
}
