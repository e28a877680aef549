package pluginhost

import (
	"context"
	"testing"

	"github.com/goatkit/sourcehost/internal/postcard"
	"github.com/goatkit/sourcehost/pkg/source"
)

// writeResultPointer writes a modern-ABI result payload at ptr, following
// the length-prefixed convention of spec §4.2/§8.8: a 4-byte little-endian
// total length, a 4-byte capacity (ignored by the reader), then the
// payload itself.
func writeResultPointer(t *testing.T, inst *Instance, ptr uint32, payload []byte) {
	t.Helper()
	total := uint32(8 + len(payload))
	buf := make([]byte, 8, 8+len(payload))
	buf[0] = byte(total)
	buf[1] = byte(total >> 8)
	buf[2] = byte(total >> 16)
	buf[3] = byte(total >> 24)
	buf = append(buf, payload...)
	if !inst.memory.Write(ptr, buf) {
		t.Fatalf("failed to write result pointer payload at %d", ptr)
	}
}

// TestSearchMangaLeavesNoDescriptorsOnSuccess mirrors spec §8 property 10:
// a call whose plugin returns an empty result must leave the scope (and
// therefore the table) empty on exit.
func TestSearchMangaLeavesNoDescriptorsOnSuccess(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()

	inst.exports["get_search_manga_list"] = fakeFunction{
		call: func(ctx context.Context, params ...uint64) ([]uint64, error) {
			return []uint64{0}, nil // empty payload per §4.2 (len <= 8 -> empty)
		},
	}

	res, err := inst.SearchManga(ctx, nil, 1, nil)
	if err != nil {
		t.Fatalf("SearchManga() error = %v", err)
	}
	if len(res.Entries) != 0 || res.HasNextPage {
		t.Fatalf("SearchManga() = %+v, want empty result", res)
	}
	if n := inst.table.Len(); n != 0 {
		t.Fatalf("table has %d outstanding entries after SearchManga, want 0 (scope must release every tracked rid)", n)
	}
}

// TestGetMangaDetailsRoundTrip mirrors spec §8 scenario S1: the plugin
// reads back the encoded input manga descriptor and returns an updated
// manga through the modern result-pointer convention; the host decodes it
// and the call's scope leaves no descriptors behind.
func TestGetMangaDetailsRoundTrip(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()

	input := source.Manga{Key: "m1", Title: "T"}

	inst.exports["get_manga_details"] = fakeFunction{
		call: func(ctx context.Context, params ...uint64) ([]uint64, error) {
			mangaRid := int32(params[0])
			v, ok := inst.valueAt(mangaRid)
			if !ok {
				t.Fatal("plugin could not read the manga descriptor the dispatcher passed in")
			}
			decoded, ok := postcard.DecodeManga(postcard.NewDecoder(v.Bytes))
			if !ok || decoded.Key != "m1" || decoded.Title != "T" {
				t.Fatalf("decoded input manga = %+v, ok=%v, want Key=m1 Title=T", decoded, ok)
			}

			e := postcard.NewEncoder()
			postcard.EncodeManga(e, source.Manga{Key: "m1", Title: "Updated"})
			writeResultPointer(t, inst, 4096, e.Bytes())
			return []uint64{4096}, nil
		},
	}

	got, err := inst.GetMangaDetails(ctx, input)
	if err != nil {
		t.Fatalf("GetMangaDetails() error = %v", err)
	}
	if got.Title != "Updated" {
		t.Fatalf("GetMangaDetails() Title = %q, want %q", got.Title, "Updated")
	}
	if n := inst.table.Len(); n != 0 {
		t.Fatalf("table has %d outstanding entries after GetMangaDetails, want 0", n)
	}
}

// TestCallExportUnsupportedWhenExportMissing covers the case where the
// loaded plugin simply doesn't export the requested entry point.
func TestCallExportUnsupportedWhenExportMissing(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()

	if _, err := inst.GetFilters(ctx); err != ErrUnsupported {
		t.Fatalf("GetFilters() error = %v, want ErrUnsupported", err)
	}
}

// TestGetHomeRequiresCapability covers the HasHome capability gate.
func TestGetHomeRequiresCapability(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()

	_, err := inst.GetHome(ctx, nil)
	if err != ErrUnsupported {
		t.Fatalf("GetHome() error = %v, want ErrUnsupported when get_home is not exported", err)
	}
}

// TestGetHomePrefersPartialsOverFinalResult mirrors spec §4.10: when the
// plugin streams partials during the call, the accumulator's contents win
// over whatever the final result payload decodes to.
func TestGetHomePrefersPartialsOverFinalResult(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()
	inst.capabilities.HasHome = true

	inst.exports["get_home"] = fakeFunction{
		call: func(ctx context.Context, params ...uint64) ([]uint64, error) {
			inst.home.AddComponent(source.HomeComponent{Title: strp("Trending")})
			return []uint64{0}, nil // final payload is empty; partials are authoritative
		},
	}

	layout, err := inst.GetHome(ctx, nil)
	if err != nil {
		t.Fatalf("GetHome() error = %v", err)
	}
	if len(layout.Components) != 1 || layout.Components[0].Title == nil || *layout.Components[0].Title != "Trending" {
		t.Fatalf("GetHome() = %+v, want one Trending component from the accumulator", layout)
	}
	if !inst.home.Empty() {
		t.Fatal("expected the accumulator to be cleared after GetHome returns")
	}
}

// TestProcessPageImageRequiresCapability covers spec §7's recoverable-error
// rule: without an image processor, the original bytes pass through.
func TestProcessPageImageRequiresCapability(t *testing.T) {
	inst := newTestInstance(t)
	ctx := context.Background()

	resp := source.HttpResponse{Status: 200, Body: []byte("raw-bytes")}
	out, err := inst.ProcessPageImage(ctx, resp, "https://example.com/x.png", nil)
	if err != ErrUnsupported {
		t.Fatalf("ProcessPageImage() error = %v, want ErrUnsupported", err)
	}
	if string(out) != "raw-bytes" {
		t.Fatalf("ProcessPageImage() = %q, want original bytes passed through", out)
	}
}
