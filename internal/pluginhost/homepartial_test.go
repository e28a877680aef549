package pluginhost

import (
	"testing"

	"github.com/goatkit/sourcehost/pkg/source"
)

func strp(s string) *string { return &s }

// TestHomeAccumulatorStreamsInEmissionOrder mirrors the streaming half of
// spec §8 scenario S4: three component partials should deliver the three
// components in emission order, with the last callback invocation
// carrying all three.
func TestHomeAccumulatorStreamsInEmissionOrder(t *testing.T) {
	a := newHomeAccumulator()
	var deliveries []source.HomeLayout
	a.Reset(func(l source.HomeLayout) { deliveries = append(deliveries, l) })

	a.AddComponent(source.HomeComponent{Title: strp("Trending"), Kind: source.HomeScroller})
	a.AddComponent(source.HomeComponent{Title: strp("Latest"), Kind: source.HomeScroller})
	a.AddComponent(source.HomeComponent{Title: strp("Genres"), Kind: source.HomeFilters})

	if len(deliveries) != 3 {
		t.Fatalf("got %d partial deliveries, want 3", len(deliveries))
	}
	last := deliveries[len(deliveries)-1]
	if len(last.Components) != 3 {
		t.Fatalf("final delivery has %d components, want 3", len(last.Components))
	}
	want := []string{"Trending", "Latest", "Genres"}
	for i, c := range last.Components {
		if c.Title == nil || *c.Title != want[i] {
			t.Errorf("component %d title = %v, want %q", i, c.Title, want[i])
		}
	}
}

func TestHomeAccumulatorReplacesByTitle(t *testing.T) {
	a := newHomeAccumulator()
	a.Reset(nil)

	a.AddComponent(source.HomeComponent{Title: strp("Trending"), Ranking: "v1"})
	a.AddComponent(source.HomeComponent{Title: strp("Trending"), Ranking: "v2"})

	snap := a.Snapshot()
	if len(snap.Components) != 1 {
		t.Fatalf("got %d components, want 1 (same title replaces)", len(snap.Components))
	}
	if snap.Components[0].Ranking != "v2" {
		t.Fatalf("Ranking = %q, want %q (later emission should win)", snap.Components[0].Ranking, "v2")
	}
}

func TestHomeAccumulatorAnonymousTitlesAreUnique(t *testing.T) {
	a := newHomeAccumulator()
	a.Reset(nil)

	a.AddComponent(source.HomeComponent{Kind: source.HomeBigScroller})
	a.AddComponent(source.HomeComponent{Kind: source.HomeBigScroller})

	snap := a.Snapshot()
	if len(snap.Components) != 2 {
		t.Fatalf("got %d components, want 2 (absent titles must not collide)", len(snap.Components))
	}
}

func TestHomeAccumulatorResetClearsStateBetweenCalls(t *testing.T) {
	a := newHomeAccumulator()
	a.Reset(nil)
	a.AddComponent(source.HomeComponent{Title: strp("A")})
	if a.Empty() {
		t.Fatal("expected accumulator to be non-empty after AddComponent")
	}

	a.Reset(nil)
	if !a.Empty() {
		t.Fatal("expected Reset to clear prior call's accumulated state")
	}
	if len(a.Snapshot().Components) != 0 {
		t.Fatal("expected a fresh call to start with no carried-over components")
	}
}
