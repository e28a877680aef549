package pluginhost

import (
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/goatkit/sourcehost/pkg/source"
)

func exportSet(names ...string) map[string]api.Function {
	m := make(map[string]api.Function, len(names))
	for _, n := range names {
		m[n] = fakeFunction{}
	}
	return m
}

func TestDetectABIModernWhenSearchOrUpdateExported(t *testing.T) {
	mode, _ := detectABI(exportSet("get_search_manga_list"), false, nil)
	if mode != ABIModern {
		t.Fatalf("mode = %v, want ABIModern", mode)
	}
	mode, _ = detectABI(exportSet("get_manga_update"), false, nil)
	if mode != ABIModern {
		t.Fatalf("mode = %v, want ABIModern", mode)
	}
}

func TestDetectABILegacyWhenOnlyLegacyExportsPresent(t *testing.T) {
	mode, _ := detectABI(exportSet("get_manga_details", "get_chapter_list"), false, nil)
	if mode != ABILegacy {
		t.Fatalf("mode = %v, want ABILegacy", mode)
	}
}

func TestDetectABIDefaultsToModern(t *testing.T) {
	mode, _ := detectABI(exportSet(), false, nil)
	if mode != ABIModern {
		t.Fatalf("mode = %v, want ABIModern (default)", mode)
	}
}

func TestDetectABILoginCapabilitiesFromExports(t *testing.T) {
	_, caps := detectABI(exportSet("get_search_manga_list", "handle_basic_login", "handle_web_login"), false, nil)
	if !caps.HandlesBasicLogin || !caps.HandlesWebLogin {
		t.Fatalf("caps = %+v, want both login flags set from exports", caps)
	}
}

func TestDetectABILoginCapabilitiesFromManifest(t *testing.T) {
	manifest := &source.Manifest{Config: &source.ManifestConfig{SupportsBasicLogin: true}}
	_, caps := detectABI(exportSet("get_search_manga_list"), false, manifest)
	if !caps.HandlesBasicLogin {
		t.Fatal("expected manifest config to set HandlesBasicLogin without a matching export")
	}
	if caps.HandlesWebLogin {
		t.Fatal("expected HandlesWebLogin to stay false when neither export nor manifest declares it")
	}
}

func TestDetectABIImageProcessorRequiresCanvasEnabled(t *testing.T) {
	_, caps := detectABI(exportSet("get_search_manga_list", "process_page_image"), false, nil)
	if caps.HasImageProcessor {
		t.Fatal("expected HasImageProcessor to be false when canvas is disabled")
	}
	_, caps = detectABI(exportSet("get_search_manga_list", "process_page_image"), true, nil)
	if !caps.HasImageProcessor {
		t.Fatal("expected HasImageProcessor to be true when canvas is enabled and the export is present")
	}
}
