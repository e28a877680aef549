package pluginhost

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/goatkit/sourcehost/pkg/source"
)

// ABIMode distinguishes the legacy generic-object-descriptor calling
// convention from the modern postcard-result-pointer convention (spec
// §4.2).
type ABIMode uint8

const (
	ABIModern ABIMode = iota
	ABILegacy
)

func (m ABIMode) String() string {
	if m == ABILegacy {
		return "legacy"
	}
	return "modern"
}

// Capabilities are the dispatcher-published booleans (spec §4.2), derived
// purely from which exports and manifest fields are present.
type Capabilities struct {
	HasImageProcessor  bool
	HasImageRequest    bool
	HasHome            bool
	HasListingProvider bool // modern only
	HasDynamicListings bool
	HandlesBasicLogin  bool
	HandlesWebLogin    bool
}

// detectABI implements the mode-detection rule (spec §4.2): modern if
// get_search_manga_list or get_manga_update is exported; else legacy if
// get_manga_details, get_chapter_list, or get_manga_list is exported;
// otherwise default to modern. HandlesBasicLogin/HandlesWebLogin are
// derived the same way as every other capability: the presence of the
// plugin's login export, or a manifest config hint for plugins that drive
// login through some other mechanism (e.g. a JS-evaluator snippet) without
// exporting a dedicated function.
func detectABI(exports map[string]api.Function, canvasEnabled bool, manifest *source.Manifest) (ABIMode, Capabilities) {
	_, hasSearch := exports["get_search_manga_list"]
	_, hasUpdate := exports["get_manga_update"]
	_, hasDetails := exports["get_manga_details"]
	_, hasChapters := exports["get_chapter_list"]
	_, hasLegacyList := exports["get_manga_list"]

	mode := ABIModern
	switch {
	case hasSearch || hasUpdate:
		mode = ABIModern
	case hasDetails || hasChapters || hasLegacyList:
		mode = ABILegacy
	}

	_, hasProcess := exports["process_page_image"]
	_, hasImageReq := exports["get_image_request"]
	_, hasModifyImageReq := exports["modify_image_request"]
	_, hasHome := exports["get_home"]
	_, hasListings := exports["get_listings"]
	_, hasBasicLogin := exports["handle_basic_login"]
	_, hasWebLogin := exports["handle_web_login"]

	var manifestBasicLogin, manifestWebLogin bool
	if manifest != nil && manifest.Config != nil {
		manifestBasicLogin = manifest.Config.SupportsBasicLogin
		manifestWebLogin = manifest.Config.SupportsWebLogin
	}

	caps := Capabilities{
		HasImageProcessor:  hasProcess && canvasEnabled,
		HasImageRequest:    hasImageReq || hasModifyImageReq,
		HasHome:            hasHome,
		HasListingProvider: mode == ABIModern && hasListings,
		HasDynamicListings: mode == ABIModern && hasListings,
		HandlesBasicLogin:  hasBasicLogin || manifestBasicLogin,
		HandlesWebLogin:    hasWebLogin || manifestWebLogin,
	}
	return mode, caps
}
