package source

import (
	"encoding/json"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Manifest represents a plugin package's Payload/source.json descriptor.
type Manifest struct {
	Info      ManifestInfo     `json:"info"`
	Listings  []Listing        `json:"listings,omitempty"`
	Filters   []Filter         `json:"filters,omitempty"`
	Config    *ManifestConfig  `json:"config,omitempty"`
}

// ManifestInfo is the required identity block of a manifest.
type ManifestInfo struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Lang          string   `json:"lang"`
	Version       string   `json:"version"`
	URLs          []string `json:"urls,omitempty"`
	Languages     []string `json:"languages,omitempty"`
	ContentRating string   `json:"contentRating,omitempty"`
}

// ManifestConfig carries the optional behavioral hints a plugin declares.
type ManifestConfig struct {
	HidesFiltersWhileSearching bool   `json:"hidesFiltersWhileSearching,omitempty"`
	SupportsAuthorSearch       bool   `json:"supportsAuthorSearch,omitempty"`
	SupportsTagSearch          bool   `json:"supportsTagSearch,omitempty"`
	AllowsBaseURLSelect        bool   `json:"allowsBaseUrlSelect,omitempty"`
	LanguageSelectType         string `json:"languageSelectType,omitempty"`
	SupportsBasicLogin         bool   `json:"supportsBasicLogin,omitempty"`
	SupportsWebLogin           bool   `json:"supportsWebLogin,omitempty"`
}

// manifestSchema is the JSON Schema every source.json must satisfy before
// its fields are trusted. It is the only schema here: filters.json is
// merged by MergeFiltersFragment without schema validation, and
// settings.json is not handled in this package.
const manifestSchema = `{
  "type": "object",
  "required": ["info"],
  "properties": {
    "info": {
      "type": "object",
      "required": ["id", "name", "lang", "version"],
      "properties": {
        "id": {"type": "string", "minLength": 1},
        "name": {"type": "string", "minLength": 1},
        "lang": {"type": "string"},
        "version": {"type": "string"},
        "urls": {"type": "array", "items": {"type": "string"}},
        "languages": {"type": "array", "items": {"type": "string"}},
        "contentRating": {"type": "string"}
      }
    },
    "listings": {"type": "array"},
    "filters": {"type": "array"},
    "config": {"type": "object"}
  }
}`

var manifestSchemaLoader = gojsonschema.NewStringLoader(manifestSchema)

// ParseManifest decodes and schema-validates a source.json payload.
//
// MergeFiltersFragment merges a standalone filters.json into a manifest
// when the manifest itself does not carry a filters block, matching the
// package extractor's documented merge behavior.
func ParseManifest(data []byte) (*Manifest, error) {
	result, err := gojsonschema.Validate(manifestSchemaLoader, gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validating manifest: %w", err)
	}
	if !result.Valid() {
		return nil, fmt.Errorf("invalid manifest: %v", result.Errors())
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &m, nil
}

// MergeFiltersFragment merges a standalone filters.json document into a
// manifest that did not itself carry a filters block.
func MergeFiltersFragment(m *Manifest, filtersJSON []byte) error {
	if len(m.Filters) > 0 {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(filtersJSON, &raw); err != nil {
		return fmt.Errorf("decoding filters.json: %w", err)
	}
	// filters.json carries the same descriptor shape as Manifest.Filters;
	// reuse the outer unmarshaler by wrapping it.
	wrapper := struct {
		Filters []Filter `json:"filters"`
	}{}
	wrapped, err := json.Marshal(struct {
		Filters []json.RawMessage `json:"filters"`
	}{Filters: raw})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(wrapped, &wrapper); err != nil {
		return fmt.Errorf("decoding filters.json entries: %w", err)
	}
	m.Filters = wrapper.Filters
	return nil
}
