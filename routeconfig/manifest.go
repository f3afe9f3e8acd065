// Package routeconfig resolves the configuration of an upload endpoint from the route
// manifest published by the backend.
package routeconfig

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"
)

// EndpointConfig is one entry of a route manifest.
type EndpointConfig struct {
	Slug   string          `json:"slug"`
	Config json.RawMessage `json:"config"`
}

// RouteConfig decodes the entry's config.
func (e EndpointConfig) RouteConfig() (RouteConfig, error) {
	return ParseRouteConfig(e.Config)
}

// Manifest is the ordered list of endpoints published by the backend.
type Manifest []EndpointConfig

// Find returns the first entry with the given slug, or nil.
func (m Manifest) Find(slug string) *EndpointConfig {
	for i := range m {
		if m[i].Slug == slug {
			entry := m[i]
			return &entry
		}
	}
	return nil
}

// Payload is the result of a manifest fetch: either the raw response text or an already
// decoded manifest. The zero value means the fetch has not settled.
type Payload struct {
	Text     []byte
	Manifest Manifest
}

// Settled reports whether the payload carries a fetch result.
func (p Payload) Settled() bool {
	return p.Text != nil || p.Manifest != nil
}

// Decode returns the structured manifest, parsing Text when needed.
// Comments and trailing commas in Text are tolerated.
func (p Payload) Decode() (Manifest, error) {
	if p.Manifest != nil {
		return p.Manifest, nil
	}
	if len(p.Text) == 0 {
		return nil, nil
	}

	var manifest Manifest
	if err := json.Unmarshal(jsonc.ToJSON(p.Text), &manifest); err != nil {
		return nil, fmt.Errorf("decode route manifest: %w", err)
	}
	return manifest, nil
}
