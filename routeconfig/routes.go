package routeconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bitrise-io/go-uploadthing/upload"
	"github.com/bitrise-io/go-uploadthing/uploaderror"
	"github.com/docker/go-units"
)

// blobKey is the catch-all file type of a route.
const blobKey = "blob"

// FileRouteConfig restricts the files of one type accepted by an endpoint.
type FileRouteConfig struct {
	// MaxFileSize is a human readable size, e.g. "4MB" (binary units).
	MaxFileSize        string `json:"maxFileSize"`
	MaxFileCount       int    `json:"maxFileCount"`
	MinFileCount       int    `json:"minFileCount"`
	ContentDisposition string `json:"contentDisposition,omitempty"`
	ACL                string `json:"acl,omitempty"`
}

// MaxFileSizeBytes parses MaxFileSize. An empty value means no limit and returns 0.
func (c FileRouteConfig) MaxFileSizeBytes() (int64, error) {
	if c.MaxFileSize == "" {
		return 0, nil
	}
	size, err := units.RAMInBytes(c.MaxFileSize)
	if err != nil {
		return 0, fmt.Errorf("parse max file size %q: %w", c.MaxFileSize, err)
	}
	return size, nil
}

// RouteConfig maps file types ("image", "video", "blob", or a full MIME type) to their limits.
type RouteConfig map[string]FileRouteConfig

// ParseRouteConfig decodes the config of a manifest entry.
func ParseRouteConfig(raw json.RawMessage) (RouteConfig, error) {
	if len(raw) == 0 {
		return RouteConfig{}, nil
	}
	var config RouteConfig
	if err := json.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("decode route config: %w", err)
	}
	return config, nil
}

// FileTypes returns the accepted file types, sorted.
func (c RouteConfig) FileTypes() []string {
	types := make([]string, 0, len(c))
	for t := range c {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Match returns the file type key accepting a file with the given MIME type.
func (c RouteConfig) Match(contentType string) (string, bool) {
	if _, ok := c[contentType]; ok && contentType != "" {
		return contentType, true
	}
	if general, _, found := strings.Cut(contentType, "/"); found {
		if general == "application" && strings.HasSuffix(contentType, "/pdf") {
			if _, ok := c["pdf"]; ok {
				return "pdf", true
			}
		}
		if _, ok := c[general]; ok {
			return general, true
		}
	}
	if _, ok := c[blobKey]; ok {
		return blobKey, true
	}
	return "", false
}

// Check verifies files against the route's limits before anything is sent.
func (c RouteConfig) Check(files []*upload.File) error {
	if len(c) == 0 {
		return nil
	}

	counts := map[string]int{}
	for _, f := range files {
		key, ok := c.Match(f.Type)
		if !ok {
			return uploaderror.New(uploaderror.CodeBadRequest,
				fmt.Sprintf("file type %q of %s is not allowed, expected one of: %s", f.Type, f.Name, strings.Join(c.FileTypes(), ", ")))
		}
		counts[key]++

		limit, err := c[key].MaxFileSizeBytes()
		if err != nil {
			return uploaderror.New(uploaderror.CodeInvalidServerConfig, err.Error())
		}
		if limit > 0 && f.Size > limit {
			return uploaderror.New(uploaderror.CodeTooLarge,
				fmt.Sprintf("%s is %s, the %s limit is %s", f.Name, units.BytesSize(float64(f.Size)), key, c[key].MaxFileSize))
		}
	}

	for _, key := range c.FileTypes() {
		route := c[key]
		count := counts[key]
		if route.MaxFileCount > 0 && count > route.MaxFileCount {
			return uploaderror.New(uploaderror.CodeTooManyFiles,
				fmt.Sprintf("%d %s file(s) provided, at most %d allowed", count, key, route.MaxFileCount))
		}
		if count < route.MinFileCount {
			return uploaderror.New(uploaderror.CodeTooSmall,
				fmt.Sprintf("%d %s file(s) provided, at least %d required", count, key, route.MinFileCount))
		}
	}

	return nil
}

// ErrUnknownEndpoint is returned by Unwrap for a slug missing from a non-empty registry.
var ErrUnknownEndpoint = errors.New("unknown endpoint")

// RouteRegistry is the set of endpoint slugs a router exposes, keyed by slug.
type RouteRegistry map[string]string

// NewRouteRegistry creates a registry of slugs.
func NewRouteRegistry(slugs ...string) RouteRegistry {
	registry := RouteRegistry{}
	for _, slug := range slugs {
		registry[slug] = slug
	}
	return registry
}

// EndpointArg identifies an endpoint, either by slug (Endpoint) or through the registry (EndpointFunc).
type EndpointArg interface {
	Resolve(registry RouteRegistry) string
}

// Endpoint is a literal endpoint slug.
type Endpoint string

// Resolve returns the slug.
func (e Endpoint) Resolve(RouteRegistry) string {
	return string(e)
}

// EndpointFunc picks an endpoint from the registry, e.g. func(r RouteRegistry) string { return r["imageUploader"] }.
type EndpointFunc func(registry RouteRegistry) string

// Resolve calls f.
func (f EndpointFunc) Resolve(registry RouteRegistry) string {
	return f(registry)
}

// Unwrap resolves arg to a slug. An empty registry accepts any non-empty slug.
func Unwrap(arg EndpointArg, registry RouteRegistry) (string, error) {
	if arg == nil {
		return "", errors.New("endpoint must not be nil")
	}
	slug := arg.Resolve(registry)
	if slug == "" {
		return "", errors.New("endpoint must not be empty")
	}
	if len(registry) > 0 {
		if _, ok := registry[slug]; !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownEndpoint, slug)
		}
	}
	return slug, nil
}
