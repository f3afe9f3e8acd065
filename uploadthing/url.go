package uploadthing

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bitrise-io/go-utils/v2/env"
)

const (
	defaultOrigin  = "http://localhost:3000"
	defaultAPIPath = "/api/uploadthing"

	urlEnvKey    = "UPLOADTHING_URL"
	originEnvKey = "UPLOADTHING_ORIGIN"
	vercelEnvKey = "VERCEL_URL"
)

// ResolveURL returns the absolute URL of the upload API.
//
// raw may be an absolute URL, a path relative to the origin, or empty. An empty raw falls
// back to UPLOADTHING_URL, then to {origin}/api/uploadthing. A URL without a path gets
// /api/uploadthing. The origin is UPLOADTHING_ORIGIN, https://$VERCEL_URL or http://localhost:3000.
func ResolveURL(raw string, envRepo env.Repository) (string, error) {
	if raw == "" {
		raw = envRepo.Get(urlEnvKey)
	}
	if raw == "" {
		raw = defaultAPIPath
	}

	base, err := url.Parse(origin(envRepo))
	if err != nil {
		return "", fmt.Errorf("parse origin: %w", err)
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("failed to parse '%s' as a URL: %w", raw, err)
	}

	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", fmt.Errorf("failed to parse '%s' as a URL: unsupported scheme %q", raw, resolved.Scheme)
	}
	if resolved.Host == "" {
		return "", fmt.Errorf("failed to parse '%s' as a URL: missing host", raw)
	}
	if resolved.Path == "" || resolved.Path == "/" {
		resolved.Path = defaultAPIPath
	}

	return resolved.String(), nil
}

func origin(envRepo env.Repository) string {
	if o := envRepo.Get(originEnvKey); o != "" {
		return strings.TrimSuffix(o, "/")
	}
	if host := envRepo.Get(vercelEnvKey); host != "" {
		return "https://" + host
	}
	return defaultOrigin
}
