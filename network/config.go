package network

import (
	"net/http"
	"runtime"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Version is sent to the backend in the x-uploadthing-version header.
const Version = "1.0.0"

// DefaultPackage identifies this client in the x-uploadthing-package header.
const DefaultPackage = "go-uploadthing"

// Config holds configuration for the reference uploaders.
type Config struct {
	// Concurrency is the maximum number of files transferred in parallel.
	// Default: min(NumCPU * 3, 20), minimum 2
	Concurrency int

	// MaxRetryPerFile is the maximum number of transfer attempts per file.
	// Default: 3
	MaxRetryPerFile int

	// RetryWait is the base delay between attempts, multiplied by the attempt number.
	// Default: 2 seconds
	RetryWait time.Duration

	// HungThreshold is the duration after which a file transfer is considered hung
	// if it exceeds its expected duration (based on the observed throughput) by this amount.
	// Zero disables hung detection.
	// Default: 30 seconds
	HungThreshold time.Duration

	// Package is sent in the x-uploadthing-package header.
	// Default: DefaultPackage
	Package string

	// HTTPClient is used for the presigned transfers.
	// If nil, DefaultHTTPClient is used.
	HTTPClient *http.Client

	// APIClient is used for the backend API calls.
	// If nil, a retrying client is created.
	APIClient *retryablehttp.Client
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency:     DefaultConcurrency(),
		MaxRetryPerFile: 3,
		RetryWait:       2 * time.Second,
		HungThreshold:   30 * time.Second,
		Package:         DefaultPackage,
	}
}

// DefaultConcurrency calculates the default concurrency based on CPU count.
func DefaultConcurrency() int {
	c := runtime.NumCPU() * 3

	if c > 20 {
		c = 20
	}

	if c < 2 {
		c = 2
	}

	return c
}

// DefaultHTTPClient creates an HTTP client for presigned transfers.
func DefaultHTTPClient() *http.Client {
	return &http.Client{
		// No timeout, transfers are bounded by their context
		Timeout: 0,
		Transport: &http.Transport{
			MaxIdleConns:        50,
			MaxConnsPerHost:     20,
			IdleConnTimeout:     10 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
			Proxy:               http.ProxyFromEnvironment,
		},
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.Concurrency <= 0 {
		c.Concurrency = defaults.Concurrency
	}
	if c.MaxRetryPerFile <= 0 {
		c.MaxRetryPerFile = defaults.MaxRetryPerFile
	}
	if c.RetryWait < 0 {
		c.RetryWait = 0
	}
	if c.Package == "" {
		c.Package = defaults.Package
	}
	if c.HTTPClient == nil {
		c.HTTPClient = DefaultHTTPClient()
	}
	return c
}
