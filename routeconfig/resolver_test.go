package routeconfig

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bitrise-io/go-uploadthing/internal/testlog"
	"github.com/bitrise-io/go-uploadthing/observable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const manifestJSON = `[{"slug":"foo","config":{"a":1}},{"slug":"bar","config":{}}]`

func waitForConfig(t *testing.T, view observable.Readable[*EndpointConfig]) *EndpointConfig {
	t.Helper()

	settled := make(chan *EndpointConfig, 1)
	cancel := view.Subscribe(func(c *EndpointConfig) {
		select {
		case settled <- c:
		default:
		}
	})
	defer cancel()

	if c := view.Get(); c != nil {
		return c
	}

	select {
	case c := <-settled:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("manifest fetch did not settle")
		return nil
	}
}

func TestResolver_Resolve_HTTP(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		<-release
		_, _ = w.Write([]byte(manifestJSON))
	}))
	defer server.Close()

	headers := http.Header{}
	headers.Set("x-api-key", "secret")
	resolver := NewResolver(NewHTTPFetcher(nil, headers, testlog.New()), testlog.New())

	view := resolver.Resolve(context.Background(), server.URL, "foo")
	assert.Nil(t, view.Get())

	close(release)
	got := waitForConfig(t, view)

	require.NotNil(t, got)
	assert.Equal(t, "foo", got.Slug)
	assert.JSONEq(t, `{"a":1}`, string(got.Config))
}

func TestResolver_Resolve_UnknownSlug(t *testing.T) {
	cell := observable.New(Payload{})
	resolver := NewResolver(FetcherFunc(func(context.Context, string) observable.Readable[Payload] {
		return cell
	}), testlog.New())

	view := resolver.Resolve(context.Background(), "https://example.com/api/uploadthing", "baz")
	cell.Set(Payload{Text: []byte(manifestJSON)})

	assert.Nil(t, view.Get())
}

func TestResolver_Resolve_StructuredPayload(t *testing.T) {
	cell := observable.New(Payload{})
	resolver := NewResolver(FetcherFunc(func(context.Context, string) observable.Readable[Payload] {
		return cell
	}), testlog.New())

	view := resolver.Resolve(context.Background(), "https://example.com/api/uploadthing", "bar")
	var notified []*EndpointConfig
	view.Subscribe(func(c *EndpointConfig) { notified = append(notified, c) })

	cell.Set(Payload{Manifest: Manifest{
		{Slug: "foo", Config: json.RawMessage(`{"a":1}`)},
		{Slug: "bar", Config: json.RawMessage(`{}`)},
	}})

	require.Len(t, notified, 1)
	require.NotNil(t, notified[0])
	assert.Equal(t, "bar", notified[0].Slug)
	assert.Equal(t, "bar", view.Get().Slug)
}

func TestResolver_Resolve_DecodesOncePerPayload(t *testing.T) {
	cell := observable.New(Payload{Text: []byte(manifestJSON)})
	resolver := NewResolver(FetcherFunc(func(context.Context, string) observable.Readable[Payload] {
		return cell
	}), testlog.New())

	view := resolver.Resolve(context.Background(), "https://example.com/api/uploadthing", "foo")

	first := view.Get()
	require.NotNil(t, first)
	assert.Same(t, first, view.Get())

	cell.Set(Payload{Text: []byte(`[{"slug":"foo","config":{"a":2}}]`)})

	second := view.Get()
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
	assert.JSONEq(t, `{"a":2}`, string(second.Config))
	assert.Same(t, second, view.Get())
}

func TestResolver_Resolve_InvalidText(t *testing.T) {
	cell := observable.New(Payload{Text: []byte("<html>")})
	resolver := NewResolver(FetcherFunc(func(context.Context, string) observable.Readable[Payload] {
		return cell
	}), testlog.New())

	assert.Nil(t, resolver.Resolve(context.Background(), "u", "foo").Get())
}

func TestHTTPFetcher_FileURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.jsonc")
	content := `[
	// image routes
	{"slug": "foo", "config": {"a": 1},},
]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	resolver := NewResolver(NewHTTPFetcher(nil, nil, testlog.New()), testlog.New())
	got := waitForConfig(t, resolver.Resolve(context.Background(), "file://"+path, "foo"))

	require.NotNil(t, got)
	assert.JSONEq(t, `{"a":1}`, string(got.Config))
}

func TestHTTPFetcher_FailureLeavesCellUnset(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"NOT_FOUND","message":"no router"}`))
	}))
	defer server.Close()

	logger := testlog.New()
	cell := NewHTTPFetcher(nil, nil, logger).Fetch(context.Background(), server.URL)

	require.Eventually(t, func() bool { return len(logger.Warnings()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Contains(t, logger.Warnings()[0], "NOT_FOUND")
	assert.False(t, cell.Get().Settled())
}

func TestPayload_Decode(t *testing.T) {
	manifest, err := Payload{}.Decode()
	require.NoError(t, err)
	assert.Nil(t, manifest)

	manifest, err = Payload{Text: []byte(manifestJSON)}.Decode()
	require.NoError(t, err)
	require.Len(t, manifest, 2)
	assert.Equal(t, "bar", manifest[1].Slug)

	_, err = Payload{Text: []byte(`{"slug":"foo"}`)}.Decode()
	assert.Error(t, err)
}
