package uploadthing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapEnv map[string]string

func (e mapEnv) List() []string {
	var list []string
	for k, v := range e {
		list = append(list, k+"="+v)
	}
	return list
}

func (e mapEnv) Unset(key string) error {
	delete(e, key)
	return nil
}

func (e mapEnv) Get(key string) string {
	return e[key]
}

func (e mapEnv) Set(key, value string) error {
	e[key] = value
	return nil
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		env  mapEnv
		want string
	}{
		{name: "defaults", want: "http://localhost:3000/api/uploadthing"},
		{name: "url from env", env: mapEnv{urlEnvKey: "https://example.com/api/upload"}, want: "https://example.com/api/upload"},
		{name: "origin from env", env: mapEnv{originEnvKey: "https://example.com/"}, want: "https://example.com/api/uploadthing"},
		{name: "vercel deployment", env: mapEnv{vercelEnvKey: "my-app.vercel.app"}, want: "https://my-app.vercel.app/api/uploadthing"},
		{name: "relative path", raw: "/custom/upload", env: mapEnv{originEnvKey: "https://example.com"}, want: "https://example.com/custom/upload"},
		{name: "absolute url", raw: "https://uploads.example.com/api/ut", want: "https://uploads.example.com/api/ut"},
		{name: "root path gets api path", raw: "https://uploads.example.com/", want: "https://uploads.example.com/api/uploadthing"},
		{name: "no path gets api path", raw: "https://uploads.example.com", want: "https://uploads.example.com/api/uploadthing"},
		{name: "explicit url wins over env", raw: "https://a.example.com/x", env: mapEnv{urlEnvKey: "https://b.example.com/y"}, want: "https://a.example.com/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envRepo := tt.env
			if envRepo == nil {
				envRepo = mapEnv{}
			}

			got, err := ResolveURL(tt.raw, envRepo)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveURL_Invalid(t *testing.T) {
	_, err := ResolveURL("ftp://example.com/upload", mapEnv{})
	assert.Error(t, err)

	_, err = ResolveURL("http://[::1", mapEnv{})
	assert.Error(t, err)
}
