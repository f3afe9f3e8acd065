package routeconfig

import (
	"encoding/json"
	"testing"

	"github.com/bitrise-io/go-uploadthing/upload"
	"github.com/bitrise-io/go-uploadthing/uploaderror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRouteConfig(t *testing.T) {
	entry := EndpointConfig{
		Slug:   "imageUploader",
		Config: json.RawMessage(`{"image":{"maxFileSize":"4MB","maxFileCount":2,"minFileCount":1,"contentDisposition":"inline"}}`),
	}

	config, err := entry.RouteConfig()
	require.NoError(t, err)

	require.Contains(t, config, "image")
	assert.Equal(t, 2, config["image"].MaxFileCount)
	size, err := config["image"].MaxFileSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, int64(4*1024*1024), size)
	assert.Equal(t, []string{"image"}, config.FileTypes())

	empty, err := ParseRouteConfig(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRouteConfig_Match(t *testing.T) {
	config := RouteConfig{
		"image":           {},
		"pdf":             {},
		"application/zip": {},
		"blob":            {},
	}

	tests := []struct {
		contentType string
		want        string
	}{
		{contentType: "image/png", want: "image"},
		{contentType: "application/pdf", want: "pdf"},
		{contentType: "application/zip", want: "application/zip"},
		{contentType: "text/plain", want: "blob"},
		{contentType: "", want: "blob"},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			got, ok := config.Match(tt.contentType)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	_, ok := RouteConfig{"image": {}}.Match("video/mp4")
	assert.False(t, ok)
}

func TestRouteConfig_Check(t *testing.T) {
	config := RouteConfig{
		"image": {MaxFileSize: "1KB", MaxFileCount: 2, MinFileCount: 1},
	}
	small := func(name string) *upload.File {
		return upload.NewFileFromBytes(name, "image/png", make([]byte, 100))
	}

	tests := []struct {
		name     string
		files    []*upload.File
		wantCode uploaderror.Code
	}{
		{name: "within limits", files: []*upload.File{small("a.png"), small("b.png")}},
		{name: "too large", files: []*upload.File{upload.NewFileFromBytes("big.png", "image/png", make([]byte, 2048))}, wantCode: uploaderror.CodeTooLarge},
		{name: "too many", files: []*upload.File{small("a.png"), small("b.png"), small("c.png")}, wantCode: uploaderror.CodeTooManyFiles},
		{name: "too few", files: nil, wantCode: uploaderror.CodeTooSmall},
		{name: "wrong type", files: []*upload.File{upload.NewFileFromBytes("a.txt", "text/plain", nil)}, wantCode: uploaderror.CodeBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := config.Check(tt.files)
			if tt.wantCode == "" {
				require.NoError(t, err)
				return
			}
			var utErr *uploaderror.UploadThingError
			require.ErrorAs(t, err, &utErr)
			assert.Equal(t, tt.wantCode, utErr.Code)
		})
	}

	assert.NoError(t, RouteConfig{}.Check([]*upload.File{small("a.png")}))
}

func TestUnwrap(t *testing.T) {
	registry := NewRouteRegistry("imageUploader", "videoUploader")

	slug, err := Unwrap(Endpoint("imageUploader"), registry)
	require.NoError(t, err)
	assert.Equal(t, "imageUploader", slug)

	slug, err = Unwrap(EndpointFunc(func(r RouteRegistry) string { return r["videoUploader"] }), registry)
	require.NoError(t, err)
	assert.Equal(t, "videoUploader", slug)

	_, err = Unwrap(Endpoint("pdfUploader"), registry)
	assert.ErrorIs(t, err, ErrUnknownEndpoint)

	_, err = Unwrap(Endpoint(""), registry)
	assert.Error(t, err)

	slug, err = Unwrap(Endpoint("anything"), nil)
	require.NoError(t, err)
	assert.Equal(t, "anything", slug)
}
