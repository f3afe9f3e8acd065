package uploaderror

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/bitrise-io/go-uploadthing/internal/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	structured := New(CodeTooLarge, "file too large")
	aborted := NewAbortedError(context.Canceled)

	tests := []struct {
		name        string
		err         error
		wantKind    Kind
		wantErr     *UploadThingError
		wantAborted *UploadAbortedError
		wantLogged  bool
	}{
		{
			name:        "abort error is propagated unchanged",
			err:         aborted,
			wantKind:    KindAborted,
			wantAborted: aborted,
		},
		{
			name:        "wrapped abort error",
			err:         fmt.Errorf("upload files: %w", aborted),
			wantKind:    KindAborted,
			wantAborted: aborted,
		},
		{
			name:     "structured error passes through",
			err:      fmt.Errorf("prepare upload: %w", structured),
			wantKind: KindClient,
			wantErr:  structured,
		},
		{
			name:       "unknown error is wrapped as fatal",
			err:        errors.New("connection reset by peer"),
			wantKind:   KindFatal,
			wantLogged: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := testlog.New()

			got := Normalize(tt.err, logger)

			assert.Equal(t, tt.wantKind, got.Kind)
			if tt.wantAborted != nil {
				assert.Same(t, tt.wantAborted, got.Aborted)
				assert.Nil(t, got.Err)
			}
			if tt.wantErr != nil {
				assert.Same(t, tt.wantErr, got.Err)
				assert.Nil(t, got.Aborted)
			}
			if tt.wantLogged {
				require.Len(t, logger.Errors(), 1)
				assert.Equal(t, fatalNotice+" "+tt.err.Error(), logger.Errors()[0])
				require.NotNil(t, got.Err)
				assert.Equal(t, CodeInternalClientError, got.Err.Code)
				assert.ErrorIs(t, got.Err, tt.err)
			} else {
				assert.Empty(t, logger.Errors())
			}
		})
	}
}

func TestNormalize_BareContextCanceled(t *testing.T) {
	logger := testlog.New()

	got := Normalize(fmt.Errorf("put file: %w", context.Canceled), logger)

	require.Equal(t, KindAborted, got.Kind)
	require.NotNil(t, got.Aborted)
	assert.ErrorIs(t, got.Aborted, context.Canceled)
	assert.Empty(t, logger.Errors())
}

func TestNormalize_DeadlineIsNotAnAbort(t *testing.T) {
	got := Normalize(context.DeadlineExceeded, testlog.New())

	assert.Equal(t, KindFatal, got.Kind)
}

func TestFromResponseBody(t *testing.T) {
	t.Run("protocol error shape", func(t *testing.T) {
		err := FromResponseBody(http.StatusBadRequest, []byte(`{"code":"TOO_MANY_FILES","message":"max 1","data":{"limit":1}}`))

		assert.Equal(t, CodeTooManyFiles, err.Code)
		assert.Equal(t, "max 1", err.Message)
		assert.JSONEq(t, `{"limit":1}`, string(err.Data))
		assert.Equal(t, http.StatusBadRequest, err.Status)
	})

	t.Run("plain text body", func(t *testing.T) {
		err := FromResponseBody(http.StatusNotFound, []byte("no such route\n"))

		assert.Equal(t, CodeNotFound, err.Code)
		assert.Equal(t, "HTTP 404: no such route", err.Message)
	})

	t.Run("empty body", func(t *testing.T) {
		err := FromResponseBody(http.StatusBadGateway, nil)

		assert.Equal(t, CodeInternalServerError, err.Code)
		assert.Equal(t, "HTTP 502: Bad Gateway", err.Message)
	})
}

func TestStatusForCode(t *testing.T) {
	assert.Equal(t, http.StatusRequestEntityTooLarge, StatusForCode(CodeTooLarge))
	assert.Equal(t, http.StatusBadRequest, StatusForCode(CodeKeyTooLong))
	assert.Equal(t, http.StatusInternalServerError, StatusForCode(Code("SOMETHING_NEW")))
}

func TestIsAborted(t *testing.T) {
	assert.True(t, IsAborted(NewAbortedError(nil)))
	assert.True(t, IsAborted(fmt.Errorf("x: %w", context.Canceled)))
	assert.False(t, IsAborted(errors.New("boom")))
	assert.False(t, IsAborted(New(CodeBadRequest, "bad")))
}

func TestErrorStrings(t *testing.T) {
	assert.Equal(t, "BAD_REQUEST: bad", New(CodeBadRequest, "bad").Error())
	assert.Equal(t, "upload aborted: context canceled", NewAbortedError(context.Canceled).Error())
	assert.Equal(t, "upload aborted", NewAbortedError(nil).Error())
	assert.Equal(t, "aborted", KindAborted.String())
}
