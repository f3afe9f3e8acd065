package network

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/bitrise-io/go-uploadthing/upload"
	"github.com/bitrise-io/go-uploadthing/uploaderror"
	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	actionUpload         = "upload"
	actionUploadComplete = "upload-complete"
)

type fileMetadata struct {
	Name         string `json:"name"`
	Size         int64  `json:"size"`
	Type         string `json:"type"`
	LastModified int64  `json:"lastModified,omitempty"`
}

type prepareUploadRequest struct {
	Files []fileMetadata `json:"files"`
	Input any            `json:"input"`
}

type presignedURL struct {
	Key      string            `json:"key"`
	FileName string            `json:"fileName"`
	FileType string            `json:"fileType"`
	FileURL  string            `json:"fileUrl"`
	CustomID string            `json:"customId"`
	URL      string            `json:"url"`
	Method   string            `json:"method"`
	Headers  map[string]string `json:"headers"`
}

type completeUploadRequest struct {
	FileKeys []string `json:"fileKeys"`
}

type completedFile struct {
	Key        string          `json:"key"`
	ServerData json.RawMessage `json:"serverData"`
}

type apiClient struct {
	httpClient *retryablehttp.Client
	baseURL    string
	pkg        string
	logger     log.Logger
}

func newAPIClient(client *retryablehttp.Client, baseURL string, pkg string, logger log.Logger) apiClient {
	return apiClient{
		httpClient: client,
		baseURL:    baseURL,
		pkg:        pkg,
		logger:     logger,
	}
}

func newPrepareUploadRequest(params upload.Params) prepareUploadRequest {
	files := make([]fileMetadata, 0, len(params.Files))
	for _, f := range params.Files {
		metadata := fileMetadata{
			Name: f.Name,
			Size: f.Size,
			Type: f.Type,
		}
		if !f.LastModified.IsZero() {
			metadata.LastModified = f.LastModified.UnixMilli()
		}
		files = append(files, metadata)
	}
	return prepareUploadRequest{Files: files, Input: params.Input}
}

func (c apiClient) prepareUpload(ctx context.Context, slug string, headers http.Header, requestBody prepareUploadRequest) ([]presignedURL, error) {
	var response []presignedURL
	if err := c.post(ctx, actionUpload, slug, headers, requestBody, &response); err != nil {
		return nil, err
	}
	return response, nil
}

func (c apiClient) completeUpload(ctx context.Context, slug string, headers http.Header, keys []string) ([]completedFile, error) {
	var response []completedFile
	if err := c.post(ctx, actionUploadComplete, slug, headers, completeUploadRequest{FileKeys: keys}, &response); err != nil {
		return nil, err
	}
	return response, nil
}

func (c apiClient) actionURL(actionType, slug string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse api url: %w", err)
	}
	query := u.Query()
	query.Set("actionType", actionType)
	query.Set("slug", slug)
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func (c apiClient) post(ctx context.Context, actionType, slug string, headers http.Header, requestBody, responseBody any) error {
	apiURL, err := c.actionURL(actionType, slug)
	if err != nil {
		return err
	}

	body, err := json.Marshal(requestBody)
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, apiURL, body)
	if err != nil {
		return err
	}
	for k, values := range headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-uploadthing-package", c.pkg)
	req.Header.Set("x-uploadthing-version", Version)

	dump, err := httputil.DumpRequest(req.Request, false)
	if err != nil {
		c.logger.Warnf("error while dumping request: %s", err)
	}
	c.logger.Debugf("%s request dump: %s", actionType, string(dump))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func(body io.ReadCloser) {
		err := body.Close()
		if err != nil {
			c.logger.Warnf("Failed to close response body: %s", err)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return unwrapError(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(respBody, responseBody); err != nil {
		return uploaderror.New(uploaderror.CodeBadRequest, fmt.Sprintf("invalid %s response: %s", actionType, err))
	}

	return nil
}

func unwrapError(resp *http.Response) error {
	errorResp, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return uploaderror.FromResponseBody(resp.StatusCode, errorResp)
}
