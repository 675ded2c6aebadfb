package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "FILEDROP_HTTP_TIMEOUT"
)

// Client is a simple HTTP client for the filedrop API.
type Client struct {
	baseURL string
	http    *http.Client
	// transfer carries upload and download bodies. It bounds the wait for
	// response headers but not the body, so large files are limited only
	// by the caller's context.
	transfer *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	timeout := httpTimeoutFromEnv()
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     &http.Client{Timeout: timeout},
		transfer: &http.Client{Transport: transport},
	}
}

// Ping checks whether the API server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) GetInfo(ctx context.Context) (InfoResponse, error) {
	var resp InfoResponse
	err := c.do(ctx, http.MethodGet, "/api/info", nil, &resp)
	return resp, err
}

func (c *Client) ListFiles(ctx context.Context) (ListResponse, error) {
	var resp ListResponse
	err := c.do(ctx, http.MethodGet, "/api/files", nil, &resp)
	return resp, err
}

func (c *Client) DeleteFile(ctx context.Context, key string) (DeleteResponse, error) {
	var resp DeleteResponse
	err := c.do(ctx, http.MethodDelete, filePath(key), nil, &resp)
	return resp, err
}

// Upload sends content as the multipart field "file". A duplicate
// rejection returns an *APIError whose Existing names the stored copy.
func (c *Client) Upload(ctx context.Context, name, contentType string, content io.Reader) (UploadResponse, error) {
	var resp UploadResponse

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{"name": "file", "filename": name}))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return resp, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return resp, err
	}
	if err := mw.Close(); err != nil {
		return resp, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &body)
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	httpResp, err := c.transfer.Do(req)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusConflict {
		if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
			return resp, fmt.Errorf("api error: %s", httpResp.Status)
		}
		return resp, &APIError{
			Status:    httpResp.StatusCode,
			Code:      resp.Code,
			ErrorCode: resp.ErrorCode,
			Message:   resp.Message,
			Existing:  resp.File,
		}
	}
	if httpResp.StatusCode >= 400 {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

// Download streams the payload of key into w.
func (c *Client) Download(ctx context.Context, key string, w io.Writer) (DownloadInfo, error) {
	var info DownloadInfo
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+filePath(key), nil)
	if err != nil {
		return info, err
	}
	resp, err := c.transfer.Do(req)
	if err != nil {
		return info, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return info, decodeError(resp)
	}

	info.ContentType = resp.Header.Get("Content-Type")
	info.ETag = strings.Trim(resp.Header.Get("ETag"), `"`)
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		info.Name = params["filename"]
	}
	if info.Name == "" {
		info.Name = key
	}

	n, err := io.Copy(w, resp.Body)
	info.Size = n
	return info, err
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}

	if out == nil {
		return nil
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return &APIError{
			Status:    resp.StatusCode,
			Code:      errResp.Code,
			ErrorCode: errResp.ErrorCode,
			Message:   errResp.Error,
		}
	}
	return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("api error: %s", resp.Status)}
}

// AsAPIError unwraps err into an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// filePath escapes each segment of key so slashes survive as separators.
func filePath(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return "/api/files/" + strings.Join(segments, "/")
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
