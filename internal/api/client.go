package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"imgvault/internal/models"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	httpTimeoutEnvKey  = "IMGVAULT_HTTP_TIMEOUT"
)

// Client is a simple HTTP client for the imgvault API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: httpTimeoutFromEnv()},
	}
}

// Health returns the server's backend connectivity report. A 503 reply is
// returned as a response, not an error.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return resp, err
	}
	httpResp, err := c.http.Do(req)
	if err != nil {
		return resp, err
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusServiceUnavailable {
		return resp, decodeError(httpResp)
	}
	err = json.NewDecoder(httpResp.Body).Decode(&resp)
	return resp, err
}

// Upload sends image bytes as multipart field "image".
func (c *Client) Upload(ctx context.Context, filename, mimeType string, content io.Reader) (QueuedResponse, error) {
	var resp QueuedResponse

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filepath.Base(filename)))
	if mimeType != "" {
		header.Set("Content-Type", mimeType)
	}
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

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &body)
	if err != nil {
		return resp, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	err = c.send(req, http.StatusAccepted, &resp)
	return resp, err
}

// UploadFromURL asks the server to fetch and store a remote image.
func (c *Client) UploadFromURL(ctx context.Context, imageURL string) (QueuedResponse, error) {
	var resp QueuedResponse
	err := c.do(ctx, http.MethodPost, "/upload_from_url", URLUploadRequest{URL: imageURL}, &resp)
	return resp, err
}

// Job polls the status of one upload job.
func (c *Client) Job(ctx context.Context, jobID string) (JobStatus, error) {
	var resp JobStatus
	err := c.do(ctx, http.MethodGet, "/job/"+url.PathEscape(jobID), nil, &resp)
	return resp, err
}

// WaitJob polls until the job completes or ctx is done.
func (c *Client) WaitJob(ctx context.Context, jobID string, interval time.Duration) (JobStatus, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		status, err := c.Job(ctx, jobID)
		if err != nil {
			return status, err
		}
		switch status.Status {
		case models.JobCompleted:
			return status, nil
		case models.JobFailed:
			return status, fmt.Errorf("job %s failed: %s", jobID, status.Error)
		}
		select {
		case <-ctx.Done():
			return status, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Info returns the metadata carried by a token.
func (c *Client) Info(ctx context.Context, token string) (ImageInfoResponse, error) {
	var resp ImageInfoResponse
	err := c.do(ctx, http.MethodGet, "/info/"+url.PathEscape(token), nil, &resp)
	return resp, err
}

// Fetch streams the decrypted image to w and returns its content type.
func (c *Client) Fetch(ctx context.Context, token string, w io.Writer) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/image/"+url.PathEscape(token), nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", decodeError(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", err
	}
	return resp.Header.Get("Content-Type"), nil
}

// AdminDelete removes the stored image behind token.
func (c *Client) AdminDelete(ctx context.Context, token, apiKey string) (AdminDeleteResponse, error) {
	var resp AdminDeleteResponse
	err := c.do(ctx, http.MethodDelete, "/admin/image/"+url.PathEscape(token), AdminDeleteRequest{APIKey: apiKey}, &resp)
	return resp, err
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
	return c.send(req, 0, out)
}

// send executes req. Any status below 400 is decoded into out; a non-zero
// want additionally requires that exact status.
func (c *Client) send(req *http.Request, want int, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if want != 0 && resp.StatusCode != want {
		return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("unexpected status %s", resp.Status)}
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
