package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"imgvault/internal/models"
)

func TestHTTPTimeoutFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})

	t.Run("duration format", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "45s")
		if got := httpTimeoutFromEnv(); got != 45*time.Second {
			t.Fatalf("expected 45s timeout, got %v", got)
		}
	})

	t.Run("integer seconds", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "25")
		if got := httpTimeoutFromEnv(); got != 25*time.Second {
			t.Fatalf("expected 25s timeout, got %v", got)
		}
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "invalid")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})
}

func TestClientUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/upload" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		file, header, err := r.FormFile("image")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		data, _ := io.ReadAll(file)
		if string(data) != "png-bytes" || header.Filename != "cat.png" {
			t.Errorf("unexpected upload %q %q", header.Filename, data)
		}
		if got := header.Header.Get("Content-Type"); got != "image/png" {
			t.Errorf("expected part content type image/png, got %q", got)
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(QueuedResponse{JobID: "j1", StatusURL: "/job/j1"})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL+"/").Upload(context.Background(), "/tmp/cat.png", "image/png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if resp.JobID != "j1" || resp.StatusURL != "/job/j1" {
		t.Fatalf("unexpected response: %#v", resp)
	}
}

func TestClientDecodesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "invalid image id", Status: 400, Code: "invalid_argument", ErrorCode: 1004})
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Info(context.Background(), "bogus")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.ErrorCode != 1004 || apiErr.Message != "invalid image id" {
		t.Fatalf("unexpected api error: %#v", apiErr)
	}
	if apiErr.Error() != "invalid_argument: invalid image id" {
		t.Fatalf("unexpected message: %q", apiErr.Error())
	}
}

func TestClientWaitJob(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(JobStatus{Status: models.JobPending})
			return
		}
		_ = json.NewEncoder(w).Encode(JobStatus{
			Status:   models.JobCompleted,
			Response: &UploadResponse{ID: "tok", URL: "/image/tok", Size: 3, MimeType: "image/png"},
		})
	}))
	defer srv.Close()

	status, err := NewClient(srv.URL).WaitJob(context.Background(), "j1", 5*time.Millisecond)
	if err != nil {
		t.Fatalf("wait job: %v", err)
	}
	if status.Response == nil || status.Response.ID != "tok" {
		t.Fatalf("unexpected status: %#v", status)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 polls, got %d", calls.Load())
	}
}

func TestClientFetchAndDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/image/tok":
			w.Header().Set("Content-Type", "image/gif")
			_, _ = w.Write([]byte("GIF89a"))
		case r.Method == http.MethodDelete && r.URL.Path == "/admin/image/tok":
			var req AdminDeleteRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req.APIKey != "admin-key" {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "unauthorized", Status: 401})
				return
			}
			_ = json.NewEncoder(w).Encode(AdminDeleteResponse{ID: "tok", Deleted: true})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	client := NewClient(srv.URL)

	var buf bytes.Buffer
	contentType, err := client.Fetch(context.Background(), "tok", &buf)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if contentType != "image/gif" || buf.String() != "GIF89a" {
		t.Fatalf("unexpected fetch result %q %q", contentType, buf.String())
	}

	if _, err := client.AdminDelete(context.Background(), "tok", "wrong"); err == nil {
		t.Fatal("expected unauthorized error")
	}
	resp, err := client.AdminDelete(context.Background(), "tok", "admin-key")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !resp.Deleted {
		t.Fatalf("expected deleted response, got %#v", resp)
	}
}
