package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"

	"imgvault/internal/api"
	"imgvault/internal/ingest"
	"imgvault/internal/models"
)

const multipartOverhead = 1 << 20 // 1 MiB

var uploadFieldNames = []string{"image", "file"}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.pipeline.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	reader, err := r.MultipartReader()
	if err != nil {
		s.writeServiceError(w, r, badRequestCode(fmt.Errorf("multipart form required: %w", err), ErrCodeInvalidArgument))
		return
	}

	sub, err := readUploadPart(reader, maxSize)
	if err != nil {
		s.writeServiceError(w, r, classifyMultipartError(err))
		return
	}
	sub.ClientAddr = s.clientIP(r)

	s.submit(w, r, sub)
}

// readUploadPart returns the first image part of the form. At most
// maxSize+1 bytes are read so oversize files are still detected.
func readUploadPart(reader *multipart.Reader, maxSize int64) (ingest.Submission, error) {
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return ingest.Submission{}, badRequestCode(errors.New("image field is required"), ErrCodeMissingRequired)
		}
		if err != nil {
			return ingest.Submission{}, err
		}
		if !isUploadField(part.FormName()) {
			_ = part.Close()
			continue
		}

		data, err := io.ReadAll(io.LimitReader(part, maxSize+1))
		_ = part.Close()
		if err != nil {
			return ingest.Submission{}, err
		}
		return ingest.Submission{
			Data:     data,
			Filename: part.FileName(),
			MimeType: part.Header.Get("Content-Type"),
		}, nil
	}
}

func isUploadField(name string) bool {
	for _, candidate := range uploadFieldNames {
		if name == candidate {
			return true
		}
	}
	return false
}

func classifyMultipartError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr apiError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return makeAPIError(http.StatusRequestEntityTooLarge, "file_too_large", ErrCodeFileTooLarge, ingest.ErrFileTooLarge)
	}
	return badRequestCode(err, ErrCodeInvalidArgument)
}

func (s *Server) handleUploadFromURL(w http.ResponseWriter, r *http.Request) {
	var req api.URLUploadRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	target, err := parseFetchURL(req.URL)
	if err != nil {
		s.writeServiceError(w, r, badRequestCode(err, ErrCodeInvalidURL))
		return
	}

	sub, err := s.fetchImage(r, target)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	sub.ClientAddr = s.clientIP(r)

	s.submit(w, r, sub)
}

func parseFetchURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.New("invalid url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("url host is required")
	}
	return u, nil
}

func (s *Server) fetchImage(r *http.Request, target *url.URL) (ingest.Submission, error) {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target.String(), nil)
	if err != nil {
		return ingest.Submission{}, badRequestCode(err, ErrCodeInvalidURL)
	}
	resp, err := s.fetchClient.Do(req)
	if err != nil {
		return ingest.Submission{}, badRequestCode(fmt.Errorf("fetch image: %w", err), ErrCodeFetchFailed)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ingest.Submission{}, badRequestCode(fmt.Errorf("fetch image: remote returned %d", resp.StatusCode), ErrCodeFetchFailed)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.pipeline.MaxFileSize()+1))
	if err != nil {
		return ingest.Submission{}, badRequestCode(fmt.Errorf("fetch image: %w", err), ErrCodeFetchFailed)
	}

	return ingest.Submission{
		Data:     data,
		Filename: path.Base(target.Path),
		MimeType: resp.Header.Get("Content-Type"),
	}, nil
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request, sub ingest.Submission) {
	jobID, err := s.pipeline.Submit(r.Context(), sub)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.QueuedResponse{JobID: jobID, StatusURL: "/job/" + jobID})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")
	if !ingest.ValidJobID(jobID) {
		s.writeServiceError(w, r, badRequestCode(errors.New("invalid job id"), ErrCodeInvalidID))
		return
	}

	ref, ok := s.jobs.Get(jobID)
	if !ok {
		s.writeJSON(w, http.StatusAccepted, api.JobStatus{Status: models.JobPending})
		return
	}

	token, err := s.codec.EncodeReference(ref)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.JobStatus{
		Status: models.JobCompleted,
		Response: &api.UploadResponse{
			ID:       token,
			URL:      "/image/" + token,
			Size:     ref.Size,
			MimeType: ref.MimeType,
		},
	})
}
