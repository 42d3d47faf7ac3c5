package api

import "imgvault/internal/models"

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error     string `json:"error"`
	Status    int    `json:"status"`
	Code      string `json:"code,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// QueuedResponse acknowledges an accepted upload.
type QueuedResponse struct {
	JobID     string `json:"job_id"`
	StatusURL string `json:"status_url"`
}

// UploadResponse describes a stored image.
type UploadResponse struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// JobStatus is the reply of the job polling endpoint.
type JobStatus struct {
	Status   models.JobState `json:"status"`
	Response *UploadResponse `json:"response,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// URLUploadRequest asks the server to fetch and store a remote image.
type URLUploadRequest struct {
	URL string `json:"url"`
}

// ImageInfoResponse is the metadata carried by a token.
type ImageInfoResponse struct {
	ID       string `json:"id"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// AdminDeleteRequest authorizes an image deletion.
type AdminDeleteRequest struct {
	APIKey string `json:"api_key"`
}

// AdminDeleteResponse confirms a deletion.
type AdminDeleteResponse struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// HealthResponse reports backend connectivity.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Version   string `json:"version"`
}
