package models

import (
	"fmt"
	"strings"
	"time"
)

// UploadJob is one validated, encrypted upload waiting for the worker.
type UploadJob struct {
	ID               string
	EncryptedPayload []byte
	Filename         string
	OriginalSize     int64
	MimeType         string
	ClientAddr       string
	QueuedAt         time.Time
}

// JobState is the client-visible state of an upload job.
type JobState string

const (
	JobPending   JobState = "Pending"
	JobCompleted JobState = "Completed"
	// JobFailed is part of the wire contract but is never produced: the
	// worker does not record failures, so a failed job stays Pending.
	JobFailed JobState = "Failed"
)

var validJobStates = map[JobState]struct{}{
	JobPending:   {},
	JobCompleted: {},
	JobFailed:    {},
}

// ParseJobState parses a job state case-insensitively.
func ParseJobState(value string) (JobState, error) {
	value = strings.TrimSpace(value)
	for state := range validJobStates {
		if strings.EqualFold(string(state), value) {
			return state, nil
		}
	}
	return "", fmt.Errorf("invalid job state: %s", value)
}
