package models

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// NonceSize is the AEAD nonce length carried by every FileReference.
const NonceSize = 12

// FileReference locates one encrypted image in the backend.
//
// The JSON field names are the token wire format; renaming them invalidates
// every token already handed out.
type FileReference struct {
	Handle    string          `json:"file_id"`
	MessageID int64           `json:"message_id"`
	Nonce     [NonceSize]byte `json:"nonce"`
	Size      int64           `json:"file_size"`
	MimeType  string          `json:"mime_type"`
}

// NewFileReference builds a reference with a fresh random nonce.
func NewFileReference(handle string, messageID, size int64, mimeType string) (FileReference, error) {
	ref := FileReference{
		Handle:    handle,
		MessageID: messageID,
		Size:      size,
		MimeType:  mimeType,
	}
	if _, err := rand.Read(ref.Nonce[:]); err != nil {
		return FileReference{}, fmt.Errorf("generate nonce: %w", err)
	}
	if err := ref.Validate(); err != nil {
		return FileReference{}, err
	}
	return ref, nil
}

// Validate checks the invariants a decoded reference must satisfy.
func (r FileReference) Validate() error {
	if strings.TrimSpace(r.Handle) == "" {
		return fmt.Errorf("file reference handle is required")
	}
	if r.Size < 0 {
		return fmt.Errorf("file reference size must be >= 0")
	}
	if strings.TrimSpace(r.MimeType) == "" {
		return fmt.Errorf("file reference mime type is required")
	}
	return nil
}
