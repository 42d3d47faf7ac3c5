package server

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"imgvault/internal/api"
	"imgvault/internal/backend"
)

const imageCacheControl = "public, max-age=3600"

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("id")
	ref, err := s.codec.DecodeReference(token)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	packet, err := backend.Download(r.Context(), s.backend, ref.Handle)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	image, err := s.codec.DecryptBytes(packet)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if int64(len(image)) != ref.Size {
		s.writeServiceError(w, r, internalError(fmt.Errorf("size mismatch: reference says %d bytes, decrypted %d", ref.Size, len(image))))
		return
	}

	etag := imageETag(image)
	h := w.Header()
	h.Set("ETag", etag)
	h.Set("Cache-Control", imageCacheControl)

	if etagMatches(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.Set("Content-Type", ref.MimeType)
	h.Set("Content-Length", strconv.Itoa(len(image)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		if _, err := w.Write(image); err != nil {
			s.log().Debug("write image", "error", err)
		}
	}

	s.notify(fmt.Sprintf("Image served | size=%d | type=%s | ip=%s", ref.Size, ref.MimeType, s.clientIP(r)))
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("id")
	ref, err := s.codec.DecodeReference(token)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.ImageInfoResponse{ID: token, Size: ref.Size, MimeType: ref.MimeType})
	s.notify(fmt.Sprintf("Info requested | size=%d | type=%s | ip=%s", ref.Size, ref.MimeType, s.clientIP(r)))
}

// imageETag is the quoted hex of the first 8 bytes of the SHA-256 of the
// plaintext image.
func imageETag(image []byte) string {
	sum := sha256.Sum256(image)
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}

func etagMatches(header, etag string) bool {
	header = strings.TrimSpace(header)
	if header == "" {
		return false
	}
	if header == "*" {
		return true
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimPrefix(strings.TrimSpace(candidate), "W/")
		if candidate == etag {
			return true
		}
	}
	return false
}
