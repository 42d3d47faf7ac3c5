package server

import (
	"errors"
	"fmt"
	"net/http"

	"imgvault/internal/api"
	"imgvault/internal/backend"
)

func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	client := s.clientIP(r)
	if s.adminAttempts.Blocked(client, s.now()) {
		s.writeServiceError(w, r, tooManyRequests(errors.New("too many failed admin attempts")))
		return
	}

	var req api.AdminDeleteRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	if !s.admin.Verify(req.APIKey) {
		if s.adminAttempts.Fail(client, s.now()) {
			s.log().Warn("admin client blocked", "client", client)
		}
		s.notify(fmt.Sprintf("Admin delete rejected | reason=invalid key | ip=%s", client))
		s.writeServiceError(w, r, unauthorized(errors.New("invalid admin key")))
		return
	}
	s.adminAttempts.Reset(client)

	token := r.PathValue("id")
	ref, err := s.codec.DecodeReference(token)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	loc := backend.Location{Handle: ref.Handle, MessageID: ref.MessageID}
	if err := s.backend.DeleteMessage(r.Context(), loc); err != nil {
		s.notify(fmt.Sprintf("Admin delete failed | message=%d | error=%v | ip=%s", ref.MessageID, err, client))
		s.writeServiceError(w, r, err)
		return
	}

	s.log().Info("image deleted", "message_id", ref.MessageID, "client", client)
	s.notify(fmt.Sprintf("Admin delete succeeded | message=%d | ip=%s", ref.MessageID, client))
	s.writeJSON(w, http.StatusOK, api.AdminDeleteResponse{ID: token, Deleted: true})
}
