package server

import "net/http"

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /upload_from_url", s.handleUploadFromURL)
	mux.HandleFunc("GET /job/{id}", s.handleJobStatus)

	mux.HandleFunc("GET /image/{id}", s.handleImage)
	mux.HandleFunc("GET /info/{id}", s.handleInfo)

	if s.admin != nil {
		mux.HandleFunc("DELETE /admin/image/{id}", s.handleAdminDelete)
	}

	return s.withRequestLogging(s.withCORS(s.withRateLimit(mux)))
}
