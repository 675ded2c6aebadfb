package server

import (
	"net/http"

	"filedrop/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	stats, err := s.files.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.InfoResponse{
		Backend:    s.backend,
		FileCount:  stats.Objects,
		TotalBytes: stats.Bytes,
		Version:    s.version,
	})
}
