package web

import "net/http"

type checkPage struct {
	AIAvailable bool
}

func (s *Server) handleCheckPage(w http.ResponseWriter, r *http.Request) {
	data := checkPage{AIAvailable: s.scans.AIAvailable()}
	if err := s.renderPage(w, data, "base.html", "pages/check.html", "partials/result.html"); err != nil {
		s.logger.Error("render check page failed", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ai := "offline"
	if s.scans.AIAvailable() {
		ai = "available"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "ai": ai})
}
