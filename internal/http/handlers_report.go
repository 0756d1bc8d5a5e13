package http

import (
	"net/http"

	"ledger/internal/core"
	"ledger/internal/log"
)

func (s *Server) handleMonthlyBalance(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, log.OpReport, err)
		return
	}
	mb, err := s.ledger.MonthlyBalance(r.Context(), p)
	if err != nil {
		writeError(w, r, log.OpReport, err)
		return
	}
	writeJSON(w, http.StatusOK, mb)
}

func (s *Server) handleFixedVsVariable(w http.ResponseWriter, r *http.Request) {
	p, err := parsePeriod(r.URL.Query(), s.now())
	if err != nil {
		writeError(w, r, log.OpReport, err)
		return
	}
	split, err := s.ledger.FixedVsVariable(r.Context(), p)
	if err != nil {
		writeError(w, r, log.OpReport, err)
		return
	}
	writeJSON(w, http.StatusOK, split)
}

func (s *Server) handleSalaryAnalysis(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	p, err := parsePeriod(query, s.now())
	if err != nil {
		writeError(w, r, log.OpReport, err)
		return
	}
	salary, err := parseSalary(query)
	if err != nil {
		writeError(w, r, log.OpReport, err)
		return
	}
	analysis, err := s.ledger.SalaryAnalysis(r.Context(), p, salary)
	if err != nil {
		writeError(w, r, log.OpReport, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"security": s.SecurityStats()}
	if s.stats != nil {
		body["caches"] = s.stats.CacheStats()
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.ledger.ListExpenseCategories(r.Context())
	if err != nil {
		writeError(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, cats)
}

type classifyRequest struct {
	Type core.Classification `json:"type"`
}

func (s *Server) handleClassifyCategory(w http.ResponseWriter, r *http.Request) {
	category := sanitizeInput(r.PathValue("category"))
	var req classifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	if err := s.ledger.ClassifyCategory(r.Context(), category, req.Type); err != nil {
		writeError(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"category": category, "type": string(req.Type)})
}
