package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

const maxHistoryLimit = 500

// runPenalties handles POST /api/v1/admin/penalties. The sweep is
// idempotent within a period, so it needs no credential.
func (s *Server) runPenalties(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.RunPenalties(r.Context())
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// resetAll handles POST /api/v1/admin/reset.
func (s *Server) resetAll(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.ResetAll(r.Context(), credential(r))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// share handles GET /api/v1/share.
func (s *Server) share(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Share(r.Context())
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// audit handles GET /api/v1/audit.
func (s *Server) audit(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Audit(r.Context())
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// history handles GET /api/v1/history.
//
// Query parameters: person_id, type (repeatable), since and until
// (YYYY-MM-DD, until exclusive) and limit.
func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f ledger.HistoryFilter

	if v := q.Get("person_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "INVALID_PARAMETER", "Invalid person_id")
			return
		}
		f.PersonID = &id
	}
	for _, t := range q["type"] {
		f.Types = append(f.Types, ledger.LogType(t))
	}

	var ok bool
	if v := q.Get("since"); v != "" {
		if f.Since, ok = s.parseDate(w, v, "since"); !ok {
			return
		}
	}
	if v := q.Get("until"); v != "" {
		if f.Until, ok = s.parseDate(w, v, "until"); !ok {
			return
		}
	}

	f.Limit = 100
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSONError(w, http.StatusBadRequest, "INVALID_PARAMETER", "Invalid limit")
			return
		}
		f.Limit = min(n, maxHistoryLimit)
	}

	entries, err := s.engine.History(r.Context(), f)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	if entries == nil {
		entries = []ledger.LogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": entries,
		"generated_at": time.Now().UTC(),
	})
}
