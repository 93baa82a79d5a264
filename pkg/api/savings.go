package api

import (
	"net/http"
	"time"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

// SaveRequest is the body of POST /api/v1/members/{id}/savings.
type SaveRequest struct {
	Units       int    `json:"units"`
	PayValidity bool   `json:"pay_validity"`
	Date        string `json:"effective_date,omitempty"`
}

// RetroRequest is the body of POST /api/v1/members/{id}/savings/retroactive.
type RetroRequest struct {
	Date                 string `json:"date"`
	AddUnits             int    `json:"add_units"`
	PayValidityIfMissing bool   `json:"pay_validity_if_missing"`
}

// save handles POST /api/v1/members/{id}/savings.
func (s *Server) save(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body SaveRequest
	if !decodeBody(w, r, &body) {
		return
	}

	req := ledger.SaveRequest{PersonID: id, Units: body.Units, PayValidity: body.PayValidity}
	if body.Date != "" {
		d, ok := s.parseDate(w, body.Date, "effective_date")
		if !ok {
			return
		}
		req.EffectiveDate = &d
	}

	res, err := s.engine.Save(r.Context(), req)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// retroactiveFill handles POST /api/v1/members/{id}/savings/retroactive.
func (s *Server) retroactiveFill(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body RetroRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Date == "" {
		writeJSONError(w, http.StatusBadRequest, "INVALID_PARAMETER", "Missing date")
		return
	}
	d, ok := s.parseDate(w, body.Date, "date")
	if !ok {
		return
	}

	res, err := s.engine.RetroactiveFill(r.Context(), ledger.RetroRequest{
		PersonID:             id,
		Date:                 d,
		AddUnits:             body.AddUnits,
		PayValidityIfMissing: body.PayValidityIfMissing,
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) parseDate(w http.ResponseWriter, value, field string) (time.Time, bool) {
	d, err := time.ParseInLocation(ledger.DateLayout, value, s.loc)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_PARAMETER", "Invalid "+field+", expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}
