package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

// CreateMemberRequest is the body of POST /api/v1/members.
type CreateMemberRequest struct {
	Name string `json:"name"`
}

// listMembers handles GET /api/v1/members.
func (s *Server) listMembers(w http.ResponseWriter, r *http.Request) {
	people, err := s.engine.ListMembers(r.Context())
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	if people == nil {
		people = []ledger.Person{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"members": people})
}

// createMember handles POST /api/v1/members.
func (s *Server) createMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberRequest
	if !decodeBody(w, r, &req) {
		return
	}

	person, err := s.engine.CreateMember(r.Context(), req.Name, credential(r))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"member": person})
}

// getMember handles GET /api/v1/members/{id}.
func (s *Server) getMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	st, err := s.engine.Statement(r.Context(), id)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// deleteMember handles DELETE /api/v1/members/{id}.
func (s *Server) deleteMember(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	res, err := s.engine.DeleteMember(r.Context(), id, credential(r))
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_PARAMETER", "Invalid "+name)
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "INVALID_REQUEST", "Failed to parse request body")
		return false
	}
	return true
}
