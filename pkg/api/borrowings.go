package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

// BorrowRequest is the body of POST /api/v1/members/{id}/borrowings.
// AdminOverride requires the admin credential header.
type BorrowRequest struct {
	Pool          string          `json:"pool_type"`
	Amount        decimal.Decimal `json:"amount"`
	AdminOverride bool            `json:"admin_override"`
}

// RepayRequest is the body of a repayment.
type RepayRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// PayFullRequest is the body of POST /api/v1/members/{id}/borrowings/pay-full.
type PayFullRequest struct {
	Pool string `json:"pool_type"`
}

// borrow handles POST /api/v1/members/{id}/borrowings.
func (s *Server) borrow(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body BorrowRequest
	if !decodeBody(w, r, &body) {
		return
	}
	pool, err := ledger.ParsePoolType(body.Pool)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	res, err := s.engine.Borrow(r.Context(), ledger.BorrowRequest{
		PersonID:      id,
		Pool:          pool,
		Amount:        body.Amount,
		AdminOverride: body.AdminOverride,
		Credential:    credential(r),
	})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// repay handles POST /api/v1/members/{id}/borrowings/{bid}/repayments.
func (s *Server) repay(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	bid, ok := pathID(w, r, "bid")
	if !ok {
		return
	}
	var body RepayRequest
	if !decodeBody(w, r, &body) {
		return
	}

	res, err := s.engine.Repay(r.Context(), ledger.RepayRequest{PersonID: id, BorrowingID: bid, Amount: body.Amount})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// payFull handles POST /api/v1/members/{id}/borrowings/pay-full.
func (s *Server) payFull(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var body PayFullRequest
	if !decodeBody(w, r, &body) {
		return
	}
	pool, err := ledger.ParsePoolType(body.Pool)
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}

	res, err := s.engine.PayFull(r.Context(), ledger.PayFullRequest{PersonID: id, Pool: pool})
	if err != nil {
		s.writeLedgerError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
