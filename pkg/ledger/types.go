// Package ledger implements the savings club ledger engine: savings, borrowing,
// penalty and admin operations executed as single serializable transactions
// against a Store.
package ledger

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PoolType identifies one of the two group fund buckets.
type PoolType string

const (
	PoolMain     PoolType = "MAIN"
	PoolValidity PoolType = "VALIDITY"
)

// ParsePoolType parses a pool type case-insensitively.
func ParsePoolType(s string) (PoolType, error) {
	switch PoolType(strings.ToUpper(strings.TrimSpace(s))) {
	case PoolMain:
		return PoolMain, nil
	case PoolValidity:
		return PoolValidity, nil
	}
	return "", newError(KindInvalidPoolType, "pool type must be MAIN or VALIDITY, got %q", s)
}

// Valid reports whether p is a known pool type.
func (p PoolType) Valid() bool {
	return p == PoolMain || p == PoolValidity
}

// BorrowingStatus is the state of a Borrowing. PAID is terminal.
type BorrowingStatus string

const (
	StatusOpen BorrowingStatus = "OPEN"
	StatusPaid BorrowingStatus = "PAID"
)

// PaymentType classifies funds received from or credited to a person.
type PaymentType string

const (
	PaymentUnit        PaymentType = "UNIT"
	PaymentValidity    PaymentType = "VALIDITY"
	PaymentFine        PaymentType = "FINE"
	PaymentDebtPayment PaymentType = "DEBT_PAYMENT"
)

// LogType is the kind of a transaction log entry.
type LogType string

const (
	LogSaving            LogType = "SAVING"
	LogFine              LogType = "FINE"
	LogBorrow            LogType = "BORROW"
	LogRepayment         LogType = "REPAYMENT"
	LogPenalty           LogType = "PENALTY"
	LogMemberCreated     LogType = "MEMBER_CREATED"
	LogAdminDeleteMember LogType = "ADMIN_DELETE_MEMBER"
	LogAdminReset        LogType = "ADMIN_RESET"
)

// DateLayout is the layout of daily summary and effective dates.
const DateLayout = "2006-01-02"

// Person is a club member.
type Person struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// PersonalBalance holds a member's own savings.
type PersonalBalance struct {
	PersonID        int64           `json:"person_id"`
	MainSavings     decimal.Decimal `json:"main_savings_balance"`
	ValiditySavings decimal.Decimal `json:"validity_savings_balance"`
}

// Get returns the balance that corresponds to pool p.
func (b *PersonalBalance) Get(p PoolType) decimal.Decimal {
	if p == PoolValidity {
		return b.ValiditySavings
	}
	return b.MainSavings
}

// GroupPool is one of the two singleton fund rows.
type GroupPool struct {
	Type    PoolType        `json:"pool_type"`
	Balance decimal.Decimal `json:"balance"`
}

// Pools is a snapshot of both group pool balances.
type Pools struct {
	Main     decimal.Decimal `json:"main"`
	Validity decimal.Decimal `json:"validity"`
}

// Get returns the balance of pool p.
func (p Pools) Get(t PoolType) decimal.Decimal {
	if t == PoolValidity {
		return p.Validity
	}
	return p.Main
}

// Total is the sum of both pools.
func (p Pools) Total() decimal.Decimal {
	return p.Main.Add(p.Validity)
}

// Borrowing is a debt taken against a group pool.
type Borrowing struct {
	ID                   int64           `json:"id"`
	PersonID             int64           `json:"person_id"`
	Pool                 PoolType        `json:"pool_type"`
	Principal            decimal.Decimal `json:"principal"`
	InitialProfit        decimal.Decimal `json:"initial_profit_amount"`
	Outstanding          decimal.Decimal `json:"outstanding_amount"`
	Status               BorrowingStatus `json:"status"`
	DueDate              time.Time       `json:"due_date"`
	LastPaymentAt        *time.Time      `json:"last_payment_at,omitempty"`
	LastPenaltyAppliedAt *time.Time      `json:"last_penalty_applied_at,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}

// Payment is an append-only record of funds moved for a person.
type Payment struct {
	ID            int64           `json:"id"`
	PersonID      int64           `json:"person_id"`
	Type          PaymentType     `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	EffectiveDate string          `json:"effective_date,omitempty"`
	BorrowingID   *int64          `json:"borrowing_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// DailySummary tracks what a person paid on one calendar day.
type DailySummary struct {
	PersonID     int64           `json:"person_id"`
	Date         string          `json:"date"`
	ValidityPaid bool            `json:"validity_paid"`
	UnitsCount   int             `json:"units_count"`
	FineAmount   decimal.Decimal `json:"fine_amount"`
}

// LogEntry is an immutable, point-in-time record of a committed operation.
// Balances in the entry are snapshots and are never used for money math.
type LogEntry struct {
	ID                   int64            `json:"id"`
	PersonID             *int64           `json:"person_id,omitempty"`
	Type                 LogType          `json:"transaction_type"`
	Details              json.RawMessage  `json:"details"`
	Amount               decimal.Decimal  `json:"amount"`
	MainSavingsAfter     *decimal.Decimal `json:"main_savings_after,omitempty"`
	ValiditySavingsAfter *decimal.Decimal `json:"validity_savings_after,omitempty"`
	MainPoolAfter        decimal.Decimal  `json:"main_pool_after"`
	ValidityPoolAfter    decimal.Decimal  `json:"validity_pool_after"`
	MainPoolDelta        decimal.Decimal  `json:"main_pool_delta"`
	ValidityPoolDelta    decimal.Decimal  `json:"validity_pool_delta"`
	Reference            string           `json:"reference"`
	CreatedAt            time.Time        `json:"created_at"`
}

// HistoryFilter narrows a transaction log listing.
type HistoryFilter struct {
	PersonID *int64
	Types    []LogType
	Since    time.Time
	Until    time.Time
	Limit    int
}

func (p PoolType) String() string { return string(p) }

func (s BorrowingStatus) String() string { return string(s) }

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
