package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrRecordNotFound is returned by a Store when a requested row does not exist.
var ErrRecordNotFound = errors.New("record not found")

// Kind identifies a ledger failure reported to callers.
type Kind string

const (
	KindInvalidUnits           Kind = "INVALID_UNITS"
	KindDailyCapExceeded       Kind = "DAILY_CAP_EXCEEDED"
	KindNoChangeRequested      Kind = "NO_CHANGE_REQUESTED"
	KindUnitsCapExceeded       Kind = "UNITS_CAP_EXCEEDED"
	KindDateNotPast            Kind = "DATE_NOT_PAST"
	KindInvalidPoolType        Kind = "INVALID_POOL_TYPE"
	KindInvalidAmount          Kind = "INVALID_AMOUNT"
	KindInvalidName            Kind = "INVALID_NAME"
	KindNoPersonalBalance      Kind = "NO_PERSONAL_BALANCE"
	KindBadCredential          Kind = "BAD_CREDENTIAL"
	KindInsufficientSavedCount Kind = "INSUFFICIENT_SAVED_COUNT"
	KindOpenDebtExists         Kind = "OPEN_DEBT_EXISTS"
	KindLimitExceeded          Kind = "LIMIT_EXCEEDED"
	KindInsufficientGroupFunds Kind = "INSUFFICIENT_GROUP_FUNDS"
	KindNotFound               Kind = "NOT_FOUND"
	KindNotOwner               Kind = "NOT_OWNER"
	KindNotOpen                Kind = "NOT_OPEN"
	KindOverpayment            Kind = "OVERPAYMENT"
	KindMissingID              Kind = "MISSING_ID"
	KindInternal               Kind = "INTERNAL"
)

// Category groups kinds by how a caller should react to them.
type Category int

const (
	CategoryInternal Category = iota
	CategoryValidation
	CategoryAuthorization
	CategoryNotFound
	CategoryConflict
)

var kindCategories = map[Kind]Category{
	KindInvalidUnits:           CategoryValidation,
	KindDailyCapExceeded:       CategoryValidation,
	KindNoChangeRequested:      CategoryValidation,
	KindUnitsCapExceeded:       CategoryValidation,
	KindDateNotPast:            CategoryValidation,
	KindInvalidPoolType:        CategoryValidation,
	KindInvalidAmount:          CategoryValidation,
	KindInvalidName:            CategoryValidation,
	KindMissingID:              CategoryValidation,
	KindInsufficientSavedCount: CategoryValidation,
	KindLimitExceeded:          CategoryValidation,
	KindBadCredential:          CategoryAuthorization,
	KindNotFound:               CategoryNotFound,
	KindNoPersonalBalance:      CategoryNotFound,
	KindNotOwner:               CategoryConflict,
	KindNotOpen:                CategoryConflict,
	KindOverpayment:            CategoryConflict,
	KindOpenDebtExists:         CategoryConflict,
	KindInsufficientGroupFunds: CategoryConflict,
}

// Error is a domain failure. The enclosing transaction is always rolled back
// and no log entry is written.
type Error struct {
	Kind    Kind
	Message string

	// Outstanding is set on OVERPAYMENT so the caller can retry with the
	// true remaining amount.
	Outstanding *decimal.Decimal
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Category returns the error's category.
func (e *Error) Category() Category {
	if c, ok := kindCategories[e.Kind]; ok {
		return c
	}
	return CategoryInternal
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind carried by err, or KindInternal for store and
// infrastructure failures.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindInternal
}

// IsKind reports whether err is a ledger Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
