package converter

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/savings-club/pkg/beancount"
	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

// Converter converts transaction log entries to Beancount transactions.
type Converter struct {
	mapper   *Mapper
	currency string
	loc      *time.Location
}

// NewConverter creates a new Converter. Entry dates are taken in loc.
func NewConverter(mapper *Mapper, currency string, loc *time.Location) *Converter {
	if currency == "" {
		currency = "USD"
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Converter{
		mapper:   mapper,
		currency: currency,
		loc:      loc,
	}
}

// logDetails holds the detail fields the conversion reads.
type logDetails struct {
	Date        string `json:"date"`
	Units       int    `json:"units"`
	PoolType    string `json:"pool_type"`
	Interest    string `json:"interest"`
	BorrowID    int64  `json:"borrowing_id"`
	Periods     int    `json:"periods"`
	Retroactive bool   `json:"retroactive"`
}

// Convert converts a log entry. ok is false for entries that move no money
// between accounts, such as member creation, deletion, and resets.
func (c *Converter) Convert(entry ledger.LogEntry, payee string) (txn beancount.Transaction, ok bool, err error) {
	var d logDetails
	if len(entry.Details) > 0 {
		if err := json.Unmarshal(entry.Details, &d); err != nil {
			return txn, false, fmt.Errorf("failed to decode details of log entry %d: %w", entry.ID, err)
		}
	}

	var person int64
	if entry.PersonID != nil {
		person = *entry.PersonID
	}

	txn = beancount.Transaction{
		Date:  entry.CreatedAt.In(c.loc).Format(ledger.DateLayout),
		Payee: payee,
		Tags:  []string{tagFor(entry.Type)},
		Links: []string{"club-" + entry.Reference},
		Metadata: map[string]string{
			"log_id": strconv.FormatInt(entry.ID, 10),
		},
	}
	if entry.PersonID != nil {
		txn.Metadata["person_id"] = strconv.FormatInt(person, 10)
	}

	switch entry.Type {
	case ledger.LogSaving:
		txn.Narration = fmt.Sprintf("Savings for %s", d.Date)
		if d.Retroactive {
			txn.Narration += " (late)"
		}
		if entry.MainPoolDelta.IsPositive() {
			txn.Postings = append(txn.Postings,
				c.posting(RoleMainPool, person, entry.MainPoolDelta, fmt.Sprintf("%d units", d.Units)),
				c.posting(RoleMemberMain, person, entry.MainPoolDelta.Neg(), ""),
			)
		}
		if entry.ValidityPoolDelta.IsPositive() {
			txn.Postings = append(txn.Postings,
				c.posting(RoleValidityPool, person, entry.ValidityPoolDelta, "validity fee"),
				c.posting(RoleMemberValidity, person, entry.ValidityPoolDelta.Neg(), ""),
			)
		}

	case ledger.LogFine:
		txn.Narration = fmt.Sprintf("Late entry fine for %s", d.Date)
		txn.Postings = []beancount.Posting{
			c.posting(RoleMainPool, person, entry.Amount, ""),
			c.posting(RoleFines, person, entry.Amount.Neg(), ""),
		}

	case ledger.LogBorrow:
		pool, loans := c.poolRoles(d.PoolType)
		txn.Narration = fmt.Sprintf("Borrowing %d from the %s pool", d.BorrowID, d.PoolType)
		txn.Postings = []beancount.Posting{
			c.posting(loans, person, entry.Amount, "principal"),
			c.posting(pool, person, entry.Amount.Neg(), ""),
		}
		if interest, err := decimal.NewFromString(d.Interest); err == nil && interest.IsPositive() {
			txn.Postings = append(txn.Postings,
				c.posting(loans, person, interest, "interest"),
				c.posting(RoleInterest, person, interest.Neg(), ""),
			)
		}

	case ledger.LogRepayment:
		pool, loans := c.poolRoles(d.PoolType)
		txn.Narration = fmt.Sprintf("Repayment of borrowing %d", d.BorrowID)
		txn.Postings = []beancount.Posting{
			c.posting(pool, person, entry.Amount, ""),
			c.posting(loans, person, entry.Amount.Neg(), ""),
		}

	case ledger.LogPenalty:
		_, loans := c.poolRoles(d.PoolType)
		txn.Narration = fmt.Sprintf("Overdue penalty on borrowing %d (%d periods)", d.BorrowID, d.Periods)
		txn.Postings = []beancount.Posting{
			c.posting(loans, person, entry.Amount, ""),
			c.posting(RolePenalties, person, entry.Amount.Neg(), ""),
		}

	default:
		return beancount.Transaction{}, false, nil
	}

	if len(txn.Postings) == 0 {
		return beancount.Transaction{}, false, nil
	}
	if !txn.Balanced() {
		return beancount.Transaction{}, false, fmt.Errorf("log entry %d converts to an unbalanced transaction", entry.ID)
	}
	return txn, true, nil
}

// FormatTransaction formats a Beancount transaction as a string.
func (c *Converter) FormatTransaction(txn beancount.Transaction) string {
	return txn.Format()
}

// Accounts lists every account the converter may post to for the given
// members.
func (c *Converter) Accounts(personIDs []int64) []string {
	accounts := []string{
		c.mapper.Account(RoleMainPool, 0),
		c.mapper.Account(RoleValidityPool, 0),
		c.mapper.Account(RoleLoansMain, 0),
		c.mapper.Account(RoleLoansValidity, 0),
		c.mapper.Account(RoleFines, 0),
		c.mapper.Account(RoleInterest, 0),
		c.mapper.Account(RolePenalties, 0),
	}
	for _, id := range personIDs {
		accounts = append(accounts,
			c.mapper.Account(RoleMemberMain, id),
			c.mapper.Account(RoleMemberValidity, id),
		)
	}
	return accounts
}

// Currency returns the commodity used in postings.
func (c *Converter) Currency() string {
	return c.currency
}

func (c *Converter) posting(role string, person int64, amount decimal.Decimal, comment string) beancount.Posting {
	return beancount.Posting{
		Account:  c.mapper.Account(role, person),
		Amount:   amount,
		Currency: c.currency,
		Comment:  comment,
	}
}

func (c *Converter) poolRoles(pool string) (poolRole, loansRole string) {
	if pool == string(ledger.PoolValidity) {
		return RoleValidityPool, RoleLoansValidity
	}
	return RoleMainPool, RoleLoansMain
}

func tagFor(t ledger.LogType) string {
	switch t {
	case ledger.LogSaving:
		return "savings"
	case ledger.LogFine:
		return "fine"
	case ledger.LogBorrow:
		return "borrowing"
	case ledger.LogRepayment:
		return "repayment"
	case ledger.LogPenalty:
		return "penalty"
	}
	return "club"
}
