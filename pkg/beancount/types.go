// Package beancount provides repository pattern for Beancount file operations.
package beancount

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Transaction represents a Beancount transaction.
type Transaction struct {
	Date      string            // YYYY-MM-DD
	Narration string            // Transaction description
	Payee     string            // Payee name (optional)
	Tags      []string          // Tags (e.g., ["savings"])
	Links     []string          // Links (optional)
	Metadata  map[string]string // Metadata key-value pairs
	Postings  []Posting         // Transaction postings
}

// Posting represents a posting in a Beancount transaction.
type Posting struct {
	Account  string          // Account name (e.g., "Assets:Club:MainPool")
	Amount   decimal.Decimal // Amount (positive for debit, negative for credit)
	Currency string          // Currency code (e.g., "USD")
	Comment  string          // Posting comment (optional)
}

// Balanced reports whether the postings sum to zero.
func (t Transaction) Balanced() bool {
	sum := decimal.Zero
	for _, p := range t.Postings {
		sum = sum.Add(p.Amount)
	}
	return sum.IsZero()
}

// amountColumn is the column postings' amounts are right-aligned to.
const amountColumn = 60

// Format renders the transaction in Beancount syntax.
func (t Transaction) Format() string {
	var sb strings.Builder

	sb.WriteString(t.Date)
	sb.WriteString(" *")
	if t.Payee != "" {
		sb.WriteString(fmt.Sprintf(" %q", t.Payee))
	}
	sb.WriteString(fmt.Sprintf(" %q", t.Narration))
	for _, tag := range t.Tags {
		sb.WriteString(" #" + tag)
	}
	for _, link := range t.Links {
		sb.WriteString(" ^" + link)
	}
	sb.WriteString("\n")

	keys := make([]string, 0, len(t.Metadata))
	for k := range t.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(fmt.Sprintf("  %s: %q\n", k, t.Metadata[k]))
	}

	for _, posting := range t.Postings {
		sb.WriteString("  ")
		sb.WriteString(posting.Account)

		amount := posting.Amount.StringFixed(2)
		spaces := amountColumn - len(posting.Account) - len(amount)
		if spaces < 2 {
			spaces = 2
		}
		sb.WriteString(strings.Repeat(" ", spaces))
		sb.WriteString(amount)
		sb.WriteString(" ")
		sb.WriteString(posting.Currency)

		if posting.Comment != "" {
			sb.WriteString(fmt.Sprintf(" ; %s", posting.Comment))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
