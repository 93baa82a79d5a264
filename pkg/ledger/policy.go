package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MaxDailyUnits is the hard ceiling on units per person per day.
const MaxDailyUnits = 4

// Policy holds the club's money rules. The engine never reads them from the
// environment; callers build a Policy and pass it in.
type Policy struct {
	UnitPrice          decimal.Decimal
	ValidityFee        decimal.Decimal
	RetroFine          decimal.Decimal
	InterestRate       decimal.Decimal
	PenaltyRate        decimal.Decimal
	BorrowLimitRatio   decimal.Decimal
	MinUnitPayments    int
	DailyUnitCap       int
	MainPeriodDays     int
	ValidityPeriodDays int
}

// DefaultPolicy returns the standard club rules.
func DefaultPolicy() Policy {
	return Policy{
		UnitPrice:          decimal.NewFromInt(100),
		ValidityFee:        decimal.NewFromInt(10),
		RetroFine:          decimal.NewFromInt(20),
		InterestRate:       decimal.NewFromFloat(0.10),
		PenaltyRate:        decimal.NewFromFloat(0.10),
		BorrowLimitRatio:   decimal.NewFromFloat(1.30),
		MinUnitPayments:    3,
		DailyUnitCap:       MaxDailyUnits,
		MainPeriodDays:     30,
		ValidityPeriodDays: 7,
	}
}

// Validate checks that the policy can drive the engine.
func (p Policy) Validate() error {
	if !p.UnitPrice.IsPositive() {
		return fmt.Errorf("unit price must be positive")
	}
	if !p.ValidityFee.IsPositive() {
		return fmt.Errorf("validity fee must be positive")
	}
	if p.RetroFine.IsNegative() {
		return fmt.Errorf("retroactive fine must not be negative")
	}
	if p.InterestRate.IsNegative() || p.PenaltyRate.IsNegative() {
		return fmt.Errorf("interest and penalty rates must not be negative")
	}
	if !p.BorrowLimitRatio.IsPositive() {
		return fmt.Errorf("borrow limit ratio must be positive")
	}
	if p.DailyUnitCap <= 0 || p.DailyUnitCap > MaxDailyUnits {
		return fmt.Errorf("daily unit cap must be between 1 and %d", MaxDailyUnits)
	}
	if p.MinUnitPayments < 0 {
		return fmt.Errorf("minimum unit payments must not be negative")
	}
	if p.MainPeriodDays <= 0 || p.ValidityPeriodDays <= 0 {
		return fmt.Errorf("pool period lengths must be positive")
	}
	return nil
}

// PeriodDays returns the borrow and penalty period of a pool.
func (p Policy) PeriodDays(pool PoolType) int {
	if pool == PoolValidity {
		return p.ValidityPeriodDays
	}
	return p.MainPeriodDays
}

// BorrowLimit is the largest amount a member may borrow against balance.
func (p Policy) BorrowLimit(balance decimal.Decimal) decimal.Decimal {
	return round(balance.Mul(p.BorrowLimitRatio))
}

// Interest is the flat profit charged on a new borrowing.
func (p Policy) Interest(principal decimal.Decimal) decimal.Decimal {
	return round(principal.Mul(p.InterestRate))
}

// Compound applies fullPeriods of penalty to outstanding, rounding once at
// the end rather than per period.
func (p Policy) Compound(outstanding decimal.Decimal, fullPeriods int) decimal.Decimal {
	if fullPeriods <= 0 {
		return outstanding
	}
	factor := decimal.NewFromInt(1).Add(p.PenaltyRate).Pow(decimal.NewFromInt(int64(fullPeriods)))
	return round(outstanding.Mul(factor))
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
