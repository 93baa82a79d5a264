package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

// policyFile is the YAML layout of a policy override file. Amounts are
// strings so they are parsed as exact decimals. Omitted fields keep their
// defaults.
type policyFile struct {
	UnitPrice          *string `yaml:"unit_price"`
	ValidityFee        *string `yaml:"validity_fee"`
	RetroFine          *string `yaml:"retroactive_fine"`
	InterestRate       *string `yaml:"interest_rate"`
	PenaltyRate        *string `yaml:"penalty_rate"`
	BorrowLimitRatio   *string `yaml:"borrow_limit_ratio"`
	MinUnitPayments    *int    `yaml:"min_unit_payments"`
	DailyUnitCap       *int    `yaml:"daily_unit_cap"`
	MainPeriodDays     *int    `yaml:"main_period_days"`
	ValidityPeriodDays *int    `yaml:"validity_period_days"`
}

// LoadPolicy reads policy overrides from a YAML file.
func LoadPolicy(path string) (ledger.Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ledger.Policy{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy applies YAML overrides to the default policy and validates
// the result.
func ParsePolicy(data []byte) (ledger.Policy, error) {
	var f policyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return ledger.Policy{}, fmt.Errorf("failed to parse policy file: %w", err)
	}

	p := ledger.DefaultPolicy()
	amounts := []struct {
		name string
		src  *string
		dst  *decimal.Decimal
	}{
		{"unit_price", f.UnitPrice, &p.UnitPrice},
		{"validity_fee", f.ValidityFee, &p.ValidityFee},
		{"retroactive_fine", f.RetroFine, &p.RetroFine},
		{"interest_rate", f.InterestRate, &p.InterestRate},
		{"penalty_rate", f.PenaltyRate, &p.PenaltyRate},
		{"borrow_limit_ratio", f.BorrowLimitRatio, &p.BorrowLimitRatio},
	}
	for _, a := range amounts {
		if a.src == nil {
			continue
		}
		d, err := decimal.NewFromString(*a.src)
		if err != nil {
			return ledger.Policy{}, fmt.Errorf("invalid %s %q: %w", a.name, *a.src, err)
		}
		*a.dst = d
	}

	if f.MinUnitPayments != nil {
		p.MinUnitPayments = *f.MinUnitPayments
	}
	if f.DailyUnitCap != nil {
		p.DailyUnitCap = *f.DailyUnitCap
	}
	if f.MainPeriodDays != nil {
		p.MainPeriodDays = *f.MainPeriodDays
	}
	if f.ValidityPeriodDays != nil {
		p.ValidityPeriodDays = *f.ValidityPeriodDays
	}

	if err := p.Validate(); err != nil {
		return ledger.Policy{}, err
	}
	return p, nil
}
