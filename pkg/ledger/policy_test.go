package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPolicyCompound(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name        string
		outstanding string
		periods     int
		want        string
	}{
		{name: "no periods", outstanding: "1100", periods: 0, want: "1100"},
		{name: "one period", outstanding: "1100", periods: 1, want: "1210"},
		{name: "two periods", outstanding: "1100", periods: 2, want: "1331"},
		// Rounding per period would give 133.18.
		{name: "rounds once", outstanding: "100.05", periods: 3, want: "133.17"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Compound(decimal.RequireFromString(tt.outstanding), tt.periods)
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Compound(%s, %d) = %s, expected %s", tt.outstanding, tt.periods, got, tt.want)
			}
		})
	}
}

func TestPolicyBorrowLimit(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		balance string
		want    string
	}{
		{balance: "1000", want: "1300"},
		{balance: "0", want: "0"},
		{balance: "33.33", want: "43.33"},
	}

	for _, tt := range tests {
		got := p.BorrowLimit(decimal.RequireFromString(tt.balance))
		if !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("BorrowLimit(%s) = %s, expected %s", tt.balance, got, tt.want)
		}
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(p *Policy)
		wantErr bool
	}{
		{name: "default", modify: func(p *Policy) {}},
		{name: "zero unit price", modify: func(p *Policy) { p.UnitPrice = decimal.Zero }, wantErr: true},
		{name: "negative fine", modify: func(p *Policy) { p.RetroFine = decimal.NewFromInt(-1) }, wantErr: true},
		{name: "zero fine", modify: func(p *Policy) { p.RetroFine = decimal.Zero }},
		{name: "cap above storage limit", modify: func(p *Policy) { p.DailyUnitCap = 5 }, wantErr: true},
		{name: "zero cap", modify: func(p *Policy) { p.DailyUnitCap = 0 }, wantErr: true},
		{name: "zero period", modify: func(p *Policy) { p.ValidityPeriodDays = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.modify(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPeriodDays(t *testing.T) {
	p := DefaultPolicy()
	if got := p.PeriodDays(PoolMain); got != 30 {
		t.Errorf("PeriodDays(MAIN) = %d, expected 30", got)
	}
	if got := p.PeriodDays(PoolValidity); got != 7 {
		t.Errorf("PeriodDays(VALIDITY) = %d, expected 7", got)
	}
}
