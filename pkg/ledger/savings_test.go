package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

func TestSave(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	alice := tl.member("alice")

	res, err := tl.engine.Save(ctx, ledger.SaveRequest{PersonID: alice, Units: 2, PayValidity: true})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if res.Date != "2025-03-10" {
		t.Errorf("Date = %s, expected 2025-03-10", res.Date)
	}
	if res.UnitsApplied != 2 {
		t.Errorf("UnitsApplied = %d, expected 2", res.UnitsApplied)
	}
	assertAmount(t, "UnitsAmount", res.UnitsAmount, "200")
	assertAmount(t, "ValidityAmount", res.ValidityAmount, "10")
	assertAmount(t, "Balance.MainSavings", res.Balance.MainSavings, "200")
	assertAmount(t, "Balance.ValiditySavings", res.Balance.ValiditySavings, "10")
	assertAmount(t, "Pools.Main", res.Pools.Main, "200")
	assertAmount(t, "Pools.Validity", res.Pools.Validity, "10")
	if res.Summary.UnitsCount != 2 || !res.Summary.ValidityPaid {
		t.Errorf("Summary = %+v, expected 2 units with validity paid", res.Summary)
	}

	if n := tl.count(`SELECT COUNT(*) FROM payment WHERE person_id = ? AND type = 'UNIT'`, alice); n != 2 {
		t.Errorf("unit payments = %d, expected 2", n)
	}
	if n := tl.count(`SELECT COUNT(*) FROM payment WHERE person_id = ? AND type = 'VALIDITY'`, alice); n != 1 {
		t.Errorf("validity payments = %d, expected 1", n)
	}
	if n := tl.logCount(alice, ledger.LogSaving); n != 1 {
		t.Errorf("SAVING log entries = %d, expected 1", n)
	}

	var sawSavings, sawGroup bool
	for _, c := range tl.notifier.changes {
		switch c.Type {
		case ledger.ChangeSavings:
			sawSavings = c.PersonID != nil && *c.PersonID == alice
		case ledger.ChangeGroup:
			sawGroup = c.PersonID == nil
		}
	}
	if !sawSavings || !sawGroup {
		t.Errorf("expected savings and group changes, got %+v", tl.notifier.changes)
	}
}

func TestSaveChargesValidityOnce(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	alice := tl.member("alice")

	if _, err := tl.engine.Save(ctx, ledger.SaveRequest{PersonID: alice, Units: 1, PayValidity: true}); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	res, err := tl.engine.Save(ctx, ledger.SaveRequest{PersonID: alice, PayValidity: true})
	if err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	assertAmount(t, "ValidityAmount", res.ValidityAmount, "0")
	assertAmount(t, "Balance.ValiditySavings", res.Balance.ValiditySavings, "10")
	assertAmount(t, "Pools.Validity", tl.pools().Validity, "10")
	if n := tl.logCount(alice, ledger.LogSaving); n != 1 {
		t.Errorf("SAVING log entries = %d, expected 1 (repeat must not log)", n)
	}
}

func TestSaveDailyCap(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	alice := tl.member("alice")

	if _, err := tl.engine.Save(ctx, ledger.SaveRequest{PersonID: alice, Units: 3}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, err := tl.engine.Save(ctx, ledger.SaveRequest{PersonID: alice, Units: 2, PayValidity: true})
	assertKind(t, err, ledger.KindDailyCapExceeded)

	// The rejected call must not have paid validity either.
	assertAmount(t, "Pools.Main", tl.pools().Main, "300")
	assertAmount(t, "Pools.Validity", tl.pools().Validity, "0")
	assertAmount(t, "MainSavings", tl.balance(alice).MainSavings, "300")

	res, err := tl.engine.Save(ctx, ledger.SaveRequest{PersonID: alice, Units: 1})
	if err != nil {
		t.Fatalf("Save up to the cap failed: %v", err)
	}
	if res.Summary.UnitsCount != 4 {
		t.Errorf("UnitsCount = %d, expected 4", res.Summary.UnitsCount)
	}

	// A different day has its own cap.
	tomorrow := tl.now.AddDate(0, 0, 1)
	if _, err := tl.engine.Save(ctx, ledger.SaveRequest{PersonID: alice, Units: 4, EffectiveDate: &tomorrow}); err != nil {
		t.Errorf("Save for another day failed: %v", err)
	}
}

func TestSaveValidation(t *testing.T) {
	tl := newTestLedger(t)
	alice := tl.member("alice")

	tests := []struct {
		name string
		req  ledger.SaveRequest
		want ledger.Kind
	}{
		{name: "negative units", req: ledger.SaveRequest{PersonID: alice, Units: -1}, want: ledger.KindInvalidUnits},
		{name: "units above cap", req: ledger.SaveRequest{PersonID: alice, Units: 5}, want: ledger.KindDailyCapExceeded},
		{name: "unknown person", req: ledger.SaveRequest{PersonID: 999, Units: 1}, want: ledger.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tl.engine.Save(context.Background(), tt.req)
			assertKind(t, err, tt.want)
		})
	}
}

func TestSaveNothingRequested(t *testing.T) {
	tl := newTestLedger(t)
	alice := tl.member("alice")

	res, err := tl.engine.Save(context.Background(), ledger.SaveRequest{PersonID: alice})
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if res.UnitsApplied != 0 || !res.ValidityAmount.IsZero() {
		t.Errorf("expected nothing applied, got %+v", res)
	}
	if n := tl.logCount(alice, ledger.LogSaving); n != 0 {
		t.Errorf("SAVING log entries = %d, expected 0", n)
	}
}

func TestRetroactiveFillValidation(t *testing.T) {
	tl := newTestLedger(t)
	alice := tl.member("alice")
	yesterday := tl.now.AddDate(0, 0, -1)

	tests := []struct {
		name string
		req  ledger.RetroRequest
		want ledger.Kind
	}{
		{
			name: "today is not past",
			req:  ledger.RetroRequest{PersonID: alice, Date: tl.now, AddUnits: 1},
			want: ledger.KindDateNotPast,
		},
		{
			name: "future date",
			req:  ledger.RetroRequest{PersonID: alice, Date: tl.now.AddDate(0, 0, 3), AddUnits: 1},
			want: ledger.KindDateNotPast,
		},
		{
			name: "zero date",
			req:  ledger.RetroRequest{PersonID: alice, AddUnits: 1},
			want: ledger.KindDateNotPast,
		},
		{
			name: "no change requested",
			req:  ledger.RetroRequest{PersonID: alice, Date: yesterday},
			want: ledger.KindNoChangeRequested,
		},
		{
			name: "too many units",
			req:  ledger.RetroRequest{PersonID: alice, Date: yesterday, AddUnits: 5},
			want: ledger.KindInvalidUnits,
		},
		{
			name: "unknown person",
			req:  ledger.RetroRequest{PersonID: 999, Date: yesterday, AddUnits: 1},
			want: ledger.KindNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tl.engine.RetroactiveFill(context.Background(), tt.req)
			assertKind(t, err, tt.want)
		})
	}
}

func TestRetroactiveFillChargesFine(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	alice := tl.member("alice")
	yesterday := tl.now.AddDate(0, 0, -1)

	res, err := tl.engine.RetroactiveFill(ctx, ledger.RetroRequest{
		PersonID:             alice,
		Date:                 yesterday,
		AddUnits:             2,
		PayValidityIfMissing: true,
	})
	if err != nil {
		t.Fatalf("RetroactiveFill failed: %v", err)
	}

	if res.Date != "2025-03-09" {
		t.Errorf("Date = %s, expected 2025-03-09", res.Date)
	}
	assertAmount(t, "FineAmount", res.FineAmount, "20")
	assertAmount(t, "UnitsAmount", res.UnitsAmount, "200")
	assertAmount(t, "ValidityAmount", res.ValidityAmount, "10")
	assertAmount(t, "Summary.FineAmount", res.Summary.FineAmount, "20")

	// The fine goes to the group, not to the member's own savings.
	assertAmount(t, "Balance.MainSavings", res.Balance.MainSavings, "200")
	assertAmount(t, "Pools.Main", res.Pools.Main, "220")
	assertAmount(t, "Pools.Validity", res.Pools.Validity, "10")

	if n := tl.logCount(alice, ledger.LogFine); n != 1 {
		t.Errorf("FINE log entries = %d, expected 1", n)
	}
	if n := tl.logCount(alice, ledger.LogSaving); n != 1 {
		t.Errorf("SAVING log entries = %d, expected 1", n)
	}
}

func TestRetroactiveFillValidityOnlyHasNoFine(t *testing.T) {
	tl := newTestLedger(t)
	alice := tl.member("alice")

	res, err := tl.engine.RetroactiveFill(context.Background(), ledger.RetroRequest{
		PersonID:             alice,
		Date:                 tl.now.AddDate(0, 0, -2),
		PayValidityIfMissing: true,
	})
	if err != nil {
		t.Fatalf("RetroactiveFill failed: %v", err)
	}
	assertAmount(t, "FineAmount", res.FineAmount, "0")
	assertAmount(t, "ValidityAmount", res.ValidityAmount, "10")
	assertAmount(t, "Pools.Main", tl.pools().Main, "0")
	if n := tl.logCount(alice, ledger.LogFine); n != 0 {
		t.Errorf("FINE log entries = %d, expected 0", n)
	}
}

func TestRetroactiveFillCap(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	alice := tl.member("alice")
	past := tl.now.Add(-72 * time.Hour)

	if _, err := tl.engine.Save(ctx, ledger.SaveRequest{PersonID: alice, Units: 3, EffectiveDate: &past}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	_, err := tl.engine.RetroactiveFill(ctx, ledger.RetroRequest{PersonID: alice, Date: past, AddUnits: 2})
	assertKind(t, err, ledger.KindUnitsCapExceeded)

	assertAmount(t, "Pools.Main", tl.pools().Main, "300")
	if n := tl.logCount(alice, ledger.LogFine); n != 0 {
		t.Errorf("FINE log entries = %d, expected 0 after a rejected fill", n)
	}
}
