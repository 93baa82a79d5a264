package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

const day = 24 * time.Hour

func TestRunPenalties(t *testing.T) {
	tl, alice, id := borrowed(t)
	ctx := context.Background()

	// Due after 30 days; two full periods later the 1100 owed compounds twice.
	tl.advance(90 * day)

	res, err := tl.engine.RunPenalties(ctx)
	if err != nil {
		t.Fatalf("RunPenalties failed: %v", err)
	}
	if res.Checked != 1 || res.Penalized != 1 {
		t.Fatalf("result = %+v, expected 1 checked and 1 penalized", res)
	}
	applied := res.Applied[0]
	if applied.BorrowingID != id || applied.PersonID != alice || applied.Periods != 2 {
		t.Errorf("applied = %+v, expected borrowing %d, 2 periods", applied, id)
	}
	assertAmount(t, "Previous", applied.Previous, "1100")
	assertAmount(t, "NewOutstanding", applied.NewOutstanding, "1331")
	assertAmount(t, "Delta", applied.Delta, "231")

	// Penalties are a receivable and never move pool funds.
	assertAmount(t, "Pools.Main", tl.pools().Main, "4000")
	if n := tl.logCount(alice, ledger.LogPenalty); n != 1 {
		t.Errorf("PENALTY log entries = %d, expected 1", n)
	}

	res, err = tl.engine.RunPenalties(ctx)
	if err != nil {
		t.Fatalf("second RunPenalties failed: %v", err)
	}
	if res.Penalized != 0 {
		t.Errorf("second run penalized %d borrowings, expected 0", res.Penalized)
	}

	tl.advance(29 * day)
	if res, err = tl.engine.RunPenalties(ctx); err != nil {
		t.Fatalf("RunPenalties failed: %v", err)
	}
	if res.Penalized != 0 {
		t.Errorf("run inside the period penalized %d borrowings, expected 0", res.Penalized)
	}

	tl.advance(day)
	if res, err = tl.engine.RunPenalties(ctx); err != nil {
		t.Fatalf("RunPenalties failed: %v", err)
	}
	if res.Penalized != 1 {
		t.Fatalf("run after a full period penalized %d borrowings, expected 1", res.Penalized)
	}
	assertAmount(t, "NewOutstanding", res.Applied[0].NewOutstanding, "1464.10")
}

func TestRunPenaltiesSkipsCurrentAndPaid(t *testing.T) {
	tl, alice, _ := borrowed(t)
	ctx := context.Background()

	tl.advance(45 * day)
	res, err := tl.engine.RunPenalties(ctx)
	if err != nil {
		t.Fatalf("RunPenalties failed: %v", err)
	}
	if res.Penalized != 0 {
		t.Errorf("penalized %d borrowings less than a period overdue, expected 0", res.Penalized)
	}

	if _, err := tl.engine.PayFull(ctx, ledger.PayFullRequest{PersonID: alice, Pool: ledger.PoolMain}); err != nil {
		t.Fatalf("PayFull failed: %v", err)
	}
	tl.advance(365 * day)
	if res, err = tl.engine.RunPenalties(ctx); err != nil {
		t.Fatalf("RunPenalties failed: %v", err)
	}
	if res.Checked != 0 || res.Penalized != 0 {
		t.Errorf("result = %+v, expected no open borrowings", res)
	}
}

func TestRunPenaltiesValidityPeriod(t *testing.T) {
	tl := newTestLedger(t)
	ctx := context.Background()
	alice := tl.eligible("alice", "0", "100")
	tl.setPool(ledger.PoolValidity, "500.00")

	b, err := tl.engine.Borrow(ctx, ledger.BorrowRequest{PersonID: alice, Pool: ledger.PoolValidity, Amount: dec("100")})
	if err != nil {
		t.Fatalf("Borrow failed: %v", err)
	}
	if want := tl.now.AddDate(0, 0, 7); !b.DueDate.Equal(want) {
		t.Errorf("DueDate = %v, expected %v", b.DueDate, want)
	}

	tl.advance(21 * day)
	res, err := tl.engine.RunPenalties(ctx)
	if err != nil {
		t.Fatalf("RunPenalties failed: %v", err)
	}
	if res.Penalized != 1 || res.Applied[0].Periods != 2 {
		t.Fatalf("result = %+v, expected 2 periods applied", res)
	}
	assertAmount(t, "NewOutstanding", res.Applied[0].NewOutstanding, "133.10")
}

func TestRunPenaltyWorkerStops(t *testing.T) {
	tl := newTestLedger(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		tl.engine.RunPenaltyWorker(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("penalty worker did not stop after cancel")
	}
}
