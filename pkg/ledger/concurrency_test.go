package ledger_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

// outcomes tallies concurrent results by error kind; "" counts successes.
type outcomes struct {
	mu    sync.Mutex
	kinds map[ledger.Kind]int
}

func (o *outcomes) record(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.kinds == nil {
		o.kinds = make(map[ledger.Kind]int)
	}
	if err == nil {
		o.kinds[""]++
		return
	}
	o.kinds[ledger.KindOf(err)]++
}

func TestConcurrentSavesRespectDailyCap(t *testing.T) {
	tl := newTestLedger(t)
	alice := tl.member("alice")

	const workers = 16
	var (
		wg  sync.WaitGroup
		got outcomes
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tl.engine.Save(context.Background(), ledger.SaveRequest{PersonID: alice, Units: 1, PayValidity: true})
			got.record(err)
		}()
	}
	wg.Wait()

	if got.kinds[""] != 4 || got.kinds[ledger.KindDailyCapExceeded] != workers-4 || len(got.kinds) != 2 {
		t.Errorf("outcomes = %v, expected 4 successes and %d DAILY_CAP_EXCEEDED", got.kinds, workers-4)
	}

	pools := tl.pools()
	assertAmount(t, "Pools.Main", pools.Main, "400")
	assertAmount(t, "Pools.Validity", pools.Validity, "10")

	bal := tl.balance(alice)
	assertAmount(t, "MainSavings", bal.MainSavings, "400")
	assertAmount(t, "ValiditySavings", bal.ValiditySavings, "10")

	if n := tl.count(`SELECT COUNT(*) FROM payment WHERE person_id = ? AND type = 'UNIT'`, alice); n != 4 {
		t.Errorf("unit payments = %d, expected 4", n)
	}
	if n := tl.logCount(alice, ledger.LogSaving); n != 4 {
		t.Errorf("saving log entries = %d, expected 4", n)
	}
}

func TestConcurrentBorrowsShareGroupFunds(t *testing.T) {
	tl := newTestLedger(t)

	const workers = 8
	ids := make([]int64, workers)
	for i := range ids {
		ids[i] = tl.eligible(fmt.Sprintf("member-%d", i), "1000", "0")
	}
	tl.setPool(ledger.PoolMain, "1000.00")

	var (
		wg  sync.WaitGroup
		got outcomes
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_, err := tl.engine.Borrow(context.Background(), ledger.BorrowRequest{
				PersonID: id,
				Pool:     ledger.PoolMain,
				Amount:   dec("800"),
			})
			got.record(err)
		}(id)
	}
	wg.Wait()

	if got.kinds[""] != 1 || got.kinds[ledger.KindInsufficientGroupFunds] != workers-1 || len(got.kinds) != 2 {
		t.Errorf("outcomes = %v, expected 1 success and %d INSUFFICIENT_GROUP_FUNDS", got.kinds, workers-1)
	}
	assertAmount(t, "Pools.Main", tl.pools().Main, "200")
	if n := tl.count(`SELECT COUNT(*) FROM borrowing`); n != 1 {
		t.Errorf("borrowings = %d, expected 1", n)
	}
	if n := tl.count(`SELECT COUNT(*) FROM transaction_log WHERE transaction_type = 'BORROW'`); n != 1 {
		t.Errorf("borrow log entries = %d, expected 1", n)
	}
}

func TestConcurrentRepaymentsNeverOverdraw(t *testing.T) {
	tl, alice, id := borrowed(t)

	const workers = 10
	var (
		wg  sync.WaitGroup
		got outcomes
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := tl.engine.Repay(context.Background(), ledger.RepayRequest{PersonID: alice, BorrowingID: id, Amount: dec("200")})
			got.record(err)
		}()
	}
	wg.Wait()

	// 1100 outstanding covers five payments of 200; the sixth would overpay.
	if got.kinds[""] != 5 || len(got.kinds) != 2 {
		t.Errorf("outcomes = %v, expected 5 successes", got.kinds)
	}
	if got.kinds[ledger.KindOverpayment] != workers-5 {
		t.Errorf("OVERPAYMENT = %d, expected %d", got.kinds[ledger.KindOverpayment], workers-5)
	}
	assertAmount(t, "Pools.Main", tl.pools().Main, "5000")
	if n := tl.logCount(alice, ledger.LogRepayment); n != 5 {
		t.Errorf("repayment log entries = %d, expected 5", n)
	}
}
