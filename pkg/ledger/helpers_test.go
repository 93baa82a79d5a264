package ledger_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/savings-club/pkg/db"
	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

const adminSecret = ledger.Credential("let-me-in")

type staticAuth struct{ secret ledger.Credential }

func (a staticAuth) Authorize(c ledger.Credential) bool { return c != "" && c == a.secret }

type recordingNotifier struct {
	mu      sync.Mutex
	changes []ledger.Change
}

func (n *recordingNotifier) Notify(_ context.Context, c ledger.Change) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, c)
	return nil
}

type testLedger struct {
	t        *testing.T
	engine   *ledger.Engine
	conn     *db.Connection
	now      time.Time
	notifier *recordingNotifier
}

func newTestLedger(t *testing.T) *testLedger {
	t.Helper()

	conn, err := db.Open(filepath.Join(t.TempDir(), "club.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	tl := &testLedger{
		t:        t,
		conn:     conn,
		now:      time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		notifier: &recordingNotifier{},
	}
	engine, err := ledger.New(ledger.Config{
		Store:      db.NewStore(conn),
		Policy:     ledger.DefaultPolicy(),
		Authorizer: staticAuth{secret: adminSecret},
		Notifier:   tl.notifier,
		Clock:      func() time.Time { return tl.now },
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}
	tl.engine = engine
	return tl
}

func (tl *testLedger) advance(d time.Duration) {
	tl.now = tl.now.Add(d)
}

func (tl *testLedger) member(name string) int64 {
	tl.t.Helper()
	p, err := tl.engine.CreateMember(context.Background(), name, adminSecret)
	if err != nil {
		tl.t.Fatalf("CreateMember(%q) failed: %v", name, err)
	}
	return p.ID
}

// exec runs raw SQL to arrange state the operations cannot reach directly.
func (tl *testLedger) exec(query string, args ...interface{}) {
	tl.t.Helper()
	if _, err := tl.conn.Exec(query, args...); err != nil {
		tl.t.Fatalf("exec %q failed: %v", query, err)
	}
}

func (tl *testLedger) setPool(pool ledger.PoolType, amount string) {
	tl.t.Helper()
	tl.exec(`UPDATE group_pool SET balance = ? WHERE pool_type = ?`, amount, string(pool))
}

func (tl *testLedger) setBalance(personID int64, main, validity string) {
	tl.t.Helper()
	tl.exec(`UPDATE personal_balance SET main_savings_balance = ?, validity_savings_balance = ? WHERE person_id = ?`,
		main, validity, personID)
}

func (tl *testLedger) addUnitPayments(personID int64, n int) {
	tl.t.Helper()
	for i := 0; i < n; i++ {
		tl.exec(`INSERT INTO payment (person_id, type, amount, effective_date, created_at) VALUES (?, 'UNIT', '100.00', '2025-01-01', '2025-01-01 00:00:00.000000000')`, personID)
	}
}

// eligible creates a member who can borrow up to 1.3x mainBalance.
func (tl *testLedger) eligible(name, main, validity string) int64 {
	tl.t.Helper()
	id := tl.member(name)
	tl.setBalance(id, main, validity)
	tl.addUnitPayments(id, 3)
	return id
}

func (tl *testLedger) pools() ledger.Pools {
	tl.t.Helper()
	var p ledger.Pools
	err := tl.conn.QueryRow(`SELECT balance FROM group_pool WHERE pool_type = 'MAIN'`).Scan(&p.Main)
	if err == nil {
		err = tl.conn.QueryRow(`SELECT balance FROM group_pool WHERE pool_type = 'VALIDITY'`).Scan(&p.Validity)
	}
	if err != nil {
		tl.t.Fatalf("Failed to read pools: %v", err)
	}
	return p
}

func (tl *testLedger) balance(personID int64) ledger.PersonalBalance {
	tl.t.Helper()
	b := ledger.PersonalBalance{PersonID: personID}
	err := tl.conn.QueryRow(`SELECT main_savings_balance, validity_savings_balance FROM personal_balance WHERE person_id = ?`,
		personID).Scan(&b.MainSavings, &b.ValiditySavings)
	if err != nil {
		tl.t.Fatalf("Failed to read balance: %v", err)
	}
	return b
}

func (tl *testLedger) count(query string, args ...interface{}) int {
	tl.t.Helper()
	var n int
	if err := tl.conn.QueryRow(query, args...).Scan(&n); err != nil {
		tl.t.Fatalf("count %q failed: %v", query, err)
	}
	return n
}

func (tl *testLedger) logCount(personID int64, lt ledger.LogType) int {
	tl.t.Helper()
	return tl.count(`SELECT COUNT(*) FROM transaction_log WHERE person_id = ? AND transaction_type = ?`, personID, string(lt))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s = %s, expected %s", name, got.StringFixed(2), want)
	}
}

func assertKind(t *testing.T, err error, want ledger.Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := ledger.KindOf(err); got != want {
		t.Fatalf("expected %s error, got %s (%v)", want, got, err)
	}
}
