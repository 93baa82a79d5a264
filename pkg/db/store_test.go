package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
)

func openTestDB(t *testing.T) *Connection {
	t.Helper()

	conn, err := Open(filepath.Join(t.TempDir(), "club.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})
	return conn
}

func insertPerson(t *testing.T, store *Store, name string) int64 {
	t.Helper()
	var id int64
	err := store.Transaction(context.Background(), func(tx ledger.Tx) error {
		p, err := tx.InsertPerson(context.Background(), name, time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC))
		if err != nil {
			return err
		}
		id = p.ID
		_, err = tx.EnsurePersonalBalance(context.Background(), id)
		return err
	})
	if err != nil {
		t.Fatalf("Failed to insert person: %v", err)
	}
	return id
}

func TestSchemaSeedsPools(t *testing.T) {
	conn := openTestDB(t)

	// Re-running the schema must not duplicate the pool rows.
	if err := InitializeSchema(conn); err != nil {
		t.Fatalf("InitializeSchema failed: %v", err)
	}

	var count int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM group_pool`).Scan(&count); err != nil {
		t.Fatalf("Failed to count pools: %v", err)
	}
	if count != 2 {
		t.Errorf("group_pool rows = %d, expected 2", count)
	}

	err := NewStore(conn).Transaction(context.Background(), func(tx ledger.Tx) error {
		pools, err := tx.Pools(context.Background())
		if err != nil {
			return err
		}
		if !pools.Main.IsZero() || !pools.Validity.IsZero() {
			t.Errorf("pools = %+v, expected zero balances", pools)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}
}

func TestLockOrder(t *testing.T) {
	store := NewStore(openTestDB(t))
	id := insertPerson(t, store, "alice")
	ctx := context.Background()

	tests := []struct {
		name    string
		fn      func(tx ledger.Tx) error
		wantErr bool
	}{
		{
			name: "documented order",
			fn: func(tx ledger.Tx) error {
				if _, err := tx.LockPerson(ctx, id); err != nil {
					return err
				}
				if _, err := tx.LockPersonalBalance(ctx, id); err != nil {
					return err
				}
				if _, err := tx.LockPool(ctx, ledger.PoolMain); err != nil {
					return err
				}
				if _, err := tx.LockPool(ctx, ledger.PoolValidity); err != nil {
					return err
				}
				_, err := tx.LockDailySummary(ctx, id, "2025-01-01")
				return err
			},
		},
		{
			name: "pool before personal balance",
			fn: func(tx ledger.Tx) error {
				if _, err := tx.LockPool(ctx, ledger.PoolMain); err != nil {
					return err
				}
				_, err := tx.LockPersonalBalance(ctx, id)
				return err
			},
			wantErr: true,
		},
		{
			name: "daily summary before person",
			fn: func(tx ledger.Tx) error {
				if _, err := tx.LockDailySummary(ctx, id, "2025-01-01"); err != nil {
					return err
				}
				_, err := tx.LockPerson(ctx, id)
				return err
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := store.Transaction(ctx, tt.fn)
			if tt.wantErr {
				if !errors.Is(err, ErrLockOrder) {
					t.Errorf("expected ErrLockOrder, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestRecoverRollsBackOnlyInnerWrites(t *testing.T) {
	conn := openTestDB(t)
	store := NewStore(conn)
	id := insertPerson(t, store, "alice")
	ctx := context.Background()

	err := store.Transaction(ctx, func(tx ledger.Tx) error {
		bal, err := tx.LockPersonalBalance(ctx, id)
		if err != nil {
			return err
		}
		bal.MainSavings = decimal.NewFromInt(100)
		if err := tx.UpdatePersonalBalance(ctx, bal); err != nil {
			return err
		}

		failed := tx.Recover(ctx, "inner", func() error {
			bal.MainSavings = decimal.NewFromInt(999)
			if err := tx.UpdatePersonalBalance(ctx, bal); err != nil {
				return err
			}
			return errors.New("boom")
		})
		if failed == nil {
			t.Error("expected Recover to return the inner error")
		}

		// The transaction stays usable after a failed recovery point.
		return tx.Recover(ctx, "after", func() error {
			_, err := tx.DeleteMemberRows(ctx, "daily_summary", id)
			return err
		})
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	var main string
	if err := conn.QueryRow(`SELECT main_savings_balance FROM personal_balance WHERE person_id = ?`, id).Scan(&main); err != nil {
		t.Fatalf("Failed to read balance: %v", err)
	}
	if main != "100.00" {
		t.Errorf("main_savings_balance = %s, expected 100.00", main)
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	conn := openTestDB(t)
	store := NewStore(conn)
	ctx := context.Background()

	err := store.Transaction(ctx, func(tx ledger.Tx) error {
		gp, err := tx.LockPool(ctx, ledger.PoolMain)
		if err != nil {
			return err
		}
		gp.Balance = decimal.NewFromInt(500)
		if err := tx.UpdatePool(ctx, gp); err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil {
		t.Fatal("expected error from Transaction")
	}

	var balance string
	if err := conn.QueryRow(`SELECT balance FROM group_pool WHERE pool_type = 'MAIN'`).Scan(&balance); err != nil {
		t.Fatalf("Failed to read pool: %v", err)
	}
	if balance != "0.00" {
		t.Errorf("MAIN pool = %s, expected 0.00 after rollback", balance)
	}
}

func TestRejectsNegativeBalances(t *testing.T) {
	store := NewStore(openTestDB(t))
	id := insertPerson(t, store, "alice")
	ctx := context.Background()

	err := store.Transaction(ctx, func(tx ledger.Tx) error {
		bal, err := tx.LockPersonalBalance(ctx, id)
		if err != nil {
			return err
		}
		bal.MainSavings = decimal.NewFromInt(-1)
		return tx.UpdatePersonalBalance(ctx, bal)
	})
	if err == nil {
		t.Error("expected error for a negative personal balance")
	}
}

func TestBorrowingRoundTrip(t *testing.T) {
	store := NewStore(openTestDB(t))
	id := insertPerson(t, store, "alice")
	ctx := context.Background()
	due := time.Date(2025, 2, 1, 12, 30, 0, 123456789, time.UTC)

	var borrowingID int64
	err := store.Transaction(ctx, func(tx ledger.Tx) error {
		b := &ledger.Borrowing{
			PersonID:      id,
			Pool:          ledger.PoolMain,
			Principal:     decimal.RequireFromString("1000"),
			InitialProfit: decimal.RequireFromString("100"),
			Outstanding:   decimal.RequireFromString("1100"),
			Status:        ledger.StatusOpen,
			DueDate:       due,
			CreatedAt:     due.AddDate(0, 0, -30),
		}
		if err := tx.InsertBorrowing(ctx, b); err != nil {
			return err
		}
		borrowingID = b.ID
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to insert borrowing: %v", err)
	}

	err = store.Transaction(ctx, func(tx ledger.Tx) error {
		open, err := tx.FindOpenBorrowing(ctx, id, ledger.PoolMain)
		if err != nil {
			return err
		}
		if open == nil || open.ID != borrowingID {
			t.Errorf("FindOpenBorrowing = %+v, expected borrowing %d", open, borrowingID)
			return nil
		}
		if !open.DueDate.Equal(due) {
			t.Errorf("DueDate = %v, expected %v", open.DueDate, due)
		}
		if open.LastPaymentAt != nil || open.LastPenaltyAppliedAt != nil {
			t.Errorf("expected nil payment and penalty times, got %+v", open)
		}

		none, err := tx.FindOpenBorrowing(ctx, id, ledger.PoolValidity)
		if err != nil {
			return err
		}
		if none != nil {
			t.Errorf("FindOpenBorrowing(VALIDITY) = %+v, expected nil", none)
		}

		_, err = tx.GetBorrowing(ctx, 999)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("GetBorrowing(999) error = %v, expected ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}
}

func TestPoolDeltas(t *testing.T) {
	store := NewStore(openTestDB(t))
	alice := insertPerson(t, store, "alice")
	bob := insertPerson(t, store, "bob")
	ctx := context.Background()

	entries := []struct {
		person   *int64
		main     string
		validity string
	}{
		{person: &alice, main: "100", validity: "10"},
		{person: &bob, main: "200", validity: "0"},
		{person: &alice, main: "-50", validity: "0"},
		{person: nil, main: "5", validity: "5"},
	}

	err := store.Transaction(ctx, func(tx ledger.Tx) error {
		for _, e := range entries {
			err := tx.AppendLog(ctx, &ledger.LogEntry{
				PersonID:          e.person,
				Type:              ledger.LogSaving,
				Details:           []byte(`{}`),
				Amount:            decimal.Zero,
				MainPoolAfter:     decimal.Zero,
				ValidityPoolAfter: decimal.Zero,
				MainPoolDelta:     decimal.RequireFromString(e.main),
				ValidityPoolDelta: decimal.RequireFromString(e.validity),
				Reference:         "ref",
				CreatedAt:         time.Now(),
			})
			if err != nil {
				return err
			}
		}

		all, err := tx.PoolDeltas(ctx, nil)
		if err != nil {
			return err
		}
		if !all.Main.Equal(decimal.NewFromInt(255)) || !all.Validity.Equal(decimal.NewFromInt(15)) {
			t.Errorf("PoolDeltas(all) = %+v, expected main 255 validity 15", all)
		}

		mine, err := tx.PoolDeltas(ctx, &alice)
		if err != nil {
			return err
		}
		if !mine.Main.Equal(decimal.NewFromInt(50)) || !mine.Validity.Equal(decimal.NewFromInt(10)) {
			t.Errorf("PoolDeltas(alice) = %+v, expected main 50 validity 10", mine)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}
}

func TestDeleteMemberRowsRejectsUnknownTable(t *testing.T) {
	store := NewStore(openTestDB(t))
	ctx := context.Background()

	err := store.Transaction(ctx, func(tx ledger.Tx) error {
		if _, err := tx.DeleteMemberRows(ctx, "group_pool", 1); err == nil {
			t.Error("expected error for a non-member table")
		}
		if err := tx.ClearTable(ctx, "person"); err == nil {
			t.Error("expected error for a table that cannot be cleared")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}
}

func TestExportHistory(t *testing.T) {
	conn := openTestDB(t)
	h := NewExportHistory(conn)

	if err := h.RecordExport(ExportRecord{LogID: 7, EntryDate: "2025-01-02", Amount: decimal.NewFromInt(100), BeancountFile: "2025/01.beancount"}); err != nil {
		t.Fatalf("RecordExport failed: %v", err)
	}
	// Recording again updates instead of failing on the unique log id.
	if err := h.RecordExport(ExportRecord{LogID: 7, EntryDate: "2025-01-02", Amount: decimal.NewFromInt(120), BeancountFile: "2025/01.beancount"}); err != nil {
		t.Fatalf("RecordExport (update) failed: %v", err)
	}

	exported, err := h.IsExported(7)
	if err != nil || !exported {
		t.Errorf("IsExported(7) = %v, %v; expected true", exported, err)
	}
	exported, err = h.IsExported(8)
	if err != nil || exported {
		t.Errorf("IsExported(8) = %v, %v; expected false", exported, err)
	}

	ids, err := h.GetExportedIDs()
	if err != nil {
		t.Fatalf("GetExportedIDs failed: %v", err)
	}
	if len(ids) != 1 || !ids[7] {
		t.Errorf("GetExportedIDs = %v, expected {7}", ids)
	}

	stats, err := h.GetStats()
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.ExportedEntries != 1 || !stats.LastExport.Valid {
		t.Errorf("stats = %+v, expected one export with a timestamp", stats)
	}

	if err := h.SetMetadata("last_export_file", "2025/01.beancount"); err != nil {
		t.Fatalf("SetMetadata failed: %v", err)
	}
	v, err := h.GetMetadata("last_export_file")
	if err != nil || v != "2025/01.beancount" {
		t.Errorf("GetMetadata = %q, %v", v, err)
	}
	if v, _ := h.GetMetadata("missing"); v != "" {
		t.Errorf("GetMetadata(missing) = %q, expected empty", v)
	}
}
