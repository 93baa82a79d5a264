package converter_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shunichi-ikebuchi/savings-club/pkg/beancount"
	"github.com/shunichi-ikebuchi/savings-club/pkg/converter"
	"github.com/shunichi-ikebuchi/savings-club/pkg/db"
	"github.com/shunichi-ikebuchi/savings-club/pkg/ledger"
	"github.com/shunichi-ikebuchi/savings-club/pkg/pathutil"
)

type allowAll struct{}

func (allowAll) Authorize(c ledger.Credential) bool { return c != "" }

type exportFixture struct {
	engine   *ledger.Engine
	history  *db.ExportHistory
	repo     *beancount.FileSystemRepository
	resolver *pathutil.PathResolver
	exporter *converter.Exporter
}

func newExportFixture(t *testing.T) *exportFixture {
	t.Helper()

	root := t.TempDir()
	resolver := pathutil.New(pathutil.Config{Root: root})
	conn, err := db.Open(filepath.Join(root, "club.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	engine, err := ledger.New(ledger.Config{
		Store:      db.NewStore(conn),
		Policy:     ledger.DefaultPolicy(),
		Authorizer: allowAll{},
		Clock:      func() time.Time { return now },
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	f := &exportFixture{
		engine:   engine,
		history:  db.NewExportHistory(conn),
		repo:     beancount.NewFileSystemRepository(resolver),
		resolver: resolver,
	}
	conv := converter.NewConverter(converter.NewDefaultMapper(), "USD", time.UTC)
	f.exporter = converter.NewExporter(engine, f.history, f.repo, resolver, conv)
	return f
}

func (f *exportFixture) seed(t *testing.T) int64 {
	t.Helper()
	ctx := context.Background()

	alice, err := f.engine.CreateMember(ctx, "alice", "admin")
	if err != nil {
		t.Fatalf("CreateMember failed: %v", err)
	}
	if _, err := f.engine.Save(ctx, ledger.SaveRequest{PersonID: alice.ID, Units: 4, PayValidity: true}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := f.engine.Borrow(ctx, ledger.BorrowRequest{PersonID: alice.ID, Pool: ledger.PoolMain, Amount: decimal.NewFromInt(200)}); err != nil {
		t.Fatalf("Borrow failed: %v", err)
	}
	return alice.ID
}

func TestExport(t *testing.T) {
	f := newExportFixture(t)
	f.seed(t)
	ctx := context.Background()

	res, err := f.exporter.Export(ctx, converter.ExportOptions{Month: "2025-03"})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	// MEMBER_CREATED is skipped; SAVING and BORROW are exported.
	if res.Exported != 2 || res.Skipped != 1 || res.Failed != 0 {
		t.Errorf("result = %+v, expected 2 exported and 1 skipped", res)
	}
	if len(res.Files) != 1 {
		t.Fatalf("Files = %v, expected one month file", res.Files)
	}

	content, err := f.repo.ReadMonthFile("2025-03")
	if err != nil {
		t.Fatalf("ReadMonthFile failed: %v", err)
	}
	for _, want := range []string{
		`"alice" "Savings for 2025-03-10" #savings`,
		"Liabilities:Members:P1:Main",
		"#borrowing",
		"Income:Club:Interest",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("month file missing %q:\n%s", want, content)
		}
	}
	if strings.Index(content, "#savings") > strings.Index(content, "#borrowing") {
		t.Error("entries were not written in ledger order")
	}

	again, err := f.exporter.Export(ctx, converter.ExportOptions{})
	if err != nil {
		t.Fatalf("second Export failed: %v", err)
	}
	if again.Exported != 0 || again.AlreadyExported != 2 {
		t.Errorf("second export = %+v, expected nothing new", again)
	}
}

func TestExportOtherMonthIsEmpty(t *testing.T) {
	f := newExportFixture(t)
	f.seed(t)

	res, err := f.exporter.Export(context.Background(), converter.ExportOptions{Month: "2025-02"})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if res.Exported != 0 || f.repo.MonthFileExists("2025-02") {
		t.Errorf("result = %+v, expected nothing exported for February", res)
	}

	if _, err := f.exporter.Export(context.Background(), converter.ExportOptions{Month: "March"}); err == nil {
		t.Error("expected error for an invalid month")
	}
}

func TestExportDryRun(t *testing.T) {
	f := newExportFixture(t)
	f.seed(t)

	var out bytes.Buffer
	res, err := f.exporter.Export(context.Background(), converter.ExportOptions{DryRun: true, Out: &out})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if res.Exported != 2 {
		t.Errorf("Exported = %d, expected 2", res.Exported)
	}
	if !strings.Contains(out.String(), "Assets:Club:Loans:Main") {
		t.Errorf("dry run output missing the loan posting:\n%s", out.String())
	}
	if f.repo.MonthFileExists("2025-03") {
		t.Error("dry run must not write month files")
	}
	ids, err := f.history.GetExportedIDs()
	if err != nil || len(ids) != 0 {
		t.Errorf("GetExportedIDs() = %v, %v; dry run must not record exports", ids, err)
	}
}
