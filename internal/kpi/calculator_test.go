package kpi

import (
	"math"
	"testing"
	"time"

	"github.com/carteraops/cartera/internal/balance"
	ledgerdomain "github.com/carteraops/cartera/internal/ledger/domain"
	"go.uber.org/zap"
)

var today = time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)

func date(s string) *time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &d
}

func chargeOn(id int64, client string, amount float64, issue string) ledgerdomain.Transaction {
	return ledgerdomain.Transaction{
		ID: id, Kind: ledgerdomain.KindCharge, Client: client,
		Amount: amount, IssueDate: date(issue),
	}
}

func paymentOn(id, ref int64, client string, amount float64, issue string) ledgerdomain.Transaction {
	return ledgerdomain.Transaction{
		ID: id, RefID: &ref, Kind: ledgerdomain.KindPayment, Client: client,
		Amount: amount, IssueDate: date(issue),
	}
}

func findKPI(t *testing.T, records []Record, name string) Record {
	t.Helper()
	for _, r := range records {
		if r.KPI == name {
			return r
		}
	}
	t.Fatalf("kpi %q not found", name)
	return Record{}
}

func TestSummaryDSO(t *testing.T) {
	c := NewCalculator(90, zap.NewNop())
	// One unpaid in-window charge: outstanding equals billing, so the
	// full window elapses before collection.
	txns := []ledgerdomain.Transaction{chargeOn(1, "Norte", 1000, "2026-08-01")}
	set := balance.Set{Invoices: []balance.InvoiceBalance{
		{ChargeID: 1, Client: "Norte", Balance: 1000, IssueDate: date("2026-08-01")},
	}}

	records := c.Summary(txns, set, today)
	dso := findKPI(t, records, "DSO (Days Sales Outstanding)")
	if dso.Value != 90 {
		t.Fatalf("DSO = %v, want 90", dso.Value)
	}
	if dso.Unit != "dias" {
		t.Fatalf("DSO unit = %q", dso.Unit)
	}
}

func TestSummaryZeroDenominators(t *testing.T) {
	c := NewCalculator(90, zap.NewNop())

	records := c.Summary(nil, balance.Set{}, today)
	dso := findKPI(t, records, "DSO (Days Sales Outstanding)")
	if dso.Value != 0 || math.IsNaN(dso.Value) {
		t.Fatalf("DSO with no billing = %v, want 0", dso.Value)
	}
	cei := findKPI(t, records, "CEI (Collection Effectiveness Index)")
	if cei.Value != 100 {
		t.Fatalf("CEI with nothing collectible = %v, want 100", cei.Value)
	}
	mora := findKPI(t, records, "Indice de Morosidad")
	if mora.Value != 0 {
		t.Fatalf("delinquency with empty portfolio = %v, want 0", mora.Value)
	}
}

func TestSummaryCEI(t *testing.T) {
	c := NewCalculator(90, zap.NewNop())
	// Opening balance zero; 1000 charged and 400 collected in window.
	txns := []ledgerdomain.Transaction{
		chargeOn(1, "Norte", 1000, "2026-08-01"),
		paymentOn(2, 1, "Norte", 400, "2026-08-10"),
	}
	set := balance.Set{Invoices: []balance.InvoiceBalance{
		{ChargeID: 1, Client: "Norte", Balance: 600},
	}}

	cei := findKPI(t, c.Summary(txns, set, today), "CEI (Collection Effectiveness Index)")
	if cei.Value != 40 {
		t.Fatalf("CEI = %v, want 40", cei.Value)
	}
}

func TestSummaryDelinquency(t *testing.T) {
	c := NewCalculator(90, zap.NewNop())
	set := balance.Set{Invoices: []balance.InvoiceBalance{
		{ChargeID: 1, Client: "Norte", Balance: 300, DueDate: date("2026-07-01")},
		{ChargeID: 2, Client: "Norte", Balance: 700, DueDate: date("2026-09-30")},
	}}

	mora := findKPI(t, c.Summary(nil, set, today), "Indice de Morosidad")
	if mora.Value != 30 {
		t.Fatalf("delinquency = %v, want 30", mora.Value)
	}
}

func TestConcentrationABC(t *testing.T) {
	c := NewCalculator(90, zap.NewNop())
	set := balance.Set{Invoices: []balance.InvoiceBalance{
		{ChargeID: 1, Client: "Grande", Balance: 800},
		{ChargeID: 2, Client: "Mediano", Balance: 150},
		{ChargeID: 3, Client: "Chico", Balance: 50},
	}}

	rows := c.Concentration(set)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Client != "Grande" || rows[0].Class != "A" {
		t.Fatalf("row 0 = %+v", rows[0])
	}
	if rows[1].Client != "Mediano" || rows[1].Class != "B" {
		t.Fatalf("row 1 = %+v", rows[1])
	}
	if rows[2].Client != "Chico" || rows[2].Class != "C" {
		t.Fatalf("row 2 = %+v", rows[2])
	}

	var prev float64
	for _, row := range rows {
		if row.PctCumulative < prev {
			t.Fatalf("cumulative share must be monotone: %+v", rows)
		}
		prev = row.PctCumulative
	}
	last := rows[len(rows)-1].PctCumulative
	if last < 99.9 || last > 100.1 {
		t.Fatalf("cumulative share ends at %v, want ~100", last)
	}
}

func TestConcentrationEmptyPortfolio(t *testing.T) {
	c := NewCalculator(90, zap.NewNop())
	if rows := c.Concentration(balance.Set{}); rows != nil {
		t.Fatalf("empty portfolio must yield no concentration rows")
	}
}

func TestCreditUtilizationAlerts(t *testing.T) {
	c := NewCalculator(90, zap.NewNop())
	txns := []ledgerdomain.Transaction{
		{ID: 1, Kind: ledgerdomain.KindCharge, Client: "Critico", CreditLimit: 100},
		{ID: 2, Kind: ledgerdomain.KindCharge, Client: "Alto", CreditLimit: 100},
		{ID: 3, Kind: ledgerdomain.KindCharge, Client: "Excedido", CreditLimit: 100},
		{ID: 4, Kind: ledgerdomain.KindCharge, Client: "Normal", CreditLimit: 100},
		{ID: 5, Kind: ledgerdomain.KindCharge, Client: "SinLimite", CreditLimit: 0},
	}
	set := balance.Set{Invoices: []balance.InvoiceBalance{
		{ChargeID: 1, Client: "Critico", Balance: 95},
		{ChargeID: 2, Client: "Alto", Balance: 75},
		{ChargeID: 3, Client: "Excedido", Balance: 150},
		{ChargeID: 4, Client: "Normal", Balance: 20},
		{ChargeID: 5, Client: "SinLimite", Balance: 10},
	}}

	rows := c.CreditUtilizationByClient(txns, set, true)
	byClient := make(map[string]CreditUtilization)
	for _, row := range rows {
		byClient[row.Client] = row
	}

	cases := map[string]string{
		"Critico":   AlertCritical,
		"Alto":      AlertHigh,
		"Excedido":  AlertOverLimit,
		"Normal":    AlertNormal,
		"SinLimite": AlertNoLimit,
	}
	for client, want := range cases {
		if got := byClient[client].Alert; got != want {
			t.Fatalf("%s alert = %q, want %q", client, got, want)
		}
	}
	if byClient["SinLimite"].UtilizationPct != nil {
		t.Fatalf("no limit means no utilization percentage")
	}
	if pct := byClient["Excedido"].UtilizationPct; pct == nil || *pct != 150 {
		t.Fatalf("over-limit pct = %v, want 150", pct)
	}
}

func TestCreditUtilizationOmittedWithoutColumn(t *testing.T) {
	c := NewCalculator(90, zap.NewNop())
	set := balance.Set{Invoices: []balance.InvoiceBalance{{ChargeID: 1, Client: "X", Balance: 10}}}
	if rows := c.CreditUtilizationByClient(nil, set, false); rows != nil {
		t.Fatalf("missing limit column must omit the whole table")
	}
}

func TestDelinquencyByClient(t *testing.T) {
	c := NewCalculator(90, zap.NewNop())
	set := balance.Set{Invoices: []balance.InvoiceBalance{
		{ChargeID: 1, Client: "Norte", Balance: 300, DueDate: date("2026-07-28")},
		{ChargeID: 2, Client: "Norte", Balance: 700, DueDate: date("2026-09-30")},
		{ChargeID: 3, Client: "Sur", Balance: 100, DueDate: date("2026-09-01")},
	}}

	rows := c.DelinquencyByClient(set, today)
	if len(rows) != 2 {
		t.Fatalf("expected 2 clients, got %d", len(rows))
	}
	// Norte has overdue balance, so it sorts first.
	norte := rows[0]
	if norte.Client != "Norte" {
		t.Fatalf("expected Norte first, got %q", norte.Client)
	}
	if norte.OverdueAmount != 300 || norte.CurrentAmount != 700 {
		t.Fatalf("norte split = %+v", norte)
	}
	if norte.OverduePct != 30 {
		t.Fatalf("norte overdue pct = %v, want 30", norte.OverduePct)
	}
	if norte.NumInvoices != 2 || norte.NumOverdue != 1 {
		t.Fatalf("norte counts = %+v", norte)
	}
	if norte.MaxDaysLate != 30 {
		t.Fatalf("norte max days late = %d, want 30", norte.MaxDaysLate)
	}
}
