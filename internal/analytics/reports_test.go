package analytics

import (
	"testing"
	"time"

	"github.com/carteraops/cartera/internal/aging"
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

func days(n int) *int { return &n }

func TestAgingDistributionGroupsByCurrency(t *testing.T) {
	r := NewReporter(zap.NewNop())
	cycles := []aging.ChargeCycle{
		{ChargeID: 1, Currency: "MXN", State: aging.StateOpen, Balance: 750, DaysOverdue: days(10), OverdueCategory: "Mora temprana (1-30)"},
		{ChargeID: 2, Currency: "MXN", State: aging.StateOpen, Balance: 250, DaysOverdue: days(45), OverdueCategory: "Mora media (31-60)"},
		{ChargeID: 3, Currency: "USD", State: aging.StateOpen, Balance: 100, DaysOverdue: days(10), OverdueCategory: "Mora temprana (1-30)"},
		// Closed charges never enter the distribution.
		{ChargeID: 4, Currency: "MXN", State: aging.StateClosed, Balance: 0},
	}

	rows := r.AgingDistribution(cycles)
	if len(rows) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(rows))
	}

	// Percentages are per currency, never pooled.
	for _, row := range rows {
		switch {
		case row.Currency == "MXN" && row.RangeLabel == "Mora temprana (1-30)":
			if row.PctOfTotal != 75 {
				t.Fatalf("MXN early bucket pct = %v, want 75", row.PctOfTotal)
			}
		case row.Currency == "USD":
			if row.PctOfTotal != 100 {
				t.Fatalf("USD bucket pct = %v, want 100", row.PctOfTotal)
			}
		}
	}
}

func TestClientAgingPivot(t *testing.T) {
	r := NewReporter(zap.NewNop())
	ranges := aging.DefaultOverdueRanges()

	txns := []ledgerdomain.Transaction{
		{ID: 1, Kind: ledgerdomain.KindCharge, Client: "Norte", ClientStatus: "ACTIVO", Currency: "MXN", Amount: 1000},
		{ID: 2, Kind: ledgerdomain.KindCharge, Client: "Norte", ClientStatus: "ACTIVO", Currency: "MXN", Amount: 500},
		{ID: 3, RefID: ptrID(1), Kind: ledgerdomain.KindPayment, Client: "Norte", ClientStatus: "ACTIVO", Currency: "MXN", Amount: 1000},
	}
	set := balance.Set{Invoices: []balance.InvoiceBalance{
		{ChargeID: 1, Client: "Norte", ClientStatus: "ACTIVO", Currency: "MXN", Balance: 0},
		{ChargeID: 2, Client: "Norte", ClientStatus: "ACTIVO", Currency: "MXN", Balance: 500},
	}}
	cycles := []aging.ChargeCycle{
		{ChargeID: 1, Client: "Norte", Currency: "MXN", State: aging.StateClosed, Balance: 0},
		{ChargeID: 2, Client: "Norte", Currency: "MXN", State: aging.StateOpen, Balance: 500, DaysOverdue: days(45), OverdueCategory: "Mora media (31-60)"},
	}

	rows := r.ClientAgingPivot(txns, set, cycles, ranges)
	if len(rows) != 1 {
		t.Fatalf("expected 1 pivot row, got %d", len(rows))
	}
	row := rows[0]
	if row.PaidInvoices != 1 {
		t.Fatalf("paid invoices = %d, want 1", row.PaidInvoices)
	}
	if got := row.OverdueByRange["FACTURAS_VENCIDAS (31-60)"]; got != 1 {
		t.Fatalf("31-60 bucket = %d, want 1", got)
	}
	if row.TotalCharges != 1500 || row.TotalPayments != 1000 {
		t.Fatalf("totals = %+v", row)
	}
	if row.Outstanding != 500 {
		t.Fatalf("outstanding = %v, want 500", row.Outstanding)
	}
}

func ptrID(v int64) *int64 { return &v }

func TestCurrentVsOverdueSplit(t *testing.T) {
	r := NewReporter(zap.NewNop())
	set := balance.Set{Invoices: []balance.InvoiceBalance{
		{ChargeID: 1, Currency: "MXN", Balance: 300, DueDate: date("2026-07-01")},
		{ChargeID: 2, Currency: "MXN", Balance: 700, DueDate: date("2026-09-30")},
		// Closed invoices never enter the split.
		{ChargeID: 3, Currency: "MXN", Balance: 0, DueDate: date("2026-07-01")},
	}}

	rows := r.CurrentVsOverdueSplit(set, today)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if row.OverdueCount != 1 || row.OverdueAmount != 300 {
		t.Fatalf("overdue side = %+v", row)
	}
	if row.CurrentCount != 1 || row.CurrentAmount != 700 {
		t.Fatalf("current side = %+v", row)
	}
	if row.OverduePct != 30 {
		t.Fatalf("overdue pct = %v, want 30", row.OverduePct)
	}
}

func TestGroupSummariesUseFallbackLabels(t *testing.T) {
	r := NewReporter(zap.NewNop())
	txns := []ledgerdomain.Transaction{
		{ID: 1, Kind: ledgerdomain.KindCharge, Client: "A", Currency: "MXN", Amount: 100, Salesperson: "Ana", Concept: "Venta"},
		{ID: 2, Kind: ledgerdomain.KindCharge, Client: "B", Currency: "MXN", Amount: 200},
	}
	set := balance.Set{Invoices: []balance.InvoiceBalance{
		{ChargeID: 1, Client: "A", Currency: "MXN", Balance: 100},
		{ChargeID: 2, Client: "B", Currency: "MXN", Balance: 200},
	}}

	bySeller := r.BySalesperson(txns, set, today)
	foundFallback := false
	for _, row := range bySeller {
		if row.Group == NoSalesperson {
			foundFallback = true
			if row.TotalBilled != 200 {
				t.Fatalf("fallback group billed = %v, want 200", row.TotalBilled)
			}
		}
	}
	if !foundFallback {
		t.Fatalf("charges without salesperson must group under %q", NoSalesperson)
	}

	byConcept := r.ByConcept(txns, set, today)
	foundFallback = false
	for _, row := range byConcept {
		if row.Group == NoConcept {
			foundFallback = true
		}
	}
	if !foundFallback {
		t.Fatalf("charges without concept must group under %q", NoConcept)
	}
}

func TestSpecialDocuments(t *testing.T) {
	r := NewReporter(zap.NewNop())
	txns := []ledgerdomain.Transaction{
		{ID: 1, Kind: ledgerdomain.KindUnappliedAdvance, Client: "A", Currency: "MXN", Concept: "Anticipo", Amount: 2000},
		{ID: 2, Kind: ledgerdomain.KindCharge, Client: "B", Currency: "MXN", Concept: "Venta", Amount: 5000, Tax: 800, Cancelled: true},
		{ID: 3, Kind: ledgerdomain.KindCharge, Client: "C", Currency: "MXN", Amount: 100},
	}

	rows := r.SpecialDocuments(txns)
	if len(rows) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(rows))
	}

	// Sorted by record type within currency: AJUSTE before CANCELADO.
	if rows[0].RecordType != RecordTypeAdvance || rows[0].TotalAmount != 2000 {
		t.Fatalf("advance group = %+v", rows[0])
	}
	cancelled := rows[1]
	if cancelled.RecordType != RecordTypeCancelled {
		t.Fatalf("cancelled group = %+v", cancelled)
	}
	if cancelled.GrandTotal != 5800 {
		t.Fatalf("cancelled grand total = %v, want 5800", cancelled.GrandTotal)
	}
}

func TestCollectionDistribution(t *testing.T) {
	r := NewReporter(zap.NewNop())
	cycles := []aging.ChargeCycle{
		{ChargeID: 1, Currency: "MXN", State: aging.StateClosed, CollectionCategory: "Pago puntual"},
		{ChargeID: 2, Currency: "MXN", State: aging.StateClosed, CollectionCategory: "Pago puntual"},
		{ChargeID: 3, Currency: "MXN", State: aging.StateClosed, CollectionCategory: "Retraso leve (1-15)"},
		{ChargeID: 4, Currency: "MXN", State: aging.StateOpen},
	}

	rows := r.CollectionDistribution(cycles)
	if len(rows) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(rows))
	}
	for _, row := range rows {
		if row.Category == "Pago puntual" && row.PctOfTotal != 66.67 {
			t.Fatalf("puntual pct = %v, want 66.67", row.PctOfTotal)
		}
	}
}
