package audit

import (
	"testing"
	"time"

	"github.com/carteraops/cartera/internal/aging"
	"github.com/carteraops/cartera/internal/balance"
	ledgerdomain "github.com/carteraops/cartera/internal/ledger/domain"
	"github.com/carteraops/cartera/internal/normalizer"
	"go.uber.org/zap"
)

var now = time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

// allCols marks every optional column present, the common case.
var allCols = normalizer.ColumnSet{
	HasRefID:       true,
	HasDueDate:     true,
	HasCancelled:   true,
	HasClientType:  true,
	HasSalesperson: true,
	HasCreditLimit: true,
}

func date(s string) *time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &d
}

func TestAtypicalAmounts(t *testing.T) {
	a := NewAuditor(2.0, zap.NewNop())
	txns := []ledgerdomain.Transaction{
		{ID: 1, Kind: ledgerdomain.KindCharge, Client: "A", Amount: 100},
		{ID: 2, Kind: ledgerdomain.KindCharge, Client: "B", Amount: 100},
		{ID: 3, Kind: ledgerdomain.KindCharge, Client: "C", Amount: 100},
		{ID: 4, Kind: ledgerdomain.KindCharge, Client: "D", Amount: 100},
		{ID: 5, Kind: ledgerdomain.KindCharge, Client: "E", Amount: 100},
		{ID: 6, Kind: ledgerdomain.KindCharge, Client: "F", Amount: 100000},
		// Payments never enter the amount distribution.
		{ID: 7, Kind: ledgerdomain.KindPayment, Client: "G", Amount: 100000},
	}

	res := a.Run(normalizer.Table{}, txns, nil, balance.Set{}, allCols, now)
	if len(res.AtypicalAmounts) != 1 {
		t.Fatalf("expected 1 atypical amount, got %d", len(res.AtypicalAmounts))
	}
	f := res.AtypicalAmounts[0]
	if f.TxID != 6 || f.Amount != 100000 {
		t.Fatalf("finding = %+v", f)
	}
	if f.Reason != ReasonAtypicalAmount {
		t.Fatalf("reason = %q", f.Reason)
	}
}

func TestAtypicalDeltasUseSeparateSeries(t *testing.T) {
	a := NewAuditor(2.0, zap.NewNop())
	days := func(n int) *int { return &n }

	cycles := []aging.ChargeCycle{
		{ChargeID: 1, Client: "A", State: aging.StateOpen, DaysOverdue: days(10)},
		{ChargeID: 2, Client: "B", State: aging.StateOpen, DaysOverdue: days(10)},
		{ChargeID: 3, Client: "C", State: aging.StateOpen, DaysOverdue: days(10)},
		{ChargeID: 4, Client: "D", State: aging.StateOpen, DaysOverdue: days(10)},
		{ChargeID: 5, Client: "E", State: aging.StateOpen, DaysOverdue: days(2000)},
		{ChargeID: 6, Client: "F", State: aging.StateClosed, DaysToCollect: days(5)},
		{ChargeID: 7, Client: "G", State: aging.StateClosed, DaysToCollect: days(5)},
	}

	res := a.Run(normalizer.Table{}, nil, cycles, balance.Set{}, allCols, now)
	if len(res.AtypicalOverdue) != 1 || res.AtypicalOverdue[0].ChargeID != 5 {
		t.Fatalf("overdue findings = %+v", res.AtypicalOverdue)
	}
	// Two collection samples: below the minimum, so no findings.
	if len(res.AtypicalCollection) != 0 {
		t.Fatalf("collection findings = %+v", res.AtypicalCollection)
	}
}

func TestMissingReferenceChecks(t *testing.T) {
	a := NewAuditor(0, zap.NewNop())
	txns := []ledgerdomain.Transaction{
		{ID: 1, Kind: ledgerdomain.KindCharge, Client: "A", ClientType: "MAYOREO", Salesperson: "Ana"},
		{ID: 2, Kind: ledgerdomain.KindCharge, Client: "B"},
		// Payments without a salesperson are expected.
		{ID: 3, Kind: ledgerdomain.KindPayment, Client: "C", ClientType: "MENUDEO"},
	}

	res := a.Run(normalizer.Table{}, txns, nil, balance.Set{}, allCols, now)
	if len(res.MissingClientType) != 1 || res.MissingClientType[0].TxID != 2 {
		t.Fatalf("missing client type = %+v", res.MissingClientType)
	}
	if len(res.MissingSalesperson) != 1 || res.MissingSalesperson[0].TxID != 2 {
		t.Fatalf("missing salesperson = %+v", res.MissingSalesperson)
	}
}

func TestAbsentReferenceColumnsYieldNoFindings(t *testing.T) {
	a := NewAuditor(0, zap.NewNop())
	// Ordinary charges from a source that simply does not carry the
	// client-type or salesperson column.
	txns := []ledgerdomain.Transaction{
		{ID: 1, Kind: ledgerdomain.KindCharge, Client: "A", Amount: 100},
		{ID: 2, Kind: ledgerdomain.KindCharge, Client: "B", Amount: 200},
	}
	cols := allCols
	cols.HasClientType = false
	cols.HasSalesperson = false

	res := a.Run(normalizer.Table{}, txns, nil, balance.Set{}, cols, now)
	if len(res.MissingClientType) != 0 {
		t.Fatalf("absent column must narrow the check, got %+v", res.MissingClientType)
	}
	if len(res.MissingSalesperson) != 0 {
		t.Fatalf("absent column must narrow the check, got %+v", res.MissingSalesperson)
	}
	if res.Summary.TotalFindings != 0 {
		t.Fatalf("total findings = %d, want 0", res.Summary.TotalFindings)
	}
}

func TestCancelledFindings(t *testing.T) {
	a := NewAuditor(0, zap.NewNop())
	txns := []ledgerdomain.Transaction{
		{
			ID: 1, Kind: ledgerdomain.KindCharge, Client: "A", Cancelled: true,
			CreatedAt: date("2026-06-01"), CancelledAt: date("2026-06-08"),
		},
		// Cancelled without timestamps: finding stays, delta is nil.
		{ID: 2, Kind: ledgerdomain.KindCharge, Client: "B", Cancelled: true},
		{ID: 3, Kind: ledgerdomain.KindCharge, Client: "C"},
	}

	res := a.Run(normalizer.Table{}, txns, nil, balance.Set{}, allCols, now)
	if len(res.Cancelled) != 2 {
		t.Fatalf("expected 2 cancelled findings, got %d", len(res.Cancelled))
	}
	first := res.Cancelled[0]
	if first.DaysToCancellation == nil || *first.DaysToCancellation != 7 {
		t.Fatalf("days to cancellation = %v, want 7", first.DaysToCancellation)
	}
	if res.Cancelled[1].DaysToCancellation != nil {
		t.Fatalf("missing timestamps must leave the delta nil")
	}
}

func TestDataQualityReport(t *testing.T) {
	a := NewAuditor(0, zap.NewNop())
	raw := normalizer.Table{
		Columns: []string{"NOMBRE_CLIENTE", "VENDEDOR"},
		Rows: []map[string]any{
			{"NOMBRE_CLIENTE": "A", "VENDEDOR": "Ana"},
			{"NOMBRE_CLIENTE": "B", "VENDEDOR": ""},
			{"NOMBRE_CLIENTE": "A", "VENDEDOR": nil},
			{"NOMBRE_CLIENTE": "C", "VENDEDOR": "Ana"},
		},
	}

	res := a.Run(raw, nil, nil, balance.Set{}, allCols, now)
	if len(res.DataQuality) != 2 {
		t.Fatalf("expected one row per column, got %d", len(res.DataQuality))
	}

	clients := res.DataQuality[0]
	if clients.Column != "NOMBRE_CLIENTE" || clients.Missing != 0 || clients.Distinct != 3 {
		t.Fatalf("client column quality = %+v", clients)
	}
	sellers := res.DataQuality[1]
	if sellers.Missing != 2 || sellers.PctMissing != 50 || sellers.Distinct != 1 {
		t.Fatalf("salesperson column quality = %+v", sellers)
	}
}

func TestSummaryCountsAreNotDeduplicated(t *testing.T) {
	a := NewAuditor(0, zap.NewNop())
	// One row triggers two flags at once.
	txns := []ledgerdomain.Transaction{
		{ID: 1, Kind: ledgerdomain.KindCharge, Client: "A"},
	}

	res := a.Run(normalizer.Table{}, txns, nil, balance.Set{Degraded: true}, allCols, now)
	if res.Summary.MissingClientType != 1 || res.Summary.MissingSalesperson != 1 {
		t.Fatalf("summary = %+v", res.Summary)
	}
	if res.Summary.TotalFindings != 2 {
		t.Fatalf("total findings = %d, want 2 (one per flag, not per row)", res.Summary.TotalFindings)
	}
	if !res.Summary.DegradedLinkage {
		t.Fatalf("degraded linkage flag must surface in the summary")
	}
	if !res.Summary.GeneratedAt.Equal(now) {
		t.Fatalf("generated at = %v", res.Summary.GeneratedAt)
	}
}
