// Package pipeline orchestrates one end-to-end run: normalize the raw
// snapshot, compute balances, classify aging, derive KPIs, audit and
// aggregate the report tables.
package pipeline

import (
	"context"
	"time"

	"github.com/carteraops/cartera/internal/aging"
	"github.com/carteraops/cartera/internal/analytics"
	"github.com/carteraops/cartera/internal/audit"
	"github.com/carteraops/cartera/internal/balance"
	"github.com/carteraops/cartera/internal/clock"
	"github.com/carteraops/cartera/internal/kpi"
	ledgerdomain "github.com/carteraops/cartera/internal/ledger/domain"
	"github.com/carteraops/cartera/internal/normalizer"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Result carries every output of one run. The structural inputs
// (transactions, columns) travel with it so downstream consumers never
// re-derive them.
type Result struct {
	RunAt        time.Time
	Transactions []ledgerdomain.Transaction
	Columns      normalizer.ColumnSet

	Balances       balance.Set
	Ledger         []balance.LedgerLine
	Cycles         []aging.ChargeCycle
	KPIs           []kpi.Record
	Concentration  []kpi.Concentration
	Credit         []kpi.CreditUtilization
	Delinquency    []kpi.ClientDelinquency
	Audit          audit.Result
	AgingRanges    []aging.Range
	AgingBuckets   []analytics.AgingBucket
	ClientAging    []analytics.ClientAging
	CurrentOverdue []analytics.CurrentVsOverdue
	BySalesperson  []analytics.GroupSummary
	ByConcept      []analytics.GroupSummary
	Special        []analytics.SpecialSummary
	Collection     []analytics.CollectionBucket
}

// Runner wires the computation stages into one deterministic pass.
type Runner struct {
	normalizer *normalizer.Normalizer
	engine     *balance.Engine
	classifier *aging.Classifier
	calculator *kpi.Calculator
	auditor    *audit.Auditor
	reporter   *analytics.Reporter
	clock      clock.Clock
	log        *zap.Logger
}

type Params struct {
	fx.In

	Normalizer *normalizer.Normalizer
	Engine     *balance.Engine
	Classifier *aging.Classifier
	Calculator *kpi.Calculator
	Auditor    *audit.Auditor
	Reporter   *analytics.Reporter
	Clock      clock.Clock
	Log        *zap.Logger
}

func NewRunner(p Params) *Runner {
	return &Runner{
		normalizer: p.Normalizer,
		engine:     p.Engine,
		classifier: p.Classifier,
		calculator: p.Calculator,
		auditor:    p.Auditor,
		reporter:   p.Reporter,
		clock:      p.Clock,
		log:        p.Log.Named("pipeline.runner"),
	}
}

var tracer = otel.Tracer("cartera/pipeline")

// Run executes every stage over the raw table. Structural failures
// (non-tabular input, missing required columns) abort before any
// output is produced; content-level issues degrade into audit findings
// instead.
func (r *Runner) Run(ctx context.Context, raw normalizer.Table) (*Result, error) {
	ctx, span := tracer.Start(ctx, "pipeline.Run")
	defer span.End()
	span.SetAttributes(attribute.Int("rows", len(raw.Rows)))

	today := r.clock.Now().UTC().Truncate(24 * time.Hour)
	res := &Result{RunAt: r.clock.Now().UTC()}

	norm, err := r.stage1Normalize(ctx, raw)
	if err != nil {
		r.log.Error("normalization aborted the run", zap.Error(err))
		return nil, err
	}
	res.Transactions = norm.Transactions
	res.Columns = norm.Columns

	r.stage2Balances(ctx, res)
	r.stage3Aging(ctx, res, today)
	r.stage4KPIs(ctx, res, today)
	r.stage5Audit(ctx, res, raw)
	r.stage6Analytics(ctx, res, today)

	r.log.Info("pipeline run completed",
		zap.Int("transactions", len(res.Transactions)),
		zap.Int("open_charges", openCount(res.Cycles)),
		zap.Int("audit_findings", res.Audit.Summary.TotalFindings),
	)
	return res, nil
}

func (r *Runner) stage1Normalize(ctx context.Context, raw normalizer.Table) (normalizer.Result, error) {
	_, span := tracer.Start(ctx, "pipeline.normalize")
	defer span.End()
	return r.normalizer.Normalize(raw)
}

func (r *Runner) stage2Balances(ctx context.Context, res *Result) {
	_, span := tracer.Start(ctx, "pipeline.balances")
	defer span.End()
	res.Balances = r.engine.ComputeInvoiceBalances(res.Transactions, res.Columns.HasRefID)
	res.Ledger = r.engine.ComputeClientRunningBalance(res.Transactions)
	span.SetAttributes(attribute.Int("invoices", len(res.Balances.Invoices)))
}

func (r *Runner) stage3Aging(ctx context.Context, res *Result, today time.Time) {
	_, span := tracer.Start(ctx, "pipeline.aging")
	defer span.End()
	res.Cycles = r.classifier.ClassifyCharges(res.Balances, today)
}

func (r *Runner) stage4KPIs(ctx context.Context, res *Result, today time.Time) {
	_, span := tracer.Start(ctx, "pipeline.kpis")
	defer span.End()
	res.KPIs = r.calculator.Summary(res.Transactions, res.Balances, today)
	res.Concentration = r.calculator.Concentration(res.Balances)
	res.Credit = r.calculator.CreditUtilizationByClient(res.Transactions, res.Balances, res.Columns.HasCreditLimit)
	res.Delinquency = r.calculator.DelinquencyByClient(res.Balances, today)
}

func (r *Runner) stage5Audit(ctx context.Context, res *Result, raw normalizer.Table) {
	_, span := tracer.Start(ctx, "pipeline.audit")
	defer span.End()
	res.Audit = r.auditor.Run(raw, res.Transactions, res.Cycles, res.Balances, res.Columns, res.RunAt)
	span.SetAttributes(attribute.Int("findings", res.Audit.Summary.TotalFindings))
}

func (r *Runner) stage6Analytics(ctx context.Context, res *Result, today time.Time) {
	_, span := tracer.Start(ctx, "pipeline.analytics")
	defer span.End()
	res.AgingRanges = r.classifier.OverdueRanges()
	res.AgingBuckets = r.reporter.AgingDistribution(res.Cycles)
	res.ClientAging = r.reporter.ClientAgingPivot(res.Transactions, res.Balances, res.Cycles, r.classifier.OverdueRanges())
	res.CurrentOverdue = r.reporter.CurrentVsOverdueSplit(res.Balances, today)
	res.BySalesperson = r.reporter.BySalesperson(res.Transactions, res.Balances, today)
	res.ByConcept = r.reporter.ByConcept(res.Transactions, res.Balances, today)
	res.Special = r.reporter.SpecialDocuments(res.Transactions)
	res.Collection = r.reporter.CollectionDistribution(res.Cycles)
}

func openCount(cycles []aging.ChargeCycle) int {
	n := 0
	for _, cy := range cycles {
		if cy.State == aging.StateOpen {
			n++
		}
	}
	return n
}
