// Package audit flags data-quality anomalies: atypical amounts and
// deltas, missing references, cancelled documents and per-column
// completeness.
package audit

import (
	"fmt"
	"math"
	"time"

	"github.com/carteraops/cartera/internal/aging"
	"github.com/carteraops/cartera/internal/balance"
	ledgerdomain "github.com/carteraops/cartera/internal/ledger/domain"
	"github.com/carteraops/cartera/internal/normalizer"
	"github.com/carteraops/cartera/internal/outlier"
	"go.uber.org/zap"
)

// Finding reasons, part of the fixed output vocabulary.
const (
	ReasonAtypicalAmount     = "Importe de venta atipico"
	ReasonAtypicalCollection = "Valor atipico en DELTA_RECAUDO"
	ReasonAtypicalOverdue    = "Valor atipico en DELTA_MORA"
	ReasonMissingClientType  = "Cliente sin tipo asignado en el sistema"
	ReasonMissingSalesperson = "Venta sin vendedor asignado"
	ReasonCancelled          = "Documento cancelado"
)

// AmountFinding is a charge whose amount sits beyond the z-score
// threshold.
type AmountFinding struct {
	TxID   int64   `json:"DOCTO_CC_ID"`
	Client string  `json:"NOMBRE_CLIENTE"`
	Amount float64 `json:"IMPORTE"`
	ZScore float64 `json:"ZSCORE_IMPORTE"`
	Reason string  `json:"MOTIVO"`
}

// DeltaFinding is a charge whose collection or aging delta is atypical.
type DeltaFinding struct {
	ChargeID int64   `json:"DOCTO_CC_ID"`
	Client   string  `json:"NOMBRE_CLIENTE"`
	Days     int     `json:"DIAS"`
	ZScore   float64 `json:"ZSCORE"`
	Reason   string  `json:"MOTIVO"`
}

// RowFinding is a transaction missing a required reference.
type RowFinding struct {
	TxID   int64  `json:"DOCTO_CC_ID"`
	Client string `json:"NOMBRE_CLIENTE"`
	Reason string `json:"MOTIVO"`
}

// CancelledFinding is a cancelled document; DaysToCancellation is set
// only when both audit timestamps exist.
type CancelledFinding struct {
	TxID               int64  `json:"DOCTO_CC_ID"`
	Client             string `json:"NOMBRE_CLIENTE"`
	DaysToCancellation *int   `json:"DIAS_HASTA_CANCELACION"`
	Reason             string `json:"MOTIVO"`
}

// ColumnQuality is one row of the per-column completeness report over
// the full unfiltered table.
type ColumnQuality struct {
	Column     string  `json:"COLUMNA"`
	TotalRows  int     `json:"TOTAL_REGISTROS"`
	Missing    int     `json:"NULOS"`
	PctMissing float64 `json:"PCT_NULOS"`
	Distinct   int     `json:"VALORES_UNICOS"`
}

// Summary aggregates the per-flag counts. TotalFindings sums the flag
// counts as-is: flags are not mutually exclusive, so the total can
// exceed the number of distinct rows, deliberately.
type Summary struct {
	GeneratedAt        time.Time `json:"FECHA_AUDITORIA"`
	TotalRows          int       `json:"TOTAL_REGISTROS"`
	AtypicalAmounts    int       `json:"IMPORTES_ATIPICOS"`
	AtypicalCollection int       `json:"RECAUDOS_ATIPICOS"`
	AtypicalOverdue    int       `json:"MORAS_ATIPICAS"`
	MissingClientType  int       `json:"SIN_TIPO_CLIENTE"`
	MissingSalesperson int       `json:"SIN_VENDEDOR"`
	Cancelled          int       `json:"CANCELADOS"`
	DegradedLinkage    bool      `json:"SALDOS_DEGRADADOS"`
	TotalFindings      int       `json:"TOTAL_HALLAZGOS"`
}

// Result carries every audit table plus the aggregated summary.
type Result struct {
	AtypicalAmounts    []AmountFinding
	AtypicalCollection []DeltaFinding
	AtypicalOverdue    []DeltaFinding
	MissingClientType  []RowFinding
	MissingSalesperson []RowFinding
	Cancelled          []CancelledFinding
	DataQuality        []ColumnQuality
	Summary            Summary
}

// Auditor runs every quality rule over a snapshot.
type Auditor struct {
	threshold float64
	log       *zap.Logger
}

func NewAuditor(threshold float64, log *zap.Logger) *Auditor {
	if threshold <= 0 {
		threshold = outlier.DefaultThreshold
	}
	return &Auditor{threshold: threshold, log: log.Named("audit.auditor")}
}

// Run evaluates all rules. The raw table feeds the completeness report
// (unfiltered); the normalized transactions feed the reference checks;
// the cycles feed the delta outlier checks. cols narrows the reference
// checks: a source without the client-type or salesperson column yields
// no per-row findings for it, only the completeness report.
func (a *Auditor) Run(
	raw normalizer.Table,
	txns []ledgerdomain.Transaction,
	cycles []aging.ChargeCycle,
	set balance.Set,
	cols normalizer.ColumnSet,
	now time.Time,
) Result {
	res := Result{
		AtypicalAmounts:    a.atypicalAmounts(txns),
		AtypicalCollection: a.atypicalDeltas(cycles, false),
		AtypicalOverdue:    a.atypicalDeltas(cycles, true),
		MissingClientType:  a.missingClientType(txns, cols.HasClientType),
		MissingSalesperson: a.missingSalesperson(txns, cols.HasSalesperson),
		Cancelled:          a.cancelled(txns),
		DataQuality:        a.dataQuality(raw),
	}

	res.Summary = Summary{
		GeneratedAt:        now,
		TotalRows:          len(txns),
		AtypicalAmounts:    len(res.AtypicalAmounts),
		AtypicalCollection: len(res.AtypicalCollection),
		AtypicalOverdue:    len(res.AtypicalOverdue),
		MissingClientType:  len(res.MissingClientType),
		MissingSalesperson: len(res.MissingSalesperson),
		Cancelled:          len(res.Cancelled),
		DegradedLinkage:    set.Degraded,
	}
	res.Summary.TotalFindings = res.Summary.AtypicalAmounts +
		res.Summary.AtypicalCollection +
		res.Summary.AtypicalOverdue +
		res.Summary.MissingClientType +
		res.Summary.MissingSalesperson +
		res.Summary.Cancelled

	a.log.Info("audit completed",
		zap.Int("total_rows", res.Summary.TotalRows),
		zap.Int("total_findings", res.Summary.TotalFindings),
		zap.Bool("degraded_linkage", res.Summary.DegradedLinkage),
	)
	return res
}

// atypicalAmounts applies the z-score to active charge amounts only;
// payments would distort the reference distribution.
func (a *Auditor) atypicalAmounts(txns []ledgerdomain.Transaction) []AmountFinding {
	var charges []ledgerdomain.Transaction
	var values []float64
	for _, tx := range txns {
		if tx.Active() && tx.Kind == ledgerdomain.KindCharge {
			charges = append(charges, tx)
			values = append(values, tx.Amount)
		}
	}

	flags := outlier.Detect(values, a.threshold)
	findings := make([]AmountFinding, 0, len(flags))
	for _, f := range flags {
		tx := charges[f.Index]
		findings = append(findings, AmountFinding{
			TxID:   tx.ID,
			Client: tx.Client,
			Amount: tx.Amount,
			ZScore: f.ZScore,
			Reason: ReasonAtypicalAmount,
		})
	}
	if len(findings) > 0 {
		a.log.Info("atypical charge amounts", zap.Int("count", len(findings)))
	}
	return findings
}

// atypicalDeltas runs an independent z-score over one of the two delta
// series; the series are never pooled.
func (a *Auditor) atypicalDeltas(cycles []aging.ChargeCycle, overdue bool) []DeltaFinding {
	values := make([]float64, len(cycles))
	for i, cy := range cycles {
		values[i] = math.NaN()
		if overdue && cy.DaysOverdue != nil {
			values[i] = float64(*cy.DaysOverdue)
		}
		if !overdue && cy.DaysToCollect != nil {
			values[i] = float64(*cy.DaysToCollect)
		}
	}

	reason := ReasonAtypicalCollection
	if overdue {
		reason = ReasonAtypicalOverdue
	}

	flags := outlier.Detect(values, a.threshold)
	findings := make([]DeltaFinding, 0, len(flags))
	for _, f := range flags {
		cy := cycles[f.Index]
		findings = append(findings, DeltaFinding{
			ChargeID: cy.ChargeID,
			Client:   cy.Client,
			Days:     int(f.Value),
			ZScore:   f.ZScore,
			Reason:   reason,
		})
	}
	return findings
}

func (a *Auditor) missingClientType(txns []ledgerdomain.Transaction, hasColumn bool) []RowFinding {
	if !hasColumn {
		return nil
	}
	var findings []RowFinding
	for _, tx := range txns {
		if tx.ClientType == "" {
			findings = append(findings, RowFinding{
				TxID:   tx.ID,
				Client: tx.Client,
				Reason: ReasonMissingClientType,
			})
		}
	}
	return findings
}

// missingSalesperson checks charge rows only: payments legitimately
// carry no salesperson.
func (a *Auditor) missingSalesperson(txns []ledgerdomain.Transaction, hasColumn bool) []RowFinding {
	if !hasColumn {
		return nil
	}
	var findings []RowFinding
	for _, tx := range txns {
		if tx.Kind == ledgerdomain.KindCharge && tx.Salesperson == "" {
			findings = append(findings, RowFinding{
				TxID:   tx.ID,
				Client: tx.Client,
				Reason: ReasonMissingSalesperson,
			})
		}
	}
	return findings
}

func (a *Auditor) cancelled(txns []ledgerdomain.Transaction) []CancelledFinding {
	var findings []CancelledFinding
	for _, tx := range txns {
		if !tx.Cancelled {
			continue
		}
		finding := CancelledFinding{
			TxID:   tx.ID,
			Client: tx.Client,
			Reason: ReasonCancelled,
		}
		if tx.CreatedAt != nil && tx.CancelledAt != nil {
			days := int(tx.CancelledAt.Sub(*tx.CreatedAt).Hours() / 24)
			finding.DaysToCancellation = &days
		}
		findings = append(findings, finding)
	}
	if len(findings) > 0 {
		a.log.Info("cancelled documents", zap.Int("count", len(findings)))
	}
	return findings
}

// dataQuality reports missing counts, missing percentage and distinct
// values for every column of the full unfiltered table.
func (a *Auditor) dataQuality(raw normalizer.Table) []ColumnQuality {
	total := len(raw.Rows)
	report := make([]ColumnQuality, 0, len(raw.Columns))
	for _, col := range raw.Columns {
		missing := 0
		distinct := make(map[string]struct{})
		for _, row := range raw.Rows {
			v, ok := row[col]
			if !ok || normalizer.IsMissing(v) {
				missing++
				continue
			}
			distinct[stringify(v)] = struct{}{}
		}
		pct := 0.0
		if total > 0 {
			pct = balance.Round2(float64(missing) / float64(total) * 100)
		}
		report = append(report, ColumnQuality{
			Column:     col,
			TotalRows:  total,
			Missing:    missing,
			PctMissing: pct,
			Distinct:   len(distinct),
		})
	}
	return report
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return fmt.Sprintf("%v", v)
	}
}
