// Package kpi derives the strategic collection indicators from the
// ledger and the computed balances.
package kpi

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/carteraops/cartera/internal/balance"
	ledgerdomain "github.com/carteraops/cartera/internal/ledger/domain"
	"go.uber.org/zap"
)

// Record is one named indicator with its value and a human-readable
// interpretation, all derived deterministically.
type Record struct {
	KPI            string  `json:"KPI"`
	Value          float64 `json:"VALOR"`
	Unit           string  `json:"UNIDAD"`
	Interpretation string  `json:"INTERPRETACION"`
}

// Concentration is one row of the Pareto/ABC analysis.
type Concentration struct {
	Client        string  `json:"NOMBRE_CLIENTE"`
	Balance       float64 `json:"SALDO"`
	PctOfTotal    float64 `json:"PCT_DEL_TOTAL"`
	PctCumulative float64 `json:"PCT_ACUMULADO"`
	Class         string  `json:"CLASIFICACION"`
}

// Credit utilization alert levels.
const (
	AlertNormal    = "NORMAL"
	AlertHigh      = "ALTO"
	AlertCritical  = "CRITICO"
	AlertOverLimit = "SOBRE_LIMITE"
	AlertNoLimit   = "SIN_LIMITE"
)

// CreditUtilization compares a client's balance against its credit
// limit. UtilizationPct is nil when no limit is assigned.
type CreditUtilization struct {
	Client         string   `json:"NOMBRE_CLIENTE"`
	Balance        float64  `json:"SALDO"`
	CreditLimit    float64  `json:"LIMITE_CREDITO"`
	UtilizationPct *float64 `json:"UTILIZACION_PCT"`
	Available      float64  `json:"DISPONIBLE"`
	Alert          string   `json:"ALERTA"`
}

// ClientDelinquency breaks a client's portfolio into current and
// past-due balance.
type ClientDelinquency struct {
	Client        string  `json:"NOMBRE_CLIENTE"`
	TotalBalance  float64 `json:"SALDO_TOTAL"`
	CurrentAmount float64 `json:"SALDO_VIGENTE"`
	OverdueAmount float64 `json:"SALDO_VENCIDO"`
	OverduePct    float64 `json:"PCT_VENCIDO"`
	NumInvoices   int     `json:"NUM_FACTURAS"`
	NumOverdue    int     `json:"NUM_VENCIDAS"`
	MaxDaysLate   int     `json:"DIAS_VENCIDO_MAX"`
}

// Calculator evaluates every KPI over a snapshot.
type Calculator struct {
	windowDays int
	log        *zap.Logger
}

// DefaultWindowDays is the trailing window for DSO and CEI.
const DefaultWindowDays = 90

func NewCalculator(windowDays int, log *zap.Logger) *Calculator {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	return &Calculator{
		windowDays: windowDays,
		log:        log.Named("kpi.calculator"),
	}
}

// Summary computes the three headline indicators: DSO, CEI and the
// delinquency ratio.
func (c *Calculator) Summary(txns []ledgerdomain.Transaction, set balance.Set, today time.Time) []Record {
	today = today.Truncate(24 * time.Hour)
	windowStart := today.AddDate(0, 0, -c.windowDays)

	dso := c.dso(txns, set, windowStart, today)
	cei := c.cei(txns, windowStart, today)
	delinquency := c.delinquency(set, today)

	c.log.Info("kpi summary computed",
		zap.Float64("dso_days", dso.Value),
		zap.Float64("cei_pct", cei.Value),
		zap.Float64("delinquency_pct", delinquency.Value),
	)
	return []Record{dso, cei, delinquency}
}

// dso = outstanding balance / window billing * window days. A window
// with no billing yields zero, never NaN.
func (c *Calculator) dso(txns []ledgerdomain.Transaction, set balance.Set, from, to time.Time) Record {
	outstanding := set.TotalOutstanding()

	var billed float64
	for _, tx := range txns {
		if tx.Active() && tx.Kind == ledgerdomain.KindCharge && inWindow(tx.IssueDate, from, to) {
			billed += tx.Total()
		}
	}

	var days float64
	if billed > 0 {
		days = outstanding / billed * float64(c.windowDays)
	}

	return Record{
		KPI:   "DSO (Days Sales Outstanding)",
		Value: round1(days),
		Unit:  "dias",
		Interpretation: fmt.Sprintf(
			"La empresa tarda en promedio %.1f dias en cobrar. Saldo actual: $%.2f vs $%.2f facturado en %d dias.",
			days, outstanding, billed, c.windowDays,
		),
	}
}

// cei reconstructs the opening balance from the current position and
// the window flows. A collectible <= 0 means there was nothing to
// collect, which counts as fully collected.
func (c *Calculator) cei(txns []ledgerdomain.Transaction, from, to time.Time) Record {
	var windowCharges, windowPayments, charges, payments float64
	for _, tx := range txns {
		if !tx.Active() {
			continue
		}
		switch tx.Kind {
		case ledgerdomain.KindCharge:
			charges += tx.Total()
			if inWindow(tx.IssueDate, from, to) {
				windowCharges += tx.Total()
			}
		case ledgerdomain.KindPayment:
			payments += tx.Total()
			if inWindow(tx.IssueDate, from, to) {
				windowPayments += tx.Total()
			}
		}
	}

	current := charges - payments
	opening := current - windowCharges + windowPayments
	collectible := opening + windowCharges

	pct := 100.0
	if collectible > 0 {
		pct = windowPayments / collectible * 100
	}

	return Record{
		KPI:   "CEI (Collection Effectiveness Index)",
		Value: round1(pct),
		Unit:  "%",
		Interpretation: fmt.Sprintf(
			"Se recupero el %.1f%% de lo cobrable en el periodo. Cobros: $%.2f de $%.2f cobrable (saldo inicio: $%.2f + cargos periodo: $%.2f).",
			pct, windowPayments, collectible, opening, windowCharges,
		),
	}
}

// delinquency is the share of the outstanding portfolio already past
// due. An empty portfolio yields zero.
func (c *Calculator) delinquency(set balance.Set, today time.Time) Record {
	var total, overdue float64
	for _, inv := range set.Invoices {
		total += inv.Balance
		if inv.DueDate != nil && inv.DueDate.Before(today) {
			overdue += inv.Balance
		}
	}

	var pct float64
	if total > 0 {
		pct = overdue / total * 100
	}

	return Record{
		KPI:   "Indice de Morosidad",
		Value: round1(pct),
		Unit:  "%",
		Interpretation: fmt.Sprintf(
			"El %.1f%% de la cartera esta vencida. Vencida: $%.2f de $%.2f total.",
			pct, overdue, total,
		),
	}
}

// Concentration aggregates outstanding balance per client, sorts
// descending and classifies A while the cumulative share stays within
// 80%, B within 95%, C beyond. A non-positive grand total yields an
// empty table.
func (c *Calculator) Concentration(set balance.Set) []Concentration {
	byClient := make(map[string]float64)
	for _, inv := range set.Invoices {
		byClient[inv.Client] += inv.Balance
	}

	rows := make([]Concentration, 0, len(byClient))
	var total float64
	for client, bal := range byClient {
		rows = append(rows, Concentration{Client: client, Balance: balance.Round2(bal)})
		total += bal
	}
	if total <= 0 {
		c.log.Warn("non-positive outstanding total, concentration skipped")
		return nil
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Balance != rows[j].Balance {
			return rows[i].Balance > rows[j].Balance
		}
		return rows[i].Client < rows[j].Client
	})

	var cumulative float64
	var classA int
	for i := range rows {
		rows[i].PctOfTotal = balance.Round2(rows[i].Balance / total * 100)
		cumulative += rows[i].PctOfTotal
		rows[i].PctCumulative = balance.Round2(cumulative)
		switch {
		case rows[i].PctCumulative <= 80:
			rows[i].Class = "A"
			classA++
		case rows[i].PctCumulative <= 95:
			rows[i].Class = "B"
		default:
			rows[i].Class = "C"
		}
	}

	c.log.Info("portfolio concentration computed",
		zap.Int("clients", len(rows)),
		zap.Int("class_a", classA),
	)
	return rows
}

// CreditUtilizationByClient compares balances against credit limits.
// hasLimitColumn gates the whole table: without the source column the
// KPI is omitted entirely rather than reported as all-SIN_LIMITE.
func (c *Calculator) CreditUtilizationByClient(txns []ledgerdomain.Transaction, set balance.Set, hasLimitColumn bool) []CreditUtilization {
	if !hasLimitColumn {
		c.log.Warn("credit limit column absent, utilization KPI omitted")
		return nil
	}

	limits := make(map[string]float64)
	for _, tx := range txns {
		if tx.CreditLimit > limits[tx.Client] {
			limits[tx.Client] = tx.CreditLimit
		}
	}

	byClient := make(map[string]float64)
	for _, inv := range set.Invoices {
		byClient[inv.Client] += inv.Balance
	}

	rows := make([]CreditUtilization, 0, len(byClient))
	var over int
	for client, bal := range byClient {
		limit := limits[client]
		row := CreditUtilization{
			Client:      client,
			Balance:     balance.Round2(bal),
			CreditLimit: limit,
			Available:   balance.Round2(limit - bal),
			Alert:       AlertNoLimit,
		}
		if limit > 0 {
			pct := round1(bal / limit * 100)
			row.UtilizationPct = &pct
			switch {
			case pct > 100:
				row.Alert = AlertOverLimit
				over++
			case pct >= 90:
				row.Alert = AlertCritical
			case pct >= 70:
				row.Alert = AlertHigh
			default:
				row.Alert = AlertNormal
			}
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Balance != rows[j].Balance {
			return rows[i].Balance > rows[j].Balance
		}
		return rows[i].Client < rows[j].Client
	})

	if over > 0 {
		c.log.Warn("clients over their credit limit", zap.Int("count", over))
	}
	return rows
}

// DelinquencyByClient splits every client's portfolio into current and
// past-due balance, sorted by overdue balance descending.
func (c *Calculator) DelinquencyByClient(set balance.Set, today time.Time) []ClientDelinquency {
	today = today.Truncate(24 * time.Hour)

	byClient := make(map[string]*ClientDelinquency)
	for _, inv := range set.Invoices {
		row, ok := byClient[inv.Client]
		if !ok {
			row = &ClientDelinquency{Client: inv.Client}
			byClient[inv.Client] = row
		}
		row.TotalBalance += inv.Balance
		row.NumInvoices++

		daysLate := 0
		if inv.DueDate != nil {
			daysLate = int(today.Sub(inv.DueDate.Truncate(24*time.Hour)).Hours() / 24)
		}
		if daysLate > 0 {
			row.OverdueAmount += inv.Balance
			row.NumOverdue++
			if daysLate > row.MaxDaysLate {
				row.MaxDaysLate = daysLate
			}
		} else {
			row.CurrentAmount += inv.Balance
		}
	}

	rows := make([]ClientDelinquency, 0, len(byClient))
	for _, row := range byClient {
		row.TotalBalance = balance.Round2(row.TotalBalance)
		row.CurrentAmount = balance.Round2(row.CurrentAmount)
		row.OverdueAmount = balance.Round2(row.OverdueAmount)
		if row.TotalBalance > 0 {
			row.OverduePct = round1(row.OverdueAmount / row.TotalBalance * 100)
		}
		rows = append(rows, *row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].OverdueAmount != rows[j].OverdueAmount {
			return rows[i].OverdueAmount > rows[j].OverdueAmount
		}
		return rows[i].Client < rows[j].Client
	})
	return rows
}

func inWindow(d *time.Time, from, to time.Time) bool {
	if d == nil {
		return false
	}
	return !d.Before(from) && !d.After(to)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
