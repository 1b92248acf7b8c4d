// Package analytics aggregates the computed balances and aging cycles
// into the portfolio report tables. Every table groups by currency
// first: amounts in different currencies never sum together.
package analytics

import (
	"sort"
	"time"

	"github.com/carteraops/cartera/internal/aging"
	"github.com/carteraops/cartera/internal/balance"
	ledgerdomain "github.com/carteraops/cartera/internal/ledger/domain"
	"go.uber.org/zap"
)

// Fallback group labels for rows missing the grouping attribute.
const (
	NoSalesperson = "SIN VENDEDOR ASIGNADO"
	NoConcept     = "Sin concepto asignado"
)

// Record type labels for the special-document summaries.
const (
	RecordTypeAdvance   = "AJUSTE"
	RecordTypeCancelled = "CANCELADO"
)

// AgingBucket is one row of the per-currency aging distribution.
type AgingBucket struct {
	Currency     string  `json:"MONEDA"`
	RangeLabel   string  `json:"RANGO_ANTIGUEDAD"`
	NumDocuments int     `json:"NUM_DOCUMENTOS"`
	TotalAmount  float64 `json:"IMPORTE_TOTAL"`
	PctOfTotal   float64 `json:"PCT_DEL_TOTAL"`
}

// ClientAging is one row of the per-client aging pivot. OverdueByRange
// keys on Range.PivotColumn so the rendered table carries the
// configured bucket names.
type ClientAging struct {
	Currency       string         `json:"MONEDA"`
	Client         string         `json:"NOMBRE_CLIENTE"`
	ClientStatus   string         `json:"ESTATUS_CLIENTE"`
	PaidInvoices   int            `json:"FACTURAS_PAGADAS"`
	CurrentOpen    int            `json:"FACTURAS_VIGENTES"`
	OverdueByRange map[string]int `json:"-"`
	TotalCharges   float64        `json:"TOTAL_CARGOS"`
	TotalPayments  float64        `json:"TOTAL_ABONOS"`
	Outstanding    float64        `json:"SALDO_PENDIENTE"`
}

// CurrentVsOverdue is the current-versus-past-due split per currency.
type CurrentVsOverdue struct {
	Currency      string  `json:"MONEDA"`
	CurrentCount  int     `json:"FACTURAS_VIGENTES"`
	CurrentAmount float64 `json:"IMPORTE_VIGENTE"`
	OverdueCount  int     `json:"FACTURAS_VENCIDAS"`
	OverdueAmount float64 `json:"IMPORTE_VENCIDO"`
	OverduePct    float64 `json:"PCT_VENCIDO"`
}

// GroupSummary aggregates open balances by a free-form attribute
// (salesperson or concept) within a currency.
type GroupSummary struct {
	Currency     string  `json:"MONEDA"`
	Group        string  `json:"GRUPO"`
	NumInvoices  int     `json:"NUM_FACTURAS"`
	TotalBilled  float64 `json:"IMPORTE_FACTURADO"`
	Outstanding  float64 `json:"SALDO_PENDIENTE"`
	OverdueCount int     `json:"FACTURAS_VENCIDAS"`
}

// SpecialSummary aggregates unapplied advances and cancelled documents
// by currency and concept. These rows never enter balances, so this
// table is the only place they surface with totals.
type SpecialSummary struct {
	Currency    string  `json:"MONEDA"`
	RecordType  string  `json:"TIPO_REGISTRO"`
	Concept     string  `json:"CONCEPTO"`
	NumRecords  int     `json:"NUM_REGISTROS"`
	TotalAmount float64 `json:"IMPORTE_TOTAL"`
	TotalTax    float64 `json:"IMPUESTO_TOTAL"`
	GrandTotal  float64 `json:"MONTO_TOTAL"`
}

// CollectionBucket is one row of the closed-charge collection-cycle
// distribution per currency.
type CollectionBucket struct {
	Currency   string  `json:"MONEDA"`
	Category   string  `json:"CATEGORIA_RECAUDO"`
	NumCharges int     `json:"NUM_DOCUMENTOS"`
	PctOfTotal float64 `json:"PCT_DEL_TOTAL"`
}

// Reporter builds the portfolio report tables.
type Reporter struct {
	log *zap.Logger
}

func NewReporter(log *zap.Logger) *Reporter {
	return &Reporter{log: log.Named("analytics.reporter")}
}

// AgingDistribution counts and sums open charges per overdue category
// within each currency. Percentages are relative to the currency's own
// open total.
func (r *Reporter) AgingDistribution(cycles []aging.ChargeCycle) []AgingBucket {
	type key struct{ currency, label string }
	counts := make(map[key]*AgingBucket)
	totals := make(map[string]float64)

	for _, cy := range cycles {
		if cy.State != aging.StateOpen || cy.OverdueCategory == aging.LabelUnclassified {
			continue
		}
		k := key{cy.Currency, cy.OverdueCategory}
		b, ok := counts[k]
		if !ok {
			b = &AgingBucket{Currency: cy.Currency, RangeLabel: cy.OverdueCategory}
			counts[k] = b
		}
		b.NumDocuments++
		b.TotalAmount += cy.Balance
		totals[cy.Currency] += cy.Balance
	}

	rows := make([]AgingBucket, 0, len(counts))
	for _, b := range counts {
		b.TotalAmount = balance.Round2(b.TotalAmount)
		if t := totals[b.Currency]; t > 0 {
			b.PctOfTotal = balance.Round2(b.TotalAmount / t * 100)
		}
		rows = append(rows, *b)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Currency != rows[j].Currency {
			return rows[i].Currency < rows[j].Currency
		}
		return rows[i].RangeLabel < rows[j].RangeLabel
	})
	return rows
}

// ClientAgingPivot builds the per-client view: paid and current
// invoice counts, overdue counts per configured range, plus the
// charge/payment totals and outstanding balance. Rows sort by client
// status then name within each currency.
func (r *Reporter) ClientAgingPivot(
	txns []ledgerdomain.Transaction,
	set balance.Set,
	cycles []aging.ChargeCycle,
	ranges []aging.Range,
) []ClientAging {
	type key struct{ currency, client string }
	pivot := make(map[key]*ClientAging)

	row := func(currency, client, status string) *ClientAging {
		k := key{currency, client}
		p, ok := pivot[k]
		if !ok {
			p = &ClientAging{
				Currency:       currency,
				Client:         client,
				ClientStatus:   status,
				OverdueByRange: make(map[string]int),
			}
			for _, rg := range ranges {
				p.OverdueByRange[rg.PivotColumn()] = 0
			}
			pivot[k] = p
		}
		if p.ClientStatus == "" {
			p.ClientStatus = status
		}
		return p
	}

	statusByCharge := make(map[int64]string)
	for _, inv := range set.Invoices {
		statusByCharge[inv.ChargeID] = inv.ClientStatus
	}

	for _, cy := range cycles {
		p := row(cy.Currency, cy.Client, statusByCharge[cy.ChargeID])
		switch {
		case cy.State == aging.StateClosed:
			p.PaidInvoices++
		case cy.OverdueCategory == aging.LabelNotYetDue || cy.DaysOverdue == nil:
			p.CurrentOpen++
		default:
			for _, rg := range ranges {
				if matches(rg, *cy.DaysOverdue) {
					p.OverdueByRange[rg.PivotColumn()]++
					break
				}
			}
		}
		p.Outstanding += cy.Balance
	}

	for _, tx := range txns {
		if !tx.Active() {
			continue
		}
		p := row(tx.Currency, tx.Client, tx.ClientStatus)
		switch tx.Kind {
		case ledgerdomain.KindCharge:
			p.TotalCharges += tx.Total()
		case ledgerdomain.KindPayment:
			p.TotalPayments += tx.Total()
		}
	}

	rows := make([]ClientAging, 0, len(pivot))
	for _, p := range pivot {
		p.TotalCharges = balance.Round2(p.TotalCharges)
		p.TotalPayments = balance.Round2(p.TotalPayments)
		p.Outstanding = balance.Round2(p.Outstanding)
		rows = append(rows, *p)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Currency != rows[j].Currency {
			return rows[i].Currency < rows[j].Currency
		}
		if rows[i].ClientStatus != rows[j].ClientStatus {
			return rows[i].ClientStatus < rows[j].ClientStatus
		}
		return rows[i].Client < rows[j].Client
	})

	r.log.Info("client aging pivot built", zap.Int("rows", len(rows)))
	return rows
}

func matches(rg aging.Range, days int) bool {
	if rg.Open {
		return days >= rg.Min
	}
	return days >= rg.Min && days <= rg.Max
}

// CurrentVsOverdueSplit splits open charges into current and past-due
// per currency, by due date against today.
func (r *Reporter) CurrentVsOverdueSplit(set balance.Set, today time.Time) []CurrentVsOverdue {
	today = today.Truncate(24 * time.Hour)
	byCurrency := make(map[string]*CurrentVsOverdue)

	for _, inv := range set.Invoices {
		if !inv.Open() {
			continue
		}
		row, ok := byCurrency[inv.Currency]
		if !ok {
			row = &CurrentVsOverdue{Currency: inv.Currency}
			byCurrency[inv.Currency] = row
		}
		if inv.DueDate != nil && inv.DueDate.Before(today) {
			row.OverdueCount++
			row.OverdueAmount += inv.Balance
		} else {
			row.CurrentCount++
			row.CurrentAmount += inv.Balance
		}
	}

	rows := make([]CurrentVsOverdue, 0, len(byCurrency))
	for _, row := range byCurrency {
		row.CurrentAmount = balance.Round2(row.CurrentAmount)
		row.OverdueAmount = balance.Round2(row.OverdueAmount)
		if total := row.CurrentAmount + row.OverdueAmount; total > 0 {
			row.OverduePct = balance.Round2(row.OverdueAmount / total * 100)
		}
		rows = append(rows, *row)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Currency < rows[j].Currency })
	return rows
}

// BySalesperson aggregates charges per salesperson within each
// currency. Charges without one group under a fixed fallback label.
func (r *Reporter) BySalesperson(txns []ledgerdomain.Transaction, set balance.Set, today time.Time) []GroupSummary {
	return r.byAttribute(txns, set, today, func(tx ledgerdomain.Transaction) string {
		if tx.Salesperson == "" {
			return NoSalesperson
		}
		return tx.Salesperson
	})
}

// ByConcept aggregates charges per billing concept within each
// currency.
func (r *Reporter) ByConcept(txns []ledgerdomain.Transaction, set balance.Set, today time.Time) []GroupSummary {
	return r.byAttribute(txns, set, today, func(tx ledgerdomain.Transaction) string {
		if tx.Concept == "" {
			return NoConcept
		}
		return tx.Concept
	})
}

func (r *Reporter) byAttribute(
	txns []ledgerdomain.Transaction,
	set balance.Set,
	today time.Time,
	groupOf func(ledgerdomain.Transaction) string,
) []GroupSummary {
	today = today.Truncate(24 * time.Hour)
	byCharge := set.ByChargeIndex()

	type key struct{ currency, group string }
	summaries := make(map[key]*GroupSummary)

	for _, tx := range txns {
		if !tx.Active() || tx.Kind != ledgerdomain.KindCharge {
			continue
		}
		k := key{tx.Currency, groupOf(tx)}
		s, ok := summaries[k]
		if !ok {
			s = &GroupSummary{Currency: k.currency, Group: k.group}
			summaries[k] = s
		}
		s.NumInvoices++
		s.TotalBilled += tx.Total()
		if inv, ok := byCharge[tx.ID]; ok {
			s.Outstanding += inv.Balance
			if inv.Open() && inv.DueDate != nil && inv.DueDate.Before(today) {
				s.OverdueCount++
			}
		}
	}

	rows := make([]GroupSummary, 0, len(summaries))
	for _, s := range summaries {
		s.TotalBilled = balance.Round2(s.TotalBilled)
		s.Outstanding = balance.Round2(s.Outstanding)
		rows = append(rows, *s)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Currency != rows[j].Currency {
			return rows[i].Currency < rows[j].Currency
		}
		if rows[i].Outstanding != rows[j].Outstanding {
			return rows[i].Outstanding > rows[j].Outstanding
		}
		return rows[i].Group < rows[j].Group
	})
	return rows
}

// SpecialDocuments summarizes the two populations excluded from every
// balance: unapplied advances and cancelled documents, grouped by
// currency and concept.
func (r *Reporter) SpecialDocuments(txns []ledgerdomain.Transaction) []SpecialSummary {
	type key struct{ currency, recordType, concept string }
	summaries := make(map[key]*SpecialSummary)

	add := func(tx ledgerdomain.Transaction, recordType string) {
		concept := tx.Concept
		if concept == "" {
			concept = NoConcept
		}
		k := key{tx.Currency, recordType, concept}
		s, ok := summaries[k]
		if !ok {
			s = &SpecialSummary{Currency: tx.Currency, RecordType: recordType, Concept: concept}
			summaries[k] = s
		}
		s.NumRecords++
		s.TotalAmount += tx.Amount
		s.TotalTax += tx.Tax
		s.GrandTotal += tx.Total()
	}

	for _, tx := range txns {
		switch {
		case tx.Cancelled:
			add(tx, RecordTypeCancelled)
		case tx.Kind == ledgerdomain.KindUnappliedAdvance:
			add(tx, RecordTypeAdvance)
		}
	}

	rows := make([]SpecialSummary, 0, len(summaries))
	for _, s := range summaries {
		s.TotalAmount = balance.Round2(s.TotalAmount)
		s.TotalTax = balance.Round2(s.TotalTax)
		s.GrandTotal = balance.Round2(s.GrandTotal)
		rows = append(rows, *s)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Currency != rows[j].Currency {
			return rows[i].Currency < rows[j].Currency
		}
		if rows[i].RecordType != rows[j].RecordType {
			return rows[i].RecordType < rows[j].RecordType
		}
		return rows[i].Concept < rows[j].Concept
	})

	if len(rows) > 0 {
		r.log.Info("special documents summarized", zap.Int("groups", len(rows)))
	}
	return rows
}

// CollectionDistribution counts closed charges per collection category
// within each currency.
func (r *Reporter) CollectionDistribution(cycles []aging.ChargeCycle) []CollectionBucket {
	type key struct{ currency, category string }
	counts := make(map[key]*CollectionBucket)
	totals := make(map[string]int)

	for _, cy := range cycles {
		if cy.State != aging.StateClosed || cy.CollectionCategory == aging.LabelUnclassified {
			continue
		}
		k := key{cy.Currency, cy.CollectionCategory}
		b, ok := counts[k]
		if !ok {
			b = &CollectionBucket{Currency: cy.Currency, Category: cy.CollectionCategory}
			counts[k] = b
		}
		b.NumCharges++
		totals[cy.Currency]++
	}

	rows := make([]CollectionBucket, 0, len(counts))
	for _, b := range counts {
		if t := totals[b.Currency]; t > 0 {
			b.PctOfTotal = balance.Round2(float64(b.NumCharges) / float64(t) * 100)
		}
		rows = append(rows, *b)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Currency != rows[j].Currency {
			return rows[i].Currency < rows[j].Currency
		}
		return rows[i].Category < rows[j].Category
	})
	return rows
}
