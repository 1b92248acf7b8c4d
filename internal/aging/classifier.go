// Package aging classifies charges by days overdue (open charges) and
// by days to collect (closed charges) through explicit ordered rule
// lists, so the tie-break order stays auditable.
package aging

import (
	"fmt"
	"time"

	"github.com/carteraops/cartera/internal/balance"
	"go.uber.org/zap"
)

// State is the derived snapshot state of a charge.
type State string

const (
	StateOpen   State = "OPEN"
	StateClosed State = "CLOSED"
)

// Category labels for the fixed ends of both scales. Range labels come
// from configuration; these are the labels the classifier itself owns.
const (
	LabelNotYetDue    = "Por vencer"
	LabelEarlyPayment = "Pago anticipado"
	LabelOnTime       = "Pago puntual"
	LabelUnclassified = ""
)

// Range is one inclusive day interval with its category label. Open
// marks the open-ended critical tail; Max is ignored when set.
type Range struct {
	Min   int
	Max   int
	Open  bool
	Label string
}

// PivotColumn renders the range as the column name used by the
// per-client aging pivot: "FACTURAS_VENCIDAS (1-30)" or
// "FACTURAS_VENCIDAS (+90)" for the open tail.
func (r Range) PivotColumn() string {
	if r.Open {
		return fmt.Sprintf("FACTURAS_VENCIDAS (+%d)", r.Min-1)
	}
	return fmt.Sprintf("FACTURAS_VENCIDAS (%d-%d)", r.Min, r.Max)
}

// DefaultOverdueRanges mirror the collection team's escalation ladder.
func DefaultOverdueRanges() []Range {
	return []Range{
		{Min: 1, Max: 30, Label: "Mora temprana (1-30)"},
		{Min: 31, Max: 60, Label: "Mora media (31-60)"},
		{Min: 61, Max: 90, Label: "Mora alta (61-90)"},
		{Min: 91, Open: true, Label: "Mora critica (>90)"},
	}
}

// DefaultCollectionRanges tier the lateness of completed collections.
func DefaultCollectionRanges() []Range {
	return []Range{
		{Min: 1, Max: 15, Label: "Retraso leve (1-15)"},
		{Min: 16, Max: 30, Label: "Retraso moderado (16-30)"},
		{Min: 31, Max: 60, Label: "Retraso alto (31-60)"},
		{Min: 61, Open: true, Label: "Retraso critico (>60)"},
	}
}

// RangesFromBounds builds an overdue ladder from inclusive upper
// bounds, e.g. [30,60,90] yields 1-30, 31-60, 61-90 and an open >90
// tail. Empty bounds yield the default ladder with its canonical
// labels.
func RangesFromBounds(bounds []int) []Range {
	if len(bounds) == 0 {
		return DefaultOverdueRanges()
	}
	ranges := make([]Range, 0, len(bounds)+1)
	min := 1
	for _, max := range bounds {
		ranges = append(ranges, Range{
			Min:   min,
			Max:   max,
			Label: fmt.Sprintf("Mora (%d-%d)", min, max),
		})
		min = max + 1
	}
	last := bounds[len(bounds)-1]
	ranges = append(ranges, Range{
		Min:   last + 1,
		Open:  true,
		Label: fmt.Sprintf("Mora (>%d)", last),
	})
	return ranges
}

// rule pairs a predicate with its label; rules evaluate in order and
// the first match wins.
type rule struct {
	match func(days int) bool
	label string
}

// ChargeCycle carries the one delta that applies to a charge: days
// overdue while open, days to collect once closed.
type ChargeCycle struct {
	ChargeID           int64   `json:"DOCTO_CC_ID"`
	Client             string  `json:"NOMBRE_CLIENTE"`
	Currency           string  `json:"MONEDA"`
	State              State   `json:"ESTADO"`
	Balance            float64 `json:"SALDO_FACTURA"`
	DaysOverdue        *int    `json:"DELTA_MORA"`
	OverdueCategory    string  `json:"CATEGORIA_MORA"`
	DaysToCollect      *int    `json:"DELTA_RECAUDO"`
	CollectionCategory string  `json:"CATEGORIA_RECAUDO"`
}

// Classifier evaluates the ordered rule lists for both scales.
type Classifier struct {
	overdueRanges []Range
	criticalMin   int
	openRules     []rule
	closedRules   []rule
	log           *zap.Logger
}

// NewClassifier builds rule lists from the configured ranges. Any
// number of ranges is supported; days matching no rule classify as the
// empty category.
func NewClassifier(overdue, collection []Range, log *zap.Logger) *Classifier {
	if len(overdue) == 0 {
		overdue = DefaultOverdueRanges()
	}
	if len(collection) == 0 {
		collection = DefaultCollectionRanges()
	}

	c := &Classifier{
		overdueRanges: overdue,
		criticalMin:   criticalMin(overdue),
		log:           log.Named("aging.classifier"),
	}

	c.openRules = append(c.openRules, rule{
		match: func(days int) bool { return days <= 0 },
		label: LabelNotYetDue,
	})
	c.openRules = append(c.openRules, rangeRules(overdue)...)

	c.closedRules = append(c.closedRules,
		rule{match: func(days int) bool { return days < 0 }, label: LabelEarlyPayment},
		rule{match: func(days int) bool { return days == 0 }, label: LabelOnTime},
	)
	c.closedRules = append(c.closedRules, rangeRules(collection)...)

	return c
}

// criticalMin is the first day of the open-ended tail, so the critical
// counter tracks whatever ladder is configured.
func criticalMin(ranges []Range) int {
	for _, r := range ranges {
		if r.Open {
			return r.Min
		}
	}
	last := ranges[len(ranges)-1]
	return last.Max + 1
}

func rangeRules(ranges []Range) []rule {
	rules := make([]rule, 0, len(ranges))
	for _, r := range ranges {
		r := r
		if r.Open {
			rules = append(rules, rule{
				match: func(days int) bool { return days >= r.Min },
				label: r.Label,
			})
			continue
		}
		rules = append(rules, rule{
			match: func(days int) bool { return days >= r.Min && days <= r.Max },
			label: r.Label,
		})
	}
	return rules
}

// OverdueRanges exposes the configured open-charge ranges for the
// analytics pivots.
func (c *Classifier) OverdueRanges() []Range { return c.overdueRanges }

// ClassifyOverdue labels a days-overdue count for an open charge.
func (c *Classifier) ClassifyOverdue(days int) string {
	return evaluate(c.openRules, days)
}

// ClassifyCollection labels a days-to-collect count for a closed charge.
func (c *Classifier) ClassifyCollection(days int) string {
	return evaluate(c.closedRules, days)
}

func evaluate(rules []rule, days int) string {
	for _, r := range rules {
		if r.match(days) {
			return r.label
		}
	}
	return LabelUnclassified
}

// ClassifyCharges derives the cycle view for every charge in the
// balance set. Exactly one delta applies per charge. A charge with a
// missing due date is excluded from classification but still appears
// in the output with its state, so raw totals elsewhere keep counting
// it.
func (c *Classifier) ClassifyCharges(set balance.Set, today time.Time) []ChargeCycle {
	today = today.Truncate(24 * time.Hour)

	cycles := make([]ChargeCycle, 0, len(set.Invoices))
	var open, closed, critical int
	for _, inv := range set.Invoices {
		cycle := ChargeCycle{
			ChargeID: inv.ChargeID,
			Client:   inv.Client,
			Currency: inv.Currency,
			Balance:  inv.Balance,
			State:    StateClosed,
		}
		if inv.Open() {
			cycle.State = StateOpen
		}

		switch cycle.State {
		case StateOpen:
			open++
			if inv.DueDate != nil {
				days := daysBetween(*inv.DueDate, today)
				cycle.DaysOverdue = &days
				cycle.OverdueCategory = c.ClassifyOverdue(days)
				if days >= c.criticalMin {
					critical++
				}
			}
		case StateClosed:
			closed++
			last, ok := set.LastPayment[inv.ChargeID]
			if ok && inv.DueDate != nil {
				days := daysBetween(*inv.DueDate, last)
				cycle.DaysToCollect = &days
				cycle.CollectionCategory = c.ClassifyCollection(days)
			}
		}
		cycles = append(cycles, cycle)
	}

	c.log.Info("charges classified",
		zap.Int("open", open),
		zap.Int("closed", closed),
		zap.Int("overdue_critical", critical),
	)
	return cycles
}

func daysBetween(from, to time.Time) int {
	return int(to.Truncate(24*time.Hour).Sub(from.Truncate(24*time.Hour)).Hours() / 24)
}
