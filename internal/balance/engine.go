// Package balance nets charges against their linked payments and keeps
// the per-client running balance.
package balance

import (
	"sort"
	"time"

	ledgerdomain "github.com/carteraops/cartera/internal/ledger/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InvoiceBalance is the derived position of a single charge: its total
// amount, the payments applied against it and what remains outstanding.
type InvoiceBalance struct {
	ChargeID       int64      `json:"DOCTO_CC_ID"`
	Client         string     `json:"NOMBRE_CLIENTE"`
	ClientStatus   string     `json:"ESTATUS_CLIENTE"`
	Currency       string     `json:"MONEDA"`
	IssueDate      *time.Time `json:"FECHA_EMISION"`
	DueDate        *time.Time `json:"FECHA_VENCIMIENTO"`
	ChargeAmount   float64    `json:"MONTO_CARGO"`
	PaymentsAmount float64    `json:"MONTO_ABONOS"`
	Balance        float64    `json:"SALDO_FACTURA"`
	Overpaid       bool       `json:"SOBREPAGO"`
}

// Open reports whether the charge still carries an outstanding balance.
func (b InvoiceBalance) Open() bool { return b.Balance > 0 }

// Set is the output of one balance computation over a snapshot.
// Degraded marks the fallback taken when the payment-to-charge linkage
// column is entirely absent: every charge is reported at its full
// amount, which conflates "nothing paid" with "cannot tell", so the
// flag must reach the audit output.
type Set struct {
	Invoices    []InvoiceBalance
	LastPayment map[int64]time.Time
	Degraded    bool
}

// ByCharge returns the invoice balance for a charge id.
func (s Set) ByCharge(id int64) (InvoiceBalance, bool) {
	for _, inv := range s.Invoices {
		if inv.ChargeID == id {
			return inv, true
		}
	}
	return InvoiceBalance{}, false
}

// ByChargeIndex returns the invoice balances keyed by charge id.
func (s Set) ByChargeIndex() map[int64]InvoiceBalance {
	idx := make(map[int64]InvoiceBalance, len(s.Invoices))
	for _, inv := range s.Invoices {
		idx[inv.ChargeID] = inv
	}
	return idx
}

// TotalOutstanding sums every invoice balance, overpayments included.
func (s Set) TotalOutstanding() float64 {
	var total float64
	for _, inv := range s.Invoices {
		total += inv.Balance
	}
	return Round2(total)
}

// LedgerLine is one transaction annotated with the client's cumulative
// signed balance at that point of the deterministic ordering.
type LedgerLine struct {
	Tx             ledgerdomain.Transaction
	RunningBalance float64 `json:"SALDO_CLIENTE"`
}

// Engine computes invoice and running balances.
type Engine struct {
	log *zap.Logger
}

func NewEngine(log *zap.Logger) *Engine {
	return &Engine{log: log.Named("balance.engine")}
}

// ComputeInvoiceBalances nets each charge against the sum of payments
// referencing it. Cancelled rows and unapplied advances are excluded
// before anything else. hasRefColumn signals whether the source carried
// the linkage column at all; without it the engine falls back to the
// full charge amount and marks the set degraded.
func (e *Engine) ComputeInvoiceBalances(txns []ledgerdomain.Transaction, hasRefColumn bool) Set {
	set := Set{
		LastPayment: make(map[int64]time.Time),
		Degraded:    !hasRefColumn,
	}

	paymentsByCharge := make(map[int64]float64)
	for _, tx := range txns {
		if !tx.Active() || tx.Kind != ledgerdomain.KindPayment || tx.RefID == nil {
			continue
		}
		paymentsByCharge[*tx.RefID] += tx.Total()
		if tx.IssueDate != nil {
			last, ok := set.LastPayment[*tx.RefID]
			if !ok || tx.IssueDate.After(last) {
				set.LastPayment[*tx.RefID] = *tx.IssueDate
			}
		}
	}

	var overpaid int
	for _, tx := range txns {
		if !tx.Active() || tx.Kind != ledgerdomain.KindCharge {
			continue
		}
		paid := 0.0
		if hasRefColumn {
			paid = paymentsByCharge[tx.ID]
		}
		bal := Round2(tx.Total() - paid)
		inv := InvoiceBalance{
			ChargeID:       tx.ID,
			Client:         tx.Client,
			ClientStatus:   tx.ClientStatus,
			Currency:       tx.Currency,
			IssueDate:      tx.IssueDate,
			DueDate:        tx.DueDate,
			ChargeAmount:   Round2(tx.Total()),
			PaymentsAmount: Round2(paid),
			Balance:        bal,
			Overpaid:       bal < 0,
		}
		if inv.Overpaid {
			overpaid++
		}
		set.Invoices = append(set.Invoices, inv)
	}

	if set.Degraded {
		e.log.Warn("linkage column absent, balances equal full charge amounts",
			zap.Int("charges", len(set.Invoices)))
	}
	e.log.Info("invoice balances computed",
		zap.Int("charges", len(set.Invoices)),
		zap.Int("linked_payment_groups", len(paymentsByCharge)),
		zap.Int("overpaid", overpaid),
	)
	return set
}

// ComputeClientRunningBalance sorts the active transactions into the
// stable order (client, charge group, kind, issue date, id) and
// cumulative-sums the signed amount per client: charges add, payments
// subtract, anything else contributes zero.
func (e *Engine) ComputeClientRunningBalance(txns []ledgerdomain.Transaction) []LedgerLine {
	active := make([]ledgerdomain.Transaction, 0, len(txns))
	for _, tx := range txns {
		if tx.Active() {
			active = append(active, tx)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if a.Client != b.Client {
			return a.Client < b.Client
		}
		if a.GroupKey() != b.GroupKey() {
			return a.GroupKey() < b.GroupKey()
		}
		if a.Kind != b.Kind {
			return a.Kind.Before(b.Kind)
		}
		ai, bi := dateOrZero(a.IssueDate), dateOrZero(b.IssueDate)
		if !ai.Equal(bi) {
			return ai.Before(bi)
		}
		return a.ID < b.ID
	})

	lines := make([]LedgerLine, 0, len(active))
	running := make(map[string]float64)
	for _, tx := range active {
		switch tx.Kind {
		case ledgerdomain.KindCharge:
			running[tx.Client] += tx.Total()
		case ledgerdomain.KindPayment:
			running[tx.Client] -= tx.Total()
		}
		lines = append(lines, LedgerLine{
			Tx:             tx,
			RunningBalance: Round2(running[tx.Client]),
		})
	}

	e.log.Info("client running balances computed",
		zap.Int("rows", len(lines)),
		zap.Int("clients", len(running)),
	)
	return lines
}

func dateOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

// Round2 rounds a monetary value to two decimals using half-up decimal
// arithmetic rather than binary floats.
func Round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
