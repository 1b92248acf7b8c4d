package domain

import (
	"strings"
	"time"
)

// MovementKind is the closed set of ledger movement types. The source
// system encodes these as single-letter codes; the normalizer decides
// the mapping exactly once.
type MovementKind string

const (
	KindCharge           MovementKind = "CHARGE"
	KindPayment          MovementKind = "PAYMENT"
	KindUnappliedAdvance MovementKind = "UNAPPLIED_ADVANCE"
	KindUnknown          MovementKind = "UNKNOWN"
)

// KindFromCode maps the source movement code (C/R/A) to a MovementKind.
func KindFromCode(code string) MovementKind {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "C":
		return KindCharge
	case "R":
		return KindPayment
	case "A":
		return KindUnappliedAdvance
	default:
		return KindUnknown
	}
}

// rank orders kinds for deterministic sorting: charges before the
// payments that settle them.
func (k MovementKind) rank() int {
	switch k {
	case KindCharge:
		return 0
	case KindPayment:
		return 1
	case KindUnappliedAdvance:
		return 2
	default:
		return 3
	}
}

// Before reports whether k sorts ahead of other within a charge group.
func (k MovementKind) Before(other MovementKind) bool {
	return k.rank() < other.rank()
}

// Transaction is one canonical ledger entry: a charge (invoice), a
// payment (receipt) optionally linked to the charge it settles, or an
// advance not yet applied to any charge.
type Transaction struct {
	ID           int64
	RefID        *int64
	Kind         MovementKind
	Client       string
	ClientStatus string
	ClientType   string
	Salesperson  string
	Currency     string
	Concept      string
	Description  string
	IssueDate    *time.Time
	DueDate      *time.Time
	Amount       float64
	Tax          float64
	CreditLimit  float64
	Cancelled    bool
	CreatedAt    *time.Time
	ModifiedAt   *time.Time
	CancelledAt  *time.Time
}

// Total returns principal plus tax. Every monetary computation in the
// engine works on this value, never on the principal alone.
func (t Transaction) Total() float64 {
	return t.Amount + t.Tax
}

// Active reports whether the transaction participates in balance,
// aging, KPI and outlier computations. Cancelled rows and unapplied
// advances only feed their dedicated summaries.
func (t Transaction) Active() bool {
	return !t.Cancelled && t.Kind != KindUnappliedAdvance
}

// GroupKey returns the charge id the row belongs to: a charge groups
// under its own id, a payment under the charge it settles. Rows with
// no linkage group under their own id.
func (t Transaction) GroupKey() int64 {
	if t.Kind == KindPayment && t.RefID != nil {
		return *t.RefID
	}
	return t.ID
}
