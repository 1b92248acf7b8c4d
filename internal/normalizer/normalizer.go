// Package normalizer is the single point translating the loosely-typed
// source extract into the canonical transaction schema. Downstream
// packages depend only on the schema, never on raw column names.
package normalizer

import (
	"strconv"
	"strings"
	"time"

	ledgerdomain "github.com/carteraops/cartera/internal/ledger/domain"
	"go.uber.org/zap"
)

// Source column vocabulary. Matching is case-insensitive: headers are
// upper-cased and trimmed before lookup.
const (
	ColID          = "DOCTO_CC_ID"
	ColRefID       = "DOCTO_CC_ACR_ID"
	ColKind        = "TIPO_IMPTE"
	ColClient      = "NOMBRE_CLIENTE"
	ColStatus      = "ESTATUS_CLIENTE"
	ColClientType  = "TIPO_CLIENTE"
	ColSalesperson = "VENDEDOR"
	ColCurrency    = "MONEDA"
	ColConcept     = "CONCEPTO"
	ColDescription = "DESCRIPCION"
	ColIssueDate   = "FECHA_EMISION"
	ColDueDate     = "FECHA_VENCIMIENTO"
	ColAmount      = "IMPORTE"
	ColTax         = "IMPUESTO"
	ColCancelled   = "CANCELADO"
	ColCreditLimit = "LIMITE_CREDITO"
	ColCreatedAt   = "FECHA_HORA_CREACION"
	ColModifiedAt  = "FECHA_HORA_ULT_MODIF"
	ColCancelledAt = "FECHA_HORA_CANCELACION"
)

// requiredColumns must all be present after upper-casing; the pipeline
// aborts before producing any output when one is entirely absent.
var requiredColumns = []string{ColID, ColKind, ColAmount, ColIssueDate, ColClient}

// cancelledValues are the markers the source system uses on cancelled
// documents.
var cancelledValues = map[string]struct{}{
	"S": {}, "SI": {}, "1": {}, "TRUE": {},
}

var dateLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
	"02/01/2006",
}

// Table is the raw tabular shape handed over by the extractor: original
// column names plus one map per row keyed by those names.
type Table struct {
	Columns []string
	Rows    []map[string]any
}

// ColumnSet records which recommended-but-optional columns the source
// actually carried. Absence degrades specific computations instead of
// erroring, and the audit summary surfaces the degradation.
type ColumnSet struct {
	HasRefID       bool
	HasDueDate     bool
	HasCancelled   bool
	HasClientType  bool
	HasSalesperson bool
	HasCreditLimit bool
}

// Result is the normalized view of a source table.
type Result struct {
	Transactions []ledgerdomain.Transaction
	Columns      ColumnSet
}

// Normalizer coerces raw tables into canonical transactions. Malformed
// individual values degrade to missing/zero, never to an error.
type Normalizer struct {
	log *zap.Logger
}

func New(log *zap.Logger) *Normalizer {
	return &Normalizer{log: log.Named("normalizer")}
}

// Normalize validates the table structure and converts every row.
// It returns ErrNotTabular for a shapeless input and
// ErrMissingRequiredColumn when a minimum column is entirely absent.
func (n *Normalizer) Normalize(t Table) (Result, error) {
	if len(t.Columns) == 0 {
		return Result{}, ledgerdomain.ErrNotTabular
	}

	index := make(map[string]string, len(t.Columns))
	for _, col := range t.Columns {
		index[canonical(col)] = col
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			n.log.Error("required column absent", zap.String("column", col))
			return Result{}, ledgerdomain.ErrMissingRequiredColumn
		}
	}

	cols := ColumnSet{
		HasRefID:       hasColumn(index, ColRefID),
		HasDueDate:     hasColumn(index, ColDueDate),
		HasCancelled:   hasColumn(index, ColCancelled),
		HasClientType:  hasColumn(index, ColClientType),
		HasSalesperson: hasColumn(index, ColSalesperson),
		HasCreditLimit: hasColumn(index, ColCreditLimit),
	}

	txns := make([]ledgerdomain.Transaction, 0, len(t.Rows))
	for _, row := range t.Rows {
		txns = append(txns, n.normalizeRow(row, index))
	}

	n.log.Info("table normalized",
		zap.Int("rows", len(txns)),
		zap.Bool("has_ref_id", cols.HasRefID),
		zap.Bool("has_due_date", cols.HasDueDate),
		zap.Bool("has_credit_limit", cols.HasCreditLimit),
	)
	return Result{Transactions: txns, Columns: cols}, nil
}

func (n *Normalizer) normalizeRow(row map[string]any, index map[string]string) ledgerdomain.Transaction {
	get := func(canon string) (any, bool) {
		orig, ok := index[canon]
		if !ok {
			return nil, false
		}
		v, ok := row[orig]
		return v, ok
	}

	tx := ledgerdomain.Transaction{
		ID:           coerceInt(value(get, ColID)),
		Kind:         ledgerdomain.KindFromCode(coerceString(value(get, ColKind))),
		Client:       strings.TrimSpace(coerceString(value(get, ColClient))),
		ClientStatus: strings.TrimSpace(coerceString(value(get, ColStatus))),
		ClientType:   strings.TrimSpace(coerceString(value(get, ColClientType))),
		Salesperson:  strings.TrimSpace(coerceString(value(get, ColSalesperson))),
		Currency:     canonical(coerceString(value(get, ColCurrency))),
		Concept:      strings.TrimSpace(coerceString(value(get, ColConcept))),
		Description:  strings.TrimSpace(coerceString(value(get, ColDescription))),
		Amount:       coerceFloat(value(get, ColAmount)),
		Tax:          coerceFloat(value(get, ColTax)),
		CreditLimit:  coerceFloat(value(get, ColCreditLimit)),
		IssueDate:    coerceDate(value(get, ColIssueDate)),
		DueDate:      coerceDate(value(get, ColDueDate)),
		CreatedAt:    coerceDate(value(get, ColCreatedAt)),
		ModifiedAt:   coerceDate(value(get, ColModifiedAt)),
		CancelledAt:  coerceDate(value(get, ColCancelledAt)),
	}

	if raw, ok := get(ColRefID); ok {
		if id := coerceInt(raw); id != 0 {
			tx.RefID = &id
		}
	}
	if raw, ok := get(ColCancelled); ok {
		tx.Cancelled = isCancelled(raw)
	}
	return tx
}

func value(get func(string) (any, bool), canon string) any {
	v, _ := get(canon)
	return v
}

func hasColumn(index map[string]string, canon string) bool {
	_, ok := index[canon]
	return ok
}

func canonical(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func isCancelled(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case int, int32, int64:
		return coerceInt(val) == 1
	default:
		_, ok := cancelledValues[canonical(coerceString(v))]
		return ok
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		return val.Format("2006-01-02")
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case bool:
		if val {
			return "1"
		}
		return "0"
	default:
		return ""
	}
}

// coerceFloat defaults unparseable or absent values to zero.
func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case nil:
		return 0
	case float64:
		return val
	case float32:
		return float64(val)
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(val), ",", "")
		s = strings.TrimPrefix(s, "$")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	case []byte:
		return coerceFloat(string(val))
	default:
		return 0
	}
}

func coerceInt(v any) int64 {
	switch val := v.(type) {
	case nil:
		return 0
	case int64:
		return val
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case float64:
		return int64(val)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err != nil {
			return 0
		}
		return i
	case []byte:
		return coerceInt(string(val))
	default:
		return 0
	}
}

// coerceDate returns nil for unparseable values; a missing date narrows
// the affected computation instead of failing the run.
func coerceDate(v any) *time.Time {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		if val.IsZero() {
			return nil
		}
		d := val
		return &d
	case *time.Time:
		return val
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return nil
		}
		for _, layout := range dateLayouts {
			if d, err := time.Parse(layout, s); err == nil {
				return &d
			}
		}
		return nil
	default:
		return nil
	}
}

// IsMissing reports whether a raw cell counts as absent for the
// per-column completeness report.
func IsMissing(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	case []byte:
		return strings.TrimSpace(string(val)) == ""
	default:
		return false
	}
}
