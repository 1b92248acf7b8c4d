package pipeline

import (
	"fmt"
	"strconv"
	"time"

	"github.com/carteraops/cartera/internal/aging"
	"github.com/carteraops/cartera/internal/analytics"
)

// Table is the flat render of one output: a name, a header row and
// string cells. Exporters and the API serve these without knowing the
// underlying types.
type Table struct {
	Name   string
	Header []string
	Rows   [][]string
}

// Table names, used as CSV file names and API path segments.
const (
	TableInvoiceBalances = "saldos_factura"
	TableClientLedger    = "saldos_cliente"
	TableChargeCycles    = "ciclos_cartera"
	TableKPIs            = "kpis"
	TableConcentration   = "concentracion_clientes"
	TableCredit          = "utilizacion_credito"
	TableDelinquency     = "morosidad_clientes"
	TableAuditSummary    = "auditoria_resumen"
	TableAuditFindings   = "auditoria_hallazgos"
	TableDataQuality     = "calidad_datos"
	TableAgingBuckets    = "distribucion_antiguedad"
	TableClientAging     = "antiguedad_clientes"
	TableCurrentOverdue  = "vigente_vs_vencido"
	TableBySalesperson   = "cartera_por_vendedor"
	TableByConcept       = "cartera_por_concepto"
	TableSpecial         = "documentos_especiales"
	TableCollection      = "distribucion_recaudo"
)

// Tables renders every populated output. Empty outputs still render
// with their header so a run always yields the full set of files.
func (r *Result) Tables() []Table {
	tables := []Table{
		r.invoiceBalancesTable(),
		r.clientLedgerTable(),
		r.chargeCyclesTable(),
		r.kpisTable(),
		r.concentrationTable(),
		r.creditTable(),
		r.delinquencyTable(),
		r.auditSummaryTable(),
		r.auditFindingsTable(),
		r.dataQualityTable(),
		r.agingBucketsTable(),
		r.clientAgingTable(),
		r.currentOverdueTable(),
		r.groupTable(TableBySalesperson, "VENDEDOR", r.BySalesperson),
		r.groupTable(TableByConcept, "CONCEPTO", r.ByConcept),
		r.specialTable(),
		r.collectionTable(),
	}
	return tables
}

func (r *Result) invoiceBalancesTable() Table {
	t := Table{
		Name: TableInvoiceBalances,
		Header: []string{
			"DOCTO_CC_ID", "NOMBRE_CLIENTE", "ESTATUS_CLIENTE", "MONEDA",
			"FECHA_EMISION", "FECHA_VENCIMIENTO", "MONTO_CARGO", "MONTO_ABONOS",
			"SALDO_FACTURA", "SOBREPAGO",
		},
	}
	for _, inv := range r.Balances.Invoices {
		t.Rows = append(t.Rows, []string{
			formatID(inv.ChargeID), inv.Client, inv.ClientStatus, inv.Currency,
			formatDate(inv.IssueDate), formatDate(inv.DueDate),
			formatMoney(inv.ChargeAmount), formatMoney(inv.PaymentsAmount),
			formatMoney(inv.Balance), formatBool(inv.Overpaid),
		})
	}
	return t
}

func (r *Result) clientLedgerTable() Table {
	t := Table{
		Name: TableClientLedger,
		Header: []string{
			"DOCTO_CC_ID", "NOMBRE_CLIENTE", "TIPO_IMPTE", "FECHA_EMISION",
			"IMPORTE", "IMPUESTO", "SALDO_CLIENTE",
		},
	}
	for _, line := range r.Ledger {
		t.Rows = append(t.Rows, []string{
			formatID(line.Tx.ID), line.Tx.Client, string(line.Tx.Kind),
			formatDate(line.Tx.IssueDate), formatMoney(line.Tx.Amount),
			formatMoney(line.Tx.Tax), formatMoney(line.RunningBalance),
		})
	}
	return t
}

func (r *Result) chargeCyclesTable() Table {
	t := Table{
		Name: TableChargeCycles,
		Header: []string{
			"DOCTO_CC_ID", "NOMBRE_CLIENTE", "MONEDA", "ESTADO", "SALDO_FACTURA",
			"DELTA_MORA", "CATEGORIA_MORA", "DELTA_RECAUDO", "CATEGORIA_RECAUDO",
		},
	}
	for _, cy := range r.Cycles {
		t.Rows = append(t.Rows, []string{
			formatID(cy.ChargeID), cy.Client, cy.Currency, string(cy.State),
			formatMoney(cy.Balance), formatDays(cy.DaysOverdue), cy.OverdueCategory,
			formatDays(cy.DaysToCollect), cy.CollectionCategory,
		})
	}
	return t
}

func (r *Result) kpisTable() Table {
	t := Table{
		Name:   TableKPIs,
		Header: []string{"KPI", "VALOR", "UNIDAD", "INTERPRETACION"},
	}
	for _, rec := range r.KPIs {
		t.Rows = append(t.Rows, []string{
			rec.KPI, formatFloat(rec.Value, 1), rec.Unit, rec.Interpretation,
		})
	}
	return t
}

func (r *Result) concentrationTable() Table {
	t := Table{
		Name: TableConcentration,
		Header: []string{
			"NOMBRE_CLIENTE", "SALDO", "PCT_DEL_TOTAL", "PCT_ACUMULADO", "CLASIFICACION",
		},
	}
	for _, row := range r.Concentration {
		t.Rows = append(t.Rows, []string{
			row.Client, formatMoney(row.Balance), formatMoney(row.PctOfTotal),
			formatMoney(row.PctCumulative), row.Class,
		})
	}
	return t
}

func (r *Result) creditTable() Table {
	t := Table{
		Name: TableCredit,
		Header: []string{
			"NOMBRE_CLIENTE", "SALDO", "LIMITE_CREDITO", "UTILIZACION_PCT",
			"DISPONIBLE", "ALERTA",
		},
	}
	for _, row := range r.Credit {
		pct := ""
		if row.UtilizationPct != nil {
			pct = formatFloat(*row.UtilizationPct, 1)
		}
		t.Rows = append(t.Rows, []string{
			row.Client, formatMoney(row.Balance), formatMoney(row.CreditLimit),
			pct, formatMoney(row.Available), row.Alert,
		})
	}
	return t
}

func (r *Result) delinquencyTable() Table {
	t := Table{
		Name: TableDelinquency,
		Header: []string{
			"NOMBRE_CLIENTE", "SALDO_TOTAL", "SALDO_VIGENTE", "SALDO_VENCIDO",
			"PCT_VENCIDO", "NUM_FACTURAS", "NUM_VENCIDAS", "DIAS_VENCIDO_MAX",
		},
	}
	for _, row := range r.Delinquency {
		t.Rows = append(t.Rows, []string{
			row.Client, formatMoney(row.TotalBalance), formatMoney(row.CurrentAmount),
			formatMoney(row.OverdueAmount), formatFloat(row.OverduePct, 1),
			formatInt(row.NumInvoices), formatInt(row.NumOverdue), formatInt(row.MaxDaysLate),
		})
	}
	return t
}

func (r *Result) auditSummaryTable() Table {
	s := r.Audit.Summary
	return Table{
		Name: TableAuditSummary,
		Header: []string{
			"FECHA_AUDITORIA", "TOTAL_REGISTROS", "IMPORTES_ATIPICOS",
			"RECAUDOS_ATIPICOS", "MORAS_ATIPICAS", "SIN_TIPO_CLIENTE",
			"SIN_VENDEDOR", "CANCELADOS", "SALDOS_DEGRADADOS", "TOTAL_HALLAZGOS",
		},
		Rows: [][]string{{
			s.GeneratedAt.Format(time.RFC3339), formatInt(s.TotalRows),
			formatInt(s.AtypicalAmounts), formatInt(s.AtypicalCollection),
			formatInt(s.AtypicalOverdue), formatInt(s.MissingClientType),
			formatInt(s.MissingSalesperson), formatInt(s.Cancelled),
			formatBool(s.DegradedLinkage), formatInt(s.TotalFindings),
		}},
	}
}

// auditFindingsTable flattens every finding list into one table keyed
// by the reason column.
func (r *Result) auditFindingsTable() Table {
	t := Table{
		Name:   TableAuditFindings,
		Header: []string{"DOCTO_CC_ID", "NOMBRE_CLIENTE", "DETALLE", "MOTIVO"},
	}
	for _, f := range r.Audit.AtypicalAmounts {
		t.Rows = append(t.Rows, []string{
			formatID(f.TxID), f.Client,
			fmt.Sprintf("$%s (z=%s)", formatMoney(f.Amount), formatFloat(f.ZScore, 4)),
			f.Reason,
		})
	}
	for _, f := range r.Audit.AtypicalCollection {
		t.Rows = append(t.Rows, []string{
			formatID(f.ChargeID), f.Client,
			fmt.Sprintf("%d dias (z=%s)", f.Days, formatFloat(f.ZScore, 4)),
			f.Reason,
		})
	}
	for _, f := range r.Audit.AtypicalOverdue {
		t.Rows = append(t.Rows, []string{
			formatID(f.ChargeID), f.Client,
			fmt.Sprintf("%d dias (z=%s)", f.Days, formatFloat(f.ZScore, 4)),
			f.Reason,
		})
	}
	for _, f := range r.Audit.MissingClientType {
		t.Rows = append(t.Rows, []string{formatID(f.TxID), f.Client, "", f.Reason})
	}
	for _, f := range r.Audit.MissingSalesperson {
		t.Rows = append(t.Rows, []string{formatID(f.TxID), f.Client, "", f.Reason})
	}
	for _, f := range r.Audit.Cancelled {
		t.Rows = append(t.Rows, []string{
			formatID(f.TxID), f.Client, formatDays(f.DaysToCancellation), f.Reason,
		})
	}
	return t
}

func (r *Result) dataQualityTable() Table {
	t := Table{
		Name: TableDataQuality,
		Header: []string{
			"COLUMNA", "TOTAL_REGISTROS", "NULOS", "PCT_NULOS", "VALORES_UNICOS",
		},
	}
	for _, q := range r.Audit.DataQuality {
		t.Rows = append(t.Rows, []string{
			q.Column, formatInt(q.TotalRows), formatInt(q.Missing),
			formatMoney(q.PctMissing), formatInt(q.Distinct),
		})
	}
	return t
}

func (r *Result) agingBucketsTable() Table {
	t := Table{
		Name: TableAgingBuckets,
		Header: []string{
			"MONEDA", "RANGO_ANTIGUEDAD", "NUM_DOCUMENTOS", "IMPORTE_TOTAL", "PCT_DEL_TOTAL",
		},
	}
	for _, b := range r.AgingBuckets {
		t.Rows = append(t.Rows, []string{
			b.Currency, b.RangeLabel, formatInt(b.NumDocuments),
			formatMoney(b.TotalAmount), formatMoney(b.PctOfTotal),
		})
	}
	return t
}

// clientAgingTable carries dynamic per-range columns, named after the
// configured buckets.
func (r *Result) clientAgingTable() Table {
	rangeCols := make([]string, 0)
	for _, rg := range r.agingRanges() {
		rangeCols = append(rangeCols, rg.PivotColumn())
	}

	header := []string{"MONEDA", "NOMBRE_CLIENTE", "ESTATUS_CLIENTE", "FACTURAS_PAGADAS", "FACTURAS_VIGENTES"}
	header = append(header, rangeCols...)
	header = append(header, "TOTAL_CARGOS", "TOTAL_ABONOS", "SALDO_PENDIENTE")

	t := Table{Name: TableClientAging, Header: header}
	for _, row := range r.ClientAging {
		cells := []string{
			row.Currency, row.Client, row.ClientStatus,
			formatInt(row.PaidInvoices), formatInt(row.CurrentOpen),
		}
		for _, col := range rangeCols {
			cells = append(cells, formatInt(row.OverdueByRange[col]))
		}
		cells = append(cells,
			formatMoney(row.TotalCharges), formatMoney(row.TotalPayments),
			formatMoney(row.Outstanding),
		)
		t.Rows = append(t.Rows, cells)
	}
	return t
}

// agingRanges falls back to the defaults so the header stays stable
// even for an empty run.
func (r *Result) agingRanges() []aging.Range {
	if len(r.AgingRanges) > 0 {
		return r.AgingRanges
	}
	return aging.DefaultOverdueRanges()
}

func (r *Result) currentOverdueTable() Table {
	t := Table{
		Name: TableCurrentOverdue,
		Header: []string{
			"MONEDA", "FACTURAS_VIGENTES", "IMPORTE_VIGENTE",
			"FACTURAS_VENCIDAS", "IMPORTE_VENCIDO", "PCT_VENCIDO",
		},
	}
	for _, row := range r.CurrentOverdue {
		t.Rows = append(t.Rows, []string{
			row.Currency, formatInt(row.CurrentCount), formatMoney(row.CurrentAmount),
			formatInt(row.OverdueCount), formatMoney(row.OverdueAmount),
			formatMoney(row.OverduePct),
		})
	}
	return t
}

func (r *Result) groupTable(name, groupCol string, rows []analytics.GroupSummary) Table {
	t := Table{
		Name: name,
		Header: []string{
			"MONEDA", groupCol, "NUM_FACTURAS", "IMPORTE_FACTURADO",
			"SALDO_PENDIENTE", "FACTURAS_VENCIDAS",
		},
	}
	for _, row := range rows {
		t.Rows = append(t.Rows, []string{
			row.Currency, row.Group, formatInt(row.NumInvoices),
			formatMoney(row.TotalBilled), formatMoney(row.Outstanding),
			formatInt(row.OverdueCount),
		})
	}
	return t
}

func (r *Result) specialTable() Table {
	t := Table{
		Name: TableSpecial,
		Header: []string{
			"MONEDA", "TIPO_REGISTRO", "CONCEPTO", "NUM_REGISTROS",
			"IMPORTE_TOTAL", "IMPUESTO_TOTAL", "MONTO_TOTAL",
		},
	}
	for _, s := range r.Special {
		t.Rows = append(t.Rows, []string{
			s.Currency, s.RecordType, s.Concept, formatInt(s.NumRecords),
			formatMoney(s.TotalAmount), formatMoney(s.TotalTax), formatMoney(s.GrandTotal),
		})
	}
	return t
}

func (r *Result) collectionTable() Table {
	t := Table{
		Name: TableCollection,
		Header: []string{
			"MONEDA", "CATEGORIA_RECAUDO", "NUM_DOCUMENTOS", "PCT_DEL_TOTAL",
		},
	}
	for _, b := range r.Collection {
		t.Rows = append(t.Rows, []string{
			b.Currency, b.Category, formatInt(b.NumCharges), formatMoney(b.PctOfTotal),
		})
	}
	return t
}

func formatID(id int64) string { return strconv.FormatInt(id, 10) }

func formatInt(v int) string { return strconv.Itoa(v) }

func formatMoney(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func formatBool(b bool) string { return strconv.FormatBool(b) }

func formatFloat(v float64, decimals int) string {
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatDays(d *int) string {
	if d == nil {
		return ""
	}
	return strconv.Itoa(*d)
}
