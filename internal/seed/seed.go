// Package seed creates a small demo snapshot so the pipeline can run
// against an empty database out of the box.
package seed

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// EnsureDemoSnapshot creates the source table with a handful of
// charges and payments when it does not exist yet. An existing table
// is left untouched.
func EnsureDemoSnapshot(db *gorm.DB, table string) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	if db.Migrator().HasTable(table) {
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		create := fmt.Sprintf(`CREATE TABLE %q (
			DOCTO_CC_ID INTEGER,
			DOCTO_CC_ACR_ID INTEGER,
			TIPO_IMPTE TEXT,
			NOMBRE_CLIENTE TEXT,
			ESTATUS_CLIENTE TEXT,
			TIPO_CLIENTE TEXT,
			VENDEDOR TEXT,
			MONEDA TEXT,
			CONCEPTO TEXT,
			DESCRIPCION TEXT,
			FECHA_EMISION TEXT,
			FECHA_VENCIMIENTO TEXT,
			IMPORTE REAL,
			IMPUESTO REAL,
			CANCELADO TEXT,
			LIMITE_CREDITO REAL
		)`, table)
		if err := tx.Exec(create).Error; err != nil {
			return err
		}

		insert := fmt.Sprintf(`INSERT INTO %q (
			DOCTO_CC_ID, DOCTO_CC_ACR_ID, TIPO_IMPTE, NOMBRE_CLIENTE,
			ESTATUS_CLIENTE, TIPO_CLIENTE, VENDEDOR, MONEDA, CONCEPTO,
			DESCRIPCION, FECHA_EMISION, FECHA_VENCIMIENTO, IMPORTE,
			IMPUESTO, CANCELADO, LIMITE_CREDITO
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table)

		rows := [][]any{
			{1001, nil, "C", "Comercial del Norte", "ACTIVO", "MAYOREO", "Ana Ruiz", "MXN", "Venta de contado", "Factura A-1001", "2026-05-10", "2026-06-09", 10000.0, 1600.0, "N", 50000.0},
			{1002, 1001, "R", "Comercial del Norte", "ACTIVO", "MAYOREO", "", "MXN", "Cobro", "Pago A-1001", "2026-06-01", nil, 11600.0, 0.0, "N", 50000.0},
			{1003, nil, "C", "Distribuidora Pacifico", "ACTIVO", "MENUDEO", "Luis Vega", "MXN", "Venta a credito", "Factura A-1003", "2026-04-01", "2026-05-01", 25000.0, 4000.0, "N", 30000.0},
			{1004, 1003, "R", "Distribuidora Pacifico", "ACTIVO", "MENUDEO", "", "MXN", "Cobro", "Pago parcial", "2026-05-20", nil, 10000.0, 0.0, "N", 30000.0},
			{1005, nil, "C", "Servicios Delta", "SUSPENDIDO", "", "", "MXN", "Venta a credito", "Factura A-1005", "2026-03-15", "2026-04-14", 8000.0, 1280.0, "N", 0.0},
			{1006, nil, "A", "Servicios Delta", "SUSPENDIDO", "", "", "MXN", "Anticipo", "Anticipo sin aplicar", "2026-06-10", nil, 2000.0, 0.0, "N", 0.0},
			{1007, nil, "C", "Comercial del Norte", "ACTIVO", "MAYOREO", "Ana Ruiz", "MXN", "Venta a credito", "Factura cancelada", "2026-06-15", "2026-07-15", 5000.0, 800.0, "S", 50000.0},
		}
		for _, row := range rows {
			if err := tx.Exec(insert, row...).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
