// Package extract reads the raw receivables snapshot out of the
// database and records pipeline runs.
package extract

import (
	"context"
	"fmt"

	"github.com/carteraops/cartera/internal/normalizer"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Reader pulls the full snapshot table. The reader stays schema
// agnostic: whatever columns exist come back as-is and the normalizer
// decides what they mean.
type Reader struct {
	db  *gorm.DB
	log *zap.Logger
}

type ReaderParams struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

func NewReader(p ReaderParams) *Reader {
	return &Reader{db: p.DB, log: p.Log.Named("extract.reader")}
}

// Snapshot reads every row of the source table preserving column
// order.
func (r *Reader) Snapshot(ctx context.Context, table string) (normalizer.Table, error) {
	rows, err := r.db.WithContext(ctx).Raw(fmt.Sprintf("SELECT * FROM %q", table)).Rows()
	if err != nil {
		return normalizer.Table{}, fmt.Errorf("read snapshot %q: %w", table, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return normalizer.Table{}, err
	}

	out := normalizer.Table{Columns: columns}
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return normalizer.Table{}, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return normalizer.Table{}, err
	}

	r.log.Info("snapshot read",
		zap.String("table", table),
		zap.Int("rows", len(out.Rows)),
		zap.Int("columns", len(columns)),
	)
	return out, nil
}
