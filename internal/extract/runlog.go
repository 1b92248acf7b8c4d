package extract

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/carteraops/cartera/internal/pipeline"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PipelineRun is the persisted record of one run: input and finding
// counts plus the serialized audit summary.
type PipelineRun struct {
	ID            int64          `gorm:"primaryKey"`
	RanAt         time.Time      `gorm:"index"`
	SourceTable   string         `gorm:"size:128"`
	RowsRead      int
	Transactions  int
	OpenCharges   int
	AuditFindings int
	Degraded      bool
	Summary       datatypes.JSON
}

func (PipelineRun) TableName() string { return "pipeline_runs" }

// RunLog records completed runs.
type RunLog struct {
	db    *gorm.DB
	genID *snowflake.Node
	log   *zap.Logger
}

type RunLogParams struct {
	fx.In

	DB    *gorm.DB
	GenID *snowflake.Node
	Log   *zap.Logger
}

func NewRunLog(p RunLogParams) (*RunLog, error) {
	if err := p.DB.AutoMigrate(&PipelineRun{}); err != nil {
		return nil, err
	}
	return &RunLog{db: p.DB, genID: p.GenID, log: p.Log.Named("extract.runlog")}, nil
}

// Record persists the outcome of a completed run.
func (l *RunLog) Record(ctx context.Context, sourceTable string, rowsRead int, res *pipeline.Result) error {
	summary, err := json.Marshal(res.Audit.Summary)
	if err != nil {
		return err
	}

	open := 0
	for _, inv := range res.Balances.Invoices {
		if inv.Open() {
			open++
		}
	}

	run := PipelineRun{
		ID:            l.genID.Generate().Int64(),
		RanAt:         res.RunAt,
		SourceTable:   sourceTable,
		RowsRead:      rowsRead,
		Transactions:  len(res.Transactions),
		OpenCharges:   open,
		AuditFindings: res.Audit.Summary.TotalFindings,
		Degraded:      res.Balances.Degraded,
		Summary:       datatypes.JSON(summary),
	}
	if err := l.db.WithContext(ctx).Create(&run).Error; err != nil {
		return err
	}

	l.log.Info("pipeline run recorded",
		zap.Int64("run_id", run.ID),
		zap.Int("rows_read", rowsRead),
		zap.Int("audit_findings", run.AuditFindings),
	)
	return nil
}

// Recent lists the latest runs, newest first.
func (l *RunLog) Recent(ctx context.Context, limit int) ([]PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []PipelineRun
	err := l.db.WithContext(ctx).
		Order("ran_at DESC").
		Limit(limit).
		Find(&runs).Error
	return runs, err
}
