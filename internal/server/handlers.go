package server

import (
	"net/http"

	"github.com/carteraops/cartera/internal/pipeline"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func (s *Server) TriggerRun(c *gin.Context) {
	res, err := s.Refresh(c.Request.Context())
	if err != nil {
		s.log.Error("pipeline refresh failed", zap.Error(err))
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ran_at":         res.RunAt,
		"transactions":   len(res.Transactions),
		"audit_findings": res.Audit.Summary.TotalFindings,
		"degraded":       res.Balances.Degraded,
	})
}

func (s *Server) ListRuns(c *gin.Context) {
	runs, err := s.runlog.Recent(c.Request.Context(), 20)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) GetKPIs(c *gin.Context) {
	res, ok := s.store.Latest()
	if !ok {
		AbortWithError(c, ErrNoRunAvailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"kpis": res.KPIs})
}

func (s *Server) GetBalances(c *gin.Context) {
	res, ok := s.store.Latest()
	if !ok {
		AbortWithError(c, ErrNoRunAvailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"degraded": res.Balances.Degraded,
		"invoices": res.Balances.Invoices,
	})
}

func (s *Server) GetLedger(c *gin.Context) {
	res, ok := s.store.Latest()
	if !ok {
		AbortWithError(c, ErrNoRunAvailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ledger": res.Ledger})
}

func (s *Server) GetCycles(c *gin.Context) {
	res, ok := s.store.Latest()
	if !ok {
		AbortWithError(c, ErrNoRunAvailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cycles": res.Cycles})
}

func (s *Server) GetConcentration(c *gin.Context) {
	res, ok := s.store.Latest()
	if !ok {
		AbortWithError(c, ErrNoRunAvailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"concentration": res.Concentration})
}

func (s *Server) GetCredit(c *gin.Context) {
	res, ok := s.store.Latest()
	if !ok {
		AbortWithError(c, ErrNoRunAvailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credit": res.Credit})
}

func (s *Server) GetDelinquency(c *gin.Context) {
	res, ok := s.store.Latest()
	if !ok {
		AbortWithError(c, ErrNoRunAvailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{"delinquency": res.Delinquency})
}

func (s *Server) GetAudit(c *gin.Context) {
	res, ok := s.store.Latest()
	if !ok {
		AbortWithError(c, ErrNoRunAvailable)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"summary":      res.Audit.Summary,
		"data_quality": res.Audit.DataQuality,
	})
}

// ListTables returns the names of every renderable table.
func (s *Server) ListTables(c *gin.Context) {
	res, ok := s.store.Latest()
	if !ok {
		AbortWithError(c, ErrNoRunAvailable)
		return
	}
	names := make([]string, 0)
	for _, t := range res.Tables() {
		names = append(names, t.Name)
	}
	c.JSON(http.StatusOK, gin.H{"tables": names})
}

// GetTable serves one rendered table by name. Rendering walks every
// result row, so rendered tables are cached until the next refresh.
func (s *Server) GetTable(c *gin.Context) {
	name := c.Param("name")
	if t, ok := s.tables.Get(name); ok {
		writeTable(c, t)
		return
	}

	res, ok := s.store.Latest()
	if !ok {
		AbortWithError(c, ErrNoRunAvailable)
		return
	}
	for _, t := range res.Tables() {
		if t.Name == name {
			s.tables.Set(name, t, tableCacheTTL)
			writeTable(c, t)
			return
		}
	}
	AbortWithError(c, ErrTableNotFound)
}

func writeTable(c *gin.Context, t pipeline.Table) {
	c.JSON(http.StatusOK, gin.H{
		"name":   t.Name,
		"header": t.Header,
		"rows":   tableRows(t),
	})
}

func tableRows(t pipeline.Table) [][]string {
	if t.Rows == nil {
		return [][]string{}
	}
	return t.Rows
}
