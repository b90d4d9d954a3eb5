package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"arbsim/internal/export"
	"arbsim/internal/session"
)

type autonomousRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

type backtestRequest struct {
	Scenario string `json:"scenario" binding:"required"`
}

// statusFor maps session errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrBacktestRunning), errors.Is(err, session.ErrAutonomousActive):
		return http.StatusConflict
	case errors.Is(err, session.ErrOpportunityNotFound), errors.Is(err, session.ErrNoBacktest):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"mode":   s.ctrl.Snapshot().Mode,
	})
}

func (s *Server) handleState(c *gin.Context) {
	successResponse(c, http.StatusOK, s.ctrl.Snapshot())
}

func (s *Server) handleOpportunities(c *gin.Context) {
	successResponse(c, http.StatusOK, s.ctrl.Snapshot().Opportunities)
}

func (s *Server) handleTrades(c *gin.Context) {
	successResponse(c, http.StatusOK, s.ctrl.Snapshot().Trades)
}

func (s *Server) handleStats(c *gin.Context) {
	snap := s.ctrl.Snapshot()
	successResponse(c, http.StatusOK, gin.H{
		"equity":        snap.Equity,
		"summary":       snap.Stats,
		"last_backtest": snap.LastBacktest,
	})
}

// handleExecute settles one opportunity from the current scan. A null trade
// means equity is exhausted.
func (s *Server) handleExecute(c *gin.Context) {
	trade, err := s.ctrl.ExecuteOpportunity(c.Param("id"))
	if err != nil {
		errorResponse(c, statusFor(err), err.Error())
		return
	}
	successResponse(c, http.StatusOK, trade)
}

func (s *Server) handleAutonomous(c *gin.Context) {
	var req autonomousRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "enabled is required")
		return
	}
	s.ctrl.SetAutonomous(*req.Enabled)
	successResponse(c, http.StatusOK, gin.H{"autonomous": *req.Enabled})
}

func (s *Server) handleStartBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, http.StatusBadRequest, "scenario is required")
		return
	}
	scenario, err := session.ParseScenario(req.Scenario)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := s.ctrl.RunBacktest(scenario); err != nil {
		errorResponse(c, statusFor(err), err.Error())
		return
	}
	s.logger.Info("Server: backtest requested", "scenario", scenario)
	successResponse(c, http.StatusAccepted, gin.H{"scenario": scenario})
}

func (s *Server) handleCancelBacktest(c *gin.Context) {
	if err := s.ctrl.CancelBacktest(); err != nil {
		errorResponse(c, statusFor(err), err.Error())
		return
	}
	successResponse(c, http.StatusOK, gin.H{"cancelled": true})
}

func (s *Server) handleReset(c *gin.Context) {
	s.ctrl.ResetSession()
	successResponse(c, http.StatusOK, s.ctrl.Snapshot())
}

// handleExport downloads the live history followed by the trades of the
// last finished backtest.
func (s *Server) handleExport(c *gin.Context) {
	snap := s.ctrl.Snapshot()
	trades := snap.Trades
	if snap.LastBacktest != nil {
		trades = append(trades, snap.LastBacktest.Trades...)
	}
	filename := fmt.Sprintf("arbsim-trades-%s.csv", time.Now().UTC().Format("20060102-150405"))

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Status(http.StatusOK)
	if err := export.WriteCSV(c.Writer, trades); err != nil {
		s.logger.Error("Server: export failed", "error", err)
	}
}
