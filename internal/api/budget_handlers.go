package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type startSessionRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
	TaskID  *int64 `json:"task_id"`
	Model   string `json:"model"`
}

func (s *Server) startSession(c *gin.Context) {
	var body startSessionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	agent, err := s.directory.GetAgent(c.Request.Context(), body.AgentID)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	session, err := s.budgetSvc.StartSession(c.Request.Context(), agent, body.TaskID, body.Model)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type recordUsageRequest struct {
	TokensIn   int64 `json:"tokens_in"`
	TokensOut  int64 `json:"tokens_out"`
	CacheRead  int64 `json:"cache_read"`
	CacheWrite int64 `json:"cache_write"`
}

func (s *Server) recordSessionUsage(c *gin.Context) {
	session, err := s.budgetSvc.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	var body recordUsageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	if err := s.budgetSvc.RecordUsage(c.Request.Context(), session, body.TokensIn, body.TokensOut, body.CacheRead, body.CacheWrite); err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type endSessionRequest struct {
	Error string `json:"error"`
}

func (s *Server) endSession(c *gin.Context) {
	session, err := s.budgetSvc.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	var body endSessionRequest
	_ = c.ShouldBindJSON(&body)
	if err := s.budgetSvc.EndSession(c.Request.Context(), session, body.Error); err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) agentBudget(c *gin.Context) {
	status, err := s.budgetSvc.AgentBudgetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) teamCosts(c *gin.Context) {
	days := 7
	if raw := c.Query("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			days = parsed
		}
	}
	summary, err := s.budgetSvc.CostSummary(c.Request.Context(), c.Param("id"), days)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
