package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/openclaw/internal/domain"
)

type createHumanRequestRequest struct {
	TeamID         string            `json:"team_id" binding:"required"`
	AgentID        string            `json:"agent_id" binding:"required"`
	TaskID         *int64            `json:"task_id"`
	Kind           domain.RequestKind `json:"kind" binding:"required"`
	Question       string            `json:"question" binding:"required"`
	Options        []string          `json:"options"`
	TimeoutMinutes int               `json:"timeout_minutes"`
}

func (s *Server) createHumanRequest(c *gin.Context) {
	var body createHumanRequestRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	req, err := s.humanLoop.CreateRequest(c.Request.Context(), body.TeamID, body.AgentID, body.TaskID,
		body.Kind, body.Question, body.Options, body.TimeoutMinutes)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

type respondHumanRequestRequest struct {
	Response    string `json:"response" binding:"required"`
	RespondedBy string `json:"responded_by"`
}

func (s *Server) respondHumanRequest(c *gin.Context) {
	var body respondHumanRequestRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	req, err := s.humanLoop.Respond(c.Request.Context(), c.Param("id"), body.Response, body.RespondedBy)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (s *Server) listHumanRequests(c *gin.Context) {
	reqs, err := s.humanLoop.ListByTeam(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}
