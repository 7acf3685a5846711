package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/openclaw/internal/domain"
)

type createOrgRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

func (s *Server) createOrganization(c *gin.Context) {
	var body createOrgRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	org, err := s.directory.CreateOrganization(c.Request.Context(), body.Name, body.Slug)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

type createTeamRequest struct {
	Name string `json:"name" binding:"required"`
	Slug string `json:"slug" binding:"required"`
}

func (s *Server) createTeam(c *gin.Context) {
	var body createTeamRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	team, err := s.directory.CreateTeam(c.Request.Context(), c.Param("id"), body.Name, body.Slug)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, team)
}

type createAgentRequest struct {
	Name   string             `json:"name" binding:"required"`
	Role   domain.AgentRole   `json:"role" binding:"required"`
	Model  string             `json:"model"`
	Config domain.AgentConfig `json:"config"`
}

func (s *Server) createAgent(c *gin.Context) {
	var body createAgentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	agent, err := s.directory.CreateAgent(c.Request.Context(), c.Param("id"), body.Name, body.Role, body.Model, body.Config)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

func (s *Server) listAgents(c *gin.Context) {
	agents, err := s.directory.ListAgents(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

type createRepoRequest struct {
	Name          string `json:"name" binding:"required"`
	LocalPath     string `json:"local_path" binding:"required"`
	DefaultBranch string `json:"default_branch"`
}

func (s *Server) createRepository(c *gin.Context) {
	var body createRepoRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	if body.DefaultBranch == "" {
		body.DefaultBranch = "main"
	}
	repo, err := s.directory.CreateRepository(c.Request.Context(), c.Param("id"), body.Name, body.LocalPath, body.DefaultBranch)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, repo)
}
