package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/openclaw/internal/runner"
)

type runAgentRequest struct {
	TaskID  *int64 `json:"task_id"`
	Prompt  string `json:"prompt"`
	Adapter string `json:"adapter"`
}

func (s *Server) runAgent(c *gin.Context) {
	var body runAgentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	result, err := s.runner.Run(c.Request.Context(), c.Param("id"), body.TaskID, runner.Options{
		AdapterOverride: body.Adapter,
		RawPrompt:       body.Prompt,
	})
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
