package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/openclaw/internal/domain"
)

type sendMessageRequest struct {
	SenderID      string          `json:"sender_id" binding:"required"`
	SenderType    domain.ActorType `json:"sender_type" binding:"required"`
	RecipientID   string          `json:"recipient_id" binding:"required"`
	RecipientType domain.ActorType `json:"recipient_type" binding:"required"`
	TaskID        *int64          `json:"task_id"`
	Content       string          `json:"content" binding:"required"`
}

func (s *Server) sendMessage(c *gin.Context) {
	var body sendMessageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	m, err := s.messages.Send(c.Request.Context(), c.Param("id"), body.SenderID, body.SenderType,
		body.RecipientID, body.RecipientType, body.TaskID, body.Content)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (s *Server) agentInbox(c *gin.Context) {
	unprocessedOnly := c.Query("unprocessed") == "true"
	msgs, err := s.messages.Inbox(c.Request.Context(), c.Param("id"), unprocessedOnly)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
