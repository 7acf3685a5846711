package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/openclaw/internal/apperrors"
	"github.com/openclaw/openclaw/internal/domain"
	"github.com/openclaw/openclaw/internal/eventlog"
	"github.com/openclaw/openclaw/internal/store"
	"github.com/openclaw/openclaw/internal/task"
)

func parseTaskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "invalid task id")
		return 0, false
	}
	return id, true
}

type taskDraftRequest struct {
	Title            string              `json:"title" binding:"required"`
	Description      string              `json:"description"`
	Priority         domain.TaskPriority `json:"priority"`
	DRIID            string              `json:"dri_id"`
	AssigneeID       string              `json:"assignee_id"`
	RepoIDs          []string            `json:"repo_ids"`
	Tags             []string            `json:"tags"`
	DependsOn        []int64             `json:"depends_on"`
	DependsOnIndices []int               `json:"depends_on_indices"`
}

func (r taskDraftRequest) toDraft() task.Draft {
	return task.Draft{
		Title: r.Title, Description: r.Description, Priority: r.Priority,
		DRIID: r.DRIID, AssigneeID: r.AssigneeID, RepoIDs: r.RepoIDs, Tags: r.Tags,
		DependsOn: r.DependsOn, DependsOnIndices: r.DependsOnIndices,
	}
}

func (s *Server) createTask(c *gin.Context) {
	var body taskDraftRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	t, err := s.tasks.CreateTask(c.Request.Context(), c.Param("id"), body.toDraft())
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) batchCreateTasks(c *gin.Context) {
	var body struct {
		Tasks []taskDraftRequest `json:"tasks" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	drafts := make([]task.Draft, len(body.Tasks))
	for i, d := range body.Tasks {
		drafts[i] = d.toDraft()
	}
	tasks, err := s.tasks.BatchCreateTasks(c.Request.Context(), c.Param("id"), drafts)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (s *Server) listTasks(c *gin.Context) {
	filter := store.TaskFilter{TeamID: c.Param("id")}
	if statusParam := c.Query("status"); statusParam != "" {
		status := domain.TaskStatus(statusParam)
		filter.Status = &status
	}
	if assignee := c.Query("assignee_id"); assignee != "" {
		filter.AssigneeID = &assignee
	}
	tasks, err := s.tasks.ListTasks(c.Request.Context(), filter)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (s *Server) getTask(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	t, err := s.tasks.GetTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type updateTaskRequest struct {
	Title       *string              `json:"title"`
	Description *string              `json:"description"`
	Priority    *domain.TaskPriority `json:"priority"`
	Tags        []string             `json:"tags"`
	RepoIDs     []string             `json:"repo_ids"`
}

func (s *Server) updateTask(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	var body updateTaskRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	t, err := s.tasks.UpdateFields(c.Request.Context(), id, func(t *domain.Task) {
		if body.Title != nil {
			t.Title = *body.Title
		}
		if body.Description != nil {
			t.Description = *body.Description
		}
		if body.Priority != nil {
			t.Priority = *body.Priority
		}
		if body.Tags != nil {
			t.Tags = body.Tags
		}
		if body.RepoIDs != nil {
			t.RepoIDs = body.RepoIDs
		}
	})
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type changeTaskStatusRequest struct {
	Status  domain.TaskStatus `json:"status" binding:"required"`
	ActorID string            `json:"actor_id"`
}

func (s *Server) changeTaskStatus(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	var body changeTaskStatusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	t, err := s.tasks.ChangeStatus(c.Request.Context(), id, body.Status, body.ActorID)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type assignTaskRequest struct {
	AssigneeID string `json:"assignee_id" binding:"required"`
}

func (s *Server) assignTask(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	var body assignTaskRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	t, err := s.tasks.Assign(c.Request.Context(), id, body.AssigneeID)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) getTaskEvents(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	events, err := s.events.ListByStream(c.Request.Context(), eventlog.TaskStream(id))
	if err != nil {
		respondError(c, s.log, apperrors.Wrap(apperrors.KindNotFound, "task events", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type saveContextRequest struct {
	Key   string `json:"key" binding:"required"`
	Value string `json:"value"`
}

func (s *Server) saveTaskContext(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	var body saveContextRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	t, err := s.tasks.SaveContext(c.Request.Context(), id, map[string]string{body.Key: body.Value})
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) readTaskContext(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	ctx, err := s.tasks.ReadContext(c.Request.Context(), id)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"context": ctx})
}
