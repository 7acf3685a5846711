package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openclaw/openclaw/internal/domain"
)

type requestReviewRequest struct {
	ReviewerID   string           `json:"reviewer_id"`
	ReviewerType domain.ActorType `json:"reviewer_type"`
}

func (s *Server) requestReview(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	var body requestReviewRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	t, err := s.tasks.GetTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	review, err := s.reviews.RequestReview(c.Request.Context(), t, body.ReviewerID, body.ReviewerType)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

type addCommentRequest struct {
	AuthorID   string           `json:"author_id" binding:"required"`
	AuthorType domain.ActorType `json:"author_type" binding:"required"`
	Content    string           `json:"content" binding:"required"`
	FilePath   string           `json:"file_path"`
	LineNumber *int             `json:"line_number"`
}

func (s *Server) addReviewComment(c *gin.Context) {
	var body addCommentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	comment, err := s.reviews.AddComment(c.Request.Context(), c.Param("id"), body.AuthorID, body.AuthorType,
		body.Content, body.FilePath, body.LineNumber)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, comment)
}

type submitVerdictRequest struct {
	Verdict domain.ReviewVerdict `json:"verdict" binding:"required"`
	Summary string               `json:"summary"`
}

func (s *Server) submitReviewVerdict(c *gin.Context) {
	var body submitVerdictRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	review, err := s.reviews.SubmitVerdict(c.Request.Context(), c.Param("id"), body.Verdict, body.Summary)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

// approveTask and rejectTask are the human-approval-gate endpoints for a task
// sitting in in_approval: approve advances it to merging, reject sends it
// back to in_progress for another pass.
func (s *Server) approveTask(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	t, err := s.tasks.ChangeStatus(c.Request.Context(), id, domain.TaskStatusMerging, "")
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) rejectTask(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	t, err := s.tasks.ChangeStatus(c.Request.Context(), id, domain.TaskStatusInProgress, "")
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (s *Server) mergeStatus(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	status, err := s.reviews.MergeStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

type createMergeJobRequest struct {
	RepoID   string              `json:"repo_id" binding:"required"`
	Strategy domain.MergeStrategy `json:"strategy"`
}

func (s *Server) createMergeJob(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	var body createMergeJobRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	if body.Strategy == "" {
		body.Strategy = domain.MergeStrategyMerge
	}
	t, err := s.tasks.GetTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	job, err := s.reviews.CreateMergeJob(c.Request.Context(), t, body.RepoID, body.Strategy)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

type pushBranchRequest struct {
	RepoID string `json:"repo_id" binding:"required"`
}

func (s *Server) pushTaskBranch(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	var body pushBranchRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	t, err := s.tasks.GetTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	if err := s.reviews.PushBranch(c.Request.Context(), t, body.RepoID); err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pushed": true})
}

type createPRRequest struct {
	RepoID string `json:"repo_id" binding:"required"`
}

func (s *Server) createPullRequest(c *gin.Context) {
	id, ok := parseTaskID(c)
	if !ok {
		return
	}
	var body createPRRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid payload")
		return
	}
	t, err := s.tasks.GetTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	prURL, prNumber, err := s.reviews.CreatePullRequest(c.Request.Context(), t, body.RepoID)
	if err != nil {
		respondError(c, s.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pr_url": prURL, "pr_number": prNumber})
}
