package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openclaw/openclaw/internal/domain"
)

func TestCanTransitionAllowsTheDocumentedGraph(t *testing.T) {
	cases := []struct {
		from, to domain.TaskStatus
		want     bool
	}{
		{domain.TaskStatusTodo, domain.TaskStatusInProgress, true},
		{domain.TaskStatusTodo, domain.TaskStatusCancelled, true},
		{domain.TaskStatusTodo, domain.TaskStatusDone, false},
		{domain.TaskStatusInProgress, domain.TaskStatusInReview, true},
		{domain.TaskStatusInProgress, domain.TaskStatusTodo, true},
		{domain.TaskStatusInReview, domain.TaskStatusInApproval, true},
		{domain.TaskStatusInReview, domain.TaskStatusInProgress, true},
		{domain.TaskStatusInApproval, domain.TaskStatusMerging, true},
		{domain.TaskStatusInApproval, domain.TaskStatusInProgress, true},
		{domain.TaskStatusMerging, domain.TaskStatusDone, true},
		{domain.TaskStatusMerging, domain.TaskStatusInProgress, true},
		{domain.TaskStatusMerging, domain.TaskStatusCancelled, false},
		{domain.TaskStatusDone, domain.TaskStatusInProgress, false},
		{domain.TaskStatusCancelled, domain.TaskStatusTodo, false},
	}
	for _, c := range cases {
		got := domain.CanTransition(c.from, c.to)
		assert.Equalf(t, c.want, got, "CanTransition(%s, %s)", c.from, c.to)
	}
}
