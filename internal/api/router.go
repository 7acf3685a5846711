package api

func (s *Server) registerRoutes() {
	r := s.engine

	r.POST("/orgs", s.createOrganization)
	r.POST("/orgs/:id/teams", s.createTeam)
	r.POST("/teams/:id/agents", s.createAgent)
	r.POST("/teams/:id/repos", s.createRepository)
	r.GET("/teams/:id/agents", s.listAgents)

	r.POST("/teams/:id/tasks", s.createTask)
	r.POST("/teams/:id/tasks/batch", s.batchCreateTasks)
	r.GET("/teams/:id/tasks", s.listTasks)
	r.PATCH("/tasks/:id", s.updateTask)
	r.POST("/tasks/:id/status", s.changeTaskStatus)
	r.POST("/tasks/:id/assign", s.assignTask)
	r.GET("/tasks/:id", s.getTask)
	r.GET("/tasks/:id/events", s.getTaskEvents)
	r.POST("/tasks/:id/context", s.saveTaskContext)
	r.GET("/tasks/:id/context", s.readTaskContext)

	r.POST("/teams/:id/messages", s.sendMessage)
	r.GET("/agents/:id/inbox", s.agentInbox)

	r.POST("/sessions/start", s.startSession)
	r.POST("/sessions/:id/usage", s.recordSessionUsage)
	r.POST("/sessions/:id/end", s.endSession)
	r.GET("/agents/:id/budget", s.agentBudget)
	r.GET("/teams/:id/costs", s.teamCosts)

	r.POST("/human-requests", s.createHumanRequest)
	r.POST("/human-requests/:id/respond", s.respondHumanRequest)
	r.GET("/teams/:id/human-requests", s.listHumanRequests)

	r.POST("/tasks/:id/reviews", s.requestReview)
	r.POST("/reviews/:id/comments", s.addReviewComment)
	r.POST("/reviews/:id/verdict", s.submitReviewVerdict)
	r.POST("/tasks/:id/approve", s.approveTask)
	r.POST("/tasks/:id/reject", s.rejectTask)
	r.GET("/tasks/:id/merge-status", s.mergeStatus)
	r.POST("/tasks/:id/merge", s.createMergeJob)
	r.POST("/tasks/:id/push", s.pushTaskBranch)
	r.POST("/tasks/:id/pr", s.createPullRequest)

	r.POST("/agents/:id/run", s.runAgent)
}
