package domain

import "time"

// Organization is the tenant root (§3).
type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Convention is one team-wide rule every agent prompt should surface when
// Active, in declared order.
type Convention struct {
	Key     string `json:"key"`
	Content string `json:"content"`
	Active  bool   `json:"active"`
}

// TeamCaps holds per-team budget caps stored in Team.config. The budget
// service does not read them: it applies an agent's own caps, else the
// platform defaults from config.
type TeamCaps struct {
	DailyCostLimitUSD float64 `json:"daily_cost_limit_usd"`
	TaskCostLimitUSD  float64 `json:"task_cost_limit_usd"`
}

// TeamConfig is Team.config's recognised subkeys (§9): an explicit value
// object for what the core reads, with room for unrecognised data.
type TeamConfig struct {
	Conventions []Convention   `json:"conventions,omitempty"`
	Caps        TeamCaps       `json:"caps"`
	Extra       map[string]any `json:"extra,omitempty"`
}

// Team is a child of Organization (§3).
type Team struct {
	ID     string     `json:"id"`
	OrgID  string     `json:"org_id"`
	Name   string     `json:"name"`
	Slug   string     `json:"slug"`
	Config TeamConfig `json:"config"`
}

// AgentConfig is Agent.config's recognised subkeys (§3, §9).
type AgentConfig struct {
	Adapter           string         `json:"adapter,omitempty"`
	TimeoutSeconds    int            `json:"timeout_seconds,omitempty"`
	MaxOutputPerTurn  int            `json:"max_output_per_turn,omitempty"`
	DailyCostLimitUSD *float64       `json:"daily_cost_limit_usd,omitempty"`
	TaskCostLimitUSD  *float64       `json:"task_cost_limit_usd,omitempty"`
	Extra             map[string]any `json:"extra,omitempty"`
}

// Agent is an autonomous worker belonging to a team (§3).
type Agent struct {
	ID        string      `json:"id"`
	TeamID    string      `json:"team_id"`
	Name      string      `json:"name"`
	Role      AgentRole   `json:"role"`
	Model     string      `json:"model"`
	Status    AgentStatus `json:"status"`
	Config    AgentConfig `json:"config"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Repository is a registered git working tree (§3).
type Repository struct {
	ID            string         `json:"id"`
	TeamID        string         `json:"team_id"`
	Name          string         `json:"name"`
	LocalPath     string         `json:"local_path"`
	DefaultBranch string         `json:"default_branch"`
	Config        map[string]any `json:"config,omitempty"`
}

// TaskMetadata is Task.metadata's recognised subkeys (§3, §9).
type TaskMetadata struct {
	Context  map[string]string `json:"context,omitempty"`
	PRURL    string            `json:"pr_url,omitempty"`
	PRNumber int               `json:"pr_number,omitempty"`
	Extra    map[string]any    `json:"extra,omitempty"`
}

// Task is the unit of work the whole system orbits (§3).
type Task struct {
	ID          int64        `json:"id"`
	TeamID      string       `json:"team_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DRIID       string       `json:"dri_id,omitempty"`
	AssigneeID  string       `json:"assignee_id,omitempty"`
	DependsOn   []int64      `json:"depends_on,omitempty"`
	RepoIDs     []string     `json:"repo_ids,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
	Branch      string       `json:"branch"`
	Metadata    TaskMetadata `json:"metadata"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// Message is an envelope from one actor to another (§3).
type Message struct {
	ID            string     `json:"id"`
	TeamID        string     `json:"team_id"`
	SenderID      string     `json:"sender_id"`
	SenderType    ActorType  `json:"sender_type"`
	RecipientID   string     `json:"recipient_id"`
	RecipientType ActorType  `json:"recipient_type"`
	TaskID        *int64     `json:"task_id,omitempty"`
	Content       string     `json:"content"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	SeenAt        *time.Time `json:"seen_at,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Session is one bounded agent turn with accounted usage (§3).
type Session struct {
	ID         string     `json:"id"`
	AgentID    string     `json:"agent_id"`
	TaskID     *int64     `json:"task_id,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	TokensIn   int64      `json:"tokens_in"`
	TokensOut  int64      `json:"tokens_out"`
	CacheRead  int64      `json:"cache_read"`
	CacheWrite int64      `json:"cache_write"`
	CostUSD    float64    `json:"cost_usd"`
	Model      string     `json:"model"`
	Error      string     `json:"error,omitempty"`
}

// HumanRequest is an agent→human rendezvous (§3).
type HumanRequest struct {
	ID          string             `json:"id"`
	TeamID      string             `json:"team_id"`
	AgentID     string             `json:"agent_id"`
	TaskID      *int64             `json:"task_id,omitempty"`
	Kind        RequestKind        `json:"kind"`
	Question    string             `json:"question"`
	Options     []string           `json:"options,omitempty"`
	Status      HumanRequestStatus `json:"status"`
	Response    string             `json:"response,omitempty"`
	RespondedBy string             `json:"responded_by,omitempty"`
	TimeoutAt   *time.Time         `json:"timeout_at,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	ResolvedAt  *time.Time         `json:"resolved_at,omitempty"`
}

// ReviewComment is a file-anchored or general note on a Review (§3).
type ReviewComment struct {
	ID         string    `json:"id"`
	ReviewID   string    `json:"review_id"`
	FilePath   string    `json:"file_path,omitempty"`
	LineNumber *int      `json:"line_number,omitempty"`
	Content    string    `json:"content"`
	AuthorID   string    `json:"author_id"`
	AuthorType ActorType `json:"author_type"`
	CreatedAt  time.Time `json:"created_at"`
}

// Review is one review attempt on a Task (§3).
type Review struct {
	ID           string          `json:"id"`
	TaskID       int64           `json:"task_id"`
	Attempt      int             `json:"attempt"`
	ReviewerID   string          `json:"reviewer_id,omitempty"`
	ReviewerType ActorType       `json:"reviewer_type"`
	Verdict      *ReviewVerdict  `json:"verdict,omitempty"`
	Summary      string          `json:"summary,omitempty"`
	Comments     []ReviewComment `json:"comments,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	ResolvedAt   *time.Time      `json:"resolved_at,omitempty"`
}

// MergeJob is a queued git-merge execution for a Task+Repository (§3).
type MergeJob struct {
	ID          string         `json:"id"`
	TaskID      int64          `json:"task_id"`
	RepoID      string         `json:"repo_id"`
	Status      MergeJobStatus `json:"status"`
	Strategy    MergeStrategy  `json:"strategy"`
	MergeCommit string         `json:"merge_commit,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	StartedAt   *time.Time     `json:"started_at,omitempty"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}
