package postgres

import (
	"context"

	"github.com/openclaw/openclaw/internal/dbx"
)

// schema is the projection layer DDL (§3). Events are append-only by
// construction: the table has no UPDATE or DELETE grant path exercised by
// this package (I5). The schema defines no triggers: the three pg_notify
// channels listed in §6 are emitted by the repositories in message.go,
// humanrequest.go and task.go, inside the transaction that writes the row.
const schema = `
CREATE TABLE IF NOT EXISTS organizations (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	slug TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS teams (
	id TEXT PRIMARY KEY,
	org_id TEXT NOT NULL REFERENCES organizations(id),
	name TEXT NOT NULL,
	slug TEXT NOT NULL,
	config JSONB NOT NULL DEFAULT '{}',
	UNIQUE (org_id, slug)
);

CREATE TABLE IF NOT EXISTS agents (
	id TEXT PRIMARY KEY,
	team_id TEXT NOT NULL REFERENCES teams(id),
	name TEXT NOT NULL,
	role TEXT NOT NULL,
	model TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'idle',
	config JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (team_id, name)
);

CREATE TABLE IF NOT EXISTS repositories (
	id TEXT PRIMARY KEY,
	team_id TEXT NOT NULL REFERENCES teams(id),
	name TEXT NOT NULL,
	local_path TEXT NOT NULL,
	default_branch TEXT NOT NULL DEFAULT 'main',
	config JSONB NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS tasks (
	id BIGSERIAL PRIMARY KEY,
	team_id TEXT NOT NULL REFERENCES teams(id),
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'todo',
	priority TEXT NOT NULL DEFAULT 'medium',
	dri_id TEXT NOT NULL DEFAULT '',
	assignee_id TEXT NOT NULL DEFAULT '',
	depends_on BIGINT[] NOT NULL DEFAULT '{}',
	repo_ids TEXT[] NOT NULL DEFAULT '{}',
	tags TEXT[] NOT NULL DEFAULT '{}',
	branch TEXT NOT NULL DEFAULT '',
	metadata JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_tasks_team_status ON tasks(team_id, status);
CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks(assignee_id);

CREATE TABLE IF NOT EXISTS messages (
	id TEXT PRIMARY KEY,
	team_id TEXT NOT NULL REFERENCES teams(id),
	sender_id TEXT NOT NULL,
	sender_type TEXT NOT NULL,
	recipient_id TEXT NOT NULL,
	recipient_type TEXT NOT NULL,
	task_id BIGINT,
	content TEXT NOT NULL,
	delivered_at TIMESTAMPTZ,
	seen_at TIMESTAMPTZ,
	processed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_messages_recipient ON messages(recipient_id, processed_at);

CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	agent_id TEXT NOT NULL REFERENCES agents(id),
	task_id BIGINT,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	ended_at TIMESTAMPTZ,
	tokens_in BIGINT NOT NULL DEFAULT 0,
	tokens_out BIGINT NOT NULL DEFAULT 0,
	cache_read BIGINT NOT NULL DEFAULT 0,
	cache_write BIGINT NOT NULL DEFAULT 0,
	cost_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
	model TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sessions_agent_open ON sessions(agent_id) WHERE ended_at IS NULL;

CREATE TABLE IF NOT EXISTS human_requests (
	id TEXT PRIMARY KEY,
	team_id TEXT NOT NULL REFERENCES teams(id),
	agent_id TEXT NOT NULL,
	task_id BIGINT,
	kind TEXT NOT NULL,
	question TEXT NOT NULL,
	options TEXT[] NOT NULL DEFAULT '{}',
	status TEXT NOT NULL DEFAULT 'pending',
	response TEXT NOT NULL DEFAULT '',
	responded_by TEXT NOT NULL DEFAULT '',
	timeout_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS reviews (
	id TEXT PRIMARY KEY,
	task_id BIGINT NOT NULL REFERENCES tasks(id),
	attempt INT NOT NULL,
	reviewer_id TEXT NOT NULL DEFAULT '',
	reviewer_type TEXT NOT NULL DEFAULT '',
	verdict TEXT,
	summary TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved_at TIMESTAMPTZ,
	UNIQUE (task_id, attempt)
);

CREATE TABLE IF NOT EXISTS review_comments (
	id TEXT PRIMARY KEY,
	review_id TEXT NOT NULL REFERENCES reviews(id) ON DELETE CASCADE,
	file_path TEXT NOT NULL DEFAULT '',
	line_number INT,
	content TEXT NOT NULL,
	author_id TEXT NOT NULL,
	author_type TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS merge_jobs (
	id TEXT PRIMARY KEY,
	task_id BIGINT NOT NULL REFERENCES tasks(id),
	repo_id TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'queued',
	strategy TEXT NOT NULL,
	merge_commit TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS events (
	id BIGSERIAL PRIMARY KEY,
	stream_id TEXT NOT NULL,
	type TEXT NOT NULL,
	data JSONB NOT NULL DEFAULT '{}',
	metadata JSONB NOT NULL DEFAULT '{}',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_events_stream ON events(stream_id, id);
`

// Migrate applies the schema. Idempotent; safe to call on every boot.
func Migrate(ctx context.Context, db *dbx.DB) error {
	_, err := db.Exec(ctx, schema)
	return err
}
