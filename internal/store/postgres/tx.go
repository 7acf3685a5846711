// Package postgres implements internal/store's repository interfaces
// against PostgreSQL via pgx, grounded on the teacher's pgxpool wrapper and
// WithTx pattern (internal/dbx).
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/openclaw/openclaw/internal/dbx"
	"github.com/openclaw/openclaw/internal/eventlog"
	"github.com/openclaw/openclaw/internal/store"
)

// pgTx adapts pgx.Tx to the store.Tx marker interface.
type pgTx struct {
	tx pgx.Tx
}

func (pgTx) isTx() {}

func unwrap(tx store.Tx) pgx.Tx {
	t, ok := tx.(pgTx)
	if !ok {
		panic(fmt.Sprintf("postgres store: unexpected tx type %T", tx))
	}
	return t.tx
}

// Store is the postgres-backed store.Store implementation.
type Store struct {
	db     *dbx.DB
	events *eventlog.PostgresStore

	orgs     *organizationRepo
	teams    *teamRepo
	agents   *agentRepo
	repos    *repositoryRepo
	tasks    *taskRepo
	messages *messageRepo
	sessions *sessionRepo
	humans   *humanRequestRepo
	reviews  *reviewRepo
	merges   *mergeJobRepo
}

func New(db *dbx.DB) *Store {
	s := &Store{db: db, events: eventlog.NewPostgresStore(db.Pool())}
	s.orgs = &organizationRepo{db: db}
	s.teams = &teamRepo{db: db}
	s.agents = &agentRepo{db: db}
	s.repos = &repositoryRepo{db: db}
	s.tasks = &taskRepo{db: db}
	s.messages = &messageRepo{db: db}
	s.sessions = &sessionRepo{db: db}
	s.humans = &humanRequestRepo{db: db}
	s.reviews = &reviewRepo{db: db}
	s.merges = &mergeJobRepo{db: db}
	return s
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return s.db.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, pgTx{tx: tx})
	})
}

func (s *Store) Organizations() store.OrganizationRepository { return s.orgs }
func (s *Store) Teams() store.TeamRepository                 { return s.teams }
func (s *Store) Agents() store.AgentRepository               { return s.agents }
func (s *Store) Repositories() store.RepositoryRepository    { return s.repos }
func (s *Store) Tasks() store.TaskRepository                 { return s.tasks }
func (s *Store) Messages() store.MessageRepository           { return s.messages }
func (s *Store) Sessions() store.SessionRepository           { return s.sessions }
func (s *Store) HumanRequests() store.HumanRequestRepository { return s.humans }
func (s *Store) Reviews() store.ReviewRepository             { return s.reviews }
func (s *Store) MergeJobs() store.MergeJobRepository         { return s.merges }
func (s *Store) Events() eventlog.Store                      { return eventsAdapter{inner: s.events} }

// eventsAdapter unwraps a store.Tx to the pgx.Tx the underlying
// eventlog.PostgresStore expects, so service code can thread the same
// store.Tx it uses for repository writes into Events().Append.
type eventsAdapter struct{ inner *eventlog.PostgresStore }

func (a eventsAdapter) Append(ctx context.Context, tx any, streamID, eventType string, data, metadata map[string]any) (*eventlog.Event, error) {
	if t, ok := tx.(store.Tx); ok {
		tx = unwrap(t)
	}
	return a.inner.Append(ctx, tx, streamID, eventType, data, metadata)
}

func (a eventsAdapter) ListByStream(ctx context.Context, streamID string) ([]*eventlog.Event, error) {
	return a.inner.ListByStream(ctx, streamID)
}
