package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"selah/pkg/ai"
	"selah/pkg/events"
	"selah/pkg/guidance"
	"selah/pkg/queue"
	"selah/pkg/scrolls"
	"selah/pkg/storage"
	"selah/pkg/store"
	"selah/pkg/streak"
)

const (
	defaultProjectionTTL  = 5 * time.Minute
	defaultMaxProjections = 1024
	defaultRecentEntries  = 10
)

// Sessions issues and revokes bearer tokens.
type Sessions interface {
	store.SessionStore
	RevokeUserSessions(userID string, since time.Time) error
}

// ReconcileQueue schedules a durable-streak reconcile for a user.
type ReconcileQueue interface {
	Enqueue(ctx context.Context, userID string) (queue.Job, error)
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL  string
	EmbeddingDim int
	Store        store.Store
	Sessions     Sessions

	Generator       ai.TextGenerator
	GuidanceTimeout time.Duration
	Transcriber     ai.Transcriber
	Archive         *storage.AudioArchive
	Embedder        ai.Embedder
	Publisher       events.Publisher
	Queue           ReconcileQueue
	Scrolls         scrolls.Catalog

	// Location decides which calendar day an instant falls on.
	Location       *time.Location
	Now            func() time.Time
	ProjectionTTL  time.Duration
	MaxProjections int
	RecentEntries  int
}

// App is the core application service wiring together storage, the
// per-user journal projections and the AI collaborators.
type App struct {
	store    store.Store
	sessions Sessions

	generator   ai.TextGenerator
	pipeline    *guidance.Pipeline
	transcriber ai.Transcriber
	archive     *storage.AudioArchive
	embedder    ai.Embedder
	publisher   events.Publisher
	queue       ReconcileQueue
	scrolls     scrolls.Catalog

	loc            *time.Location
	now            func() time.Time
	projectionTTL  time.Duration
	maxProjections int
	recentEntries  int

	mu          sync.Mutex
	journals    map[string]*journal
	// generations counts entry mutations per user so a projection read
	// before a mutation is never installed after it.
	generations map[string]uint64
	loads       singleflight.Group
}

// New constructs the application. A Postgres store is opened from
// DatabaseURL when no Store is given.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL, store.WithEmbeddingDim(cfg.EmbeddingDim))
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	if cfg.Sessions == nil {
		return nil, errors.New("session store required")
	}
	catalog := cfg.Scrolls
	if catalog == nil {
		var err error
		catalog, err = scrolls.Load()
		if err != nil {
			return nil, fmt.Errorf("load scrolls: %w", err)
		}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	ttl := cfg.ProjectionTTL
	if ttl <= 0 {
		ttl = defaultProjectionTTL
	}
	maxProjections := cfg.MaxProjections
	if maxProjections <= 0 {
		maxProjections = defaultMaxProjections
	}
	recent := cfg.RecentEntries
	if recent <= 0 {
		recent = defaultRecentEntries
	}
	var pipeline *guidance.Pipeline
	if cfg.Generator != nil {
		pipeline = guidance.NewPipeline(cfg.Generator, cfg.GuidanceTimeout)
	}
	return &App{
		store:          dataStore,
		sessions:       cfg.Sessions,
		generator:      cfg.Generator,
		pipeline:       pipeline,
		transcriber:    cfg.Transcriber,
		archive:        cfg.Archive,
		embedder:       cfg.Embedder,
		publisher:      cfg.Publisher,
		queue:          cfg.Queue,
		scrolls:        catalog,
		loc:            loc,
		now:            now,
		projectionTTL:  ttl,
		maxProjections: maxProjections,
		recentEntries:  recent,
		journals:       make(map[string]*journal),
		generations:    make(map[string]uint64),
	}, nil
}

// Close releases the projections and the store when it owns a connection.
func (a *App) Close() error {
	a.mu.Lock()
	for id, j := range a.journals {
		j.stop()
		delete(a.journals, id)
	}
	a.mu.Unlock()
	if c, ok := a.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Scrolls returns the living scrolls catalog.
func (a *App) Scrolls() scrolls.Catalog {
	return a.scrolls
}

// Today returns the current calendar day in the configured location.
func (a *App) Today() time.Time {
	return streak.CalendarDate(a.now(), a.loc)
}
