package listing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pitabwire/backoffice/internal/config"
	"github.com/pitabwire/backoffice/internal/filter"
	"github.com/pitabwire/backoffice/internal/filterbar"
	"github.com/pitabwire/backoffice/internal/observability"
	"github.com/pitabwire/backoffice/model"
)

// session is one open filter bar. Events on a session are applied one at a
// time.
type session struct {
	id   string
	view model.ViewDefinition
	bar  *filterbar.Bar

	mu       sync.Mutex
	lastUsed time.Time
	trigger  string
	cleared  bool
}

// Sessions holds the server-side filter bars opened by clients. Sessions
// idle for longer than the TTL are removed.
type Sessions struct {
	provider *Provider
	ttl      time.Duration
	max      int
	sweep    time.Duration
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessions creates a session store. logger and metrics may be nil.
func NewSessions(provider *Provider, cfg config.SessionsConfig, logger *zap.Logger, metrics *observability.Metrics) *Sessions {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	return &Sessions{
		provider: provider,
		ttl:      cfg.TTL,
		max:      cfg.MaxSessions,
		sweep:    cfg.SweepInterval,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// Open creates a session for a view with its default values and resolves
// the view's remote option sets.
func (s *Sessions) Open(ctx context.Context, viewID string) (model.SessionResponse, error) {
	view, err := s.provider.View(viewID)
	if err != nil {
		return model.SessionResponse{}, err
	}

	sess := &session{id: uuid.NewString(), view: view, lastUsed: s.now()}
	hooks := filterbar.Hooks{
		OnCommit: func(_ model.FieldMap, trigger string) { sess.trigger = trigger },
		OnClear:  func() { sess.cleared = true },
	}
	container := filter.NewUncontrolled(view.Filter.Defaults, nil)
	sess.bar = filterbar.New(view.Filter, container, s.provider.Resolver(view), hooks)

	s.mu.Lock()
	if s.max > 0 && len(s.sessions) >= s.max {
		s.sweepLocked()
	}
	if s.max > 0 && len(s.sessions) >= s.max {
		s.mu.Unlock()
		return model.SessionResponse{}, model.NewConflictError("too many open filter sessions")
	}
	s.sessions[sess.id] = sess
	count := len(s.sessions)
	s.mu.Unlock()
	s.reportActive(count)

	ctx = observability.WithLogger(ctx, observability.LoggerFrom(ctx, s.logger).With(zap.String("session_id", sess.id)))
	sess.bar.Load(ctx)

	return model.SessionResponse{SessionID: sess.id, FilterBar: sess.bar.Describe()}, nil
}

// Apply runs one filter event. When the bar commits, the first page of the
// view's data is fetched for the new values and returned alongside. Only
// page.PageSize is used.
func (s *Sessions) Apply(ctx context.Context, sessionID string, ev filterbar.Event, page model.PageRequest) (model.SessionResponse, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return model.SessionResponse{}, err
	}
	if err := ev.Validate(); err != nil {
		return model.SessionResponse{}, model.NewBadRequestError(err.Error())
	}

	ctx, span := observability.StartSpan(ctx, "listing.session.apply",
		observability.AttrSessionID.String(sessionID),
		observability.AttrViewID.String(sess.view.ID),
	)
	defer span.End()

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.trigger, sess.cleared = "", false

	committed, err := sess.bar.Apply(ctx, ev)
	if err != nil {
		return model.SessionResponse{}, fmt.Errorf("listing: session %s: %w", sessionID, err)
	}

	resp := model.SessionResponse{
		SessionID: sessionID,
		Committed: committed,
		Cleared:   sess.cleared,
	}
	if committed {
		if s.metrics != nil {
			s.metrics.RecordFilterCommit(sess.view.ID, sess.trigger)
		}
		page.Page = 1
		data, err := s.provider.fetch(ctx, sess.view, sess.bar.Values(), page)
		if err != nil {
			return model.SessionResponse{}, err
		}
		resp.Data = &data
	}
	resp.FilterBar = sess.bar.Describe()
	return resp, nil
}

// Describe returns the current filter bar of a session.
func (s *Sessions) Describe(sessionID string) (model.SessionResponse, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return model.SessionResponse{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return model.SessionResponse{SessionID: sessionID, FilterBar: sess.bar.Describe()}, nil
}

// Close removes a session and reports whether it existed.
func (s *Sessions) Close(sessionID string) bool {
	s.mu.Lock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	count := len(s.sessions)
	s.mu.Unlock()
	s.reportActive(count)
	return ok
}

// Len returns the number of open sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Capacity reports the number of open sessions and the configured
// maximum. A maximum of 0 means unbounded.
func (s *Sessions) Capacity() (open, limit int) {
	return s.Len(), s.max
}

// Sweep removes expired sessions and returns how many were removed.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	n := s.sweepLocked()
	count := len(s.sessions)
	s.mu.Unlock()

	if n > 0 {
		s.logger.Debug("expired filter sessions removed", zap.Int("count", n))
		s.reportActive(count)
	}
	return n
}

// Run sweeps expired sessions periodically until ctx is done.
func (s *Sessions) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

func (s *Sessions) get(sessionID string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, model.NewSessionExpiredError(sessionID)
	}
	now := s.now()
	if s.expired(sess, now) {
		delete(s.sessions, sessionID)
		if s.metrics != nil {
			s.metrics.RecordFilterSessionsExpired(1)
			s.metrics.SetFilterSessionsActive(len(s.sessions))
		}
		return nil, model.NewSessionExpiredError(sessionID)
	}
	sess.lastUsed = now
	return sess, nil
}

func (s *Sessions) sweepLocked() int {
	now := s.now()
	n := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			delete(s.sessions, id)
			n++
		}
	}
	if n > 0 && s.metrics != nil {
		s.metrics.RecordFilterSessionsExpired(n)
	}
	return n
}

// expired reads lastUsed, which is written only under s.mu.
func (s *Sessions) expired(sess *session, now time.Time) bool {
	return now.Sub(sess.lastUsed) > s.ttl
}

func (s *Sessions) reportActive(count int) {
	if s.metrics != nil {
		s.metrics.SetFilterSessionsActive(count)
	}
}
