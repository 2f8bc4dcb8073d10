// Package profile performs the full-profile reload: profile record, recent
// activity, generation count and a ledger re-poll, fetched in parallel.
//
// Overlapping reloads for the same user are not queued. A reload that
// starts while another is in flight for that user returns
// ErrReloadInProgress immediately. The in-flight slot is released on every
// exit path.
package profile

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/adstudio/studio/internal/domain"
	"github.com/adstudio/studio/internal/infra/logging"
)

// Store is the part of the data store a reload reads.
type Store interface {
	domain.ProfileStore
	domain.ActivityLog
	domain.GenerationCounter
}

// Refresher re-polls the credit ledger for the session user.
type Refresher interface {
	Refresh(ctx context.Context) (domain.CreditBalance, error)
}

// Config wires a Service. When Identity is set, only the session user can
// be reloaded, since the ledger only tracks that user.
type Config struct {
	Store         Store
	Ledger        Refresher
	Identity      domain.Identity
	ActivityLimit int
	Logger        *logrus.Entry
}

// Snapshot is the outcome of a reload.
type Snapshot struct {
	Profile     *domain.Profile      `json:"profile"`
	Activity    []domain.Activity    `json:"activity"`
	Generations int                  `json:"generations"`
	Balance     domain.CreditBalance `json:"balance"`
}

// Service reloads profiles.
type Service struct {
	store    Store
	ledger   Refresher
	identity domain.Identity
	limit    int
	log      *logrus.Entry

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates a Service.
func New(cfg Config) *Service {
	if cfg.ActivityLimit <= 0 {
		cfg.ActivityLimit = 20
	}
	return &Service{
		store:    cfg.Store,
		ledger:   cfg.Ledger,
		identity: cfg.Identity,
		limit:    cfg.ActivityLimit,
		log:      logging.OrDiscard(cfg.Logger),
		inFlight: make(map[string]struct{}),
	}
}

// acquire claims the reload slot for userID. The returned release func must
// be called exactly once; ok is false if a reload is already running.
func (s *Service) acquire(userID string) (release func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[userID]; busy {
		return nil, false
	}
	s.inFlight[userID] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.inFlight, userID)
		s.mu.Unlock()
	}, true
}

// InFlight reports whether a reload is running for userID.
func (s *Service) InFlight(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[userID]
	return ok
}

// Reload fetches everything for userID in parallel. Any failing fetch fails
// the reload; the ledger keeps its own error state. The ledger re-poll runs
// on ctx rather than the group context, so a failed store read does not
// cancel it.
func (s *Service) Reload(ctx context.Context, userID string) (*Snapshot, error) {
	if userID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	if s.identity != nil {
		if current := s.identity.UserID(); current != userID {
			return nil, fmt.Errorf("%w: cannot reload %q while signed in as %q", domain.ErrNotAuthenticated, userID, current)
		}
	}
	release, ok := s.acquire(userID)
	if !ok {
		s.log.WithField("user_id", userID).Debug("reload skipped: already in flight")
		return nil, domain.ErrReloadInProgress
	}
	defer release()

	snap := &Snapshot{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.store.GetProfile(gctx, userID)
		if err != nil {
			return fmt.Errorf("profile: %w", err)
		}
		snap.Profile = p
		return nil
	})
	g.Go(func() error {
		acts, err := s.store.RecentActivity(gctx, userID, s.limit)
		if err != nil {
			return fmt.Errorf("activity: %w", err)
		}
		snap.Activity = acts
		return nil
	})
	g.Go(func() error {
		n, err := s.store.CountGenerations(gctx, userID)
		if err != nil {
			return fmt.Errorf("generations: %w", err)
		}
		snap.Generations = n
		return nil
	})
	var credits errgroup.Group
	if s.ledger != nil {
		credits.Go(func() error {
			bal, err := s.ledger.Refresh(ctx)
			if err != nil {
				return fmt.Errorf("credits: %w", err)
			}
			snap.Balance = bal
			return nil
		})
	}
	err := g.Wait()
	if cerr := credits.Wait(); err == nil {
		err = cerr
	}
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("profile reload failed")
		return nil, fmt.Errorf("reload %s: %w", userID, err)
	}
	s.log.WithField("user_id", userID).Debug("profile reloaded")
	return snap, nil
}
