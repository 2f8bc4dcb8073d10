package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/adstudio/studio/internal/domain"
	"github.com/adstudio/studio/internal/domain/payload"
	"github.com/adstudio/studio/internal/infra/logging"
	"github.com/adstudio/studio/internal/infra/observability"
)

// Backend persists and loads the whole calendar. There is no day-level
// update: every write replaces the stored array.
type Backend interface {
	Calendar(ctx context.Context, userID string) (json.RawMessage, error)
	SaveCalendar(ctx context.Context, userID string, days []domain.CalendarDay) error
}

// Invoker is the slice of the invocation manager the video bridge uses.
type Invoker interface {
	Prefill(toolID domain.ToolID, inputs domain.Inputs) error
	Submit(ctx context.Context, toolID domain.ToolID, inputs domain.Inputs) (domain.ToolInvocationState, error)
}

// Config wires a Service.
type Config struct {
	Backend  Backend
	Notifier domain.Notifier    // optional
	Activity domain.ActivityLog // optional
	Logger   *logrus.Entry
}

// Service is the CalendarIndex component: the current index, the selected
// day, and the rebuild and bridge operations.
type Service struct {
	backend  Backend
	notifier domain.Notifier
	activity domain.ActivityLog
	log      *logrus.Entry

	mu       sync.RWMutex
	index    *Index
	selected *domain.CalendarDay
	invoker  Invoker
}

// New creates a Service with an empty index.
func New(cfg Config) *Service {
	return &Service{
		backend:  cfg.Backend,
		notifier: cfg.Notifier,
		activity: cfg.Activity,
		log:      logging.OrDiscard(cfg.Logger),
		index:    Build(nil, 0),
	}
}

// SetInvoker connects the video bridge. The invocation manager and the
// calendar reference each other, so one side is wired after construction.
func (s *Service) SetInvoker(inv Invoker) {
	s.mu.Lock()
	s.invoker = inv
	s.mu.Unlock()
}

// Index returns the current index.
func (s *Service) Index() *Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// ─── Rebuild & Load ─────────────────────────────────────────────────────────

// Rebuild replaces the calendar. The new index is built, persisted as a
// whole, and only swapped in once the write is acknowledged. On write
// failure the previous index is kept and ErrCalendarPersist is returned.
func (s *Service) Rebuild(ctx context.Context, userID string, days []domain.CalendarDay, period int) error {
	if userID == "" {
		return domain.ErrNotAuthenticated
	}
	next := Build(days, period)
	log := s.log.WithFields(logrus.Fields{"user_id": userID, "days": next.Len(), "period": period})

	if err := s.backend.SaveCalendar(ctx, userID, next.Days()); err != nil {
		observability.CalendarRebuilds.WithLabelValues("persist_failed").Inc()
		log.WithError(err).Warn("calendar persist failed; keeping previous index")
		if s.notifier != nil {
			s.notifier.Publish(domain.LevelError, "Calendar not saved", err.Error())
		}
		return fmt.Errorf("%w: %v", domain.ErrCalendarPersist, err)
	}

	s.mu.Lock()
	s.index = next
	s.selected = nil
	s.mu.Unlock()

	observability.CalendarRebuilds.WithLabelValues("ok").Inc()
	log.Info("calendar rebuilt")
	if s.activity != nil {
		a := domain.Activity{
			UserID:      userID,
			Action:      domain.ActionCalendar,
			ToolID:      domain.ToolContentPlanner,
			Description: fmt.Sprintf("%d-day calendar with %d scheduled days", next.MaxDay(), next.Len()),
		}
		if err := s.activity.LogActivity(ctx, a); err != nil {
			log.WithError(err).Warn("activity log write failed")
		}
	}
	return nil
}

// Load fetches the stored calendar and builds the index without writing
// back. A null or malformed stored calendar loads as empty.
func (s *Service) Load(ctx context.Context, userID string) (*Index, error) {
	if userID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	raw, err := s.backend.Calendar(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load calendar: %w", err)
	}
	var next *Index
	if cal, ok := payload.CalendarFrom(raw); ok {
		next = Build(cal.Days, cal.Period)
	} else {
		if len(raw) > 0 && string(raw) != "null" {
			s.log.WithField("user_id", userID).Warn("stored calendar has an unexpected shape")
		}
		next = Build(nil, 0)
	}

	s.mu.Lock()
	s.index = next
	s.selected = nil
	s.mu.Unlock()
	return next, nil
}

// ─── Selection ──────────────────────────────────────────────────────────────

// Select shows the detail for day n. Selecting a day with content returns
// it; selecting a rest day clears the selection and returns false.
func (s *Service) Select(n int) (domain.CalendarDay, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.index.Day(n)
	if !ok || !d.HasContent() {
		s.selected = nil
		return domain.CalendarDay{}, false
	}
	s.selected = &d
	return d, true
}

// Selected returns the currently selected day, if any.
func (s *Service) Selected() (domain.CalendarDay, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.selected == nil {
		return domain.CalendarDay{}, false
	}
	return *s.selected, true
}

// ─── Video Bridge ───────────────────────────────────────────────────────────

// Entry returns the index-th post or story of day n.
func (s *Service) Entry(n int, kind domain.EntryKind, index int) (domain.ContentEntry, error) {
	ix := s.Index()
	if n < 1 || n > ix.MaxDay() {
		return domain.ContentEntry{}, fmt.Errorf("%w: %d", domain.ErrDayOutOfRange, n)
	}
	d, _ := ix.Day(n)
	list := d.Posts
	if kind == domain.EntryStory {
		list = d.Stories
	}
	if index < 0 || index >= len(list) {
		return domain.ContentEntry{}, fmt.Errorf("%w: day %d %s %d", domain.ErrNoEntry, n, kind, index)
	}
	return list[index], nil
}

// PrefillVideo forwards an entry to the video tool as pre-filled inputs
// without submitting.
func (s *Service) PrefillVideo(n int, kind domain.EntryKind, index int) (domain.Inputs, error) {
	e, err := s.Entry(n, kind, index)
	if err != nil {
		return nil, err
	}
	inputs := VideoInputs(n, e)
	inv, err := s.bridge()
	if err != nil {
		return nil, err
	}
	if err := inv.Prefill(domain.ToolVideoScript, inputs); err != nil {
		return nil, err
	}
	return inputs, nil
}

// RegenerateAsVideo submits a video-script invocation built from an entry.
func (s *Service) RegenerateAsVideo(ctx context.Context, n int, kind domain.EntryKind, index int) (domain.ToolInvocationState, error) {
	e, err := s.Entry(n, kind, index)
	if err != nil {
		return domain.ToolInvocationState{}, err
	}
	inv, err := s.bridge()
	if err != nil {
		return domain.ToolInvocationState{}, err
	}
	s.log.WithFields(logrus.Fields{"day": n, "kind": kind, "index": index}).Info("regenerating entry as video")
	return inv.Submit(ctx, domain.ToolVideoScript, VideoInputs(n, e))
}

func (s *Service) bridge() (Invoker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.invoker == nil {
		return nil, fmt.Errorf("video bridge is not connected")
	}
	return s.invoker, nil
}
