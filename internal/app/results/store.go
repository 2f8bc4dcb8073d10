// Package results creates and lists persisted generation records.
//
// Saving is deliberately not idempotent: every Save creates a new record,
// even for a result that was already saved. The only local state is the
// last list fetched per tool id, kept as a view for display; the backing
// store stays authoritative.
package results

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/adstudio/studio/internal/domain"
	"github.com/adstudio/studio/internal/domain/payload"
	"github.com/adstudio/studio/internal/infra/logging"
)

// Backend is the persistence collaborator.
type Backend interface {
	SaveResult(ctx context.Context, toolID domain.ToolID, result json.RawMessage, inputs any, userID string) (string, error)
	SavedResults(ctx context.Context, toolID domain.ToolID, userID string) ([]domain.GenerationRecord, error)
}

// Config wires a Store.
type Config struct {
	Backend  Backend
	Activity domain.ActivityLog // optional
	Logger   *logrus.Entry
}

// Store is the ResultStore.
type Store struct {
	backend  Backend
	activity domain.ActivityLog
	log      *logrus.Entry

	mu   sync.RWMutex
	last map[domain.ToolID][]domain.GenerationRecord
}

// New creates a Store.
func New(cfg Config) *Store {
	return &Store{
		backend:  cfg.Backend,
		activity: cfg.Activity,
		log:      logging.OrDiscard(cfg.Logger),
		last:     make(map[domain.ToolID][]domain.GenerationRecord),
	}
}

// Save creates a new generation record and returns its id.
func (s *Store) Save(ctx context.Context, toolID domain.ToolID, result json.RawMessage, inputs any, userID string) (string, error) {
	if userID == "" {
		return "", domain.ErrNotAuthenticated
	}
	if len(result) == 0 {
		return "", domain.ErrNoResult
	}
	id, err := s.backend.SaveResult(ctx, toolID, result, inputs, userID)
	if err != nil {
		return "", fmt.Errorf("save %s result: %w", toolID, err)
	}
	s.log.WithFields(logrus.Fields{"tool_id": toolID, "user_id": userID, "generation_id": id}).Info("result saved")

	if s.activity != nil {
		a := domain.Activity{
			UserID:      userID,
			Action:      domain.ActionSave,
			ToolID:      toolID,
			Description: "Saved " + Title(domain.GenerationRecord{ToolID: toolID, Result: result, Inputs: encodeInputs(inputs)}),
		}
		if err := s.activity.LogActivity(ctx, a); err != nil {
			s.log.WithError(err).Warn("activity log write failed")
		}
	}
	return id, nil
}

// List fetches the records for a tool and user, newest first, and keeps
// them as the last-list view for the tool. Duplicates are returned as-is.
func (s *Store) List(ctx context.Context, toolID domain.ToolID, userID string) ([]domain.GenerationRecord, error) {
	if userID == "" {
		return nil, domain.ErrNotAuthenticated
	}
	recs, err := s.backend.SavedResults(ctx, toolID, userID)
	if err != nil {
		return nil, fmt.Errorf("list %s results: %w", toolID, err)
	}
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})

	s.mu.Lock()
	s.last[toolID] = recs
	s.mu.Unlock()
	return append([]domain.GenerationRecord(nil), recs...), nil
}

// LastList returns the view from the most recent List for toolID.
func (s *Store) LastList(toolID domain.ToolID) []domain.GenerationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.GenerationRecord(nil), s.last[toolID]...)
}

// Title derives a display label for rec. It tolerates any payload shape.
func Title(rec domain.GenerationRecord) string {
	return payload.DisplayTitle(rec.ToolID, rec.Result, rec.Inputs)
}

func encodeInputs(inputs any) json.RawMessage {
	if inputs == nil {
		return nil
	}
	if raw, ok := inputs.(json.RawMessage); ok {
		return raw
	}
	data, err := json.Marshal(inputs)
	if err != nil {
		return nil
	}
	return data
}
