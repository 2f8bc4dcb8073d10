// Package invocation manages the per-tool generation state machine.
//
// Each tool id has its own state, created lazily:
//
//	idle → submitting → succeeded | failed → submitting → ...
//
// There is no terminal state; resubmission is always allowed. Every submit
// takes a fresh request token for its tool. A response is applied only if
// its token is still the latest for that tool; an older response that
// arrives late is discarded with ErrSuperseded. Tools never share state, so
// invoking one tool cannot disturb another that is loading.
//
// Paid tools follow generate-then-deduct: the deduction is issued only
// after the generation reports success, and a failed deduction does not
// take back the returned artifact. Every successful generation is charged,
// including one whose response was superseded. Once a submission passes
// its pre-flight checks, the generate and deduct sequence no longer
// follows the caller's cancellation.
package invocation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/adstudio/studio/internal/domain"
	"github.com/adstudio/studio/internal/domain/payload"
	"github.com/adstudio/studio/internal/infra/gateway"
	"github.com/adstudio/studio/internal/infra/logging"
	"github.com/adstudio/studio/internal/infra/observability"
)

// Backend runs generations.
type Backend interface {
	Generate(ctx context.Context, toolID domain.ToolID, inputs domain.Inputs, userID string) (*gateway.Generation, error)
	GenerateAd(ctx context.Context, req gateway.AdRequest, userID string) (*gateway.Generation, error)
}

// Credits is the slice of the ledger the manager uses.
type Credits interface {
	HasSufficient(cost int64) bool
	Deduct(ctx context.Context, amount int64, description string) error
}

// Saver persists results as generation records.
type Saver interface {
	Save(ctx context.Context, toolID domain.ToolID, result json.RawMessage, inputs any, userID string) (string, error)
}

// CalendarSink receives calendars produced by the content planner.
type CalendarSink interface {
	Rebuild(ctx context.Context, userID string, days []domain.CalendarDay, period int) error
}

// Config wires a Manager.
type Config struct {
	Backend  Backend
	Credits  Credits
	Saver    Saver
	Calendar CalendarSink       // optional
	Activity domain.ActivityLog // optional
	Notifier domain.Notifier    // optional
	Identity domain.Identity
	Logger   *logrus.Entry
}

type toolState struct {
	state domain.ToolInvocationState
	token uint64
}

// Manager is the ToolInvocationManager.
type Manager struct {
	backend  Backend
	credits  Credits
	saver    Saver
	calendar CalendarSink
	activity domain.ActivityLog
	notifier domain.Notifier
	identity domain.Identity
	log      *logrus.Entry

	mu         sync.RWMutex
	tools      map[domain.ToolID]*toolState
	active     int
	completed  int64
	failed     int64
	superseded int64
}

// New creates a Manager.
func New(cfg Config) *Manager {
	return &Manager{
		backend:  cfg.Backend,
		credits:  cfg.Credits,
		saver:    cfg.Saver,
		calendar: cfg.Calendar,
		activity: cfg.Activity,
		notifier: cfg.Notifier,
		identity: cfg.Identity,
		log:      logging.OrDiscard(cfg.Logger),
		tools:    make(map[domain.ToolID]*toolState),
	}
}

// ─── Submission ─────────────────────────────────────────────────────────────

// Submit runs toolID with inputs and returns the tool's state after the
// response is applied. Ad tools are routed through the ad endpoint with a
// request derived from inputs.
func (m *Manager) Submit(ctx context.Context, toolID domain.ToolID, inputs domain.Inputs) (domain.ToolInvocationState, error) {
	tool, ok := domain.LookupTool(toolID)
	if !ok {
		return domain.ToolInvocationState{}, fmt.Errorf("%w: %s", domain.ErrUnknownTool, toolID)
	}
	if tool.ViaAdEndpoint {
		return m.run(ctx, tool, inputs, func(ctx context.Context, userID string) (*gateway.Generation, error) {
			return m.backend.GenerateAd(ctx, adRequestFrom(tool, inputs), userID)
		})
	}
	return m.run(ctx, tool, inputs, func(ctx context.Context, userID string) (*gateway.Generation, error) {
		return m.backend.Generate(ctx, toolID, inputs, userID)
	})
}

// GenerateAd runs an ad tool with an explicit ad request.
func (m *Manager) GenerateAd(ctx context.Context, toolID domain.ToolID, req gateway.AdRequest) (domain.ToolInvocationState, error) {
	tool, ok := domain.LookupTool(toolID)
	if !ok || !tool.ViaAdEndpoint {
		return domain.ToolInvocationState{}, fmt.Errorf("%w: %s is not an ad tool", domain.ErrUnknownTool, toolID)
	}
	inputs := domain.Inputs{"prompt": req.Prompt, "generateOnlyText": req.GenerateOnlyText}
	if req.Image != "" {
		inputs["image"] = req.Image
	}
	for k, v := range req.Options {
		inputs[k] = v
	}
	return m.run(ctx, tool, inputs, func(ctx context.Context, userID string) (*gateway.Generation, error) {
		return m.backend.GenerateAd(ctx, req, userID)
	})
}

type generateFunc func(ctx context.Context, userID string) (*gateway.Generation, error)

func (m *Manager) run(ctx context.Context, tool domain.Tool, inputs domain.Inputs, call generateFunc) (domain.ToolInvocationState, error) {
	log := m.log.WithField("tool_id", tool.ID)

	userID := ""
	if m.identity != nil {
		userID = m.identity.UserID()
	}
	if userID == "" {
		observability.Invocations.WithLabelValues(string(tool.ID), "rejected").Inc()
		return m.reject(tool, domain.ErrNotAuthenticated, "Sign in required")
	}
	if tool.Paid() && m.credits != nil && !m.credits.HasSufficient(tool.Cost) {
		observability.Invocations.WithLabelValues(string(tool.ID), "rejected").Inc()
		err := fmt.Errorf("%w: %s needs %d credits", domain.ErrInsufficientCredits, tool.Name, tool.Cost)
		return m.reject(tool, err, "Not enough credits")
	}

	ctx = context.WithoutCancel(ctx)
	token := m.begin(tool.ID, inputs)
	observability.InvocationsInFlight.Inc()
	log = log.WithFields(logrus.Fields{"user_id": userID, "token": token})
	log.Info("generation submitted")

	gen, err := call(ctx, userID)
	observability.InvocationsInFlight.Dec()

	if err != nil {
		st, applied := m.finish(tool.ID, token, nil, "", err)
		if !applied {
			return m.discard(tool, log)
		}
		observability.Invocations.WithLabelValues(string(tool.ID), "failed").Inc()
		log.WithError(err).Warn("generation failed")
		m.notify(domain.LevelError, tool.Name+" failed", err.Error())
		return st, fmt.Errorf("%s: %w", tool.ID, err)
	}

	// The calendar hook runs before the state settles, and only for the
	// latest request.
	if tool.Kind == domain.KindCalendar && m.calendar != nil && m.current(tool.ID, token) {
		if cal, ok := payload.CalendarFrom(gen.Data); ok {
			period := cal.Period
			if period == 0 {
				period = inputPeriod(inputs)
			}
			if err := m.calendar.Rebuild(ctx, userID, cal.Days, period); err != nil {
				log.WithError(err).Warn("calendar rebuild failed")
			}
		}
	}

	st, applied := m.finish(tool.ID, token, gen.Data, gen.GenerationID, nil)
	if !applied {
		st, err := m.discard(tool, log)
		if derr := m.charge(ctx, tool); derr != nil {
			log.WithError(derr).Warn("deduction for superseded generation failed")
		}
		return st, err
	}
	observability.Invocations.WithLabelValues(string(tool.ID), "succeeded").Inc()
	log.WithField("generation_id", gen.GenerationID).Info("generation succeeded")
	m.notify(domain.LevelSuccess, tool.Name+" ready", "")
	m.logActivity(ctx, userID, tool, domain.ActionGeneration, "Generated "+payload.DisplayTitle(tool.ID, gen.Data, encode(inputs)))

	if err := m.charge(ctx, tool); err != nil {
		// The ledger records and notifies; the result stays.
		return st, err
	}
	return st, nil
}

// charge deducts the cost of one successful generation of a paid tool.
func (m *Manager) charge(ctx context.Context, tool domain.Tool) error {
	if !tool.Paid() || m.credits == nil {
		return nil
	}
	return m.credits.Deduct(ctx, tool.Cost, tool.Name+" generation")
}

// begin moves the tool to submitting and issues a new request token.
func (m *Manager) begin(toolID domain.ToolID, inputs domain.Inputs) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := m.entryLocked(toolID)
	ts.token++
	ts.state.Loading = true
	ts.state.Error = nil
	ts.state.Inputs = inputs.Clone()
	m.active++
	return ts.token
}

// finish applies a response if token is still current. Exactly one of
// result or err is recorded.
func (m *Manager) finish(toolID domain.ToolID, token uint64, result json.RawMessage, generationID string, err error) (domain.ToolInvocationState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active--

	ts := m.tools[toolID]
	if ts.token != token {
		m.superseded++
		return copyState(ts.state), false
	}
	ts.state.Loading = false
	ts.state.SavedGenerationID = nil
	if err != nil {
		msg := err.Error()
		ts.state.Error = &msg
		ts.state.Result = nil
		m.failed++
	} else {
		ts.state.Error = nil
		ts.state.Result = append(json.RawMessage(nil), result...)
		if len(ts.state.Result) == 0 {
			ts.state.Result = json.RawMessage("null")
		}
		if generationID != "" {
			id := generationID
			ts.state.SavedGenerationID = &id
		}
		m.completed++
	}
	return copyState(ts.state), true
}

func (m *Manager) current(toolID domain.ToolID, token uint64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ts, ok := m.tools[toolID]
	return ok && ts.token == token
}

// reject records a pre-flight failure without touching the network.
func (m *Manager) reject(tool domain.Tool, err error, title string) (domain.ToolInvocationState, error) {
	msg := err.Error()
	m.mu.Lock()
	ts := m.entryLocked(tool.ID)
	if !ts.state.Loading {
		ts.state.Error = &msg
	}
	st := copyState(ts.state)
	m.mu.Unlock()

	m.log.WithField("tool_id", tool.ID).WithError(err).Info("generation rejected")
	m.notify(domain.LevelWarning, title, msg)
	return st, err
}

func (m *Manager) discard(tool domain.Tool, log *logrus.Entry) (domain.ToolInvocationState, error) {
	observability.Invocations.WithLabelValues(string(tool.ID), "superseded").Inc()
	log.Info("stale response discarded")
	st, _ := m.State(tool.ID)
	return st, domain.ErrSuperseded
}

func (m *Manager) entryLocked(toolID domain.ToolID) *toolState {
	ts, ok := m.tools[toolID]
	if !ok {
		ts = &toolState{state: domain.ToolInvocationState{ToolID: toolID}}
		m.tools[toolID] = ts
	}
	return ts
}

// ─── Save & Prefill ─────────────────────────────────────────────────────────

// Save persists the tool's current result as a new generation record and
// records its id. Saving twice creates two records.
func (m *Manager) Save(ctx context.Context, toolID domain.ToolID) (string, error) {
	tool, ok := domain.LookupTool(toolID)
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownTool, toolID)
	}
	userID := ""
	if m.identity != nil {
		userID = m.identity.UserID()
	}
	if userID == "" {
		return "", domain.ErrNotAuthenticated
	}

	m.mu.RLock()
	ts, ok := m.tools[toolID]
	var result json.RawMessage
	var inputs domain.Inputs
	var token uint64
	if ok && ts.state.Result != nil && !ts.state.Loading {
		result = append(json.RawMessage(nil), ts.state.Result...)
		inputs = ts.state.Inputs.Clone()
		token = ts.token
	}
	m.mu.RUnlock()
	if result == nil {
		return "", domain.ErrNoResult
	}

	id, err := m.saver.Save(ctx, toolID, result, inputs, userID)
	if err != nil {
		m.notify(domain.LevelError, "Save failed", err.Error())
		return "", err
	}

	m.mu.Lock()
	if ts := m.tools[toolID]; ts.token == token {
		saved := id
		ts.state.SavedGenerationID = &saved
	}
	m.mu.Unlock()
	m.notify(domain.LevelSuccess, tool.Name+" saved", "")
	return id, nil
}

// Prefill sets a tool's inputs without submitting, as the calendar bridge
// does for video generation.
func (m *Manager) Prefill(toolID domain.ToolID, inputs domain.Inputs) error {
	if _, ok := domain.LookupTool(toolID); !ok {
		return fmt.Errorf("%w: %s", domain.ErrUnknownTool, toolID)
	}
	m.mu.Lock()
	m.entryLocked(toolID).state.Inputs = inputs.Clone()
	m.mu.Unlock()
	return nil
}

// ─── Queries ────────────────────────────────────────────────────────────────

// State returns a copy of a tool's state. ok is false if the tool was never
// touched.
func (m *Manager) State(toolID domain.ToolID) (domain.ToolInvocationState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ts, ok := m.tools[toolID]
	if !ok {
		return domain.ToolInvocationState{ToolID: toolID}, false
	}
	return copyState(ts.state), true
}

// States returns copies of every touched tool's state, sorted by tool id.
func (m *Manager) States() []domain.ToolInvocationState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ToolInvocationState, 0, len(m.tools))
	for _, ts := range m.tools {
		out = append(out, copyState(ts.state))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToolID < out[j].ToolID })
	return out
}

// Stats is a point-in-time snapshot.
type Stats struct {
	Active     int   `json:"active"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	Superseded int64 `json:"superseded"`
}

// Stats returns current manager statistics.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Active:     m.active,
		Completed:  m.completed,
		Failed:     m.failed,
		Superseded: m.superseded,
	}
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (m *Manager) notify(level domain.NotificationLevel, title, msg string) {
	if m.notifier != nil {
		m.notifier.Publish(level, title, msg)
	}
}

func (m *Manager) logActivity(ctx context.Context, userID string, tool domain.Tool, action, desc string) {
	if m.activity == nil {
		return
	}
	err := m.activity.LogActivity(ctx, domain.Activity{
		UserID:      userID,
		Action:      action,
		ToolID:      tool.ID,
		Description: desc,
	})
	if err != nil {
		m.log.WithError(err).Warn("activity log write failed")
	}
}

func copyState(s domain.ToolInvocationState) domain.ToolInvocationState {
	out := s
	out.Inputs = s.Inputs.Clone()
	if s.Result != nil {
		out.Result = append(json.RawMessage(nil), s.Result...)
	}
	if s.Error != nil {
		msg := *s.Error
		out.Error = &msg
	}
	if s.SavedGenerationID != nil {
		id := *s.SavedGenerationID
		out.SavedGenerationID = &id
	}
	return out
}

// adRequestFrom maps form inputs onto the ad endpoint's request. Keys other
// than prompt and image travel as options.
func adRequestFrom(tool domain.Tool, in domain.Inputs) gateway.AdRequest {
	req := gateway.AdRequest{
		Prompt:           in.String("prompt"),
		Image:            in.String("image"),
		GenerateOnlyText: tool.ID == domain.ToolAdCopy,
	}
	if req.Prompt == "" {
		req.Prompt = in.String("product")
	}
	for k, v := range in {
		switch k {
		case "prompt", "image", "generateOnlyText":
			continue
		}
		if req.Options == nil {
			req.Options = make(map[string]any)
		}
		req.Options[k] = v
	}
	return req
}

// inputPeriod reads the nominal period from planner inputs.
func inputPeriod(in domain.Inputs) int {
	for _, k := range []string{"period", "duration", "days"} {
		switch v := in[k].(type) {
		case int:
			if v > 0 {
				return v
			}
		case float64:
			if v >= 1 {
				return int(v)
			}
		case string:
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

func encode(in domain.Inputs) []byte {
	if in == nil {
		return nil
	}
	data, err := json.Marshal(in)
	if err != nil {
		return nil
	}
	return data
}

// IsSuperseded reports whether err means a newer submission replaced the
// request.
func IsSuperseded(err error) bool {
	return errors.Is(err, domain.ErrSuperseded)
}
