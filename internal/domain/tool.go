// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture; it depends on nothing.
package domain

import (
	"encoding/json"
	"sort"
)

// ─── Tool Catalog ───────────────────────────────────────────────────────────

// ToolID names one generation capability.
type ToolID string

const (
	ToolContentPlanner ToolID = "content-planner"
	ToolAdCopy         ToolID = "ad-copy"
	ToolAdImage        ToolID = "ad-image"
	ToolVideoScript    ToolID = "video-script"
	ToolCaptionWriter  ToolID = "caption-writer"
	ToolHashtags       ToolID = "hashtag-generator"
)

// ResultKind is the shape a tool's result is expected to take.
type ResultKind string

const (
	KindCalendar ResultKind = "calendar"
	KindAd       ResultKind = "ad"
	KindVideo    ResultKind = "video"
	KindText     ResultKind = "text"
	KindHashtags ResultKind = "hashtags"
)

// Tool describes a generation capability and what it costs.
type Tool struct {
	ID   ToolID     `json:"id"`
	Name string     `json:"name"`
	Cost int64      `json:"cost"` // credits deducted after a successful generation
	Kind ResultKind `json:"kind"`
	// ViaAdEndpoint routes the tool through /generate-ad instead of /tools.
	ViaAdEndpoint bool `json:"via_ad_endpoint,omitempty"`
}

// Paid reports whether a successful generation triggers a deduction.
func (t Tool) Paid() bool { return t.Cost > 0 }

var tools = map[ToolID]Tool{
	ToolContentPlanner: {ID: ToolContentPlanner, Name: "Content Planner", Cost: 5, Kind: KindCalendar},
	ToolAdCopy:         {ID: ToolAdCopy, Name: "Ad Copy", Cost: 1, Kind: KindAd, ViaAdEndpoint: true},
	ToolAdImage:        {ID: ToolAdImage, Name: "Ad Image", Cost: 3, Kind: KindAd, ViaAdEndpoint: true},
	ToolVideoScript:    {ID: ToolVideoScript, Name: "Video Script", Cost: 2, Kind: KindVideo},
	ToolCaptionWriter:  {ID: ToolCaptionWriter, Name: "Caption Writer", Cost: 1, Kind: KindText},
	ToolHashtags:       {ID: ToolHashtags, Name: "Hashtag Generator", Cost: 1, Kind: KindHashtags},
}

// LookupTool returns the catalog entry for id.
func LookupTool(id ToolID) (Tool, bool) {
	t, ok := tools[id]
	return t, ok
}

// Tools returns the catalog sorted by id.
func Tools() []Tool {
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ─── Invocation State ───────────────────────────────────────────────────────

// Inputs are the form values submitted to a tool.
type Inputs map[string]any

// Clone returns a shallow copy so callers cannot mutate manager state.
func (in Inputs) Clone() Inputs {
	if in == nil {
		return nil
	}
	out := make(Inputs, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// String returns the value at key if it is a non-empty string.
func (in Inputs) String(key string) string {
	if s, ok := in[key].(string); ok {
		return s
	}
	return ""
}

// InvocationPhase is the state-machine position of one tool.
type InvocationPhase string

const (
	PhaseIdle       InvocationPhase = "idle"
	PhaseSubmitting InvocationPhase = "submitting"
	PhaseSucceeded  InvocationPhase = "succeeded"
	PhaseFailed     InvocationPhase = "failed"
)

// ToolInvocationState is the per-tool bookkeeping owned by the invocation
// manager. On completion exactly one of Result or Error is set.
type ToolInvocationState struct {
	ToolID            ToolID          `json:"tool_id"`
	Inputs            Inputs          `json:"inputs,omitempty"`
	Result            json.RawMessage `json:"result,omitempty"`
	Loading           bool            `json:"loading"`
	Error             *string         `json:"error"`
	SavedGenerationID *string         `json:"saved_generation_id"`
}

// Phase derives the state-machine position from the stored fields.
func (s ToolInvocationState) Phase() InvocationPhase {
	switch {
	case s.Loading:
		return PhaseSubmitting
	case s.Error != nil:
		return PhaseFailed
	case s.Result != nil:
		return PhaseSucceeded
	default:
		return PhaseIdle
	}
}
