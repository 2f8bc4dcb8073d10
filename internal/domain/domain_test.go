package domain

import (
	"encoding/json"
	"testing"
)

// ─── Tool Catalog Tests ─────────────────────────────────────────────────────

func TestLookupTool(t *testing.T) {
	tests := []struct {
		id       ToolID
		wantOK   bool
		wantPaid bool
		wantKind ResultKind
	}{
		{ToolContentPlanner, true, true, KindCalendar},
		{ToolAdCopy, true, true, KindAd},
		{ToolVideoScript, true, true, KindVideo},
		{ToolHashtags, true, true, KindHashtags},
		{"does-not-exist", false, false, ""},
	}
	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			tool, ok := LookupTool(tt.id)
			if ok != tt.wantOK {
				t.Fatalf("LookupTool(%q) ok = %v, want %v", tt.id, ok, tt.wantOK)
			}
			if tool.Paid() != tt.wantPaid {
				t.Errorf("Paid() = %v, want %v", tool.Paid(), tt.wantPaid)
			}
			if tool.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", tool.Kind, tt.wantKind)
			}
		})
	}
}

func TestTools_SortedAndComplete(t *testing.T) {
	all := Tools()
	if len(all) != 6 {
		t.Fatalf("Tools() returned %d, want 6", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Errorf("Tools() not sorted at %d: %q >= %q", i, all[i-1].ID, all[i].ID)
		}
	}
}

// ─── Inputs Tests ───────────────────────────────────────────────────────────

func TestInputs_CloneIsIndependent(t *testing.T) {
	in := Inputs{"topic": "coffee"}
	out := in.Clone()
	out["topic"] = "tea"
	if in["topic"] != "coffee" {
		t.Errorf("original mutated: %v", in["topic"])
	}
	if Inputs(nil).Clone() != nil {
		t.Error("Clone(nil) should stay nil")
	}
}

func TestInputs_String(t *testing.T) {
	in := Inputs{"a": "x", "b": 3}
	if in.String("a") != "x" {
		t.Errorf("String(a) = %q", in.String("a"))
	}
	if in.String("b") != "" {
		t.Errorf("String(b) = %q, want empty for non-string", in.String("b"))
	}
	if in.String("missing") != "" {
		t.Error("String(missing) should be empty")
	}
}

// ─── Invocation Phase Tests ─────────────────────────────────────────────────

func TestToolInvocationState_Phase(t *testing.T) {
	msg := "boom"
	tests := []struct {
		name  string
		state ToolInvocationState
		want  InvocationPhase
	}{
		{"fresh", ToolInvocationState{}, PhaseIdle},
		{"loading wins", ToolInvocationState{Loading: true, Result: json.RawMessage(`{}`)}, PhaseSubmitting},
		{"failed", ToolInvocationState{Error: &msg}, PhaseFailed},
		{"succeeded", ToolInvocationState{Result: json.RawMessage(`{"ok":1}`)}, PhaseSucceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Phase(); got != tt.want {
				t.Errorf("Phase() = %q, want %q", got, tt.want)
			}
		})
	}
}

// ─── Credit Tests ───────────────────────────────────────────────────────────

func TestCreditTransaction_Settled(t *testing.T) {
	for status, want := range map[TransactionStatus]bool{
		TxCompleted: true,
		TxPending:   false,
		TxFailed:    false,
	} {
		tx := CreditTransaction{Status: status}
		if tx.Settled() != want {
			t.Errorf("Settled() for %s = %v, want %v", status, tx.Settled(), want)
		}
	}
}

// ─── Calendar & Notification Tests ──────────────────────────────────────────

func TestCalendarDay_HasContent(t *testing.T) {
	if (CalendarDay{Day: 1}).HasContent() {
		t.Error("empty day should have no content")
	}
	if !(CalendarDay{Day: 2, Stories: []StoryEntry{{Type: "Poll"}}}).HasContent() {
		t.Error("day with a story should have content")
	}
}

func TestNotification_DedupKey(t *testing.T) {
	a := Notification{ID: "1", Level: LevelError, Title: "Failed", Message: "x"}
	b := Notification{ID: "2", Level: LevelError, Title: "Failed", Message: "x"}
	c := Notification{ID: "3", Level: LevelWarning, Title: "Failed", Message: "x"}
	if a.DedupKey() != b.DedupKey() {
		t.Error("same level/title/message should share a key")
	}
	if a.DedupKey() == c.DedupKey() {
		t.Error("different level should produce a different key")
	}
}

// ─── Error Tests ────────────────────────────────────────────────────────────

func TestSentinelErrors(t *testing.T) {
	errors := []struct {
		name string
		err  error
	}{
		{"ErrNotAuthenticated", ErrNotAuthenticated},
		{"ErrInsufficientCredits", ErrInsufficientCredits},
		{"ErrBackend", ErrBackend},
		{"ErrSuperseded", ErrSuperseded},
		{"ErrCalendarPersist", ErrCalendarPersist},
		{"ErrReloadInProgress", ErrReloadInProgress},
	}

	for _, tt := range errors {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Errorf("%s is nil", tt.name)
			}
			if tt.err.Error() == "" {
				t.Errorf("%s.Error() is empty", tt.name)
			}
		})
	}
}
