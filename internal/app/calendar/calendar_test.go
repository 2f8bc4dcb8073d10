package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adstudio/studio/internal/app/notify"
	"github.com/adstudio/studio/internal/domain"
)

var sparseDays = []domain.CalendarDay{
	{Day: 3, Posts: []domain.PostEntry{{Type: "Storytelling", Format: "TikTok", Content: "Meet the roaster", Purpose: "awareness"}}},
	{Day: 10, Stories: []domain.StoryEntry{{Type: "Poll", Format: "Story", Content: "Latte or flat white?"}}},
}

// ─── Index ──────────────────────────────────────────────────────────────────

func TestIndex_Sparsity(t *testing.T) {
	ix := Build(sparseDays, domain.PeriodFortnight)

	assert.Equal(t, 14, ix.MaxDay())
	assert.Equal(t, 2, ix.Len())
	assert.Equal(t, "Storytelling", ix.DayType(3))
	assert.Equal(t, domain.DayTypeStory, ix.DayType(10))
	for day := 1; day <= 14; day++ {
		if day == 3 || day == 10 {
			continue
		}
		assert.Equal(t, domain.DayTypeRest, ix.DayType(day), "day %d", day)
	}
}

func TestIndex_MaxDayExceedsPeriod(t *testing.T) {
	ix := Build([]domain.CalendarDay{{Day: 9}}, domain.PeriodWeek)
	assert.Equal(t, 9, ix.MaxDay())
	assert.Equal(t, 30, Build(nil, domain.PeriodMonth).MaxDay())
}

func TestIndex_DiscardsInvalidAndLaterWins(t *testing.T) {
	ix := Build([]domain.CalendarDay{
		{Day: 0, Notes: "zero"},
		{Day: -2, Notes: "negative"},
		{Day: 5, Notes: "first"},
		{Day: 5, Notes: "second"},
	}, 0)
	assert.Equal(t, 1, ix.Len())
	d, ok := ix.Day(5)
	require.True(t, ok)
	assert.Equal(t, "second", d.Notes)
	_, ok = ix.Day(0)
	assert.False(t, ok)
}

func TestIndex_Grid(t *testing.T) {
	grid := Build(sparseDays, domain.PeriodWeek).Grid()
	require.Len(t, grid, 10)
	assert.Equal(t, DaySummary{Day: 3, Type: "Storytelling", Posts: 1}, grid[2])
	assert.Equal(t, DaySummary{Day: 10, Type: domain.DayTypeStory, Stories: 1}, grid[9])
	assert.Equal(t, domain.DayTypeRest, grid[0].Type)
}

func TestIndex_NilSafe(t *testing.T) {
	var ix *Index
	assert.True(t, ix.Empty())
	assert.Zero(t, ix.MaxDay())
	assert.Equal(t, domain.DayTypeRest, ix.DayType(1))
	assert.Nil(t, ix.Days())
}

// ─── Bridge Vocabulary ──────────────────────────────────────────────────────

func TestVideoVocabulary(t *testing.T) {
	assert.Equal(t, "storytelling", VideoStyle("Storytelling"))
	assert.Equal(t, "behind-the-scenes", VideoStyle("Behind-the-Scenes"))
	assert.Equal(t, DefaultVideoStyle, VideoStyle("Meme"))
	assert.Equal(t, "tiktok", VideoPlatform("TikTok"))
	assert.Equal(t, "youtube", VideoPlatform("YouTube Shorts"))
	assert.Equal(t, DefaultVideoPlatform, VideoPlatform("Billboard"))

	in := VideoInputs(3, sparseDays[0].Posts[0])
	assert.Equal(t, "Meet the roaster", in["topic"])
	assert.Equal(t, "storytelling", in["style"])
	assert.Equal(t, "tiktok", in["platform"])
	assert.Equal(t, "awareness", in["purpose"])
	assert.Equal(t, 3, in["source_day"])
}

// ─── Service ────────────────────────────────────────────────────────────────

type fakeBackend struct {
	stored  json.RawMessage
	saveErr error
	loadErr error
	writes  int
}

func (f *fakeBackend) Calendar(context.Context, string) (json.RawMessage, error) {
	return f.stored, f.loadErr
}

func (f *fakeBackend) SaveCalendar(_ context.Context, _ string, days []domain.CalendarDay) error {
	f.writes++
	if f.saveErr != nil {
		return f.saveErr
	}
	data, err := json.Marshal(days)
	if err != nil {
		return err
	}
	f.stored = data
	return nil
}

type fakeInvoker struct {
	prefilled domain.Inputs
	submitted domain.Inputs
	tool      domain.ToolID
}

func (f *fakeInvoker) Prefill(toolID domain.ToolID, inputs domain.Inputs) error {
	f.tool, f.prefilled = toolID, inputs
	return nil
}

func (f *fakeInvoker) Submit(_ context.Context, toolID domain.ToolID, inputs domain.Inputs) (domain.ToolInvocationState, error) {
	f.tool, f.submitted = toolID, inputs
	return domain.ToolInvocationState{ToolID: toolID, Inputs: inputs}, nil
}

func TestRebuild_PersistThenSwap(t *testing.T) {
	backend := &fakeBackend{}
	s := New(Config{Backend: backend})
	ctx := context.Background()

	require.NoError(t, s.Rebuild(ctx, "u1", sparseDays, 14))
	assert.Equal(t, 1, backend.writes)
	assert.Equal(t, 2, s.Index().Len())

	ix, err := s.Load(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, ix.Len())
	assert.Equal(t, "Storytelling", ix.DayType(3))
}

func TestRebuild_FailureKeepsPreviousIndex(t *testing.T) {
	backend := &fakeBackend{}
	bus := notify.NewBus(notify.Config{})
	s := New(Config{Backend: backend, Notifier: bus})
	ctx := context.Background()
	require.NoError(t, s.Rebuild(ctx, "u1", sparseDays, 14))

	backend.saveErr = errors.New("write rejected")
	err := s.Rebuild(ctx, "u1", []domain.CalendarDay{{Day: 1, Notes: "new"}}, 7)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCalendarPersist)

	assert.Equal(t, 14, s.Index().MaxDay())
	_, ok := s.Index().Day(1)
	assert.False(t, ok, "failed rebuild must not leak into the index")
	require.NotEmpty(t, bus.Recent(0))
	assert.Equal(t, "Calendar not saved", bus.Recent(0)[0].Title)
}

func TestRebuild_RequiresUser(t *testing.T) {
	s := New(Config{Backend: &fakeBackend{}})
	assert.ErrorIs(t, s.Rebuild(context.Background(), "", sparseDays, 7), domain.ErrNotAuthenticated)
}

func TestLoad_NullAndMalformed(t *testing.T) {
	for _, raw := range []string{"", "null", `{"calendar":"soon"}`} {
		s := New(Config{Backend: &fakeBackend{stored: json.RawMessage(raw)}})
		ix, err := s.Load(context.Background(), "u1")
		require.NoError(t, err)
		assert.True(t, ix.Empty(), "raw %q", raw)
	}
	s := New(Config{Backend: &fakeBackend{loadErr: domain.ErrBackend}})
	_, err := s.Load(context.Background(), "u1")
	assert.ErrorIs(t, err, domain.ErrBackend)
}

func TestSelect(t *testing.T) {
	s := New(Config{Backend: &fakeBackend{}})
	require.NoError(t, s.Rebuild(context.Background(), "u1", sparseDays, 14))

	d, ok := s.Select(3)
	require.True(t, ok)
	assert.Equal(t, 3, d.Day)
	sel, ok := s.Selected()
	require.True(t, ok)
	assert.Equal(t, 3, sel.Day)

	_, ok = s.Select(4)
	assert.False(t, ok)
	_, ok = s.Selected()
	assert.False(t, ok, "selecting a rest day clears the detail view")
}

func TestVideoBridge(t *testing.T) {
	s := New(Config{Backend: &fakeBackend{}})
	require.NoError(t, s.Rebuild(context.Background(), "u1", sparseDays, 14))

	_, err := s.PrefillVideo(3, domain.EntryPost, 0)
	assert.Error(t, err, "bridge not connected yet")

	inv := &fakeInvoker{}
	s.SetInvoker(inv)

	in, err := s.PrefillVideo(10, domain.EntryStory, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.ToolVideoScript, inv.tool)
	assert.Equal(t, "instagram", in["platform"])
	assert.Equal(t, in, inv.prefilled)

	st, err := s.RegenerateAsVideo(context.Background(), 3, domain.EntryPost, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.ToolVideoScript, st.ToolID)
	assert.Equal(t, "tiktok", inv.submitted["platform"])

	_, err = s.RegenerateAsVideo(context.Background(), 3, domain.EntryStory, 0)
	assert.ErrorIs(t, err, domain.ErrNoEntry)
	_, err = s.RegenerateAsVideo(context.Background(), 15, domain.EntryPost, 0)
	assert.ErrorIs(t, err, domain.ErrDayOutOfRange)
}
