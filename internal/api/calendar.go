package api

import (
	"fmt"
	"net/http"

	"github.com/adstudio/studio/internal/app/calendar"
	"github.com/adstudio/studio/internal/domain"
)

// ─── Calendar API ───────────────────────────────────────────────────────────
//
// GET  /api/calendar                            grid over 1..max day
// POST /api/calendar/load                       fetch the stored calendar
// GET  /api/calendar/days/{day}                 select a day
// POST /api/calendar/days/{day}/prefill-video   hand an entry to the video tool
// POST /api/calendar/days/{day}/video           regenerate an entry as video

type calendarView struct {
	Period   int                   `json:"period"`
	MaxDay   int                   `json:"max_day"`
	Days     int                   `json:"days_with_content"`
	Grid     []calendar.DaySummary `json:"grid"`
	Selected *domain.CalendarDay   `json:"selected,omitempty"`
}

type entryRef struct {
	Kind  domain.EntryKind `json:"kind"`
	Index int              `json:"index"`
}

func (s *Server) calendarSnapshot() calendarView {
	ix := s.app.Calendar.Index()
	v := calendarView{
		Period: ix.Period(),
		MaxDay: ix.MaxDay(),
		Days:   ix.Len(),
		Grid:   ix.Grid(),
	}
	if d, ok := s.app.Calendar.Selected(); ok {
		v.Selected = &d
	}
	return v
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.calendarSnapshot())
}

func (s *Server) handleCalendarLoad(w http.ResponseWriter, r *http.Request) {
	if _, err := s.app.Calendar.Load(r.Context(), s.app.Session.UserID()); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.calendarSnapshot())
}

func (s *Server) handleCalendarDay(w http.ResponseWriter, r *http.Request) {
	n, ok := s.dayParam(w, r)
	if !ok {
		return
	}
	d, selected := s.app.Calendar.Select(n)
	if !selected {
		writeJSON(w, http.StatusOK, map[string]any{
			"day":  n,
			"type": s.app.Calendar.Index().DayType(n),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"day":  n,
		"type": s.app.Calendar.Index().DayType(n),
		"data": d,
	})
}

func (s *Server) handlePrefillVideo(w http.ResponseWriter, r *http.Request) {
	n, ref, ok := s.entryParams(w, r)
	if !ok {
		return
	}
	inputs, err := s.app.Calendar.PrefillVideo(n, ref.Kind, ref.Index)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tool_id": domain.ToolVideoScript,
		"inputs":  inputs,
	})
}

func (s *Server) handleRegenerateVideo(w http.ResponseWriter, r *http.Request) {
	n, ref, ok := s.entryParams(w, r)
	if !ok {
		return
	}
	st, err := s.app.Calendar.RegenerateAsVideo(r.Context(), n, ref.Kind, ref.Index)
	s.writeSubmit(w, domain.ToolVideoScript, st, err)
}

func (s *Server) dayParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	n, ok := intParam(r, "day")
	if !ok {
		writeError(w, http.StatusBadRequest, "day must be an integer")
		return 0, false
	}
	if n < 1 || n > s.app.Calendar.Index().MaxDay() {
		s.writeDomainError(w, fmt.Errorf("%w: %d", domain.ErrDayOutOfRange, n))
		return 0, false
	}
	return n, true
}

func (s *Server) entryParams(w http.ResponseWriter, r *http.Request) (int, entryRef, bool) {
	n, ok := s.dayParam(w, r)
	if !ok {
		return 0, entryRef{}, false
	}
	ref := entryRef{Kind: domain.EntryPost}
	if err := decodeBody(w, r, &ref); err != nil {
		writeError(w, http.StatusBadRequest, "invalid entry reference")
		return 0, entryRef{}, false
	}
	if ref.Kind != domain.EntryPost && ref.Kind != domain.EntryStory {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("kind must be %q or %q", domain.EntryPost, domain.EntryStory))
		return 0, entryRef{}, false
	}
	return n, ref, true
}
