package domain

// ─── Content Calendar ───────────────────────────────────────────────────────
// A calendar is a sparse set of days over a nominal period. Days that are
// absent are rest days; there is no explicit empty record for them.

// Nominal calendar periods offered by the content planner.
const (
	PeriodWeek      = 7
	PeriodFortnight = 14
	PeriodMonth     = 30
)

// Day types reported for days without posts.
const (
	DayTypeStory = "Story"
	DayTypeRest  = "Rest"
)

// ContentEntry is one scheduled post or story.
type ContentEntry struct {
	Type       string `json:"type"`
	Format     string `json:"format"`
	Content    string `json:"content"`
	Purpose    string `json:"purpose"`
	SeriesPart string `json:"seriesPart,omitempty"`
}

// PostEntry and StoryEntry share a shape.
type (
	PostEntry  = ContentEntry
	StoryEntry = ContentEntry
)

// CalendarDay is the plan for a single day number (1-based).
type CalendarDay struct {
	Day     int          `json:"day"`
	Posts   []PostEntry  `json:"posts"`
	Stories []StoryEntry `json:"stories"`
	Notes   string       `json:"notes,omitempty"`
}

// HasContent reports whether anything is scheduled on the day.
func (d CalendarDay) HasContent() bool {
	return len(d.Posts) > 0 || len(d.Stories) > 0
}

// EntryKind selects between a day's posts and stories.
type EntryKind string

const (
	EntryPost  EntryKind = "post"
	EntryStory EntryKind = "story"
)
