package payload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adstudio/studio/internal/domain"
)

const calendarJSON = `{"period":14,"calendar":[
	{"day":3,"posts":[{"type":"Storytelling","format":"TikTok","content":"Meet the roaster","purpose":"awareness"}]},
	{"day":10,"stories":[{"type":"Poll","format":"Story","content":"Latte or flat white?","purpose":"engagement"}]}
]}`

// ─── Unwrap ─────────────────────────────────────────────────────────────────

func TestUnwrap_Layers(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"plain object", `{"text":"hi"}`},
		{"string encoded", `"{\"text\":\"hi\"}"`},
		{"single result wrapper", `{"result":{"text":"hi"}}`},
		{"double result wrapper", `{"result":{"result":{"text":"hi"}}}`},
		{"wrapper around encoded string", `{"result":"{\"text\":\"hi\"}"}`},
		{"success envelope", `{"success":true,"data":{"text":"hi"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := Unwrap([]byte(tt.raw))
			require.True(t, ok)
			assert.Equal(t, "hi", v.Get("text").String())
		})
	}
}

func TestUnwrap_RejectsGarbage(t *testing.T) {
	for _, raw := range []string{"", "null", "{not json", `{"result":null}`} {
		_, ok := Unwrap([]byte(raw))
		assert.False(t, ok, "Unwrap(%q)", raw)
	}
}

// ─── Parse ──────────────────────────────────────────────────────────────────

func TestParse_Calendar(t *testing.T) {
	res := Parse(domain.ToolContentPlanner, []byte(calendarJSON))
	cal, ok := res.(Calendar)
	require.True(t, ok, "got %T", res)
	assert.Equal(t, 14, cal.Period)
	require.Len(t, cal.Days, 2)
	assert.Equal(t, 3, cal.Days[0].Day)
	assert.Equal(t, "Storytelling", cal.Days[0].Posts[0].Type)
	assert.Equal(t, "Poll", cal.Days[1].Stories[0].Type)
}

func TestParse_CalendarInvalidDaysZeroed(t *testing.T) {
	raw := `[{"day":"2"},{"day":-1},{"day":2.5},{"day":4}]`
	cal, ok := CalendarFrom([]byte(raw))
	require.True(t, ok)
	days := []int{}
	for _, d := range cal.Days {
		days = append(days, d.Day)
	}
	assert.Equal(t, []int{0, 0, 0, 4}, days)
}

func TestCalendarFrom_NotACalendar(t *testing.T) {
	for _, raw := range []string{`{"calendar":"soon"}`, `[]`, `[1,2]`, `{"text":"x"}`, `oops`} {
		_, ok := CalendarFrom([]byte(raw))
		assert.False(t, ok, "CalendarFrom(%q)", raw)
	}
}

func TestParse_Variants(t *testing.T) {
	tests := []struct {
		name string
		tool domain.ToolID
		raw  string
		want Result
	}{
		{"ad text", domain.ToolAdCopy, `{"text":"Buy now"}`, Ad{Text: "Buy now"}},
		{"ad image", domain.ToolAdImage, `{"success":true,"data":{"image_url":"https://cdn/x.png"}}`, Ad{ImageURL: "https://cdn/x.png"}},
		{"ad task", domain.ToolAdImage, `{"taskId":"t-1"}`, Ad{TaskID: "t-1"}},
		{"video", domain.ToolVideoScript, `{"title":"Cold brew","scenes":["pour",{"description":"sip"}]}`,
			Video{Title: "Cold brew", Scenes: []string{"pour", "sip"}}},
		{"caption string", domain.ToolCaptionWriter, `"Morning ritual"`, Text{Body: "Morning ritual"}},
		{"hashtags array", domain.ToolHashtags, `{"hashtags":["coffee","#latte"]}`, Hashtags{Tags: []string{"#coffee", "#latte"}}},
		{"hashtags string", domain.ToolHashtags, `"#a #b, c"`, Hashtags{Tags: []string{"#a", "#b", "#c"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.tool, []byte(tt.raw)))
		})
	}
}

func TestParse_UnknownNeverPanics(t *testing.T) {
	inputs := []string{"", "null", "42", "[", `{"result":{"result":{"result":"{\"x\":"}}}`, `{"weird":true}`, `"\"\\\"\""`}
	for _, tool := range domain.Tools() {
		for _, raw := range inputs {
			res := Parse(tool.ID, []byte(raw))
			require.NotNil(t, res)
		}
	}
	assert.Equal(t, KindUnknown, Parse("nope", []byte(`{}`)).Kind())
	assert.Equal(t, KindUnknown, Parse(domain.ToolAdCopy, []byte(`{"weird":true}`)).Kind())
}

// ─── DisplayTitle ───────────────────────────────────────────────────────────

func TestDisplayTitle(t *testing.T) {
	tests := []struct {
		name   string
		tool   domain.ToolID
		result string
		inputs string
		want   string
	}{
		{"calendar with inputs", domain.ToolContentPlanner, calendarJSON, `{"businessName":"Bean Bar"}`, "14-Day Content Plan: Bean Bar"},
		{"calendar period from string inputs", domain.ToolContentPlanner, `[{"day":1}]`, `"{\"duration\":\"7\"}"`, "7-Day Content Plan"},
		{"ad headline", domain.ToolAdCopy, `{"result":{"headline":"Fresh roast","text":"..."}}`, ``, "Fresh roast"},
		{"ad first line", domain.ToolAdCopy, `{"text":"Line one\nLine two"}`, ``, "Line one"},
		{"ad image from prompt", domain.ToolAdImage, `{"image_url":"u"}`, `{"prompt":"latte art"}`, "Ad: latte art"},
		{"video from topic", domain.ToolVideoScript, `{"scenes":["a"]}`, `{"topic":"grinders"}`, "Video: grinders"},
		{"hashtags", domain.ToolHashtags, `["a","b"]`, `{"topic":"tea"}`, "2 hashtags for tea"},
		{"malformed falls back", domain.ToolVideoScript, `{{{`, `nope`, "Video Script"},
		{"unknown tool", "mystery", `{}`, `{}`, "Untitled generation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DisplayTitle(tt.tool, []byte(tt.result), []byte(tt.inputs)))
		})
	}
}

func TestDisplayTitle_Truncates(t *testing.T) {
	long := `{"headline":"` + "An extremely long headline that keeps going well past the sixty rune limit" + `"}`
	got := DisplayTitle(domain.ToolAdCopy, []byte(long), nil)
	assert.LessOrEqual(t, len([]rune(got)), maxTitleLen)
	assert.Contains(t, got, "...")
}
