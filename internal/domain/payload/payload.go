// Package payload turns opaque tool results into typed values.
//
// Results arrive in many shapes: plain objects, string-encoded JSON,
// {"result": ...} wrappers nested once or twice, or {"success":..,"data":..}
// envelopes. Parse is total: any input, however malformed, yields a Result,
// and unparseable input becomes an Unknown value instead of an error.
package payload

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/adstudio/studio/internal/domain"
)

// KindUnknown tags results that could not be interpreted for their tool.
const KindUnknown domain.ResultKind = "unknown"

// maxUnwrap bounds how many encoding/wrapper layers are peeled.
const maxUnwrap = 6

// Result is the tagged union of tool results.
type Result interface {
	Kind() domain.ResultKind
}

// Calendar is a content-planner result.
type Calendar struct {
	Days     []domain.CalendarDay `json:"days"`
	Period   int                  `json:"period,omitempty"`
	Strategy string               `json:"strategy,omitempty"`
}

// Ad is an ad-copy or ad-image result.
type Ad struct {
	Headline string `json:"headline,omitempty"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	TaskID   string `json:"task_id,omitempty"`
}

// Video is a video-script result.
type Video struct {
	Title  string   `json:"title,omitempty"`
	Hook   string   `json:"hook,omitempty"`
	Scenes []string `json:"scenes,omitempty"`
	Script string   `json:"script,omitempty"`
}

// Text is a caption-style result.
type Text struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body"`
}

// Hashtags is a hashtag-generator result.
type Hashtags struct {
	Tags []string `json:"tags"`
}

// Unknown holds a payload that did not match its tool's shape.
type Unknown struct {
	Raw    string `json:"raw"`
	Reason string `json:"reason"`
}

func (Calendar) Kind() domain.ResultKind { return domain.KindCalendar }
func (Ad) Kind() domain.ResultKind       { return domain.KindAd }
func (Video) Kind() domain.ResultKind    { return domain.KindVideo }
func (Text) Kind() domain.ResultKind     { return domain.KindText }
func (Hashtags) Kind() domain.ResultKind { return domain.KindHashtags }
func (Unknown) Kind() domain.ResultKind  { return KindUnknown }

// Parse decodes raw as the result of toolID.
func Parse(toolID domain.ToolID, raw []byte) Result {
	tool, ok := domain.LookupTool(toolID)
	if !ok {
		return Unknown{Raw: string(raw), Reason: "unknown tool " + string(toolID)}
	}
	v, ok := Unwrap(raw)
	if !ok {
		return Unknown{Raw: string(raw), Reason: "empty or invalid payload"}
	}

	var res Result
	switch tool.Kind {
	case domain.KindCalendar:
		res = parseCalendar(v)
	case domain.KindAd:
		res = parseAd(v)
	case domain.KindVideo:
		res = parseVideo(v)
	case domain.KindText:
		res = parseText(v)
	case domain.KindHashtags:
		res = parseHashtags(v)
	}
	if res == nil {
		return Unknown{Raw: string(raw), Reason: "unexpected shape for " + string(tool.Kind)}
	}
	return res
}

// Unwrap peels string encoding and result/data wrappers off raw and returns
// the innermost value. ok is false for empty, null or invalid input.
func Unwrap(raw []byte) (gjson.Result, bool) {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return gjson.Result{}, false
	}
	v := gjson.ParseBytes(raw)
	for i := 0; i < maxUnwrap; i++ {
		switch {
		case v.Type == gjson.String:
			inner := strings.TrimSpace(v.Str)
			if !looksLikeJSON(inner) || !gjson.Valid(inner) {
				return v, true
			}
			v = gjson.Parse(inner)
		case v.IsObject() && v.Get("result").Exists():
			v = v.Get("result")
		case v.IsObject() && v.Get("success").Exists() && v.Get("data").Exists():
			v = v.Get("data")
		default:
			return v, v.Type != gjson.Null
		}
	}
	return v, v.Type != gjson.Null
}

func looksLikeJSON(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "[") || strings.HasPrefix(s, `"`)
}

// ─── Calendar ───────────────────────────────────────────────────────────────

// CalendarFrom extracts a well-formed calendar array from a raw result.
// Days whose number is not a positive integer are returned with Day 0 so
// the index can discard them. ok is false when no calendar array exists.
func CalendarFrom(raw []byte) (Calendar, bool) {
	v, ok := Unwrap(raw)
	if !ok {
		return Calendar{}, false
	}
	c, ok := parseCalendar(v).(Calendar)
	return c, ok
}

func parseCalendar(v gjson.Result) Result {
	arr := v
	if !arr.IsArray() {
		arr = firstOf(v, "calendar", "contentCalendar", "days")
	}
	if !arr.IsArray() {
		return nil
	}
	items := arr.Array()
	if len(items) == 0 {
		return nil
	}

	cal := Calendar{Days: make([]domain.CalendarDay, 0, len(items))}
	for _, item := range items {
		if !item.IsObject() {
			return nil
		}
		cal.Days = append(cal.Days, domain.CalendarDay{
			Day:     dayNumber(item.Get("day")),
			Posts:   entries(item.Get("posts")),
			Stories: entries(item.Get("stories")),
			Notes:   item.Get("notes").String(),
		})
	}
	if v.IsObject() {
		cal.Period = positiveInt(firstOf(v, "period", "duration"))
		cal.Strategy = firstOf(v, "strategy", "summary").String()
	}
	return cal
}

func dayNumber(v gjson.Result) int {
	if v.Type != gjson.Number {
		return 0
	}
	return positiveInt(v)
}

func positiveInt(v gjson.Result) int {
	if v.Type == gjson.String {
		n, err := strconv.Atoi(strings.TrimSpace(v.Str))
		if err != nil || n < 1 {
			return 0
		}
		return n
	}
	if v.Type != gjson.Number {
		return 0
	}
	f := v.Float()
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 1 || f != math.Trunc(f) || f > math.MaxInt32 {
		return 0
	}
	return int(f)
}

func entries(v gjson.Result) []domain.ContentEntry {
	if !v.IsArray() {
		return nil
	}
	var out []domain.ContentEntry
	v.ForEach(func(_, e gjson.Result) bool {
		if e.IsObject() {
			out = append(out, domain.ContentEntry{
				Type:       e.Get("type").String(),
				Format:     e.Get("format").String(),
				Content:    e.Get("content").String(),
				Purpose:    e.Get("purpose").String(),
				SeriesPart: e.Get("seriesPart").String(),
			})
		}
		return true
	})
	return out
}

// ─── Ads, Video, Text, Hashtags ─────────────────────────────────────────────

func parseAd(v gjson.Result) Result {
	if v.Type == gjson.String {
		return Ad{Text: v.Str}
	}
	if !v.IsObject() {
		return nil
	}
	ad := Ad{
		Headline: firstOf(v, "headline", "title").String(),
		Text:     firstOf(v, "text", "adCopy", "copy", "content").String(),
		ImageURL: firstOf(v, "image_url", "imageUrl", "url").String(),
		TaskID:   firstOf(v, "taskId", "task_id").String(),
	}
	if ad == (Ad{}) {
		return nil
	}
	return ad
}

func parseVideo(v gjson.Result) Result {
	if v.Type == gjson.String {
		return Video{Script: v.Str}
	}
	if !v.IsObject() {
		return nil
	}
	vid := Video{
		Title:  v.Get("title").String(),
		Hook:   v.Get("hook").String(),
		Script: firstOf(v, "script", "content").String(),
	}
	v.Get("scenes").ForEach(func(_, s gjson.Result) bool {
		switch {
		case s.Type == gjson.String:
			vid.Scenes = append(vid.Scenes, s.Str)
		case s.IsObject():
			if d := firstOf(s, "description", "text", "visual").String(); d != "" {
				vid.Scenes = append(vid.Scenes, d)
			}
		}
		return true
	})
	if vid.Title == "" && vid.Hook == "" && vid.Script == "" && len(vid.Scenes) == 0 {
		return nil
	}
	return vid
}

func parseText(v gjson.Result) Result {
	if v.Type == gjson.String {
		return Text{Body: v.Str}
	}
	if !v.IsObject() {
		return nil
	}
	t := Text{
		Title: v.Get("title").String(),
		Body:  firstOf(v, "caption", "text", "content").String(),
	}
	if t == (Text{}) {
		return nil
	}
	return t
}

func parseHashtags(v gjson.Result) Result {
	var tags []string
	add := func(s string) {
		for _, f := range strings.Fields(s) {
			f = strings.Trim(f, ",")
			if f == "" {
				continue
			}
			if !strings.HasPrefix(f, "#") {
				f = "#" + f
			}
			tags = append(tags, f)
		}
	}
	list := v
	if v.IsObject() {
		list = v.Get("hashtags")
	}
	switch {
	case list.IsArray():
		list.ForEach(func(_, t gjson.Result) bool {
			if t.Type == gjson.String {
				add(t.Str)
			}
			return true
		})
	case list.Type == gjson.String:
		add(list.Str)
	}
	if len(tags) == 0 {
		return nil
	}
	return Hashtags{Tags: tags}
}

// firstOf returns the first existing, non-null field among keys.
func firstOf(v gjson.Result, keys ...string) gjson.Result {
	for _, k := range keys {
		if r := v.Get(k); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}
