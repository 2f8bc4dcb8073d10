package payload

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/adstudio/studio/internal/domain"
)

const maxTitleLen = 60

// DisplayTitle derives a human label for a generation record from its
// result and inputs. Expected fields are picked per tool; when they are
// missing the label falls back to a generic one. It never fails.
func DisplayTitle(toolID domain.ToolID, result, inputs []byte) string {
	in, ok := Unwrap(inputs)
	if !ok || !in.IsObject() {
		in = gjson.Result{}
	}
	res := Parse(toolID, result)

	var title string
	switch r := res.(type) {
	case Calendar:
		period := r.Period
		if period == 0 {
			period = positiveInt(firstOf(in, "period", "duration", "days"))
		}
		subject := firstOf(in, "businessName", "niche", "topic", "industry").String()
		switch {
		case period > 0 && subject != "":
			title = fmt.Sprintf("%d-Day Content Plan: %s", period, subject)
		case period > 0:
			title = fmt.Sprintf("%d-Day Content Plan", period)
		case subject != "":
			title = "Content Plan: " + subject
		}
	case Ad:
		title = firstNonEmpty(r.Headline, firstLine(r.Text))
		if title == "" {
			title = prefixed("Ad: ", firstOf(in, "product", "prompt").String())
		}
	case Video:
		title = firstNonEmpty(r.Title, r.Hook)
		if title == "" {
			title = prefixed("Video: ", firstOf(in, "topic", "content").String())
		}
	case Text:
		title = firstNonEmpty(r.Title, firstLine(r.Body))
	case Hashtags:
		if topic := firstOf(in, "topic", "niche").String(); topic != "" {
			title = fmt.Sprintf("%d hashtags for %s", len(r.Tags), topic)
		} else {
			title = fmt.Sprintf("%d hashtags", len(r.Tags))
		}
	}

	if title == "" {
		title = fallbackTitle(toolID)
	}
	return truncate(title, maxTitleLen)
}

func fallbackTitle(toolID domain.ToolID) string {
	if tool, ok := domain.LookupTool(toolID); ok {
		return tool.Name
	}
	return "Untitled generation"
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func prefixed(prefix, s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return ""
	}
	return prefix + s
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-3])) + "..."
}
