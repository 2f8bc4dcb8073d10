package calendar

import (
	"strings"

	"github.com/adstudio/studio/internal/domain"
)

// ─── Video Bridge Vocabulary ────────────────────────────────────────────────
// Calendar entries speak the planner's vocabulary; the video tool expects
// its own style and platform values. Unrecognized values fall back to the
// defaults.

const (
	DefaultVideoStyle    = "promotional"
	DefaultVideoPlatform = "instagram"
)

var styleByType = map[string]string{
	"storytelling":      "storytelling",
	"educational":       "educational",
	"promotional":       "promotional",
	"behind the scenes": "behind-the-scenes",
	"testimonial":       "testimonial",
	"entertaining":      "entertaining",
	"tutorial":          "educational",
}

var platformByFormat = map[string]string{
	"tiktok":         "tiktok",
	"reel":           "instagram",
	"reels":          "instagram",
	"story":          "instagram",
	"carousel":       "instagram",
	"youtube short":  "youtube",
	"youtube shorts": "youtube",
	"short":          "youtube",
}

// VideoStyle maps a calendar entry type to a video style.
func VideoStyle(entryType string) string {
	if s, ok := styleByType[normalize(entryType)]; ok {
		return s
	}
	return DefaultVideoStyle
}

// VideoPlatform maps a calendar entry format to a video platform.
func VideoPlatform(format string) string {
	if p, ok := platformByFormat[normalize(format)]; ok {
		return p
	}
	return DefaultVideoPlatform
}

// VideoInputs builds pre-filled video-script inputs from a calendar entry.
func VideoInputs(day int, e domain.ContentEntry) domain.Inputs {
	in := domain.Inputs{
		"topic":      e.Content,
		"style":      VideoStyle(e.Type),
		"platform":   VideoPlatform(e.Format),
		"source_day": day,
	}
	if e.Purpose != "" {
		in["purpose"] = e.Purpose
	}
	if e.SeriesPart != "" {
		in["series_part"] = e.SeriesPart
	}
	return in
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}
