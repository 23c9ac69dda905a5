package quran

import (
	"strconv"
	"strings"
)

// Filter keeps the chapters whose English name, English name translation or
// Arabic name contains term (case-insensitive), or whose number contains
// the raw term.
func Filter(chapters []ChapterSummary, term string) []ChapterSummary {
	lower := strings.ToLower(term)
	out := make([]ChapterSummary, 0, len(chapters))
	for _, c := range chapters {
		if strings.Contains(strings.ToLower(c.EnglishName), lower) ||
			strings.Contains(strings.ToLower(c.EnglishNameTranslation), lower) ||
			strings.Contains(strings.ToLower(c.Name), lower) ||
			strings.Contains(strconv.Itoa(c.Number), term) {
			out = append(out, c)
		}
	}
	return out
}
