// Package quran holds the chapter and verse records shared by the data
// provider, the playback controller and the renderers.
package quran

import "fmt"

// Verse is the smallest playable unit of a chapter.
type Verse struct {
	ID            int    `json:"number"`
	NumberInSurah int    `json:"numberInSurah"`
	Text          string `json:"text"`
	Translation   string `json:"translation,omitempty"`
	Audio         string `json:"audio"`
}

// TranslationPending reports whether the translation text has not arrived yet.
func (v Verse) TranslationPending() bool {
	return v.Translation == ""
}

// ChapterSummary is the list-view record of a chapter.
type ChapterSummary struct {
	Number                 int    `json:"number"`
	Name                   string `json:"name"`
	EnglishName            string `json:"englishName"`
	EnglishNameTranslation string `json:"englishNameTranslation"`
	RevelationType         string `json:"revelationType"`
	NumberOfAyahs          int    `json:"numberOfAyahs"`
}

// Chapter is an ordered, immutable sequence of verses. Once handed to the
// controller a Chapter must not be mutated; derive a new value instead.
type Chapter struct {
	ChapterSummary
	TextEdition        string  `json:"textEdition"`
	TranslationEdition string  `json:"translationEdition"`
	AudioEdition       string  `json:"audioEdition"`
	Verses             []Verse `json:"ayahs"`
}

func (c *Chapter) String() string {
	return fmt.Sprintf("%d. %s (%d verses)", c.Number, c.EnglishName, len(c.Verses))
}

// Len returns the number of verses.
func (c *Chapter) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Verses)
}

// IndexOf returns the position of v in the chapter, or -1 when the verse
// does not belong to it. Both the in-chapter number and the global id must
// match.
func (c *Chapter) IndexOf(v Verse) int {
	i := v.NumberInSurah - 1
	if c == nil || i < 0 || i >= len(c.Verses) {
		return -1
	}
	if c.Verses[i].ID != v.ID {
		return -1
	}
	return i
}

// VerseByNumber looks a verse up by its 1-based position in the chapter.
func (c *Chapter) VerseByNumber(n int) (Verse, bool) {
	if c == nil || n < 1 || n > len(c.Verses) {
		return Verse{}, false
	}
	return c.Verses[n-1], true
}

// WithTranslations returns a copy of the chapter carrying the given
// translation edition. Verses missing from texts are left pending.
func (c *Chapter) WithTranslations(edition string, texts map[int]string) *Chapter {
	out := *c
	out.TranslationEdition = edition
	out.Verses = make([]Verse, len(c.Verses))
	for i, v := range c.Verses {
		v.Translation = texts[v.NumberInSurah]
		out.Verses[i] = v
	}
	return &out
}
