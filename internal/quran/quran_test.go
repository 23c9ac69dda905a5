package quran

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChapter() *Chapter {
	return &Chapter{
		ChapterSummary: ChapterSummary{Number: 1, EnglishName: "Al-Faatiha", NumberOfAyahs: 3},
		Verses: []Verse{
			{ID: 1, NumberInSurah: 1, Text: "a"},
			{ID: 2, NumberInSurah: 2, Text: "b"},
			{ID: 3, NumberInSurah: 3, Text: "c"},
		},
	}
}

func TestChapterIndexOf(t *testing.T) {
	ch := testChapter()

	assert.Equal(t, 0, ch.IndexOf(ch.Verses[0]))
	assert.Equal(t, 2, ch.IndexOf(ch.Verses[2]))
	assert.Equal(t, -1, ch.IndexOf(Verse{ID: 9, NumberInSurah: 2}), "id mismatch")
	assert.Equal(t, -1, ch.IndexOf(Verse{ID: 4, NumberInSurah: 4}), "past the end")
	assert.Equal(t, -1, ch.IndexOf(Verse{}), "zero verse")

	var nilChapter *Chapter
	assert.Equal(t, -1, nilChapter.IndexOf(Verse{ID: 1, NumberInSurah: 1}))
	assert.Equal(t, 0, nilChapter.Len())
}

func TestVerseByNumber(t *testing.T) {
	ch := testChapter()

	v, ok := ch.VerseByNumber(2)
	require.True(t, ok)
	assert.Equal(t, "b", v.Text)

	_, ok = ch.VerseByNumber(0)
	assert.False(t, ok)
	_, ok = ch.VerseByNumber(4)
	assert.False(t, ok)
}

func TestWithTranslationsCopies(t *testing.T) {
	ch := testChapter()
	tr := ch.WithTranslations("fr.hamidullah", map[int]string{1: "un", 3: "trois"})

	assert.Equal(t, "fr.hamidullah", tr.TranslationEdition)
	assert.Equal(t, "un", tr.Verses[0].Translation)
	assert.True(t, tr.Verses[1].TranslationPending())
	assert.Equal(t, "trois", tr.Verses[2].Translation)

	// the source chapter is untouched
	assert.Empty(t, ch.TranslationEdition)
	assert.True(t, ch.Verses[0].TranslationPending())
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "English", LanguageName("en.asad"))
	assert.Equal(t, "Urdu", LanguageName("ur.maududi"))
	assert.Equal(t, "Turkish", LanguageName("tr.yazir"))
	assert.Equal(t, "ID", LanguageName("id.indonesian"))
}

func TestReciterName(t *testing.T) {
	assert.Equal(t, "Mishary Alafasy", ReciterName("ar.alafasy"))
	assert.Equal(t, "Maher Al Muaiqly", ReciterName("ar.mahermuaiqly"))
	assert.Equal(t, "ar.minshawi", ReciterName("ar.minshawi"))
}

func TestNextEditionWraps(t *testing.T) {
	assert.Equal(t, "en.pickthall", NextEdition(TranslationEditions, "en.asad").Code)
	assert.Equal(t, "en.asad", NextEdition(TranslationEditions, "tr.yazir").Code)
	assert.Equal(t, "en.asad", NextEdition(TranslationEditions, "xx.unknown").Code)
}

func TestValidEdition(t *testing.T) {
	assert.True(t, ValidEdition("en.asad"))
	assert.True(t, ValidEdition("quran.uthmani"))
	assert.True(t, ValidEdition("quran-uthmani"))
	assert.False(t, ValidEdition(""))
	assert.False(t, ValidEdition("en."))
	assert.False(t, ValidEdition(".asad"))
	assert.False(t, ValidEdition("en.asad/../x"))
}

func TestFilter(t *testing.T) {
	list := []ChapterSummary{
		{Number: 1, Name: "سُورَةُ ٱلْفَاتِحَةِ", EnglishName: "Al-Faatiha", EnglishNameTranslation: "The Opening"},
		{Number: 2, Name: "سُورَةُ البَقَرَةِ", EnglishName: "Al-Baqara", EnglishNameTranslation: "The Cow"},
		{Number: 112, Name: "سُورَةُ الإِخۡلَاصِ", EnglishName: "Al-Ikhlaas", EnglishNameTranslation: "Sincerity"},
	}

	tests := []struct {
		term string
		want []int
	}{
		{"", []int{1, 2, 112}},
		{"cow", []int{2}},
		{"AL-", []int{1, 2, 112}},
		{"opening", []int{1}},
		{"1", []int{1, 112}},
		{"12", []int{112}},
		{"البَقَرَةِ", []int{2}},
		{"zzz", nil},
	}
	for _, tt := range tests {
		t.Run(tt.term, func(t *testing.T) {
			var got []int
			for _, c := range Filter(list, tt.term) {
				got = append(got, c.Number)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
