package alquran

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilawah/internal/quran"
)

var testEditions = quran.Editions{Text: "quran-uthmani", Translation: "en.asad", Audio: "ar.alafasy"}

const chapterListJSON = `{"code":200,"status":"OK","data":[
 {"number":1,"name":"سُورَةُ ٱلْفَاتِحَةِ","englishName":"Al-Faatiha","englishNameTranslation":"The Opening","numberOfAyahs":7,"revelationType":"Meccan"},
 {"number":2,"name":"سُورَةُ البَقَرَةِ","englishName":"Al-Baqara","englishNameTranslation":"The Cow","numberOfAyahs":286,"revelationType":"Medinan"}
]}`

func surahJSON(edition string, n int, audio bool) string {
	var ayahs []string
	for i := 1; i <= n; i++ {
		a := fmt.Sprintf(`{"number":%d,"numberInSurah":%d,"text":"%s %d"`, 100+i, i, edition, i)
		if audio {
			a += fmt.Sprintf(`,"audio":"https://cdn.test/%s/%d.mp3"`, edition, 100+i)
		}
		ayahs = append(ayahs, a+"}")
	}
	return fmt.Sprintf(`{"code":200,"status":"OK","data":{"number":112,"name":"سُورَةُ الإِخۡلَاصِ",
"englishName":"Al-Ikhlaas","englishNameTranslation":"Sincerity","revelationType":"Meccan","numberOfAyahs":%d,
"ayahs":[%s]}}`, n, strings.Join(ayahs, ","))
}

type fakeAPI struct {
	verses   map[string]int // edition -> verse count
	failing  map[string]int // edition -> http status
	requests atomic.Int32
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.requests.Add(1)
	if r.Header.Get("User-Agent") == "" {
		http.Error(w, "no agent", http.StatusBadRequest)
		return
	}
	if r.URL.Path == "/v1/surah" {
		fmt.Fprint(w, chapterListJSON)
		return
	}
	var number int
	var edition string
	if _, err := fmt.Sscanf(strings.ReplaceAll(r.URL.Path, "/", " "), " v1 surah %d %s", &number, &edition); err != nil {
		http.NotFound(w, r)
		return
	}
	if status, ok := f.failing[edition]; ok {
		http.Error(w, "nope", status)
		return
	}
	n, ok := f.verses[edition]
	if !ok {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, surahJSON(edition, n, strings.HasPrefix(edition, "ar.")))
}

func newFakeAPI(t *testing.T, f *fakeAPI) *Client {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return New(WithBaseURL(srv.URL+"/v1"), WithHTTPClient(srv.Client()))
}

func TestListChapters(t *testing.T) {
	c := newFakeAPI(t, &fakeAPI{})

	list, err := c.ListChapters(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Al-Baqara", list[1].EnglishName)
	assert.Equal(t, 286, list[1].NumberOfAyahs)
	assert.Equal(t, "Medinan", list[1].RevelationType)
}

func TestChapterMergesEditions(t *testing.T) {
	api := &fakeAPI{verses: map[string]int{"quran-uthmani": 4, "ar.alafasy": 4, "en.asad": 4}}
	c := newFakeAPI(t, api)

	ch, err := c.Chapter(context.Background(), 112, testEditions)
	require.NoError(t, err)
	assert.Equal(t, int32(3), api.requests.Load())

	assert.Equal(t, 112, ch.Number)
	assert.Equal(t, "Al-Ikhlaas", ch.EnglishName)
	assert.Equal(t, "en.asad", ch.TranslationEdition)
	assert.Equal(t, "ar.alafasy", ch.AudioEdition)
	require.Len(t, ch.Verses, 4)

	v := ch.Verses[0]
	assert.Equal(t, 101, v.ID)
	assert.Equal(t, 1, v.NumberInSurah)
	assert.Equal(t, "quran-uthmani 1", v.Text)
	assert.Equal(t, "en.asad 1", v.Translation)
	assert.Equal(t, "https://cdn.test/ar.alafasy/101.mp3", v.Audio)
}

func TestChapterTranslationFailureKeepsChapter(t *testing.T) {
	api := &fakeAPI{
		verses:  map[string]int{"quran-uthmani": 4, "ar.alafasy": 4},
		failing: map[string]int{"en.asad": http.StatusBadGateway},
	}
	c := newFakeAPI(t, api)

	ch, err := c.Chapter(context.Background(), 112, testEditions)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTranslationUnavailable)
	assert.ErrorIs(t, err, ErrDataUnavailable)
	require.NotNil(t, ch)
	assert.Len(t, ch.Verses, 4)
	assert.True(t, ch.Verses[0].TranslationPending())
}

func TestChapterFailures(t *testing.T) {
	tests := []struct {
		name   string
		api    *fakeAPI
		number int
	}{
		{"text edition down", &fakeAPI{verses: map[string]int{"ar.alafasy": 4}, failing: map[string]int{"quran-uthmani": 500}}, 112},
		{"audio edition missing", &fakeAPI{verses: map[string]int{"quran-uthmani": 4}}, 112},
		{"verse count mismatch", &fakeAPI{verses: map[string]int{"quran-uthmani": 4, "ar.alafasy": 3}}, 112},
		{"empty chapter", &fakeAPI{verses: map[string]int{"quran-uthmani": 0, "ar.alafasy": 0}}, 112},
		{"number too small", &fakeAPI{}, 0},
		{"number too large", &fakeAPI{}, 115},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newFakeAPI(t, tt.api)
			ch, err := c.Chapter(context.Background(), tt.number, testEditions)
			assert.Nil(t, ch)
			assert.ErrorIs(t, err, ErrDataUnavailable)
			assert.False(t, errors.Is(err, ErrTranslationUnavailable))
		})
	}
}

func TestChapterRejectsUnnumberedVerses(t *testing.T) {
	tests := []struct {
		name  string
		ayahs string
	}{
		{"zero number", `{"number":0,"numberInSurah":1,"text":"a","audio":"https://cdn.test/0.mp3"}`},
		{"zero position", `{"number":6222,"numberInSurah":0,"text":"a","audio":"https://cdn.test/1.mp3"}`},
		{"negative number", `{"number":-4,"numberInSurah":1,"text":"a","audio":"https://cdn.test/2.mp3"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprintf(w, `{"code":200,"status":"OK","data":{"number":112,"englishName":"Al-Ikhlaas","numberOfAyahs":1,"ayahs":[%s]}}`, tt.ayahs)
			}))
			defer srv.Close()

			c := New(WithBaseURL(srv.URL))
			ch, err := c.Chapter(context.Background(), 112, testEditions)
			assert.Nil(t, ch)
			assert.ErrorIs(t, err, ErrDataUnavailable)
		})
	}
}

func TestInvalidEditionNeverHitsTheNetwork(t *testing.T) {
	api := &fakeAPI{}
	c := newFakeAPI(t, api)

	_, err := c.Translations(context.Background(), 1, "en.asad/../../x")
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.Zero(t, api.requests.Load())
}

func TestAPIErrorCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":404,"status":"NOT FOUND","data":[]}`)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL))
	_, err := c.ListChapters(context.Background())
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.Contains(t, err.Error(), "api code 404")
}

func TestBodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chapterListJSON)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithMaxBytes(64))
	_, err := c.ListChapters(context.Background())
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	c := New(WithBaseURL(srv.URL), WithTimeout(50*time.Millisecond))
	_, err := c.ListChapters(context.Background())
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
