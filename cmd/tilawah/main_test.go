package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilawah/internal/engine"
	"tilawah/internal/playback"
	"tilawah/internal/quran"
)

func ikhlaas(translated bool) *quran.Chapter {
	ch := &quran.Chapter{
		ChapterSummary: quran.ChapterSummary{
			Number: 112, Name: "سُورَةُ الإِخۡلَاصِ", EnglishName: "Al-Ikhlaas",
			EnglishNameTranslation: "Sincerity", RevelationType: "Meccan", NumberOfAyahs: 4,
		},
		TranslationEdition: "en.asad",
	}
	for i := 1; i <= 4; i++ {
		v := quran.Verse{ID: 6221 + i, NumberInSurah: i, Text: "ayah " + string(rune('0'+i))}
		if translated {
			v.Translation = "meaning " + string(rune('0'+i))
		}
		ch.Verses = append(ch.Verses, v)
	}
	return ch
}

func TestChapterMarkdown(t *testing.T) {
	md, err := chapterMarkdown(ikhlaas(true), 2, 3)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(md, "# 112. Al-Ikhlaas"))
	assert.Contains(t, md, "English")
	assert.Contains(t, md, "**2.** ayah 2\n\n> meaning 2")
	assert.Contains(t, md, "**3.** ayah 3")
	assert.NotContains(t, md, "ayah 1")
	assert.NotContains(t, md, "ayah 4")

	md, err = chapterMarkdown(ikhlaas(false), 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(md, "_translation unavailable_"))
}

func TestVerseRange(t *testing.T) {
	ch := ikhlaas(true)
	tests := []struct {
		from, to     int
		wantF, wantT int
		wantErr      bool
	}{
		{1, 0, 1, 4, false},
		{0, 99, 1, 4, false},
		{3, 3, 3, 3, false},
		{5, 0, 0, 0, true},
		{3, 2, 0, 0, true},
	}
	for _, tt := range tests {
		f, to, err := verseRange(ch, tt.from, tt.to)
		if tt.wantErr {
			assert.Error(t, err, "%d-%d", tt.from, tt.to)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, [2]int{tt.wantF, tt.wantT}, [2]int{f, to})
	}
}

func TestProgressDraw(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, "EXPORT", "verses", 4)
	p.Set(1)
	assert.Contains(t, buf.String(), "25% (1/4 verses)")
	assert.False(t, strings.HasSuffix(buf.String(), "\n"))

	p.Set(4)
	assert.Contains(t, buf.String(), "100% (4/4 verses)")
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))
}

func TestPrintChapters(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printChapters(&buf, []quran.ChapterSummary{ikhlaas(true).ChapterSummary}))
	assert.Contains(t, buf.String(), "Al-Ikhlaas")
	assert.Contains(t, buf.String(), "Sincerity")

	buf.Reset()
	require.NoError(t, printChapters(&buf, nil))
	assert.Equal(t, "No chapter matches\n", buf.String())
}

type fakeEngine struct {
	calls   []string
	chapter *quran.Chapter
	snap    engine.Snapshot
	err     error
}

func (f *fakeEngine) rec(s string) error { f.calls = append(f.calls, s); return f.err }

func (f *fakeEngine) Open(_ context.Context, n int) error {
	f.chapter = ikhlaas(true)
	return f.rec("open")
}
func (f *fakeEngine) Back(context.Context) error        { return f.rec("back") }
func (f *fakeEngine) PlayChapter(context.Context) error { return f.rec("play") }
func (f *fakeEngine) PlayVerse(_ context.Context, n int) error {
	return f.rec("verse " + string(rune('0'+n)))
}
func (f *fakeEngine) TogglePause(context.Context) error { return f.rec("toggle") }
func (f *fakeEngine) Pause(context.Context) error       { return f.rec("pause") }
func (f *fakeEngine) Resume(context.Context) error      { return f.rec("resume") }
func (f *fakeEngine) Stop(context.Context) error        { return f.rec("stop") }
func (f *fakeEngine) SetTranslation(_ context.Context, ed string) error {
	return f.rec("translation " + ed)
}
func (f *fakeEngine) SetReciter(_ context.Context, ed string) error { return f.rec("reciter " + ed) }
func (f *fakeEngine) ListChapters(_ context.Context, term string) ([]quran.ChapterSummary, error) {
	return quran.Filter([]quran.ChapterSummary{ikhlaas(true).ChapterSummary}, term), nil
}
func (f *fakeEngine) Chapter() *quran.Chapter { return f.chapter }

func (f *fakeEngine) Snapshot() engine.Snapshot { return f.snap }

func (f *fakeEngine) Subscribe(context.Context) <-chan engine.Snapshot { return nil }

func TestShellExec(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{}
	var out bytes.Buffer

	for _, line := range []string{
		"", "open 112", "play", "verse 3", "toggle", "pause", "resume", "stop",
		"translation fr.hamidullah", "reciter ar.husary", "back",
	} {
		require.NoError(t, shellExec(ctx, eng, &out, line), line)
	}
	assert.Equal(t, []string{
		"open", "play", "verse 3", "toggle", "pause", "resume", "stop",
		"translation fr.hamidullah", "reciter ar.husary", "back",
	}, eng.calls)
	assert.Contains(t, out.String(), "opened 112. Al-Ikhlaas (4 verses)")

	out.Reset()
	require.NoError(t, shellExec(ctx, eng, &out, "list sinc"))
	assert.Contains(t, out.String(), "Al-Ikhlaas")
	out.Reset()
	require.NoError(t, shellExec(ctx, eng, &out, "LIST zzz"))
	assert.Contains(t, out.String(), "No chapter matches")

	assert.ErrorIs(t, shellExec(ctx, eng, &out, "quit"), errQuit)
	assert.Error(t, shellExec(ctx, eng, &out, "open x"))
	assert.Error(t, shellExec(ctx, eng, &out, "verse 0"))
	assert.Error(t, shellExec(ctx, eng, &out, "translation"))
	assert.ErrorContains(t, shellExec(ctx, eng, &out, "dance"), "unknown command")

	eng.err = playback.ErrInvalidCommand
	assert.ErrorIs(t, shellExec(ctx, eng, &out, "toggle"), playback.ErrInvalidCommand)
}

func TestShellCopy(t *testing.T) {
	ctx := context.Background()
	eng := &fakeEngine{}
	var out bytes.Buffer
	var copied string
	orig := copyText
	copyText = func(s string) error { copied = s; return nil }
	t.Cleanup(func() { copyText = orig })

	assert.ErrorContains(t, shellExec(ctx, eng, &out, "copy"), "no chapter open")

	require.NoError(t, shellExec(ctx, eng, &out, "open 112"))
	assert.ErrorContains(t, shellExec(ctx, eng, &out, "copy"), "no active verse")

	require.NoError(t, shellExec(ctx, eng, &out, "copy 2"))
	assert.Equal(t, "ayah 2\nmeaning 2\n(Al-Ikhlaas 112:2)", copied)

	v := eng.chapter.Verses[3]
	eng.snap.Verse = &v
	require.NoError(t, shellExec(ctx, eng, &out, "copy"))
	assert.Contains(t, copied, "ayah 4")
	assert.Contains(t, out.String(), "copied 112:4")

	assert.ErrorContains(t, shellExec(ctx, eng, &out, "copy 9"), "has no verse 9")

	copyText = func(string) error { return errors.New("no display") }
	assert.ErrorContains(t, shellExec(ctx, eng, &out, "copy 1"), "no display")
}

func TestPrintStatus(t *testing.T) {
	var buf bytes.Buffer
	printStatus(&buf, engine.Snapshot{Reciter: "Mishary Alafasy", Language: "English"})
	assert.Contains(t, buf.String(), "no chapter open")
	assert.Contains(t, buf.String(), "idle")

	ch := ikhlaas(true)
	v := ch.Verses[1]
	s := engine.Snapshot{Summary: &ch.ChapterSummary, Verse: &v, Error: "playback device error: 404"}
	s.Mode = playback.ModePlayingSequential
	s.Paused = true
	buf.Reset()
	printStatus(&buf, s)
	assert.Contains(t, buf.String(), "112. Al-Ikhlaas")
	assert.Contains(t, buf.String(), "(paused)")
	assert.Contains(t, buf.String(), "verse:    2")
	assert.Contains(t, buf.String(), "404")
}
