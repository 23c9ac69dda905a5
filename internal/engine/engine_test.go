package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"tilawah/internal/alquran"
	"tilawah/internal/playback"
	"tilawah/internal/quran"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var eds = quran.Editions{Text: "quran-uthmani", Translation: "en.asad", Audio: "ar.alafasy"}

type fakeDevice struct {
	mu   sync.Mutex
	ops  []string
	cue  playback.Cue
	sink playback.EventSink
}

func (d *fakeDevice) Load(cue playback.Cue, url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cue = cue
	d.ops = append(d.ops, "load "+url)
}

func (d *fakeDevice) record(op string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops = append(d.ops, op)
}

func (d *fakeDevice) Play()        { d.record("play") }
func (d *fakeDevice) Pause()       { d.record("pause") }
func (d *fakeDevice) SeekToStart() { d.record("seek") }

func (d *fakeDevice) lastCue() playback.Cue {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cue
}

func (d *fakeDevice) takeOps() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	ops := d.ops
	d.ops = nil
	return ops
}

func (d *fakeDevice) finish(cue playback.Cue) {
	d.sink(playback.DeviceEvent{Kind: playback.EventFinished, Cue: cue})
}

func testChapter(number, n int, translation string) *quran.Chapter {
	ch := &quran.Chapter{
		ChapterSummary:     quran.ChapterSummary{Number: number, EnglishName: fmt.Sprintf("Chapter %d", number), NumberOfAyahs: n},
		TextEdition:        eds.Text,
		TranslationEdition: translation,
		AudioEdition:       eds.Audio,
	}
	for i := 1; i <= n; i++ {
		ch.Verses = append(ch.Verses, quran.Verse{
			ID:            number*1000 + i,
			NumberInSurah: i,
			Text:          "text",
			Translation:   translation,
			Audio:         fmt.Sprintf("https://cdn.test/%d.mp3", number*1000+i),
		})
	}
	return ch
}

type fakeProvider struct {
	mu         sync.Mutex
	chapterErr error
	partial    bool
	transErr   error
	gate       chan struct{}
}

func (p *fakeProvider) ListChapters(ctx context.Context) ([]quran.ChapterSummary, error) {
	return []quran.ChapterSummary{
		{Number: 1, EnglishName: "Al-Faatiha", EnglishNameTranslation: "The Opening"},
		{Number: 112, EnglishName: "Al-Ikhlaas", EnglishNameTranslation: "Sincerity"},
	}, nil
}

func (p *fakeProvider) Chapter(ctx context.Context, number int, ed quran.Editions) (*quran.Chapter, error) {
	p.mu.Lock()
	gate, chErr, partial := p.gate, p.chapterErr, p.partial
	p.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if chErr != nil {
		return nil, chErr
	}
	ch := testChapter(number, 3, ed.Translation)
	ch.AudioEdition = ed.Audio
	if partial {
		return ch.WithTranslations(ed.Translation, nil), fmt.Errorf("%w: offline", alquran.ErrTranslationUnavailable)
	}
	return ch, nil
}

func (p *fakeProvider) Translations(ctx context.Context, number int, edition string) (map[int]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.transErr != nil {
		return nil, p.transErr
	}
	return map[int]string{1: edition + " 1", 2: edition + " 2", 3: edition + " 3"}, nil
}

type harness struct {
	e    *Engine
	dev  *fakeDevice
	prov *fakeProvider
	sub  <-chan Snapshot
}

func start(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{dev: &fakeDevice{}, prov: &fakeProvider{}}
	opts.Editions = eds
	h.e = New(h.prov, func(sink playback.EventSink) playback.Device {
		h.dev.sink = sink
		return h.dev
	}, opts)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, h.e.Run(ctx))
	}()
	h.sub = h.e.Subscribe(ctx)
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return h
}

// waitFor consumes snapshots until cond holds.
func (h *harness) waitFor(t *testing.T, cond func(Snapshot) bool) Snapshot {
	t.Helper()
	timeout := time.After(3 * time.Second)
	for {
		select {
		case s := <-h.sub:
			if cond(s) {
				return s
			}
		case <-timeout:
			t.Fatalf("condition not reached; last snapshot %+v", h.e.Snapshot())
			return Snapshot{}
		}
	}
}

func TestSequentialPlaybackAdvancesAndStops(t *testing.T) {
	h := start(t, Options{})
	ctx := context.Background()

	require.NoError(t, h.e.Open(ctx, 112))
	require.NoError(t, h.e.PlayChapter(ctx))
	assert.Equal(t, []string{"load https://cdn.test/112001.mp3", "play"}, h.dev.takeOps())

	h.dev.finish(h.dev.lastCue())
	s := h.waitFor(t, func(s Snapshot) bool { return s.ActiveVerseID == 112002 })
	assert.Equal(t, playback.ModePlayingSequential, s.Mode)
	assert.Equal(t, 2, s.Verse.NumberInSurah)

	h.dev.finish(h.dev.lastCue())
	h.waitFor(t, func(s Snapshot) bool { return s.ActiveVerseID == 112003 })
	h.dev.finish(h.dev.lastCue())
	s = h.waitFor(t, func(s Snapshot) bool { return s.Mode == playback.ModeIdle })
	assert.Nil(t, s.Verse)
	assert.Equal(t, 112, s.Chapter)

	assert.Equal(t, []string{
		"load https://cdn.test/112002.mp3", "play",
		"load https://cdn.test/112003.mp3", "play",
	}, h.dev.takeOps())
}

func TestStaleFinishIsDropped(t *testing.T) {
	h := start(t, Options{})
	ctx := context.Background()

	require.NoError(t, h.e.Open(ctx, 1))
	require.NoError(t, h.e.PlayVerse(ctx, 1))
	stale := h.dev.lastCue()
	require.NoError(t, h.e.PlayVerse(ctx, 2))
	current := h.dev.lastCue()

	h.dev.finish(stale)
	h.dev.sink(playback.DeviceEvent{Kind: playback.EventProgress, Cue: current, Position: time.Second, Duration: 4 * time.Second})

	s := h.waitFor(t, func(s Snapshot) bool { return s.Progress > 0 })
	assert.Equal(t, 1002, s.ActiveVerseID)
	assert.True(t, s.Playing)
	assert.Equal(t, 25.0, s.Progress)
}

func TestOpenFailureLeavesNoChapter(t *testing.T) {
	h := start(t, Options{})
	ctx := context.Background()
	require.NoError(t, h.e.Open(ctx, 1))

	h.prov.mu.Lock()
	h.prov.chapterErr = fmt.Errorf("%w: offline", alquran.ErrDataUnavailable)
	h.prov.mu.Unlock()

	err := h.e.Open(ctx, 2)
	assert.ErrorIs(t, err, alquran.ErrDataUnavailable)
	assert.Nil(t, h.e.Chapter())

	s := h.waitFor(t, func(s Snapshot) bool { return s.Error != "" })
	assert.Equal(t, playback.ModeIdle, s.Mode)
	assert.Zero(t, s.Chapter)
	assert.Zero(t, s.Loading)
	assert.ErrorIs(t, h.e.PlayChapter(ctx), playback.ErrNoChapter)
}

func TestOpenWithMissingTranslations(t *testing.T) {
	h := start(t, Options{})
	h.prov.partial = true

	err := h.e.Open(context.Background(), 112)
	assert.ErrorIs(t, err, alquran.ErrTranslationUnavailable)
	require.NotNil(t, h.e.Chapter())

	s := h.waitFor(t, func(s Snapshot) bool { return s.Chapter == 112 })
	assert.True(t, s.TranslationPending)
	assert.Contains(t, s.Error, "translation unavailable")
}

func TestOpenStopsPreviousChapter(t *testing.T) {
	var opened []int
	h := start(t, Options{OnOpen: func(n int) { opened = append(opened, n) }})
	ctx := context.Background()

	require.NoError(t, h.e.Open(ctx, 1))
	require.NoError(t, h.e.PlayChapter(ctx))
	h.dev.takeOps()

	require.NoError(t, h.e.Open(ctx, 2))
	assert.Equal(t, []string{"pause", "seek"}, h.dev.takeOps())
	assert.Equal(t, 2, h.e.Chapter().Number)
	assert.Equal(t, []int{1, 2}, opened)

	require.NoError(t, h.e.Back(ctx))
	assert.Nil(t, h.e.Chapter())
}

func TestBackCancelsPendingOpen(t *testing.T) {
	h := start(t, Options{})
	gate := make(chan struct{})
	h.prov.mu.Lock()
	h.prov.gate = gate
	h.prov.mu.Unlock()

	errc := make(chan error, 1)
	go func() { errc <- h.e.Open(context.Background(), 5) }()
	h.waitFor(t, func(s Snapshot) bool { return s.Loading == 5 })

	require.NoError(t, h.e.Back(context.Background()))
	close(gate)
	assert.ErrorIs(t, <-errc, errSuperseded)
	assert.Nil(t, h.e.Chapter())
}

func TestCancelledOpenClearsLoading(t *testing.T) {
	h := start(t, Options{})
	h.prov.mu.Lock()
	h.prov.gate = make(chan struct{})
	h.prov.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.e.Open(ctx, 7) }()
	h.waitFor(t, func(s Snapshot) bool { return s.Loading == 7 })

	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Zero(t, h.e.Snapshot().Loading)
	assert.Nil(t, h.e.Chapter())
}

func TestDeviceErrorIsSurfaced(t *testing.T) {
	h := start(t, Options{})
	ctx := context.Background()
	require.NoError(t, h.e.Open(ctx, 1))
	require.NoError(t, h.e.PlayChapter(ctx))

	h.dev.sink(playback.DeviceEvent{Kind: playback.EventError, Cue: h.dev.lastCue(), Reason: "decode failed"})
	s := h.waitFor(t, func(s Snapshot) bool { return s.Error != "" })
	assert.Equal(t, playback.ModeIdle, s.Mode)
	assert.Contains(t, s.Error, "playback device error")
	assert.Contains(t, s.Error, "decode failed")
}

func TestCommandsValidate(t *testing.T) {
	h := start(t, Options{})
	ctx := context.Background()

	assert.ErrorIs(t, h.e.PlayVerse(ctx, 1), playback.ErrNoChapter)
	assert.ErrorIs(t, h.e.TogglePause(ctx), playback.ErrInvalidCommand)
	assert.NoError(t, h.e.Stop(ctx))

	require.NoError(t, h.e.Open(ctx, 1))
	assert.ErrorIs(t, h.e.PlayVerse(ctx, 4), playback.ErrInvalidCommand)
	assert.ErrorIs(t, h.e.Pause(ctx), playback.ErrInvalidCommand)
	assert.ErrorIs(t, h.e.SetTranslation(ctx, "../x"), playback.ErrInvalidCommand)

	require.NoError(t, h.e.PlayVerse(ctx, 3))
	require.NoError(t, h.e.Pause(ctx))
	require.NoError(t, h.e.Pause(ctx))
	assert.True(t, h.e.Snapshot().Paused)
	require.NoError(t, h.e.Resume(ctx))
	require.NoError(t, h.e.Resume(ctx))
	assert.True(t, h.e.Snapshot().Playing)
	assert.Equal(t, []string{"load https://cdn.test/1003.mp3", "play", "pause", "play"}, h.dev.takeOps())
}

func TestSetTranslation(t *testing.T) {
	h := start(t, Options{})
	ctx := context.Background()
	require.NoError(t, h.e.Open(ctx, 1))
	require.NoError(t, h.e.PlayVerse(ctx, 2))

	require.NoError(t, h.e.SetTranslation(ctx, "fr.hamidullah"))
	ch := h.e.Chapter()
	assert.Equal(t, "fr.hamidullah", ch.TranslationEdition)
	assert.Equal(t, "fr.hamidullah 2", ch.Verses[1].Translation)

	s := h.e.Snapshot()
	assert.Equal(t, "French", s.Language)
	assert.Equal(t, 1002, s.ActiveVerseID, "playback is untouched")

	h.prov.mu.Lock()
	h.prov.transErr = errors.New("offline")
	h.prov.mu.Unlock()
	assert.Error(t, h.e.SetTranslation(ctx, "ur.maududi"))
	assert.True(t, h.e.Chapter().Verses[0].TranslationPending())
	assert.True(t, h.e.Snapshot().TranslationPending)
}

func TestSetReciter(t *testing.T) {
	h := start(t, Options{})
	ctx := context.Background()
	require.NoError(t, h.e.SetReciter(ctx, "ar.husary"))
	require.NoError(t, h.e.Open(ctx, 1))
	assert.Equal(t, "ar.husary", h.e.Chapter().AudioEdition)

	require.NoError(t, h.e.SetReciter(ctx, "ar.alafasy"))
	assert.Equal(t, "ar.alafasy", h.e.Chapter().AudioEdition)
	assert.Equal(t, "Mishary Alafasy", h.e.Snapshot().Reciter)
}

func TestListChaptersFilters(t *testing.T) {
	h := start(t, Options{})
	list, err := h.e.ListChapters(context.Background(), "sincer")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 112, list[0].Number)
}

func TestSlowSubscriberSeesNewest(t *testing.T) {
	h := start(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	slow := h.e.Subscribe(ctx)

	require.NoError(t, h.e.Open(context.Background(), 1))
	require.NoError(t, h.e.PlayVerse(context.Background(), 1))
	require.NoError(t, h.e.TogglePause(context.Background()))

	s := <-slow
	assert.Equal(t, h.e.Snapshot().Seq, s.Seq)
	assert.True(t, s.Paused)

	cancel()
	for range slow {
	}
}

func TestCommandsAfterStop(t *testing.T) {
	dev := &fakeDevice{}
	e := New(&fakeProvider{}, func(sink playback.EventSink) playback.Device { return dev }, Options{Editions: eds})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	cancel()
	<-done

	assert.ErrorIs(t, e.Stop(context.Background()), ErrStopped)
	assert.NotEmpty(t, e.Session())
}
