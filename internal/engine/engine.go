/*
 * Copyright (c) 2025 Hardiyanto Y -Ebiet.
 * This software is part of the HDX Tilawah project.
 * This code is provided "as is", without warranty of any kind.
 */

// Package engine is the single authority over the playback controller and
// the audio device. User commands and device events are applied one at a
// time on the engine goroutine; renderers observe snapshots.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"tilawah/internal/playback"
	"tilawah/internal/quran"
)

// ErrStopped is returned by commands issued after Run has returned.
var ErrStopped = errors.New("engine stopped")

// errSuperseded reports a fetch overtaken by a later Open or Back.
var errSuperseded = errors.New("superseded by a newer request")

// Provider supplies chapter data.
type Provider interface {
	ListChapters(ctx context.Context) ([]quran.ChapterSummary, error)
	Chapter(ctx context.Context, number int, ed quran.Editions) (*quran.Chapter, error)
	Translations(ctx context.Context, number int, edition string) (map[int]string, error)
}

// DeviceFactory builds the audio device around the engine's event sink.
type DeviceFactory func(sink playback.EventSink) playback.Device

type Options struct {
	Editions quran.Editions
	Logger   *zap.Logger
	// OnOpen runs on the engine goroutine after a chapter is opened.
	OnOpen func(number int)
}

type request struct {
	fn    func() error
	reply chan error
}

type Engine struct {
	provider Provider
	log      *zap.Logger
	session  string
	onOpen   func(int)

	reqs   chan request
	events chan playback.DeviceEvent
	done   chan struct{}

	// owned by the engine goroutine
	ctl      *playback.Controller
	editions quran.Editions
	loading  int
	lastErr  error
	gen      uint64

	chapter atomic.Pointer[quran.Chapter]

	subMu  sync.Mutex
	subs   map[int]chan Snapshot
	nextID int
	seq    uint64
	last   Snapshot
}

func New(p Provider, newDevice DeviceFactory, opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	e := &Engine{
		provider: p,
		log:      opts.Logger.Named("engine"),
		session:  uuid.NewString(),
		onOpen:   opts.OnOpen,
		reqs:     make(chan request),
		events:   make(chan playback.DeviceEvent, 64),
		done:     make(chan struct{}),
		editions: opts.Editions,
		subs:     make(map[int]chan Snapshot),
	}
	e.ctl = playback.NewController(newDevice(e.sink))
	e.last = e.snapshot()
	return e
}

// Session identifies this engine instance in snapshots.
func (e *Engine) Session() string { return e.session }

// sink queues a device event. Progress is dropped when the queue is full;
// completion and errors wait for the engine.
func (e *Engine) sink(ev playback.DeviceEvent) {
	if ev.Kind == playback.EventProgress {
		select {
		case e.events <- ev:
		default:
		}
		return
	}
	select {
	case e.events <- ev:
	case <-e.done:
	}
}

// Run applies requests and device events until ctx is done. Playback is
// stopped on the way out.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)
	e.log.Info("engine started", zap.String("session", e.session))
	for {
		select {
		case <-ctx.Done():
			e.ctl.Stop()
			e.log.Info("engine stopped")
			return nil

		case r := <-e.reqs:
			err := r.fn()
			e.publish()
			r.reply <- err

		case ev := <-e.events:
			if ev.Cue != e.ctl.Cue() {
				e.log.Debug("stale device event", zap.Stringer("kind", ev.Kind), zap.Uint64("cue", uint64(ev.Cue)))
				continue
			}
			if err := e.ctl.Handle(ev); err != nil {
				e.lastErr = err
				e.log.Warn("playback failed", zap.Error(err))
			}
			if ev.Kind == playback.EventFinished {
				e.log.Debug("verse finished", zap.Int("active", e.ctl.State().ActiveVerseID))
			}
			e.publish()
		}
	}
}

// do runs fn on the engine goroutine and waits for its result.
func (e *Engine) do(ctx context.Context, fn func() error) error {
	r := request{fn: fn, reply: make(chan error, 1)}
	select {
	case e.reqs <- r:
	case <-ctx.Done():
		return ctx.Err()
	case <-e.done:
		return ErrStopped
	}
	select {
	case err := <-r.reply:
		return err
	case <-e.done:
		return ErrStopped
	}
}

// command runs a user command, recording its error for the snapshot.
func (e *Engine) command(ctx context.Context, name string, fn func() error) error {
	return e.do(ctx, func() error {
		err := fn()
		e.lastErr = err
		if err != nil {
			e.log.Debug("command rejected", zap.String("command", name), zap.Error(err))
		} else {
			e.log.Debug("command", zap.String("command", name))
		}
		return err
	})
}

// Open closes the current chapter, fetches chapter number and opens it.
// When the fetch fails no chapter stays open. A chapter whose translations
// failed is opened and the translation error is returned.
func (e *Engine) Open(ctx context.Context, number int) error {
	var gen uint64
	var eds quran.Editions
	err := e.command(ctx, "open", func() error {
		e.closeChapter()
		e.gen++
		gen, eds = e.gen, e.editions
		e.loading = number
		return nil
	})
	if err != nil {
		return err
	}

	ch, fetchErr := e.provider.Chapter(ctx, number, eds)
	if err := ctx.Err(); err != nil {
		// the caller gave up; clear the loading marker unless a newer open owns it
		_ = e.do(context.WithoutCancel(ctx), func() error {
			if e.gen == gen {
				e.loading = 0
			}
			return nil
		})
		return err
	}

	return e.do(ctx, func() error {
		if e.gen != gen {
			return errSuperseded
		}
		e.loading = 0
		if ch == nil {
			if fetchErr == nil {
				fetchErr = fmt.Errorf("chapter %d: empty response", number)
			}
			e.lastErr = fetchErr
			e.log.Warn("chapter fetch failed", zap.Int("chapter", number), zap.Error(fetchErr))
			return fetchErr
		}
		if err := e.ctl.Open(ch); err != nil {
			e.lastErr = err
			return err
		}
		e.chapter.Store(ch)
		e.lastErr = fetchErr
		e.log.Info("chapter opened", zap.Int("chapter", number), zap.Int("verses", ch.Len()),
			zap.String("translation", ch.TranslationEdition), zap.String("audio", ch.AudioEdition))
		if e.onOpen != nil {
			e.onOpen(number)
		}
		return fetchErr
	})
}

// Back closes the chapter and returns to the list.
func (e *Engine) Back(ctx context.Context) error {
	return e.command(ctx, "back", func() error {
		e.gen++
		e.loading = 0
		e.closeChapter()
		return nil
	})
}

func (e *Engine) closeChapter() {
	e.ctl.Close()
	e.chapter.Store(nil)
}

func (e *Engine) PlayChapter(ctx context.Context) error {
	return e.command(ctx, "play-chapter", func() error {
		ch := e.ctl.Chapter()
		if ch == nil {
			return playback.ErrNoChapter
		}
		return e.ctl.PlayChapter(ch)
	})
}

// PlayVerse plays the verse numbered n within the open chapter.
func (e *Engine) PlayVerse(ctx context.Context, n int) error {
	return e.command(ctx, "play-verse", func() error {
		ch := e.ctl.Chapter()
		if ch == nil {
			return playback.ErrNoChapter
		}
		v, ok := ch.VerseByNumber(n)
		if !ok {
			return fmt.Errorf("%w: chapter %d has no verse %d", playback.ErrInvalidCommand, ch.Number, n)
		}
		return e.ctl.PlayVerse(ch, v)
	})
}

func (e *Engine) TogglePause(ctx context.Context) error {
	return e.command(ctx, "toggle", e.ctl.TogglePause)
}

// Pause pauses a playing verse; it is a no-op when already paused.
func (e *Engine) Pause(ctx context.Context) error {
	return e.command(ctx, "pause", func() error {
		if !e.ctl.State().Playing {
			if e.ctl.State().Paused() {
				return nil
			}
			return fmt.Errorf("%w: nothing is playing", playback.ErrInvalidCommand)
		}
		return e.ctl.TogglePause()
	})
}

// Resume continues a paused verse; it is a no-op when already playing.
func (e *Engine) Resume(ctx context.Context) error {
	return e.command(ctx, "resume", func() error {
		if e.ctl.State().Playing {
			return nil
		}
		return e.ctl.TogglePause()
	})
}

func (e *Engine) Stop(ctx context.Context) error {
	return e.command(ctx, "stop", func() error {
		e.ctl.Stop()
		return nil
	})
}

// SetTranslation switches the translation edition. The open chapter shows
// pending translations until the new texts arrive; on failure they stay
// pending and the error is returned.
func (e *Engine) SetTranslation(ctx context.Context, edition string) error {
	if !quran.ValidEdition(edition) {
		return fmt.Errorf("%w: invalid edition %q", playback.ErrInvalidCommand, edition)
	}
	var number int
	var gen uint64
	err := e.command(ctx, "translation", func() error {
		e.editions.Translation = edition
		ch := e.ctl.Chapter()
		if ch == nil || ch.TranslationEdition == edition {
			return nil
		}
		pending := ch.WithTranslations(edition, nil)
		if err := e.ctl.Refresh(pending); err != nil {
			return err
		}
		e.chapter.Store(pending)
		number, gen = ch.Number, e.gen
		return nil
	})
	if err != nil || number == 0 {
		return err
	}

	texts, fetchErr := e.provider.Translations(ctx, number, edition)

	return e.do(ctx, func() error {
		ch := e.ctl.Chapter()
		if e.gen != gen || ch == nil || ch.TranslationEdition != edition {
			return errSuperseded
		}
		if fetchErr != nil {
			e.lastErr = fetchErr
			e.log.Warn("translation fetch failed", zap.Int("chapter", number),
				zap.String("edition", edition), zap.Error(fetchErr))
			return fetchErr
		}
		next := ch.WithTranslations(edition, texts)
		if err := e.ctl.Refresh(next); err != nil {
			return err
		}
		e.chapter.Store(next)
		return nil
	})
}

// SetReciter switches the recitation edition and refetches the open
// chapter's audio. The verse playing now finishes with the old reciter.
func (e *Engine) SetReciter(ctx context.Context, edition string) error {
	if !quran.ValidEdition(edition) {
		return fmt.Errorf("%w: invalid edition %q", playback.ErrInvalidCommand, edition)
	}
	var number int
	var gen uint64
	var eds quran.Editions
	err := e.command(ctx, "reciter", func() error {
		e.editions.Audio = edition
		if ch := e.ctl.Chapter(); ch != nil && ch.AudioEdition != edition {
			number, gen, eds = ch.Number, e.gen, e.editions
		}
		return nil
	})
	if err != nil || number == 0 {
		return err
	}

	fresh, fetchErr := e.provider.Chapter(ctx, number, eds)

	return e.do(ctx, func() error {
		if e.gen != gen || e.ctl.Chapter() == nil {
			return errSuperseded
		}
		if fresh == nil {
			e.lastErr = fetchErr
			return fetchErr
		}
		if err := e.ctl.Refresh(fresh); err != nil {
			e.lastErr = err
			return err
		}
		e.chapter.Store(fresh)
		e.lastErr = fetchErr
		return fetchErr
	})
}

// Editions returns the editions used for the next fetch.
func (e *Engine) Editions(ctx context.Context) (quran.Editions, error) {
	var eds quran.Editions
	err := e.do(ctx, func() error {
		eds = e.editions
		return nil
	})
	return eds, err
}

// ListChapters returns the chapter summaries matching term.
func (e *Engine) ListChapters(ctx context.Context, term string) ([]quran.ChapterSummary, error) {
	list, err := e.provider.ListChapters(ctx)
	if err != nil {
		return nil, err
	}
	return quran.Filter(list, term), nil
}

// Chapter returns the open chapter, nil when on the chapter list. The
// result must not be mutated.
func (e *Engine) Chapter() *quran.Chapter {
	return e.chapter.Load()
}
