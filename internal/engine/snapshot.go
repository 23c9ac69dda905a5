package engine

import (
	"context"

	"tilawah/internal/playback"
	"tilawah/internal/quran"
)

// Snapshot is what renderers draw: the playback state plus enough of the
// chapter to label it.
type Snapshot struct {
	playback.Snapshot
	Session            string                `json:"session"`
	Seq                uint64                `json:"seq"`
	Summary            *quran.ChapterSummary `json:"summary,omitempty"`
	Verse              *quran.Verse          `json:"verse,omitempty"`
	Editions           quran.Editions        `json:"editions"`
	Reciter            string                `json:"reciter"`
	Language           string                `json:"language"`
	TranslationPending bool                  `json:"translation_pending,omitempty"`
	Loading            int                   `json:"loading,omitempty"`
	Error              string                `json:"error,omitempty"`
}

// snapshot builds a Snapshot; engine goroutine only.
func (e *Engine) snapshot() Snapshot {
	s := Snapshot{
		Snapshot: e.ctl.Snapshot(),
		Session:  e.session,
		Editions: e.editions,
		Reciter:  quran.ReciterName(e.editions.Audio),
		Language: quran.LanguageName(e.editions.Translation),
		Loading:  e.loading,
	}
	if ch := e.ctl.Chapter(); ch != nil {
		sum := ch.ChapterSummary
		s.Summary = &sum
		for _, v := range ch.Verses {
			if v.TranslationPending() {
				s.TranslationPending = true
				break
			}
		}
	}
	if v, ok := e.ctl.ActiveVerse(); ok {
		s.Verse = &v
	}
	if e.lastErr != nil {
		s.Error = e.lastErr.Error()
	}
	return s
}

// publish fans the current snapshot out to subscribers. A subscriber that
// has not consumed the previous snapshot only sees the newest one.
func (e *Engine) publish() {
	snap := e.snapshot()

	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.seq++
	snap.Seq = e.seq
	e.last = snap
	for _, ch := range e.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Snapshot returns the most recently published snapshot.
func (e *Engine) Snapshot() Snapshot {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	return e.last
}

// Subscribe delivers snapshots until ctx is done, starting with the
// current one. The channel is closed when ctx ends.
func (e *Engine) Subscribe(ctx context.Context) <-chan Snapshot {
	ch := make(chan Snapshot, 1)

	e.subMu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = ch
	ch <- e.last
	e.subMu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-e.done:
		}
		e.subMu.Lock()
		delete(e.subs, id)
		close(ch)
		e.subMu.Unlock()
	}()
	return ch
}
