// Package playback decides which verse of a chapter should be playing. It
// owns the playback state and is the only caller of the audio device; it
// never decodes audio, fetches data or renders.
//
// A Controller is not safe for concurrent use. Callers serialize user
// commands and device events through one goroutine.
package playback

import (
	"fmt"

	"tilawah/internal/quran"
)

// Controller applies the transition function to the loaded chapter and
// forwards the resulting commands to the device.
type Controller struct {
	device  Device
	chapter *quran.Chapter
	state   State
	cue     Cue
}

func NewController(device Device) *Controller {
	return &Controller{device: device}
}

// Open loads ch and resets the state. A verse still playing from the
// previous chapter is stopped first.
func (c *Controller) Open(ch *quran.Chapter) error {
	if ch == nil {
		return fmt.Errorf("%w: open without a chapter", ErrInvalidCommand)
	}
	c.reset()
	c.chapter = ch
	return nil
}

// Close discards the chapter and its state, as when navigating back to the
// chapter list.
func (c *Controller) Close() {
	c.reset()
	c.chapter = nil
}

// Refresh swaps in a re-fetched copy of the loaded chapter, keeping the
// playback state. The copy must describe the same chapter and verses.
func (c *Controller) Refresh(ch *quran.Chapter) error {
	if c.chapter == nil {
		return ErrNoChapter
	}
	if ch == nil || ch.Number != c.chapter.Number || ch.Len() != c.chapter.Len() {
		return fmt.Errorf("%w: refresh does not match chapter %d", ErrInvalidCommand, c.chapter.Number)
	}
	c.chapter = ch
	return nil
}

// PlayChapter starts sequential playback from the first verse of ch.
func (c *Controller) PlayChapter(ch *quran.Chapter) error {
	if ch.Len() == 0 {
		return fmt.Errorf("%w: chapter has no verses", ErrInvalidCommand)
	}
	c.adopt(ch)
	return c.apply(Input{Kind: InputPlayChapter})
}

// PlayVerse plays v alone; playback stops when it completes. Both ch and v
// must belong to the loaded chapter.
func (c *Controller) PlayVerse(ch *quran.Chapter, v quran.Verse) error {
	if c.chapter == nil {
		return ErrNoChapter
	}
	if ch == nil || ch.Number != c.chapter.Number {
		return fmt.Errorf("%w: chapter %d is not loaded", ErrInvalidCommand, chapterNumber(ch))
	}
	if c.chapter.IndexOf(v) < 0 {
		return fmt.Errorf("%w: verse %d (#%d) is not in the loaded chapter",
			ErrInvalidCommand, v.NumberInSurah, v.ID)
	}
	return c.apply(Input{Kind: InputPlayVerse, Verse: v})
}

func chapterNumber(ch *quran.Chapter) int {
	if ch == nil {
		return 0
	}
	return ch.Number
}

func (c *Controller) TogglePause() error {
	return c.apply(Input{Kind: InputTogglePause})
}

// Stop halts playback and rewinds the device. Calling it while idle does
// nothing.
func (c *Controller) Stop() {
	_ = c.apply(Input{Kind: InputStop})
}

func (c *Controller) OnPlaybackFinished() {
	_ = c.apply(Input{Kind: InputFinished})
}

// OnPlaybackError ends playback as if the verse had completed on its own
// and returns the failure for the caller to report.
func (c *Controller) OnPlaybackError(reason string) error {
	return c.apply(Input{Kind: InputError, Reason: reason})
}

func (c *Controller) OnProgress(ev DeviceEvent) {
	_ = c.apply(Input{Kind: InputProgress, Position: ev.Position, Duration: ev.Duration})
}

// Handle routes a device event. Events for any cue other than the latest
// Load are stale and dropped.
func (c *Controller) Handle(ev DeviceEvent) error {
	if ev.Cue != c.cue {
		return nil
	}
	switch ev.Kind {
	case EventFinished:
		c.OnPlaybackFinished()
	case EventError:
		return c.OnPlaybackError(ev.Reason)
	case EventProgress:
		c.OnProgress(ev)
	}
	return nil
}

func (c *Controller) State() State { return c.state }

// Chapter returns the loaded chapter, nil when none. It must not be mutated.
func (c *Controller) Chapter() *quran.Chapter { return c.chapter }

// Cue returns the cue of the most recent Load.
func (c *Controller) Cue() Cue { return c.cue }

// ActiveVerse returns the verse at the current index when one is active.
func (c *Controller) ActiveVerse() (quran.Verse, bool) {
	if c.state.ActiveVerseID == 0 || c.chapter == nil {
		return quran.Verse{}, false
	}
	return c.chapter.Verses[c.state.VerseIndex], true
}

func (c *Controller) Snapshot() Snapshot {
	snap := Snapshot{
		State:  c.state,
		Mode:   c.state.Mode(),
		Paused: c.state.Paused(),
		Cue:    c.cue,
	}
	if c.chapter != nil {
		snap.Chapter = c.chapter.Number
	}
	return snap
}

func (c *Controller) adopt(ch *quran.Chapter) {
	if c.chapter == ch {
		return
	}
	if c.chapter != nil && c.chapter.Number == ch.Number &&
		c.chapter.AudioEdition == ch.AudioEdition && c.chapter.Len() == ch.Len() {
		c.chapter = ch
		return
	}
	c.reset()
	c.chapter = ch
}

func (c *Controller) reset() {
	c.Stop()
	c.state = State{}
}

func (c *Controller) apply(in Input) error {
	next, cmds, err := Apply(c.state, c.chapter, in)
	c.state = next
	for _, cmd := range cmds {
		switch cmd.Op {
		case OpLoad:
			c.cue++
			c.device.Load(c.cue, cmd.URL)
		case OpPlay:
			c.device.Play()
		case OpPause:
			c.device.Pause()
		case OpSeekToStart:
			c.device.SeekToStart()
		}
	}
	return err
}
