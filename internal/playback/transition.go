package playback

import (
	"fmt"
	"math"
	"time"

	"tilawah/internal/quran"
)

// InputKind enumerates everything that can move the state machine.
type InputKind int

const (
	InputPlayChapter InputKind = iota + 1
	InputPlayVerse
	InputTogglePause
	InputStop
	InputFinished
	InputError
	InputProgress
)

// Input is one user command or device notification.
type Input struct {
	Kind     InputKind
	Verse    quran.Verse   // InputPlayVerse
	Reason   string        // InputError
	Position time.Duration // InputProgress
	Duration time.Duration // InputProgress
}

// Op is a device instruction produced by a transition.
type Op int

const (
	OpLoad Op = iota + 1
	OpPlay
	OpPause
	OpSeekToStart
)

func (o Op) String() string {
	switch o {
	case OpLoad:
		return "load"
	case OpPlay:
		return "play"
	case OpPause:
		return "pause"
	case OpSeekToStart:
		return "seek-to-start"
	default:
		return "op?"
	}
}

// Command is a device instruction; URL is set for OpLoad.
type Command struct {
	Op  Op
	URL string
}

// Apply is the transition function of the controller. It never mutates its
// arguments. On error the returned state equals s and no commands are
// produced, except for InputError which moves to idle and returns the
// device error for reporting.
func Apply(s State, ch *quran.Chapter, in Input) (State, []Command, error) {
	switch in.Kind {
	case InputPlayChapter:
		if ch.Len() == 0 {
			return s, nil, fmt.Errorf("%w: chapter has no verses", ErrInvalidCommand)
		}
		return begin(s, ch, 0, true), loadAndPlay(ch, 0), nil

	case InputPlayVerse:
		i := ch.IndexOf(in.Verse)
		if i < 0 {
			return s, nil, fmt.Errorf("%w: verse %d (#%d) is not in the loaded chapter",
				ErrInvalidCommand, in.Verse.NumberInSurah, in.Verse.ID)
		}
		return begin(s, ch, i, false), loadAndPlay(ch, i), nil

	case InputTogglePause:
		if s.ActiveVerseID == 0 {
			return s, nil, fmt.Errorf("%w: no active verse to pause or resume", ErrInvalidCommand)
		}
		s.Playing = !s.Playing
		if s.Playing {
			return s, []Command{{Op: OpPlay}}, nil
		}
		return s, []Command{{Op: OpPause}}, nil

	case InputStop:
		if s.Idle() {
			return s, nil, nil
		}
		return halt(s), []Command{{Op: OpPause}, {Op: OpSeekToStart}}, nil

	case InputFinished:
		if s.ActiveVerseID == 0 {
			return s, nil, nil
		}
		if s.WholeChapter && s.VerseIndex+1 < ch.Len() {
			next := s.VerseIndex + 1
			return begin(s, ch, next, true), loadAndPlay(ch, next), nil
		}
		return halt(s), nil, nil

	case InputError:
		if s.ActiveVerseID == 0 {
			return s, nil, nil
		}
		err := &DeviceError{VerseID: s.ActiveVerseID, Reason: in.Reason}
		return halt(s), nil, err

	case InputProgress:
		total := in.Duration.Seconds()
		if s.ActiveVerseID == 0 || total <= 0 || math.IsInf(total, 0) || math.IsNaN(total) {
			return s, nil, nil
		}
		p := in.Position.Seconds() / total * 100
		s.Progress = math.Max(0, math.Min(100, p))
		return s, nil, nil
	}
	return s, nil, fmt.Errorf("%w: unknown input %d", ErrInvalidCommand, in.Kind)
}

func begin(s State, ch *quran.Chapter, i int, whole bool) State {
	s.VerseIndex = i
	s.ActiveVerseID = ch.Verses[i].ID
	s.Playing = true
	s.WholeChapter = whole
	s.Progress = 0
	return s
}

func halt(s State) State {
	s.Playing = false
	s.WholeChapter = false
	s.ActiveVerseID = 0
	s.Progress = 0
	return s
}

func loadAndPlay(ch *quran.Chapter, i int) []Command {
	return []Command{{Op: OpLoad, URL: ch.Verses[i].Audio}, {Op: OpPlay}}
}
