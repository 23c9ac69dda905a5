package playback

import "fmt"

// Mode is the coarse state of the controller.
type Mode int

const (
	ModeIdle Mode = iota
	ModePlayingSingle
	ModePlayingSequential
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModePlayingSingle:
		return "single"
	case ModePlayingSequential:
		return "sequential"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// MarshalText renders the mode by name in JSON snapshots.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	for _, v := range []Mode{ModeIdle, ModePlayingSingle, ModePlayingSequential} {
		if v.String() == string(b) {
			*m = v
			return nil
		}
	}
	return fmt.Errorf("unknown mode %q", b)
}

// State is the playback state owned by the controller. A zero State is the
// empty state of a freshly opened chapter.
type State struct {
	VerseIndex    int     `json:"verse_index"`
	Playing       bool    `json:"playing"`
	WholeChapter  bool    `json:"whole_chapter"`
	Progress      float64 `json:"progress"`
	ActiveVerseID int     `json:"active_verse_id,omitempty"` // 0 when no verse is active
}

// Mode derives the state machine position. Pausing does not leave
// PlayingSingle or PlayingSequential.
func (s State) Mode() Mode {
	switch {
	case s.ActiveVerseID == 0:
		return ModeIdle
	case s.WholeChapter:
		return ModePlayingSequential
	default:
		return ModePlayingSingle
	}
}

// Paused reports the paused sub-state: a verse is active but not playing.
func (s State) Paused() bool {
	return s.ActiveVerseID != 0 && !s.Playing
}

// Idle reports whether there is nothing to stop.
func (s State) Idle() bool {
	return s.ActiveVerseID == 0 && !s.Playing && !s.WholeChapter
}

// Snapshot is a read-only copy of the controller for renderers.
type Snapshot struct {
	State
	Mode    Mode `json:"mode"`
	Paused  bool `json:"paused"`
	Chapter int  `json:"chapter,omitempty"`
	Cue     Cue  `json:"cue"`
}
