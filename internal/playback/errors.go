package playback

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCommand rejects a command that does not apply to the current
	// chapter or state. The state is left unchanged.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrNoChapter is returned when a command needs a loaded chapter.
	ErrNoChapter = errors.New("no chapter loaded")

	// ErrPlaybackDevice marks errors reported by the audio device.
	ErrPlaybackDevice = errors.New("playback device error")
)

// DeviceError is a device failure while a verse was playing.
type DeviceError struct {
	VerseID int
	Reason  string
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("%v: verse %d: %s", ErrPlaybackDevice, e.VerseID, e.Reason)
}

func (e *DeviceError) Unwrap() error { return ErrPlaybackDevice }
