package playback

import "time"

// Cue identifies one Load issued to the device. Events carry the cue of the
// resource they refer to so late events from a replaced verse can be told
// apart from current ones.
type Cue uint64

// Device is the audio output the controller commands. Every method is
// fire-and-forget: outcomes arrive later as DeviceEvents.
type Device interface {
	Load(cue Cue, url string)
	Play()
	Pause()
	SeekToStart()
}

type EventKind int

const (
	EventFinished EventKind = iota + 1
	EventError
	EventProgress
)

func (k EventKind) String() string {
	switch k {
	case EventFinished:
		return "finished"
	case EventError:
		return "error"
	case EventProgress:
		return "progress"
	default:
		return "unknown"
	}
}

// DeviceEvent is a notification from the device.
type DeviceEvent struct {
	Kind     EventKind
	Cue      Cue
	Reason   string
	Position time.Duration
	Duration time.Duration
}

// EventSink receives device events. Implementations must not block.
type EventSink func(DeviceEvent)
