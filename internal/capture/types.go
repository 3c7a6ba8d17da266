package capture

import (
	"fmt"
	"time"

	"EnigmaNetz/Enigma-Packet-Viewer/internal/logger"
)

const (
	DefaultPollTimeout   = 500 * time.Millisecond
	DefaultPollMaxFrames = 10
	DefaultStopTimeout   = 2 * time.Second
	DefaultRetryInitial  = 100 * time.Millisecond
	DefaultRetryMax      = 2 * time.Second
)

// Options defines tuning for a capture session. Zero values take defaults.
type Options struct {
	// BufferCapacity is the maximum number of frames kept in memory
	BufferCapacity int

	// PollTimeout is the time budget of a single call into the capture
	// primitive. It bounds how long a stop request can go unnoticed.
	PollTimeout time.Duration

	// PollMaxFrames caps the frames returned by a single call
	PollMaxFrames int

	// StopTimeout is how long Stop waits for the capture loop to exit
	StopTimeout time.Duration

	// RetryInitial is the first pause after a transient capture failure
	RetryInitial time.Duration

	// RetryMax caps the pause between consecutive transient failures
	RetryMax time.Duration

	// Logger receives session events; defaults to logger.GetLogger()
	Logger *logger.Logger
}

func (o Options) withDefaults() Options {
	if o.BufferCapacity <= 0 {
		o.BufferCapacity = DefaultBufferCapacity
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = DefaultPollTimeout
	}
	if o.PollMaxFrames <= 0 {
		o.PollMaxFrames = DefaultPollMaxFrames
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	if o.RetryInitial <= 0 {
		o.RetryInitial = DefaultRetryInitial
	}
	if o.RetryMax < o.RetryInitial {
		o.RetryMax = DefaultRetryMax
		if o.RetryMax < o.RetryInitial {
			o.RetryMax = o.RetryInitial
		}
	}
	if o.Logger == nil {
		o.Logger = logger.GetLogger()
	}
	return o
}

// State is the lifecycle state of a capture session
type State int

const (
	Idle State = iota
	Capturing
	Stopping
)

var stateNames = map[State]string{
	Idle:      "idle",
	Capturing: "capturing",
	Stopping:  "stopping",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText renders the state by name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Status is a point-in-time view of the session
type Status struct {
	State     State      `json:"state"`
	SessionID string     `json:"session_id,omitempty"`
	Interface string     `json:"interface,omitempty"`
	Filter    string     `json:"filter,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	// Captured counts frames appended during the current or last session,
	// including ones since evicted
	Captured int64 `json:"captured"`
	Buffered int   `json:"buffered"`
	Capacity int   `json:"capacity"`
	// LastError is the terminal failure that ended the last session, if any
	LastError string `json:"last_error,omitempty"`
}
