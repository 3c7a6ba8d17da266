package capturetest

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture/common"
)

// Step is one scripted result of a Sniff call
type Step struct {
	Frames []common.Frame
	Err    error
}

// Source replays scripted steps, then idles until the per-call timeout or
// cancellation, like a quiet interface would.
type Source struct {
	mu     sync.Mutex
	steps  []Step
	closed bool

	Calls    atomic.Int32
	Requests chan common.SniffRequest // optional, receives every request
}

// NewSource creates a scripted source
func NewSource(steps ...Step) *Source {
	return &Source{steps: steps}
}

// StreamSource returns a source that hands out frames in bursts of the
// requested size
func StreamSource(frames []common.Frame) *Source {
	return &Source{steps: []Step{{Frames: frames}}}
}

// Sniff implements common.Source
func (s *Source) Sniff(ctx context.Context, req common.SniffRequest) ([]common.Frame, error) {
	s.Calls.Add(1)
	if s.Requests != nil {
		select {
		case s.Requests <- req:
		default:
		}
	}

	s.mu.Lock()
	if len(s.steps) > 0 {
		step := s.steps[0]
		if step.Err != nil || req.MaxFrames <= 0 || len(step.Frames) <= req.MaxFrames {
			s.steps = s.steps[1:]
			s.mu.Unlock()
			return step.Frames, step.Err
		}
		out := step.Frames[:req.MaxFrames]
		s.steps[0].Frames = step.Frames[req.MaxFrames:]
		s.mu.Unlock()
		return out, nil
	}
	s.mu.Unlock()

	timer := time.NewTimer(req.Timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
	return nil, nil
}

// Close implements common.Source
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Closed reports whether Close was called
func (s *Source) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Opener hands out sources from a queue; once the queue is drained it keeps
// returning the last one. OpenErr, when set, fails every open.
type Opener struct {
	mu      sync.Mutex
	sources []common.Source
	OpenErr error

	Opens   atomic.Int32
	Configs []common.CaptureConfig
}

// NewOpener creates an opener handing out the given sources in order
func NewOpener(sources ...common.Source) *Opener {
	return &Opener{sources: sources}
}

// Open implements common.Opener
func (o *Opener) Open(ctx context.Context, cfg common.CaptureConfig) (common.Source, error) {
	o.Opens.Add(1)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Configs = append(o.Configs, cfg)
	if o.OpenErr != nil {
		return nil, o.OpenErr
	}
	if len(o.sources) == 0 {
		return NewSource(), nil
	}
	src := o.sources[0]
	if len(o.sources) > 1 {
		o.sources = o.sources[1:]
	}
	return src, nil
}

// LastConfig returns the config passed to the most recent Open
func (o *Opener) LastConfig() common.CaptureConfig {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.Configs) == 0 {
		return common.CaptureConfig{}
	}
	return o.Configs[len(o.Configs)-1]
}

// BlockingSource ignores cancellation and blocks each Sniff for Delay. It
// models a primitive that only returns when its own time budget elapses.
type BlockingSource struct {
	Delay time.Duration
	Calls atomic.Int32
}

// Sniff implements common.Source
func (b *BlockingSource) Sniff(ctx context.Context, req common.SniffRequest) ([]common.Frame, error) {
	b.Calls.Add(1)
	time.Sleep(b.Delay)
	return nil, nil
}

// Close implements common.Source
func (b *BlockingSource) Close() {}
