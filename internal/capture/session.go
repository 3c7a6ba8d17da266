package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture/common"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/logger"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/processor/frame"
)

// Session owns the capture lifecycle: at most one capture loop feeding a
// bounded packet buffer. States move Idle -> Capturing -> Stopping -> Idle.
type Session struct {
	opener common.Opener
	opts   Options
	buffer *Buffer
	log    *logger.Logger

	mu        sync.Mutex
	state     State
	id        string
	cfg       common.CaptureConfig
	startedAt time.Time
	lastErr   error
	cancel    context.CancelFunc
	done      chan struct{}

	captured atomic.Int64
}

// NewSession creates an idle session capturing through opener
func NewSession(opener common.Opener, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		opener: opener,
		opts:   opts,
		buffer: NewBuffer(opts.BufferCapacity),
		log:    opts.Logger,
		state:  Idle,
	}
}

// Start validates cfg, clears the buffer and launches the capture loop in
// the background. It fails with common.ErrAlreadyCapturing unless idle.
func (s *Session) Start(cfg common.CaptureConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return common.ErrAlreadyCapturing
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.buffer.Clear()
	s.captured.Store(0)

	ctx, cancel := context.WithCancel(context.Background())
	s.id = uuid.NewString()
	s.cfg = cfg
	s.startedAt = time.Now()
	s.lastErr = nil
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = Capturing

	if cfg.Filter != "" {
		s.log.Info("[capture] Starting capture %s on %s with filter %q", s.id, cfg.Interface, cfg.Filter)
	} else {
		s.log.Info("[capture] Starting capture %s on %s", s.id, cfg.Interface)
	}
	go s.run(ctx, cfg, s.done)
	return nil
}

// Stop signals the capture loop and waits up to the stop timeout for it to
// exit. It is a no-op when idle and never fails; a loop that does not exit
// in time is logged and left to finish on its own.
func (s *Session) Stop() error {
	s.mu.Lock()
	if s.state == Idle {
		s.mu.Unlock()
		return nil
	}
	if s.state == Capturing {
		s.state = Stopping
		s.cancel()
	}
	done := s.done
	id := s.id
	s.mu.Unlock()

	timer := time.NewTimer(s.opts.StopTimeout)
	defer timer.Stop()
	select {
	case <-done:
		s.log.Info("[capture] Capture %s stopped", id)
	case <-timer.C:
		s.log.Warn("[capture] Capture loop %s did not exit within %v", id, s.opts.StopTimeout)
	}
	return nil
}

// State returns the current lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the session state, counters and last terminal failure
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		State:     s.state,
		SessionID: s.id,
		Interface: s.cfg.Interface,
		Filter:    s.cfg.Filter,
		Captured:  s.captured.Load(),
		Buffered:  s.buffer.Len(),
		Capacity:  s.buffer.Cap(),
	}
	if !s.startedAt.IsZero() {
		started := s.startedAt
		st.StartedAt = &started
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

// Packets classifies a snapshot of the buffer, numbered from 1
func (s *Session) Packets() []frame.Record {
	return frame.ClassifyAll(s.buffer.Snapshot())
}

// Details renders the verbose dump of the frame at 0-based index i
func (s *Session) Details(i int) (string, error) {
	f, err := s.buffer.Get(i)
	if err != nil {
		return "", err
	}
	return frame.Details(f)
}

// Snapshot returns a copy of the buffered frames in capture order
func (s *Session) Snapshot() []common.Frame {
	return s.buffer.Snapshot()
}

// Buffer exposes the packet buffer
func (s *Session) Buffer() *Buffer {
	return s.buffer
}

func (s *Session) run(ctx context.Context, cfg common.CaptureConfig, done chan struct{}) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("capture loop panic: %v", r)
			s.log.Error("[capture] %v", err)
		}
		s.finish(done, err)
	}()
	err = s.loop(ctx, cfg)
}

func (s *Session) finish(done chan struct{}, err error) {
	s.mu.Lock()
	s.state = Idle
	if err != nil {
		s.lastErr = err
	}
	s.cancel()
	s.mu.Unlock()
	close(done)
}

// loop polls the capture primitive until ctx is cancelled or a terminal
// failure occurs. Transient failures close the source, pause per the retry
// policy and reopen.
func (s *Session) loop(ctx context.Context, cfg common.CaptureConfig) error {
	s.log.Info("[capture] Capture loop started. Poll: %v, max %d frames", s.opts.PollTimeout, s.opts.PollMaxFrames)

	retry := s.retryPolicy()
	req := common.SniffRequest{Timeout: s.opts.PollTimeout, MaxFrames: s.opts.PollMaxFrames}

	var src common.Source
	defer func() {
		if src != nil {
			src.Close()
		}
	}()

	for {
		if ctx.Err() != nil {
			s.log.Info("[capture] Capture loop stopped")
			return nil
		}

		if src == nil {
			opened, err := s.opener.Open(ctx, cfg)
			if err != nil {
				if stop, ferr := s.onFailure(ctx, retry, cfg, err); stop {
					return ferr
				}
				continue
			}
			src = opened
		}

		frames, err := src.Sniff(ctx, req)
		if err != nil {
			src.Close()
			src = nil
			if stop, ferr := s.onFailure(ctx, retry, cfg, err); stop {
				return ferr
			}
			continue
		}
		retry.Reset()

		// frames that raced a stop request are dropped
		if ctx.Err() != nil {
			s.log.Info("[capture] Capture loop stopped")
			return nil
		}
		for _, f := range frames {
			s.buffer.Append(f)
		}
		if n := len(frames); n > 0 {
			total := s.captured.Add(int64(n))
			s.log.Debug("[capture] Captured %d frames (%d total)", n, total)
		}
	}
}

// onFailure decides what a capture error means for the loop. It returns
// stop=true with the error to record when the loop must end.
func (s *Session) onFailure(ctx context.Context, retry backoff.BackOff, cfg common.CaptureConfig, err error) (bool, error) {
	if ctx.Err() != nil {
		return true, nil
	}
	if common.IsTerminal(err) {
		s.log.Error("[capture] Capture on %s failed: %v", cfg.Interface, err)
		return true, err
	}

	wait := retry.NextBackOff()
	if wait == backoff.Stop {
		wait = s.opts.RetryMax
	}
	s.log.Warn("[capture] Temporary capture error on %s: %v (retrying in %v)", cfg.Interface, err, wait)

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return true, nil
	case <-timer.C:
		return false, nil
	}
}

func (s *Session) retryPolicy() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.RetryInitial
	b.MaxInterval = s.opts.RetryMax
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}
