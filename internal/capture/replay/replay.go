// Package replay feeds a capture session from a pcap or pcapng file, pacing
// frames by their original inter-arrival gaps.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture/common"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/export"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/logger"
)

// ErrFinished is wrapped into the terminal error returned once every frame
// of the file has been delivered
var ErrFinished = errors.New("replay finished")

// Opener opens a replay source over a capture file
type Opener struct {
	Path string
	// Speed multiplies playback rate; values <= 0 mean real time
	Speed float64
	log   *logger.Logger
}

// NewOpener creates an opener replaying path
func NewOpener(path string, speed float64) *Opener {
	return &Opener{Path: path, Speed: speed, log: logger.GetLogger()}
}

// Open reads the whole file up front. The interface name is only logged and
// the filter is ignored.
func (o *Opener) Open(ctx context.Context, cfg common.CaptureConfig) (common.Source, error) {
	f, err := os.Open(o.Path)
	if err != nil {
		return nil, common.Terminal("open replay", err)
	}
	defer f.Close()

	frames, err := export.Read(f)
	if err != nil {
		return nil, common.Terminal("read replay", err)
	}
	if cfg.Filter != "" {
		o.log.Warn("[replay] Filter %q ignored when replaying %s", cfg.Filter, o.Path)
	}
	o.log.Info("[replay] Replaying %d frames from %s as %s", len(frames), o.Path, cfg.Interface)
	return NewSource(frames, o.Speed), nil
}

// Source hands out preloaded frames at their recorded pace
type Source struct {
	mu     sync.Mutex
	frames []common.Frame
	next   int
	speed  float64
	closed bool

	// lastStamp is the capture time of the previously delivered frame
	lastStamp time.Time
	sleep     func(ctx context.Context, d time.Duration) bool
}

// NewSource creates a source over frames
func NewSource(frames []common.Frame, speed float64) *Source {
	if speed <= 0 {
		speed = 1
	}
	return &Source{frames: frames, speed: speed, sleep: sleepCtx}
}

// Sniff delivers up to req.MaxFrames frames. Gaps between frames are slept
// but each gap is capped at req.Timeout, and the call returns early once
// the budget is spent.
func (s *Source) Sniff(ctx context.Context, req common.SniffRequest) ([]common.Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, common.Transient("replay", errors.New("source closed"))
	}
	if s.next >= len(s.frames) {
		return nil, common.Terminal("replay", fmt.Errorf("%w: %w", ErrFinished, io.EOF))
	}

	deadline := time.Now().Add(req.Timeout)
	var out []common.Frame
	for s.next < len(s.frames) {
		if req.MaxFrames > 0 && len(out) >= req.MaxFrames {
			break
		}
		f := s.frames[s.next]

		gap := s.gap(f)
		if gap > req.Timeout {
			gap = req.Timeout
		}
		if gap > 0 {
			if len(out) > 0 && time.Now().Add(gap).After(deadline) {
				break
			}
			if !s.sleep(ctx, gap) {
				break
			}
		}

		s.lastStamp = f.Timestamp()
		out = append(out, f)
		s.next++
	}
	return out, nil
}

func (s *Source) gap(f common.Frame) time.Duration {
	if s.lastStamp.IsZero() {
		return 0
	}
	d := f.Timestamp().Sub(s.lastStamp)
	if d <= 0 {
		return 0
	}
	return time.Duration(float64(d) / s.speed)
}

// Remaining returns the number of frames not yet delivered
func (s *Source) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames) - s.next
}

// Close implements common.Source
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
