package common

import (
	"context"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// CaptureConfig holds the client-selected settings of one capture session
type CaptureConfig struct {
	Interface string `json:"interface"` // Network interface to capture from
	Filter    string `json:"filter"`    // Optional BPF expression, empty captures everything
}

// Validate checks the config once at session start
func (c CaptureConfig) Validate() error {
	if strings.TrimSpace(c.Interface) == "" {
		return ErrInvalidConfig
	}
	return nil
}

// Frame is one raw link-layer frame as produced by the capture primitive.
// Data is owned by the frame; sources must copy out of any reusable buffer.
type Frame struct {
	CaptureInfo gopacket.CaptureInfo
	LinkType    layers.LinkType
	Data        []byte
}

// Timestamp returns when the frame was captured
func (f Frame) Timestamp() time.Time {
	return f.CaptureInfo.Timestamp
}

// Length returns the number of captured bytes
func (f Frame) Length() int {
	return len(f.Data)
}

// SniffRequest bounds a single call into the capture primitive
type SniffRequest struct {
	Timeout   time.Duration // Per-call time budget
	MaxFrames int           // Per-call frame cap
}

// Source is an opened capture primitive bound to one interface and filter.
// Sniff returns at most MaxFrames frames and never blocks much longer than
// Timeout; it returns early when ctx is done.
type Source interface {
	Sniff(ctx context.Context, req SniffRequest) ([]Frame, error)
	Close()
}

// Opener opens capture sources. Errors should be *CaptureError so the session
// can tell transient failures from terminal ones.
type Opener interface {
	Open(ctx context.Context, cfg CaptureConfig) (Source, error)
}
