package load

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture/capturetest"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture/common"
)

type mockSession struct {
	mu       sync.Mutex
	cfg      common.CaptureConfig
	started  bool
	stopped  bool
	frames   []common.Frame
	startErr error
	stopErr  error
	lastErr  string
}

func (m *mockSession) Start(cfg common.CaptureConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	m.started = true
	return m.startErr
}

func (m *mockSession) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return m.stopErr
}

func (m *mockSession) Snapshot() []common.Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames
}

func (m *mockSession) Status() capture.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return capture.Status{State: capture.Idle, LastError: m.lastErr}
}

func TestRunSyntheticCaptureLoadSuccess(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	session := &mockSession{frames: []common.Frame{
		capturetest.TCPFrame(ts, "127.0.0.1", "127.0.0.1", 50000, 8080, []byte("GET /")),
		capturetest.TCPFrame(ts, "127.0.0.1", "127.0.0.1", 8080, 50000, nil),
	}}

	res, err := RunSyntheticCaptureLoad(context.Background(), session, Config{
		Interface: "lo",
		Duration:  100 * time.Millisecond,
		Interval:  10 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.True(t, session.started)
	assert.True(t, session.stopped)
	assert.Equal(t, "lo", session.cfg.Interface)
	assert.Regexp(t, `^tcp port \d+$`, session.cfg.Filter)
	assert.Positive(t, res.Requests)
	assert.Zero(t, res.Failed)
	assert.Equal(t, 2, res.Frames)
	require.NotNil(t, res.Stats)
	assert.EqualValues(t, 2, res.Stats.TotalPackets)
	assert.EqualValues(t, 2, res.Stats.ProtocolCounts["TCP"])
}

func TestRunSyntheticCaptureLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		session *mockSession
		wantErr string
	}{
		{"start fails", &mockSession{startErr: common.ErrAlreadyCapturing}, "start capture"},
		{"stop fails", &mockSession{stopErr: errors.New("stuck")}, "stop capture"},
		{"nothing captured", &mockSession{}, "no frames captured"},
		{"nothing captured after capture failure", &mockSession{lastErr: "capture: permission denied"}, "no frames captured: capture: permission denied"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RunSyntheticCaptureLoad(context.Background(), tt.session, Config{
				Duration: 30 * time.Millisecond,
				Interval: 10 * time.Millisecond,
			})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// lateTransport answers only once the request context is done, so the
// response arrives after the generation window has closed
type lateTransport struct {
	opened atomic.Int32
	closed atomic.Int32
}

func (lt *lateTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	<-req.Context().Done()
	lt.opened.Add(1)
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       &countingBody{Reader: strings.NewReader("ok"), closed: &lt.closed},
		Request:    req,
	}, nil
}

type countingBody struct {
	io.Reader
	closed *atomic.Int32
}

func (b *countingBody) Close() error {
	b.closed.Add(1)
	return nil
}

func TestRunSyntheticCaptureLoadClosesLateResponses(t *testing.T) {
	session := &mockSession{frames: []common.Frame{
		capturetest.TCPFrame(time.Unix(1700000000, 0), "127.0.0.1", "127.0.0.1", 50000, 8080, nil),
	}}
	transport := &lateTransport{}

	res, err := RunSyntheticCaptureLoad(context.Background(), session, Config{
		Duration: 30 * time.Millisecond,
		Interval: 10 * time.Millisecond,
		Client:   &http.Client{Transport: transport},
	})
	require.NoError(t, err)

	assert.Zero(t, res.Requests)
	assert.EqualValues(t, 1, transport.opened.Load())
	assert.Equal(t, transport.opened.Load(), transport.closed.Load())
}
