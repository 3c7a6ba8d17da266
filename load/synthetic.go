// Package load generates local traffic while a capture session runs, to
// check end to end that frames reach the buffer and survive export.
package load

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture/common"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/export"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/logger"
)

// Session is the part of the capture session the load run drives
type Session interface {
	Start(cfg common.CaptureConfig) error
	Stop() error
	Snapshot() []common.Frame
	Status() capture.Status
}

// Config controls the synthetic capture
type Config struct {
	// Interface to capture on, normally the loopback device
	Interface string
	Duration  time.Duration
	// Interval between generated requests
	Interval time.Duration
	// Client sends the requests, nil for a default client
	Client *http.Client
}

// Result summarizes a synthetic run
type Result struct {
	Requests int
	Failed   int
	Frames   int
	Stats    *export.PacketStats
}

// RunSyntheticCaptureLoad starts a capture on cfg.Interface filtered to a
// local HTTP server, sends requests to it for cfg.Duration, stops the
// capture and round trips the buffer through the pcap encoder.
func RunSyntheticCaptureLoad(ctx context.Context, session Session, cfg Config) (*Result, error) {
	if cfg.Duration <= 0 {
		cfg.Duration = 5 * time.Second
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	log := logger.GetLogger()

	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.Copy(io.Discard, r.Body)
			w.WriteHeader(http.StatusOK)
		}),
		ReadHeaderTimeout: time.Second,
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	go srv.Serve(listener)
	defer srv.Shutdown(context.Background())

	addr := listener.Addr().(*net.TCPAddr)
	capCfg := common.CaptureConfig{
		Interface: cfg.Interface,
		Filter:    fmt.Sprintf("tcp port %d", addr.Port),
	}
	if err := session.Start(capCfg); err != nil {
		return nil, fmt.Errorf("start capture: %w", err)
	}
	log.Info("[load] Capturing %q with filter %q for %v", capCfg.Interface, capCfg.Filter, cfg.Duration)

	genCtx, cancelGen := context.WithTimeout(ctx, cfg.Duration)
	defer cancelGen()

	result := &Result{}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		client := cfg.Client
		if client == nil {
			client = &http.Client{Timeout: cfg.Interval * 10}
		}
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()
		for {
			req, _ := http.NewRequestWithContext(genCtx, http.MethodGet, "http://"+addr.String(), nil)
			resp, err := client.Do(req)
			if err == nil {
				resp.Body.Close()
			}
			if genCtx.Err() != nil {
				return
			}
			result.Requests++
			if err != nil {
				result.Failed++
			}
			select {
			case <-genCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	wg.Wait()

	stopErr := session.Stop()
	frames := session.Snapshot()
	result.Frames = len(frames)
	if stopErr != nil {
		return result, fmt.Errorf("stop capture: %w", stopErr)
	}
	if len(frames) == 0 {
		if last := session.Status().LastError; last != "" {
			return result, fmt.Errorf("no frames captured: %s", last)
		}
		return result, errors.New("no frames captured")
	}

	data, err := export.EncodeBytes(frames)
	if err != nil {
		return result, err
	}
	result.Stats, err = export.Stats(bytes.NewReader(data))
	if err != nil {
		return result, fmt.Errorf("re-reading export: %w", err)
	}
	log.Info("[load] %d requests, %d frames", result.Requests, result.Frames)
	return result, nil
}
