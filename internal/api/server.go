// Package api serves the packet viewer's HTTP surface.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"

	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/capture/common"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/logger"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/metadata"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/netif"
	"EnigmaNetz/Enigma-Packet-Viewer/internal/processor/frame"
)

const shutdownTimeout = 5 * time.Second

// Session is the capture session the handlers drive
type Session interface {
	Start(cfg common.CaptureConfig) error
	Stop() error
	Status() capture.Status
	Packets() []frame.Record
	Details(i int) (string, error)
	Snapshot() []common.Frame
}

// Config holds HTTP server settings
type Config struct {
	StaticDir    string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server routes requests to the capture session and interface enumerator
type Server struct {
	cfg        Config
	session    Session
	interfaces netif.Enumerator
	host       *metadata.Collector
	log        *logger.Logger
	now        func() time.Time
	router     *mux.Router
}

// NewServer wires the routes. host may be nil, in which case the status
// endpoint omits host metadata.
func NewServer(cfg Config, session Session, interfaces netif.Enumerator, host *metadata.Collector) *Server {
	s := &Server{
		cfg:        cfg,
		session:    session,
		interfaces: interfaces,
		host:       host,
		log:        logger.GetLogger(),
		now:        time.Now,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.recoverMiddleware, s.logMiddleware)

	r.HandleFunc("/start_capture", s.startCapture).Methods(http.MethodPost)
	r.HandleFunc("/stop_capture", s.stopCapture).Methods(http.MethodPost)
	r.HandleFunc("/get_packets", s.getPackets).Methods(http.MethodGet)
	r.HandleFunc("/get_packet_details/{index:[0-9]+}", s.getPacketDetails).Methods(http.MethodGet)
	r.HandleFunc("/save_capture", s.saveCapture).Methods(http.MethodGet)
	r.HandleFunc("/get_interfaces", s.getInterfaces).Methods(http.MethodGet)
	r.HandleFunc("/capture_status", s.captureStatus).Methods(http.MethodGet)

	if s.cfg.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.cfg.StaticDir))).Methods(http.MethodGet, http.MethodHead)
	}
	return r
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully
// and stops any active capture
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// newHTTPServer routes net/http's own errors (accept failures, handler
// panics it recovers) into the application log
func (s *Server) newHTTPServer() *http.Server {
	return &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: s.cfg.ReadTimeout,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		ErrorLog:          log.New(s.log.Writer(), "[api] ", 0),
	}
}

// ServeListener serves on an existing listener
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := s.newHTTPServer()

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("[api] Listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("[api] Shutting down")
	timeout, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(timeout)
	s.session.Stop()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.Debug("[api] %s %s %d %v", r.Method, r.URL.Path, sw.code, time.Since(start))
	})
}

// recoverMiddleware turns a handler panic into a generic JSON failure
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("[api] Panic serving %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				writeJSON(w, http.StatusInternalServerError, statusResponse{Status: statusError, Message: "Internal error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
