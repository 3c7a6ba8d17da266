package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"EnigmaNetz/Enigma-Packet-Viewer/internal/logger"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "PACKET_VIEWER_"

// Config represents the application configuration
type Config struct {
	// Logging configuration
	Logging struct {
		// Level is the minimum log level to output (debug, info, warn, error)
		Level string `json:"level"`
		// File is the path to the log file. If empty, logs to stdout only
		File string `json:"file"`
		// MaxSizeMB is the maximum size of log file before rotation
		MaxSizeMB int `json:"max_size_mb"`
		// MaxAgeDays is how long rotated log files are kept
		MaxAgeDays int `json:"max_age_days"`
	} `json:"logging"`

	// Server configuration
	Server struct {
		// ListenAddr is the HTTP listen address
		ListenAddr string `json:"listen_addr"`
		// StaticDir, when set, is served at /
		StaticDir string `json:"static_dir"`
		// ReadTimeoutSeconds bounds reading a request
		ReadTimeoutSeconds int `json:"read_timeout_seconds"`
		// WriteTimeoutSeconds bounds writing a response; it must outlast a
		// stop request waiting for the capture loop
		WriteTimeoutSeconds int `json:"write_timeout_seconds"`
	} `json:"server"`

	// Capture configuration
	Capture struct {
		// BufferCapacity is the number of frames kept in memory
		BufferCapacity int `json:"buffer_capacity"`
		// PollTimeoutMS is the time budget of one capture call
		PollTimeoutMS int `json:"poll_timeout_ms"`
		// PollMaxFrames caps frames returned by one capture call
		PollMaxFrames int `json:"poll_max_frames"`
		// StopTimeoutMS is how long a stop waits for the capture loop
		StopTimeoutMS int `json:"stop_timeout_ms"`
		// Promiscuous enables promiscuous mode on live captures
		Promiscuous *bool `json:"promiscuous"`
		// ReplayFile, when set, replaces live capture with a pcap file
		ReplayFile string `json:"replay_file"`
		// ReplaySpeed multiplies replay pacing; 0 means real time
		ReplaySpeed float64 `json:"replay_speed"`
	} `json:"capture"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadConfig loads configuration from a JSON file. A missing file yields
// the defaults. Environment overrides are applied last.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = "config.json"
	}

	var config Config
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, err
	}
	config.applyDefaults()
	return &config, nil
}

// LoadDotEnv loads KEY=value pairs from path into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 100
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = 7
	}
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = "127.0.0.1:5000"
	}
	if c.Server.ReadTimeoutSeconds == 0 {
		c.Server.ReadTimeoutSeconds = 10
	}
	if c.Server.WriteTimeoutSeconds == 0 {
		c.Server.WriteTimeoutSeconds = 30
	}
	if c.Capture.BufferCapacity == 0 {
		c.Capture.BufferCapacity = 10000
	}
	if c.Capture.PollTimeoutMS == 0 {
		c.Capture.PollTimeoutMS = 500
	}
	if c.Capture.PollMaxFrames == 0 {
		c.Capture.PollMaxFrames = 10
	}
	if c.Capture.StopTimeoutMS == 0 {
		c.Capture.StopTimeoutMS = 2000
	}
	if c.Capture.Promiscuous == nil {
		promisc := true
		c.Capture.Promiscuous = &promisc
	}
}

// ApplyEnv overrides settings from PACKET_VIEWER_* variables
func (c *Config) ApplyEnv() error {
	if v, ok := lookupEnv("LISTEN_ADDR"); ok {
		c.Server.ListenAddr = v
	}
	if v, ok := lookupEnv("STATIC_DIR"); ok {
		c.Server.StaticDir = v
	}
	if v, ok := lookupEnv("LOG_LEVEL"); ok {
		c.Logging.Level = v
	}
	if v, ok := lookupEnv("LOG_FILE"); ok {
		c.Logging.File = v
	}
	if v, ok := lookupEnv("REPLAY_FILE"); ok {
		c.Capture.ReplayFile = v
	}
	if v, ok := lookupEnv("BUFFER_CAPACITY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sBUFFER_CAPACITY %q: %w", EnvPrefix, v, err)
		}
		c.Capture.BufferCapacity = n
	}
	return nil
}

func lookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

// Validate checks values the defaults cannot repair
func (c *Config) Validate() error {
	if _, err := logger.ParseLogLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if _, _, err := net.SplitHostPort(c.Server.ListenAddr); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Server.ListenAddr, err)
	}
	if c.Capture.BufferCapacity < 0 {
		return fmt.Errorf("buffer capacity must be positive, got %d", c.Capture.BufferCapacity)
	}
	if c.Capture.PollTimeoutMS < 0 || c.Capture.StopTimeoutMS < 0 || c.Capture.PollMaxFrames < 0 {
		return fmt.Errorf("capture timeouts and frame limits must not be negative")
	}
	if c.Server.ReadTimeoutSeconds < 0 || c.Server.WriteTimeoutSeconds < 0 {
		return fmt.Errorf("server timeouts must not be negative")
	}
	if c.Capture.ReplaySpeed < 0 {
		return fmt.Errorf("replay speed must not be negative, got %v", c.Capture.ReplaySpeed)
	}
	if c.Capture.ReplayFile != "" {
		if _, err := os.Stat(c.Capture.ReplayFile); err != nil {
			return fmt.Errorf("replay file: %w", err)
		}
	}
	if c.StopTimeout() >= c.WriteTimeout() {
		return fmt.Errorf("write timeout (%v) must exceed stop timeout (%v)", c.WriteTimeout(), c.StopTimeout())
	}
	return nil
}

// PollTimeout returns the capture poll budget
func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.Capture.PollTimeoutMS) * time.Millisecond
}

// StopTimeout returns how long a stop waits for the capture loop
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.Capture.StopTimeoutMS) * time.Millisecond
}

// ReadTimeout returns the HTTP read timeout
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.Server.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the HTTP write timeout
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeoutSeconds) * time.Second
}

// InitializeLogging sets up logging based on config
func (c *Config) InitializeLogging() error {
	level, err := logger.ParseLogLevel(c.Logging.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	logConfig := logger.Config{
		LogLevel:   level,
		LogFile:    c.Logging.File,
		MaxSizeMB:  c.Logging.MaxSizeMB,
		MaxAgeDays: c.Logging.MaxAgeDays,
	}
	if err := logger.Initialize(logConfig); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}
