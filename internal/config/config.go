// Package config provides the configuration structure for the
// sentence-clips-service.
package config

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"

	"github.com/book-expert/sentence-clips-service/internal/core"
	"github.com/book-expert/sentence-clips-service/internal/tts/ttsutils"
)

// Default values applied to fields a configuration file leaves unset. The
// service is expected to run usefully with no configuration file at all.
const (
	DefaultPort              = 8080
	DefaultRunTTLMinutes     = 30
	DefaultTimeoutSeconds    = 30
	DefaultWorkers           = 1
	DefaultRequestsPerMinute = 0
	DefaultBodyLimitMB       = 8

	logsDirName = "logs"
)

// ServerConfig holds the configuration for the HTTP server.
type ServerConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	RunTTLMinutes int    `toml:"run_ttl_minutes"`
	BodyLimitMB   int    `toml:"body_limit_mb"`
}

// SynthesisConfig holds the configuration for speech synthesis.
type SynthesisConfig struct {
	Voice             string `toml:"voice"`
	Rate              string `toml:"rate"`
	Volume            string `toml:"volume"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	Workers           int    `toml:"workers"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
}

// NamingConfig holds the configuration for clip filename shaping.
type NamingConfig struct {
	MaxStemLength int `toml:"max_stem_length"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	WorkDir     string `toml:"work_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Synthesis SynthesisConfig `toml:"synthesis"`
	Naming    NamingConfig    `toml:"naming"`
	Paths     PathsConfig     `toml:"paths"`
}

// Load loads the configuration for the sentence-clips-service. Fields the
// file leaves unset are filled with defaults.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// Default returns a configuration with every field at its default value.
func Default() *Config {
	var cfg Config

	cfg.ApplyDefaults()

	return &cfg
}

// ApplyDefaults fills zero-valued fields so callers never see an unusable
// configuration. A zero RequestsPerMinute stays zero: it means unlimited.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}

	if c.Server.RunTTLMinutes == 0 {
		c.Server.RunTTLMinutes = DefaultRunTTLMinutes
	}

	if c.Server.BodyLimitMB == 0 {
		c.Server.BodyLimitMB = DefaultBodyLimitMB
	}

	if c.Synthesis.Voice == "" {
		c.Synthesis.Voice = core.DefaultVoice
	}

	if c.Synthesis.Rate == "" {
		c.Synthesis.Rate = core.DefaultRate
	}

	if c.Synthesis.Volume == "" {
		c.Synthesis.Volume = core.DefaultVolume
	}

	if c.Synthesis.TimeoutSeconds == 0 {
		c.Synthesis.TimeoutSeconds = DefaultTimeoutSeconds
	}

	if c.Synthesis.Workers == 0 {
		c.Synthesis.Workers = DefaultWorkers
	}

	if c.Naming.MaxStemLength == 0 {
		c.Naming.MaxStemLength = ttsutils.DefaultMaxStemLength
	}

	if c.Paths.WorkDir == "" {
		c.Paths.WorkDir = ttsutils.WorkDir()
	}

	if c.Paths.BaseLogsDir == "" {
		c.Paths.BaseLogsDir = filepath.Join(c.Paths.WorkDir, logsDirName)
	}
}

// Address returns the host:port string the HTTP server listens on.
func (c ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RunTTL returns how long a run's clips and archive stay downloadable.
func (c ServerConfig) RunTTL() time.Duration {
	return time.Duration(c.RunTTLMinutes) * time.Minute
}

// Timeout returns the per-sentence synthesis deadline.
func (c SynthesisConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// VoiceSpec returns the configured voice parameters.
func (c SynthesisConfig) VoiceSpec() core.VoiceSpec {
	return core.VoiceSpec{
		Voice:  c.Voice,
		Rate:   c.Rate,
		Volume: c.Volume,
	}
}
