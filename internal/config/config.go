package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zeusync/factorysim/internal/core/engine"
	"github.com/zeusync/factorysim/internal/core/observability/log"
	"github.com/zeusync/factorysim/internal/core/telemetry"
)

// Config is the full application configuration.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Simulation SimulationConfig `yaml:"simulation"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Notices    NoticesConfig    `yaml:"notices"`
	Server     ServerConfig     `yaml:"server"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

type LogConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"`
}

type SimulationConfig struct {
	FrameRate       int           `yaml:"frame_rate"`
	MaxFrameDelta   time.Duration `yaml:"max_frame_delta"`
	Speed           float64       `yaml:"speed"`
	Cooling         float64       `yaml:"cooling"`
	GravityY        float64       `yaml:"gravity_y"`
	Seed            int64         `yaml:"seed"`
	PhysicsSubsteps int           `yaml:"physics_substeps"`
}

type TelemetryConfig struct {
	SampleInterval   time.Duration `yaml:"sample_interval"`
	StatsInterval    time.Duration `yaml:"stats_interval"`
	HistoryCapacity  int           `yaml:"history_capacity"`
	WarningThreshold float64       `yaml:"warning_threshold"`
	WarningCooldown  time.Duration `yaml:"warning_cooldown"`
}

type NoticesConfig struct {
	Lifetime time.Duration `yaml:"lifetime"`
}

type ServerConfig struct {
	ListenAddr        string        `yaml:"listen_addr"`
	BroadcastInterval time.Duration `yaml:"broadcast_interval"`
	ReadLimit         int64         `yaml:"read_limit"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Default returns the documented defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Encoding: "json"},
		Simulation: SimulationConfig{
			FrameRate:       60,
			MaxFrameDelta:   100 * time.Millisecond,
			Speed:           1,
			GravityY:        -9.8,
			PhysicsSubsteps: 3,
		},
		Telemetry: TelemetryConfig{
			SampleInterval:   200 * time.Millisecond,
			StatsInterval:    time.Second,
			HistoryCapacity:  50,
			WarningThreshold: 50,
			WarningCooldown:  10 * time.Second,
		},
		Notices: NoticesConfig{Lifetime: 3 * time.Second},
		Server: ServerConfig{
			ListenAddr:        ":8080",
			BroadcastInterval: 200 * time.Millisecond,
			ReadLimit:         4096,
			ShutdownTimeout:   5 * time.Second,
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Load reads the YAML file at path. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes YAML on top of the defaults. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills values that were explicitly zeroed but have no
// meaningful zero.
func (c *Config) applyDefaults() {
	def := Default()
	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
	if c.Log.Encoding == "" {
		c.Log.Encoding = def.Log.Encoding
	}
	if c.Simulation.FrameRate == 0 {
		c.Simulation.FrameRate = def.Simulation.FrameRate
	}
	if c.Simulation.PhysicsSubsteps == 0 {
		c.Simulation.PhysicsSubsteps = def.Simulation.PhysicsSubsteps
	}
	if c.Telemetry.SampleInterval == 0 {
		c.Telemetry.SampleInterval = def.Telemetry.SampleInterval
	}
	if c.Telemetry.StatsInterval == 0 {
		c.Telemetry.StatsInterval = def.Telemetry.StatsInterval
	}
	if c.Telemetry.HistoryCapacity == 0 {
		c.Telemetry.HistoryCapacity = def.Telemetry.HistoryCapacity
	}
	if c.Notices.Lifetime == 0 {
		c.Notices.Lifetime = def.Notices.Lifetime
	}
	if c.Server.BroadcastInterval == 0 {
		c.Server.BroadcastInterval = def.Server.BroadcastInterval
	}
	if c.Server.ReadLimit == 0 {
		c.Server.ReadLimit = def.Server.ReadLimit
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = def.Metrics.Path
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Encoding != "json" && c.Log.Encoding != "console" {
		errs = append(errs, fmt.Errorf("log.encoding must be json or console, got %q", c.Log.Encoding))
	}
	if c.Simulation.FrameRate < 1 || c.Simulation.FrameRate > 1000 {
		errs = append(errs, fmt.Errorf("simulation.frame_rate out of range: %d", c.Simulation.FrameRate))
	}
	if c.Simulation.MaxFrameDelta < 0 {
		errs = append(errs, errors.New("simulation.max_frame_delta must not be negative"))
	}
	if c.Simulation.Speed < 0 || c.Simulation.Speed > 3 {
		errs = append(errs, fmt.Errorf("simulation.speed must be within [0,3], got %g", c.Simulation.Speed))
	}
	if c.Simulation.Cooling < 0 || c.Simulation.Cooling > 100 {
		errs = append(errs, fmt.Errorf("simulation.cooling must be within [0,100], got %g", c.Simulation.Cooling))
	}
	if c.Simulation.PhysicsSubsteps < 1 {
		errs = append(errs, errors.New("simulation.physics_substeps must be positive"))
	}
	if c.Telemetry.HistoryCapacity < 1 {
		errs = append(errs, errors.New("telemetry.history_capacity must be positive"))
	}
	if c.Telemetry.SampleInterval < 0 || c.Telemetry.StatsInterval < 0 || c.Telemetry.WarningCooldown < 0 {
		errs = append(errs, errors.New("telemetry intervals must not be negative"))
	}
	if c.Server.ListenAddr == "" {
		errs = append(errs, errors.New("server.listen_addr is required"))
	}
	if c.Server.BroadcastInterval < 0 {
		errs = append(errs, errors.New("server.broadcast_interval must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

// LoggerConfig maps the log section onto the logger.
func (c *Config) LoggerConfig() log.Config {
	level, err := log.ParseLevel(c.Log.Level)
	if err != nil {
		level = log.LevelInfo
	}
	return log.Config{Level: level, Encoding: c.Log.Encoding}
}

// EngineOptions maps the simulation, telemetry and notice sections onto
// the engine.
func (c *Config) EngineOptions() engine.Options {
	opts := engine.DefaultOptions()
	opts.FrameRate = c.Simulation.FrameRate
	opts.MaxFrameDelta = c.Simulation.MaxFrameDelta
	opts.PhysicsSubsteps = c.Simulation.PhysicsSubsteps
	opts.Speed = c.Simulation.Speed
	opts.Cooling = c.Simulation.Cooling
	opts.GravityY = c.Simulation.GravityY
	opts.Seed = c.Simulation.Seed
	opts.SampleInterval = c.Telemetry.SampleInterval
	opts.StatsInterval = c.Telemetry.StatsInterval
	opts.HistoryCapacity = c.Telemetry.HistoryCapacity
	opts.Telemetry = telemetry.Options{
		WarningThreshold: c.Telemetry.WarningThreshold,
		WarningCooldown:  c.Telemetry.WarningCooldown.Seconds(),
	}
	opts.NoticeLifetime = c.Notices.Lifetime
	return opts
}
