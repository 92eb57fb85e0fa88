// Package config loads the host configuration: built-in defaults, then an
// optional YAML file, then environment variables (optionally from .env).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"fractalink/host/events"
	"fractalink/host/serial"
	"fractalink/host/work"
)

// Environment variables consulted after the file
const (
	EnvDevice   = "FRACTAL_DEVICE"
	EnvBaud     = "FRACTAL_BAUD"
	EnvLogLevel = "FRACTAL_LOG_LEVEL"
	EnvLogFile  = "FRACTAL_LOG_FILE"
	EnvOutput   = "FRACTAL_OUTPUT"
)

// Config is the complete host configuration
type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Fractal FractalConfig `yaml:"fractal"`
	Grid    GridConfig    `yaml:"grid"`
	Export  ExportConfig  `yaml:"export"`
	Log     LogConfig     `yaml:"log"`
	Queue   QueueConfig   `yaml:"queue"`
}

type SerialConfig struct {
	Device      string        `yaml:"device"`
	Baud        int           `yaml:"baud"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	DrainOnOpen bool          `yaml:"drain_on_open"`
}

type FractalConfig struct {
	CRe        float64 `yaml:"c_re"`
	CIm        float64 `yaml:"c_im"`
	Iterations int     `yaml:"iterations"`
	ReMin      float64 `yaml:"re_min"`
	ReMax      float64 `yaml:"re_max"`
	ImMin      float64 `yaml:"im_min"`
	ImMax      float64 `yaml:"im_max"`
}

type GridConfig struct {
	Width       int `yaml:"width"`
	Height      int `yaml:"height"`
	ChunkWidth  int `yaml:"chunk_width"`
	ChunkHeight int `yaml:"chunk_height"`
}

type ExportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Scale   int    `yaml:"scale"`
}

type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
	File        string `yaml:"file"`
}

type QueueConfig struct {
	Capacity int `yaml:"capacity"`
}

// Default returns the configuration used when nothing overrides it
func Default() Config {
	return Config{
		Serial: SerialConfig{
			Device:      "/dev/ttyACM0",
			Baud:        serial.DefaultBaud,
			ReadTimeout: serial.DefaultReadTimeout,
			DrainOnOpen: true,
		},
		Fractal: FractalConfig{
			CRe:        -0.4,
			CIm:        0.6,
			Iterations: 60,
			ReMin:      -1.6,
			ReMax:      1.6,
			ImMin:      -1.1,
			ImMax:      1.1,
		},
		Grid: GridConfig{
			Width:       640,
			Height:      480,
			ChunkWidth:  64,
			ChunkHeight: 48,
		},
		Export: ExportConfig{
			Enabled: true,
			Path:    "fractal.png",
			Scale:   1,
		},
		Log: LogConfig{
			Level: "info",
		},
		Queue: QueueConfig{
			Capacity: events.DefaultCapacity,
		},
	}
}

// Load reads path over the defaults and applies the environment. An empty
// path skips the file. A .env file in the working directory, if present,
// is loaded into the environment first.
func Load(path string) (Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides settings from environment variables looked up with
// lookup
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvDevice); ok && v != "" {
		c.Serial.Device = v
	}
	if v, ok := lookup(EnvBaud); ok && v != "" {
		baud, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvBaud, err)
		}
		c.Serial.Baud = baud
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.Log.Level = v
	}
	if v, ok := lookup(EnvLogFile); ok {
		c.Log.File = v
	}
	if v, ok := lookup(EnvOutput); ok && v != "" {
		c.Export.Path = v
	}
	return nil
}

// Validate checks everything that can be checked before the link opens.
// Chunk geometry errors wrap work.ErrConfiguration.
func (c Config) Validate() error {
	var errs []error
	if c.Serial.Baud <= 0 {
		errs = append(errs, fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud))
	}
	if c.Serial.ReadTimeout <= 0 {
		errs = append(errs, fmt.Errorf("serial.read_timeout must be positive, got %v", c.Serial.ReadTimeout))
	}
	if c.Fractal.Iterations < 1 || c.Fractal.Iterations > 255 {
		errs = append(errs, fmt.Errorf("%w: fractal.iterations must be 1..255, got %d",
			work.ErrConfiguration, c.Fractal.Iterations))
	}
	if c.Queue.Capacity < 1 {
		errs = append(errs, fmt.Errorf("queue.capacity must be positive, got %d", c.Queue.Capacity))
	}
	if c.Export.Enabled && c.Export.Path == "" {
		errs = append(errs, errors.New("export.path is required when export is enabled"))
	}
	if err := c.Plan().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Params().Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Plan returns the chunk plan
func (c Config) Plan() work.Plan {
	return work.Plan{
		Width:       c.Grid.Width,
		Height:      c.Grid.Height,
		ChunkWidth:  c.Grid.ChunkWidth,
		ChunkHeight: c.Grid.ChunkHeight,
	}
}

// Params returns the fractal parameters
func (c Config) Params() work.Params {
	return work.Params{
		CRe:          c.Fractal.CRe,
		CIm:          c.Fractal.CIm,
		IterationCap: uint8(c.Fractal.Iterations),
		Region: work.Region{
			ReMin: c.Fractal.ReMin,
			ReMax: c.Fractal.ReMax,
			ImMin: c.Fractal.ImMin,
			ImMax: c.Fractal.ImMax,
		},
	}
}

// Settings returns the scheduler settings
func (c Config) Settings() work.Settings {
	return work.Settings{Plan: c.Plan(), Params: c.Params(), Export: c.Export.Enabled}
}

// SerialPort returns the port configuration
func (c Config) SerialPort() *serial.Config {
	return &serial.Config{
		Device:      c.Serial.Device,
		Baud:        c.Serial.Baud,
		ReadTimeout: c.Serial.ReadTimeout,
	}
}
