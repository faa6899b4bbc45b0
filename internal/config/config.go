package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Environment variable names
const (
	EnvPort     = "REELKIT_PORT"
	EnvLogLevel = "REELKIT_LOG_LEVEL"
	EnvDataDir  = "REELKIT_DATA_DIR"
	EnvFFmpeg   = "REELKIT_FFMPEG"
	EnvFFprobe  = "REELKIT_FFPROBE"
)

const DBFilename = "reelkit.db"

// Config holds all engine configuration
type Config struct {
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
	DataDir  string `yaml:"data_dir"`

	FFmpeg  FFmpegConfig  `yaml:"ffmpeg"`
	Preview PreviewConfig `yaml:"preview"`
}

type FFmpegConfig struct {
	BinaryPath  string `yaml:"binary_path"`
	ProbePath   string `yaml:"probe_path"`
	Threads     int    `yaml:"threads"`
	ProxyHeight int    `yaml:"proxy_height"`
}

type PreviewConfig struct {
	CacheMaxBytes    int64   `yaml:"cache_max_bytes"`
	PrefetchSec      float64 `yaml:"prefetch_sec"`
	PrefetchMinStep  float64 `yaml:"prefetch_min_step"`
	TightToleranceMs float64 `yaml:"tight_tolerance_ms"`
	LooseToleranceMs float64 `yaml:"loose_tolerance_ms"`
}

// Load reads configuration from file, applies defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port out of range: %d", cfg.Port)
	}

	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		cfg.Port = port
	}
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.LogLevel = ll
	}
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.DataDir = dd
	}
	if fp := os.Getenv(EnvFFmpeg); fp != "" {
		cfg.FFmpeg.BinaryPath = fp
	}
	if fp := os.Getenv(EnvFFprobe); fp != "" {
		cfg.FFmpeg.ProbePath = fp
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Port:     7878,
		LogLevel: "info",
		DataDir:  defaultDataDir(),
		FFmpeg: FFmpegConfig{
			BinaryPath:  "ffmpeg",
			ProbePath:   "ffprobe",
			Threads:     0,
			ProxyHeight: 720,
		},
		Preview: PreviewConfig{
			CacheMaxBytes:    256 * 1024 * 1024,
			PrefetchSec:      2,
			PrefetchMinStep:  0.25,
			TightToleranceMs: 1000.0 / 60.0,
			LooseToleranceMs: 100,
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./reelkit.yaml",
		"./reelkit.yml",
		filepath.Join(defaultDataDir(), "reelkit.yaml"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".reelkit"
	}
	return filepath.Join(home, ".reelkit")
}

// DBPath returns the full path to the SQLite catalog file
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, DBFilename)
}

// ProxyDir returns the directory generated proxies land in
func (c *Config) ProxyDir() string {
	return filepath.Join(c.DataDir, "proxies")
}

// ThumbDir returns the directory extracted thumbnails land in
func (c *Config) ThumbDir() string {
	return filepath.Join(c.DataDir, "thumbs")
}

// TightToleranceSec returns the paused-seek alignment tolerance
func (c *Config) TightToleranceSec() float64 {
	return c.Preview.TightToleranceMs / 1000
}

// LooseToleranceSec returns the playing drift tolerance
func (c *Config) LooseToleranceSec() float64 {
	return c.Preview.LooseToleranceMs / 1000
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)
