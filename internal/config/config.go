package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.courier/config.toml.
type Config struct {
	DefaultInstance string    `toml:"default_instance"`
	HTTP            HTTP      `toml:"http"`
	Auth            Auth      `toml:"auth"`
	Media           Media     `toml:"media"`
	Heartbeat       Heartbeat `toml:"heartbeat"`
	Limits          Limits    `toml:"limits"`
}

// HTTP configures the public API listener.
type HTTP struct {
	Addr string `toml:"addr"`
}

// Auth configures token signing.
type Auth struct {
	JWTSecret string   `toml:"jwt_secret"`
	TokenTTL  Duration `toml:"token_ttl"`
}

// Media selects where uploaded images go. Backend is "local" or "s3".
type Media struct {
	Backend       string `toml:"backend"`
	LocalDir      string `toml:"local_dir"`
	PublicBaseURL string `toml:"public_base_url"`
	S3Bucket      string `toml:"s3_bucket"`
	S3Region      string `toml:"s3_region"`
	S3Endpoint    string `toml:"s3_endpoint"`
}

// Heartbeat bounds how long a dead websocket stays registered.
type Heartbeat struct {
	PingPeriod Duration `toml:"ping_period"`
	PongWait   Duration `toml:"pong_wait"`
	WriteWait  Duration `toml:"write_wait"`
}

// Limits throttles API callers.
type Limits struct {
	RPS           float64 `toml:"rps"`
	Burst         int     `toml:"burst"`
	MaxImageBytes int64   `toml:"max_image_bytes"`
}

// Duration is a time.Duration written as a string ("30s") in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		HTTP: HTTP{Addr: "127.0.0.1:5000"},
		Auth: Auth{TokenTTL: Duration{7 * 24 * time.Hour}},
		Media: Media{
			Backend:       "local",
			PublicBaseURL: "http://127.0.0.1:5000",
		},
		Heartbeat: Heartbeat{
			PingPeriod: Duration{30 * time.Second},
			PongWait:   Duration{60 * time.Second},
			WriteWait:  Duration{10 * time.Second},
		},
		Limits: Limits{RPS: 10, Burst: 20, MaxImageBytes: 5 << 20},
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
// Fields left out of the file take their Default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.fill()
	return cfg, nil
}

// LoadOrDefault is Load, but a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// fill restores defaults for values a file explicitly zeroed.
func (c *Config) fill() {
	d := Default()
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = d.HTTP.Addr
	}
	if c.Auth.TokenTTL.Duration <= 0 {
		c.Auth.TokenTTL = d.Auth.TokenTTL
	}
	if c.Media.Backend == "" {
		c.Media.Backend = d.Media.Backend
	}
	if c.Heartbeat.PongWait.Duration <= 0 {
		c.Heartbeat.PongWait = d.Heartbeat.PongWait
	}
	// Pings must arrive before the pong deadline expires.
	if c.Heartbeat.PingPeriod.Duration <= 0 || c.Heartbeat.PingPeriod.Duration >= c.Heartbeat.PongWait.Duration {
		c.Heartbeat.PingPeriod = Duration{c.Heartbeat.PongWait.Duration * 9 / 10}
	}
	if c.Heartbeat.WriteWait.Duration <= 0 {
		c.Heartbeat.WriteWait = d.Heartbeat.WriteWait
	}
	if c.Limits.RPS <= 0 {
		c.Limits.RPS = d.Limits.RPS
	}
	if c.Limits.Burst <= 0 {
		c.Limits.Burst = d.Limits.Burst
	}
	if c.Limits.MaxImageBytes <= 0 {
		c.Limits.MaxImageBytes = d.Limits.MaxImageBytes
	}
}
