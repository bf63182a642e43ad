package agent

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the checkpoint agent configuration, stored as TOML.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Camera     CameraConfig     `toml:"camera"`
	Recognizer RecognizerConfig `toml:"recognizer"`
	PhotosDir  string           `toml:"photos_dir"`
	IntervalMS int              `toml:"interval_ms"` // delay between capture attempts
}

// ServerConfig points at the ledger server.
type ServerConfig struct {
	BaseURL string `toml:"base_url"`
}

// CameraConfig describes the checkpoint camera snapshot endpoint.
type CameraConfig struct {
	SnapshotURL string `toml:"snapshot_url"`
	Username    string `toml:"username,omitempty"`
	Password    string `toml:"password,omitempty"`
}

// RecognizerConfig holds the plate reader API settings.
type RecognizerConfig struct {
	Endpoint string `toml:"endpoint,omitempty"` // empty means the hosted default
	Token    string `toml:"token"`
}

// NewConfig creates a Config with sensible defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		Server:     ServerConfig{BaseURL: "http://localhost:8080"},
		PhotosDir:  filepath.Join(baseDir, "photos"),
		IntervalMS: 3000,
	}
}

// Interval returns the capture loop delay.
func (c *Config) Interval() time.Duration {
	if c.IntervalMS <= 0 {
		return 3 * time.Second
	}
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// Manager handles reading and writing agent configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// InitConfig writes a fresh config file, refusing to clobber an existing one.
func InitConfig(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
