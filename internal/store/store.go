// Package store persists the MQTT broker address across restarts.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/sweeney/ac-mqtt-bridge/internal/logging"
)

// FileName is the config file inside the data directory.
const FileName = "config.json"

// Capacity limits for broker settings.
const (
	MaxServerLen = 40
	MaxPortLen   = 6
)

// Defaults used when nothing valid is persisted.
const (
	DefaultServer = "192.168.178.79"
	DefaultPort   = "1883"
)

// BrokerConfig is the persisted broker address.
type BrokerConfig struct {
	Server string `json:"mqttServer"`
	Port   string `json:"mqttPort"`
}

// Default returns the factory broker config.
func Default() BrokerConfig {
	return BrokerConfig{Server: DefaultServer, Port: DefaultPort}
}

// Validate checks the capacity limits.
func (c BrokerConfig) Validate() error {
	if len(c.Server) > MaxServerLen {
		return fmt.Errorf("%w: mqttServer is %d chars, max %d", ErrFieldTooLong, len(c.Server), MaxServerLen)
	}
	if len(c.Port) > MaxPortLen {
		return fmt.Errorf("%w: mqttPort is %d chars, max %d", ErrFieldTooLong, len(c.Port), MaxPortLen)
	}
	return nil
}

// Address returns the paho broker URL.
func (c BrokerConfig) Address() string {
	return "tcp://" + c.Server + ":" + c.Port
}

// Store reads and writes BrokerConfig under a data directory.
type Store struct {
	fs  afero.Fs
	dir string
	log *logging.Logger
}

// New creates a Store rooted at dir on fsys.
func New(fsys afero.Fs, dir string, log *logging.Logger) *Store {
	return &Store{fs: fsys, dir: dir, log: log}
}

// NewOS creates a Store on the host filesystem.
func NewOS(dir string, log *logging.Logger) *Store {
	return New(afero.NewOsFs(), dir, log)
}

func (s *Store) path() string {
	return filepath.Join(s.dir, FileName)
}

// Load returns the persisted config, or the defaults if the data directory
// cannot be mounted or the file is missing, unreadable, malformed or over
// capacity. It never fails.
func (s *Store) Load() BrokerConfig {
	cfg, err := s.load()
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.log.Infow("no persisted broker config, using defaults", "path", s.path())
		} else {
			s.log.Warnw("failed to load broker config, using defaults", "path", s.path(), "err", err)
		}
		return Default()
	}
	s.log.Infow("loaded broker config", "server", cfg.Server, "port", cfg.Port)
	return cfg
}

func (s *Store) load() (BrokerConfig, error) {
	if err := s.mount(); err != nil {
		return BrokerConfig{}, err
	}

	data, err := afero.ReadFile(s.fs, s.path())
	if errors.Is(err, fs.ErrNotExist) {
		return BrokerConfig{}, ErrNotFound
	}
	if err != nil {
		return BrokerConfig{}, fmt.Errorf("read config: %w", err)
	}

	var cfg BrokerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return BrokerConfig{}, fmt.Errorf("parse config: %w", err)
	}
	// Missing or empty fields fall back one by one.
	if cfg.Server == "" {
		cfg.Server = DefaultServer
	}
	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if err := cfg.Validate(); err != nil {
		return BrokerConfig{}, err
	}
	return cfg, nil
}

// mount makes sure the data directory exists. If it cannot be created the
// directory is wiped and created once more.
func (s *Store) mount() error {
	if fi, err := s.fs.Stat(s.dir); err == nil && fi.IsDir() {
		return nil
	}
	err := s.fs.MkdirAll(s.dir, 0o755)
	if err == nil {
		return nil
	}
	s.log.Warnw("failed to mount data dir, formatting", "dir", s.dir, "err", err)
	if err := s.fs.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("format data dir: %w", err)
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("mount data dir: %w", err)
	}
	return nil
}

// Save overwrites the persisted config.
func (s *Store) Save(cfg BrokerConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("mount data dir: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path(), data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Clear removes the persisted config. Removing a missing file is not an error.
func (s *Store) Clear() error {
	err := s.fs.Remove(s.path())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove config: %w", err)
	}
	return nil
}

// DataDir returns the directory the store writes to.
func (s *Store) DataDir() string {
	return s.dir
}

// Provision applies operator overrides to cfg. Empty values leave the field
// unchanged. It reports whether cfg changed and should be saved. Overrides
// that exceed capacity are rejected and cfg is left untouched.
func Provision(cfg *BrokerConfig, server, port string) (bool, error) {
	next := *cfg
	if server != "" {
		next.Server = server
	}
	if port != "" {
		next.Port = port
	}
	if err := next.Validate(); err != nil {
		return false, err
	}
	if next == *cfg {
		return false, nil
	}
	*cfg = next
	return true, nil
}
