package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/slok/comfylaunch/internal/log"
	"github.com/slok/comfylaunch/internal/model"
)

// StoreConfig is the configuration of the settings store.
type StoreConfig struct {
	// Path is the JSON settings file.
	Path string
	// SaveDelay is how long updates are coalesced before being written.
	SaveDelay time.Duration
	Logger    log.Logger
}

func (c *StoreConfig) defaults() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	if c.SaveDelay <= 0 {
		c.SaveDelay = 500 * time.Millisecond
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "settings.Store"})
	return nil
}

// Store holds the current settings and persists them to disk after a quiet period.
type Store struct {
	path   string
	delay  time.Duration
	logger log.Logger

	mu      sync.Mutex
	current model.Settings
	dirty   bool
	timer   *time.Timer
}

// NewStore returns a store holding the default settings, call Load to read the file.
func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Store{
		path:    cfg.Path,
		delay:   cfg.SaveDelay,
		logger:  cfg.Logger,
		current: model.DefaultSettings(),
	}, nil
}

// Load reads the settings file. Missing fields keep their default value and a
// missing file is not an error. On a malformed file the defaults are kept and an
// error wrapping model.ErrNotValid is returned.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debugf("No settings file at %s, using defaults", s.path)
			return nil
		}
		return fmt.Errorf("could not read settings: %w", err)
	}

	st := model.DefaultSettings()
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("malformed settings file %s: %w: %w", s.path, model.ErrNotValid, err)
	}

	s.mu.Lock()
	s.current = st
	s.dirty = false
	s.mu.Unlock()

	return nil
}

// Get returns a copy of the current settings.
func (s *Store) Get() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	return clone(s.current)
}

// Update applies fn to the settings and schedules a save.
func (s *Store) Update(fn func(st *model.Settings)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := clone(s.current)
	fn(&st)
	s.current = st
	s.dirty = true

	if s.timer == nil {
		s.timer = time.AfterFunc(s.delay, s.saveScheduled)
		return
	}
	s.timer.Reset(s.delay)
}

// Flush writes any pending change immediately.
func (s *Store) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	return s.save()
}

func (s *Store) saveScheduled() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.save(); err != nil {
		s.logger.Errorf("Could not save settings: %v", err)
	}
}

// save must be called with the lock held.
func (s *Store) save() error {
	if !s.dirty {
		return nil
	}

	data, err := json.MarshalIndent(s.current, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal settings: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("could not create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*.json")
	if err != nil {
		return fmt.Errorf("could not create temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("could not write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("could not write settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("could not replace settings file: %w", err)
	}

	s.dirty = false
	s.logger.Debugf("Settings saved to %s", s.path)
	return nil
}

func clone(st model.Settings) model.Settings {
	st.Env = maps.Clone(st.Env)
	return st
}
