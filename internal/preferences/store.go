// Package preferences persists the user's dashboard choices and pushes
// changes to the refresh controller.
package preferences

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/naka-gawa/pr-dashboard/internal/domain"
	"gopkg.in/yaml.v3"
)

// DefaultMinPollInterval keeps polling from hammering the upstream API.
const DefaultMinPollInterval = 5 * time.Second

// Preferences is the persisted user choice. A zero PollingIntervalMS means
// manual refresh only.
type Preferences struct {
	SelectedRepos     []string `yaml:"selected_repos" json:"selected_repos"`
	PollingIntervalMS int64    `yaml:"polling_interval_ms" json:"polling_interval_ms"`
}

// PollInterval returns the effective interval, raised to floor unless polling is off.
func (p Preferences) PollInterval(floor time.Duration) time.Duration {
	if p.PollingIntervalMS <= 0 {
		return 0
	}
	return max(time.Duration(p.PollingIntervalMS)*time.Millisecond, floor)
}

// Applier receives preference changes.
type Applier interface {
	SetRepositorySelection(ids []string) error
	SetPollInterval(interval time.Duration)
}

// Apply pushes p into target.
func Apply(p Preferences, target Applier, floor time.Duration) error {
	if err := target.SetRepositorySelection(p.SelectedRepos); err != nil {
		return fmt.Errorf("failed to apply repository selection: %w", err)
	}
	target.SetPollInterval(p.PollInterval(floor))
	return nil
}

// Store reads and writes the preferences file.
type Store struct {
	path     string
	defaults Preferences
	floor    time.Duration

	mu sync.Mutex
}

// NewStore creates a store for the file at path. defaults are returned while
// the file does not exist.
func NewStore(path string, defaults Preferences, floor time.Duration) *Store {
	if floor <= 0 {
		floor = DefaultMinPollInterval
	}
	return &Store{path: path, defaults: defaults, floor: floor}
}

// Path returns the preferences file path.
func (s *Store) Path() string {
	return s.path
}

// Floor returns the minimum poll interval.
func (s *Store) Floor() time.Duration {
	return s.floor
}

// Load reads the preferences file.
func (s *Store) Load() (Preferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return s.defaults, nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to read preferences: %w", err)
	}
	var p Preferences
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Preferences{}, fmt.Errorf("failed to parse preferences %s: %w", s.path, err)
	}
	if p.SelectedRepos == nil {
		p.SelectedRepos = []string{}
	}
	p.PollingIntervalMS = max(p.PollingIntervalMS, 0)
	return p, nil
}

// Save validates p, stores the selection in canonical order and writes the
// file atomically. It returns what was written.
func (s *Store) Save(p Preferences) (Preferences, error) {
	refs, _, err := domain.CanonicalSelection(p.SelectedRepos)
	if err != nil {
		return Preferences{}, err
	}
	if p.PollingIntervalMS < 0 {
		return Preferences{}, fmt.Errorf("%w: polling interval must not be negative", domain.ErrInvalidArgument)
	}
	p.SelectedRepos = make([]string, len(refs))
	for i, ref := range refs {
		p.SelectedRepos[i] = ref.String()
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to marshal preferences: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Preferences{}, fmt.Errorf("failed to create preferences directory: %w", err)
		}
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return Preferences{}, fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return Preferences{}, fmt.Errorf("failed to save preferences: %w", err)
	}
	return p, nil
}
