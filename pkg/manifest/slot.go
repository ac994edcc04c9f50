package manifest

import (
	"sync"

	"github.com/vango-dev/devstack/internal/errors"
)

// Slot is the process-wide manifest holder. It starts NotReady and becomes
// Ready exactly once, when Install is called with the live manifest.
//
// Every accessor on a NotReady slot fails with a not-ready error, so
// consumers that race ahead of dev-server startup see a deterministic error
// instead of a partial manifest.
type Slot struct {
	mu       sync.RWMutex
	manifest Manifest
}

// NewSlot returns a slot in the NotReady state.
func NewSlot() *Slot {
	return &Slot{}
}

// Install transitions the slot to Ready. It fails if m is nil or the slot is
// already Ready.
func (s *Slot) Install(m Manifest) error {
	if m == nil {
		return errors.New("E101").WithDetail("cannot install a nil manifest")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.manifest != nil {
		return errors.New("E105")
	}
	s.manifest = m
	return nil
}

// Ready reports whether a manifest has been installed.
func (s *Slot) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.manifest != nil
}

// Get returns the installed manifest.
func (s *Slot) Get() (Manifest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.manifest == nil {
		return nil, notReady()
	}
	return s.manifest, nil
}

// Bundler resolves the manifest for a bundler name through the installed
// manifest.
func (s *Slot) Bundler(name string) (*BundlerManifest, error) {
	m, err := s.Get()
	if err != nil {
		return nil, err
	}
	return m.Bundler(name)
}

func notReady() error {
	return errors.New("E100").
		WithSuggestion("The manifest becomes available once every dev server has started")
}
