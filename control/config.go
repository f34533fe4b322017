// control/config.go
// Author: momentics <momentics@gmail.com>
//
// Thread-safe settings store with reload propagation.

package control

import (
	"sync"
)

// ConfigStore holds the current Settings and notifies listeners when they
// are replaced.
type ConfigStore struct {
	mu        sync.RWMutex
	settings  Settings
	listeners []func(Settings)
}

// NewConfigStore initializes a store with s.
func NewConfigStore(s Settings) *ConfigStore {
	return &ConfigStore{settings: s}
}

// GetSnapshot returns the current settings.
func (cs *ConfigStore) GetSnapshot() Settings {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.settings
}

// SetConfig replaces the settings and dispatches reload listeners in
// registration order.
func (cs *ConfigStore) SetConfig(s Settings) {
	cs.mu.Lock()
	cs.settings = s
	listeners := append(([]func(Settings))(nil), cs.listeners...)
	cs.mu.Unlock()

	for _, fn := range listeners {
		fn(s)
	}
}

// OnReload registers a listener called after every SetConfig.
func (cs *ConfigStore) OnReload(fn func(Settings)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.listeners = append(cs.listeners, fn)
}
