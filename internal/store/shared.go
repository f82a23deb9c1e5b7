package store

import "sync"

var (
	sharedMu    sync.Mutex
	sharedStore *Store
)

// Shared returns the process-wide store, opening it with cfg on first use.
// Later calls return the same store and ignore cfg.
func Shared(cfg Config) (*Store, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedStore != nil {
		return sharedStore, nil
	}

	s, err := OpenWithConfig(cfg)
	if err != nil {
		return nil, err
	}
	sharedStore = s
	return sharedStore, nil
}

// ResetShared closes and discards the process-wide store. Intended for
// tests that need a fresh database.
func ResetShared() error {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedStore == nil {
		return nil
	}
	err := sharedStore.Close()
	sharedStore = nil
	return err
}
