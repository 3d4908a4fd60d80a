package database

import (
	"context"
	"fmt"
	"sync"
)

var (
	corpusReader func() CorpusReader
	corpusWriter func() CorpusWriter
	sessionStore func() SessionStore
	backendName  string
	initialized  bool
	providerMu   sync.RWMutex
)

// RegisterBackend registers the constructors of the active storage backend.
// This is called by the backend packages to avoid import cycles.
func RegisterBackend(name string, reader func() CorpusReader, writer func() CorpusWriter) {
	providerMu.Lock()
	defer providerMu.Unlock()

	corpusReader = reader
	corpusWriter = writer
	backendName = name
	initialized = true
}

// RegisterSessionStore registers session persistence. Backends without
// session support leave it unset and sessions live in memory only.
func RegisterSessionStore(store func() SessionStore) {
	providerMu.Lock()
	defer providerMu.Unlock()
	sessionStore = store
}

// ResetBackend clears every registration.
func ResetBackend() {
	providerMu.Lock()
	defer providerMu.Unlock()

	corpusReader = nil
	corpusWriter = nil
	sessionStore = nil
	backendName = ""
	initialized = false
}

// IsInitialized returns whether a storage backend has been registered.
func IsInitialized() bool {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return initialized
}

// BackendName returns the name of the registered backend.
func BackendName() string {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return backendName
}

// GetCorpusReader returns a CorpusReader from the registered backend
func GetCorpusReader(ctx context.Context) (CorpusReader, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()

	if !initialized {
		return nil, fmt.Errorf("storage backend not initialized")
	}
	if corpusReader == nil {
		return nil, fmt.Errorf("%s corpus reader not registered", backendName)
	}
	return corpusReader(), nil
}

// GetCorpusWriter returns a CorpusWriter from the registered backend
func GetCorpusWriter(ctx context.Context) (CorpusWriter, error) {
	providerMu.RLock()
	defer providerMu.RUnlock()

	if !initialized {
		return nil, fmt.Errorf("storage backend not initialized")
	}
	if corpusWriter == nil {
		return nil, fmt.Errorf("%s corpus writer not registered", backendName)
	}
	return corpusWriter(), nil
}

// GetSessionStore returns the registered session store, or nil when sessions are not persisted.
func GetSessionStore() SessionStore {
	providerMu.RLock()
	defer providerMu.RUnlock()

	if sessionStore == nil {
		return nil
	}
	return sessionStore()
}
