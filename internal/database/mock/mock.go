// Package mock provides mock implementations of database interfaces for testing.
package mock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/cbir/internal/database"
	"github.com/kozaktomas/cbir/internal/features"
	"github.com/kozaktomas/cbir/internal/retrieval"
)

// MockCorpusStore is an in-memory implementation of database.CorpusWriter
type MockCorpusStore struct {
	mu         sync.RWMutex
	histograms map[int]database.StoredHistogram
	matrices   map[database.MatrixKind]*features.Matrix
	rankings   map[retrieval.Method]database.Rankings

	// Error injection
	LoadHistogramsError error
	LoadMatrixError     error
	LoadRankingsError   error
	CountError          error
	SaveHistogramsError error
	SaveMatrixError     error
	SaveRankingsError   error
	ClearRankingsError  error
}

// NewMockCorpusStore creates a new empty mock corpus store
func NewMockCorpusStore() *MockCorpusStore {
	return &MockCorpusStore{
		histograms: make(map[int]database.StoredHistogram),
		matrices:   make(map[database.MatrixKind]*features.Matrix),
		rankings:   make(map[retrieval.Method]database.Rankings),
	}
}

// LoadHistograms returns all stored histograms ordered by image ID
func (m *MockCorpusStore) LoadHistograms(ctx context.Context) ([]database.StoredHistogram, error) {
	if m.LoadHistogramsError != nil {
		return nil, m.LoadHistogramsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]database.StoredHistogram, 0, len(m.histograms))
	for _, h := range m.histograms {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ImageID < out[j].ImageID })
	return out, nil
}

// LoadMatrix returns a stored matrix
func (m *MockCorpusStore) LoadMatrix(ctx context.Context, kind database.MatrixKind) (*features.Matrix, error) {
	if m.LoadMatrixError != nil {
		return nil, m.LoadMatrixError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	matrix, ok := m.matrices[kind]
	if !ok {
		return nil, database.ErrNotFound
	}
	return matrix, nil
}

// LoadRankings returns stored rankings of a method
func (m *MockCorpusStore) LoadRankings(ctx context.Context, method retrieval.Method) (database.Rankings, error) {
	if m.LoadRankingsError != nil {
		return nil, m.LoadRankingsError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rankings[method]
	if !ok {
		return nil, database.ErrNotFound
	}
	return r, nil
}

// Count returns the number of stored histograms
func (m *MockCorpusStore) Count(ctx context.Context) (int, error) {
	if m.CountError != nil {
		return 0, m.CountError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.histograms), nil
}

// SaveHistograms replaces all stored histograms
func (m *MockCorpusStore) SaveHistograms(ctx context.Context, histograms []database.StoredHistogram) error {
	if m.SaveHistogramsError != nil {
		return m.SaveHistogramsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.histograms = make(map[int]database.StoredHistogram, len(histograms))
	for _, h := range histograms {
		m.histograms[h.ImageID] = h
	}
	return nil
}

// SaveMatrix replaces a stored matrix
func (m *MockCorpusStore) SaveMatrix(ctx context.Context, kind database.MatrixKind, matrix *features.Matrix) error {
	if m.SaveMatrixError != nil {
		return m.SaveMatrixError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matrices[kind] = matrix
	return nil
}

// SaveRankings replaces the stored rankings of a method
func (m *MockCorpusStore) SaveRankings(ctx context.Context, method retrieval.Method, rankings database.Rankings) error {
	if m.SaveRankingsError != nil {
		return m.SaveRankingsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rankings[method] = rankings
	return nil
}

// ClearRankings drops the stored rankings of every method
func (m *MockCorpusStore) ClearRankings(ctx context.Context) error {
	if m.ClearRankingsError != nil {
		return m.ClearRankingsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rankings = make(map[retrieval.Method]database.Rankings)
	return nil
}

// MockSessionStore is an in-memory implementation of database.SessionStore
type MockSessionStore struct {
	mu       sync.RWMutex
	sessions map[string]database.StoredSession

	// Error injection
	SaveError   error
	GetError    error
	DeleteError error
}

// NewMockSessionStore creates a new empty mock session store
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{sessions: make(map[string]database.StoredSession)}
}

// Save stores a session
func (m *MockSessionStore) Save(ctx context.Context, id string, state retrieval.SessionState, createdAt, expiresAt time.Time) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = database.StoredSession{ID: id, State: state, CreatedAt: createdAt, ExpiresAt: expiresAt}
	return nil
}

// Get returns a session, nil if missing or expired
func (m *MockSessionStore) Get(ctx context.Context, id string) (*database.StoredSession, error) {
	if m.GetError != nil {
		return nil, m.GetError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok || time.Now().After(s.ExpiresAt) {
		return nil, nil
	}
	return &s, nil
}

// Delete removes a session
func (m *MockSessionStore) Delete(ctx context.Context, id string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// DeleteExpired removes expired sessions
func (m *MockSessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	now := time.Now()
	for id, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored sessions, including expired ones
func (m *MockSessionStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
