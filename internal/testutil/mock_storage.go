// mock_storage.go - In-memory fix store for testing
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/gps-logger/backend/internal/models"
	"github.com/gps-logger/backend/internal/query"
	"github.com/gps-logger/backend/internal/storage"
)

// MockStore implements storage.Store for testing
type MockStore struct {
	mu      sync.RWMutex
	fixes   []models.GpsFix
	queries []query.Predicate
	closed  bool

	// Set to make the matching operation fail
	InsertErr error
	QueryErr  error
}

// NewMockStore creates a mock store preloaded with fixes
func NewMockStore(fixes ...models.GpsFix) *MockStore {
	m := &MockStore{}
	m.add(fixes)
	return m
}

func (m *MockStore) add(fixes []models.GpsFix) {
	m.fixes = append(m.fixes, fixes...)
	sort.SliceStable(m.fixes, func(i, j int) bool {
		return m.fixes[i].UTCTime.Before(m.fixes[j].UTCTime)
	})
}

func (m *MockStore) Insert(_ context.Context, fixes ...models.GpsFix) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.add(fixes)
	return nil
}

func (m *MockStore) RetrieveWhere(_ context.Context, pred query.Predicate) ([]models.GpsFix, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queries = append(m.queries, pred)
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}

	var out []models.GpsFix
	for _, f := range m.fixes {
		if pred.Matches(f.UTCTime) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *MockStore) Latest(_ context.Context) (*models.GpsFix, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	if len(m.fixes) == 0 {
		return nil, storage.ErrNoFixes
	}
	f := m.fixes[len(m.fixes)-1]
	return &f, nil
}

func (m *MockStore) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.fixes), nil
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Ensure MockStore implements storage.Store
var _ storage.Store = (*MockStore)(nil)

// Test Helper Methods

// Fixes returns a copy of the stored fixes in time order
func (m *MockStore) Fixes() []models.GpsFix {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.GpsFix(nil), m.fixes...)
}

// Queries returns every predicate passed to RetrieveWhere
func (m *MockStore) Queries() []query.Predicate {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]query.Predicate(nil), m.queries...)
}

// Closed reports whether Close was called
func (m *MockStore) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Fix builds a fix at ts with the given position
func Fix(ts time.Time, lat, lon float64) models.GpsFix {
	return models.GpsFix{UTCTime: ts.UTC(), Latitude: lat, Longitude: lon}
}
