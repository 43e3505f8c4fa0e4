// Package store provides the in-memory implementation of the oracle's
// persistence surface. It is the default when no SQLite path is configured
// and the workhorse of the test suite.
package store

import (
	"sync"

	"github.com/pluvia-labs/rainfall-oracle/internal/domain"
)

type bucketKey struct {
	locationID  string
	bucketIndex int64
}

// Memory is a concurrency-safe in-memory store for bindings, buckets, and
// rolling-window state.
type Memory struct {
	mu       sync.RWMutex
	bindings map[string]domain.LocationBinding
	buckets  map[bucketKey]int64
	states   map[string]domain.WindowState
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		bindings: make(map[string]domain.LocationBinding),
		buckets:  make(map[bucketKey]int64),
		states:   make(map[string]domain.WindowState),
	}
}

// GetBinding returns the binding for a location, if present.
func (m *Memory) GetBinding(locationID string) (domain.LocationBinding, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bindings[locationID]
	return b, ok, nil
}

// PutBinding stores a binding.
func (m *Memory) PutBinding(binding domain.LocationBinding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bindings[binding.LocationID] = binding
	return nil
}

// GetBucket returns the millimeters stored for a bucket, if present.
func (m *Memory) GetBucket(locationID string, bucketIndex int64) (int64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mm, ok := m.buckets[bucketKey{locationID, bucketIndex}]
	return mm, ok, nil
}

// PutBucket overwrites a bucket and returns the previous value, 0 when the
// bucket did not exist.
func (m *Memory) PutBucket(locationID string, bucketIndex, rainfallMM int64) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := bucketKey{locationID, bucketIndex}
	prev, existed := m.buckets[key]
	m.buckets[key] = rainfallMM
	return prev, existed, nil
}

// RemoveBucket deletes a bucket. Removing an absent bucket is a no-op.
func (m *Memory) RemoveBucket(locationID string, bucketIndex int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets, bucketKey{locationID, bucketIndex})
	return nil
}

// GetState returns the rolling-window state for a location, if present.
func (m *Memory) GetState(locationID string) (domain.WindowState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[locationID]
	return s, ok, nil
}

// PutState stores the rolling-window state for a location.
func (m *Memory) PutState(locationID string, state domain.WindowState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[locationID] = state
	return nil
}

// BucketCount reports how many buckets a location currently holds. Test and
// debugging helper.
func (m *Memory) BucketCount(locationID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for key := range m.buckets {
		if key.locationID == locationID {
			n++
		}
	}
	return n
}
