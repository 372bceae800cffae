package vectorstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store for tests. FailUpserts makes the next N
// Upsert calls fail, to simulate store unavailability mid-run.
type MockStore struct {
	mu          sync.Mutex
	objects     map[uuid.UUID]mockObject
	FailUpserts int
	UpsertCalls int
	FailErr     error
}

type mockObject struct {
	embedding []float32
	meta      Metadata
}

// Ensure MockStore implements Store.
var _ Store = (*MockStore)(nil)

// NewMockStore creates an empty in-memory store.
func NewMockStore() *MockStore {
	return &MockStore{objects: map[uuid.UUID]mockObject{}}
}

// Upsert stores the object, or fails while FailUpserts is positive.
func (s *MockStore) Upsert(_ context.Context, id uuid.UUID, embedding []float32, meta Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.UpsertCalls++

	if s.FailUpserts > 0 {
		s.FailUpserts--

		if s.FailErr != nil {
			return s.FailErr
		}

		return errStoreDown
	}

	s.objects[id] = mockObject{embedding: embedding, meta: meta}

	return nil
}

// Exists reports presence of id.
func (s *MockStore) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.objects[id]

	return ok, nil
}

// ListIDs returns ids in [from, to], sorted.
func (s *MockStore) ListIDs(_ context.Context, from, to uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []uuid.UUID

	for id := range s.objects {
		if inRange(id, from, to) {
			ids = append(ids, id)
		}
	}

	sort.Slice(ids, func(i, j int) bool { return lessUUID(ids[i], ids[j]) })

	return ids, nil
}

// NearQuery returns stored objects in arbitrary but deterministic order with
// score 1.0; the mock does not rank by distance.
func (s *MockStore) NearQuery(
	_ context.Context, _ []float32, limit int, productID *uuid.UUID,
) ([]Hit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []uuid.UUID

	for id, obj := range s.objects {
		if productID != nil && (obj.meta.ProductID == nil || *obj.meta.ProductID != *productID) {
			continue
		}

		ids = append(ids, id)
	}

	sort.Slice(ids, func(i, j int) bool { return lessUUID(ids[i], ids[j]) })

	var hits []Hit

	for _, id := range ids {
		if len(hits) == limit {
			break
		}

		hits = append(hits, Hit{ExternalID: id, Score: 1.0, Metadata: s.objects[id].meta})
	}

	return hits, nil
}

// Delete removes an object if present.
func (s *MockStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, id)

	return nil
}

// Len returns the number of stored objects.
func (s *MockStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.objects)
}

// PutOrphan inserts an object directly, bypassing Upsert accounting (for drift tests).
func (s *MockStore) PutOrphan(id uuid.UUID, meta Metadata) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.objects[id] = mockObject{meta: meta}
}

func inRange(id, from, to uuid.UUID) bool {
	return !lessUUID(id, from) && !lessUUID(to, id)
}

func lessUUID(a, b uuid.UUID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}

	return false
}

// errStoreDown is the default failure injected by FailUpserts.
var errStoreDown = &storeDownError{}

type storeDownError struct{}

func (e *storeDownError) Error() string { return "vector store unavailable (injected)" }
