package testutil

import (
	"context"
	"maps"
	"slices"
	"sync"

	ierr "github.com/tuitionbill/tuitionbill/internal/errors"
	"github.com/tuitionbill/tuitionbill/internal/types"
)

// FilterFunc is a generic filter function type
type FilterFunc[T any] func(ctx context.Context, item T, filter interface{}) bool

// SortFunc is a generic sort function type
type SortFunc[T any] func(i, j T) bool

// InMemoryStore implements a generic in-memory store. Items are cloned on
// the way in and out, so callers mutating a loaded item do not change the
// stored copy until they call Update, the same as with a real database.
type InMemoryStore[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	clone func(T) T
}

// NewInMemoryStore creates a new InMemoryStore
func NewInMemoryStore[T any](clone func(T) T) *InMemoryStore[T] {
	if clone == nil {
		clone = func(item T) T { return item }
	}
	return &InMemoryStore[T]{
		items: make(map[string]T),
		clone: clone,
	}
}

// Create adds a new item to the store
func (s *InMemoryStore[T]) Create(ctx context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		return ierr.NewError("item already exists").
			WithHintf("Item %s already exists", id).
			Mark(ierr.ErrAlreadyExists)
	}

	s.items[id] = s.clone(item)
	return nil
}

// Get retrieves an item by ID
func (s *InMemoryStore[T]) Get(ctx context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if item, exists := s.items[id]; exists {
		return s.clone(item), nil
	}

	var zero T
	return zero, ierr.NewError("item not found").
		WithHintf("Item %s was not found", id).
		Mark(ierr.ErrNotFound)
}

// List returns clones of the items accepted by filterFn, ordered by sortFn
// and paged when filter is a types.BaseFilter
func (s *InMemoryStore[T]) List(ctx context.Context, filter interface{}, filterFn FilterFunc[T], sortFn SortFunc[T]) ([]T, error) {
	s.mu.RLock()
	matched := s.matching(ctx, filter, filterFn)
	s.mu.RUnlock()

	if sortFn != nil {
		slices.SortStableFunc(matched, func(a, b T) int {
			switch {
			case sortFn(a, b):
				return -1
			case sortFn(b, a):
				return 1
			}
			return 0
		})
	}

	f, ok := filter.(types.BaseFilter)
	if !ok || f.IsUnlimited() {
		return matched, nil
	}
	start := min(f.GetOffset(), len(matched))
	end := min(start+f.GetLimit(), len(matched))
	return matched[start:end], nil
}

func (s *InMemoryStore[T]) matching(ctx context.Context, filter interface{}, filterFn FilterFunc[T]) []T {
	result := make([]T, 0, len(s.items))
	for _, item := range s.items {
		if filterFn == nil || filterFn(ctx, item, filter) {
			result = append(result, s.clone(item))
		}
	}
	return result
}

// Count returns the total number of items matching the filter
func (s *InMemoryStore[T]) Count(ctx context.Context, filter interface{}, filterFn FilterFunc[T]) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.matching(ctx, filter, filterFn)), nil
}

// Update updates an existing item
func (s *InMemoryStore[T]) Update(ctx context.Context, id string, item T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return ierr.NewError("item not found").
			WithHintf("Item %s was not found", id).
			Mark(ierr.ErrNotFound)
	}

	s.items[id] = s.clone(item)
	return nil
}

// Delete removes an item from the store
func (s *InMemoryStore[T]) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; !exists {
		return ierr.NewError("item not found").
			WithHintf("Item %s was not found", id).
			Mark(ierr.ErrNotFound)
	}

	delete(s.items, id)
	return nil
}

// Snapshotter is a store whose contents the mock database client restores
// when a transaction fails
type Snapshotter interface {
	Snapshot() (restore func())
}

// Snapshot saves the current items. Stored items are never mutated in place,
// so a shallow copy is enough.
func (s *InMemoryStore[T]) Snapshot() func() {
	s.mu.RLock()
	saved := maps.Clone(s.items)
	s.mu.RUnlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.items = saved
	}
}

// Clear removes all items from the store
func (s *InMemoryStore[T]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]T)
}

// CheckTenantFilter reports whether an item belongs to the tenant in ctx
func CheckTenantFilter(ctx context.Context, itemTenantID string) bool {
	tenantID := types.GetTenantID(ctx)
	return tenantID == "" || itemTenantID == "" || itemTenantID == tenantID
}

// Failures injects errors into store operations by name, e.g. "Update"
type Failures struct {
	mu       sync.Mutex
	failures map[string]*failure
}

type failure struct {
	err       error
	remaining int
}

// FailOn makes the next times calls of op return err. times <= 0 fails
// every call until Reset.
func (f *Failures) FailOn(op string, err error, times int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures == nil {
		f.failures = make(map[string]*failure)
	}
	f.failures[op] = &failure{err: err, remaining: times}
}

// Reset removes all injected failures
func (f *Failures) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = nil
}

func (f *Failures) check(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fail, ok := f.failures[op]
	if !ok {
		return nil
	}
	if fail.remaining > 0 {
		fail.remaining--
		if fail.remaining == 0 {
			delete(f.failures, op)
		}
	}
	return fail.err
}

// DatabaseError is a ready made persistence failure for FailOn
func DatabaseError(msg string) error {
	return ierr.NewError(msg).
		WithHint("Injected database failure").
		Mark(ierr.ErrDatabase)
}
