package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-memory implementation of Repository.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]UserItem
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items: make(map[string]UserItem),
	}
}

// GetByID retrieves an item from memory.
func (s *MemoryStore) GetByID(_ context.Context, id string) (*UserItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, nil
	}
	return &item, nil
}

// Put saves an item to memory, honouring cond.
func (s *MemoryStore) Put(_ context.Context, item UserItem, cond PutCondition) error {
	if item.ID == "" {
		return fmt.Errorf("storage: item without id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.items[item.ID]
	switch {
	case cond == PutMustNotExist && exists:
		return ErrConditionFailed
	case cond == PutMustExist && !exists:
		return ErrConditionFailed
	}

	s.items[item.ID] = item
	return nil
}

// Query returns one page of the entity type partition.
func (s *MemoryStore) Query(_ context.Context, q Query) (QueryResult, error) {
	if q.Index != IndexByEntityType {
		return QueryResult{}, fmt.Errorf("%w: %q", ErrUnknownIndex, q.Index)
	}

	var startCreated, startID string
	if q.ExclusiveStartKey != nil {
		var err error
		if startCreated, startID, err = StartPosition(q.ExclusiveStartKey); err != nil {
			return QueryResult{}, err
		}
	}

	s.mu.RLock()
	partition := make([]UserItem, 0, len(s.items))
	for _, item := range s.items {
		if item.EntityType != q.Partition {
			continue
		}
		if q.ExclusiveStartKey != nil && !After(item, startCreated, startID) {
			continue
		}
		partition = append(partition, item)
	}
	s.mu.RUnlock()

	sort.Slice(partition, func(i, j int) bool {
		if partition[i].CreatedAt != partition[j].CreatedAt {
			return partition[i].CreatedAt < partition[j].CreatedAt
		}
		return partition[i].ID < partition[j].ID
	})

	if q.Limit <= 0 || len(partition) <= q.Limit {
		return QueryResult{Items: partition}, nil
	}

	page := partition[:q.Limit]
	return QueryResult{
		Items:            page,
		LastEvaluatedKey: page[len(page)-1].ResumeKey(),
	}, nil
}

// Delete removes an item. Deleting an absent id is not an error.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, id)
	return nil
}

// Len returns the number of stored items.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Close is a no-op for memory store.
func (s *MemoryStore) Close() error {
	return nil
}
