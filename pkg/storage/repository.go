// Package storage defines the keyed-store capability consumed by domain handlers
// and provides its in-memory implementation.
//
// Items are addressed by id and listed through the ByEntityType secondary index,
// ordered by (createdAt, id). Listing is keyset-paginated: a query returns a
// LastEvaluatedKey when more items remain, and passing it back as
// ExclusiveStartKey resumes after it.
package storage

import (
	"context"
	"errors"
)

// IndexByEntityType partitions items by entity type, sorted by creation time then id.
const IndexByEntityType = "ByEntityType"

// Resume key attributes.
const (
	KeyID         = "id"
	KeyEntityType = "entityType"
	KeyCreatedAt  = "createdAt"
)

var (
	// ErrConditionFailed reports a violated put condition.
	ErrConditionFailed = errors.New("storage: conditional check failed")
	// ErrInvalidStartKey reports an exclusive start key that does not identify an index position.
	ErrInvalidStartKey = errors.New("storage: invalid exclusive start key")
	// ErrUnknownIndex reports a query against an index the store does not maintain.
	ErrUnknownIndex = errors.New("storage: unknown index")
)

// UserItem is the stored form of a user record.
type UserItem struct {
	ID         string `json:"id" db:"id"`
	EntityType string `json:"entityType" db:"entity_type"`
	FirstName  string `json:"firstName" db:"first_name"`
	LastName   string `json:"lastName" db:"last_name"`
	CreatedAt  string `json:"createdAt" db:"created_at"`
	ModifiedAt string `json:"modifiedAt" db:"modified_at"`
}

// ResumeKey returns the index position of item.
func (i UserItem) ResumeKey() map[string]string {
	return map[string]string{
		KeyID:         i.ID,
		KeyEntityType: i.EntityType,
		KeyCreatedAt:  i.CreatedAt,
	}
}

// PutCondition guards a write on the existence of the item.
type PutCondition int

const (
	// PutAlways writes unconditionally.
	PutAlways PutCondition = iota
	// PutMustNotExist fails with ErrConditionFailed when the id is taken.
	PutMustNotExist
	// PutMustExist fails with ErrConditionFailed when the id is absent.
	PutMustExist
)

// Query selects a page of an index partition.
type Query struct {
	Index     string
	Partition string
	// Limit caps the page size; zero or less returns the whole partition.
	Limit             int
	ExclusiveStartKey map[string]string
}

// QueryResult is one page. LastEvaluatedKey is nil when the partition is exhausted.
type QueryResult struct {
	Items            []UserItem
	LastEvaluatedKey map[string]string
}

// Repository is the keyed-store capability.
type Repository interface {
	// GetByID returns nil, nil when the item is absent.
	GetByID(ctx context.Context, id string) (*UserItem, error)
	Put(ctx context.Context, item UserItem, cond PutCondition) error
	Query(ctx context.Context, q Query) (QueryResult, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// StartPosition validates an exclusive start key and returns its (createdAt, id) position.
func StartPosition(key map[string]string) (createdAt, id string, err error) {
	createdAt, id = key[KeyCreatedAt], key[KeyID]
	if createdAt == "" || id == "" {
		return "", "", ErrInvalidStartKey
	}
	return createdAt, id, nil
}

// After reports whether item sorts strictly after the (createdAt, id) position.
func After(item UserItem, createdAt, id string) bool {
	if item.CreatedAt != createdAt {
		return item.CreatedAt > createdAt
	}
	return item.ID > id
}
