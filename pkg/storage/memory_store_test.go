package storage

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func user(id, createdAt string) UserItem {
	return UserItem{
		ID:         id,
		EntityType: "USER",
		FirstName:  "Ada",
		LastName:   "Lovelace",
		CreatedAt:  createdAt,
		ModifiedAt: createdAt,
	}
}

func TestMemoryStore_GetPutDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	got, err := store.GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Put(ctx, user("u-1", "2025-01-01T00:00:00Z"), PutAlways))

	got, err = store.GetByID(ctx, "u-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ada", got.FirstName)

	require.NoError(t, store.Delete(ctx, "u-1"))
	require.NoError(t, store.Delete(ctx, "u-1"), "deleting an absent id is not an error")
	assert.Equal(t, 0, store.Len())
}

func TestMemoryStore_PutConditions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	item := user("u-1", "2025-01-01T00:00:00Z")

	assert.ErrorIs(t, store.Put(ctx, item, PutMustExist), ErrConditionFailed)
	require.NoError(t, store.Put(ctx, item, PutMustNotExist))
	assert.ErrorIs(t, store.Put(ctx, item, PutMustNotExist), ErrConditionFailed)

	item.FirstName = "Grace"
	require.NoError(t, store.Put(ctx, item, PutMustExist))

	got, err := store.GetByID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Grace", got.FirstName)
}

func TestMemoryStore_PutRequiresID(t *testing.T) {
	assert.Error(t, NewMemoryStore().Put(context.Background(), UserItem{}, PutAlways))
}

func TestMemoryStore_QueryPaginates(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, user("b", "2025-01-02T00:00:00Z"), PutAlways))
	require.NoError(t, store.Put(ctx, user("a", "2025-01-02T00:00:00Z"), PutAlways))
	require.NoError(t, store.Put(ctx, user("c", "2025-01-01T00:00:00Z"), PutAlways))
	other := user("x", "2024-01-01T00:00:00Z")
	other.EntityType = "GROUP"
	require.NoError(t, store.Put(ctx, other, PutAlways))

	first, err := store.Query(ctx, Query{Index: IndexByEntityType, Partition: "USER", Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.Equal(t, "c", first.Items[0].ID)
	assert.Equal(t, "a", first.Items[1].ID)
	assert.Equal(t, map[string]string{"id": "a", "entityType": "USER", "createdAt": "2025-01-02T00:00:00Z"}, first.LastEvaluatedKey)

	second, err := store.Query(ctx, Query{Index: IndexByEntityType, Partition: "USER", Limit: 2, ExclusiveStartKey: first.LastEvaluatedKey})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.Equal(t, "b", second.Items[0].ID)
	assert.Nil(t, second.LastEvaluatedKey)
}

func TestMemoryStore_QueryExactPageHasNoResumeKey(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, user("a", "2025-01-01T00:00:00Z"), PutAlways))
	require.NoError(t, store.Put(ctx, user("b", "2025-01-02T00:00:00Z"), PutAlways))

	result, err := store.Query(ctx, Query{Index: IndexByEntityType, Partition: "USER", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, result.Items, 2)
	assert.Nil(t, result.LastEvaluatedKey)
}

func TestMemoryStore_QueryErrors(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.Query(ctx, Query{Index: "ByName", Partition: "USER"})
	assert.ErrorIs(t, err, ErrUnknownIndex)

	_, err = store.Query(ctx, Query{Index: IndexByEntityType, Partition: "USER", ExclusiveStartKey: map[string]string{"id": "a"}})
	assert.ErrorIs(t, err, ErrInvalidStartKey)
}

func TestMemoryStore_PagingVisitsEveryItemOnceProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		store := NewMemoryStore()
		count := rapid.IntRange(0, 30).Draw(t, "count")
		limit := rapid.IntRange(1, 7).Draw(t, "limit")
		for i := 0; i < count; i++ {
			day := rapid.IntRange(1, 5).Draw(t, "day")
			item := user(fmt.Sprintf("u-%02d", i), fmt.Sprintf("2025-01-%02dT00:00:00Z", day))
			if err := store.Put(ctx, item, PutMustNotExist); err != nil {
				t.Fatalf("put: %v", err)
			}
		}

		seen := map[string]bool{}
		var start map[string]string
		for pages := 0; ; pages++ {
			if pages > count+1 {
				t.Fatalf("pagination did not terminate")
			}
			result, err := store.Query(ctx, Query{Index: IndexByEntityType, Partition: "USER", Limit: limit, ExclusiveStartKey: start})
			if err != nil {
				t.Fatalf("query: %v", err)
			}
			for _, item := range result.Items {
				if seen[item.ID] {
					t.Fatalf("item %s returned twice", item.ID)
				}
				seen[item.ID] = true
			}
			if result.LastEvaluatedKey == nil {
				break
			}
			start = result.LastEvaluatedKey
		}
		if len(seen) != count {
			t.Fatalf("saw %d items, want %d", len(seen), count)
		}
	})
}
