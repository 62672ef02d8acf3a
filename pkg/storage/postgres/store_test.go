package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hayden74/cogira-frontend/pkg/storage"
	"github.com/hayden74/cogira-frontend/pkg/storage/postgres/internal/adapters"
)

// fakeDB records every statement and replays canned rows.
type fakeDB struct {
	statements []string
	rows       [][]string
	affected   int64
	err        error
	closed     bool
}

func (f *fakeDB) Query(_ context.Context, query string) (adapters.DBRows, error) {
	f.statements = append(f.statements, query)
	if f.err != nil {
		return nil, f.err
	}
	return &fakeRows{rows: f.rows, pos: -1}, nil
}

func (f *fakeDB) Exec(_ context.Context, query string) (adapters.DBResult, error) {
	f.statements = append(f.statements, query)
	if f.err != nil {
		return nil, f.err
	}
	return fakeResult(f.affected), nil
}

func (f *fakeDB) Close() error {
	f.closed = true
	return nil
}

type fakeRows struct {
	rows [][]string
	pos  int
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.pos]
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d columns", len(dest), len(row))
	}
	for i, d := range dest {
		*(d.(*string)) = row[i]
	}
	return nil
}

func (r *fakeRows) Err() error   { return nil }
func (r *fakeRows) Close() error { return nil }

type fakeResult int64

func (f fakeResult) RowsAffected() (int64, error) { return int64(f), nil }

func row(id, createdAt string) []string {
	return []string{id, "USER", "Ada", "Lovelace", createdAt, createdAt}
}

func newTestStore(t *testing.T, db *fakeDB, options ...Option) *Store {
	t.Helper()
	store, err := newStore(db, options...)
	require.NoError(t, err)
	return store
}

func TestConstructors_RejectNilConnections(t *testing.T) {
	_, err := NewStoreFromPGXPool(nil)
	assert.ErrorIs(t, err, ErrNilDatabaseConnection)
	_, err = NewStoreFromSQLDB(nil)
	assert.ErrorIs(t, err, ErrNilDatabaseConnection)
	_, err = NewStoreFromSQLX(nil)
	assert.ErrorIs(t, err, ErrNilDatabaseConnection)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "dsn")
	assert.ErrorIs(t, err, ErrUnknownDriver)
}

func TestWithTableName(t *testing.T) {
	store := newTestStore(t, &fakeDB{}, WithTableName("people"))
	assert.Equal(t, "people", store.TableName())

	_, err := newStore(&fakeDB{}, WithTableName(`users"; drop table x`))
	assert.ErrorIs(t, err, ErrInvalidTableName)
}

func TestGetByID(t *testing.T) {
	db := &fakeDB{rows: [][]string{row("u-1", "2025-01-01T00:00:00Z")}}
	store := newTestStore(t, db)

	item, err := store.GetByID(context.Background(), "u-1")

	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "Ada", item.FirstName)
	require.Len(t, db.statements, 1)
	assert.Contains(t, db.statements[0], `FROM "users"`)
	assert.Contains(t, db.statements[0], `"id" = 'u-1'`)
	assert.Contains(t, db.statements[0], "LIMIT 1")
}

func TestGetByID_Absent(t *testing.T) {
	item, err := newTestStore(t, &fakeDB{}).GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestGetByID_QuotesValues(t *testing.T) {
	db := &fakeDB{}
	_, err := newTestStore(t, db).GetByID(context.Background(), "o'brien")
	require.NoError(t, err)
	assert.Contains(t, db.statements[0], `'o''brien'`)
}

func TestPut_Conditions(t *testing.T) {
	item := storage.UserItem{ID: "u-1", EntityType: "USER", FirstName: "Ada", LastName: "Lovelace", CreatedAt: "c", ModifiedAt: "m"}

	cases := []struct {
		name     string
		cond     storage.PutCondition
		affected int64
		fragment string
		wantErr  error
	}{
		{"insert new", storage.PutMustNotExist, 1, "ON CONFLICT DO NOTHING", nil},
		{"insert duplicate", storage.PutMustNotExist, 0, "ON CONFLICT DO NOTHING", storage.ErrConditionFailed},
		{"update existing", storage.PutMustExist, 1, `UPDATE "users" SET`, nil},
		{"update missing", storage.PutMustExist, 0, `UPDATE "users" SET`, storage.ErrConditionFailed},
		{"upsert", storage.PutAlways, 1, "ON CONFLICT (id) DO UPDATE SET", nil},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db := &fakeDB{affected: tc.affected}
			err := newTestStore(t, db).Put(context.Background(), item, tc.cond)

			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
			require.Len(t, db.statements, 1)
			assert.Contains(t, db.statements[0], tc.fragment)
		})
	}
}

func TestQuery_FirstPage(t *testing.T) {
	db := &fakeDB{rows: [][]string{
		row("a", "2025-01-01T00:00:00Z"),
		row("b", "2025-01-02T00:00:00Z"),
		row("c", "2025-01-03T00:00:00Z"),
	}}
	store := newTestStore(t, db)

	result, err := store.Query(context.Background(), storage.Query{Index: storage.IndexByEntityType, Partition: "USER", Limit: 2})

	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	assert.Equal(t, "b", result.Items[1].ID)
	assert.Equal(t, map[string]string{"id": "b", "entityType": "USER", "createdAt": "2025-01-02T00:00:00Z"}, result.LastEvaluatedKey)

	stmt := db.statements[0]
	assert.Contains(t, stmt, `"entity_type" = 'USER'`)
	assert.Contains(t, stmt, `ORDER BY "created_at" ASC, "id" ASC`)
	assert.Contains(t, stmt, "LIMIT 3")
}

func TestQuery_ResumesAfterStartKey(t *testing.T) {
	db := &fakeDB{rows: [][]string{row("c", "2025-01-03T00:00:00Z")}}
	store := newTestStore(t, db)

	result, err := store.Query(context.Background(), storage.Query{
		Index:             storage.IndexByEntityType,
		Partition:         "USER",
		Limit:             2,
		ExclusiveStartKey: map[string]string{"id": "b", "entityType": "USER", "createdAt": "2025-01-02T00:00:00Z"},
	})

	require.NoError(t, err)
	assert.Len(t, result.Items, 1)
	assert.Nil(t, result.LastEvaluatedKey)
	assert.Contains(t, db.statements[0], `"created_at" > '2025-01-02T00:00:00Z'`)
	assert.Contains(t, db.statements[0], `"id" > 'b'`)
}

func TestQuery_Errors(t *testing.T) {
	store := newTestStore(t, &fakeDB{})

	_, err := store.Query(context.Background(), storage.Query{Index: "ByName"})
	assert.ErrorIs(t, err, storage.ErrUnknownIndex)

	_, err = store.Query(context.Background(), storage.Query{
		Index:             storage.IndexByEntityType,
		ExclusiveStartKey: map[string]string{"foo": "bar"},
	})
	assert.ErrorIs(t, err, storage.ErrInvalidStartKey)
}

func TestDelete(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, newTestStore(t, db).Delete(context.Background(), "u-1"))
	assert.Contains(t, db.statements[0], `DELETE FROM "users"`)
	assert.Contains(t, db.statements[0], `"id" = 'u-1'`)
}

func TestDatabaseErrorsPropagate(t *testing.T) {
	boom := errors.New("connection reset")
	store := newTestStore(t, &fakeDB{err: boom})

	_, err := store.GetByID(context.Background(), "u-1")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, store.Delete(context.Background(), "u-1"), boom)
	assert.ErrorIs(t, store.EnsureSchema(context.Background()), boom)
}

func TestEnsureSchema(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, newTestStore(t, db, WithTableName("people")).EnsureSchema(context.Background()))

	require.Len(t, db.statements, 2)
	assert.Contains(t, db.statements[0], `CREATE TABLE IF NOT EXISTS "people"`)
	assert.Contains(t, db.statements[1], `CREATE INDEX IF NOT EXISTS "people_by_entity_type"`)
}

func TestClose(t *testing.T) {
	db := &fakeDB{}
	require.NoError(t, newTestStore(t, db).Close())
	assert.True(t, db.closed)
}
