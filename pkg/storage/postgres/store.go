// Package postgres implements storage.Repository on PostgreSQL.
//
// Statements are built with goqu in the postgres dialect and executed through a DBAdapter,
// so the same store runs on a pgx pool, a sqlx handle or a plain database/sql handle.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // database/sql driver "postgres"

	"github.com/hayden74/cogira-frontend/pkg/storage"
	"github.com/hayden74/cogira-frontend/pkg/storage/postgres/internal/adapters"
)

const (
	defaultTableName = "users"
	dialectPostgres  = "postgres"
	driverPostgres   = "postgres"

	colID         = "id"
	colEntityType = "entity_type"
	colFirstName  = "first_name"
	colLastName   = "last_name"
	colCreatedAt  = "created_at"
	colModifiedAt = "modified_at"

	logMsgSQLExecuted   = "executed sql"
	logMsgDBQueryFailed = "database query failed"
	logMsgDBExecFailed  = "database exec failed"
	logMsgCloseRows     = "failed to close database rows"
	logAttrQuery        = "query"
	logAttrError        = "error"
	logAttrDurationMS   = "duration_ms"
)

// Drivers accepted by Open.
const (
	DriverPGX  = "pgx"
	DriverSQLX = "sqlx"
	DriverSQL  = "sql"
)

var (
	// ErrNilDatabaseConnection is returned by the constructors for a nil handle.
	ErrNilDatabaseConnection = errors.New("postgres: database connection must not be nil")
	// ErrInvalidTableName is returned by WithTableName for a name that is not a plain identifier.
	ErrInvalidTableName = errors.New("postgres: invalid table name")
	// ErrUnknownDriver is returned by Open for an unsupported driver name.
	ErrUnknownDriver = errors.New("postgres: unknown driver")

	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	selectColumns     = []any{colID, colEntityType, colFirstName, colLastName, colCreatedAt, colModifiedAt}
)

// Store is a storage.Repository backed by a Postgres table. It owns the underlying
// connection and closes it in Close.
type Store struct {
	db        adapters.DBAdapter
	tableName string
	logger    *slog.Logger
}

var _ storage.Repository = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithTableName sets the table holding user rows.
func WithTableName(tableName string) Option {
	return func(s *Store) error {
		if !identifierPattern.MatchString(tableName) {
			return fmt.Errorf("%w: %q", ErrInvalidTableName, tableName)
		}
		s.tableName = tableName
		return nil
	}
}

// WithLogger enables SQL debug logging and error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// NewStoreFromPGXPool creates a Store on a pgx connection pool.
func NewStoreFromPGXPool(pool *pgxpool.Pool, options ...Option) (*Store, error) {
	if pool == nil {
		return nil, ErrNilDatabaseConnection
	}
	return newStore(adapters.NewPGXAdapter(pool), options...)
}

// NewStoreFromSQLDB creates a Store on a database/sql handle.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}
	return newStore(adapters.NewSQLAdapter(db), options...)
}

// NewStoreFromSQLX creates a Store on a sqlx handle.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrNilDatabaseConnection
	}
	return newStore(adapters.NewSQLXAdapter(db), options...)
}

// Open connects to dsn with the named driver and returns a Store.
func Open(ctx context.Context, driver, dsn string, options ...Option) (*Store, error) {
	switch driver {
	case DriverPGX:
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres: open pgx pool: %w", err)
		}
		store, err := NewStoreFromPGXPool(pool, options...)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return store, nil
	case DriverSQLX:
		db, err := sqlx.Open(driverPostgres, dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres: open sqlx: %w", err)
		}
		store, err := NewStoreFromSQLX(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return store, nil
	case DriverSQL:
		db, err := sql.Open(driverPostgres, dsn)
		if err != nil {
			return nil, fmt.Errorf("postgres: open database/sql: %w", err)
		}
		store, err := NewStoreFromSQLDB(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

func newStore(db adapters.DBAdapter, options ...Option) (*Store, error) {
	s := &Store{db: db, tableName: defaultTableName}
	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// TableName returns the configured table.
func (s *Store) TableName() string {
	return s.tableName
}

// EnsureSchema creates the table and its entity type index when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (
	%s TEXT PRIMARY KEY,
	%s TEXT NOT NULL,
	%s TEXT NOT NULL,
	%s TEXT NOT NULL,
	%s TEXT NOT NULL,
	%s TEXT NOT NULL
)`, s.tableName, colID, colEntityType, colFirstName, colLastName, colCreatedAt, colModifiedAt),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %q ON %q (%s, %s, %s)`,
			s.tableName+"_by_entity_type", s.tableName, colEntityType, colCreatedAt, colID),
	}
	for _, stmt := range statements {
		if _, err := s.exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}
	return nil
}

// GetByID returns nil, nil when no row has the id.
func (s *Store) GetByID(ctx context.Context, id string) (*storage.UserItem, error) {
	query, _, err := goqu.Dialect(dialectPostgres).
		From(s.tableName).
		Select(selectColumns...).
		Where(goqu.C(colID).Eq(id)).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("postgres: build get query: %w", err)
	}

	items, err := s.queryItems(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// Put writes item. PutMustNotExist inserts with ON CONFLICT DO NOTHING, PutMustExist
// updates by id; either reports storage.ErrConditionFailed when no row was written.
func (s *Store) Put(ctx context.Context, item storage.UserItem, cond storage.PutCondition) error {
	builder := goqu.Dialect(dialectPostgres)
	record := goqu.Record{
		colID:         item.ID,
		colEntityType: item.EntityType,
		colFirstName:  item.FirstName,
		colLastName:   item.LastName,
		colCreatedAt:  item.CreatedAt,
		colModifiedAt: item.ModifiedAt,
	}

	var (
		query string
		err   error
	)
	switch cond {
	case storage.PutMustNotExist:
		query, _, err = builder.Insert(s.tableName).Rows(record).OnConflict(goqu.DoNothing()).ToSQL()
	case storage.PutMustExist:
		delete(record, colID)
		query, _, err = builder.Update(s.tableName).Set(record).Where(goqu.C(colID).Eq(item.ID)).ToSQL()
	default:
		query, _, err = builder.Insert(s.tableName).Rows(record).OnConflict(goqu.DoUpdate(colID, goqu.Record{
			colEntityType: goqu.L("EXCLUDED." + colEntityType),
			colFirstName:  goqu.L("EXCLUDED." + colFirstName),
			colLastName:   goqu.L("EXCLUDED." + colLastName),
			colCreatedAt:  goqu.L("EXCLUDED." + colCreatedAt),
			colModifiedAt: goqu.L("EXCLUDED." + colModifiedAt),
		})).ToSQL()
	}
	if err != nil {
		return fmt.Errorf("postgres: build put statement: %w", err)
	}

	affected, err := s.exec(ctx, query)
	if err != nil {
		return err
	}
	if affected == 0 && cond != storage.PutAlways {
		return storage.ErrConditionFailed
	}
	return nil
}

// Query returns one page of the entity type partition ordered by (created_at, id).
func (s *Store) Query(ctx context.Context, q storage.Query) (storage.QueryResult, error) {
	if q.Index != storage.IndexByEntityType {
		return storage.QueryResult{}, fmt.Errorf("%w: %q", storage.ErrUnknownIndex, q.Index)
	}

	stmt := goqu.Dialect(dialectPostgres).
		From(s.tableName).
		Select(selectColumns...).
		Where(goqu.C(colEntityType).Eq(q.Partition)).
		Order(goqu.C(colCreatedAt).Asc(), goqu.C(colID).Asc())

	if q.ExclusiveStartKey != nil {
		createdAt, id, err := storage.StartPosition(q.ExclusiveStartKey)
		if err != nil {
			return storage.QueryResult{}, err
		}
		stmt = stmt.Where(goqu.Or(
			goqu.C(colCreatedAt).Gt(createdAt),
			goqu.And(goqu.C(colCreatedAt).Eq(createdAt), goqu.C(colID).Gt(id)),
		))
	}
	if q.Limit > 0 {
		// One extra row tells whether another page exists.
		stmt = stmt.Limit(uint(q.Limit + 1))
	}

	query, _, err := stmt.ToSQL()
	if err != nil {
		return storage.QueryResult{}, fmt.Errorf("postgres: build list query: %w", err)
	}

	items, err := s.queryItems(ctx, query)
	if err != nil {
		return storage.QueryResult{}, err
	}
	if q.Limit <= 0 || len(items) <= q.Limit {
		return storage.QueryResult{Items: items}, nil
	}

	page := items[:q.Limit]
	return storage.QueryResult{
		Items:            page,
		LastEvaluatedKey: page[len(page)-1].ResumeKey(),
	}, nil
}

// Delete removes the row with id. Deleting an absent id is not an error.
func (s *Store) Delete(ctx context.Context, id string) error {
	query, _, err := goqu.Dialect(dialectPostgres).
		Delete(s.tableName).
		Where(goqu.C(colID).Eq(id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("postgres: build delete statement: %w", err)
	}
	_, err = s.exec(ctx, query)
	return err
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) queryItems(ctx context.Context, query string) ([]storage.UserItem, error) {
	start := time.Now()
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		if s.logger != nil {
			s.logger.Error(logMsgDBQueryFailed, logAttrError, err.Error(), logAttrQuery, query)
		}
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && s.logger != nil {
			s.logger.Warn(logMsgCloseRows, logAttrError, closeErr.Error())
		}
	}()

	var items []storage.UserItem
	for rows.Next() {
		var item storage.UserItem
		if err := rows.Scan(&item.ID, &item.EntityType, &item.FirstName, &item.LastName, &item.CreatedAt, &item.ModifiedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate rows: %w", err)
	}

	s.logSQL(query, start)
	return items, nil
}

func (s *Store) exec(ctx context.Context, query string) (int64, error) {
	start := time.Now()
	result, err := s.db.Exec(ctx, query)
	if err != nil {
		if s.logger != nil {
			s.logger.Error(logMsgDBExecFailed, logAttrError, err.Error(), logAttrQuery, query)
		}
		return 0, fmt.Errorf("postgres: exec: %w", err)
	}
	s.logSQL(query, start)

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres: rows affected: %w", err)
	}
	return affected, nil
}

func (s *Store) logSQL(query string, start time.Time) {
	if s.logger == nil {
		return
	}
	s.logger.Debug(logMsgSQLExecuted,
		logAttrQuery, query,
		logAttrDurationMS, float64(time.Since(start).Microseconds())/1000.0,
	)
}
