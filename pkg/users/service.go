package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hayden74/cogira-frontend/pkg/domain"
	"github.com/hayden74/cogira-frontend/pkg/pagination"
	"github.com/hayden74/cogira-frontend/pkg/storage"
)

// Page size bounds applied by List.
const (
	DefaultPageSize = 25
	MaxPageSize     = 100
)

// timestampLayout is ISO-8601 UTC with millisecond precision. The fixed width keeps
// lexical order equal to chronological order in the store index.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ListOptions selects a page of users. A zero Limit selects the default page size.
type ListOptions struct {
	Limit     int
	NextToken string
}

// ListResult is one page of users. An empty NextToken means the listing is exhausted.
type ListResult struct {
	Users     []domain.User
	NextToken string
}

// Service implements the user operations over a storage.Repository.
type Service struct {
	repo            storage.Repository
	now             func() time.Time
	newID           func() string
	defaultPageSize int
	maxPageSize     int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithPageSizes overrides the default and maximum page sizes. Non-positive values are ignored.
func WithPageSizes(defaultSize, maxSize int) ServiceOption {
	return func(s *Service) {
		if defaultSize > 0 {
			s.defaultPageSize = defaultSize
		}
		if maxSize > 0 {
			s.maxPageSize = maxSize
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithIDGenerator overrides the id source.
func WithIDGenerator(newID func() string) ServiceOption {
	return func(s *Service) {
		s.newID = newID
	}
}

// NewService creates a Service on repo.
func NewService(repo storage.Repository, opts ...ServiceOption) *Service {
	s := &Service{
		repo:            repo,
		now:             time.Now,
		newID:           uuid.NewString,
		defaultPageSize: DefaultPageSize,
		maxPageSize:     MaxPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.defaultPageSize > s.maxPageSize {
		s.defaultPageSize = s.maxPageSize
	}
	return s
}

// Create stores a new user with a fresh id. A taken id yields a 409 AppError.
func (s *Service) Create(ctx context.Context, input domain.NewUser) (domain.User, error) {
	now := s.timestamp()
	user := domain.User{
		ID:         s.newID(),
		FirstName:  input.FirstName,
		LastName:   input.LastName,
		CreatedAt:  now,
		ModifiedAt: now,
	}

	if err := s.repo.Put(ctx, toItem(user), storage.PutMustNotExist); err != nil {
		if errors.Is(err, storage.ErrConditionFailed) {
			return domain.User{}, domain.Conflict("User already exists", map[string]string{"id": user.ID}).WithCause(err)
		}
		return domain.User{}, fmt.Errorf("users: create: %w", err)
	}
	return user, nil
}

// Get returns nil, nil when the user does not exist.
func (s *Service) Get(ctx context.Context, id string) (*domain.User, error) {
	item, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("users: get: %w", err)
	}
	if item == nil {
		return nil, nil
	}
	user := fromItem(*item)
	return &user, nil
}

// List returns one page of users ordered by creation time. An unreadable NextToken
// yields an error wrapping pagination.ErrInvalidToken.
func (s *Service) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	startKey, err := pagination.Decode(opts.NextToken)
	if err != nil {
		return ListResult{}, err
	}

	result, err := s.repo.Query(ctx, storage.Query{
		Index:             storage.IndexByEntityType,
		Partition:         domain.UserEntityType,
		Limit:             s.pageSize(opts.Limit),
		ExclusiveStartKey: startKey,
	})
	if err != nil {
		if errors.Is(err, storage.ErrInvalidStartKey) {
			return ListResult{}, fmt.Errorf("%w: %v", pagination.ErrInvalidToken, err)
		}
		return ListResult{}, fmt.Errorf("users: list: %w", err)
	}

	users := make([]domain.User, 0, len(result.Items))
	for _, item := range result.Items {
		users = append(users, fromItem(item))
	}
	return ListResult{
		Users:     users,
		NextToken: pagination.Encode(result.LastEvaluatedKey),
	}, nil
}

// Update applies patch to an existing user. It returns nil, nil when the user does
// not exist, including when it disappears between the read and the write.
func (s *Service) Update(ctx context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	updated := *existing
	patch.Apply(&updated)
	updated.ModifiedAt = s.timestamp()

	if err := s.repo.Put(ctx, toItem(updated), storage.PutMustExist); err != nil {
		if errors.Is(err, storage.ErrConditionFailed) {
			return nil, nil
		}
		return nil, fmt.Errorf("users: update: %w", err)
	}
	return &updated, nil
}

// Delete removes the user. Deleting an unknown id succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("users: delete: %w", err)
	}
	return nil
}

func (s *Service) pageSize(requested int) int {
	switch {
	case requested <= 0:
		return s.defaultPageSize
	case requested > s.maxPageSize:
		return s.maxPageSize
	default:
		return requested
	}
}

func (s *Service) timestamp() string {
	return s.now().UTC().Format(timestampLayout)
}

func toItem(u domain.User) storage.UserItem {
	return storage.UserItem{
		ID:         u.ID,
		EntityType: domain.UserEntityType,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		CreatedAt:  u.CreatedAt,
		ModifiedAt: u.ModifiedAt,
	}
}

func fromItem(item storage.UserItem) domain.User {
	return domain.User{
		ID:         item.ID,
		FirstName:  item.FirstName,
		LastName:   item.LastName,
		CreatedAt:  item.CreatedAt,
		ModifiedAt: item.ModifiedAt,
	}
}
