package vatid

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/ledgerly/invoicing/internal/domain/shared/valueobject"
	"github.com/ledgerly/invoicing/internal/domain/vatid"
)

// MockRepository is a mock implementation of vatid.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindByID(ctx context.Context, id uuid.UUID) (*vatid.VatIdentity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vatid.VatIdentity), args.Error(1)
}

func (m *MockRepository) FindByKey(ctx context.Context, key vatid.Key) (*vatid.VatIdentity, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vatid.VatIdentity), args.Error(1)
}

func (m *MockRepository) FindOrCreate(ctx context.Context, key vatid.Key) (*vatid.VatIdentity, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vatid.VatIdentity), args.Error(1)
}

func (m *MockRepository) ClaimEnqueue(ctx context.Context, id uuid.UUID, now time.Time, throttle time.Duration) (bool, error) {
	args := m.Called(ctx, id, now, throttle)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) ReleaseEnqueue(ctx context.Context, id uuid.UUID, claimedAt time.Time, previous *time.Time) error {
	args := m.Called(ctx, id, claimedAt, previous)
	return args.Error(0)
}

func (m *MockRepository) SaveValidation(ctx context.Context, identity *vatid.VatIdentity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockRepository) FindStaleReferenced(ctx context.Context, checkedBefore time.Time, limit int) ([]vatid.VatIdentity, error) {
	args := m.Called(ctx, checkedBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]vatid.VatIdentity), args.Error(1)
}

// MockProvider is a mock implementation of vatid.ValidationProvider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Validate(ctx context.Context, country valueobject.CountryCode, identifier string) (vatid.ValidationResult, error) {
	args := m.Called(ctx, country, identifier)
	return args.Get(0).(vatid.ValidationResult), args.Error(1)
}

// MockRecomputer is a mock implementation of DraftRecomputer
type MockRecomputer struct {
	mock.Mock
}

func (m *MockRecomputer) RecomputeForIdentity(ctx context.Context, identityID uuid.UUID) (int, error) {
	args := m.Called(ctx, identityID)
	return args.Int(0), args.Error(1)
}

// recordingQueue captures enqueued jobs
type recordingQueue struct {
	mu   sync.Mutex
	jobs []ValidationJob
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, job ValidationJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// memoryInflight is a minimal in-memory shared.Claims
type memoryInflight struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newMemoryInflight() *memoryInflight {
	return &memoryInflight{keys: make(map[string]bool)}
}

func (s *memoryInflight) Claim(_ context.Context, key string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.keys[key] {
		return false, nil
	}
	s.keys[key] = true
	return true, nil
}

func (s *memoryInflight) Held(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.keys[key], nil
}

func (s *memoryInflight) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, key)
	return nil
}

func (s *memoryInflight) Close() error { return nil }

// linkable is a bare Linkable used to exercise Resolve
type linkable struct {
	country, identifier string
	ref                 *uuid.UUID
}

func (l *linkable) VatKeyParts() (string, string)  { return l.country, l.identifier }
func (l *linkable) VatIdentityRef() *uuid.UUID     { return l.ref }
func (l *linkable) LinkVatIdentity(id *uuid.UUID)  { l.ref = id }
