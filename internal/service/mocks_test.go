package service

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"user_backend/internal/model"
	"user_backend/internal/utils"
)

// mockUserRepository is a mock for repository.UserRepository.
type mockUserRepository struct {
	mock.Mock
}

func (m *mockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	if args.Error(0) == nil && user.ID == 0 {
		user.ID = 1
	}
	return args.Error(0)
}

func (m *mockUserRepository) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepository) FindByPhone(ctx context.Context, phone model.PhoneNumber) (*model.User, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepository) List(ctx context.Context, params model.ListParams) ([]model.User, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *mockUserRepository) Update(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error) {
	args := m.Called(ctx, id, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *mockUserRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockUserRepository) DeleteUnverifiedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// mockRoleRepository is a mock for repository.RoleRepository.
type mockRoleRepository struct {
	mock.Mock
}

func (m *mockRoleRepository) EnsureRoles(ctx context.Context, names []string) error {
	args := m.Called(ctx, names)
	return args.Error(0)
}

func (m *mockRoleRepository) List(ctx context.Context) ([]model.Role, error) {
	args := m.Called(ctx)
	return args.Get(0).([]model.Role), args.Error(1)
}

// passthroughTx runs fn without a transaction.
type passthroughTx struct {
	calls  int
	active bool
}

func (p *passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	p.active = true
	defer func() { p.active = false }()
	return fn(ctx)
}

// txTrackingHasher records how many hashes ran while a transaction was open.
type txTrackingHasher struct {
	PasswordHasher
	tx       *passthroughTx
	hashes   int
	inTxHash int
}

func (h *txTrackingHasher) Hash(ctx context.Context, password string) (string, error) {
	h.hashes++
	if h.tx.active {
		h.inTxHash++
	}
	return h.PasswordHasher.Hash(ctx, password)
}

type memoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	err     error
}

func newMemoryRevoker() *memoryRevoker {
	return &memoryRevoker{revoked: make(map[string]time.Time)}
}

func (r *memoryRevoker) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.revoked[jti] = expiresAt
	return nil
}

func (r *memoryRevoker) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	_, ok := r.revoked[jti]
	return ok, nil
}

type recordingPublisher struct {
	mu    sync.Mutex
	tasks []string
	err   error
}

func (p *recordingPublisher) Enqueue(_ context.Context, name string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, name)
	return p.err
}

type recordingRecorder struct {
	events []string
}

func (r *recordingRecorder) AuthEvent(event string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "fail"
	}
	r.events = append(r.events, event+":"+outcome)
}

type memoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (s *memoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if s.putErr != nil {
		return s.putErr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = b
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	testKeyOnce.Do(func() {
		var err error
		testKey, err = rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
	})
	jwtUtil, err := utils.NewJWTUtil(testKey, &testKey.PublicKey, "RS256", 15*time.Minute)
	require.NoError(t, err)
	return NewTokenService(jwtUtil, 15*time.Minute, 720*time.Hour)
}

func newTestHasher() *utils.PasswordHasher {
	return utils.NewPasswordHasher(4, 2)
}
