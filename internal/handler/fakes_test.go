package handler

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/samber/oops"

	"user_backend/internal/apperror"
	"user_backend/internal/model"
	"user_backend/internal/repository"
)

// memUsers is an in-memory repository.UserRepository with the same error
// semantics as the Postgres one.
type memUsers struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]model.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: make(map[int64]model.User)}
}

func notFound() error {
	return oops.Code(apperror.CodeNotFound).Public("User not found").Wrap(repository.ErrNotFound)
}

func duplicate() error {
	return oops.Code(apperror.CodeAlreadyExists).Public("Phone number already exists").Wrap(repository.ErrDuplicate)
}

func (m *memUsers) phoneTaken(phone model.PhoneNumber, except int64) bool {
	for id, u := range m.users {
		if id != except && u.PhoneNumber == phone {
			return true
		}
	}
	return false
}

func (m *memUsers) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phoneTaken(user.PhoneNumber, 0) {
		return duplicate()
	}
	m.nextID++
	user.ID = m.nextID
	m.users[user.ID] = *user
	return nil
}

func (m *memUsers) FindByID(_ context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, notFound()
	}
	return &u, nil
}

func (m *memUsers) FindByPhone(_ context.Context, phone model.PhoneNumber) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.PhoneNumber == phone {
			return &u, nil
		}
	}
	return nil, notFound()
}

func (m *memUsers) List(_ context.Context, params model.ListParams) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]model.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	if params.Offset >= len(users) {
		return []model.User{}, nil
	}
	users = users[params.Offset:]
	if len(users) > params.Limit {
		users = users[:params.Limit]
	}
	return users, nil
}

func (m *memUsers) Update(_ context.Context, id int64, patch model.UserPatch) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, notFound()
	}
	if patch.PhoneNumber != nil {
		if m.phoneTaken(*patch.PhoneNumber, id) {
			return nil, duplicate()
		}
		u.PhoneNumber = *patch.PhoneNumber
	}
	if patch.FullName != nil {
		u.FullName = *patch.FullName
	}
	if patch.IsActive != nil {
		u.IsActive = *patch.IsActive
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.AvatarKey != nil {
		u.AvatarKey = patch.AvatarKey
	}
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return &u, nil
}

func (m *memUsers) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return notFound()
	}
	delete(m.users, id)
	return nil
}

func (m *memUsers) DeleteUnverifiedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, u := range m.users {
		if !u.IsActive && u.CreatedAt.Before(cutoff) {
			delete(m.users, id)
			n++
		}
	}
	return n, nil
}

type memRoles struct{}

func (memRoles) EnsureRoles(context.Context, []string) error { return nil }

func (memRoles) List(context.Context) ([]model.Role, error) {
	return []model.Role{{Name: model.RoleAdmin}, {Name: model.RoleUser}}, nil
}

type noTx struct{}

func (noTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (s *memStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	b, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = b
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memStore) keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.objects))
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}
