package auth_test

import (
	"context"
	"strings"
	"sync"
	"time"

	auth "github.com/goliatone/go-auth-gate"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockUsers implements auth.Users
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) FindByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) Insert(ctx context.Context, user *auth.User) (uuid.UUID, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockUsers) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error) {
	args := m.Called(ctx, id, fields)
	return args.Get(0).(int64), args.Error(1)
}

// MockLogger implements auth.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Debug(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Info(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Warn(format string, args ...any) {
	m.Called(format, args)
}

func (m *MockLogger) Error(format string, args ...any) {
	m.Called(format, args)
}

// memUsers is an in memory auth.Users
type memUsers struct {
	mu      sync.Mutex
	records map[string]*auth.User

	findErr   error
	updateErr error
}

func newMemUsers() *memUsers {
	return &memUsers{records: map[string]*auth.User{}}
}

func (m *memUsers) add(user *auth.User) *auth.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	m.records[user.Username] = user
	return user
}

func (m *memUsers) get(username string) *auth.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.records[username]
	if !ok {
		return nil
	}
	cp := *user
	return &cp
}

func (m *memUsers) FindByUsername(_ context.Context, username string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	user, ok := m.records[username]
	if !ok {
		return nil, auth.ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (m *memUsers) FindByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, user := range m.records {
		if strings.EqualFold(user.Email, email) {
			cp := *user
			return &cp, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (m *memUsers) Insert(_ context.Context, user *auth.User) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.records {
		if existing.Username == user.Username || existing.Email == user.Email {
			return uuid.Nil, auth.ErrUserExists
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.Roles = auth.NormalizeRoles(user.Roles)
	cp := *user
	m.records[user.Username] = &cp
	return user.ID, nil
}

func (m *memUsers) UpdateFields(_ context.Context, id uuid.UUID, fields map[string]any) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return 0, m.updateErr
	}
	for _, user := range m.records {
		if user.ID != id {
			continue
		}
		for name, value := range fields {
			switch name {
			case auth.FieldEmail:
				user.Email = value.(string)
			case auth.FieldFullName:
				v := value.(string)
				user.FullName = &v
			case auth.FieldPasswordHash:
				user.PasswordHash = value.(string)
			case auth.FieldDisabled:
				user.Disabled = value.(bool)
			case auth.FieldRoles:
				user.Roles = value.([]string)
			case auth.FieldLastLogin:
				v := value.(time.Time)
				user.LastLogin = &v
			}
		}
		return 1, nil
	}
	return 0, nil
}

func (m *memUsers) setFindErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findErr = err
}

func (m *memUsers) setUpdateErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateErr = err
}

// recordingSink keeps every activity event
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

const testSigningKey = "test-signing-key-0123456789"

func testConfig() auth.Config {
	cfg := auth.DefaultConfig()
	cfg.SigningKey = testSigningKey
	cfg.HashCost = 4
	return cfg
}

// mustHash hashes password with the cheapest bcrypt cost
func mustHash(password string) string {
	hash, err := auth.NewBcryptHasher(4).Hash(password)
	if err != nil {
		panic(err)
	}
	return hash
}

func newUser(username, password string, roles ...string) *auth.User {
	return &auth.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: mustHash(password),
		Roles:        roles,
	}
}
