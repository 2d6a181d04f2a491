package auth_test

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	auth "github.com/goliatone/go-folio-auth"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const testSigningKey = "test-signing-key-with-at-least-32-bytes"

// MockUsers implements auth.Users
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetByIdentifier(ctx context.Context, identifier string) (*auth.User, error) {
	args := m.Called(ctx, identifier)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUsers) List(ctx context.Context) ([]*auth.User, error) {
	args := m.Called(ctx)
	users, _ := args.Get(0).([]*auth.User)
	return users, args.Error(1)
}

func (m *MockUsers) Exists(ctx context.Context, username, email string) (bool, bool, error) {
	args := m.Called(ctx, username, email)
	return args.Bool(0), args.Bool(1), args.Error(2)
}

func (m *MockUsers) CreateWithRole(ctx context.Context, user *auth.User, role string) (*auth.User, error) {
	args := m.Called(ctx, user, role)
	created, _ := args.Get(0).(*auth.User)
	return created, args.Error(1)
}

func (m *MockUsers) TrackSuccessfulLogin(ctx context.Context, user *auth.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// MockLogger records formatted lines per level
type MockLogger struct {
	mu    sync.Mutex
	lines map[string][]string
}

func NewMockLogger() *MockLogger {
	return &MockLogger{lines: map[string][]string{}}
}

func (l *MockLogger) record(level, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines[level] = append(l.lines[level], fmt.Sprintf(format, args...))
}

func (l *MockLogger) Debug(format string, args ...any) { l.record("debug", format, args...) }
func (l *MockLogger) Info(format string, args ...any)  { l.record("info", format, args...) }
func (l *MockLogger) Warn(format string, args ...any)  { l.record("warn", format, args...) }
func (l *MockLogger) Error(format string, args ...any) { l.record("error", format, args...) }

func (l *MockLogger) Lines(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines[level]...)
}

// recordingSink collects activity events
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
	err    error
}

func (s *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) Types() []auth.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]auth.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

func testOptions() auth.Options {
	opts := auth.DefaultOptions()
	opts.SigningKey = testSigningKey
	return opts
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, auth.CreateSchema(context.Background(), db))
	return db
}

type testEnv struct {
	db       *bun.DB
	users    auth.Users
	provider *auth.UserProvider
	auther   *auth.Auther
	opts     auth.Options
	logger   *MockLogger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	opts := testOptions()
	logger := NewMockLogger()

	users := auth.NewUsersRepository(db)
	provider := auth.NewUserProvider(users).WithLogger(logger)
	auther := auth.NewAuthenticator(provider, opts).WithLogger(logger)

	return &testEnv{
		db:       db,
		users:    users,
		provider: provider,
		auther:   auther,
		opts:     opts,
		logger:   logger,
	}
}

func (e *testEnv) register(t *testing.T, username, email, password string) auth.LoginResult {
	t.Helper()
	res, err := e.auther.Register(context.Background(), auth.RegisterRequest{
		Username:        username,
		Email:           email,
		Password:        password,
		ConfirmPassword: password,
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	return res
}

// grantRole links an existing user to role directly in the database.
func (e *testEnv) grantRole(t *testing.T, userID, role string) {
	t.Helper()
	ctx := context.Background()

	record := &auth.Role{}
	require.NoError(t, e.db.NewSelect().Model(record).Where("name = ?", role).Scan(ctx))

	user, err := e.users.GetByIdentifier(ctx, userID)
	require.NoError(t, err)

	_, err = e.db.NewInsert().Model(&auth.UserRole{UserID: user.ID, RoleID: record.ID}).Exec(ctx)
	require.NoError(t, err)
}

type testIdentity struct {
	id       string
	username string
	email    string
	roles    []string
}

func (t testIdentity) ID() string       { return t.id }
func (t testIdentity) Username() string { return t.username }
func (t testIdentity) Email() string    { return t.email }
func (t testIdentity) Role() string     { return auth.PrimaryRole(t.roles) }
func (t testIdentity) Roles() []string  { return t.roles }

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}
