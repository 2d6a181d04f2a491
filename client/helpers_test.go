package client_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-folio-auth/client"
	"github.com/goliatone/go-folio-auth/token"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("client-test-secret-with-32-bytes!")

type tokenOpts struct {
	subject  string
	name     string
	email    string
	roles    []string
	tokenID  string
	issuedAt time.Time
	ttl      time.Duration
}

func issueToken(t *testing.T, opts tokenOpts) string {
	t.Helper()
	if opts.ttl == 0 {
		opts.ttl = time.Hour
	}
	if opts.tokenID == "" {
		opts.tokenID = "jti-" + opts.subject
	}
	raw, err := token.Encode(token.ClaimSet{
		Subject:  opts.subject,
		Name:     opts.name,
		Email:    opts.email,
		Roles:    opts.roles,
		TokenID:  opts.tokenID,
		IssuedAt: opts.issuedAt,
	}, testSecret, opts.ttl)
	require.NoError(t, err)
	return raw
}

func aliceToken(t *testing.T) string {
	return issueToken(t, tokenOpts{subject: "u-alice", name: "alice", email: "alice@example.com", roles: []string{"User"}})
}

func bobToken(t *testing.T) string {
	return issueToken(t, tokenOpts{subject: "u-bob", name: "bob", roles: []string{"Admin", "User"}})
}

var errBackend = errors.New("backend down")

// flakyStorage wraps MemoryStorage and fails while down is set. When hold
// is set the first token read waits until hold is closed.
type flakyStorage struct {
	*client.MemoryStorage
	down atomic.Bool
	gets atomic.Int32
	hold chan struct{}
	held atomic.Bool
}

func newFlakyStorage() *flakyStorage {
	return &flakyStorage{MemoryStorage: client.NewMemoryStorage()}
}

func newHeldStorage() *flakyStorage {
	f := newFlakyStorage()
	f.hold = make(chan struct{})
	return f
}

func (f *flakyStorage) Get(ctx context.Context, key string) (string, bool, error) {
	f.gets.Add(1)
	if f.hold != nil && key == client.DefaultTokenKey && f.held.CompareAndSwap(false, true) {
		<-f.hold
	}
	if f.down.Load() {
		return "", false, errBackend
	}
	return f.MemoryStorage.Get(ctx, key)
}

func (f *flakyStorage) Set(ctx context.Context, key, value string) error {
	if f.down.Load() {
		return errBackend
	}
	return f.MemoryStorage.Set(ctx, key, value)
}

func (f *flakyStorage) Delete(ctx context.Context, keys ...string) error {
	if f.down.Load() {
		return errBackend
	}
	return f.MemoryStorage.Delete(ctx, keys...)
}

type headerRecorder struct {
	mu     sync.Mutex
	values []string
}

func (h *headerRecorder) SetAuthorization(raw string) {
	h.mu.Lock()
	h.values = append(h.values, raw)
	h.mu.Unlock()
}

func (h *headerRecorder) last() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.values) == 0 {
		return "", false
	}
	return h.values[len(h.values)-1], true
}

type changeRecorder struct {
	mu      sync.Mutex
	changes []client.Change
}

func (r *changeRecorder) record(c client.Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	r.mu.Unlock()
}

func (r *changeRecorder) all() []client.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]client.Change(nil), r.changes...)
}

// gatedHeaders blocks the first non-empty SetAuthorization until release is
// closed, signalling entered when it starts waiting.
type gatedHeaders struct {
	headerRecorder
	entered chan struct{}
	release chan struct{}
	gated   atomic.Bool
}

func newGatedHeaders() *gatedHeaders {
	return &gatedHeaders{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedHeaders) SetAuthorization(raw string) {
	if raw != "" && g.gated.CompareAndSwap(false, true) {
		close(g.entered)
		<-g.release
	}
	g.headerRecorder.SetAuthorization(raw)
}

type logRecorder struct {
	mu    sync.Mutex
	lines []string
}

func (l *logRecorder) add(level, format string, args ...any) {
	l.mu.Lock()
	l.lines = append(l.lines, level+" "+fmt.Sprintf(format, args...))
	l.mu.Unlock()
}

func (l *logRecorder) Debug(format string, args ...any) { l.add("DBG", format, args...) }
func (l *logRecorder) Info(format string, args ...any)  { l.add("INF", format, args...) }
func (l *logRecorder) Warn(format string, args ...any)  { l.add("WRN", format, args...) }
func (l *logRecorder) Error(format string, args ...any) { l.add("ERR", format, args...) }

func (l *logRecorder) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.lines...)
}
