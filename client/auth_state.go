package client

import (
	"context"
	"sync"
	"time"

	"github.com/goliatone/go-folio-auth/token"
	"golang.org/x/sync/singleflight"
)

// AuthorizationSetter receives the bearer token for outbound requests. An
// empty token clears it.
type AuthorizationSetter interface {
	SetAuthorization(token string)
}

// Change is delivered to subscribers on every identity transition.
// Generation increases with each transition.
type Change struct {
	Previous   Identity
	Current    Identity
	Generation uint64
}

// LoggedOut reports a transition from authenticated to anonymous.
func (c Change) LoggedOut() bool {
	return c.Previous.Authenticated && !c.Current.Authenticated
}

type Listener func(Change)

// Subscription is returned by Subscribe. Unsubscribe is safe to call more
// than once.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	once   sync.Once
	cancel func()
}

func (s *subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// AuthState publishes the current identity. The identity is read lazily
// from the token store on first use and replaced on login, logout and
// refresh.
type AuthState struct {
	store   *TokenStore
	headers AuthorizationSetter
	logger  Logger
	now     func() time.Time

	group singleflight.Group

	// writeMu orders store writes, commits and header updates.
	writeMu sync.Mutex

	mu          sync.RWMutex
	identity    Identity
	initialized bool
	generation  uint64
	listeners   []listenerEntry
	nextID      uint64
	pending     []delivery
	draining    bool
}

type delivery struct {
	change    Change
	listeners []listenerEntry
}

type AuthStateOption func(*AuthState)

func WithAuthorizationSetter(setter AuthorizationSetter) AuthStateOption {
	return func(s *AuthState) {
		s.headers = setter
	}
}

func WithStateLogger(logger Logger) AuthStateOption {
	return func(s *AuthState) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithStateClock(now func() time.Time) AuthStateOption {
	return func(s *AuthState) {
		if now != nil {
			s.now = now
		}
	}
}

func NewAuthState(store *TokenStore, opts ...AuthStateOption) *AuthState {
	if store == nil {
		store = NewTokenStore(nil)
	}
	s := &AuthState{
		store:  store,
		logger: nopLogger{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CurrentIdentity returns the identity, loading it from the store on the
// first call. Concurrent first calls share a single load. When storage is
// unavailable the anonymous identity is returned and the load is retried on
// the next call.
func (s *AuthState) CurrentIdentity(ctx context.Context) Identity {
	s.mu.RLock()
	if s.initialized {
		id := s.identity.clone()
		s.mu.RUnlock()
		return id
	}
	s.mu.RUnlock()

	v, _, _ := s.group.Do("init", func() (any, error) {
		return s.initialize(ctx), nil
	})
	return v.(Identity).clone()
}

func (s *AuthState) initialize(ctx context.Context) Identity {
	s.mu.RLock()
	if s.initialized {
		id := s.identity
		s.mu.RUnlock()
		return id
	}
	gen := s.generation
	s.mu.RUnlock()

	res := s.read(ctx)

	s.writeMu.Lock()
	s.mu.RLock()
	if s.generation != gen || s.initialized {
		// a transition won the race
		current := s.identity
		s.mu.RUnlock()
		s.writeMu.Unlock()
		return current
	}
	s.mu.RUnlock()

	if res.err != nil {
		s.writeMu.Unlock()
		return Identity{}
	}
	s.apply(ctx, res)

	s.mu.Lock()
	prev := s.identity
	s.identity = res.identity
	s.initialized = true
	if res.identity.Equal(prev) {
		s.mu.Unlock()
		s.writeMu.Unlock()
		return res.identity
	}
	s.commitLocked(prev, res.identity)
	s.mu.Unlock()

	s.setAuthorization(res.raw)
	s.writeMu.Unlock()

	s.drain()
	return res.identity
}

// loadResult is what a store read found. Side effects on the store are
// applied separately, once the read is known not to be stale.
type loadResult struct {
	identity Identity
	raw      string
	err      error
	// discard marks a stored token that could not be decoded.
	discard bool
	// decoded is set when the identity came from the token, not the snapshot.
	decoded bool
}

// read looks up the stored token. The snapshot is used when it matches the
// token; otherwise the token is decoded.
func (s *AuthState) read(ctx context.Context) loadResult {
	raw, ok, err := s.store.Get(ctx)
	if err != nil {
		s.logger.Warn("auth state: token storage unavailable: %v", err)
		return loadResult{err: err}
	}
	if !ok {
		return loadResult{}
	}

	if id, ok, err := s.store.Snapshot(ctx, raw); err != nil {
		s.logger.Warn("auth state: identity snapshot unavailable: %v", err)
	} else if ok && !id.Expired(s.now()) {
		return loadResult{identity: id, raw: raw}
	}

	id, err := s.decode(raw)
	if err != nil {
		s.logger.Warn("auth state: discarding stored token [%s]", token.KindOf(err))
		return loadResult{discard: true}
	}
	return loadResult{identity: id, raw: raw, decoded: true}
}

// apply removes an unusable token or caches the decoded identity. The
// caller holds writeMu.
func (s *AuthState) apply(ctx context.Context, res loadResult) {
	switch {
	case res.discard:
		if err := s.store.Remove(ctx); err != nil {
			s.logger.Warn("auth state: remove stored token: %v", err)
		}
	case res.decoded:
		if err := s.store.SaveSnapshot(ctx, res.raw, res.identity); err != nil {
			s.logger.Warn("auth state: save identity snapshot: %v", err)
		}
	}
}

func (s *AuthState) decode(raw string) (Identity, error) {
	claims, err := token.Decode(raw)
	if err != nil {
		return Identity{}, err
	}
	if claims.Expired(s.now()) {
		return Identity{}, token.WithCause(token.ErrTokenExpired, nil, map[string]any{
			"expired_at": claims.ExpiresAt,
		})
	}
	return IdentityFromClaims(claims)
}

// MarkAuthenticated adopts raw as the session token. The token is decoded
// before anything changes; a token that cannot be decoded leaves the state
// untouched. Storage failures are returned after the in-memory transition
// so the session keeps working for the life of the process.
func (s *AuthState) MarkAuthenticated(ctx context.Context, raw string) error {
	id, err := s.decode(raw)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	storeErr := s.store.Set(ctx, raw)
	if storeErr == nil {
		if err := s.store.SaveSnapshot(ctx, raw, id); err != nil {
			s.logger.Warn("auth state: save identity snapshot: %v", err)
		}
	} else {
		s.logger.Warn("auth state: persist token: %v", storeErr)
	}
	s.transitionLocked(id, raw)
	s.writeMu.Unlock()

	s.drain()
	return storeErr
}

// MarkLoggedOut removes the stored token and resets to anonymous. The
// transition happens even when storage fails; the storage error is returned.
func (s *AuthState) MarkLoggedOut(ctx context.Context) error {
	s.writeMu.Lock()
	storeErr := s.store.Remove(ctx)
	if storeErr != nil {
		s.logger.Warn("auth state: remove stored token: %v", storeErr)
	}
	s.transitionLocked(Identity{}, "")
	s.writeMu.Unlock()

	s.drain()
	return storeErr
}

// Refresh re-reads the store and always notifies subscribers.
func (s *AuthState) Refresh(ctx context.Context) Identity {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	res := s.read(ctx)

	s.writeMu.Lock()
	s.mu.Lock()
	if s.generation != gen {
		current := s.identity.clone()
		s.mu.Unlock()
		s.writeMu.Unlock()
		return current
	}
	s.mu.Unlock()

	s.apply(ctx, res)

	s.mu.Lock()
	prev := s.identity
	s.identity = res.identity
	s.initialized = res.err == nil
	s.commitLocked(prev, res.identity)
	s.mu.Unlock()

	s.setAuthorization(res.raw)
	s.writeMu.Unlock()

	s.drain()
	return res.identity.clone()
}

// Subscribe registers fn for identity changes. Changes are delivered in
// generation order, to listeners in subscription order. Listeners must not
// block; they may call back into the AuthState.
func (s *AuthState) Subscribe(fn Listener) Subscription {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})
	s.mu.Unlock()

	return &subscription{cancel: func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, entry := range s.listeners {
			if entry.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}}
}

// Generation returns the number of transitions so far.
func (s *AuthState) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// transitionLocked commits id and points the outbound header at raw. The
// caller holds writeMu.
func (s *AuthState) transitionLocked(id Identity, raw string) {
	s.mu.Lock()
	prev := s.identity
	s.identity = id
	s.initialized = true
	s.commitLocked(prev, id)
	s.mu.Unlock()

	s.setAuthorization(raw)
}

// commitLocked bumps the generation and queues the change with a snapshot
// of the listener list. The caller holds mu.
func (s *AuthState) commitLocked(prev, current Identity) {
	s.generation++
	s.pending = append(s.pending, delivery{
		change: Change{
			Previous:   prev,
			Current:    current,
			Generation: s.generation,
		},
		listeners: append([]listenerEntry(nil), s.listeners...),
	})
}

// drain delivers queued changes in generation order. Only one goroutine
// drains at a time; a transition made from inside a listener is queued and
// delivered by the same loop.
func (s *AuthState) drain() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true

	for {
		if len(s.pending) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()
		s.notify(next.change, next.listeners)
		s.mu.Lock()
	}
}

func (s *AuthState) notify(change Change, listeners []listenerEntry) {
	for _, entry := range listeners {
		c := change
		c.Previous = change.Previous.clone()
		c.Current = change.Current.clone()
		entry.fn(c)
	}
}

func (s *AuthState) setAuthorization(raw string) {
	if s.headers != nil {
		s.headers.SetAuthorization(raw)
	}
}
