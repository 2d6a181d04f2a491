package client

import (
	"context"

	"github.com/goliatone/go-folio-auth/token"
)

// Session ties the API client, the auth state and the session cache
// together. Failed calls never change the established identity.
type Session struct {
	api    *APIClient
	state  *AuthState
	cache  *SessionCache
	logger Logger
}

// NewSession wires api as the authorization setter of a new AuthState over
// store and attaches a fresh SessionCache to it.
func NewSession(api *APIClient, store *TokenStore, opts ...AuthStateOption) *Session {
	opts = append([]AuthStateOption{WithAuthorizationSetter(api)}, opts...)
	state := NewAuthState(store, opts...)

	cache := NewSessionCache()
	cache.Attach(state)

	return &Session{
		api:    api,
		state:  state,
		cache:  cache,
		logger: state.logger,
	}
}

func (s *Session) State() *AuthState {
	return s.state
}

func (s *Session) Cache() *SessionCache {
	return s.cache
}

func (s *Session) API() *APIClient {
	return s.api
}

// Identity returns the current identity, loading it on first use.
func (s *Session) Identity(ctx context.Context) Identity {
	return s.state.CurrentIdentity(ctx)
}

// Login authenticates with the server and adopts the issued token.
func (s *Session) Login(ctx context.Context, username, password string) (Identity, error) {
	res, err := s.api.Login(ctx, username, password)
	if err != nil {
		s.logger.Info("login failed [%s]", token.KindOf(err))
		return s.state.CurrentIdentity(ctx), err
	}
	return s.adopt(ctx, res)
}

// Register creates an account and signs in with the issued token.
func (s *Session) Register(ctx context.Context, req RegisterRequest) (Identity, error) {
	res, err := s.api.Register(ctx, req)
	if err != nil {
		s.logger.Info("registration failed [%s]", token.KindOf(err))
		return s.state.CurrentIdentity(ctx), err
	}
	return s.adopt(ctx, res)
}

// Logout drops the token and clears the session cache.
func (s *Session) Logout(ctx context.Context) error {
	return s.state.MarkLoggedOut(ctx)
}

// Close detaches the session cache.
func (s *Session) Close() {
	s.cache.Close()
}

func (s *Session) adopt(ctx context.Context, res LoginResponse) (Identity, error) {
	if !res.Success || res.Token == "" {
		return s.state.CurrentIdentity(ctx), token.WithMessage(token.ErrMalformedToken, "server response did not include a token")
	}

	// a storage error still leaves the session signed in for this process
	err := s.state.MarkAuthenticated(ctx, res.Token)
	return s.state.CurrentIdentity(ctx), err
}
