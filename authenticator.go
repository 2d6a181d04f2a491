package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-folio-auth/token"
)

const (
	MessageLoginSuccess        = "login successful"
	MessageRegistrationSuccess = "registration successful"
	MessageAuthFailed          = "authentication failed"
)

type Auther struct {
	provider          IdentityProvider
	registerer        AccountRegisterer
	tokenService      TokenService
	tokenValidator    TokenValidator
	retiredKeys       []string
	minPasswordLength int
	logger            Logger
	activitySink      ActivitySink
	claimsDecorator   ClaimsDecorator
}

// NewAuthenticator returns a new Authenticator. When provider can also
// register accounts it is used for Register.
func NewAuthenticator(provider IdentityProvider, opts Config) *Auther {
	ts := NewTokenServiceFromConfig(opts, defLogger{})
	a := &Auther{
		provider:          provider,
		tokenService:      ts,
		minPasswordLength: opts.GetMinPasswordLength(),
		logger:            defLogger{},
		activitySink:      noopActivitySink{},
		claimsDecorator:   noopClaimsDecorator{},
	}

	if r, ok := provider.(AccountRegisterer); ok {
		a.registerer = r
	}

	if rk, ok := opts.(retiredKeysConfig); ok {
		a.retiredKeys = rk.GetRetiredKeys()
	}

	if a.minPasswordLength <= 0 {
		a.minPasswordLength = 8
	}

	return a
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	if ts, ok := s.tokenService.(*TokenServiceImpl); ok {
		ts.logger = s.logger
	}
	return s
}

// WithRegisterer overrides the account registerer.
func (s *Auther) WithRegisterer(r AccountRegisterer) *Auther {
	s.registerer = r
	return s
}

// WithTokenService replaces the issuer/validator pair.
func (s *Auther) WithTokenService(ts TokenService) *Auther {
	if ts != nil {
		s.tokenService = ts
	}
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// WithClaimsDecorator configures a ClaimsDecorator for enriching JWTs.
func (s *Auther) WithClaimsDecorator(decorator ClaimsDecorator) *Auther {
	s.claimsDecorator = normalizeClaimsDecorator(decorator)
	return s
}

// WithTokenValidator sets a custom token validator for SessionFromToken.
func (s *Auther) WithTokenValidator(validator TokenValidator) *Auther {
	s.tokenValidator = validator
	return s
}

type retiredKeysConfig interface {
	GetRetiredKeys() []string
}

// Validator returns the validator used for incoming tokens. A custom
// validator wins; otherwise the token service, extended with the retired
// signing keys. The retired key validators are built on each call so they
// share the current logger and clock.
func (s *Auther) Validator() TokenValidator {
	if s.tokenValidator != nil {
		return s.tokenValidator
	}
	if ts, ok := s.tokenService.(*TokenServiceImpl); ok && len(s.retiredKeys) > 0 {
		return NewRotatingValidator(ts, s.retiredKeys...)
	}
	return s.tokenService
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokenService
}

// Login verifies the credential and issues a token. Unknown users and wrong
// passwords produce the same result and error.
func (s *Auther) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	identity, err := s.provider.VerifyIdentity(ctx, identifier, password)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "anonymous"}, "", map[string]any{
			"identifier": identifier,
			"error_kind": string(token.KindOf(err)),
		})

		if token.IsKind(err, token.KindCredentialInvalid) {
			return failedResult(ErrCredentialInvalid.Message), ErrCredentialInvalid
		}

		s.logger.Error("login verify identity error: %v", err)
		return failedResult(MessageAuthFailed), err
	}

	result, err := s.issue(ctx, identity, MessageLoginSuccess)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventLoginFailure, actorFromIdentity(identity), identity.ID(), map[string]any{
			"identifier": identifier,
			"error_kind": string(token.KindOf(err)),
		})
		return failedResult(MessageAuthFailed), err
	}

	s.emitAuthEvent(ctx, ActivityEventLoginSuccess, actorFromIdentity(identity), identity.ID(), map[string]any{
		"identifier": identifier,
		"token_id":   result.tokenID,
	})

	return result.LoginResult, nil
}

// RegisterRequest is the registration payload
type RegisterRequest struct {
	Username        string `json:"username" form:"username"`
	Email           string `json:"email" form:"email"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
}

// Validate will run validation rules
func (r RegisterRequest) Validate(minPasswordLength int) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 64)),
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password,
			validation.Required,
			validation.Length(minPasswordLength, 0).
				Error(fmt.Sprintf("password must be at least %d characters", minPasswordLength)),
		),
		validation.Field(&r.ConfirmPassword,
			validation.Required,
			validation.In(r.Password).Error("passwords do not match"),
		),
	)
}

// Register validates req, creates the account with the default role and
// issues a token exactly as Login does.
func (s *Auther) Register(ctx context.Context, req RegisterRequest) (LoginResult, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if err := req.Validate(s.minPasswordLength); err != nil {
		verr := validationError(err)
		s.emitAuthEvent(ctx, ActivityEventRegistrationFailure, ActorRef{Type: "anonymous"}, "", map[string]any{
			"username":   req.Username,
			"error_kind": string(token.KindValidationFailed),
		})
		return failedResult(verr.Message), verr
	}

	if s.registerer == nil {
		return failedResult(MessageAuthFailed), errors.New("registration is not enabled", errors.CategoryOperation).
			WithTextCode("REGISTRATION_DISABLED")
	}

	identity, err := s.registerer.RegisterUser(ctx, req.Email, req.Username, req.Password)
	if err != nil {
		s.emitAuthEvent(ctx, ActivityEventRegistrationFailure, ActorRef{Type: "anonymous"}, "", map[string]any{
			"username":   req.Username,
			"error_kind": string(token.KindOf(err)),
		})

		if token.IsKind(err, token.KindValidationFailed) {
			var richErr *errors.Error
			if errors.As(err, &richErr) {
				return failedResult(richErr.Message), err
			}
		}

		s.logger.Error("register user error: %v", err)
		return failedResult("registration failed"), err
	}

	result, err := s.issue(ctx, identity, MessageRegistrationSuccess)
	if err != nil {
		return failedResult(MessageAuthFailed), err
	}

	s.emitAuthEvent(ctx, ActivityEventRegistrationSuccess, actorFromIdentity(identity), identity.ID(), map[string]any{
		"username": identity.Username(),
		"token_id": result.tokenID,
	})

	return result.LoginResult, nil
}

// SessionFromToken validates raw and returns its claims.
func (s *Auther) SessionFromToken(raw string) (AuthClaims, error) {
	claims, err := s.Validator().Validate(raw)
	if err != nil {
		s.logger.Debug("session from token validation failed: %v", err)
		return nil, err
	}

	return claims, nil
}

type issuedResult struct {
	LoginResult
	tokenID string
}

func (s *Auther) issue(ctx context.Context, identity Identity, message string) (issuedResult, error) {
	claims, raw, err := s.generateJWT(ctx, identity)
	if err != nil {
		return issuedResult{}, err
	}

	return issuedResult{
		LoginResult: LoginResult{
			Success:       true,
			Message:       message,
			Token:         raw,
			UserID:        identity.ID(),
			UserName:      identity.Username(),
			Email:         identity.Email(),
			Role:          claims.Role(),
			Roles:         claims.Roles(),
			SubjectRoleID: primaryRoleID(identity),
			ExpiresAt:     claims.Expires(),
		},
		tokenID: claims.TokenID(),
	}, nil
}

// generateJWT builds, decorates and signs claims for identity
func (s *Auther) generateJWT(ctx context.Context, identity Identity) (*JWTClaims, string, error) {
	claims := s.tokenService.NewClaims(identity)
	snapshot := captureImmutableClaims(claims)

	decorator := normalizeClaimsDecorator(s.claimsDecorator)
	if err := decorator.Decorate(ctx, identity, claims); err != nil {
		s.logger.Error("claims decorator failed: %v", err)
		return nil, "", err
	}

	if err := snapshot.validate(claims); err != nil {
		s.logger.Error("claims decorator mutated immutable claims: %v", err)
		return nil, "", err
	}

	raw, err := s.tokenService.SignClaims(claims)
	if err != nil {
		s.logger.Error("failed to sign token: %v", err)
		return nil, "", err
	}

	return claims, raw, nil
}

func (s *Auther) emitAuthEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(s.activitySink)
	event := ActivityEvent{
		EventType:  eventType,
		Actor:      actor,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: time.Now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}

func actorFromIdentity(identity Identity) ActorRef {
	if identity == nil {
		return ActorRef{Type: "anonymous"}
	}

	return ActorRef{
		ID:   identity.ID(),
		Type: "user",
	}
}

type roleIDAwareIdentity interface {
	PrimaryRoleID() string
}

func primaryRoleID(identity Identity) string {
	if ra, ok := identity.(roleIDAwareIdentity); ok {
		return ra.PrimaryRoleID()
	}
	return ""
}

func failedResult(message string) LoginResult {
	return LoginResult{Success: false, Message: message}
}

// validationError turns ozzo field errors into ErrValidationFailed with the
// field messages as metadata.
func validationError(err error) *errors.Error {
	verr := token.WithMessage(ErrValidationFailed, err.Error())

	fields, ok := err.(validation.Errors)
	if !ok {
		return verr
	}

	meta := make(map[string]any, len(fields))
	for field, ferr := range fields {
		if ferr != nil {
			meta[field] = ferr.Error()
		}
	}
	return verr.WithMetadata(map[string]any{"fields": meta})
}
