package auth

import (
	"context"
	"strconv"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-folio-auth/token"
)

// UserProvider verifies credentials against Users and registers new accounts
type UserProvider struct {
	store       Users
	logger      Logger
	defaultRole string
}

var (
	_ IdentityProvider  = (*UserProvider)(nil)
	_ AccountRegisterer = (*UserProvider)(nil)
)

// NewUserProvider will create a new UserProvider
func NewUserProvider(store Users) *UserProvider {
	return &UserProvider{
		store:       store,
		logger:      defLogger{},
		defaultRole: RoleUser,
	}
}

func (u *UserProvider) WithLogger(l Logger) *UserProvider {
	u.logger = normalizeLogger(l)
	return u
}

// WithDefaultRole sets the role assigned on registration.
func (u *UserProvider) WithDefaultRole(role string) *UserProvider {
	if role != "" {
		u.defaultRole = role
	}
	return u
}

// VerifyIdentity will find the user, compare to the password, and return identity.
// Unknown users and wrong passwords take the same path: a bcrypt comparison,
// the same log line and ErrCredentialInvalid.
func (u *UserProvider) VerifyIdentity(ctx context.Context, identifier, password string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil && !isNotFound(err) {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to retrieve user during verification")
	}

	hash := RandomPasswordHash()
	if user != nil {
		hash = user.PasswordHash
	}

	if cmpErr := ComparePasswordAndHash(password, hash); cmpErr != nil || user == nil {
		u.logger.Info("credential check rejected for %q", identifier)
		return nil, ErrCredentialInvalid
	}

	if err := u.store.TrackSuccessfulLogin(ctx, user); err != nil {
		u.logger.Warn("failed to track successful login for %s: %v", user.ID, err)
	}

	return identityFromUser(user), nil
}

func (u *UserProvider) FindIdentityByIdentifier(ctx context.Context, identifier string) (Identity, error) {
	user, err := u.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	return identityFromUser(user), nil
}

// RegisterUser checks uniqueness, hashes the password and stores the account
// with the default role. Input shape is validated by the caller.
func (u *UserProvider) RegisterUser(ctx context.Context, email, username, password string) (Identity, error) {
	usernameTaken, emailTaken, err := u.store.Exists(ctx, username, email)
	if err != nil {
		return nil, err
	}

	if usernameTaken || emailTaken {
		return nil, token.WithCause(ErrAccountTaken, nil, map[string]any{
			"username_taken": usernameTaken,
			"email_taken":    emailTaken,
		})
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to hash password")
	}

	user, err := u.store.CreateWithRole(ctx, &User{
		Username:     strings.TrimSpace(username),
		Email:        email,
		PasswordHash: hash,
	}, u.defaultRole)
	if err != nil {
		return nil, err
	}

	u.logger.Info("registered user %s with role %s", user.ID, u.defaultRole)

	return identityFromUser(user), nil
}

func isNotFound(err error) bool {
	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.Category == errors.CategoryNotFound {
		return true
	}
	return errors.IsNotFound(err)
}

type authIdentity struct {
	id       string
	username string
	email    string
	roles    []string
	roleIDs  map[string]int64
}

func identityFromUser(user *User) authIdentity {
	roleIDs := make(map[string]int64, len(user.Roles))
	for _, r := range user.Roles {
		if r != nil {
			roleIDs[r.Name] = r.ID
		}
	}

	return authIdentity{
		id:       user.ID.String(),
		username: user.Username,
		email:    user.Email,
		roles:    user.RoleNames(),
		roleIDs:  roleIDs,
	}
}

func (a authIdentity) ID() string {
	return a.id
}

func (a authIdentity) Username() string {
	return a.username
}

func (a authIdentity) Email() string {
	return a.email
}

func (a authIdentity) Role() string {
	if len(a.roles) == 0 {
		return ""
	}
	return a.roles[0]
}

func (a authIdentity) Roles() []string {
	return append([]string(nil), a.roles...)
}

// PrimaryRoleID returns the store id of the primary role.
func (a authIdentity) PrimaryRoleID() string {
	id, ok := a.roleIDs[a.Role()]
	if !ok {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

var _ Identity = authIdentity{}
