package auth

import (
	"context"
	"database/sql"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-folio-auth/token"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the account store backing UserProvider.
type Users interface {
	GetByIdentifier(ctx context.Context, identifier string) (*User, error)
	List(ctx context.Context) ([]*User, error)
	Exists(ctx context.Context, username, email string) (usernameTaken, emailTaken bool, err error)
	CreateWithRole(ctx context.Context, user *User, role string) (*User, error)
	TrackSuccessfulLogin(ctx context.Context, user *User) error
}

type users struct {
	db    *bun.DB
	newID func(email string) (uuid.UUID, error)
}

var _ Users = (*users)(nil)

type UsersOption func(*users)

// WithDeterministicIDs derives user ids from the email address so the same
// account gets the same id across environments.
func WithDeterministicIDs() UsersOption {
	return func(u *users) {
		u.newID = func(email string) (uuid.UUID, error) {
			return hashid.NewUUID(email)
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	db.RegisterModel((*UserRole)(nil))

	repo := &users{
		db: db,
		newID: func(string) (uuid.UUID, error) {
			return uuid.New(), nil
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string) (*User, error) {
	options := resolveUserIdentifier(identifier)

	for _, opt := range options {
		record := &User{}
		err := a.db.NewSelect().
			Model(record).
			Relation("Roles").
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to load user")
		}

		return record, nil
	}

	return nil, annotate(ErrUserNotFound, map[string]any{
		"identifier": identifier,
	})
}

func (a *users) List(ctx context.Context) ([]*User, error) {
	records := []*User{}
	err := a.db.NewSelect().
		Model(&records).
		Relation("Roles").
		OrderExpr("?TableAlias.username ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to list users")
	}
	return records, nil
}

func (a *users) Exists(ctx context.Context, username, email string) (bool, bool, error) {
	usernameTaken, err := a.db.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.username = ?", strings.TrimSpace(username)).
		Exists(ctx)
	if err != nil {
		return false, false, errors.Wrap(err, errors.CategoryInternal, "failed to check username")
	}

	emailTaken, err := a.db.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.email = ?", normalizeEmail(email)).
		Exists(ctx)
	if err != nil {
		return false, false, errors.Wrap(err, errors.CategoryInternal, "failed to check email")
	}

	return usernameTaken, emailTaken, nil
}

// CreateWithRole inserts user and links it to role in a single transaction.
// Unique constraint violations surface as ErrAccountTaken.
func (a *users) CreateWithRole(ctx context.Context, user *User, role string) (*User, error) {
	if err := a.prepareUserDefaults(user); err != nil {
		return nil, err
	}

	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &Role{}
		if err := tx.NewSelect().Model(record).Where("?TableAlias.name = ?", role).Limit(1).Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return annotate(ErrRoleNotFound, map[string]any{"role": role})
			}
			return err
		}

		if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
			return err
		}

		link := &UserRole{UserID: user.ID, RoleID: record.ID}
		if _, err := tx.NewInsert().Model(link).Exec(ctx); err != nil {
			return err
		}

		user.Roles = []*Role{record}
		return nil
	})

	if err != nil {
		if isUniqueViolation(err) {
			return nil, token.WithCause(ErrAccountTaken, err, map[string]any{
				"username": user.Username,
			})
		}

		var richErr *errors.Error
		if errors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "could not create user")
	}

	return user, nil
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	now := time.Now()
	_, err := a.db.NewUpdate().
		Table("users").
		Set("loggedin_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", user.ID).
		Exec(ctx)
	if err != nil {
		return err
	}
	user.LoggedInAt = &now
	return nil
}

func (a *users) prepareUserDefaults(record *User) error {
	if record == nil {
		return errors.New("user must not be nil", errors.CategoryBadInput)
	}

	record.Username = strings.TrimSpace(record.Username)
	record.Email = normalizeEmail(record.Email)

	if record.ID == uuid.Nil {
		id, err := a.newID(record.Email)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "failed to generate user id")
		}
		record.ID = id
	}

	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	return nil
}

// annotate copies sentinel with metadata. The copy keeps sentinel as its
// source so errors.Is still matches it.
func annotate(sentinel *errors.Error, metadata map[string]any) error {
	return token.WithCause(sentinel, sentinel, metadata)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type identifierOption struct {
	column string
	value  string
}

func resolveUserIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 3)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  normalizeEmail(trimmed),
		})
	}

	options = append(options, identifierOption{
		column: "username",
		value:  trimmed,
	})

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}
