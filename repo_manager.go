package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	Validate() error
	MustValidate()
	RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error
	Users() Users
}

type mngr struct {
	db    *bun.DB
	users Users
}

func NewRepositoryManager(db *bun.DB, opts ...UsersOption) RepositoryManager {
	return &mngr{
		db:    db,
		users: NewUsersRepository(db, opts...),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository db should be initialized")
	}

	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

// CreateSchema creates the account tables when missing and seeds DefaultRoles.
// It is safe to call on every start.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	db.RegisterModel((*UserRole)(nil))

	if _, err := db.NewCreateTable().Model((*User)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}

	if _, err := db.NewCreateTable().Model((*Role)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}

	_, err := db.NewCreateTable().
		Model((*UserRole)(nil)).
		IfNotExists().
		ForeignKey(`("user_id") REFERENCES "users" ("id") ON DELETE CASCADE`).
		ForeignKey(`("role_id") REFERENCES "roles" ("id") ON DELETE CASCADE`).
		Exec(ctx)
	if err != nil {
		return err
	}

	return SeedRoles(ctx, db, DefaultRoles...)
}

// SeedRoles inserts the named roles, skipping the ones already present.
func SeedRoles(ctx context.Context, db bun.IDB, names ...string) error {
	for _, name := range names {
		role := &Role{Name: name}
		if _, err := db.NewInsert().Model(role).On("CONFLICT (name) DO NOTHING").Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
