package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() UserRepository
	Migrate(ctx context.Context) error
}

type mngr struct {
	db     *bun.DB
	users  UserRepository
	config PersistenceConfig
}

// RepositoryOption configures a RepositoryManager
type RepositoryOption func(*mngr)

// WithPersistenceConfig sets the options handed to the persistence client.
// The driver defaults to the dialect of the database.
func WithPersistenceConfig(cfg PersistenceConfig) RepositoryOption {
	return func(m *mngr) {
		m.config = cfg
	}
}

func NewRepositoryManager(db *bun.DB, opts ...RepositoryOption) RepositoryManager {
	m := &mngr{
		db:    db,
		users: NewUsersRepository(db),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.config.Driver == "" && db != nil {
		m.config.Driver = driverFor(db.Dialect().Name())
	}
	return m
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository database should be initialized")
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

// Migrate applies the embedded migrations for the database dialect
func (m mngr) Migrate(ctx context.Context) error {
	client, err := NewPersistenceClient(m.config, m.db)
	if err != nil {
		return err
	}
	return RunMigrations(ctx, client)
}

func (m mngr) Users() UserRepository {
	return m.users
}
