package auth

import (
	"context"
	"database/sql"
	"io/fs"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DefaultPingTimeout = 5 * time.Second
)

const migrationsRoot = "data/sql/migrations"

// PersistenceConfig describes the users database
type PersistenceConfig struct {
	Driver         string        `yaml:"driver" json:"driver"`
	DSN            string        `yaml:"dsn" json:"-"`
	Debug          bool          `yaml:"debug" json:"debug"`
	PingTimeout    time.Duration `yaml:"ping_timeout" json:"ping_timeout"`
	OtelIdentifier string        `yaml:"otel_identifier" json:"otel_identifier,omitempty"`
}

func (c PersistenceConfig) GetDebug() bool {
	return c.Debug
}

func (c PersistenceConfig) GetDriver() string {
	if d := strings.ToLower(strings.TrimSpace(c.Driver)); d != "" {
		return d
	}
	return DriverSQLite
}

func (c PersistenceConfig) GetServer() string {
	return c.DSN
}

func (c PersistenceConfig) GetDSN() string {
	return c.DSN
}

func (c PersistenceConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return DefaultPingTimeout
	}
	return c.PingTimeout
}

func (c PersistenceConfig) GetOtelIdentifier() string {
	return c.OtelIdentifier
}

// OpenDB opens the configured database. SQLite connections are limited to
// one so in memory databases survive between queries.
func OpenDB(cfg PersistenceConfig) (*bun.DB, error) {
	switch cfg.GetDriver() {
	case DriverPostgres:
		sqldb, err := sql.Open("postgres", cfg.GetDSN())
		if err != nil {
			return nil, repositoryUnavailable(err)
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	case DriverSQLite:
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.GetDSN())
		if err != nil {
			return nil, repositoryUnavailable(err)
		}
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	default:
		return nil, goerrors.New("unsupported database driver "+cfg.GetDriver(), goerrors.CategoryValidation).
			WithTextCode(TextCodeInvalidConfig)
	}
}

var registerModels sync.Once

// NewPersistenceClient wraps db in a persistence client with the package
// migrations registered for both dialects.
func NewPersistenceClient(cfg PersistenceConfig, db *bun.DB) (*persistence.Client, error) {
	registerModels.Do(func() {
		persistence.RegisterModel((*User)(nil))
	})

	client, err := persistence.New(cfg, db.DB, db.Dialect())
	if err != nil {
		return nil, repositoryUnavailable(err)
	}

	migrations, err := fs.Sub(GetMigrationsFS(), migrationsRoot)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load migrations")
	}

	client.RegisterDialectMigrations(
		migrations,
		persistence.WithDialectSourceLabel(migrationsRoot),
		persistence.WithValidationTargets(DriverPostgres, DriverSQLite),
	)
	return client, nil
}

// RunMigrations validates the dialect sources and applies pending
// migrations. Applied migrations are tracked so a second run is a no-op.
func RunMigrations(ctx context.Context, client *persistence.Client) error {
	if err := client.ValidateDialects(ctx); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "invalid migrations").
			WithTextCode(TextCodeInvalidConfig)
	}

	if err := client.Migrate(ctx); err != nil {
		return repositoryUnavailable(err)
	}
	return nil
}

func driverFor(name dialect.Name) string {
	if name == dialect.PG {
		return DriverPostgres
	}
	return DriverSQLite
}
