package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/uptrace/bun"
)

const (
	FieldEmail        = "email"
	FieldFullName     = "full_name"
	FieldPasswordHash = "password_hash"
	FieldDisabled     = "disabled"
	FieldRoles        = "roles"
	FieldLastLogin    = "last_login"
)

// UserRepository is the bun backed Users implementation
type UserRepository interface {
	Users

	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (int64, error)

	FindByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	InsertTx(ctx context.Context, tx bun.IDB, user *User) (uuid.UUID, error)
	UpdateFieldsTx(ctx context.Context, tx bun.IDB, id uuid.UUID, fields map[string]any) (int64, error)
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users          = (*users)(nil)
	_ UserRepository = (*users)(nil)
)

// NewUsersRepository returns a Users store backed by db
func NewUsersRepository(db *bun.DB) UserRepository {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "username"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.FindByIDTx(ctx, a.db, id)
}

func (a *users) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	if id == uuid.Nil {
		return nil, ErrUserNotFound
	}

	record := &User{ID: id}
	if err := tx.NewSelect().Model(record).WherePK().Scan(ctx); err != nil {
		if isNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, repositoryUnavailable(err)
	}

	record.Roles = NormalizeRoles(record.Roles)
	return record, nil
}

func (a *users) FindByUsername(ctx context.Context, username string) (*User, error) {
	return a.FindByUsernameTx(ctx, a.db, username)
}

func (a *users) FindByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*User, error) {
	return a.findBy(ctx, tx, "username", username)
}

func (a *users) FindByEmail(ctx context.Context, email string) (*User, error) {
	return a.FindByEmailTx(ctx, a.db, email)
}

func (a *users) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.findBy(ctx, tx, "email", email)
}

func (a *users) findBy(ctx context.Context, tx bun.IDB, column, value string) (*User, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, ErrUserNotFound
	}

	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, repositoryUnavailable(err)
	}

	record.Roles = NormalizeRoles(record.Roles)
	return record, nil
}

func (a *users) Insert(ctx context.Context, user *User) (uuid.UUID, error) {
	return a.InsertTx(ctx, a.db, user)
}

// InsertTx stores a new user. Username and email must both be unused.
func (a *users) InsertTx(ctx context.Context, tx bun.IDB, user *User) (uuid.UUID, error) {
	if user == nil {
		return uuid.Nil, goerrors.New("user is required", goerrors.CategoryBadInput).
			WithTextCode(TextCodeInvalidInput).
			WithCode(goerrors.CodeBadRequest)
	}

	prepareUserDefaults(user)

	for column, value := range map[string]string{"username": user.Username, "email": user.Email} {
		_, err := a.findBy(ctx, tx, column, value)
		if err == nil {
			return uuid.Nil, ErrUserExists
		}
		if !IsUserNotFound(err) {
			return uuid.Nil, err
		}
	}

	record, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, ErrUserExists
		}
		return uuid.Nil, repositoryUnavailable(err)
	}

	return record.ID, nil
}

func (a *users) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) (int64, error) {
	return a.UpdateFieldsTx(ctx, a.db, id, fields)
}

// UpdateFieldsTx applies a partial update and returns the number of rows
// changed. Only the Field* columns are accepted.
func (a *users) UpdateFieldsTx(ctx context.Context, tx bun.IDB, id uuid.UUID, fields map[string]any) (int64, error) {
	if len(fields) == 0 {
		return 0, nil
	}

	record := &User{ID: id}
	columns, err := applyUserFields(record, fields)
	if err != nil {
		return 0, err
	}

	res, err := tx.NewUpdate().
		Model(record).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrUserExists
		}
		return 0, repositoryUnavailable(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, repositoryUnavailable(err)
	}

	return n, nil
}

func (a *users) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	return a.DeleteTx(ctx, a.db, id)
}

// DeleteTx removes the user and returns the number of rows deleted, zero
// when the id is unknown.
func (a *users) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (int64, error) {
	res, err := tx.NewDelete().
		Model(&User{ID: id}).
		WherePK().
		Exec(ctx)
	if err != nil {
		return 0, repositoryUnavailable(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, repositoryUnavailable(err)
	}
	return n, nil
}

func applyUserFields(record *User, fields map[string]any) ([]string, error) {
	columns := make([]string, 0, len(fields))
	for name, value := range fields {
		ok := true
		switch name {
		case FieldEmail:
			record.Email, ok = value.(string)
			record.Email = strings.TrimSpace(record.Email)
		case FieldPasswordHash:
			record.PasswordHash, ok = value.(string)
		case FieldDisabled:
			record.Disabled, ok = value.(bool)
		case FieldFullName:
			switch v := value.(type) {
			case nil:
				record.FullName = nil
			case string:
				record.FullName = &v
			case *string:
				record.FullName = v
			default:
				ok = false
			}
		case FieldRoles:
			var roles []string
			roles, ok = value.([]string)
			record.Roles = NormalizeRoles(roles)
		case FieldLastLogin:
			switch v := value.(type) {
			case nil:
				record.LastLogin = nil
			case time.Time:
				record.LastLogin = &v
			case *time.Time:
				record.LastLogin = v
			default:
				ok = false
			}
		default:
			return nil, invalidInput(fmt.Sprintf("field %q can not be updated", name))
		}

		if !ok {
			return nil, invalidInput(fmt.Sprintf("invalid value for field %q", name))
		}
		columns = append(columns, name)
	}
	return columns, nil
}

func invalidInput(msg string) error {
	return goerrors.New(msg, goerrors.CategoryBadInput).
		WithTextCode(TextCodeInvalidInput).
		WithCode(goerrors.CodeBadRequest)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := e.Error()
		if strings.Contains(msg, "UNIQUE constraint failed") ||
			strings.Contains(msg, "duplicate key value") {
			return true
		}
	}
	return false
}
