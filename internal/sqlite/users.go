package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"modernc.org/sqlite"

	"github.com/CharlT24/social-immo/internal/immo"
)

const userNamespace = "-usr"

func (r Repo) CreateUser(ctx context.Context, username, passwordHash string) (immo.User, error) {
	const q = `INSERT INTO users (id, username, password_hash)
	VALUES (:id, :username, :password_hash);`

	usr := immo.User{
		ID:           uuid.NewString() + userNamespace,
		Username:     username,
		PasswordHash: passwordHash,
	}
	_, err := r.db.NamedExecContext(ctx, q, usr)
	if sqliteErr := (&sqlite.Error{}); errors.As(err, &sqliteErr) && sqliteErr.Code() == 2067 {
		return immo.User{}, fmt.Errorf("username taken: %w", immo.ErrConflict)
	}
	if err != nil {
		return immo.User{}, fmt.Errorf("error inserting user: %s", err)
	}

	return r.User(ctx, usr.ID)
}

func (r Repo) User(ctx context.Context, id string) (immo.User, error) {
	const q = `SELECT * FROM users WHERE id = ?;`

	var usr immo.User
	err := r.db.GetContext(ctx, &usr, q, id)
	if errors.Is(err, sql.ErrNoRows) {
		return immo.User{}, immo.ErrNotFound
	}
	if err != nil {
		return immo.User{}, err
	}

	return usr, nil
}

func (r Repo) UserByUsername(ctx context.Context, username string) (immo.User, error) {
	const q = `SELECT * FROM users WHERE username = ?;`

	var usr immo.User
	err := r.db.GetContext(ctx, &usr, q, username)
	if errors.Is(err, sql.ErrNoRows) {
		return immo.User{}, immo.ErrNotFound
	}
	if err != nil {
		return immo.User{}, err
	}

	return usr, nil
}
