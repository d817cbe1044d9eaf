package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmehdipour/orderdesk/internal/model"
	"github.com/jmoiron/sqlx"
)

type UsersRepository interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
}

type UsersRepositoryImpl struct {
	db *sqlx.DB
}

func NewUsersRepository(db *sqlx.DB) *UsersRepositoryImpl {
	return &UsersRepositoryImpl{db: db}
}

var _ UsersRepository = (*UsersRepositoryImpl)(nil)

const selectUser = `
	SELECT id, name, email, COALESCE(mobile_no, '') AS mobile_no,
	       COALESCE(api_key, '') AS api_key, status, rate_limit_rps
	  FROM users
`

// GetByAPIKey returns (nil, nil) when no user owns the key.
func (r *UsersRepositoryImpl) GetByAPIKey(ctx context.Context, apiKey string) (*model.User, error) {
	return r.getOne(ctx, selectUser+` WHERE api_key = ? LIMIT 1`, apiKey)
}

func (r *UsersRepositoryImpl) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.getOne(ctx, selectUser+` WHERE id = ? LIMIT 1`, id)
}

func (r *UsersRepositoryImpl) getOne(ctx context.Context, q string, arg any) (*model.User, error) {
	var u model.User
	err := r.db.GetContext(ctx, &u, q, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
