package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/notho/socialgen/internal/model"
)

// SQLUserRepo はdatabase/sqlを使用したユーザーリポジトリ。
type SQLUserRepo struct {
	db *sql.DB
}

// NewSQLUserRepo はSQLUserRepoを生成する。
func NewSQLUserRepo(db *sql.DB) *SQLUserRepo {
	return &SQLUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *SQLUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	var avatarURL sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, avatar_url, created_at, updated_at FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Email, &user.Name, &avatarURL, &user.CreatedAt, &user.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	user.AvatarURL = nullStringValue(avatarURL)
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*SQLUserRepo)(nil)
