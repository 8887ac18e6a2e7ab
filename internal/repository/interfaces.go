// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/notho/socialgen/internal/model"
)

// ErrNotFound は更新・削除対象の行が存在しない場合に返される。
var ErrNotFound = errors.New("record not found")

// PostRepository は投稿データの永続化インターフェース。
type PostRepository interface {
	// Create は投稿を作成する。ID・タイムスタンプは呼び出し側で設定済みであること。
	Create(ctx context.Context, post *model.Post) error

	// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Post, error)

	// ListByUserID はユーザーの投稿をcreated_at降順で最大limit件取得する。
	ListByUserID(ctx context.Context, userID string, limit int) ([]*model.Post, error)

	// Update は投稿の全カラムを書き換える。対象がない場合はErrNotFoundを返す。
	Update(ctx context.Context, post *model.Post) error

	// DeleteByID は指定IDの投稿を削除する。対象がない場合はErrNotFoundを返す。
	DeleteByID(ctx context.Context, id string) error

	// CountByUserID はユーザーの投稿数を状態・プラットフォーム別に集計する。
	CountByUserID(ctx context.Context, userID string) (*model.PostStats, error)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
}
