// Package user はユーザープロフィールの参照を提供する。
package user

import (
	"context"
	"fmt"
	"time"

	"github.com/notho/socialgen/internal/model"
	"github.com/notho/socialgen/internal/repository"
)

// demoCreatedAt はデモユーザーの作成日時（固定値）。
var demoCreatedAt = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// DemoUser はデモモードで返すユーザーを生成する。
func DemoUser() *model.User {
	return &model.User{
		ID:        model.DemoUserID,
		Email:     "demo@socialgen.local",
		Name:      "Demo User",
		CreatedAt: demoCreatedAt,
		UpdatedAt: demoCreatedAt,
	}
}

// Service はユーザー参照のサービス層。
// リポジトリがnilの場合はデモモードとして動作する。
type Service struct {
	userRepo repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository) *Service {
	return &Service{userRepo: userRepo}
}

// GetProfile は指定IDのユーザーを返す。
// デモモードではIDに関わらずデモユーザーを返す。
// DBが有効でもデモユーザーIDはDBに存在しなければデモユーザーで補う。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, model.NewMissingFieldError("id")
	}

	if s.userRepo == nil {
		u := DemoUser()
		if userID != model.DemoUserID {
			u.ID = userID
		}
		return u, nil
	}

	u, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		if userID == model.DemoUserID {
			return DemoUser(), nil
		}
		return nil, model.NewUserNotFoundError(userID)
	}
	return u, nil
}
