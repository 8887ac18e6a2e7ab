// Package post は投稿の永続化アダプタを提供する。
//
// 永続化ストアは任意の依存として注入される。ストアが未設定の場合、
// 全ての操作はエラーではなくモックの結果（Mode=mock）を返す。
package post

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/notho/socialgen/internal/model"
	"github.com/notho/socialgen/internal/repository"
	"github.com/notho/socialgen/internal/security"
)

const (
	// DefaultListLimit は一覧取得件数の既定値。
	DefaultListLimit = 20
	// MaxListLimit は一覧取得件数の上限。
	MaxListLimit = 100
)

// Mode は結果がストアから得られたものかモックかを表す。
type Mode string

const (
	ModeLive Mode = "live"
	ModeMock Mode = "mock"
)

// Result は永続化操作の結果をモードとともに保持する。
type Result[T any] struct {
	Data T
	Mode Mode
}

// IsMock はモックの結果かを返す。
func (r Result[T]) IsMock() bool {
	return r.Mode == ModeMock
}

// StoreMetrics はストア操作の記録先。
type StoreMetrics interface {
	RecordStoreOperation(operation, mode string)
}

// CreateInput は投稿作成の入力。
type CreateInput struct {
	UserID      string
	Title       string
	Content     string
	Platform    model.Platform
	Status      model.PostStatus
	ImageURL    string
	Prompt      string
	Objective   string
	ScheduledAt *time.Time
	PublishedAt *time.Time
}

// Service は投稿の永続化アダプタ。
type Service struct {
	repo    repository.PostRepository
	guard   security.SSRFGuardService
	metrics StoreMetrics
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// repoがnilの場合はデモモードで動作する。metricsはnilでもよい。
// 本文・タイトル・プロンプトは受け取った文字列のまま保存する。
// HTMLとして表示する側でエスケープすること。
func NewService(
	repo repository.PostRepository,
	guard security.SSRFGuardService,
	metrics StoreMetrics,
) *Service {
	return &Service{
		repo:    repo,
		guard:   guard,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// DemoMode はストアが未設定かを返す。
func (s *Service) DemoMode() bool {
	return s.repo == nil
}

func (s *Service) mode() Mode {
	if s.repo == nil {
		return ModeMock
	}
	return ModeLive
}

func (s *Service) record(operation string) {
	if s.metrics != nil {
		s.metrics.RecordStoreOperation(operation, string(s.mode()))
	}
}

// Create は投稿を作成する。
// user_id、content、platformは必須。statusの既定値はdraft。
func (s *Service) Create(ctx context.Context, in CreateInput) (Result[*model.Post], error) {
	if in.UserID == "" {
		return Result[*model.Post]{}, model.NewMissingFieldError("user_id")
	}
	if strings.TrimSpace(in.Content) == "" {
		return Result[*model.Post]{}, model.NewMissingFieldError("content")
	}
	if in.Platform == "" {
		return Result[*model.Post]{}, model.NewMissingFieldError("platform")
	}
	if !in.Platform.IsValid() {
		return Result[*model.Post]{}, model.NewInvalidPlatformError(string(in.Platform))
	}
	if in.Status == "" {
		in.Status = model.PostStatusDraft
	}
	if !in.Status.IsValid() {
		return Result[*model.Post]{}, model.NewInvalidStatusError(string(in.Status))
	}
	if err := s.validateImageURL(in.ImageURL); err != nil {
		return Result[*model.Post]{}, err
	}

	now := s.now()
	p := &model.Post{
		ID:          uuid.New().String(),
		UserID:      in.UserID,
		Title:       in.Title,
		Content:     in.Content,
		Platform:    in.Platform,
		Status:      in.Status,
		ImageURL:    in.ImageURL,
		Prompt:      in.Prompt,
		Objective:   in.Objective,
		ScheduledAt: in.ScheduledAt,
		PublishedAt: in.PublishedAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	s.record("create")
	if s.repo == nil {
		return Result[*model.Post]{Data: p, Mode: ModeMock}, nil
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return Result[*model.Post]{}, fmt.Errorf("投稿の保存に失敗しました: %w", err)
	}

	slog.Info("post created",
		slog.String("post_id", p.ID),
		slog.String("user_id", p.UserID),
		slog.String("platform", string(p.Platform)),
	)

	return Result[*model.Post]{Data: p, Mode: ModeLive}, nil
}

// List はユーザーの投稿を新しい順に取得する。
// limitが0以下の場合はDefaultListLimit、MaxListLimitを超える場合はMaxListLimitを使う。
func (s *Service) List(ctx context.Context, userID string, limit int) (Result[[]*model.Post], error) {
	if userID == "" {
		return Result[[]*model.Post]{}, model.NewMissingFieldError("userId")
	}
	limit = normalizeLimit(limit)

	s.record("list")
	if s.repo == nil {
		posts := mockPosts(userID, s.now())
		if len(posts) > limit {
			posts = posts[:limit]
		}
		return Result[[]*model.Post]{Data: posts, Mode: ModeMock}, nil
	}

	posts, err := s.repo.ListByUserID(ctx, userID, limit)
	if err != nil {
		return Result[[]*model.Post]{}, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	return Result[[]*model.Post]{Data: posts, Mode: ModeLive}, nil
}

// Get は投稿を1件取得する。
func (s *Service) Get(ctx context.Context, id string) (Result[*model.Post], error) {
	s.record("get")
	if s.repo == nil {
		return Result[*model.Post]{Data: mockPostByID(id, ownerFromContext(ctx), s.now()), Mode: ModeMock}, nil
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Result[*model.Post]{}, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if p == nil {
		return Result[*model.Post]{}, model.NewPostNotFoundError(id)
	}
	return Result[*model.Post]{Data: p, Mode: ModeLive}, nil
}

// Update は指定フィールドのみを更新し、updated_atを現在時刻にする。
func (s *Service) Update(ctx context.Context, id string, patch model.PostPatch) (Result[*model.Post], error) {
	if patch.IsEmpty() {
		return Result[*model.Post]{}, model.NewEmptyPatchError()
	}
	if err := s.validatePatch(patch); err != nil {
		return Result[*model.Post]{}, err
	}

	s.record("update")
	if s.repo == nil {
		p := mockPostByID(id, ownerFromContext(ctx), s.now())
		patch.Apply(p)
		p.UpdatedAt = s.now()
		return Result[*model.Post]{Data: p, Mode: ModeMock}, nil
	}

	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return Result[*model.Post]{}, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if p == nil {
		return Result[*model.Post]{}, model.NewPostNotFoundError(id)
	}

	patch.Apply(p)
	p.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Result[*model.Post]{}, model.NewPostNotFoundError(id)
		}
		return Result[*model.Post]{}, fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}
	return Result[*model.Post]{Data: p, Mode: ModeLive}, nil
}

// Delete は投稿を削除する。
func (s *Service) Delete(ctx context.Context, id string) (Result[string], error) {
	s.record("delete")
	if s.repo == nil {
		return Result[string]{Data: id, Mode: ModeMock}, nil
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Result[string]{}, model.NewPostNotFoundError(id)
		}
		return Result[string]{}, fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}

	slog.Info("post deleted", slog.String("post_id", id))
	return Result[string]{Data: id, Mode: ModeLive}, nil
}

// Stats はユーザーの投稿数を状態・プラットフォーム別に集計する。
func (s *Service) Stats(ctx context.Context, userID string) (Result[*model.PostStats], error) {
	if userID == "" {
		return Result[*model.PostStats]{}, model.NewMissingFieldError("userId")
	}

	s.record("stats")
	if s.repo == nil {
		return Result[*model.PostStats]{Data: countPosts(mockPosts(userID, s.now())), Mode: ModeMock}, nil
	}

	stats, err := s.repo.CountByUserID(ctx, userID)
	if err != nil {
		return Result[*model.PostStats]{}, fmt.Errorf("投稿数の集計に失敗しました: %w", err)
	}
	return Result[*model.PostStats]{Data: stats, Mode: ModeLive}, nil
}

// validatePatch はパッチの列挙値とURLを検証する。
func (s *Service) validatePatch(patch model.PostPatch) error {
	if patch.Platform != nil && !patch.Platform.IsValid() {
		return model.NewInvalidPlatformError(string(*patch.Platform))
	}
	if patch.Status != nil && !patch.Status.IsValid() {
		return model.NewInvalidStatusError(string(*patch.Status))
	}
	if patch.ImageURL != nil {
		if err := s.validateImageURL(*patch.ImageURL); err != nil {
			return err
		}
	}
	if patch.Content != nil && strings.TrimSpace(*patch.Content) == "" {
		return model.NewMissingFieldError("content")
	}
	return nil
}

// validateImageURL は画像URLがhttp(s)で、ブロック対象の宛先でないことを確認する。
// 空文字は画像なしとして許可する。
func (s *Service) validateImageURL(rawURL string) error {
	if rawURL == "" {
		return nil
	}
	err := s.guard.ValidateURL(rawURL)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, security.ErrBlockedURL):
		return model.NewSSRFBlockedError()
	default:
		return model.NewInvalidURLError("image_url")
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

func countPosts(posts []*model.Post) *model.PostStats {
	stats := &model.PostStats{
		ByStatus:   make(map[model.PostStatus]int),
		ByPlatform: make(map[model.Platform]int),
	}
	for _, p := range posts {
		stats.Total++
		stats.ByStatus[p.Status]++
		stats.ByPlatform[p.Platform]++
	}
	return stats
}
