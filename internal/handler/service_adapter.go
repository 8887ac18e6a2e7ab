package handler

import (
	"context"

	"github.com/notho/socialgen/internal/importer"
	"github.com/notho/socialgen/internal/model"
	"github.com/notho/socialgen/internal/post"
)

// PostServiceAdapter は post.Service を PostServiceInterface に適合させるアダプタ。
type PostServiceAdapter struct {
	svc *post.Service
}

// NewPostServiceAdapter はPostServiceAdapterを生成する。
func NewPostServiceAdapter(svc *post.Service) *PostServiceAdapter {
	return &PostServiceAdapter{svc: svc}
}

// CreatePost は投稿を作成しhandlerレスポンス型で返す。
func (a *PostServiceAdapter) CreatePost(ctx context.Context, in post.CreateInput) (*postResponse, bool, error) {
	res, err := a.svc.Create(ctx, in)
	if err != nil {
		return nil, false, err
	}
	resp := toPostResponse(res.Data)
	return &resp, res.IsMock(), nil
}

// ListPosts はユーザーの投稿一覧をhandlerレスポンス型で返す。
func (a *PostServiceAdapter) ListPosts(ctx context.Context, userID string, limit int) ([]postResponse, bool, error) {
	res, err := a.svc.List(ctx, userID, limit)
	if err != nil {
		return nil, false, err
	}
	return toPostResponses(res.Data), res.IsMock(), nil
}

// GetPost は投稿をhandlerレスポンス型で返す。
func (a *PostServiceAdapter) GetPost(ctx context.Context, id string) (*postResponse, bool, error) {
	res, err := a.svc.Get(ctx, id)
	if err != nil {
		return nil, false, err
	}
	resp := toPostResponse(res.Data)
	return &resp, res.IsMock(), nil
}

// UpdatePost は投稿を部分更新しhandlerレスポンス型で返す。
func (a *PostServiceAdapter) UpdatePost(ctx context.Context, id string, patch model.PostPatch) (*postResponse, bool, error) {
	res, err := a.svc.Update(ctx, id, patch)
	if err != nil {
		return nil, false, err
	}
	resp := toPostResponse(res.Data)
	return &resp, res.IsMock(), nil
}

// DeletePost は投稿を削除し、削除したIDを返す。
func (a *PostServiceAdapter) DeletePost(ctx context.Context, id string) (string, bool, error) {
	res, err := a.svc.Delete(ctx, id)
	if err != nil {
		return "", false, err
	}
	return res.Data, res.IsMock(), nil
}

// PostStats は投稿集計をhandlerレスポンス型で返す。
func (a *PostServiceAdapter) PostStats(ctx context.Context, userID string) (*postStatsResponse, bool, error) {
	res, err := a.svc.Stats(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return toPostStatsResponse(res.Data), res.IsMock(), nil
}

// ImportServiceAdapter は importer.Service を ImportServiceInterface に適合させるアダプタ。
type ImportServiceAdapter struct {
	svc *importer.Service
}

// NewImportServiceAdapter はImportServiceAdapterを生成する。
func NewImportServiceAdapter(svc *importer.Service) *ImportServiceAdapter {
	return &ImportServiceAdapter{svc: svc}
}

// ImportFeed はフィードを取り込みhandlerレスポンス型で返す。
func (a *ImportServiceAdapter) ImportFeed(ctx context.Context, req importer.Request) (*importResponse, error) {
	res, err := a.svc.Import(ctx, req)
	if err != nil {
		return nil, err
	}
	return &importResponse{
		FeedURL:   res.FeedURL,
		FeedTitle: res.FeedTitle,
		Posts:     toPostResponses(res.Posts),
		Count:     len(res.Posts),
		Mock:      res.Mode == post.ModeMock,
	}, nil
}

// toPostResponse はmodel.PostをAPIレスポンス型に変換する。
func toPostResponse(p *model.Post) postResponse {
	return postResponse{
		ID:          p.ID,
		UserID:      p.UserID,
		Title:       p.Title,
		Content:     p.Content,
		Platform:    string(p.Platform),
		Status:      string(p.Status),
		ImageURL:    p.ImageURL,
		Prompt:      p.Prompt,
		Objective:   p.Objective,
		ScheduledAt: p.ScheduledAt,
		PublishedAt: p.PublishedAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func toPostResponses(posts []*model.Post) []postResponse {
	results := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		if p != nil {
			results = append(results, toPostResponse(p))
		}
	}
	return results
}

func toPostStatsResponse(stats *model.PostStats) *postStatsResponse {
	resp := &postStatsResponse{
		ByStatus:   make(map[string]int),
		ByPlatform: make(map[string]int),
	}
	if stats == nil {
		return resp
	}
	resp.Total = stats.Total
	for s, n := range stats.ByStatus {
		resp.ByStatus[string(s)] = n
	}
	for p, n := range stats.ByPlatform {
		resp.ByPlatform[string(p)] = n
	}
	return resp
}
