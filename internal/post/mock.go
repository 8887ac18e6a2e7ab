package post

import (
	"context"
	"time"

	"github.com/notho/socialgen/internal/model"
)

// mockPosts はデモモードで返すサンプル投稿を新しい順に生成する。
// 呼び出しごとに新しいスライスを返すため、呼び出し側で変更してよい。
func mockPosts(userID string, now time.Time) []*model.Post {
	scheduled := now.Add(24 * time.Hour)
	published := now.Add(-48 * time.Hour)

	return []*model.Post{
		{
			ID:        "mock-post-1",
			UserID:    userID,
			Title:     "Remote work productivity tips",
			Content:   "Working remotely? Here are three habits that keep our team focused and connected. What works for you? #RemoteWork #Productivity",
			Platform:  model.PlatformLinkedIn,
			Status:    model.PostStatusDraft,
			Prompt:    "remote work productivity",
			Objective: "share_expertise",
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-1 * time.Hour),
		},
		{
			ID:          "mock-post-2",
			UserID:      userID,
			Title:       "Product launch teaser",
			Content:     "Something new is coming next week 🚀 Stay tuned! #Launch",
			Platform:    model.PlatformTwitter,
			Status:      model.PostStatusScheduled,
			Prompt:      "product launch",
			Objective:   "brand_awareness",
			ScheduledAt: &scheduled,
			CreatedAt:   now.Add(-24 * time.Hour),
			UpdatedAt:   now.Add(-24 * time.Hour),
		},
		{
			ID:          "mock-post-3",
			UserID:      userID,
			Title:       "Behind the scenes",
			Content:     "A look behind the scenes at our studio ✨ #BehindTheScenes #Design #Studio",
			Platform:    model.PlatformInstagram,
			Status:      model.PostStatusPublished,
			ImageURL:    "https://picsum.photos/seed/mock-post-3/1080/1080",
			Prompt:      "studio behind the scenes",
			Objective:   "brand_awareness",
			PublishedAt: &published,
			CreatedAt:   now.Add(-72 * time.Hour),
			UpdatedAt:   now.Add(-48 * time.Hour),
		},
	}
}

// mockPostByID はIDに一致するサンプル投稿をownerの投稿として返す。
// 一致しない場合は先頭のサンプルをそのIDで返す。
func mockPostByID(id, owner string, now time.Time) *model.Post {
	posts := mockPosts(owner, now)
	for _, p := range posts {
		if p.ID == id {
			return p
		}
	}
	p := posts[0]
	p.ID = id
	return p
}

type ownerContextKey struct{}

// ContextWithOwner はデモモードで返すサンプル投稿の所有者をコンテキストに設定する。
// 一覧・集計と同じく、リクエストしたユーザーの投稿として見せるために使う。
func ContextWithOwner(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ownerContextKey{}, userID)
}

// ownerFromContext はサンプル投稿の所有者を返す。未設定ならデモユーザー。
func ownerFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ownerContextKey{}).(string); ok && id != "" {
		return id
	}
	return model.DemoUserID
}
