// Package model はドメインモデルを定義する。
package model

import "time"

// PostStatus は投稿の公開状態を表す。
// 状態遷移はサーバー側で強制しない（クライアントが任意に設定する）。
type PostStatus string

const (
	// PostStatusDraft は下書き。
	PostStatusDraft PostStatus = "draft"
	// PostStatusScheduled は予約済み。
	PostStatusScheduled PostStatus = "scheduled"
	// PostStatusPublished は公開済み。
	PostStatusPublished PostStatus = "published"
)

// IsValid はサポート対象の状態かを判定する。
func (s PostStatus) IsValid() bool {
	switch s {
	case PostStatusDraft, PostStatusScheduled, PostStatusPublished:
		return true
	}
	return false
}

// Post はソーシャルメディア投稿を表す。
type Post struct {
	ID          string
	UserID      string
	Title       string
	Content     string
	Platform    Platform
	Status      PostStatus
	ImageURL    string
	Prompt      string
	Objective   string
	ScheduledAt *time.Time
	PublishedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PostPatch は投稿の部分更新内容を表す。
// nilフィールドは変更しない。
type PostPatch struct {
	Title       *string
	Content     *string
	Platform    *Platform
	Status      *PostStatus
	ImageURL    *string
	Prompt      *string
	Objective   *string
	ScheduledAt *time.Time
	PublishedAt *time.Time

	// ClearScheduledAt, ClearPublishedAt は日時を未設定に戻す。
	// 対応する日時フィールドより優先する。
	ClearScheduledAt bool
	ClearPublishedAt bool
}

// IsEmpty は更新対象フィールドが1つもないかを判定する。
func (p PostPatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.Platform == nil &&
		p.Status == nil && p.ImageURL == nil && p.Prompt == nil &&
		p.Objective == nil && p.ScheduledAt == nil && p.PublishedAt == nil &&
		!p.ClearScheduledAt && !p.ClearPublishedAt
}

// Apply はパッチの指定フィールドのみを投稿に反映する。
func (p PostPatch) Apply(post *Post) {
	if p.Title != nil {
		post.Title = *p.Title
	}
	if p.Content != nil {
		post.Content = *p.Content
	}
	if p.Platform != nil {
		post.Platform = *p.Platform
	}
	if p.Status != nil {
		post.Status = *p.Status
	}
	if p.ImageURL != nil {
		post.ImageURL = *p.ImageURL
	}
	if p.Prompt != nil {
		post.Prompt = *p.Prompt
	}
	if p.Objective != nil {
		post.Objective = *p.Objective
	}
	switch {
	case p.ClearScheduledAt:
		post.ScheduledAt = nil
	case p.ScheduledAt != nil:
		t := *p.ScheduledAt
		post.ScheduledAt = &t
	}
	switch {
	case p.ClearPublishedAt:
		post.PublishedAt = nil
	case p.PublishedAt != nil:
		t := *p.PublishedAt
		post.PublishedAt = &t
	}
}

// PostStats はユーザーの投稿数を状態・プラットフォーム別に集計したもの。
type PostStats struct {
	Total      int
	ByStatus   map[PostStatus]int
	ByPlatform map[Platform]int
}
