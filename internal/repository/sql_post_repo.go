package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/notho/socialgen/internal/model"
)

// SQLPostRepo はdatabase/sqlを使用した投稿リポジトリ。
// PostgreSQL（lib/pq, pgx）とSQLiteで同じSQLを使う。
type SQLPostRepo struct {
	db *sql.DB
}

// NewSQLPostRepo はSQLPostRepoを生成する。
func NewSQLPostRepo(db *sql.DB) *SQLPostRepo {
	return &SQLPostRepo{db: db}
}

const postColumns = `id, user_id, title, content, platform, status,
		        image_url, prompt, objective, scheduled_at, published_at,
		        created_at, updated_at`

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(s rowScanner) (*model.Post, error) {
	post := &model.Post{}
	var imageURL, prompt, objective sql.NullString
	var scheduledAt, publishedAt sql.NullTime

	err := s.Scan(
		&post.ID, &post.UserID, &post.Title, &post.Content, &post.Platform, &post.Status,
		&imageURL, &prompt, &objective, &scheduledAt, &publishedAt,
		&post.CreatedAt, &post.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	post.ImageURL = nullStringValue(imageURL)
	post.Prompt = nullStringValue(prompt)
	post.Objective = nullStringValue(objective)
	post.ScheduledAt = nullTimeValue(scheduledAt)
	post.PublishedAt = nullTimeValue(publishedAt)

	return post, nil
}

// Create は投稿を作成する。
func (r *SQLPostRepo) Create(ctx context.Context, post *model.Post) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO posts (`+postColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		post.ID, post.UserID, post.Title, post.Content, string(post.Platform), string(post.Status),
		nullString(post.ImageURL), nullString(post.Prompt), nullString(post.Objective),
		nullTime(post.ScheduledAt), nullTime(post.PublishedAt),
		post.CreatedAt, post.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("投稿の作成に失敗しました: %w", err)
	}
	return nil
}

// FindByID は指定IDの投稿を取得する。見つからない場合はnilを返す。
func (r *SQLPostRepo) FindByID(ctx context.Context, id string) (*model.Post, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1`,
		id,
	)

	post, err := scanPost(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	return post, nil
}

// ListByUserID はユーザーの投稿をcreated_at降順で最大limit件取得する。
func (r *SQLPostRepo) ListByUserID(ctx context.Context, userID string, limit int) ([]*model.Post, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+postColumns+`
		 FROM posts
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	posts := make([]*model.Post, 0)
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("投稿のスキャンに失敗しました: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("投稿一覧の走査に失敗しました: %w", err)
	}

	return posts, nil
}

// Update は投稿の全カラムを書き換える。対象がない場合はErrNotFoundを返す。
func (r *SQLPostRepo) Update(ctx context.Context, post *model.Post) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE posts SET
		    title = $1, content = $2, platform = $3, status = $4,
		    image_url = $5, prompt = $6, objective = $7,
		    scheduled_at = $8, published_at = $9, updated_at = $10
		 WHERE id = $11`,
		post.Title, post.Content, string(post.Platform), string(post.Status),
		nullString(post.ImageURL), nullString(post.Prompt), nullString(post.Objective),
		nullTime(post.ScheduledAt), nullTime(post.PublishedAt), post.UpdatedAt,
		post.ID,
	)
	if err != nil {
		return fmt.Errorf("投稿の更新に失敗しました: %w", err)
	}
	return checkRowsAffected(result)
}

// DeleteByID は指定IDの投稿を削除する。対象がない場合はErrNotFoundを返す。
func (r *SQLPostRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM posts WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("投稿の削除に失敗しました: %w", err)
	}
	return checkRowsAffected(result)
}

// CountByUserID はユーザーの投稿数を状態・プラットフォーム別に集計する。
func (r *SQLPostRepo) CountByUserID(ctx context.Context, userID string) (*model.PostStats, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, platform, COUNT(*)
		 FROM posts
		 WHERE user_id = $1
		 GROUP BY status, platform`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("投稿数の集計に失敗しました: %w", err)
	}
	defer rows.Close()

	stats := &model.PostStats{
		ByStatus:   make(map[model.PostStatus]int),
		ByPlatform: make(map[model.Platform]int),
	}
	for rows.Next() {
		var status model.PostStatus
		var platform model.Platform
		var count int
		if err := rows.Scan(&status, &platform, &count); err != nil {
			return nil, fmt.Errorf("集計結果のスキャンに失敗しました: %w", err)
		}
		stats.Total += count
		stats.ByStatus[status] += count
		stats.ByPlatform[platform] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("集計結果の走査に失敗しました: %w", err)
	}

	return stats, nil
}

func checkRowsAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// nullString は空文字列をNULLとして扱うsql.NullStringを返す。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullTimeValue(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// compile-time interface check
var _ PostRepository = (*SQLPostRepo)(nil)
