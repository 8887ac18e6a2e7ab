// Package generation は投稿テキストと画像のモック生成を提供する。
//
// 生成結果は静的テーブルから組み立て、外部サービスは呼び出さない。
// 実際の生成処理の待ち時間を模すため、設定された遅延の後に結果を返す。
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/notho/socialgen/internal/model"
)

const (
	// DefaultTone は既定のトーン。
	DefaultTone = "professional"
	// DefaultImageStyle は既定の画像スタイル。
	DefaultImageStyle = "professional"
	// DefaultImagePlatform は画像生成で既定とするプラットフォーム。
	DefaultImagePlatform = model.PlatformInstagram
)

// Config は生成処理の設定。
type Config struct {
	TextDelay    time.Duration
	ImageDelay   time.Duration
	ImageBaseURL string
	ImageCount   int
}

// GenerationMetrics は生成回数の記録先。
type GenerationMetrics interface {
	RecordGeneration(kind, platform string)
}

// TextRequest はテキスト生成の入力。
type TextRequest struct {
	Prompt    string
	Platform  model.Platform
	Objective string
	Tone      string
}

// TextResult はテキスト生成の結果。
type TextResult struct {
	Text           string
	Platform       model.Platform
	Objective      string
	Tone           string
	CharacterCount int
	MaxCharacters  int
}

// ImageRequest は画像生成の入力。
type ImageRequest struct {
	Prompt   string
	Style    string
	Platform model.Platform
}

// Image は生成されたプレースホルダー画像。
type Image struct {
	ID         string
	URL        string
	Prompt     string
	Style      string
	Platform   model.Platform
	Dimensions model.Dimensions
}

// Service はテキストと画像のモック生成を行う。
type Service struct {
	templates *Templates
	config    Config
	metrics   GenerationMetrics
	wait      func(ctx context.Context, d time.Duration) error
}

// NewService はServiceの新しいインスタンスを生成する。metricsはnilでもよい。
func NewService(templates *Templates, cfg Config, metrics GenerationMetrics) *Service {
	if cfg.ImageCount < 1 {
		cfg.ImageCount = 1
	}
	return &Service{
		templates: templates,
		config:    cfg,
		metrics:   metrics,
		wait:      sleepContext,
	}
}

// GenerateText はプロンプトからプラットフォーム向けの投稿テキストを生成する。
// 目的の既定値はbrand_awareness、トーンの既定値はprofessional。
// 結果はプラットフォームの文字数上限に収まるよう切り詰められる。
func (s *Service) GenerateText(ctx context.Context, req TextRequest) (*TextResult, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, model.NewMissingFieldError("prompt")
	}
	if req.Platform == "" {
		return nil, model.NewMissingFieldError("platform")
	}
	spec, ok := model.LookupPlatform(req.Platform)
	if !ok {
		return nil, model.NewInvalidPlatformError(string(req.Platform))
	}

	objective := req.Objective
	if objective == "" {
		objective = s.templates.DefaultObjective
	}
	tone := req.Tone
	if tone == "" {
		tone = DefaultTone
	}

	body := strings.ReplaceAll(s.templates.template(objective, spec.Platform), "{topic}", prompt)
	text := Truncate(body+"\n\n"+s.templates.closing(tone), spec.MaxCharacters)

	if err := s.wait(ctx, s.config.TextDelay); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordGeneration("text", string(spec.Platform))
	}
	slog.Debug("text generated",
		slog.String("platform", string(spec.Platform)),
		slog.String("objective", objective),
		slog.String("tone", tone),
	)

	return &TextResult{
		Text:           text,
		Platform:       spec.Platform,
		Objective:      objective,
		Tone:           tone,
		CharacterCount: utf8.RuneCountInString(text),
		MaxCharacters:  spec.MaxCharacters,
	}, nil
}

// GenerateImages はプロンプトからプレースホルダー画像のURLを生成する。
// スタイルの既定値はprofessional、プラットフォームの既定値はinstagram。
func (s *Service) GenerateImages(ctx context.Context, req ImageRequest) ([]Image, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, model.NewMissingFieldError("prompt")
	}

	style := req.Style
	if style == "" {
		style = DefaultImageStyle
	}
	if !s.templates.HasStyle(style) {
		return nil, model.NewInvalidStyleError(style)
	}

	platform := req.Platform
	if platform == "" {
		platform = DefaultImagePlatform
	}
	spec, ok := model.LookupPlatform(platform)
	if !ok {
		return nil, model.NewInvalidPlatformError(string(platform))
	}

	images := make([]Image, 0, s.config.ImageCount)
	for i := 0; i < s.config.ImageCount; i++ {
		id := uuid.New().String()
		seed := fmt.Sprintf("%s-%d-%s", style, i+1, id[:8])
		images = append(images, Image{
			ID:         id,
			URL:        fmt.Sprintf("%s/seed/%s/%d/%d", s.config.ImageBaseURL, seed, spec.Image.Width, spec.Image.Height),
			Prompt:     prompt,
			Style:      style,
			Platform:   spec.Platform,
			Dimensions: spec.Image,
		})
	}

	if err := s.wait(ctx, s.config.ImageDelay); err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordGeneration("image", string(spec.Platform))
	}

	return images, nil
}

// Truncate はテキストをlimitルーン以内に収める。
// 超過する場合は先頭limit-3ルーンに"..."を付ける。
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	if limit <= 3 {
		return string([]rune(text)[:limit])
	}
	return string([]rune(text)[:limit-3]) + "..."
}

// sleepContext はdだけ待機する。待機中にctxがキャンセルされた場合はctx.Err()を返す。
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
