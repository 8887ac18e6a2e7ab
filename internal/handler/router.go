package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/notho/socialgen/internal/middleware"
	"github.com/notho/socialgen/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.StatusRecorder

	// メトリクス
	MetricsHandler    http.Handler
	ValidationMetrics ValidationMetrics

	// サービス
	GenerationService GenerationServiceInterface
	PostService       PostServiceInterface
	ImportService     ImportServiceInterface
	UserService       UserServiceInterface

	Status StatusInfo
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Recovery → Logging → Metrics → SecurityHeaders → CORS
//	→ RateLimit(General) → Identity
//
// /health と /metrics はレート制限とユーザー識別の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	genHandler := NewGenerationHandler(deps.GenerationService)
	postHandler := NewPostHandler(deps.PostService)
	importHandler := NewImportHandler(deps.ImportService)
	validationHandler := NewValidationHandler(deps.ValidationMetrics)
	userHandler := NewUserHandler(deps.UserService)
	systemHandler := NewSystemHandler(deps.Status)

	// --- 制限なしのルート ---
	r.Get("/health", systemHandler.Health)
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- API ---
	// ミドルウェアスタック: RateLimit(General) → Identity
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewIdentityMiddleware(model.DemoUserID))

		r.Route("/api", func(r chi.Router) {
			// 生成系（生成用レート制限を追加）
			r.Group(func(r chi.Router) {
				r.Use(deps.RateLimiter.GenerationMiddleware())
				r.Post("/generate-text", genHandler.GenerateText)
				r.Post("/generate-images", genHandler.GenerateImages)
			})

			r.Post("/validate", validationHandler.Validate)

			r.Route("/posts", func(r chi.Router) {
				r.Get("/", postHandler.ListPosts)
				r.Post("/", postHandler.CreatePost)
				r.Get("/stats", postHandler.PostStats)

				// POST /api/posts/import - 外部フィードを取得するため生成用レート制限を追加
				r.With(deps.RateLimiter.GenerationMiddleware()).Post("/import", importHandler.ImportPosts)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", postHandler.GetPost)
					r.Put("/", postHandler.UpdatePost)
					r.Delete("/", postHandler.DeletePost)
				})
			})

			r.Get("/users/{id}", userHandler.GetUser)
			r.Get("/platforms", systemHandler.Platforms)
			r.Get("/status", systemHandler.Status)
		})
	})

	return r
}
