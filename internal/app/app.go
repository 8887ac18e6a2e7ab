// Package app は設定の読み込みから依存関係の組み立て、サーバーの起動までを担う。
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/notho/socialgen/internal/config"
	"github.com/notho/socialgen/internal/database"
	"github.com/notho/socialgen/internal/generation"
	"github.com/notho/socialgen/internal/handler"
	"github.com/notho/socialgen/internal/importer"
	"github.com/notho/socialgen/internal/logger"
	"github.com/notho/socialgen/internal/metrics"
	"github.com/notho/socialgen/internal/middleware"
	"github.com/notho/socialgen/internal/post"
	"github.com/notho/socialgen/internal/repository"
	"github.com/notho/socialgen/internal/security"
	"github.com/notho/socialgen/internal/user"
)

// shutdownTimeout はグレースフルシャットダウンの待機上限。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// .envがあれば読み込み、環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envの読み込み（既存の環境変数は上書きしない）
	if err := loadEnvFile(".env"); err != nil {
		return nil, err
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定のログレベルで再設定
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// loadEnvFile はdotenvファイルを読み込む。ファイルがない場合は何もしない。
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	slog.Info("loaded environment file", slog.String("path", path))
	return nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Bool("demo_mode", cfg.DemoMode()),
		slog.String("driver", string(cfg.DatabaseDriver)),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg)
}

// serve はctxがキャンセルされるまでHTTPサーバーを動かす。
func serve(ctx context.Context, cfg *config.Config) error {
	// 1. ストア接続（デモモードではnil）
	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	// 2. メトリクスレジストリ
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// 3. ルーターの構築
	router, limiter, err := newRouter(cfg, db, reg)
	if err != nil {
		return err
	}
	defer limiter.Stop()

	// 4. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// openStore はストアに接続する。DATABASE_URLが空の場合はnilを返す（デモモード）。
// SQLiteは起動時にマイグレーションを適用する。PostgreSQLはmigrateサブコマンドで適用する。
func openStore(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	if cfg.DemoMode() {
		slog.Warn("DATABASE_URL is not set; running in demo mode with mock data")
		return nil, nil
	}

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.DatabaseDriver == config.DriverSQLite {
		if err := database.RunMigrations(db, cfg.DatabaseDriver); err != nil {
			db.Close()
			return nil, err
		}
	}

	slog.Info("database connection established",
		slog.String("driver", string(cfg.DatabaseDriver)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// newRouter は全依存関係をワイヤリングしたルーターを返す。
// dbがnilの場合はデモモードで構成する。返したRateLimiterは呼び出し側でStopすること。
func newRouter(cfg *config.Config, db *sql.DB, reg *prometheus.Registry) (http.Handler, *middleware.RateLimiter, error) {
	// 1. リポジトリの初期化（nilインターフェースのままならデモモード）
	var (
		postRepo repository.PostRepository
		userRepo repository.UserRepository
	)
	if db != nil {
		postRepo = repository.NewSQLPostRepo(db)
		userRepo = repository.NewSQLUserRepo(db)
	}

	// 2. セキュリティ・メトリクスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()
	collector := metrics.NewCollector(reg)

	// 3. ドメインサービスの初期化
	templates, err := generation.LoadTemplates()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load generation templates: %w", err)
	}
	genService := generation.NewService(templates, generation.Config{
		TextDelay:    cfg.TextGenerationDelay,
		ImageDelay:   cfg.ImageGenerationDelay,
		ImageBaseURL: cfg.ImageBaseURL,
		ImageCount:   cfg.ImageCount,
	}, collector)

	postService := post.NewService(postRepo, ssrfGuard, collector)
	importService := importer.NewService(ssrfGuard, sanitizer, postService, collector, importer.Config{
		Timeout: cfg.ImportTimeout,
		MaxSize: cfg.ImportMaxSize,
	})
	userService := user.NewService(userRepo)

	// 4. ルーターの構築（req/min単位の設定をそのまま渡す）
	limiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitGeneration),
	)

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		StatusRecorder:    collector,

		MetricsHandler:    metrics.Handler(reg),
		ValidationMetrics: collector,

		GenerationService: genService,
		PostService:       handler.NewPostServiceAdapter(postService),
		ImportService:     handler.NewImportServiceAdapter(importService),
		UserService:       userService,

		Status: handler.StatusInfo{
			DemoMode: db == nil,
			Driver:   string(cfg.DatabaseDriver),
		},
	}

	return handler.NewRouter(deps), limiter, nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DemoMode() {
		return errors.New("DATABASE_URL is required for migrate")
	}

	slog.Info("running database migrations",
		slog.String("driver", string(cfg.DatabaseDriver)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	db, err := database.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db, cfg.DatabaseDriver); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// URL形式でない値（SQLiteのパスなど）はそのまま返す。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}
	return u.Redacted()
}
