package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/notho/socialgen/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）
	GeneralBurst    int           // API全般のバーストサイズ
	GenerationRate  rate.Limit    // 生成系エンドポイントのレート（req/sec）
	GenerationBurst int           // 生成系エンドポイントのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/IP、生成系 20 req/min/IP。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return NewRateLimiterConfig(120, 20)
}

// NewRateLimiterConfig は1分あたりのリクエスト数からレート制限設定を生成する。
// バーストサイズは1分あたりの上限と同じ値にする。
func NewRateLimiterConfig(generalPerMinute, generationPerMinute int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(generalPerMinute) / 60.0),
		GeneralBurst:    generalPerMinute,
		GenerationRate:  rate.Limit(float64(generationPerMinute) / 60.0),
		GenerationBurst: generationPerMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

// clientLimiter はクライアントごとのレートリミッターとアクセス時刻を保持する。
type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// keyedLimiter はキー（クライアントIP）ごとのリミッター群を管理する。
type keyedLimiter struct {
	rate  rate.Limit
	burst int

	mu       sync.RWMutex
	limiters map[string]*clientLimiter
}

func newKeyedLimiter(r rate.Limit, burst int) *keyedLimiter {
	return &keyedLimiter{
		rate:     r,
		burst:    burst,
		limiters: make(map[string]*clientLimiter),
	}
}

// get はキーのリミッターを取得または作成する。
func (kl *keyedLimiter) get(key string) *rate.Limiter {
	kl.mu.RLock()
	cl, exists := kl.limiters[key]
	kl.mu.RUnlock()

	if exists {
		kl.mu.Lock()
		cl.lastAccess = time.Now()
		kl.mu.Unlock()
		return cl.limiter
	}

	kl.mu.Lock()
	defer kl.mu.Unlock()

	// ダブルチェック
	if cl, exists := kl.limiters[key]; exists {
		cl.lastAccess = time.Now()
		return cl.limiter
	}

	limiter := rate.NewLimiter(kl.rate, kl.burst)
	kl.limiters[key] = &clientLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// evict は最終アクセスからttlを超えたエントリを削除する。
func (kl *keyedLimiter) evict(now time.Time, ttl time.Duration) {
	kl.mu.Lock()
	defer kl.mu.Unlock()
	for key, cl := range kl.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(kl.limiters, key)
		}
	}
}

func (kl *keyedLimiter) count() int {
	kl.mu.RLock()
	defer kl.mu.RUnlock()
	return len(kl.limiters)
}

// RateLimiter はクライアントIPごとのレート制限を管理する。
// API全般のレート制限と生成系エンドポイントのレート制限の2種類を提供する。
type RateLimiter struct {
	config RateLimiterConfig

	general    *keyedLimiter
	generation *keyedLimiter

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:     config,
		general:    newKeyedLimiter(config.GeneralRate, config.GeneralBurst),
		generation: newKeyedLimiter(config.GenerationRate, config.GenerationBurst),
		stopCh:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general, "general")
}

// GenerationMiddleware は生成系エンドポイント専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) GenerationMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.generation, "generation")
}

func (rl *RateLimiter) middleware(kl *keyedLimiter, limitType string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)

			if !kl.get(key).Allow() {
				writeRateLimitResponse(w, r, kl.rate)
				slog.Warn("rate limit exceeded",
					slog.String("client_ip", key),
					slog.String("limit_type", limitType),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.count()
}

// GenerationLimiterCount は現在管理されている生成系リミッターのエントリ数を返す。
func (rl *RateLimiter) GenerationLimiterCount() int {
	return rl.generation.count()
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2
	now := time.Now()
	rl.general.evict(now, ttl)
	rl.generation.evict(now, ttl)
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, req *http.Request, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
	}
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, req, http.StatusTooManyRequests, model.NewRateLimitedError())
}
