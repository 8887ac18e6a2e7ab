package security

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

var (
	// ErrInvalidURL はURLの形式が不正な場合に返される。
	ErrInvalidURL = errors.New("invalid URL")
	// ErrBlockedURL はURLの宛先がブロック対象の場合に返される。
	ErrBlockedURL = errors.New("blocked URL")
)

// SSRFGuardService はSSRF防止機能のインターフェースを定義する。
// インポート時の外部フェッチと、投稿の画像URL検証で使用される。
type SSRFGuardService interface {
	// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	// プライベートIP、ループバック、リンクローカル、メタデータIPへの接続は
	// DNS解決後にDialerレベルで拒否される。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateURL はDNS解決を伴わない静的な検証を行う。
	// 形式エラーはErrInvalidURL、宛先のブロックはErrBlockedURLをラップして返す。
	ValidateURL(rawURL string) error
}

// allowedSchemes はSSRF防止で許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks はValidateURLで拒否するネットワーク範囲。
var blockedNetworks = mustParseCIDRs(
	// プライベートIPアドレス (RFC 1918)
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	// ループバック
	"127.0.0.0/8",
	// リンクローカル（169.254.169.254のメタデータIPを含む）
	"169.254.0.0/16",
	// カレントネットワーク
	"0.0.0.0/8",
	// IPv6ループバック、リンクローカル、ユニークローカル
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []net.IPNet {
	networks := make([]net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		networks = append(networks, *network)
	}
	return networks
}

// blockedHostnames はブロック対象のホスト名。
var blockedHostnames = []string{
	"localhost",
	"metadata.google.internal",
}

// ssrfGuard はSSRFGuardServiceの実装。
type ssrfGuard struct {
	allowedPorts []int
}

// NewSSRFGuard はSSRFGuardServiceの新しいインスタンスを生成する。
// 外部接続は80番と443番ポートのみ許可する。
func NewSSRFGuard() *ssrfGuard {
	return &ssrfGuard{allowedPorts: []int{80, 443}}
}

// NewSafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// レスポンスサイズの上限は呼び出し側でio.LimitReaderにより制限すること。
func (g *ssrfGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(g.allowedPorts...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はURLの安全性を事前に検証する。
// DNS再バインディングはNewSafeClientのDialer検証で防止する。
func (g *ssrfGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: empty URL", ErrInvalidURL)
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("%w: disallowed scheme %q (allowed: %v)", ErrInvalidURL, scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("%w: empty host in %s", ErrInvalidURL, rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("%w: IP address %s", ErrBlockedURL, ip.String())
		}
		return nil
	}

	if isBlockedHostname(host) {
		return fmt.Errorf("%w: host %s", ErrBlockedURL, host)
	}

	return nil
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isBlockedIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを検証する。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

func isBlockedHostname(host string) bool {
	lower := strings.TrimSuffix(strings.ToLower(host), ".")
	for _, blocked := range blockedHostnames {
		if lower == blocked || strings.HasSuffix(lower, "."+blocked) {
			return true
		}
	}
	return false
}

// compile-time interface check
var (
	_ SSRFGuardService = (*ssrfGuard)(nil)
	_ TextSanitizer    = (*textSanitizer)(nil)
)
