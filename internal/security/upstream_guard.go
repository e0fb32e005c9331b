package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// upstreamSchemes は上流URLとして許可するスキーム。
var upstreamSchemes = []string{"http", "https"}

// privateNetworks は上流として接続を許可しないネットワーク範囲。
var privateNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16", // クラウドメタデータ 169.254.169.254 を含む
	"0.0.0.0/8",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR: %s: %v", cidr, err))
		}
		nets = append(nets, n)
	}
	return nets
}

// UpstreamGuard は上流フィードへのHTTPアクセスを制限する。
// allowPrivateがtrueの場合はローカル開発用に制限を外す。
type UpstreamGuard struct {
	allowPrivate bool
}

// NewUpstreamGuard はUpstreamGuardの新しいインスタンスを生成する。
func NewUpstreamGuard(allowPrivate bool) *UpstreamGuard {
	return &UpstreamGuard{allowPrivate: allowPrivate}
}

// NewClient は上流アクセス用のHTTPクライアントを生成する。
// 制限が有効な場合はsafeurlのクライアントを返し、
// DNS解決後のIPアドレスに対してもプライベート範囲への接続を拒否する。
func (g *UpstreamGuard) NewClient(timeout time.Duration) *http.Client {
	if g.allowPrivate {
		return &http.Client{Timeout: timeout}
	}

	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(upstreamSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL は上流URLを起動時に静的検証する。
// スキーム、ホストの有無、IPリテラルとlocalhostの拒否を確認する。
func (g *UpstreamGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("disallowed scheme: %q (allowed: %v)", parsed.Scheme, upstreamSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if g.allowPrivate {
		return nil
	}

	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}
	if ip := net.ParseIP(host); ip != nil && isPrivateIP(ip) {
		return fmt.Errorf("blocked IP address: %s", ip.String())
	}
	return nil
}

func isPrivateIP(ip net.IP) bool {
	for _, n := range privateNetworks {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
