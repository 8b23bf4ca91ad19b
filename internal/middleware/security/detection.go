// Package security sets response headers and flags or blocks hostile requests.
package security

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
)

// Verdict classifies a request.
type Verdict int

const (
	Clean Verdict = iota
	// Suspicious requests are logged and served.
	Suspicious
	// Blocked requests are refused with 400.
	Blocked
)

var (
	// Path traversal and script injection are refused outright.
	blockedPatterns = []string{"../", "..\\", "%2e%2e", "<script", "%3cscript", "javascript:", "etc/passwd", "cmd.exe"}
	// Probing for other software is only noted.
	probePatterns = []string{".env", ".git", ".ssh", "wp-admin", "phpmyadmin", "admin.php", "config.php", "union select"}
	scannerAgents = []string{"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan"}
	unusualMethod = map[string]bool{"TRACE": true, "TRACK": true, "DEBUG": true, "CONNECT": true}
)

// Detector handles suspicious request detection
type Detector struct {
	suspicious     int64
	blocked        int64
	trustedProxies []*net.IPNet
}

func NewDetector() *Detector {
	return &Detector{
		trustedProxies: []*net.IPNet{
			parseCIDR("127.0.0.0/8"),
			parseCIDR("::1/128"),
			parseCIDR("10.0.0.0/8"),
			parseCIDR("172.16.0.0/12"),
			parseCIDR("192.168.0.0/16"),
		},
	}
}

func parseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("failed to parse trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

// Inspect classifies r by its path, query, user agent, method and size.
func (d *Detector) Inspect(r *http.Request) Verdict {
	target := strings.ToLower(r.URL.Path + "?" + r.URL.RawQuery)

	for _, p := range blockedPatterns {
		if strings.Contains(target, p) {
			atomic.AddInt64(&d.blocked, 1)
			return Blocked
		}
	}
	if unusualMethod[r.Method] || len(r.URL.String()) > 2048 {
		atomic.AddInt64(&d.blocked, 1)
		return Blocked
	}

	suspicious := false
	for _, p := range probePatterns {
		if strings.Contains(target, p) {
			suspicious = true
			break
		}
	}
	ua := strings.ToLower(r.Header.Get("User-Agent"))
	for _, a := range scannerAgents {
		if strings.Contains(ua, a) {
			suspicious = true
			break
		}
	}
	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") > 5 {
		suspicious = true
	}

	if suspicious {
		atomic.AddInt64(&d.suspicious, 1)
		return Suspicious
	}
	return Clean
}

// Middleware logs suspicious requests and refuses blocked ones.
func (d *Detector) Middleware(logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch d.Inspect(r) {
			case Blocked:
				logger.WarnContext(r.Context(), "Blocked request",
					"client_ip", d.ExtractClientIP(r), "method", r.Method, "path", r.URL.Path)
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			case Suspicious:
				logger.WarnContext(r.Context(), "Suspicious request",
					"client_ip", d.ExtractClientIP(r), "method", r.Method, "path", r.URL.Path,
					"user_agent", r.Header.Get("User-Agent"))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ExtractClientIP returns the caller address. Forwarded headers are honored
// only when the direct peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil || !d.isTrustedProxy(parsed) {
		return directIP
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" && net.ParseIP(xri) != nil {
		return xri
	}
	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// Counts returns how many requests were flagged and blocked.
func (d *Detector) Counts() (suspicious, blocked int64) {
	return atomic.LoadInt64(&d.suspicious), atomic.LoadInt64(&d.blocked)
}

// AddTrustedProxy adds a trusted proxy network
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}
