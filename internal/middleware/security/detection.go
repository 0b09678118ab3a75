package security

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync/atomic"

	"bilancio/internal/log"
)

// DetectionMetrics tracks security detection events
type DetectionMetrics struct {
	SuspiciousRequests int64
	InvalidIPAttempts  int64
}

// Detector flags probing requests and resolves client addresses behind
// trusted proxies.
type Detector struct {
	suspicious     atomic.Int64
	invalidIP      atomic.Int64
	trustedProxies []netip.Prefix
}

var privateRanges = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("::1/128"),
}

// NewDetector trusts loopback and private ranges as proxies.
func NewDetector() *Detector {
	return &Detector{trustedProxies: append([]netip.Prefix(nil), privateRanges...)}
}

// maxForwardHops is the longest X-Forwarded-For chain accepted silently.
const maxForwardHops = 6

const maxURLLength = 2048

var (
	probeFragments = []string{
		"../", "..\\", ".env", ".git", ".ssh",
		"wp-admin", "phpmyadmin", "admin.php", "config.php",
		"eval(", "javascript:", "<script", "union select",
		"etc/passwd", "cmd.exe",
	}
	scannerAgents = []string{
		"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan",
	}
	blockedMethods = map[string]bool{"TRACE": true, "TRACK": true, "DEBUG": true, "CONNECT": true}
)

// Inspect returns why r looks like a probe, or "" for an ordinary request.
// Flagged requests are counted.
func (d *Detector) Inspect(r *http.Request) string {
	reason := classify(r)
	if reason != "" {
		d.suspicious.Add(1)
	}
	return reason
}

func classify(r *http.Request) string {
	if blockedMethods[r.Method] {
		return "blocked method"
	}
	if len(r.URL.String()) > maxURLLength {
		return "oversized url"
	}
	path := strings.ToLower(r.URL.Path)
	query := strings.ToLower(r.URL.RawQuery)
	for _, frag := range probeFragments {
		if strings.Contains(path, frag) || strings.Contains(query, frag) {
			return "probe pattern " + frag
		}
	}
	agent := strings.ToLower(r.UserAgent())
	for _, s := range scannerAgents {
		if strings.Contains(agent, s) {
			return "scanner agent " + s
		}
	}
	if strings.Count(r.Header.Get("X-Forwarded-For"), ",") >= maxForwardHops {
		return "forwarding chain too long"
	}
	return ""
}

// Middleware logs suspicious requests and rejects diagnostic HTTP methods.
func (d *Detector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reason := d.Inspect(r); reason != "" {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				"reason", reason,
				log.FieldClientIP, d.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldUserAgent, r.UserAgent())
		}
		if blockedMethods[r.Method] {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ExtractClientIP returns the peer address, or the first forwarded address
// when the peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	peer, err := netip.ParseAddr(host)
	if err != nil {
		d.invalidIP.Add(1)
		return host
	}
	if !d.trusted(peer.Unmap()) {
		return host
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}
	return host
}

func (d *Detector) trusted(addr netip.Addr) bool {
	for _, p := range d.trustedProxies {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// GetMetrics returns current security metrics
func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: d.suspicious.Load(),
		InvalidIPAttempts:  d.invalidIP.Load(),
	}
}

// AddTrustedProxy trusts an extra proxy network given in CIDR form.
func (d *Detector) AddTrustedProxy(cidr string) error {
	p, err := netip.ParsePrefix(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, p.Masked())
	return nil
}
