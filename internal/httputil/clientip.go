package httputil

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the address rate limits and request logs are keyed on.
//
// With trustProxy set, the hosted deployment's reverse proxy is believed:
// the leftmost X-Forwarded-For entry wins, then the first for= of a
// Forwarded header, then X-Real-IP. Header values that are not IP addresses
// are ignored so a client cannot pick an arbitrary limiter bucket name.
// RemoteAddr is used otherwise.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if ip, ok := firstAddr(r.Header.Get("X-Forwarded-For")); ok {
			return ip
		}
		if ip, ok := forwardedFor(r.Header.Get("Forwarded")); ok {
			return ip
		}
		if ip, ok := parseAddr(r.Header.Get("X-Real-IP")); ok {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func firstAddr(list string) (string, bool) {
	first, _, _ := strings.Cut(list, ",")
	return parseAddr(first)
}

// forwardedFor extracts the first for= parameter of an RFC 7239 header, e.g.
// `for=192.0.2.60;proto=https, for="[2001:db8::1]:4711"`.
func forwardedFor(h string) (string, bool) {
	element, _, _ := strings.Cut(h, ",")
	for _, pair := range strings.Split(element, ";") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || !strings.EqualFold(k, "for") {
			continue
		}
		v = strings.Trim(v, `"`)
		if host, _, err := net.SplitHostPort(v); err == nil {
			v = host
		}
		return parseAddr(strings.Trim(v, "[]"))
	}
	return "", false
}

func parseAddr(s string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return addr.String(), true
}
