package middleware

import (
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ClientKeyFunc derives the rate limit key for a request
type ClientKeyFunc func(r *http.Request) string

// ClientKey identifies the caller by the socket peer address.
// Forwarding headers are ignored.
func ClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// NewClientKeyFunc returns a ClientKeyFunc that honours X-Forwarded-For and
// X-Real-IP only when the socket peer is one of trustedProxies. Entries are
// single addresses or CIDR ranges. With no trusted proxies the socket peer
// is always the key.
func NewClientKeyFunc(trustedProxies []string) (ClientKeyFunc, error) {
	nets, err := parseTrustedProxies(trustedProxies)
	if err != nil {
		return nil, err
	}
	if len(nets) == 0 {
		return ClientKey, nil
	}

	trusted := func(ip net.IP) bool {
		for _, n := range nets {
			if n.Contains(ip) {
				return true
			}
		}
		return false
	}

	return func(r *http.Request) string {
		peer := ClientKey(r)
		peerIP := net.ParseIP(peer)
		if peerIP == nil || !trusted(peerIP) {
			return peer
		}

		// Walk right to left; the first hop not added by a trusted proxy is the client
		hops := forwardedFor(r)
		for i := len(hops) - 1; i >= 0; i-- {
			ip := net.ParseIP(hops[i])
			if ip == nil {
				return peer
			}
			if !trusted(ip) {
				return ip.String()
			}
		}
		if len(hops) > 0 {
			return net.ParseIP(hops[0]).String()
		}

		if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
			return ip.String()
		}
		return peer
	}, nil
}

func forwardedFor(r *http.Request) []string {
	var hops []string
	for _, value := range r.Header.Values("X-Forwarded-For") {
		for _, hop := range strings.Split(value, ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
	}
	return hops
}

func parseTrustedProxies(entries []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", entry)
			}
			bits := 128
			if ip.To4() != nil {
				ip = ip.To4()
				bits = 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}
