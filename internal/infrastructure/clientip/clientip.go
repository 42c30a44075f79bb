// Package clientip resolves the true client network address under proxy
// trust rules. Forwarding headers are honored only when the immediate
// connection peer sits inside a configured trusted network range, so an
// untrusted client cannot spoof its identity past the rate limiter.
package clientip

import (
	"net/http"
	"net/netip"
	"strings"
)

// Resolver holds the trusted proxy configuration.
type Resolver struct {
	trustHeaders bool
	trusted      []netip.Prefix
}

// NewResolver parses the configured CIDRs. Malformed entries are skipped.
func NewResolver(trustHeaders bool, cidrs []string) *Resolver {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		value := strings.TrimSpace(cidr)
		if value == "" {
			continue
		}
		if prefix, err := netip.ParsePrefix(value); err == nil {
			prefixes = append(prefixes, prefix.Masked())
			continue
		}
		// Bare addresses are accepted as single-host ranges.
		if addr, err := netip.ParseAddr(value); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(addr, addr.BitLen()))
		}
	}
	return &Resolver{trustHeaders: trustHeaders, trusted: prefixes}
}

// Resolve returns the client address for an incoming request. peerAddr is
// the raw connection peer ("host:port" or bare host).
func (r *Resolver) Resolve(peerAddr string, headers http.Header) string {
	peer := parseAddr(peerAddr)
	if !r.trustHeaders || peer == nil || !r.isTrusted(*peer) {
		if peer != nil {
			return peer.String()
		}
		if peerAddr != "" {
			return peerAddr
		}
		return "unknown"
	}

	// Header priority mirrors the edge deployment: Cloudflare first, then
	// Akamai-style True-Client-IP, then the forwarding chain.
	for _, header := range []string{"CF-Connecting-IP", "True-Client-IP"} {
		if addr := parseAddr(headers.Get(header)); addr != nil {
			return addr.String()
		}
	}

	if chain := parseForwardedChain(headers.Get("X-Forwarded-For")); len(chain) > 0 {
		hops := append(chain, *peer)
		for i := len(hops) - 1; i >= 0; i-- {
			if !r.isTrusted(hops[i]) {
				return hops[i].String()
			}
		}
		return chain[0].String()
	}

	if addr := parseAddr(headers.Get("X-Real-IP")); addr != nil {
		return addr.String()
	}

	return peer.String()
}

func (r *Resolver) isTrusted(addr netip.Addr) bool {
	for _, prefix := range r.trusted {
		if prefix.Contains(addr.Unmap()) {
			return true
		}
	}
	return false
}

func parseAddr(value string) *netip.Addr {
	candidate := strings.TrimSpace(value)
	if candidate == "" {
		return nil
	}
	if comma := strings.IndexByte(candidate, ','); comma >= 0 {
		candidate = strings.TrimSpace(candidate[:comma])
	}
	if addrPort, err := netip.ParseAddrPort(candidate); err == nil {
		addr := addrPort.Addr().Unmap()
		return &addr
	}
	if addr, err := netip.ParseAddr(strings.Trim(candidate, "[]")); err == nil {
		unmapped := addr.Unmap()
		return &unmapped
	}
	return nil
}

func parseForwardedChain(value string) []netip.Addr {
	if value == "" {
		return nil
	}
	var chain []netip.Addr
	for _, token := range strings.Split(value, ",") {
		if addr := parseAddr(token); addr != nil {
			chain = append(chain, *addr)
		}
	}
	return chain
}
