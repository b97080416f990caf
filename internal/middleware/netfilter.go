package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/netip"
)

// WithAllowedNetworks пропускает только запросы с адресов из allowed.
// Остальные получают 403 до того, как запрос дойдёт до обработчиков.
func WithAllowedNetworks(allowed []netip.Prefix) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			addr, ok := remoteAddr(r)
			if ok && contains(allowed, addr) {
				next.ServeHTTP(w, r)
				return
			}
			sugar.Warnw("request from disallowed address", "remote", r.RemoteAddr, "uri", r.RequestURI)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_ = json.NewEncoder(w).Encode(map[string]string{"error_message": "forbidden"})
		})
	}
}

// remoteAddr берёт адрес соединения; заголовки прокси не учитываются.
func remoteAddr(r *http.Request) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	a, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}

func contains(prefixes []netip.Prefix, a netip.Addr) bool {
	for _, p := range prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}
