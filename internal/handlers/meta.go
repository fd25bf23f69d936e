package handlers

import (
	"net"
	"net/http"
	"strings"

	"github.com/sparksfinance/ledger-core/internal/services"
)

// requestMeta extracts the caller metadata recorded on audit entries.
func requestMeta(r *http.Request) services.RequestMeta {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		ip = strings.TrimSpace(strings.Split(ip, ",")[0])
	} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	} else {
		ip = r.RemoteAddr
	}

	return services.RequestMeta{
		IP:        ip,
		UserAgent: r.UserAgent(),
	}
}
