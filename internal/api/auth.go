package api

import (
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"

	"carrental/internal/config"
)

const (
	permReadBookings   = "read:bookings"
	permWriteBookings  = "write:bookings"
	permExportBookings = "export:bookings"
	clientKeyUnknown   = "unknown"
)

var (
	errUnauthenticated  = errors.New("missing or invalid api key")
	errPermissionDenied = errors.New("permission denied")
)

// HTTPAuth checks API keys, per-route permissions and per-client rate limits.
type HTTPAuth struct {
	cfg     config.APIConfig
	clients []config.APIClientKey
	limiter *rateLimiter
}

func NewHTTPAuth(cfg config.APIConfig) *HTTPAuth {
	return &HTTPAuth{
		cfg:     cfg,
		clients: cfg.Auth.APIKeys,
		limiter: newRateLimiter(cfg.RateLimit),
	}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}
		if a.cfg.Auth.Enabled {
			if err := a.authorize(r); err != nil {
				status := http.StatusUnauthorized
				if errors.Is(err, errPermissionDenied) {
					status = http.StatusForbidden
				}
				writeError(w, status, err.Error())
				return
			}
		}
		if !a.limiter.allow(a.clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) authorize(r *http.Request) error {
	apiKey := strings.TrimSpace(r.Header.Get(a.apiKeyHeader()))
	if apiKey == "" {
		return errUnauthenticated
	}

	client, ok := a.lookup(apiKey)
	if !ok {
		return errUnauthenticated
	}
	return checkPermissions(client, requiredPermission(r))
}

// lookup compares against every key so the response time does not depend on which key matched.
func (a *HTTPAuth) lookup(apiKey string) (config.APIClientKey, bool) {
	var (
		found config.APIClientKey
		ok    bool
	)
	for _, c := range a.clients {
		if subtle.ConstantTimeCompare([]byte(c.Key), []byte(apiKey)) == 1 {
			found, ok = c, true
		}
	}
	return found, ok
}

// checkPermissions treats an empty permission list as allow-all.
func checkPermissions(client config.APIClientKey, required string) error {
	if required == "" || len(client.Permissions) == 0 {
		return nil
	}
	for _, p := range client.Permissions {
		if strings.TrimSpace(p) == required {
			return nil
		}
	}
	return errPermissionDenied
}

func requiredPermission(r *http.Request) string {
	if !strings.HasPrefix(r.URL.Path, "/api/v1/") {
		return ""
	}
	if strings.HasSuffix(r.URL.Path, "/export.xlsx") {
		return permExportBookings
	}
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return permReadBookings
	}
	return permWriteBookings
}

func (a *HTTPAuth) apiKeyHeader() string {
	if h := strings.TrimSpace(a.cfg.Auth.HeaderAPIKey); h != "" {
		return h
	}
	return "x-api-key"
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.apiKeyHeader())); apiKey != "" {
		return apiKey
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return clientKeyUnknown
}
