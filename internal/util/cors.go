package util

import (
	"net/http"
	"strings"
)

// DevOrigins are always accepted in addition to the configured frontend.
var DevOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
}

// WithCORS enforces an origin allowlist. Requests without an Origin header
// (server-to-server, cron) pass through untouched; browser requests from any
// other origin are rejected with 403.
func WithCORS(allowed []string, next http.Handler) http.Handler {
	origins := make(map[string]struct{}, len(allowed)+len(DevOrigins))
	for _, list := range [][]string{allowed, DevOrigins} {
		for _, o := range list {
			o = strings.TrimRight(strings.TrimSpace(o), "/")
			if o != "" {
				origins[o] = struct{}{}
			}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}
		if _, ok := origins[strings.TrimRight(origin, "/")]; !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"origin not allowed"}`))
			return
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-Id")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
