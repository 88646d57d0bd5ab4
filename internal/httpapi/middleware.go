package httpapi

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"
)

type ctxKey int

const adminNameKey ctxKey = iota

// adminFrom returns the authenticated admin name set by requireAdmin.
func adminFrom(ctx context.Context) string {
	name, _ := ctx.Value(adminNameKey).(string)
	return name
}

func loggingMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().UTC()
		next.ServeHTTP(w, r)
		logger.Printf("%s %s from=%s dur=%s", r.Method, r.URL.Path, r.RemoteAddr, time.Since(start))
	})
}

// corsMiddleware answers preflight requests and stamps the allowed origin
// so the browser frontend can call the API directly.
func corsMiddleware(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const bearerPrefix = "bearer "

// requireAdmin validates the Bearer token and stores the admin name in the
// request context. Administrative routes never reach their handler without
// a valid token.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := extractBearer(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid authorization")
			return
		}
		name, err := s.tokens.ValidateAccess(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid authorization")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), adminNameKey, name)))
	}
}

// extractBearer returns the Bearer token from the Authorization header, or
// "" if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
