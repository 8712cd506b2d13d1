package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

type reqIDKey struct{}

func RequestIDFrom(ctx context.Context) string {
	if s, ok := ctx.Value(reqIDKey{}).(string); ok {
		return s
	}
	return ""
}

// RequestID tags each request with an id, echoed in the response
// header and available via RequestIDFrom. Incoming X-Request-Id is
// honored so ids survive proxies.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), reqIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
