package http

import (
	"crypto/subtle"
	"net/http"
	"stall-ticket/common/errs"
	"time"
)

func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, timeout, "request timeout")
	}
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Pin")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// AdminPinMiddleware gates the admin surface behind the shared stall PIN.
func AdminPinMiddleware(pin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Admin-Pin")

			if pin == "" || subtle.ConstantTimeCompare([]byte(got), []byte(pin)) != 1 {
				writeErrorResponse(w, &errs.HttpError{Code: http.StatusUnauthorized, Message: "Invalid PIN"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
