package middleware

import (
	"net/http"
	"strings"
)

// ContentType requires a JSON body on POST, PATCH and PUT requests that carry one
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPatch, http.MethodPut:
		default:
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength == 0 {
			next.ServeHTTP(w, r)
			return
		}

		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			respondError(w, http.StatusBadRequest, "Bad Request", "Content-Type header is required")
			return
		}
		if !strings.HasPrefix(strings.ToLower(contentType), "application/json") {
			respondError(w, http.StatusUnsupportedMediaType, "Unsupported Media Type", "Content-Type must be application/json")
			return
		}
		next.ServeHTTP(w, r)
	})
}
