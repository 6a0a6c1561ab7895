package api

import (
	"fmt"
	"net/http"
)

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("handler panicked", fmt.Errorf("panic: %v", rec), map[string]interface{}{
					"method": r.Method,
					"path":   r.URL.Path,
				})
				writeError(w, http.StatusInternalServerError, "internal error", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
