package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/copyleftdev/qnopt/internal/logging"
)

// RecoveryMiddleware returns a middleware that recovers from panics and
// answers with a JSON internal error.
func RecoveryMiddleware(logger *logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				fields := map[string]interface{}{
					"error": fmt.Sprint(rec),
					"stack": string(debug.Stack()),
				}
				if r != nil {
					fields["method"] = r.Method
					fields["path"] = r.URL.Path
					fields["query"] = r.URL.RawQuery
				}
				logger.Error("Recovered from panic", fields)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"code":    CodeInternal,
					"message": http.StatusText(http.StatusInternalServerError),
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
