package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/felixge/httpsnoop"
)

// Recover answers an empty 500 to requests whose handler panicked, logging the panic with its stack.
// Nothing is written if the handler already started its response.
func Recover(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var started bool
		ww := httpsnoop.Wrap(w, httpsnoop.Hooks{
			WriteHeader: func(next httpsnoop.WriteHeaderFunc) httpsnoop.WriteHeaderFunc {
				return func(code int) {
					started = true
					next(code)
				}
			},
			Write: func(next httpsnoop.WriteFunc) httpsnoop.WriteFunc {
				return func(b []byte) (int, error) {
					started = true
					return next(b)
				}
			},
		})

		defer func() {
			x := recover()
			if x == nil {
				return
			}
			// net/http handles this one by aborting the response silently.
			if err, ok := x.(error); ok && errors.Is(err, http.ErrAbortHandler) {
				panic(x)
			}

			log.Error("Unhandled panic while serving request", "req_id", RequestIDFromContext(r.Context()),
				"method", r.Method, "path", r.URL.Path, "panic", x, "stack", string(debug.Stack()))
			if !started {
				w.WriteHeader(http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(ww, r)
	})
}
