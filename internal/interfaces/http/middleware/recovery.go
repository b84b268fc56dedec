package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/dreschagin/water-quality-dashboard/pkg/logger"
)

// Recovery перехватывает panic в обработчиках и отвечает 500
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				// http.ErrAbortHandler используется для обрыва ответа и не логируется
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				log.Error("Panic recovered", fmt.Errorf("%v", recovered),
					"path", r.URL.Path,
					"method", r.Method,
					"stack", string(debug.Stack()),
				)
				WriteError(w, http.StatusInternalServerError, "Internal server error", "internal")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
