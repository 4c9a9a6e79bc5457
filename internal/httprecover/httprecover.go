// Package httprecover keeps a panicking handler from taking the daemon, and
// with it the real-time threads, down.
package httprecover

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/homegw/homegw-rt/pkg/render"
)

type errorBody struct {
	Details string `json:"details"`
}

func RecoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			err := recover()
			if err == nil {
				return
			}
			// The server uses this sentinel to abort a response on purpose.
			if err == http.ErrAbortHandler {
				panic(err)
			}
			slog.Error("handler panic",
				slog.Any("err", err),
				slog.String("stacktrace", string(debug.Stack())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)
			render.EncodeResponse(w, http.StatusInternalServerError, errorBody{Details: "internal server error"})
		}()
		next.ServeHTTP(w, r)
	})
}
