package handlers

import (
	"fmt"
	"net/http"
	"time"
)

// HandleLegacyReset serves GET /ext_reset/{name}, answering in plain text
// for the scripts written against the first gateway firmware.
func HandleLegacyReset(resetter PinResetter, hold time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := resetter.Reset(r.Context(), r.PathValue("name"), hold); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = fmt.Fprint(w, err.Error())
			return
		}
		_, _ = fmt.Fprint(w, "OK")
	}
}

// HandleHello is a liveness probe for the front end itself.
func HandleHello() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintf(w, "Hello, %s!", r.PathValue("name"))
	}
}
