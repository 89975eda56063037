package api

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/kuitang/notebook/internal/errs"
	"github.com/kuitang/notebook/internal/obs"
)

// Recovery converts handler panics into a 500 failure envelope.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			obs.From(r.Context()).Error("panic recovered",
				"pkg", "api",
				"error", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)
			writeJSON(w, http.StatusInternalServerError, Envelope{
				Success: false,
				Error:   errs.MessageOf(fmt.Errorf("panic: %v", rec)),
			})
		}()

		next.ServeHTTP(w, r)
	})
}
