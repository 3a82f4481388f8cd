package mw

import (
	"net/http"

	"github.com/jmylchreest/codecredit-api/internal/version"
)

// APIVersion stamps every response with the server build in X-API-Version.
// The value is Short() plus "+commit" when the commit is known.
func APIVersion(build version.Info) func(http.Handler) http.Handler {
	value := build.Short()
	if build.Commit != "" && build.Commit != "unknown" {
		value += "+" + build.Commit
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-API-Version", value)
			next.ServeHTTP(w, r)
		})
	}
}
