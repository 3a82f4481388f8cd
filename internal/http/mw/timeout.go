package mw

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"
)

// TimeoutConfig defines per-path request deadlines.
type TimeoutConfig struct {
	// Default applies to every path not matched below.
	Default time.Duration
	// Extended applies to paths containing one of ExtendedPatterns, such as
	// code execution which waits on the gateway.
	Extended         time.Duration
	ExtendedPatterns []string
	// SkipPatterns are served without a deadline.
	SkipPatterns []string
}

func (c TimeoutConfig) timeoutFor(path string) (time.Duration, bool) {
	for _, p := range c.SkipPatterns {
		if strings.Contains(path, p) {
			return 0, false
		}
	}
	for _, p := range c.ExtendedPatterns {
		if strings.Contains(path, p) {
			return c.Extended, true
		}
	}
	return c.Default, c.Default > 0
}

// Timeout returns a middleware that bounds each request by its path's
// deadline and answers 504 when the handler does not finish in time.
func Timeout(cfg TimeoutConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			timeout, ok := cfg.timeoutFor(r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			done := make(chan struct{})
			panicked := make(chan string, 1)

			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicked <- fmt.Sprintf("%v\n\nOriginal stack trace:\n%s", p, debug.Stack())
					}
				}()
				next.ServeHTTP(w, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
			case p := <-panicked:
				// Re-raise on the serving goroutine so Recoverer sees it.
				panic(p)
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					w.WriteHeader(http.StatusGatewayTimeout)
				}
			}
		})
	}
}
