// Package middleware provides the HTTP middlewares wrapping every collector route.
package middleware

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/ubuntu/mail-reports-collector/internal/config"
)

const clfTimeLayout = "02/Jan/2006:15:04:05 -0700"

// AccessLogger writes one line per request in the Apache combined log format.
type AccessLogger struct {
	cfg config.Provider
	now func() time.Time

	mu  sync.Mutex
	out io.Writer
}

// NewAccessLogger returns an AccessLogger writing to out while cfg enables the access log.
func NewAccessLogger(cfg config.Provider, out io.Writer) *AccessLogger {
	return &AccessLogger{
		cfg: cfg,
		now: time.Now,
		out: out,
	}
}

// Wrap logs the requests served by next.
// Whether the access log is enabled is checked for every request, so it can be toggled at runtime.
func (l *AccessLogger) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.cfg.AccessLog() {
			next.ServeHTTP(w, r)
			return
		}

		start := l.now()
		m := httpsnoop.CaptureMetrics(next, w, r)
		l.write(combinedLine(r, start, m.Code, m.Written))
	})
}

func (l *AccessLogger) write(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	// The access log is best effort.
	_, _ = io.WriteString(l.out, line)
}

// combinedLine formats a request like `:remote-addr - :remote-user [:date] ":method :url HTTP/:version" :status
// :size ":referrer" ":user-agent"`, with "-" for unknown values.
func combinedLine(r *http.Request, start time.Time, code int, written int64) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}

	user, _, ok := r.BasicAuth()
	if !ok || user == "" {
		user = "-"
	}

	size := "-"
	if written > 0 {
		size = fmt.Sprint(written)
	}

	return fmt.Sprintf("%s - %s [%s] \"%s %s %s\" %d %s \"%s\" \"%s\"\n",
		orDash(host), user, start.Format(clfTimeLayout),
		r.Method, r.RequestURI, r.Proto,
		code, size,
		quoteSafe(orDash(r.Referer())), quoteSafe(orDash(r.UserAgent())))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// quoteSafe escapes the characters that would break a quoted log field.
func quoteSafe(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`).Replace(s)
}
