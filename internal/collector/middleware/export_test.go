package middleware

import "time"

// SetClock replaces the clock used to date access log lines.
func (l *AccessLogger) SetClock(now func() time.Time) {
	l.now = now
}
