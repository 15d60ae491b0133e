package log

import (
	"net/http"
	"time"
)

// HTTPLogEntry describes one served HTTP request
type HTTPLogEntry struct {
	Method     string
	Path       string
	Status     int
	Duration   time.Duration
	Size       int
	RemoteAddr string
	UserAgent  string
	Err        error
}

// LogHTTPRequest writes a served request to the package logger. Server errors
// are logged at error level, client errors at warn, everything else at debug.
func LogHTTPRequest(e HTTPLogEntry) {
	l := GetSugaredLogger().With(
		"method", e.Method,
		"path", e.Path,
		"status", e.Status,
		"duration_ms", e.Duration.Milliseconds(),
		"size", e.Size,
		"remote_addr", e.RemoteAddr,
		"user_agent", e.UserAgent,
	)
	switch {
	case e.Err != nil || e.Status >= http.StatusInternalServerError:
		if e.Err != nil {
			l = l.With("error", e.Err.Error())
		}
		l.Errorf("%s %s %d", e.Method, e.Path, e.Status)
	case e.Status >= http.StatusBadRequest:
		l.Warnf("%s %s %d", e.Method, e.Path, e.Status)
	default:
		l.Debugf("%s %s %d", e.Method, e.Path, e.Status)
	}
}

// statusRecorder captures the status code and body size written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// HTTPMiddleware logs every request passing through next
func HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, req)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		LogHTTPRequest(HTTPLogEntry{
			Method:     req.Method,
			Path:       req.URL.Path,
			Status:     rec.status,
			Duration:   time.Since(start),
			Size:       rec.size,
			RemoteAddr: req.RemoteAddr,
			UserAgent:  req.UserAgent(),
		})
	})
}
