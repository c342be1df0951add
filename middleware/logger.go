package middleware

import (
	"context"
	"net/http"
	"time"

	"uta-go/logcolors"
	"uta-go/stats"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

type requestIDKey struct{}

// RequestIDHeader carries the id assigned to each request
const RequestIDHeader = "X-Request-ID"

// RequestID returns the id LoggingMiddleware stored on ctx
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ResponseRecorder captures the status code and body size of a response
type ResponseRecorder struct {
	http.ResponseWriter
	StatusCode int
	BodySize   int
}

func NewResponseRecorder(w http.ResponseWriter) *ResponseRecorder {
	return &ResponseRecorder{ResponseWriter: w, StatusCode: http.StatusOK}
}

func (r *ResponseRecorder) WriteHeader(code int) {
	r.StatusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *ResponseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.BodySize += n
	return n, err
}

func getStatusColor(code int) string {
	switch {
	case code >= 200 && code < 300:
		return logcolors.Green
	case code >= 300 && code < 400:
		return logcolors.Cyan
	case code >= 400 && code < 500:
		return logcolors.Yellow
	case code >= 500:
		return logcolors.Red
	default:
		return logcolors.Reset
	}
}

// LoggingMiddleware tags each request with an id, logs it once it completes
// and records it in the process stats
func LoggingMiddleware(next http.Handler) http.Handler {
	return loggingMiddleware(next, stats.Get())
}

func loggingMiddleware(next http.Handler, st *stats.Stats) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		rec := NewResponseRecorder(w)
		next.ServeHTTP(rec, r)
		elapsed := time.Since(start)

		st.RecordRequest(r.URL.Path)
		st.RecordStatusCode(rec.StatusCode)
		st.RecordResponseTime(elapsed)

		color := getStatusColor(rec.StatusCode)
		log.WithFields(log.Fields{
			"request_id": id,
			"remote":     clientIP(r),
			"bytes":      rec.BodySize,
		}).Infof("%s %s %s %s%d%s %v",
			logcolors.LogRequest, r.Method, r.URL.RequestURI(), color, rec.StatusCode, logcolors.Reset, elapsed.Round(time.Microsecond))
	})
}
