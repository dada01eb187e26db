package httpserver

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/dojo-relay/internal/model"
	"github.com/and161185/dojo-relay/internal/server/edge"
)

// RequestIDHeader carries the correlation ID in both directions.
const RequestIDHeader = edge.RequestIDHeader

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// RequestID reuses a sane incoming X-Request-ID or mints a UUIDv4.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := edge.ResolveRequestID(r.Header.Get(RequestIDHeader))
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(edge.WithRequestID(r.Context(), id)))
	})
}

// Logging returns middleware for structured access logging.
func Logging(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			log.Info("http", edge.Access(r.Context(), r.Method+" "+r.URL.Path, strconv.Itoa(rec.status), time.Since(start), r.RemoteAddr)...)
		})
	}
}

// Recover returns middleware that turns panics into a generic 500.
func Recover(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error("panic", edge.Panic(r.Context(), r.Method+" "+r.URL.Path, rec)...)
					writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{
						Error:   "Internal server error",
						Message: msgUnexpected,
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// chain applies middleware so that the first one listed is outermost.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
