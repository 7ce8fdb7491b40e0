package api

import (
	"net/http"
	"strings"
	"time"

	"carrental/internal/logging"
	"carrental/internal/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const requestIDHeader = "X-Request-ID"

// observe assigns a request id, then logs and counts the request once it is served.
func observe(logger *zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)

		req := r.WithContext(logging.WithRequestID(r.Context(), requestID))
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		defer func() {
			if p := recover(); p != nil {
				logger.Error().Interface("panic", p).Str("request_id", requestID).Msg("Panic while serving request")
				if !recorder.wroteHeader {
					writeError(recorder, http.StatusInternalServerError, "internal error")
				}
			}

			// ServeMux records the matched pattern on the request it was given.
			route := req.Pattern
			if route == "" {
				route = "unmatched"
			}
			metrics.IncHTTP(route, recorder.status)
			logger.Info().
				Str("request_id", requestID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", route).
				Str("remote", r.RemoteAddr).
				Int("status", recorder.status).
				Dur("duration", time.Since(start)).
				Msg("http request")
		}()

		next.ServeHTTP(recorder, req)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.wroteHeader {
		return
	}
	r.status = status
	r.wroteHeader = true
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	return r.ResponseWriter.Write(b)
}
