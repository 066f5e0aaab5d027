package httpadapter

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/muraho-rwanda/ai-guide/internal/core/domain"
)

const requestIDHeader = "X-Request-Id"

type requestIDContextKey struct{}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(requestIDContextKey{}).(string)
	return requestID
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDContextKey{}, requestID)
		r = r.WithContext(ctx)
		w.Header().Set(requestIDHeader, requestID)

		next.ServeHTTP(w, r)
	})
}

func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(recorder, r)

		remoteAddr := r.RemoteAddr
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			remoteAddr = host
		}

		logAttrs := []any{
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", recorder.statusCode,
			"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"bytes", recorder.bytesWritten,
			"remote_addr", remoteAddr,
			"user_agent", r.UserAgent(),
		}

		switch {
		case recorder.statusCode >= 500:
			slog.Error("http_request", logAttrs...)
		case recorder.statusCode >= 400:
			slog.Warn("http_request", logAttrs...)
		default:
			slog.Info("http_request", logAttrs...)
		}
	})
}

// tierRateLimiter enforces daily query quotas by access tier. Day pass
// and subscriber share the paid quota. Tiers gate volume only; content
// access is identical across tiers.
type tierRateLimiter struct {
	mu       sync.Mutex
	limiters map[domain.AccessTier]*rate.Limiter

	free   int
	paid   int
	agency int
}

func newTierRateLimiter(freePerDay, paidPerDay, agencyPerDay int) *tierRateLimiter {
	return &tierRateLimiter{
		limiters: make(map[domain.AccessTier]*rate.Limiter),
		free:     freePerDay,
		paid:     paidPerDay,
		agency:   agencyPerDay,
	}
}

func (l *tierRateLimiter) Allow(tier domain.AccessTier) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[tier]
	if !ok {
		perDay := l.quota(tier)
		if perDay < 1 {
			perDay = 1
		}
		// Refill spread over the day; the burst keeps a visitor's
		// short question-answer exchange from stalling between tokens.
		burst := perDay / 10
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(24*time.Hour/time.Duration(perDay)), burst)
		l.limiters[tier] = limiter
	}
	return limiter.Allow()
}

func (l *tierRateLimiter) quota(tier domain.AccessTier) int {
	switch tier {
	case domain.TierDayPass, domain.TierSubscriber:
		return l.paid
	case domain.TierAgency:
		return l.agency
	default:
		return l.free
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytesWritten += n
	return n, err
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}
