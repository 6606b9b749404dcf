package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"staffdesk/internal/transport/http/api"
)

// Counter records one hit for key and reports the hits seen in the current
// window plus the time left in it.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int, time.Duration, error)
}

type RateLimitKeyFunc func(r *http.Request) string

type RateLimitOption func(*limiter)

func WithKeyFunc(fn RateLimitKeyFunc) RateLimitOption {
	return func(l *limiter) {
		if fn != nil {
			l.keyFn = fn
		}
	}
}

// WithCounter shares counts through an external store. The in-process
// counter takes over whenever the store errors.
func WithCounter(c Counter) RateLimitOption {
	return func(l *limiter) {
		if c != nil {
			l.shared = c
		}
	}
}

func RateLimit(limit int, window time.Duration, opts ...RateLimitOption) func(http.Handler) http.Handler {
	l := newLimiter("", limit, window, actorOrIPKey, nil)
	for _, opt := range opts {
		opt(l)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.allow(w, r) {
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SensitiveMutationRateLimit throttles login and MFA calls per IP and per
// email, and the mutations that change people or request state per actor.
// Reads are never limited.
func SensitiveMutationRateLimit(baseLimit int, window time.Duration, shared Counter) func(http.Handler) http.Handler {
	authLimit := max(baseLimit/4, 1)
	mutationLimit := max(baseLimit/2, 1)
	authByIP := newLimiter("auth-ip", authLimit, window, clientIPKey, shared)
	authByEmail := newLimiter("auth-email", authLimit, window, AuthEmailOrIPKey("email"), shared)
	byActor := newLimiter("mutation", mutationLimit, window, actorOrIPKey, shared)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch classifyMutation(r) {
			case scopeAuth:
				if !authByIP.allow(w, r) || !authByEmail.allow(w, r) {
					return
				}
			case scopeActor:
				if !byActor.allow(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func AuthEmailOrIPKey(field string) RateLimitKeyFunc {
	field = strings.TrimSpace(field)
	if field == "" {
		field = "email"
	}
	return func(r *http.Request) string {
		email := peekJSONString(r, field)
		if email == "" {
			return clientIPKey(r)
		}
		return "email:" + strings.ToLower(email)
	}
}

func actorOrIPKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return clientIPKey(r)
}

func clientIPKey(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

type limiter struct {
	name   string
	limit  int
	window time.Duration
	keyFn  RateLimitKeyFunc
	shared Counter
	local  *memoryCounter
}

func newLimiter(name string, limit int, window time.Duration, keyFn RateLimitKeyFunc, shared Counter) *limiter {
	if keyFn == nil {
		keyFn = actorOrIPKey
	}
	return &limiter{
		name:   name,
		limit:  limit,
		window: window,
		keyFn:  keyFn,
		shared: shared,
		local:  newMemoryCounter(),
	}
}

func (l *limiter) allow(w http.ResponseWriter, r *http.Request) bool {
	if l.limit <= 0 {
		return true
	}

	key := l.keyFn(r)
	if key == "" {
		key = clientIPKey(r)
	}
	if l.name != "" {
		key = l.name + ":" + key
	}

	count, resetIn := l.hit(r.Context(), key)
	remaining := max(l.limit-count, 0)
	resetSeconds := ceilSeconds(resetIn)

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(resetSeconds))

	if count <= l.limit {
		return true
	}
	w.Header().Set("Retry-After", strconv.Itoa(max(resetSeconds, 1)))
	zap.L().Warn("rate limit exceeded",
		zap.String("key", key),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("limit", l.limit),
	)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

func (l *limiter) hit(ctx context.Context, key string) (int, time.Duration) {
	if l.shared != nil {
		count, resetIn, err := l.shared.Hit(ctx, key, l.window)
		if err == nil {
			return count, resetIn
		}
		zap.L().Debug("shared rate counter unavailable", zap.Error(err))
	}
	count, resetIn, _ := l.local.Hit(ctx, key, l.window)
	return count, resetIn
}

type window struct {
	count int
	reset time.Time
}

type memoryCounter struct {
	mu    sync.Mutex
	hits  map[string]*window
	now   func() time.Time
	sweep time.Time
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{hits: map[string]*window{}, now: time.Now}
}

func (m *memoryCounter) Hit(_ context.Context, key string, length time.Duration) (int, time.Duration, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if now.After(m.sweep) {
		for k, w := range m.hits {
			if now.After(w.reset) {
				delete(m.hits, k)
			}
		}
		m.sweep = now.Add(length)
	}

	w, ok := m.hits[key]
	if !ok || now.After(w.reset) {
		w = &window{reset: now.Add(length)}
		m.hits[key] = w
	}
	w.count++
	return w.count, w.reset.Sub(now), nil
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}

// peekJSONString reads one top-level string field from a JSON body and
// restores the body for the next handler.
func peekJSONString(r *http.Request, field string) string {
	if r == nil || r.Body == nil {
		return ""
	}
	if !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	var value string
	if err := json.Unmarshal(payload[field], &value); err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

type mutationScope int

const (
	scopeNone mutationScope = iota
	scopeAuth
	scopeActor
)

func classifyMutation(r *http.Request) mutationScope {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return scopeNone
	}

	path := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/v1"), "/")
	switch {
	case path == "/auth/login", strings.HasPrefix(path, "/auth/mfa/"):
		return scopeAuth
	case r.Method == http.MethodPost && (path == "/employees" || path == "/requests/fund/submit"):
		return scopeActor
	case r.Method == http.MethodDelete && strings.HasPrefix(path, "/employees/"):
		return scopeActor
	case r.Method == http.MethodPut && strings.HasPrefix(path, "/requests/") && strings.Count(path, "/") >= 3:
		return scopeActor
	}
	return scopeNone
}
