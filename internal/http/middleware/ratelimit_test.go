package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/time/rate"
)

// limitedEngine serves /retrieve, /imports and /health behind rl.
func limitedEngine(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), rl.Handler())
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.POST("/retrieve", ok)
	r.POST("/imports", ok)
	r.GET("/health", ok)
	return r
}

func hit(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "203.0.113.9:12345"
	r.ServeHTTP(w, req)
	return w
}

func TestKeyByUserOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "203.0.113.9:12345"

	key := KeyByUserOrIP()
	if got := key(c); got != "ip:203.0.113.9" {
		t.Fatalf("anonymous key = %q", got)
	}
	c.Set("userID", "u123")
	if got := key(c); got != "user:u123" {
		t.Fatalf("user key = %q", got)
	}
}

func TestRateLimiter_Config(t *testing.T) {
	rl := NewRateLimiter(1, 0, KeyByUserOrIP())
	if rl.burst != 1 {
		t.Fatalf("burst <= 0 should become 1, got %d", rl.burst)
	}

	rl = NewRateLimiter(1, 5, KeyByUserOrIP()).
		Cost("/imports", 3).
		Cost("/huge", 50).
		Cost("/free", 0)
	for route, want := range map[string]int{"/imports": 3, "/huge": 5, "/free": 1, "/other": 1} {
		if got := rl.cost(route); got != want {
			t.Fatalf("cost(%s) = %d, want %d", route, got, want)
		}
	}
}

func TestRateLimiter_VisitorsAndSweep(t *testing.T) {
	rl := NewRateLimiter(1, 1, KeyByUserOrIP())
	if a, b := rl.getVisitor("k"), rl.getVisitor("k"); a != b {
		t.Fatalf("bucket not reused")
	}

	rl.ttl = time.Nanosecond
	rl.mu.Lock()
	rl.visitors["idle"] = &visitor{limiter: rate.NewLimiter(1, 1), lastSeen: time.Now().Add(-time.Hour)}
	rl.cleanupN = sweepEvery - 1
	rl.mu.Unlock()

	rl.getVisitor("fresh")

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["idle"]; ok {
		t.Fatalf("idle bucket survived the sweep")
	}
	if _, ok := rl.visitors["fresh"]; !ok || rl.cleanupN != 0 {
		t.Fatalf("fresh bucket missing or counter not reset (%d)", rl.cleanupN)
	}
}

func TestRateLimiter_Throttles(t *testing.T) {
	r := limitedEngine(NewRateLimiter(1, 1, KeyByUserOrIP()).Exempt("/health"))

	if w := hit(r, http.MethodPost, "/retrieve"); w.Code != http.StatusOK {
		t.Fatalf("first query -> %d", w.Code)
	}
	w := hit(r, http.MethodPost, "/retrieve")
	if w.Code != http.StatusTooManyRequests || w.Header().Get("Retry-After") != "1" {
		t.Fatalf("second query -> %d retry-after=%q", w.Code, w.Header().Get("Retry-After"))
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body["code"] != "rate_limited" || body["request_id"] != w.Header().Get(requestIDHeader) {
		t.Fatalf("body = %v", body)
	}

	for i := 0; i < 3; i++ {
		if w := hit(r, http.MethodGet, "/health"); w.Code != http.StatusOK {
			t.Fatalf("exempt route -> %d", w.Code)
		}
	}
}

func TestRateLimiter_ImportCost(t *testing.T) {
	// Refill takes 1000s per token, so the bucket stays drained.
	r := limitedEngine(NewRateLimiter(0.001, 3, KeyByUserOrIP()).Cost("/imports", 3))
	before := testutil.ToFloat64(httpThrottled.WithLabelValues("/retrieve"))

	if w := hit(r, http.MethodPost, "/imports"); w.Code != http.StatusOK {
		t.Fatalf("import -> %d", w.Code)
	}
	w := hit(r, http.MethodPost, "/retrieve")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("query after import -> %d", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "1000" {
		t.Fatalf("Retry-After = %q", got)
	}
	if got := testutil.ToFloat64(httpThrottled.WithLabelValues("/retrieve")); got != before+1 {
		t.Fatalf("throttled = %v, want %v", got, before+1)
	}
}

func TestRetryAfter(t *testing.T) {
	for wait, want := range map[time.Duration]int{
		0:                       1,
		300 * time.Millisecond:  1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
	} {
		if got := retryAfter(wait); got != want {
			t.Fatalf("retryAfter(%v) = %d, want %d", wait, got, want)
		}
	}
}
