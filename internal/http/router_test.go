package httpapi

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-kb-retrieval/internal/config"
	"github.com/tbourn/go-kb-retrieval/internal/domain"
	"github.com/tbourn/go-kb-retrieval/internal/ingest"
	"github.com/tbourn/go-kb-retrieval/internal/matchers"
	"github.com/tbourn/go-kb-retrieval/internal/services"
	"github.com/tbourn/go-kb-retrieval/internal/store/memstore"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:routerdb_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Chat{}, &domain.Message{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig(base string) config.Config {
	return config.Config{
		APIBasePath: base,
		RateRPS:     100,
		RateBurst:   20,
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
		Retrieval:   config.RetrievalConfig{DefaultTopK: 6},
		Import:      config.ImportConfig{MaxBytes: 1 << 20},
	}
}

func newEngine(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)
	kb := matchers.Builtin()
	svc := services.NewRetrievalService(memstore.New(), cfg.Retrieval,
		services.WithKnowledgeBase(kb),
		services.WithImportYielder(ingest.YieldFunc(func(context.Context) error { return nil })),
	)
	t.Cleanup(func() { _ = svc.Close() })

	r := gin.New()
	RegisterRoutes(r, Deps{DB: db, Retrieval: svc, Dictionary: kb, Log: zerolog.Nop()}, cfg)
	return r, db
}

func do(r http.Handler, method, path, body string, hdr map[string]string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newEngine(t, testConfig("/api/v1"))

	w := do(r, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}

	w = do(r, http.MethodGet, "/metrics", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "kb_retrieval_duration_seconds") {
		t.Fatalf("GET /metrics bad: code=%d", w.Code)
	}

	if w := do(r, http.MethodGet, "/nope", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/health", "", nil); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/swagger/index.html", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("swagger must be off by default, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig("/api/v2")
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newEngine(t, cfg)

	w := do(r, http.MethodGet, "/health", "", map[string]string{"Origin": "http://example.com"})
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_KnowledgeFlow(t *testing.T) {
	r, _ := newEngine(t, testConfig("/api/v1"))

	payload := `[{"id":"Rivers_0","title":"Rivers","text":"The Nile is a major river flowing north through Africa. It is very long."}]`
	if w := do(r, http.MethodPost, "/api/v1/imports", payload, nil); w.Code != http.StatusOK {
		t.Fatalf("import -> %d %s", w.Code, w.Body.String())
	}

	w := do(r, http.MethodGet, "/api/v1/stats", "", nil)
	var st services.CorpusStats
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil || st.Chunks != 1 || st.Entities == 0 {
		t.Fatalf("stats -> %d %s", w.Code, w.Body.String())
	}

	// gzip-encoded when the client asks for it
	w = do(r, http.MethodPost, "/api/v1/retrieve", `{"query":"nile river"}`, map[string]string{"Accept-Encoding": "gzip"})
	if w.Code != http.StatusOK || w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("retrieve -> %d enc=%q", w.Code, w.Header().Get("Content-Encoding"))
	}
	zr, err := gzip.NewReader(w.Body)
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	raw, _ := io.ReadAll(zr)
	if !strings.Contains(string(raw), `"id":"Rivers_0"`) {
		t.Fatalf("retrieve body: %s", raw)
	}

	w = do(r, http.MethodGet, "/api/v1/chunks/Rivers_0", "", nil)
	if w.Code != http.StatusOK || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("chunk -> %d %v", w.Code, w.Header())
	}
	if cc := w.Header().Get("Cache-Control"); cc == "no-store" {
		t.Fatalf("chunks should stay cacheable, got Cache-Control %q", cc)
	}
	if w := do(r, http.MethodDelete, "/api/v1/corpus", "", nil); w.Code != http.StatusNoContent {
		t.Fatalf("reset -> %d", w.Code)
	}
}

func TestRegisterRoutes_ChatFlow_UsesRetrieval(t *testing.T) {
	r, db := newEngine(t, testConfig("/api/v1"))
	hdr := map[string]string{"X-User-ID": "u1"}

	payload := `[{"id":"Rivers_0","title":"Rivers","text":"The Nile is a major river flowing north through Africa. Cats sleep a lot."}]`
	if w := do(r, http.MethodPost, "/api/v1/imports", payload, nil); w.Code != http.StatusOK {
		t.Fatalf("import -> %d", w.Code)
	}

	w := do(r, http.MethodPost, "/api/v1/chats", `{}`, hdr)
	if w.Code != http.StatusCreated || w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("create chat -> %d %v", w.Code, w.Header())
	}
	var chat domain.Chat
	_ = json.Unmarshal(w.Body.Bytes(), &chat)

	w = do(r, http.MethodPost, "/api/v1/chats/"+chat.ID+"/messages", `{"content":"Which river flows through Africa?"}`, hdr)
	if w.Code != http.StatusOK {
		t.Fatalf("post message -> %d %s", w.Code, w.Body.String())
	}
	var out struct {
		Message domain.Message `json:"message"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	if out.Message.Source != services.SourceRetrieval || !strings.Contains(out.Message.Content, "(source: Rivers)") {
		t.Fatalf("unexpected reply: %#v", out.Message)
	}

	var n int64
	db.Model(&domain.Message{}).Where("chat_id = ?", chat.ID).Count(&n)
	if n != 2 {
		t.Fatalf("expected 2 stored messages, got %d", n)
	}
}

func TestRegisterRoutes_NoRetrieval_OnlyChats(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r, Deps{DB: newTestDB(t), Log: zerolog.Nop()}, testConfig("/"))

	if w := do(r, http.MethodPost, "/retrieve", `{"query":"x"}`, nil); w.Code != http.StatusNotFound {
		t.Fatalf("retrieve without engine -> %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/chats", "", nil); w.Code != http.StatusOK {
		t.Fatalf("chats at root base -> %d", w.Code)
	}
}

func TestRegisterRoutes_ImportCostsMoreTokens(t *testing.T) {
	cfg := testConfig("/api/v1")
	cfg.RateRPS = 0.001
	cfg.RateBurst = importCost
	r, _ := newEngine(t, cfg)

	if w := do(r, http.MethodPost, "/api/v1/imports", `[]`, nil); w.Code != http.StatusOK {
		t.Fatalf("import -> %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/api/v1/stats", "", nil); w.Code != http.StatusTooManyRequests {
		t.Fatalf("bucket should be drained, got %d", w.Code)
	}
	if w := do(r, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("health is exempt, got %d", w.Code)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	if w := do(r, http.MethodPost, "/echo", "0123456789AB", nil); w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix_and_joinPath(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := do(r, http.MethodGet, path, "", nil)
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, w.Code, w.Body.String())
		}
	}

	if joinPath("/", "/imports") != "/imports" || joinPath("/api/v1", "/imports") != "/api/v1/imports" {
		t.Fatalf("joinPath mismatch")
	}
}
