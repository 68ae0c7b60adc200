// Package httpapi wires the HTTP transport (Gin) to the knowledge-base engine,
// the assistant and the chat log. It owns middleware ordering, health checks, docs
// and the versioned API under cfg.APIBasePath.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-kb-retrieval/docs"
	"github.com/tbourn/go-kb-retrieval/internal/config"
	"github.com/tbourn/go-kb-retrieval/internal/http/handlers"
	"github.com/tbourn/go-kb-retrieval/internal/http/middleware"
	"github.com/tbourn/go-kb-retrieval/internal/matchers"
	"github.com/tbourn/go-kb-retrieval/internal/services"
)

const (
	// maxJSONBody caps chat, message and retrieve bodies. Imports have their
	// own cap (cfg.Import.MaxBytes).
	maxJSONBody = 1 << 20
	// importCost is the number of rate-limit tokens one import consumes.
	importCost = 5

	maxPromptRunes = 2000
	maxReplyRunes  = 1500
)

// Deps are the collaborators the API is built from. DB holds the chat log;
// Retrieval is the engine handle; Dictionary feeds the assistant's pattern
// chain and may be nil.
type Deps struct {
	DB         *gorm.DB
	Retrieval  *services.RetrievalService
	Dictionary *matchers.KnowledgeBase
	Log        zerolog.Logger
}

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. Logger
//  4. Recovery
//  5. Metrics
//  6. Rate limiter (per user/IP; imports cost more, health checks are exempt)
//  7. CORS
//  8. Security headers (chat routes add no-store)
func RegisterRoutes(r *gin.Engine, deps Deps, cfg config.Config) {
	r.HandleMethodNotAllowed = true
	apiBase := cfg.APIBasePath

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Log))
	r.Use(middleware.Recovery(deps.Log))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).
		Cost(joinPath(apiBase, "/imports"), importCost).
		Exempt("/health", "/metrics")
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		HSTS:       cfg.Security.HSTS,
		HSTSMaxAge: cfg.Security.HSTSMaxAge,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = apiBase
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← db/engine/dictionary
	var patterns matchers.Chain
	if deps.Dictionary != nil {
		patterns = matchers.PatternChain(deps.Dictionary)
	}
	chatSvc := services.NewChatService(deps.DB, services.GormChatRepo{})
	msgSvc := &services.MessageService{
		DB:             deps.DB,
		Patterns:       patterns,
		TopK:           cfg.Retrieval.DefaultTopK,
		MaxPromptRunes: maxPromptRunes,
		MaxReplyRunes:  maxReplyRunes,
		TitleMaxLen:    60,
		TitleLocale:    language.English,
		Log:            deps.Log.With().Str("component", "assistant").Logger(),
	}
	var kb handlers.RetrievalService
	if deps.Retrieval != nil {
		msgSvc.Retriever = deps.Retrieval
		kb = deps.Retrieval
	}
	h := handlers.New(chatSvc, msgSvc, kb, cfg.Import.MaxBytes)

	api := groupWithPrefix(r, apiBase)
	{
		small := api.Group("", limitBody(maxJSONBody))
		private := small.Group("", middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}))

		// Chats
		private.POST("/chats", h.CreateChat)
		private.GET("/chats", h.ListChats)
		private.PUT("/chats/:id/title", h.UpdateChatTitle)

		// Messages
		private.GET("/chats/:id/messages", h.ListMessages)
		private.POST("/chats/:id/messages", h.PostMessage)

		if kb != nil {
			// Knowledge base; chunk texts and hit lists compress well.
			zipped := small.Group("", gzip.Gzip(gzip.DefaultCompression))
			zipped.POST("/retrieve", h.Retrieve)
			zipped.GET("/chunks/:id", h.GetChunk)
			small.GET("/stats", h.Stats)
			small.DELETE("/corpus", h.ResetCorpus)

			// Imports carry their own body cap.
			api.POST("/imports", h.ImportChunks)
		}
	}
}

// corsMiddleware allows every origin when none are configured and otherwise
// echoes allow-listed origins.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Accept-Encoding", "Authorization", "X-User-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		// Force ACAO: * even without an Origin header (simple requests, tests).
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody caps the request body at maxBytes; reads past it fail.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}

func joinPath(base, p string) string {
	if base == "" || base == "/" {
		return p
	}
	return base + p
}
