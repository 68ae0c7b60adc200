package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/go-kb-retrieval/internal/domain"
	"github.com/tbourn/go-kb-retrieval/internal/ingest"
	"github.com/tbourn/go-kb-retrieval/internal/search"
	"github.com/tbourn/go-kb-retrieval/internal/services"
	"github.com/tbourn/go-kb-retrieval/internal/utils"
)

// ChatService is the chat lifecycle as seen by the transport.
type ChatService interface {
	Create(ctx context.Context, userID, title string) (*domain.Chat, error)
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Chat, int64, error)
	UpdateTitle(ctx context.Context, userID, chatID, title string) error
	// Version changes whenever the user's chat list does; it keys ETags.
	Version(ctx context.Context, userID string) (string, error)
}

// MessageService is the assistant as seen by the transport.
type MessageService interface {
	Answer(ctx context.Context, userID, chatID, prompt string) (*domain.Message, error)
	ListPage(ctx context.Context, userID, chatID string, page, pageSize int) ([]domain.Message, int64, error)
	Version(ctx context.Context, userID, chatID string) (string, error)
	PromptLimit() int
}

// RetrievalService is the knowledge-base engine as seen by the transport.
type RetrievalService interface {
	Retrieve(ctx context.Context, query string, topK int) ([]search.Hit, error)
	Import(ctx context.Context, r io.Reader) (ingest.Report, error)
	Chunk(ctx context.Context, id string) (domain.Chunk, error)
	Stats(ctx context.Context) (services.CorpusStats, error)
	Reset(ctx context.Context) error
}

// Handlers groups the endpoints of the chat log and the knowledge base.
type Handlers struct {
	chatSvc ChatService
	msgSvc  MessageService
	kbSvc   RetrievalService

	// maxImportBytes caps POST /imports bodies; <= 0 disables the cap.
	maxImportBytes int64
}

// New returns Handlers bound to the given services.
func New(chatSvc ChatService, msgSvc MessageService, kbSvc RetrievalService, maxImportBytes int64) *Handlers {
	return &Handlers{chatSvc: chatSvc, msgSvc: msgSvc, kbSvc: kbSvc, maxImportBytes: maxImportBytes}
}

// userID is the "userID" context value when upstream middleware set one,
// else the X-User-ID header, else "demo-user".
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

// chatID returns the :id route parameter, answering 400 when it is not a UUID.
func chatID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chat id must be a UUID")
		return "", false
	}
	return id, true
}

// notModified sets a weak ETag built from version and answers 304 when the
// client already holds it.
func notModified(c *gin.Context, version string) bool {
	etag := `W/"` + version + `"`
	c.Header("ETag", etag)
	if c.GetHeader("If-None-Match") == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

// Pagination is the paging envelope of list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// pageParams reads page and page_size, bounded by the shared limits.
func pageParams(c *gin.Context) (page, pageSize int) {
	page = max(utils.AtoiDefault(c.Query("page"), 1), 1)
	pageSize = utils.AtoiDefault(c.Query("page_size"), utils.DefaultPageSize)
	return page, min(max(pageSize, 1), utils.MaxPageSize)
}

func newPagination(page, pageSize int, total int64) Pagination {
	pages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: pages,
		HasNext:    page < pages,
	}
}
