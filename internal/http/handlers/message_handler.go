package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-kb-retrieval/internal/domain"
	"github.com/tbourn/go-kb-retrieval/internal/services"
)

// PostMessageRequest is the body of POST /chats/{id}/messages.
type PostMessageRequest struct {
	Content string `json:"content" binding:"required,min=1" example:"What is the capital of Japan?"`
}

// PostMessageResponse carries the assistant reply. Its source is the
// capability that answered ("capital", "who_is", "retrieval" or "fallback").
type PostMessageResponse struct {
	Message *domain.Message `json:"message"`
}

// ListMessagesResponse is one page of a chat's messages, oldest first.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

var blankLinesRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent unifies line endings, keeps at most one blank line between
// paragraphs and trims the prompt.
func sanitizeContent(raw string) string {
	s := strings.NewReplacer("\r\n", "\n", "\r", "\n").Replace(raw)
	return strings.TrimSpace(blankLinesRE.ReplaceAllString(s, "\n\n"))
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Ask the assistant
// @Description Stores the prompt and a reply taken from the dictionary patterns,
// @Description a synthesis over retrieved chunks, or the fallback text.
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Param       X-User-ID  header  string  true  "User ID that owns the chat"  example(user123)
// @Param       id         path    string  true  "Chat ID (UUID)"              format(uuid)
// @Param       body       body    handlers.PostMessageRequest  true  "User message payload"
// @Success     200  {object}  handlers.PostMessageResponse  "Assistant reply"
// @Failure     400  {object}  handlers.ErrorResponse        "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse        "Chat not found"
// @Failure     500  {object}  handlers.ErrorResponse        "Internal error"
// @Router      /chats/{id}/messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	id, valid := chatID(c)
	if !valid {
		return
	}
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}

	content := sanitizeContent(req.Content)
	limit := h.msgSvc.PromptLimit()
	tooLong := fmt.Sprintf("content too long: max %d runes", limit)
	if content == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
		return
	}
	if utf8.RuneCountInString(content) > limit {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, tooLong)
		return
	}

	m, err := h.msgSvc.Answer(c.Request.Context(), userID(c), id, content)
	switch {
	case err == nil:
		ok(c, http.StatusOK, PostMessageResponse{Message: m})
	case errors.Is(err, services.ErrChatNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
	case errors.Is(err, services.ErrTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, tooLong)
	case errors.Is(err, services.ErrEmptyPrompt):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content required")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeAnswerFailed, err.Error())
	}
}

// ListMessages godoc
// @ID          listMessages
// @Summary     List messages in a chat
// @Description Returns a page of the chat's messages, oldest first. Answers 304 when If-None-Match holds the current ETag.
// @Tags        Messages
// @Produce     json
// @Param       X-User-ID  header string  false "User ID (demo header)"  example(user123)
// @Param       id         path   string  true  "Chat ID (UUID)"  format(uuid)
// @Param       page       query  int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object} handlers.ListMessagesResponse
// @Header      200  {string} ETag "Weak ETag of the message log"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Chat not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /chats/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	id, valid := chatID(c)
	if !valid {
		return
	}
	ctx := c.Request.Context()
	uid := userID(c)

	v, err := h.msgSvc.Version(ctx, uid, id)
	switch {
	case errors.Is(err, services.ErrChatNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
		return
	case err == nil && notModified(c, v):
		return
	}

	page, pageSize := pageParams(c)
	items, total, err := h.msgSvc.ListPage(ctx, uid, id, page, pageSize)
	switch {
	case err == nil:
		ok(c, http.StatusOK, ListMessagesResponse{Messages: items, Pagination: newPagination(page, pageSize, total)})
	case errors.Is(err, services.ErrChatNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
	}
}
