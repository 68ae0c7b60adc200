// Package handlers implements the HTTP endpoints of the knowledge base and
// the chat log.
//
// Every failure is answered with an ErrorResponse:
//
//	HTTP/1.1 400 Bad Request
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "payload_invalid",
//	  "message": "import payload: record 3: field \"id\" is required",
//	  "details": {"index": 3, "field": "id", "imported": 0}
//	}
//
// Successful responses are plain JSON bodies (or 204 with none).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-kb-retrieval/internal/http/middleware"
)

// ErrorResponse is the error envelope of every endpoint.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable machine-readable code
	Code string `json:"code" example:"not_found"`
	// Human-readable message
	Message string `json:"message" example:"chunk not found"`
	// Structured context, e.g. the offending import record
	Details any `json:"details,omitempty"`
}

// abort writes the envelope and stops the handler chain. 5xx responses are
// logged on the request logger; client errors are left to the access log.
func abort(c *gin.Context, status int, resp ErrorResponse) {
	resp.RequestID = c.Writer.Header().Get("X-Request-ID")
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", resp.Code).
			Str("message", resp.Message).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, resp)
}

func fail(c *gin.Context, status int, code, msg string) {
	abort(c, status, ErrorResponse{Code: code, Message: msg})
}

// Fail lets the router answer NoRoute/NoMethod with the same envelope.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func failWith(c *gin.Context, status int, code, msg string, details any) {
	abort(c, status, ErrorResponse{Code: code, Message: msg, Details: details})
}

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }
