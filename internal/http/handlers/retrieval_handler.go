// Knowledge-base HTTP handlers.
//
// This file exposes the retrieval engine:
//   - POST   /retrieve      (ranked top-K chunks for a query)
//   - GET    /chunks/{id}   (one stored chunk)
//   - POST   /imports       (bulk import of a JSON chunk array)
//   - GET    /stats         (corpus counts and signature parameters)
//   - DELETE /corpus        (clear chunks, postings, signatures, metadata)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-kb-retrieval/internal/ingest"
	"github.com/tbourn/go-kb-retrieval/internal/search"
	"github.com/tbourn/go-kb-retrieval/internal/services"
)

// maxTopK bounds client-requested result counts.
const maxTopK = 100

//
// DTOs
//

// RetrieveRequest is the JSON payload for a retrieval query.
type RetrieveRequest struct {
	// Query is free text; it is normalized server-side.
	Query string `json:"query" example:"what is the capital of japan"`
	// TopK caps the number of hits; 0 uses the server default.
	TopK int `json:"top_k" example:"6" minimum:"0" maximum:"100"`
}

// RetrieveResponse carries ranked hits, best first.
type RetrieveResponse struct {
	Hits  []search.Hit `json:"hits"`
	Count int          `json:"count"`
}

// ImportResponse reports the outcome of a bulk import. Warnings lists the
// best-effort posting/signature/metadata writes that failed.
type ImportResponse struct {
	Report   ingest.Report `json:"report"`
	Warnings []string      `json:"warnings,omitempty"`
}

// PayloadErrorDetails points at the offending record of a rejected import.
type PayloadErrorDetails struct {
	// Index is the zero-based record position, -1 for the payload as a whole.
	Index int    `json:"index"`
	Field string `json:"field,omitempty"`
	// Imported counts the records committed by earlier batches.
	Imported int `json:"imported"`
}

//
// Handlers
//

// Retrieve godoc
// @ID          retrieve
// @Summary     Retrieve ranked chunks
// @Description Runs the dictionary, lexical and approximate paths and returns the merged top-K.
// @Tags        Knowledge
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.RetrieveRequest  true  "Query"
//
// @Success     200  {object}  handlers.RetrieveResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Blank query"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /retrieve [post]
func (h *Handlers) Retrieve(c *gin.Context) {
	var req RetrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, services.ErrEmptyQuery.Error())
		return
	}
	if req.TopK < 0 || req.TopK > maxTopK {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "top_k must be between 0 and 100")
		return
	}

	hits, err := h.kbSvc.Retrieve(c.Request.Context(), req.Query, req.TopK)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeRetrieveFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, RetrieveResponse{Hits: hits, Count: len(hits)})
}

// GetChunk godoc
// @ID          getChunk
// @Summary     Get a chunk
// @Tags        Knowledge
// @Produce     json
//
// @Param       id   path  string  true  "Chunk ID"  example(Japan_0)
//
// @Success     200  {object}  domain.Chunk
// @Failure     404  {object}  handlers.ErrorResponse  "Chunk not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /chunks/{id} [get]
func (h *Handlers) GetChunk(c *gin.Context) {
	ch, err := h.kbSvc.Chunk(c.Request.Context(), c.Param("id"))
	switch {
	case err == nil:
		ok(c, http.StatusOK, ch)
	case errors.Is(err, services.ErrChunkNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "chunk not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

// ImportChunks godoc
// @ID          importChunks
// @Summary     Import chunks
// @Description Imports a JSON array of {id, title, text, shingles?, signature?} records in
// @Description paced batches. A malformed record stops the import; earlier batches stay committed.
// @Tags        Knowledge
// @Accept      json
// @Produce     json
//
// @Param       body  body  []domain.Chunk  true  "Chunk records"
//
// @Success     200  {object}  handlers.ImportResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Payload is not a JSON array"
// @Failure     413  {object}  handlers.ErrorResponse  "Payload too large"
// @Failure     422  {object}  handlers.ErrorResponse  "Invalid record"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /imports [post]
func (h *Handlers) ImportChunks(c *gin.Context) {
	body := c.Request.Body
	if h.maxImportBytes > 0 {
		body = http.MaxBytesReader(c.Writer, body, h.maxImportBytes)
	}

	rep, err := h.kbSvc.Import(c.Request.Context(), body)
	if err != nil {
		var perr *ingest.PayloadError
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			fail(c, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "import payload too large")
		case errors.As(err, &perr):
			status := http.StatusUnprocessableEntity
			if perr.Index < 0 {
				status = http.StatusBadRequest
			}
			failWith(c, status, ErrCodePayloadInvalid, perr.Error(),
				PayloadErrorDetails{Index: perr.Index, Field: perr.Field, Imported: rep.Imported})
		default:
			fail(c, http.StatusInternalServerError, ErrCodeImportFailed, err.Error())
		}
		return
	}

	resp := ImportResponse{Report: rep}
	if rep.WriteErrors != nil {
		resp.Warnings = strings.Split(rep.WriteErrors.Error(), "\n")
	}
	ok(c, http.StatusOK, resp)
}

// Stats godoc
// @ID          corpusStats
// @Summary     Corpus statistics
// @Tags        Knowledge
// @Produce     json
//
// @Success     200  {object}  services.CorpusStats
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /stats [get]
func (h *Handlers) Stats(c *gin.Context) {
	st, err := h.kbSvc.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeStatsFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, st)
}

// ResetCorpus godoc
// @ID          resetCorpus
// @Summary     Clear the corpus
// @Description Removes every chunk, posting list, signature and the corpus metadata.
// @Tags        Knowledge
//
// @Success     204  {string}  string  "No Content"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /corpus [delete]
func (h *Handlers) ResetCorpus(c *gin.Context) {
	if err := h.kbSvc.Reset(c.Request.Context()); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeResetFailed, err.Error())
		return
	}
	noContent(c)
}
