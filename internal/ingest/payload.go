package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/tbourn/go-kb-retrieval/internal/domain"
)

// PayloadError reports a malformed import payload. Index is the zero-based
// record position, or -1 when the payload as a whole is unusable.
type PayloadError struct {
	Index  int
	Field  string
	Reason string
}

func (e *PayloadError) Error() string {
	switch {
	case e.Index < 0:
		return "import payload: " + e.Reason
	case e.Field == "":
		return fmt.Sprintf("import payload: record %d: %s", e.Index, e.Reason)
	default:
		return fmt.Sprintf("import payload: record %d: field %q %s", e.Index, e.Field, e.Reason)
	}
}

// DecodePayload reads a JSON array of chunk records. Records are returned
// undecoded; ParseRecord validates each one. A payload that is not an array
// fails here, before anything is written.
func DecodePayload(r io.Reader) ([]json.RawMessage, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &PayloadError{Index: -1, Reason: "must be a JSON array of chunks"}
	}
	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, &PayloadError{Index: -1, Reason: err.Error()}
	}
	return raws, nil
}

type record struct {
	ID        *string  `json:"id"`
	Title     *string  `json:"title"`
	Text      *string  `json:"text"`
	Shingles  []string `json:"shingles"`
	Signature []uint32 `json:"signature"`
}

// ParseRecord decodes and validates record i. id must be non-blank; title
// and text must be present.
func ParseRecord(i int, raw json.RawMessage) (domain.Chunk, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.Chunk{}, &PayloadError{Index: i, Reason: err.Error()}
	}
	switch {
	case rec.ID == nil || strings.TrimSpace(*rec.ID) == "":
		return domain.Chunk{}, &PayloadError{Index: i, Field: "id", Reason: "is required"}
	case rec.Title == nil:
		return domain.Chunk{}, &PayloadError{Index: i, Field: "title", Reason: "is required"}
	case rec.Text == nil:
		return domain.Chunk{}, &PayloadError{Index: i, Field: "text", Reason: "is required"}
	}
	return domain.Chunk{
		ID:        *rec.ID,
		Title:     *rec.Title,
		Text:      *rec.Text,
		Shingles:  rec.Shingles,
		Signature: rec.Signature,
	}, nil
}
