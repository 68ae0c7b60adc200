// Package services holds the application logic above the retrieval core:
// the engine handle that owns the index and importer, the assistant that
// turns retrieved chunks into answers, and the chat log.
//
// Errors declared here are returned for predictable cases so handlers can
// map them to HTTP results consistently.
package services

import "errors"

var (
	// ErrEmptyQuery is returned when a retrieval query is blank.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrChunkNotFound indicates the requested chunk id is not in the corpus.
	ErrChunkNotFound = errors.New("chunk not found")

	// ErrChatNotFound indicates that the requested chat does not exist or is not
	// accessible to the current user.
	ErrChatNotFound = errors.New("chat not found")

	// ErrEmptyPrompt is returned when a message prompt is blank.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrTooLong is returned when a prompt exceeds the configured rune limit.
	ErrTooLong = errors.New("prompt too long")
)
