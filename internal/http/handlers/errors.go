package handlers

// Error codes carried in ErrorResponse.Code. Clients branch on these, never
// on the message text. The rate limiter answers with "rate_limited" from the
// middleware package.
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// Knowledge base
	ErrCodeRetrieveFailed  = "retrieve_failed"
	ErrCodeImportFailed    = "import_failed"
	ErrCodePayloadInvalid  = "payload_invalid"
	ErrCodePayloadTooLarge = "payload_too_large"
	ErrCodeStatsFailed     = "stats_failed"
	ErrCodeResetFailed     = "reset_failed"

	// Chat log
	ErrCodeAnswerFailed = "answer_failed"
	ErrCodeCreateFailed = "create_failed"
	ErrCodeListFailed   = "list_failed"
)
