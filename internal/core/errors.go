package core

import "errors"

// Error taxonomy shared across the service layers. Handlers map these to
// HTTP status codes; everything else wraps them with fmt.Errorf("...: %w").
var (
	// ErrAuthRequired means the request carries no authenticated user.
	ErrAuthRequired = errors.New("auth required")

	// ErrNotFound covers both absent resources and resources the caller does
	// not own. The two are deliberately conflated so responses never leak
	// whether a foreign resource exists.
	ErrNotFound = errors.New("not found or no access")

	// ErrValidation marks bad or missing input (unsupported file type,
	// oversized file, empty question, ...).
	ErrValidation = errors.New("invalid input")

	// ErrUnsupportedFormat is returned by the extractor for MIME types it
	// has no strategy for.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrExtractionEmpty means every extraction tier produced no text.
	ErrExtractionEmpty = errors.New("no extractable content")

	// ErrEmbeddingProvider marks embedding API failures, including a
	// missing API key.
	ErrEmbeddingProvider = errors.New("embedding provider error")

	// ErrRetrieval marks datastore similarity-search failures.
	ErrRetrieval = errors.New("retrieval error")

	// ErrModerationService means the moderation check itself failed. This is
	// distinct from a flagged classification, which is a normal outcome.
	ErrModerationService = errors.New("moderation service error")

	// ErrPersistence marks thread/message write failures.
	ErrPersistence = errors.New("persistence error")

	// ErrIngestionConflict means another ingestion of the same document is
	// already in flight.
	ErrIngestionConflict = errors.New("document is already being processed")
)
