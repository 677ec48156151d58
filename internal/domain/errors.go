package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals malformed caller input (empty query, missing tenant).
	ErrValidation = errors.New("validation failed")
	// ErrProvider signals a failed embedding, generation, or keyword-search call.
	ErrProvider = errors.New("provider call failed")
	// ErrStorage signals a persistence failure.
	ErrStorage = errors.New("storage failure")
	// ErrCache signals a cache-layer failure. Never surfaces past the cache:
	// callers observe it as a miss.
	ErrCache = errors.New("cache failure")

	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrChunkNotFound signals a missing chunk.
	ErrChunkNotFound = errors.New("chunk not found")
	// ErrTenantRequired signals a request without a tenant identifier.
	ErrTenantRequired = errors.New("tenant is required")
	// ErrEmptyQuery signals an empty search query.
	ErrEmptyQuery = errors.New("empty query")
	// ErrUnknownStrategy signals an unrecognized rerank strategy.
	ErrUnknownStrategy = errors.New("unknown rerank strategy")
)

// Validationf wraps ErrValidation with a formatted message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}
