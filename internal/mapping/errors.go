package mapping

import "errors"

var (
	// ErrMappingNotFound is returned when no mapping table knows a library entry.
	ErrMappingNotFound = errors.New("no mapping found")
	// ErrTableLoad is returned when a mapping table cannot be fetched or parsed.
	ErrTableLoad = errors.New("failed to load mapping table")
)
