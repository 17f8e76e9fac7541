package types

import "errors"

// Domain errors for type validation
var (
	// Page errors
	ErrEmptyURL   = errors.New("URL cannot be empty")
	ErrInvalidURL = errors.New("URL must use http or https scheme")
	ErrEmptyTitle = errors.New("title cannot be empty")

	// Search result errors
	ErrInvalidPageID         = errors.New("invalid page ID")
	ErrInvalidRank           = errors.New("rank must be >= 1")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between 0 and 1")
)
