package dto

import (
	"errors"
	"strings"

	"github.com/soundprediction/noirgraph/pkg/driver"
)

// Validation errors
var (
	ErrEmptyContent    = errors.New("content cannot be empty")
	ErrContentTooLong  = errors.New("content exceeds maximum length (4MB)")
	ErrTitleTooLong    = errors.New("title exceeds maximum length (1024)")
	ErrInvalidID       = errors.New("id is too long or contains a path separator")
	ErrEmptyQuery      = errors.New("query cannot be empty")
	ErrLimitOutOfRange = errors.New("k must be between 1 and 100")
	ErrInvalidView     = errors.New("view must be name or profile")
)
	ErrContentTooLong = errors.New("content exceeds maximum length (4MB)")
	ErrTitleTooLong   = errors.New("title exceeds maximum length (1024)")
	ErrEmptyQuery     = errors.New("query cannot be empty")
	ErrLimitOutOfRange = errors.New("k must be between 1 and 100")
	ErrInvalidView    = errors.New("view must be name or profile")
)

// MaxFieldLengths defines maximum lengths for fields to prevent abuse
const (
	MaxContentLength = 4 * 1024 * 1024
	MaxTitleLength   = 1024
	MaxIDLength      = 256
	MaxK             = 100
	DefaultK         = 10
)

// Result represents a generic API result
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

// StageResponse is the outcome of a stage or diagnostic.
type StageResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Report  string `json:"report"`
	Chunks  int    `json:"chunks"`
	Items   int    `json:"items"`
	Data    any    `json:"data,omitempty"`
}

// LoadDocumentRequest loads and chunks a document. A missing id is
// generated.
type LoadDocumentRequest struct {
	ID      string `json:"id,omitempty"`
	Title   string `json:"title,omitempty"`
	Content string `json:"content" binding:"required"`
}

// Validate performs validation on LoadDocumentRequest
func (r *LoadDocumentRequest) Validate() error {
	if strings.TrimSpace(r.Content) == "" {
		return ErrEmptyContent
	}
	if len(r.Content) > MaxContentLength {
		return ErrContentTooLong
	}
	if len(r.Title) > MaxTitleLength {
		return ErrTitleTooLong
	}
	if len(r.ID) > MaxIDLength || strings.ContainsAny(r.ID, "/\\") {
		return ErrInvalidID
	}
	return nil
}

// SearchRequest is a vector search over chunks, statements or entities.
type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	K     int    `json:"k,omitempty"`
	// View selects the name or profile index for statements and entities.
	View string `json:"view,omitempty"`
}

// Normalize fills defaults and validates the request.
func (r *SearchRequest) Normalize() (driver.View, error) {
	if strings.TrimSpace(r.Query) == "" {
		return "", ErrEmptyQuery
	}
	if r.K == 0 {
		r.K = DefaultK
	}
	if r.K < 1 || r.K > MaxK {
		return "", ErrLimitOutOfRange
	}
	view, err := driver.ParseView(r.View)
	if err != nil {
		return "", ErrInvalidView
	}
	return view, nil
}
