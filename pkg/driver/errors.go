package driver

import (
	"context"
	"errors"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// ErrorClass groups database failures by what the operator has to fix.
type ErrorClass string

const (
	ErrorClassNone          ErrorClass = ""
	ErrorClassAuth          ErrorClass = "auth"
	ErrorClassUnavailable   ErrorClass = "unavailable"
	ErrorClassConfiguration ErrorClass = "configuration"
	ErrorClassClient        ErrorClass = "client"
	ErrorClassDatabase      ErrorClass = "database"
	ErrorClassOther         ErrorClass = "other"
)

// ClassifyError maps a driver error to an ErrorClass. Server errors are
// classified by their status code, e.g. Neo.ClientError.Security.Unauthorized.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassNone
	}

	var neo4jErr *neo4j.Neo4jError
	if errors.As(err, &neo4jErr) {
		switch {
		case strings.HasPrefix(neo4jErr.Code, "Neo.ClientError.Security."):
			return ErrorClassAuth
		case neo4jErr.Classification() == "ClientError":
			return ErrorClassClient
		case neo4jErr.Classification() == "DatabaseError", neo4jErr.Classification() == "TransientError":
			return ErrorClassDatabase
		default:
			return ErrorClassOther
		}
	}

	var usageErr *neo4j.UsageError
	switch {
	case neo4j.IsConnectivityError(err), errors.Is(err, context.DeadlineExceeded):
		return ErrorClassUnavailable
	case errors.As(err, &usageErr), errors.Is(err, ErrUnknownProvider):
		return ErrorClassConfiguration
	case errors.Is(err, ErrSchemaMissing), errors.Is(err, ErrDimensionMismatch):
		return ErrorClassClient
	}
	return ErrorClassOther
}
