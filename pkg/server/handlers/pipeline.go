package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/noirgraph"
	"github.com/soundprediction/noirgraph/pkg/driver"
	"github.com/soundprediction/noirgraph/pkg/server/dto"
	"github.com/soundprediction/noirgraph/pkg/types"
)

// Pipeline is the part of *noirgraph.Client the HTTP handlers use.
type Pipeline interface {
	TestDatabase(ctx context.Context) noirgraph.StageResult
	LoadDocument(ctx context.Context, doc *types.Document) ([]*types.Chunk, error)
	ExtractAll(ctx context.Context) (noirgraph.StageResult, []*types.Statement)
	ResolveAll(ctx context.Context) (noirgraph.StageResult, []*types.Entity)
	SearchChunks(ctx context.Context, query string, k int) ([]driver.ChunkHit, error)
	SearchStatements(ctx context.Context, view driver.View, query string, k int) ([]driver.StatementHit, error)
	SearchEntities(ctx context.Context, view driver.View, query string, k int) ([]driver.EntityHit, error)
	StatementsForEntity(ctx context.Context, entityKey string) ([]driver.StatementRole, error)
	EntitiesForStatement(ctx context.Context, statementKey string) ([]driver.EntityRole, error)
	ClearGraph(ctx context.Context) noirgraph.StageResult
	ClearDocument(ctx context.Context, documentID string) noirgraph.StageResult
}

var _ Pipeline = (*noirgraph.Client)(nil)

// writeError writes an error response as JSON
func writeError(c *gin.Context, status int, errCode, message string) {
	c.AbortWithStatusJSON(status, dto.ErrorResponse{
		Error:   errCode,
		Message: message,
		Code:    status,
	})
}

// errorStatus maps pipeline errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, noirgraph.ErrNoDocument):
		return http.StatusConflict
	case errors.Is(err, noirgraph.ErrEmptyQuery),
		errors.Is(err, types.ErrInvalidLimit),
		errors.Is(err, types.ErrEmptyID),
		errors.Is(err, types.ErrEmptyContent),
		errors.Is(err, types.ErrEmptyDocumentID),
		errors.Is(err, driver.ErrUnknownView):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// stageResponse converts a StageResult, choosing the status from its errors.
func stageResponse(res noirgraph.StageResult, data any) (int, dto.StageResponse) {
	body := dto.StageResponse{
		OK:      res.OK,
		Message: res.Message,
		Report:  res.Report,
		Chunks:  res.Chunks,
		Items:   res.Items,
		Data:    data,
	}
	if res.OK {
		return http.StatusOK, body
	}
	for _, se := range res.Errors {
		if errors.Is(se.Err, noirgraph.ErrNoDocument) {
			return http.StatusConflict, body
		}
	}
	return http.StatusInternalServerError, body
}
