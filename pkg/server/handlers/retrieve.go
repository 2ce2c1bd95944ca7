package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/noirgraph/pkg/server/dto"
)

// RetrieveHandler serves vector search and graph traversal.
type RetrieveHandler struct {
	pipeline Pipeline
}

// NewRetrieveHandler creates a new retrieve handler
func NewRetrieveHandler(p Pipeline) *RetrieveHandler {
	return &RetrieveHandler{pipeline: p}
}

// Search handles POST /api/v1/search/:kind where kind is chunks,
// statements or entities.
func (h *RetrieveHandler) Search(c *gin.Context) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	view, err := req.Normalize()
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	ctx := c.Request.Context()
	var hits any
	switch kind := c.Param("kind"); kind {
	case "chunks":
		hits, err = h.pipeline.SearchChunks(ctx, req.Query, req.K)
	case "statements":
		hits, err = h.pipeline.SearchStatements(ctx, view, req.Query, req.K)
	case "entities":
		hits, err = h.pipeline.SearchEntities(ctx, view, req.Query, req.K)
	default:
		writeError(c, http.StatusNotFound, "not_found", "unknown search kind "+kind)
		return
	}
	if err != nil {
		writeError(c, errorStatus(err), "search_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, dto.Result{Success: true, Data: hits})
}

// EntityStatements handles GET /api/v1/entities/:key/statements
func (h *RetrieveHandler) EntityStatements(c *gin.Context) {
	roles, err := h.pipeline.StatementsForEntity(c.Request.Context(), c.Param("key"))
	if err != nil {
		writeError(c, errorStatus(err), "traversal_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, dto.Result{Success: true, Data: roles})
}

// StatementEntities handles GET /api/v1/statements/:key/entities
func (h *RetrieveHandler) StatementEntities(c *gin.Context) {
	roles, err := h.pipeline.EntitiesForStatement(c.Request.Context(), c.Param("key"))
	if err != nil {
		writeError(c, errorStatus(err), "traversal_failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, dto.Result{Success: true, Data: roles})
}
