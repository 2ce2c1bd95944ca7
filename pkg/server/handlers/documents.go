package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/noirgraph/pkg/server/dto"
	"github.com/soundprediction/noirgraph/pkg/types"
)

// DocumentHandler loads documents and runs the pipeline stages.
type DocumentHandler struct {
	pipeline Pipeline
	logger   *slog.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(p Pipeline, logger *slog.Logger) *DocumentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentHandler{pipeline: p, logger: logger}
}

// LoadDocument handles POST /api/v1/documents
func (h *DocumentHandler) LoadDocument(c *gin.Context) {
	var req dto.LoadDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	doc := &types.Document{ID: strings.TrimSpace(req.ID), Title: req.Title, Content: req.Content}
	chunks, err := h.pipeline.LoadDocument(c.Request.Context(), doc)
	if err != nil {
		h.logger.Error("Failed to load document", "document_id", doc.ID, "error", err)
		writeError(c, errorStatus(err), "load_failed", err.Error())
		return
	}

	c.JSON(http.StatusCreated, dto.Result{
		Success: true,
		Data: gin.H{
			"document_id": doc.ID,
			"title":       doc.Title,
			"chunks":      chunks,
		},
	})
}

// RunExtraction handles POST /api/v1/extraction
func (h *DocumentHandler) RunExtraction(c *gin.Context) {
	res, statements := h.pipeline.ExtractAll(c.Request.Context())
	c.JSON(stageResponse(res, statements))
}

// RunResolution handles POST /api/v1/resolution
func (h *DocumentHandler) RunResolution(c *gin.Context) {
	res, entities := h.pipeline.ResolveAll(c.Request.Context())
	c.JSON(stageResponse(res, entities))
}

// ClearGraph handles DELETE /api/v1/graph
func (h *DocumentHandler) ClearGraph(c *gin.Context) {
	c.JSON(stageResponse(h.pipeline.ClearGraph(c.Request.Context()), nil))
}

// ClearDocument handles DELETE /api/v1/documents/:id
func (h *DocumentHandler) ClearDocument(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		writeError(c, http.StatusBadRequest, "invalid_request", "document id is required")
		return
	}
	c.JSON(stageResponse(h.pipeline.ClearDocument(c.Request.Context(), id), nil))
}
