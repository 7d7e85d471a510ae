package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/finsight/backend/internal/domain"
	"github.com/finsight/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	pipeline *usecase.PipelineService
}

// NewHandler creates a new HTTP handler
func NewHandler(pipeline *usecase.PipelineService) *Handler {
	return &Handler{pipeline: pipeline}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "finsight-backend",
		"version": "1.0.0",
	})
}

type processRequest struct {
	ImagePath string `json:"imagePath" binding:"required"`
}

type batchRequest struct {
	ImagePaths []string `json:"imagePaths" binding:"required,min=1"`
}

// workflowResponse wraps a WorkflowResult with its derived fields, which
// do not serialize from methods
type workflowResponse struct {
	*domain.WorkflowResult
	OverallConfidence float64 `json:"overallConfidence"`
	NeedsReview       bool    `json:"needsReview"`
}

func toWorkflowResponse(result *domain.WorkflowResult) workflowResponse {
	return workflowResponse{
		WorkflowResult:    result,
		OverallConfidence: result.OverallConfidence(),
		NeedsReview:       result.NeedsReview(),
	}
}

// ProcessReceipt runs the full pipeline for one image
func (h *Handler) ProcessReceipt(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "imagePath is required"})
		return
	}

	result := h.pipeline.ProcessReceipt(c.Request.Context(), req.ImagePath)
	c.JSON(http.StatusOK, toWorkflowResponse(result))
}

// PreviewReceipt runs extraction only and returns a quick readability signal
func (h *Handler) PreviewReceipt(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "imagePath is required"})
		return
	}

	c.JSON(http.StatusOK, h.pipeline.GetPreview(c.Request.Context(), req.ImagePath))
}

// ValidateImage reports whether a capture is worth processing
func (h *Handler) ValidateImage(c *gin.Context) {
	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "imagePath is required"})
		return
	}

	c.JSON(http.StatusOK, h.pipeline.ValidateImage(c.Request.Context(), req.ImagePath))
}

// ProcessBatch runs the pipeline over multiple images with per-item
// failure isolation
func (h *Handler) ProcessBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "imagePaths must be a non-empty array"})
		return
	}

	results, summary := h.pipeline.ProcessBatch(c.Request.Context(), req.ImagePaths)
	responses := make([]workflowResponse, 0, len(results))
	for _, r := range results {
		responses = append(responses, toWorkflowResponse(r))
	}

	c.JSON(http.StatusOK, gin.H{
		"results": responses,
		"summary": summary,
	})
}
