// Package handler provides HTTP handlers for the Agent service.
package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/agent-x/internal/agent/biz"
	"github.com/kart-io/agent-x/internal/agent/metrics"
	"github.com/kart-io/agent-x/pkg/infra/app"
)

// queryTimeout 单次查询的最长处理时间。
const queryTimeout = 60 * time.Second

// AgentHandler handles Agent HTTP requests.
type AgentHandler struct {
	service     biz.Service
	serviceName string
}

// NewAgentHandler creates a new AgentHandler.
func NewAgentHandler(service biz.Service, serviceName string) *AgentHandler {
	return &AgentHandler{service: service, serviceName: serviceName}
}

// SuccessResponse is a standard success response.
type SuccessResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// AskRequest represents a question for the agent.
type AskRequest struct {
	Query     string `json:"query" binding:"required"`
	SessionID string `json:"session_id"`
	UseTools  *bool  `json:"use_tools"`
}

// Ask answers a question, optionally using tools and document retrieval.
func (h *AgentHandler) Ask(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	if req.SessionID == "" {
		req.SessionID = "default"
	}
	useTools := true
	if req.UseTools != nil {
		useTools = *req.UseTools
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), queryTimeout)
	defer cancel()

	result := h.service.Ask(ctx, req.Query, req.SessionID, useTools)
	if result.Error != "" && ctx.Err() == context.DeadlineExceeded {
		c.JSON(http.StatusRequestTimeout, ErrorResponse{
			Code:    408,
			Message: "Query timeout: the request took too long to process. Please try again or simplify your question.",
		})
		return
	}

	// 处理失败也返回 200，错误体现在结果的 error 字段
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: result})
}

// IngestRequest represents an ingestion request.
type IngestRequest struct {
	Paths     []string `json:"paths"`
	Directory string   `json:"directory"`
}

// Ingest indexes documents from explicit paths or a directory.
func (h *AgentHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}
	if len(req.Paths) == 0 && req.Directory == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: "either paths or directory is required"})
		return
	}

	var err error
	var result interface{}
	if req.Directory != "" {
		result, err = h.service.IngestDirectory(c.Request.Context(), req.Directory)
	} else {
		result, err = h.service.Ingest(c.Request.Context(), req.Paths)
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	// 索引落盘失败不影响本次响应
	if err := h.service.SaveIndex(c.Request.Context()); err != nil {
		logger.Warnw("failed to save index after ingestion", "error", err)
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "Documents ingested successfully", Data: result})
}

// Search performs a direct similarity search without the LLM.
func (h *AgentHandler) Search(c *gin.Context) {
	query := c.Query("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: "query parameter is required"})
		return
	}

	topK := 3
	if v := c.Query("top_k"); v != "" {
		if parsed, err := parsePositiveInt(v); err == nil {
			topK = parsed
		}
	}

	results, err := h.service.Search(c.Request.Context(), query, topK)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: results})
}

// History returns the recent messages of a session.
func (h *AgentHandler) History(c *gin.Context) {
	session := c.Param("session")

	limit := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := parsePositiveInt(v); err == nil {
			limit = parsed
		}
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Code:    0,
		Message: "success",
		Data:    h.service.History(session, limit),
	})
}

// ClearSession destroys a session's memory.
func (h *AgentHandler) ClearSession(c *gin.Context) {
	session := c.Param("session")
	h.service.ClearSession(session)

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "Session cleared"})
}

// Stats returns service statistics.
func (h *AgentHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    0,
		Message: "success",
		Data:    h.service.GetStats(c.Request.Context()),
	})
}

// Metrics exposes Prometheus-format metrics.
func (h *AgentHandler) Metrics(c *gin.Context) {
	c.String(http.StatusOK, metrics.GetAgentMetrics().Export("agent", ""))
}

// Health is the liveness probe.
func (h *AgentHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"service":     h.serviceName,
		"version":     app.GetVersion(),
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
		"index_ready": h.service.Ready(),
	})
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("value must be positive: %d", n)
	}
	return n, nil
}
