// Package router provides Agent service routing.
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/agent-x/internal/agent/handler"
)

// Register registers the Agent service routes.
func Register(engine *gin.Engine, agentHandler *handler.AgentHandler) {
	logger.Info("Registering agent routes...")

	engine.GET("/healthz", agentHandler.Health)
	engine.GET("/metrics", agentHandler.Metrics)

	v1 := engine.Group("/v1")
	{
		agent := v1.Group("/agent")
		{
			agent.POST("/ask", agentHandler.Ask)
			agent.POST("/ingest", agentHandler.Ingest)
			agent.GET("/search", agentHandler.Search)
			agent.GET("/stats", agentHandler.Stats)

			agent.GET("/sessions/:session/history", agentHandler.History)
			agent.DELETE("/sessions/:session", agentHandler.ClearSession)
		}
	}

	logger.Info("HTTP routes registered")
}
