// Package router wires the HTTP routes of the RAG service.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/ragx/internal/pkg/middleware"
	"github.com/kart-io/ragx/internal/ragx/handler"
)

// New 构建 gin 引擎并注册全部路由。除 /healthz 外的接口都要求
// 网关注入的身份头，管理接口另要求 ADMIN 角色。
func New(h *handler.Handler, mode string) *gin.Engine {
	if mode != "" {
		gin.SetMode(mode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), middleware.RequestID(), middleware.AccessLog())

	engine.GET("/healthz", h.Healthz)

	v1 := engine.Group("/v1", middleware.Identity())

	rag := v1.Group("/rag")
	{
		rag.POST("/query", h.Query)
		rag.POST("/ingest", h.Ingest)
		rag.POST("/ingest/url", h.IngestURL)
		rag.GET("/stats", h.Stats)
		rag.POST("/evaluate", h.Evaluate)
	}

	sessions := v1.Group("/sessions")
	{
		sessions.GET("/:session/messages", h.ListMessages)
		sessions.DELETE("/:session/messages", h.ClearMessages)
	}

	credentials := v1.Group("/credentials")
	{
		credentials.PUT("/:llm", h.PutCredential)
		credentials.DELETE("/:llm", h.DeleteCredential)
	}

	admin := v1.Group("/admin", middleware.RequireRole(middleware.RoleAdmin))
	{
		admin.POST("/strategies", h.CreateStrategy)
		admin.GET("/strategies", h.ListStrategies)
		admin.GET("/strategies/:strategy", h.GetStrategy)
		admin.PUT("/strategies/:strategy", h.UpdateStrategy)
		admin.DELETE("/strategies/:strategy", h.DeleteStrategy)

		admin.POST("/templates/ingest", h.CreateIngestTemplate)
		admin.GET("/templates/ingest", h.ListIngestTemplates)
		admin.GET("/templates/ingest/:ingest", h.GetIngestTemplate)
		admin.PUT("/templates/ingest/:ingest", h.UpdateIngestTemplate)
		admin.PATCH("/templates/ingest/:ingest", h.PatchIngestTemplate)
		admin.DELETE("/templates/ingest/:ingest", h.DeleteIngestTemplate)

		admin.POST("/templates/query", h.CreateQueryTemplate)
		admin.GET("/templates/query", h.ListQueryTemplates)
		admin.GET("/templates/query/:query", h.GetQueryTemplate)
		admin.PUT("/templates/query/:query", h.UpdateQueryTemplate)
		admin.PATCH("/templates/query/:query", h.PatchQueryTemplate)
		admin.DELETE("/templates/query/:query", h.DeleteQueryTemplate)
	}

	return engine
}
