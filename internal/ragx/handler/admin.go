package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/internal/pkg/httputils"
	"github.com/kart-io/ragx/internal/strategy"
	"github.com/kart-io/ragx/pkg/utils/errors"
)

// CreateStrategy 新建策略。
func (h *Handler) CreateStrategy(c *gin.Context) {
	var s model.Strategy
	if err := bindJSON(c, &s); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	if err := h.svc.Registry().Create(c.Request.Context(), &s); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, s)
}

// GetStrategy 按编号返回策略。
func (h *Handler) GetStrategy(c *gin.Context) {
	s, err := h.svc.Registry().Get(c.Request.Context(), c.Param("strategy"))
	httputils.WriteResponse(c, err, s)
}

// ListStrategies 列出策略，可按 type 过滤。
func (h *Handler) ListStrategies(c *gin.Context) {
	list, err := h.svc.Registry().List(c.Request.Context(), c.Query("type"))
	httputils.WriteResponse(c, err, list)
}

// UpdateStrategy 更新策略。路径编号覆盖请求体中的编号。
func (h *Handler) UpdateStrategy(c *gin.Context) {
	var s model.Strategy
	if err := bindJSON(c, &s); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	s.StrategyNo = c.Param("strategy")
	if err := h.svc.Registry().Update(c.Request.Context(), &s); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	httputils.WriteResponse(c, nil, s)
}

// DeleteStrategy 删除策略。被模板引用时返回冲突。
func (h *Handler) DeleteStrategy(c *gin.Context) {
	err := h.svc.Registry().Delete(c.Request.Context(), c.Param("strategy"))
	httputils.WriteResponse(c, err, nil)
}

// CreateIngestTemplate 新建摄取模板。
func (h *Handler) CreateIngestTemplate(c *gin.Context) {
	var spec strategy.IngestTemplateSpec
	if err := bindJSON(c, &spec); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	t, err := h.svc.Composer().CreateIngestTemplate(c.Request.Context(), &spec)
	httputils.WriteResponse(c, err, t)
}

// GetIngestTemplate 按编号返回摄取模板。
func (h *Handler) GetIngestTemplate(c *gin.Context) {
	t, err := h.svc.Composer().GetIngestTemplate(c.Request.Context(), c.Param("ingest"))
	httputils.WriteResponse(c, err, t)
}

// ListIngestTemplates 列出摄取模板。
func (h *Handler) ListIngestTemplates(c *gin.Context) {
	list, err := h.svc.Composer().ListIngestTemplates(c.Request.Context())
	httputils.WriteResponse(c, err, list)
}

// UpdateIngestTemplate 整体替换摄取模板。
func (h *Handler) UpdateIngestTemplate(c *gin.Context) {
	var spec strategy.IngestTemplateSpec
	if err := bindJSON(c, &spec); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	t, err := h.svc.Composer().UpdateIngestTemplate(c.Request.Context(), c.Param("ingest"), &spec)
	httputils.WriteResponse(c, err, t)
}

// PatchIngestTemplate 部分更新摄取模板，零值字段保持不变。
func (h *Handler) PatchIngestTemplate(c *gin.Context) {
	var spec strategy.IngestTemplateSpec
	if err := bindJSON(c, &spec); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	t, err := h.svc.Composer().PatchIngestTemplate(c.Request.Context(), c.Param("ingest"), &spec)
	httputils.WriteResponse(c, err, t)
}

// DeleteIngestTemplate 删除摄取模板。
func (h *Handler) DeleteIngestTemplate(c *gin.Context) {
	err := h.svc.Composer().DeleteIngestTemplate(c.Request.Context(), c.Param("ingest"))
	httputils.WriteResponse(c, err, nil)
}

// CreateQueryTemplate 新建查询模板。
func (h *Handler) CreateQueryTemplate(c *gin.Context) {
	var spec strategy.QueryTemplateSpec
	if err := bindJSON(c, &spec); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	t, err := h.svc.Composer().CreateQueryTemplate(c.Request.Context(), &spec)
	httputils.WriteResponse(c, err, t)
}

// GetQueryTemplate 按编号返回查询模板。
func (h *Handler) GetQueryTemplate(c *gin.Context) {
	t, err := h.svc.Composer().GetQueryTemplate(c.Request.Context(), c.Param("query"))
	httputils.WriteResponse(c, err, t)
}

// ListQueryTemplates 列出查询模板。
func (h *Handler) ListQueryTemplates(c *gin.Context) {
	list, err := h.svc.Composer().ListQueryTemplates(c.Request.Context())
	httputils.WriteResponse(c, err, list)
}

// UpdateQueryTemplate 整体替换查询模板。
func (h *Handler) UpdateQueryTemplate(c *gin.Context) {
	var spec strategy.QueryTemplateSpec
	if err := bindJSON(c, &spec); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	t, err := h.svc.Composer().UpdateQueryTemplate(c.Request.Context(), c.Param("query"), &spec)
	httputils.WriteResponse(c, err, t)
}

// PatchQueryTemplate 部分更新查询模板，零值字段保持不变。
func (h *Handler) PatchQueryTemplate(c *gin.Context) {
	var spec strategy.QueryTemplateSpec
	if err := bindJSON(c, &spec); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	t, err := h.svc.Composer().PatchQueryTemplate(c.Request.Context(), c.Param("query"), &spec)
	httputils.WriteResponse(c, err, t)
}

// DeleteQueryTemplate 删除查询模板。
func (h *Handler) DeleteQueryTemplate(c *gin.Context) {
	err := h.svc.Composer().DeleteQueryTemplate(c.Request.Context(), c.Param("query"))
	httputils.WriteResponse(c, err, nil)
}

// PutCredential 写入当前用户在某生成策略下的 API Key。
func (h *Handler) PutCredential(c *gin.Context) {
	var req struct {
		APIKey string `json:"api_key" binding:"required"`
	}
	if err := bindJSON(c, &req); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	llmNo := c.Param("llm")
	if llmNo == "" {
		httputils.WriteResponse(c, errors.ErrValidation.WithMessage("llm is required"), nil)
		return
	}

	err := h.svc.Credentials().Put(c.Request.Context(), &model.Credential{
		UserNo: userNo(c),
		LLMNo:  llmNo,
		APIKey: req.APIKey,
	})
	httputils.WriteResponse(c, err, nil)
}

// DeleteCredential 删除当前用户在某生成策略下的 API Key。
func (h *Handler) DeleteCredential(c *gin.Context) {
	err := h.svc.Credentials().Delete(c.Request.Context(), userNo(c), c.Param("llm"))
	httputils.WriteResponse(c, err, nil)
}
