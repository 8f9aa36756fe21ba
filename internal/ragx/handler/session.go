package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/ragx/internal/pkg/httputils"
	"github.com/kart-io/ragx/pkg/utils/errors"
)

// ListMessages 按时间序返回会话消息。
func (h *Handler) ListMessages(c *gin.Context) {
	session := c.Param("session")
	if session == "" {
		httputils.WriteResponse(c, errors.ErrValidation.WithMessage("session is required"), nil)
		return
	}

	msgs, err := h.svc.Memory().Messages(c.Request.Context(), userNo(c), session)
	httputils.WriteResponse(c, err, msgs)
}

// ClearMessages 清空会话历史，返回删除条数。
func (h *Handler) ClearMessages(c *gin.Context) {
	session := c.Param("session")
	if session == "" {
		httputils.WriteResponse(c, errors.ErrValidation.WithMessage("session is required"), nil)
		return
	}

	removed, err := h.svc.Memory().Clear(c.Request.Context(), userNo(c), session)
	httputils.WriteResponse(c, err, gin.H{"removed": removed})
}
