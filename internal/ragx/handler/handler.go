// Package handler implements the HTTP handlers of the RAG service.
package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/kart-io/ragx/internal/pkg/middleware"
	"github.com/kart-io/ragx/internal/ragx/biz"
	"github.com/kart-io/ragx/pkg/utils/errors"
)

// Handler 持有服务编排层，所有 HTTP 处理函数挂在其上。
type Handler struct {
	svc *biz.Service
}

// New 创建 HTTP 处理器。
func New(svc *biz.Service) *Handler {
	return &Handler{svc: svc}
}

func userNo(c *gin.Context) string {
	return middleware.UserNo(c)
}

// bindJSON 解析请求体，失败时统一映射为校验错误。
func bindJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		return errors.ErrValidation.WithMessage(err.Error())
	}
	return nil
}
