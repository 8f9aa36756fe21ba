package handler

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/ragx/internal/pkg/httputils"
	"github.com/kart-io/ragx/internal/pkg/rag/docutil"
	"github.com/kart-io/ragx/internal/pkg/rag/evaluator"
	"github.com/kart-io/ragx/internal/ragx/biz"
	"github.com/kart-io/ragx/pkg/utils/errors"
	"github.com/kart-io/ragx/pkg/utils/id"
	"github.com/kart-io/ragx/pkg/utils/json"
)

// QueryRequest POST /v1/rag/query 请求体。
type QueryRequest struct {
	Query     string `json:"query" binding:"required"`
	SessionNo string `json:"session_no" binding:"required"`
	QueryNo   string `json:"query_no"`
	Stream    bool   `json:"stream"`
}

// Query 执行一次问答。stream 为 true 时以 SSE 推送
// init、update、error 帧，否则返回完整结果。
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := bindJSON(c, &req); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	bizReq := &biz.QueryRequest{
		UserNo:    userNo(c),
		SessionNo: req.SessionNo,
		QueryNo:   req.QueryNo,
		Query:     req.Query,
	}

	if !req.Stream {
		res, err := h.svc.Query(c.Request.Context(), bizReq, nil)
		httputils.WriteResponse(c, err, res)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	var lastType string
	sink := func(ev biz.StreamEvent) error {
		lastType = ev.Type
		return writeFrame(c, ev)
	}

	if _, err := h.svc.Query(c.Request.Context(), bizReq, sink); err != nil && lastType != biz.StreamError {
		// 生成阶段的失败已由管线发出 error 帧，这里兜底其余阶段
		ec := errors.FromError(err)
		_ = writeFrame(c, biz.StreamEvent{Type: biz.StreamError, ErrorCode: ec.Reason, Message: ec.MessageEN})
	}
}

// writeFrame 写出一个 SSE 帧并立即刷出。
func writeFrame(c *gin.Context, ev biz.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

// Ingest 接收 multipart 上传并摄取文档。表单字段 file 必填，
// ingest_no 可选，缺省用默认摄取模板。
func (h *Handler) Ingest(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		httputils.WriteResponse(c, errors.ErrValidation.WithMessage("form file is required"), nil)
		return
	}

	tmp := filepath.Join(os.TempDir(), id.NewUUID()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, tmp); err != nil {
		httputils.WriteResponse(c, errors.ErrInternal.WithCause(err), nil)
		return
	}
	defer func() { _ = os.Remove(tmp) }()

	res, err := h.svc.Ingest(c.Request.Context(), &biz.IngestRequest{
		UserNo:   userNo(c),
		IngestNo: c.PostForm("ingest_no"),
		Path:     tmp,
		FileName: file.Filename,
	}, nil)
	httputils.WriteResponse(c, err, res)
}

// IngestURLRequest POST /v1/rag/ingest/url 请求体。
type IngestURLRequest struct {
	URL      string `json:"url" binding:"required"`
	FileName string `json:"file_name"`
	IngestNo string `json:"ingest_no"`
}

// IngestURL 下载远端文档后摄取。文件名缺省取 URL 路径的末段。
func (h *Handler) IngestURL(c *gin.Context) {
	var req IngestURLRequest
	if err := bindJSON(c, &req); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	fileName := req.FileName
	if fileName == "" {
		u, err := url.Parse(req.URL)
		if err != nil || path.Base(u.Path) == "/" || path.Base(u.Path) == "." {
			httputils.WriteResponse(c, errors.ErrValidation.WithMessage("cannot derive file name from url"), nil)
			return
		}
		fileName = path.Base(u.Path)
	}

	tmp := filepath.Join(os.TempDir(), id.NewUUID()+filepath.Ext(fileName))
	if err := docutil.DownloadFile(req.URL, tmp); err != nil {
		httputils.WriteResponse(c, errors.ErrValidation.WithMessagef("download failed: %v", err), nil)
		return
	}
	defer func() { _ = os.Remove(tmp) }()

	res, err := h.svc.Ingest(c.Request.Context(), &biz.IngestRequest{
		UserNo:   userNo(c),
		IngestNo: req.IngestNo,
		Path:     tmp,
		FileName: fileName,
	}, nil)
	httputils.WriteResponse(c, err, res)
}

// Stats 返回管线累计指标与向量库概况。
func (h *Handler) Stats(c *gin.Context) {
	httputils.WriteResponse(c, nil, h.svc.Stats(c.Request.Context()))
}

// Evaluate 对一次问答结果执行 Ragas 评估。
func (h *Handler) Evaluate(c *gin.Context) {
	var input evaluator.Input
	if err := bindJSON(c, &input); err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}
	res, err := h.svc.Evaluate(c.Request.Context(), &input)
	httputils.WriteResponse(c, err, res)
}

// Healthz 逐个探活依赖组件，任一失败返回 503。
func (h *Handler) Healthz(c *gin.Context) {
	healthy, components := h.svc.Health(c.Request.Context())
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"healthy": healthy, "components": components})
}
