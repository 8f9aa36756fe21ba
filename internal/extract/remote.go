package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"time"

	"github.com/kart-io/ragx/pkg/utils/errors"
	"github.com/kart-io/ragx/pkg/utils/httpclient"
	"github.com/kart-io/ragx/pkg/utils/json"
)

// MarkerClient calls the remote markdown converter. Conversions can take
// minutes on large documents, so the timeout is generous.
type MarkerClient struct {
	baseURL string
	hc      *httpclient.Client
}

// NewMarkerClient creates a Marker client.
func NewMarkerClient(baseURL string, timeout time.Duration) *MarkerClient {
	if timeout <= 0 {
		timeout = 600 * time.Second
	}
	return &MarkerClient{
		baseURL: baseURL,
		hc:      httpclient.NewClient(timeout, 1),
	}
}

// MarkerResult is the converter's payload. PresignedURL is set for non-PDF
// input and points at the converted PDF for downstream layout detection.
type MarkerResult struct {
	Markdown     string `json:"markdown"`
	PresignedURL string `json:"presigned_url,omitempty"`
}

type markerEnvelope struct {
	Result struct {
		Data MarkerResult `json:"data"`
	} `json:"result"`
}

// Convert uploads the file and returns its markdown rendition.
func (c *MarkerClient) Convert(ctx context.Context, filePath, fileName string) (*MarkerResult, error) {
	req, err := multipartFileRequest(ctx, c.baseURL+"/v1/convert", filePath, fileName, nil)
	if err != nil {
		return nil, err
	}

	var env markerEnvelope
	if err := c.hc.DoJSON(req, &env); err != nil {
		return nil, errors.ErrUpstreamUnavailable.WithCause(err)
	}
	if env.Result.Data.Markdown == "" {
		return nil, errors.ErrUpstreamUnavailable.WithMessage("marker returned empty markdown")
	}
	return &env.Result.Data, nil
}

// LayoutClient calls the remote YOLO layout detector.
type LayoutClient struct {
	baseURL string
	hc      *httpclient.Client
}

// NewLayoutClient creates a layout detector client.
func NewLayoutClient(baseURL string, timeout time.Duration) *LayoutClient {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &LayoutClient{
		baseURL: baseURL,
		hc:      httpclient.NewClient(timeout, 1),
	}
}

// DetectionItem is one detected region.
type DetectionItem struct {
	Cls  string     `json:"cls"` // figure or table
	Conf float64    `json:"conf"`
	BBox [4]float64 `json:"bbox"`
}

// PageDetections groups detections per page.
type PageDetections struct {
	Page  int             `json:"page"`
	Items []DetectionItem `json:"items"`
}

type layoutEnvelope struct {
	Result struct {
		Data struct {
			Detections []PageDetections `json:"detections"`
		} `json:"data"`
	} `json:"result"`
}

// Detect uploads the document and returns figure/table detections for the
// given pages at the given confidence threshold.
func (c *LayoutClient) Detect(ctx context.Context, filePath, fileName string, pages []int, confidence float64) ([]PageDetections, error) {
	pagesJSON, err := json.Marshal(pages)
	if err != nil {
		return nil, err
	}
	fields := map[string]string{
		"pages":      string(pagesJSON),
		"confidence": fmt.Sprintf("%g", confidence),
	}
	req, err := multipartFileRequest(ctx, c.baseURL+"/v1/detect", filePath, fileName, fields)
	if err != nil {
		return nil, err
	}

	var env layoutEnvelope
	if err := c.hc.DoJSON(req, &env); err != nil {
		return nil, errors.ErrUpstreamUnavailable.WithCause(err)
	}
	return env.Result.Data.Detections, nil
}

// multipartFileRequest builds a multipart POST with the file under "file"
// plus any extra form fields.
func multipartFileRequest(ctx context.Context, url, filePath, fileName string, fields map[string]string) (*http.Request, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, errors.ErrExtractFailed.WithCause(err)
	}
	defer f.Close()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req, nil
}
