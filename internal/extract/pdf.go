package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/kart-io/logger"
	"github.com/ledongthuc/pdf"

	"github.com/kart-io/ragx/internal/chunk"
	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/pkg/utils/errors"
	"github.com/kart-io/ragx/pkg/utils/id"
)

// pdfDriver extracts per-page plain text. When the enhanced path is
// enabled it asks Marker for a markdown rendition and the layout detector
// for figure/table regions; both degrade to basic extraction on failure.
type pdfDriver struct {
	deps       Deps
	useMarker  bool
	useLayout  bool
	confidence float64
}

func newPDFDriver(p model.ParamMap, deps Deps) *pdfDriver {
	d := &pdfDriver{deps: deps, confidence: 0.4}
	if b, ok := p["use_marker"].(bool); ok {
		d.useMarker = b
	}
	if b, ok := p["use_layout"].(bool); ok {
		d.useLayout = b
	}
	var layout map[string]any
	switch t := p["layout"].(type) {
	case model.ParamMap:
		layout = t
	case map[string]any:
		layout = t
	}
	if c, ok := layout["confidence"].(float64); ok && c > 0 {
		d.confidence = c
	}
	return d
}

func (d *pdfDriver) Extract(ctx context.Context, src Source, progress ProgressFunc) (*Result, error) {
	progress = noProgress(progress)

	res, markdown, err := d.extractBase(ctx, src, progress)
	if err != nil {
		return nil, err
	}

	if d.useLayout && d.deps.Layout != nil && len(res.Pages) > 0 {
		d.annotateLayout(ctx, src, res)
	}

	if err := uploadCanonical(ctx, d.deps, src, res, markdown); err != nil {
		return nil, errors.ErrExtractFailed.WithCause(err)
	}
	return res, nil
}

// extractBase returns the page texts, preferring the Marker rendition when
// enabled and falling back to local plain-text extraction.
func (d *pdfDriver) extractBase(ctx context.Context, src Source, progress ProgressFunc) (*Result, bool, error) {
	if d.useMarker && d.deps.Marker != nil {
		converted, err := d.deps.Marker.Convert(ctx, src.Path, src.FileName)
		if err == nil {
			res := &Result{
				FullText: converted.Markdown,
				Pages:    singlePage(converted.Markdown),
			}
			progress(1, 1)
			return res, true, nil
		}
		logger.Warnw("marker conversion failed, falling back to plain extraction",
			"file", src.FileName, "error", err.Error())
	}

	res, err := d.extractPlain(ctx, src, progress)
	if err != nil {
		return nil, false, err
	}
	return res, false, nil
}

func (d *pdfDriver) extractPlain(ctx context.Context, src Source, progress ProgressFunc) (*Result, error) {
	f, reader, err := pdf.Open(src.Path)
	if err != nil {
		return nil, errors.ErrExtractFailed.WithCause(err)
	}
	defer f.Close()

	total := reader.NumPage()
	res := &Result{}
	var parts []string

	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			progress(i, total)
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			logger.Warnw("pdf page extraction failed", "file", src.FileName, "page", i, "error", err.Error())
			progress(i, total)
			continue
		}
		text = strings.TrimSpace(text)
		if text != "" {
			res.Pages = append(res.Pages, chunk.Page{PageNo: i, Text: text})
			parts = append(parts, text)
		}
		progress(i, total)
	}

	res.FullText = strings.Join(parts, "\n\n")
	return res, nil
}

// annotateLayout records detected figures and tables as assets and appends
// placeholders to the pages they appear on. Detector failure is logged and
// ignored.
func (d *pdfDriver) annotateLayout(ctx context.Context, src Source, res *Result) {
	pageNos := make([]int, len(res.Pages))
	for i, p := range res.Pages {
		pageNos[i] = p.PageNo
	}

	detections, err := d.deps.Layout.Detect(ctx, src.Path, src.FileName, pageNos, d.confidence)
	if err != nil {
		logger.Warnw("layout detection failed, continuing without assets",
			"file", src.FileName, "error", err.Error())
		return
	}

	byPage := make(map[int][]DetectionItem, len(detections))
	for _, det := range detections {
		byPage[det.Page] = append(byPage[det.Page], det.Items...)
	}

	for i := range res.Pages {
		items := byPage[res.Pages[i].PageNo]
		for _, item := range items {
			if item.Conf < d.confidence {
				continue
			}
			kind := "fig"
			if item.Cls == "table" {
				kind = "tbl"
			}
			asset := model.Asset{
				Kind: kind,
				UID:  id.NewUUID(),
				Desc: fmt.Sprintf("%s on page %d", item.Cls, res.Pages[i].PageNo),
			}
			res.Assets = append(res.Assets, asset)
			res.Pages[i].Text += fmt.Sprintf("\n<<<PLACEHOLDER|%s|%s|desc=%q>>>", asset.Kind, asset.UID, asset.Desc)
		}
	}
}
