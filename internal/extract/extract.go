// Package extract converts uploaded documents into canonical UTF-8 text or
// markdown, one driver per format. Canonical output is uploaded to the
// object store; rich formats may call the remote Marker converter and the
// remote layout detector, degrading to plain extraction when those fail.
package extract

import (
	"bytes"
	"context"
	"io"
	"path"
	"strings"

	"github.com/kart-io/ragx/internal/chunk"
	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/pkg/utils/errors"
)

// ProgressFunc reports (processed, total) at driver-chosen granularity.
// total is -1 when unknown up front.
type ProgressFunc func(processed, total int)

// Source identifies the file to extract.
type Source struct {
	Path     string // local path of the uploaded file
	FileName string // original name, used for format detection and keys
	UserNo   string
}

// Result is the canonical extraction output.
type Result struct {
	FullText string
	Pages    []chunk.Page
	Assets   []model.Asset
	Bucket   string
	Path     string
}

// Driver extracts one document format.
type Driver interface {
	Extract(ctx context.Context, src Source, progress ProgressFunc) (*Result, error)
}

// ObjectStore is the slice of the object-store client extraction needs.
type ObjectStore interface {
	Bucket() string
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
}

// Deps carries the external collaborators shared by all drivers.
type Deps struct {
	Objects ObjectStore
	Marker  *MarkerClient
	Layout  *LayoutClient
}

// codeByExt maps file extensions to extraction strategy codes.
var codeByExt = map[string]string{
	".txt":      "EXT_TXT",
	".md":       "EXT_MD",
	".markdown": "EXT_MD",
	".csv":      "EXT_CSV",
	".tsv":      "EXT_CSV",
	".docx":     "EXT_DOCX",
	".pptx":     "EXT_PPTX",
	".pdf":      "EXT_PDF",
}

// CodeForFile returns the extraction strategy code for a file name.
// Unknown extensions fail with UNSUPPORTED_FORMAT.
func CodeForFile(fileName string) (string, error) {
	ext := strings.ToLower(path.Ext(fileName))
	code, ok := codeByExt[ext]
	if !ok {
		return "", errors.ErrUnsupportedFormat.WithMessagef("no extractor for %q", ext)
	}
	return code, nil
}

// New builds the driver for a resolved extraction strategy binding.
func New(binding model.StrategyBinding, deps Deps) (Driver, error) {
	switch binding.Code {
	case "EXT_TXT":
		return &textDriver{deps: deps, markdown: false}, nil
	case "EXT_MD":
		return &textDriver{deps: deps, markdown: true}, nil
	case "EXT_CSV":
		return newCSVDriver(binding.Parameter, deps), nil
	case "EXT_DOCX":
		return &docxDriver{deps: deps}, nil
	case "EXT_PPTX":
		return &pptxDriver{deps: deps}, nil
	case "EXT_PDF":
		return newPDFDriver(binding.Parameter, deps), nil
	default:
		return nil, errors.ErrUnsupportedFormat.WithMessagef("unknown extraction code %q", binding.Code)
	}
}

// stem strips the extension from a file name.
func stem(fileName string) string {
	base := path.Base(fileName)
	return strings.TrimSuffix(base, path.Ext(base))
}

// uploadCanonical stores the canonical text under
// ingest/{user}/{stem}.{txt|md} and fills Bucket/Path on the result.
func uploadCanonical(ctx context.Context, deps Deps, src Source, res *Result, markdown bool) error {
	if deps.Objects == nil {
		return nil
	}
	ext := ".txt"
	contentType := "text/plain; charset=utf-8"
	if markdown {
		ext = ".md"
		contentType = "text/markdown; charset=utf-8"
	}
	key := path.Join(src.UserNo, stem(src.FileName)+ext)

	data := []byte(res.FullText)
	if _, err := deps.Objects.Upload(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return err
	}
	res.Bucket = deps.Objects.Bucket()
	res.Path = key
	return nil
}

// singlePage wraps full text as page 1.
func singlePage(text string) []chunk.Page {
	return []chunk.Page{{PageNo: 1, Text: text}}
}

func noProgress(progress ProgressFunc) ProgressFunc {
	if progress == nil {
		return func(int, int) {}
	}
	return progress
}
