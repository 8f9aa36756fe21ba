package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/kart-io/ragx/internal/chunk"
	"github.com/kart-io/ragx/pkg/utils/errors"
)

// docxDriver extracts paragraphs from word/document.xml inside the OOXML
// archive, one progress tick per paragraph.
type docxDriver struct {
	deps Deps
}

func (d *docxDriver) Extract(ctx context.Context, src Source, progress ProgressFunc) (*Result, error) {
	progress = noProgress(progress)

	zr, err := zip.OpenReader(src.Path)
	if err != nil {
		return nil, errors.ErrExtractFailed.WithCause(err)
	}
	defer zr.Close()

	doc := zipEntry(&zr.Reader, "word/document.xml")
	if doc == nil {
		return nil, errors.ErrUnsupportedFormat.WithMessage("not a docx archive")
	}

	rc, err := doc.Open()
	if err != nil {
		return nil, errors.ErrExtractFailed.WithCause(err)
	}
	defer rc.Close()

	paragraphs, err := wordParagraphs(ctx, rc, progress)
	if err != nil {
		return nil, err
	}

	res := &Result{FullText: strings.Join(paragraphs, "\n\n")}
	if res.FullText != "" {
		res.Pages = singlePage(res.FullText)
	}
	if err := uploadCanonical(ctx, d.deps, src, res, false); err != nil {
		return nil, errors.ErrExtractFailed.WithCause(err)
	}
	return res, nil
}

// wordParagraphs walks the WordprocessingML token stream, joining w:t runs
// and breaking on w:p ends.
func wordParagraphs(ctx context.Context, r io.Reader, progress ProgressFunc) ([]string, error) {
	dec := xml.NewDecoder(r)

	var (
		paragraphs []string
		cur        strings.Builder
		inText     bool
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.ErrExtractFailed.WithCause(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "br":
				cur.WriteByte('\n')
			case "tab":
				cur.WriteByte('\t')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(cur.String()); s != "" {
					paragraphs = append(paragraphs, s)
					progress(len(paragraphs), -1)
				}
				cur.Reset()
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		paragraphs = append(paragraphs, s)
	}
	return paragraphs, nil
}

// pptxDriver extracts text per slide; each slide becomes one page.
type pptxDriver struct {
	deps Deps
}

func (d *pptxDriver) Extract(ctx context.Context, src Source, progress ProgressFunc) (*Result, error) {
	progress = noProgress(progress)

	zr, err := zip.OpenReader(src.Path)
	if err != nil {
		return nil, errors.ErrExtractFailed.WithCause(err)
	}
	defer zr.Close()

	slides := slideEntries(&zr.Reader)
	if len(slides) == 0 {
		return nil, errors.ErrUnsupportedFormat.WithMessage("not a pptx archive")
	}

	res := &Result{}
	var parts []string
	for i, entry := range slides {
		rc, err := entry.file.Open()
		if err != nil {
			return nil, errors.ErrExtractFailed.WithCause(err)
		}
		text, err := slideText(ctx, rc)
		rc.Close()
		if err != nil {
			return nil, err
		}
		if text != "" {
			res.Pages = append(res.Pages, chunk.Page{PageNo: entry.number, Text: text})
			parts = append(parts, text)
		}
		progress(i+1, len(slides))
	}
	res.FullText = strings.Join(parts, "\n\n")

	if err := uploadCanonical(ctx, d.deps, src, res, false); err != nil {
		return nil, errors.ErrExtractFailed.WithCause(err)
	}
	return res, nil
}

type slideEntry struct {
	number int
	file   *zip.File
}

// slideEntries finds ppt/slides/slideN.xml in slide order.
func slideEntries(zr *zip.Reader) []slideEntry {
	var out []slideEntry
	for _, f := range zr.File {
		name := f.Name
		if !strings.HasPrefix(name, "ppt/slides/slide") || !strings.HasSuffix(name, ".xml") {
			continue
		}
		numStr := strings.TrimSuffix(strings.TrimPrefix(name, "ppt/slides/slide"), ".xml")
		n, err := strconv.Atoi(numStr)
		if err != nil {
			continue
		}
		out = append(out, slideEntry{number: n, file: f})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].number < out[j].number })
	return out
}

// slideText collects a:t runs, one line per paragraph (a:p).
func slideText(ctx context.Context, r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)

	var (
		lines  []string
		cur    strings.Builder
		inText bool
	)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.ErrExtractFailed.WithCause(err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(cur.String()); s != "" {
					lines = append(lines, s)
				}
				cur.Reset()
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	if s := strings.TrimSpace(cur.String()); s != "" {
		lines = append(lines, s)
	}
	return strings.Join(lines, "\n"), nil
}

func zipEntry(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}
