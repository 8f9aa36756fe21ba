package extract

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path"
	"strings"

	"github.com/kart-io/ragx/internal/model"
	"github.com/kart-io/ragx/pkg/utils/errors"
)

// csvDriver renders CSV/TSV input as a markdown table, one progress tick
// per row.
type csvDriver struct {
	deps      Deps
	delimiter rune
	hasHeader bool
}

func newCSVDriver(p model.ParamMap, deps Deps) *csvDriver {
	d := &csvDriver{deps: deps, delimiter: ',', hasHeader: true}
	if s, ok := p["delimiter"].(string); ok && s != "" {
		d.delimiter = rune(s[0])
	}
	if b, ok := p["has_header"].(bool); ok {
		d.hasHeader = b
	}
	return d
}

func (d *csvDriver) Extract(ctx context.Context, src Source, progress ProgressFunc) (*Result, error) {
	progress = noProgress(progress)

	f, err := os.Open(src.Path)
	if err != nil {
		return nil, errors.ErrExtractFailed.WithCause(err)
	}
	defer f.Close()

	delimiter := d.delimiter
	if strings.EqualFold(path.Ext(src.FileName), ".tsv") {
		delimiter = '\t'
	}

	r := csv.NewReader(f)
	r.Comma = delimiter
	r.FieldsPerRecord = -1

	var (
		sb   strings.Builder
		rows int
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.ErrExtractFailed.WithCause(err)
		}

		writeTableRow(&sb, record)
		if rows == 0 && d.hasHeader {
			writeSeparatorRow(&sb, len(record))
		}
		rows++
		progress(rows, -1)
	}

	res := &Result{
		FullText: strings.TrimRight(sb.String(), "\n"),
	}
	if res.FullText != "" {
		res.Pages = singlePage(res.FullText)
	}
	if err := uploadCanonical(ctx, d.deps, src, res, true); err != nil {
		return nil, errors.ErrExtractFailed.WithCause(err)
	}
	return res, nil
}

func writeTableRow(sb *strings.Builder, fields []string) {
	sb.WriteString("|")
	for _, f := range fields {
		sb.WriteString(" ")
		sb.WriteString(strings.ReplaceAll(f, "|", "\\|"))
		sb.WriteString(" |")
	}
	sb.WriteString("\n")
}

func writeSeparatorRow(sb *strings.Builder, cols int) {
	sb.WriteString("|")
	for i := 0; i < cols; i++ {
		sb.WriteString(" --- |")
	}
	sb.WriteString("\n")
}
