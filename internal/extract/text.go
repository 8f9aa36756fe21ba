package extract

import (
	"bufio"
	"context"
	"os"
	"strings"

	"github.com/kart-io/ragx/pkg/utils/errors"
)

// textDriver handles plain text and markdown. The file is read line by
// line; progress counts consumed bytes against the file size.
type textDriver struct {
	deps     Deps
	markdown bool
}

func (d *textDriver) Extract(ctx context.Context, src Source, progress ProgressFunc) (*Result, error) {
	progress = noProgress(progress)

	f, err := os.Open(src.Path)
	if err != nil {
		return nil, errors.ErrExtractFailed.WithCause(err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, errors.ErrExtractFailed.WithCause(err)
	}
	total := int(info.Size())

	var (
		sb        strings.Builder
		processed int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Text()
		sb.WriteString(line)
		sb.WriteByte('\n')
		processed += len(line) + 1
		progress(min(processed, total), total)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.ErrExtractFailed.WithCause(err)
	}

	res := &Result{
		FullText: strings.TrimRight(sb.String(), "\n"),
	}
	if res.FullText != "" {
		res.Pages = singlePage(res.FullText)
	}
	if err := uploadCanonical(ctx, d.deps, src, res, d.markdown); err != nil {
		return nil, errors.ErrExtractFailed.WithCause(err)
	}
	return res, nil
}
