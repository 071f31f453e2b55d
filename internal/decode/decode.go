// Package decode turns report workbooks into raw cell grids.
package decode

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"funnelgrid/config"
	"funnelgrid/internal/ingest"
	"funnelgrid/pkg/pipeerr"
)

// Options bounds a single decode.
type Options struct {
	// MaxRows caps the number of data rows read from the sheet. Zero means
	// the compiled-in default.
	MaxRows int
}

// FirstSheet reads the first worksheet of an .xlsx/.xlsm report into a
// RawGrid of trimmed string cells. Numeric cells arrive as their formatted
// string (serial dates stay serial), empty cells as "". The read is
// streamed so oversized exports do not load fully into memory.
func FirstSheet(ctx context.Context, path string, opts Options) (ingest.RawGrid, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".xlsx" && ext != ".xlsm" {
		return nil, pipeerr.Newf(pipeerr.UnsupportedFormat, "unsupported report format %q for %s", ext, path)
	}

	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = config.DefaultMaxRowsPerSource
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, pipeerr.Newf(pipeerr.DecodeFailed, "open %s: %v", path, err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, pipeerr.Newf(pipeerr.DecodeFailed, "%s has no worksheets", path)
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, pipeerr.Newf(pipeerr.DecodeFailed, "read %s!%s: %v", path, sheet, err)
	}
	defer rows.Close()

	grid := ingest.RawGrid{}
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, pipeerr.Newf(pipeerr.Cancelled, "decode %s: %v", path, err)
		}
		if len(grid) >= maxRows {
			break
		}
		cells, err := rows.Columns()
		if err != nil {
			return nil, pipeerr.Newf(pipeerr.DecodeFailed, "read %s!%s row %d: %v", path, sheet, len(grid)+1, err)
		}
		for i, c := range cells {
			cells[i] = strings.TrimSpace(c)
		}
		grid = append(grid, cells)
	}
	if err := rows.Error(); err != nil {
		return nil, pipeerr.Newf(pipeerr.DecodeFailed, "read %s!%s: %v", path, sheet, err)
	}
	return grid, nil
}
