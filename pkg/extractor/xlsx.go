package extractor

import (
	"bytes"
	"context"
	"strings"

	"github.com/xuri/excelize/v2"

	"ragapi/pkg/apperr"
)

// XLSX emits one page per sheet, one line per non-empty row.
type XLSX struct{}

func (XLSX) Name() string    { return "xlsx_rows" }
func (XLSX) Types() []string { return []string{"xlsx"} }

func (XLSX) Extract(ctx context.Context, data []byte) ([]Page, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperr.InvalidField("file", "unreadable xlsx: "+err.Error())
	}
	defer f.Close()

	var pages []Page
	for i, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, apperr.InvalidField("file", "sheet "+sheet+": "+err.Error())
		}
		var b strings.Builder
		b.WriteString("## " + sheet + "\n")
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, c := range row {
				if c = strings.TrimSpace(c); c != "" {
					cells = append(cells, c)
				}
			}
			if len(cells) > 0 {
				b.WriteString(strings.Join(cells, " | "))
				b.WriteByte('\n')
			}
		}
		if len(rows) == 0 {
			continue
		}
		pages = append(pages, Page{Number: i + 1, Text: b.String()})
	}
	return nonEmpty(pages), nil
}
