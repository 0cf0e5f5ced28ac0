package extractor

import (
	"bytes"
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"ragapi/pkg/apperr"
)

type PDF struct{}

func (PDF) Name() string    { return "pdf_text" }
func (PDF) Types() []string { return []string{"pdf"} }

func (PDF) Extract(ctx context.Context, data []byte) (pages []Page, err error) {
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, apperr.InvalidField("file", fmt.Sprintf("unreadable pdf: %v", r))
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperr.InvalidField("file", "unreadable pdf: "+err.Error())
	}

	n := r.NumPage()
	pages = make([]Page, 0, n)
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, apperr.InvalidField("file", fmt.Sprintf("pdf page %d: %v", i, err))
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	return nonEmpty(pages), nil
}
