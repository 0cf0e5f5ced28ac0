package extractor

import (
	"context"
	"strings"
	"unicode/utf8"

	"ragapi/pkg/apperr"
)

// Plain treats the file as UTF-8 text; form feeds separate pages.
type Plain struct{}

func (Plain) Name() string    { return "plain" }
func (Plain) Types() []string { return []string{"txt", "md", "csv", "json"} }

func (Plain) Extract(_ context.Context, data []byte) ([]Page, error) {
	if !utf8.Valid(data) {
		return nil, apperr.InvalidField("file", "text file is not valid UTF-8")
	}
	parts := strings.Split(string(data), "\f")
	pages := make([]Page, 0, len(parts))
	for i, p := range parts {
		pages = append(pages, Page{Number: i + 1, Text: p})
	}
	return nonEmpty(pages), nil
}
