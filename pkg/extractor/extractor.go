// Package extractor turns uploaded files into page-scoped text. Each
// strategy is bound to the file types it understands; a collection names
// the strategy it wants per file type and the registry falls back to the
// type's default when that name is unknown or does not fit.
package extractor

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"ragapi/pkg/apperr"
)

// Page is the text of one page, sheet or section. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

type Extractor interface {
	Name() string
	Types() []string
	Extract(ctx context.Context, data []byte) ([]Page, error)
}

type Registry struct {
	byName   map[string]Extractor
	defaults map[string]Extractor
	log      *zap.Logger
}

var aliases = map[string]string{
	"pymupdf":     "pdf_text",
	"pymupdf4llm": "pdf_text",
	"html_text":   "to_md",
	"html":        "to_md",
	"excel":       "xlsx_rows",
	"text":        "plain",
}

// NewRegistry registers every built-in strategy. The first extractor
// registered for a file type becomes that type's default.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{byName: map[string]Extractor{}, defaults: map[string]Extractor{}, log: log}
	r.Register(PDF{})
	r.Register(HTML{})
	r.Register(XLSX{})
	r.Register(DOCX{})
	r.Register(Plain{})
	return r
}

func (r *Registry) Register(e Extractor) {
	r.byName[e.Name()] = e
	for _, t := range e.Types() {
		if _, ok := r.defaults[t]; !ok {
			r.defaults[t] = e
		}
	}
}

// FileType is the lower-cased extension without the dot.
func FileType(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
}

func (r *Registry) Lookup(name string) (Extractor, bool) {
	key := strings.ToLower(strings.TrimSpace(name))
	if canon, ok := aliases[key]; ok {
		key = canon
	}
	e, ok := r.byName[key]
	return e, ok
}

// Resolve picks the extractor for fileName given a collection's
// extraction_strategy map.
func (r *Registry) Resolve(fileName string, strategies map[string]string) (Extractor, error) {
	ft := FileType(fileName)
	def, ok := r.defaults[ft]
	if !ok {
		return nil, apperr.InvalidField("file", "unsupported file type "+quoteType(ft)+"; supported: "+strings.Join(r.SupportedTypes(), ", "))
	}

	name, configured := strategies[ft]
	if !configured {
		return def, nil
	}
	if e, ok := r.Lookup(name); ok && supports(e, ft) {
		return e, nil
	}
	r.log.Warn("extraction strategy not usable for file type, using default",
		zap.String("file_type", ft),
		zap.String("strategy", name),
		zap.String("default", def.Name()),
	)
	return def, nil
}

func (r *Registry) SupportedTypes() []string {
	out := make([]string, 0, len(r.defaults))
	for t := range r.defaults {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func supports(e Extractor, ft string) bool {
	for _, t := range e.Types() {
		if t == ft {
			return true
		}
	}
	return false
}

func quoteType(ft string) string {
	if ft == "" {
		return "(none)"
	}
	return "." + ft
}

// nonEmpty drops pages without text and keeps numbering.
func nonEmpty(pages []Page) []Page {
	out := pages[:0]
	for _, p := range pages {
		p.Text = strings.TrimSpace(p.Text)
		if p.Text != "" {
			out = append(out, p)
		}
	}
	return out
}
