package serviceImp

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"ragapi/pkg/apperr"
	"ragapi/pkg/collection/repository"
)

const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

type fieldKind int

const (
	kindString fieldKind = iota
	kindTime
	kindStringList
	kindStringMap
)

type fieldSpec struct {
	column   string
	kind     fieldKind
	sortable bool
}

// fields is the allow-list of filterable and sortable collection fields.
var fields = map[string]fieldSpec{
	"id":                  {"id", kindString, true},
	"name":                {"name", kindString, true},
	"authors":             {"authors", kindStringList, false},
	"created_at":          {"created_at", kindTime, true},
	"extraction_strategy": {"extraction_strategy", kindStringMap, false},
	"embedding_model":     {"embedding_model", kindString, true},
}

func allowed(sortable bool) string {
	var names []string
	for k, f := range fields {
		if !sortable || f.sortable {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// parseFilters decodes the filters query parameter. Keys are applied in
// sorted order so the generated SQL is stable.
func parseFilters(raw string) ([]repository.Filter, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, apperr.InvalidField("filters", "must be a JSON object")
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var (
		out  []repository.Filter
		errs []apperr.FieldError
	)
	for _, k := range keys {
		spec, ok := fields[k]
		if !ok {
			errs = append(errs, apperr.FieldError{Field: "filters." + k, Message: "cannot filter on this field; allowed: " + allowed(false)})
			continue
		}
		v, err := filterValue(spec.kind, m[k])
		if err != nil {
			errs = append(errs, apperr.FieldError{Field: "filters." + k, Message: err.Error()})
			continue
		}
		out = append(out, repository.Filter{Column: spec.column, Value: v})
	}
	if len(errs) > 0 {
		return nil, apperr.InvalidArgument("invalid filters", errs...)
	}
	return out, nil
}

type filterErr string

func (e filterErr) Error() string { return string(e) }

// filterValue converts a JSON filter value into what the column stores.
// List and map columns hold compact JSON, so they compare as re-encoded text.
func filterValue(kind fieldKind, raw json.RawMessage) (any, error) {
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, filterErr("must not be null")
	}
	switch kind {
	case kindString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, filterErr("must be a string")
		}
		return s, nil
	case kindTime:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, filterErr("must be an RFC 3339 timestamp")
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, filterErr("must be an RFC 3339 timestamp")
		}
		return t.UTC(), nil
	case kindStringList:
		var l []string
		if err := json.Unmarshal(raw, &l); err != nil {
			return nil, filterErr("must be a list of strings")
		}
		b, _ := json.Marshal(l)
		return string(b), nil
	case kindStringMap:
		var m map[string]string
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, filterErr("must be an object of strings")
		}
		b, _ := json.Marshal(m)
		return string(b), nil
	}
	return nil, filterErr("unsupported field")
}

// parseSort turns "name,-created_at" into sort columns. An empty value
// sorts by creation time. id ASC always closes the list so that pages
// never overlap.
func parseSort(raw string) ([]repository.SortField, error) {
	var (
		out  []repository.SortField
		errs []apperr.FieldError
		seen = map[string]bool{}
	)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		desc := false
		switch part[0] {
		case '-':
			desc, part = true, part[1:]
		case '+':
			part = part[1:]
		}
		spec, ok := fields[part]
		if !ok || !spec.sortable {
			errs = append(errs, apperr.FieldError{Field: "sort", Message: "cannot sort on " + part + "; allowed: " + allowed(true)})
			continue
		}
		if seen[spec.column] {
			continue
		}
		seen[spec.column] = true
		out = append(out, repository.SortField{Column: spec.column, Desc: desc})
	}
	if len(errs) > 0 {
		return nil, apperr.InvalidArgument("invalid sort", errs...)
	}
	if len(out) == 0 {
		out = append(out, repository.SortField{Column: "created_at"})
		seen["created_at"] = true
	}
	if !seen["id"] {
		out = append(out, repository.SortField{Column: "id"})
	}
	return out, nil
}

func pagination(page, perPage int) (offset, limit int, err error) {
	var errs []apperr.FieldError
	if page < 1 {
		errs = append(errs, apperr.FieldError{Field: "page", Message: "must be at least 1"})
	}
	if perPage < 1 || perPage > MaxPerPage {
		errs = append(errs, apperr.FieldError{Field: "per_page", Message: "must be between 1 and 100"})
	}
	if len(errs) > 0 {
		return 0, 0, apperr.InvalidArgument("invalid pagination", errs...)
	}
	return (page - 1) * perPage, perPage, nil
}
