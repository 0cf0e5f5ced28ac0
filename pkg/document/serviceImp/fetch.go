package serviceImp

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"ragapi/pkg/apperr"
)

// Fetcher downloads HTML or plain-text pages from allow-listed hosts.
type Fetcher struct {
	allow    map[string]bool
	maxBytes int64
	httpc    *http.Client
}

type FetchedPage struct {
	Body []byte
	// Type is the file type the body should be extracted as: html or txt.
	Type string
	// Name is a file name derived from the URL.
	Name string
}

func NewFetcher(allowedDomains []string, maxBytes int, httpc *http.Client) *Fetcher {
	allow := map[string]bool{}
	for _, h := range allowedDomains {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			allow[h] = true
		}
	}
	if maxBytes <= 0 {
		maxBytes = 1500000
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: 20 * time.Second}
	}
	return &Fetcher{allow: allow, maxBytes: int64(maxBytes), httpc: httpc}
}

func (f *Fetcher) Fetch(ctx context.Context, raw string) (*FetchedPage, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperr.InvalidField("url", "must be an absolute http(s) URL")
	}
	if !f.allow[strings.ToLower(u.Hostname())] {
		return nil, apperr.InvalidField("url", "domain not allowed: "+u.Hostname())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, apperr.InvalidField("url", err.Error())
	}
	resp, err := f.httpc.Do(req)
	if err != nil {
		return nil, apperr.Upstream(http.StatusBadGateway, "fetch url", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, apperr.Upstream(http.StatusBadGateway, fmt.Sprintf("fetch url: upstream returned %d", resp.StatusCode), nil)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, apperr.InvalidField("url", "page too large")
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, apperr.Upstream(http.StatusBadGateway, "read url body", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, apperr.InvalidField("url", "page too large")
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	var typ string
	switch {
	case strings.Contains(ct, "text/html"):
		typ = "html"
	case strings.Contains(ct, "text/plain"):
		typ = "txt"
	default:
		return nil, apperr.InvalidField("url", "unsupported content-type: "+ct)
	}

	name := path.Base(u.Path)
	if name == "/" || name == "." || name == "" {
		name = u.Hostname()
	}
	return &FetchedPage{Body: body, Type: typ, Name: name}, nil
}
