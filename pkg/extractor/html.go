package extractor

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"ragapi/pkg/apperr"
)

// HTML keeps the readable blocks of a page and renders headings in
// markdown form.
type HTML struct{}

func (HTML) Name() string    { return "to_md" }
func (HTML) Types() []string { return []string{"html", "htm"} }

func (HTML) Extract(_ context.Context, data []byte) ([]Page, error) {
	text, _, err := MainText(data)
	if err != nil {
		return nil, err
	}
	return nonEmpty([]Page{{Number: 1, Text: text}}), nil
}

// MainText returns the markdown-ish body text and the document title.
func MainText(data []byte) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", "", apperr.InvalidField("file", "unreadable html: "+err.Error())
	}
	title := strings.TrimSpace(doc.Find("title").First().Text())

	doc.Find("script, style, noscript, nav, footer").Remove()

	sel := doc.Find("main, article")
	if sel.Length() == 0 {
		sel = doc.Selection
	}

	var parts []string
	sel.Find("h1,h2,h3,h4,h5,h6,p,li,pre,td,blockquote").Each(func(_ int, s *goquery.Selection) {
		t := strings.TrimSpace(s.Text())
		if t == "" {
			return
		}
		switch name := goquery.NodeName(s); name {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			t = strings.Repeat("#", int(name[1]-'0')) + " " + t
		case "li":
			t = "- " + t
		}
		parts = append(parts, t)
	})
	if len(parts) == 0 {
		parts = append(parts, strings.TrimSpace(sel.Text()))
	}
	return cleanWhitespace(strings.Join(parts, "\n")), title, nil
}

var wsRX = regexp.MustCompile(`[ \t]+\n`)

func cleanWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	return wsRX.ReplaceAllString(s, "\n")
}
