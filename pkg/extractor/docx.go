package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"ragapi/pkg/apperr"
)

// DOCX reads word/document.xml. Explicit page breaks start a new page.
type DOCX struct{}

func (DOCX) Name() string    { return "docx_text" }
func (DOCX) Types() []string { return []string{"docx"} }

func (DOCX) Extract(_ context.Context, data []byte) ([]Page, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperr.InvalidField("file", "unreadable docx: "+err.Error())
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, apperr.InvalidField("file", "unreadable docx: "+err.Error())
		}
		defer rc.Close()
		return parseDocumentXML(rc)
	}
	return nil, apperr.InvalidField("file", "docx has no word/document.xml")
}

func parseDocumentXML(r io.Reader) ([]Page, error) {
	dec := xml.NewDecoder(r)
	var (
		pages  []Page
		cur    strings.Builder
		inText bool
	)
	flush := func() {
		pages = append(pages, Page{Number: len(pages) + 1, Text: cur.String()})
		cur.Reset()
	}
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperr.InvalidField("file", "malformed docx xml: "+err.Error())
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				cur.WriteByte('\t')
			case "br", "cr":
				if attr(t, "type") == "page" {
					flush()
				} else {
					cur.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				cur.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				cur.Write(t)
			}
		}
	}
	flush()
	return nonEmpty(pages), nil
}

func attr(e xml.StartElement, local string) string {
	for _, a := range e.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}
