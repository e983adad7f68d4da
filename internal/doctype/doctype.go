// Package doctype classifies downloaded documents by their true content type.
//
// Byte-signature sniffing is the source of truth. A declared extension (from
// the URL path or a Content-Type header) is advisory only: it can pick the
// specific member of a signature family (zip -> docx, OLE -> doc) but never
// overrides a conflicting signature match.
package doctype

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Type identifies a supported document kind.
type Type string

// Supported document kinds. TypeUnknown marks samples that matched no
// signature; callers must treat it as a rejection, never as a retryable
// failure.
const (
	TypeUnknown  Type = ""
	TypePDF      Type = "pdf"
	TypeDoc      Type = "doc"
	TypeDocx     Type = "docx"
	TypeMarkdown Type = "markdown"
	TypeHTML     Type = "html"
	TypeText     Type = "text"
)

// declaredExtensions maps the extensions a URL may claim to the type they
// suggest.
var declaredExtensions = map[string]Type{
	".pdf":      TypePDF,
	".doc":      TypeDoc,
	".docx":     TypeDocx,
	".md":       TypeMarkdown,
	".markdown": TypeMarkdown,
	".html":     TypeHTML,
	".htm":      TypeHTML,
	".txt":      TypeText,
}

// canonicalExtensions holds the extension used when naming accepted files.
var canonicalExtensions = map[Type]string{
	TypePDF:      ".pdf",
	TypeDoc:      ".doc",
	TypeDocx:     ".docx",
	TypeMarkdown: ".md",
	TypeHTML:     ".html",
	TypeText:     ".txt",
}

// declaredMIMEs maps advisory Content-Type values to the type they suggest.
var declaredMIMEs = map[string]Type{
	"application/pdf":    TypePDF,
	"application/msword": TypeDoc,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": TypeDocx,
	"text/markdown": TypeMarkdown,
	"text/html":     TypeHTML,
	"text/plain":    TypeText,
}

// All returns every supported type in a stable order.
func All() []Type {
	return []Type{TypePDF, TypeDoc, TypeDocx, TypeMarkdown, TypeHTML, TypeText}
}

// Extension returns the canonical file extension for t, including the dot.
func (t Type) Extension() string {
	return canonicalExtensions[t]
}

// QueryHint returns the bare extension used in filetype: search operators.
func (t Type) QueryHint() string {
	return strings.TrimPrefix(canonicalExtensions[t], ".")
}

// FromExtension returns the type suggested by a declared extension, or
// TypeUnknown when the extension is unsupported.
func FromExtension(ext string) Type {
	return declaredExtensions[strings.ToLower(ext)]
}

// FromMIME returns the type suggested by a declared Content-Type value,
// ignoring parameters such as charset.
func FromMIME(contentType string) Type {
	mt, _, _ := strings.Cut(contentType, ";")
	return declaredMIMEs[strings.TrimSpace(strings.ToLower(mt))]
}

// ParseTypes parses a comma-separated allow list such as "pdf,docx,md".
func ParseTypes(raw string) ([]Type, error) {
	var out []Type
	seen := make(map[Type]struct{})
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(tok)), ".")
		if tok == "" {
			continue
		}
		t := FromExtension("." + tok)
		if t == TypeUnknown {
			return nil, fmt.Errorf("unsupported file type: %s", tok)
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

// Classify determines the true type of a byte sample. The hint is advisory
// and only disambiguates within a signature family.
func Classify(sample []byte, hint Type) Type {
	if len(sample) == 0 {
		return TypeUnknown
	}
	m := mimetype.Detect(sample)
	switch {
	case m.Is("application/pdf"):
		return TypePDF
	case m.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document"):
		return TypeDocx
	case m.Is("application/msword"):
		return TypeDoc
	case m.Is("application/zip"):
		// A short sample of a docx often only sniffs as generic zip.
		if hint == TypeDocx {
			return TypeDocx
		}
		return TypeUnknown
	case m.Is("application/x-ole-storage"):
		if hint == TypeDoc {
			return TypeDoc
		}
		return TypeUnknown
	case m.Is("text/html"):
		return TypeHTML
	}
	if isTextual(m) {
		if looksLikeMarkdown(sample) {
			return TypeMarkdown
		}
		if hint == TypeMarkdown {
			return TypeMarkdown
		}
		return TypeText
	}
	return TypeUnknown
}

// Allowed reports whether t belongs to the allow set. An empty set means
// every supported type is accepted; TypeUnknown is never accepted.
func Allowed(t Type, allow []Type) bool {
	if t == TypeUnknown {
		return false
	}
	if len(allow) == 0 {
		return true
	}
	for _, a := range allow {
		if a == t {
			return true
		}
	}
	return false
}

func isTextual(m *mimetype.MIME) bool {
	for cur := m; cur != nil; cur = cur.Parent() {
		if cur.Is("text/plain") {
			return true
		}
	}
	return false
}

var markdownMarkers = [][]byte{
	[]byte("# "),
	[]byte("## "),
	[]byte("### "),
	[]byte("```"),
	[]byte("- "),
	[]byte("* "),
	[]byte("> "),
}

// looksLikeMarkdown checks for a minimal density of markdown constructs so a
// single dash in prose does not flip a plain text file.
func looksLikeMarkdown(sample []byte) bool {
	hits := 0
	for _, line := range bytes.Split(sample, []byte("\n")) {
		trimmed := bytes.TrimLeft(line, " \t")
		for _, marker := range markdownMarkers {
			if bytes.HasPrefix(trimmed, marker) {
				hits++
				break
			}
		}
		if bytes.Contains(line, []byte("](")) {
			hits++
		}
	}
	return hits >= 2
}
