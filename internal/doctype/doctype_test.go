package doctype

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var (
	pdfSample  = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")
	htmlSample = []byte("<!DOCTYPE html><html><head><title>x</title></head><body></body></html>")
	mdSample   = []byte("# Quantum Computing\n\nAn overview with a [reference](https://example.com).\n\n- qubits\n- gates\n")
	txtSample  = []byte("Just a plain paragraph of prose without any structure to speak of.\n")
)

func TestClassifySignatures(t *testing.T) {
	t.Parallel()

	require.Equal(t, TypePDF, Classify(pdfSample, TypeUnknown))
	require.Equal(t, TypeHTML, Classify(htmlSample, TypeUnknown))
	require.Equal(t, TypeText, Classify(txtSample, TypeUnknown))
}

func TestClassifyMarkdownBeatsDeclaredExtension(t *testing.T) {
	t.Parallel()

	// A markdown document served as .txt classifies as markdown; the
	// declared extension is advisory only.
	require.Equal(t, TypeMarkdown, Classify(mdSample, TypeText))
}

func TestClassifyHintDisambiguatesZip(t *testing.T) {
	t.Parallel()

	zipSample := []byte{0x50, 0x4b, 0x03, 0x04, 0x14, 0x00, 0x06, 0x00}
	require.Equal(t, TypeDocx, Classify(zipSample, TypeDocx))
	require.Equal(t, TypeUnknown, Classify(zipSample, TypePDF))
}

func TestClassifyHintNeverOverridesSignature(t *testing.T) {
	t.Parallel()

	require.Equal(t, TypePDF, Classify(pdfSample, TypeHTML))
	require.Equal(t, TypeHTML, Classify(htmlSample, TypePDF))
}

func TestClassifyEmptySample(t *testing.T) {
	t.Parallel()

	require.Equal(t, TypeUnknown, Classify(nil, TypePDF))
	require.Equal(t, TypeUnknown, Classify([]byte{}, TypeUnknown))
}

func TestClassifyIdempotent(t *testing.T) {
	t.Parallel()

	first := Classify(mdSample, TypeUnknown)
	second := Classify(mdSample, TypeUnknown)
	require.Equal(t, first, second)
}

func TestAllowed(t *testing.T) {
	t.Parallel()

	require.True(t, Allowed(TypePDF, nil))
	require.True(t, Allowed(TypePDF, []Type{TypePDF, TypeDocx}))
	require.False(t, Allowed(TypeHTML, []Type{TypePDF}))
	require.False(t, Allowed(TypeUnknown, nil))
	require.False(t, Allowed(TypeUnknown, []Type{TypePDF}))
}

func TestParseTypes(t *testing.T) {
	t.Parallel()

	types, err := ParseTypes("pdf, docx,md")
	require.NoError(t, err)
	require.Equal(t, []Type{TypePDF, TypeDocx, TypeMarkdown}, types)

	types, err = ParseTypes(".pdf,pdf")
	require.NoError(t, err)
	require.Equal(t, []Type{TypePDF}, types)

	_, err = ParseTypes("pdf,exe")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported file type")
}

func TestExtensionTables(t *testing.T) {
	t.Parallel()

	require.Equal(t, ".md", TypeMarkdown.Extension())
	require.Equal(t, "pdf", TypePDF.QueryHint())
	require.Equal(t, TypeHTML, FromExtension(".HTM"))
	require.Equal(t, TypePDF, FromMIME("application/pdf; charset=binary"))
	require.Equal(t, TypeUnknown, FromMIME("application/octet-stream"))
}
