package parser

import (
	"archive/zip"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-rag-qa/internal/testutil"
)

func TestLoadDirectoryPDFPages(t *testing.T) {
	dir := t.TempDir()
	_, err := testutil.WritePDF(dir, "b.pdf", "Bravo first page", "Bravo second page")
	require.NoError(t, err)
	_, err = testutil.WritePDF(dir, "a.pdf", "Alpha only page")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	pages, err := LoadDirectory(dir, LoaderOptions{})
	require.NoError(t, err)
	require.Len(t, pages, 3)

	assert.Equal(t, "a.pdf", pages[0].DocumentName)
	assert.Equal(t, 1, pages[0].PageNumber)
	assert.Contains(t, pages[0].Content, "Alpha only page")

	assert.Equal(t, "b.pdf", pages[1].DocumentName)
	assert.Equal(t, 1, pages[1].PageNumber)
	assert.Contains(t, pages[1].Content, "Bravo first page")

	assert.Equal(t, "b.pdf", pages[2].DocumentName)
	assert.Equal(t, 2, pages[2].PageNumber)
	assert.Contains(t, pages[2].Content, "Bravo second page")
	assert.Equal(t, filepath.Join(dir, "b.pdf"), pages[2].Source)
}

func TestLoadDirectorySkipsBrokenFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.pdf"), []byte("this is not a pdf at all"), 0o644))
	_, err := testutil.WritePDF(dir, "good.pdf", "Readable content")
	require.NoError(t, err)

	pages, err := LoadDirectory(dir, LoaderOptions{})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "good.pdf", pages[0].DocumentName)
}

func TestLoadDirectoryMissing(t *testing.T) {
	pages, err := LoadDirectory(filepath.Join(t.TempDir(), "absent"), LoaderOptions{})
	require.NoError(t, err)
	assert.Empty(t, pages)
}

func TestLoadFileRecoversPanic(t *testing.T) {
	pages, err := LoadFile("/x/boom.pdf", func(string) ([]string, error) {
		panic("malformed xref")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom.pdf")
	assert.Nil(t, pages)
}

func TestLoadFileError(t *testing.T) {
	want := errors.New("nope")
	_, err := LoadFile("/x/a.pdf", func(string) ([]string, error) { return nil, want })
	assert.ErrorIs(t, err, want)
}

func TestExtraFormatsDisabledByDefault(t *testing.T) {
	assert.NotNil(t, readerFor(".pdf", LoaderOptions{}))
	assert.Nil(t, readerFor(".txt", LoaderOptions{}))
	assert.NotNil(t, readerFor(".txt", LoaderOptions{ExtraFormats: true}))
	assert.Nil(t, readerFor(".exe", LoaderOptions{ExtraFormats: true}))
}

func TestLoadDirectoryExtraFormats(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("plain text body"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("# Title\n\nSome *emphasis* here.\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.html"),
		[]byte("<html><head><script>var x;</script></head><body><main><h1>Heading</h1><p>Paragraph text</p></main></body></html>"), 0o644))

	pages, err := LoadDirectory(dir, LoaderOptions{ExtraFormats: true})
	require.NoError(t, err)
	require.Len(t, pages, 3)

	assert.Equal(t, "plain text body", pages[0].Content)

	assert.Contains(t, pages[1].Content, "Title")
	assert.Contains(t, pages[1].Content, "Some emphasis here.")
	assert.NotContains(t, pages[1].Content, "#")
	assert.NotContains(t, pages[1].Content, "*")

	assert.Contains(t, pages[2].Content, "Heading")
	assert.Contains(t, pages[2].Content, "Paragraph text")
	assert.NotContains(t, pages[2].Content, "var x")
}

func TestParsePPTXOrdersSlides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pptx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for _, s := range []struct{ name, body string }{
		{"ppt/slides/slide10.xml", `<p:sld><a:t>Tenth</a:t></p:sld>`},
		{"ppt/slides/slide2.xml", `<p:sld><a:t>Second</a:t><a:t lang="en">slide &amp; more</a:t></p:sld>`},
		{"ppt/slides/_rels/slide2.xml.rels", `<Relationships/>`},
	} {
		w, err := zw.Create(s.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(s.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	pages, err := parsePPTX(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Second slide & more", "Tenth"}, pages)
}

func TestWordXMLToText(t *testing.T) {
	xml := `<w:body><w:p><w:r><w:t>Hello</w:t></w:r><w:r><w:t xml:space="preserve"> world</w:t></w:r></w:p>` +
		`<w:p></w:p><w:p><w:r><w:t>Tom &amp; Jerry</w:t></w:r></w:p></w:body>`
	assert.Equal(t, "Hello world\n\nTom & Jerry", wordXMLToText(xml))
}

func TestSheetText(t *testing.T) {
	got := sheetText("Data", [][]string{{"a", "b"}, {"1", "2"}})
	assert.Equal(t, "Sheet: Data\na\tb\n1\t2", got)
}

func TestMarkdownToText(t *testing.T) {
	got, err := markdownToText([]byte("## Setup\n\n- one\n- two\n\n```\ncode line\n```\n"))
	require.NoError(t, err)
	assert.Contains(t, got, "Setup")
	assert.Contains(t, got, "one")
	assert.Contains(t, got, "two")
	assert.Contains(t, got, "code line")
	assert.NotContains(t, got, "```")
	assert.NotContains(t, got, "##")
}
