package extract

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileType(t *testing.T) {
	assert.Equal(t, "pdf", FileType("Report.PDF"))
	assert.Equal(t, "txt", FileType("notes.txt"))
	assert.Equal(t, "", FileType("no-extension"))
}

func TestBlocksPlainText(t *testing.T) {
	blocks, err := Blocks("notes.txt", []byte("hello world"))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, "hello world", blocks[0])
}

func TestBlocksWhitespaceOnly(t *testing.T) {
	blocks, err := Blocks("blank.md", []byte("  \n\t "))
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestBlocksUnsupportedExtension(t *testing.T) {
	_, err := Blocks("image.png", []byte{0x89, 0x50})
	assert.Error(t, err)
}

func TestBlocksHTML(t *testing.T) {
	html := `<html><head><style>body{color:red}</style></head>
<body><nav>menu</nav><p>The   actual
content.</p><script>alert(1)</script></body></html>`

	blocks, err := Blocks("page.html", []byte(html))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Contains(t, blocks[0], "The actual content.")
	assert.NotContains(t, blocks[0], "alert")
	assert.NotContains(t, blocks[0], "menu")
	assert.NotContains(t, blocks[0], "color:red")
}

func TestBlocksDOCX(t *testing.T) {
	blocks, err := Blocks("doc.docx", buildDOCX(t, `<w:p><w:r><w:t>First run.</w:t></w:r><w:r><w:t xml:space="preserve">Second run.</w:t></w:r></w:p>`))
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Contains(t, blocks[0], "First run.")
	assert.Contains(t, blocks[0], "Second run.")
}

func TestBlocksDOCXNotAZip(t *testing.T) {
	_, err := Blocks("doc.docx", []byte("plain text pretending"))
	assert.Error(t, err)
}

func buildDOCX(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	f, err := w.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(`<?xml version="1.0"?><w:document><w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}
