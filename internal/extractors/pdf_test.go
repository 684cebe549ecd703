package extractors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRunner is a test double for CommandRunner.
type mockRunner struct {
	output []byte
	err    error
	name   string
	args   []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.name = name
	m.args = args
	return m.output, m.err
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestPDFExtractor_Extract(t *testing.T) {
	path := writeTemp(t, "class10_science_c1.pdf", "%PDF-1.4 fake")
	runner := &mockRunner{output: []byte("Page one text.\n\fPage two text.\n\f\f")}
	e := NewPDFExtractorWithRunner(runner)

	text, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Page one text.\n\nPage two text.", text)
	assert.Equal(t, "pdftotext", runner.name)
	assert.Equal(t, []string{"-enc", "UTF-8", path, "-"}, runner.args)
}

func TestPDFExtractor_RunnerError(t *testing.T) {
	path := writeTemp(t, "doc.pdf", "%PDF-1.4 fake")
	e := NewPDFExtractorWithRunner(&mockRunner{err: errors.New("pdftotext crashed")})

	_, err := e.Extract(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pdftotext failed")
}

func TestPDFExtractor_ToolMissing(t *testing.T) {
	path := writeTemp(t, "doc.pdf", "%PDF-1.4 fake")
	e := NewPDFExtractorWithRunner(&mockRunner{err: ErrPDFToolNotFound})

	_, err := e.Extract(context.Background(), path)
	assert.ErrorIs(t, err, ErrPDFToolNotFound)
}

func TestPDFExtractor_MissingFile(t *testing.T) {
	runner := &mockRunner{}
	e := NewPDFExtractorWithRunner(runner)

	_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "absent.pdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Empty(t, runner.name, "runner should not be invoked")
}

func TestPDFExtractor_Metadata(t *testing.T) {
	e := NewPDFExtractor()
	assert.Equal(t, []string{"application/pdf"}, e.SupportedTypes())
	assert.Equal(t, 50, e.Priority())
	assert.Contains(t, ErrPDFToolNotFound.Error(), "poppler")
}

func TestPlaintextExtractor(t *testing.T) {
	e := &PlaintextExtractor{}

	path := writeTemp(t, "notes.txt", "line one\r\nline two\rline three")
	text, err := e.Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two\nline three", text)

	bad := writeTemp(t, "bad.txt", string([]byte{0xff, 0xfe, 0x00}))
	_, err = e.Extract(context.Background(), bad)
	assert.Error(t, err)

	_, err = e.Extract(context.Background(), filepath.Join(t.TempDir(), "none.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
