package source

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFile_ReadsLines(t *testing.T) {
	path := writeFile(t, t.TempDir(), "api.log", "one\ntwo\nthree\n")
	src := NewFile(path, "", zerolog.Nop())

	o := src.Describe()
	assert.Equal(t, "api", o.ID)
	assert.Equal(t, "api", o.Service)
	assert.Equal(t, "file", o.Scheme)

	lines := drain(t, src)
	require.NoError(t, src.Err())
	require.Len(t, lines, 3)
	assert.Equal(t, "one", lines[0].Text)
	assert.Equal(t, "api", lines[0].Origin)
	assert.Equal(t, uint64(2), lines[1].Seq)
}

func TestFile_Gzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte("compressed error line\nsecond line\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	dir := t.TempDir()
	path := filepath.Join(dir, "db.log.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	src := NewFile(path, "", zerolog.Nop())
	assert.Equal(t, "db", src.Describe().ID)

	lines := drain(t, src)
	require.NoError(t, src.Err())
	require.Len(t, lines, 2)
	assert.Equal(t, "compressed error line", lines[0].Text)
}

func TestFile_CorruptGzipFailsOpen(t *testing.T) {
	path := writeFile(t, t.TempDir(), "bad.log.gz", "this is not gzip data")
	src := NewFile(path, "", zerolog.Nop())

	_, err := src.Lines(t.Context())
	require.Error(t, err)
}

func TestFile_MissingFailsOpen(t *testing.T) {
	src := NewFile(filepath.Join(t.TempDir(), "absent.log"), "", zerolog.Nop())

	_, err := src.Lines(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFile_ServiceOverride(t *testing.T) {
	path := writeFile(t, t.TempDir(), "api.log", "x\n")
	src := NewFile(path, "gateway", zerolog.Nop())

	lines := drain(t, src)
	require.Len(t, lines, 1)
	assert.Equal(t, "api", lines[0].Origin)
	assert.Equal(t, "gateway", lines[0].Service)
}
