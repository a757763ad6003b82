package source

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pale-fire/logdoctor/internal/model"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func drain(t *testing.T, src Source) []model.RawLine {
	t.Helper()
	ch, err := src.Lines(context.Background())
	require.NoError(t, err)
	var lines []model.RawLine
	for line := range ch {
		lines = append(lines, line)
	}
	return lines
}

func TestOriginFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"api.log", "api"},
		{"/var/log/db-service.log", "db-service"},
		{"worker.log.gz", "worker"},
		{"payments.error.log", "payments"},
		{"nginx.access.log", "nginx"},
		{"auth_log.txt", "auth"},
		{"noext", "noext"},
		{".log", "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, originFromPath(tt.path), "path %q", tt.path)
	}
}

func TestClassify(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "app.log", "hello\n")

	tests := []struct {
		target string
		follow bool
		scheme string
	}{
		{"-", false, "stdin"},
		{"stdin", false, "stdin"},
		{"https://logs.example.com/api", false, "http"},
		{"http://localhost:8080/logs", false, "http"},
		{"docker:web-1", false, "docker"},
		{dir, false, "dir"},
		{dir, true, "dir"},
		{file, false, "file"},
		{file, true, "tail"},
	}
	for _, tt := range tests {
		scheme, _, err := classify(tt.target, tt.follow)
		require.NoError(t, err, "target %q", tt.target)
		assert.Equal(t, tt.scheme, scheme, "target %q follow=%v", tt.target, tt.follow)
	}
}

func TestClassify_MissingPath(t *testing.T) {
	_, _, err := classify(filepath.Join(t.TempDir(), "nope.log"), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestResolve_DockerTargetKeepsID(t *testing.T) {
	srcs, err := Resolve("docker:abc123", Options{Runtime: fakeRuntime{}, Log: zerolog.Nop()})
	require.NoError(t, err)
	require.Len(t, srcs, 1)
	assert.Equal(t, "abc123", srcs[0].Describe().Target)
}

func TestSchemes(t *testing.T) {
	schemes := Schemes()
	for _, want := range []string{"dir", "docker", "file", "http", "stdin", "tail"} {
		assert.Contains(t, schemes, want)
	}
	assert.True(t, sort.StringsAreSorted(schemes))
}

func TestOpen_UnknownScheme(t *testing.T) {
	_, err := Open("carrier-pigeon", "x", Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "carrier-pigeon")
}

func TestReader_SeqCountsFileLines(t *testing.T) {
	// Blank lines are skipped but still advance the sequence, so an
	// event's Seq is the line number in its origin.
	input := "first\n\nthird\r\n   \nfifth\n"
	src := NewReader(strings.NewReader(input), "app", "", zerolog.Nop())

	lines := drain(t, src)
	require.NoError(t, src.Err())
	require.Len(t, lines, 3)
	assert.Equal(t, uint64(1), lines[0].Seq)
	assert.Equal(t, "first", lines[0].Text)
	assert.Equal(t, uint64(3), lines[1].Seq)
	assert.Equal(t, "third", lines[1].Text)
	assert.Equal(t, uint64(5), lines[2].Seq)
	assert.Equal(t, "fifth", lines[2].Text)
}

func TestReader_ServiceDefaultsToOrigin(t *testing.T) {
	src := NewReader(strings.NewReader("x\n"), "app", "", zerolog.Nop())
	lines := drain(t, src)
	require.Len(t, lines, 1)
	assert.Equal(t, "app", lines[0].Service)

	src = NewReader(strings.NewReader("x\n"), "app", "payments", zerolog.Nop())
	lines = drain(t, src)
	assert.Equal(t, "payments", lines[0].Service)
}

func TestReader_CancelStopsStream(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := NewReader(strings.NewReader("a\nb\nc\n"), "app", "", zerolog.Nop())
	ch, err := src.Lines(ctx)
	require.NoError(t, err)

	<-ch
	cancel()
	for range ch {
	}
	// User cancellation is not an origin failure.
	assert.NoError(t, src.Err())
}
