package source

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pale-fire/logdoctor/internal/model"
)

func appendTo(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func collectUntil(t *testing.T, ch <-chan model.RawLine, n int) []model.RawLine {
	t.Helper()
	var lines []model.RawLine
	deadline := time.After(5 * time.Second)
	for len(lines) < n {
		select {
		case line, ok := <-ch:
			if !ok {
				t.Fatalf("stream closed after %d of %d lines", len(lines), n)
			}
			lines = append(lines, line)
		case <-deadline:
			t.Fatalf("timed out waiting for %d lines, have %d", n, len(lines))
		}
	}
	return lines
}

func TestTail_EmitsOnlyAppendedLines(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.log", "old line\n")
	src := NewTail(path, "", 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := src.Lines(ctx)
	require.NoError(t, err)

	appendTo(t, path, "fresh one\nfresh two\n")

	lines := collectUntil(t, ch, 2)
	assert.Equal(t, "fresh one", lines[0].Text)
	assert.Equal(t, "fresh two", lines[1].Text)
	assert.Equal(t, "app", lines[0].Origin)

	cancel()
	for range ch {
	}
	assert.NoError(t, src.Err())
}

func TestTail_PartialLineHeldUntilComplete(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.log", "")
	src := NewTail(path, "", 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := src.Lines(ctx)
	require.NoError(t, err)

	appendTo(t, path, "no newline yet")
	select {
	case line := <-ch:
		t.Fatalf("incomplete line emitted: %q", line.Text)
	case <-time.After(100 * time.Millisecond):
	}

	appendTo(t, path, " done\n")
	lines := collectUntil(t, ch, 1)
	assert.Equal(t, "no newline yet done", lines[0].Text)
}

func TestTail_TruncationRestartsFromHead(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.log", "aaa\nbbb\n")
	src := NewTail(path, "", 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := src.Lines(ctx)
	require.NoError(t, err)

	// Rewrite shorter than the tail's offset, as copytruncate rotation does.
	require.NoError(t, os.WriteFile(path, []byte("n\n"), 0o644))

	lines := collectUntil(t, ch, 1)
	assert.Equal(t, "n", lines[0].Text)
}

func TestTail_RemovedFileEndsStreamWithError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "app.log", "start\n")
	src := NewTail(path, "", 10*time.Millisecond, zerolog.Nop())

	ch, err := src.Lines(context.Background())
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))
	for range ch {
	}
	assert.Error(t, src.Err())
}

func TestTail_MissingFileFailsOpen(t *testing.T) {
	src := NewTail(t.TempDir()+"/gone.log", "", time.Millisecond, zerolog.Nop())
	_, err := src.Lines(context.Background())
	require.Error(t, err)
}
