package parser

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pale-fire/logdoctor/internal/config"
	"github.com/pale-fire/logdoctor/internal/model"
)

var arrival = time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC)

func newParser(t *testing.T) *Parser {
	t.Helper()
	return New(nil, 64, zerolog.Nop())
}

func line(text string) model.RawLine {
	return model.RawLine{Origin: "app.log", Service: "app", Seq: 1, Text: text, Arrival: arrival}
}

// --- JSON ---

func TestParseLine_JSON(t *testing.T) {
	p := newParser(t)

	cand := p.ParseLine(line(`{"timestamp":"2024-03-07T10:30:00Z","level":"error","message":"connection refused","service":"api","retries":3}`))

	assert.Equal(t, "json", cand.Parser)
	assert.Equal(t, "error", cand.Level)
	assert.Equal(t, "connection refused", cand.Message)
	assert.Equal(t, "api", cand.Service)
	assert.Equal(t, time.Date(2024, 3, 7, 10, 30, 0, 0, time.UTC), cand.Timestamp.UTC())
	assert.True(t, cand.Zoned)
	assert.Equal(t, "3", cand.Fields["retries"])
}

func TestParseLine_JSONUnixTimestamp(t *testing.T) {
	p := newParser(t)

	cand := p.ParseLine(line(`{"ts":1709812800,"msg":"tick"}`))

	require.Equal(t, "json", cand.Parser)
	assert.Equal(t, time.Unix(1709812800, 0).UTC(), cand.Timestamp.UTC())
	assert.True(t, cand.Zoned)
	assert.Equal(t, "tick", cand.Message)
}

func TestParseLine_JSONMillisTimestamp(t *testing.T) {
	p := newParser(t)

	cand := p.ParseLine(line(`{"ts":1709812800500,"msg":"tick"}`))

	require.Equal(t, "json", cand.Parser)
	assert.Equal(t, time.Unix(1709812800, 0).Add(500*time.Millisecond).UTC(), cand.Timestamp.UTC())
}

func TestParseLine_JSONAlternateKeys(t *testing.T) {
	p := newParser(t)

	cand := p.ParseLine(line(`{"@timestamp":"2024-03-07 10:30:00","severity":"WARN","log":"disk nearly full","app":"storage"}`))

	assert.Equal(t, "WARN", cand.Level)
	assert.Equal(t, "disk nearly full", cand.Message)
	assert.Equal(t, "storage", cand.Service)
	assert.False(t, cand.Zoned)
}

func TestParseLine_MalformedJSONFallsThrough(t *testing.T) {
	p := newParser(t)

	cand := p.ParseLine(line(`{"level":"error", broken`))

	assert.NotEqual(t, "json", cand.Parser)
}

// --- logfmt ---

func TestParseLine_Logfmt(t *testing.T) {
	p := newParser(t)

	cand := p.ParseLine(line(`time=2024-03-07T10:30:00Z level=warn msg="cache miss rate high" service=cache rate=0.93`))

	assert.Equal(t, "logfmt", cand.Parser)
	assert.Equal(t, "warn", cand.Level)
	assert.Equal(t, "cache miss rate high", cand.Message)
	assert.Equal(t, "cache", cand.Service)
	assert.Equal(t, "0.93", cand.Fields["rate"])
	assert.Equal(t, time.Date(2024, 3, 7, 10, 30, 0, 0, time.UTC), cand.Timestamp.UTC())
}

func TestParseLine_ProseWithEqualsIsNotLogfmt(t *testing.T) {
	p := newParser(t)

	cand := p.ParseLine(line(`retrying because threshold=5 was exceeded`))

	assert.NotEqual(t, "logfmt", cand.Parser)
}

// --- access logs ---

func TestParseLine_AccessCommon(t *testing.T) {
	p := newParser(t)

	cand := p.ParseLine(line(`127.0.0.1 - frank [10/Oct/2000:13:55:36 -0700] "GET /apache_pb.gif HTTP/1.0" 200 2326`))

	assert.Equal(t, "access", cand.Parser)
	assert.Equal(t, "info", cand.Level)
	assert.Equal(t, "GET /apache_pb.gif 200", cand.Message)
	assert.Equal(t, "127.0.0.1", cand.Fields["remote"])
	assert.Equal(t, "frank", cand.Fields["user"])
	assert.True(t, cand.Zoned)
}

func TestParseLine_AccessStatusLevels(t *testing.T) {
	p := newParser(t)
	tests := []struct {
		status string
		want   string
	}{
		{"200", "info"},
		{"301", "info"},
		{"404", "warn"},
		{"503", "error"},
	}
	for _, tt := range tests {
		cand := p.ParseLine(line(`10.0.0.5 - - [10/Oct/2000:13:55:36 +0000] "POST /api/orders HTTP/1.1" ` + tt.status + ` 512 "-" "curl/8.0"`))
		require.Equal(t, "access", cand.Parser, "status %s", tt.status)
		assert.Equal(t, tt.want, cand.Level, "status %s", tt.status)
		assert.Equal(t, tt.status, cand.Fields["status"])
	}
}

// --- syslog ---

func TestParseLine_SyslogWithPRI(t *testing.T) {
	p := newParser(t)

	cand := p.ParseLine(line(`<11>Mar  7 06:25:31 web01 nginx[1234]: worker process exited`))

	assert.Equal(t, "syslog", cand.Parser)
	// Facility 1, severity 3 (err).
	assert.Equal(t, "3", cand.Level)
	assert.Equal(t, "1", cand.Fields["facility"])
	assert.Equal(t, "nginx", cand.Service)
	assert.Equal(t, "web01", cand.Fields["host"])
	assert.Equal(t, "1234", cand.Fields["pid"])
	assert.Equal(t, "worker process exited", cand.Message)
	assert.Equal(t, arrival.Year(), cand.Timestamp.Year())
}

func TestParseLine_SyslogNoPRI(t *testing.T) {
	p := newParser(t)

	cand := p.ParseLine(line(`Mar  7 06:25:31 web01 sshd[99]: ERROR authentication failure for root`))

	assert.Equal(t, "syslog", cand.Parser)
	assert.Equal(t, "ERROR", cand.Level)
	assert.Equal(t, "sshd", cand.Service)
}

// --- generic leveled text ---

func TestParseLine_TextWithTimestampAndLevel(t *testing.T) {
	p := newParser(t)

	cand := p.ParseLine(line(`2024-03-07 10:30:00,123 [ERROR] db: connection refused to 10.2.0.4:5432`))

	assert.Equal(t, "text", cand.Parser)
	assert.Equal(t, "ERROR", cand.Level)
	assert.Equal(t, "db: connection refused to 10.2.0.4:5432", cand.Message)
	assert.Equal(t, time.Date(2024, 3, 7, 10, 30, 0, 123_000_000, time.UTC), cand.Timestamp.UTC())
	assert.False(t, cand.Zoned)
}

func TestParseLine_TextLevelOnly(t *testing.T) {
	p := newParser(t)

	cand := p.ParseLine(line(`WARN: disk usage at 91%`))

	assert.Equal(t, "text", cand.Parser)
	assert.Equal(t, "WARN", cand.Level)
	assert.Equal(t, "disk usage at 91%", cand.Message)
	assert.True(t, cand.Timestamp.IsZero())
}

func TestParseLine_TextTraceID(t *testing.T) {
	p := newParser(t)

	cand := p.ParseLine(line(`ERROR payment failed trace_id=abc123def request-id: 9f8e7d`))

	require.NotNil(t, cand.Fields)
	assert.Equal(t, "abc123def", cand.Fields["trace_id"])
	assert.Equal(t, "9f8e7d", cand.Fields["request_id"])
}

// --- raw fallback ---

func TestParseLine_RawFallbackNeverDrops(t *testing.T) {
	p := newParser(t)

	for _, text := range []string{
		"completely unstructured prose",
		"    ",
		"}{ not json",
		"at com.example.Handler.handle(Handler.java:42)",
	} {
		cand := p.ParseLine(line(text))
		assert.Equal(t, "raw", cand.Parser, "input %q", text)
		assert.Equal(t, text, cand.Message, "input %q", text)
	}
}

// --- custom patterns ---

func TestParseLine_CustomPatternWins(t *testing.T) {
	patterns, err := config.LoadPatterns(writePatterns(t))
	require.NoError(t, err)
	p := New(patterns, 64, zerolog.Nop())

	cand := p.ParseLine(line(`2024-03-07 10:30:00 [ERROR] checkout failed order=881`))

	assert.Equal(t, "custom:shop", cand.Parser)
	assert.Equal(t, "ERROR", cand.Level)
	assert.Equal(t, "checkout failed order=881", cand.Message)
	assert.Equal(t, "shop", cand.Service)
	assert.Equal(t, time.Date(2024, 3, 7, 10, 30, 0, 0, time.UTC), cand.Timestamp.UTC())
	assert.False(t, cand.Zoned)
}

// --- continuation folding ---

func TestFeed_FoldsStackTraceIntoError(t *testing.T) {
	p := newParser(t)

	_, ok := p.Feed(line(`2024-03-07 10:30:00 ERROR request handler panicked`))
	assert.False(t, ok)

	_, ok = p.Feed(model.RawLine{Origin: "app.log", Seq: 2, Text: `  at handler.go:42`, Arrival: arrival})
	assert.False(t, ok)
	_, ok = p.Feed(model.RawLine{Origin: "app.log", Seq: 3, Text: `  at server.go:17`, Arrival: arrival})
	assert.False(t, ok)

	res, ok := p.Feed(model.RawLine{Origin: "app.log", Seq: 4, Text: `2024-03-07 10:30:01 INFO recovered`, Arrival: arrival})
	require.True(t, ok)
	assert.Equal(t, 2, res.Folded)
	assert.Contains(t, res.Cand.Message, "request handler panicked")
	assert.Contains(t, res.Cand.Message, "at handler.go:42")
	assert.Contains(t, res.Cand.Message, "at server.go:17")
	assert.Equal(t, uint64(1), res.Line.Seq)

	res, ok = p.Flush()
	require.True(t, ok)
	assert.Equal(t, "recovered", res.Cand.Message)
	_, ok = p.Flush()
	assert.False(t, ok)
}

func TestFeed_NoFoldAfterInfo(t *testing.T) {
	p := newParser(t)

	_, ok := p.Feed(line(`2024-03-07 10:30:00 INFO started`))
	assert.False(t, ok)

	res, ok := p.Feed(model.RawLine{Origin: "app.log", Seq: 2, Text: `unstructured noise`, Arrival: arrival})
	require.True(t, ok)
	assert.Equal(t, "started", res.Cand.Message)
	assert.Zero(t, res.Folded)

	res, ok = p.Flush()
	require.True(t, ok)
	assert.Equal(t, "raw", res.Cand.Parser)
}

func TestFeed_FoldBound(t *testing.T) {
	p := New(nil, 2, zerolog.Nop())

	p.Feed(line(`FATAL out of memory`))
	for seq := uint64(2); seq <= 3; seq++ {
		_, ok := p.Feed(model.RawLine{Origin: "app.log", Seq: seq, Text: "  frame", Arrival: arrival})
		assert.False(t, ok)
	}

	// Third continuation exceeds the bound and becomes its own raw event.
	res, ok := p.Feed(model.RawLine{Origin: "app.log", Seq: 4, Text: "  frame overflow", Arrival: arrival})
	require.True(t, ok)
	assert.Equal(t, 2, res.Folded)

	res, ok = p.Flush()
	require.True(t, ok)
	assert.Equal(t, "raw", res.Cand.Parser)
	assert.Equal(t, "  frame overflow", res.Cand.Message)
}

func TestFeed_FoldDisabled(t *testing.T) {
	p := New(nil, 0, zerolog.Nop())

	p.Feed(line(`ERROR boom`))
	res, ok := p.Feed(model.RawLine{Origin: "app.log", Seq: 2, Text: "  at frame", Arrival: arrival})
	require.True(t, ok)
	assert.Zero(t, res.Folded)
}

func writePatterns(t *testing.T) string {
	t.Helper()
	return writeTempFile(t, "patterns.yaml", `
patterns:
  - name: shop
    regex: '^(?P<ts>\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) \[(?P<level>\w+)\] (?P<msg>.*)$'
    time_layout: "2006-01-02 15:04:05"
    service: shop
`)
}
