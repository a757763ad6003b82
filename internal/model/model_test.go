package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTrailing(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"5m", 5 * time.Minute},
		{"1h", time.Hour},
		{"2d", 48 * time.Hour},
		{"10 m", 10 * time.Minute},
		{"1h30m", 90 * time.Minute},
	}
	for _, tc := range cases {
		d, err := ParseTrailing(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, d, tc.in)
	}

	for _, in := range []string{"", "soon", "d5", "5 weeks"} {
		_, err := ParseTrailing(in)
		assert.Error(t, err, in)
	}
}

func TestParseSeverity(t *testing.T) {
	cases := []struct {
		token string
		want  Severity
	}{
		{"ERROR", SeverityError},
		{"Err", SeverityError},
		{"severe", SeverityError},
		{"warning", SeverityWarn},
		{"notice", SeverityInfo},
		{" info ", SeverityInfo},
		{"panic", SeverityFatal},
		// Syslog numeric severities: 0 emerg .. 7 debug.
		{"0", SeverityFatal},
		{"3", SeverityError},
		{"4", SeverityWarn},
		{"7", SeverityDebug},
	}
	for _, tc := range cases {
		got, ok := ParseSeverity(tc.token)
		require.True(t, ok, tc.token)
		assert.Equal(t, tc.want, got, tc.token)
	}

	_, ok := ParseSeverity("loud")
	assert.False(t, ok)
	_, ok = ParseSeverity("")
	assert.False(t, ok)
}

func TestSeverityOrdering(t *testing.T) {
	assert.True(t, SeverityTrace < SeverityDebug)
	assert.True(t, SeverityDebug < SeverityInfo)
	assert.True(t, SeverityInfo < SeverityWarn)
	assert.True(t, SeverityWarn < SeverityError)
	assert.True(t, SeverityError < SeverityFatal)
}

func TestSeverityJSON(t *testing.T) {
	out, err := json.Marshal(SeverityError)
	require.NoError(t, err)
	assert.Equal(t, `"ERROR"`, string(out))

	var s Severity
	require.NoError(t, json.Unmarshal([]byte(`"warn"`), &s))
	assert.Equal(t, SeverityWarn, s)

	assert.Error(t, json.Unmarshal([]byte(`"loud"`), &s))
}

func TestSeverityStringOutOfRange(t *testing.T) {
	assert.Equal(t, "FATAL", SeverityFatal.String())
	assert.Equal(t, "Severity(9)", Severity(9).String())
}

func TestEventIDStableAndDistinct(t *testing.T) {
	a := EventID("api.log", 1, "connection refused")
	b := EventID("api.log", 1, "connection refused")
	assert.Equal(t, a, b)
	assert.Len(t, a, len("evt_")+12)
	assert.Equal(t, "evt_", a[:4])

	assert.NotEqual(t, a, EventID("api.log", 2, "connection refused"))
	assert.NotEqual(t, a, EventID("db.log", 1, "connection refused"))
	assert.NotEqual(t, a, EventID("api.log", 1, "connection reset"))
}

func TestErrorIDIgnoresPosition(t *testing.T) {
	// Occurrences of one error shape share an id regardless of where or
	// when they were logged.
	a := ErrorID("api", "connection refused to <ip>", SeverityError)
	b := ErrorID("api", "connection refused to <ip>", SeverityError)
	assert.Equal(t, a, b)
	assert.Equal(t, "err_", a[:4])

	assert.NotEqual(t, a, ErrorID("db", "connection refused to <ip>", SeverityError))
	assert.NotEqual(t, a, ErrorID("api", "connection refused to <ip>", SeverityFatal))
}

func TestEventBefore(t *testing.T) {
	at := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)
	earlier := Event{Timestamp: at, Seq: 5, Origin: "b"}
	later := Event{Timestamp: at.Add(time.Millisecond), Seq: 1, Origin: "a"}
	assert.True(t, earlier.Before(&later))
	assert.False(t, later.Before(&earlier))

	// Equal timestamps fall back to sequence, then origin name.
	bySeq := Event{Timestamp: at, Seq: 6, Origin: "a"}
	assert.True(t, earlier.Before(&bySeq))
	byOrigin := Event{Timestamp: at, Seq: 5, Origin: "c"}
	assert.True(t, earlier.Before(&byOrigin))
	assert.False(t, byOrigin.Before(&earlier))
}

func TestWindowCacheKeys(t *testing.T) {
	at := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, TrailingWindow(5*time.Minute).CacheKey(), TrailingWindow(5*time.Minute).CacheKey())
	assert.NotEqual(t, TrailingWindow(5*time.Minute).CacheKey(), TrailingWindow(6*time.Minute).CacheKey())

	abs := AbsoluteWindow(at, at.Add(time.Hour)).CacheKey()
	assert.NotEqual(t, abs, AbsoluteWindow(at, at.Add(2*time.Hour)).CacheKey())

	focal := FocalWindow("err_abc", 3, 0).CacheKey()
	assert.NotEqual(t, focal, FocalWindow("err_abc", 4, 0).CacheKey())
	assert.NotEqual(t, focal, FocalWindow("err_def", 3, 0).CacheKey())

	// Kinds never collide even with zero parameters.
	keys := map[string]bool{}
	for _, k := range []string{
		TrailingWindow(0).CacheKey(),
		AbsoluteWindow(time.Time{}, time.Time{}).CacheKey(),
		FocalWindow("", 0, 0).CacheKey(),
	} {
		keys[k] = true
	}
	assert.Len(t, keys, 3)
}
