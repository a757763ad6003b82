package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pale-fire/logdoctor/internal/engine/detect"
	"github.com/pale-fire/logdoctor/internal/engine/normalize"
	"github.com/pale-fire/logdoctor/internal/engine/parser"
	"github.com/pale-fire/logdoctor/internal/model"
)

var arrival = time.Date(2024, 3, 7, 12, 0, 0, 0, time.UTC)

// newTestEngine wires the real stages with defaults.
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	norm, err := normalize.New(time.UTC, nil, zerolog.Nop())
	require.NoError(t, err)
	return New(parser.New(nil, 64, zerolog.Nop()), norm, detect.New())
}

func lines(texts ...string) []model.RawLine {
	out := make([]model.RawLine, len(texts))
	for i, text := range texts {
		out[i] = model.RawLine{
			Origin:  "api.log",
			Service: "api",
			Seq:     uint64(i + 1),
			Text:    text,
			Arrival: arrival.Add(time.Duration(i) * time.Millisecond),
		}
	}
	return out
}

func TestProcessAll_EndToEnd(t *testing.T) {
	eng := newTestEngine(t)

	outs := eng.ProcessAll(lines(
		`plain noise line`,
		`2024-03-07 10:00:00 INFO server started`,
		`{"timestamp":"2024-03-07T10:00:05Z","level":"error","message":"connection refused to 10.2.0.4:5432","service":"api"}`,
		`  at db.connect(pool.go:42)`,
	))

	require.Len(t, outs, 3)

	noise := outs[0]
	assert.Equal(t, "raw", noise.Event.Parser)
	assert.Equal(t, model.SeverityInfo, noise.Event.Severity)
	assert.True(t, noise.Event.TimeApprox)

	started := outs[1]
	assert.Equal(t, model.SeverityInfo, started.Event.Severity)
	assert.Equal(t, "server started", started.Event.Message)
	assert.False(t, started.Detection.IsError)
	assert.Empty(t, started.Event.ErrorID)

	refused := outs[2]
	assert.Equal(t, model.SeverityError, refused.Event.Severity)
	assert.True(t, refused.Detection.IsError)
	assert.Equal(t, "connection refused to <ip>", refused.Detection.Signature)
	assert.Contains(t, refused.Event.Message, "at db.connect(pool.go:42)")
	assert.Regexp(t, `^err_[0-9a-f]{12}$`, refused.Event.ErrorID)

	stats := eng.Stats()
	assert.Equal(t, 1, stats.UnparsedLines)
	assert.Equal(t, 1, stats.FoldedLines)
	assert.Equal(t, 1, stats.ApproxTimes)
}

func TestProcessAll_Deterministic(t *testing.T) {
	input := lines(
		`2024-03-07 10:00:00 ERROR first failure id=7731`,
		`2024-03-07 10:00:01 WARN second trouble`,
		`2024-03-07 10:00:02 INFO fine again`,
	)

	a := newTestEngine(t).ProcessAll(input)
	b := newTestEngine(t).ProcessAll(input)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Event.ID, b[i].Event.ID)
		assert.Equal(t, a[i].Event.ErrorID, b[i].Event.ErrorID)
		assert.Equal(t, a[i].Detection.Signature, b[i].Detection.Signature)
	}
}

func TestProcessAll_EventCountMatchesLines(t *testing.T) {
	// Without continuation merging, every line yields exactly one event.
	eng := newTestEngine(t)
	input := lines(
		`INFO one`,
		`WARN two`,
		`unmatched three`,
		`ERROR four`,
	)

	outs := eng.ProcessAll(input)
	assert.Len(t, outs, len(input))
}

func TestSummarize(t *testing.T) {
	base := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)
	var events []model.Event

	// Nine quiet minutes with one error each, then a burst of twelve.
	for i := 0; i < 9; i++ {
		events = append(events, model.Event{
			Service: "api", Severity: model.SeverityError,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}
	for i := 0; i < 12; i++ {
		events = append(events, model.Event{
			Service: "db", Severity: model.SeverityError,
			Timestamp: base.Add(20*time.Minute + time.Duration(i)*time.Second),
		})
	}
	events = append(events,
		model.Event{Service: "api", Severity: model.SeverityInfo, Timestamp: base},
		model.Event{Service: "api", Severity: model.SeverityWarn, Timestamp: base},
	)

	s := Summarize(events)

	assert.Equal(t, 21, s.ByLevel["ERROR"])
	assert.Equal(t, 1, s.ByLevel["WARN"])
	assert.Equal(t, 1, s.ByLevel["INFO"])
	assert.Equal(t, 11, s.ByService["api"])
	assert.Equal(t, 12, s.ByService["db"])
	assert.InDelta(t, 21.0/23.0*100, s.ErrorRate, 0.01)

	require.Len(t, s.HotSpots, 2)
	assert.Equal(t, model.HotSpot{Service: "db", ErrorCount: 12}, s.HotSpots[0])
	assert.Equal(t, model.HotSpot{Service: "api", ErrorCount: 9}, s.HotSpots[1])

	// Mean is 21 errors / 10 active minutes = 2.1; the burst minute (12)
	// exceeds 3x the mean, the quiet minutes (1) do not.
	require.Len(t, s.Spikes, 1)
	assert.Equal(t, 12, s.Spikes[0].Count)
	assert.Equal(t, base.Add(20*time.Minute), s.Spikes[0].Minute)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	assert.Empty(t, s.ByLevel)
	assert.Zero(t, s.ErrorRate)
	assert.Empty(t, s.HotSpots)
	assert.Empty(t, s.Spikes)
}

func TestSummarize_HotSpotCap(t *testing.T) {
	var events []model.Event
	for i := 0; i < 15; i++ {
		events = append(events, model.Event{
			Service:   fmt.Sprintf("svc-%02d", i),
			Severity:  model.SeverityError,
			Timestamp: arrival,
		})
	}

	s := Summarize(events)
	assert.Len(t, s.HotSpots, 10)
}
