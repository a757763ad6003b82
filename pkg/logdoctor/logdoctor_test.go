package logdoctor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, opts ...Option) *LogDoctor {
	t.Helper()
	opts = append([]Option{
		WithStorePath(filepath.Join(t.TempDir(), "logdoctor.db")),
		WithLogger(zerolog.Nop()),
	}, opts...)
	doc, err := New(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = doc.Close() })
	return doc
}

func writeLog(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func crossServiceFixture(t *testing.T) (api, db string) {
	t.Helper()
	dir := t.TempDir()
	api = writeLog(t, dir, "api.log", "2024-03-07 10:00:00 ERROR connection refused to db\n")
	db = writeLog(t, dir, "db.log", "2024-03-07 10:00:05 ERROR too many connections\n")
	return api, db
}

func TestNewBadStorePathReturnsError(t *testing.T) {
	_, err := New(WithStorePath("/dev/null/nope/logdoctor.db"), WithLogger(zerolog.Nop()))
	require.Error(t, err)
}

func TestAnalyzeCorrelatesAcrossServices(t *testing.T) {
	doc := testClient(t)
	api, db := crossServiceFixture(t)

	run, err := doc.Analyze(t.Context(), api, db)
	require.NoError(t, err)

	require.NotEmpty(t, run.ID)
	require.Len(t, run.Events, 2)
	assert.Equal(t, "ERROR", run.Events[0].Severity)
	assert.Equal(t, "api", run.Events[0].Service)
	assert.Equal(t, "db", run.Events[1].Service)
	assert.NotEmpty(t, run.Events[0].ErrorID)

	require.Len(t, run.Groups, 1)
	assert.ElementsMatch(t, []string{"api", "db"}, run.Groups[0].Origins)
	assert.Len(t, run.Groups[0].EventIDs, 2)
	assert.True(t, run.Groups[0].Closed)

	assert.Equal(t, 2, run.Counters.ErrorCount)
	assert.Equal(t, 1, run.Counters.GroupCount)
	assert.False(t, run.Partial)
	assert.False(t, run.Failed)
}

func TestCorrelationWindowOption(t *testing.T) {
	doc := testClient(t, WithCorrelationWindow(time.Second))
	api, db := crossServiceFixture(t)

	run, err := doc.Analyze(t.Context(), api, db)
	require.NoError(t, err)

	// Five seconds apart with a one second window: no group joins them.
	assert.Len(t, run.Groups, 2)
}

func TestLookupsAfterAnalyze(t *testing.T) {
	doc := testClient(t)
	api, db := crossServiceFixture(t)

	run, err := doc.Analyze(t.Context(), api, db)
	require.NoError(t, err)

	ev, err := doc.GetEvent(run.Events[0].ID)
	require.NoError(t, err)
	assert.Equal(t, run.Events[0].Message, ev.Message)

	byErr, err := doc.GetEvent(run.Events[0].ErrorID)
	require.NoError(t, err)
	assert.Equal(t, run.Events[0].ID, byErr.ID)

	g, err := doc.GetGroup(run.Groups[0].ID)
	require.NoError(t, err)
	assert.Equal(t, run.Groups[0].EventIDs, g.EventIDs)

	_, err = doc.GetEvent("evt_000000000000")
	assert.Error(t, err)
}

func TestGetTimelineWindows(t *testing.T) {
	doc := testClient(t)
	api, db := crossServiceFixture(t)

	run, err := doc.Analyze(t.Context(), api, db)
	require.NoError(t, err)

	all, err := doc.GetTimeline(run.ID, Last(time.Hour))
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].Timestamp.Before(all[1].Timestamp))

	apiOnly, err := doc.GetTimeline(run.ID, Last(time.Hour).Service("api"))
	require.NoError(t, err)
	require.Len(t, apiOnly, 1)
	assert.Equal(t, "api", apiOnly[0].Service)

	before, err := doc.GetTimeline(run.ID, Around(all[1].ID, 3, 0))
	require.NoError(t, err)
	require.Len(t, before, 1)
	assert.Equal(t, all[0].ID, before[0].ID)
}

func TestGetRunAndRuns(t *testing.T) {
	doc := testClient(t)
	api, db := crossServiceFixture(t)

	run, err := doc.Analyze(t.Context(), api, db)
	require.NoError(t, err)

	loaded, err := doc.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.Counters, loaded.Counters)
	assert.Len(t, loaded.Events, 2)

	runs, err := doc.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Empty(t, runs[0].Events)
}
