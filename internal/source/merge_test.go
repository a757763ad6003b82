package source

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pale-fire/logdoctor/internal/model"
)

func mergeInput(lines ...model.RawLine) <-chan model.RawLine {
	ch := make(chan model.RawLine, len(lines))
	for _, l := range lines {
		ch <- l
	}
	close(ch)
	return ch
}

func rawAt(origin string, seq uint64, at time.Time) model.RawLine {
	return model.RawLine{Origin: origin, Service: origin, Seq: seq, Text: "x", Arrival: at}
}

func TestMerge_OrdersByArrivalAcrossOrigins(t *testing.T) {
	t0 := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)
	a := mergeInput(
		rawAt("api", 1, t0),
		rawAt("api", 2, t0.Add(20*time.Millisecond)),
	)
	b := mergeInput(
		rawAt("db", 1, t0.Add(10*time.Millisecond)),
		rawAt("db", 2, t0.Add(30*time.Millisecond)),
	)

	out := Merge(context.Background(), []<-chan model.RawLine{a, b}, 100, time.Hour)
	var got []model.RawLine
	for line := range out {
		got = append(got, line)
	}

	require.Len(t, got, 4)
	// All four fit in the look-back buffer, so the drain is fully ordered.
	assert.Equal(t, []string{"api", "db", "api", "db"}, originsOf(got))
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Arrival.Before(got[i-1].Arrival))
	}
}

func originsOf(lines []model.RawLine) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Origin
	}
	return out
}

func TestMerge_TiesBreakBySeqThenOrigin(t *testing.T) {
	t0 := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)
	a := mergeInput(rawAt("zebra", 1, t0))
	b := mergeInput(rawAt("api", 1, t0), rawAt("api", 2, t0))

	out := Merge(context.Background(), []<-chan model.RawLine{a, b}, 100, time.Hour)
	var got []model.RawLine
	for line := range out {
		got = append(got, line)
	}

	require.Len(t, got, 3)
	assert.Equal(t, []string{"api", "zebra", "api"}, originsOf(got))
}

func TestMerge_DeliversEverythingExactlyOnce(t *testing.T) {
	t0 := time.Now()
	var inputs []<-chan model.RawLine
	want := map[uint64]bool{}
	var seq uint64
	for i := 0; i < 4; i++ {
		var lines []model.RawLine
		for j := 0; j < 25; j++ {
			seq++
			lines = append(lines, rawAt("o", seq, t0.Add(time.Duration(seq)*time.Millisecond)))
			want[seq] = true
		}
		inputs = append(inputs, mergeInput(lines...))
	}

	// A tiny look-back forces overflow emission along the way.
	out := Merge(context.Background(), inputs, 8, 10*time.Millisecond)
	var got []uint64
	for line := range out {
		got = append(got, line.Seq)
		delete(want, line.Seq)
	}

	assert.Len(t, got, 100)
	assert.Empty(t, want, "lines lost in merge")
}

func TestMerge_HorizonFlushesQuietBuffer(t *testing.T) {
	// An old line sitting in a non-full buffer must be released after the
	// horizon, not held until the inputs close.
	in := make(chan model.RawLine, 1)
	in <- rawAt("api", 1, time.Now().Add(-time.Second))

	out := Merge(context.Background(), []<-chan model.RawLine{in}, 100, 20*time.Millisecond)
	select {
	case line := <-out:
		assert.Equal(t, uint64(1), line.Seq)
	case <-time.After(2 * time.Second):
		t.Fatal("buffered line never flushed")
	}
	close(in)
	for range out {
	}
}

func TestMerge_CancelCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan model.RawLine) // never written, never closed
	out := Merge(ctx, []<-chan model.RawLine{in}, 10, time.Hour)

	cancel()
	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("merge did not close on cancel")
	}
}

func TestLineHeapOrdering(t *testing.T) {
	t0 := time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)
	h := lineHeap{
		rawAt("b", 2, t0.Add(time.Millisecond)),
		rawAt("a", 1, t0),
		rawAt("a", 2, t0),
	}
	sort.Sort(h)

	assert.Equal(t, uint64(1), h[0].Seq)
	assert.Equal(t, "a", h[1].Origin)
	assert.Equal(t, uint64(2), h[1].Seq)
	assert.Equal(t, "b", h[2].Origin)
}
