package source

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/pale-fire/logdoctor/internal/model"
)

const (
	defaultLookback = 64
	defaultHorizon  = 250 * time.Millisecond
)

// Merge fans the origins' channels into one stream, reordering within a
// bounded look-back window: a small heap holds up to lookback lines for at
// most horizon, then releases them in (arrival, seq, origin) order. A slow
// origin never stalls the stream; a line arriving later than the horizon is
// emitted late rather than dropped. The output closes once every input has
// closed and the buffer is drained.
func Merge(ctx context.Context, inputs []<-chan model.RawLine, lookback int, horizon time.Duration) <-chan model.RawLine {
	if lookback <= 0 {
		lookback = defaultLookback
	}
	if horizon <= 0 {
		horizon = defaultHorizon
	}

	fanin := make(chan model.RawLine, lineBuffer)
	var wg sync.WaitGroup
	wg.Add(len(inputs))
	for _, in := range inputs {
		go func(in <-chan model.RawLine) {
			defer wg.Done()
			for line := range in {
				select {
				case fanin <- line:
				case <-ctx.Done():
					return
				}
			}
		}(in)
	}
	go func() {
		wg.Wait()
		close(fanin)
	}()

	out := make(chan model.RawLine, lineBuffer)
	go func() {
		defer close(out)

		var buf lineHeap
		ticker := time.NewTicker(horizon)
		defer ticker.Stop()

		emit := func(line model.RawLine) bool {
			select {
			case out <- line:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			select {
			case line, ok := <-fanin:
				if !ok {
					for buf.Len() > 0 {
						if !emit(heap.Pop(&buf).(model.RawLine)) {
							return
						}
					}
					return
				}
				heap.Push(&buf, line)
				for buf.Len() > lookback {
					if !emit(heap.Pop(&buf).(model.RawLine)) {
						return
					}
				}
			case <-ticker.C:
				cutoff := time.Now().Add(-horizon)
				for buf.Len() > 0 && buf[0].Arrival.Before(cutoff) {
					if !emit(heap.Pop(&buf).(model.RawLine)) {
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// lineHeap orders buffered lines by arrival, then sequence, then origin.
type lineHeap []model.RawLine

func (h lineHeap) Len() int { return len(h) }

func (h lineHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if !a.Arrival.Equal(b.Arrival) {
		return a.Arrival.Before(b.Arrival)
	}
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	return a.Origin < b.Origin
}

func (h lineHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *lineHeap) Push(x any) { *h = append(*h, x.(model.RawLine)) }

func (h *lineHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
