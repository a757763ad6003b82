// Package engine composes the per-line stages of an analysis: parse,
// normalize, detect. One Engine instance serves one run; the stages run
// single-threaded so event ids and correlator input stay deterministic
// for identical input.
package engine

import (
	"github.com/pale-fire/logdoctor/internal/engine/detect"
	"github.com/pale-fire/logdoctor/internal/engine/normalize"
	"github.com/pale-fire/logdoctor/internal/engine/parser"
	"github.com/pale-fire/logdoctor/internal/model"
)

// Output is one fully processed event with its classification.
type Output struct {
	Event     model.Event
	Detection detect.Detection
}

// Stats counts degradations observed while processing.
type Stats struct {
	// UnparsedLines fell through every recognizer and became raw events.
	UnparsedLines int
	// FoldedLines were appended to a preceding error as continuations.
	FoldedLines int
	// UnknownLevels counts severity tokens that failed to map.
	UnknownLevels int
	// ApproxTimes counts events stamped with arrival time.
	ApproxTimes int
}

// Engine orchestrates the parse → normalize → detect stages.
type Engine struct {
	parser *parser.Parser
	norm   *normalize.Normalizer
	det    *detect.Detector

	unparsed int
	folded   int
}

// New creates an Engine from the provided stages.
func New(p *parser.Parser, n *normalize.Normalizer, d *detect.Detector) *Engine {
	return &Engine{parser: p, norm: n, det: d}
}

// Feed consumes one raw line. Completed events surface one line behind so
// continuation lines can fold into the event that produced them.
func (e *Engine) Feed(line model.RawLine) (Output, bool) {
	res, ok := e.parser.Feed(line)
	if !ok {
		return Output{}, false
	}
	return e.finish(res), true
}

// Flush drains the pending event at end of stream.
func (e *Engine) Flush() (Output, bool) {
	res, ok := e.parser.Flush()
	if !ok {
		return Output{}, false
	}
	return e.finish(res), true
}

// ProcessAll runs a complete slice of lines through the engine and flushes.
func (e *Engine) ProcessAll(lines []model.RawLine) []Output {
	outs := make([]Output, 0, len(lines))
	for _, line := range lines {
		if out, ok := e.Feed(line); ok {
			outs = append(outs, out)
		}
	}
	if out, ok := e.Flush(); ok {
		outs = append(outs, out)
	}
	return outs
}

func (e *Engine) finish(res parser.Result) Output {
	if res.Cand.Parser == "raw" {
		e.unparsed++
	}
	e.folded += res.Folded

	ev := e.norm.Normalize(res)
	det := e.det.Classify(&ev)
	return Output{Event: ev, Detection: det}
}

// Stats reports processing degradations for the run summary.
func (e *Engine) Stats() Stats {
	return Stats{
		UnparsedLines: e.unparsed,
		FoldedLines:   e.folded,
		UnknownLevels: e.norm.UnknownLevels(),
		ApproxTimes:   e.norm.ApproxTimes(),
	}
}
