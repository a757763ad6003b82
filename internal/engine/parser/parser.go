// Package parser converts raw log lines into structured event candidates
// using a fixed-priority chain of format recognizers. No input is ever
// rejected: a line that matches nothing degrades to a raw candidate
// carrying the text verbatim.
package parser

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/pale-fire/logdoctor/internal/config"
	"github.com/pale-fire/logdoctor/internal/model"
)

// Candidate is what a recognizer extracts from one line, before the
// normalizer assigns identity and canonical severity.
type Candidate struct {
	// Timestamp is zero when the line carried none.
	Timestamp time.Time
	// Zoned reports whether the timestamp had an explicit UTC offset.
	// Naive timestamps are reinterpreted in the configured timezone.
	Zoned bool
	// Level is the raw severity token as written ("ERROR", "warn", "3").
	// Empty when the line names no level.
	Level string
	// Message is the line text with timestamp and level markers stripped.
	Message string
	// Service is set only when the line itself names one.
	Service string
	// Fields holds structured extras (JSON keys, logfmt pairs, trace ids).
	Fields map[string]string
	// Parser names the recognizer that produced this candidate.
	Parser string
}

// Result is one completed event candidate paired with the raw line that
// started it. Folded counts continuation lines appended to Message.
type Result struct {
	Line   model.RawLine
	Cand   Candidate
	Folded int
}

type pending struct {
	line   model.RawLine
	cand   Candidate
	folded int
}

// Parser is a streaming line parser. Feed lines in origin order; completed
// candidates come out one line behind so that stack-trace continuations can
// be folded into the event that produced them. Not safe for concurrent use.
type Parser struct {
	recognizers []recognizer
	maxFold     int
	log         zerolog.Logger

	pend *pending
}

type recognizer struct {
	name string
	fn   func(line model.RawLine) (Candidate, bool)
}

// New builds a Parser. Custom patterns are tried before the built-in
// recognizers. maxFold bounds continuation folding; zero disables it.
func New(patterns []config.LinePattern, maxFold int, log zerolog.Logger) *Parser {
	p := &Parser{maxFold: maxFold, log: log}
	for _, pat := range patterns {
		p.recognizers = append(p.recognizers, recognizer{
			name: "custom:" + pat.Name,
			fn:   customRecognizer(pat),
		})
	}
	p.recognizers = append(p.recognizers,
		recognizer{"json", recognizeJSON},
		recognizer{"logfmt", recognizeLogfmt},
		recognizer{"access", recognizeAccess},
		recognizer{"syslog", recognizeSyslog},
		recognizer{"text", recognizeText},
	)
	return p
}

// ParseLine runs the recognizer chain on a single line with no
// continuation state. The raw fallback means ok is always true in the
// sense that a candidate is always returned.
func (p *Parser) ParseLine(line model.RawLine) Candidate {
	for _, r := range p.recognizers {
		if cand, ok := r.fn(line); ok {
			cand.Parser = r.name
			return cand
		}
	}
	p.log.Trace().Str("origin", line.Origin).Uint64("seq", line.Seq).Msg("no recognizer matched")
	cand := Candidate{Message: line.Text, Parser: "raw"}
	cand.Fields = traceFields(line.Text, cand.Fields)
	return cand
}

// Feed parses one line. When the line completes the previously pending
// event, that event is returned; a line folded into the pending event or
// starting the very first event returns ok=false.
func (p *Parser) Feed(line model.RawLine) (Result, bool) {
	cand := p.ParseLine(line)

	if p.pend != nil && p.isContinuation(cand) {
		p.pend.cand.Message += "\n" + line.Text
		p.pend.folded++
		return Result{}, false
	}

	var out Result
	ok := false
	if p.pend != nil {
		out = Result{Line: p.pend.line, Cand: p.pend.cand, Folded: p.pend.folded}
		ok = true
	}
	p.pend = &pending{line: line, cand: cand}
	return out, ok
}

// Flush returns the pending event at end of stream, if any.
func (p *Parser) Flush() (Result, bool) {
	if p.pend == nil {
		return Result{}, false
	}
	out := Result{Line: p.pend.line, Cand: p.pend.cand, Folded: p.pend.folded}
	p.pend = nil
	return out, true
}

// isContinuation reports whether cand should be folded into the pending
// event: the line matched no recognizer (no timestamp, no level) and the
// pending event is at least ERROR.
func (p *Parser) isContinuation(cand Candidate) bool {
	if cand.Parser != "raw" {
		return false
	}
	if p.pend.folded >= p.maxFold {
		return false
	}
	sev, ok := model.ParseSeverity(p.pend.cand.Level)
	return ok && sev >= model.SeverityError
}
