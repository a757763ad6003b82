package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pale-fire/logdoctor/internal/model"
	"github.com/pale-fire/logdoctor/internal/semantic"
)

// NDJSON renders one JSON object per line, each tagged with a "type" field
// so mixed streams stay parseable.
type NDJSON struct {
	enc *json.Encoder
}

// NewNDJSON creates an NDJSON renderer writing to w.
func NewNDJSON(w io.Writer) *NDJSON {
	return &NDJSON{enc: json.NewEncoder(w)}
}

func (n *NDJSON) emit(v any) error {
	if err := n.enc.Encode(v); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	return nil
}

func (n *NDJSON) Run(run *model.Run) error {
	return n.emit(struct {
		Type string `json:"type"`
		*model.Run
	}{"run", run})
}

func (n *NDJSON) Events(events []model.Event) error {
	for i := range events {
		err := n.emit(struct {
			Type string `json:"type"`
			*model.Event
		}{"event", &events[i]})
		if err != nil {
			return err
		}
	}
	return nil
}

func (n *NDJSON) Event(ev *model.Event, g *model.Group) error {
	err := n.emit(struct {
		Type string `json:"type"`
		*model.Event
	}{"event", ev})
	if err != nil {
		return err
	}
	if g == nil {
		return nil
	}
	return n.emit(struct {
		Type string `json:"type"`
		*model.Group
	}{"group", g})
}

func (n *NDJSON) Errors(list []ErrorSummary) error {
	for i := range list {
		err := n.emit(struct {
			Type string `json:"type"`
			*ErrorSummary
		}{"error", &list[i]})
		if err != nil {
			return err
		}
	}
	return nil
}

func (n *NDJSON) Similar(matches []semantic.Match) error {
	for _, m := range matches {
		err := n.emit(struct {
			Type string `json:"type"`
			semantic.Match
		}{"match", m})
		if err != nil {
			return err
		}
	}
	return nil
}

func (n *NDJSON) Runs(runs []model.Run) error {
	for i := range runs {
		err := n.emit(struct {
			Type string `json:"type"`
			*model.Run
		}{"run", &runs[i]})
		if err != nil {
			return err
		}
	}
	return nil
}

func (n *NDJSON) Sources(list []Source) error {
	for i := range list {
		err := n.emit(struct {
			Type string `json:"type"`
			*Source
		}{"source", &list[i]})
		if err != nil {
			return err
		}
	}
	return nil
}

func (n *NDJSON) Text(s string) error {
	return n.emit(struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}{"text", s})
}
