package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pale-fire/logdoctor/internal/model"
	"github.com/pale-fire/logdoctor/internal/semantic"
)

const (
	timeFull  = time.RFC3339
	timeShort = "15:04:05.000"
)

// Text renders human-readable output.
type Text struct {
	w io.Writer
}

// NewText creates a text renderer writing to w.
func NewText(w io.Writer) *Text { return &Text{w: w} }

func (t *Text) table() *tabwriter.Writer {
	return tabwriter.NewWriter(t.w, 0, 0, 2, ' ', 0)
}

func (t *Text) Run(run *model.Run) error {
	fmt.Fprintf(t.w, "Run %s · %s\n", run.ID, run.CreatedAt.UTC().Format(timeFull))
	c := run.Counters
	fmt.Fprintf(t.w, "%d events · %d errors · %d warnings · %d groups\n",
		c.TotalEvents, c.ErrorCount, c.WarnCount, c.GroupCount)
	if c.UnparsedLines > 0 || c.DegradedLines > 0 {
		fmt.Fprintf(t.w, "degraded: %d unparsed lines, %d approximate timestamps or levels\n",
			c.UnparsedLines, c.DegradedLines)
	}
	if run.Partial {
		fmt.Fprintln(t.w, "partial: cancelled before all origins drained")
	}
	if run.Failed {
		fmt.Fprintln(t.w, "failed: no events and at least one origin errored")
	}

	if len(run.Origins) > 0 {
		fmt.Fprintln(t.w, "\nOrigins:")
		w := t.table()
		for _, o := range run.Origins {
			status := fmt.Sprintf("%d lines", o.Lines)
			if o.Err != "" {
				status += "  (" + o.Err + ")"
			}
			fmt.Fprintf(w, "  %s\t%s\n", o.Origin, status)
		}
		w.Flush()
	}

	if len(run.Summary.ByLevel) > 0 {
		levels := make([]string, 0, len(run.Summary.ByLevel))
		for lvl := range run.Summary.ByLevel {
			levels = append(levels, lvl)
		}
		sort.Strings(levels)
		parts := make([]string, 0, len(levels))
		for _, lvl := range levels {
			parts = append(parts, fmt.Sprintf("%s %d", lvl, run.Summary.ByLevel[lvl]))
		}
		fmt.Fprintf(t.w, "\nLevels: %s\n", strings.Join(parts, " · "))
		fmt.Fprintf(t.w, "Error rate: %.1f%%\n", run.Summary.ErrorRate)
	}

	if len(run.Summary.HotSpots) > 0 {
		fmt.Fprintln(t.w, "\nHot spots:")
		w := t.table()
		for _, h := range run.Summary.HotSpots {
			fmt.Fprintf(w, "  %s\t%d errors\n", h.Service, h.ErrorCount)
		}
		w.Flush()
	}
	if len(run.Summary.Spikes) > 0 {
		fmt.Fprintln(t.w, "\nSpikes:")
		for _, s := range run.Summary.Spikes {
			fmt.Fprintf(t.w, "  %s  %d errors (mean %.1f/min)\n",
				s.Minute.UTC().Format("15:04"), s.Count, s.Mean)
		}
	}

	if len(run.Groups) > 0 {
		fmt.Fprintln(t.w, "\nGroups:")
		w := t.table()
		fmt.Fprintln(w, "  GROUP\tCONF\tEVENTS\tORIGINS\tSPAN\tSIGNATURE")
		for i := range run.Groups {
			g := &run.Groups[i]
			fmt.Fprintf(w, "  %s\t%.0f%%\t%d\t%s\t%s\t%s\n",
				g.ID, g.Confidence*100, len(g.EventIDs),
				strings.Join(g.Origins, ","),
				g.Span().Round(time.Millisecond), g.Signature)
		}
		w.Flush()
	}
	return nil
}

func (t *Text) Events(events []model.Event) error {
	for i := range events {
		ev := &events[i]
		marker := " "
		if ev.Severity >= model.SeverityError {
			marker = "!"
		}
		suffix := ""
		if ev.ErrorID != "" {
			suffix = "  [" + ev.ErrorID + "]"
		}
		fmt.Fprintf(t.w, "%s %s %-5s %s: %s%s\n", marker,
			ev.Timestamp.UTC().Format(timeShort), ev.Severity, ev.Service, ev.Message, suffix)
	}
	return nil
}

func (t *Text) Event(ev *model.Event, g *model.Group) error {
	fmt.Fprintf(t.w, "Event    : %s\n", ev.ID)
	if ev.ErrorID != "" {
		fmt.Fprintf(t.w, "Error    : %s\n", ev.ErrorID)
	}
	fmt.Fprintf(t.w, "Severity : %s\n", ev.Severity)
	fmt.Fprintf(t.w, "Service  : %s\n", ev.Service)
	fmt.Fprintf(t.w, "Origin   : %s (line %d)\n", ev.Origin, ev.Seq)
	stamp := ev.Timestamp.UTC().Format(timeFull)
	if ev.TimeApprox {
		stamp += " (approximate)"
	}
	fmt.Fprintf(t.w, "Time     : %s\n", stamp)
	fmt.Fprintf(t.w, "Parser   : %s\n", ev.Parser)
	if len(ev.Fields) > 0 {
		keys := make([]string, 0, len(ev.Fields))
		for k := range ev.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+ev.Fields[k])
		}
		fmt.Fprintf(t.w, "Fields   : %s\n", strings.Join(pairs, " "))
	}
	fmt.Fprintf(t.w, "Message  : %s\n", ev.Message)
	if g != nil {
		fmt.Fprintf(t.w, "Group    : %s (%d events across %s, confidence %.0f%%)\n",
			g.ID, len(g.EventIDs), strings.Join(g.Origins, ", "), g.Confidence*100)
	}
	return nil
}

func (t *Text) Errors(list []ErrorSummary) error {
	if len(list) == 0 {
		fmt.Fprintln(t.w, "No errors found.")
		return nil
	}
	w := t.table()
	fmt.Fprintln(w, "ERROR\tCOUNT\tLEVEL\tSERVICE\tCATEGORY\tLAST SEEN\tMESSAGE")
	for _, e := range list {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			e.ErrorID, e.Count, e.Severity, e.Service, e.Category,
			e.LastSeen.UTC().Format(timeFull), e.Message)
	}
	return w.Flush()
}

func (t *Text) Similar(matches []semantic.Match) error {
	if len(matches) == 0 {
		fmt.Fprintln(t.w, "No similar errors found.")
		return nil
	}
	w := t.table()
	fmt.Fprintln(w, "SCORE\tERROR\tSERVICE\tSIGNATURE")
	for _, m := range matches {
		fmt.Fprintf(w, "%.3f\t%s\t%s\t%s\n", m.Score, m.ErrorID, m.Service, m.Signature)
	}
	return w.Flush()
}

func (t *Text) Runs(runs []model.Run) error {
	if len(runs) == 0 {
		fmt.Fprintln(t.w, "No runs stored.")
		return nil
	}
	w := t.table()
	fmt.Fprintln(w, "RUN\tCREATED\tEVENTS\tERRORS\tGROUPS\tFLAGS")
	for i := range runs {
		r := &runs[i]
		var flags []string
		if r.Partial {
			flags = append(flags, "partial")
		}
		if r.Failed {
			flags = append(flags, "failed")
		}
		if r.Append {
			flags = append(flags, "streaming")
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n",
			r.ID, r.CreatedAt.UTC().Format(timeFull),
			r.Counters.TotalEvents, r.Counters.ErrorCount, r.Counters.GroupCount,
			strings.Join(flags, ","))
	}
	return w.Flush()
}

func (t *Text) Sources(list []Source) error {
	if len(list) == 0 {
		fmt.Fprintln(t.w, "No sources saved.")
		return nil
	}
	w := t.table()
	fmt.Fprintln(w, "NAME\tSCHEME\tTARGET\tSERVICE\tADDED")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.Name, s.Scheme, s.Target, s.Service, s.AddedAt.UTC().Format(timeFull))
	}
	return w.Flush()
}

func (t *Text) Text(s string) error {
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	_, err := io.WriteString(t.w, s)
	return err
}
