package source

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/pale-fire/logdoctor/internal/model"
)

func init() {
	Register("stdin", func(_ string, opts Options) ([]Source, error) {
		return []Source{NewReader(os.Stdin, "stdin", opts.Service, opts.Log)}, nil
	})
}

// Reader adapts any io.Reader into a source; standard input uses it
// directly. Lines are stamped with arrival time as they are read.
type Reader struct {
	r       io.Reader
	origin  string
	service string
	log     zerolog.Logger
	errState
}

func NewReader(r io.Reader, origin, service string, log zerolog.Logger) *Reader {
	return &Reader{
		r:       r,
		origin:  origin,
		service: serviceOr(service, origin),
		log:     log,
	}
}

func (s *Reader) Describe() Origin {
	return Origin{ID: s.origin, Scheme: "stdin", Target: "-", Service: s.service}
}

func (s *Reader) Lines(ctx context.Context) (<-chan model.RawLine, error) {
	ch := make(chan model.RawLine, lineBuffer)
	go func() {
		defer close(ch)
		s.setErr(scanLines(ctx, s.r, s.origin, s.service, ch))
	}()
	return ch, nil
}
