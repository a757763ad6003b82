package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pale-fire/logdoctor/internal/model"
)

func init() {
	Register("tail", func(target string, opts Options) ([]Source, error) {
		return []Source{NewTail(target, opts.Service, opts.PollInterval, opts.Log)}, nil
	})
}

const defaultTailPoll = 500 * time.Millisecond

// Tail follows a file: it starts at the current end and emits lines as they
// are appended, polling on an interval rather than busy-waiting. A shrink
// of the file is taken as rotation and reading restarts from the head.
type Tail struct {
	path    string
	origin  string
	service string
	poll    time.Duration
	log     zerolog.Logger
	errState
}

func NewTail(path, service string, poll time.Duration, log zerolog.Logger) *Tail {
	if poll <= 0 {
		poll = defaultTailPoll
	}
	origin := originFromPath(path)
	return &Tail{
		path:    path,
		origin:  origin,
		service: serviceOr(service, origin),
		poll:    poll,
		log:     log,
	}
}

func (t *Tail) Describe() Origin {
	return Origin{ID: t.origin, Scheme: "tail", Target: t.path, Service: t.service}
}

func (t *Tail) Lines(ctx context.Context) (<-chan model.RawLine, error) {
	f, err := os.Open(t.path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	offset, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("source: %w", err)
	}

	ch := make(chan model.RawLine, lineBuffer)
	go func() {
		defer close(ch)
		t.setErr(t.follow(ctx, f, offset, ch))
	}()
	return ch, nil
}

func (t *Tail) follow(ctx context.Context, f *os.File, offset int64, ch chan<- model.RawLine) error {
	defer func() { f.Close() }()

	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()

	var pending []byte
	var seq uint64
	chunk := make([]byte, 32*1024)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		st, err := os.Stat(t.path)
		if err != nil {
			return fmt.Errorf("source: %s: %w", t.path, err)
		}
		if st.Size() < offset {
			// Rotated or truncated: reopen and read the new head.
			nf, err := os.Open(t.path)
			if err != nil {
				return fmt.Errorf("source: %s: %w", t.path, err)
			}
			f.Close()
			f = nf
			offset = 0
			pending = pending[:0]
			t.log.Debug().Str("path", t.path).Msg("file shrank, restarting from head")
		}

		for {
			n, err := f.Read(chunk)
			if n > 0 {
				offset += int64(n)
				pending = append(pending, chunk[:n]...)
				for {
					i := bytes.IndexByte(pending, '\n')
					if i < 0 {
						break
					}
					text := strings.TrimRight(string(pending[:i]), "\r")
					pending = pending[i+1:]
					seq++
					if strings.TrimSpace(text) == "" {
						continue
					}
					line := model.RawLine{
						Origin:  t.origin,
						Service: t.service,
						Seq:     seq,
						Text:    text,
						Arrival: time.Now().UTC(),
					}
					select {
					case ch <- line:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
			if err == io.EOF {
				break
			}
			if err != nil {
				return fmt.Errorf("source: %s: %w", t.path, err)
			}
		}
	}
}
