// Package source turns files, directories, streams, containers, and HTTP
// endpoints into per-origin channels of raw lines. Sources are registered
// by scheme; the pipeline resolves CLI targets into sources and merges
// their output.
package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pale-fire/logdoctor/internal/model"
)

// maxLineBytes bounds a single line; longer input ends the origin's stream.
const maxLineBytes = 1 << 20

const lineBuffer = 64

// Origin describes one log source feeding a run.
type Origin struct {
	ID      string // unique within the run: file stem, container name, host
	Scheme  string // file, dir, stdin, tail, docker, http
	Target  string // path, container id, or URL
	Service string // service attributed to the origin's events
}

// Source is one stream of raw lines. Open failures surface from Lines;
// mid-stream failures close the channel with the lines read so far retained
// and are reported by Err afterwards.
type Source interface {
	Lines(ctx context.Context) (<-chan model.RawLine, error)

	// Err reports the failure that ended the stream, valid once the channel
	// from Lines has closed. nil after a clean end of input.
	Err() error

	Describe() Origin
}

// Options carries the shared knobs source constructors need. Zero values
// fall back to the package defaults.
type Options struct {
	Service       string // service override applied to every produced origin
	Follow        bool   // tail instead of one-shot where the scheme supports it
	DirGlobs      []string
	PollInterval  time.Duration
	HTTPTimeout   time.Duration
	DockerTimeout time.Duration
	Token         string           // bearer token for http origins
	Runtime       ContainerRuntime // container engine; nil means local docker CLI
	Log           zerolog.Logger
}

// Constructor builds the sources for one target. Directory targets expand
// to one source per matching file; everything else yields exactly one.
type Constructor func(target string, opts Options) ([]Source, error)

var registry = map[string]Constructor{}

// Register adds a source constructor under the given scheme name.
func Register(scheme string, ctor Constructor) {
	registry[scheme] = ctor
}

// Open builds the sources for a scheme and target.
func Open(scheme, target string, opts Options) ([]Source, error) {
	ctor, ok := registry[scheme]
	if !ok {
		return nil, fmt.Errorf("source: unknown scheme %q", scheme)
	}
	return ctor(target, opts)
}

// Schemes returns the registered scheme names, sorted.
func Schemes() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve classifies a CLI target and opens it: "-" reads stdin, http(s)
// URLs poll over HTTP, "docker:<id>" reads container logs, filesystem paths
// become directory walks or single files. Follow mode turns a plain file
// into a tail.
func Resolve(target string, opts Options) ([]Source, error) {
	scheme, rest, err := classify(target, opts.Follow)
	if err != nil {
		return nil, err
	}
	return Open(scheme, rest, opts)
}

// Classify reports the scheme and normalized target an argument resolves
// to, without opening anything.
func Classify(target string) (scheme, rest string, err error) {
	return classify(target, false)
}

func classify(target string, follow bool) (scheme, rest string, err error) {
	switch {
	case target == "-" || target == "stdin":
		return "stdin", "", nil
	case strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://"):
		return "http", target, nil
	case strings.HasPrefix(target, "docker:"):
		return "docker", strings.TrimPrefix(target, "docker:"), nil
	}
	st, err := os.Stat(target)
	if err != nil {
		return "", "", fmt.Errorf("source: %w", err)
	}
	if st.IsDir() {
		return "dir", target, nil
	}
	if follow {
		return "tail", target, nil
	}
	return "file", target, nil
}

// originFromPath derives an origin id from a file name the way operators
// name their logs: "api.log" -> "api", "db-service.log.gz" -> "db-service".
func originFromPath(path string) string {
	name := filepath.Base(path)
	name = strings.TrimSuffix(name, ".gz")
	name = strings.TrimSuffix(name, filepath.Ext(name))
	for _, suffix := range []string{"-log", "_log", ".error", ".access"} {
		name = strings.TrimSuffix(name, suffix)
	}
	if name == "" {
		return "unknown"
	}
	return name
}

func serviceOr(service, origin string) string {
	if service == "" {
		return origin
	}
	return service
}

// errState carries a stream-ending error from the reader goroutine to the
// consumer. The channel close is the synchronization point: setErr happens
// before close, Err is called after the range over the channel ends.
type errState struct {
	err error
}

func (s *errState) setErr(err error) {
	if err != nil && !errors.Is(err, context.Canceled) {
		s.err = err
	}
}

func (s *errState) Err() error { return s.err }

// scanLines emits non-blank lines from r. Seq counts raw file lines (blank
// ones included) so an event's sequence matches the line number in its
// origin, and ids stay stable across re-reads.
func scanLines(ctx context.Context, r io.Reader, origin, service string, ch chan<- model.RawLine) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	var seq uint64
	for sc.Scan() {
		seq++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		line := model.RawLine{
			Origin:  origin,
			Service: service,
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
	if err := sc.Err(); err != nil {
		return fmt.Errorf("source: %s: %w", origin, err)
	}
	return nil
}
