package source

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pale-fire/logdoctor/internal/model"
)

func init() {
	Register("file", func(target string, opts Options) ([]Source, error) {
		return []Source{NewFile(target, opts.Service, opts.Log)}, nil
	})
}

// File reads one log file start to end. Files ending in .gz are
// decompressed transparently.
type File struct {
	path    string
	origin  string
	service string
	log     zerolog.Logger
	errState
}

// NewFile creates a file source. An empty service attributes events to the
// origin id derived from the file name.
func NewFile(path, service string, log zerolog.Logger) *File {
	origin := originFromPath(path)
	return &File{
		path:    path,
		origin:  origin,
		service: serviceOr(service, origin),
		log:     log,
	}
}

func (f *File) Describe() Origin {
	return Origin{ID: f.origin, Scheme: "file", Target: f.path, Service: f.service}
}

func (f *File) Lines(ctx context.Context) (<-chan model.RawLine, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}

	var r io.Reader = fh
	var gz *gzip.Reader
	if strings.HasSuffix(f.path, ".gz") {
		gz, err = gzip.NewReader(fh)
		if err != nil {
			fh.Close()
			return nil, fmt.Errorf("source: %s: %w", f.path, err)
		}
		r = gz
	}

	ch := make(chan model.RawLine, lineBuffer)
	go func() {
		defer close(ch)
		defer fh.Close()
		if gz != nil {
			defer gz.Close()
		}
		f.setErr(scanLines(ctx, r, f.origin, f.service, ch))
	}()
	return ch, nil
}
