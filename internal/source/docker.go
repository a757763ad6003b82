package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pale-fire/logdoctor/internal/model"
)

func init() {
	Register("docker", func(target string, opts Options) ([]Source, error) {
		rt := opts.Runtime
		if rt == nil {
			rt = CLIRuntime{}
		}
		return []Source{NewDocker(target, opts.Service, rt, opts.Follow, opts.DockerTimeout, opts.Log)}, nil
	})
}

// ContainerRuntime abstracts the container engine behind the docker source.
type ContainerRuntime interface {
	// Logs opens the container's combined stdout+stderr log stream.
	Logs(ctx context.Context, id string, follow bool) (io.ReadCloser, error)

	// ContainerName resolves the human-readable name for a container id.
	ContainerName(ctx context.Context, id string) (string, error)
}

// Docker reads one container's logs. Batch reads are bounded by the
// configured timeout and a hit budget counts as end of stream, not failure.
type Docker struct {
	id      string
	origin  string
	service string
	rt      ContainerRuntime
	follow  bool
	timeout time.Duration
	log     zerolog.Logger
	errState
}

func NewDocker(id, service string, rt ContainerRuntime, follow bool, timeout time.Duration, log zerolog.Logger) *Docker {
	return &Docker{
		id:      id,
		origin:  id,
		service: service,
		rt:      rt,
		follow:  follow,
		timeout: timeout,
		log:     log,
	}
}

// Describe reflects the resolved container name once Lines has opened the
// stream; before that the container id stands in.
func (d *Docker) Describe() Origin {
	return Origin{
		ID:      d.origin,
		Scheme:  "docker",
		Target:  d.id,
		Service: serviceOr(d.service, d.origin),
	}
}

func (d *Docker) Lines(ctx context.Context) (<-chan model.RawLine, error) {
	nameCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		nameCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	switch name, err := d.rt.ContainerName(nameCtx, d.id); {
	case err != nil:
		d.log.Debug().Str("container", d.id).Err(err).Msg("name lookup failed, using id")
	case name != "":
		d.origin = name
	}

	streamCtx := ctx
	cancel := context.CancelFunc(func() {})
	if !d.follow && d.timeout > 0 {
		streamCtx, cancel = context.WithTimeout(ctx, d.timeout)
	}

	rc, err := d.rt.Logs(streamCtx, d.id, d.follow)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("source: docker %s: %w", d.id, err)
	}

	service := serviceOr(d.service, d.origin)
	ch := make(chan model.RawLine, lineBuffer)
	go func() {
		defer close(ch)
		defer cancel()
		defer rc.Close()
		err := scanLines(streamCtx, rc, d.origin, service, ch)
		switch {
		case errors.Is(streamCtx.Err(), context.DeadlineExceeded):
			d.log.Debug().Str("container", d.id).Msg("read budget exhausted, ending stream")
			err = nil
		case streamCtx.Err() != nil: // cancelled by the caller
			err = nil
		}
		d.setErr(err)
	}()
	return ch, nil
}

// CLIRuntime satisfies ContainerRuntime by shelling out to the local docker
// client, avoiding a daemon SDK dependency.
type CLIRuntime struct {
	Bin string // docker binary, default "docker"
}

func (r CLIRuntime) bin() string {
	if r.Bin == "" {
		return "docker"
	}
	return r.Bin
}

func (r CLIRuntime) ContainerName(ctx context.Context, id string) (string, error) {
	out, err := exec.CommandContext(ctx, r.bin(), "inspect", "--format", "{{.Name}}", id).Output()
	if err != nil {
		return "", fmt.Errorf("source: docker inspect: %w", err)
	}
	return strings.TrimPrefix(strings.TrimSpace(string(out)), "/"), nil
}

// Logs runs `docker logs --timestamps`, so every line carries a reliable
// RFC 3339 timestamp for the parser. Container stdout and stderr are
// combined; the returned reader ends with the command's exit status.
func (r CLIRuntime) Logs(ctx context.Context, id string, follow bool) (io.ReadCloser, error) {
	args := []string{"logs", "--timestamps"}
	if follow {
		args = append(args, "--follow")
	}
	args = append(args, id)

	cmd := exec.CommandContext(ctx, r.bin(), args...)
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	go func() { pw.CloseWithError(cmd.Wait()) }()
	return pr, nil
}
