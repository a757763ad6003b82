package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pale-fire/logdoctor/internal/model"
)

func init() {
	Register("http", func(target string, opts Options) ([]Source, error) {
		return []Source{NewHTTP(target, opts.Service, opts.Token, opts.Follow, opts.PollInterval, opts.HTTPTimeout, opts.Log)}, nil
	})
}

const defaultHTTPPoll = 5 * time.Second

// HTTP reads a paged JSON log endpoint: each page carries entries and an
// opaque next_token cursor. One-shot mode pages until the cursor runs out;
// follow mode keeps polling from the last cursor on an interval, treating
// poll failures as transient.
type HTTP struct {
	url     string
	service string
	token   string
	follow  bool
	poll    time.Duration
	timeout time.Duration
	log     zerolog.Logger
	errState
}

type logsPage struct {
	Data []logEntry `json:"data"`
	Meta pageMeta   `json:"meta"`
}

type logEntry struct {
	Timestamp string `json:"timestamp"` // RFC 3339, optional
	Message   string `json:"message"`
}

type pageMeta struct {
	NextToken string `json:"next_token"`
}

func NewHTTP(rawurl, service, token string, follow bool, poll, timeout time.Duration, log zerolog.Logger) *HTTP {
	if poll <= 0 {
		poll = defaultHTTPPoll
	}
	return &HTTP{
		url:     rawurl,
		service: service,
		token:   token,
		follow:  follow,
		poll:    poll,
		timeout: timeout,
		log:     log,
	}
}

func (h *HTTP) originID() string {
	if u, err := url.Parse(h.url); err == nil && u.Host != "" {
		return u.Host
	}
	return h.url
}

func (h *HTTP) Describe() Origin {
	id := h.originID()
	return Origin{ID: id, Scheme: "http", Target: h.url, Service: serviceOr(h.service, id)}
}

func (h *HTTP) Lines(ctx context.Context) (<-chan model.RawLine, error) {
	if _, err := url.Parse(h.url); err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	origin := h.originID()
	service := serviceOr(h.service, origin)
	client := newHTTPClient(h.url, h.token, h.timeout)

	ch := make(chan model.RawLine, lineBuffer)
	go func() {
		defer close(ch)
		h.setErr(h.run(ctx, client, origin, service, ch))
	}()
	return ch, nil
}

func (h *HTTP) run(ctx context.Context, client *httpClient, origin, service string, ch chan<- model.RawLine) error {
	var seq uint64
	cursor, err := h.drain(ctx, client, "", origin, service, &seq, ch)
	if err != nil || !h.follow {
		return err
	}

	ticker := time.NewTicker(h.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if cursor, err = h.drain(ctx, client, cursor, origin, service, &seq, ch); err != nil {
			return err
		}
	}
}

// drain pages from cursor until the endpoint reports no more entries,
// returning the cursor to resume from.
func (h *HTTP) drain(ctx context.Context, client *httpClient, cursor, origin, service string, seq *uint64, ch chan<- model.RawLine) (string, error) {
	for {
		q := url.Values{}
		if cursor != "" {
			q.Set("next_token", cursor)
		}

		var page logsPage
		if err := client.getJSON(ctx, "", q, &page); err != nil {
			if h.follow && ctx.Err() == nil {
				h.log.Warn().Str("origin", origin).Err(err).Msg("poll failed")
				return cursor, nil
			}
			return cursor, fmt.Errorf("source: %s: %w", origin, err)
		}

		for _, e := range page.Data {
			*seq++
			if strings.TrimSpace(e.Message) == "" {
				continue
			}
			arrival := time.Now().UTC()
			if ts, err := time.Parse(time.RFC3339Nano, e.Timestamp); err == nil {
				arrival = ts.UTC()
			}
			line := model.RawLine{
				Origin:  origin,
				Service: service,
				Seq:     *seq,
				Text:    e.Message,
				Arrival: arrival,
			}
			select {
			case ch <- line:
			case <-ctx.Done():
				return cursor, ctx.Err()
			}
		}

		next := page.Meta.NextToken
		if next == "" || next == cursor {
			return cursor, nil
		}
		cursor = next
	}
}
