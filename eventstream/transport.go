package eventstream

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// WireEvent is one named server-sent event as read off the connection.
type WireEvent struct {
	Name string
	Data []byte
}

// EventSource is an open event connection. Next blocks until the next event
// arrives or the connection fails; Close is idempotent and unblocks Next.
type EventSource interface {
	Next() (WireEvent, error)
	Close() error
}

// Transport dials event connections. The production implementation speaks
// SSE over HTTP; tests substitute fakes.
type Transport interface {
	Connect(ctx context.Context, url string) (EventSource, error)
}

// HTTPTransport connects to a server-sent-events endpoint over HTTP.
type HTTPTransport struct {
	// Client defaults to http.DefaultClient. It must not set a timeout that
	// would cut a long-lived stream.
	Client *http.Client
}

// Connect opens the SSE stream at url.
func (t *HTTPTransport) Connect(ctx context.Context, url string) (EventSource, error) {
	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build sse request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connect sse: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("connect sse: unexpected status %s", resp.Status)
	}
	return &httpSource{body: resp.Body, scanner: bufio.NewScanner(resp.Body)}, nil
}

type httpSource struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
}

// Next reads lines until a blank line terminates an event. Events without a
// data field are skipped, per the SSE framing rules.
func (s *httpSource) Next() (WireEvent, error) {
	var event WireEvent
	var data strings.Builder
	haveData := false
	for s.scanner.Scan() {
		line := s.scanner.Text()
		switch {
		case line == "":
			if haveData {
				event.Data = []byte(data.String())
				return event, nil
			}
			event = WireEvent{}
		case strings.HasPrefix(line, "event:"):
			event.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if haveData {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
			haveData = true
		}
		// Comment lines (":") and unknown fields are ignored.
	}
	if err := s.scanner.Err(); err != nil {
		return WireEvent{}, err
	}
	return WireEvent{}, io.EOF
}

// Close shuts the underlying response body, unblocking Next.
func (s *httpSource) Close() error {
	return s.body.Close()
}
