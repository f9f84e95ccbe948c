package agentapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Stream opens the Agent's event stream and delivers decoded Events on the
// returned channel until ctx is cancelled or the connection drops. The
// channel is closed on exit; the caller should range over it and check the
// error channel afterward.
func (c *Client) Stream(ctx context.Context) (<-chan Event, <-chan error) {
	events := make(chan Event)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/event", nil)
		if err != nil {
			errs <- fmt.Errorf("agentapi: build stream request: %w", err)
			return
		}
		req.Header.Set("Accept", "text/event-stream")

		// The stream may idle for long stretches, so it runs without the
		// client's request timeout.
		streamHTTP := *c.http
		streamHTTP.Timeout = 0
		resp, err := streamHTTP.Do(req)
		if err != nil {
			errs <- fmt.Errorf("agentapi: open event stream: %w", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			errs <- fmt.Errorf("agentapi: event stream status %d", resp.StatusCode)
			return
		}

		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

		var dataLines []string
		flush := func() {
			if len(dataLines) == 0 {
				return
			}
			payload := strings.Join(dataLines, "\n")
			dataLines = dataLines[:0]

			var ev Event
			if err := json.Unmarshal([]byte(payload), &ev); err != nil {
				return
			}
			select {
			case events <- ev:
			case <-ctx.Done():
			}
		}

		for sc.Scan() {
			line := sc.Text()
			switch {
			case line == "":
				flush()
			case strings.HasPrefix(line, "data:"):
				dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			case strings.HasPrefix(line, ":"):
				// comment / keepalive line, ignore
			}

			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			default:
			}
		}
		flush()

		if err := sc.Err(); err != nil {
			errs <- fmt.Errorf("agentapi: event stream read: %w", err)
		}
	}()

	return events, errs
}
