package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

const maxMessageSize = 10 * 1024 * 1024

// ServeStdio reads newline-delimited JSON-RPC messages from r and writes
// responses to w until r is exhausted or ctx is cancelled. Reads happen on
// a separate goroutine, so cancellation does not wait for the next line; a
// reader blocked at that point is left to the process exit.
func (s *Server) ServeStdio(ctx context.Context, r io.Reader, w io.Writer) error {
	var mu sync.Mutex
	write := func(resp *Response) error {
		data, err := json.Marshal(resp)
		if err != nil {
			return fmt.Errorf("failed to encode response: %w", err)
		}
		mu.Lock()
		defer mu.Unlock()
		if _, err := w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 64*1024), maxMessageSize)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			select {
			case lines <- append([]byte(nil), line...):
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	s.log.Info().Msg("Serving MCP over stdio")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("Stdio transport stopped")
			return nil
		case line, ok := <-lines:
			if !ok {
				if ctx.Err() != nil {
					s.log.Info().Msg("Stdio transport stopped")
					return nil
				}
				if err := <-readErr; err != nil {
					return fmt.Errorf("failed to read request: %w", err)
				}
				s.log.Info().Msg("Stdio input closed")
				return nil
			}
			resp := s.HandleMessage(ctx, line)
			if resp == nil {
				continue
			}
			if err := write(resp); err != nil {
				return err
			}
		}
	}
}
