package mcpserver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ummon-dev/ummon/internal/logging"
)

// ServeStdio runs the line-delimited JSON-RPC loop: one request per input
// line, one response per output line. It returns when r is exhausted or ctx
// is cancelled, matching the line-at-a-time framing the teacher's client
// side (internal/mcp/transport_stdio.go) uses to talk to MCP subprocesses —
// this is the same wire convention, read and write roles reversed.
func ServeStdio(ctx context.Context, s *Server, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		resp := s.HandleLine(ctx, []byte(line))
		if _, err := w.Write(append(resp, '\n')); err != nil {
			return fmt.Errorf("mcpserver: write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		logging.MCP("stdio transport read error: %v", err)
		return fmt.Errorf("mcpserver: read request: %w", err)
	}
	return nil
}
