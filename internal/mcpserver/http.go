package mcpserver

import (
	"io"
	"net/http"

	"github.com/ummon-dev/ummon/internal/logging"
)

// Handler returns an http.Handler accepting one JSON-RPC request per POST
// body and writing one JSON-RPC response per response body, for `serve
// --http` (§6). The `sse` protocol variant reuses this same handler: an SSE
// client frames each line as its own POST, so no separate encoding is
// needed here.
func Handler(s *Server) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		resp := s.HandleLine(r.Context(), body)
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write(resp); err != nil {
			logging.MCP("http transport write error: %v", err)
		}
	})
	return mux
}
