package controllers

import (
	"io"
	"net/http"

	"github.com/trekjournal/media-proxy/api/middleware"
	"github.com/trekjournal/media-proxy/api/responses"
	"github.com/trekjournal/media-proxy/internal/mcp"
	pkgerrors "github.com/trekjournal/media-proxy/pkg/errors"
	"github.com/trekjournal/media-proxy/pkg/logger"
)

// mcpBodyLimit bounds JSON-RPC request bodies. Tool calls are small.
const mcpBodyLimit = 1 << 20

// MCP hands the JSON-RPC body to the gateway. Authentication is per-method,
// so token extraction happens here rather than in middleware.
func MCP(gateway *mcp.Gateway, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, mcpBodyLimit))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		resp, status := gateway.Handle(r.Context(), body, middleware.ExtractToken(r))
		responses.WriteJSON(w, status, resp)
	}
}
