package mcp

import "encoding/json"

const (
	protocolVersion = "2024-11-05"
	serverName      = "trekjournal-media-proxy"
	serverVersion   = "1.0.0"
)

// JSON-RPC 2.0 error codes, plus the MCP auth extensions.
const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeInternalError  = -32603
	codeUnauthorized   = -32001
	codeForbidden      = -32003
)

// Request is an inbound JSON-RPC 2.0 envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is the outbound envelope. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func resultResponse(id json.RawMessage, result any) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, code int, message string) *Response {
	return &Response{JSONRPC: "2.0", ID: id, Error: &RPCError{Code: code, Message: message}}
}

// ToolName enumerates the tool registry. Dispatch in the gateway switches
// over this type so an unregistered tool is unreachable.
type ToolName string

const (
	ToolListJourneys      ToolName = "list_journeys"
	ToolGetJourneyDetails ToolName = "get_journey_details"
	ToolSearchJourneys    ToolName = "search_journeys"
	ToolGetJourneyStats   ToolName = "get_journey_stats"
	ToolGetJourneyPhotos  ToolName = "get_journey_photos"
)

// toolDefinition is the static tools/list entry for one tool.
type toolDefinition struct {
	Name        ToolName       `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func schemaObject(properties map[string]any, required ...string) map[string]any {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// toolRegistry is fixed at startup and immutable thereafter.
var toolRegistry = []toolDefinition{
	{
		Name:        ToolListJourneys,
		Description: "List the journeys the caller is a member of, optionally filtered by country.",
		InputSchema: schemaObject(map[string]any{
			"limit":   map[string]any{"type": "integer", "maximum": 100},
			"offset":  map[string]any{"type": "integer"},
			"country": map[string]any{"type": "string"},
		}),
	},
	{
		Name:        ToolGetJourneyDetails,
		Description: "Get one journey's metadata, derived statistics, and camp list by ID or slug.",
		InputSchema: schemaObject(map[string]any{
			"journey_id": map[string]any{"type": "string"},
		}, "journey_id"),
	},
	{
		Name:        ToolSearchJourneys,
		Description: "Search the caller's journeys by name, country, or description substring.",
		InputSchema: schemaObject(map[string]any{
			"query": map[string]any{"type": "string"},
			"limit": map[string]any{"type": "integer", "maximum": 50},
		}, "query"),
	},
	{
		Name:        ToolGetJourneyStats,
		Description: "Re-derive extended trek statistics from raw route and waypoint data.",
		InputSchema: schemaObject(map[string]any{
			"journey_id": map[string]any{"type": "string"},
		}, "journey_id"),
	},
	{
		Name:        ToolGetJourneyPhotos,
		Description: "List a journey's photos, optionally scoped to one waypoint.",
		InputSchema: schemaObject(map[string]any{
			"journey_id":  map[string]any{"type": "string"},
			"waypoint_id": map[string]any{"type": "string"},
			"limit":       map[string]any{"type": "integer", "maximum": 200},
		}, "journey_id"),
	},
}
