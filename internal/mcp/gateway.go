package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/trekjournal/media-proxy/internal/journeys"
	"github.com/trekjournal/media-proxy/pkg/auth"
	"github.com/trekjournal/media-proxy/pkg/errors"
	"github.com/trekjournal/media-proxy/pkg/logger"
	"github.com/trekjournal/media-proxy/pkg/pagination"
)

// journeyData is the slice of the journeys repository the tools read from.
type journeyData interface {
	GetJourney(ctx context.Context, journeyID string) (*journeys.Journey, error)
	ResolveSlug(ctx context.Context, slug string) (string, error)
	GetMembership(ctx context.Context, journeyID, userID string) (*journeys.Membership, error)
	ListMembershipJourneyIDs(ctx context.Context, userID string) ([]string, error)
	ListJourneysByIDs(ctx context.Context, ids []string) ([]journeys.Journey, error)
	Waypoints(ctx context.Context, journeyID string) ([]journeys.Waypoint, error)
	Photos(ctx context.Context, journeyID string, waypointID *string) ([]journeys.Photo, error)
}

// tokenVerifier authenticates tools/call bearer tokens.
type tokenVerifier interface {
	Verify(ctx context.Context, token string) (*auth.TokenClaims, error)
}

// Gateway serves the JSON-RPC tool surface. Stateless per request.
type Gateway struct {
	repo     journeyData
	verifier tokenVerifier
	logg     *logger.Logger
}

// NewGateway wires the gateway over the journeys repository and verifier.
func NewGateway(repo journeyData, verifier tokenVerifier, logg *logger.Logger) *Gateway {
	return &Gateway{repo: repo, verifier: verifier, logg: logg}
}

// Handle processes one JSON-RPC request body. The bearer token may be empty;
// it is only required for tools/call. The returned status is the HTTP status
// the response envelope should be written with.
func (g *Gateway) Handle(ctx context.Context, raw []byte, bearerToken string) (*Response, int) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return errorResponse(nil, codeParseError, "parse error"), http.StatusBadRequest
	}
	if req.JSONRPC != "2.0" || req.Method == "" || len(req.ID) == 0 {
		return errorResponse(req.ID, codeInvalidRequest, "invalid request"), http.StatusBadRequest
	}

	switch req.Method {
	case "initialize":
		return resultResponse(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{}},
			"serverInfo": map[string]any{
				"name":    serverName,
				"version": serverVersion,
			},
		}), http.StatusOK
	case "ping":
		return resultResponse(req.ID, map[string]any{}), http.StatusOK
	case "tools/list":
		return resultResponse(req.ID, map[string]any{"tools": toolRegistry}), http.StatusOK
	case "tools/call":
		claims, err := g.authenticate(ctx, bearerToken)
		if err != nil {
			return errorResponse(req.ID, codeUnauthorized, "unauthorized"), http.StatusUnauthorized
		}
		return g.handleToolCall(ctx, req, claims.UserID()), http.StatusOK
	default:
		// Any other method would also require auth; check it first so an
		// unauthenticated probe cannot enumerate methods.
		if _, err := g.authenticate(ctx, bearerToken); err != nil {
			return errorResponse(req.ID, codeUnauthorized, "unauthorized"), http.StatusUnauthorized
		}
		return errorResponse(req.ID, codeMethodNotFound, "method not found: "+req.Method), http.StatusOK
	}
}

func (g *Gateway) authenticate(ctx context.Context, bearerToken string) (*auth.TokenClaims, error) {
	if bearerToken == "" {
		return nil, errors.New(errors.CodeUnauthorized, "missing bearer token")
	}
	return g.verifier.Verify(ctx, bearerToken)
}

type toolCallParams struct {
	Name      ToolName        `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (g *Gateway) handleToolCall(ctx context.Context, req Request, callerID string) *Response {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil || params.Name == "" {
		return errorResponse(req.ID, codeInvalidParams, "tools/call requires a tool name")
	}

	ctx = g.logg.WithTool(g.logg.WithUserID(ctx, callerID), string(params.Name))

	result, rpcErr := g.dispatch(ctx, callerID, params.Name, params.Arguments)
	if rpcErr != nil {
		return &Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
	}
	return resultResponse(req.ID, result)
}

// dispatch routes a tool call to its handler via an exhaustive switch over
// ToolName. Unknown names fall through to METHOD_NOT_FOUND.
func (g *Gateway) dispatch(ctx context.Context, callerID string, name ToolName, args json.RawMessage) (any, *RPCError) {
	switch name {
	case ToolListJourneys:
		return g.listJourneys(ctx, callerID, args)
	case ToolGetJourneyDetails:
		return g.getJourneyDetails(ctx, callerID, args)
	case ToolSearchJourneys:
		return g.searchJourneys(ctx, callerID, args)
	case ToolGetJourneyStats:
		return g.getJourneyStats(ctx, callerID, args)
	case ToolGetJourneyPhotos:
		return g.getJourneyPhotos(ctx, callerID, args)
	default:
		return nil, &RPCError{Code: codeMethodNotFound, Message: "unknown tool: " + string(name)}
	}
}

// journeySummary is the list/search projection of a journey row.
type journeySummary struct {
	ID                  string  `json:"id"`
	Slug                string  `json:"slug"`
	Name                string  `json:"name"`
	Country             string  `json:"country"`
	IsPublic            bool    `json:"isPublic"`
	StartDate           string  `json:"startDate,omitempty"`
	EndDate             string  `json:"endDate,omitempty"`
	TotalDistanceKM     float64 `json:"totalDistanceKm"`
	TotalElevationGainM float64 `json:"totalElevationGainM"`
}

func summarize(row journeys.Journey) journeySummary {
	return journeySummary{
		ID:                  row.ID,
		Slug:                row.Slug,
		Name:                row.Name,
		Country:             row.Country,
		IsPublic:            row.IsPublic,
		StartDate:           row.StartDate,
		EndDate:             row.EndDate,
		TotalDistanceKM:     row.TotalDistanceKM,
		TotalElevationGainM: row.TotalElevationGainM,
	}
}

func (g *Gateway) memberJourneys(ctx context.Context, callerID string) ([]journeys.Journey, *RPCError) {
	ids, err := g.repo.ListMembershipJourneyIDs(ctx, callerID)
	if err != nil {
		return nil, g.internalError(ctx, err)
	}
	rows, err := g.repo.ListJourneysByIDs(ctx, ids)
	if err != nil {
		return nil, g.internalError(ctx, err)
	}
	return rows, nil
}

func (g *Gateway) listJourneys(ctx context.Context, callerID string, args json.RawMessage) (any, *RPCError) {
	var in struct {
		Limit   int    `json:"limit"`
		Offset  int    `json:"offset"`
		Country string `json:"country"`
	}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in); err != nil {
			return nil, &RPCError{Code: codeInvalidParams, Message: "invalid arguments"}
		}
	}

	rows, rpcErr := g.memberJourneys(ctx, callerID)
	if rpcErr != nil {
		return nil, rpcErr
	}

	if in.Country != "" {
		needle := strings.ToLower(in.Country)
		filtered := rows[:0]
		for _, row := range rows {
			if strings.Contains(strings.ToLower(row.Country), needle) {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	limit := pagination.ClampLimit(in.Limit, 20, 100)
	offset := pagination.ClampOffset(in.Offset)
	page, hasMore := pagination.Page(rows, offset, limit)

	summaries := make([]journeySummary, 0, len(page))
	for _, row := range page {
		summaries = append(summaries, summarize(row))
	}
	return map[string]any{
		"journeys": summaries,
		"total":    len(rows),
		"hasMore":  hasMore,
	}, nil
}

// resolveJourneyID accepts either a UUID or a slug.
func (g *Gateway) resolveJourneyID(ctx context.Context, idOrSlug string) (string, *RPCError) {
	if _, err := uuid.Parse(idOrSlug); err == nil {
		return idOrSlug, nil
	}
	id, err := g.repo.ResolveSlug(ctx, idOrSlug)
	if err != nil {
		if coded := errors.As(err); coded != nil && coded.Code() == errors.CodeNotFound {
			return "", &RPCError{Code: codeInvalidParams, Message: "journey not found: " + idOrSlug}
		}
		return "", g.internalError(ctx, err)
	}
	return id, nil
}

// requireMembership re-checks the caller against the store before a tool
// returns journey data. The transport-level auth only proves identity.
func (g *Gateway) requireMembership(ctx context.Context, journeyID, callerID string) *RPCError {
	membership, err := g.repo.GetMembership(ctx, journeyID, callerID)
	if err != nil {
		return &RPCError{Code: codeForbidden, Message: "access denied"}
	}
	if membership == nil {
		return &RPCError{Code: codeForbidden, Message: "access denied"}
	}
	return nil
}

type journeyRefArgs struct {
	JourneyID string `json:"journey_id"`
}

func (g *Gateway) getJourneyDetails(ctx context.Context, callerID string, args json.RawMessage) (any, *RPCError) {
	var in journeyRefArgs
	if err := json.Unmarshal(args, &in); err != nil || in.JourneyID == "" {
		return nil, &RPCError{Code: codeInvalidParams, Message: "journey_id is required"}
	}

	journeyID, rpcErr := g.resolveJourneyID(ctx, in.JourneyID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if rpcErr := g.requireMembership(ctx, journeyID, callerID); rpcErr != nil {
		return nil, rpcErr
	}

	journey, err := g.repo.GetJourney(ctx, journeyID)
	if err != nil {
		return nil, g.internalError(ctx, err)
	}
	waypoints, err := g.repo.Waypoints(ctx, journeyID)
	if err != nil {
		return nil, g.internalError(ctx, err)
	}

	camps := make([]map[string]any, 0, len(waypoints))
	for _, wp := range waypoints {
		camps = append(camps, map[string]any{
			"id":         wp.ID,
			"name":       wp.Name,
			"dayNumber":  wp.DayNumber,
			"elevationM": wp.ElevationM,
			"lat":        wp.Lat,
			"lon":        wp.Lon,
		})
	}

	result := map[string]any{
		"journey": map[string]any{
			"id":          journey.ID,
			"slug":        journey.Slug,
			"name":        journey.Name,
			"country":     journey.Country,
			"description": journey.Description,
			"isPublic":    journey.IsPublic,
			"startDate":   journey.StartDate,
			"endDate":     journey.EndDate,
		},
		"camps": camps,
	}
	if stats, err := DeriveStats(journey.Route, waypoints); err == nil {
		result["stats"] = stats
	}
	return result, nil
}

func (g *Gateway) searchJourneys(ctx context.Context, callerID string, args json.RawMessage) (any, *RPCError) {
	var in struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &in); err != nil || strings.TrimSpace(in.Query) == "" {
		return nil, &RPCError{Code: codeInvalidParams, Message: "query is required"}
	}

	rows, rpcErr := g.memberJourneys(ctx, callerID)
	if rpcErr != nil {
		return nil, rpcErr
	}

	needle := strings.ToLower(strings.TrimSpace(in.Query))
	matches := make([]journeySummary, 0)
	for _, row := range rows {
		haystack := strings.ToLower(row.Name + " " + row.Country + " " + row.Description)
		if strings.Contains(haystack, needle) {
			matches = append(matches, summarize(row))
		}
	}

	limit := pagination.ClampLimit(in.Limit, 20, 50)
	page, _ := pagination.Page(matches, 0, limit)
	return map[string]any{
		"journeys": page,
		"total":    len(matches),
	}, nil
}

func (g *Gateway) getJourneyStats(ctx context.Context, callerID string, args json.RawMessage) (any, *RPCError) {
	var in journeyRefArgs
	if err := json.Unmarshal(args, &in); err != nil || in.JourneyID == "" {
		return nil, &RPCError{Code: codeInvalidParams, Message: "journey_id is required"}
	}

	journeyID, rpcErr := g.resolveJourneyID(ctx, in.JourneyID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if rpcErr := g.requireMembership(ctx, journeyID, callerID); rpcErr != nil {
		return nil, rpcErr
	}

	journey, err := g.repo.GetJourney(ctx, journeyID)
	if err != nil {
		return nil, g.internalError(ctx, err)
	}
	waypoints, err := g.repo.Waypoints(ctx, journeyID)
	if err != nil {
		return nil, g.internalError(ctx, err)
	}

	stats, err := DeriveStats(journey.Route, waypoints)
	if err != nil {
		return nil, &RPCError{Code: codeInternalError, Message: err.Error()}
	}
	return map[string]any{
		"journeyId": journey.ID,
		"name":      journey.Name,
		"stats":     stats,
	}, nil
}

func (g *Gateway) getJourneyPhotos(ctx context.Context, callerID string, args json.RawMessage) (any, *RPCError) {
	var in struct {
		JourneyID  string `json:"journey_id"`
		WaypointID string `json:"waypoint_id"`
		Limit      int    `json:"limit"`
	}
	if err := json.Unmarshal(args, &in); err != nil || in.JourneyID == "" {
		return nil, &RPCError{Code: codeInvalidParams, Message: "journey_id is required"}
	}

	journeyID, rpcErr := g.resolveJourneyID(ctx, in.JourneyID)
	if rpcErr != nil {
		return nil, rpcErr
	}
	if rpcErr := g.requireMembership(ctx, journeyID, callerID); rpcErr != nil {
		return nil, rpcErr
	}

	var waypointID *string
	if in.WaypointID != "" {
		waypointID = &in.WaypointID
	}
	rows, err := g.repo.Photos(ctx, journeyID, waypointID)
	if err != nil {
		return nil, g.internalError(ctx, err)
	}

	limit := pagination.ClampLimit(in.Limit, 50, 200)
	page, hasMore := pagination.Page(rows, 0, limit)
	return map[string]any{
		"photos":  page,
		"total":   len(rows),
		"hasMore": hasMore,
	}, nil
}

// internalError logs the real failure and answers with its message only,
// never a stack.
func (g *Gateway) internalError(ctx context.Context, err error) *RPCError {
	g.logg.Error(ctx, "tool handler failed", err)
	message := "internal error"
	if coded := errors.As(err); coded != nil {
		message = coded.Message()
	}
	return &RPCError{Code: codeInternalError, Message: message}
}
