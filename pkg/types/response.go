// Package types holds the JSON envelope shapes shared by the HTTP surface.
// Payloads whose wire format belongs to an external contract (JSON-RPC, the
// media upload and delete responses) are written verbatim and do not use these.
package types

// SuccessEnvelope wraps enveloped success payloads, currently the health
// endpoints.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error body. Details is populated only for
// codes where surfacing specifics is safe, such as validation failures and
// readiness check breakdowns.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
