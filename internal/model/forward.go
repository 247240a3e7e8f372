// Package model defines the transient values that flow through one forwarding cycle.
package model

// ForwardRequest is the inbound request reduced to what the backend receives.
type ForwardRequest struct {
	AcceptLanguage string
	UserAgent      string
	Body           []byte
}

// BackendResponse is the backend's reply, fully read.
type BackendResponse struct {
	StatusCode int
	Body       []byte
}

// Outcome classifies how a forwarding cycle ended.
type Outcome string

const (
	OutcomePreflight           Outcome = "preflight"
	OutcomeMethodNotAllowed    Outcome = "method_not_allowed"
	OutcomePayloadTooLarge     Outcome = "payload_too_large"
	OutcomeUpstreamUnavailable Outcome = "upstream_unavailable"
	OutcomeUnexpectedResponse  Outcome = "unexpected_response"
	OutcomePassThrough         Outcome = "pass_through"
)
