package model

import (
	"bytes"
	"encoding/json"
)

// ContentTypeJSON is the Content-Type of every response the forwarder writes.
const ContentTypeJSON = "application/json; charset=utf-8"

// Fixed envelope messages.
const (
	MessageMethodNotAllowed    = "Method not allowed"
	MessagePayloadTooLarge     = "Payload too large"
	MessageUpstreamUnavailable = "Upstream unavailable"
	MessageUnexpectedResponse  = "Upstream returned an unexpected response"
	MessageBadRequest          = "Unable to read request body"
	MessageTooManyRequests     = "Too many requests"
	MessageInternalError       = "Internal server error"

	// CodeBackendResponse tags envelopes built around a malformed backend reply.
	CodeBackendResponse = "backend_response"

	// PreviewLimit bounds the raw backend bytes echoed in an UnexpectedResponse.
	PreviewLimit = 512
)

// ErrorEnvelope is the body of every locally rejected request.
type ErrorEnvelope struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
}

// UnavailableEnvelope reports a backend call that could not complete.
type UnavailableEnvelope struct {
	Valid   bool   `json:"valid"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// UnexpectedResponseEnvelope wraps a backend reply that is not shaped like JSON.
type UnexpectedResponseEnvelope struct {
	Valid          bool   `json:"valid"`
	Code           string `json:"code"`
	Message        string `json:"message"`
	UpstreamStatus int    `json:"upstreamStatus"`
	Body           string `json:"body"`
}

// NewErrorEnvelope returns a valid=false envelope with message.
func NewErrorEnvelope(message string) ErrorEnvelope {
	return ErrorEnvelope{Message: message}
}

// NewUnavailableEnvelope returns the envelope for a failed backend call.
func NewUnavailableEnvelope(detail string) UnavailableEnvelope {
	return UnavailableEnvelope{Message: MessageUpstreamUnavailable, Detail: detail}
}

// NewUnexpectedResponseEnvelope wraps status and the first PreviewLimit bytes of body.
// Truncation is byte-exact and may split a multi-byte character.
func NewUnexpectedResponseEnvelope(status int, body []byte) UnexpectedResponseEnvelope {
	if len(body) > PreviewLimit {
		body = body[:PreviewLimit]
	}
	return UnexpectedResponseEnvelope{
		Code:           CodeBackendResponse,
		Message:        MessageUnexpectedResponse,
		UpstreamStatus: status,
		Body:           string(body),
	}
}

// Encode renders v as compact JSON without HTML escaping and without a
// trailing newline, so the bytes on the wire are exactly the envelope.
func Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
