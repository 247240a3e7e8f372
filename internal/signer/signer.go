// Package signer produces and checks the short-lived HMAC credential that
// proves a request passed through the edge forwarder.
//
// The credential is a pair of headers: X-Edge-Ts carries the Unix time in
// seconds as a decimal string, and X-Edge-Sig carries
// base64url(HMAC-SHA256(secret, X-Edge-Ts)) without padding.
package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"time"
)

const (
	// HeaderTimestamp carries the signing time in Unix seconds.
	HeaderTimestamp = "X-Edge-Ts"
	// HeaderSignature carries the unpadded base64url HMAC of the timestamp.
	HeaderSignature = "X-Edge-Sig"
)

var (
	// ErrMissingSignature is returned when either credential header is absent.
	ErrMissingSignature = errors.New("signer: missing timestamp or signature")
	// ErrStaleTimestamp is returned when the timestamp is outside the allowed skew.
	ErrStaleTimestamp = errors.New("signer: timestamp outside allowed skew")
	// ErrBadSignature is returned when the signature does not match the timestamp.
	ErrBadSignature = errors.New("signer: signature mismatch")
)

// Signature is one timestamp and its derived signature.
type Signature struct {
	Timestamp string
	Value     string
}

// Signer computes edge signatures with a shared secret. The zero secret
// disables signing. A Signer is safe for concurrent use.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// Option configures a Signer.
type Option func(*Signer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// New creates a Signer for secret. An empty secret yields a disabled Signer.
func New(secret string, opts ...Option) *Signer {
	s := &Signer{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether a shared secret is configured.
func (s *Signer) Enabled() bool {
	return len(s.secret) > 0
}

// Sign returns the signature for the current time.
func (s *Signer) Sign() Signature {
	ts := strconv.FormatInt(s.now().Unix(), 10)
	return Signature{Timestamp: ts, Value: s.compute(ts)}
}

// Apply sets the credential headers on h and reports whether it did. It does
// nothing when signing is disabled.
func (s *Signer) Apply(h http.Header) bool {
	if !s.Enabled() {
		return false
	}
	sig := s.Sign()
	h.Set(HeaderTimestamp, sig.Timestamp)
	h.Set(HeaderSignature, sig.Value)
	return true
}

// Verify checks a timestamp/signature pair the way a backend would. maxSkew
// bounds how far the timestamp may be from the signer's clock in either direction.
func (s *Signer) Verify(ts, sig string, maxSkew time.Duration) error {
	if ts == "" || sig == "" {
		return ErrMissingSignature
	}
	sec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return ErrBadSignature
	}
	skew := s.now().Sub(time.Unix(sec, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > maxSkew {
		return ErrStaleTimestamp
	}
	if !hmac.Equal([]byte(sig), []byte(s.compute(ts))) {
		return ErrBadSignature
	}
	return nil
}

func (s *Signer) compute(ts string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(ts))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
