// Package webhook signs and verifies invocation requests delivered over HTTP.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Header names carrying the request signature
const (
	HeaderTimestamp = "X-Timestamp"
	HeaderNonce     = "X-Nonce"
	HeaderSignature = "X-Signature"
)

// DefaultMaxSkew bounds how far a request timestamp may drift from the local clock
const DefaultMaxSkew = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("request signature missing")
	ErrBadSignature     = errors.New("request signature mismatch")
	ErrStaleTimestamp   = errors.New("request timestamp outside allowed window")
)

// Verifier handles request signature verification
type Verifier struct {
	signingKey []byte
	maxSkew    time.Duration
	now        func() time.Time
}

// NewVerifier creates a verifier. An empty key disables verification.
func NewVerifier(signingKey string, maxSkew time.Duration) *Verifier {
	if maxSkew <= 0 {
		maxSkew = DefaultMaxSkew
	}
	return &Verifier{
		signingKey: []byte(signingKey),
		maxSkew:    maxSkew,
		now:        time.Now,
	}
}

// Enabled reports whether a signing key is configured
func (v *Verifier) Enabled() bool {
	return len(v.signingKey) > 0
}

// Sign returns the hex HMAC-SHA256 of timestamp, nonce and body
func (v *Verifier) Sign(timestamp, nonce string, body []byte) string {
	mac := hmac.New(sha256.New, v.signingKey)
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(nonce))
	mac.Write([]byte{'\n'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the signature and the timestamp window. Timestamps
// are unix seconds.
func (v *Verifier) VerifySignature(timestamp, nonce, signature string, body []byte) error {
	if !v.Enabled() {
		return nil
	}
	if timestamp == "" || signature == "" {
		return ErrMissingSignature
	}

	secs, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %q is not unix seconds", ErrStaleTimestamp, timestamp)
	}
	skew := v.now().Sub(time.Unix(secs, 0))
	if skew < -v.maxSkew || skew > v.maxSkew {
		return fmt.Errorf("%w: skew %s", ErrStaleTimestamp, skew.Round(time.Second))
	}

	expected, err := hex.DecodeString(v.Sign(timestamp, nonce, body))
	if err != nil {
		return err
	}
	got, err := hex.DecodeString(signature)
	if err != nil || !hmac.Equal(expected, got) {
		return ErrBadSignature
	}
	return nil
}
