// Package executor provides a client for the sandboxed code-execution gateway.
package executor

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Signature headers sent with every gateway request.
const (
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderRequestID = "X-Request-ID"
)

// MaxClockSkew is how old a signed timestamp may be before Verify rejects it.
const MaxClockSkew = 5 * time.Minute

// Signer creates HMAC signatures for gateway requests.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a new HMAC signer with the given secret.
func NewSigner(secret string) *Signer {
	return &Signer{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// SignatureHeaders represents the headers to include in a signed request.
type SignatureHeaders struct {
	Signature string
	Timestamp string
	RequestID string
}

// Sign creates a signature for the request.
// Signature format: HMAC-SHA256(timestamp|requestID|bodyHash)
func (s *Signer) Sign(requestID string, body []byte) SignatureHeaders {
	timestamp := strconv.FormatInt(s.now().Unix(), 10)
	return SignatureHeaders{
		Signature: s.mac(timestamp, requestID, body),
		Timestamp: timestamp,
		RequestID: requestID,
	}
}

// Verify verifies a signature. Used by the gateway side and by tests.
func (s *Signer) Verify(signature, timestamp, requestID string, body []byte) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	age := s.now().Sub(time.Unix(ts, 0))
	if age > MaxClockSkew || age < -MaxClockSkew {
		return false
	}

	expected := s.mac(timestamp, requestID, body)
	return hmac.Equal([]byte(signature), []byte(expected))
}

func (s *Signer) mac(timestamp, requestID string, body []byte) string {
	bodyHash := sha256.Sum256(body)
	message := timestamp + "|" + requestID + "|" + hex.EncodeToString(bodyHash[:])

	h := hmac.New(sha256.New, s.secret)
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}
