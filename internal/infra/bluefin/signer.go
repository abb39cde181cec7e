package bluefin

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"time"
)

// Signer handles API key authentication signatures
type Signer struct {
	apiKey    string
	apiSecret string
	now       func() time.Time
}

// NewSigner creates a new Signer instance
func NewSigner(apiKey, apiSecret string) *Signer {
	return &Signer{
		apiKey:    apiKey,
		apiSecret: apiSecret,
		now:       time.Now,
	}
}

// Configured reports whether both key and secret are present.
func (s *Signer) Configured() bool {
	return s.apiKey != "" && s.apiSecret != ""
}

// GenerateHeaders creates the necessary headers for a request
// method: GET, POST, etc.
// path: /orders (no host)
// query: symbol=ETH-PERP (empty if none)
// body: json string (empty if none)
func (s *Signer) GenerateHeaders(method, path, query, body string) map[string]string {
	// Unix Timestamp in Milliseconds
	timestamp := strconv.FormatInt(s.now().UnixMilli(), 10)

	// Format: timestamp + method + requestPath + "?" + queryString + body
	fullPath := path
	if query != "" {
		fullPath = path + "?" + query
	}

	payload := timestamp + method + fullPath + body

	return map[string]string{
		"X-API-KEY":       s.apiKey,
		"X-API-SIGNATURE": computeHmacSha256(payload, s.apiSecret),
		"X-API-TIMESTAMP": timestamp,
		"Content-Type":    "application/json",
		"Accept":          "application/json",
	}
}

func computeHmacSha256(message string, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
