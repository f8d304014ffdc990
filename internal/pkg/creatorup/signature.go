package creatorup

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// SignPayload computes the hex-encoded HMAC-SHA256 of the canonical JSON
// serialization of v. This is the sole authentication mechanism for
// partner-to-local webhook calls.
func SignPayload(v interface{}, secret string) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return SignRaw(payload, secret), nil
}

// SignRaw computes the hex-encoded HMAC-SHA256 over an already serialized body.
func SignRaw(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks an inbound webhook signature in constant time.
// An empty signature or secret never verifies.
func VerifySignature(payload []byte, signatureHeader, secret string) bool {
	sig := strings.TrimSpace(signatureHeader)
	if sig == "" || secret == "" {
		return false
	}

	decoded, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decoded)
}
