package gateway

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
)

// Sign computes the hex HMAC-SHA512 of payload under secret. The gateway
// signs every callback body this way.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches payload. Comparison is
// constant time.
func VerifySignature(secret string, payload []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, payload)), []byte(signature))
}
