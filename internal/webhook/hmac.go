package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Verify reports whether signature is the HMAC-SHA256 of the Crisp signing
// payload "[" + timestamp + ";" + body + "]" under secret.
//
// An empty secret disables verification and always returns true. A missing
// timestamp or signature is rejected before any HMAC work. The comparison
// is constant-time (crypto/subtle).
func Verify(timestamp string, body []byte, signature, secret string) bool {
	if secret == "" {
		return true
	}
	if timestamp == "" || signature == "" {
		return false
	}

	actualMAC, err := parseSignature(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(signingPayload(timestamp, body))
	return subtle.ConstantTimeCompare(mac.Sum(nil), actualMAC) == 1
}

// Sign returns the hex signature Crisp would send for timestamp and body.
func Sign(timestamp string, body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(signingPayload(timestamp, body))
	return hex.EncodeToString(mac.Sum(nil))
}

// signingPayload builds the exact bytes that are signed. The body is used
// as received; re-encoding it would change the MAC.
func signingPayload(timestamp string, body []byte) []byte {
	p := make([]byte, 0, len(timestamp)+len(body)+3)
	p = append(p, '[')
	p = append(p, timestamp...)
	p = append(p, ';')
	p = append(p, body...)
	return append(p, ']')
}

// parseSignature decodes a hex signature. A "sha256=" prefix is tolerated
// for proxies that rewrite the header in GitHub style.
func parseSignature(signature string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
}
