package crypto

import "encoding/base64"

// InviteTokenBytes is the entropy of an invite token.
const InviteTokenBytes = 32

// NewToken returns n random bytes encoded as unpadded base64url, safe to embed in URLs.
func NewToken(n int) (string, error) {
	b, err := RandBytes(n)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// TokenPrefix returns the leading part of a token used as a rate-limit subject, so raw
// tokens never reach the limiter table.
func TokenPrefix(tok string) string {
	const n = 8
	if len(tok) <= n {
		return tok
	}
	return tok[:n]
}
