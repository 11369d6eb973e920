package waitlist

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
)

const tokenBytes = 32

// Token is the opaque confirmation secret mailed to a registrant.
type Token string

func NewToken() (Token, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return Token(hex.EncodeToString(b)), nil
}

// ParseToken accepts only lowercase hex of the generated length.
func ParseToken(raw string) (Token, bool) {
	if len(raw) != tokenBytes*2 {
		return "", false
	}
	for _, c := range raw {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return "", false
		}
	}
	return Token(raw), true
}

func (t Token) String() string {
	return string(t)
}

// LogValue keeps the secret out of logs, leaving a short prefix for correlation.
func (t Token) LogValue() slog.Value {
	if len(t) < 8 {
		return slog.StringValue("[redacted]")
	}
	return slog.StringValue(string(t[:6]) + "...[redacted]")
}
