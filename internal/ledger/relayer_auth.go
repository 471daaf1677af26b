package ledger

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/form3tech-oss/jwt-go"

	"unostake/internal/ports"
)

const tokenTTL = time.Minute

// tokenSigner issues the bearer tokens the relayer authenticates requests with.
type tokenSigner struct {
	secret string
	issuer string
	now    func() time.Time
}

func newTokenSigner(secret, issuer string) *tokenSigner {
	return &tokenSigner{secret: secret, issuer: issuer, now: time.Now}
}

// Sign returns a token for one request. subject is the account the relayer
// should sign for; an empty subject means the server's own account.
func (s *tokenSigner) Sign(subject ports.Address, action string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("token signer is nil")
	}
	if s.secret == "" || s.issuer == "" {
		return "", fmt.Errorf("relayer credentials are incomplete")
	}

	now := s.now()
	claims := jwt.MapClaims{
		"iss": s.issuer,
		"iat": now.Unix(),
		"exp": now.Add(tokenTTL).Unix(),
		"act": action,
		"jti": fmt.Sprintf("%d-%d", now.UnixNano(), rand.Int63()),
	}
	if subject != "" {
		claims["sub"] = string(subject)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}
