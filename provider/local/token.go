package local

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	session "github.com/birbieup/go-session"
)

// Claims is the token payload minted for a principal. Consumers of the
// session core treat the signed string as opaque; the backend validates it.
type Claims struct {
	jwt.RegisteredClaims
	DisplayName string `json:"name,omitempty"`
	Anonymous   bool   `json:"anon,omitempty"`
}

type tokenMinter struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
}

func (m tokenMinter) mint(principal session.Principal) (string, error) {
	now := time.Now()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   principal.ID(),
			Audience:  m.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        newTokenID(),
		},
		DisplayName: principal.DisplayName(),
		Anonymous:   principal.Anonymous(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(m.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return signed, nil
}

// parse validates a minted token and returns its claims. Used by tests and
// by hosts that run the backend in-process.
func (m tokenMinter) parse(raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.signingKey, nil
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, goerrors.New("unable to decode token claims", goerrors.CategoryAuth)
	}

	return claims, nil
}

func newTokenID() string {
	return uuid.NewString()
}
