// Package token signs and verifies the license, access and refresh
// tokens issued by the registry. A token is self-contained: verifying
// one needs the shared secret and nothing else.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Token type discriminators. Verification rejects a token whose typ
// claim does not match the expected constant, so a token signed with
// the same secret for another purpose never authorizes anything here.
const (
	TypeLicense = "license"
	TypeAccess  = "access"
	TypeRefresh = "refresh"
	TypeAdmin   = "admin"
)

// Verification failures. These are expected, frequent outcomes and are
// returned as values, never panics.
var (
	ErrBadSignature = errors.New("token signature invalid")
	ErrWrongType    = errors.New("token type mismatch")
	ErrExpired      = errors.New("token expired")
	ErrMalformed    = errors.New("token malformed")
)

// Claims is the decoded payload of a signed token.
type Claims struct {
	Plan    string   `json:"plan,omitempty"`
	Modules []string `json:"modules,omitempty"`
	Type    string   `json:"typ"`
	jwt.RegisteredClaims
}

// ClientID returns the subject the token was issued to.
func (c *Claims) ClientID() string { return c.Subject }

// Codec signs and verifies tokens with an HS256 symmetric secret held
// by the process. The secret is never embedded in a token.
type Codec struct {
	secret []byte
	issuer string
}

func NewCodec(secret, issuer string) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("signing secret must not be empty")
	}
	return &Codec{secret: []byte(secret), issuer: issuer}, nil
}

// Encode issues a license token valid for the given duration string
// (e.g. "14d"). It returns the signed token and the expiry it embeds so
// the caller can store both from the same computation.
func (c *Codec) Encode(clientID, plan string, modules []string, duration string) (string, time.Time, error) {
	d, err := ParseDuration(duration)
	if err != nil {
		return "", time.Time{}, err
	}
	expiresAt := time.Now().Add(d)
	signed, err := c.EncodeUntil(clientID, plan, modules, expiresAt)
	return signed, expiresAt, err
}

// EncodeUntil issues a license token with an explicit expiry. The
// registry uses it when re-issuing after an extension, where the expiry
// is already decided.
func (c *Codec) EncodeUntil(clientID, plan string, modules []string, expiresAt time.Time) (string, error) {
	now := time.Now()
	claims := &Claims{
		Plan:    plan,
		Modules: modules,
		Type:    TypeLicense,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   clientID,
			Audience:  jwt.ClaimStrings{clientID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	return c.sign(claims)
}

// EncodeAccess issues a short-lived access token carrying the same
// entitlement facts as a license token.
func (c *Codec) EncodeAccess(clientID, plan string, modules []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Plan:    plan,
		Modules: modules,
		Type:    TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   clientID,
			Audience:  jwt.ClaimStrings{clientID},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return c.sign(claims)
}

// EncodeRefresh issues a long-lived refresh token identified by jti.
func (c *Codec) EncodeRefresh(clientID, jti string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Type: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   clientID,
			Audience:  jwt.ClaimStrings{clientID},
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return c.sign(claims)
}

// EncodeAdmin issues a console session token for an admin user id.
func (c *Codec) EncodeAdmin(userID uint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Type: TypeAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   fmt.Sprintf("%d", userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return c.sign(claims)
}

func (c *Codec) sign(claims *Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and the typ discriminator, in that
// severity order: an expired token reports ErrExpired even when other
// problems coexist. On success the decoded claims are returned.
func (c *Codec) Verify(tokenString, wantType string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrBadSignature
		default:
			return nil, ErrBadSignature
		}
	}
	if !parsed.Valid {
		return nil, ErrBadSignature
	}
	if claims.Type != wantType {
		return nil, ErrWrongType
	}
	return claims, nil
}

// DecodeUnsafe decodes a token without verifying its signature. It
// exists for diagnostics (inspecting what a client presented) and must
// never feed an authorization decision; use Verify for that.
func DecodeUnsafe(tokenString string) *Claims {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil
	}
	return claims
}
