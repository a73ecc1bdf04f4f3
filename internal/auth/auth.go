// Package auth resolves the caller's identity from an HTTP request.
//
// The identity provider itself is external: this package only verifies the
// token or header it hands us and never stores credentials.
package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"kakeibo/internal/core"
)

// Provider identifies the caller of a request. It returns the zero Identity
// for signed-out callers and never fails.
type Provider interface {
	Identify(r *http.Request) core.Identity
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(r *http.Request) core.Identity

func (f ProviderFunc) Identify(r *http.Request) core.Identity { return f(r) }

// Claims is the JWT payload; the subject is the user id.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTProvider verifies HS256 tokens from the Authorization header or the
// session cookie.
type JWTProvider struct {
	secret []byte
	issuer string
	cookie string
	now    func() time.Time
}

func NewJWTProvider(secret, issuer, cookie string) (*JWTProvider, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth secret must be at least 16 bytes")
	}
	return &JWTProvider{
		secret: []byte(secret),
		issuer: issuer,
		cookie: cookie,
		now:    time.Now,
	}, nil
}

// CookieName is the session cookie the provider reads.
func (p *JWTProvider) CookieName() string { return p.cookie }

// Issue mints a token for userID valid for ttl.
func (p *JWTProvider) Issue(userID string, ttl time.Duration) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("issue token: empty user id")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := p.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse validates a token and returns its claims.
func (p *JWTProvider) Parse(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// Identify implements Provider.
func (p *JWTProvider) Identify(r *http.Request) core.Identity {
	tokenStr := bearerToken(r)
	if tokenStr == "" && p.cookie != "" {
		if c, err := r.Cookie(p.cookie); err == nil {
			tokenStr = c.Value
		}
	}
	if tokenStr == "" {
		return core.Identity{}
	}
	claims, err := p.Parse(tokenStr)
	if err != nil {
		return core.Identity{}
	}
	return core.NewIdentity(claims.Subject)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// HeaderProvider trusts a user id header set by an authenticating reverse
// proxy. Only deploy it behind such a proxy.
type HeaderProvider struct {
	Header string
}

// Identify implements Provider.
func (p HeaderProvider) Identify(r *http.Request) core.Identity {
	return core.NewIdentity(r.Header.Get(p.Header))
}
