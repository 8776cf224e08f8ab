// Package identity verifies sign-in assertions issued by external identity providers.
package identity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidAssertion is returned for any ID token that cannot be trusted.
var ErrInvalidAssertion = errors.New("invalid identity assertion")

// Identity is the verified subset of a provider's ID token.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified any    `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// GoogleVerifier validates Google ID tokens against Google's published keys.
type GoogleVerifier struct {
	keys      *KeySet
	clientIDs []string
	issuers   []string
	now       func() time.Time
}

// GoogleOption configures a GoogleVerifier.
type GoogleOption func(*GoogleVerifier)

// WithVerifierClock overrides the time source used for expiry checks.
func WithVerifierClock(now func() time.Time) GoogleOption {
	return func(v *GoogleVerifier) {
		v.now = now
	}
}

// NewGoogleVerifier creates a verifier accepting tokens for any of clientIDs from any of issuers.
func NewGoogleVerifier(keys *KeySet, clientIDs, issuers []string, opts ...GoogleOption) (*GoogleVerifier, error) {
	if keys == nil {
		return nil, errors.New("google verifier requires a key set")
	}
	ids := nonEmpty(clientIDs)
	if len(ids) == 0 {
		return nil, errors.New("google verifier requires at least one client id")
	}
	iss := nonEmpty(issuers)
	if len(iss) == 0 {
		return nil, errors.New("google verifier requires at least one issuer")
	}

	v := &GoogleVerifier{
		keys:      keys,
		clientIDs: ids,
		issuers:   iss,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Verify checks the assertion and returns the identity it vouches for.
func (v *GoogleVerifier) Verify(ctx context.Context, assertion string) (*Identity, error) {
	if strings.TrimSpace(assertion) == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidAssertion)
	}

	claims := &googleClaims{}
	_, err := jwt.ParseWithClaims(assertion, claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid header")
		}
		return v.keys.Key(ctx, kid)
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAssertion, err)
	}

	if !slices.Contains(v.issuers, claims.Issuer) {
		return nil, fmt.Errorf("%w: unexpected issuer %q", ErrInvalidAssertion, claims.Issuer)
	}
	if !slices.ContainsFunc(claims.Audience, func(aud string) bool {
		return slices.Contains(v.clientIDs, aud)
	}) {
		return nil, fmt.Errorf("%w: audience mismatch", ErrInvalidAssertion)
	}
	if claims.Subject == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: missing subject or email", ErrInvalidAssertion)
	}
	if !emailVerified(claims.EmailVerified) {
		return nil, fmt.Errorf("%w: email not verified", ErrInvalidAssertion)
	}

	return &Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}

// Google sends email_verified as a bool, older tokens as the string "true".
// An absent claim is accepted.
func emailVerified(raw any) bool {
	switch val := raw.(type) {
	case nil:
		return true
	case bool:
		return val
	case string:
		return !strings.EqualFold(val, "false")
	default:
		return false
	}
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, s := range values {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
