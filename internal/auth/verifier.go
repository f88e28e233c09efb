package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/millworks/backoffice/internal/config"
)

var (
	// ErrInvalidToken covers malformed tokens, bad signatures and wrong issuer or audience.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrTokenExpired is returned alongside the claims of a correctly signed token
	// whose only defect is its expiry, so the caller can still attempt a refresh.
	ErrTokenExpired = errors.New("session token expired")
)

// Verifier checks an identity token and returns the identity it carries.
type Verifier interface {
	Verify(raw string) (*AuthContext, error)
}

// TokenVerifier verifies identity provider tokens. Claims are only read after the
// signature, issuer and audience have been checked.
type TokenVerifier struct {
	key       any
	methods   []string
	parser    *jwt.Parser
	roleClaim string
}

type VerifierOptions struct {
	Issuer    string
	Audience  string
	RoleClaim string
}

func (o VerifierOptions) parser(methods []string) *jwt.Parser {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if o.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(o.Issuer))
	}
	if o.Audience != "" {
		opts = append(opts, jwt.WithAudience(o.Audience))
	}
	return jwt.NewParser(opts...)
}

// NewHMACVerifier verifies HS256/384/512 tokens signed with secret.
func NewHMACVerifier(secret []byte, opts VerifierOptions) *TokenVerifier {
	methods := []string{"HS256", "HS384", "HS512"}
	return &TokenVerifier{key: secret, methods: methods, parser: opts.parser(methods), roleClaim: roleClaimOrDefault(opts.RoleClaim)}
}

// NewRSAVerifier verifies RS256/384/512 tokens against a PEM encoded public key.
func NewRSAVerifier(publicKeyPEM []byte, opts VerifierOptions) (*TokenVerifier, error) {
	key, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
	}
	methods := []string{"RS256", "RS384", "RS512"}
	return &TokenVerifier{key: key, methods: methods, parser: opts.parser(methods), roleClaim: roleClaimOrDefault(opts.RoleClaim)}, nil
}

// NewVerifierFromConfig picks the RSA verifier when a public key path is configured
// and the HMAC verifier otherwise.
func NewVerifierFromConfig(cfg config.SessionConfig) (*TokenVerifier, error) {
	opts := VerifierOptions{Issuer: cfg.Issuer, Audience: cfg.Audience, RoleClaim: cfg.RoleClaim}
	if cfg.PublicKeyPath != "" {
		pem, err := os.ReadFile(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read session public key: %w", err)
		}
		return NewRSAVerifier(pem, opts)
	}
	if cfg.SigningKey == "" {
		return nil, fmt.Errorf("session signing key is not configured")
	}
	return NewHMACVerifier([]byte(cfg.SigningKey), opts), nil
}

func roleClaimOrDefault(claim string) string {
	if claim == "" {
		return "role"
	}
	return claim
}

// Verify validates raw and extracts its identity. A token that is valid except for
// being expired returns its identity together with ErrTokenExpired.
func (v *TokenVerifier) Verify(raw string) (*AuthContext, error) {
	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})

	expired := false
	if err != nil {
		if !expiredOnly(err) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		expired = true
	}

	authCtx, err := v.identity(claims)
	if err != nil {
		return nil, err
	}
	if expired {
		return authCtx, ErrTokenExpired
	}
	return authCtx, nil
}

// expiredOnly reports whether err is a claims error caused by expiry alone. The
// signature has already been verified by the time claims are validated.
func expiredOnly(err error) bool {
	if !errors.Is(err, jwt.ErrTokenExpired) {
		return false
	}
	for _, other := range []error{
		jwt.ErrTokenSignatureInvalid,
		jwt.ErrTokenMalformed,
		jwt.ErrTokenUnverifiable,
		jwt.ErrTokenInvalidIssuer,
		jwt.ErrTokenInvalidAudience,
		jwt.ErrTokenNotValidYet,
		jwt.ErrTokenUsedBeforeIssued,
		jwt.ErrTokenRequiredClaimMissing,
	} {
		if errors.Is(err, other) {
			return false
		}
	}
	return true
}

func (v *TokenVerifier) identity(claims jwt.MapClaims) (*AuthContext, error) {
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: missing exp", ErrInvalidToken)
	}
	sub, _ := claims.GetSubject()
	email, _ := claims["email"].(string)

	return &AuthContext{
		Subject:   sub,
		Email:     email,
		Role:      roleFrom(claims[v.roleClaim]),
		ExpiresAt: exp.Time.UTC(),
	}, nil
}

// roleFrom accepts a single role string or a group list, taking the first entry.
func roleFrom(v any) string {
	switch role := v.(type) {
	case string:
		return role
	case []any:
		if len(role) > 0 {
			if s, ok := role[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

// ExpiresWithin reports whether the identity expires within d of now.
func (a *AuthContext) ExpiresWithin(now time.Time, d time.Duration) bool {
	return a.ExpiresAt.Sub(now) <= d
}
