package middleware

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims is the validator-independent view of a verified token.
type JWTClaims struct {
	Subject  string
	Issuer   string
	Audience []string
	Email    *string
	Name     *string
	Raw      map[string]interface{}
}

// JWTValidator verifies a bearer token. The Authenticator tries each
// configured validator in order and accepts the first success.
type JWTValidator interface {
	Validate(ctx context.Context, tokenString string) (*JWTClaims, error)
}

// OIDCValidator verifies tokens against an identity provider's signing keys,
// obtained either through OIDC discovery or a fixed JWKS endpoint.
type OIDCValidator struct {
	verifier       *oidc.IDTokenVerifier
	allowedIssuers map[string]bool
}

// NewOIDCValidator discovers the provider's configuration from issuerURL.
func NewOIDCValidator(ctx context.Context, issuerURL, audience string, allowedIssuers []string) (*OIDCValidator, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery for %s: %w", issuerURL, err)
	}
	return &OIDCValidator{
		verifier:       provider.Verifier(&oidc.Config{ClientID: audience}),
		allowedIssuers: issuerSet(allowedIssuers, issuerURL),
	}, nil
}

// NewOIDCValidatorFromJWKS skips discovery and trusts keys from jwksURL
// directly, for providers without a discovery document.
func NewOIDCValidatorFromJWKS(ctx context.Context, jwksURL, issuerURL, audience string, allowedIssuers []string) (*OIDCValidator, error) {
	keySet := oidc.NewRemoteKeySet(ctx, jwksURL)
	return &OIDCValidator{
		verifier:       oidc.NewVerifier(issuerURL, keySet, &oidc.Config{ClientID: audience}),
		allowedIssuers: issuerSet(allowedIssuers, issuerURL),
	}, nil
}

func issuerSet(allowed []string, fallback string) map[string]bool {
	set := make(map[string]bool, len(allowed))
	for _, iss := range allowed {
		set[iss] = true
	}
	if len(set) == 0 && fallback != "" {
		set[fallback] = true
	}
	return set
}

// Validate verifies the signature against the provider's JWKS and checks the
// issuer allowlist.
func (v *OIDCValidator) Validate(ctx context.Context, tokenString string) (*JWTClaims, error) {
	idToken, err := v.verifier.Verify(ctx, tokenString)
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	if len(v.allowedIssuers) > 0 && !v.allowedIssuers[idToken.Issuer] {
		return nil, fmt.Errorf("issuer %q not in allowed list", idToken.Issuer)
	}

	var raw map[string]interface{}
	if err := idToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}

	claims := claimsFromRaw(raw)
	claims.Subject = idToken.Subject
	claims.Issuer = idToken.Issuer
	claims.Audience = idToken.Audience
	return claims, nil
}

// HS256Validator verifies tokens signed with a shared secret. Meant for
// local development and tests; production deployments configure OIDC.
type HS256Validator struct {
	secret []byte
}

func NewHS256Validator(secret string) (*HS256Validator, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret is required")
	}
	return &HS256Validator{secret: []byte(secret)}, nil
}

// Validate verifies the HS256 signature. WithValidMethods pins the
// algorithm so an attacker-supplied "none" or RS256 header is rejected
// before the key function runs.
func (v *HS256Validator) Validate(_ context.Context, tokenString string) (*JWTClaims, error) {
	tok, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if token.Method == nil || token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	raw, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("parse claims: unsupported claim type %T", tok.Claims)
	}

	claims := claimsFromRaw(map[string]interface{}(raw))
	if sub, ok := raw["sub"].(string); ok {
		claims.Subject = sub
	}
	if iss, ok := raw["iss"].(string); ok {
		claims.Issuer = iss
	}
	switch aud := raw["aud"].(type) {
	case string:
		claims.Audience = []string{aud}
	case []interface{}:
		for _, a := range aud {
			if s, ok := a.(string); ok {
				claims.Audience = append(claims.Audience, s)
			}
		}
	}
	return claims, nil
}

func claimsFromRaw(raw map[string]interface{}) *JWTClaims {
	claims := &JWTClaims{Raw: raw}
	if email, ok := raw["email"].(string); ok {
		claims.Email = &email
	}
	if name, ok := raw["name"].(string); ok {
		claims.Name = &name
	}
	return claims
}
