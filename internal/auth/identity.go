package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidIdentityToken = errors.New("invalid_identity_token")

// Identity is who the identity provider says the caller is.
type Identity struct {
	Subject  string
	Email    string
	FullName string
}

type IdentityVerifier interface {
	VerifyAccessToken(ctx context.Context, accessToken string) (*Identity, error)
}

// TokenVerifier checks identity-provider access tokens. RS256 tokens are
// verified against a PEM key or a JWKS endpoint; HS256 tokens against a
// shared secret. Only methods with configured key material are accepted.
type TokenVerifier struct {
	issuer          string
	audience        string
	verificationKey string
	sharedSecret    string
	jwksURL         string
	httpClient      *http.Client

	mu        sync.Mutex
	keys      map[string]*rsa.PublicKey
	fetchedAt time.Time
	cacheTTL  time.Duration
}

type idpClaims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
	Name         string         `json:"name"`
	jwt.RegisteredClaims
}

type jwks struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func NewTokenVerifier(issuer, audience, verificationKey, sharedSecret, jwksURL string) *TokenVerifier {
	return &TokenVerifier{
		issuer:          issuer,
		audience:        audience,
		verificationKey: verificationKey,
		sharedSecret:    sharedSecret,
		jwksURL:         jwksURL,
		httpClient:      &http.Client{Timeout: 5 * time.Second},
		cacheTTL:        10 * time.Minute,
	}
}

func (v *TokenVerifier) VerifyAccessToken(ctx context.Context, accessToken string) (*Identity, error) {
	if strings.TrimSpace(accessToken) == "" {
		return nil, ErrInvalidIdentityToken
	}

	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if strings.TrimSpace(v.issuer) != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if strings.TrimSpace(v.audience) != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &idpClaims{}
	token, err := jwt.ParseWithClaims(accessToken, claims, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA:
			if strings.TrimSpace(v.verificationKey) != "" {
				return jwt.ParseRSAPublicKeyFromPEM([]byte(v.verificationKey))
			}
			if strings.TrimSpace(v.jwksURL) == "" {
				return nil, errors.New("no rsa verification key configured")
			}
			return v.keyFromJWKS(ctx, token)
		case *jwt.SigningMethodHMAC:
			if strings.TrimSpace(v.sharedSecret) == "" {
				return nil, errors.New("no shared secret configured")
			}
			return []byte(v.sharedSecret), nil
		default:
			return nil, errors.New("unexpected signing method")
		}
	}, opts...)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIdentityToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidIdentityToken)
	}

	return &Identity{
		Subject:  claims.Subject,
		Email:    strings.ToLower(strings.TrimSpace(claims.Email)),
		FullName: fullName(claims),
	}, nil
}

func fullName(c *idpClaims) string {
	if c.Name != "" {
		return c.Name
	}
	for _, k := range []string{"full_name", "name"} {
		if s, ok := c.UserMetadata[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func (v *TokenVerifier) keyFromJWKS(ctx context.Context, token *jwt.Token) (*rsa.PublicKey, error) {
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, errors.New("missing kid")
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if key, ok := v.keys[kid]; ok && time.Since(v.fetchedAt) < v.cacheTTL {
		return key, nil
	}
	keys, err := v.fetchJWKS(ctx)
	if err != nil {
		return nil, err
	}
	v.keys, v.fetchedAt = keys, time.Now()
	if key, ok := keys[kid]; ok {
		return key, nil
	}
	return nil, errors.New("signing key not found")
}

func (v *TokenVerifier) fetchJWKS(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("jwks fetch failed: %d", resp.StatusCode)
	}

	var set jwks
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return nil, err
	}

	out := map[string]*rsa.PublicKey{}
	for _, key := range set.Keys {
		if key.Kty != "RSA" || key.Kid == "" {
			continue
		}
		pub, err := buildRSAPublicKey(key.N, key.E)
		if err != nil {
			continue
		}
		out[key.Kid] = pub
	}
	return out, nil
}

func buildRSAPublicKey(nB64, eB64 string) (*rsa.PublicKey, error) {
	nBytes, err := base64.RawURLEncoding.DecodeString(nB64)
	if err != nil {
		return nil, err
	}
	eBytes, err := base64.RawURLEncoding.DecodeString(eB64)
	if err != nil {
		return nil, err
	}

	n := new(big.Int).SetBytes(nBytes)
	e := 0
	for _, b := range eBytes {
		e = e<<8 + int(b)
	}
	if e == 0 {
		return nil, errors.New("invalid exponent")
	}

	return &rsa.PublicKey{N: n, E: e}, nil
}
