package tenantctx

import (
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// JWTConfig configures bearer-token validation for human operator sessions.
// HS256 is the dev-mode path; an RS256/JWKS pair validates tokens issued by
// an upstream identity provider in production.
type JWTConfig struct {
	HS256Secret string
	Issuer      string
	JWKSURL     string
	Audience    string
}

type jwksCache struct {
	mu         sync.RWMutex
	keys       map[string]*rsa.PublicKey
	lastFetch  time.Time
	cacheTTL   time.Duration
	jwksURL    string
	httpClient *http.Client
}

type jwksResponse struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kid string `json:"kid"`
	Kty string `json:"kty"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func newJWKSCache(url string) *jwksCache {
	return &jwksCache{
		keys:       make(map[string]*rsa.PublicKey),
		cacheTTL:   1 * time.Hour,
		jwksURL:    url,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *jwksCache) fetch(forceRefresh bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !forceRefresh && time.Since(c.lastFetch) < c.cacheTTL && len(c.keys) > 0 {
		return nil
	}

	resp, err := c.httpClient.Get(c.jwksURL)
	if err != nil {
		return fmt.Errorf("fetch JWKS: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read JWKS response: %w", err)
	}

	var jwks jwksResponse
	if err := json.Unmarshal(body, &jwks); err != nil {
		return fmt.Errorf("parse JWKS: %w", err)
	}

	keys := make(map[string]*rsa.PublicKey)
	for _, key := range jwks.Keys {
		if key.Kty != "RSA" || key.Use != "sig" {
			continue
		}
		nBytes, err := base64.RawURLEncoding.DecodeString(key.N)
		if err != nil {
			continue
		}
		eBytes, err := base64.RawURLEncoding.DecodeString(key.E)
		if err != nil {
			continue
		}
		var eInt int
		for _, b := range eBytes {
			eInt = eInt<<8 | int(b)
		}
		keys[key.Kid] = &rsa.PublicKey{N: new(big.Int).SetBytes(nBytes), E: eInt}
	}

	if len(keys) == 0 {
		return errors.New("no valid RSA signing keys found in JWKS")
	}

	c.keys = keys
	c.lastFetch = time.Now()
	return nil
}

func (c *jwksCache) getKey(kid string) (*rsa.PublicKey, error) {
	c.mu.RLock()
	expired := time.Since(c.lastFetch) >= c.cacheTTL
	c.mu.RUnlock()
	if expired {
		if err := c.fetch(false); err != nil {
			log.Warn().Err(err).Msg("failed to refresh expired JWKS cache, using stale keys")
		}
	}

	c.mu.RLock()
	key, ok := c.keys[kid]
	c.mu.RUnlock()
	if ok {
		return key, nil
	}

	if err := c.fetch(true); err != nil {
		return nil, fmt.Errorf("fetch JWKS for missing key %s: %w", kid, err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if key, ok := c.keys[kid]; ok {
		return key, nil
	}
	return nil, fmt.Errorf("key id %s not found in JWKS", kid)
}

// TokenValidator validates bearer tokens against a JWTConfig, caching JWKS
// keys across calls.
type TokenValidator struct {
	cfg   JWTConfig
	cache *jwksCache
}

// NewTokenValidator builds a validator and, if a JWKS URL is configured,
// pre-fetches its keys.
func NewTokenValidator(cfg JWTConfig) *TokenValidator {
	v := &TokenValidator{cfg: cfg}
	if cfg.JWKSURL != "" {
		v.cache = newJWKSCache(cfg.JWKSURL)
		if err := v.cache.fetch(false); err != nil {
			log.Warn().Err(err).Msg("failed to pre-fetch JWKS, will retry on first request")
		}
	}
	return v
}

// Validate checks signature, issuer, and audience, returning the subject
// claim on success.
func (v *TokenValidator) Validate(tokenString string) (string, error) {
	if tokenString == "" {
		return "", errors.New("token is empty")
	}

	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		switch t.Method.(type) {
		case *jwt.SigningMethodRSA:
			if v.cache == nil {
				return nil, errors.New("RS256 token received but no JWKS configured")
			}
			kid, ok := t.Header["kid"].(string)
			if !ok || kid == "" {
				return nil, errors.New("missing kid in token header")
			}
			return v.cache.getKey(kid)
		case *jwt.SigningMethodHMAC:
			if v.cfg.HS256Secret == "" {
				return nil, errors.New("HS256 secret not configured")
			}
			return []byte(v.cfg.HS256Secret), nil
		default:
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
	})
	if err != nil || !t.Valid {
		return "", fmt.Errorf("jwt validation failed: %w", err)
	}

	if v.cfg.Issuer != "" {
		if iss, _ := claims["iss"].(string); iss != v.cfg.Issuer {
			return "", fmt.Errorf("invalid issuer: expected %s, got %v", v.cfg.Issuer, claims["iss"])
		}
	}
	if v.cfg.Audience != "" {
		if !audienceMatches(claims["aud"], v.cfg.Audience) {
			return "", fmt.Errorf("invalid audience: expected %s, got %v", v.cfg.Audience, claims["aud"])
		}
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing or invalid sub claim")
	}
	return sub, nil
}

func audienceMatches(aud any, expected string) bool {
	switch a := aud.(type) {
	case string:
		return a == expected
	case []interface{}:
		for _, v := range a {
			if s, ok := v.(string); ok && s == expected {
				return true
			}
		}
	}
	return false
}
