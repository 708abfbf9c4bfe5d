// Package trigger delivers delayed, signed HTTP callbacks that drive the
// upvote batch job, either through QStash or an in-process timer.
package trigger

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignatureHeader carries the callback signature
const SignatureHeader = "Upstash-Signature"

// Issuer is the iss claim of every callback token
const Issuer = "Upstash"

// ErrInvalidSignature indicates the callback signature failed verification
var ErrInvalidSignature = errors.New("invalid trigger signature")

// Claims are the callback token claims. Body is the unpadded base64url
// SHA-256 digest of the raw request body.
type Claims struct {
	jwt.RegisteredClaims
	Body string `json:"body"`
}

// bodyHash returns base64url(sha256(body)) without padding
func bodyHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// Signer issues callback tokens with a shared signing key
type Signer struct {
	key []byte
	ttl time.Duration
}

// NewSigner creates a signer. Tokens are valid for five minutes.
func NewSigner(key string) *Signer {
	return &Signer{key: []byte(key), ttl: 5 * time.Minute}
}

// Sign returns a token bound to url and body
func (s *Signer) Sign(url string, body []byte) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   url,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Body: bodyHash(body),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign trigger: %w", err)
	}
	return token, nil
}

// Verifier checks callback signatures against the current and next signing
// keys, so keys can be rotated without dropping in-flight callbacks.
type Verifier struct {
	keys [][]byte
}

// NewVerifier creates a verifier. Empty keys are ignored.
func NewVerifier(currentKey, nextKey string) *Verifier {
	v := &Verifier{}
	for _, k := range []string{currentKey, nextKey} {
		if k != "" {
			v.keys = append(v.keys, []byte(k))
		}
	}
	return v
}

// Verify validates signature for body. When url is non-empty the token
// subject must match it.
func (v *Verifier) Verify(signature, url string, body []byte) error {
	if signature == "" {
		return fmt.Errorf("%w: missing %s header", ErrInvalidSignature, SignatureHeader)
	}
	if len(v.keys) == 0 {
		return fmt.Errorf("%w: no signing keys configured", ErrInvalidSignature)
	}

	var lastErr error
	for _, key := range v.keys {
		claims, err := v.verifyWithKey(signature, key)
		if err != nil {
			lastErr = err
			continue
		}
		if url != "" && claims.Subject != url {
			return fmt.Errorf("%w: subject %q does not match %q", ErrInvalidSignature, claims.Subject, url)
		}
		if strings.TrimRight(claims.Body, "=") != bodyHash(body) {
			return fmt.Errorf("%w: body hash mismatch", ErrInvalidSignature)
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInvalidSignature, lastErr)
}

func (v *Verifier) verifyWithKey(signature string, key []byte) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(signature, claims,
		func(*jwt.Token) (interface{}, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithLeeway(time.Second),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
