// Package auth signs and checks the nonce carried on webhook callback URLs.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const nonceAudience = "sellapp-webhook_handler"

// ErrInvalidNonce is returned for any nonce that does not check out.
var ErrInvalidNonce = errors.New("invalid nonce")

// NonceSigner issues HS256 tokens bound to a single order id.
type NonceSigner struct {
	secret  []byte
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewNonceSigner returns a signer, or nil when secret is empty.
func NewNonceSigner(secret string, ttl time.Duration) *NonceSigner {
	if secret == "" {
		return nil
	}
	return &NonceSigner{secret: []byte(secret), ttl: ttl, nowFunc: time.Now}
}

// Issue returns a nonce for orderID.
func (s *NonceSigner) Issue(orderID int64) (string, error) {
	now := s.nowFunc()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(orderID, 10),
		Audience:  jwt.ClaimStrings{nonceAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign nonce: %w", err)
	}
	return tok, nil
}

// Verify checks token's signature, expiry and that it was issued for orderID.
func (s *NonceSigner) Verify(token string, orderID int64) error {
	if s == nil {
		return ErrInvalidNonce
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithAudience(nonceAudience),
		jwt.WithTimeFunc(s.nowFunc),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidNonce, err)
	}
	if claims.Subject != strconv.FormatInt(orderID, 10) {
		return fmt.Errorf("%w: issued for order %s", ErrInvalidNonce, claims.Subject)
	}
	return nil
}
