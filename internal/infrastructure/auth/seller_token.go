// Package auth issues and verifies seller session tokens.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ledgerly/invoicing/internal/infrastructure/config"
)

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingSellerID  = errors.New("missing seller_id in claims")
)

// Claims are the custom claims of a seller session token
type Claims struct {
	jwt.RegisteredClaims
	SellerID string `json:"seller_id"`
	Actor    string `json:"actor,omitempty"`
}

// SellerUUID parses the seller id of the claims
func (c *Claims) SellerUUID() (uuid.UUID, error) {
	return uuid.Parse(c.SellerID)
}

// IssuedToken is a signed token and its expiry
type IssuedToken struct {
	Token     string    `json:"token"`
	TokenType string    `json:"token_type"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenService signs HS256 session tokens naming the acting seller
type TokenService struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a new TokenService
func NewTokenService(cfg config.AuthConfig) *TokenService {
	return &TokenService{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.Issuer,
		ttl:    cfg.TokenTTL,
		now:    time.Now,
	}
}

// Issue signs a token for sellerID. actor is recorded on audit events.
func (s *TokenService) Issue(sellerID uuid.UUID, actor string) (*IssuedToken, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   sellerID.String(),
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		SellerID: sellerID.String(),
		Actor:    actor,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, err
	}
	return &IssuedToken{Token: token, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

// Verify validates a token and returns its claims
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.SellerID == "" {
		return nil, ErrMissingSellerID
	}
	return claims, nil
}

// SellerFromToken verifies a token and returns the seller and actor it names
func (s *TokenService) SellerFromToken(tokenString string) (uuid.UUID, string, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return uuid.Nil, "", err
	}
	sellerID, err := claims.SellerUUID()
	if err != nil || sellerID == uuid.Nil {
		return uuid.Nil, "", ErrMissingSellerID
	}
	return sellerID, claims.Actor, nil
}
