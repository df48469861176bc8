package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims represents JWT claims issued by the auth provider.
type Claims struct {
	Role     string `json:"role"`
	FarmerID string `json:"farmer_id,omitempty"`
	jwt.RegisteredClaims
}

// ParseJWT validates a HS256 token and returns the caller.
func ParseJWT(tokenString string, secret []byte) (Actor, error) {
	if tokenString == "" {
		return Actor{}, errors.New("auth: empty token")
	}
	if len(secret) == 0 {
		return Actor{}, errors.New("auth: empty secret")
	}

	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("auth: invalid signing method")
		}
		return secret, nil
	})
	if err != nil {
		return Actor{}, err
	}
	if !token.Valid {
		return Actor{}, errors.New("auth: invalid token")
	}

	role, ok := NormalizeRole(claims.Role)
	if !ok {
		return Actor{}, errors.New("auth: invalid role")
	}
	if role == RoleFarmer && claims.FarmerID == "" {
		return Actor{}, errors.New("auth: farmer token without farmer_id")
	}

	return Actor{Subject: claims.Subject, Role: role, FarmerID: claims.FarmerID}, nil
}

// IssueJWT signs a token for the actor. Used by tooling and tests; production
// tokens come from the auth provider.
func IssueJWT(actor Actor, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role:     string(actor.Role),
		FarmerID: actor.FarmerID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
