package apiclient

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures the JWTBearer contributor.
type JWTConfig struct {
	Key      any               // signing key; []byte for HMAC methods
	Method   jwt.SigningMethod // default: HS256
	Issuer   string
	Subject  string
	Audience []string
	TTL      time.Duration // default: 5m
	Header   string        // default: "Authorization"
	// Claims adds per-invocation claims.
	Claims func(inv *Invocation) jwt.MapClaims
	Now    func() time.Time
}

// JWTBearer returns a contributor that signs a short-lived token for every
// request and sends it as a bearer credential.
func JWTBearer(cfg JWTConfig) Contributor {
	if cfg.Method == nil {
		cfg.Method = jwt.SigningMethodHS256
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Header == "" {
		cfg.Header = "Authorization"
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return ContributorFunc(func(_ *Client, inv *Invocation) ([]Contributor, error) {
		if cfg.Key == nil {
			return nil, errors.New("jwt: no signing key")
		}
		now := cfg.Now()
		claims := jwt.MapClaims{
			"iat": now.Unix(),
			"exp": now.Add(cfg.TTL).Unix(),
		}
		if cfg.Issuer != "" {
			claims["iss"] = cfg.Issuer
		}
		if cfg.Subject != "" {
			claims["sub"] = cfg.Subject
		}
		if len(cfg.Audience) > 0 {
			claims["aud"] = cfg.Audience
		}
		if cfg.Claims != nil {
			for k, v := range cfg.Claims(inv) {
				claims[k] = v
			}
		}

		signed, err := jwt.NewWithClaims(cfg.Method, claims).SignedString(cfg.Key)
		if err != nil {
			return nil, fmt.Errorf("jwt: sign: %w", err)
		}
		return []Contributor{Header(cfg.Header, "Bearer "+signed)}, nil
	})
}
