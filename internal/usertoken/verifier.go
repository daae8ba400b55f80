package usertoken

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/olash/SignalReach-sub000/pkg/domain"
)

const (
	defaultAudience = "authenticated"
	defaultLeeway   = 30 * time.Second
)

var (
	ErrMissingSecret  = errors.New("token verifier requires a signing secret")
	ErrSubjectMissing = errors.New("token subject missing")
)

// Config configures access-token verification for tokens minted by the
// hosted auth provider with its shared HS256 secret.
type Config struct {
	Secret   string
	Issuer   string
	Audience string
	Leeway   time.Duration
}

// Verifier validates user access tokens and extracts the caller identity.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
}

type accessClaims struct {
	jwt.RegisteredClaims
	Email        string `json:"email"`
	Role         string `json:"role"`
	UserMetadata struct {
		FullName  string `json:"full_name"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
		Picture   string `json:"picture"`
	} `json:"user_metadata"`
}

// NewVerifier creates a token verifier. An empty issuer disables the issuer
// check; an empty audience selects "authenticated".
func NewVerifier(cfg Config) (*Verifier, error) {
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	audience := strings.TrimSpace(cfg.Audience)
	if audience == "" {
		audience = defaultAudience
	}
	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = defaultLeeway
	}
	return &Verifier{
		secret:   []byte(secret),
		issuer:   strings.TrimSpace(cfg.Issuer),
		audience: audience,
		leeway:   leeway,
	}, nil
}

// Verify validates token and returns the identity it asserts.
func (v *Verifier) Verify(token string) (domain.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(v.audience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	claims := accessClaims{}
	parsed, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return domain.Identity{}, err
	}
	if !parsed.Valid {
		return domain.Identity{}, errors.New("invalid token")
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return domain.Identity{}, ErrSubjectMissing
	}
	name := strings.TrimSpace(claims.UserMetadata.FullName)
	if name == "" {
		name = strings.TrimSpace(claims.UserMetadata.Name)
	}
	avatar := strings.TrimSpace(claims.UserMetadata.AvatarURL)
	if avatar == "" {
		avatar = strings.TrimSpace(claims.UserMetadata.Picture)
	}
	return domain.Identity{
		ID:          subject,
		Email:       strings.TrimSpace(claims.Email),
		DisplayName: name,
		AvatarURL:   avatar,
	}, nil
}
