package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/sis-api/internal/models"
	appErrors "github.com/noah-isme/sis-api/pkg/errors"
)

type profileRepository interface {
	FindByID(ctx context.Context, id string) (*models.Profile, error)
}

// AuthConfig defines how access tokens issued by the identity provider are verified.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	Audience  []string
}

// AccessClaims is the payload of an identity provider access token.
type AccessClaims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// AuthService resolves bearer tokens into caller identities. It never issues tokens.
type AuthService struct {
	profiles profileRepository
	logger   *zap.Logger
	config   AuthConfig
}

// NewAuthService constructs an AuthService instance. profiles must read through the
// service pool since the caller is not known yet.
func NewAuthService(profiles profileRepository, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{profiles: profiles, logger: logger, config: config}
}

// Authenticate verifies the token and loads the caller's profile.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing bearer token")
	}

	claims, err := s.ValidateToken(token)
	if err != nil {
		return nil, err
	}

	profile, err := s.profiles.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "profile not found")
		}
		return nil, appErrors.Internal(err, "failed to load profile")
	}

	role, err := models.ParseRole(profile.Role)
	if err != nil {
		s.logger.Warn("rejecting profile with unknown role", zap.String("user_id", profile.ID), zap.String("role", profile.Role))
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "unknown profile role")
	}

	email := profile.Email
	if email == "" {
		email = claims.Email
	}
	return &models.Identity{
		UserID:         profile.ID,
		OrganizationID: profile.OrganizationID,
		SchoolID:       profile.SchoolID,
		Role:           role,
		Email:          email,
		FullName:       profile.FullName,
	}, nil
}

// ValidateToken checks signature, expiry, issuer and audience of an access token.
func (s *AuthService) ValidateToken(tokenString string) (*AccessClaims, error) {
	if s.config.JWTSecret == "" {
		return nil, appErrors.Clone(appErrors.ErrInternal, "token verification is not configured")
	}
	options := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if s.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(s.config.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.config.JWTSecret), nil
	}, options...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if !audienceAllowed(claims.Audience, s.config.Audience) {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token audience")
	}
	return claims, nil
}

func audienceAllowed(got jwt.ClaimStrings, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, aud := range got {
		for _, want := range allowed {
			if aud == want {
				return true
			}
		}
	}
	return false
}
