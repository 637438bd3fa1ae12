package services

import (
	"context"
	"errors"
	"time"

	"workchat/internal/domain/user"
	"workchat/internal/repository"
	apperrors "workchat/pkg/errors"
	"workchat/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AuthService validates access tokens minted by the account service.
// It never issues tokens to end users; SignAccessToken exists for tooling and tests.
type AuthService struct {
	users     repository.UserRepository
	jwtSecret []byte
}

func NewAuthService(users repository.UserRepository, jwtSecret string) *AuthService {
	return &AuthService{
		users:     users,
		jwtSecret: []byte(jwtSecret),
	}
}

type AccessClaims struct {
	UserID    string `json:"sub"`
	CompanyID string `json:"cid"`
	jwt.RegisteredClaims
}

func (s *AuthService) ParseAccessToken(tokenString string) (AccessClaims, error) {
	if tokenString == "" {
		return AccessClaims{}, apperrors.ErrUnauthorized
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperrors.ErrUnauthorized
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		return AccessClaims{}, apperrors.ErrUnauthorized
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return AccessClaims{}, apperrors.ErrUnauthorized
	}

	return *claims, nil
}

// Authenticate resolves a token to a principal. When a user repository is
// configured the account must exist, be active and belong to the token's company.
func (s *AuthService) Authenticate(ctx context.Context, token string) (user.Principal, error) {
	claims, err := s.ParseAccessToken(token)
	if err != nil {
		return user.Anonymous, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return user.Anonymous, apperrors.ErrUnauthorized
	}
	companyID, err := uuid.Parse(claims.CompanyID)
	if err != nil {
		return user.Anonymous, apperrors.ErrUnauthorized
	}

	if s.users != nil {
		u, err := s.users.GetByID(ctx, userID)
		if errors.Is(err, apperrors.ErrNotFound) {
			return user.Anonymous, apperrors.ErrUnauthorized
		}
		if err != nil {
			return user.Anonymous, err
		}
		if !u.IsActive || u.CompanyID != companyID {
			return user.Anonymous, apperrors.ErrUnauthorized
		}
	}

	return user.Principal{UserID: userID, CompanyID: companyID}, nil
}

// PrincipalFromToken is Authenticate with every failure mapped to the anonymous principal.
func (s *AuthService) PrincipalFromToken(ctx context.Context, token string) user.Principal {
	p, err := s.Authenticate(ctx, token)
	if err != nil {
		return user.Anonymous
	}
	return p
}

func (s *AuthService) SignAccessToken(p user.Principal, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		UserID:    p.UserID.String(),
		CompanyID: p.CompanyID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
}

type ctxKey string

var principalKey ctxKey = "principal"

// WithPrincipal stores the caller on ctx, along with the user id string read by the logger.
func WithPrincipal(ctx context.Context, p user.Principal) context.Context {
	ctx = context.WithValue(ctx, principalKey, p)
	return context.WithValue(ctx, logger.UserIdKey, p.UserID.String())
}

func PrincipalFromContext(ctx context.Context) (user.Principal, bool) {
	p, ok := ctx.Value(principalKey).(user.Principal)
	if !ok || p.IsAnonymous() {
		return user.Anonymous, false
	}
	return p, true
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	p, ok := PrincipalFromContext(ctx)
	return p.UserID, ok
}
