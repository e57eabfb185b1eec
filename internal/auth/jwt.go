package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/resoniratech-svg/school-erp-manoj-sub004/internal/authz"
)

var (
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMissing   = errors.New("token is missing")
	ErrWrongTokenType = errors.New("wrong token type")
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// Identity is what a token asserts about its holder. Permissions are the
// final, role-expanded strings.
type Identity struct {
	UserID      string
	Email       string
	TenantID    string
	BranchID    string
	Roles       []string
	Permissions []string
}

type Claims struct {
	UserID      string   `json:"user_id"`
	Email       string   `json:"email"`
	TenantID    string   `json:"tenant_id"`
	BranchID    string   `json:"branch_id,omitempty"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	TokenType   string   `json:"typ"`
	jwt.RegisteredClaims
}

// Actor builds the request principal from verified claims.
func (c *Claims) Actor() *authz.Actor {
	actor := authz.NewActor(c.UserID, c.TenantID, c.BranchID, c.Permissions)
	actor.Email = c.Email
	actor.Roles = c.Roles
	return actor
}

// RefreshClaims identify the user only; permissions are re-read from the
// user record when a refresh is exchanged.
type RefreshClaims struct {
	TenantID  string `json:"tenant_id"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

type JWTService struct {
	secretKey     []byte
	tokenExpiry   time.Duration
	refreshExpiry time.Duration
	issuer        string
	now           func() time.Time
}

func NewJWTService(secretKey string, tokenExpiry, refreshExpiry time.Duration, issuer string) *JWTService {
	return &JWTService{
		secretKey:     []byte(secretKey),
		tokenExpiry:   tokenExpiry,
		refreshExpiry: refreshExpiry,
		issuer:        issuer,
		now:           time.Now,
	}
}

// TokenExpiry returns the lifetime of access tokens.
func (j *JWTService) TokenExpiry() time.Duration {
	return j.tokenExpiry
}

func (j *JWTService) GenerateToken(id Identity) (string, error) {
	now := j.now()
	claims := Claims{
		UserID:      id.UserID,
		Email:       id.Email,
		TenantID:    id.TenantID,
		BranchID:    id.BranchID,
		Roles:       id.Roles,
		Permissions: id.Permissions,
		TokenType:   tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.issuer,
			Subject:   id.UserID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secretKey)
}

func (j *JWTService) GenerateRefreshToken(userID, tenantID string) (string, error) {
	now := j.now()
	claims := RefreshClaims{
		TenantID:  tenantID,
		TokenType: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.refreshExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.issuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secretKey)
}

func (j *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if err := j.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeAccess {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

func (j *JWTService) ValidateRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := j.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeRefresh {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

func (j *JWTService) parse(tokenString string, claims jwt.Claims) error {
	if tokenString == "" {
		return ErrTokenMissing
	}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return j.secretKey, nil
	},
		jwt.WithIssuer(j.issuer),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
