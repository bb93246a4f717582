package auth

import (
	"errors"
	"time"

	"lab-backend/internal/config"
	"lab-backend/internal/timeutil"

	"github.com/golang-jwt/jwt/v5"
)

// Claims identify the staff user and the lab (tenant) every request acts for
type Claims struct {
	UserID   int    `json:"user_id"`
	TenantID int    `json:"tenant_id"`
	BranchID *int   `json:"branch_id,omitempty"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type JWTManager struct {
	secret     []byte
	issuer     string
	expiration time.Duration
}

func NewJWTManager(cfg *config.Config) *JWTManager {
	return &JWTManager{
		secret:     []byte(cfg.JWT.Secret),
		issuer:     cfg.JWT.Issuer,
		expiration: time.Duration(cfg.JWT.ExpirationHours) * time.Hour,
	}
}

// GenerateToken creates a signed token for a user of a tenant
func (j *JWTManager) GenerateToken(userID, tenantID int, branchID *int, role string) (string, error) {
	now := timeutil.Now()
	claims := &Claims{
		UserID:   userID,
		TenantID: tenantID,
		BranchID: branchID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

// ValidateToken verifies a JWT token and returns the claims
func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return j.secret, nil
	}, jwt.WithIssuer(j.issuer))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.TenantID <= 0 {
		return nil, errors.New("token carries no tenant")
	}
	return claims, nil
}
