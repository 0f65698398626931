package service

import (
	"strings"
	"time"

	"github.com/wldmarket/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

// UserJWTClaims 外部身份令牌声明
//
// external_id 缺省时使用标准 sub 字段。
type UserJWTClaims struct {
	ExternalID  string `json:"external_id"`
	DisplayName string `json:"display_name"`
	jwt.RegisteredClaims
}

// Identity 令牌中解析出的外部身份
type Identity struct {
	ExternalID  string
	DisplayName string
	IssuedAt    time.Time
}

// IdentityService 校验外部身份服务签发的用户令牌
type IdentityService struct {
	cfg config.JWTConfig
}

// NewIdentityService 创建身份校验服务
func NewIdentityService(cfg config.JWTConfig) *IdentityService {
	return &IdentityService{cfg: cfg}
}

// Parse 解析并校验用户令牌
func (s *IdentityService) Parse(tokenString string) (*Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer := strings.TrimSpace(s.cfg.Issuer); issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)
	claims := &UserJWTClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.SecretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	externalID := strings.TrimSpace(claims.ExternalID)
	if externalID == "" {
		externalID = strings.TrimSpace(claims.Subject)
	}
	if externalID == "" {
		return nil, ErrTokenInvalid
	}
	identity := &Identity{
		ExternalID:  externalID,
		DisplayName: strings.TrimSpace(claims.DisplayName),
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	return identity, nil
}

// Issue 签发用户令牌，用于本地联调与种子数据
func (s *IdentityService) Issue(externalID, displayName string) (string, time.Time, error) {
	hours := s.cfg.ExpireHours
	if hours <= 0 {
		hours = 720
	}
	now := time.Now()
	expiresAt := now.Add(time.Duration(hours) * time.Hour)
	claims := UserJWTClaims{
		ExternalID:  strings.TrimSpace(externalID),
		DisplayName: strings.TrimSpace(displayName),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   strings.TrimSpace(externalID),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
