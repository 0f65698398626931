package service

import (
	"strings"
	"time"

	"github.com/wldmarket/internal/config"
	"github.com/wldmarket/internal/logger"
	"github.com/wldmarket/internal/models"
	"github.com/wldmarket/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const minAdminPasswordLength = 8

// AuthService 管理员认证服务
type AuthService struct {
	cfg       config.JWTConfig
	adminRepo repository.AdminRepository
}

// NewAuthService 创建认证服务实例
func NewAuthService(cfg config.JWTConfig, adminRepo repository.AdminRepository) *AuthService {
	return &AuthService{
		cfg:       cfg,
		adminRepo: adminRepo,
	}
}

// HashPassword 使用 bcrypt 加密密码
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword 验证密码
func (s *AuthService) VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// JWTClaims 管理员 JWT 声明
type JWTClaims struct {
	AdminID      uint   `json:"admin_id"`
	Username     string `json:"username"`
	TokenVersion uint64 `json:"token_version"`
	jwt.RegisteredClaims
}

// GenerateJWT 生成管理员 JWT Token
func (s *AuthService) GenerateJWT(admin *models.Admin) (string, time.Time, error) {
	hours := s.cfg.ExpireHours
	if hours <= 0 {
		hours = 24
	}
	now := time.Now()
	expiresAt := now.Add(time.Duration(hours) * time.Hour)

	claims := JWTClaims{
		AdminID:      admin.ID,
		Username:     admin.Username,
		TokenVersion: admin.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.cfg.SecretKey))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseJWT 解析管理员 JWT Token
func (s *AuthService) ParseJWT(tokenString string) (*JWTClaims, error) {
	return ParseAdminJWT(s.cfg.SecretKey, tokenString)
}

// ParseAdminJWT 使用给定密钥解析管理员令牌
func ParseAdminJWT(secret, tokenString string) (*JWTClaims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &JWTClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Login 管理员登录
func (s *AuthService) Login(username, password string) (*models.Admin, string, time.Time, error) {
	admin, err := s.adminRepo.GetByUsername(username)
	if err != nil {
		return nil, "", time.Time{}, err
	}
	if admin == nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}
	if err := s.VerifyPassword(admin.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.GenerateJWT(admin)
	if err != nil {
		return nil, "", time.Time{}, err
	}

	now := time.Now()
	admin.LastLoginAt = &now
	if err := s.adminRepo.Update(admin); err != nil {
		return nil, "", time.Time{}, err
	}
	logger.Infow("admin_login", "admin_id", admin.ID, "username", admin.Username)
	return admin, token, expiresAt, nil
}

// GetAdmin 获取管理员
func (s *AuthService) GetAdmin(adminID uint) (*models.Admin, error) {
	admin, err := s.adminRepo.GetByID(adminID)
	if err != nil {
		return nil, err
	}
	if admin == nil {
		return nil, ErrAdminNotFound
	}
	return admin, nil
}

// ListAdmins 列出管理员
func (s *AuthService) ListAdmins() ([]models.Admin, error) {
	return s.adminRepo.List()
}

// CreateAdmin 创建管理员
func (s *AuthService) CreateAdmin(username, password string, isSuper bool) (*models.Admin, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidCredentials
	}
	if len([]rune(password)) < minAdminPasswordLength {
		return nil, ErrWeakPassword
	}
	existing, err := s.adminRepo.GetByUsername(username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAdminExists
	}
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}
	admin := &models.Admin{Username: username, PasswordHash: hash, IsSuper: isSuper}
	if err := s.adminRepo.Create(admin); err != nil {
		return nil, err
	}
	logger.Infow("admin_created", "admin_id", admin.ID, "username", admin.Username, "is_super", isSuper)
	return admin, nil
}

// EnsureSuperAdmin 不存在任何管理员时创建初始超级管理员
func (s *AuthService) EnsureSuperAdmin(username, password string) (*models.Admin, bool, error) {
	count, err := s.adminRepo.Count()
	if err != nil {
		return nil, false, err
	}
	if count > 0 {
		admin, err := s.adminRepo.GetByUsername(username)
		return admin, false, err
	}
	admin, err := s.CreateAdmin(username, password, true)
	if err != nil {
		return nil, false, err
	}
	return admin, true, nil
}

// ChangePassword 修改管理员密码，旧令牌随之失效
func (s *AuthService) ChangePassword(adminID uint, oldPassword, newPassword string) error {
	admin, err := s.GetAdmin(adminID)
	if err != nil {
		return err
	}
	if err := s.VerifyPassword(admin.PasswordHash, oldPassword); err != nil {
		return ErrInvalidPassword
	}
	if len([]rune(newPassword)) < minAdminPasswordLength {
		return ErrWeakPassword
	}
	hash, err := s.HashPassword(newPassword)
	if err != nil {
		return err
	}
	admin.PasswordHash = hash
	admin.TokenVersion++
	return s.adminRepo.Update(admin)
}

// IsTokenCurrent 判断令牌版本是否仍有效
func IsTokenCurrent(admin *models.Admin, claims *JWTClaims) bool {
	if admin == nil || claims == nil {
		return false
	}
	return admin.TokenVersion == claims.TokenVersion
}
