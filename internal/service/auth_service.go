package service

import (
	"crypto/subtle"
	"fmt"

	"picimpact-go/internal/config"
	"picimpact-go/pkg/hash"
	"picimpact-go/pkg/log"
	"picimpact-go/pkg/token"
)

// RoleAdmin 是管理后台唯一的角色。
const RoleAdmin = "ADMIN"

// AuthService 接口定义了管理员登录与令牌刷新。
type AuthService interface {
	Login(username, password string) (accessToken, refreshToken string, err error)
	RefreshToken(refreshToken string) (string, error)
}

type authService struct {
	admin      config.AdminConfig
	jwtManager *token.JWTManager
}

// NewAuthService 创建一个新的 AuthService 实例。
func NewAuthService(admin config.AdminConfig, jwtManager *token.JWTManager) AuthService {
	return &authService{admin: admin, jwtManager: jwtManager}
}

// Login 校验配置中的管理员账号，成功后签发 access/refresh token。
func (s *authService) Login(username, password string) (string, string, error) {
	if s.admin.Username == "" || s.admin.PasswordHash == "" {
		return "", "", fmt.Errorf("%w: 未配置管理员账号", ErrInvalidCredentials)
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.admin.Username)) == 1
	if !hash.CheckPasswordHash(password, s.admin.PasswordHash) || !userOK {
		log.Warnf("管理员登录失败: username=%s", username)
		return "", "", ErrInvalidCredentials
	}

	accessToken, err := s.jwtManager.GenerateToken(username, RoleAdmin)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(username, RoleAdmin)
	if err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

func (s *authService) RefreshToken(refreshToken string) (string, error) {
	claims, err := s.jwtManager.VerifyToken(refreshToken)
	if err != nil || claims.TokenType != token.TypeRefresh {
		return "", ErrInvalidCredentials
	}
	return s.jwtManager.GenerateToken(claims.Username, claims.Role)
}
