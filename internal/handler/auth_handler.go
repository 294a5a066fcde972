package handler

import (
	"github.com/gin-gonic/gin"
	"picimpact-go/internal/service"
	"picimpact-go/pkg/log"
)

// AuthHandler 负责处理管理员登录与刷新 token。
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// LoginRequest 定义了登录 API 的请求体结构。
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 处理管理员登录请求。
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Login", err)
		return
	}
	accessToken, refreshToken, err := h.authService.Login(req.Username, req.Password)
	if err != nil {
		respondError(c, "Login", err)
		return
	}
	log.Infof("Admin '%s' logged in", req.Username)
	respondOK(c, gin.H{"token": accessToken, "refreshToken": refreshToken})
}

// RefreshTokenRequest 定义了刷新 token API 的请求体结构。
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken 处理刷新 token 的请求。
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "RefreshToken", err)
		return
	}
	accessToken, err := h.authService.RefreshToken(req.RefreshToken)
	if err != nil {
		respondError(c, "RefreshToken", err)
		return
	}
	respondOK(c, gin.H{"token": accessToken})
}
