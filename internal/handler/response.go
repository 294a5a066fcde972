// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"picimpact-go/internal/repository"
	"picimpact-go/internal/service"
	"picimpact-go/pkg/log"
)

// statusFor 将业务错误映射为 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrTagNotFound),
		errors.Is(err, service.ErrImageNotFound),
		errors.Is(err, service.ErrAlbumNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrTagExists),
		errors.Is(err, service.ErrAlbumExists),
		errors.Is(err, service.ErrImageConflict),
		errors.Is(err, repository.ErrLockTimeout):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidTag),
		errors.Is(err, service.ErrInvalidImage),
		errors.Is(err, service.ErrInvalidAlbum),
		errors.Is(err, service.ErrInvalidMove):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// respondError 以统一的 {code,message,data} 结构返回错误，500 不向客户端暴露细节。
func respondError(c *gin.Context, op string, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error(op+": internal error", err)
		message = "服务器内部错误"
	} else {
		log.Warnf("%s: %v", op, err)
	}
	c.JSON(status, gin.H{"code": status, "message": message, "data": nil})
}

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": data})
}

func badRequest(c *gin.Context, op string, err error) {
	log.Warnf("%s: Invalid request payload, error: %v", op, err)
	c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "无效的请求负载", "data": nil})
}

// queryInt 读取整数查询参数，未提供时返回 def。
func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s 不是整数: %w", key, err)
	}
	return n, nil
}
