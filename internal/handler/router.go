package handler

import (
	"github.com/gin-gonic/gin"
	"picimpact-go/internal/middleware"
	"picimpact-go/internal/service"
	"picimpact-go/pkg/token"
)

// Handlers 汇总所有路由处理器。
type Handlers struct {
	Auth  *AuthHandler
	Image *ImageHandler
	Album *AlbumHandler
	Tag   *TagHandler
}

// RegisterRoutes 在 /api/v1 下注册全部路由，除登录与刷新外均需要管理员 token。
func RegisterRoutes(r *gin.Engine, h Handlers, jwtManager *token.JWTManager) {
	apiV1 := r.Group("/api/v1")

	auth := apiV1.Group("/auth")
	{
		auth.POST("/login", h.Auth.Login)
		auth.POST("/refreshToken", h.Auth.RefreshToken)
	}

	admin := apiV1.Group("/")
	admin.Use(middleware.AuthMiddleware(jwtManager), middleware.AdminAuthMiddleware(service.RoleAdmin))

	images := admin.Group("/images")
	{
		images.POST("", h.Image.Ingest)
		images.GET("/search", h.Image.SearchImages)
		images.GET("/:id", h.Image.GetImage)
		images.PUT("/:id/tags", h.Image.UpdateImageTags)
		images.POST("/:id/tags/sync", h.Image.SyncImageTags)
		images.DELETE("/:id", h.Image.SoftDeleteImage)
		images.DELETE("/:id/purge", h.Image.PurgeImage)
	}

	albums := admin.Group("/albums")
	{
		albums.POST("", h.Album.CreateAlbum)
		albums.GET("", h.Album.ListAlbums)
	}

	tags := admin.Group("/tags")
	{
		tags.GET("", h.Tag.ListTags)
		tags.GET("/tree", h.Tag.GetTagTree)
		tags.POST("", h.Tag.CreateTag)
		tags.POST("/upsert", h.Tag.UpsertTags)
		tags.POST("/repair", h.Tag.RepairCompleteness)
		tags.GET("/repair/report", h.Tag.RepairReport)
		tags.GET("/:id", h.Tag.GetTag)
		tags.PUT("/:id", h.Tag.UpdateTag)
		tags.DELETE("/:id", h.Tag.DeleteTag)
		tags.POST("/:id/move/validate", h.Tag.ValidateMove)
		tags.POST("/:id/move", h.Tag.MoveTag)
	}
}
