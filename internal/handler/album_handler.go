package handler

import (
	"github.com/gin-gonic/gin"
	"picimpact-go/internal/service"
)

// AlbumHandler 负责相册相关的 API 请求。
type AlbumHandler struct {
	albumService service.AlbumService
}

// NewAlbumHandler 创建一个新的 AlbumHandler 实例。
func NewAlbumHandler(albumService service.AlbumService) *AlbumHandler {
	return &AlbumHandler{albumService: albumService}
}

// CreateAlbum 处理创建相册的请求。
func (h *AlbumHandler) CreateAlbum(c *gin.Context) {
	var req service.CreateAlbumInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "CreateAlbum", err)
		return
	}
	album, err := h.albumService.CreateAlbum(c.Request.Context(), req)
	if err != nil {
		respondError(c, "CreateAlbum", err)
		return
	}
	respondOK(c, album)
}

// ListAlbums 返回所有未删除的相册。
func (h *AlbumHandler) ListAlbums(c *gin.Context) {
	albums, err := h.albumService.ListAlbums(c.Request.Context())
	if err != nil {
		respondError(c, "ListAlbums", err)
		return
	}
	respondOK(c, albums)
}
