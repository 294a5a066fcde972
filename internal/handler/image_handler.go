package handler

import (
	"github.com/gin-gonic/gin"
	"picimpact-go/internal/service"
	"picimpact-go/pkg/log"
)

// ImageHandler 负责图片导入、查询、删除与标签维护的 API 请求。
type ImageHandler struct {
	ingestService service.IngestService
	imageService  service.ImageService
	searchService service.SearchService
}

// NewImageHandler 创建一个新的 ImageHandler 实例。
func NewImageHandler(ingestService service.IngestService, imageService service.ImageService, searchService service.SearchService) *ImageHandler {
	return &ImageHandler{
		ingestService: ingestService,
		imageService:  imageService,
		searchService: searchService,
	}
}

// Ingest 处理图片导入请求，同一内容重复提交返回已有记录。
func (h *ImageHandler) Ingest(c *gin.Context) {
	var req service.IngestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Ingest", err)
		return
	}
	result, err := h.ingestService.Ingest(c.Request.Context(), req)
	if err != nil {
		respondError(c, "Ingest", err)
		return
	}
	respondOK(c, result)
}

// GetImage 返回单张图片。
func (h *ImageHandler) GetImage(c *gin.Context) {
	image, err := h.imageService.GetImage(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "GetImage", err)
		return
	}
	respondOK(c, image)
}

// UpdateImageTagsRequest 定义了替换图片标签的请求体。
type UpdateImageTagsRequest struct {
	Labels         []string          `json:"labels"`
	TagCategoryMap map[string]string `json:"tagCategoryMap"`
}

// UpdateImageTags 全量替换图片的标签。
func (h *ImageHandler) UpdateImageTags(c *gin.Context) {
	var req UpdateImageTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "UpdateImageTags", err)
		return
	}
	image, err := h.imageService.UpdateImageTags(c.Request.Context(), c.Param("id"), req.Labels, req.TagCategoryMap)
	if err != nil {
		respondError(c, "UpdateImageTags", err)
		return
	}
	respondOK(c, image)
}

// SyncImageTags 对单张图片执行一次标签同步。
func (h *ImageHandler) SyncImageTags(c *gin.Context) {
	result, err := h.imageService.SyncImageTags(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "SyncImageTags", err)
		return
	}
	respondOK(c, result)
}

// SoftDeleteImage 软删除图片。
func (h *ImageHandler) SoftDeleteImage(c *gin.Context) {
	if err := h.imageService.SoftDeleteImage(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, "SoftDeleteImage", err)
		return
	}
	respondOK(c, nil)
}

// PurgeImage 物理删除图片。
func (h *ImageHandler) PurgeImage(c *gin.Context) {
	id := c.Param("id")
	if err := h.imageService.PurgeImage(c.Request.Context(), id); err != nil {
		respondError(c, "PurgeImage", err)
		return
	}
	log.Infof("Image '%s' purged", id)
	respondOK(c, nil)
}

// SearchImages 按关键词检索图片。
func (h *ImageHandler) SearchImages(c *gin.Context) {
	size, err := queryInt(c, "size", 20)
	if err != nil {
		badRequest(c, "SearchImages", err)
		return
	}
	hits, err := h.searchService.SearchImages(c.Request.Context(), c.Query("q"), size)
	if err != nil {
		respondError(c, "SearchImages", err)
		return
	}
	respondOK(c, hits)
}
