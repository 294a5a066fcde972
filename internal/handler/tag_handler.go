package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"picimpact-go/internal/service"
)

// TagHandler 负责标签库、标签移动与完整性修复的 API 请求。
type TagHandler struct {
	tagService    service.TagService
	moveService   service.TagMoveService
	repairService service.RepairService
}

// NewTagHandler 创建一个新的 TagHandler 实例。
func NewTagHandler(tagService service.TagService, moveService service.TagMoveService, repairService service.RepairService) *TagHandler {
	return &TagHandler{
		tagService:    tagService,
		moveService:   moveService,
		repairService: repairService,
	}
}

// ListTags 返回全部标签。
func (h *TagHandler) ListTags(c *gin.Context) {
	tags, err := h.tagService.ListTags(c.Request.Context())
	if err != nil {
		respondError(c, "ListTags", err)
		return
	}
	respondOK(c, tags)
}

// GetTagTree 返回标签树。
func (h *TagHandler) GetTagTree(c *gin.Context) {
	tree, err := h.tagService.GetTagTree(c.Request.Context())
	if err != nil {
		respondError(c, "GetTagTree", err)
		return
	}
	respondOK(c, tree)
}

// GetTag 返回单个标签。
func (h *TagHandler) GetTag(c *gin.Context) {
	tag, err := h.tagService.GetTag(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "GetTag", err)
		return
	}
	respondOK(c, tag)
}

// CreateTag 处理创建标签的请求。
func (h *TagHandler) CreateTag(c *gin.Context) {
	var req service.CreateTagInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "CreateTag", err)
		return
	}
	tag, err := h.tagService.CreateTag(c.Request.Context(), req)
	if err != nil {
		respondError(c, "CreateTag", err)
		return
	}
	respondOK(c, tag)
}

// UpsertTagsRequest 定义了按名称批量 upsert 标签的请求体。
type UpsertTagsRequest struct {
	Names       []string          `json:"names" binding:"required"`
	CategoryMap map[string]string `json:"categoryMap"`
}

// UpsertTags 按名称查找或创建标签。
func (h *TagHandler) UpsertTags(c *gin.Context) {
	var req UpsertTagsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "UpsertTags", err)
		return
	}
	tags, err := h.tagService.UpsertByName(c.Request.Context(), req.Names, req.CategoryMap)
	if err != nil {
		respondError(c, "UpsertTags", err)
		return
	}
	respondOK(c, tags)
}

// UpdateTag 处理更新标签的请求。
func (h *TagHandler) UpdateTag(c *gin.Context) {
	var req service.UpdateTagInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "UpdateTag", err)
		return
	}
	tag, err := h.tagService.UpdateTag(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, "UpdateTag", err)
		return
	}
	respondOK(c, tag)
}

// DeleteTag 删除标签；cascade=true 时同时删除直接子标签。
func (h *TagHandler) DeleteTag(c *gin.Context) {
	id := c.Param("id")
	if c.Query("cascade") == "true" {
		deleted, err := h.tagService.DeleteTagWithChildren(c.Request.Context(), id)
		if err != nil {
			respondError(c, "DeleteTag", err)
			return
		}
		respondOK(c, gin.H{"deleted": deleted})
		return
	}
	if err := h.tagService.DeleteTag(c.Request.Context(), id); err != nil {
		respondError(c, "DeleteTag", err)
		return
	}
	respondOK(c, gin.H{"deleted": 1})
}

// MoveTagRequest 定义了标签移动的请求体，parentId 为空表示提升为根标签。
type MoveTagRequest struct {
	ParentID *string `json:"parentId"`
}

// ValidateMove 预检标签移动。
func (h *TagHandler) ValidateMove(c *gin.Context) {
	var req MoveTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "ValidateMove", err)
		return
	}
	result, err := h.moveService.ValidateMove(c.Request.Context(), c.Param("id"), req.ParentID)
	if err != nil {
		respondError(c, "ValidateMove", err)
		return
	}
	respondOK(c, result)
}

// MoveTag 执行标签移动；校验失败时以 400 返回 {success:false,error}。
func (h *TagHandler) MoveTag(c *gin.Context) {
	var req MoveTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "MoveTag", err)
		return
	}
	result, err := h.moveService.MoveTag(c.Request.Context(), c.Param("id"), req.ParentID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidMove) && result != nil {
			c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": result.Error, "data": result})
			return
		}
		respondError(c, "MoveTag", err)
		return
	}
	respondOK(c, result)
}

// RepairCompleteness 执行标签完整性修复；async=true 时投递后台任务。
func (h *TagHandler) RepairCompleteness(c *gin.Context) {
	batchSize, err := queryInt(c, "batchSize", 0)
	if err != nil {
		badRequest(c, "RepairCompleteness", err)
		return
	}
	if c.Query("async") == "true" {
		taskID, err := h.repairService.RequestRepair(c.Request.Context(), batchSize)
		if err != nil {
			respondError(c, "RepairCompleteness", err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"code": http.StatusAccepted, "message": "修复任务已提交", "data": gin.H{"taskId": taskID}})
		return
	}
	report, err := h.repairService.RepairCompleteness(c.Request.Context(), batchSize)
	if err != nil {
		respondError(c, "RepairCompleteness", err)
		return
	}
	respondOK(c, report)
}

// RepairReport 返回最近一次修复报告。
func (h *TagHandler) RepairReport(c *gin.Context) {
	report, err := h.repairService.LatestReport(c.Request.Context())
	if err != nil {
		respondError(c, "RepairReport", err)
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"code": http.StatusNotFound, "message": "尚无修复报告", "data": nil})
		return
	}
	respondOK(c, report)
}
