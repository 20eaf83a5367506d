package controller

import (
	"quiz_platform_backend/internal/service"
	"quiz_platform_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type NotificationController struct {
	NotificationService *service.NotificationService
}

func NewNotificationController(notificationService *service.NotificationService) *NotificationController {
	return &NotificationController{NotificationService: notificationService}
}

// ListNotifications godoc
// @Summary 通知列表
// @Tags 通知
// @Produce  json
// @Security ApiKeyAuth
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(10)
// @Param   unread query bool false "只看未读"
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/notifications [get]
func (c *NotificationController) ListNotifications(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))
	unreadOnly := ctx.Query("unread") == "true"

	ns, total, err := c.NotificationService.List(claims.UserID, page, limit, unreadOnly)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: ns, Total: total, Page: page, Limit: limit})
}

// MarkNotificationRead godoc
// @Summary 标记通知已读
// @Tags 通知
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "通知ID"
// @Success 200 {object} util.Response "成功"
// @Router /api/notifications/{id}/read [put]
func (c *NotificationController) MarkNotificationRead(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid notification id")
		return
	}

	if err := c.NotificationService.MarkRead(uint(id), claims.UserID); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"read": true})
}

// MarkAllNotificationsRead godoc
// @Summary 全部标记已读
// @Tags 通知
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response "成功"
// @Router /api/notifications/read-all [put]
func (c *NotificationController) MarkAllNotificationsRead(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	if err := c.NotificationService.MarkAllRead(claims.UserID); err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"read": true})
}

// CountUnread godoc
// @Summary 未读通知数
// @Tags 通知
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/notifications/unread-count [get]
func (c *NotificationController) CountUnread(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	count, err := c.NotificationService.CountUnread(claims.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"count": count})
}
