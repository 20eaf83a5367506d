package controller

import (
	"errors"
	"quiz_platform_backend/internal/service"
	"quiz_platform_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type DashboardController struct {
	DashboardService *service.DashboardService
}

func NewDashboardController(dashboardService *service.DashboardService) *DashboardController {
	return &DashboardController{DashboardService: dashboardService}
}

func respondDashboardError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrQuizNotFound), errors.Is(err, util.ErrAttemptNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}

// GetQuizStats godoc
// @Summary 测验答题统计
// @Description 各终态数量、完成均分和及格数，限测验创建者或管理员
// @Tags 统计
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验ID"
// @Success 200 {object} util.Response{data=repository.QuizAttemptStats} "成功"
// @Failure 403 {object} util.Response "无权限"
// @Router /api/teacher/quizzes/{id}/stats [get]
func (c *DashboardController) GetQuizStats(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	stats, err := c.DashboardService.QuizStats(uint(id), claims.UserID, claims.Role)
	if err != nil {
		respondDashboardError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// ListQuizAttempts godoc
// @Summary 测验的答题列表（教师）
// @Tags 统计
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验ID"
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(10)
// @Param   studentName query string false "按学生姓名搜索"
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/teacher/quizzes/{id}/attempts [get]
func (c *DashboardController) ListQuizAttempts(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))

	rows, total, err := c.DashboardService.QuizAttempts(uint(id), claims.UserID, claims.Role, page, limit, ctx.Query("studentName"))
	if err != nil {
		respondDashboardError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: rows, Total: total, Page: page, Limit: limit})
}

// GetAttemptDetail godoc
// @Summary 答题详情（教师）
// @Description 含判分明细与作弊日志，限测验创建者或管理员
// @Tags 统计
// @Produce  json
// @Security ApiKeyAuth
// @Param   attemptId path string true "答题ID"
// @Success 200 {object} util.Response{data=service.AttemptDetail} "成功"
// @Router /api/teacher/attempts/{attemptId} [get]
func (c *DashboardController) GetAttemptDetail(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	detail, err := c.DashboardService.AttemptDetail(ctx.Param("attemptId"), claims.UserID, claims.Role)
	if err != nil {
		respondDashboardError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// ListMyAttempts godoc
// @Summary 我的答题历史
// @Tags 答题
// @Produce  json
// @Security ApiKeyAuth
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(10)
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/attempts [get]
func (c *DashboardController) ListMyAttempts(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))

	attempts, total, err := c.DashboardService.StudentHistory(claims.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: attempts, Total: total, Page: page, Limit: limit})
}
