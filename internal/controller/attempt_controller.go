package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/service"
	"quiz_platform_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService      *service.AttemptService
	QuizService         *service.QuizService
	NotificationService *service.NotificationService
}

func NewAttemptController(attemptService *service.AttemptService, quizService *service.QuizService, notificationService *service.NotificationService) *AttemptController {
	return &AttemptController{
		AttemptService:      attemptService,
		QuizService:         quizService,
		NotificationService: notificationService,
	}
}

// respondEngineError maps the attempt engine's error taxonomy onto HTTP.
// TimeExpired and MaxAttemptsReached stay distinguishable for the student;
// AttemptNotFound deliberately stays a bare 404.
func respondEngineError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrQuizNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrQuizUnavailable):
		util.Error(ctx, http.StatusForbidden, "测验未开放或不在答题时间窗口内")
	case errors.Is(err, util.ErrMaxAttemptsReached):
		util.Error(ctx, http.StatusForbidden, "已达到本测验的最大答题次数")
	case errors.Is(err, util.ErrResumeNotAllowed):
		util.Error(ctx, http.StatusConflict, "本测验不允许继续未完成的答题")
	case errors.Is(err, util.ErrTimeExpired):
		util.Error(ctx, http.StatusGone, "答题时间已到，本次答题已结束")
	case errors.Is(err, util.ErrAttemptNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrQuestionNotFound):
		util.Error(ctx, http.StatusNotFound, "题目不存在")
	case errors.Is(err, util.ErrConcurrentAttemptConflict):
		util.Error(ctx, http.StatusConflict, "并发冲突，请重试")
	default:
		util.LogInternalError(ctx, err)
	}
}

// StartAttempt godoc
// @Summary 开始或恢复答题
// @Description 为当前学生开始一次新的答题；若已有进行中的答题且允许恢复，则返回该答题
// @Tags 答题
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   quizId path int true "测验ID"
// @Success 200 {object} util.Response{data=service.StartResult} "成功"
// @Failure 403 {object} util.Response "测验不可用或次数已用完"
// @Failure 410 {object} util.Response "答题时间已到"
// @Router /api/quizzes/{quizId}/attempts [post]
func (c *AttemptController) StartAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	quizID, err := strconv.ParseUint(ctx.Param("quizId"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	result, err := c.AttemptService.Start(uint(quizID), claims.UserID)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// swagger:model SubmitAnswerRequest
type SubmitAnswerRequest struct {
	QuestionID uint `json:"questionId" binding:"required"`
	// Answer 的形态由题型决定：string | []string | bool
	Answer    json.RawMessage `json:"answer" binding:"required"`
	TimeSpent int             `json:"timeSpentSeconds"`
}

// SubmitAnswer godoc
// @Summary 提交单题答案
// @Description 对进行中的答题提交（或覆盖）一道题的答案，立即判分
// @Tags 答题
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   attemptId path string true "答题ID"
// @Param   body body SubmitAnswerRequest true "答案"
// @Success 200 {object} util.Response{data=service.SubmitResult} "成功"
// @Failure 404 {object} util.Response "答题或题目不存在"
// @Failure 410 {object} util.Response "答题时间已到"
// @Router /api/attempts/{attemptId}/answers [put]
func (c *AttemptController) SubmitAnswer(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attemptID := ctx.Param("attemptId")

	var req SubmitAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.AttemptService.SubmitAnswer(attemptID, claims.UserID, req.QuestionID, req.Answer, req.TimeSpent)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// CompleteAttempt godoc
// @Summary 交卷
// @Description 结束进行中的答题并计分；得分与答案按测验的可见性策略返回
// @Tags 答题
// @Produce  json
// @Security ApiKeyAuth
// @Param   attemptId path string true "答题ID"
// @Success 200 {object} util.Response{data=service.CompletionResult} "成功"
// @Failure 404 {object} util.Response "答题不存在"
// @Failure 410 {object} util.Response "答题时间已到"
// @Router /api/attempts/{attemptId}/complete [post]
func (c *AttemptController) CompleteAttempt(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attemptID := ctx.Param("attemptId")

	result, err := c.AttemptService.Complete(attemptID, claims.UserID)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}

	// 交卷通知属于调用方的事，引擎本身不发
	if attempt, aerr := c.AttemptService.Attempts.FindByID(attemptID); aerr == nil {
		if quiz, qerr := c.QuizService.Get(attempt.QuizID); qerr == nil {
			c.NotificationService.NotifyQuizCompleted(claims.UserID, quiz.Title)
		}
	}

	util.Success(ctx, result)
}

// GetAttemptState godoc
// @Summary 获取进行中答题的现场
// @Description 恢复答题用：返回净化后的试卷、已答题目和剩余时间
// @Tags 答题
// @Produce  json
// @Security ApiKeyAuth
// @Param   attemptId path string true "答题ID"
// @Success 200 {object} util.Response{data=service.AttemptState} "成功"
// @Failure 404 {object} util.Response "答题不存在"
// @Router /api/attempts/{attemptId} [get]
func (c *AttemptController) GetAttemptState(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	state, err := c.AttemptService.State(ctx.Param("attemptId"), claims.UserID)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}
	util.Success(ctx, state)
}

// GetAttemptResult godoc
// @Summary 查看答题结果
// @Description 终态答题的成绩页；可见性策略在读取时重新评估，after_end 的成绩在测验结束后开放
// @Tags 答题
// @Produce  json
// @Security ApiKeyAuth
// @Param   attemptId path string true "答题ID"
// @Success 200 {object} util.Response{data=service.CompletionResult} "成功"
// @Failure 404 {object} util.Response "答题不存在"
// @Router /api/attempts/{attemptId}/result [get]
func (c *AttemptController) GetAttemptResult(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	result, err := c.AttemptService.Result(ctx.Param("attemptId"), claims.UserID)
	if err != nil {
		respondEngineError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// swagger:model CheatEventRequest
type CheatEventRequest struct {
	Message string `json:"message" binding:"required"`
}

// RecordCheatEvent godoc
// @Summary 上报作弊信号
// @Description 前端采集的作弊信号（切屏、粘贴等）追加到答题的作弊日志；引擎只记录不判断
// @Tags 答题
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   attemptId path string true "答题ID"
// @Param   body body CheatEventRequest true "信号内容"
// @Success 200 {object} util.Response "成功"
// @Failure 404 {object} util.Response "答题不存在"
// @Router /api/attempts/{attemptId}/cheat-events [post]
func (c *AttemptController) RecordCheatEvent(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	attemptID := ctx.Param("attemptId")

	var req CheatEventRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	// 学生只能给自己的答题上报；教师和管理员可给任意答题记录
	if claims.Role == model.Student {
		if _, err := c.AttemptService.Attempts.FindOwned(attemptID, claims.UserID); err != nil {
			util.NotFound(ctx)
			return
		}
	}

	if err := c.AttemptService.RecordCheatEvent(attemptID, claims.UserID, req.Message); err != nil {
		respondEngineError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"recorded": true})
}

