package controller

import (
	"errors"
	"fmt"
	"path/filepath"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/service"
	"quiz_platform_backend/internal/util"
	"quiz_platform_backend/pkg/logger"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type QuizController struct {
	QuizService         *service.QuizService
	StorageService      *service.StorageService
	UserService         *service.UserService
	NotificationService *service.NotificationService
}

func NewQuizController(quizService *service.QuizService, storageService *service.StorageService, userService *service.UserService, notificationService *service.NotificationService) *QuizController {
	return &QuizController{
		QuizService:         quizService,
		StorageService:      storageService,
		UserService:         userService,
		NotificationService: notificationService,
	}
}

func respondQuizError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrQuizNotFound), errors.Is(err, util.ErrQuestionNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrQuizUnavailable):
		util.Error(ctx, 403, "测验未开放")
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}

// swagger:model QuizRequest
type QuizRequest struct {
	Title               string    `json:"title" binding:"required"`
	Description         string    `json:"description"`
	CoverURL            string    `json:"coverUrl"`
	StartAt             time.Time `json:"startAt" binding:"required"`
	EndAt               time.Time `json:"endAt" binding:"required"`
	DurationMinutes     int       `json:"durationMinutes" binding:"required,min=1"`
	MaxAttempts         int       `json:"maxAttempts" binding:"min=0"`
	PassingScorePercent int       `json:"passingScorePercent" binding:"min=0,max=100"`
	ShowAnswersPolicy   string    `json:"showAnswersPolicy" binding:"omitempty,oneof=immediately after_end never"`
	ShowScorePolicy     string    `json:"showScorePolicy" binding:"omitempty,oneof=immediately after_end never"`
	AllowResume         *bool     `json:"allowResume"`
	ShuffleQuestions    bool      `json:"shuffleQuestions"`
	ShuffleOptions      bool      `json:"shuffleOptions"`
}

func (req *QuizRequest) apply(quiz *model.Quiz) {
	quiz.Title = req.Title
	quiz.Description = req.Description
	quiz.CoverURL = req.CoverURL
	quiz.StartAt = req.StartAt
	quiz.EndAt = req.EndAt
	quiz.DurationMinutes = req.DurationMinutes
	quiz.MaxAttempts = req.MaxAttempts
	quiz.PassingScorePercent = req.PassingScorePercent
	if req.ShowAnswersPolicy != "" {
		quiz.ShowAnswersPolicy = model.VisibilityPolicy(req.ShowAnswersPolicy)
	}
	if req.ShowScorePolicy != "" {
		quiz.ShowScorePolicy = model.VisibilityPolicy(req.ShowScorePolicy)
	}
	if req.AllowResume != nil {
		quiz.AllowResume = *req.AllowResume
	}
	quiz.ShuffleQuestions = req.ShuffleQuestions
	quiz.ShuffleOptions = req.ShuffleOptions
}

// CreateQuiz godoc
// @Summary 创建测验
// @Tags 测验管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body QuizRequest true "测验配置"
// @Success 201 {object} util.Response{data=model.Quiz} "创建成功"
// @Failure 400 {object} util.Response "请求参数错误"
// @Router /api/teacher/quizzes [post]
func (c *QuizController) CreateQuiz(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)

	var req QuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz := &model.Quiz{CreatorID: claims.UserID, AllowResume: true}
	req.apply(quiz)

	if err := c.QuizService.Create(quiz); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	util.Created(ctx, quiz)
}

// UpdateQuiz godoc
// @Summary 更新测验配置
// @Tags 测验管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验ID"
// @Param   body body QuizRequest true "测验配置"
// @Success 200 {object} util.Response{data=model.Quiz} "成功"
// @Failure 403 {object} util.Response "无权限"
// @Failure 404 {object} util.Response "测验不存在"
// @Router /api/teacher/quizzes/{id} [put]
func (c *QuizController) UpdateQuiz(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	var req QuizRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	quiz, err := c.QuizService.Get(uint(id))
	if err != nil {
		respondQuizError(ctx, err)
		return
	}
	req.apply(quiz)

	if err := c.QuizService.Update(quiz, claims.UserID, claims.Role); err != nil {
		respondQuizError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// GetQuiz godoc
// @Summary 测验详情（含答案，教师视角）
// @Tags 测验管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验ID"
// @Success 200 {object} util.Response{data=model.Quiz} "成功"
// @Failure 404 {object} util.Response "测验不存在"
// @Router /api/teacher/quizzes/{id} [get]
func (c *QuizController) GetQuiz(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	quiz, err := c.QuizService.Get(uint(id))
	if err != nil {
		respondQuizError(ctx, err)
		return
	}
	util.Success(ctx, quiz)
}

// ListQuizzes godoc
// @Summary 测验列表
// @Description 教师看自己创建的测验；带题目数与答题数
// @Tags 测验管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(10)
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/teacher/quizzes [get]
func (c *QuizController) ListQuizzes(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))

	creatorID := claims.UserID
	if claims.Role == model.Admin {
		creatorID = 0 // 管理员看全部
	}

	rows, total, err := c.QuizService.List(page, limit, creatorID, false)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: rows, Total: total, Page: page, Limit: limit})
}

// DeleteQuiz godoc
// @Summary 删除测验
// @Tags 测验管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验ID"
// @Success 200 {object} util.Response "成功"
// @Failure 404 {object} util.Response "测验不存在"
// @Router /api/teacher/quizzes/{id} [delete]
func (c *QuizController) DeleteQuiz(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	if err := c.QuizService.Delete(uint(id), claims.UserID, claims.Role); err != nil {
		respondQuizError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": true})
}

// swagger:model PublishRequest
type PublishRequest struct {
	Active bool `json:"active"`
}

// PublishQuiz godoc
// @Summary 发布/下线测验
// @Tags 测验管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验ID"
// @Param   body body PublishRequest true "发布状态"
// @Success 200 {object} util.Response "成功"
// @Router /api/teacher/quizzes/{id}/publish [post]
func (c *QuizController) PublishQuiz(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	var req PublishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.QuizService.SetActive(uint(id), req.Active, claims.UserID, claims.Role); err != nil {
		respondQuizError(ctx, err)
		return
	}

	// 上线时异步通知学生，失败不影响发布结果
	if req.Active {
		quiz, err := c.QuizService.Get(uint(id))
		if err == nil {
			go func() {
				ids, err := c.UserService.StudentIDs()
				if err != nil {
					logger.Log.Warn("failed to load notify targets", zap.Error(err))
					return
				}
				if err := c.NotificationService.NotifyQuizPublished(ids, quiz.Title); err != nil {
					logger.Log.Warn("failed to notify quiz publish", zap.Error(err))
				}
			}()
		}
	}
	util.Success(ctx, gin.H{"active": req.Active})
}

// swagger:model QuestionRequest
type QuestionRequest struct {
	AnswerType     string          `json:"answerType" binding:"required,oneof=single_choice multiple_choice image_selection text_answer true_false"`
	Content        string          `json:"content" binding:"required"`
	Points         int             `json:"points" binding:"min=0"`
	Order          int             `json:"order"`
	Options        []OptionRequest `json:"options"`
	CorrectAnswer  string          `json:"correctAnswer"`
	CorrectBoolean bool            `json:"correctBoolean"`
	Explanation    string          `json:"explanation"`
}

// swagger:model OptionRequest
type OptionRequest struct {
	Text      string `json:"text"`
	ImageURL  string `json:"imageUrl"`
	IsCorrect bool   `json:"isCorrect"`
	Order     int    `json:"order"`
}

func (req *QuestionRequest) toModel() *model.Question {
	q := &model.Question{
		AnswerType:     model.AnswerType(req.AnswerType),
		Content:        req.Content,
		Points:         req.Points,
		Order:          req.Order,
		CorrectAnswer:  req.CorrectAnswer,
		CorrectBoolean: req.CorrectBoolean,
		Explanation:    req.Explanation,
	}
	for _, opt := range req.Options {
		q.Options = append(q.Options, model.Option{
			Text:      opt.Text,
			ImageURL:  opt.ImageURL,
			IsCorrect: opt.IsCorrect,
			Order:     opt.Order,
		})
	}
	return q
}

// AddQuestion godoc
// @Summary 添加题目
// @Tags 测验管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path int true "测验ID"
// @Param   body body QuestionRequest true "题目内容"
// @Success 201 {object} util.Response{data=model.Question} "创建成功"
// @Failure 400 {object} util.Response "题型或答案配置不合法"
// @Router /api/teacher/quizzes/{id}/questions [post]
func (c *QuizController) AddQuestion(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	var req QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	question := req.toModel()
	question.QuizID = uint(id)

	if err := c.QuizService.AddQuestion(question); err != nil {
		if errors.Is(err, util.ErrQuizNotFound) {
			util.NotFound(ctx)
		} else {
			util.BadRequest(ctx, err.Error())
		}
		return
	}
	util.Created(ctx, question)
}

// UpdateQuestion godoc
// @Summary 更新题目
// @Tags 测验管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   questionId path int true "题目ID"
// @Param   body body QuestionRequest true "题目内容"
// @Success 200 {object} util.Response{data=model.Question} "成功"
// @Router /api/teacher/questions/{questionId} [put]
func (c *QuizController) UpdateQuestion(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("questionId"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid question id")
		return
	}

	var req QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	question := req.toModel()
	question.ID = uint(id)

	if err := c.QuizService.UpdateQuestion(question); err != nil {
		if errors.Is(err, util.ErrQuestionNotFound) {
			util.NotFound(ctx)
		} else {
			util.BadRequest(ctx, err.Error())
		}
		return
	}
	util.Success(ctx, question)
}

// DeleteQuestion godoc
// @Summary 删除题目
// @Tags 测验管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   questionId path int true "题目ID"
// @Success 200 {object} util.Response "成功"
// @Router /api/teacher/questions/{questionId} [delete]
func (c *QuizController) DeleteQuestion(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("questionId"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid question id")
		return
	}

	if err := c.QuizService.DeleteQuestion(uint(id)); err != nil {
		respondQuizError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": true})
}

// UploadImage godoc
// @Summary 上传题目/选项图片
// @Tags 测验管理
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   file formData file true "图片文件"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 400 {object} util.Response "文件不合法"
// @Router /api/teacher/uploads [post]
func (c *QuizController) UploadImage(ctx *gin.Context) {
	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}

	ext := filepath.Ext(file.Filename)
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
	default:
		util.BadRequest(ctx, "unsupported image type")
		return
	}

	src, err := file.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer src.Close()

	filename := fmt.Sprintf("quiz-images/%d%s", time.Now().UnixNano(), ext)
	url, err := c.StorageService.Upload(ctx.Request.Context(), filename, src, file.Size, file.Header.Get("Content-Type"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"url": url})
}

// ListAvailableQuizzes godoc
// @Summary 可参加的测验列表（学生视角）
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param   page query int false "页码" default(1)
// @Param   limit query int false "每页数量" default(10)
// @Success 200 {object} util.Response{data=util.PageResponse} "成功"
// @Router /api/quizzes [get]
func (c *QuizController) ListAvailableQuizzes(ctx *gin.Context) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "10"))

	rows, total, err := c.QuizService.List(page, limit, 0, true)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	// 学生列表不暴露题目与答案，只给元信息
	type item struct {
		ID                  uint      `json:"id"`
		Title               string    `json:"title"`
		Description         string    `json:"description"`
		CoverURL            string    `json:"coverUrl,omitempty"`
		StartAt             time.Time `json:"startAt"`
		EndAt               time.Time `json:"endAt"`
		DurationMinutes     int       `json:"durationMinutes"`
		MaxAttempts         int       `json:"maxAttempts"`
		PassingScorePercent int       `json:"passingScorePercent"`
		QuestionCount       int       `json:"questionCount"`
	}
	list := make([]item, 0, len(rows))
	for _, row := range rows {
		list = append(list, item{
			ID:                  row.ID,
			Title:               row.Title,
			Description:         row.Description,
			CoverURL:            row.CoverURL,
			StartAt:             row.StartAt,
			EndAt:               row.EndAt,
			DurationMinutes:     row.DurationMinutes,
			MaxAttempts:         row.MaxAttempts,
			PassingScorePercent: row.PassingScorePercent,
			QuestionCount:       row.QuestionCount,
		})
	}
	util.Success(ctx, util.PageResponse{List: list, Total: total, Page: page, Limit: limit})
}

// GetAvailableQuiz godoc
// @Summary 测验预览（学生视角，不含题目）
// @Tags 测验
// @Produce  json
// @Security ApiKeyAuth
// @Param   quizId path int true "测验ID"
// @Success 200 {object} util.Response{data=service.QuizView} "成功"
// @Failure 404 {object} util.Response "测验不存在"
// @Router /api/quizzes/{quizId} [get]
func (c *QuizController) GetAvailableQuiz(ctx *gin.Context) {
	id, err := strconv.ParseUint(ctx.Param("quizId"), 10, 64)
	if err != nil {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	view, err := c.QuizService.GetForStudent(uint(id))
	if err != nil {
		respondQuizError(ctx, err)
		return
	}
	util.Success(ctx, view)
}
