package app

import (
	"quiz_platform_backend/docs"
	"quiz_platform_backend/internal/middleware"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes() {
	docs.SwaggerInfo.BasePath = "/api"
	a.Router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	a.Router.GET("/metrics", monitoring.PrometheusHandler())

	a.registerPublicRoutes()

	authGroup := a.Router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(a.Config))
	authGroup.Use(middleware.ActivityMiddleware(a.repositories.user))

	a.registerStudentRoutes(authGroup)
	a.registerTeacherRoutes(authGroup)
	a.registerAdminRoutes(authGroup)
}

func (a *App) registerPublicRoutes() {
	a.Router.GET("/health", a.controllers.health.HealthCheck)

	public := a.Router.Group("/api")
	{
		public.POST("/register", a.controllers.auth.Register)
		public.POST("/login", a.controllers.auth.Login)
	}
}

// registerStudentRoutes 登录即可访问的路由（学生答题主链路）
func (a *App) registerStudentRoutes(rg *gin.RouterGroup) {
	rg.GET("/profile", a.controllers.auth.GetProfile)
	rg.PUT("/profile", a.controllers.user.UpdateProfile)
	rg.PUT("/profile/password", a.controllers.user.ChangePassword)
	rg.POST("/profile/avatar", a.controllers.user.UploadAvatar)

	// 测验浏览与开考
	rg.GET("/quizzes", a.controllers.quiz.ListAvailableQuizzes)
	rg.GET("/quizzes/:quizId", a.controllers.quiz.GetAvailableQuiz)
	rg.POST("/quizzes/:quizId/attempts", a.controllers.attempt.StartAttempt)

	// 答题生命周期
	rg.GET("/attempts", a.controllers.dashboard.ListMyAttempts)
	rg.GET("/attempts/:attemptId", a.controllers.attempt.GetAttemptState)
	rg.PUT("/attempts/:attemptId/answers", a.controllers.attempt.SubmitAnswer)
	rg.POST("/attempts/:attemptId/complete", a.controllers.attempt.CompleteAttempt)
	rg.GET("/attempts/:attemptId/result", a.controllers.attempt.GetAttemptResult)
	rg.POST("/attempts/:attemptId/cheat-events", a.controllers.attempt.RecordCheatEvent)

	// 通知
	rg.GET("/notifications", a.controllers.notification.ListNotifications)
	rg.GET("/notifications/unread-count", a.controllers.notification.CountUnread)
	rg.PUT("/notifications/read-all", a.controllers.notification.MarkAllNotificationsRead)
	rg.PUT("/notifications/:id/read", a.controllers.notification.MarkNotificationRead)
}

func (a *App) registerTeacherRoutes(rg *gin.RouterGroup) {
	teacher := rg.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.POST("/quizzes", a.controllers.quiz.CreateQuiz)
		teacher.GET("/quizzes", a.controllers.quiz.ListQuizzes)
		teacher.GET("/quizzes/:id", a.controllers.quiz.GetQuiz)
		teacher.PUT("/quizzes/:id", a.controllers.quiz.UpdateQuiz)
		teacher.DELETE("/quizzes/:id", a.controllers.quiz.DeleteQuiz)
		teacher.POST("/quizzes/:id/publish", a.controllers.quiz.PublishQuiz)
		teacher.POST("/quizzes/:id/questions", a.controllers.quiz.AddQuestion)

		teacher.PUT("/questions/:questionId", a.controllers.quiz.UpdateQuestion)
		teacher.DELETE("/questions/:questionId", a.controllers.quiz.DeleteQuestion)

		teacher.POST("/uploads", a.controllers.quiz.UploadImage)

		// 答题统计
		teacher.GET("/quizzes/:id/stats", a.controllers.dashboard.GetQuizStats)
		teacher.GET("/quizzes/:id/attempts", a.controllers.dashboard.ListQuizAttempts)
		teacher.GET("/attempts/:attemptId", a.controllers.dashboard.GetAttemptDetail)
	}
}

func (a *App) registerAdminRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	admin.Use(middleware.RoleMiddleware(model.Admin))
	{
		admin.GET("/users", a.controllers.user.ListUsers)
		admin.PUT("/users/:id/role", a.controllers.user.SetUserRole)
		admin.PUT("/users/:id/disabled", a.controllers.user.SetUserDisabled)
		admin.DELETE("/users/:id", a.controllers.user.DeleteUser)
	}
}
