package service

import (
	"fmt"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/repository"
)

type NotificationService struct {
	NotificationRepo *repository.NotificationRepository
}

func NewNotificationService(repo *repository.NotificationRepository) *NotificationService {
	return &NotificationService{NotificationRepo: repo}
}

func (s *NotificationService) List(userID uint, page, limit int, unreadOnly bool) ([]model.Notification, int64, error) {
	return s.NotificationRepo.ListForUser(userID, page, limit, unreadOnly)
}

func (s *NotificationService) MarkRead(id, userID uint) error {
	return s.NotificationRepo.MarkRead(id, userID)
}

func (s *NotificationService) MarkAllRead(userID uint) error {
	return s.NotificationRepo.MarkAllRead(userID)
}

func (s *NotificationService) CountUnread(userID uint) (int64, error) {
	return s.NotificationRepo.CountUnread(userID)
}

// NotifyQuizCompleted is fired by the attempt controller after a successful
// Complete. The engine itself does not emit notifications.
func (s *NotificationService) NotifyQuizCompleted(studentID uint, quizTitle string) error {
	return s.NotificationRepo.Create(&model.Notification{
		UserID:  studentID,
		Type:    "quiz_completed",
		Title:   "测验已提交",
		Content: fmt.Sprintf("你的测验《%s》已提交，可在成绩页查看结果。", quizTitle),
	})
}

// NotifyQuizPublished fans one notification out to each target student.
func (s *NotificationService) NotifyQuizPublished(studentIDs []uint, quizTitle string) error {
	ns := make([]model.Notification, 0, len(studentIDs))
	for _, id := range studentIDs {
		ns = append(ns, model.Notification{
			UserID:  id,
			Type:    "quiz_published",
			Title:   "新测验发布",
			Content: fmt.Sprintf("测验《%s》已发布，请在截止前完成。", quizTitle),
		})
	}
	return s.NotificationRepo.CreateBatch(ns)
}
