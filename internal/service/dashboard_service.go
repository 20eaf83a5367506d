package service

import (
	"errors"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/repository"
	"quiz_platform_backend/internal/util"

	"gorm.io/gorm"
)

type DashboardService struct {
	QuizRepo    *repository.QuizRepository
	AttemptRepo *repository.AttemptRepository
}

func NewDashboardService(quizRepo *repository.QuizRepository, attemptRepo *repository.AttemptRepository) *DashboardService {
	return &DashboardService{
		QuizRepo:    quizRepo,
		AttemptRepo: attemptRepo,
	}
}

// QuizStats aggregates attempt outcomes for one quiz, for the owning teacher.
func (s *DashboardService) QuizStats(quizID uint, actorID uint, actorRole model.UserRole) (*repository.QuizAttemptStats, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	if actorRole != model.Admin && quiz.CreatorID != actorID {
		return nil, util.ErrPermissionDenied
	}
	return s.AttemptRepo.StatsByQuiz(quizID, quiz.PassingScorePercent)
}

// QuizAttempts lists attempts on a quiz with student identity, for grading
// review.
func (s *DashboardService) QuizAttempts(quizID uint, actorID uint, actorRole model.UserRole, page, limit int, studentName string) ([]repository.AttemptListRow, int64, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, util.ErrQuizNotFound
		}
		return nil, 0, err
	}
	if actorRole != model.Admin && quiz.CreatorID != actorID {
		return nil, 0, util.ErrPermissionDenied
	}
	return s.AttemptRepo.ListByQuiz(quizID, page, limit, studentName)
}

// AttemptDetail is the teacher-side full view of one attempt: answers with
// the key revealed, plus the cheat log. Ownership of the quiz gates access.
type AttemptDetail struct {
	Attempt *model.Attempt   `json:"attempt"`
	Answers []AnswerReview   `json:"answers"`
	Cheats  []model.CheatLog `json:"cheatLogs"`
}

func (s *DashboardService) AttemptDetail(attemptID string, actorID uint, actorRole model.UserRole) (*AttemptDetail, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}

	quiz, err := s.QuizRepo.FindWithQuestions(attempt.QuizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	if actorRole != model.Admin && quiz.CreatorID != actorID {
		return nil, util.ErrAttemptNotFound
	}

	answers, err := s.AttemptRepo.FindAnswers(attemptID)
	if err != nil {
		return nil, err
	}
	cheats, err := s.AttemptRepo.FindCheatLogs(attemptID)
	if err != nil {
		return nil, err
	}

	return &AttemptDetail{
		Attempt: attempt,
		Answers: buildReviews(quiz, answers, true),
		Cheats:  cheats,
	}, nil
}

// StudentHistory lists a student's own attempts across quizzes.
func (s *DashboardService) StudentHistory(studentID uint, page, limit int) ([]model.Attempt, int64, error) {
	return s.AttemptRepo.ListForStudent(studentID, page, limit)
}
