package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/repository"
	"quiz_platform_backend/internal/util"
	"quiz_platform_backend/pkg/logger"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const quizCacheKeyPrefix = "quiz:template:"
const quizCacheTTL = 10 * time.Minute

// QuizService owns quiz template authoring. The attempt engine reads
// templates through it via FindWithQuestions (read-through Redis cache),
// which keeps the full answer key — sanitization is the engine's job.
type QuizService struct {
	QuizRepo *repository.QuizRepository
	Redis    *redis.Client
}

func NewQuizService(quizRepo *repository.QuizRepository, rdb *redis.Client) *QuizService {
	return &QuizService{
		QuizRepo: quizRepo,
		Redis:    rdb,
	}
}

// FindWithQuestions loads the full quiz tree, serving from Redis when warm.
// Cache errors degrade to a direct database read.
func (s *QuizService) FindWithQuestions(id uint) (*model.Quiz, error) {
	ctx := context.Background()
	key := fmt.Sprintf("%s%d", quizCacheKeyPrefix, id)

	if s.Redis != nil {
		if val, err := s.Redis.Get(ctx, key).Result(); err == nil {
			var quiz model.Quiz
			if err := json.Unmarshal([]byte(val), &quiz); err == nil {
				return &quiz, nil
			}
		} else if err != redis.Nil {
			logger.Log.Warn("quiz cache read failed", zap.Uint("quizId", id), zap.Error(err))
		}
	}

	quiz, err := s.QuizRepo.FindWithQuestions(id)
	if err != nil {
		return nil, err
	}

	if s.Redis != nil {
		if data, err := json.Marshal(quiz); err == nil {
			if err := s.Redis.Set(ctx, key, data, quizCacheTTL).Err(); err != nil {
				logger.Log.Warn("quiz cache write failed", zap.Uint("quizId", id), zap.Error(err))
			}
		}
	}
	return quiz, nil
}

func (s *QuizService) invalidate(id uint) {
	if s.Redis == nil {
		return
	}
	key := fmt.Sprintf("%s%d", quizCacheKeyPrefix, id)
	if err := s.Redis.Del(context.Background(), key).Err(); err != nil {
		logger.Log.Warn("quiz cache invalidation failed", zap.Uint("quizId", id), zap.Error(err))
	}
}

func (s *QuizService) Create(quiz *model.Quiz) error {
	if !quiz.StartAt.IsZero() && !quiz.EndAt.IsZero() && !quiz.StartAt.Before(quiz.EndAt) {
		return errors.New("startAt must be before endAt")
	}
	return s.QuizRepo.Create(quiz)
}

func (s *QuizService) Get(id uint) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindWithQuestions(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	return quiz, nil
}

// GetForStudent is the browse view before an attempt exists: sanitized, and
// only for active quizzes.
func (s *QuizService) GetForStudent(id uint) (*QuizView, error) {
	quiz, err := s.FindWithQuestions(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	if !quiz.IsActive {
		return nil, util.ErrQuizUnavailable
	}
	view := SanitizeQuiz(quiz, "")
	// 考前预览不下发题目，只给元信息
	view.Questions = nil
	return view, nil
}

func (s *QuizService) Update(quiz *model.Quiz, actorID uint, actorRole model.UserRole) error {
	current, err := s.QuizRepo.FindByID(quiz.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrQuizNotFound
		}
		return err
	}
	if actorRole != model.Admin && current.CreatorID != actorID {
		return util.ErrPermissionDenied
	}
	quiz.CreatorID = current.CreatorID
	if err := s.QuizRepo.Update(quiz); err != nil {
		return err
	}
	s.invalidate(quiz.ID)
	return nil
}

func (s *QuizService) Delete(id uint, actorID uint, actorRole model.UserRole) error {
	current, err := s.QuizRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrQuizNotFound
		}
		return err
	}
	if actorRole != model.Admin && current.CreatorID != actorID {
		return util.ErrPermissionDenied
	}
	if err := s.QuizRepo.Delete(id); err != nil {
		return err
	}
	s.invalidate(id)
	return nil
}

func (s *QuizService) List(page, limit int, creatorID uint, onlyActive bool) ([]repository.QuizListRow, int64, error) {
	return s.QuizRepo.List(page, limit, creatorID, onlyActive)
}

func (s *QuizService) SetActive(id uint, active bool, actorID uint, actorRole model.UserRole) error {
	current, err := s.QuizRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrQuizNotFound
		}
		return err
	}
	if actorRole != model.Admin && current.CreatorID != actorID {
		return util.ErrPermissionDenied
	}
	if err := s.QuizRepo.SetActive(id, active); err != nil {
		return err
	}
	s.invalidate(id)
	return nil
}

func (s *QuizService) AddQuestion(question *model.Question) error {
	if err := validateQuestion(question); err != nil {
		return err
	}
	if _, err := s.QuizRepo.FindByID(question.QuizID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrQuizNotFound
		}
		return err
	}
	if err := s.QuizRepo.CreateQuestion(question); err != nil {
		return err
	}
	s.invalidate(question.QuizID)
	return nil
}

func (s *QuizService) UpdateQuestion(question *model.Question) error {
	if err := validateQuestion(question); err != nil {
		return err
	}
	current, err := s.QuizRepo.FindQuestionByID(question.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrQuestionNotFound
		}
		return err
	}
	question.QuizID = current.QuizID
	if err := s.QuizRepo.UpdateQuestion(question); err != nil {
		return err
	}
	s.invalidate(current.QuizID)
	return nil
}

func (s *QuizService) DeleteQuestion(id uint) error {
	current, err := s.QuizRepo.FindQuestionByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrQuestionNotFound
		}
		return err
	}
	if err := s.QuizRepo.DeleteQuestion(id); err != nil {
		return err
	}
	s.invalidate(current.QuizID)
	return nil
}

// validateQuestion enforces the answer-key shape per answer type before it
// reaches storage: choice types need a coherent option set, the rest need
// their scalar key.
func validateQuestion(q *model.Question) error {
	if q.Points < 0 {
		return errors.New("points must be >= 0")
	}
	switch q.AnswerType {
	case model.SingleChoice, model.ImageSelection:
		if countCorrect(q.Options) != 1 {
			return errors.New("single-choice questions need exactly one correct option")
		}
	case model.MultipleChoice:
		if countCorrect(q.Options) < 1 {
			return errors.New("multiple-choice questions need at least one correct option")
		}
	case model.TextAnswer:
		if q.CorrectAnswer == "" {
			return errors.New("text questions need a reference answer")
		}
		if len(q.Options) > 0 {
			return errors.New("text questions carry no options")
		}
	case model.TrueFalse:
		if len(q.Options) > 0 {
			return errors.New("true/false questions carry no options")
		}
	default:
		return fmt.Errorf("unknown answer type: %s", q.AnswerType)
	}
	return nil
}

func countCorrect(options []model.Option) int {
	n := 0
	for _, opt := range options {
		if opt.IsCorrect {
			n++
		}
	}
	return n
}
