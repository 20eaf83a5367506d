package repository

import (
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

// Create inserts a new attempt row. A duplicate on the
// (quiz_id, student_id, attempt_number) unique index surfaces as
// gorm.ErrDuplicatedKey; the service layer resolves that race by re-reading.
func (r *AttemptRepository) Create(attempt *model.Attempt) error {
	return r.DB.Create(attempt).Error
}

func (r *AttemptRepository) FindByID(id string) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.DB.First(&attempt, "id = ?", id).Error
	return &attempt, err
}

// FindOwned loads an attempt with its answers, scoped to the owning student.
// Not-found and not-owned are indistinguishable to the caller.
func (r *AttemptRepository) FindOwned(id string, studentID uint) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.DB.
		Preload("Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("attempt_answers.answered_at asc")
		}).
		Where("id = ? AND student_id = ?", id, studentID).
		First(&attempt).Error
	return &attempt, err
}

func (r *AttemptRepository) FindInProgress(quizID, studentID uint) (*model.Attempt, error) {
	var attempt model.Attempt
	err := r.DB.
		Where("quiz_id = ? AND student_id = ? AND status = ?", quizID, studentID, model.AttemptInProgress).
		Order("attempt_number desc").
		First(&attempt).Error
	return &attempt, err
}

func (r *AttemptRepository) CountForStudent(quizID, studentID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Attempt{}).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		Count(&count).Error
	return count, err
}

func (r *AttemptRepository) Save(attempt *model.Attempt) error {
	return r.DB.Save(attempt).Error
}

// SaveAnswer upserts one graded answer inside a transaction that locks the
// attempt row. The lock linearizes concurrent submissions to the same attempt
// and the in-tx status re-check closes the window against a concurrent
// complete/expire. questionIndex only ever moves the bookmark forward.
func (r *AttemptRepository) SaveAnswer(attemptID string, answer *model.AttemptAnswer, questionIndex int) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var attempt model.Attempt
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&attempt, "id = ?", attemptID).Error; err != nil {
			return err
		}
		if attempt.Status != model.AttemptInProgress {
			return util.ErrAttemptNotFound
		}

		answer.AttemptID = attemptID
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"answer", "is_correct", "points_awarded", "time_spent", "answered_at", "updated_at"}),
		}).Create(answer).Error; err != nil {
			return err
		}

		if questionIndex > attempt.CurrentQuestionIndex {
			if err := tx.Model(&model.Attempt{}).
				Where("id = ?", attemptID).
				Update("current_question_index", questionIndex).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Finalize moves an in-progress attempt to a terminal state. The row lock
// plus status guard make the transition happen at most once no matter how
// many requests race it. The final score is summed from the answer rows
// inside the same transaction, after the lock: an answer that committed
// before the lock is counted, and SaveAnswer's own lock keeps any later one
// out. Score and percentage are written back to the passed attempt.
func (r *AttemptRepository) Finalize(attempt *model.Attempt) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var current model.Attempt
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&current, "id = ?", attempt.ID).Error; err != nil {
			return err
		}
		if current.Status != model.AttemptInProgress {
			return util.ErrAttemptNotFound
		}

		var score int
		if err := tx.Model(&model.AttemptAnswer{}).
			Where("attempt_id = ?", attempt.ID).
			Select("COALESCE(SUM(points_awarded), 0)").
			Scan(&score).Error; err != nil {
			return err
		}
		attempt.Score = score
		attempt.Percentage = model.ComputePercentage(score, current.TotalPoints)

		return tx.Model(&model.Attempt{}).
			Where("id = ?", attempt.ID).
			Updates(map[string]interface{}{
				"status":             attempt.Status,
				"score":              attempt.Score,
				"percentage":         attempt.Percentage,
				"completed_at":       attempt.CompletedAt,
				"time_spent_seconds": attempt.TimeSpentSeconds,
			}).Error
	})
}

func (r *AttemptRepository) FindAnswers(attemptID string) ([]model.AttemptAnswer, error) {
	var answers []model.AttemptAnswer
	err := r.DB.Where("attempt_id = ?", attemptID).
		Order("answered_at asc").
		Find(&answers).Error
	return answers, err
}

func (r *AttemptRepository) AppendCheatLog(entry *model.CheatLog) error {
	return r.DB.Create(entry).Error
}

func (r *AttemptRepository) FindCheatLogs(attemptID string) ([]model.CheatLog, error) {
	var logs []model.CheatLog
	err := r.DB.Where("attempt_id = ?", attemptID).
		Order("logged_at asc").
		Find(&logs).Error
	return logs, err
}

type AttemptListRow struct {
	model.Attempt
	StudentName  string `json:"studentName"`
	StudentEmail string `json:"studentEmail"`
}

func (r *AttemptRepository) ListByQuiz(quizID uint, page, limit int, studentName string) ([]AttemptListRow, int64, error) {
	query := r.DB.Table("attempts a").
		Select("a.*, u.name as student_name, u.email as student_email").
		Joins("JOIN users u ON a.student_id = u.id").
		Where("a.quiz_id = ? AND a.deleted_at IS NULL", quizID)

	if studentName != "" {
		query = query.Where("u.name LIKE ?", "%"+studentName+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []AttemptListRow
	offset := (page - 1) * limit
	err := query.Order("a.created_at desc").Offset(offset).Limit(limit).Scan(&rows).Error
	return rows, total, err
}

func (r *AttemptRepository) ListForStudent(studentID uint, page, limit int) ([]model.Attempt, int64, error) {
	query := r.DB.Model(&model.Attempt{}).Where("student_id = ?", studentID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var attempts []model.Attempt
	offset := (page - 1) * limit
	err := query.Order("created_at desc").Offset(offset).Limit(limit).Find(&attempts).Error
	return attempts, total, err
}

type QuizAttemptStats struct {
	QuizID         uint    `json:"quizId"`
	TotalAttempts  int64   `json:"totalAttempts"`
	CompletedCount int64   `json:"completedCount"`
	ExpiredCount   int64   `json:"expiredCount"`
	AbandonedCount int64   `json:"abandonedCount"`
	AverageScore   float64 `json:"averageScore"`
	PassedCount    int64   `json:"passedCount"`
}

func (r *AttemptRepository) StatsByQuiz(quizID uint, passingPercent int) (*QuizAttemptStats, error) {
	stats := &QuizAttemptStats{QuizID: quizID}

	base := func() *gorm.DB {
		return r.DB.Model(&model.Attempt{}).Where("quiz_id = ?", quizID)
	}

	if err := base().Count(&stats.TotalAttempts).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", model.AttemptCompleted).Count(&stats.CompletedCount).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", model.AttemptTimeExpired).Count(&stats.ExpiredCount).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", model.AttemptAbandoned).Count(&stats.AbandonedCount).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ?", model.AttemptCompleted).
		Select("COALESCE(AVG(percentage), 0)").Scan(&stats.AverageScore).Error; err != nil {
		return nil, err
	}
	if err := base().Where("status = ? AND percentage >= ?", model.AttemptCompleted, passingPercent).
		Count(&stats.PassedCount).Error; err != nil {
		return nil, err
	}

	return stats, nil
}
