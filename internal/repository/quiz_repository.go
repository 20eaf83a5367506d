package repository

import (
	"quiz_platform_backend/internal/model"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) Create(quiz *model.Quiz) error {
	return r.DB.Create(quiz).Error
}

func (r *QuizRepository) FindByID(id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.First(&quiz, id).Error
	return &quiz, err
}

// FindWithQuestions loads the quiz with its questions and options ordered the
// way they are presented. Used both by the authoring detail view and by the
// attempt engine (which snapshots total points from the loaded tree).
func (r *QuizRepository) FindWithQuestions(id uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("questions.`order` asc, questions.id asc")
		}).
		Preload("Questions.Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("question_options.`order` asc, question_options.id asc")
		}).
		First(&quiz, id).Error
	return &quiz, err
}

func (r *QuizRepository) Update(quiz *model.Quiz) error {
	return r.DB.Save(quiz).Error
}

func (r *QuizRepository) Delete(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var questionIDs []uint
		if err := tx.Model(&model.Question{}).Where("quiz_id = ?", id).Pluck("id", &questionIDs).Error; err != nil {
			return err
		}
		if len(questionIDs) > 0 {
			if err := tx.Where("question_id IN ?", questionIDs).Delete(&model.Option{}).Error; err != nil {
				return err
			}
			if err := tx.Where("quiz_id = ?", id).Delete(&model.Question{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&model.Quiz{}, id).Error
	})
}

type QuizListRow struct {
	model.Quiz
	QuestionCount int `json:"questionCount"`
	AttemptCount  int `json:"attemptCount"`
}

func (r *QuizRepository) List(page, limit int, creatorID uint, onlyActive bool) ([]QuizListRow, int64, error) {
	countQuery := r.DB.Model(&model.Quiz{})
	dbQuery := r.DB.Table("quizzes q").
		Select("q.*, " +
			"(SELECT COUNT(*) FROM questions qq WHERE qq.quiz_id = q.id AND qq.deleted_at IS NULL) as question_count, " +
			"(SELECT COUNT(*) FROM attempts a WHERE a.quiz_id = q.id AND a.deleted_at IS NULL) as attempt_count").
		Where("q.deleted_at IS NULL")

	if creatorID != 0 {
		countQuery = countQuery.Where("creator_id = ?", creatorID)
		dbQuery = dbQuery.Where("q.creator_id = ?", creatorID)
	}
	if onlyActive {
		countQuery = countQuery.Where("is_active = ?", true)
		dbQuery = dbQuery.Where("q.is_active = ?", true)
	}

	var total int64
	if err := countQuery.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []QuizListRow
	offset := (page - 1) * limit
	err := dbQuery.Order("q.created_at desc").Offset(offset).Limit(limit).Scan(&rows).Error
	return rows, total, err
}

func (r *QuizRepository) SetActive(id uint, active bool) error {
	return r.DB.Model(&model.Quiz{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}

func (r *QuizRepository) CreateQuestion(question *model.Question) error {
	return r.DB.Create(question).Error
}

func (r *QuizRepository) FindQuestionByID(id uint) (*model.Question, error) {
	var q model.Question
	err := r.DB.Preload("Options").First(&q, id).Error
	return &q, err
}

// UpdateQuestion replaces the question row and its option set in one
// transaction. Options are replaced wholesale so the answer key cannot drift.
func (r *QuizRepository) UpdateQuestion(question *model.Question) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", question.ID).Delete(&model.Option{}).Error; err != nil {
			return err
		}
		for i := range question.Options {
			question.Options[i].ID = 0
			question.Options[i].QuestionID = question.ID
		}
		return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(question).Error
	})
}

func (r *QuizRepository) DeleteQuestion(id uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", id).Delete(&model.Option{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Question{}, id).Error
	})
}
