package model

import "time"

// VisibilityPolicy controls when scores/answers are revealed to students.
type VisibilityPolicy string

const (
	ShowImmediately VisibilityPolicy = "immediately"
	ShowAfterEnd    VisibilityPolicy = "after_end"
	ShowNever       VisibilityPolicy = "never"
)

// swagger:model Quiz
type Quiz struct {
	BaseModel

	CreatorID   uint   `gorm:"index;type:bigint unsigned" json:"creatorId"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	CoverURL    string `gorm:"size:255" json:"coverUrl"`
	IsActive    bool   `gorm:"default:false;index" json:"isActive"`

	StartAt             time.Time        `json:"startAt"`
	EndAt               time.Time        `json:"endAt"`
	DurationMinutes     int              `gorm:"default:30" json:"durationMinutes"`
	MaxAttempts         int              `gorm:"default:1" json:"maxAttempts"`
	PassingScorePercent int              `gorm:"default:60" json:"passingScorePercent"`
	ShowAnswersPolicy   VisibilityPolicy `gorm:"size:20;default:'after_end'" json:"showAnswersPolicy"`
	ShowScorePolicy     VisibilityPolicy `gorm:"size:20;default:'immediately'" json:"showScorePolicy"`
	AllowResume         bool             `gorm:"default:true" json:"allowResume"`
	ShuffleQuestions    bool             `gorm:"default:false" json:"shuffleQuestions"`
	ShuffleOptions      bool             `gorm:"default:false" json:"shuffleOptions"`

	Questions []Question `gorm:"foreignKey:QuizID" json:"questions,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// TotalPoints is derived, never stored: attempts snapshot it at creation so
// later template edits do not change in-flight grading.
func (q *Quiz) TotalPoints() int {
	total := 0
	for _, question := range q.Questions {
		total += question.Points
	}
	return total
}

// WithinWindow reports whether now falls inside [StartAt, EndAt].
func (q *Quiz) WithinWindow(now time.Time) bool {
	return !now.Before(q.StartAt) && !now.After(q.EndAt)
}
