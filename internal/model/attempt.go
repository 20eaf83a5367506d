package model

import (
	"math"
	"time"
)

type AttemptStatus string

const (
	AttemptInProgress  AttemptStatus = "in_progress"
	AttemptCompleted   AttemptStatus = "completed"
	AttemptAbandoned   AttemptStatus = "abandoned"
	AttemptTimeExpired AttemptStatus = "time_expired"
)

// Attempt is one student's single timed run through a quiz. The composite
// unique index on (quiz_id, student_id, attempt_number) is what makes
// concurrent duplicate Start calls resolve at the storage layer rather than
// through an application-level mutex.
//
// swagger:model Attempt
type Attempt struct {
	UUIDBase

	QuizID        uint          `gorm:"uniqueIndex:idx_quiz_student_attempt;type:bigint unsigned" json:"quizId"`
	StudentID     uint          `gorm:"uniqueIndex:idx_quiz_student_attempt;index;type:bigint unsigned" json:"studentId"`
	AttemptNumber int           `gorm:"uniqueIndex:idx_quiz_student_attempt;not null" json:"attemptNumber"`
	Status        AttemptStatus `gorm:"size:20;default:'in_progress';index" json:"status"`

	Score       int `gorm:"default:0" json:"score"`
	TotalPoints int `gorm:"default:0" json:"totalPoints"` // snapshot of quiz total at creation
	Percentage  int `gorm:"default:0" json:"percentage"`

	StartedAt            time.Time  `json:"startedAt"`
	CompletedAt          *time.Time `json:"completedAt,omitempty"`
	TimeSpentSeconds     int        `gorm:"default:0" json:"timeSpentSeconds"`
	CurrentQuestionIndex int        `gorm:"default:0" json:"currentQuestionIndex"`

	Answers   []AttemptAnswer `gorm:"foreignKey:AttemptID" json:"answers,omitempty"`
	CheatLogs []CheatLog      `gorm:"foreignKey:AttemptID" json:"cheatLogs,omitempty"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// Terminal reports whether no further transitions are defined for the attempt.
func (a *Attempt) Terminal() bool {
	return a.Status != AttemptInProgress
}

// Expired reports whether the attempt has outlived the quiz duration at `now`.
func (a *Attempt) Expired(durationMinutes int, now time.Time) bool {
	return now.Sub(a.StartedAt) >= time.Duration(durationMinutes)*time.Minute
}

// ComputePercentage rounds half away from zero; a zero-point quiz scores 0 by
// convention (avoids division by zero).
func ComputePercentage(score, totalPoints int) int {
	if totalPoints <= 0 {
		return 0
	}
	return int(math.Round(float64(score) / float64(totalPoints) * 100))
}

// AttemptAnswer stores one student answer within an attempt. At most one row
// per question: resubmission overwrites and is always re-scored from the raw
// answer.
//
// swagger:model AttemptAnswer
type AttemptAnswer struct {
	BaseModel

	AttemptID     string    `gorm:"uniqueIndex:idx_attempt_question;type:varchar(36)" json:"attemptId"`
	QuestionID    uint      `gorm:"uniqueIndex:idx_attempt_question;type:bigint unsigned" json:"questionId"`
	Answer        string    `gorm:"type:json" json:"answer"` // raw submitted answer (JSON: string | []string | bool)
	IsCorrect     bool      `gorm:"default:false" json:"isCorrect"`
	PointsAwarded int       `gorm:"default:0" json:"pointsAwarded"`
	TimeSpent     int       `gorm:"default:0" json:"timeSpentSeconds"`
	AnsweredAt    time.Time `json:"answeredAt"`
}

func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}

// CheatLog is an append-only record handed to the engine by the UI layer.
// The engine records entries and never interprets them.
type CheatLog struct {
	BaseModel

	AttemptID string    `gorm:"index;type:varchar(36)" json:"attemptId"`
	ActorID   uint      `gorm:"type:bigint unsigned" json:"actorId"`
	Message   string    `gorm:"type:text" json:"message"`
	LoggedAt  time.Time `json:"loggedAt"`
}

func (CheatLog) TableName() string {
	return "attempt_cheat_logs"
}
