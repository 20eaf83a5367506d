package model

type AnswerType string

const (
	SingleChoice   AnswerType = "single_choice"
	MultipleChoice AnswerType = "multiple_choice"
	ImageSelection AnswerType = "image_selection"
	TextAnswer     AnswerType = "text_answer"
	TrueFalse      AnswerType = "true_false"
)

// swagger:model Question
type Question struct {
	BaseModel

	QuizID     uint       `gorm:"index;type:bigint unsigned" json:"quizId"`
	AnswerType AnswerType `gorm:"size:50;not null" json:"answerType"`
	Content    string     `gorm:"type:text;not null" json:"content"` // 题干
	Points     int        `gorm:"default:0" json:"points"`
	Order      int        `gorm:"default:0" json:"order"`

	// Choice types carry Options; text_answer uses CorrectAnswer;
	// true_false uses CorrectBoolean.
	Options        []Option `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
	CorrectAnswer  string   `gorm:"type:text" json:"correctAnswer,omitempty"`
	CorrectBoolean bool     `gorm:"default:false" json:"correctBoolean,omitempty"`

	Explanation string `gorm:"type:text" json:"explanation,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}

// swagger:model Option
type Option struct {
	BaseModel

	QuestionID uint   `gorm:"index;type:bigint unsigned" json:"questionId"`
	Text       string `gorm:"type:text" json:"text"`
	ImageURL   string `gorm:"size:255" json:"imageUrl,omitempty"`
	IsCorrect  bool   `gorm:"default:false" json:"isCorrect"`
	Order      int    `gorm:"default:0" json:"order"`
}

func (Option) TableName() string {
	return "question_options"
}
