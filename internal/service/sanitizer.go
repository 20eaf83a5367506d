package service

import (
	"hash/fnv"
	"math/rand"
	"quiz_platform_backend/internal/model"
	"time"
)

// Delivery views strip everything a student could use to derive the answer
// key: option correctness flags, the reference text answer, the boolean key
// and explanations all stay server-side until results are revealed.

type OptionView struct {
	ID       uint   `json:"id"`
	Text     string `json:"text"`
	ImageURL string `json:"imageUrl,omitempty"`
}

type QuestionView struct {
	ID         uint             `json:"id"`
	AnswerType model.AnswerType `json:"answerType"`
	Content    string           `json:"content"`
	Points     int              `json:"points"`
	Options    []OptionView     `json:"options,omitempty"`
}

type QuizView struct {
	ID              uint           `json:"id"`
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	CoverURL        string         `json:"coverUrl,omitempty"`
	DurationMinutes int            `json:"durationMinutes"`
	TotalPoints     int            `json:"totalPoints"`
	QuestionCount   int            `json:"questionCount"`
	Questions       []QuestionView `json:"questions"`
}

// SanitizeQuiz builds the student-facing view of a quiz. Shuffling is seeded
// from the attempt id so a resumed attempt sees the same ordering it started
// with.
func SanitizeQuiz(quiz *model.Quiz, attemptID string) *QuizView {
	questions := make([]QuestionView, 0, len(quiz.Questions))
	for _, q := range quiz.Questions {
		qv := QuestionView{
			ID:         q.ID,
			AnswerType: q.AnswerType,
			Content:    q.Content,
			Points:     q.Points,
		}
		for _, opt := range q.Options {
			qv.Options = append(qv.Options, OptionView{
				ID:       opt.ID,
				Text:     opt.Text,
				ImageURL: opt.ImageURL,
			})
		}
		questions = append(questions, qv)
	}

	if quiz.ShuffleQuestions || quiz.ShuffleOptions {
		rng := rand.New(rand.NewSource(seedFor(attemptID)))
		if quiz.ShuffleQuestions {
			rng.Shuffle(len(questions), func(i, j int) {
				questions[i], questions[j] = questions[j], questions[i]
			})
		}
		if quiz.ShuffleOptions {
			for i := range questions {
				opts := questions[i].Options
				rng.Shuffle(len(opts), func(a, b int) {
					opts[a], opts[b] = opts[b], opts[a]
				})
			}
		}
	}

	return &QuizView{
		ID:              quiz.ID,
		Title:           quiz.Title,
		Description:     quiz.Description,
		CoverURL:        quiz.CoverURL,
		DurationMinutes: quiz.DurationMinutes,
		TotalPoints:     quiz.TotalPoints(),
		QuestionCount:   len(quiz.Questions),
		Questions:       questions,
	}
}

func seedFor(attemptID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(attemptID))
	return int64(h.Sum64())
}

// displayPosition returns the 1-based position of a question as the attempt
// presents it, so progress bookmarks line up with what the student sees.
// Matches the canonical order unless the quiz shuffles questions.
func displayPosition(quiz *model.Quiz, attemptID string, questionID uint) int {
	if !quiz.ShuffleQuestions {
		for i := range quiz.Questions {
			if quiz.Questions[i].ID == questionID {
				return i + 1
			}
		}
		return 0
	}
	for i, qv := range SanitizeQuiz(quiz, attemptID).Questions {
		if qv.ID == questionID {
			return i + 1
		}
	}
	return 0
}

// AnswerReview is one graded answer in a revealed result. Key material
// (correct options, reference answer, explanation) is only populated when the
// quiz's answer policy allows it at read time.
type AnswerReview struct {
	QuestionID    uint             `json:"questionId"`
	AnswerType    model.AnswerType `json:"answerType"`
	Content       string           `json:"content"`
	Answer        string           `json:"answer"`
	IsCorrect     bool             `json:"isCorrect"`
	PointsAwarded int              `json:"pointsAwarded"`

	CorrectOptionIDs []uint `json:"correctOptionIds,omitempty"`
	CorrectAnswer    string `json:"correctAnswer,omitempty"`
	CorrectBoolean   *bool  `json:"correctBoolean,omitempty"`
	Explanation      string `json:"explanation,omitempty"`
}

func buildReviews(quiz *model.Quiz, answers []model.AttemptAnswer, revealKey bool) []AnswerReview {
	byQuestion := make(map[uint]*model.Question, len(quiz.Questions))
	for i := range quiz.Questions {
		byQuestion[quiz.Questions[i].ID] = &quiz.Questions[i]
	}

	reviews := make([]AnswerReview, 0, len(answers))
	for _, ans := range answers {
		q, ok := byQuestion[ans.QuestionID]
		if !ok {
			continue
		}
		review := AnswerReview{
			QuestionID:    ans.QuestionID,
			AnswerType:    q.AnswerType,
			Content:       q.Content,
			Answer:        ans.Answer,
			IsCorrect:     ans.IsCorrect,
			PointsAwarded: ans.PointsAwarded,
		}
		if revealKey {
			switch q.AnswerType {
			case model.TextAnswer:
				review.CorrectAnswer = q.CorrectAnswer
			case model.TrueFalse:
				b := q.CorrectBoolean
				review.CorrectBoolean = &b
			default:
				for _, opt := range q.Options {
					if opt.IsCorrect {
						review.CorrectOptionIDs = append(review.CorrectOptionIDs, opt.ID)
					}
				}
			}
			review.Explanation = q.Explanation
		}
		reviews = append(reviews, review)
	}
	return reviews
}

// revealAllowed evaluates a visibility policy at a point in time.
func revealAllowed(policy model.VisibilityPolicy, quiz *model.Quiz, now time.Time) bool {
	switch policy {
	case model.ShowImmediately:
		return true
	case model.ShowAfterEnd:
		return now.After(quiz.EndAt)
	default:
		return false
	}
}
