package service

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz_platform_backend/internal/model"
)

func TestSanitizeQuizStripsAnswerKey(t *testing.T) {
	quiz := testQuiz()
	view := SanitizeQuiz(quiz, "attempt-1")

	data, err := json.Marshal(view)
	require.NoError(t, err)
	payload := strings.ToLower(string(data))
	assert.NotContains(t, payload, "iscorrect")
	assert.NotContains(t, payload, "correctanswer")
	assert.NotContains(t, payload, "correctboolean")
	assert.NotContains(t, payload, "explanation")

	assert.Equal(t, 3, view.QuestionCount)
	assert.Equal(t, 10, view.TotalPoints)
	assert.Len(t, view.Questions[0].Options, 3)
}

func TestSanitizeQuizShuffleIsStablePerAttempt(t *testing.T) {
	quiz := testQuiz()
	quiz.ShuffleQuestions = true
	quiz.ShuffleOptions = true

	first := SanitizeQuiz(quiz, "attempt-a")
	again := SanitizeQuiz(quiz, "attempt-a")
	assert.Equal(t, first, again, "a resumed attempt must see the same ordering")

	ids := func(v *QuizView) []uint {
		out := make([]uint, 0, len(v.Questions))
		for _, q := range v.Questions {
			out = append(out, q.ID)
		}
		return out
	}
	assert.ElementsMatch(t, ids(first), []uint{1, 2, 3})
}

func TestBuildReviewsRevealToggle(t *testing.T) {
	quiz := testQuiz()
	answers := []model.AttemptAnswer{
		{QuestionID: 1, Answer: `["101","102"]`, IsCorrect: true, PointsAwarded: 4},
		{QuestionID: 3, Answer: `"London"`, IsCorrect: false},
	}

	hidden := buildReviews(quiz, answers, false)
	require.Len(t, hidden, 2)
	for _, review := range hidden {
		assert.Empty(t, review.CorrectOptionIDs)
		assert.Empty(t, review.CorrectAnswer)
		assert.Nil(t, review.CorrectBoolean)
		assert.Empty(t, review.Explanation)
	}

	revealed := buildReviews(quiz, answers, true)
	byQuestion := map[uint]AnswerReview{}
	for _, review := range revealed {
		byQuestion[review.QuestionID] = review
	}
	assert.ElementsMatch(t, []uint{101, 102}, byQuestion[1].CorrectOptionIDs)
	assert.Equal(t, "Paris", byQuestion[3].CorrectAnswer)
}

func TestBuildReviewsSkipsDanglingAnswers(t *testing.T) {
	quiz := testQuiz()
	answers := []model.AttemptAnswer{{QuestionID: 999, Answer: `true`}}
	assert.Empty(t, buildReviews(quiz, answers, true))
}

func TestRevealAllowed(t *testing.T) {
	quiz := testQuiz()

	assert.True(t, revealAllowed(model.ShowImmediately, quiz, baseTime))
	assert.False(t, revealAllowed(model.ShowAfterEnd, quiz, baseTime))
	assert.True(t, revealAllowed(model.ShowAfterEnd, quiz, quiz.EndAt.Add(time.Second)))
	assert.False(t, revealAllowed(model.ShowNever, quiz, quiz.EndAt.Add(time.Hour)))
}
