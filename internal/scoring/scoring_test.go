package scoring

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"quiz_platform_backend/internal/model"
)

func option(id uint, correct bool) model.Option {
	opt := model.Option{IsCorrect: correct}
	opt.ID = id
	return opt
}

func TestScoreTextAnswer(t *testing.T) {
	q := &model.Question{AnswerType: model.TextAnswer, CorrectAnswer: "Paris", Points: 5}

	cases := []struct {
		name    string
		raw     string
		correct bool
	}{
		{"exact", `"Paris"`, true},
		{"lowercase", `"paris"`, true},
		{"padded", `" Paris "`, true},
		{"uppercase", `"PARIS"`, true},
		{"trailing dot", `"Paris."`, false},
		{"empty", `""`, false},
		{"wrong shape array", `["Paris"]`, false},
		{"wrong shape bool", `true`, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Score(q, json.RawMessage(tc.raw))
			assert.Equal(t, tc.correct, res.IsCorrect)
			if tc.correct {
				assert.Equal(t, 5, res.PointsAwarded)
			} else {
				assert.Zero(t, res.PointsAwarded)
			}
		})
	}
}

func TestScoreSingleChoice(t *testing.T) {
	q := &model.Question{
		AnswerType: model.SingleChoice,
		Points:     3,
		Options:    []model.Option{option(10, false), option(11, true), option(12, false)},
	}

	assert.True(t, Score(q, json.RawMessage(`"11"`)).IsCorrect)
	assert.True(t, Score(q, json.RawMessage(`11`)).IsCorrect, "numeric id accepted")
	assert.False(t, Score(q, json.RawMessage(`"10"`)).IsCorrect)
	assert.False(t, Score(q, json.RawMessage(`["10","11"]`)).IsCorrect, "single choice rejects multi-select")
	assert.False(t, Score(q, json.RawMessage(`null`)).IsCorrect)
}

func TestScoreImageSelection(t *testing.T) {
	q := &model.Question{
		AnswerType: model.ImageSelection,
		Points:     2,
		Options:    []model.Option{option(7, true), option(8, false)},
	}

	res := Score(q, json.RawMessage(`"7"`))
	assert.True(t, res.IsCorrect)
	assert.Equal(t, 2, res.PointsAwarded)
	assert.False(t, Score(q, json.RawMessage(`"8"`)).IsCorrect)
}

func TestScoreMultipleChoiceExactSet(t *testing.T) {
	// correct = {A=1, B=2}
	q := &model.Question{
		AnswerType: model.MultipleChoice,
		Points:     4,
		Options:    []model.Option{option(1, true), option(2, true), option(3, false)},
	}

	cases := []struct {
		name    string
		raw     string
		correct bool
	}{
		{"exact order", `["1","2"]`, true},
		{"reversed order", `["2","1"]`, true},
		{"duplicates collapse", `["1","2","2"]`, true},
		{"subset", `["1"]`, false},
		{"superset", `["1","2","3"]`, false},
		{"empty", `[]`, false},
		{"single id shorthand", `"1"`, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.correct, Score(q, json.RawMessage(tc.raw)).IsCorrect)
		})
	}
}

func TestScoreTrueFalse(t *testing.T) {
	q := &model.Question{AnswerType: model.TrueFalse, CorrectBoolean: true, Points: 1}

	assert.True(t, Score(q, json.RawMessage(`true`)).IsCorrect)
	assert.True(t, Score(q, json.RawMessage(`"true"`)).IsCorrect)
	assert.True(t, Score(q, json.RawMessage(`"TRUE"`)).IsCorrect)
	assert.True(t, Score(q, json.RawMessage(`" True "`)).IsCorrect)
	assert.False(t, Score(q, json.RawMessage(`false`)).IsCorrect)
	assert.False(t, Score(q, json.RawMessage(`"yes"`)).IsCorrect, "unknown string is unanswered")
	assert.False(t, Score(q, json.RawMessage(`1`)).IsCorrect, "numbers are not booleans")
}

func TestScoreNeverPanics(t *testing.T) {
	qs := []*model.Question{
		{AnswerType: "essay", Points: 10},
		{AnswerType: model.MultipleChoice, Points: 10},
		{AnswerType: model.TextAnswer, Points: 10},
	}
	raws := []string{`{`, `{"selected":"A"}`, ``, `null`, `[1,{}]`}

	for _, q := range qs {
		for _, raw := range raws {
			res := Score(q, json.RawMessage(raw))
			assert.False(t, res.IsCorrect)
			assert.Zero(t, res.PointsAwarded)
		}
	}
}

func TestScoreDeterministic(t *testing.T) {
	q := &model.Question{
		AnswerType: model.MultipleChoice,
		Points:     6,
		Options:    []model.Option{option(1, true), option(2, true)},
	}
	raw := json.RawMessage(`["2","1"]`)

	first := Score(q, raw)
	second := Score(q, raw)
	assert.Equal(t, first, second)
	assert.True(t, first.IsCorrect)
	assert.Equal(t, 6, first.PointsAwarded)
}
