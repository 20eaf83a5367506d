package service

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/util"
)

type memQuizzes struct {
	quizzes map[uint]*model.Quiz
}

func (m *memQuizzes) FindWithQuestions(id uint) (*model.Quiz, error) {
	quiz, ok := m.quizzes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return quiz, nil
}

// memAttempts mimics the storage contract the engine depends on: the unique
// index on (quiz, student, number), duplicate-key surfacing, and the
// in-progress guard inside SaveAnswer/Finalize.
type memAttempts struct {
	mu       sync.Mutex
	attempts map[string]*model.Attempt
	answers  map[string]map[uint]*model.AttemptAnswer
	cheats   map[string][]model.CheatLog

	// dupFails makes the next N Creates fail with a duplicate-key error
	// without inserting, to drive the conflict-retry path.
	dupFails int

	// beforeFinalize runs once just before Finalize enters its critical
	// section, so tests can land a write ahead of the terminal transition.
	beforeFinalize func()
}

func newMemAttempts() *memAttempts {
	return &memAttempts{
		attempts: map[string]*model.Attempt{},
		answers:  map[string]map[uint]*model.AttemptAnswer{},
		cheats:   map[string][]model.CheatLog{},
	}
}

func (m *memAttempts) Create(attempt *model.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dupFails > 0 {
		m.dupFails--
		return gorm.ErrDuplicatedKey
	}
	for _, a := range m.attempts {
		if a.QuizID == attempt.QuizID && a.StudentID == attempt.StudentID && a.AttemptNumber == attempt.AttemptNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	attempt.ID = model.GenerateUUID()
	stored := *attempt
	m.attempts[attempt.ID] = &stored
	return nil
}

func (m *memAttempts) FindByID(id string) (*model.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *memAttempts) FindOwned(id string, studentID uint) (*model.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[id]
	if !ok || a.StudentID != studentID {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *memAttempts) FindInProgress(quizID, studentID uint) (*model.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *model.Attempt
	for _, a := range m.attempts {
		if a.QuizID == quizID && a.StudentID == studentID && a.Status == model.AttemptInProgress {
			if found == nil || a.AttemptNumber > found.AttemptNumber {
				found = a
			}
		}
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *found
	return &copied, nil
}

func (m *memAttempts) CountForStudent(quizID, studentID uint) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, a := range m.attempts {
		if a.QuizID == quizID && a.StudentID == studentID {
			count++
		}
	}
	return count, nil
}

func (m *memAttempts) SaveAnswer(attemptID string, answer *model.AttemptAnswer, questionIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if a.Status != model.AttemptInProgress {
		return util.ErrAttemptNotFound
	}
	if m.answers[attemptID] == nil {
		m.answers[attemptID] = map[uint]*model.AttemptAnswer{}
	}
	copied := *answer
	m.answers[attemptID][answer.QuestionID] = &copied
	if questionIndex > a.CurrentQuestionIndex {
		a.CurrentQuestionIndex = questionIndex
	}
	return nil
}

// Finalize mirrors the real store: the score is summed from the answer rows
// inside the same critical section that flips the status, and written back.
func (m *memAttempts) Finalize(attempt *model.Attempt) error {
	if m.beforeFinalize != nil {
		hook := m.beforeFinalize
		m.beforeFinalize = nil
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attempt.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if a.Status != model.AttemptInProgress {
		return util.ErrAttemptNotFound
	}

	score := 0
	for _, ans := range m.answers[attempt.ID] {
		score += ans.PointsAwarded
	}
	attempt.Score = score
	attempt.Percentage = model.ComputePercentage(score, a.TotalPoints)

	a.Status = attempt.Status
	a.Score = attempt.Score
	a.Percentage = attempt.Percentage
	a.CompletedAt = attempt.CompletedAt
	a.TimeSpentSeconds = attempt.TimeSpentSeconds
	return nil
}

func (m *memAttempts) FindAnswers(attemptID string) ([]model.AttemptAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AttemptAnswer
	for _, ans := range m.answers[attemptID] {
		out = append(out, *ans)
	}
	return out, nil
}

func (m *memAttempts) AppendCheatLog(entry *model.CheatLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cheats[entry.AttemptID] = append(m.cheats[entry.AttemptID], *entry)
	return nil
}

var baseTime = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func choiceQuestion(id uint, answerType model.AnswerType, points int, correctIDs ...uint) model.Question {
	q := model.Question{AnswerType: answerType, Points: points}
	q.ID = id
	correct := map[uint]bool{}
	for _, cid := range correctIDs {
		correct[cid] = true
	}
	for optID := id*100 + 1; optID <= id*100+3; optID++ {
		opt := model.Option{QuestionID: id, IsCorrect: correct[optID]}
		opt.ID = optID
		q.Options = append(q.Options, opt)
	}
	return q
}

func testQuiz() *model.Quiz {
	quiz := &model.Quiz{
		Title:               "Unit 3 checkpoint",
		IsActive:            true,
		StartAt:             baseTime.Add(-time.Hour),
		EndAt:               baseTime.Add(2 * time.Hour),
		DurationMinutes:     30,
		MaxAttempts:         1,
		PassingScorePercent: 60,
		ShowAnswersPolicy:   model.ShowImmediately,
		ShowScorePolicy:     model.ShowImmediately,
		AllowResume:         true,
	}
	quiz.ID = 1

	// Q1 multiple-choice, correct = {101, 102}; Q2 true/false; Q3 text.
	q1 := choiceQuestion(1, model.MultipleChoice, 4, 101, 102)
	q2 := model.Question{AnswerType: model.TrueFalse, CorrectBoolean: true, Points: 3}
	q2.ID = 2
	q3 := model.Question{AnswerType: model.TextAnswer, CorrectAnswer: "Paris", Points: 3}
	q3.ID = 3
	quiz.Questions = []model.Question{q1, q2, q3}
	return quiz
}

func newEngine(quiz *model.Quiz) (*AttemptService, *memAttempts, *time.Time) {
	store := newMemAttempts()
	svc := NewAttemptService(&memQuizzes{quizzes: map[uint]*model.Quiz{quiz.ID: quiz}}, store)
	now := baseTime
	svc.Now = func() time.Time { return now }
	return svc, store, &now
}

func TestStartCreatesFirstAttempt(t *testing.T) {
	quiz := testQuiz()
	svc, store, _ := newEngine(quiz)

	res, err := svc.Start(1, 42)
	require.NoError(t, err)
	assert.False(t, res.Resumed)
	assert.Equal(t, 1, res.Attempt.AttemptNumber)
	assert.Equal(t, model.AttemptInProgress, res.Attempt.Status)
	assert.Equal(t, 10, res.Attempt.TotalPoints)
	assert.Equal(t, baseTime, res.Attempt.StartedAt)
	assert.Len(t, store.attempts, 1)

	require.NotNil(t, res.Quiz)
	assert.Equal(t, 3, res.Quiz.QuestionCount)
	assert.Equal(t, 10, res.Quiz.TotalPoints)
}

func TestStartResumeIsIdempotent(t *testing.T) {
	quiz := testQuiz()
	svc, store, _ := newEngine(quiz)

	first, err := svc.Start(1, 42)
	require.NoError(t, err)

	second, err := svc.Start(1, 42)
	require.NoError(t, err)
	assert.True(t, second.Resumed)
	assert.Equal(t, first.Attempt.ID, second.Attempt.ID)
	assert.Len(t, store.attempts, 1)
}

func TestStartResumeNotAllowed(t *testing.T) {
	quiz := testQuiz()
	quiz.AllowResume = false
	svc, _, _ := newEngine(quiz)

	_, err := svc.Start(1, 42)
	require.NoError(t, err)

	_, err = svc.Start(1, 42)
	assert.ErrorIs(t, err, util.ErrResumeNotAllowed)
}

func TestStartUnavailableQuiz(t *testing.T) {
	inactive := testQuiz()
	inactive.IsActive = false
	svc, _, _ := newEngine(inactive)
	_, err := svc.Start(1, 42)
	assert.ErrorIs(t, err, util.ErrQuizUnavailable)

	closed := testQuiz()
	closed.EndAt = baseTime.Add(-time.Minute)
	svc, _, _ = newEngine(closed)
	_, err = svc.Start(1, 42)
	assert.ErrorIs(t, err, util.ErrQuizUnavailable)

	svc, _, _ = newEngine(testQuiz())
	_, err = svc.Start(99, 42)
	assert.ErrorIs(t, err, util.ErrQuizNotFound)
}

func TestStartExpiresOverdueAttempt(t *testing.T) {
	quiz := testQuiz()
	svc, store, now := newEngine(quiz)

	first, err := svc.Start(1, 42)
	require.NoError(t, err)

	*now = baseTime.Add(31 * time.Minute)
	_, err = svc.Start(1, 42)
	assert.ErrorIs(t, err, util.ErrTimeExpired)
	assert.Equal(t, model.AttemptTimeExpired, store.attempts[first.Attempt.ID].Status)

	// The expired attempt consumed the only allowed slot.
	_, err = svc.Start(1, 42)
	assert.ErrorIs(t, err, util.ErrMaxAttemptsReached)
}

func TestStartDuplicateKeyReturnsWinner(t *testing.T) {
	quiz := testQuiz()
	svc, store, _ := newEngine(quiz)

	// Seed the winner as if a concurrent request inserted first.
	winner := &model.Attempt{
		QuizID: 1, StudentID: 42, AttemptNumber: 1,
		Status: model.AttemptInProgress, TotalPoints: 10, StartedAt: baseTime,
	}
	require.NoError(t, store.Create(winner))
	store.dupFails = 1

	res, err := svc.Start(1, 42)
	require.NoError(t, err)
	assert.True(t, res.Resumed)
	assert.Equal(t, winner.ID, res.Attempt.ID)
	assert.Len(t, store.attempts, 1)
}

func TestStartConflictRetriesOnce(t *testing.T) {
	quiz := testQuiz()
	quiz.MaxAttempts = 3
	svc, store, _ := newEngine(quiz)

	// Duplicate with no surviving in-progress attempt: one recount-and-retry.
	store.dupFails = 1
	res, err := svc.Start(1, 42)
	require.NoError(t, err)
	assert.False(t, res.Resumed)
	assert.Equal(t, 1, res.Attempt.AttemptNumber)

	// Two consecutive duplicates with nothing to resume is the bug-signal
	// class.
	store.dupFails = 2
	_, err = svc.Start(1, 43)
	assert.ErrorIs(t, err, util.ErrConcurrentAttemptConflict)
}

func TestStartSingleInProgressUnderConcurrency(t *testing.T) {
	quiz := testQuiz()
	svc, store, _ := newEngine(quiz)

	const n = 16
	results := make([]*StartResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Start(1, 42)
		}(i)
	}
	wg.Wait()

	assert.Len(t, store.attempts, 1)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Attempt.ID, results[i].Attempt.ID)
	}
}

func TestSubmitAnswerGradesAndAdvances(t *testing.T) {
	quiz := testQuiz()
	svc, _, _ := newEngine(quiz)

	started, err := svc.Start(1, 42)
	require.NoError(t, err)
	id := started.Attempt.ID

	// Q2 is at index 1, so the bookmark moves to 2.
	res, err := svc.SubmitAnswer(id, 42, 2, json.RawMessage(`true`), 20)
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, 3, res.PointsAwarded)
	assert.Equal(t, 2, res.CurrentQuestionIndex)

	// Going back to Q1 never moves the bookmark backwards.
	res, err = svc.SubmitAnswer(id, 42, 1, json.RawMessage(`["102","101"]`), 30)
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, 2, res.CurrentQuestionIndex)
}

func TestSubmitAnswerResubmissionRegrades(t *testing.T) {
	quiz := testQuiz()
	svc, store, _ := newEngine(quiz)

	started, err := svc.Start(1, 42)
	require.NoError(t, err)
	id := started.Attempt.ID

	res, err := svc.SubmitAnswer(id, 42, 3, json.RawMessage(`"London"`), 10)
	require.NoError(t, err)
	assert.False(t, res.IsCorrect)

	res, err = svc.SubmitAnswer(id, 42, 3, json.RawMessage(`" PARIS "`), 10)
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, 3, res.PointsAwarded)

	assert.Len(t, store.answers[id], 1, "one answer row per question, last write wins")
	assert.True(t, store.answers[id][3].IsCorrect)
}

func TestSubmitAnswerErrors(t *testing.T) {
	quiz := testQuiz()
	svc, _, _ := newEngine(quiz)

	started, err := svc.Start(1, 42)
	require.NoError(t, err)
	id := started.Attempt.ID

	_, err = svc.SubmitAnswer("nope", 42, 1, json.RawMessage(`true`), 0)
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)

	_, err = svc.SubmitAnswer(id, 7, 1, json.RawMessage(`true`), 0)
	assert.ErrorIs(t, err, util.ErrAttemptNotFound, "wrong owner is indistinguishable from missing")

	_, err = svc.SubmitAnswer(id, 42, 999, json.RawMessage(`true`), 0)
	assert.ErrorIs(t, err, util.ErrQuestionNotFound)
}

func TestSubmitAnswerBookmarkFollowsShuffledOrder(t *testing.T) {
	quiz := testQuiz()
	quiz.ShuffleQuestions = true
	svc, _, _ := newEngine(quiz)

	started, err := svc.Start(1, 42)
	require.NoError(t, err)
	id := started.Attempt.ID

	raws := map[uint]json.RawMessage{
		1: json.RawMessage(`["101","102"]`),
		2: json.RawMessage(`true`),
		3: json.RawMessage(`"Paris"`),
	}

	// 按学生看到的洗牌顺序依次作答，书签必须跟着这个顺序走
	for i, qv := range started.Quiz.Questions {
		res, err := svc.SubmitAnswer(id, 42, qv.ID, raws[qv.ID], 5)
		require.NoError(t, err)
		assert.Equal(t, i+1, res.CurrentQuestionIndex)
	}
}

func TestSubmitAnswerExpiryPrecedence(t *testing.T) {
	quiz := testQuiz()
	svc, store, now := newEngine(quiz)

	started, err := svc.Start(1, 42)
	require.NoError(t, err)
	id := started.Attempt.ID

	_, err = svc.SubmitAnswer(id, 42, 2, json.RawMessage(`true`), 20)
	require.NoError(t, err)

	// A correct answer after the deadline is still rejected.
	*now = baseTime.Add(31 * time.Minute)
	_, err = svc.SubmitAnswer(id, 42, 1, json.RawMessage(`["101","102"]`), 10)
	assert.ErrorIs(t, err, util.ErrTimeExpired)

	stored := store.attempts[id]
	assert.Equal(t, model.AttemptTimeExpired, stored.Status)
	assert.Equal(t, 3, stored.Score, "answers recorded before expiry still count")
	assert.Equal(t, 30, stored.Percentage)
}

func TestCompleteScoresAndReveals(t *testing.T) {
	quiz := testQuiz()
	svc, store, now := newEngine(quiz)

	started, err := svc.Start(1, 42)
	require.NoError(t, err)
	id := started.Attempt.ID

	_, err = svc.SubmitAnswer(id, 42, 1, json.RawMessage(`["101","102"]`), 60)
	require.NoError(t, err)
	_, err = svc.SubmitAnswer(id, 42, 2, json.RawMessage(`false`), 30)
	require.NoError(t, err)

	*now = baseTime.Add(10 * time.Minute)
	result, err := svc.Complete(id, 42)
	require.NoError(t, err)

	assert.Equal(t, model.AttemptCompleted, result.Status)
	require.NotNil(t, result.Score)
	assert.Equal(t, 4, *result.Score)
	require.NotNil(t, result.Percentage)
	assert.Equal(t, 40, *result.Percentage, "4/10 rounds to 40")
	require.NotNil(t, result.Passed)
	assert.False(t, *result.Passed)
	assert.Equal(t, 600, result.TimeSpentSeconds)
	assert.Len(t, result.Answers, 2)
	for _, review := range result.Answers {
		if review.QuestionID == 1 {
			assert.ElementsMatch(t, []uint{101, 102}, review.CorrectOptionIDs)
		}
	}

	assert.Equal(t, model.AttemptCompleted, store.attempts[id].Status)

	// A terminal attempt accepts no further transitions.
	_, err = svc.Complete(id, 42)
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)
	_, err = svc.SubmitAnswer(id, 42, 2, json.RawMessage(`true`), 5)
	assert.ErrorIs(t, err, util.ErrAttemptNotFound)
}

func TestCompleteCountsAnswerLandingBeforeFinalize(t *testing.T) {
	quiz := testQuiz()
	svc, store, _ := newEngine(quiz)

	started, err := svc.Start(1, 42)
	require.NoError(t, err)
	id := started.Attempt.ID

	_, err = svc.SubmitAnswer(id, 42, 1, json.RawMessage(`["101","102"]`), 60)
	require.NoError(t, err)

	// 另一个标签页的答案在交卷开始之后、终结临界区之前落库：
	// 它必须计入最终得分
	store.beforeFinalize = func() {
		_, err := svc.SubmitAnswer(id, 42, 2, json.RawMessage(`true`), 5)
		require.NoError(t, err)
	}

	result, err := svc.Complete(id, 42)
	require.NoError(t, err)
	require.NotNil(t, result.Score)
	assert.Equal(t, 7, *result.Score)
	assert.Equal(t, 7, store.attempts[id].Score)
	assert.Equal(t, 70, store.attempts[id].Percentage)
	assert.Len(t, store.answers[id], 2)
}

func TestCompleteHidesScoreUntilPolicyAllows(t *testing.T) {
	quiz := testQuiz()
	quiz.ShowScorePolicy = model.ShowAfterEnd
	quiz.ShowAnswersPolicy = model.ShowNever
	svc, _, now := newEngine(quiz)

	started, err := svc.Start(1, 42)
	require.NoError(t, err)
	id := started.Attempt.ID

	_, err = svc.SubmitAnswer(id, 42, 2, json.RawMessage(`true`), 30)
	require.NoError(t, err)

	result, err := svc.Complete(id, 42)
	require.NoError(t, err)
	assert.Nil(t, result.Score)
	assert.Nil(t, result.Percentage)
	assert.Nil(t, result.Answers)

	// Before the window closes the read path stays gated.
	viewed, err := svc.Result(id, 42)
	require.NoError(t, err)
	assert.Nil(t, viewed.Score)

	// After endAt the after_end score opens up; answers stay hidden forever.
	*now = quiz.EndAt.Add(time.Minute)
	viewed, err = svc.Result(id, 42)
	require.NoError(t, err)
	require.NotNil(t, viewed.Score)
	assert.Equal(t, 3, *viewed.Score)
	assert.Nil(t, viewed.Answers)
}

func TestCompleteZeroPointQuiz(t *testing.T) {
	quiz := testQuiz()
	for i := range quiz.Questions {
		quiz.Questions[i].Points = 0
	}
	svc, _, _ := newEngine(quiz)

	started, err := svc.Start(1, 42)
	require.NoError(t, err)

	result, err := svc.Complete(started.Attempt.ID, 42)
	require.NoError(t, err)
	require.NotNil(t, result.Percentage)
	assert.Equal(t, 0, *result.Percentage, "zero-point quiz scores 0 by convention")
}

func TestStateReturnsResumeView(t *testing.T) {
	quiz := testQuiz()
	svc, _, now := newEngine(quiz)

	started, err := svc.Start(1, 42)
	require.NoError(t, err)
	id := started.Attempt.ID

	_, err = svc.SubmitAnswer(id, 42, 2, json.RawMessage(`true`), 20)
	require.NoError(t, err)

	*now = baseTime.Add(10 * time.Minute)
	state, err := svc.State(id, 42)
	require.NoError(t, err)
	assert.Equal(t, 20*60, state.RemainingSeconds)
	assert.Len(t, state.Answers, 1)
	require.NotNil(t, state.Quiz)
	assert.Len(t, state.Quiz.Questions, 3)
}

func TestRecordCheatEvent(t *testing.T) {
	quiz := testQuiz()
	svc, store, _ := newEngine(quiz)

	started, err := svc.Start(1, 42)
	require.NoError(t, err)
	id := started.Attempt.ID

	require.NoError(t, svc.RecordCheatEvent(id, 42, "tab switched"))
	require.NoError(t, svc.RecordCheatEvent(id, 7, "proctor flag"))
	assert.Len(t, store.cheats[id], 2)
	assert.Equal(t, "tab switched", store.cheats[id][0].Message)

	assert.ErrorIs(t, svc.RecordCheatEvent("nope", 42, "x"), util.ErrAttemptNotFound)
}

// Scenario from the product brief: 30-minute quiz, one allowed attempt,
// multiple-choice answered in reverse order, then expiry consumes the slot.
func TestFullLifecycleScenario(t *testing.T) {
	quiz := testQuiz()
	svc, _, now := newEngine(quiz)

	started, err := svc.Start(1, 42)
	require.NoError(t, err)
	assert.Equal(t, 1, started.Attempt.AttemptNumber)
	id := started.Attempt.ID

	res, err := svc.SubmitAnswer(id, 42, 1, json.RawMessage(`["102","101"]`), 45)
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
	assert.Equal(t, 4, res.PointsAwarded)

	resumed, err := svc.Start(1, 42)
	require.NoError(t, err)
	assert.True(t, resumed.Resumed)
	assert.Equal(t, id, resumed.Attempt.ID)

	*now = baseTime.Add(31 * time.Minute)
	_, err = svc.SubmitAnswer(id, 42, 2, json.RawMessage(`true`), 5)
	assert.ErrorIs(t, err, util.ErrTimeExpired)

	_, err = svc.Start(1, 42)
	assert.ErrorIs(t, err, util.ErrMaxAttemptsReached)
}
