package service

import (
	"encoding/json"
	"errors"
	"quiz_platform_backend/internal/model"
	"quiz_platform_backend/internal/scoring"
	"quiz_platform_backend/internal/util"
	"quiz_platform_backend/pkg/monitoring"
	"time"

	"gorm.io/gorm"
)

// QuizProvider is the read-only view of quiz templates the attempt engine
// consumes. The loaded quiz must include answer keys; sanitization happens
// here, not in the store.
type QuizProvider interface {
	FindWithQuestions(id uint) (*model.Quiz, error)
}

// AttemptStore persists attempts. Create must surface a unique-index
// violation on (quiz_id, student_id, attempt_number) as gorm.ErrDuplicatedKey,
// and SaveAnswer/Finalize must linearize writes per attempt id. Finalize sums
// the recorded answers inside the same critical section that flips the status
// and writes score/percentage back to the passed attempt, so no answer can
// land between the sum and the terminal transition.
type AttemptStore interface {
	Create(attempt *model.Attempt) error
	FindByID(id string) (*model.Attempt, error)
	FindOwned(id string, studentID uint) (*model.Attempt, error)
	FindInProgress(quizID, studentID uint) (*model.Attempt, error)
	CountForStudent(quizID, studentID uint) (int64, error)
	SaveAnswer(attemptID string, answer *model.AttemptAnswer, questionIndex int) error
	Finalize(attempt *model.Attempt) error
	FindAnswers(attemptID string) ([]model.AttemptAnswer, error)
	AppendCheatLog(entry *model.CheatLog) error
}

// AttemptService owns the attempt lifecycle: Start, SubmitAnswer, Complete
// and lazy expiry are the only paths that mutate an attempt. Now is injectable
// so the timing rules are testable without sleeping.
type AttemptService struct {
	Quizzes  QuizProvider
	Attempts AttemptStore
	Now      func() time.Time
}

func NewAttemptService(quizzes QuizProvider, attempts AttemptStore) *AttemptService {
	return &AttemptService{
		Quizzes:  quizzes,
		Attempts: attempts,
		Now:      time.Now,
	}
}

type StartResult struct {
	Attempt *model.Attempt `json:"attempt"`
	Quiz    *QuizView      `json:"quiz"`
	Resumed bool           `json:"resumed"`
}

type SubmitResult struct {
	IsCorrect            bool `json:"isCorrect"`
	PointsAwarded        int  `json:"pointsAwarded"`
	CurrentQuestionIndex int  `json:"currentQuestionIndex"`
}

type CompletionResult struct {
	AttemptID        string              `json:"attemptId"`
	Status           model.AttemptStatus `json:"status"`
	CompletedAt      time.Time           `json:"completedAt"`
	TimeSpentSeconds int                 `json:"timeSpentSeconds"`

	// Nil when the quiz's visibility policy withholds them.
	Score      *int           `json:"score,omitempty"`
	Percentage *int           `json:"percentage,omitempty"`
	Passed     *bool          `json:"passed,omitempty"`
	Answers    []AnswerReview `json:"answers,omitempty"`
}

type AttemptState struct {
	Attempt          *model.Attempt        `json:"attempt"`
	Quiz             *QuizView             `json:"quiz"`
	RemainingSeconds int                   `json:"remainingSeconds"`
	Answers          []model.AttemptAnswer `json:"answers"`
}

// Start begins a new attempt or resumes the student's in-progress one.
func (s *AttemptService) Start(quizID, studentID uint) (*StartResult, error) {
	quiz, err := s.Quizzes.FindWithQuestions(quizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}

	now := s.Now()
	if !quiz.IsActive || !quiz.WithinWindow(now) {
		return nil, util.ErrQuizUnavailable
	}

	existing, err := s.Attempts.FindInProgress(quizID, studentID)
	if err == nil {
		if !quiz.AllowResume {
			return nil, util.ErrResumeNotAllowed
		}
		if existing.Expired(quiz.DurationMinutes, now) {
			if err := s.expire(existing, now); err != nil {
				return nil, err
			}
			return nil, util.ErrTimeExpired
		}
		monitoring.AttemptsStarted.WithLabelValues("resumed").Inc()
		return &StartResult{Attempt: existing, Quiz: SanitizeQuiz(quiz, existing.ID), Resumed: true}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return s.createAttempt(quiz, studentID, now, true)
}

// createAttempt runs the insert-or-conflict protocol: the unique index on
// (quiz_id, student_id, attempt_number) decides the race, a losing request
// re-reads the winner's attempt and returns it as a resume.
func (s *AttemptService) createAttempt(quiz *model.Quiz, studentID uint, now time.Time, retry bool) (*StartResult, error) {
	count, err := s.Attempts.CountForStudent(quiz.ID, studentID)
	if err != nil {
		return nil, err
	}
	if quiz.MaxAttempts > 0 && count >= int64(quiz.MaxAttempts) {
		return nil, util.ErrMaxAttemptsReached
	}

	attempt := &model.Attempt{
		QuizID:        quiz.ID,
		StudentID:     studentID,
		AttemptNumber: int(count) + 1,
		Status:        model.AttemptInProgress,
		TotalPoints:   quiz.TotalPoints(),
		StartedAt:     now,
	}

	err = s.Attempts.Create(attempt)
	if err == nil {
		monitoring.AttemptsStarted.WithLabelValues("new").Inc()
		return &StartResult{Attempt: attempt, Quiz: SanitizeQuiz(quiz, attempt.ID)}, nil
	}
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, err
	}

	// 另一个并发请求赢了插入：把赢家的 attempt 当作恢复返回
	winner, ferr := s.Attempts.FindInProgress(quiz.ID, studentID)
	if ferr == nil {
		monitoring.AttemptsStarted.WithLabelValues("resumed").Inc()
		return &StartResult{Attempt: winner, Quiz: SanitizeQuiz(quiz, winner.ID), Resumed: true}, nil
	}
	if !errors.Is(ferr, gorm.ErrRecordNotFound) {
		return nil, ferr
	}

	// 赢家的 attempt 在两次查询之间被终结了，重算序号再试一次
	if retry {
		return s.createAttempt(quiz, studentID, now, false)
	}
	return nil, util.ErrConcurrentAttemptConflict
}

// SubmitAnswer grades and upserts one answer. Resubmission overwrites and is
// always re-graded from the raw answer.
func (s *AttemptService) SubmitAnswer(attemptID string, studentID uint, questionID uint, rawAnswer json.RawMessage, timeSpent int) (*SubmitResult, error) {
	attempt, quiz, err := s.loadActive(attemptID, studentID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	if attempt.Expired(quiz.DurationMinutes, now) {
		if err := s.expire(attempt, now); err != nil {
			return nil, err
		}
		return nil, util.ErrTimeExpired
	}

	var question *model.Question
	for i := range quiz.Questions {
		if quiz.Questions[i].ID == questionID {
			question = &quiz.Questions[i]
			break
		}
	}
	if question == nil {
		return nil, util.ErrQuestionNotFound
	}

	verdict := scoring.Score(question, rawAnswer)

	answer := &model.AttemptAnswer{
		AttemptID:     attemptID,
		QuestionID:    questionID,
		Answer:        string(rawAnswer),
		IsCorrect:     verdict.IsCorrect,
		PointsAwarded: verdict.PointsAwarded,
		TimeSpent:     timeSpent,
		AnsweredAt:    now,
	}
	// 书签按学生看到的（本次答题洗牌后的）顺序推进
	pos := displayPosition(quiz, attemptID, questionID)
	if err := s.Attempts.SaveAnswer(attemptID, answer, pos); err != nil {
		return nil, err
	}
	monitoring.AnswerSubmissions.Inc()

	current := attempt.CurrentQuestionIndex
	if pos > current {
		current = pos
	}
	return &SubmitResult{
		IsCorrect:            verdict.IsCorrect,
		PointsAwarded:        verdict.PointsAwarded,
		CurrentQuestionIndex: current,
	}, nil
}

// Complete finishes an in-progress attempt. Score and per-question answers are
// included in the response only when the quiz reveals them immediately; the
// after-end read path is Result.
func (s *AttemptService) Complete(attemptID string, studentID uint) (*CompletionResult, error) {
	attempt, quiz, err := s.loadActive(attemptID, studentID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	if attempt.Expired(quiz.DurationMinutes, now) {
		if err := s.expire(attempt, now); err != nil {
			return nil, err
		}
		return nil, util.ErrTimeExpired
	}

	attempt.Status = model.AttemptCompleted
	attempt.CompletedAt = &now
	attempt.TimeSpentSeconds = int(now.Sub(attempt.StartedAt) / time.Second)

	// Finalize 在自己的临界区里汇总得分并回写；在这里先算会漏掉
	// 恰好在汇总和终结之间落库的答案
	if err := s.Attempts.Finalize(attempt); err != nil {
		return nil, err
	}
	monitoring.AttemptsFinished.WithLabelValues(string(model.AttemptCompleted)).Inc()

	result := &CompletionResult{
		AttemptID:        attempt.ID,
		Status:           attempt.Status,
		CompletedAt:      now,
		TimeSpentSeconds: attempt.TimeSpentSeconds,
	}

	if quiz.ShowScorePolicy == model.ShowImmediately {
		result.Score = &attempt.Score
		result.Percentage = &attempt.Percentage
		passed := attempt.Percentage >= quiz.PassingScorePercent
		result.Passed = &passed
	}
	if quiz.ShowAnswersPolicy == model.ShowImmediately {
		answers, err := s.Attempts.FindAnswers(attemptID)
		if err != nil {
			return nil, err
		}
		result.Answers = buildReviews(quiz, answers, true)
	}
	return result, nil
}

// State returns the resume view of an in-progress attempt: sanitized quiz,
// recorded answers and the remaining time.
func (s *AttemptService) State(attemptID string, studentID uint) (*AttemptState, error) {
	attempt, quiz, err := s.loadActive(attemptID, studentID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	if attempt.Expired(quiz.DurationMinutes, now) {
		if err := s.expire(attempt, now); err != nil {
			return nil, err
		}
		return nil, util.ErrTimeExpired
	}

	answers, err := s.Attempts.FindAnswers(attemptID)
	if err != nil {
		return nil, err
	}

	deadline := attempt.StartedAt.Add(time.Duration(quiz.DurationMinutes) * time.Minute)
	return &AttemptState{
		Attempt:          attempt,
		Quiz:             SanitizeQuiz(quiz, attempt.ID),
		RemainingSeconds: int(deadline.Sub(now) / time.Second),
		Answers:          answers,
	}, nil
}

// Result is the after-the-fact read path for a terminal attempt. Visibility
// policies are re-evaluated at read time, so "after_end" results open up once
// the quiz window has passed.
func (s *AttemptService) Result(attemptID string, studentID uint) (*CompletionResult, error) {
	attempt, err := s.Attempts.FindOwned(attemptID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}

	quiz, err := s.Quizzes.FindWithQuestions(attempt.QuizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}

	now := s.Now()
	if !attempt.Terminal() {
		if !attempt.Expired(quiz.DurationMinutes, now) {
			return nil, util.ErrAttemptNotFound
		}
		if err := s.expire(attempt, now); err != nil {
			return nil, err
		}
	}

	result := &CompletionResult{
		AttemptID:        attempt.ID,
		Status:           attempt.Status,
		TimeSpentSeconds: attempt.TimeSpentSeconds,
	}
	if attempt.CompletedAt != nil {
		result.CompletedAt = *attempt.CompletedAt
	}

	if revealAllowed(quiz.ShowScorePolicy, quiz, now) {
		result.Score = &attempt.Score
		result.Percentage = &attempt.Percentage
		passed := attempt.Percentage >= quiz.PassingScorePercent
		result.Passed = &passed
	}
	if revealAllowed(quiz.ShowAnswersPolicy, quiz, now) {
		answers, err := s.Attempts.FindAnswers(attemptID)
		if err != nil {
			return nil, err
		}
		result.Answers = buildReviews(quiz, answers, true)
	}
	return result, nil
}

// RecordCheatEvent appends an opaque entry to the attempt's cheat log. No
// state-machine effect; authorization is the caller's responsibility.
func (s *AttemptService) RecordCheatEvent(attemptID string, actorID uint, message string) error {
	if _, err := s.Attempts.FindByID(attemptID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrAttemptNotFound
		}
		return err
	}
	return s.Attempts.AppendCheatLog(&model.CheatLog{
		AttemptID: attemptID,
		ActorID:   actorID,
		Message:   message,
		LoggedAt:  s.Now(),
	})
}

// loadActive resolves an owned, in-progress attempt and its quiz template.
// Not-found, wrong-owner and terminal-state access all collapse into
// ErrAttemptNotFound.
func (s *AttemptService) loadActive(attemptID string, studentID uint) (*model.Attempt, *model.Quiz, error) {
	attempt, err := s.Attempts.FindOwned(attemptID, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, util.ErrAttemptNotFound
		}
		return nil, nil, err
	}
	if attempt.Terminal() {
		return nil, nil, util.ErrAttemptNotFound
	}

	quiz, err := s.Quizzes.FindWithQuestions(attempt.QuizID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, util.ErrQuizNotFound
		}
		return nil, nil, err
	}
	return attempt, quiz, nil
}

// expire transitions an overdue in-progress attempt to time-expired; Finalize
// scores whatever answers were recorded. Losing a finalize race to a
// concurrent request is fine: the attempt ended up terminal either way.
func (s *AttemptService) expire(attempt *model.Attempt, now time.Time) error {
	attempt.Status = model.AttemptTimeExpired
	completed := now
	attempt.CompletedAt = &completed
	attempt.TimeSpentSeconds = int(now.Sub(attempt.StartedAt) / time.Second)

	if err := s.Attempts.Finalize(attempt); err != nil {
		if errors.Is(err, util.ErrAttemptNotFound) {
			return nil
		}
		return err
	}
	monitoring.AttemptsFinished.WithLabelValues(string(model.AttemptTimeExpired)).Inc()
	return nil
}
