package util

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrEmailRegistered  = errors.New("该邮箱已被注册")
	ErrPermissionDenied = errors.New("permission denied")

	// Attempt engine taxonomy. ErrAttemptNotFound intentionally conflates
	// not-found, wrong-owner and terminal-state access so callers cannot
	// probe whether an attempt exists but belongs to someone else.
	ErrQuizNotFound              = errors.New("quiz not found")
	ErrQuizUnavailable           = errors.New("quiz unavailable: outside time window or inactive")
	ErrMaxAttemptsReached        = errors.New("max attempts reached")
	ErrResumeNotAllowed          = errors.New("resume not allowed for this quiz")
	ErrTimeExpired               = errors.New("attempt time expired")
	ErrAttemptNotFound           = errors.New("attempt not found")
	ErrQuestionNotFound          = errors.New("question not found")
	ErrConcurrentAttemptConflict = errors.New("concurrent attempt conflict")
)
