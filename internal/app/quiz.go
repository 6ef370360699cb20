package app

import (
	"context"
	"fmt"

	"anthem-kiosk/internal/domain"
	"go.uber.org/zap"
)

// QuizMode selects the quiz interaction. Auto-advance shows inline
// feedback and moves on after each answer without a grading call;
// review-and-submit records silently and grades once at the end.
type QuizMode int

const (
	QuizReviewSubmit QuizMode = iota
	QuizAutoAdvance
)

// ParseQuizMode maps the config string to a mode, defaulting to
// review-and-submit.
func ParseQuizMode(s string) QuizMode {
	if s == "auto" {
		return QuizAutoAdvance
	}
	return QuizReviewSubmit
}

// QuizFeedback is what the auto-advance mode shows after a selection.
type QuizFeedback struct {
	Selected      int  `json:"selected"`
	Correct       bool `json:"correct"`
	CorrectOption int  `json:"correctOption"`
	// Last means this was the final question and the wizard has moved on.
	Last bool `json:"last"`
}

// CurrentQuestion returns the question on display plus its position.
func (e *Engine) CurrentQuestion() (domain.Question, int, int, error) {
	questions := e.store.Questions()
	if e.store.JobID() == "" || len(questions) == 0 {
		return domain.Question{}, 0, 0, domain.ErrQuizNotLoaded
	}
	e.mu.Lock()
	idx := e.quizIndex
	e.mu.Unlock()
	if idx >= len(questions) {
		idx = len(questions) - 1
	}
	return questions[idx], idx, len(questions), nil
}

// Answer handles a selection in auto-advance mode: the pick is
// recorded, feedback is computed from the held key, and the wizard
// advances to the next question or, on the last one, leaves the quiz.
// No grading call is made in this mode, so the score stays unset.
func (e *Engine) Answer(option int) (QuizFeedback, error) {
	if e.opts.QuizMode != QuizAutoAdvance {
		return QuizFeedback{}, fmt.Errorf("answer: quiz is not in auto-advance mode")
	}
	questions := e.store.Questions()
	key := e.store.AnswerKey()
	if e.store.JobID() == "" || len(questions) == 0 {
		return QuizFeedback{}, domain.ErrQuizNotLoaded
	}

	e.mu.Lock()
	idx := e.quizIndex
	e.mu.Unlock()

	e.store.SetAnswer(idx, option)
	fb := QuizFeedback{Selected: option}
	if idx < len(key) {
		fb.CorrectOption = key[idx].Answer
		fb.Correct = option == key[idx].Answer
	}

	if idx >= len(questions)-1 {
		fb.Last = true
		e.finishQuiz()
		return fb, nil
	}
	e.mu.Lock()
	e.quizIndex = idx + 1
	e.mu.Unlock()
	return fb, nil
}

// RecordAnswer stores a pick in review-and-submit mode with no
// feedback; selections stay revisable until submission.
func (e *Engine) RecordAnswer(index, option int) error {
	questions := e.store.Questions()
	if e.store.JobID() == "" || len(questions) == 0 {
		return domain.ErrQuizNotLoaded
	}
	if index < 0 || index >= len(questions) {
		return fmt.Errorf("record answer: question %d out of range", index)
	}
	e.store.SetAnswer(index, option)
	return nil
}

// NextQuestion and PrevQuestion move the review-mode cursor.
func (e *Engine) NextQuestion() int {
	questions := e.store.Questions()
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.quizIndex < len(questions)-1 {
		e.quizIndex++
	}
	return e.quizIndex
}

func (e *Engine) PrevQuestion() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.quizIndex > 0 {
		e.quizIndex--
	}
	return e.quizIndex
}

// AllAnswered reports whether every slot holds a selection.
func (e *Engine) AllAnswered() bool {
	answers := e.store.Answers()
	if len(answers) == 0 {
		return false
	}
	for _, a := range answers {
		if a == nil {
			return false
		}
	}
	return true
}

// SubmitQuiz grades the review-mode answers in a single call, stores
// the score, and leaves the quiz. The held key is echoed back; the
// backend grades statelessly against it.
func (e *Engine) SubmitQuiz(ctx context.Context) (domain.QuizResult, error) {
	if e.opts.QuizMode != QuizReviewSubmit {
		return domain.QuizResult{}, fmt.Errorf("submit: quiz is not in review-and-submit mode")
	}
	jobID := e.store.JobID()
	if jobID == "" || len(e.store.Questions()) == 0 {
		return domain.QuizResult{}, domain.ErrQuizNotLoaded
	}
	if !e.AllAnswered() {
		return domain.QuizResult{}, domain.ErrUnanswered
	}

	result, err := e.backend.SubmitAnswers(ctx, jobID, e.store.AnswerKey(), e.store.Answers())
	if err != nil {
		return domain.QuizResult{}, err
	}
	e.store.SetScore(result)
	e.log.Info("quiz graded",
		zap.Int("total", result.Total),
		zap.Int("correct", result.Correct),
		zap.Int("score", result.Score))
	e.finishQuiz()
	return result, nil
}

// finishQuiz routes to the puzzle when enabled, otherwise straight to
// processing.
func (e *Engine) finishQuiz() {
	if e.opts.PuzzleEnabled {
		e.setStep(StepPuzzle)
		return
	}
	e.setStep(StepProcessing)
}
