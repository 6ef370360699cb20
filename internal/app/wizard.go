// Package app implements the kiosk wizard: a fixed sequence of screens
// that takes a visitor from avatar selection to the QR handoff of their
// generated anthem video. Screens read and write the shared state store
// and talk to the generation backend through the interfaces below.
package app

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"time"

	"anthem-kiosk/internal/domain"
	"anthem-kiosk/internal/state"
	"go.uber.org/zap"
)

// Backend is the slice of the generation service the wizard uses.
type Backend interface {
	CreateJob(ctx context.Context, image []byte, avatar domain.Avatar, phone string) (string, error)
	Status(ctx context.Context, jobID string) (domain.Job, error)
	SubmitAnswers(ctx context.Context, jobID string, key []domain.QuestionWithAnswer, answers []*int) (domain.QuizResult, error)
	QRCodeURL(jobID string) string
	DownloadQRCode(ctx context.Context, jobID string, w io.Writer) error
	Poll(ctx context.Context, jobID string, interval time.Duration, onUpdate func(domain.Job)) (domain.Job, error)
}

// QuestionSource fetches seeded question sets.
type QuestionSource interface {
	Questions(ctx context.Context, count int, seed string) ([]domain.Question, []domain.QuestionWithAnswer, error)
}

// Archiver records finished sessions for reporting.
type Archiver interface {
	Record(ctx context.Context, rec domain.SessionRecord) error
}

// Step identifies a wizard screen. The zero value is the welcome
// screen the kiosk idles on.
type Step int

const (
	StepWelcome Step = iota
	StepAvatar
	StepCamera
	StepQuiz
	StepPuzzle
	StepProcessing
	StepReview
	StepQR
)

func (s Step) String() string {
	switch s {
	case StepWelcome:
		return "welcome"
	case StepAvatar:
		return "avatar"
	case StepCamera:
		return "camera"
	case StepQuiz:
		return "quiz"
	case StepPuzzle:
		return "puzzle"
	case StepProcessing:
		return "processing"
	case StepReview:
		return "review"
	case StepQR:
		return "qr"
	}
	return "unknown"
}

// Options tune the wizard flow.
type Options struct {
	QuestionCount int
	PollInterval  time.Duration
	QuizMode      QuizMode
	// PuzzleEnabled routes quiz completion through the flag puzzle
	// before processing instead of jumping straight there.
	PuzzleEnabled bool
	// CompleteDelay is the pause on the processing screen after the job
	// completes, before advancing to review.
	CompleteDelay time.Duration
	Rand          *rand.Rand
}

func (o Options) withDefaults() Options {
	if o.QuestionCount <= 0 {
		o.QuestionCount = 10
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 2 * time.Second
	}
	if o.CompleteDelay < 0 {
		o.CompleteDelay = 0
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return o
}

// Engine drives the wizard. One engine per kiosk; all mutation happens
// from the single active screen, the mutex guards the panel transport
// reading state concurrently.
type Engine struct {
	store     *state.Store
	backend   Backend
	questions QuestionSource
	archive   Archiver
	camera    FrameSource
	log       *zap.Logger
	opts      Options

	mu        sync.Mutex
	step      Step
	quizIndex int
	puzzle    *Puzzle
	// cancelWatch stops the puzzle screen's background status poll.
	cancelWatch context.CancelFunc
}

func NewEngine(store *state.Store, backend Backend, questions QuestionSource, camera FrameSource, archive Archiver, log *zap.Logger, opts Options) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:     store,
		backend:   backend,
		questions: questions,
		archive:   archive,
		camera:    camera,
		log:       log,
		opts:      opts.withDefaults(),
	}
}

// Store exposes the shared state for read-only consumers such as the
// panel transport.
func (e *Engine) Store() *state.Store { return e.store }

// Step returns the screen the wizard is currently on.
func (e *Engine) Step() Step {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step
}

// Guard returns the step that should actually be shown when entering
// step: either step itself, or the earliest screen that establishes a
// missing prerequisite. Arriving early is a redirect, not an error.
func (e *Engine) Guard(step Step) Step {
	type prereq struct {
		ok          bool
		establishes Step
	}
	avatar := prereq{e.store.Avatar() != "", StepAvatar}
	job := prereq{e.store.JobID() != "", StepCamera}
	questions := prereq{len(e.store.Questions()) > 0, StepCamera}
	video := prereq{e.store.VideoURL() != "", StepProcessing}

	var checks []prereq
	switch step {
	case StepCamera:
		checks = []prereq{avatar}
	case StepQuiz:
		checks = []prereq{avatar, job, questions}
	case StepPuzzle, StepProcessing:
		checks = []prereq{avatar, job}
	case StepReview, StepQR:
		checks = []prereq{avatar, job, video}
	}
	for _, c := range checks {
		if !c.ok {
			return c.establishes
		}
	}
	return step
}

// Enter moves the wizard to step, redirecting through Guard. The
// previous screen's background work is cancelled regardless of how the
// screen is left.
func (e *Engine) Enter(step Step) Step {
	target := e.Guard(step)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelWatch != nil {
		e.cancelWatch()
		e.cancelWatch = nil
	}
	if target != step {
		e.log.Info("redirecting early arrival",
			zap.String("requested", step.String()),
			zap.String("redirected", target.String()))
	}
	e.step = target
	if target == StepQuiz {
		e.quizIndex = 0
	}
	return target
}

// SelectAvatar records the chosen category and advances to the camera.
func (e *Engine) SelectAvatar(a domain.Avatar) error {
	if !a.Valid() {
		return domain.ErrInvalidAvatar
	}
	e.store.SetAvatar(a)
	e.setStep(StepCamera)
	return nil
}

// Restart aborts the session: every field returns to its initial empty
// value, including the durable subset, and the kiosk idles again.
func (e *Engine) Restart() {
	e.mu.Lock()
	if e.cancelWatch != nil {
		e.cancelWatch()
		e.cancelWatch = nil
	}
	e.step = StepWelcome
	e.quizIndex = 0
	e.puzzle = nil
	e.mu.Unlock()

	e.store.Reset()
	e.log.Info("session restarted")
}

func (e *Engine) setStep(step Step) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancelWatch != nil {
		e.cancelWatch()
		e.cancelWatch = nil
	}
	e.step = step
	if step == StepQuiz {
		e.quizIndex = 0
	}
}
