// Package state holds the shared wizard state for one kiosk session.
// The store is two-tiered: a small durable record (avatar, job ID,
// video URL, quiz score) written through a Saver on every mutation,
// and ephemeral workflow fields that start empty after a restart.
package state

import (
	"context"
	"fmt"
	"sync"

	"anthem-kiosk/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Saver persists the durable subset of the wizard state.
type Saver interface {
	Save(ctx context.Context, record domain.SessionRecord) error
	Load(ctx context.Context) (domain.SessionRecord, bool, error)
	Clear(ctx context.Context) error
}

// Store is the single mutable state container for the wizard. It is
// mutated only by the currently active screen, one mutation at a time;
// the mutex guards concurrent readers such as the panel transport.
type Store struct {
	saver Saver
	log   *zap.Logger

	mu            sync.RWMutex
	sessionID     string
	avatar        domain.Avatar
	capturedImage []byte
	jobID         string
	videoURL      string
	qrURL         string
	status        domain.JobStatus
	errorMessage  string
	questions     []domain.Question
	key           []domain.QuestionWithAnswer
	answers       []*int
	score         *domain.QuizResult
}

// New builds a store and restores the durable record before the store
// is first read. A missing record starts a fresh session.
func New(ctx context.Context, saver Saver, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Store{
		saver:     saver,
		log:       log,
		sessionID: uuid.NewString(),
		status:    domain.StatusQueued,
	}
	record, ok, err := saver.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load session record: %w", err)
	}
	if ok && !record.Empty() {
		if record.SessionID != "" {
			s.sessionID = record.SessionID
		}
		s.avatar = record.Avatar
		s.jobID = record.JobID
		s.videoURL = record.VideoURL
		s.score = record.QuizScore
		log.Info("restored kiosk session", zap.String("session_id", s.sessionID), zap.String("job_id", s.jobID))
	}
	return s, nil
}

// persist writes the durable subset through the saver. Best effort:
// a failed write is logged and the in-memory state stays authoritative.
func (s *Store) persist() {
	record := domain.SessionRecord{
		SessionID: s.sessionID,
		Avatar:    s.avatar,
		JobID:     s.jobID,
		VideoURL:  s.videoURL,
		QuizScore: s.score,
	}
	if err := s.saver.Save(context.Background(), record); err != nil {
		s.log.Warn("persist session record", zap.Error(err))
	}
}

func (s *Store) SessionID() string { s.mu.RLock(); defer s.mu.RUnlock(); return s.sessionID }

func (s *Store) SetAvatar(a domain.Avatar) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.avatar = a
	s.persist()
}

func (s *Store) Avatar() domain.Avatar { s.mu.RLock(); defer s.mu.RUnlock(); return s.avatar }

func (s *Store) SetCapturedImage(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capturedImage = data
}

func (s *Store) ClearImage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.capturedImage = nil
}

func (s *Store) CapturedImage() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capturedImage
}

func (s *Store) SetJobID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobID = id
	s.persist()
}

func (s *Store) JobID() string { s.mu.RLock(); defer s.mu.RUnlock(); return s.jobID }

func (s *Store) SetVideoURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.videoURL = url
	s.persist()
}

func (s *Store) VideoURL() string { s.mu.RLock(); defer s.mu.RUnlock(); return s.videoURL }

func (s *Store) SetQRURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qrURL = url
}

func (s *Store) QRURL() string { s.mu.RLock(); defer s.mu.RUnlock(); return s.qrURL }

func (s *Store) SetStatus(status domain.JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *Store) Status() domain.JobStatus { s.mu.RLock(); defer s.mu.RUnlock(); return s.status }

func (s *Store) SetErrorMessage(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errorMessage = msg
}

func (s *Store) ErrorMessage() string { s.mu.RLock(); defer s.mu.RUnlock(); return s.errorMessage }

// SetQuestions stores a fetched question set and its key, and
// allocates one unanswered slot per question.
func (s *Store) SetQuestions(questions []domain.Question, key []domain.QuestionWithAnswer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = questions
	s.key = key
	s.answers = make([]*int, len(questions))
}

func (s *Store) Questions() []domain.Question {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.questions
}

func (s *Store) AnswerKey() []domain.QuestionWithAnswer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

// InitAnswers resets the answer array to count unanswered slots.
func (s *Store) InitAnswers(count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = make([]*int, count)
}

// SetAnswer records the visitor's pick for one question. Out-of-range
// indexes are ignored rather than grown into.
func (s *Store) SetAnswer(index int, option int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.answers) {
		return
	}
	v := option
	s.answers[index] = &v
}

func (s *Store) Answers() []*int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*int, len(s.answers))
	copy(out, s.answers)
	return out
}

func (s *Store) SetScore(result domain.QuizResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := result
	s.score = &r
	s.persist()
}

func (s *Store) Score() *domain.QuizResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.score
}

// ResetQuiz clears only the quiz fields, leaving the rest of the
// session intact.
func (s *Store) ResetQuiz() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = nil
	s.key = nil
	s.answers = nil
	s.score = nil
	s.persist()
}

// Reset restores every field to its initial empty value, including the
// durable record, and starts a fresh session identity.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = uuid.NewString()
	s.avatar = ""
	s.capturedImage = nil
	s.jobID = ""
	s.videoURL = ""
	s.qrURL = ""
	s.status = domain.StatusQueued
	s.errorMessage = ""
	s.questions = nil
	s.key = nil
	s.answers = nil
	s.score = nil
	if err := s.saver.Clear(context.Background()); err != nil {
		s.log.Warn("clear session record", zap.Error(err))
	}
}

// Record snapshots the durable subset, e.g. for archiving a finished
// session.
func (s *Store) Record() domain.SessionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.SessionRecord{
		SessionID: s.sessionID,
		Avatar:    s.avatar,
		JobID:     s.jobID,
		VideoURL:  s.videoURL,
		QuizScore: s.score,
	}
}
