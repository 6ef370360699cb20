package app

import (
	"context"
	"image"
	"image/color"
	"io"
	"math/rand"
	"sync"
	"testing"
	"time"

	"anthem-kiosk/internal/domain"
	"anthem-kiosk/internal/state"
)

// memSaver is an in-memory state.Saver for engine tests.
type memSaver struct {
	record domain.SessionRecord
	ok     bool
}

func (m *memSaver) Save(_ context.Context, record domain.SessionRecord) error {
	m.record, m.ok = record, true
	return nil
}

func (m *memSaver) Load(_ context.Context) (domain.SessionRecord, bool, error) {
	return m.record, m.ok, nil
}

func (m *memSaver) Clear(_ context.Context) error {
	m.record, m.ok = domain.SessionRecord{}, false
	return nil
}

// fakeBackend scripts the generation service.
type fakeBackend struct {
	mu          sync.Mutex
	jobID       string
	createErr   error
	createCalls int
	statuses    []domain.Job
	statusIdx   int
	submit      domain.QuizResult
	submitErr   error
	submitCalls int
	lastKey     []domain.QuestionWithAnswer
	lastAnswers []*int
	qrData      []byte
}

func (f *fakeBackend) CreateJob(_ context.Context, _ []byte, _ domain.Avatar, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createErr != nil {
		return "", f.createErr
	}
	return f.jobID, nil
}

func (f *fakeBackend) Status(_ context.Context, _ string) (domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statusIdx >= len(f.statuses) {
		return f.statuses[len(f.statuses)-1], nil
	}
	job := f.statuses[f.statusIdx]
	f.statusIdx++
	return job, nil
}

func (f *fakeBackend) SubmitAnswers(_ context.Context, _ string, key []domain.QuestionWithAnswer, answers []*int) (domain.QuizResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	f.lastKey = key
	f.lastAnswers = answers
	if f.submitErr != nil {
		return domain.QuizResult{}, f.submitErr
	}
	return f.submit, nil
}

func (f *fakeBackend) QRCodeURL(jobID string) string {
	return "https://backend/api/jobs/" + jobID + "/qr"
}

func (f *fakeBackend) DownloadQRCode(_ context.Context, _ string, w io.Writer) error {
	_, err := w.Write(f.qrData)
	return err
}

func (f *fakeBackend) Poll(ctx context.Context, jobID string, interval time.Duration, onUpdate func(domain.Job)) (domain.Job, error) {
	for {
		job, err := f.Status(ctx, jobID)
		if err != nil {
			return domain.Job{}, err
		}
		if onUpdate != nil {
			onUpdate(job)
		}
		if job.Status.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return domain.Job{}, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// fakeQuestions serves a fixed three-question set for any seed.
type fakeQuestions struct {
	calls    int
	lastSeed string
	err      error
}

func (f *fakeQuestions) Questions(_ context.Context, count int, seed string) ([]domain.Question, []domain.QuestionWithAnswer, error) {
	f.calls++
	f.lastSeed = seed
	if f.err != nil {
		return nil, nil, f.err
	}
	questions := make([]domain.Question, 0, count)
	key := make([]domain.QuestionWithAnswer, 0, count)
	for i := 0; i < count; i++ {
		q := domain.Question{ID: i + 1, Question: "q", Options: []string{"a", "b", "c"}}
		questions = append(questions, q)
		key = append(key, domain.QuestionWithAnswer{Question: q, Answer: (i + 1) % 3})
	}
	return questions, key, nil
}

// fakeFrames is a scripted FrameSource.
type fakeFrames struct {
	started  int
	stopped  int
	frameErr error
}

func (f *fakeFrames) Start(_ context.Context, _ Constraints) error { f.started++; return nil }

func (f *fakeFrames) Frame(_ context.Context) (image.Image, error) {
	if f.frameErr != nil {
		return nil, f.frameErr
	}
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	return img, nil
}

func (f *fakeFrames) Stop() { f.stopped++ }

func testOptions() Options {
	return Options{
		QuestionCount: 3,
		PollInterval:  time.Millisecond,
		Rand:          rand.New(rand.NewSource(1)),
	}
}

func newTestEngine(t *testing.T, backend *fakeBackend, questions *fakeQuestions, camera *fakeFrames, opts Options) *Engine {
	t.Helper()
	store, err := state.New(context.Background(), &memSaver{}, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return NewEngine(store, backend, questions, camera, nil, nil, opts)
}

func TestGuardRedirectsToEarliestEstablishingStep(t *testing.T) {
	engine := newTestEngine(t, &fakeBackend{}, &fakeQuestions{}, &fakeFrames{}, testOptions())

	cases := []struct {
		name  string
		setup func()
		step  Step
		want  Step
	}{
		{"camera without avatar", func() {}, StepCamera, StepAvatar},
		{"quiz without anything", func() {}, StepQuiz, StepAvatar},
		{"quiz without job", func() { engine.store.SetAvatar(domain.AvatarBoy) }, StepQuiz, StepCamera},
		{"processing without job", func() {}, StepProcessing, StepCamera},
		{"review without video", func() { engine.store.SetJobID("job-1") }, StepReview, StepProcessing},
		{"qr without video", func() {}, StepQR, StepProcessing},
		{"review with video", func() { engine.store.SetVideoURL("https://x/v.mp4") }, StepReview, StepReview},
		{"avatar always enterable", func() {}, StepAvatar, StepAvatar},
	}
	for _, tc := range cases {
		tc.setup()
		if got := engine.Guard(tc.step); got != tc.want {
			t.Errorf("%s: Guard(%v) = %v, want %v", tc.name, tc.step, got, tc.want)
		}
	}
}

func TestEnterAppliesRedirect(t *testing.T) {
	engine := newTestEngine(t, &fakeBackend{}, &fakeQuestions{}, &fakeFrames{}, testOptions())

	if got := engine.Enter(StepProcessing); got != StepAvatar {
		t.Fatalf("Enter(processing) = %v, want avatar", got)
	}
	if engine.Step() != StepAvatar {
		t.Fatalf("step = %v", engine.Step())
	}
}

func TestSelectAvatarValidatesAndAdvances(t *testing.T) {
	engine := newTestEngine(t, &fakeBackend{}, &fakeQuestions{}, &fakeFrames{}, testOptions())

	if err := engine.SelectAvatar("Robot"); err != domain.ErrInvalidAvatar {
		t.Fatalf("expected ErrInvalidAvatar, got %v", err)
	}
	if err := engine.SelectAvatar(domain.AvatarBoy); err != nil {
		t.Fatalf("select avatar: %v", err)
	}
	if engine.Step() != StepCamera {
		t.Fatalf("step = %v, want camera", engine.Step())
	}
	if engine.Store().Avatar() != domain.AvatarBoy {
		t.Fatalf("avatar not stored")
	}
}

func TestRestartClearsEverything(t *testing.T) {
	engine := newTestEngine(t, &fakeBackend{}, &fakeQuestions{}, &fakeFrames{}, testOptions())
	store := engine.Store()
	store.SetAvatar(domain.AvatarGirl)
	store.SetJobID("job-1")
	store.SetVideoURL("https://x/v.mp4")
	store.SetScore(domain.QuizResult{Total: 3, Correct: 3, Score: 100})
	engine.setStep(StepQR)

	engine.Restart()

	if engine.Step() != StepWelcome {
		t.Fatalf("step = %v after restart", engine.Step())
	}
	if store.Avatar() != "" || store.JobID() != "" || store.VideoURL() != "" || store.Score() != nil {
		t.Fatalf("state survived restart")
	}
	if rec := store.Record(); !rec.Empty() {
		t.Fatalf("durable record survived restart: %+v", rec)
	}
}

// archiveRecorder captures Finish's archive call.
type archiveRecorder struct {
	records []domain.SessionRecord
}

func (a *archiveRecorder) Record(_ context.Context, rec domain.SessionRecord) error {
	a.records = append(a.records, rec)
	return nil
}

func TestFinishArchivesThenResets(t *testing.T) {
	archive := &archiveRecorder{}
	store, err := state.New(context.Background(), &memSaver{}, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	engine := NewEngine(store, &fakeBackend{}, &fakeQuestions{}, &fakeFrames{}, archive, nil, testOptions())

	store.SetAvatar(domain.AvatarMale)
	store.SetJobID("job-7")
	store.SetVideoURL("https://x/v.mp4")

	engine.Finish(context.Background())

	if len(archive.records) != 1 {
		t.Fatalf("expected one archived record, got %d", len(archive.records))
	}
	if archive.records[0].JobID != "job-7" || archive.records[0].Avatar != domain.AvatarMale {
		t.Fatalf("archived = %+v", archive.records[0])
	}
	if store.JobID() != "" || engine.Step() != StepWelcome {
		t.Fatalf("finish did not reset the session")
	}
}

func TestFinishWithoutJobSkipsArchive(t *testing.T) {
	archive := &archiveRecorder{}
	store, err := state.New(context.Background(), &memSaver{}, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	engine := NewEngine(store, &fakeBackend{}, &fakeQuestions{}, &fakeFrames{}, archive, nil, testOptions())

	engine.Finish(context.Background())
	if len(archive.records) != 0 {
		t.Fatalf("empty session should not be archived")
	}
}
