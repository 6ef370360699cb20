package http

import (
	"context"
	"image"
	"image/color"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"anthem-kiosk/internal/app"
	"anthem-kiosk/internal/domain"
	"anthem-kiosk/internal/state"
	"github.com/gorilla/websocket"
)

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

type stubBackend struct {
	mu          sync.Mutex
	statuses    []domain.Job
	statusIdx   int
	statusDelay time.Duration
	qrData      []byte
}

func (s *stubBackend) CreateJob(_ context.Context, _ []byte, _ domain.Avatar, _ string) (string, error) {
	return "job-ws", nil
}

func (s *stubBackend) Status(_ context.Context, _ string) (domain.Job, error) {
	if s.statusDelay > 0 {
		time.Sleep(s.statusDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.statusIdx >= len(s.statuses) {
		return s.statuses[len(s.statuses)-1], nil
	}
	job := s.statuses[s.statusIdx]
	s.statusIdx++
	return job, nil
}

func (s *stubBackend) SubmitAnswers(_ context.Context, _ string, key []domain.QuestionWithAnswer, answers []*int) (domain.QuizResult, error) {
	correct := 0
	for i, want := range key {
		if i < len(answers) && answers[i] != nil && *answers[i] == want.Answer {
			correct++
		}
	}
	return domain.QuizResult{Total: len(key), Correct: correct, Score: correct * 100 / len(key)}, nil
}

func (s *stubBackend) QRCodeURL(jobID string) string {
	return "https://backend/api/jobs/" + jobID + "/qr"
}

func (s *stubBackend) DownloadQRCode(_ context.Context, _ string, w io.Writer) error {
	_, err := w.Write(s.qrData)
	return err
}

func (s *stubBackend) Poll(ctx context.Context, jobID string, interval time.Duration, onUpdate func(domain.Job)) (domain.Job, error) {
	for {
		job, err := s.Status(ctx, jobID)
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

type stubQuestions struct{}

func (stubQuestions) Questions(_ context.Context, count int, _ string) ([]domain.Question, []domain.QuestionWithAnswer, error) {
	questions := make([]domain.Question, 0, count)
	key := make([]domain.QuestionWithAnswer, 0, count)
	for i := 0; i < count; i++ {
		q := domain.Question{ID: i + 1, Question: "q", Options: []string{"a", "b", "c"}}
		questions = append(questions, q)
		key = append(key, domain.QuestionWithAnswer{Question: q, Answer: i % 3})
	}
	return questions, key, nil
}

type stubFrames struct{}

func (stubFrames) Start(_ context.Context, _ app.Constraints) error { return nil }

func (stubFrames) Frame(_ context.Context) (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	return img, nil
}

func (stubFrames) Stop() {}

func newTestServer(t *testing.T, backend *stubBackend) (*httptest.Server, *app.Engine) {
	t.Helper()
	store, err := state.New(context.Background(), &memSaver{}, nil)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	engine := app.NewEngine(store, backend, stubQuestions{}, stubFrames{}, nil, nil, app.Options{
		QuestionCount: 3,
		PollInterval:  time.Millisecond,
		Rand:          rand.New(rand.NewSource(1)),
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewWSHandler(engine, nil).ServeWS)
	mux.Handle("/qr", NewQRHandler(engine, nil))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, engine
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readNext(t *testing.T, conn *websocket.Conn, expect string) map[string]any {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read json (want %s): %v", expect, err)
		}
		if expect == "" || msg.Type == expect {
			return msg.Payload
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": typ, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func TestWebSocketFullSessionFlow(t *testing.T) {
	backend := &stubBackend{
		statuses: []domain.Job{
			{Status: domain.StatusQueued},
			{Status: domain.StatusVideo},
			{Status: domain.StatusCompleted, VideoURL: "https://x/v.mp4", QRURL: "https://x/qr.png"},
		},
	}
	server, _ := newTestServer(t, backend)
	conn := dial(t, server)

	state := readNext(t, conn, "state")
	if state["step"] != "welcome" {
		t.Fatalf("initial step = %v", state["step"])
	}

	send(t, conn, "select_avatar", map[string]any{"avatar": "Boy"})
	state = readNext(t, conn, "state")
	if state["step"] != "camera" {
		t.Fatalf("step after avatar = %v", state["step"])
	}

	send(t, conn, "capture", nil)
	state = readNext(t, conn, "state")
	if state["step"] != "quiz" || state["jobId"] != "job-ws" {
		t.Fatalf("state after capture = %v", state)
	}
	question := readNext(t, conn, "question")
	if question["total"].(float64) != 3 {
		t.Fatalf("question total = %v", question["total"])
	}

	for i := 0; i < 3; i++ {
		send(t, conn, "record_answer", map[string]any{"index": i, "option": i % 3})
		readNext(t, conn, "question")
	}

	send(t, conn, "submit_quiz", nil)
	score := readNext(t, conn, "score")
	if score["score"].(float64) != 100 {
		t.Fatalf("score = %v", score)
	}
	state = readNext(t, conn, "state")
	if state["step"] != "processing" {
		t.Fatalf("step after submit = %v", state["step"])
	}

	send(t, conn, "process", nil)
	sawProcessing := false
	for {
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read during processing: %v", err)
		}
		if msg.Type == "processing" {
			sawProcessing = true
			continue
		}
		if msg.Type == "state" {
			state = msg.Payload
			break
		}
	}
	if !sawProcessing {
		t.Fatalf("no processing updates pushed")
	}
	if state["step"] != "review" || state["videoUrl"] != "https://x/v.mp4" {
		t.Fatalf("state after processing = %v", state)
	}

	send(t, conn, "finish_review", nil)
	handoff := readNext(t, conn, "handoff")
	if handoff["qrCodeUrl"] != "https://backend/api/jobs/job-ws/qr" {
		t.Fatalf("handoff = %v", handoff)
	}
	if handoff["videoFilename"] != "uae-anthem-job-ws.mp4" {
		t.Fatalf("video filename = %v", handoff["videoFilename"])
	}
	state = readNext(t, conn, "state")
	if state["step"] != "qr" {
		t.Fatalf("step after review = %v", state["step"])
	}

	send(t, conn, "finish", nil)
	state = readNext(t, conn, "state")
	if state["step"] != "welcome" || state["jobId"] != "" {
		t.Fatalf("state after finish = %v", state)
	}
}

func TestWebSocketRejectsInvalidAvatar(t *testing.T) {
	server, _ := newTestServer(t, &stubBackend{})
	conn := dial(t, server)
	readNext(t, conn, "state")

	send(t, conn, "select_avatar", map[string]any{"avatar": "Robot"})
	errMsg := readNext(t, conn, "error")
	if errMsg["message"] == "" {
		t.Fatalf("expected an error message")
	}
}

func TestWebSocketEarlyArrivalRedirects(t *testing.T) {
	server, _ := newTestServer(t, &stubBackend{})
	conn := dial(t, server)
	readNext(t, conn, "state")

	send(t, conn, "enter", map[string]any{"step": "review"})
	state := readNext(t, conn, "state")
	if state["step"] != "avatar" {
		t.Fatalf("redirect target = %v", state["step"])
	}
}

func TestWebSocketUnsupportedType(t *testing.T) {
	server, _ := newTestServer(t, &stubBackend{})
	conn := dial(t, server)
	readNext(t, conn, "state")

	send(t, conn, "reboot", nil)
	errMsg := readNext(t, conn, "error")
	if errMsg["message"] != "unsupported message type" {
		t.Fatalf("error = %v", errMsg)
	}
}

func TestDisconnectDuringProcessingShutsDownCleanly(t *testing.T) {
	// A job that never finishes, with enough backend latency that the
	// disconnect lands while a status fetch is in flight. The poll
	// goroutine must be joined on teardown, not left pushing into a
	// closed channel.
	backend := &stubBackend{
		statuses:    []domain.Job{{Status: domain.StatusQueued}},
		statusDelay: 500 * time.Microsecond,
	}
	server, engine := newTestServer(t, backend)
	engine.Store().SetAvatar(domain.AvatarBoy)
	engine.Store().SetJobID("job-ws")

	for i := 0; i < 20; i++ {
		conn := dial(t, server)
		readNext(t, conn, "state")
		send(t, conn, "process", nil)
		readNext(t, conn, "processing")
		conn.Close()
	}

	// The server survived every teardown; a fresh panel still connects.
	conn := dial(t, server)
	readNext(t, conn, "state")
}

func TestQRHandlerStreamsImage(t *testing.T) {
	backend := &stubBackend{qrData: []byte{0x89, 'P', 'N', 'G'}}
	server, engine := newTestServer(t, backend)
	engine.Store().SetJobID("job-ws")

	resp, err := http.Get(server.URL + "/qr")
	if err != nil {
		t.Fatalf("get qr: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Disposition"); got != `attachment; filename="uae-anthem-qr-job-ws.png"` {
		t.Fatalf("disposition = %q", got)
	}
	body, _ := io.ReadAll(resp.Body)
	if len(body) != 4 {
		t.Fatalf("body = %v", body)
	}
}
