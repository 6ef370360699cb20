// Package http exposes the wizard to the kiosk display over a
// websocket: the panel renders screens and sends user interactions as
// typed JSON messages, the handler drives the engine and pushes state
// back.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"anthem-kiosk/internal/app"
	"anthem-kiosk/internal/domain"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type WSHandler struct {
	engine   *app.Engine
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(engine *app.Engine, log *zap.Logger) *WSHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHandler{
		engine: engine,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type enterPayload struct {
	Step string `json:"step"`
}

type avatarPayload struct {
	Avatar string `json:"avatar"`
}

type answerPayload struct {
	Option int `json:"option"`
}

type recordAnswerPayload struct {
	Index  int `json:"index"`
	Option int `json:"option"`
}

type dropPayload struct {
	PieceID int `json:"pieceId"`
	Slot    int `json:"slot"`
}

// statePayload is the full panel-facing snapshot, pushed after every
// mutation so the display never has to ask.
type statePayload struct {
	SessionID string             `json:"sessionId"`
	Step      string             `json:"step"`
	Avatar    domain.Avatar      `json:"avatar"`
	JobID     string             `json:"jobId"`
	Status    domain.JobStatus   `json:"status"`
	VideoURL  string             `json:"videoUrl"`
	QRURL     string             `json:"qrUrl"`
	Error     string             `json:"error,omitempty"`
	Score     *domain.QuizResult `json:"score,omitempty"`
}

type questionPayload struct {
	Question domain.Question `json:"question"`
	Index    int             `json:"index"`
	Total    int             `json:"total"`
	Answers  []*int          `json:"answers"`
}

type puzzlePayload struct {
	Pieces []domain.PuzzlePiece `json:"pieces"`
	Placed int                  `json:"placed"`
	Size   int                  `json:"size"`
}

type dropResult struct {
	PieceID  int  `json:"pieceId"`
	Slot     int  `json:"slot"`
	Accepted bool `json:"accepted"`
	Complete bool `json:"complete"`
}

type handoffPayload struct {
	QRCodeURL     string `json:"qrCodeUrl"`
	VideoURL      string `json:"videoUrl"`
	VideoFilename string `json:"videoFilename"`
	QRFilename    string `json:"qrFilename"`
}

func parseStep(s string) (app.Step, bool) {
	for step := app.StepWelcome; step <= app.StepQR; step++ {
		if step.String() == s {
			return step, true
		}
	}
	return app.StepWelcome, false
}

// ServeWS upgrades the panel connection and runs the message loop. One
// connection per kiosk display.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	// Background screen work (the processing poll) pushes to send; it
	// must be joined before send is closed.
	var workers sync.WaitGroup

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Warn("ws write error", zap.Error(err))
				return
			}
		}
	}()

	// push queues a message unless the connection is shutting down.
	push := func(msg outboundMessage[any]) {
		select {
		case send <- msg:
		case <-closeSignals:
		}
	}
	pushState := func() {
		push(outboundMessage[any]{Type: "state", Payload: h.state()})
	}
	pushErr := func(err error) {
		push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}})
	}

	// Screens with background work stop with the connection.
	connCtx, cancelConn := context.WithCancel(r.Context())
	defer cancelConn()

	pushState()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.handle(connCtx, inbound, &workers, push, pushState, pushErr)
	}

	close(closeSignals)
	cancelConn()
	workers.Wait()
	close(send)
	<-writerDone
}

func (h *WSHandler) handle(ctx context.Context, inbound inboundMessage, workers *sync.WaitGroup, push func(outboundMessage[any]), pushState func(), pushErr func(error)) {
	switch inbound.Type {
	case "enter":
		var payload enterPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			pushErr(err)
			return
		}
		step, ok := parseStep(payload.Step)
		if !ok {
			push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unknown step: " + payload.Step}})
			return
		}
		h.engine.Enter(step)
		pushState()

	case "select_avatar":
		var payload avatarPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			pushErr(err)
			return
		}
		if err := h.engine.SelectAvatar(domain.Avatar(payload.Avatar)); err != nil {
			pushErr(err)
			return
		}
		pushState()

	case "start_camera":
		if err := h.engine.StartCamera(ctx); err != nil {
			pushErr(err)
			return
		}
		pushState()

	case "capture":
		if err := h.engine.Capture(ctx); err != nil {
			pushErr(err)
			return
		}
		pushState()
		h.pushQuestion(push, pushErr)

	case "stop_camera":
		h.engine.StopCamera()

	case "question":
		h.pushQuestion(push, pushErr)

	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			pushErr(err)
			return
		}
		feedback, err := h.engine.Answer(payload.Option)
		if err != nil {
			pushErr(err)
			return
		}
		push(outboundMessage[any]{Type: "feedback", Payload: feedback})
		if feedback.Last {
			pushState()
			return
		}
		h.pushQuestion(push, pushErr)

	case "record_answer":
		var payload recordAnswerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			pushErr(err)
			return
		}
		if err := h.engine.RecordAnswer(payload.Index, payload.Option); err != nil {
			pushErr(err)
			return
		}
		h.pushQuestion(push, pushErr)

	case "next_question":
		h.engine.NextQuestion()
		h.pushQuestion(push, pushErr)

	case "prev_question":
		h.engine.PrevQuestion()
		h.pushQuestion(push, pushErr)

	case "submit_quiz":
		result, err := h.engine.SubmitQuiz(ctx)
		if err != nil {
			pushErr(err)
			return
		}
		push(outboundMessage[any]{Type: "score", Payload: result})
		pushState()

	case "start_puzzle":
		puzzle := h.engine.StartPuzzle()
		push(outboundMessage[any]{Type: "puzzle", Payload: puzzlePayload{
			Pieces: puzzle.Available(),
			Placed: puzzle.Placed(),
			Size:   domain.PuzzleSize,
		}})

	case "drop_piece":
		var payload dropPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			pushErr(err)
			return
		}
		complete, err := h.engine.DropPiece(payload.PieceID, payload.Slot)
		push(outboundMessage[any]{Type: "drop", Payload: dropResult{
			PieceID:  payload.PieceID,
			Slot:     payload.Slot,
			Accepted: err == nil,
			Complete: complete,
		}})

	case "finish_puzzle":
		h.engine.FinishPuzzle()
		pushState()

	case "process":
		workers.Add(1)
		go func() {
			defer workers.Done()
			err := h.engine.Process(ctx, func(u app.ProcessingUpdate) {
				push(outboundMessage[any]{Type: "processing", Payload: u})
			})
			if err != nil && ctx.Err() == nil {
				pushErr(err)
			}
			if ctx.Err() == nil {
				pushState()
			}
		}()

	case "finish_review":
		h.engine.FinishReview()
		url, err := h.engine.QRCodeURL()
		if err != nil {
			pushErr(err)
			return
		}
		push(outboundMessage[any]{Type: "handoff", Payload: handoffPayload{
			QRCodeURL:     url,
			VideoURL:      h.engine.Store().VideoURL(),
			VideoFilename: h.engine.VideoFilename(),
			QRFilename:    h.engine.QRFilename(),
		}})
		pushState()

	case "finish":
		h.engine.Finish(ctx)
		pushState()

	case "restart":
		h.engine.Restart()
		pushState()

	default:
		push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
	}
}

func (h *WSHandler) pushQuestion(push func(outboundMessage[any]), pushErr func(error)) {
	question, index, total, err := h.engine.CurrentQuestion()
	if err != nil {
		pushErr(err)
		return
	}
	push(outboundMessage[any]{Type: "question", Payload: questionPayload{
		Question: question,
		Index:    index,
		Total:    total,
		Answers:  h.engine.Store().Answers(),
	}})
}

func (h *WSHandler) state() statePayload {
	store := h.engine.Store()
	return statePayload{
		SessionID: store.SessionID(),
		Step:      h.engine.Step().String(),
		Avatar:    store.Avatar(),
		JobID:     store.JobID(),
		Status:    store.Status(),
		VideoURL:  store.VideoURL(),
		QRURL:     store.QRURL(),
		Error:     store.ErrorMessage(),
		Score:     store.Score(),
	}
}
