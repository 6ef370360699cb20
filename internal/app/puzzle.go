package app

import (
	"context"
	"math/rand"
	"sync"

	"anthem-kiosk/internal/domain"
	"go.uber.org/zap"
)

// Puzzle is the flag mini-game: sixteen shuffled pieces, each accepted
// by exactly one slot. Pure local interaction, no server round-trip.
type Puzzle struct {
	mu     sync.Mutex
	pool   []domain.PuzzlePiece
	slots  []*domain.PuzzlePiece
	placed int
}

func NewPuzzle(rnd *rand.Rand) *Puzzle {
	pool := domain.FlagPieces()
	rnd.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	return &Puzzle{
		pool:  pool,
		slots: make([]*domain.PuzzlePiece, domain.PuzzleSize),
	}
}

// Available returns the pieces still waiting to be placed, in their
// shuffled presentation order.
func (p *Puzzle) Available() []domain.PuzzlePiece {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.PuzzlePiece, len(p.pool))
	copy(out, p.pool)
	return out
}

// Placed reports how many pieces sit in their slots.
func (p *Puzzle) Placed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.placed
}

// Complete reports whether all sixteen pieces are placed.
func (p *Puzzle) Complete() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.placed == len(p.slots)
}

// Drop attempts to place a pooled piece into a slot. A piece is
// accepted iff the slot index equals its predefined slot; every other
// pairing is rejected without changing placement and the piece stays
// in the pool. Returns whether the puzzle is now complete.
func (p *Puzzle) Drop(pieceID, slotIndex int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	poolIdx := -1
	for i := range p.pool {
		if p.pool[i].ID == pieceID {
			poolIdx = i
			break
		}
	}
	if poolIdx < 0 {
		return false, domain.ErrPieceNotFound
	}
	if slotIndex < 0 || slotIndex >= len(p.slots) {
		return false, domain.ErrWrongSlot
	}
	if p.slots[slotIndex] != nil {
		return false, domain.ErrSlotOccupied
	}
	piece := p.pool[poolIdx]
	if piece.Slot != slotIndex {
		return false, domain.ErrWrongSlot
	}

	p.slots[slotIndex] = &piece
	p.pool = append(p.pool[:poolIdx], p.pool[poolIdx+1:]...)
	p.placed++
	return p.placed == len(p.slots), nil
}

// StartPuzzle shuffles a fresh board and, when a job is running, kicks
// off a background status watch so the video is often already done by
// the time the visitor finishes. The puzzle never blocks on it.
func (e *Engine) StartPuzzle() *Puzzle {
	puzzle := NewPuzzle(e.opts.Rand)

	e.mu.Lock()
	e.puzzle = puzzle
	if e.cancelWatch != nil {
		e.cancelWatch()
	}
	var watchCtx context.Context
	watchCtx, e.cancelWatch = context.WithCancel(context.Background())
	e.mu.Unlock()

	if jobID := e.store.JobID(); jobID != "" {
		go e.watchJob(watchCtx, jobID)
	}
	return puzzle
}

// watchJob mirrors job progress into the store while the visitor plays.
// Fire and forget: errors are logged, never surfaced to the puzzle.
func (e *Engine) watchJob(ctx context.Context, jobID string) {
	job, err := e.backend.Poll(ctx, jobID, e.opts.PollInterval, func(j domain.Job) {
		e.store.SetStatus(j.Status)
	})
	if err != nil {
		if ctx.Err() == nil {
			e.log.Warn("background status watch", zap.Error(err))
		}
		return
	}
	switch job.Status {
	case domain.StatusCompleted:
		e.store.SetVideoURL(job.VideoURL)
		e.store.SetQRURL(job.QRURL)
	case domain.StatusFailed:
		msg := job.Error
		if msg == "" {
			msg = "Video generation failed"
		}
		e.store.SetErrorMessage(msg)
	}
}

// DropPiece forwards a drag-and-drop attempt to the active board.
func (e *Engine) DropPiece(pieceID, slotIndex int) (bool, error) {
	e.mu.Lock()
	puzzle := e.puzzle
	e.mu.Unlock()
	if puzzle == nil {
		return false, domain.ErrMissingPrerequisite
	}
	return puzzle.Drop(pieceID, slotIndex)
}

// FinishPuzzle leaves the mini-game for the processing screen; the
// background watch is cancelled with the screen.
func (e *Engine) FinishPuzzle() {
	e.setStep(StepProcessing)
}
