package app

import (
	"context"
	"math/rand"
	"time"

	"anthem-kiosk/internal/domain"
	"go.uber.org/zap"
)

// Progress is the pure projection of a job status onto what the
// processing screen shows. Keeping it free of timers makes the
// transition logic testable on its own.
type Progress struct {
	Message  string
	Terminal bool
	Failed   bool
}

// ProgressFor maps a job status to its screen state.
func ProgressFor(status domain.JobStatus) Progress {
	switch status {
	case domain.StatusQueued:
		return Progress{Message: "Waiting in queue..."}
	case domain.StatusImage:
		return Progress{Message: "Processing your face..."}
	case domain.StatusVideo:
		return Progress{Message: "Generating your video..."}
	case domain.StatusCompleted:
		return Progress{Message: "Your video is ready!", Terminal: true}
	case domain.StatusFailed:
		return Progress{Message: "Video generation failed", Terminal: true, Failed: true}
	}
	return Progress{Message: "Initializing..."}
}

// meterCap keeps the cosmetic bar short of done until the job really is.
const meterCap = 95

// Meter is the purely cosmetic progress percentage: it creeps forward
// by a capped random increment and only reads 100 once the job
// completes. Not a measurement of anything.
type Meter struct {
	value float64
	rnd   *rand.Rand
}

func NewMeter(rnd *rand.Rand) *Meter {
	return &Meter{rnd: rnd}
}

// Tick advances the meter for one observation of status and returns
// the percentage to display.
func (m *Meter) Tick(status domain.JobStatus) int {
	switch status {
	case domain.StatusCompleted:
		m.value = 100
	case domain.StatusFailed:
		// hold
	default:
		m.value += m.rnd.Float64() * 15
		if m.value > meterCap {
			m.value = meterCap
		}
	}
	return int(m.value)
}

// ProcessingUpdate is pushed to the panel on every poll observation.
type ProcessingUpdate struct {
	Status  domain.JobStatus `json:"status"`
	Message string           `json:"message"`
	Percent int              `json:"percent"`
}

// Process runs the processing screen: poll the job every interval
// until terminal, mirroring each observation into the store and the
// onUpdate callback. On completion the final URLs are captured, the
// screen pauses briefly, and the wizard advances to review. On failure
// the error is stored and ErrJobFailed returned; the only way out is a
// full restart.
func (e *Engine) Process(ctx context.Context, onUpdate func(ProcessingUpdate)) error {
	jobID := e.store.JobID()
	if jobID == "" {
		return domain.ErrMissingPrerequisite
	}

	meter := NewMeter(e.opts.Rand)
	job, err := e.backend.Poll(ctx, jobID, e.opts.PollInterval, func(j domain.Job) {
		e.store.SetStatus(j.Status)
		if onUpdate != nil {
			p := ProgressFor(j.Status)
			onUpdate(ProcessingUpdate{Status: j.Status, Message: p.Message, Percent: meter.Tick(j.Status)})
		}
	})
	if err != nil {
		e.store.SetErrorMessage(err.Error())
		return err
	}

	if job.Status == domain.StatusFailed {
		msg := job.Error
		if msg == "" {
			msg = "Video generation failed"
		}
		e.store.SetErrorMessage(msg)
		e.log.Warn("job failed", zap.String("job_id", jobID), zap.String("error", msg))
		return domain.ErrJobFailed
	}

	e.store.SetVideoURL(job.VideoURL)
	e.store.SetQRURL(job.QRURL)
	e.log.Info("job completed", zap.String("job_id", jobID), zap.String("video_url", job.VideoURL))

	if e.opts.CompleteDelay > 0 {
		timer := time.NewTimer(e.opts.CompleteDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	e.setStep(StepReview)
	return nil
}
