package app

import (
	"context"
	"fmt"
	"io"

	"anthem-kiosk/internal/domain"
	"go.uber.org/zap"
)

// FinishReview moves from the video review to the QR handoff.
func (e *Engine) FinishReview() Step {
	return e.Enter(StepQR)
}

// QRCodeURL returns the QR image URL for the current job.
func (e *Engine) QRCodeURL() (string, error) {
	jobID := e.store.JobID()
	if jobID == "" {
		return "", domain.ErrMissingPrerequisite
	}
	return e.backend.QRCodeURL(jobID), nil
}

// DownloadQRCode streams the QR image for the current job into w.
func (e *Engine) DownloadQRCode(ctx context.Context, w io.Writer) error {
	jobID := e.store.JobID()
	if jobID == "" {
		return domain.ErrMissingPrerequisite
	}
	return e.backend.DownloadQRCode(ctx, jobID, w)
}

// VideoFilename and QRFilename name the files offered for download.
func (e *Engine) VideoFilename() string {
	return fmt.Sprintf("uae-anthem-%s.mp4", e.store.JobID())
}

func (e *Engine) QRFilename() string {
	return fmt.Sprintf("uae-anthem-qr-%s.png", e.store.JobID())
}

// Finish archives the completed session, clears every field including
// the durable subset, and returns the kiosk to the welcome screen.
// Archiving is best effort: a reporting failure must not trap the
// visitor's session on screen.
func (e *Engine) Finish(ctx context.Context) {
	if e.archive != nil {
		rec := e.store.Record()
		if rec.JobID != "" {
			if err := e.archive.Record(ctx, rec); err != nil {
				e.log.Warn("archive session", zap.Error(err))
			}
		}
	}
	e.Restart()
}
