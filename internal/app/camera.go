package app

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	"anthem-kiosk/internal/domain"
	"go.uber.org/zap"
)

// Constraints describe the capture stream requested from the device.
type Constraints struct {
	Width       int
	Height      int
	FacingFront bool
}

// DefaultConstraints matches the kiosk's mounted camera.
var DefaultConstraints = Constraints{Width: 1280, Height: 720, FacingFront: true}

// FrameSource is the capture-device boundary. The live preview shown
// to the visitor is mirrored; Frame returns the raw unmirrored sensor
// image. The stream is a scoped resource: Stop must be safe to call on
// every exit path.
type FrameSource interface {
	Start(ctx context.Context, c Constraints) error
	Frame(ctx context.Context) (image.Image, error)
	Stop()
}

const jpegQuality = 95

// StartCamera acquires the capture stream. Also used for the manual
// retry after a device or upload error.
func (e *Engine) StartCamera(ctx context.Context) error {
	if e.store.Avatar() == "" {
		return domain.ErrMissingPrerequisite
	}
	if err := e.camera.Start(ctx, DefaultConstraints); err != nil {
		return fmt.Errorf("unable to access camera: %w", err)
	}
	return nil
}

// Capture grabs the current frame, mirrors it so the saved photo is
// not reversed like the preview, encodes it, and immediately creates
// the generation job and fetches the quiz seeded by the new job ID.
// The stream is stopped as soon as the frame is encoded. Any failure
// is returned for an inline message; the caller retries by restarting
// the camera.
func (e *Engine) Capture(ctx context.Context) error {
	avatar := e.store.Avatar()
	if avatar == "" {
		return domain.ErrMissingPrerequisite
	}

	frame, err := e.camera.Frame(ctx)
	if err != nil {
		e.camera.Stop()
		return fmt.Errorf("capture frame: %w", err)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Mirror(frame), &jpeg.Options{Quality: jpegQuality}); err != nil {
		e.camera.Stop()
		return fmt.Errorf("encode photo: %w", err)
	}
	photo := buf.Bytes()
	e.store.SetCapturedImage(photo)
	e.camera.Stop()

	jobID, err := e.backend.CreateJob(ctx, photo, avatar, "")
	if err != nil {
		return err
	}
	e.store.SetJobID(jobID)
	e.log.Info("job created from capture", zap.String("job_id", jobID))

	questions, key, err := e.questions.Questions(ctx, e.opts.QuestionCount, jobID)
	if err != nil {
		return err
	}
	e.store.SetQuestions(questions, key)

	e.setStep(StepQuiz)
	return nil
}

// StopCamera releases the stream, e.g. on back-navigation.
func (e *Engine) StopCamera() {
	e.camera.Stop()
}

// Mirror flips an image horizontally.
func Mirror(src image.Image) *image.RGBA {
	bounds := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	for y := 0; y < bounds.Dy(); y++ {
		for x, rx := 0, bounds.Dx()-1; x < rx; x, rx = x+1, rx-1 {
			left := dst.RGBAAt(x, y)
			dst.SetRGBA(x, y, dst.RGBAAt(rx, y))
			dst.SetRGBA(rx, y, left)
		}
	}
	return dst
}
