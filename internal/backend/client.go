// Package backend is the typed client for the generation service. The
// kiosk owns none of the heavy lifting; every operation here is a thin
// request/response wrapper around the service's REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"anthem-kiosk/internal/domain"
	"go.uber.org/zap"
)

// DefaultPollInterval is the cadence for job status polling.
const DefaultPollInterval = 2 * time.Second

type Client struct {
	baseURL string
	httpc   *http.Client
	log     *zap.Logger
}

func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
		log:     log,
	}
}

type jobResponse struct {
	JobID string `json:"job_id"`
}

type questionsResponse struct {
	Questions []domain.Question           `json:"questions"`
	Key       []domain.QuestionWithAnswer `json:"key"`
}

type answersRequest struct {
	Key     []domain.QuestionWithAnswer `json:"key"`
	Answers []*int                      `json:"answers"`
}

// CreateJob uploads the captured photo and avatar category and starts
// a generation job. Not retried: a second call would start a second job.
func (c *Client) CreateJob(ctx context.Context, image []byte, avatar domain.Avatar, phone string) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", "photo.jpg")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return "", fmt.Errorf("write image part: %w", err)
	}
	if err := w.WriteField("age_group", string(avatar)); err != nil {
		return "", fmt.Errorf("write age_group: %w", err)
	}
	if phone != "" {
		if err := w.WriteField("phone", phone); err != nil {
			return "", fmt.Errorf("write phone: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/jobs", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", serverError(resp, "failed to create job")
	}

	var out jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode job response: %w", err)
	}
	c.log.Info("generation job created", zap.String("job_id", out.JobID), zap.String("avatar", string(avatar)))
	return out.JobID, nil
}

// Status fetches the current lifecycle state of a job.
func (c *Client) Status(ctx context.Context, jobID string) (domain.Job, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/jobs/"+url.PathEscape(jobID), nil)
	if err != nil {
		return domain.Job{}, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return domain.Job{}, fmt.Errorf("check job status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Job{}, fmt.Errorf("failed to check job status: %s", resp.Status)
	}

	var job domain.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return domain.Job{}, fmt.Errorf("decode job status: %w", err)
	}
	return job, nil
}

// Questions fetches count quiz questions plus the answer key. The seed
// makes selection deterministic; callers pass the job ID so quiz
// content is bound to the session.
func (c *Client) Questions(ctx context.Context, count int, seed string) ([]domain.Question, []domain.QuestionWithAnswer, error) {
	q := url.Values{}
	q.Set("count", strconv.Itoa(count))
	if seed != "" {
		q.Set("seed", seed)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/questions?"+q.Encode(), nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch questions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("failed to fetch questions: %s", resp.Status)
	}

	var out questionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, nil, fmt.Errorf("decode questions: %w", err)
	}
	return out.Questions, out.Key, nil
}

// SubmitAnswers sends the answer key and the visitor's picks for
// grading. The grading endpoint is stateless: it scores against the
// key it originally handed out.
func (c *Client) SubmitAnswers(ctx context.Context, jobID string, key []domain.QuestionWithAnswer, answers []*int) (domain.QuizResult, error) {
	payload, err := json.Marshal(answersRequest{Key: key, Answers: answers})
	if err != nil {
		return domain.QuizResult{}, fmt.Errorf("marshal answers: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/jobs/"+url.PathEscape(jobID)+"/answers", bytes.NewReader(payload))
	if err != nil {
		return domain.QuizResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return domain.QuizResult{}, fmt.Errorf("submit answers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.QuizResult{}, serverError(resp, "failed to submit answers")
	}

	var result domain.QuizResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.QuizResult{}, fmt.Errorf("decode quiz result: %w", err)
	}
	return result, nil
}

// QRCodeURL derives the QR image URL for a job. Pure string
// construction, no request.
func (c *Client) QRCodeURL(jobID string) string {
	return c.baseURL + "/api/jobs/" + url.PathEscape(jobID) + "/qr"
}

// DownloadQRCode streams the QR image into w.
func (c *Client) DownloadQRCode(ctx context.Context, jobID string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.QRCodeURL(jobID), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("download qr code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("failed to download qr code: %s", resp.Status)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("save qr code: %w", err)
	}
	return nil
}

// Health probes the backend's liveness endpoint. Every failure mode
// reads as unhealthy.
func (c *Client) Health(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false
	}
	var out struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false
	}
	return out.OK
}

// Poll fetches the job status at the given interval until it reaches a
// terminal state, invoking onUpdate for every observation. The first
// check runs immediately. A failed fetch aborts the poll; there is no
// retry, the caller decides how to recover.
func (c *Client) Poll(ctx context.Context, jobID string, interval time.Duration, onUpdate func(domain.Job)) (domain.Job, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	check := func() (domain.Job, bool, error) {
		job, err := c.Status(ctx, jobID)
		if err != nil {
			return domain.Job{}, false, err
		}
		if onUpdate != nil {
			onUpdate(job)
		}
		return job, job.Status.Terminal(), nil
	}

	if job, done, err := check(); err != nil || done {
		return job, err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return domain.Job{}, ctx.Err()
		case <-ticker.C:
			job, done, err := check()
			if err != nil || done {
				return job, err
			}
		}
	}
}

// serverError prefers the backend's detail message and falls back to a
// generic one.
func serverError(resp *http.Response, fallback string) error {
	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&detail); err == nil && detail.Detail != "" {
		return fmt.Errorf("%s", detail.Detail)
	}
	return fmt.Errorf("%s", fallback)
}
