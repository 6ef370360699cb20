// Package postgres records finished kiosk sessions for reporting.
package postgres

import (
	"context"
	"fmt"

	"anthem-kiosk/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

type Archive struct {
	pool *pgxpool.Pool
}

func NewArchive(pool *pgxpool.Pool) *Archive {
	return &Archive{pool: pool}
}

// Record stores the durable snapshot of a completed session. Upserts
// so a replayed finish does not duplicate rows.
func (a *Archive) Record(ctx context.Context, rec domain.SessionRecord) error {
	var total, correct, score *int
	if rec.QuizScore != nil {
		total, correct, score = &rec.QuizScore.Total, &rec.QuizScore.Correct, &rec.QuizScore.Score
	}
	_, err := a.pool.Exec(ctx, `
		INSERT INTO kiosk_sessions (session_id, avatar_type, job_id, video_url, quiz_total, quiz_correct, quiz_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id) DO UPDATE SET
			avatar_type = EXCLUDED.avatar_type,
			job_id = EXCLUDED.job_id,
			video_url = EXCLUDED.video_url,
			quiz_total = EXCLUDED.quiz_total,
			quiz_correct = EXCLUDED.quiz_correct,
			quiz_score = EXCLUDED.quiz_score`,
		rec.SessionID, string(rec.Avatar), rec.JobID, rec.VideoURL, total, correct, score)
	if err != nil {
		return fmt.Errorf("archive session: %w", err)
	}
	return nil
}

// Recent returns the latest archived sessions, newest first.
func (a *Archive) Recent(ctx context.Context, limit int) ([]domain.SessionRecord, error) {
	rows, err := a.pool.Query(ctx, `
		SELECT session_id, avatar_type, job_id, video_url, quiz_total, quiz_correct, quiz_score
		FROM kiosk_sessions
		ORDER BY completed_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionRecord
	for rows.Next() {
		var rec domain.SessionRecord
		var avatar string
		var total, correct, score *int
		if err := rows.Scan(&rec.SessionID, &avatar, &rec.JobID, &rec.VideoURL, &total, &correct, &score); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.Avatar = domain.Avatar(avatar)
		if total != nil && correct != nil && score != nil {
			rec.QuizScore = &domain.QuizResult{Total: *total, Correct: *correct, Score: *score}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
