package domain

// Avatar is the traditional-attire category a visitor picks for the
// generated anthem video.
type Avatar string

const (
	AvatarBoy    Avatar = "Boy"
	AvatarGirl   Avatar = "Girl"
	AvatarMale   Avatar = "Male"
	AvatarFemale Avatar = "Female"
)

// Avatars lists every selectable category in display order.
func Avatars() []Avatar {
	return []Avatar{AvatarBoy, AvatarGirl, AvatarMale, AvatarFemale}
}

// Valid reports whether a is one of the known categories.
func (a Avatar) Valid() bool {
	switch a {
	case AvatarBoy, AvatarGirl, AvatarMale, AvatarFemale:
		return true
	}
	return false
}

// JobStatus is the lifecycle state of a generation job as reported by
// the backend: queued → image → video → completed, with failed
// reachable from any non-terminal state.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusImage     JobStatus = "image"
	StatusVideo     JobStatus = "video"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Terminal reports whether no further transitions can follow s.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Rank orders the forward-progress states for monotonicity checks.
// Terminal states rank above every non-terminal one.
func (s JobStatus) Rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusImage:
		return 1
	case StatusVideo:
		return 2
	case StatusCompleted, StatusFailed:
		return 3
	}
	return -1
}

// Job is a read-only projection of the backend's generation job.
type Job struct {
	Status   JobStatus `json:"status"`
	Error    string    `json:"error,omitempty"`
	VideoURL string    `json:"video_url,omitempty"`
	QRURL    string    `json:"qr_url,omitempty"`
}

// Question is a multiple-choice quiz question with the answer withheld.
type Question struct {
	ID       int      `json:"id"`
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

// QuestionWithAnswer pairs a question with the index of its correct
// option. The backend hands the full key to the client and trusts it
// to echo the key back on submission.
type QuestionWithAnswer struct {
	Question
	Answer int `json:"answer"`
}

// QuizResult is the grading outcome for a submitted answer set.
type QuizResult struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
	Score   int `json:"score"`
}

// SessionRecord is the durable subset of the wizard state. It survives
// a kiosk restart; everything else in the store is per-session and
// starts empty again.
type SessionRecord struct {
	SessionID string      `json:"sessionId"`
	Avatar    Avatar      `json:"avatarType,omitempty"`
	JobID     string      `json:"jobId,omitempty"`
	VideoURL  string      `json:"videoUrl,omitempty"`
	QuizScore *QuizResult `json:"quizScore,omitempty"`
}

// Empty reports whether the record carries no session data worth
// restoring.
func (r SessionRecord) Empty() bool {
	return r.Avatar == "" && r.JobID == "" && r.VideoURL == "" && r.QuizScore == nil
}

// PuzzlePiece is one of the sixteen flag quadrant pieces. Slot is the
// only board position that accepts it.
type PuzzlePiece struct {
	ID    int    `json:"id"`
	Label string `json:"label"`
	Color string `json:"color"`
	Slot  int    `json:"slot"`
}

// PuzzleSize is the number of pieces (and slots) in the flag puzzle.
const PuzzleSize = 16

// FlagPieces returns the fixed piece set for the flag puzzle: four
// pieces per stripe, each bound to the slot matching its position.
func FlagPieces() []PuzzlePiece {
	stripes := []struct {
		prefix string
		color  string
	}{
		{"R", "#FF0000"},
		{"G", "#00732F"},
		{"W", "#FFFFFF"},
		{"B", "#000000"},
	}

	pieces := make([]PuzzlePiece, 0, PuzzleSize)
	for si, stripe := range stripes {
		for i := 0; i < 4; i++ {
			id := si*4 + i
			pieces = append(pieces, PuzzlePiece{
				ID:    id,
				Label: stripe.prefix + string(rune('1'+i)),
				Color: stripe.color,
				Slot:  id,
			})
		}
	}
	return pieces
}
