package knowledge

import (
	"time"

	"github.com/google/uuid"
)

// Source records how a knowledge base entry was created.
const (
	// SourceAdmin marks entries authored directly by an admin.
	SourceAdmin = "admin"

	// SourceAdminFromPending marks entries promoted from the pending queue.
	SourceAdminFromPending = "admin_from_pending"
)

// Pending question lifecycle states. Answered and dismissed are terminal:
// a resolved row is never transitioned again and never reused.
const (
	StatusPending   = "pending"
	StatusAnswered  = "answered"
	StatusDismissed = "dismissed"
)

// Counter kinds accepted by Store.BumpCounter.
const (
	CounterLike          = "like"
	CounterReviewRequest = "review_request"
)

// Entry is a knowledge base entry: a curated question/answer pair with the
// question's fingerprint vector.
//
// The fingerprint is derived from Question, never from Answer. Editing the
// answer resets the engagement counters (the feedback referred to the old
// answer) but leaves the fingerprint untouched.
//
// The fingerprint never leaves the process: it is raw model output with no
// meaning to API clients, so it is excluded from serialization.
type Entry struct {
	ID             uuid.UUID `json:"id"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	Fingerprint    []float32 `json:"-"` // nil when the entry has no fingerprint
	Source         string    `json:"source"`
	Likes          int32     `json:"likes"`
	ReviewRequests int32     `json:"review_requests"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PendingQuestion is a user question with no confident knowledge base match,
// queued for human resolution.
type PendingQuestion struct {
	ID        uuid.UUID `json:"id"`
	Question  string    `json:"question"`
	SessionID string    `json:"session_id"`
	Status    string    `json:"status"`
	AskedAt   time.Time `json:"asked_at"`
}
