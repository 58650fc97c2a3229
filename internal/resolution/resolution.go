// Package resolution implements the admin workflow over the pending queue
// and the knowledge base: promoting or dismissing queued questions and
// curating entries directly.
package resolution

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/faqhub/faqhub/internal/knowledge"
)

// Store is the persistence surface the resolution workflow needs.
type Store interface {
	ListEntries(ctx context.Context) ([]knowledge.Entry, error)
	GetEntry(ctx context.Context, id uuid.UUID) (*knowledge.Entry, error)
	InsertEntry(ctx context.Context, question, answer string, fingerprint []float32, source string) (*knowledge.Entry, error)
	UpdateAnswer(ctx context.Context, id uuid.UUID, answer string) error
	DeleteEntry(ctx context.Context, id uuid.UUID) error
	BumpCounter(ctx context.Context, id uuid.UUID, kind string) error

	ListPending(ctx context.Context, status string) ([]knowledge.PendingQuestion, error)
	GetPending(ctx context.Context, id uuid.UUID) (*knowledge.PendingQuestion, error)
	PromotePending(ctx context.Context, id uuid.UUID, answer string, fingerprint []float32) (*knowledge.Entry, error)
	SetPendingStatus(ctx context.Context, id uuid.UUID, status string) error
}

// Fingerprinter produces the embedding vector for a question.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, text string) ([]float32, error)
}

// Service exposes the admin operations.
type Service struct {
	store         Store
	fingerprinter Fingerprinter
	logger        *slog.Logger
}

// NewService creates the resolution service.
func NewService(store Store, fingerprinter Fingerprinter, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if fingerprinter == nil {
		return nil, fmt.Errorf("fingerprinter is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, fingerprinter: fingerprinter, logger: logger}, nil
}

// Promote turns a pending question into a knowledge base entry with the
// supplied answer.
//
// The fingerprint is computed from the pending question's original text, so
// the new entry matches future askings of the same question. Promotion is
// terminal: once the row leaves the pending status, a second Promote fails
// with ErrNotFound and no duplicate entry is created.
func (s *Service) Promote(ctx context.Context, pendingID uuid.UUID, answer string) (*knowledge.Entry, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, fmt.Errorf("%w: answer must not be empty", knowledge.ErrInvalidInput)
	}

	pending, err := s.store.GetPending(ctx, pendingID)
	if err != nil {
		return nil, err
	}
	if pending.Status != knowledge.StatusPending {
		return nil, fmt.Errorf("pending question %s is %s: %w", pendingID, pending.Status, knowledge.ErrNotFound)
	}

	// Embedding is the single fallible upstream call; it happens before any
	// write so a failure leaves the queue untouched.
	vec, err := s.fingerprinter.Fingerprint(ctx, pending.Question)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting pending question: %w", err)
	}

	return s.store.PromotePending(ctx, pendingID, answer, vec)
}

// Dismiss marks a pending question as not worth answering.
// Dismissing an already dismissed question is a no-op; dismissing an
// answered one fails with ErrAlreadyResolved.
func (s *Service) Dismiss(ctx context.Context, pendingID uuid.UUID) error {
	return s.store.SetPendingStatus(ctx, pendingID, knowledge.StatusDismissed)
}

// ListPending returns queued questions, optionally filtered by status.
func (s *Service) ListPending(ctx context.Context, status string) ([]knowledge.PendingQuestion, error) {
	switch status {
	case "", knowledge.StatusPending, knowledge.StatusAnswered, knowledge.StatusDismissed:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", knowledge.ErrInvalidInput, status)
	}
	return s.store.ListPending(ctx, status)
}

// AddEntry creates a knowledge base entry directly, bypassing the queue.
func (s *Service) AddEntry(ctx context.Context, question, answer string) (*knowledge.Entry, error) {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if question == "" || answer == "" {
		return nil, fmt.Errorf("%w: question and answer must not be empty", knowledge.ErrInvalidInput)
	}

	vec, err := s.fingerprinter.Fingerprint(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting question: %w", err)
	}

	entry, err := s.store.InsertEntry(ctx, question, answer, vec, knowledge.SourceAdmin)
	if err != nil {
		return nil, err
	}
	s.logger.Info("added knowledge base entry", "id", entry.ID)
	return entry, nil
}

// EditEntry replaces an entry's answer. The question and its fingerprint
// stay as they are; engagement counters reset because the feedback applied
// to the old answer.
func (s *Service) EditEntry(ctx context.Context, id uuid.UUID, answer string) (*knowledge.Entry, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, fmt.Errorf("%w: answer must not be empty", knowledge.ErrInvalidInput)
	}
	if err := s.store.UpdateAnswer(ctx, id, answer); err != nil {
		return nil, err
	}
	return s.store.GetEntry(ctx, id)
}

// DeleteEntry removes an entry. Pending questions that were promoted from it
// keep their answered status.
func (s *Service) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteEntry(ctx, id); err != nil {
		return err
	}
	s.logger.Info("deleted knowledge base entry", "id", id)
	return nil
}

// ListEntries returns all knowledge base entries for the admin surface.
func (s *Service) ListEntries(ctx context.Context) ([]knowledge.Entry, error) {
	return s.store.ListEntries(ctx)
}

// GetEntry returns one entry by ID.
func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (*knowledge.Entry, error) {
	return s.store.GetEntry(ctx, id)
}

// Feedback records a reader reaction on an entry. kind is one of the
// knowledge counter kinds.
func (s *Service) Feedback(ctx context.Context, id uuid.UUID, kind string) error {
	return s.store.BumpCounter(ctx, id, kind)
}
