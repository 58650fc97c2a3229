package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/faqhub/faqhub/internal/knowledge"
)

// MemStore is an in-memory stand-in for the PostgreSQL knowledge store.
// It mirrors the store's guarantees (guarded status transitions, pending
// dedup, counter resets) so service tests run without a database.
//
// Safe for concurrent use.
type MemStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*knowledge.Entry
	pending map[uuid.UUID]*knowledge.PendingQuestion

	// Err, when set, is returned from every operation.
	Err error
}

// NewMemStore creates an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		entries: make(map[uuid.UUID]*knowledge.Entry),
		pending: make(map[uuid.UUID]*knowledge.PendingQuestion),
	}
}

// ListFingerprinted returns entries with a fingerprint in creation order.
func (s *MemStore) ListFingerprinted(_ context.Context) ([]knowledge.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	var entries []knowledge.Entry
	for _, e := range s.entries {
		if e.Fingerprint != nil {
			entries = append(entries, *e)
		}
	}
	sortEntriesByCreation(entries)
	return entries, nil
}

// ListEntries returns all entries, newest first.
func (s *MemStore) ListEntries(_ context.Context) ([]knowledge.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	var entries []knowledge.Entry
	for _, e := range s.entries {
		entries = append(entries, *e)
	}
	sortEntriesByCreation(entries)
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// GetEntry returns one entry by ID.
func (s *MemStore) GetEntry(_ context.Context, id uuid.UUID) (*knowledge.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	e, ok := s.entries[id]
	if !ok {
		return nil, fmt.Errorf("entry %s: %w", id, knowledge.ErrNotFound)
	}
	copied := *e
	return &copied, nil
}

// InsertEntry adds a new entry.
func (s *MemStore) InsertEntry(_ context.Context, question, answer string, fingerprint []float32, source string) (*knowledge.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.insertLocked(question, answer, fingerprint, source), nil
}

func (s *MemStore) insertLocked(question, answer string, fingerprint []float32, source string) *knowledge.Entry {
	now := time.Now()
	e := &knowledge.Entry{
		ID:          uuid.New(),
		Question:    question,
		Answer:      answer,
		Fingerprint: fingerprint,
		Source:      source,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.entries[e.ID] = e
	copied := *e
	return &copied
}

// UpdateAnswer replaces an entry's answer and resets its counters.
func (s *MemStore) UpdateAnswer(_ context.Context, id uuid.UUID, answer string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("entry %s: %w", id, knowledge.ErrNotFound)
	}
	e.Answer = answer
	e.Likes = 0
	e.ReviewRequests = 0
	e.UpdatedAt = time.Now()
	return nil
}

// DeleteEntry removes an entry.
func (s *MemStore) DeleteEntry(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	if _, ok := s.entries[id]; !ok {
		return fmt.Errorf("entry %s: %w", id, knowledge.ErrNotFound)
	}
	delete(s.entries, id)
	return nil
}

// BumpCounter increments an engagement counter.
func (s *MemStore) BumpCounter(_ context.Context, id uuid.UUID, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("entry %s: %w", id, knowledge.ErrNotFound)
	}
	switch kind {
	case knowledge.CounterLike:
		e.Likes++
	case knowledge.CounterReviewRequest:
		e.ReviewRequests++
	default:
		return fmt.Errorf("counter kind %q: %w", kind, knowledge.ErrInvalidInput)
	}
	return nil
}

// InsertPendingIfAbsent enqueues a question unless an identical one is
// already pending.
func (s *MemStore) InsertPendingIfAbsent(_ context.Context, question, sessionID string) (uuid.UUID, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return uuid.Nil, false, s.Err
	}

	for _, p := range s.pending {
		if p.Question == question && p.Status == knowledge.StatusPending {
			return p.ID, false, nil
		}
	}
	p := &knowledge.PendingQuestion{
		ID:        uuid.New(),
		Question:  question,
		SessionID: sessionID,
		Status:    knowledge.StatusPending,
		AskedAt:   time.Now(),
	}
	s.pending[p.ID] = p
	return p.ID, true, nil
}

// ListPending returns pending questions, optionally filtered by status.
func (s *MemStore) ListPending(_ context.Context, status string) ([]knowledge.PendingQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	var out []knowledge.PendingQuestion
	for _, p := range s.pending {
		if status == "" || p.Status == status {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AskedAt.After(out[j].AskedAt) })
	return out, nil
}

// GetPending returns one pending question by ID.
func (s *MemStore) GetPending(_ context.Context, id uuid.UUID) (*knowledge.PendingQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	p, ok := s.pending[id]
	if !ok {
		return nil, fmt.Errorf("pending question %s: %w", id, knowledge.ErrNotFound)
	}
	copied := *p
	return &copied, nil
}

// PromotePending converts a pending question into an entry and marks it
// answered, atomically.
func (s *MemStore) PromotePending(_ context.Context, id uuid.UUID, answer string, fingerprint []float32) (*knowledge.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	p, ok := s.pending[id]
	if !ok || p.Status != knowledge.StatusPending {
		return nil, fmt.Errorf("pending question %s: %w", id, knowledge.ErrNotFound)
	}
	entry := s.insertLocked(p.Question, answer, fingerprint, knowledge.SourceAdminFromPending)
	p.Status = knowledge.StatusAnswered
	return entry, nil
}

// SetPendingStatus applies a guarded terminal transition.
func (s *MemStore) SetPendingStatus(_ context.Context, id uuid.UUID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}

	if status != knowledge.StatusAnswered && status != knowledge.StatusDismissed {
		return fmt.Errorf("status %q: %w", status, knowledge.ErrInvalidInput)
	}
	p, ok := s.pending[id]
	if !ok {
		return fmt.Errorf("pending question %s: %w", id, knowledge.ErrNotFound)
	}
	if p.Status == knowledge.StatusPending {
		p.Status = status
		return nil
	}
	if p.Status == status {
		return nil
	}
	return fmt.Errorf("pending question %s is %s: %w", id, p.Status, knowledge.ErrAlreadyResolved)
}

func sortEntriesByCreation(entries []knowledge.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID.String() < entries[j].ID.String()
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}
