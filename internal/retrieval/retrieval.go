// Package retrieval answers user questions against the knowledge base.
//
// Each question is fingerprinted, ranked against the stored entries by
// cosine similarity, and either answered from the best matches or enqueued
// for human resolution when nothing scores above the threshold.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/faqhub/faqhub/internal/knowledge"
	"github.com/faqhub/faqhub/internal/similarity"
)

// DefaultThreshold is the minimum cosine similarity for a knowledge base
// entry to count as relevant.
const DefaultThreshold = 0.75

// DefaultTopN caps how many matched entries are handed to the generator.
const DefaultTopN = 3

// DefaultSessionID is used when the caller does not identify a session.
const DefaultSessionID = "anonymous"

// MissMessage is returned verbatim when no entry clears the threshold.
const MissMessage = "I don't have an answer for that yet. Your question has been forwarded to our team and will be answered shortly!"

// Store is the persistence surface the retrieval path needs.
type Store interface {
	ListFingerprinted(ctx context.Context) ([]knowledge.Entry, error)
	InsertPendingIfAbsent(ctx context.Context, question, sessionID string) (uuid.UUID, bool, error)
}

// Fingerprinter produces the embedding vector for a question.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, text string) ([]float32, error)
}

// Generator produces the final answer text from the matched entries.
type Generator interface {
	Answer(ctx context.Context, question string, matches []knowledge.Entry) (string, error)
}

// Match describes one knowledge base entry that cleared the threshold,
// ordered best first.
type Match struct {
	EntryID  uuid.UUID `json:"entry_id"`
	Question string    `json:"question"`
	Score    float64   `json:"score"`
}

// Answer is the outcome of one Ask call.
//
// Matched distinguishes the two outcomes: when true, Text is a generated
// answer grounded in Matches; when false, Text is MissMessage and PendingID
// identifies the queued question.
type Answer struct {
	Text      string    `json:"answer"`
	Matched   bool      `json:"matched"`
	Matches   []Match   `json:"matches,omitempty"`
	PendingID uuid.UUID `json:"pending_id,omitzero"`
}

// Service orchestrates the question answering pipeline.
type Service struct {
	store         Store
	fingerprinter Fingerprinter
	generator     Generator
	threshold     float64
	topN          int
	logger        *slog.Logger
}

// Config carries the tunables for NewService. Zero values fall back to the
// package defaults.
type Config struct {
	Threshold float64
	TopN      int
}

// NewService creates the retrieval service.
func NewService(store Store, fingerprinter Fingerprinter, generator Generator, cfg Config, logger *slog.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if fingerprinter == nil {
		return nil, fmt.Errorf("fingerprinter is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultTopN
	}
	return &Service{
		store:         store,
		fingerprinter: fingerprinter,
		generator:     generator,
		threshold:     cfg.Threshold,
		topN:          cfg.TopN,
		logger:        logger,
	}, nil
}

// Ask answers a single question.
//
// On a hit the generator is called with the matched entries and its text is
// returned. On a miss the question is enqueued for human resolution and the
// fixed MissMessage is returned. A generator failure after a hit surfaces as
// ErrUpstreamUnavailable and does not enqueue: relevant knowledge exists,
// the question is not unanswered.
func (s *Service) Ask(ctx context.Context, question, sessionID string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question must not be empty", knowledge.ErrInvalidInput)
	}
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	vec, err := s.fingerprinter.Fingerprint(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting question: %w", err)
	}

	entries, err := s.store.ListFingerprinted(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading knowledge base: %w", err)
	}

	byID := make(map[string]*knowledge.Entry, len(entries))
	candidates := make([]similarity.Candidate, 0, len(entries))
	for i := range entries {
		id := entries[i].ID.String()
		byID[id] = &entries[i]
		candidates = append(candidates, similarity.Candidate{ID: id, Vector: entries[i].Fingerprint})
	}

	ranked := similarity.Rank(vec, candidates, s.topN, s.threshold)
	if len(ranked) == 0 {
		return s.miss(ctx, question, sessionID)
	}

	matched := make([]knowledge.Entry, 0, len(ranked))
	matches := make([]Match, 0, len(ranked))
	for _, m := range ranked {
		entry := byID[m.ID]
		matched = append(matched, *entry)
		matches = append(matches, Match{EntryID: entry.ID, Question: entry.Question, Score: m.Score})
	}

	text, err := s.generator.Answer(ctx, question, matched)
	if err != nil {
		return nil, fmt.Errorf("%w: generating answer: %v", knowledge.ErrUpstreamUnavailable, err)
	}

	s.logger.Debug("answered from knowledge base",
		"session_id", sessionID,
		"matches", len(matches),
		"top_score", matches[0].Score)

	return &Answer{Text: text, Matched: true, Matches: matches}, nil
}

func (s *Service) miss(ctx context.Context, question, sessionID string) (*Answer, error) {
	id, created, err := s.store.InsertPendingIfAbsent(ctx, question, sessionID)
	if err != nil {
		return nil, fmt.Errorf("enqueueing unanswered question: %w", err)
	}

	s.logger.Info("question forwarded for resolution",
		"pending_id", id,
		"session_id", sessionID,
		"newly_queued", created)

	return &Answer{Text: MissMessage, PendingID: id}, nil
}
