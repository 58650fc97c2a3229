// Package knowledge persists the knowledge base and the pending question
// queue in PostgreSQL.
//
// The Store exclusively owns both entity lifetimes: the retrieval and
// resolution services request mutations through it and never touch rows
// directly. Write operations are guarded per row (conditional UPDATEs,
// ON CONFLICT inserts) so concurrent requests cannot produce lost updates.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// querier is the common interface satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// entryCols is the standard SELECT column list for scanEntry.
const entryCols = `id, question, answer, fingerprint, source, likes, review_requests, created_at, updated_at`

// Store manages knowledge base entries and pending questions.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a Store backed by the given connection pool.
// The pool is created once at startup and shared; Store never closes it.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// ListFingerprinted returns every entry that has a fingerprint, in creation
// order. Entries without a fingerprint are excluded here so the scorer never
// sees them. The fixed ordering keeps ranking deterministic across calls.
func (s *Store) ListFingerprinted(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entryCols+` FROM kb_entries WHERE fingerprint IS NOT NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing fingerprinted entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// ListEntries returns all entries for the admin surface, newest first.
func (s *Store) ListEntries(ctx context.Context) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+entryCols+` FROM kb_entries ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// GetEntry retrieves a single entry by ID.
// Returns ErrNotFound if no entry with that ID exists.
func (s *Store) GetEntry(ctx context.Context, id uuid.UUID) (*Entry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+entryCols+` FROM kb_entries WHERE id = $1`, id)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("entry %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting entry %s: %w", id, err)
	}
	return entry, nil
}

// InsertEntry adds a new knowledge base entry with the given fingerprint.
func (s *Store) InsertEntry(ctx context.Context, question, answer string, fingerprint []float32, source string) (*Entry, error) {
	entry, err := insertEntry(ctx, s.pool, question, answer, fingerprint, source)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("inserted entry", "id", entry.ID, "source", source)
	return entry, nil
}

// UpdateAnswer replaces an entry's answer text.
//
// Both engagement counters reset to zero: accumulated feedback referred to
// the old answer. The fingerprint is not recomputed; it is derived from the
// question, which does not change here.
func (s *Store) UpdateAnswer(ctx context.Context, id uuid.UUID, answer string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE kb_entries
		 SET answer = $2, likes = 0, review_requests = 0, updated_at = now()
		 WHERE id = $1`, id, answer)
	if err != nil {
		return fmt.Errorf("updating answer for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	s.logger.Debug("updated answer", "id", id)
	return nil
}

// DeleteEntry removes an entry outright. No soft delete.
func (s *Store) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM kb_entries WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting entry %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	s.logger.Debug("deleted entry", "id", id)
	return nil
}

// BumpCounter increments one of the entry's engagement counters.
// The increment is a single UPDATE, so concurrent bumps never lose counts.
func (s *Store) BumpCounter(ctx context.Context, id uuid.UUID, kind string) error {
	var column string
	switch kind {
	case CounterLike:
		column = "likes"
	case CounterReviewRequest:
		column = "review_requests"
	default:
		return fmt.Errorf("counter kind %q: %w", kind, ErrInvalidInput)
	}

	// column comes from the switch above, never from caller input.
	tag, err := s.pool.Exec(ctx,
		`UPDATE kb_entries SET `+column+` = `+column+` + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("bumping %s for %s: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	return nil
}

// insertPendingSQL relies on the partial unique index over open questions:
// two concurrent identical questions cannot both insert.
const insertPendingSQL = `INSERT INTO pending_questions (question, session_id)
	VALUES ($1, $2)
	ON CONFLICT (question) WHERE status = 'pending' DO NOTHING
	RETURNING id`

// InsertPendingIfAbsent enqueues a question for human resolution.
//
// Enqueueing is idempotent by exact question text among currently pending
// rows: if an identical question is already pending its ID is returned and
// created is false. Resolved rows do not participate: re-asking a question
// after its pending row was answered or dismissed creates a fresh row.
func (s *Store) InsertPendingIfAbsent(ctx context.Context, question, sessionID string) (uuid.UUID, bool, error) {
	// The insert and the fallback lookup are not one atomic unit; if the
	// conflicting row is resolved between them, retry the insert.
	for attempt := 0; attempt < 3; attempt++ {
		var id uuid.UUID
		err := s.pool.QueryRow(ctx, insertPendingSQL, question, sessionID).Scan(&id)
		if err == nil {
			s.logger.Debug("enqueued pending question", "id", id)
			return id, true, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, fmt.Errorf("inserting pending question: %w", err)
		}

		err = s.pool.QueryRow(ctx,
			`SELECT id FROM pending_questions WHERE question = $1 AND status = $2`,
			question, StatusPending).Scan(&id)
		if err == nil {
			return id, false, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, false, fmt.Errorf("looking up pending question: %w", err)
		}
	}
	return uuid.Nil, false, fmt.Errorf("enqueueing pending question: concurrent resolution raced the insert")
}

// ListPending returns pending questions, newest first.
// An empty status returns all rows regardless of status.
func (s *Store) ListPending(ctx context.Context, status string) ([]PendingQuestion, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if status == "" {
		rows, err = s.pool.Query(ctx,
			`SELECT id, question, session_id, status, asked_at
			 FROM pending_questions ORDER BY asked_at DESC, id`)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id, question, session_id, status, asked_at
			 FROM pending_questions WHERE status = $1 ORDER BY asked_at DESC, id`, status)
	}
	if err != nil {
		return nil, fmt.Errorf("listing pending questions: %w", err)
	}
	defer rows.Close()

	var pending []PendingQuestion
	for rows.Next() {
		var p PendingQuestion
		if err := rows.Scan(&p.ID, &p.Question, &p.SessionID, &p.Status, &p.AskedAt); err != nil {
			return nil, fmt.Errorf("scanning pending question: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pending questions: %w", err)
	}
	return pending, nil
}

// GetPending retrieves a pending question by ID.
// Returns ErrNotFound if no row with that ID exists.
func (s *Store) GetPending(ctx context.Context, id uuid.UUID) (*PendingQuestion, error) {
	var p PendingQuestion
	err := s.pool.QueryRow(ctx,
		`SELECT id, question, session_id, status, asked_at
		 FROM pending_questions WHERE id = $1`, id).
		Scan(&p.ID, &p.Question, &p.SessionID, &p.Status, &p.AskedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("pending question %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("getting pending question %s: %w", id, err)
	}
	return &p, nil
}

// SetPendingStatus transitions a pending question to a terminal status.
//
// The update is guarded on the current status being pending, so a resolved
// row is never silently overridden. Re-applying the same terminal status is
// a no-op; applying a different one fails with ErrAlreadyResolved.
func (s *Store) SetPendingStatus(ctx context.Context, id uuid.UUID, status string) error {
	if status != StatusAnswered && status != StatusDismissed {
		return fmt.Errorf("status %q: %w", status, ErrInvalidInput)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE pending_questions SET status = $2 WHERE id = $1 AND status = $3`,
		id, status, StatusPending)
	if err != nil {
		return fmt.Errorf("updating pending question %s: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		s.logger.Debug("pending question resolved", "id", id, "status", status)
		return nil
	}

	var current string
	err = s.pool.QueryRow(ctx,
		`SELECT status FROM pending_questions WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("pending question %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("checking pending question %s: %w", id, err)
	}
	if current == status {
		return nil
	}
	return fmt.Errorf("pending question %s is %s: %w", id, current, ErrAlreadyResolved)
}

// PromotePending converts a pending question into a knowledge base entry.
//
// The caller embeds the pending question's original text beforehand, so the
// fingerprint call is the single fallible step. Both writes happen here
// in one transaction: insert the entry, then transition the row to answered.
// If another promotion consumed the row first, the guarded update affects no
// rows and the whole transaction rolls back with ErrNotFound, so a second
// Promote can never create a duplicate entry.
func (s *Store) PromotePending(ctx context.Context, id uuid.UUID, answer string, fingerprint []float32) (*Entry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.logger.Debug("transaction rollback", "error", rbErr)
		}
	}()

	var question string
	err = tx.QueryRow(ctx,
		`SELECT question FROM pending_questions WHERE id = $1 AND status = $2 FOR UPDATE`,
		id, StatusPending).Scan(&question)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("pending question %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("locking pending question %s: %w", id, err)
	}

	entry, err := insertEntry(ctx, tx, question, answer, fingerprint, SourceAdminFromPending)
	if err != nil {
		return nil, err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE pending_questions SET status = $2 WHERE id = $1 AND status = $3`,
		id, StatusAnswered, StatusPending)
	if err != nil {
		return nil, fmt.Errorf("answering pending question %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("pending question %s: %w", id, ErrNotFound)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing promotion: %w", err)
	}

	s.logger.Info("promoted pending question", "pending_id", id, "entry_id", entry.ID)
	return entry, nil
}

// insertEntry runs the entry INSERT against a pool or transaction.
func insertEntry(ctx context.Context, q querier, question, answer string, fingerprint []float32, source string) (*Entry, error) {
	vec := pgvector.NewVector(fingerprint)
	row := q.QueryRow(ctx,
		`INSERT INTO kb_entries (question, answer, fingerprint, source)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+entryCols, question, answer, vec, source)
	entry, err := scanEntry(row)
	if err != nil {
		return nil, fmt.Errorf("inserting entry: %w", err)
	}
	return entry, nil
}

// scanEntry reads one entry row including its nullable fingerprint.
func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e  Entry
		fp *pgvector.Vector
	)
	if err := row.Scan(&e.ID, &e.Question, &e.Answer, &fp, &e.Source,
		&e.Likes, &e.ReviewRequests, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	if fp != nil {
		e.Fingerprint = fp.Slice()
	}
	return &e, nil
}

func scanEntries(rows pgx.Rows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}
	return entries, nil
}
