package resolution_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/faqhub/faqhub/internal/knowledge"
	"github.com/faqhub/faqhub/internal/resolution"
	"github.com/faqhub/faqhub/internal/testutil"
)

func setupService(t *testing.T) (*resolution.Service, *testutil.MemStore, *testutil.MockFingerprinter) {
	t.Helper()

	store := testutil.NewMemStore()
	fp := testutil.NewMockFingerprinter(8)
	svc, err := resolution.NewService(store, fp, testutil.DiscardLogger())
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc, store, fp
}

func enqueue(t *testing.T, store *testutil.MemStore, question string) uuid.UUID {
	t.Helper()
	id, _, err := store.InsertPendingIfAbsent(context.Background(), question, "s1")
	if err != nil {
		t.Fatalf("InsertPendingIfAbsent() error = %v", err)
	}
	return id
}

func TestPromote(t *testing.T) {
	svc, store, fp := setupService(t)
	id := enqueue(t, store, "How do refunds work?")

	entry, err := svc.Promote(context.Background(), id, "Refunds take 5 days.")
	if err != nil {
		t.Fatalf("Promote() error = %v", err)
	}

	if entry.Question != "How do refunds work?" {
		t.Errorf("promoted entry question = %q, want the pending question's text", entry.Question)
	}
	if entry.Answer != "Refunds take 5 days." {
		t.Errorf("promoted entry answer = %q", entry.Answer)
	}
	if entry.Source != knowledge.SourceAdminFromPending {
		t.Errorf("promoted entry source = %q, want %q", entry.Source, knowledge.SourceAdminFromPending)
	}

	// Fingerprint comes from the original question text.
	want, _ := fp.Fingerprint(context.Background(), "How do refunds work?")
	if len(entry.Fingerprint) != len(want) {
		t.Fatalf("promoted fingerprint has dimension %d, want %d", len(entry.Fingerprint), len(want))
	}
	for i := range want {
		if entry.Fingerprint[i] != want[i] {
			t.Fatal("promoted fingerprint differs from the question's embedding")
		}
	}

	pending, err := store.GetPending(context.Background(), id)
	if err != nil {
		t.Fatalf("GetPending() error = %v", err)
	}
	if pending.Status != knowledge.StatusAnswered {
		t.Errorf("pending status = %q, want answered", pending.Status)
	}
}

func TestPromoteIsTerminal(t *testing.T) {
	svc, store, _ := setupService(t)
	id := enqueue(t, store, "once only")

	if _, err := svc.Promote(context.Background(), id, "answer one"); err != nil {
		t.Fatalf("first Promote() error = %v", err)
	}

	_, err := svc.Promote(context.Background(), id, "answer two")
	if !errors.Is(err, knowledge.ErrNotFound) {
		t.Fatalf("second Promote() error = %v, want ErrNotFound", err)
	}

	entries, _ := store.ListEntries(context.Background())
	if len(entries) != 1 {
		t.Errorf("double promote created %d entries, want 1", len(entries))
	}
}

func TestPromoteValidation(t *testing.T) {
	svc, store, _ := setupService(t)
	id := enqueue(t, store, "question")

	_, err := svc.Promote(context.Background(), id, "   ")
	if !errors.Is(err, knowledge.ErrInvalidInput) {
		t.Errorf("Promote(empty answer) error = %v, want ErrInvalidInput", err)
	}

	_, err = svc.Promote(context.Background(), uuid.New(), "answer")
	if !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("Promote(unknown id) error = %v, want ErrNotFound", err)
	}
}

func TestPromoteEmbedderFailureLeavesQueue(t *testing.T) {
	svc, store, fp := setupService(t)
	id := enqueue(t, store, "fragile")
	fp.Fail(knowledge.ErrUpstreamUnavailable)

	_, err := svc.Promote(context.Background(), id, "answer")
	if !errors.Is(err, knowledge.ErrUpstreamUnavailable) {
		t.Fatalf("Promote() error = %v, want ErrUpstreamUnavailable", err)
	}

	pending, _ := store.GetPending(context.Background(), id)
	if pending.Status != knowledge.StatusPending {
		t.Errorf("pending status = %q after failed promote, want pending", pending.Status)
	}
	entries, _ := store.ListEntries(context.Background())
	if len(entries) != 0 {
		t.Errorf("failed promote created %d entries, want 0", len(entries))
	}
}

func TestDismiss(t *testing.T) {
	svc, store, _ := setupService(t)
	id := enqueue(t, store, "not worth answering")

	if err := svc.Dismiss(context.Background(), id); err != nil {
		t.Fatalf("Dismiss() error = %v", err)
	}
	pending, _ := store.GetPending(context.Background(), id)
	if pending.Status != knowledge.StatusDismissed {
		t.Errorf("pending status = %q, want dismissed", pending.Status)
	}

	// Dismissing again is a no-op.
	if err := svc.Dismiss(context.Background(), id); err != nil {
		t.Errorf("repeat Dismiss() error = %v, want nil", err)
	}

	if err := svc.Dismiss(context.Background(), uuid.New()); !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("Dismiss(unknown id) error = %v, want ErrNotFound", err)
	}
}

func TestDismissAnswered(t *testing.T) {
	svc, store, _ := setupService(t)
	id := enqueue(t, store, "already promoted")
	if _, err := svc.Promote(context.Background(), id, "answer"); err != nil {
		t.Fatalf("Promote() error = %v", err)
	}

	err := svc.Dismiss(context.Background(), id)
	if !errors.Is(err, knowledge.ErrAlreadyResolved) {
		t.Errorf("Dismiss(answered) error = %v, want ErrAlreadyResolved", err)
	}
}

func TestAddEntry(t *testing.T) {
	svc, _, _ := setupService(t)

	entry, err := svc.AddEntry(context.Background(), "What is faqhub?", "An FAQ service.")
	if err != nil {
		t.Fatalf("AddEntry() error = %v", err)
	}
	if entry.Source != knowledge.SourceAdmin {
		t.Errorf("entry source = %q, want %q", entry.Source, knowledge.SourceAdmin)
	}
	if len(entry.Fingerprint) == 0 {
		t.Error("entry has no fingerprint")
	}

	for _, tc := range []struct{ q, a string }{
		{"", "answer"},
		{"question", ""},
		{"  ", "  "},
	} {
		if _, err := svc.AddEntry(context.Background(), tc.q, tc.a); !errors.Is(err, knowledge.ErrInvalidInput) {
			t.Errorf("AddEntry(%q, %q) error = %v, want ErrInvalidInput", tc.q, tc.a, err)
		}
	}
}

func TestEditEntry(t *testing.T) {
	svc, store, _ := setupService(t)

	entry, err := svc.AddEntry(context.Background(), "question", "old answer")
	if err != nil {
		t.Fatalf("AddEntry() error = %v", err)
	}

	// Accumulate feedback that the edit should reset.
	if err := svc.Feedback(context.Background(), entry.ID, knowledge.CounterLike); err != nil {
		t.Fatalf("Feedback() error = %v", err)
	}
	if err := svc.Feedback(context.Background(), entry.ID, knowledge.CounterReviewRequest); err != nil {
		t.Fatalf("Feedback() error = %v", err)
	}

	updated, err := svc.EditEntry(context.Background(), entry.ID, "new answer")
	if err != nil {
		t.Fatalf("EditEntry() error = %v", err)
	}

	if updated.Answer != "new answer" {
		t.Errorf("updated answer = %q", updated.Answer)
	}
	if updated.Question != "question" {
		t.Errorf("edit changed the question to %q", updated.Question)
	}
	if updated.Likes != 0 || updated.ReviewRequests != 0 {
		t.Errorf("edit kept counters likes=%d review_requests=%d, want both 0",
			updated.Likes, updated.ReviewRequests)
	}

	// Fingerprint is untouched; the question did not change.
	stored, _ := store.GetEntry(context.Background(), entry.ID)
	if len(stored.Fingerprint) != len(entry.Fingerprint) {
		t.Error("edit changed the fingerprint dimension")
	}

	if _, err := svc.EditEntry(context.Background(), entry.ID, ""); !errors.Is(err, knowledge.ErrInvalidInput) {
		t.Errorf("EditEntry(empty answer) error = %v, want ErrInvalidInput", err)
	}
	if _, err := svc.EditEntry(context.Background(), uuid.New(), "x"); !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("EditEntry(unknown id) error = %v, want ErrNotFound", err)
	}
}

func TestDeleteEntry(t *testing.T) {
	svc, store, _ := setupService(t)

	entry, err := svc.AddEntry(context.Background(), "q", "a")
	if err != nil {
		t.Fatalf("AddEntry() error = %v", err)
	}

	if err := svc.DeleteEntry(context.Background(), entry.ID); err != nil {
		t.Fatalf("DeleteEntry() error = %v", err)
	}
	if _, err := store.GetEntry(context.Background(), entry.ID); !errors.Is(err, knowledge.ErrNotFound) {
		t.Error("entry still present after delete")
	}
	if err := svc.DeleteEntry(context.Background(), entry.ID); !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("repeat DeleteEntry() error = %v, want ErrNotFound", err)
	}
}

func TestFeedback(t *testing.T) {
	svc, store, _ := setupService(t)

	entry, err := svc.AddEntry(context.Background(), "q", "a")
	if err != nil {
		t.Fatalf("AddEntry() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := svc.Feedback(context.Background(), entry.ID, knowledge.CounterLike); err != nil {
			t.Fatalf("Feedback() error = %v", err)
		}
	}
	stored, _ := store.GetEntry(context.Background(), entry.ID)
	if stored.Likes != 3 {
		t.Errorf("likes = %d, want 3", stored.Likes)
	}

	if err := svc.Feedback(context.Background(), entry.ID, "applause"); !errors.Is(err, knowledge.ErrInvalidInput) {
		t.Errorf("Feedback(bad kind) error = %v, want ErrInvalidInput", err)
	}
	if err := svc.Feedback(context.Background(), uuid.New(), knowledge.CounterLike); !errors.Is(err, knowledge.ErrNotFound) {
		t.Errorf("Feedback(unknown id) error = %v, want ErrNotFound", err)
	}
}

func TestListPending(t *testing.T) {
	svc, store, _ := setupService(t)
	a := enqueue(t, store, "first")
	enqueue(t, store, "second")
	if err := svc.Dismiss(context.Background(), a); err != nil {
		t.Fatalf("Dismiss() error = %v", err)
	}

	open, err := svc.ListPending(context.Background(), knowledge.StatusPending)
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(open) != 1 || open[0].Question != "second" {
		t.Errorf("open pending = %v, want only the second question", open)
	}

	all, err := svc.ListPending(context.Background(), "")
	if err != nil {
		t.Fatalf("ListPending(all) error = %v", err)
	}
	if len(all) != 2 {
		t.Errorf("ListPending(all) returned %d rows, want 2", len(all))
	}

	if _, err := svc.ListPending(context.Background(), "bogus"); !errors.Is(err, knowledge.ErrInvalidInput) {
		t.Errorf("ListPending(bogus) error = %v, want ErrInvalidInput", err)
	}
}
