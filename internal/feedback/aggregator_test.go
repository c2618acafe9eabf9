package feedback

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/coworkhq/coworkd/internal/session"
	"github.com/coworkhq/coworkd/internal/store"
)

func newTestAggregator(t *testing.T) (*Aggregator, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "coworkd.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	a, err := New(Options{Store: st})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, st
}

func mustSession(t *testing.T, st *store.Store, orgID, userID string) *store.Session {
	t.Helper()
	id, err := store.NewSessionID()
	if err != nil {
		t.Fatalf("NewSessionID: %v", err)
	}
	sess := &store.Session{SessionID: id, UserID: userID, OrgID: orgID}
	if err := st.CreateSession(context.Background(), sess); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return sess
}

func TestRecordAndSummarize(t *testing.T) {
	t.Parallel()
	a, st := newTestAggregator(t)
	p := session.Principal{UserID: "user_1", OrgID: "org_a"}
	sess := mustSession(t, st, p.OrgID, p.UserID)

	ratings := []string{store.RatingPositive, store.RatingNegative, store.RatingPositive}
	for i, rating := range ratings {
		if _, err := a.Record(context.Background(), p, sess.SessionID, RecordRequest{
			MessageID: "msg_" + string(rune('a'+i)),
			Rating:    rating,
		}); err != nil {
			t.Fatalf("Record(%d): %v", i, err)
		}
	}

	items, sum, err := a.ListForSession(context.Background(), p, sess.SessionID)
	if err != nil {
		t.Fatalf("ListForSession: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("len(items)=%d, want 3", len(items))
	}
	for i := range items[:len(items)-1] {
		if items[i].CreatedAtUnixMs > items[i+1].CreatedAtUnixMs {
			t.Fatalf("items out of order at %d", i)
		}
	}
	if sum != (Summary{Total: 3, Positive: 2, Negative: 1}) {
		t.Fatalf("summary=%+v", sum)
	}
}

func TestRecordRejectsInvalidRating(t *testing.T) {
	t.Parallel()
	a, st := newTestAggregator(t)
	p := session.Principal{UserID: "user_1", OrgID: "org_a"}
	sess := mustSession(t, st, p.OrgID, p.UserID)

	_, err := a.Record(context.Background(), p, sess.SessionID, RecordRequest{MessageID: "msg_a", Rating: "meh"})
	if !errors.Is(err, ErrInvalidRating) {
		t.Fatalf("err=%v, want ErrInvalidRating", err)
	}
}

func TestRecordMasksForeignSession(t *testing.T) {
	t.Parallel()
	a, st := newTestAggregator(t)
	other := mustSession(t, st, "org_b", "user_2")

	p := session.Principal{UserID: "user_1", OrgID: "org_a"}
	_, err := a.Record(context.Background(), p, other.SessionID, RecordRequest{MessageID: "msg_a", Rating: store.RatingPositive})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Record err=%v, want ErrNotFound", err)
	}
	_, _, err = a.ListForSession(context.Background(), p, other.SessionID)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("ListForSession err=%v, want ErrNotFound", err)
	}
}

func TestRerateAppendsNewRow(t *testing.T) {
	t.Parallel()
	a, st := newTestAggregator(t)
	p := session.Principal{UserID: "user_1", OrgID: "org_a"}
	sess := mustSession(t, st, p.OrgID, p.UserID)

	for _, rating := range []string{store.RatingPositive, store.RatingNegative} {
		if _, err := a.Record(context.Background(), p, sess.SessionID, RecordRequest{MessageID: "msg_a", Rating: rating}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	items, sum, err := a.ListForSession(context.Background(), p, sess.SessionID)
	if err != nil {
		t.Fatalf("ListForSession: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("len(items)=%d, want 2 rows for the same message", len(items))
	}
	if sum != (Summary{Total: 2, Positive: 1, Negative: 1}) {
		t.Fatalf("summary=%+v", sum)
	}
}
