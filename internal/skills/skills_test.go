package skills

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/coworkhq/coworkd/internal/session"
	"github.com/coworkhq/coworkd/internal/store"
)

func newTestResolver(t *testing.T) (*Resolver, *store.Store) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "coworkd.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	r, err := NewResolver(Options{Store: st})
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	return r, st
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

func TestListBuiltIn(t *testing.T) {
	t.Parallel()
	r, _ := newTestResolver(t)

	got, err := r.ListBuiltIn()
	if err != nil {
		t.Fatalf("ListBuiltIn: %v", err)
	}
	if len(got) == 0 {
		t.Fatalf("built-in catalog is empty")
	}
	seen := map[string]bool{}
	for _, sk := range got {
		if sk.ID == "" || sk.Name == "" || sk.Description == "" {
			t.Fatalf("incomplete built-in skill: %+v", sk)
		}
		if sk.Source != SourceBuiltIn {
			t.Fatalf("skill %s source=%q, want %q", sk.ID, sk.Source, SourceBuiltIn)
		}
		if seen[sk.ID] {
			t.Fatalf("duplicate built-in skill id %s", sk.ID)
		}
		seen[sk.ID] = true
	}
}

func TestListMergesAndTagsProvenance(t *testing.T) {
	t.Parallel()
	r, st := newTestResolver(t)
	p := session.Principal{UserID: "user_1", OrgID: "org_a"}
	sess := mustSession(t, st, p.OrgID, p.UserID)

	created, err := r.Create(context.Background(), p, CreateRequest{
		SessionID:   sess.SessionID,
		Name:        "Release Notes",
		Description: "Draft release notes from merged PRs",
		Content:     "Collect merged PRs since the last tag and group them by area.",
		Tags:        []string{"writing", "release"},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	listing, err := r.List(context.Background(), p.OrgID, "", Filters{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listing.Custom) != 1 || listing.Custom[0].ID != created.ID {
		t.Fatalf("custom=%+v, want the created skill", listing.Custom)
	}
	if listing.Custom[0].Source != SourceCustom {
		t.Fatalf("custom source=%q", listing.Custom[0].Source)
	}
	if len(listing.Skills) != len(listing.BuiltIn)+len(listing.Custom) {
		t.Fatalf("merged len=%d, built-in=%d custom=%d", len(listing.Skills), len(listing.BuiltIn), len(listing.Custom))
	}
}

func TestListFilters(t *testing.T) {
	t.Parallel()
	r, _ := newTestResolver(t)

	byCategory, err := r.List(context.Background(), "org_a", "", Filters{Category: "Engineering"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(byCategory.BuiltIn) == 0 {
		t.Fatalf("no Engineering built-ins matched")
	}
	for _, sk := range byCategory.BuiltIn {
		if sk.Category != "Engineering" {
			t.Fatalf("category filter leaked %+v", sk)
		}
	}

	bySearch, err := r.List(context.Background(), "org_a", "", Filters{Search: "root cause"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(bySearch.BuiltIn) != 1 || bySearch.BuiltIn[0].ID != "builtin_debugging" {
		t.Fatalf("search matched %+v, want builtin_debugging", bySearch.BuiltIn)
	}

	byTags, err := r.List(context.Background(), "org_a", "", Filters{Tags: []string{"docs", "testing"}})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, sk := range byTags.BuiltIn {
		if sk.ID != "builtin_doc_writing" && sk.ID != "builtin_test_authoring" {
			t.Fatalf("tag filter matched %s", sk.ID)
		}
	}
	if len(byTags.BuiltIn) != 2 {
		t.Fatalf("tag filter matched %d skills, want 2", len(byTags.BuiltIn))
	}
}

func TestListDegradesWhenCustomLookupFails(t *testing.T) {
	t.Parallel()
	r, st := newTestResolver(t)
	// Closing the store makes every custom lookup fail.
	_ = st.Close()

	listing, err := r.List(context.Background(), "org_a", "", Filters{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listing.BuiltIn) == 0 {
		t.Fatalf("built-in catalog missing from degraded listing")
	}
	if len(listing.Custom) != 0 {
		t.Fatalf("custom=%+v, want empty on lookup failure", listing.Custom)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()
	r, st := newTestResolver(t)
	p := session.Principal{UserID: "user_1", OrgID: "org_a"}
	sess := mustSession(t, st, p.OrgID, p.UserID)

	cases := []struct {
		name      string
		req       CreateRequest
		wantField string
	}{
		{
			name:      "missing session id",
			req:       CreateRequest{Name: "X", Content: "y"},
			wantField: "sessionId",
		},
		{
			name:      "missing name",
			req:       CreateRequest{SessionID: sess.SessionID, Content: "y"},
			wantField: "name",
		},
		{
			name:      "missing content",
			req:       CreateRequest{SessionID: sess.SessionID, Name: "X"},
			wantField: "content",
		},
		{
			name: "bad parameter type",
			req: CreateRequest{
				SessionID:  sess.SessionID,
				Name:       "X",
				Content:    "y",
				Parameters: []Parameter{{Name: "lang", Type: "dropdown"}},
			},
			wantField: "parameters[0].type",
		},
		{
			name: "select without options",
			req: CreateRequest{
				SessionID:  sess.SessionID,
				Name:       "X",
				Content:    "y",
				Parameters: []Parameter{{Name: "lang", Type: "select"}},
			},
			wantField: "parameters[0].options",
		},
		{
			name:      "bad status",
			req:       CreateRequest{SessionID: sess.SessionID, Name: "X", Content: "y", Status: "archived"},
			wantField: "status",
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := r.Create(context.Background(), p, tc.req)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err=%v, want *ValidationError", err)
			}
			if _, ok := verr.Fields[tc.wantField]; !ok {
				t.Fatalf("fields=%v, want %q flagged", verr.Fields, tc.wantField)
			}
		})
	}
}

func TestCreateMasksForeignSession(t *testing.T) {
	t.Parallel()
	r, st := newTestResolver(t)
	other := mustSession(t, st, "org_b", "user_2")

	_, err := r.Create(context.Background(), session.Principal{UserID: "user_1", OrgID: "org_a"}, CreateRequest{
		SessionID: other.SessionID,
		Name:      "Sneaky",
		Content:   "y",
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound for a foreign session", err)
	}
}

func TestCreateAppliesDefaults(t *testing.T) {
	t.Parallel()
	r, st := newTestResolver(t)
	p := session.Principal{UserID: "user_1", OrgID: "org_a"}
	sess := mustSession(t, st, p.OrgID, p.UserID)

	sk, err := r.Create(context.Background(), p, CreateRequest{
		SessionID: sess.SessionID,
		Name:      "  Minimal  ",
		Content:   "Do the minimal thing.",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if sk.Name != "Minimal" {
		t.Fatalf("name=%q, want trimmed", sk.Name)
	}
	if sk.Category != DefaultCategory {
		t.Fatalf("category=%q, want %q", sk.Category, DefaultCategory)
	}
	if sk.Status != StatusDraft {
		t.Fatalf("status=%q, want %q", sk.Status, StatusDraft)
	}
	if sk.Version != 1 {
		t.Fatalf("version=%d, want 1", sk.Version)
	}
	if sk.CreatedBy != p.UserID {
		t.Fatalf("created_by=%q, want %q", sk.CreatedBy, p.UserID)
	}
	if sk.CreatedAtUnixMs == 0 || sk.UpdatedAtUnixMs == 0 {
		t.Fatalf("timestamps not set: %+v", sk)
	}
}
