package session

import "testing"

func TestPrincipalScoping(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		p             Principal
		authenticated bool
		scoped        bool
	}{
		{"empty", Principal{}, false, false},
		{"user only", Principal{UserID: "user_1"}, true, false},
		{"whitespace user", Principal{UserID: "  "}, false, false},
		{"org only", Principal{OrgID: "org_a"}, false, false},
		{"user and org", Principal{UserID: "user_1", OrgID: "org_a"}, true, true},
		{"whitespace org", Principal{UserID: "user_1", OrgID: " "}, true, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := tc.p.Authenticated(); got != tc.authenticated {
				t.Fatalf("Authenticated=%v, want %v", got, tc.authenticated)
			}
			if got := tc.p.Scoped(); got != tc.scoped {
				t.Fatalf("Scoped=%v, want %v", got, tc.scoped)
			}
		})
	}
}
