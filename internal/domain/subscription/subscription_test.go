package subscription

import "testing"

func TestStatus_Entitles(t *testing.T) {
	tests := []struct {
		status Status
		want   bool
	}{
		{Active, true},
		{Authenticated, true},
		{"ACTIVE", true},
		{"created", false},
		{"halted", false},
		{"cancelled", false},
		{"", false},
	}
	for _, tc := range tests {
		if got := tc.status.Entitles(); got != tc.want {
			t.Errorf("Status(%q).Entitles() = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestEntitled(t *testing.T) {
	subs := []Subscription{
		{ID: "sub_1", Status: "cancelled"},
		{ID: "sub_2", Status: Authenticated},
		{ID: "sub_3", Status: "halted"},
		{ID: "sub_4", Status: Active},
	}

	got := Entitled(subs)
	if len(got) != 2 {
		t.Fatalf("expected 2 entitled subscriptions, got %d", len(got))
	}
	if got[0].ID != "sub_2" || got[1].ID != "sub_4" {
		t.Errorf("unexpected order: %v", got)
	}
}

func TestVerification_Active(t *testing.T) {
	if (Verification{}).Active() {
		t.Error("empty verification must not be active")
	}
	v := Verification{Entitled: []Subscription{{ID: "sub_1", Status: Active}}}
	if !v.Active() {
		t.Error("verification with entitled subscription must be active")
	}
}
