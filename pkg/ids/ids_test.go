package ids

import "testing"

func TestNewIsUnique(t *testing.T) {
	a := New()
	b := New()
	if a == b {
		t.Fatalf("expected distinct ids, got %s twice", a)
	}
	if len(a) != 36 {
		t.Fatalf("expected canonical uuid form, got %q", a)
	}
}

func TestMembershipIsDeterministic(t *testing.T) {
	a := Membership("conv1", "alice")
	b := Membership("conv1", "alice")
	if a != b {
		t.Fatalf("same pair produced different ids: %s vs %s", a, b)
	}
	if len(a) != 36 {
		t.Fatalf("expected canonical uuid form, got %q", a)
	}
	if a == Membership("conv1", "bob") {
		t.Fatalf("different users must derive different ids")
	}
	if a == Membership("conv2", "alice") {
		t.Fatalf("different conversations must derive different ids")
	}
}

func TestMembershipSeedOrderMatters(t *testing.T) {
	// the seed is conversation then user; swapping them must not collide
	if Membership("ab", "cd") == Membership("cd", "ab") {
		t.Fatalf("swapped seed components must not produce the same id")
	}
}

func TestReceiptIsDeterministic(t *testing.T) {
	a := Receipt("alice", "msg1")
	if a != Receipt("alice", "msg1") {
		t.Fatalf("same pair produced different ids")
	}
	if a == Receipt("bob", "msg1") {
		t.Fatalf("different users must derive different ids")
	}
}

func TestRoleNames(t *testing.T) {
	if got := ParticipantRole("c1"); got != "conversation-participant-c1" {
		t.Fatalf("unexpected participant role: %s", got)
	}
	if got := AdminRole("c1"); got != "conversation-admin-c1" {
		t.Fatalf("unexpected admin role: %s", got)
	}
}
