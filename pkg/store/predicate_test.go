package store

import "testing"

func TestPredicateEq(t *testing.T) {
	rec := map[string]interface{}{"user": "alice", "unread_count": float64(3), "deleted": false}
	p := Eq("user", "alice")
	if !p.Match(rec) {
		t.Fatalf("eq should match")
	}
	p = Eq("user", "bob")
	if p.Match(rec) {
		t.Fatalf("eq should not match a different value")
	}
	p = Eq("deleted", false)
	if !p.Match(rec) {
		t.Fatalf("eq should match booleans")
	}
}

func TestPredicateNumericComparisons(t *testing.T) {
	rec := map[string]interface{}{"seq": float64(5)}
	if p := Gte("seq", 5); !p.Match(rec) {
		t.Fatalf("gte should include the boundary")
	}
	if p := Gte("seq", 6); p.Match(rec) {
		t.Fatalf("gte above the value should not match")
	}
	if p := Lte("seq", 5); !p.Match(rec) {
		t.Fatalf("lte should include the boundary")
	}
	if p := Lte("seq", 4); p.Match(rec) {
		t.Fatalf("lte below the value should not match")
	}
	// int literal against JSON float64
	if p := Eq("seq", 5); !p.Match(rec) {
		t.Fatalf("eq should compare ints against decoded float64")
	}
}

func TestPredicateNeqAndIn(t *testing.T) {
	rec := map[string]interface{}{"status": "some_read"}
	if p := Neq("status", "all_read"); !p.Match(rec) {
		t.Fatalf("neq should match")
	}
	if p := Neq("status", "some_read"); p.Match(rec) {
		t.Fatalf("neq on equal value should not match")
	}
	if p := In("status", "delivered", "some_read"); !p.Match(rec) {
		t.Fatalf("in should match a listed value")
	}
	if p := In("status", "delivered"); p.Match(rec) {
		t.Fatalf("in should not match an unlisted value")
	}
}

func TestPredicateComposition(t *testing.T) {
	rec := map[string]interface{}{"conversation": "c1", "deleted": false, "seq": float64(7)}
	p := And(Eq("conversation", "c1"), Eq("deleted", false), Gte("seq", 2), Lte("seq", 10))
	if !p.Match(rec) {
		t.Fatalf("and of satisfied terms should match")
	}
	p = And(Eq("conversation", "c1"), Eq("deleted", true))
	if p.Match(rec) {
		t.Fatalf("and with one failing term should not match")
	}
	p = Or(Eq("conversation", "zzz"), Gte("seq", 7))
	if !p.Match(rec) {
		t.Fatalf("or with one satisfied term should match")
	}
	p = Not(Eq("deleted", true))
	if !p.Match(rec) {
		t.Fatalf("not of a false term should match")
	}
}

func TestPredicateMissingField(t *testing.T) {
	rec := map[string]interface{}{"id": "x"}
	if p := Eq("absent", "anything"); p.Match(rec) {
		t.Fatalf("eq on a missing field should not match")
	}
	if p := Gte("absent", 1); p.Match(rec) {
		t.Fatalf("gte on a missing field should not match")
	}
}
