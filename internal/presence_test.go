package internal

import (
	"reflect"
	"testing"
)

func TestPresenceLastRegistrationWins(t *testing.T) {
	presence := NewPresenceTable()

	presence.Set("alice", "socket-1")
	if !presence.Online("alice") {
		t.Fatalf("alice should be online")
	}

	// re-registration from a new socket replaces the binding
	presence.Set("alice", "socket-2")

	// the stale socket can no longer remove the binding
	if presence.Remove("alice", "socket-1") {
		t.Fatalf("stale socket must not remove the binding")
	}
	if !presence.Online("alice") {
		t.Fatalf("alice should still be online after stale remove")
	}

	if !presence.Remove("alice", "socket-2") {
		t.Fatalf("current socket should remove the binding")
	}
	if presence.Online("alice") {
		t.Fatalf("alice should be offline")
	}
}

func TestPresenceUsernamesSorted(t *testing.T) {
	presence := NewPresenceTable()
	presence.Set("carol", "s3")
	presence.Set("alice", "s1")
	presence.Set("bob", "s2")

	got := presence.Usernames()
	want := []string{"alice", "bob", "carol"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if presence.ActiveCount() != 3 {
		t.Fatalf("expected 3 active, got %d", presence.ActiveCount())
	}
}
